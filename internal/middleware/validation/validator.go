package validation

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// TargetsKey is the fiber.Ctx local holding the validated target list.
const TargetsKey = "targets"

var markupPattern = regexp.MustCompile(`(?i)(</?[a-z!]|javascript:|on[a-z]+\s*=)`)

type Config struct {
	MaxTargets          int
	MaxTargetLength     int
	AllowedContentTypes []string
	Logger              *zap.Logger
}

// TargetsMiddleware validates a {"targets": [...]} body and stores the
// trimmed, non-blank targets under TargetsKey.
func TargetsMiddleware(cfg Config) fiber.Handler {
	if cfg.MaxTargets == 0 {
		cfg.MaxTargets = 20
	}
	if cfg.MaxTargetLength == 0 {
		cfg.MaxTargetLength = 200
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json"}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		contentType := c.Get(fiber.HeaderContentType)
		if contentType != "" && !allowedContentType(contentType, cfg.AllowedContentTypes) {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
				"error": "Unsupported content type",
			})
		}

		var req struct {
			Targets []string `json:"targets"`
		}
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid JSON format",
			})
		}

		targets, msg := ValidateTargets(req.Targets, cfg.MaxTargets, cfg.MaxTargetLength)
		if msg != "" {
			cfg.Logger.Warn("Rejected sentiment request",
				zap.String("ip", c.IP()),
				zap.String("reason", msg),
			)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": msg,
			})
		}

		c.Locals(TargetsKey, targets)
		return c.Next()
	}
}

// ValidateTargets returns the trimmed non-blank targets, or a user-facing
// message describing the first problem found.
func ValidateTargets(raw []string, maxTargets, maxLength int) ([]string, string) {
	targets := make([]string, 0, len(raw))
	for _, t := range raw {
		t = sanitizeString(t)
		if t == "" {
			continue
		}
		if utf8.RuneCountInString(t) > maxLength {
			return nil, "Target exceeds maximum length"
		}
		if markupPattern.MatchString(t) {
			return nil, "Invalid target content"
		}
		targets = append(targets, t)
	}

	if len(targets) == 0 {
		return nil, "At least one target is required"
	}
	if len(targets) > maxTargets {
		return nil, "Too many targets"
	}
	return targets, ""
}

func allowedContentType(contentType string, allowed []string) bool {
	for _, a := range allowed {
		if strings.Contains(contentType, a) {
			return true
		}
	}
	return false
}

func sanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")
	return strings.TrimSpace(input)
}
