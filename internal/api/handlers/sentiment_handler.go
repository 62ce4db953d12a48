package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sydialogue/dashboard/internal/dashboard"
	"github.com/sydialogue/dashboard/internal/middleware/validation"
)

type SentimentHandler struct {
	service *dashboard.Service
}

func NewSentimentHandler(service *dashboard.Service) *SentimentHandler {
	return &SentimentHandler{
		service: service,
	}
}

// Analyze expects validation.TargetsMiddleware to have run first.
func (h *SentimentHandler) Analyze(c *fiber.Ctx) error {
	targets, ok := c.Locals(validation.TargetsKey).([]string)
	if !ok {
		var req struct {
			Targets []string `json:"targets"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
		targets = req.Targets
	}

	view, err := h.service.Sentiment(requestContext(c), targets)
	if err != nil {
		return respondError(c, "analyze sentiment", err)
	}

	return c.JSON(view)
}
