package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sydialogue/dashboard/internal/analysis"
	"github.com/sydialogue/dashboard/internal/dashboard"
	"github.com/sydialogue/dashboard/internal/normalize"
	"github.com/sydialogue/dashboard/pkg/logger"
)

// StatusClientClosedRequest is returned when the caller went away before the
// analysis service answered.
const StatusClientClosedRequest = 499

// respondError maps a dashboard error onto the {"error": ...} envelope.
// Transport failures get a generic message; the analysis service's own
// error message is shown verbatim.
func respondError(c *fiber.Ctx, action string, err error) error {
	var payloadErr *normalize.PayloadError
	switch {
	case errors.As(err, &payloadErr):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": payloadErr.Message,
		})
	case errors.Is(err, dashboard.ErrNoTargets):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "At least one target is required",
		})
	case errors.Is(err, dashboard.ErrUpstreamUnavailable):
		logger.Error("Analysis service request failed",
			zap.String("action", action),
			zap.String("request_id", requestID(c)),
			zap.Error(err),
		)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Analysis service unavailable",
		})
	case errors.Is(err, context.Canceled):
		return c.Status(StatusClientClosedRequest).JSON(fiber.Map{
			"error": "Request cancelled",
		})
	case errors.Is(err, context.DeadlineExceeded):
		return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{
			"error": "Analysis service timed out",
		})
	}

	logger.Error("Failed to "+action, zap.String("request_id", requestID(c)), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Failed to " + action,
	})
}

// requestContext carries the request ID into calls to the analysis service.
func requestContext(c *fiber.Ctx) context.Context {
	return analysis.WithRequestID(c.UserContext(), requestID(c))
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok && id != "" {
		return id
	}
	return c.Get(analysis.RequestIDHeader)
}
