package handlers

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sydialogue/dashboard/internal/dashboard"
	"github.com/sydialogue/dashboard/pkg/logger"
	"github.com/sydialogue/dashboard/pkg/utils"
)

type RelationshipHandler struct {
	service *dashboard.Service
}

func NewRelationshipHandler(service *dashboard.Service) *RelationshipHandler {
	return &RelationshipHandler{
		service: service,
	}
}

// Get serves the cached relationship map; ?refresh=true rebuilds it.
// Responses carry an ETag so polling dashboards can revalidate cheaply.
func (h *RelationshipHandler) Get(c *fiber.Ctx) error {
	refresh := c.QueryBool("refresh", false)

	view, err := h.service.Relationships(requestContext(c), refresh)
	if err != nil {
		return respondError(c, "build relationship map", err)
	}

	body, err := json.Marshal(view)
	if err != nil {
		logger.Error("Failed to encode relationship map", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to encode relationship map",
		})
	}

	etag := utils.ETag(body)
	c.Set(fiber.HeaderETag, etag)
	if !refresh && utils.ETagMatches(c.Get(fiber.HeaderIfNoneMatch), etag) {
		return c.SendStatus(fiber.StatusNotModified)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(body)
}

func (h *RelationshipHandler) ClearCache(c *fiber.Ctx) error {
	if err := h.service.ClearCache(c.UserContext()); err != nil {
		return respondError(c, "clear relationship cache", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *RelationshipHandler) Entities(c *fiber.Ctx) error {
	list, err := h.service.Entities(requestContext(c))
	if err != nil {
		return respondError(c, "list entities", err)
	}

	return c.JSON(list)
}
