package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sydialogue/dashboard/internal/dashboard"
)

type ArticleHandler struct {
	service *dashboard.Service
}

func NewArticleHandler(service *dashboard.Service) *ArticleHandler {
	return &ArticleHandler{
		service: service,
	}
}

func (h *ArticleHandler) List(c *fiber.Ctx) error {
	articles, err := h.service.Articles(requestContext(c))
	if err != nil {
		return respondError(c, "list articles", err)
	}

	return c.JSON(articles)
}

func (h *ArticleHandler) Reindex(c *fiber.Ctx) error {
	count, err := h.service.Reindex(requestContext(c))
	if err != nil {
		return respondError(c, "rebuild article index", err)
	}

	return c.JSON(fiber.Map{
		"status": "ok",
		"count":  count,
	})
}
