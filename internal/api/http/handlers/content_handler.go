package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/trustmesh/internal/auth"
	"github.com/spec-kit/trustmesh/internal/service"
	apperrors "github.com/spec-kit/trustmesh/pkg/util/errorutil"
)

// ContentHandler exposes review and report deletion.
type ContentHandler struct {
	content *service.ContentService
}

// NewContentHandler constructs handler.
func NewContentHandler(content *service.ContentService) *ContentHandler {
	return &ContentHandler{content: content}
}

// DeleteReview handles DELETE /admin/reviews/:id.
func (h *ContentHandler) DeleteReview(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	id, err := positiveIDParam(c, "id")
	if err != nil {
		return err
	}

	result, err := h.content.DeleteReview(c.UserContext(), principal, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": result})
}

// DeleteReport handles DELETE /user/reports/:id.
func (h *ContentHandler) DeleteReport(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	id, err := positiveIDParam(c, "id")
	if err != nil {
		return err
	}

	result, err := h.content.DeleteReport(c.UserContext(), principal, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": result})
}
