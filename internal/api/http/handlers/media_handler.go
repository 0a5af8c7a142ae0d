package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/trustmesh/internal/service"
)

// MediaHandler exposes media removal to the garbage collector.
type MediaHandler struct {
	media *service.MediaService
}

// NewMediaHandler constructs handler.
func NewMediaHandler(media *service.MediaService) *MediaHandler {
	return &MediaHandler{media: media}
}

// Delete handles DELETE /Media/mediaManager/Delete/:id. Absent media is
// reported as deleted.
func (h *MediaHandler) Delete(c *fiber.Ctx) error {
	id, err := positiveIDParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.media.Delete(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
