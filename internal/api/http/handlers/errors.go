package handlers

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/trustmesh/pkg/util/errorutil"
)

var errInvalidPayload = apperrors.NewValidationError("INVALID_PAYLOAD", "invalid payload")

// positiveIDParam reads a strictly positive integer path parameter.
func positiveIDParam(c *fiber.Ctx, name string) (int64, error) {
	id, err := c.ParamsInt(name)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("INVALID_ID", name+" must be a positive integer")
	}
	return int64(id), nil
}
