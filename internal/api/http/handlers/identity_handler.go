package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/trustmesh/internal/api/dto"
	"github.com/spec-kit/trustmesh/internal/auth"
	"github.com/spec-kit/trustmesh/internal/service"
	apperrors "github.com/spec-kit/trustmesh/pkg/util/errorutil"
)

// IdentityHandler exposes registration, login and token resolution.
type IdentityHandler struct {
	identities *service.IdentityService
}

// NewIdentityHandler constructs handler.
func NewIdentityHandler(identities *service.IdentityService) *IdentityHandler {
	return &IdentityHandler{identities: identities}
}

// Register handles POST /authentication/Register.
func (h *IdentityHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return errInvalidPayload
	}

	in := req.RegisterInput()
	in.ContactInfo, in.Bio = "", ""
	result, err := h.identities.Register(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewAuthPayload(result)})
}

// RegisterAdmin handles POST /authentication/RegisterAdmin.
func (h *IdentityHandler) RegisterAdmin(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return errInvalidPayload
	}

	result, err := h.identities.RegisterAdmin(c.UserContext(), req.RegisterInput())
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewAuthPayload(result)})
}

// Login handles POST /authentication/Login.
func (h *IdentityHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return errInvalidPayload
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("CREDENTIALS_REQUIRED", "email and password required")
	}

	result, err := h.identities.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAuthPayload(result)})
}

// ReturnByToken handles GET /authentication/ReturnByToken?token=.
func (h *IdentityHandler) ReturnByToken(c *fiber.Ctx) error {
	identity, err := h.identities.ResolveByToken(c.UserContext(), c.Query("token"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewIdentityResponse(identity)})
}

// ReturnAdminByToken handles GET /authentication/ReturnAdminByToken?token=.
func (h *IdentityHandler) ReturnAdminByToken(c *fiber.Ctx) error {
	identity, err := h.identities.ResolveAdminByToken(c.UserContext(), c.Query("token"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewIdentityResponse(identity)})
}

// CheckToken handles POST /authentication/Check Token. The body is the
// JSON-quoted token; the response is the subject's email as plain text with
// the resolved role in a header.
func (h *IdentityHandler) CheckToken(c *fiber.Ctx) error {
	token := tokenFromBody(c.Body())
	if token == "" {
		if bearer, err := auth.BearerToken(c); err == nil {
			token = bearer
		}
	}
	if token == "" {
		return auth.ErrInvalidToken
	}

	principal, err := h.identities.CheckToken(c.UserContext(), token)
	if err != nil {
		return err
	}
	c.Set(auth.RoleHeader, string(principal.Role))
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendString(principal.Email)
}

// ChangePassword handles POST /authentication/ChangePassword for the
// authenticated caller.
func (h *IdentityHandler) ChangePassword(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.PasswordChangeRequest
	if err := c.BodyParser(&req); err != nil {
		return errInvalidPayload
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return apperrors.NewValidationError("PASSWORDS_REQUIRED", "current and new password required")
	}

	if err := h.identities.ChangePassword(c.UserContext(), principal.Email, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "password changed"}})
}

func tokenFromBody(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	var quoted string
	if json.Unmarshal(trimmed, &quoted) == nil {
		return strings.TrimSpace(quoted)
	}
	return string(trimmed)
}
