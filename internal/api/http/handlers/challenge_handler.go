package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/trustmesh/internal/api/dto"
	"github.com/spec-kit/trustmesh/internal/auth"
	"github.com/spec-kit/trustmesh/internal/service"
)

// ChallengeHandler exposes one-time code issuance and verification. Both
// endpoints answer with the outcome name as plain text.
type ChallengeHandler struct {
	challenges *service.ChallengeService
}

// NewChallengeHandler constructs handler.
func NewChallengeHandler(challenges *service.ChallengeService) *ChallengeHandler {
	return &ChallengeHandler{challenges: challenges}
}

// NewCode handles POST /authentication/New Code?token=.
func (h *ChallengeHandler) NewCode(c *fiber.Ctx) error {
	outcome, err := h.challenges.Generate(c.UserContext(), requestToken(c, c.Query("token")))
	if err != nil {
		return err
	}
	return sendOutcome(c, outcome)
}

// Verify handles POST /authentication/Verify.
func (h *ChallengeHandler) Verify(c *fiber.Ctx) error {
	var req dto.VerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return errInvalidPayload
	}

	outcome, err := h.challenges.Verify(c.UserContext(), requestToken(c, req.Token), req.Code)
	if err != nil {
		return err
	}
	return sendOutcome(c, outcome)
}

// requestToken prefers the explicit token and falls back to the bearer header.
func requestToken(c *fiber.Ctx, explicit string) string {
	if explicit != "" {
		return explicit
	}
	token, _ := auth.BearerToken(c)
	return token
}

func sendOutcome(c *fiber.Ctx, outcome service.Outcome) error {
	var status int
	switch outcome {
	case service.OutcomeOK:
		status = http.StatusOK
	case service.OutcomeInvalidToken:
		status = http.StatusUnauthorized
	default:
		status = http.StatusBadRequest
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.Status(status).SendString(string(outcome))
}
