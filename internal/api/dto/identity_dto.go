package dto

import (
	"time"

	"github.com/spec-kit/trustmesh/internal/domain"
	"github.com/spec-kit/trustmesh/internal/service"
)

// RegisterRequest payload for new users and administrators. ContactInfo and
// Bio are read for administrators only.
type RegisterRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	Password    string `json:"password"`
	ContactInfo string `json:"contact_info"`
	Bio         string `json:"bio"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// VerifyRequest carries a one-time code and the token of its owner.
type VerifyRequest struct {
	Token string `json:"token"`
	Code  string `json:"code"`
}

// PasswordChangeRequest payload for authenticated password changes.
type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IdentityResponse is the public view of an identity.
type IdentityResponse struct {
	ID          int64       `json:"id"`
	Username    string      `json:"username"`
	Email       string      `json:"email"`
	Name        string      `json:"name"`
	Role        domain.Role `json:"role"`
	Verified    bool        `json:"verified"`
	ContactInfo string      `json:"contact_info,omitempty"`
	Bio         string      `json:"bio,omitempty"`
}

// RegisterInput maps the payload onto the service input.
func (r RegisterRequest) RegisterInput() service.RegisterInput {
	return service.RegisterInput{
		Username:    r.Username,
		Email:       r.Email,
		Name:        r.Name,
		Password:    r.Password,
		ContactInfo: r.ContactInfo,
		Bio:         r.Bio,
	}
}

func NewIdentityResponse(identity *domain.Identity) IdentityResponse {
	return IdentityResponse{
		ID:          identity.ID,
		Username:    identity.Username,
		Email:       identity.Email,
		Name:        identity.Name,
		Role:        identity.Role,
		Verified:    identity.Verified,
		ContactInfo: identity.ContactInfo,
		Bio:         identity.Bio,
	}
}

// NewAuthPayload renders a registration or login result.
func NewAuthPayload(result *service.AuthResult) map[string]any {
	return map[string]any{
		"identity": NewIdentityResponse(result.Identity),
		"auth":     AuthResponse{Token: result.Token.Value, ExpiresAt: result.Token.ExpiresAt},
	}
}
