package domain

import "time"

// Role names the identity space a subject was resolved from.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Identity is a registered user or administrator. Role is assigned by the
// store according to the table the row came from, never read from a column.
type Identity struct {
	ID               int64
	Username         string
	Email            string
	Name             string
	PasswordDigest   string
	Role             Role
	Verified         bool
	ContactInfo      string
	Bio              string
	ProfilePictureID *int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsAdmin reports whether the identity lives in the admin space.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}
