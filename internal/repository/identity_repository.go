package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/trustmesh/internal/domain"
)

const (
	pgUniqueViolation = "23505"

	handleEmailConstraint    = "identity_handles_email_key"
	handleUsernameConstraint = "identity_handles_username_key"
)

// IdentityRepository persists users and administrators. Email and username
// are unique across both spaces.
type IdentityRepository interface {
	Create(ctx context.Context, identity *domain.Identity) error
	GetByEmail(ctx context.Context, email string) (*domain.Identity, error)
	GetByUsername(ctx context.Context, username string) (*domain.Identity, error)
	UpdatePassword(ctx context.Context, identity *domain.Identity) error
	MarkVerified(ctx context.Context, id int64) error
}

type identityRepository struct {
	pool *pgxpool.Pool
}

// NewIdentityRepository returns a Postgres-backed implementation.
func NewIdentityRepository(pool *pgxpool.Pool) IdentityRepository {
	return &identityRepository{pool: pool}
}

// Create claims the email and username in identity_handles and inserts the
// row in the table matching identity.Role, in one transaction.
func (r *identityRepository) Create(ctx context.Context, identity *domain.Identity) error {
	if !identity.Role.Valid() {
		return fmt.Errorf("create identity: invalid role %q", identity.Role)
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const claim = `
        INSERT INTO identity_handles (email, username, role)
        VALUES ($1, $2, $3)`
		if _, err := tx.Exec(ctx, claim, identity.Email, identity.Username, identity.Role); err != nil {
			return mapUniqueViolation(err)
		}

		switch identity.Role {
		case domain.RoleAdmin:
			const query = `
            INSERT INTO admins (username, email, name, contact_info, bio, profile_picture_id, password_digest)
            VALUES ($1, $2, $3, $4, $5, $6, $7)
            RETURNING id, created_at, updated_at`
			return tx.QueryRow(ctx, query,
				identity.Username,
				identity.Email,
				identity.Name,
				identity.ContactInfo,
				identity.Bio,
				identity.ProfilePictureID,
				identity.PasswordDigest,
			).Scan(&identity.ID, &identity.CreatedAt, &identity.UpdatedAt)
		default:
			const query = `
            INSERT INTO users (username, email, name, profile_picture_id, password_digest, is_verified)
            VALUES ($1, $2, $3, $4, $5, $6)
            RETURNING id, created_at, updated_at`
			return tx.QueryRow(ctx, query,
				identity.Username,
				identity.Email,
				identity.Name,
				identity.ProfilePictureID,
				identity.PasswordDigest,
				identity.Verified,
			).Scan(&identity.ID, &identity.CreatedAt, &identity.UpdatedAt)
		}
	})
}

func (r *identityRepository) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	return r.lookup(ctx, "email", email)
}

func (r *identityRepository) GetByUsername(ctx context.Context, username string) (*domain.Identity, error) {
	return r.lookup(ctx, "username", username)
}

// lookup searches the user space first, then the admin space.
func (r *identityRepository) lookup(ctx context.Context, column, value string) (*domain.Identity, error) {
	userQuery := fmt.Sprintf(`
        SELECT id, username, email, name, profile_picture_id, password_digest, is_verified, created_at, updated_at
        FROM users WHERE %s=$1`, column)

	var user domain.Identity
	err := r.pool.QueryRow(ctx, userQuery, value).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.Name,
		&user.ProfilePictureID,
		&user.PasswordDigest,
		&user.Verified,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == nil {
		user.Role = domain.RoleUser
		return &user, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	adminQuery := fmt.Sprintf(`
        SELECT id, username, email, name, contact_info, bio, profile_picture_id, password_digest, created_at, updated_at
        FROM admins WHERE %s=$1`, column)

	var admin domain.Identity
	err = r.pool.QueryRow(ctx, adminQuery, value).Scan(
		&admin.ID,
		&admin.Username,
		&admin.Email,
		&admin.Name,
		&admin.ContactInfo,
		&admin.Bio,
		&admin.ProfilePictureID,
		&admin.PasswordDigest,
		&admin.CreatedAt,
		&admin.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	admin.Role = domain.RoleAdmin
	admin.Verified = true
	return &admin, nil
}

func (r *identityRepository) UpdatePassword(ctx context.Context, identity *domain.Identity) error {
	table := "users"
	if identity.Role == domain.RoleAdmin {
		table = "admins"
	}
	query := fmt.Sprintf(`
        UPDATE %s SET password_digest=$1, updated_at=NOW()
        WHERE id=$2`, table)

	cmd, err := r.pool.Exec(ctx, query, identity.PasswordDigest, identity.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *identityRepository) MarkVerified(ctx context.Context, id int64) error {
	const query = `
        UPDATE users SET is_verified=TRUE, updated_at=NOW()
        WHERE id=$1`

	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return err
	}
	switch pgErr.ConstraintName {
	case handleEmailConstraint:
		return ErrEmailTaken
	case handleUsernameConstraint:
		return ErrUsernameTaken
	default:
		return err
	}
}
