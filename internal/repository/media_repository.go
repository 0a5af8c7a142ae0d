package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/trustmesh/internal/domain"
)

// MediaRepository persists media metadata owned by the media service.
type MediaRepository interface {
	Create(ctx context.Context, media *domain.Media) error
	GetByID(ctx context.Context, id int64) (*domain.Media, error)
	Delete(ctx context.Context, id int64) error
}

type mediaRepository struct {
	pool *pgxpool.Pool
}

// NewMediaRepository constructs repository.
func NewMediaRepository(pool *pgxpool.Pool) MediaRepository {
	return &mediaRepository{pool: pool}
}

func (r *mediaRepository) Create(ctx context.Context, media *domain.Media) error {
	const query = `
        INSERT INTO media (owner_email, name, file_name, content_type, storage_key, size_bytes)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		media.OwnerEmail,
		media.Name,
		media.FileName,
		media.ContentType,
		media.StorageKey,
		media.SizeBytes,
	).Scan(&media.ID, &media.CreatedAt)
}

func (r *mediaRepository) GetByID(ctx context.Context, id int64) (*domain.Media, error) {
	const query = `
        SELECT id, owner_email, name, file_name, content_type, storage_key, size_bytes, created_at
        FROM media WHERE id=$1`
	var media domain.Media
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&media.ID,
		&media.OwnerEmail,
		&media.Name,
		&media.FileName,
		&media.ContentType,
		&media.StorageKey,
		&media.SizeBytes,
		&media.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &media, nil
}

func (r *mediaRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM media WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
