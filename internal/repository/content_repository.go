package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/trustmesh/internal/domain"
)

// ContentRepository persists reviews, reports and their media references.
type ContentRepository interface {
	CreateReview(ctx context.Context, review *domain.Review, mediaIDs []int64) error
	CreateReport(ctx context.Context, report *domain.Report, mediaIDs []int64) error
	GetReview(ctx context.Context, id int64) (*domain.Review, error)
	GetReport(ctx context.Context, id int64) (*domain.Report, error)
	ListMediaReferences(ctx context.Context, kind domain.AggregateKind, id int64) ([]domain.MediaReference, error)
	// DeleteReview removes the review and its media rows in one transaction
	// and returns the media ids that were referenced.
	DeleteReview(ctx context.Context, id int64) ([]int64, error)
	DeleteReport(ctx context.Context, id int64) ([]int64, error)
}

type aggregateTables struct {
	table     string
	joinTable string
	fkColumn  string
}

var contentTables = map[domain.AggregateKind]aggregateTables{
	domain.AggregateReview: {table: "reviews", joinTable: "review_media", fkColumn: "review_id"},
	domain.AggregateReport: {table: "reports", joinTable: "report_media", fkColumn: "report_id"},
}

type contentRepository struct {
	pool *pgxpool.Pool
}

// NewContentRepository constructs repository.
func NewContentRepository(pool *pgxpool.Pool) ContentRepository {
	return &contentRepository{pool: pool}
}

func (r *contentRepository) CreateReview(ctx context.Context, review *domain.Review, mediaIDs []int64) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const query = `
        INSERT INTO reviews (author_email, title, body)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
		if err := tx.QueryRow(ctx, query, review.AuthorEmail, review.Title, review.Body).
			Scan(&review.ID, &review.CreatedAt); err != nil {
			return err
		}
		return attachMedia(ctx, tx, contentTables[domain.AggregateReview], review.ID, mediaIDs)
	})
}

func (r *contentRepository) CreateReport(ctx context.Context, report *domain.Report, mediaIDs []int64) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const query = `
        INSERT INTO reports (writer_email, url, description)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
		if err := tx.QueryRow(ctx, query, report.WriterEmail, report.URL, report.Description).
			Scan(&report.ID, &report.CreatedAt); err != nil {
			return err
		}
		return attachMedia(ctx, tx, contentTables[domain.AggregateReport], report.ID, mediaIDs)
	})
}

func (r *contentRepository) GetReview(ctx context.Context, id int64) (*domain.Review, error) {
	const query = `
        SELECT id, author_email, title, body, created_at
        FROM reviews WHERE id=$1`
	var review domain.Review
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&review.ID,
		&review.AuthorEmail,
		&review.Title,
		&review.Body,
		&review.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &review, nil
}

func (r *contentRepository) GetReport(ctx context.Context, id int64) (*domain.Report, error) {
	const query = `
        SELECT id, writer_email, url, description, created_at
        FROM reports WHERE id=$1`
	var report domain.Report
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&report.ID,
		&report.WriterEmail,
		&report.URL,
		&report.Description,
		&report.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &report, nil
}

func (r *contentRepository) ListMediaReferences(ctx context.Context, kind domain.AggregateKind, id int64) ([]domain.MediaReference, error) {
	tables, ok := contentTables[kind]
	if !ok {
		return nil, ErrNotFound
	}
	query := `SELECT media_id FROM ` + tables.joinTable + ` WHERE ` + tables.fkColumn + `=$1 ORDER BY media_id`
	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.MediaReference
	for rows.Next() {
		ref := domain.MediaReference{Kind: kind, AggregateID: id}
		if err := rows.Scan(&ref.MediaID); err != nil {
			return nil, err
		}
		result = append(result, ref)
	}
	return result, rows.Err()
}

func (r *contentRepository) DeleteReview(ctx context.Context, id int64) ([]int64, error) {
	return r.deleteAggregate(ctx, contentTables[domain.AggregateReview], id)
}

func (r *contentRepository) DeleteReport(ctx context.Context, id int64) ([]int64, error) {
	return r.deleteAggregate(ctx, contentTables[domain.AggregateReport], id)
}

func (r *contentRepository) deleteAggregate(ctx context.Context, tables aggregateTables, id int64) ([]int64, error) {
	var mediaIDs []int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		mediaIDs = mediaIDs[:0]
		rows, err := tx.Query(ctx,
			`DELETE FROM `+tables.joinTable+` WHERE `+tables.fkColumn+`=$1 RETURNING media_id`, id)
		if err != nil {
			return err
		}
		for rows.Next() {
			var mediaID int64
			if err := rows.Scan(&mediaID); err != nil {
				rows.Close()
				return err
			}
			mediaIDs = append(mediaIDs, mediaID)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		cmd, err := tx.Exec(ctx, `DELETE FROM `+tables.table+` WHERE id=$1`, id)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return mediaIDs, nil
}

func attachMedia(ctx context.Context, tx pgx.Tx, tables aggregateTables, id int64, mediaIDs []int64) error {
	query := `INSERT INTO ` + tables.joinTable + ` (` + tables.fkColumn + `, media_id) VALUES ($1,$2)`
	for _, mediaID := range mediaIDs {
		if _, err := tx.Exec(ctx, query, id, mediaID); err != nil {
			return err
		}
	}
	return nil
}
