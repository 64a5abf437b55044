package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/AureliusIvan/threads-scheduler/internal/models"
	"github.com/google/uuid"
)

type AnalyticsRepository interface {
	Seed(ctx context.Context, postID, userID uuid.UUID, externalPostID string) error
	GetByPostID(ctx context.Context, postID uuid.UUID) (*models.PostAnalytics, error)
	ListForSync(ctx context.Context, limit int) ([]*models.PostAnalytics, error)
	UpdateMetrics(ctx context.Context, a *models.PostAnalytics) error
	MarkSyncAttempted(ctx context.Context, postID uuid.UUID) error
}

type analyticsRepository struct {
	db *sql.DB
}

func NewAnalyticsRepository(db *sql.DB) AnalyticsRepository {
	return &analyticsRepository{db: db}
}

const analyticsColumns = `id, post_id, user_id, external_post_id, views, likes, replies, reposts, quotes, shares,
	last_synced_at, created_at, updated_at`

// Seed creates the zeroed analytics row of a freshly published post. Seeding
// twice is a no-op.
func (r *analyticsRepository) Seed(ctx context.Context, postID, userID uuid.UUID, externalPostID string) error {
	query := `
		INSERT INTO post_analytics (post_id, user_id, external_post_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (post_id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query, postID, userID, externalPostID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *analyticsRepository) GetByPostID(ctx context.Context, postID uuid.UUID) (*models.PostAnalytics, error) {
	query := `SELECT ` + analyticsColumns + ` FROM post_analytics WHERE post_id = $1`

	a, err := scanAnalytics(r.db.QueryRowContext(ctx, query, postID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return a, nil
}

// ListForSync returns the records whose last sync attempt is oldest, failed
// attempts included, so records that keep failing rotate to the back.
func (r *analyticsRepository) ListForSync(ctx context.Context, limit int) ([]*models.PostAnalytics, error) {
	query := `
		SELECT ` + analyticsColumns + `
		FROM post_analytics
		ORDER BY sync_attempted_at ASC NULLS FIRST, created_at ASC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var records []*models.PostAnalytics
	for rows.Next() {
		a, err := scanAnalytics(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		records = append(records, a)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return records, nil
}

func (r *analyticsRepository) UpdateMetrics(ctx context.Context, a *models.PostAnalytics) error {
	query := `
		UPDATE post_analytics
		SET views = $2,
			likes = $3,
			replies = $4,
			reposts = $5,
			quotes = $6,
			shares = $7,
			last_synced_at = NOW(),
			sync_attempted_at = NOW(),
			updated_at = NOW()
		WHERE post_id = $1
	`
	_, err := r.db.ExecContext(ctx, query, a.PostID, a.Views, a.Likes, a.Replies, a.Reposts, a.Quotes, a.Shares)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *analyticsRepository) MarkSyncAttempted(ctx context.Context, postID uuid.UUID) error {
	query := `UPDATE post_analytics SET sync_attempted_at = NOW() WHERE post_id = $1`
	_, err := r.db.ExecContext(ctx, query, postID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func scanAnalytics(row rowScanner) (*models.PostAnalytics, error) {
	var a models.PostAnalytics
	err := row.Scan(&a.ID, &a.PostID, &a.UserID, &a.ExternalPostID, &a.Views, &a.Likes, &a.Replies,
		&a.Reposts, &a.Quotes, &a.Shares, &a.LastSyncedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
