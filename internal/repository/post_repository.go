package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/AureliusIvan/threads-scheduler/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

type PostRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Post, error)
	Create(ctx context.Context, tx *sql.Tx, post *models.Post) (uuid.UUID, error)
	Update(ctx context.Context, tx *sql.Tx, post *models.Post) error
	GetByUserID(ctx context.Context, userID uuid.UUID, status string) ([]*models.Post, error)
	CheckByUserID(ctx context.Context, postID, userID uuid.UUID) (bool, error)
	MarkPublished(ctx context.Context, postID uuid.UUID, externalPostID string, publishedAt time.Time) error
	MarkRetrying(ctx context.Context, postID uuid.UUID, retryCount int, errorMessage string) error
	MarkFailed(ctx context.Context, postID uuid.UUID, errorMessage string) error
	Remove(ctx context.Context, tx *sql.Tx, id uuid.UUID) error
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, user_id, content, media_type, media_urls, COALESCE(link_attachment, ''), carousel_children,
	status, scheduled_for, retry_count, COALESCE(error_message, ''), COALESCE(external_post_id, ''), published_at,
	created_at, updated_at`

func (r *postRepository) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (uuid.UUID, error) {
	query := `
		INSERT INTO posts (user_id, content, media_type, media_urls, link_attachment, carousel_children, status, scheduled_for)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)
		RETURNING id
	`
	args := []any{post.UserID, post.Content, post.MediaType, pq.Array(post.MediaURLs), post.LinkAttachment,
		post.Children, post.Status, post.ScheduledFor}

	var id uuid.UUID
	var err error

	if tx != nil {
		err = tx.QueryRowContext(ctx, query, args...).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return uuid.Nil, err
	}

	return id, nil
}

// Update rewrites the editable fields of a post and clears its failure state.
func (r *postRepository) Update(ctx context.Context, tx *sql.Tx, post *models.Post) error {
	query := `
		UPDATE posts
		SET content = $2,
			media_type = $3,
			media_urls = $4,
			link_attachment = NULLIF($5, ''),
			carousel_children = $6,
			status = $7,
			scheduled_for = $8,
			retry_count = 0,
			error_message = NULL,
			updated_at = NOW()
		WHERE id = $1 AND status <> 'published'
	`
	args := []any{post.ID, post.Content, post.MediaType, pq.Array(post.MediaURLs), post.LinkAttachment,
		post.Children, post.Status, post.ScheduledFor}

	var result sql.Result
	var err error
	if tx != nil {
		result, err = tx.ExecContext(ctx, query, args...)
	} else {
		result, err = r.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected != 1 {
		return ErrNoRowsAffected
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return post, nil
}

// GetByUserID lists a user's posts, newest first. An empty status lists all.
func (r *postRepository) GetByUserID(ctx context.Context, userID uuid.UUID, status string) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE user_id = $1`
	args := []any{userID}

	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return posts, nil
}

func (r *postRepository) CheckByUserID(ctx context.Context, postID, userID uuid.UUID) (bool, error) {
	query := "SELECT 1 FROM posts WHERE id = $1 AND user_id = $2"

	var result int
	err := r.db.QueryRowContext(ctx, query, postID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}

// MarkPublished sets the external id and publish time. Both are written once:
// a post that is already published is left untouched and ErrNoRowsAffected is
// returned.
func (r *postRepository) MarkPublished(ctx context.Context, postID uuid.UUID, externalPostID string, publishedAt time.Time) error {
	query := `
		UPDATE posts
		SET status = 'published',
			external_post_id = $2,
			published_at = $3,
			error_message = NULL,
			updated_at = NOW()
		WHERE id = $1 AND status <> 'published'
	`
	result, err := r.db.ExecContext(ctx, query, postID, externalPostID, publishedAt)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected != 1 {
		return ErrNoRowsAffected
	}
	return nil
}

func (r *postRepository) MarkRetrying(ctx context.Context, postID uuid.UUID, retryCount int, errorMessage string) error {
	query := `
		UPDATE posts
		SET retry_count = $2,
			error_message = $3,
			updated_at = NOW()
		WHERE id = $1 AND status = 'scheduled'
	`
	_, err := r.db.ExecContext(ctx, query, postID, retryCount, errorMessage)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) MarkFailed(ctx context.Context, postID uuid.UUID, errorMessage string) error {
	query := `
		UPDATE posts
		SET status = 'failed',
			error_message = $2,
			updated_at = NOW()
		WHERE id = $1 AND status <> 'published'
	`
	_, err := r.db.ExecContext(ctx, query, postID, errorMessage)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) Remove(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	query := `DELETE FROM posts WHERE id = $1`

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, id)
	} else {
		_, err = r.db.ExecContext(ctx, query, id)
	}
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func scanPost(row rowScanner) (*models.Post, error) {
	var post models.Post
	err := row.Scan(&post.ID, &post.UserID, &post.Content, &post.MediaType, pq.Array(&post.MediaURLs),
		&post.LinkAttachment, &post.Children, &post.Status, &post.ScheduledFor, &post.RetryCount,
		&post.ErrorMessage, &post.ExternalPostID, &post.PublishedAt, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &post, nil
}
