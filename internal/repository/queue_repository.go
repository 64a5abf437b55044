package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/AureliusIvan/threads-scheduler/internal/models"
	"github.com/google/uuid"
)

const stuckErrorMessage = "processing timed out"

type QueueRepository interface {
	Upsert(ctx context.Context, tx *sql.Tx, entry *models.QueueEntry) (uuid.UUID, error)
	FetchDue(ctx context.Context, now time.Time, limit int) ([]*models.QueueEntry, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) (bool, error)
	MarkCompleted(ctx context.Context, id uuid.UUID) error
	MarkFailedRetryable(ctx context.Context, id uuid.UUID, nextScheduledFor time.Time, newRetryCount int, errorMessage string) error
	MarkFailedTerminal(ctx context.Context, id uuid.UUID, errorMessage string) error
	Remove(ctx context.Context, postID uuid.UUID) error
	Delete(ctx context.Context, tx *sql.Tx, postID uuid.UUID) error
	Touch(ctx context.Context, id uuid.UUID) error
	ReclaimStuck(ctx context.Context, cutoff time.Time) (int, []uuid.UUID, error)
}

type queueRepository struct {
	db *sql.DB
}

func NewQueueRepository(db *sql.DB) QueueRepository {
	return &queueRepository{db: db}
}

const queueColumns = `id, post_id, user_id, scheduled_for, priority, retry_count, max_retries, status,
	COALESCE(error_message, ''), created_at, updated_at`

// Upsert schedules a post. Re-scheduling an existing post resets its retry
// bookkeeping and puts the entry back to pending. An entry the dispatcher is
// publishing is left alone and ErrEntryProcessing is returned.
func (r *queueRepository) Upsert(ctx context.Context, tx *sql.Tx, entry *models.QueueEntry) (uuid.UUID, error) {
	query := `
		INSERT INTO post_queue (post_id, user_id, scheduled_for, priority, max_retries)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (post_id) DO UPDATE
		SET scheduled_for = EXCLUDED.scheduled_for,
			priority = EXCLUDED.priority,
			max_retries = EXCLUDED.max_retries,
			retry_count = 0,
			status = 'pending',
			error_message = NULL,
			updated_at = NOW()
		WHERE post_queue.status <> 'processing'
		RETURNING id
	`

	maxRetries := entry.MaxRetries
	if maxRetries <= 0 {
		maxRetries = models.DefaultMaxRetries
	}

	args := []any{entry.PostID, entry.UserID, entry.ScheduledFor, entry.Priority, maxRetries}

	var id uuid.UUID
	var err error
	if tx != nil {
		err = tx.QueryRowContext(ctx, query, args...).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	}
	if err == sql.ErrNoRows {
		return uuid.Nil, ErrEntryProcessing
	}
	if err != nil {
		slog.Info(err.Error())
		return uuid.Nil, err
	}

	return id, nil
}

// FetchDue returns pending entries due at now, earliest first.
func (r *queueRepository) FetchDue(ctx context.Context, now time.Time, limit int) ([]*models.QueueEntry, error) {
	query := `
		SELECT ` + queueColumns + `
		FROM post_queue
		WHERE status = 'pending'
		  AND scheduled_for <= $1
		ORDER BY scheduled_for ASC, created_at ASC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var entries []*models.QueueEntry
	for rows.Next() {
		entry, err := scanQueueEntry(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return entries, nil
}

// MarkProcessing claims a pending entry. Only one caller can win the claim;
// the others get false.
func (r *queueRepository) MarkProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE post_queue
		SET status = 'processing',
			updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

func (r *queueRepository) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE post_queue
		SET status = 'completed',
			error_message = NULL,
			updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`
	return r.execAffecting(ctx, query, id)
}

func (r *queueRepository) MarkFailedRetryable(ctx context.Context, id uuid.UUID, nextScheduledFor time.Time, newRetryCount int, errorMessage string) error {
	query := `
		UPDATE post_queue
		SET status = 'pending',
			scheduled_for = $2,
			retry_count = $3,
			error_message = $4,
			updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`
	return r.execAffecting(ctx, query, id, nextScheduledFor, newRetryCount, errorMessage)
}

func (r *queueRepository) MarkFailedTerminal(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE post_queue
		SET status = 'failed',
			error_message = $2,
			updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`
	return r.execAffecting(ctx, query, id, errorMessage)
}

// Remove drops the entry of a post once the dispatcher is done with it.
func (r *queueRepository) Remove(ctx context.Context, postID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM post_queue WHERE post_id = $1`, postID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// Delete unschedules a post. The row is locked first so a concurrent claim
// either waits for the delete or makes it fail with ErrEntryProcessing.
func (r *queueRepository) Delete(ctx context.Context, tx *sql.Tx, postID uuid.UUID) error {
	lockQuery := `SELECT status FROM post_queue WHERE post_id = $1 FOR UPDATE`
	deleteQuery := `DELETE FROM post_queue WHERE post_id = $1 AND status <> 'processing'`

	var status string
	var err error
	if tx != nil {
		err = tx.QueryRowContext(ctx, lockQuery, postID).Scan(&status)
	} else {
		err = r.db.QueryRowContext(ctx, lockQuery, postID).Scan(&status)
	}
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if status == models.QueueStatusProcessing {
		return ErrEntryProcessing
	}

	if tx != nil {
		_, err = tx.ExecContext(ctx, deleteQuery, postID)
	} else {
		_, err = r.db.ExecContext(ctx, deleteQuery, postID)
	}
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// Touch refreshes the claim on an entry that is still being published.
func (r *queueRepository) Touch(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE post_queue
		SET updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`
	return r.execAffecting(ctx, query, id)
}

// ReclaimStuck returns entries stuck in processing since before cutoff to
// pending when they have retries left, and fails the rest. It reports how many
// were requeued and the posts whose entries were failed.
func (r *queueRepository) ReclaimStuck(ctx context.Context, cutoff time.Time) (int, []uuid.UUID, error) {
	requeueQuery := `
		UPDATE post_queue
		SET status = 'pending',
			retry_count = retry_count + 1,
			error_message = $2,
			updated_at = NOW()
		WHERE status = 'processing'
		  AND updated_at < $1
		  AND retry_count < max_retries
	`
	result, err := r.db.ExecContext(ctx, requeueQuery, cutoff, stuckErrorMessage)
	if err != nil {
		slog.Info(err.Error())
		return 0, nil, err
	}
	requeued, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return 0, nil, err
	}

	failQuery := `
		UPDATE post_queue
		SET status = 'failed',
			error_message = $2,
			updated_at = NOW()
		WHERE status = 'processing'
		  AND updated_at < $1
		  AND retry_count >= max_retries
		RETURNING post_id
	`
	rows, err := r.db.QueryContext(ctx, failQuery, cutoff, stuckErrorMessage)
	if err != nil {
		slog.Info(err.Error())
		return int(requeued), nil, err
	}
	defer rows.Close()

	var failed []uuid.UUID
	for rows.Next() {
		var postID uuid.UUID
		if err := rows.Scan(&postID); err != nil {
			slog.Info(err.Error())
			return int(requeued), nil, err
		}
		failed = append(failed, postID)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return int(requeued), nil, err
	}

	return int(requeued), failed, nil
}

func (r *queueRepository) execAffecting(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQueueEntry(row rowScanner) (*models.QueueEntry, error) {
	var e models.QueueEntry
	err := row.Scan(&e.ID, &e.PostID, &e.UserID, &e.ScheduledFor, &e.Priority, &e.RetryCount,
		&e.MaxRetries, &e.Status, &e.ErrorMessage, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
