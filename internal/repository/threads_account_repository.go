package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/AureliusIvan/threads-scheduler/internal/models"
	"github.com/google/uuid"
)

type ThreadsAccountRepository interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.ThreadsAccount, error)
	ListByTimeInterval(ctx context.Context, initialTime, finalTime time.Time) ([]*models.ThreadsAccount, error)
	SetToken(ctx context.Context, userID uuid.UUID, oldAccessToken string, acc *models.ThreadsAccount) error
}

type threadsAccountRepository struct {
	db *sql.DB
}

func NewThreadsAccountRepository(db *sql.DB) ThreadsAccountRepository {
	return &threadsAccountRepository{db: db}
}

func (r *threadsAccountRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.ThreadsAccount, error) {
	query := `
		SELECT id, user_id, threads_user_id, COALESCE(username, ''), COALESCE(profile_picture_url, ''),
			access_token, token_expires_at, created_at, updated_at
		FROM threads_accounts
		WHERE user_id = $1
	`
	row := r.db.QueryRowContext(ctx, query, userID)

	var acc models.ThreadsAccount
	err := row.Scan(&acc.ID, &acc.UserID, &acc.ThreadsUserID, &acc.Username, &acc.ProfilePicture,
		&acc.AccessToken, &acc.TokenExpiresAt, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &acc, nil
}

// ListByTimeInterval returns accounts whose token expires between the two
// instants or has already expired.
func (r *threadsAccountRepository) ListByTimeInterval(ctx context.Context, initialTime, finalTime time.Time) ([]*models.ThreadsAccount, error) {
	query := `SELECT
			user_id,
			threads_user_id,
			access_token,
			token_expires_at
			FROM threads_accounts
			WHERE (token_expires_at BETWEEN $1 AND $2)
			OR (token_expires_at < $1)`
	rows, err := r.db.QueryContext(ctx, query, initialTime, finalTime)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.ThreadsAccount
	for rows.Next() {
		var acc models.ThreadsAccount
		err := rows.Scan(&acc.UserID, &acc.ThreadsUserID, &acc.AccessToken, &acc.TokenExpiresAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		accounts = append(accounts, &acc)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return accounts, nil
}

// SetToken replaces the stored token only if it still equals oldAccessToken.
func (r *threadsAccountRepository) SetToken(ctx context.Context, userID uuid.UUID, oldAccessToken string, acc *models.ThreadsAccount) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer tx.Rollback()

	updateTokenQuery := `
		UPDATE threads_accounts
		SET
			access_token = COALESCE(NULLIF($3, ''), access_token),
			token_expires_at = COALESCE($4, token_expires_at),
			updated_at = CURRENT_TIMESTAMP
		WHERE user_id = $1 AND access_token = $2;
	`
	result, err := tx.ExecContext(ctx, updateTokenQuery, userID, oldAccessToken, acc.AccessToken, acc.TokenExpiresAt)
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
		slog.Info("no rows affected; token was changed concurrently or user_id does not exist")
		return errors.New("no rows affected; token was changed concurrently or user_id does not exist")
	}

	if err = tx.Commit(); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
