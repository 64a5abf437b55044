package models

import (
	"time"

	"github.com/google/uuid"
)

// QueueEntry records the intent to publish a post at ScheduledFor.
type QueueEntry struct {
	ID           uuid.UUID `db:"id" json:"id"`
	PostID       uuid.UUID `db:"post_id" json:"post_id"`
	UserID       uuid.UUID `db:"user_id" json:"user_id"`
	ScheduledFor time.Time `db:"scheduled_for" json:"scheduled_for"`
	Priority     int       `db:"priority" json:"priority"`
	RetryCount   int       `db:"retry_count" json:"retry_count"`
	MaxRetries   int       `db:"max_retries" json:"max_retries"`
	Status       string    `db:"status" json:"status"` // pending, processing, completed, failed
	ErrorMessage string    `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

const (
	QueueStatusPending    = "pending"
	QueueStatusProcessing = "processing"
	QueueStatusCompleted  = "completed"
	QueueStatusFailed     = "failed"
)

const DefaultMaxRetries = 3
