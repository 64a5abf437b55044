package models

import (
	"time"

	"github.com/google/uuid"
)

type PostAnalytics struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	PostID         uuid.UUID  `db:"post_id" json:"post_id"`
	UserID         uuid.UUID  `db:"user_id" json:"user_id"`
	ExternalPostID string     `db:"external_post_id" json:"external_post_id"`
	Views          int64      `db:"views" json:"views"`
	Likes          int64      `db:"likes" json:"likes"`
	Replies        int64      `db:"replies" json:"replies"`
	Reposts        int64      `db:"reposts" json:"reposts"`
	Quotes         int64      `db:"quotes" json:"quotes"`
	Shares         int64      `db:"shares" json:"shares"`
	LastSyncedAt   *time.Time `db:"last_synced_at" json:"last_synced_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}
