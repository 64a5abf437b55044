package models

import (
	"time"

	"github.com/google/uuid"
)

// ThreadsAccount holds the connected Threads profile of a user. AccessToken is
// stored encrypted.
type ThreadsAccount struct {
	ID             uuid.UUID `db:"id" json:"id"`
	UserID         uuid.UUID `db:"user_id" json:"user_id"`
	ThreadsUserID  string    `db:"threads_user_id" json:"threads_user_id"`
	Username       string    `db:"username" json:"username"`
	ProfilePicture string    `db:"profile_picture_url" json:"profile_picture"`
	AccessToken    string    `db:"access_token" json:"-"`
	TokenExpiresAt time.Time `db:"token_expires_at" json:"token_expires_at"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}
