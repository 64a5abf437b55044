package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

type Post struct {
	ID             uuid.UUID        `db:"id" json:"id"`
	UserID         uuid.UUID        `db:"user_id" json:"user_id"`
	Content        string           `db:"content" json:"content"`
	MediaType      string           `db:"media_type" json:"media_type"` // text, image, video, carousel
	MediaURLs      []string         `db:"media_urls" json:"media_urls"`
	LinkAttachment string           `db:"link_attachment" json:"link_attachment,omitempty"`
	Children       CarouselChildren `db:"carousel_children" json:"children,omitempty"`
	Status         string           `db:"status" json:"status"` // draft, scheduled, published, failed
	ScheduledFor   *time.Time       `db:"scheduled_for" json:"scheduled_for,omitempty"`
	RetryCount     int              `db:"retry_count" json:"retry_count"`
	ErrorMessage   string           `db:"error_message" json:"error_message,omitempty"`
	ExternalPostID string           `db:"external_post_id" json:"external_post_id,omitempty"`
	PublishedAt    *time.Time       `db:"published_at" json:"published_at,omitempty"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}

// CarouselChild describes one item of a carousel post.
type CarouselChild struct {
	MediaType string `json:"media_type"` // image or video
	URL       string `json:"url"`
}

// CarouselChildren is stored as a jsonb column.
type CarouselChildren []CarouselChild

func (c CarouselChildren) Value() (driver.Value, error) {
	if len(c) == 0 {
		return nil, nil
	}
	return json.Marshal(c)
}

func (c *CarouselChildren) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*c = nil
		return nil
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	default:
		return errors.New("carousel_children: unsupported column type")
	}
}

const (
	PostStatusDraft     = "draft"
	PostStatusScheduled = "scheduled"
	PostStatusPublished = "published"
	PostStatusFailed    = "failed"
)

const (
	MediaTypeText     = "text"
	MediaTypeImage    = "image"
	MediaTypeVideo    = "video"
	MediaTypeCarousel = "carousel"
)
