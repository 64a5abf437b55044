package transfer

import (
	"time"

	"github.com/AureliusIvan/threads-scheduler/internal/models"
)

type PostCreation struct {
	Content        string                 `json:"content"`
	MediaType      string                 `json:"media_type"`
	MediaURLs      []string               `json:"media_urls"`
	LinkAttachment string                 `json:"link_attachment"`
	Children       []models.CarouselChild `json:"children"`
	ScheduledFor   *time.Time             `json:"scheduled_for"`
}

type MediaUpload struct {
	URL  string `json:"url"`
	Kind string `json:"kind"` // image or video
	Key  string `json:"key"`
}
