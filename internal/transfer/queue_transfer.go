package transfer

import "github.com/google/uuid"

// ProcessSummary is the outcome of one dispatcher invocation.
type ProcessSummary struct {
	ProcessedCount int             `json:"processed_count"`
	Results        []ProcessResult `json:"results"`
}

type ProcessResult struct {
	QueueID    uuid.UUID `json:"queue_id"`
	PostID     uuid.UUID `json:"post_id"`
	Status     string    `json:"status"` // completed, pending, failed, skipped, error
	ExternalID string    `json:"external_id,omitempty"`
	Error      string    `json:"error,omitempty"`
}
