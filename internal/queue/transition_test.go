package queue

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/AureliusIvan/threads-scheduler/internal/models"
	"github.com/AureliusIvan/threads-scheduler/internal/threads"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureClass
	}{
		{"missing token", threads.ErrNoAccessToken, FailureAuth},
		{"wrapped missing token", fmt.Errorf("resolve: %w", threads.ErrNoAccessToken), FailureAuth},
		{"expired token code", &threads.PublishError{StatusCode: 400, Code: 190}, FailureAuth},
		{"unauthorized", &threads.PublishError{StatusCode: 401}, FailureAuth},
		{"post missing", ErrPostNotFound, FailureValidation},
		{"invalid content", fmt.Errorf("%w: too long", threads.ErrInvalidContent), FailureValidation},
		{"unsupported content", threads.ErrUnsupportedContent, FailureValidation},
		{"server error", &threads.PublishError{StatusCode: 500}, FailureTransient},
		{"rate limited", &threads.PublishError{StatusCode: 429}, FailureTransient},
		{"throttling code", &threads.PublishError{StatusCode: 400, Code: 4}, FailureTransient},
		{"flagged transient", &threads.PublishError{StatusCode: 400, Code: 100, Transient: true}, FailureTransient},
		{"network", &threads.PublishError{Network: true, Err: errors.New("dial tcp: i/o timeout")}, FailureTransient},
		{"bad request", &threads.PublishError{StatusCode: 400, Code: 100}, FailurePermanent},
		{"unknown error", errors.New("boom"), FailureTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestOnFailure(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	scheduled := now.Add(-time.Hour)
	policy := DefaultRetryPolicy()

	tests := []struct {
		name       string
		retryCount int
		maxRetries int
		class      FailureClass
		wantStatus string
		wantCount  int
		wantAt     time.Time
	}{
		{"first transient failure", 0, 3, FailureTransient, models.QueueStatusPending, 1, now.Add(30 * time.Minute)},
		{"last retry", 2, 3, FailureTransient, models.QueueStatusPending, 3, now.Add(30 * time.Minute)},
		{"budget spent", 3, 3, FailureTransient, models.QueueStatusFailed, 3, scheduled},
		{"auth", 0, 3, FailureAuth, models.QueueStatusFailed, 0, scheduled},
		{"validation", 1, 3, FailureValidation, models.QueueStatusFailed, 1, scheduled},
		{"permanent", 0, 3, FailurePermanent, models.QueueStatusFailed, 0, scheduled},
		{"unset max retries uses default", 2, 0, FailureTransient, models.QueueStatusPending, 3, now.Add(30 * time.Minute)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := models.QueueEntry{
				RetryCount:   tt.retryCount,
				MaxRetries:   tt.maxRetries,
				ScheduledFor: scheduled,
				Status:       models.QueueStatusProcessing,
			}

			next := policy.OnFailure(entry, now, tt.class, "failed")

			assert.Equal(t, tt.wantStatus, next.Status)
			assert.Equal(t, tt.wantCount, next.RetryCount)
			assert.True(t, next.ScheduledFor.Equal(tt.wantAt), "scheduled_for = %s", next.ScheduledFor)
			assert.Equal(t, "failed", next.ErrorMessage)
			assert.Equal(t, tt.wantStatus == models.QueueStatusFailed, next.Terminal())
		})
	}
}

func TestOnFailureLeavesEntryUntouched(t *testing.T) {
	entry := models.QueueEntry{RetryCount: 1, MaxRetries: 3}
	DefaultRetryPolicy().OnFailure(entry, time.Now(), FailureTransient, "x")
	assert.Equal(t, 1, entry.RetryCount)
}

func TestOnFailureCustomBackoff(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	next := RetryPolicy{Backoff: 5 * time.Minute}.OnFailure(models.QueueEntry{MaxRetries: 3}, now, FailureTransient, "x")
	assert.True(t, next.ScheduledFor.Equal(now.Add(5*time.Minute)))
}

// Drives the policy the way the dispatcher does until it stops: the number of
// retries never exceeds max_retries and the following failure is terminal.
func TestOnFailureBoundsRetries(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	for maxRetries := 1; maxRetries <= 5; maxRetries++ {
		entry := models.QueueEntry{MaxRetries: maxRetries, ScheduledFor: now}
		retries := 0
		for {
			next := DefaultRetryPolicy().OnFailure(entry, now, FailureTransient, "x")
			if next.Terminal() {
				break
			}
			retries++
			entry.RetryCount = next.RetryCount
			entry.ScheduledFor = next.ScheduledFor
			now = next.ScheduledFor
		}
		assert.Equal(t, maxRetries, retries)
		assert.Equal(t, maxRetries, entry.RetryCount)
	}
}

func TestOnSuccess(t *testing.T) {
	entry := models.QueueEntry{RetryCount: 2}
	next := OnSuccess(entry)
	assert.Equal(t, models.QueueStatusCompleted, next.Status)
	assert.Equal(t, 2, next.RetryCount)
	assert.True(t, next.Terminal())
}
