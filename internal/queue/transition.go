package queue

import (
	"errors"
	"time"

	"github.com/AureliusIvan/threads-scheduler/internal/models"
	"github.com/AureliusIvan/threads-scheduler/internal/threads"
)

const DefaultRetryBackoff = 30 * time.Minute

var ErrPostNotFound = errors.New("post not found")

type FailureClass int

const (
	FailureTransient FailureClass = iota
	FailureAuth
	FailureValidation
	FailurePermanent
)

func (c FailureClass) String() string {
	switch c {
	case FailureTransient:
		return "transient"
	case FailureAuth:
		return "auth"
	case FailureValidation:
		return "validation"
	case FailurePermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Classify maps a publish attempt error onto the retry taxonomy. Errors it does
// not recognise are treated as transient.
func Classify(err error) FailureClass {
	if errors.Is(err, threads.ErrNoAccessToken) {
		return FailureAuth
	}
	if errors.Is(err, ErrPostNotFound) ||
		errors.Is(err, threads.ErrInvalidContent) ||
		errors.Is(err, threads.ErrUnsupportedContent) {
		return FailureValidation
	}

	var perr *threads.PublishError
	if errors.As(err, &perr) {
		switch {
		case perr.IsAuth():
			return FailureAuth
		case perr.Retryable():
			return FailureTransient
		default:
			return FailurePermanent
		}
	}
	return FailureTransient
}

// Transition is the next state of a queue entry.
type Transition struct {
	Status       string
	RetryCount   int
	ScheduledFor time.Time
	ErrorMessage string
}

func (t Transition) Terminal() bool {
	return t.Status == models.QueueStatusFailed || t.Status == models.QueueStatusCompleted
}

type RetryPolicy struct {
	Backoff time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Backoff: DefaultRetryBackoff}
}

// OnFailure computes the state after a failed attempt at now. A transient
// failure goes back to pending, Backoff later, while the entry has retries
// left; every other outcome is terminal and leaves retry_count as it was.
func (p RetryPolicy) OnFailure(entry models.QueueEntry, now time.Time, class FailureClass, errorMessage string) Transition {
	maxRetries := entry.MaxRetries
	if maxRetries <= 0 {
		maxRetries = models.DefaultMaxRetries
	}

	backoff := p.Backoff
	if backoff <= 0 {
		backoff = DefaultRetryBackoff
	}

	if class == FailureTransient && entry.RetryCount < maxRetries {
		return Transition{
			Status:       models.QueueStatusPending,
			RetryCount:   entry.RetryCount + 1,
			ScheduledFor: now.Add(backoff),
			ErrorMessage: errorMessage,
		}
	}

	return Transition{
		Status:       models.QueueStatusFailed,
		RetryCount:   entry.RetryCount,
		ScheduledFor: entry.ScheduledFor,
		ErrorMessage: errorMessage,
	}
}

func OnSuccess(entry models.QueueEntry) Transition {
	return Transition{
		Status:       models.QueueStatusCompleted,
		RetryCount:   entry.RetryCount,
		ScheduledFor: entry.ScheduledFor,
	}
}
