// Package queue publishes scheduled posts. A Dispatcher invocation picks the
// due entries of the post queue, claims each one, publishes it to Threads and
// records the outcome, retrying transient failures with a fixed backoff.
package queue

import (
	"context"
	"time"

	"github.com/AureliusIvan/threads-scheduler/internal/models"
	"github.com/AureliusIvan/threads-scheduler/internal/threads"
	"github.com/google/uuid"
)

const (
	DefaultBatchSize = 10
	DefaultHeartbeat = time.Minute
)

// QueueStore is the part of the post queue the dispatcher drives.
type QueueStore interface {
	FetchDue(ctx context.Context, now time.Time, limit int) ([]*models.QueueEntry, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) (bool, error)
	MarkCompleted(ctx context.Context, id uuid.UUID) error
	MarkFailedRetryable(ctx context.Context, id uuid.UUID, nextScheduledFor time.Time, newRetryCount int, errorMessage string) error
	MarkFailedTerminal(ctx context.Context, id uuid.UUID, errorMessage string) error
	Remove(ctx context.Context, postID uuid.UUID) error
	Touch(ctx context.Context, id uuid.UUID) error
}

type PostStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Post, error)
	MarkPublished(ctx context.Context, postID uuid.UUID, externalPostID string, publishedAt time.Time) error
	MarkRetrying(ctx context.Context, postID uuid.UUID, retryCount int, errorMessage string) error
	MarkFailed(ctx context.Context, postID uuid.UUID, errorMessage string) error
}

type AnalyticsSeeder interface {
	Seed(ctx context.Context, postID, userID uuid.UUID, externalPostID string) error
}

// TokenResolver returns the Threads credentials of a user, or an error wrapping
// threads.ErrNoAccessToken when the user has no usable token at now.
type TokenResolver interface {
	ResolveCredentials(ctx context.Context, userID uuid.UUID, now time.Time) (threads.Credentials, error)
}

type Publisher interface {
	Publish(ctx context.Context, creds threads.Credentials, content threads.Content) (string, error)
}

type Dispatcher struct {
	queue     QueueStore
	posts     PostStore
	analytics AnalyticsSeeder
	tokens    TokenResolver
	publisher Publisher
	policy    RetryPolicy
	batchSize int
	heartbeat time.Duration
	clock     func() time.Time
}

type Option func(*Dispatcher)

func WithRetryPolicy(p RetryPolicy) Option {
	return func(d *Dispatcher) { d.policy = p }
}

func WithBatchSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.batchSize = n
		}
	}
}

// WithHeartbeat sets how often a claimed entry is touched while its publish
// is in flight. It must stay well below the stuck-entry timeout. Zero
// disables it.
func WithHeartbeat(every time.Duration) Option {
	return func(d *Dispatcher) { d.heartbeat = every }
}

// WithClock sets the time source used by Run and the asynq handler.
func WithClock(clock func() time.Time) Option {
	return func(d *Dispatcher) {
		if clock != nil {
			d.clock = clock
		}
	}
}

func NewDispatcher(
	queue QueueStore,
	posts PostStore,
	analytics AnalyticsSeeder,
	tokens TokenResolver,
	publisher Publisher,
	opts ...Option) *Dispatcher {
	d := &Dispatcher{
		queue:     queue,
		posts:     posts,
		analytics: analytics,
		tokens:    tokens,
		publisher: publisher,
		policy:    DefaultRetryPolicy(),
		batchSize: DefaultBatchSize,
		heartbeat: DefaultHeartbeat,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

const TaskTypeProcessQueue = "queue:process"

type ProcessQueuePayload struct {
	Limit int `json:"limit,omitempty"`
}
