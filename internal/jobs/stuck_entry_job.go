package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type StuckEntryStore interface {
	ReclaimStuck(ctx context.Context, cutoff time.Time) (int, []uuid.UUID, error)
}

type FailedPostMarker interface {
	MarkFailed(ctx context.Context, postID uuid.UUID, errorMessage string) error
}

const stuckEntryMessage = "publishing did not finish in time"

// StuckEntryJob recovers queue entries whose dispatcher died while they were
// processing.
type StuckEntryJob struct {
	qs      StuckEntryStore
	posts   FailedPostMarker
	timeout time.Duration
	now     func() time.Time
}

func NewStuckEntryJob(qs StuckEntryStore, posts FailedPostMarker, timeout time.Duration) *StuckEntryJob {
	return &StuckEntryJob{
		qs:      qs,
		posts:   posts,
		timeout: timeout,
		now:     time.Now,
	}
}

func (j *StuckEntryJob) ReclaimStuckEntries() {
	j.Run(context.Background())
}

func (j *StuckEntryJob) Run(ctx context.Context) {
	cutoff := j.now().Add(-j.timeout)

	requeued, failed, err := j.qs.ReclaimStuck(ctx, cutoff)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	for _, postID := range failed {
		if err := j.posts.MarkFailed(ctx, postID, stuckEntryMessage); err != nil {
			slog.Info("unable to mark stuck post failed", "post_id", postID, "error", err)
		}
	}

	if requeued > 0 || len(failed) > 0 {
		slog.Warn("stuck queue entries reclaimed", "requeued", requeued, "failed", len(failed))
	}
}
