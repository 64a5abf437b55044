package job

import (
	"log/slog"
	"time"

	"github.com/AureliusIvan/threads-scheduler/internal/queue"
)

// DispatchJob hands one dispatcher invocation to the asynq workers per tick.
type DispatchJob struct {
	client   queue.Enqueuer
	interval time.Duration
	limit    int
}

func NewDispatchJob(client queue.Enqueuer, interval time.Duration, limit int) *DispatchJob {
	return &DispatchJob{client: client, interval: interval, limit: limit}
}

func (j *DispatchJob) EnqueueDispatch() {
	err := queue.EnqueueProcess(j.client, queue.ProcessQueuePayload{Limit: j.limit}, j.interval)
	if err != nil {
		slog.Error("unable to enqueue queue processing", "error", err)
	}
}
