package queue

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// EnqueueProcess asks the asynq workers to run one dispatcher invocation. At
// most one such task exists per uniqueFor window; a duplicate is not an error.
func EnqueueProcess(client Enqueuer, payload ProcessQueuePayload, uniqueFor time.Duration) error {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypeProcessQueue, taskPayload)

	_, err = client.Enqueue(task, asynq.Unique(uniqueFor), asynq.MaxRetry(0))
	if errors.Is(err, asynq.ErrDuplicateTask) {
		slog.Debug("queue processing already enqueued")
		return nil
	}
	if err != nil {
		return err
	}

	slog.Debug("queue processing enqueued", "limit", payload.Limit)
	return nil
}
