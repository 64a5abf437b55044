package queue

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

func (d *Dispatcher) HandleProcessQueueTask(ctx context.Context, task *asynq.Task) error {
	var payload ProcessQueuePayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return err
		}
	}

	summary, err := d.Process(ctx, d.clock(), payload.Limit)
	if err != nil {
		slog.Error("queue processing failed", "error", err)
		return err
	}

	slog.Info("queue processed", "processed_count", summary.ProcessedCount)
	return nil
}
