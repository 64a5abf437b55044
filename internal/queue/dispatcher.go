package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AureliusIvan/threads-scheduler/internal/models"
	"github.com/AureliusIvan/threads-scheduler/internal/repository"
	"github.com/AureliusIvan/threads-scheduler/internal/threads"
	"github.com/AureliusIvan/threads-scheduler/internal/transfer"
)

const (
	ResultSkipped = "skipped"
	ResultError   = "error"
)

// Run processes one batch using the dispatcher's clock and batch size.
func (d *Dispatcher) Run(ctx context.Context) (*transfer.ProcessSummary, error) {
	return d.Process(ctx, d.clock(), d.batchSize)
}

// Process publishes up to limit entries due at now, one after another in
// ascending scheduled_for order. A failing entry never stops the batch; only a
// failure to fetch the due set is returned as an error.
func (d *Dispatcher) Process(ctx context.Context, now time.Time, limit int) (*transfer.ProcessSummary, error) {
	if limit <= 0 {
		limit = d.batchSize
	}

	entries, err := d.queue.FetchDue(ctx, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch due queue entries: %w", err)
	}

	summary := &transfer.ProcessSummary{Results: make([]transfer.ProcessResult, 0, len(entries))}

	for _, e := range entries {
		if ctx.Err() != nil {
			slog.Warn("queue processing interrupted", "remaining", len(entries)-len(summary.Results))
			break
		}

		result := d.processEntry(ctx, now, *e)
		summary.Results = append(summary.Results, result)

		slog.Info("queue entry processed",
			"queue_id", result.QueueID,
			"post_id", result.PostID,
			"status", result.Status,
			"external_id", result.ExternalID,
			"error", result.Error,
		)
	}

	summary.ProcessedCount = len(summary.Results)
	return summary, nil
}

func (d *Dispatcher) processEntry(ctx context.Context, now time.Time, entry models.QueueEntry) transfer.ProcessResult {
	result := transfer.ProcessResult{QueueID: entry.ID, PostID: entry.PostID}

	claimed, err := d.queue.MarkProcessing(ctx, entry.ID)
	if err != nil {
		result.Status = ResultError
		result.Error = fmt.Sprintf("failed to claim queue entry: %v", err)
		return result
	}
	if !claimed {
		result.Status = ResultSkipped
		return result
	}

	post, externalID, err := d.publish(ctx, now, entry)
	if err != nil {
		return d.fail(ctx, now, entry, post, err)
	}
	return d.complete(ctx, now, entry, post, externalID)
}

func (d *Dispatcher) publish(ctx context.Context, now time.Time, entry models.QueueEntry) (*models.Post, string, error) {
	post, err := d.posts.GetByID(ctx, entry.PostID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load post: %w", err)
	}
	if post == nil {
		return nil, "", ErrPostNotFound
	}

	// Published by an earlier attempt whose queue bookkeeping did not finish.
	if post.Status == models.PostStatusPublished && post.ExternalPostID != "" {
		return post, post.ExternalPostID, nil
	}

	creds, err := d.tokens.ResolveCredentials(ctx, post.UserID, now)
	if err != nil {
		return post, "", err
	}

	content, err := ContentFromPost(post)
	if err != nil {
		return post, "", err
	}

	stop := d.keepClaim(ctx, entry)
	externalID, err := d.publisher.Publish(ctx, creds, content)
	stop()
	if err != nil {
		return post, "", err
	}
	return post, externalID, nil
}

// keepClaim touches the entry every heartbeat until the returned stop func is
// called, so the stuck-entry reclaimer does not requeue a slow publish.
func (d *Dispatcher) keepClaim(ctx context.Context, entry models.QueueEntry) (stop func()) {
	if d.heartbeat <= 0 {
		return func() {}
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(d.heartbeat)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := d.queue.Touch(ctx, entry.ID); err != nil && ctx.Err() == nil {
					slog.Warn("failed to refresh queue entry claim", "queue_id", entry.ID, "error", err)
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (d *Dispatcher) complete(ctx context.Context, now time.Time, entry models.QueueEntry, post *models.Post, externalID string) transfer.ProcessResult {
	next := OnSuccess(entry)
	result := transfer.ProcessResult{
		QueueID:    entry.ID,
		PostID:     entry.PostID,
		Status:     next.Status,
		ExternalID: externalID,
	}

	// The post is live from here on, so bookkeeping errors are logged and the
	// entry is still completed to keep it from being published twice.
	if err := d.posts.MarkPublished(ctx, post.ID, externalID, now); err != nil && !errors.Is(err, repository.ErrNoRowsAffected) {
		slog.Error("failed to mark post published", "post_id", post.ID, "external_id", externalID, "error", err)
		result.Error = fmt.Sprintf("published but failed to update post: %v", err)
	}
	if err := d.queue.MarkCompleted(ctx, entry.ID); err != nil {
		slog.Error("failed to mark queue entry completed", "queue_id", entry.ID, "error", err)
	}
	if err := d.queue.Remove(ctx, post.ID); err != nil {
		slog.Error("failed to remove queue entry", "queue_id", entry.ID, "error", err)
	}
	if err := d.analytics.Seed(ctx, post.ID, post.UserID, externalID); err != nil {
		slog.Error("failed to seed analytics", "post_id", post.ID, "error", err)
	}

	return result
}

func (d *Dispatcher) fail(ctx context.Context, now time.Time, entry models.QueueEntry, post *models.Post, cause error) transfer.ProcessResult {
	class := Classify(cause)
	next := d.policy.OnFailure(entry, now, class, cause.Error())

	result := transfer.ProcessResult{
		QueueID: entry.ID,
		PostID:  entry.PostID,
		Status:  next.Status,
		Error:   next.ErrorMessage,
	}

	slog.Warn("publish attempt failed",
		"queue_id", entry.ID,
		"post_id", entry.PostID,
		"class", class.String(),
		"retry_count", next.RetryCount,
		"terminal", next.Terminal(),
		"error", cause,
	)

	if !next.Terminal() {
		if err := d.queue.MarkFailedRetryable(ctx, entry.ID, next.ScheduledFor, next.RetryCount, next.ErrorMessage); err != nil {
			slog.Error("failed to reschedule queue entry", "queue_id", entry.ID, "error", err)
		}
		if post != nil {
			if err := d.posts.MarkRetrying(ctx, post.ID, next.RetryCount, next.ErrorMessage); err != nil {
				slog.Error("failed to record retry on post", "post_id", post.ID, "error", err)
			}
		}
		return result
	}

	if err := d.queue.MarkFailedTerminal(ctx, entry.ID, next.ErrorMessage); err != nil {
		slog.Error("failed to mark queue entry failed", "queue_id", entry.ID, "error", err)
	}
	if post != nil {
		if err := d.posts.MarkFailed(ctx, post.ID, next.ErrorMessage); err != nil {
			slog.Error("failed to mark post failed", "post_id", post.ID, "error", err)
		}
	}
	return result
}

// ContentFromPost converts a stored post into the variant the publisher sends.
func ContentFromPost(post *models.Post) (threads.Content, error) {
	items := make([]threads.CarouselItem, 0, len(post.Children))
	for _, child := range post.Children {
		items = append(items, threads.CarouselItem{Kind: child.MediaType, URL: child.URL})
	}
	return threads.BuildContent(post.MediaType, post.Content, post.MediaURLs, post.LinkAttachment, items)
}
