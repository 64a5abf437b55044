package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AureliusIvan/threads-scheduler/internal/models"
	"github.com/AureliusIvan/threads-scheduler/internal/repository"
	"github.com/AureliusIvan/threads-scheduler/internal/threads"
	"github.com/google/uuid"
)

var ErrAnalyticsNotFound = errors.New("post has no analytics yet")

type InsightsFetcher interface {
	GetInsights(ctx context.Context, creds threads.Credentials, mediaID string) (*threads.Insights, error)
}

type AnalyticsService interface {
	GetForPost(ctx context.Context, userID, postID uuid.UUID) (*models.PostAnalytics, error)
	SyncInsights(ctx context.Context, limit int) (int, error)
}

type analyticsService struct {
	ar  repository.AnalyticsRepository
	ps  PostService
	ts  TokenService
	ins InsightsFetcher
	now func() time.Time
}

func NewAnalyticsService(
	ar repository.AnalyticsRepository,
	ps PostService,
	ts TokenService,
	ins InsightsFetcher,
	now func() time.Time) AnalyticsService {
	if now == nil {
		now = time.Now
	}
	return &analyticsService{
		ar:  ar,
		ps:  ps,
		ts:  ts,
		ins: ins,
		now: now,
	}
}

func (s *analyticsService) GetForPost(ctx context.Context, userID, postID uuid.UUID) (*models.PostAnalytics, error) {
	if _, err := s.ps.PostInfo(ctx, postID, userID); err != nil {
		return nil, err
	}

	a, err := s.ar.GetByPostID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("error getting analytics: %w", err)
	}
	if a == nil {
		return nil, ErrAnalyticsNotFound
	}
	return a, nil
}

// SyncInsights refreshes up to limit analytics records, least recently synced
// first. A record that cannot be refreshed is skipped. It returns how many
// were updated.
func (s *analyticsService) SyncInsights(ctx context.Context, limit int) (int, error) {
	records, err := s.ar.ListForSync(ctx, limit)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, a := range records {
		if ctx.Err() != nil {
			break
		}

		creds, err := s.ts.ResolveCredentials(ctx, a.UserID, s.now())
		if err != nil {
			slog.Info("skipping insights sync", "post_id", a.PostID, "error", err)
			s.markAttempted(ctx, a)
			continue
		}

		insights, err := s.ins.GetInsights(ctx, creds, a.ExternalPostID)
		if err != nil {
			slog.Info("unable to fetch insights", "post_id", a.PostID, "error", err)
			s.markAttempted(ctx, a)
			continue
		}

		a.Views = insights.Views
		a.Likes = insights.Likes
		a.Replies = insights.Replies
		a.Reposts = insights.Reposts
		a.Quotes = insights.Quotes
		a.Shares = insights.Shares

		if err := s.ar.UpdateMetrics(ctx, a); err != nil {
			slog.Error("unable to save insights", "post_id", a.PostID, "error", err)
			s.markAttempted(ctx, a)
			continue
		}
		updated++
	}

	return updated, nil
}

// markAttempted moves a record that failed to sync to the back of the line.
func (s *analyticsService) markAttempted(ctx context.Context, a *models.PostAnalytics) {
	if err := s.ar.MarkSyncAttempted(ctx, a.PostID); err != nil {
		slog.Error("unable to record insights sync attempt", "post_id", a.PostID, "error", err)
	}
}
