package job

import (
	"context"
	"log/slog"

	"github.com/AureliusIvan/threads-scheduler/internal/service"
)

const insightsBatchSize = 50

type InsightsSyncJob struct {
	as service.AnalyticsService
}

func NewInsightsSyncJob(as service.AnalyticsService) *InsightsSyncJob {
	return &InsightsSyncJob{as: as}
}

func (j *InsightsSyncJob) SyncInsights() {
	updated, err := j.as.SyncInsights(context.Background(), insightsBatchSize)
	if err != nil {
		slog.Info(err.Error())
		return
	}
	slog.Info("post insights synced", "count", updated)
}
