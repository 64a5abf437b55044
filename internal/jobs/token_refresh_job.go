package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/AureliusIvan/threads-scheduler/internal/models"
	"github.com/AureliusIvan/threads-scheduler/internal/repository"
	"github.com/AureliusIvan/threads-scheduler/internal/service"
)

// Long-lived Threads tokens last 60 days; anything expiring within this window
// is refreshed.
const DefaultRefreshWindow = 7 * 24 * time.Hour

type TokenRefreshJob struct {
	sr          repository.ThreadsAccountRepository
	ts          service.TokenService
	window      time.Duration
	concurrency int
	now         func() time.Time
}

func NewTokenRefreshJob(sr repository.ThreadsAccountRepository, ts service.TokenService, window time.Duration) *TokenRefreshJob {
	if window <= 0 {
		window = DefaultRefreshWindow
	}
	return &TokenRefreshJob{
		sr:          sr,
		ts:          ts,
		window:      window,
		concurrency: 10,
		now:         time.Now,
	}
}

func (c *TokenRefreshJob) RefreshTokens() {
	c.Run(context.Background())
}

// Run refreshes every token that expires within the window. Expired tokens are
// listed too; Threads rejects those and the user has to reconnect.
func (c *TokenRefreshJob) Run(ctx context.Context) int {
	currentTime := c.now()

	accounts, err := c.sr.ListByTimeInterval(ctx, currentTime, currentTime.Add(c.window))
	if err != nil {
		slog.Info(err.Error())
		return 0
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		refreshed int
	)
	semaphore := make(chan struct{}, c.concurrency)

	for _, acc := range accounts {
		if !acc.TokenExpiresAt.After(currentTime) {
			slog.Info("Threads token already expired", "user_id", acc.UserID)
			continue
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.ThreadsAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := c.ts.RefreshThreadsToken(ctx, acc); err != nil {
				slog.Info("Unable to refresh Threads token", "user_id", acc.UserID, "error", err)
				return
			}

			mu.Lock()
			refreshed++
			mu.Unlock()
		}(acc)
	}

	wg.Wait()
	slog.Info("Threads tokens refreshed", "count", refreshed)
	return refreshed
}
