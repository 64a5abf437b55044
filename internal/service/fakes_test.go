package service

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/AureliusIvan/threads-scheduler/internal/models"
	"github.com/AureliusIvan/threads-scheduler/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// txTestDriver only opens transactions and counts how they end.
type txTestDriver struct{}

type txTestConn struct{}

type txTestTx struct{}

var txCounts struct {
	sync.Mutex
	commits   int
	rollbacks int
}

func (txTestDriver) Open(string) (driver.Conn, error) { return txTestConn{}, nil }

func (txTestConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not implemented") }
func (txTestConn) Close() error                        { return nil }
func (txTestConn) Begin() (driver.Tx, error)           { return txTestTx{}, nil }

func (txTestTx) Commit() error {
	txCounts.Lock()
	defer txCounts.Unlock()
	txCounts.commits++
	return nil
}

func (txTestTx) Rollback() error {
	txCounts.Lock()
	defer txCounts.Unlock()
	txCounts.rollbacks++
	return nil
}

func init() {
	sql.Register("serviceTxDummy", txTestDriver{})
}

func openTxDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("serviceTxDummy", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	txCounts.Lock()
	txCounts.commits, txCounts.rollbacks = 0, 0
	txCounts.Unlock()
	return db
}

func txOutcome() (commits, rollbacks int) {
	txCounts.Lock()
	defer txCounts.Unlock()
	return txCounts.commits, txCounts.rollbacks
}

type memPostRepo struct {
	posts     map[uuid.UUID]*models.Post
	createErr error
}

func newMemPostRepo() *memPostRepo {
	return &memPostRepo{posts: make(map[uuid.UUID]*models.Post)}
}

func (r *memPostRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Post, error) {
	p, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *memPostRepo) Create(_ context.Context, _ *sql.Tx, post *models.Post) (uuid.UUID, error) {
	if r.createErr != nil {
		return uuid.Nil, r.createErr
	}
	cp := *post
	cp.ID = uuid.New()
	r.posts[cp.ID] = &cp
	return cp.ID, nil
}

func (r *memPostRepo) Update(_ context.Context, _ *sql.Tx, post *models.Post) error {
	p, ok := r.posts[post.ID]
	if !ok || p.Status == models.PostStatusPublished {
		return repository.ErrNoRowsAffected
	}
	cp := *post
	cp.RetryCount = 0
	cp.ErrorMessage = ""
	r.posts[post.ID] = &cp
	return nil
}

func (r *memPostRepo) GetByUserID(_ context.Context, userID uuid.UUID, status string) ([]*models.Post, error) {
	var posts []*models.Post
	for _, p := range r.posts {
		if p.UserID == userID && (status == "" || p.Status == status) {
			cp := *p
			posts = append(posts, &cp)
		}
	}
	return posts, nil
}

func (r *memPostRepo) CheckByUserID(_ context.Context, postID, userID uuid.UUID) (bool, error) {
	p, ok := r.posts[postID]
	return ok && p.UserID == userID, nil
}

func (r *memPostRepo) MarkPublished(_ context.Context, postID uuid.UUID, externalID string, at time.Time) error {
	p, ok := r.posts[postID]
	if !ok || p.Status == models.PostStatusPublished {
		return repository.ErrNoRowsAffected
	}
	p.Status = models.PostStatusPublished
	p.ExternalPostID = externalID
	p.PublishedAt = &at
	return nil
}

func (r *memPostRepo) MarkRetrying(_ context.Context, postID uuid.UUID, retryCount int, msg string) error {
	if p, ok := r.posts[postID]; ok {
		p.RetryCount = retryCount
		p.ErrorMessage = msg
	}
	return nil
}

func (r *memPostRepo) MarkFailed(_ context.Context, postID uuid.UUID, msg string) error {
	if p, ok := r.posts[postID]; ok {
		p.Status = models.PostStatusFailed
		p.ErrorMessage = msg
	}
	return nil
}

func (r *memPostRepo) Remove(_ context.Context, _ *sql.Tx, id uuid.UUID) error {
	delete(r.posts, id)
	return nil
}

type memQueueRepo struct {
	entries   map[uuid.UUID]*models.QueueEntry // by post id
	upsertErr error
}

func newMemQueueRepo() *memQueueRepo {
	return &memQueueRepo{entries: make(map[uuid.UUID]*models.QueueEntry)}
}

func (r *memQueueRepo) Upsert(_ context.Context, _ *sql.Tx, entry *models.QueueEntry) (uuid.UUID, error) {
	if r.upsertErr != nil {
		return uuid.Nil, r.upsertErr
	}
	cp := *entry
	if existing, ok := r.entries[entry.PostID]; ok {
		if existing.Status == models.QueueStatusProcessing {
			return uuid.Nil, repository.ErrEntryProcessing
		}
		cp.ID = existing.ID
	} else {
		cp.ID = uuid.New()
	}
	cp.Status = models.QueueStatusPending
	cp.RetryCount = 0
	cp.ErrorMessage = ""
	r.entries[entry.PostID] = &cp
	return cp.ID, nil
}

func (r *memQueueRepo) FetchDue(context.Context, time.Time, int) ([]*models.QueueEntry, error) {
	return nil, errors.New("not used")
}

func (r *memQueueRepo) MarkProcessing(context.Context, uuid.UUID) (bool, error) {
	return false, errors.New("not used")
}

func (r *memQueueRepo) MarkCompleted(context.Context, uuid.UUID) error {
	return errors.New("not used")
}

func (r *memQueueRepo) MarkFailedRetryable(context.Context, uuid.UUID, time.Time, int, string) error {
	return errors.New("not used")
}

func (r *memQueueRepo) MarkFailedTerminal(context.Context, uuid.UUID, string) error {
	return errors.New("not used")
}

func (r *memQueueRepo) Remove(_ context.Context, postID uuid.UUID) error {
	delete(r.entries, postID)
	return nil
}

func (r *memQueueRepo) Delete(_ context.Context, _ *sql.Tx, postID uuid.UUID) error {
	if e, ok := r.entries[postID]; ok && e.Status == models.QueueStatusProcessing {
		return repository.ErrEntryProcessing
	}
	delete(r.entries, postID)
	return nil
}

func (r *memQueueRepo) Touch(context.Context, uuid.UUID) error {
	return errors.New("not used")
}

func (r *memQueueRepo) ReclaimStuck(context.Context, time.Time) (int, []uuid.UUID, error) {
	return 0, nil, errors.New("not used")
}

type memAccountRepo struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*models.ThreadsAccount
}

func newMemAccountRepo(accounts ...*models.ThreadsAccount) *memAccountRepo {
	r := &memAccountRepo{accounts: make(map[uuid.UUID]*models.ThreadsAccount)}
	for _, a := range accounts {
		r.accounts[a.UserID] = a
	}
	return r
}

func (r *memAccountRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*models.ThreadsAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[userID]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *memAccountRepo) ListByTimeInterval(_ context.Context, from, to time.Time) ([]*models.ThreadsAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ThreadsAccount
	for _, a := range r.accounts {
		if !a.TokenExpiresAt.After(to) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memAccountRepo) SetToken(_ context.Context, userID uuid.UUID, oldAccessToken string, acc *models.ThreadsAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[userID]
	if !ok || a.AccessToken != oldAccessToken {
		return errors.New("no rows affected")
	}
	a.AccessToken = acc.AccessToken
	a.TokenExpiresAt = acc.TokenExpiresAt
	return nil
}

// memAnalyticsRepo orders ListForSync like the SQL does: never attempted
// first, then by the oldest attempt, then by insertion.
type memAnalyticsRepo struct {
	records   map[uuid.UUID]*models.PostAnalytics
	order     []uuid.UUID
	attempted map[uuid.UUID]int
	clock     int
	updated   []uuid.UUID
	updateErr error
}

func newMemAnalyticsRepo(records ...*models.PostAnalytics) *memAnalyticsRepo {
	r := &memAnalyticsRepo{
		records:   make(map[uuid.UUID]*models.PostAnalytics),
		attempted: make(map[uuid.UUID]int),
	}
	for _, a := range records {
		r.records[a.PostID] = a
		r.order = append(r.order, a.PostID)
	}
	return r
}

func (r *memAnalyticsRepo) Seed(_ context.Context, postID, userID uuid.UUID, externalID string) error {
	if _, ok := r.records[postID]; !ok {
		r.records[postID] = &models.PostAnalytics{PostID: postID, UserID: userID, ExternalPostID: externalID}
		r.order = append(r.order, postID)
	}
	return nil
}

func (r *memAnalyticsRepo) GetByPostID(_ context.Context, postID uuid.UUID) (*models.PostAnalytics, error) {
	a, ok := r.records[postID]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *memAnalyticsRepo) ListForSync(_ context.Context, limit int) ([]*models.PostAnalytics, error) {
	ids := append([]uuid.UUID(nil), r.order...)
	sort.SliceStable(ids, func(i, j int) bool {
		return r.attempted[ids[i]] < r.attempted[ids[j]]
	})

	var out []*models.PostAnalytics
	for _, id := range ids {
		if len(out) == limit {
			break
		}
		cp := *r.records[id]
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memAnalyticsRepo) UpdateMetrics(_ context.Context, a *models.PostAnalytics) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	cp := *a
	r.records[a.PostID] = &cp
	r.updated = append(r.updated, a.PostID)
	r.touch(a.PostID)
	return nil
}

func (r *memAnalyticsRepo) MarkSyncAttempted(_ context.Context, postID uuid.UUID) error {
	r.touch(postID)
	return nil
}

func (r *memAnalyticsRepo) touch(postID uuid.UUID) {
	r.clock++
	r.attempted[postID] = r.clock
}
