package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/AureliusIvan/threads-scheduler/internal/models"
	"github.com/AureliusIvan/threads-scheduler/internal/repository"
	"github.com/AureliusIvan/threads-scheduler/internal/threads"
	"github.com/google/uuid"
)

// memoryStore keeps posts, queue entries and analytics the way the Postgres
// repositories do, including the status guards on every update.
type memoryStore struct {
	mu        sync.Mutex
	entries   map[uuid.UUID]*models.QueueEntry
	posts     map[uuid.UUID]*models.Post
	analytics map[uuid.UUID]*models.PostAnalytics
	touches   map[uuid.UUID]int
	seq       int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		entries:   make(map[uuid.UUID]*models.QueueEntry),
		posts:     make(map[uuid.UUID]*models.Post),
		analytics: make(map[uuid.UUID]*models.PostAnalytics),
		touches:   make(map[uuid.UUID]int),
	}
}

// schedule adds a scheduled text post and its pending queue entry.
func (s *memoryStore) schedule(text string, at time.Time) *models.QueueEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	created := time.Date(2026, 1, 1, 0, 0, s.seq, 0, time.UTC)

	post := &models.Post{
		ID:           uuid.New(),
		UserID:       uuid.New(),
		Content:      text,
		MediaType:    models.MediaTypeText,
		MediaURLs:    []string{},
		Status:       models.PostStatusScheduled,
		ScheduledFor: &at,
		CreatedAt:    created,
	}
	s.posts[post.ID] = post

	entry := &models.QueueEntry{
		ID:           uuid.New(),
		PostID:       post.ID,
		UserID:       post.UserID,
		ScheduledFor: at,
		MaxRetries:   models.DefaultMaxRetries,
		Status:       models.QueueStatusPending,
		CreatedAt:    created,
	}
	s.entries[entry.ID] = entry

	cp := *entry
	return &cp
}

func (s *memoryStore) entry(id uuid.UUID) *models.QueueEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil
	}
	cp := *e
	return &cp
}

func (s *memoryStore) post(id uuid.UUID) *models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

func (s *memoryStore) analyticsFor(postID uuid.UUID) *models.PostAnalytics {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.analytics[postID]
	if !ok {
		return nil
	}
	cp := *a
	return &cp
}

func (s *memoryStore) FetchDue(_ context.Context, now time.Time, limit int) ([]*models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*models.QueueEntry
	for _, e := range s.entries {
		if e.Status == models.QueueStatusPending && !e.ScheduledFor.After(now) {
			cp := *e
			due = append(due, &cp)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].ScheduledFor.Equal(due[j].ScheduledFor) {
			return due[i].ScheduledFor.Before(due[j].ScheduledFor)
		}
		return due[i].CreatedAt.Before(due[j].CreatedAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *memoryStore) MarkProcessing(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || e.Status != models.QueueStatusPending {
		return false, nil
	}
	e.Status = models.QueueStatusProcessing
	return true, nil
}

func (s *memoryStore) processing(id uuid.UUID) (*models.QueueEntry, error) {
	e, ok := s.entries[id]
	if !ok || e.Status != models.QueueStatusProcessing {
		return nil, repository.ErrNoRowsAffected
	}
	return e, nil
}

func (s *memoryStore) MarkCompleted(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.processing(id)
	if err != nil {
		return err
	}
	e.Status = models.QueueStatusCompleted
	e.ErrorMessage = ""
	return nil
}

func (s *memoryStore) MarkFailedRetryable(_ context.Context, id uuid.UUID, next time.Time, retryCount int, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.processing(id)
	if err != nil {
		return err
	}
	e.Status = models.QueueStatusPending
	e.ScheduledFor = next
	e.RetryCount = retryCount
	e.ErrorMessage = msg
	return nil
}

func (s *memoryStore) MarkFailedTerminal(_ context.Context, id uuid.UUID, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.processing(id)
	if err != nil {
		return err
	}
	e.Status = models.QueueStatusFailed
	e.ErrorMessage = msg
	return nil
}

func (s *memoryStore) Touch(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.processing(id); err != nil {
		return err
	}
	s.touches[id]++
	return nil
}

func (s *memoryStore) touchCount(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touches[id]
}

func (s *memoryStore) Remove(_ context.Context, postID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.entries {
		if e.PostID == postID {
			delete(s.entries, id)
		}
	}
	return nil
}

func (s *memoryStore) GetByID(_ context.Context, id uuid.UUID) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *memoryStore) MarkPublished(_ context.Context, postID uuid.UUID, externalID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[postID]
	if !ok || p.Status == models.PostStatusPublished {
		return repository.ErrNoRowsAffected
	}
	p.Status = models.PostStatusPublished
	p.ExternalPostID = externalID
	p.PublishedAt = &at
	p.ErrorMessage = ""
	return nil
}

func (s *memoryStore) MarkRetrying(_ context.Context, postID uuid.UUID, retryCount int, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.posts[postID]; ok {
		p.RetryCount = retryCount
		p.ErrorMessage = msg
	}
	return nil
}

func (s *memoryStore) MarkFailed(_ context.Context, postID uuid.UUID, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.posts[postID]; ok {
		p.Status = models.PostStatusFailed
		p.ErrorMessage = msg
	}
	return nil
}

func (s *memoryStore) Seed(_ context.Context, postID, userID uuid.UUID, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.analytics[postID]; ok {
		return nil
	}
	s.analytics[postID] = &models.PostAnalytics{
		ID:             uuid.New(),
		PostID:         postID,
		UserID:         userID,
		ExternalPostID: externalID,
	}
	return nil
}

type staticTokens struct {
	err error
}

func (t staticTokens) ResolveCredentials(_ context.Context, _ uuid.UUID, _ time.Time) (threads.Credentials, error) {
	if t.err != nil {
		return threads.Credentials{}, t.err
	}
	return threads.Credentials{UserID: "1789"}, nil
}

// scriptedPublisher returns the scripted results in order and then keeps
// returning the last one.
type scriptedPublisher struct {
	mu      sync.Mutex
	results []publishResult
	calls   []threads.Content
}

type publishResult struct {
	id  string
	err error
}

func (p *scriptedPublisher) Publish(_ context.Context, _ threads.Credentials, content threads.Content) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, content)
	if len(p.results) == 0 {
		return "ext-" + content.(threads.TextPost).Text, nil
	}
	r := p.results[0]
	if len(p.results) > 1 {
		p.results = p.results[1:]
	}
	return r.id, r.err
}

func (p *scriptedPublisher) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *scriptedPublisher) texts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	texts := make([]string, 0, len(p.calls))
	for _, c := range p.calls {
		texts = append(texts, c.(threads.TextPost).Text)
	}
	return texts
}

// funcPublisher lets a test decide per content.
type funcPublisher func(content threads.Content) (string, error)

func (f funcPublisher) Publish(_ context.Context, _ threads.Credentials, content threads.Content) (string, error) {
	return f(content)
}
