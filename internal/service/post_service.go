package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AureliusIvan/threads-scheduler/internal/models"
	"github.com/AureliusIvan/threads-scheduler/internal/queue"
	"github.com/AureliusIvan/threads-scheduler/internal/repository"
	"github.com/AureliusIvan/threads-scheduler/internal/transfer"
	"github.com/google/uuid"
)

var (
	ErrPostNotFound     = errors.New("post doesn't exist")
	ErrPostPublished    = errors.New("published posts cannot be changed")
	ErrScheduleInPast   = errors.New("scheduled_for must be in the future")
	ErrInvalidPostInput = errors.New("post data is missing")
	ErrPostPublishing   = errors.New("post is being published, try again shortly")
)

type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

type PostService interface {
	CreatePost(ctx context.Context, userID uuid.UUID, pc *transfer.PostCreation) (*models.Post, error)
	UpdatePost(ctx context.Context, userID, postID uuid.UUID, pc *transfer.PostCreation) (*models.Post, error)
	List(ctx context.Context, userID uuid.UUID, status string) ([]*models.Post, error)
	PostInfo(ctx context.Context, postID, userID uuid.UUID) (*models.Post, error)
	Remove(ctx context.Context, userID, postID uuid.UUID) error
}

type postService struct {
	db  TxBeginner
	pr  repository.PostRepository
	qr  repository.QueueRepository
	now func() time.Time
}

func NewPostService(db TxBeginner, pr repository.PostRepository, qr repository.QueueRepository, now func() time.Time) PostService {
	if now == nil {
		now = time.Now
	}
	return &postService{
		db:  db,
		pr:  pr,
		qr:  qr,
		now: now,
	}
}

// buildPost validates the input and returns the post it describes. A post with
// scheduled_for is scheduled, otherwise it is a draft.
func (s *postService) buildPost(userID uuid.UUID, pc *transfer.PostCreation) (*models.Post, error) {
	if pc == nil {
		slog.Info(ErrInvalidPostInput.Error())
		return nil, ErrInvalidPostInput
	}

	post := &models.Post{
		UserID:         userID,
		Content:        pc.Content,
		MediaType:      pc.MediaType,
		MediaURLs:      pc.MediaURLs,
		LinkAttachment: pc.LinkAttachment,
		Children:       pc.Children,
		Status:         models.PostStatusDraft,
	}
	if post.MediaType == "" {
		post.MediaType = models.MediaTypeText
	}
	if post.MediaURLs == nil {
		post.MediaURLs = []string{}
	}
	if post.MediaType == models.MediaTypeCarousel && len(post.MediaURLs) == 0 {
		for _, child := range post.Children {
			post.MediaURLs = append(post.MediaURLs, child.URL)
		}
	}

	if _, err := queue.ContentFromPost(post); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	if pc.ScheduledFor != nil {
		scheduledFor := pc.ScheduledFor.UTC()
		if !scheduledFor.After(s.now()) {
			slog.Info(ErrScheduleInPast.Error())
			return nil, ErrScheduleInPast
		}
		post.Status = models.PostStatusScheduled
		post.ScheduledFor = &scheduledFor
	}

	return post, nil
}

func (s *postService) CreatePost(ctx context.Context, userID uuid.UUID, pc *transfer.PostCreation) (post *models.Post, err error) {
	post, err = s.buildPost(userID, pc)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		}
	}()

	postID, err := s.pr.Create(ctx, tx, post)
	if err != nil {
		return nil, fmt.Errorf("error creating post: %w", err)
	}
	post.ID = postID

	if err = s.syncQueue(ctx, tx, post); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return post, nil
}

// UpdatePost edits a draft, scheduled or failed post. Setting scheduled_for
// (re)creates its queue entry with a fresh retry budget; clearing it turns the
// post back into a draft and drops the entry.
func (s *postService) UpdatePost(ctx context.Context, userID, postID uuid.UUID, pc *transfer.PostCreation) (post *models.Post, err error) {
	existing, err := s.PostInfo(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if existing.Status == models.PostStatusPublished {
		slog.Info(ErrPostPublished.Error())
		return nil, ErrPostPublished
	}

	post, err = s.buildPost(userID, pc)
	if err != nil {
		return nil, err
	}
	post.ID = postID
	post.CreatedAt = existing.CreatedAt

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		}
	}()

	if err = s.pr.Update(ctx, tx, post); err != nil {
		if errors.Is(err, repository.ErrNoRowsAffected) {
			return nil, ErrPostPublished
		}
		return nil, fmt.Errorf("error updating post: %w", err)
	}

	if err = s.syncQueue(ctx, tx, post); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return post, nil
}

// syncQueue makes the queue entry match the post. It refuses to touch an entry
// the dispatcher has claimed.
func (s *postService) syncQueue(ctx context.Context, tx *sql.Tx, post *models.Post) error {
	if post.Status != models.PostStatusScheduled {
		if err := s.qr.Delete(ctx, tx, post.ID); err != nil {
			if errors.Is(err, repository.ErrEntryProcessing) {
				return ErrPostPublishing
			}
			return fmt.Errorf("error removing queue entry: %w", err)
		}
		return nil
	}

	entry := models.QueueEntry{
		PostID:       post.ID,
		UserID:       post.UserID,
		ScheduledFor: *post.ScheduledFor,
		MaxRetries:   models.DefaultMaxRetries,
	}
	if _, err := s.qr.Upsert(ctx, tx, &entry); err != nil {
		if errors.Is(err, repository.ErrEntryProcessing) {
			return ErrPostPublishing
		}
		return fmt.Errorf("error scheduling post: %w", err)
	}
	return nil
}

func (s *postService) PostInfo(ctx context.Context, postID, userID uuid.UUID) (*models.Post, error) {
	if userID == uuid.Nil {
		err := errors.New("User is not valid")
		slog.Info(err.Error())
		return nil, err
	}

	if postID == uuid.Nil {
		slog.Info(ErrPostNotFound.Error())
		return nil, ErrPostNotFound
	}

	isValid, err := s.pr.CheckByUserID(ctx, postID, userID)
	if err != nil {
		return nil, err
	}

	if !isValid {
		slog.Info(ErrPostNotFound.Error())
		return nil, ErrPostNotFound
	}

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("error getting post info: %w", err)
	}
	if post == nil {
		return nil, ErrPostNotFound
	}

	return post, nil
}

func (s *postService) List(ctx context.Context, userID uuid.UUID, status string) ([]*models.Post, error) {
	posts, err := s.pr.GetByUserID(ctx, userID, status)
	if err != nil {
		return nil, fmt.Errorf("error listing posts: %w", err)
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	return posts, nil
}

// Remove deletes a post; its queue entry and analytics go with it. A post
// whose entry is being published cannot be removed until the attempt ends.
func (s *postService) Remove(ctx context.Context, userID, postID uuid.UUID) (err error) {
	if _, err = s.PostInfo(ctx, postID, userID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		}
	}()

	if err = s.qr.Delete(ctx, tx, postID); err != nil {
		if errors.Is(err, repository.ErrEntryProcessing) {
			return ErrPostPublishing
		}
		return fmt.Errorf("error removing queue entry: %w", err)
	}

	if err = s.pr.Remove(ctx, tx, postID); err != nil {
		return fmt.Errorf("error removing post: %w", err)
	}

	return tx.Commit()
}
