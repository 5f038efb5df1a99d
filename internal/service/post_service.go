package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/postpilothq/postpilot/internal/models"
	"github.com/postpilothq/postpilot/internal/repository"
	"github.com/postpilothq/postpilot/internal/transfer"
	"github.com/postpilothq/postpilot/pkg/apperr"
)

const scheduleLayout = "2006-01-02T15:04"

// PostService drives a post through its lifecycle: Unapproved, Scheduled,
// Posted, Failed. Every user-facing operation checks ownership before any
// state precondition, and every transition is committed as one conditional
// update so concurrent callers cannot both win.
type PostService interface {
	CreateManualPost(ctx context.Context, userID int64, pc *transfer.ManualPostCreation) (*models.Post, error)
	CreateGeneratedPosts(ctx context.Context, userID int64, req *transfer.GenerationRequest) ([]*models.Post, error)
	Approve(ctx context.Context, userID int64, postID string) (*models.Post, error)
	Retry(ctx context.Context, userID int64, postID string) (*models.Post, error)
	Regenerate(ctx context.Context, userID int64, postID string) (*models.Post, error)
	Edit(ctx context.Context, userID int64, postID string, edit *transfer.PostEdit) (*models.Post, error)
	List(ctx context.Context, userID int64) ([]*models.Post, error)
	PostInfo(ctx context.Context, userID int64, postID string) (*models.Post, error)
	Remove(ctx context.Context, userID int64, postID string) error

	// Publish outcomes are reported by the queue worker relaying the
	// Publisher result; they act on behalf of the system, not a user.
	ReportPublishSuccess(ctx context.Context, postID, externalPostID string) (*models.Post, error)
	ReportPublishFailure(ctx context.Context, postID, message string) (*models.Post, error)
}

type postService struct {
	db  *sql.DB
	pr  repository.PostRepository
	ma  repository.MediaAssetRepository
	pm  repository.PostMediaRepository
	gen ContentGenerator
	now func() time.Time
}

func NewPostService(
	db *sql.DB,
	pr repository.PostRepository,
	ma repository.MediaAssetRepository,
	pm repository.PostMediaRepository,
	gen ContentGenerator) PostService {
	return &postService{
		db:  db,
		pr:  pr,
		ma:  ma,
		pm:  pm,
		gen: gen,
		now: time.Now,
	}
}

func validateContent(content string) error {
	n := utf8.RuneCountInString(content)
	if n == 0 {
		return apperr.Validation("content cannot be empty")
	}
	if n > maxPostLength {
		return apperr.Validation("content exceeds %d characters", maxPostLength)
	}
	return nil
}

func (s *postService) parseScheduledAt(value string) (time.Time, error) {
	t, err := time.Parse(scheduleLayout, value)
	if err != nil {
		return time.Time{}, apperr.Validation("invalid scheduled time format")
	}
	if t.Before(s.now()) {
		return time.Time{}, apperr.Validation("scheduled time cannot be in the past")
	}
	return t, nil
}

// ownedPost loads a post and enforces ownership. A missing id surfaces as
// not-found, a foreign owner as authorization failure; the caller never
// learns a foreign post's state.
func (s *postService) ownedPost(ctx context.Context, userID int64, postID string) (*models.Post, error) {
	if postID == "" {
		return nil, apperr.Validation("post id is required")
	}

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, apperr.NotFound("post not found")
	}
	if post.UserID != userID {
		return nil, apperr.Authorization("post belongs to another user")
	}
	return post, nil
}

func (s *postService) CreateManualPost(ctx context.Context, userID int64, pc *transfer.ManualPostCreation) (*models.Post, error) {
	if pc == nil {
		return nil, apperr.Validation("post creation data is required")
	}
	if err := validateContent(pc.Content); err != nil {
		return nil, err
	}
	scheduledAt, err := s.parseScheduledAt(pc.ScheduledAt)
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		ID:          uuid.NewString(),
		UserID:      userID,
		Content:     pc.Content,
		ScheduledAt: scheduledAt,
		IsApproved:  true,
		IsManual:    true,
		Status:      models.PostStatusScheduled,
	}

	if len(pc.AssetIDs) == 0 {
		if err := s.pr.Create(ctx, nil, post); err != nil {
			return nil, err
		}
		return post, nil
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = s.pr.Create(ctx, tx, post); err != nil {
		return nil, err
	}
	if err = s.attachMedia(ctx, tx, userID, post.ID, pc.AssetIDs); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return post, nil
}

func (s *postService) attachMedia(ctx context.Context, tx *sql.Tx, userID int64, postID string, assetIDs []int64) error {
	for i, assetID := range assetIDs {
		exists, err := s.ma.CheckByUserID(ctx, assetID, userID)
		if err != nil {
			return err
		}
		if !exists {
			return apperr.Validation("media asset %d does not exist", assetID)
		}

		pm := &models.PostMedia{
			PostID:       postID,
			AssetID:      assetID,
			DisplayOrder: i,
		}
		if err := s.pm.Create(ctx, tx, pm); err != nil {
			return err
		}
	}
	return nil
}

func (s *postService) CreateGeneratedPosts(ctx context.Context, userID int64, req *transfer.GenerationRequest) ([]*models.Post, error) {
	if req == nil {
		return nil, apperr.Validation("generation request is required")
	}

	// Generated posts default to a day out; they wait in review anyway.
	scheduledAt := s.now().Add(24 * time.Hour)
	if req.ScheduledAt != "" {
		var err error
		scheduledAt, err = s.parseScheduledAt(req.ScheduledAt)
		if err != nil {
			return nil, err
		}
	}

	contents, err := s.gen.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	posts := make([]*models.Post, 0, len(contents))
	for _, content := range contents {
		post := &models.Post{
			ID:          uuid.NewString(),
			UserID:      userID,
			Content:     content,
			ScheduledAt: scheduledAt,
			IsApproved:  false,
			IsManual:    false,
			Status:      models.PostStatusUnapproved,
		}
		if err := s.pr.Create(ctx, nil, post); err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}

	return posts, nil
}

func (s *postService) Approve(ctx context.Context, userID int64, postID string) (*models.Post, error) {
	if _, err := s.ownedPost(ctx, userID, postID); err != nil {
		return nil, err
	}

	post, err := s.pr.Approve(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, apperr.Conflict("only an unapproved post can be approved")
	}
	return post, nil
}

func (s *postService) Retry(ctx context.Context, userID int64, postID string) (*models.Post, error) {
	if _, err := s.ownedPost(ctx, userID, postID); err != nil {
		return nil, err
	}

	post, err := s.pr.ClearFailure(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, apperr.Conflict("only a failed post can be retried")
	}
	return post, nil
}

func (s *postService) Regenerate(ctx context.Context, userID int64, postID string) (*models.Post, error) {
	current, err := s.ownedPost(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	if current.Status == models.PostStatusPosted {
		return nil, apperr.Conflict("a published post cannot be regenerated")
	}

	// Generate first; a failed generation must leave the post untouched.
	contents, err := s.gen.Generate(ctx, &transfer.GenerationRequest{
		SourceText:   current.Content,
		Style:        string(StyleSummary),
		CustomPrompt: "Rewrite this post with a fresh angle, keeping the same topic.",
		Count:        1,
	})
	if err != nil {
		return nil, err
	}

	post, err := s.pr.SetGeneratedContent(ctx, postID, contents[0])
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, apperr.Conflict("a published post cannot be regenerated")
	}
	return post, nil
}

func (s *postService) Edit(ctx context.Context, userID int64, postID string, edit *transfer.PostEdit) (*models.Post, error) {
	if edit == nil {
		return nil, apperr.Validation("edit data is required")
	}

	current, err := s.ownedPost(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	if current.Status == models.PostStatusPosted {
		return nil, apperr.Conflict("a published post cannot be edited")
	}

	content := current.Content
	if edit.Content != nil {
		content = *edit.Content
	}
	if err := validateContent(content); err != nil {
		return nil, err
	}

	scheduledAt := current.ScheduledAt
	if edit.ScheduledAt != nil {
		scheduledAt, err = s.parseScheduledAt(*edit.ScheduledAt)
		if err != nil {
			return nil, err
		}
	}

	isApproved := current.IsApproved
	if edit.IsApproved != nil {
		isApproved = *edit.IsApproved
	}

	post, err := s.pr.UpdateEditable(ctx, postID, content, scheduledAt, isApproved)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, apperr.Conflict("a published post cannot be edited")
	}
	return post, nil
}

func (s *postService) List(ctx context.Context, userID int64) ([]*models.Post, error) {
	return s.pr.ListByUserID(ctx, userID)
}

func (s *postService) PostInfo(ctx context.Context, userID int64, postID string) (*models.Post, error) {
	return s.ownedPost(ctx, userID, postID)
}

func (s *postService) Remove(ctx context.Context, userID int64, postID string) error {
	if _, err := s.ownedPost(ctx, userID, postID); err != nil {
		return err
	}
	return s.pr.Remove(ctx, postID)
}

func (s *postService) ReportPublishSuccess(ctx context.Context, postID, externalPostID string) (*models.Post, error) {
	post, err := s.pr.MarkPosted(ctx, postID, externalPostID, s.now())
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, apperr.Conflict("post is not scheduled")
	}

	slog.Info("post published", "post_id", postID, "external_post_id", externalPostID)
	return post, nil
}

func (s *postService) ReportPublishFailure(ctx context.Context, postID, message string) (*models.Post, error) {
	post, err := s.pr.MarkFailed(ctx, postID, message)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, apperr.Conflict("post is not scheduled")
	}

	slog.Info("post publish failed", "post_id", postID)
	return post, nil
}
