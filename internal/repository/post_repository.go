package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/postpilothq/postpilot/internal/models"
)

const postColumns = `id, user_id, content, scheduled_at, is_approved, is_manual, status, posted_at, error_message, external_post_id, created_at, updated_at`

// PostRepository persists posts. Every state transition is a single
// conditional UPDATE guarded on the current status, so concurrent transitions
// on the same row cannot both succeed; a transition that matched no row
// returns (nil, nil).
type PostRepository interface {
	Create(ctx context.Context, tx *sql.Tx, post *models.Post) error
	GetByID(ctx context.Context, id string) (*models.Post, error)
	ListByUserID(ctx context.Context, userID int64) ([]*models.Post, error)
	Approve(ctx context.Context, id string) (*models.Post, error)
	ClearFailure(ctx context.Context, id string) (*models.Post, error)
	SetGeneratedContent(ctx context.Context, id, content string) (*models.Post, error)
	UpdateEditable(ctx context.Context, id, content string, scheduledAt time.Time, isApproved bool) (*models.Post, error)
	MarkPosted(ctx context.Context, id, externalPostID string, postedAt time.Time) (*models.Post, error)
	MarkFailed(ctx context.Context, id, errorMessage string) (*models.Post, error)
	Remove(ctx context.Context, id string) error
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

func scanPost(row *sql.Row) (*models.Post, error) {
	var post models.Post
	err := row.Scan(&post.ID, &post.UserID, &post.Content, &post.ScheduledAt,
		&post.IsApproved, &post.IsManual, &post.Status, &post.PostedAt,
		&post.ErrorMessage, &post.ExternalPostID, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) Create(ctx context.Context, tx *sql.Tx, post *models.Post) error {
	query := `
		INSERT INTO posts (id, user_id, content, scheduled_at, is_approved, is_manual, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	var err error
	if tx != nil {
		err = tx.QueryRowContext(ctx, query, post.ID, post.UserID, post.Content,
			post.ScheduledAt, post.IsApproved, post.IsManual, post.Status).Scan(&post.CreatedAt, &post.UpdatedAt)
	} else {
		err = r.db.QueryRowContext(ctx, query, post.ID, post.UserID, post.Content,
			post.ScheduledAt, post.IsApproved, post.IsManual, post.Status).Scan(&post.CreatedAt, &post.UpdatedAt)
	}
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	return scanPost(r.db.QueryRowContext(ctx, query, id))
}

func (r *postRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE user_id = $1 ORDER BY scheduled_at`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		var post models.Post
		err := rows.Scan(&post.ID, &post.UserID, &post.Content, &post.ScheduledAt,
			&post.IsApproved, &post.IsManual, &post.Status, &post.PostedAt,
			&post.ErrorMessage, &post.ExternalPostID, &post.CreatedAt, &post.UpdatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, &post)
	}
	return posts, rows.Err()
}

func (r *postRepository) Approve(ctx context.Context, id string) (*models.Post, error) {
	query := `
		UPDATE posts
		SET is_approved = true, status = $2, updated_at = now()
		WHERE id = $1 AND status = $3
		RETURNING ` + postColumns
	return scanPost(r.db.QueryRowContext(ctx, query, id, models.PostStatusScheduled, models.PostStatusUnapproved))
}

func (r *postRepository) ClearFailure(ctx context.Context, id string) (*models.Post, error) {
	query := `
		UPDATE posts
		SET status = $2, error_message = NULL, updated_at = now()
		WHERE id = $1 AND status = $3
		RETURNING ` + postColumns
	return scanPost(r.db.QueryRowContext(ctx, query, id, models.PostStatusScheduled, models.PostStatusFailed))
}

func (r *postRepository) SetGeneratedContent(ctx context.Context, id, content string) (*models.Post, error) {
	query := `
		UPDATE posts
		SET content = $2, is_approved = false, status = $3, error_message = NULL, updated_at = now()
		WHERE id = $1 AND status <> $4
		RETURNING ` + postColumns
	return scanPost(r.db.QueryRowContext(ctx, query, id, content, models.PostStatusUnapproved, models.PostStatusPosted))
}

// UpdateEditable keeps status in step with the approval flag: approving an
// unapproved post schedules it, revoking approval on a scheduled post sends
// it back to review. Failed posts keep their status.
func (r *postRepository) UpdateEditable(ctx context.Context, id, content string, scheduledAt time.Time, isApproved bool) (*models.Post, error) {
	query := `
		UPDATE posts
		SET content = $2, scheduled_at = $3, is_approved = $4,
			status = CASE
				WHEN $4 AND status = $6 THEN $7
				WHEN NOT $4 AND status = $7 THEN $6
				ELSE status
			END,
			updated_at = now()
		WHERE id = $1 AND status <> $5
		RETURNING ` + postColumns
	return scanPost(r.db.QueryRowContext(ctx, query, id, content, scheduledAt, isApproved,
		models.PostStatusPosted, models.PostStatusUnapproved, models.PostStatusScheduled))
}

func (r *postRepository) MarkPosted(ctx context.Context, id, externalPostID string, postedAt time.Time) (*models.Post, error) {
	query := `
		UPDATE posts
		SET status = $2, posted_at = $3, external_post_id = $4, error_message = NULL, updated_at = now()
		WHERE id = $1 AND status = $5
		RETURNING ` + postColumns
	return scanPost(r.db.QueryRowContext(ctx, query, id, models.PostStatusPosted, postedAt, externalPostID, models.PostStatusScheduled))
}

func (r *postRepository) MarkFailed(ctx context.Context, id, errorMessage string) (*models.Post, error) {
	query := `
		UPDATE posts
		SET status = $2, error_message = $3, updated_at = now()
		WHERE id = $1 AND status = $4
		RETURNING ` + postColumns
	return scanPost(r.db.QueryRowContext(ctx, query, id, models.PostStatusFailed, errorMessage, models.PostStatusScheduled))
}

func (r *postRepository) Remove(ctx context.Context, id string) error {
	query := `DELETE FROM posts WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
