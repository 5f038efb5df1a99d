package models

import "time"

type Post struct {
	ID             string     `db:"id" json:"id"`
	UserID         int64      `db:"user_id" json:"user_id"`
	Content        string     `db:"content" json:"content"`
	ScheduledAt    time.Time  `db:"scheduled_at" json:"scheduled_at"`
	IsApproved     bool       `db:"is_approved" json:"is_approved"`
	IsManual       bool       `db:"is_manual" json:"is_manual"`
	Status         string     `db:"status" json:"status"`
	PostedAt       *time.Time `db:"posted_at" json:"posted_at,omitempty"`
	ErrorMessage   *string    `db:"error_message" json:"error_message,omitempty"`
	ExternalPostID *string    `db:"external_post_id" json:"external_post_id,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

const (
	PostStatusUnapproved = "unapproved"
	PostStatusScheduled  = "scheduled"
	PostStatusPosted     = "posted"
	PostStatusFailed     = "failed"
)

type MediaAsset struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	FileName  string    `db:"file_name" json:"file_name"`
	FileType  string    `db:"file_type" json:"file_type"`
	FileURL   string    `db:"file_url" json:"file_url"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type PostMedia struct {
	PostID       string    `db:"post_id" json:"post_id"`
	AssetID      int64     `db:"asset_id" json:"asset_id"`
	DisplayOrder int       `db:"display_order" json:"display_order"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
