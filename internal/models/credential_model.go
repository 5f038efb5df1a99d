package models

import (
	"database/sql"
	"time"
)

// Credential is the single social-platform identity of a user. Token fields
// hold vault ciphertext blobs; either both are present or both are null.
// Version increments on every token write so a refresh racing a disconnect
// cannot resurrect cleared tokens.
type Credential struct {
	UserID         int64          `db:"user_id" json:"user_id"`
	AccountID      sql.NullString `db:"account_id" json:"account_id"`
	Username       sql.NullString `db:"username" json:"username"`
	AccessToken    sql.NullString `db:"access_token" json:"-"`
	RefreshToken   sql.NullString `db:"refresh_token" json:"-"`
	TokenExpiresAt sql.NullTime   `db:"token_expires_at" json:"token_expires_at"`
	RotatedAt      sql.NullTime   `db:"rotated_at" json:"rotated_at"`
	Version        int64          `db:"version" json:"-"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// Connected reports whether the credential currently holds a live identity.
func (c *Credential) Connected() bool {
	return c.AccessToken.Valid && c.RefreshToken.Valid
}
