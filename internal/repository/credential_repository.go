package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/postpilothq/postpilot/internal/models"
)

const credentialColumns = `user_id, account_id, username, access_token, refresh_token, token_expires_at, rotated_at, version, created_at, updated_at`

// CredentialRepository stores the one social-platform credential per user.
// UpdateTokens is a compare-and-swap on the row version so a refresh that
// raced a disconnect cannot write back cleared tokens.
type CredentialRepository interface {
	GetByUserID(ctx context.Context, userID int64) (*models.Credential, error)
	Upsert(ctx context.Context, cred *models.Credential) error
	UpdateTokens(ctx context.Context, userID int64, accessToken, refreshToken string, expiresAt time.Time, version int64) (bool, error)
	Clear(ctx context.Context, userID int64) error
	ListExpiring(ctx context.Context, from, to time.Time) ([]*models.Credential, error)
}

type credentialRepository struct {
	db *sql.DB
}

func NewCredentialRepository(db *sql.DB) CredentialRepository {
	return &credentialRepository{db: db}
}

func (r *credentialRepository) GetByUserID(ctx context.Context, userID int64) (*models.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE user_id = $1`
	row := r.db.QueryRowContext(ctx, query, userID)

	var cred models.Credential
	err := row.Scan(&cred.UserID, &cred.AccountID, &cred.Username, &cred.AccessToken,
		&cred.RefreshToken, &cred.TokenExpiresAt, &cred.RotatedAt, &cred.Version,
		&cred.CreatedAt, &cred.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &cred, nil
}

func (r *credentialRepository) Upsert(ctx context.Context, cred *models.Credential) error {
	query := `
		INSERT INTO credentials (user_id, account_id, username, access_token, refresh_token, token_expires_at, rotated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, now(), 1)
		ON CONFLICT (user_id) DO UPDATE
		SET account_id = EXCLUDED.account_id,
			username = EXCLUDED.username,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_expires_at = EXCLUDED.token_expires_at,
			rotated_at = now(),
			version = credentials.version + 1,
			updated_at = now()
	`
	_, err := r.db.ExecContext(ctx, query, cred.UserID, cred.AccountID, cred.Username,
		cred.AccessToken, cred.RefreshToken, cred.TokenExpiresAt)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *credentialRepository) UpdateTokens(ctx context.Context, userID int64, accessToken, refreshToken string, expiresAt time.Time, version int64) (bool, error) {
	query := `
		UPDATE credentials
		SET access_token = $2, refresh_token = $3, token_expires_at = $4,
			rotated_at = now(), version = version + 1, updated_at = now()
		WHERE user_id = $1 AND version = $5 AND access_token IS NOT NULL
	`
	res, err := r.db.ExecContext(ctx, query, userID, accessToken, refreshToken, expiresAt, version)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *credentialRepository) Clear(ctx context.Context, userID int64) error {
	query := `
		UPDATE credentials
		SET account_id = NULL, username = NULL, access_token = NULL, refresh_token = NULL,
			token_expires_at = NULL, version = version + 1, updated_at = now()
		WHERE user_id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *credentialRepository) ListExpiring(ctx context.Context, from, to time.Time) ([]*models.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials
		WHERE access_token IS NOT NULL AND token_expires_at BETWEEN $1 AND $2`
	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var creds []*models.Credential
	for rows.Next() {
		var cred models.Credential
		err := rows.Scan(&cred.UserID, &cred.AccountID, &cred.Username, &cred.AccessToken,
			&cred.RefreshToken, &cred.TokenExpiresAt, &cred.RotatedAt, &cred.Version,
			&cred.CreatedAt, &cred.UpdatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		creds = append(creds, &cred)
	}
	return creds, rows.Err()
}
