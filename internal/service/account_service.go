package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	config "github.com/postpilothq/postpilot/configs"
	"github.com/postpilothq/postpilot/internal/models"
	"github.com/postpilothq/postpilot/internal/repository"
	"github.com/postpilothq/postpilot/internal/transfer"
	"github.com/postpilothq/postpilot/pkg/apperr"
	"github.com/postpilothq/postpilot/pkg/crypto"
	"github.com/postpilothq/postpilot/pkg/pkce"
	"golang.org/x/oauth2"
)

// refreshLeeway is how close to expiry a token may get before a caller that
// needs it triggers a refresh first.
const refreshLeeway = 5 * time.Minute

// AccountService manages the user's X account connection: the PKCE
// authorization flow, the encrypted credential record, and token rotation.
type AccountService interface {
	BeginAuthorization(ctx context.Context) (*transfer.AuthorizationStart, error)
	CompleteAuthorization(ctx context.Context, userID int64, code, verifier string) error
	RefreshCredential(ctx context.Context, userID int64) error
	Disconnect(ctx context.Context, userID int64) error
	AccountInfo(ctx context.Context, userID int64) (*transfer.AccountInfo, error)
	AccessToken(ctx context.Context, userID int64) (string, error)
}

type accountService struct {
	cfg   config.Config
	cr    repository.CredentialRepository
	vault *crypto.Vault
}

func NewAccountService(cfg config.Config, cr repository.CredentialRepository, vault *crypto.Vault) AccountService {
	return &accountService{
		cfg:   cfg,
		cr:    cr,
		vault: vault,
	}
}

func (s *accountService) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.cfg.XClientID,
		ClientSecret: s.cfg.XClientSecret,
		RedirectURL:  s.cfg.XRedirectURI,
		Scopes:       []string{"tweet.read", "tweet.write", "users.read", "offline.access"},
		Endpoint: oauth2.Endpoint{
			AuthURL:   s.cfg.XAuthURL,
			TokenURL:  s.cfg.XTokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

func (s *accountService) BeginAuthorization(ctx context.Context) (*transfer.AuthorizationStart, error) {
	verifier := pkce.GenerateVerifier()
	state, err := pkce.GenerateState()
	if err != nil {
		return nil, err
	}

	url := s.oauthConfig().AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))

	return &transfer.AuthorizationStart{
		AuthorizationURL: url,
		State:            state,
		Verifier:         verifier,
	}, nil
}

func (s *accountService) CompleteAuthorization(ctx context.Context, userID int64, code, verifier string) error {
	if code == "" || verifier == "" {
		return apperr.Validation("code and verifier are required")
	}

	conf := s.oauthConfig()
	token, err := conf.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		// A failed exchange is terminal; the user restarts the flow.
		return classifyOAuthError(err, "code exchange")
	}
	if token.RefreshToken == "" {
		return apperr.New(apperr.KindExternalService, "provider did not return a refresh token")
	}

	account, err := s.fetchAccount(ctx, conf, token)
	if err != nil {
		return err
	}

	encryptedAccess, err := s.vault.Encrypt(token.AccessToken)
	if err != nil {
		return err
	}
	encryptedRefresh, err := s.vault.Encrypt(token.RefreshToken)
	if err != nil {
		return err
	}

	cred := &models.Credential{
		UserID:         userID,
		AccountID:      nullString(account.ID),
		Username:       nullString(account.Username),
		AccessToken:    nullString(encryptedAccess),
		RefreshToken:   nullString(encryptedRefresh),
		TokenExpiresAt: nullTime(token.Expiry),
	}
	if err := s.cr.Upsert(ctx, cred); err != nil {
		return err
	}

	slog.Info("account connected", "user_id", userID, "username", account.Username)
	return nil
}

type xAccount struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

func (s *accountService) fetchAccount(ctx context.Context, conf *oauth2.Config, token *oauth2.Token) (*xAccount, error) {
	client := conf.Client(ctx, token)

	resp, err := client.Get(s.cfg.XAPIBaseURL + "/2/users/me")
	if err != nil {
		return nil, apperr.ExternalService(err, "user lookup failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.New(apperr.KindExternalService, "user lookup returned status %d", resp.StatusCode)
	}

	var result struct {
		Data xAccount `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, apperr.ExternalService(err, "failed to decode user lookup response")
	}

	return &result.Data, nil
}

func (s *accountService) RefreshCredential(ctx context.Context, userID int64) error {
	cred, err := s.cr.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if cred == nil || !cred.Connected() {
		return apperr.NotFound("no connected account")
	}

	refreshToken, err := s.vault.Decrypt(cred.RefreshToken.String)
	if err != nil {
		return err
	}

	token, err := s.oauthConfig().TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		// A 4xx means the grant was revoked; the account is implicitly
		// disconnected and the user must re-authorize.
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response.StatusCode >= 400 && rerr.Response.StatusCode < 500 {
			if clearErr := s.cr.Clear(ctx, userID); clearErr != nil {
				slog.Info(clearErr.Error())
			}
		}
		return classifyOAuthError(err, "token refresh")
	}

	// Keep the old refresh token when the provider does not rotate it.
	newRefresh := token.RefreshToken
	if newRefresh == "" {
		newRefresh = refreshToken
	}

	encryptedAccess, err := s.vault.Encrypt(token.AccessToken)
	if err != nil {
		return err
	}
	encryptedRefresh, err := s.vault.Encrypt(newRefresh)
	if err != nil {
		return err
	}

	updated, err := s.cr.UpdateTokens(ctx, userID, encryptedAccess, encryptedRefresh, token.Expiry, cred.Version)
	if err != nil {
		return err
	}
	if !updated {
		return apperr.Conflict("account was disconnected during refresh")
	}

	slog.Info("credential rotated", "user_id", userID)
	return nil
}

func (s *accountService) Disconnect(ctx context.Context, userID int64) error {
	cred, err := s.cr.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if cred == nil || !cred.Connected() {
		return apperr.NotFound("no connected account")
	}

	return s.cr.Clear(ctx, userID)
}

func (s *accountService) AccountInfo(ctx context.Context, userID int64) (*transfer.AccountInfo, error) {
	cred, err := s.cr.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cred == nil || !cred.Connected() {
		return &transfer.AccountInfo{Connected: false}, nil
	}

	return &transfer.AccountInfo{
		Connected: true,
		AccountID: cred.AccountID.String,
		Username:  cred.Username.String,
	}, nil
}

// AccessToken returns the decrypted access token for a connected account,
// refreshing it first when it is about to expire.
func (s *accountService) AccessToken(ctx context.Context, userID int64) (string, error) {
	cred, err := s.cr.GetByUserID(ctx, userID)
	if err != nil {
		return "", err
	}
	if cred == nil || !cred.Connected() {
		return "", apperr.NotFound("no connected account")
	}

	if cred.TokenExpiresAt.Valid && time.Until(cred.TokenExpiresAt.Time) < refreshLeeway {
		if err := s.RefreshCredential(ctx, userID); err != nil {
			return "", err
		}
		cred, err = s.cr.GetByUserID(ctx, userID)
		if err != nil {
			return "", err
		}
		if cred == nil || !cred.Connected() {
			return "", apperr.NotFound("no connected account")
		}
	}

	return s.vault.Decrypt(cred.AccessToken.String)
}

func classifyOAuthError(err error, op string) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return apperr.ExternalService(fmt.Errorf("status %d", rerr.Response.StatusCode), "%s rejected by provider", op)
	}
	return apperr.ExternalService(err, "%s failed", op)
}
