package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/postpilothq/postpilot/internal/models"
	"github.com/postpilothq/postpilot/internal/repository"
	"github.com/postpilothq/postpilot/internal/service"
)

type TokenRefreshJob struct {
	cr repository.CredentialRepository
	as service.AccountService
}

func NewTokenRefreshJob(cr repository.CredentialRepository, as service.AccountService) *TokenRefreshJob {
	return &TokenRefreshJob{
		cr: cr,
		as: as,
	}
}

// RefreshTokens rotates every credential expiring within the next half hour.
func (j *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	now := time.Now()
	creds, err := j.cr.ListExpiring(ctx, now, now.Add(30*time.Minute))
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, cred := range creds {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(cred *models.Credential) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := j.as.RefreshCredential(ctx, cred.UserID); err != nil {
				slog.Info("unable to refresh tokens", "user_id", cred.UserID, "error", err.Error())
			}
		}(cred)
	}

	wg.Wait()
}
