package service

import (
	"context"
	"log/slog"

	config "github.com/postpilothq/postpilot/configs"
	"github.com/postpilothq/postpilot/internal/models"
	"github.com/postpilothq/postpilot/internal/repository"
	"github.com/postpilothq/postpilot/internal/transfer"
	"github.com/postpilothq/postpilot/pkg/apperr"
	"github.com/postpilothq/postpilot/pkg/crypto"
)

type AuthService interface {
	Register(ctx context.Context, req *transfer.RegisterRequest) (int64, error)
	Login(ctx context.Context, req *transfer.LoginRequest) (int64, error)
}

type authService struct {
	cfg config.Config
	u   repository.UserRepository
}

func NewAuthService(cfg config.Config, u repository.UserRepository) AuthService {
	return &authService{
		cfg: cfg,
		u:   u,
	}
}

func (s *authService) Register(ctx context.Context, req *transfer.RegisterRequest) (int64, error) {
	existing, err := s.u.GetByEmail(ctx, req.Email)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return 0, apperr.Conflict("email is already registered")
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		return 0, err
	}

	userID, err := s.u.Create(ctx, &models.User{
		Email:        req.Email,
		PasswordHash: hash,
		Name:         req.Name,
	})
	if err != nil {
		return 0, err
	}

	slog.Info("user registered", "user_id", userID)
	return userID, nil
}

func (s *authService) Login(ctx context.Context, req *transfer.LoginRequest) (int64, error) {
	user, err := s.u.GetByEmail(ctx, req.Email)
	if err != nil {
		return 0, err
	}
	if user == nil || !crypto.VerifyPassword(user.PasswordHash, req.Password) {
		return 0, apperr.Authentication("invalid email or password")
	}

	return user.ID, nil
}
