package service

import (
	"context"
	"time"

	"github.com/helpdesk-kit/ticketd/internal/auth"
	"github.com/helpdesk-kit/ticketd/internal/config"
	"github.com/helpdesk-kit/ticketd/internal/domain"
	"github.com/helpdesk-kit/ticketd/internal/repository"
	apperrors "github.com/helpdesk-kit/ticketd/pkg/util"
)

// AuthService coordinates registration and login flows. Everything past this
// boundary deals only in Principals.
type AuthService struct {
	users      repository.UserRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, users repository.UserRepository) *AuthService {
	return &AuthService{
		users:      users,
		tokenMgr:   auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		bcryptCost: cfg.BcryptCost,
	}
}

// TokenManager exposes the manager for the auth middleware.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// Register creates a new account. Self-registration always yields the USER
// role; staff accounts are provisioned out of band.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*domain.User, string, time.Time, error) {
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, "", time.Time{}, apperrors.NewValidationError("email already registered", nil)
	} else if !apperrors.IsNotFound(err) {
		return nil, "", time.Time{}, err
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, "", time.Time{}, err
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		Status:       domain.UserStatusActive,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", time.Time{}, err
	}

	token, exp, err := s.tokenMgr.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return user, token, exp, nil
}

// Login authenticates an account and issues a role-bearing token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, string, time.Time, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, err
	}
	if user.Status != domain.UserStatusActive {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("account deactivated")
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}
	token, exp, err := s.tokenMgr.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return user, token, exp, nil
}
