package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/identity-service/internal/auth"
	"github.com/spec-kit/identity-service/internal/config"
	"github.com/spec-kit/identity-service/internal/domain"
	"github.com/spec-kit/identity-service/internal/repository"
	apperrors "github.com/spec-kit/identity-service/pkg/util"
)

// AuthService exchanges client credentials for role-scoped access tokens.
type AuthService struct {
	clients  repository.ClientRepository
	tokenMgr *auth.TokenManager
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, clients repository.ClientRepository) *AuthService {
	return &AuthService{
		clients:  clients,
		tokenMgr: auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
	}
}

// IssueToken authenticates the client and returns a signed access token.
func (s *AuthService) IssueToken(ctx context.Context, clientID, clientSecret string) (string, time.Time, error) {
	client, err := s.clients.GetByID(ctx, clientID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return "", time.Time{}, err
	}
	if !client.Active {
		return "", time.Time{}, apperrors.NewUnauthorized("client disabled")
	}
	if err := auth.CompareSecret(client.SecretHash, clientSecret); err != nil {
		return "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}
	if client.Role == domain.ClientRoleIssuer && client.IssuerID == nil {
		return "", time.Time{}, apperrors.NewUnauthorized("issuer client missing issuer binding")
	}
	return s.tokenMgr.GenerateToken(client)
}

// TokenManager exposes the manager for middleware wiring.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
