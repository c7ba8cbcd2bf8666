package service

import (
	"context"
	"fmt"
	"time"

	"payment-webhook-engine/internal/core/ports"
	"payment-webhook-engine/pkg/apperror"
)

// AuthServiceImpl implements ports.AuthService.
type AuthServiceImpl struct {
	clients  ports.ClientStore
	hashSvc  ports.HashService
	tokenSvc ports.TokenService
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(
	clients ports.ClientStore,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		clients:  clients,
		hashSvc:  hashSvc,
		tokenSvc: tokenSvc,
	}
}

// IssueToken validates an operator API key and returns a JWT token.
func (s *AuthServiceImpl) IssueToken(ctx context.Context, keyID, apiKey string) (string, time.Time, error) {
	operator, err := s.clients.OperatorByKeyID(ctx, keyID)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("find operator: %w", err))
	}
	if operator == nil {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	// Verify API key against stored Argon2id hash
	valid, err := s.hashSvc.Verify(apiKey, operator.APIKeyHash)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("verify api key: %w", err))
	}
	if !valid {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	// Generate JWT
	token, expiry, err := s.tokenSvc.Generate(operator.KeyID)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	return token, expiry, nil
}
