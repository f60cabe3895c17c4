package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/accessgate/access-gate/internal/auth"
	"github.com/accessgate/access-gate/internal/config"
	"github.com/accessgate/access-gate/internal/domain"
	"github.com/accessgate/access-gate/internal/repository"
)

func newTestAuthService(t *testing.T) *AuthService {
	t.Helper()
	hash, err := auth.HashPassword("s3cret", bcrypt.MinCost)
	require.NoError(t, err)
	return NewAuthService(
		config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 5, LoginAttemptsPerMinute: 3},
		AuthDependencies{Operators: repository.NewStaticOperatorRepository(map[string]string{"alice": hash})},
	)
}

func TestLoginOperator(t *testing.T) {
	svc := newTestAuthService(t)

	op, token, exp, err := svc.LoginOperator(context.Background(), " alice ", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "alice", op.Username)
	assert.False(t, exp.IsZero())

	claims, err := svc.TokenManager().ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, domain.SubjectTypeOperator, claims.Subject)
	assert.Equal(t, "alice", claims.RegisteredClaims.Subject)
}

func TestLoginOperator_Rejects(t *testing.T) {
	svc := newTestAuthService(t)

	_, _, _, err := svc.LoginOperator(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, _, err = svc.LoginOperator(context.Background(), "mallory", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginOperator_RateLimitsGuesses(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, _, err := svc.LoginOperator(ctx, "alice", "guess")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}
	_, _, _, err := svc.LoginOperator(ctx, "alice", "s3cret")
	assert.ErrorIs(t, err, ErrTooManyAttempts)

	// Unknown usernames never reach the limiter.
	_, _, _, err = svc.LoginOperator(ctx, "mallory", "guess")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
