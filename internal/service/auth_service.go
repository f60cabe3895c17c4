package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/accessgate/access-gate/internal/auth"
	"github.com/accessgate/access-gate/internal/config"
	"github.com/accessgate/access-gate/internal/domain"
	"github.com/accessgate/access-gate/internal/repository"
)

// AuthService authenticates operators.
type AuthService struct {
	operators repository.OperatorRepository
	tokenMgr  *auth.TokenManager
	logger    *zap.Logger
	cost      int

	attemptsPerMinute int
	mu                sync.Mutex
	limiters          map[string]*rate.Limiter
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	Operators repository.OperatorRepository
	Logger    *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		operators:         deps.Operators,
		tokenMgr:          auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		logger:            logger,
		cost:              cfg.BcryptCost,
		attemptsPerMinute: cfg.LoginAttemptsPerMinute,
		limiters:          make(map[string]*rate.Limiter),
	}
}

// LoginOperator checks the password against the configured bcrypt hash and
// issues a bearer token. Unknown usernames and wrong passwords are
// indistinguishable to the caller.
func (s *AuthService) LoginOperator(ctx context.Context, username, password string) (*domain.Operator, string, time.Time, error) {
	username = strings.TrimSpace(username)
	op, err := s.operators.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("operator login rejected", zap.String("operator", username))
			return nil, "", time.Time{}, ErrInvalidCredentials
		}
		return nil, "", time.Time{}, fmt.Errorf("load operator: %w", err)
	}
	if !s.allowAttempt(op.Username) {
		s.logger.Warn("operator login rate limited", zap.String("operator", op.Username))
		return nil, "", time.Time{}, ErrTooManyAttempts
	}
	if err := auth.ComparePassword(op.PasswordHash, password); err != nil {
		s.logger.Info("operator login rejected", zap.String("operator", username))
		return nil, "", time.Time{}, ErrInvalidCredentials
	}

	token, exp, err := s.tokenMgr.GenerateToken(op.Username, domain.SubjectTypeOperator)
	if err != nil {
		return nil, "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	if auth.NeedsRehash(op.PasswordHash, s.cost) {
		s.logger.Warn("operator hash is below the configured cost; regenerate it with hashpw",
			zap.String("operator", op.Username))
	}
	s.logger.Info("operator logged in", zap.String("operator", op.Username))
	return op, token, exp, nil
}

// allowAttempt spends one login attempt for a known operator. Limiters are
// only created for configured operators so the map stays bounded.
func (s *AuthService) allowAttempt(username string) bool {
	if s.attemptsPerMinute <= 0 {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	limiter, ok := s.limiters[username]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(s.attemptsPerMinute)), s.attemptsPerMinute)
		s.limiters[username] = limiter
	}
	return limiter.Allow()
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
