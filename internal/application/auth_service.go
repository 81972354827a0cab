package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/hallpass/internal/persistence"
)

// AuthUserStore captures the account lookups authentication depends on.
type AuthUserStore interface {
	GetUserByEmail(ctx context.Context, email string) (persistence.User, error)
	GetUser(ctx context.Context, id string) (persistence.User, error)
}

// AuthSessionStore captures the session persistence operations.
type AuthSessionStore interface {
	CreateSession(ctx context.Context, session persistence.Session) (persistence.Session, error)
	GetSession(ctx context.Context, token string) (persistence.Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (persistence.Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}

// Session is the application view of an authentication session.
type Session struct {
	Token     string
	UserID    string
	Role      Role
	ExpiresAt time.Time
}

// AuthService authenticates credentials and validates session tokens.
type AuthService struct {
	users          AuthUserStore
	sessions       AuthSessionStore
	idGenerator    func() string
	tokenGenerator func() string
	now            func() time.Time
	ttl            time.Duration
	logger         *slog.Logger
}

// NewAuthService wires dependencies for the authentication service.
func NewAuthService(
	users AuthUserStore,
	sessions AuthSessionStore,
	idGenerator func() string,
	tokenGenerator func() string,
	now func() time.Time,
	ttl time.Duration,
	logger *slog.Logger,
) *AuthService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if tokenGenerator == nil {
		tokenGenerator = idGenerator
	}
	if now == nil {
		now = time.Now
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &AuthService{
		users:          users,
		sessions:       sessions,
		idGenerator:    idGenerator,
		tokenGenerator: tokenGenerator,
		now:            now,
		ttl:            ttl,
		logger:         defaultLogger(logger),
	}
}

// Authenticate verifies credentials and issues a session. Failed lookups and
// failed password checks are indistinguishable to the caller.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (Session, error) {
	logger := serviceLogger(ctx, s.logger, "auth", "authenticate")

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("failed to load account: %w", err)
	}

	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			logger.Info("authentication rejected", "error_kind", "invalid_credentials")
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}

	if !user.Active {
		return Session{}, ErrAccountDisabled
	}

	now := s.now()
	record, err := s.sessions.CreateSession(ctx, persistence.Session{
		ID:        s.idGenerator(),
		UserID:    user.ID,
		Token:     s.tokenGenerator(),
		ExpiresAt: now.Add(s.ttl),
	})
	if err != nil {
		return Session{}, fmt.Errorf("failed to create session: %w", err)
	}

	// Opportunistic cleanup; stale rows never affect correctness.
	if err := s.sessions.DeleteExpiredSessions(ctx, now); err != nil {
		logger.Warn("failed to delete expired sessions", "error", err)
	}

	logger.Info("session issued", "user_id", user.ID)
	return Session{
		Token:     record.Token,
		UserID:    user.ID,
		Role:      Role(user.Role),
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// ValidateSession resolves a token to the acting principal.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (Principal, error) {
	if token == "" {
		return Principal{}, ErrInvalidCredentials
	}

	session, err := s.sessions.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return Principal{}, ErrInvalidCredentials
		}
		return Principal{}, fmt.Errorf("failed to load session: %w", err)
	}

	now := s.now()
	if session.RevokedAt != nil {
		return Principal{}, ErrSessionRevoked
	}
	if !session.ExpiresAt.After(now) {
		return Principal{}, ErrSessionExpired
	}

	user, err := s.users.GetUser(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return Principal{}, ErrInvalidCredentials
		}
		return Principal{}, fmt.Errorf("failed to load account: %w", err)
	}
	if !user.Active {
		return Principal{}, ErrAccountDisabled
	}

	return Principal{UserID: user.ID, Role: Role(user.Role)}, nil
}

// RevokeSession invalidates the presented token.
func (s *AuthService) RevokeSession(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidCredentials
	}

	if _, err := s.sessions.RevokeSession(ctx, token, s.now()); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	serviceLogger(ctx, s.logger, "auth", "revoke_session").Info("session revoked")
	return nil
}
