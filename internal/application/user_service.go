package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/example/hallpass/internal/persistence"
)

// UserStore captures the persistence operations needed by the user service.
type UserStore interface {
	CreateUser(ctx context.Context, user persistence.User) error
	UpdateUser(ctx context.Context, user persistence.User) error
	GetUser(ctx context.Context, id string) (persistence.User, error)
	ListUsers(ctx context.Context) ([]persistence.User, error)
}

// CreateUserInput carries the fields of a new account.
type CreateUserInput struct {
	Email       string
	DisplayName string
	Password    string
	Role        Role
}

// CreateUserParams bundles the acting principal with the account input.
type CreateUserParams struct {
	Principal Principal
	Input     CreateUserInput
}

// UpdateUserInput carries the mutable fields of an account. An empty
// Password keeps the stored hash.
type UpdateUserInput struct {
	Email       string
	DisplayName string
	Password    string
	Role        Role
	Active      bool
}

// UpdateUserParams bundles the acting principal with the update input.
type UpdateUserParams struct {
	Principal Principal
	UserID    string
	Input     UpdateUserInput
}

// UserService manages accounts for administrators.
type UserService struct {
	users       UserStore
	audit       SettingsAuditStore
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewUserService wires dependencies for the user service.
func NewUserService(users UserStore, audit SettingsAuditStore, idGenerator func() string, now func() time.Time, logger *slog.Logger) *UserService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &UserService{
		users:       users,
		audit:       audit,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// CreateUser validates input, hashes the password and persists a new account.
func (s *UserService) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	if !params.Principal.IsAdmin() {
		return User{}, ErrUnauthorized
	}

	input := params.Input
	input.Email = strings.TrimSpace(input.Email)
	input.DisplayName = strings.TrimSpace(input.DisplayName)

	vErr := validateUserInput(input.Email, input.DisplayName, input.Role)
	if input.Password == "" {
		vErr.add("password", "required")
	}
	if vErr.HasErrors() {
		return User{}, vErr
	}

	hash, err := CreatePasswordHash(input.Password, DefaultArgon2idParams)
	if err != nil {
		return User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	record := persistence.User{
		ID:           s.idGenerator(),
		Email:        input.Email,
		DisplayName:  input.DisplayName,
		PasswordHash: hash,
		Role:         string(input.Role),
		Active:       true,
	}

	if err := s.users.CreateUser(ctx, record); err != nil {
		return User{}, mapStoreError(err)
	}

	s.appendAudit(ctx, params.Principal, "user.created", record.ID)
	serviceLogger(ctx, s.logger, "user", "create", "user_id", record.ID).Info("user created")
	return userFromRecord(record), nil
}

// UpdateUser validates input and updates an existing account.
func (s *UserService) UpdateUser(ctx context.Context, params UpdateUserParams) (User, error) {
	if !params.Principal.IsAdmin() {
		return User{}, ErrUnauthorized
	}

	existing, err := s.users.GetUser(ctx, params.UserID)
	if err != nil {
		return User{}, mapStoreError(err)
	}

	input := params.Input
	input.Email = strings.TrimSpace(input.Email)
	input.DisplayName = strings.TrimSpace(input.DisplayName)

	vErr := validateUserInput(input.Email, input.DisplayName, input.Role)
	if vErr.HasErrors() {
		return User{}, vErr
	}

	updated := existing
	updated.Email = input.Email
	updated.DisplayName = input.DisplayName
	updated.Role = string(input.Role)
	updated.Active = input.Active
	if input.Password != "" {
		hash, err := CreatePasswordHash(input.Password, DefaultArgon2idParams)
		if err != nil {
			return User{}, fmt.Errorf("failed to hash password: %w", err)
		}
		updated.PasswordHash = hash
	}

	if err := s.users.UpdateUser(ctx, updated); err != nil {
		return User{}, mapStoreError(err)
	}

	s.appendAudit(ctx, params.Principal, "user.updated", updated.ID)
	return userFromRecord(updated), nil
}

// ListUsers returns all accounts for administrators.
func (s *UserService) ListUsers(ctx context.Context, principal Principal) ([]User, error) {
	if !principal.IsAdmin() {
		return nil, ErrUnauthorized
	}

	records, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	users := make([]User, 0, len(records))
	for _, record := range records {
		users = append(users, userFromRecord(record))
	}
	return users, nil
}

func (s *UserService) appendAudit(ctx context.Context, principal Principal, action, targetID string) {
	if s.audit == nil {
		return
	}
	actorID := principal.UserID
	target := targetID
	err := s.audit.AppendEntry(ctx, persistence.AuditEntry{
		ID:         s.idGenerator(),
		ActorID:    &actorID,
		Action:     action,
		TargetType: "user",
		TargetID:   &target,
	})
	if err != nil {
		serviceLogger(ctx, s.logger, "user", action).Warn("failed to append audit entry", "error", err)
	}
}

func validateUserInput(email, displayName string, role Role) *ValidationError {
	vErr := &ValidationError{}
	if email == "" {
		vErr.add("email", "required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		vErr.add("email", "must be a valid address")
	}
	if displayName == "" {
		vErr.add("display_name", "required")
	}
	if !role.Valid() {
		vErr.add("role", "must be Student, Teacher or Admin")
	}
	return vErr
}
