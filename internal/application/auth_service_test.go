package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/hallpass/internal/application"
	"github.com/example/hallpass/internal/testfixtures"
)

func newAuthService(t *testing.T) (*application.AuthService, *testfixtures.SQLiteHarness, *testfixtures.Clock) {
	t.Helper()

	harness := testfixtures.NewSQLiteHarness(t)
	clock := testfixtures.NewClock(testfixtures.ReferenceTime())
	ids := testfixtures.NewIDGenerator("session")
	tokens := testfixtures.NewIDGenerator("token")

	svc := application.NewAuthService(
		harness.Users,
		harness.Sessions,
		ids.NextFunc(),
		tokens.NextFunc(),
		clock.NowFunc(),
		12*time.Hour,
		nil,
	)
	return svc, harness, clock
}

func seedAccount(t *testing.T, harness *testfixtures.SQLiteHarness, email, password, role string, active bool) {
	t.Helper()

	hash, err := application.CreatePasswordHash(password, application.DefaultArgon2idParams)
	if err != nil {
		t.Fatalf("CreatePasswordHash failed: %v", err)
	}
	user := testfixtures.NewUser(
		testfixtures.WithUserEmail(email),
		testfixtures.WithUserRole(role),
		testfixtures.WithUserActive(active),
	)
	user.PasswordHash = hash
	if err := harness.Users.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
}

func TestAuthService_AuthenticateAndValidate(t *testing.T) {
	t.Parallel()

	svc, harness, clock := newAuthService(t)
	seedAccount(t, harness, "teacher@school.test", "correct horse", "Teacher", true)

	session, err := svc.Authenticate(context.Background(), "teacher@school.test", "correct horse")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if session.Role != application.RoleTeacher {
		t.Errorf("expected teacher role, got %s", session.Role)
	}
	if !session.ExpiresAt.Equal(clock.Now().Add(12 * time.Hour)) {
		t.Errorf("unexpected session deadline %v", session.ExpiresAt)
	}

	principal, err := svc.ValidateSession(context.Background(), session.Token)
	if err != nil {
		t.Fatalf("ValidateSession failed: %v", err)
	}
	if principal.UserID != session.UserID || principal.Role != application.RoleTeacher {
		t.Errorf("unexpected principal %+v", principal)
	}
}

func TestAuthService_Authenticate_BadPassword(t *testing.T) {
	t.Parallel()

	svc, harness, _ := newAuthService(t)
	seedAccount(t, harness, "student@school.test", "secret", "Student", true)

	if _, err := svc.Authenticate(context.Background(), "student@school.test", "wrong"); !errors.Is(err, application.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), "missing@school.test", "secret"); !errors.Is(err, application.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown account, got %v", err)
	}
}

func TestAuthService_Authenticate_DisabledAccount(t *testing.T) {
	t.Parallel()

	svc, harness, _ := newAuthService(t)
	seedAccount(t, harness, "gone@school.test", "secret", "Student", false)

	if _, err := svc.Authenticate(context.Background(), "gone@school.test", "secret"); !errors.Is(err, application.ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
}

func TestAuthService_ValidateSession_ExpiredAndRevoked(t *testing.T) {
	t.Parallel()

	svc, harness, clock := newAuthService(t)
	seedAccount(t, harness, "teacher@school.test", "secret", "Teacher", true)

	session, err := svc.Authenticate(context.Background(), "teacher@school.test", "secret")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	clock.Advance(13 * time.Hour)
	if _, err := svc.ValidateSession(context.Background(), session.Token); !errors.Is(err, application.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}

	clock.Set(testfixtures.ReferenceTime())
	second, err := svc.Authenticate(context.Background(), "teacher@school.test", "secret")
	if err != nil {
		t.Fatalf("second Authenticate failed: %v", err)
	}
	if err := svc.RevokeSession(context.Background(), second.Token); err != nil {
		t.Fatalf("RevokeSession failed: %v", err)
	}
	if _, err := svc.ValidateSession(context.Background(), second.Token); !errors.Is(err, application.ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked, got %v", err)
	}
}
