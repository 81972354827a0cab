package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/hallpass/internal/application"
)

type stubSessionValidator struct {
	validate func(ctx context.Context, token string) (application.Principal, error)
}

func (s *stubSessionValidator) ValidateSession(ctx context.Context, token string) (application.Principal, error) {
	return s.validate(ctx, token)
}

func TestRequireSession(t *testing.T) {
	t.Parallel()

	teacher := application.Principal{UserID: "teacher-1", Role: application.RoleTeacher}
	validator := &stubSessionValidator{
		validate: func(_ context.Context, token string) (application.Principal, error) {
			switch token {
			case "valid-token":
				return teacher, nil
			case "expired-token":
				return application.Principal{}, application.ErrSessionExpired
			case "revoked-token":
				return application.Principal{}, application.ErrSessionRevoked
			default:
				return application.Principal{}, application.ErrNotFound
			}
		},
	}

	var seenPrincipal application.Principal
	var seenOK bool
	protected := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenPrincipal, seenOK = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := RequireSession(validator, nil)(protected)

	t.Run("missing token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/passes", nil)
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", recorder.Code)
		}
	})

	t.Run("bearer token attaches principal", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/passes", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", recorder.Code)
		}
		if !seenOK || seenPrincipal != teacher {
			t.Errorf("expected principal in context, got %+v ok=%v", seenPrincipal, seenOK)
		}
	})

	t.Run("cookie token accepted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/passes", nil)
		req.AddCookie(&http.Cookie{Name: "session_token", Value: "valid-token"})
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", recorder.Code)
		}
	})

	t.Run("expired session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/passes", nil)
		req.Header.Set("Authorization", "Bearer expired-token")
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", recorder.Code)
		}
		var resp errorResponse
		if err := json.NewDecoder(recorder.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if resp.ErrorCode != "AUTH_SESSION_EXPIRED" {
			t.Errorf("expected AUTH_SESSION_EXPIRED, got %s", resp.ErrorCode)
		}
	})

	t.Run("revoked session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/passes", nil)
		req.Header.Set("Authorization", "Bearer revoked-token")
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", recorder.Code)
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/passes", nil)
		req.Header.Set("Authorization", "Bearer who-dis")
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", recorder.Code)
		}
		var resp errorResponse
		if err := json.NewDecoder(recorder.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if resp.ErrorCode != "AUTH_SESSION_INVALID" {
			t.Errorf("expected AUTH_SESSION_INVALID, got %s", resp.ErrorCode)
		}
	})

	t.Run("sign-in is exempt", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/sessions", nil)
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusOK {
			t.Fatalf("expected exempt request to pass through, got %d", recorder.Code)
		}
	})

	t.Run("board is exempt", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/board", nil)
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusOK {
			t.Fatalf("expected exempt request to pass through, got %d", recorder.Code)
		}
	})
}
