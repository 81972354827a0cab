package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/hallpass/internal/application"
	"github.com/example/hallpass/internal/persistence"
)

type stubPassService struct {
	request       func(ctx context.Context, params application.RequestPassParams) (application.Pass, error)
	approve       func(ctx context.Context, params application.ApprovePassParams) (application.Pass, error)
	deny          func(ctx context.Context, params application.DenyPassParams) (application.Pass, error)
	cancel        func(ctx context.Context, params application.CancelPassParams) (application.Pass, error)
	extend        func(ctx context.Context, params application.ExtendPassParams) (application.Pass, error)
	archive       func(ctx context.Context, principal application.Principal, passID string) (application.Pass, error)
	get           func(ctx context.Context, principal application.Principal, passID string) (application.PassDetail, error)
	mine          func(ctx context.Context, principal application.Principal) ([]application.PassDetail, error)
	queue         func(ctx context.Context, principal application.Principal, periodID string) ([]application.PassDetail, error)
	listOverrides func(ctx context.Context, principal application.Principal, passID string) ([]application.Override, error)
}

func (s *stubPassService) Request(ctx context.Context, params application.RequestPassParams) (application.Pass, error) {
	return s.request(ctx, params)
}

func (s *stubPassService) Approve(ctx context.Context, params application.ApprovePassParams) (application.Pass, error) {
	return s.approve(ctx, params)
}

func (s *stubPassService) Deny(ctx context.Context, params application.DenyPassParams) (application.Pass, error) {
	return s.deny(ctx, params)
}

func (s *stubPassService) Cancel(ctx context.Context, params application.CancelPassParams) (application.Pass, error) {
	return s.cancel(ctx, params)
}

func (s *stubPassService) Extend(ctx context.Context, params application.ExtendPassParams) (application.Pass, error) {
	return s.extend(ctx, params)
}

func (s *stubPassService) Archive(ctx context.Context, principal application.Principal, passID string) (application.Pass, error) {
	return s.archive(ctx, principal, passID)
}

func (s *stubPassService) Get(ctx context.Context, principal application.Principal, passID string) (application.PassDetail, error) {
	return s.get(ctx, principal, passID)
}

func (s *stubPassService) Mine(ctx context.Context, principal application.Principal) ([]application.PassDetail, error) {
	return s.mine(ctx, principal)
}

func (s *stubPassService) Queue(ctx context.Context, principal application.Principal, periodID string) ([]application.PassDetail, error) {
	return s.queue(ctx, principal, periodID)
}

func (s *stubPassService) ListOverrides(ctx context.Context, principal application.Principal, passID string) ([]application.Override, error) {
	return s.listOverrides(ctx, principal, passID)
}

func samplePass(state application.PassState) application.Pass {
	created := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)
	return application.Pass{
		ID:            "pass-1",
		StudentID:     "student-1",
		DestinationID: "dest-1",
		State:         state,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}

func passRouter(service passService) http.Handler {
	return NewRouter(RouterConfig{Passes: NewPassHandler(service, nil)})
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.NewDecoder(recorder.Body).Decode(target); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
}

func TestPassHandler_Create(t *testing.T) {
	t.Parallel()

	var captured application.RequestPassParams
	service := &stubPassService{
		request: func(_ context.Context, params application.RequestPassParams) (application.Pass, error) {
			captured = params
			return samplePass(application.StatePending), nil
		},
	}

	body := `{"destination_id":"dest-1","kiosk_token":"kiosk-token-1"}`
	req := httptest.NewRequest(http.MethodPost, "/passes", strings.NewReader(body))
	principal := application.Principal{UserID: "student-1", Role: application.RoleStudent}
	req = req.WithContext(ContextWithPrincipal(req.Context(), principal))

	recorder := httptest.NewRecorder()
	passRouter(service).ServeHTTP(recorder, req)

	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if captured.Principal != principal {
		t.Errorf("unexpected principal %+v", captured.Principal)
	}
	if captured.Input.DestinationID != "dest-1" || captured.Input.KioskToken != "kiosk-token-1" {
		t.Errorf("unexpected input %+v", captured.Input)
	}

	var dto passDTO
	decodeBody(t, recorder, &dto)
	if dto.ID != "pass-1" || dto.State != "Pending" {
		t.Errorf("unexpected payload %+v", dto)
	}
}

func TestPassHandler_Create_BadBody(t *testing.T) {
	t.Parallel()

	service := &stubPassService{
		request: func(context.Context, application.RequestPassParams) (application.Pass, error) {
			t.Fatal("service should not be called")
			return application.Pass{}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/passes", strings.NewReader("{"))
	recorder := httptest.NewRecorder()
	passRouter(service).ServeHTTP(recorder, req)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func TestPassHandler_LifecycleRouting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		path   string
		err    error
		status int
		code   string
	}{
		{name: "approve conflict", path: "/passes/pass-1/approve", err: application.ErrConflict, status: http.StatusConflict, code: "CONFLICT_RETRY"},
		{name: "deny invalid transition", path: "/passes/pass-1/deny", err: application.ErrInvalidTransition, status: http.StatusConflict, code: "INVALID_TRANSITION"},
		{name: "cancel forbidden", path: "/passes/pass-1/cancel", err: application.ErrUnauthorized, status: http.StatusForbidden, code: "FORBIDDEN"},
		{name: "archive not found", path: "/passes/pass-1/archive", err: application.ErrNotFound, status: http.StatusNotFound, code: "NOT_FOUND"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			fail := tc.err
			service := &stubPassService{
				approve: func(context.Context, application.ApprovePassParams) (application.Pass, error) {
					return application.Pass{}, fail
				},
				deny: func(context.Context, application.DenyPassParams) (application.Pass, error) {
					return application.Pass{}, fail
				},
				cancel: func(context.Context, application.CancelPassParams) (application.Pass, error) {
					return application.Pass{}, fail
				},
				archive: func(context.Context, application.Principal, string) (application.Pass, error) {
					return application.Pass{}, fail
				},
			}

			req := httptest.NewRequest(http.MethodPost, tc.path, nil)
			recorder := httptest.NewRecorder()
			passRouter(service).ServeHTTP(recorder, req)

			if recorder.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, recorder.Code, recorder.Body.String())
			}
			var resp errorResponse
			decodeBody(t, recorder, &resp)
			if resp.ErrorCode != tc.code {
				t.Errorf("expected error code %s, got %s", tc.code, resp.ErrorCode)
			}
		})
	}
}

func TestPassHandler_ApprovePassesID(t *testing.T) {
	t.Parallel()

	var captured application.ApprovePassParams
	service := &stubPassService{
		approve: func(_ context.Context, params application.ApprovePassParams) (application.Pass, error) {
			captured = params
			return samplePass(application.StateActive), nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/passes/pass-42/approve", nil)
	teacher := application.Principal{UserID: "teacher-1", Role: application.RoleTeacher}
	req = req.WithContext(ContextWithPrincipal(req.Context(), teacher))

	recorder := httptest.NewRecorder()
	passRouter(service).ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if captured.PassID != "pass-42" || captured.Principal != teacher {
		t.Errorf("unexpected params %+v", captured)
	}
}

func TestPassHandler_ExtendValidation(t *testing.T) {
	t.Parallel()

	vErr := &application.ValidationError{FieldErrors: map[string]string{"add_minutes": "must be a positive number of minutes"}}
	service := &stubPassService{
		extend: func(context.Context, application.ExtendPassParams) (application.Pass, error) {
			return application.Pass{}, vErr
		},
	}

	body := `{"add_minutes":0}`
	req := httptest.NewRequest(http.MethodPost, "/passes/pass-1/extend", strings.NewReader(body))
	recorder := httptest.NewRecorder()
	passRouter(service).ServeHTTP(recorder, req)

	if recorder.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", recorder.Code)
	}
	var resp errorResponse
	decodeBody(t, recorder, &resp)
	if resp.ErrorCode != "VALIDATION_FAILED" {
		t.Errorf("expected VALIDATION_FAILED, got %s", resp.ErrorCode)
	}
	if resp.Errors["add_minutes"] == "" {
		t.Errorf("expected field detail, got %+v", resp.Errors)
	}
}

func TestPassHandler_QueueRouting(t *testing.T) {
	t.Parallel()

	var capturedPeriod string
	service := &stubPassService{
		queue: func(_ context.Context, _ application.Principal, periodID string) ([]application.PassDetail, error) {
			capturedPeriod = periodID
			return []application.PassDetail{{Pass: samplePass(application.StatePending)}}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/passes/queue?period_id=period-7", nil)
	recorder := httptest.NewRecorder()
	passRouter(service).ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if capturedPeriod != "period-7" {
		t.Errorf("expected period filter period-7, got %q", capturedPeriod)
	}
	var resp listPassesResponse
	decodeBody(t, recorder, &resp)
	if len(resp.Passes) != 1 || resp.Passes[0].ID != "pass-1" {
		t.Errorf("unexpected payload %+v", resp)
	}
}

func TestPassHandler_ResolutionFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		code string
	}{
		{name: "no approver", err: application.ErrNoApprover, code: "NO_APPROVER"},
		{name: "ambiguous approver", err: application.ErrAmbiguousApprover, code: "AMBIGUOUS_APPROVER"},
		{name: "window violation", err: application.ErrWindowViolation, code: "WINDOW_VIOLATION"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			fail := tc.err
			service := &stubPassService{
				request: func(context.Context, application.RequestPassParams) (application.Pass, error) {
					return application.Pass{}, fail
				},
			}

			req := httptest.NewRequest(http.MethodPost, "/passes", strings.NewReader(`{"destination_id":"dest-1"}`))
			recorder := httptest.NewRecorder()
			passRouter(service).ServeHTTP(recorder, req)

			if recorder.Code != http.StatusUnprocessableEntity {
				t.Fatalf("expected 422, got %d", recorder.Code)
			}
			var resp errorResponse
			decodeBody(t, recorder, &resp)
			if resp.ErrorCode != tc.code {
				t.Errorf("expected error code %s, got %s", tc.code, resp.ErrorCode)
			}
		})
	}
}

type stubBoardService struct {
	board func(ctx context.Context, limit int) ([]application.BoardRow, error)
}

func (s *stubBoardService) Board(ctx context.Context, limit int) ([]application.BoardRow, error) {
	return s.board(ctx, limit)
}

func TestBoardHandler_List(t *testing.T) {
	t.Parallel()

	issued := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)
	expires := issued.Add(5 * time.Minute)
	pass := samplePass(application.StateActive)
	pass.IssuedAt = &issued
	pass.ExpiresAt = &expires

	var capturedLimit int
	service := &stubBoardService{
		board: func(_ context.Context, limit int) ([]application.BoardRow, error) {
			capturedLimit = limit
			return []application.BoardRow{{
				Pass:             pass,
				StudentName:      "Casey Moreno",
				DestinationName:  "Library",
				ApproverNames:    []string{"R. Vance"},
				RemainingSeconds: 300,
			}}, nil
		},
	}

	router := NewRouter(RouterConfig{Board: NewBoardHandler(service, nil, nil)})
	req := httptest.NewRequest(http.MethodGet, "/board?limit=25", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if capturedLimit != 25 {
		t.Errorf("expected limit 25, got %d", capturedLimit)
	}

	var resp boardResponse
	decodeBody(t, recorder, &resp)
	if len(resp.Rows) != 1 {
		t.Fatalf("expected one row, got %d", len(resp.Rows))
	}
	row := resp.Rows[0]
	if row.StudentName != "Casey Moreno" || row.DestinationName != "Library" || row.RemainingSeconds != 300 {
		t.Errorf("unexpected row %+v", row)
	}
	if row.ExpiresAt == nil || *row.ExpiresAt != "2024-03-14T10:05:00Z" {
		t.Errorf("unexpected expires_at %v", row.ExpiresAt)
	}
}

type stubKioskFinder struct {
	find func(ctx context.Context, token string) (persistence.Kiosk, error)
}

func (s *stubKioskFinder) GetActiveKioskByToken(ctx context.Context, token string) (persistence.Kiosk, error) {
	return s.find(ctx, token)
}

func TestBoardHandler_List_KioskBanner(t *testing.T) {
	t.Parallel()

	service := &stubBoardService{
		board: func(context.Context, int) ([]application.BoardRow, error) {
			return nil, nil
		},
	}
	room := "Hallway B"
	kiosks := &stubKioskFinder{
		find: func(_ context.Context, token string) (persistence.Kiosk, error) {
			if token != "kiosk-token-1" {
				return persistence.Kiosk{}, persistence.ErrNotFound
			}
			return persistence.Kiosk{ID: "kiosk-1", Name: "East Wing", Room: &room}, nil
		},
	}

	router := NewRouter(RouterConfig{Board: NewBoardHandler(service, kiosks, nil)})

	req := httptest.NewRequest(http.MethodGet, "/board?token=kiosk-token-1", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var resp boardResponse
	decodeBody(t, recorder, &resp)
	if resp.Kiosk == nil || resp.Kiosk.Name != "East Wing" {
		t.Fatalf("expected kiosk banner, got %+v", resp.Kiosk)
	}

	// An unknown token keeps the display alive without a banner.
	req = httptest.NewRequest(http.MethodGet, "/board?token=stale", nil)
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200 for unknown token, got %d", recorder.Code)
	}
	resp = boardResponse{}
	decodeBody(t, recorder, &resp)
	if resp.Kiosk != nil {
		t.Errorf("expected no banner for unknown token, got %+v", resp.Kiosk)
	}
}

func TestBoardHandler_List_BadLimit(t *testing.T) {
	t.Parallel()

	service := &stubBoardService{
		board: func(context.Context, int) ([]application.BoardRow, error) {
			t.Fatal("service should not be called")
			return nil, nil
		},
	}

	router := NewRouter(RouterConfig{Board: NewBoardHandler(service, nil, nil)})
	req := httptest.NewRequest(http.MethodGet, "/board?limit=abc", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}

type stubAuthService struct {
	authenticate func(ctx context.Context, email, password string) (application.Session, error)
	revoke       func(ctx context.Context, token string) error
}

func (s *stubAuthService) Authenticate(ctx context.Context, email, password string) (application.Session, error) {
	return s.authenticate(ctx, email, password)
}

func (s *stubAuthService) RevokeSession(ctx context.Context, token string) error {
	return s.revoke(ctx, token)
}

func TestAuthHandler_CreateSession(t *testing.T) {
	t.Parallel()

	expires := time.Date(2024, 3, 14, 22, 0, 0, 0, time.UTC)
	service := &stubAuthService{
		authenticate: func(_ context.Context, email, password string) (application.Session, error) {
			if email != "teacher@school.test" || password != "secret" {
				return application.Session{}, application.ErrInvalidCredentials
			}
			return application.Session{Token: "token-1", UserID: "user-1", Role: application.RoleTeacher, ExpiresAt: expires}, nil
		},
	}

	router := NewRouter(RouterConfig{Auth: NewAuthHandler(service, nil)})
	body := `{"email":"Teacher@School.test","password":"secret"}`
	req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(body))
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if recorder.Header().Get("X-Session-Token") != "token-1" {
		t.Errorf("expected token header, got %q", recorder.Header().Get("X-Session-Token"))
	}

	var resp loginResponse
	decodeBody(t, recorder, &resp)
	if resp.Token != "token-1" || resp.Role != "Teacher" || resp.ExpiresAt != "2024-03-14T22:00:00Z" {
		t.Errorf("unexpected payload %+v", resp)
	}

	foundCookie := false
	for _, cookie := range recorder.Result().Cookies() {
		if cookie.Name == "session_token" && cookie.Value == "token-1" {
			foundCookie = true
		}
	}
	if !foundCookie {
		t.Errorf("expected session cookie to be set")
	}
}

func TestAuthHandler_CreateSession_InvalidCredentials(t *testing.T) {
	t.Parallel()

	service := &stubAuthService{
		authenticate: func(context.Context, string, string) (application.Session, error) {
			return application.Session{}, application.ErrInvalidCredentials
		},
	}

	router := NewRouter(RouterConfig{Auth: NewAuthHandler(service, nil)})
	req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{"email":"a@b.test","password":"x"}`))
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
	var resp errorResponse
	decodeBody(t, recorder, &resp)
	if resp.ErrorCode != "AUTH_INVALID_CREDENTIALS" {
		t.Errorf("expected AUTH_INVALID_CREDENTIALS, got %s", resp.ErrorCode)
	}
}

func TestAuthHandler_DeleteCurrentSession(t *testing.T) {
	t.Parallel()

	var revoked string
	service := &stubAuthService{
		revoke: func(_ context.Context, token string) error {
			revoked = token
			return nil
		},
	}

	router := NewRouter(RouterConfig{Auth: NewAuthHandler(service, nil)})
	req := httptest.NewRequest(http.MethodDelete, "/sessions/current", nil)
	req.Header.Set("Authorization", "Bearer token-9")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", recorder.Code)
	}
	if revoked != "token-9" {
		t.Errorf("expected token-9 revoked, got %q", revoked)
	}
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	service := &stubPassService{
		mine: func(context.Context, application.Principal) ([]application.PassDetail, error) {
			return nil, nil
		},
	}

	req := httptest.NewRequest(http.MethodDelete, "/passes", nil)
	recorder := httptest.NewRecorder()
	passRouter(service).ServeHTTP(recorder, req)

	if recorder.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", recorder.Code)
	}
	if allow := recorder.Header().Get("Allow"); !strings.Contains(allow, http.MethodPost) {
		t.Errorf("expected Allow header to include POST, got %q", allow)
	}
}

func TestResponder_UnknownErrorIsInternal(t *testing.T) {
	t.Parallel()

	service := &stubPassService{
		mine: func(context.Context, application.Principal) ([]application.PassDetail, error) {
			return nil, errors.New("disk on fire")
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/passes", nil)
	recorder := httptest.NewRecorder()
	passRouter(service).ServeHTTP(recorder, req)

	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", recorder.Code)
	}
	if strings.Contains(recorder.Body.String(), "disk on fire") {
		t.Errorf("internal error detail leaked to the client: %s", recorder.Body.String())
	}
}
