package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/hallpass/internal/application"
)

type passService interface {
	Request(ctx context.Context, params application.RequestPassParams) (application.Pass, error)
	Approve(ctx context.Context, params application.ApprovePassParams) (application.Pass, error)
	Deny(ctx context.Context, params application.DenyPassParams) (application.Pass, error)
	Cancel(ctx context.Context, params application.CancelPassParams) (application.Pass, error)
	Extend(ctx context.Context, params application.ExtendPassParams) (application.Pass, error)
	Archive(ctx context.Context, principal application.Principal, passID string) (application.Pass, error)
	Get(ctx context.Context, principal application.Principal, passID string) (application.PassDetail, error)
	Mine(ctx context.Context, principal application.Principal) ([]application.PassDetail, error)
	Queue(ctx context.Context, principal application.Principal, periodID string) ([]application.PassDetail, error)
	ListOverrides(ctx context.Context, principal application.Principal, passID string) ([]application.Override, error)
}

type PassHandler struct {
	service   passService
	responder responder
	logger    *slog.Logger
}

func NewPassHandler(service passService, logger *slog.Logger) *PassHandler {
	base := defaultLogger(logger)
	return &PassHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *PassHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "PassHandler", operation, attrs...)
}

// Create handles a student's pass request.
func (h *PassHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req passRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	pass, err := h.service.Request(r.Context(), application.RequestPassParams{
		Principal: principal,
		Input: application.RequestPassInput{
			DestinationID: req.DestinationID,
			PeriodID:      req.PeriodID,
			KioskToken:    req.KioskToken,
		},
	})
	if err != nil {
		h.log(r.Context(), "Create", "error_kind", application.ErrorKind(err)).ErrorContext(r.Context(), "pass request rejected", "error", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Create", "pass_id", pass.ID).InfoContext(r.Context(), "pass requested")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toPassDTO(pass))
}

// List returns the caller's own passes.
func (h *PassHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	details, err := h.service.Mine(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listPassesResponse{Passes: toPassDetailDTOs(details)})
}

// Queue returns the open passes assigned to the calling approver, optionally
// narrowed to one period's roster.
func (h *PassHandler) Queue(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	details, err := h.service.Queue(r.Context(), principal, r.URL.Query().Get("period_id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listPassesResponse{Passes: toPassDetailDTOs(details)})
}

// Get returns one pass with its timer and approvers.
func (h *PassHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	passID, ok := PassIDFromContext(r.Context())
	if !ok || passID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidPassID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	detail, err := h.service.Get(r.Context(), principal, passID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toPassDetailDTO(detail))
}

// Approve activates a pending pass, starting its timer.
func (h *PassHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "Approve", func(ctx context.Context, principal application.Principal, passID string) (application.Pass, error) {
		return h.service.Approve(ctx, application.ApprovePassParams{Principal: principal, PassID: passID})
	})
}

// Deny rejects a pending pass.
func (h *PassHandler) Deny(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "Deny", func(ctx context.Context, principal application.Principal, passID string) (application.Pass, error) {
		return h.service.Deny(ctx, application.DenyPassParams{Principal: principal, PassID: passID})
	})
}

// Cancel withdraws a pending or active pass.
func (h *PassHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "Cancel", func(ctx context.Context, principal application.Principal, passID string) (application.Pass, error) {
		return h.service.Cancel(ctx, application.CancelPassParams{Principal: principal, PassID: passID})
	})
}

// Archive moves a terminal pass out of the day-to-day views.
func (h *PassHandler) Archive(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "Archive", func(ctx context.Context, principal application.Principal, passID string) (application.Pass, error) {
		return h.service.Archive(ctx, principal, passID)
	})
}

// Extend pushes the deadline of an active pass further out.
func (h *PassHandler) Extend(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	passID, ok := PassIDFromContext(r.Context())
	if !ok || passID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidPassID)
		return
	}

	var req extendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	pass, err := h.service.Extend(r.Context(), application.ExtendPassParams{
		Principal: principal,
		PassID:    passID,
		Input: application.ExtendPassInput{
			AdditionalMinutes: req.AddMinutes,
			Reason:            req.Reason,
		},
	})
	if err != nil {
		h.log(r.Context(), "Extend", "pass_id", passID, "error_kind", application.ErrorKind(err)).ErrorContext(r.Context(), "extension rejected", "error", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Extend", "pass_id", passID).InfoContext(r.Context(), "pass extended")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toPassDTO(pass))
}

// Overrides returns the extension ledger of one pass.
func (h *PassHandler) Overrides(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	passID, ok := PassIDFromContext(r.Context())
	if !ok || passID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidPassID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	overrides, err := h.service.ListOverrides(r.Context(), principal, passID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listOverridesResponse{Overrides: toOverrideDTOs(overrides)})
}

func (h *PassHandler) lifecycle(w http.ResponseWriter, r *http.Request, operation string, call func(context.Context, application.Principal, string) (application.Pass, error)) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	passID, ok := PassIDFromContext(r.Context())
	if !ok || passID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidPassID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	pass, err := call(r.Context(), principal, passID)
	if err != nil {
		h.log(r.Context(), operation, "pass_id", passID, "error_kind", application.ErrorKind(err)).ErrorContext(r.Context(), "lifecycle operation rejected", "error", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), operation, "pass_id", passID, "state", string(pass.State)).InfoContext(r.Context(), "lifecycle operation applied")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toPassDTO(pass))
}

type passRequest struct {
	DestinationID string `json:"destination_id"`
	PeriodID      string `json:"period_id,omitempty"`
	KioskToken    string `json:"kiosk_token,omitempty"`
}

type extendRequest struct {
	AddMinutes int    `json:"add_minutes"`
	Reason     string `json:"reason,omitempty"`
}

type passDTO struct {
	ID            string  `json:"id"`
	StudentID     string  `json:"student_id"`
	DestinationID string  `json:"destination_id"`
	State         string  `json:"state"`
	IssuedAt      *string `json:"issued_at,omitempty"`
	ExpiresAt     *string `json:"expires_at,omitempty"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

type passDetailDTO struct {
	passDTO
	RemainingSeconds int64    `json:"remaining_seconds"`
	ApproverIDs      []string `json:"approver_ids,omitempty"`
}

type overrideDTO struct {
	ID                string  `json:"id"`
	PassID            string  `json:"pass_id"`
	PerformedByID     string  `json:"performed_by_id"`
	PreviousExpiresAt string  `json:"previous_expires_at"`
	NewExpiresAt      string  `json:"new_expires_at"`
	Reason            *string `json:"reason,omitempty"`
	CreatedAt         string  `json:"created_at"`
}

type listPassesResponse struct {
	Passes []passDetailDTO `json:"passes"`
}

type listOverridesResponse struct {
	Overrides []overrideDTO `json:"overrides"`
}

func toPassDTO(pass application.Pass) passDTO {
	return passDTO{
		ID:            pass.ID,
		StudentID:     pass.StudentID,
		DestinationID: pass.DestinationID,
		State:         string(pass.State),
		IssuedAt:      formatOptionalTime(pass.IssuedAt),
		ExpiresAt:     formatOptionalTime(pass.ExpiresAt),
		CreatedAt:     formatTime(pass.CreatedAt),
		UpdatedAt:     formatTime(pass.UpdatedAt),
	}
}

func toPassDetailDTO(detail application.PassDetail) passDetailDTO {
	return passDetailDTO{
		passDTO:          toPassDTO(detail.Pass),
		RemainingSeconds: detail.RemainingSeconds,
		ApproverIDs:      detail.ApproverIDs,
	}
}

func toPassDetailDTOs(details []application.PassDetail) []passDetailDTO {
	dtos := make([]passDetailDTO, 0, len(details))
	for _, detail := range details {
		dtos = append(dtos, toPassDetailDTO(detail))
	}
	return dtos
}

func toOverrideDTOs(overrides []application.Override) []overrideDTO {
	dtos := make([]overrideDTO, 0, len(overrides))
	for _, override := range overrides {
		dtos = append(dtos, overrideDTO{
			ID:                override.ID,
			PassID:            override.PassID,
			PerformedByID:     override.PerformedByID,
			PreviousExpiresAt: formatTime(override.PreviousExpiresAt),
			NewExpiresAt:      formatTime(override.NewExpiresAt),
			Reason:            override.Reason,
			CreatedAt:         formatTime(override.CreatedAt),
		})
	}
	return dtos
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatOptionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := formatTime(*t)
	return &formatted
}
