package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/example/hallpass/internal/application"
)

type kioskService interface {
	CreateKiosk(ctx context.Context, principal application.Principal, input application.KioskInput) (application.Kiosk, error)
	UpdateKiosk(ctx context.Context, principal application.Principal, id string, input application.KioskInput) (application.Kiosk, error)
	RotateToken(ctx context.Context, principal application.Principal, id string) (application.Kiosk, error)
	ListKiosks(ctx context.Context, principal application.Principal) ([]application.Kiosk, error)
}

type KioskHandler struct {
	service   kioskService
	responder responder
	logger    *slog.Logger
}

func NewKioskHandler(service kioskService, logger *slog.Logger) *KioskHandler {
	base := defaultLogger(logger)
	return &KioskHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *KioskHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req kioskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	kiosk, err := h.service.CreateKiosk(r.Context(), principal, req.toInput())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toKioskDTO(kiosk))
}

func (h *KioskHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id, ok := ResourceIDFromContext(r.Context())
	if !ok || id == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidResourceID)
		return
	}

	var req kioskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	kiosk, err := h.service.UpdateKiosk(r.Context(), principal, id, req.toInput())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toKioskDTO(kiosk))
}

func (h *KioskHandler) RotateToken(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id, ok := ResourceIDFromContext(r.Context())
	if !ok || id == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidResourceID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	kiosk, err := h.service.RotateToken(r.Context(), principal, id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	handlerLogger(r.Context(), h.logger, "KioskHandler", "RotateToken", "kiosk_id", id).InfoContext(r.Context(), "kiosk token rotated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toKioskDTO(kiosk))
}

func (h *KioskHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	kiosks, err := h.service.ListKiosks(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]kioskDTO, 0, len(kiosks))
	for _, kiosk := range kiosks {
		dtos = append(dtos, toKioskDTO(kiosk))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listKiosksResponse{Kiosks: dtos})
}

type kioskRequest struct {
	Name      string `json:"name"`
	Room      string `json:"room,omitempty"`
	PeriodID  string `json:"period_id,omitempty"`
	TeacherID string `json:"teacher_id,omitempty"`
	Active    bool   `json:"active"`
}

func (r kioskRequest) toInput() application.KioskInput {
	return application.KioskInput{
		Name:      r.Name,
		Room:      r.Room,
		PeriodID:  r.PeriodID,
		TeacherID: r.TeacherID,
		Active:    r.Active,
	}
}

type kioskDTO struct {
	ID        string  `json:"id"`
	Token     string  `json:"token"`
	Name      string  `json:"name"`
	Room      *string `json:"room,omitempty"`
	PeriodID  *string `json:"period_id,omitempty"`
	TeacherID *string `json:"teacher_id,omitempty"`
	Active    bool    `json:"active"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

type listKiosksResponse struct {
	Kiosks []kioskDTO `json:"kiosks"`
}

func toKioskDTO(kiosk application.Kiosk) kioskDTO {
	return kioskDTO{
		ID:        kiosk.ID,
		Token:     kiosk.Token,
		Name:      kiosk.Name,
		Room:      kiosk.Room,
		PeriodID:  kiosk.PeriodID,
		TeacherID: kiosk.TeacherID,
		Active:    kiosk.Active,
		CreatedAt: formatTime(kiosk.CreatedAt),
		UpdatedAt: formatTime(kiosk.UpdatedAt),
	}
}
