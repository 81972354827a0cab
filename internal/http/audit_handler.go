package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/example/hallpass/internal/application"
)

type auditService interface {
	ListEntries(ctx context.Context, principal application.Principal, limit int) ([]application.AuditEntry, error)
}

type AuditHandler struct {
	service   auditService
	responder responder
}

func NewAuditHandler(service auditService, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{service: service, responder: newResponder(defaultLogger(logger))}
}

func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.responder.writeJSON(r.Context(), w, http.StatusBadRequest, errorResponse{Message: "limit must be a non-negative integer"})
			return
		}
		limit = parsed
	}

	principal, _ := PrincipalFromContext(r.Context())

	entries, err := h.service.ListEntries(r.Context(), principal, limit)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]auditEntryDTO, 0, len(entries))
	for _, entry := range entries {
		dtos = append(dtos, auditEntryDTO{
			ID:         entry.ID,
			ActorID:    entry.ActorID,
			Action:     entry.Action,
			TargetType: entry.TargetType,
			TargetID:   entry.TargetID,
			Message:    entry.Message,
			CreatedAt:  formatTime(entry.CreatedAt),
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listAuditResponse{Entries: dtos})
}

type auditEntryDTO struct {
	ID         string  `json:"id"`
	ActorID    *string `json:"actor_id,omitempty"`
	Action     string  `json:"action"`
	TargetType string  `json:"target_type"`
	TargetID   *string `json:"target_id,omitempty"`
	Message    *string `json:"message,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

type listAuditResponse struct {
	Entries []auditEntryDTO `json:"entries"`
}
