package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/example/hallpass/internal/application"
	"github.com/example/hallpass/internal/persistence"
)

type boardService interface {
	Board(ctx context.Context, limit int) ([]application.BoardRow, error)
}

type kioskFinder interface {
	GetActiveKioskByToken(ctx context.Context, token string) (persistence.Kiosk, error)
}

// BoardHandler serves the public hallway display. It requires no session; a
// kiosk may identify itself with its token to have its banner included.
type BoardHandler struct {
	service   boardService
	kiosks    kioskFinder
	responder responder
	logger    *slog.Logger
}

func NewBoardHandler(service boardService, kiosks kioskFinder, logger *slog.Logger) *BoardHandler {
	base := defaultLogger(logger)
	return &BoardHandler{service: service, kiosks: kiosks, responder: newResponder(base), logger: base}
}

func (h *BoardHandler) List(w http.ResponseWriter, r *http.Request) {
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

	rows, err := h.service.Board(r.Context(), limit)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	response := boardResponse{Rows: toBoardRowDTOs(rows)}
	if token := r.URL.Query().Get("token"); token != "" && h.kiosks != nil {
		// Unknown or revoked tokens just drop the banner; the display stays up.
		kiosk, err := h.kiosks.GetActiveKioskByToken(r.Context(), token)
		switch {
		case err == nil:
			response.Kiosk = &kioskBannerDTO{Name: kiosk.Name, Room: kiosk.Room}
		case !errors.Is(err, persistence.ErrNotFound):
			handlerLogger(r.Context(), h.logger, "BoardHandler", "List").WarnContext(r.Context(), "failed to resolve kiosk banner", "error", err)
		}
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, response)
}

type boardRowDTO struct {
	PassID           string   `json:"pass_id"`
	StudentName      string   `json:"student_name"`
	DestinationName  string   `json:"destination_name"`
	ApproverNames    []string `json:"approver_names,omitempty"`
	IssuedAt         *string  `json:"issued_at,omitempty"`
	ExpiresAt        *string  `json:"expires_at,omitempty"`
	RemainingSeconds int64    `json:"remaining_seconds"`
}

type kioskBannerDTO struct {
	Name string  `json:"name"`
	Room *string `json:"room,omitempty"`
}

type boardResponse struct {
	Rows  []boardRowDTO   `json:"rows"`
	Kiosk *kioskBannerDTO `json:"kiosk,omitempty"`
}

func toBoardRowDTOs(rows []application.BoardRow) []boardRowDTO {
	dtos := make([]boardRowDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, boardRowDTO{
			PassID:           row.Pass.ID,
			StudentName:      row.StudentName,
			DestinationName:  row.DestinationName,
			ApproverNames:    row.ApproverNames,
			IssuedAt:         formatOptionalTime(row.Pass.IssuedAt),
			ExpiresAt:        formatOptionalTime(row.Pass.ExpiresAt),
			RemainingSeconds: row.RemainingSeconds,
		})
	}
	return dtos
}
