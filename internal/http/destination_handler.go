package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/example/hallpass/internal/application"
)

type catalogService interface {
	CreateDestination(ctx context.Context, principal application.Principal, input application.DestinationInput) (application.Destination, error)
	UpdateDestination(ctx context.Context, principal application.Principal, id string, input application.DestinationInput) (application.Destination, error)
	ListDestinations(ctx context.Context) ([]application.Destination, error)
}

type DestinationHandler struct {
	service   catalogService
	responder responder
}

func NewDestinationHandler(service catalogService, logger *slog.Logger) *DestinationHandler {
	return &DestinationHandler{service: service, responder: newResponder(defaultLogger(logger))}
}

func (h *DestinationHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req destinationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	destination, err := h.service.CreateDestination(r.Context(), principal, req.toInput())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toDestinationDTO(destination))
}

func (h *DestinationHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id, ok := ResourceIDFromContext(r.Context())
	if !ok || id == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidResourceID)
		return
	}

	var req destinationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	destination, err := h.service.UpdateDestination(r.Context(), principal, id, req.toInput())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toDestinationDTO(destination))
}

func (h *DestinationHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	destinations, err := h.service.ListDestinations(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]destinationDTO, 0, len(destinations))
	for _, destination := range destinations {
		dtos = append(dtos, toDestinationDTO(destination))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listDestinationsResponse{Destinations: dtos})
}

type destinationRequest struct {
	Name           string `json:"name"`
	DefaultMinutes int    `json:"default_minutes"`
	MaxConcurrent  int    `json:"max_concurrent"`
}

func (r destinationRequest) toInput() application.DestinationInput {
	return application.DestinationInput{
		Name:           r.Name,
		DefaultMinutes: r.DefaultMinutes,
		MaxConcurrent:  r.MaxConcurrent,
	}
}

type destinationDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	DefaultMinutes int    `json:"default_minutes"`
	MaxConcurrent  int    `json:"max_concurrent"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

type listDestinationsResponse struct {
	Destinations []destinationDTO `json:"destinations"`
}

func toDestinationDTO(destination application.Destination) destinationDTO {
	return destinationDTO{
		ID:             destination.ID,
		Name:           destination.Name,
		DefaultMinutes: destination.DefaultMinutes,
		MaxConcurrent:  destination.MaxConcurrent,
		CreatedAt:      formatTime(destination.CreatedAt),
		UpdatedAt:      formatTime(destination.UpdatedAt),
	}
}
