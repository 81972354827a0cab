package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/example/hallpass/internal/application"
	"github.com/example/hallpass/internal/persistence"
)

type settingsService interface {
	ListSettings(ctx context.Context, principal application.Principal) ([]persistence.Setting, error)
	UpdateSetting(ctx context.Context, principal application.Principal, key, value string) error
}

type SettingsHandler struct {
	service   settingsService
	responder responder
	logger    *slog.Logger
}

func NewSettingsHandler(service settingsService, logger *slog.Logger) *SettingsHandler {
	base := defaultLogger(logger)
	return &SettingsHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *SettingsHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	settings, err := h.service.ListSettings(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]settingDTO, 0, len(settings))
	for _, setting := range settings {
		dtos = append(dtos, settingDTO{Key: setting.Key, Value: setting.Value})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listSettingsResponse{Settings: dtos})
}

func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	key, ok := ResourceIDFromContext(r.Context())
	if !ok || key == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidResourceID)
		return
	}

	var req settingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	if err := h.service.UpdateSetting(r.Context(), principal, key, req.Value); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	handlerLogger(r.Context(), h.logger, "SettingsHandler", "Update", "key", key).InfoContext(r.Context(), "setting updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, settingDTO{Key: key, Value: req.Value})
}

type settingRequest struct {
	Value string `json:"value"`
}

type settingDTO struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type listSettingsResponse struct {
	Settings []settingDTO `json:"settings"`
}
