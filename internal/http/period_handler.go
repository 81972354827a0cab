package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/example/hallpass/internal/application"
)

type scheduleService interface {
	CreatePeriod(ctx context.Context, principal application.Principal, input application.PeriodInput) (application.SchedulePeriod, error)
	UpdatePeriod(ctx context.Context, principal application.Principal, id string, input application.PeriodInput) (application.SchedulePeriod, error)
	ListPeriods(ctx context.Context, principal application.Principal) ([]application.SchedulePeriod, error)
	Enroll(ctx context.Context, principal application.Principal, studentID, periodID string) (application.Enrollment, error)
	Unenroll(ctx context.Context, principal application.Principal, enrollmentID string) error
	ListEnrollments(ctx context.Context, principal application.Principal, periodID string) ([]application.Enrollment, error)
}

type PeriodHandler struct {
	service   scheduleService
	responder responder
}

func NewPeriodHandler(service scheduleService, logger *slog.Logger) *PeriodHandler {
	return &PeriodHandler{service: service, responder: newResponder(defaultLogger(logger))}
}

func (h *PeriodHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req periodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	period, err := h.service.CreatePeriod(r.Context(), principal, req.toInput())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toPeriodDTO(period))
}

func (h *PeriodHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id, ok := ResourceIDFromContext(r.Context())
	if !ok || id == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidResourceID)
		return
	}

	var req periodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	period, err := h.service.UpdatePeriod(r.Context(), principal, id, req.toInput())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toPeriodDTO(period))
}

func (h *PeriodHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	periods, err := h.service.ListPeriods(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]periodDTO, 0, len(periods))
	for _, period := range periods {
		dtos = append(dtos, toPeriodDTO(period))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listPeriodsResponse{Periods: dtos})
}

func (h *PeriodHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	periodID, ok := ResourceIDFromContext(r.Context())
	if !ok || periodID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidResourceID)
		return
	}

	var req enrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	enrollment, err := h.service.Enroll(r.Context(), principal, req.StudentID, periodID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toEnrollmentDTO(enrollment))
}

func (h *PeriodHandler) ListEnrollments(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	periodID, ok := ResourceIDFromContext(r.Context())
	if !ok || periodID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidResourceID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	enrollments, err := h.service.ListEnrollments(r.Context(), principal, periodID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]enrollmentDTO, 0, len(enrollments))
	for _, enrollment := range enrollments {
		dtos = append(dtos, toEnrollmentDTO(enrollment))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listEnrollmentsResponse{Enrollments: dtos})
}

func (h *PeriodHandler) Unenroll(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	enrollmentID, ok := ResourceIDFromContext(r.Context())
	if !ok || enrollmentID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidResourceID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	if err := h.service.Unenroll(r.Context(), principal, enrollmentID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type periodRequest struct {
	Name      string `json:"name"`
	TeacherID string `json:"teacher_id"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
	DaysMask  string `json:"days_mask,omitempty"`
	Room      string `json:"room,omitempty"`
	Active    bool   `json:"active"`
}

func (r periodRequest) toInput() application.PeriodInput {
	return application.PeriodInput{
		Name:      r.Name,
		TeacherID: r.TeacherID,
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
		DaysMask:  r.DaysMask,
		Room:      r.Room,
		Active:    r.Active,
	}
}

type enrollRequest struct {
	StudentID string `json:"student_id"`
}

type periodDTO struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	TeacherID string  `json:"teacher_id"`
	StartTime string  `json:"start_time,omitempty"`
	EndTime   string  `json:"end_time,omitempty"`
	DaysMask  string  `json:"days_mask,omitempty"`
	Room      *string `json:"room,omitempty"`
	Active    bool    `json:"active"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

type enrollmentDTO struct {
	ID        string `json:"id"`
	StudentID string `json:"student_id"`
	PeriodID  string `json:"period_id"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
}

type listPeriodsResponse struct {
	Periods []periodDTO `json:"periods"`
}

type listEnrollmentsResponse struct {
	Enrollments []enrollmentDTO `json:"enrollments"`
}

func toPeriodDTO(period application.SchedulePeriod) periodDTO {
	return periodDTO{
		ID:        period.ID,
		Name:      period.Name,
		TeacherID: period.TeacherID,
		StartTime: period.StartTime,
		EndTime:   period.EndTime,
		DaysMask:  period.DaysMask,
		Room:      period.Room,
		Active:    period.Active,
		CreatedAt: formatTime(period.CreatedAt),
		UpdatedAt: formatTime(period.UpdatedAt),
	}
}

func toEnrollmentDTO(enrollment application.Enrollment) enrollmentDTO {
	return enrollmentDTO{
		ID:        enrollment.ID,
		StudentID: enrollment.StudentID,
		PeriodID:  enrollment.PeriodID,
		Active:    enrollment.Active,
		CreatedAt: formatTime(enrollment.CreatedAt),
	}
}
