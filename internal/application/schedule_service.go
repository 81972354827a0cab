package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/hallpass/internal/persistence"
)

// SchedulePeriod is the application view of a recurring time block.
type SchedulePeriod struct {
	ID        string
	Name      string
	TeacherID string
	StartTime string
	EndTime   string
	DaysMask  string
	Room      *string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func periodFromRecord(record persistence.SchedulePeriod) SchedulePeriod {
	return SchedulePeriod{
		ID:        record.ID,
		Name:      record.Name,
		TeacherID: record.TeacherID,
		StartTime: record.StartTime,
		EndTime:   record.EndTime,
		DaysMask:  record.DaysMask,
		Room:      record.Room,
		Active:    record.Active,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
}

// Enrollment is the application view of a student-period binding.
type Enrollment struct {
	ID        string
	StudentID string
	PeriodID  string
	Active    bool
	CreatedAt time.Time
}

// PeriodInput carries the caller-supplied period fields. Window strings are
// stored verbatim; malformed ones later parse as an always-open window.
type PeriodInput struct {
	Name      string
	TeacherID string
	StartTime string
	EndTime   string
	DaysMask  string
	Room      string
	Active    bool
}

// SchedulePeriodStore captures the persistence operations needed by the
// schedule service.
type SchedulePeriodStore interface {
	CreatePeriod(ctx context.Context, period persistence.SchedulePeriod) error
	UpdatePeriod(ctx context.Context, period persistence.SchedulePeriod) error
	GetPeriod(ctx context.Context, id string) (persistence.SchedulePeriod, error)
	ListPeriods(ctx context.Context) ([]persistence.SchedulePeriod, error)
	AddEnrollment(ctx context.Context, enrollment persistence.Enrollment) error
	RemoveEnrollment(ctx context.Context, id string) error
	ListEnrollments(ctx context.Context, periodID string) ([]persistence.Enrollment, error)
}

// ScheduleService manages periods and enrollments for administrators.
type ScheduleService struct {
	periods     SchedulePeriodStore
	users       ResolverUserStore
	audit       SettingsAuditStore
	idGenerator func() string
	logger      *slog.Logger
}

// NewScheduleService wires dependencies for the schedule service.
func NewScheduleService(periods SchedulePeriodStore, users ResolverUserStore, audit SettingsAuditStore, idGenerator func() string, logger *slog.Logger) *ScheduleService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	return &ScheduleService{
		periods:     periods,
		users:       users,
		audit:       audit,
		idGenerator: idGenerator,
		logger:      defaultLogger(logger),
	}
}

// CreatePeriod persists a new schedule period for administrators.
func (s *ScheduleService) CreatePeriod(ctx context.Context, principal Principal, input PeriodInput) (SchedulePeriod, error) {
	if !principal.IsAdmin() {
		return SchedulePeriod{}, ErrUnauthorized
	}

	input.Name = strings.TrimSpace(input.Name)
	vErr := s.validatePeriodInput(ctx, input)
	if vErr.HasErrors() {
		return SchedulePeriod{}, vErr
	}

	record := persistence.SchedulePeriod{
		ID:        s.idGenerator(),
		Name:      input.Name,
		TeacherID: input.TeacherID,
		StartTime: input.StartTime,
		EndTime:   input.EndTime,
		DaysMask:  input.DaysMask,
		Active:    input.Active,
	}
	if input.Room != "" {
		room := input.Room
		record.Room = &room
	}

	if err := s.periods.CreatePeriod(ctx, record); err != nil {
		return SchedulePeriod{}, mapStoreError(err)
	}

	s.appendAudit(ctx, principal, "period.created", "period", record.ID)
	return periodFromRecord(record), nil
}

// UpdatePeriod updates an existing schedule period for administrators.
func (s *ScheduleService) UpdatePeriod(ctx context.Context, principal Principal, id string, input PeriodInput) (SchedulePeriod, error) {
	if !principal.IsAdmin() {
		return SchedulePeriod{}, ErrUnauthorized
	}

	existing, err := s.periods.GetPeriod(ctx, id)
	if err != nil {
		return SchedulePeriod{}, mapStoreError(err)
	}

	input.Name = strings.TrimSpace(input.Name)
	vErr := s.validatePeriodInput(ctx, input)
	if vErr.HasErrors() {
		return SchedulePeriod{}, vErr
	}

	updated := existing
	updated.Name = input.Name
	updated.TeacherID = input.TeacherID
	updated.StartTime = input.StartTime
	updated.EndTime = input.EndTime
	updated.DaysMask = input.DaysMask
	updated.Active = input.Active
	updated.Room = nil
	if input.Room != "" {
		room := input.Room
		updated.Room = &room
	}

	if err := s.periods.UpdatePeriod(ctx, updated); err != nil {
		return SchedulePeriod{}, mapStoreError(err)
	}

	s.appendAudit(ctx, principal, "period.updated", "period", updated.ID)
	return periodFromRecord(updated), nil
}

// ListPeriods returns every schedule period for administrators and teachers.
func (s *ScheduleService) ListPeriods(ctx context.Context, principal Principal) ([]SchedulePeriod, error) {
	if !principal.CanApprove() {
		return nil, ErrUnauthorized
	}

	records, err := s.periods.ListPeriods(ctx)
	if err != nil {
		return nil, err
	}

	periods := make([]SchedulePeriod, 0, len(records))
	for _, record := range records {
		periods = append(periods, periodFromRecord(record))
	}
	return periods, nil
}

// Enroll binds a student to a period for administrators.
func (s *ScheduleService) Enroll(ctx context.Context, principal Principal, studentID, periodID string) (Enrollment, error) {
	if !principal.IsAdmin() {
		return Enrollment{}, ErrUnauthorized
	}

	vErr := &ValidationError{}
	student, err := s.users.GetUser(ctx, studentID)
	if err != nil {
		if !errors.Is(err, persistence.ErrNotFound) {
			return Enrollment{}, fmt.Errorf("failed to load student: %w", err)
		}
		vErr.add("student_id", "unknown student")
	} else if student.Role != string(RoleStudent) {
		vErr.add("student_id", "must reference a student account")
	}
	if _, err := s.periods.GetPeriod(ctx, periodID); err != nil {
		if !errors.Is(err, persistence.ErrNotFound) {
			return Enrollment{}, fmt.Errorf("failed to load period: %w", err)
		}
		vErr.add("period_id", "unknown period")
	}
	if vErr.HasErrors() {
		return Enrollment{}, vErr
	}

	record := persistence.Enrollment{
		ID:        s.idGenerator(),
		StudentID: studentID,
		PeriodID:  periodID,
		Active:    true,
	}
	if err := s.periods.AddEnrollment(ctx, record); err != nil {
		return Enrollment{}, mapStoreError(err)
	}

	s.appendAudit(ctx, principal, "enrollment.created", "enrollment", record.ID)
	return Enrollment{
		ID:        record.ID,
		StudentID: record.StudentID,
		PeriodID:  record.PeriodID,
		Active:    record.Active,
		CreatedAt: record.CreatedAt,
	}, nil
}

// Unenroll removes an enrollment for administrators.
func (s *ScheduleService) Unenroll(ctx context.Context, principal Principal, enrollmentID string) error {
	if !principal.IsAdmin() {
		return ErrUnauthorized
	}

	if err := s.periods.RemoveEnrollment(ctx, enrollmentID); err != nil {
		return mapStoreError(err)
	}

	s.appendAudit(ctx, principal, "enrollment.removed", "enrollment", enrollmentID)
	return nil
}

// ListEnrollments returns the enrollments of a period for administrators and
// teachers.
func (s *ScheduleService) ListEnrollments(ctx context.Context, principal Principal, periodID string) ([]Enrollment, error) {
	if !principal.CanApprove() {
		return nil, ErrUnauthorized
	}

	records, err := s.periods.ListEnrollments(ctx, periodID)
	if err != nil {
		return nil, err
	}

	enrollments := make([]Enrollment, 0, len(records))
	for _, record := range records {
		enrollments = append(enrollments, Enrollment{
			ID:        record.ID,
			StudentID: record.StudentID,
			PeriodID:  record.PeriodID,
			Active:    record.Active,
			CreatedAt: record.CreatedAt,
		})
	}
	return enrollments, nil
}

func (s *ScheduleService) validatePeriodInput(ctx context.Context, input PeriodInput) *ValidationError {
	vErr := &ValidationError{}
	if input.Name == "" {
		vErr.add("name", "required")
	}
	if input.TeacherID == "" {
		vErr.add("teacher_id", "required")
		return vErr
	}

	teacher, err := s.users.GetUser(ctx, input.TeacherID)
	if err != nil {
		vErr.add("teacher_id", "unknown teacher")
		return vErr
	}
	if teacher.Role != string(RoleTeacher) {
		vErr.add("teacher_id", "must reference a teacher account")
	}
	return vErr
}

func (s *ScheduleService) appendAudit(ctx context.Context, principal Principal, action, targetType, targetID string) {
	if s.audit == nil {
		return
	}
	actorID := principal.UserID
	target := targetID
	err := s.audit.AppendEntry(ctx, persistence.AuditEntry{
		ID:         s.idGenerator(),
		ActorID:    &actorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   &target,
	})
	if err != nil {
		serviceLogger(ctx, s.logger, "schedule", action).Warn("failed to append audit entry", "error", err)
	}
}
