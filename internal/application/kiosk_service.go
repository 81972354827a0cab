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

// Kiosk is the application view of a kiosk station.
type Kiosk struct {
	ID        string
	Token     string
	Name      string
	Room      *string
	PeriodID  *string
	TeacherID *string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func kioskFromRecord(record persistence.Kiosk) Kiosk {
	return Kiosk{
		ID:        record.ID,
		Token:     record.Token,
		Name:      record.Name,
		Room:      record.Room,
		PeriodID:  record.PeriodID,
		TeacherID: record.TeacherID,
		Active:    record.Active,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
}

// KioskInput carries the caller-supplied kiosk fields. A kiosk binds to at
// most one of a period or a teacher.
type KioskInput struct {
	Name      string
	Room      string
	PeriodID  string
	TeacherID string
	Active    bool
}

// KioskStore captures the persistence operations needed by the kiosk service.
type KioskStore interface {
	CreateKiosk(ctx context.Context, kiosk persistence.Kiosk) error
	UpdateKiosk(ctx context.Context, kiosk persistence.Kiosk) error
	GetKiosk(ctx context.Context, id string) (persistence.Kiosk, error)
	ListKiosks(ctx context.Context) ([]persistence.Kiosk, error)
}

// KioskService manages kiosk stations and their tokens for administrators.
type KioskService struct {
	kiosks         KioskStore
	periods        ResolverPeriodStore
	users          ResolverUserStore
	audit          SettingsAuditStore
	idGenerator    func() string
	tokenGenerator func() string
	logger         *slog.Logger
}

// NewKioskService wires dependencies for the kiosk service.
func NewKioskService(
	kiosks KioskStore,
	periods ResolverPeriodStore,
	users ResolverUserStore,
	audit SettingsAuditStore,
	idGenerator func() string,
	tokenGenerator func() string,
	logger *slog.Logger,
) *KioskService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if tokenGenerator == nil {
		tokenGenerator = idGenerator
	}
	return &KioskService{
		kiosks:         kiosks,
		periods:        periods,
		users:          users,
		audit:          audit,
		idGenerator:    idGenerator,
		tokenGenerator: tokenGenerator,
		logger:         defaultLogger(logger),
	}
}

// CreateKiosk persists a new kiosk with a fresh token.
func (s *KioskService) CreateKiosk(ctx context.Context, principal Principal, input KioskInput) (Kiosk, error) {
	if !principal.IsAdmin() {
		return Kiosk{}, ErrUnauthorized
	}

	input.Name = strings.TrimSpace(input.Name)
	vErr, err := s.validateKioskInput(ctx, input)
	if err != nil {
		return Kiosk{}, err
	}
	if vErr.HasErrors() {
		return Kiosk{}, vErr
	}

	record := persistence.Kiosk{
		ID:     s.idGenerator(),
		Token:  s.tokenGenerator(),
		Name:   input.Name,
		Active: input.Active,
	}
	applyKioskBindings(&record, input)

	if err := s.kiosks.CreateKiosk(ctx, record); err != nil {
		return Kiosk{}, mapStoreError(err)
	}

	s.appendAudit(ctx, principal, "kiosk.created", record.ID)
	return kioskFromRecord(record), nil
}

// UpdateKiosk updates a kiosk's name, bindings and active flag.
func (s *KioskService) UpdateKiosk(ctx context.Context, principal Principal, id string, input KioskInput) (Kiosk, error) {
	if !principal.IsAdmin() {
		return Kiosk{}, ErrUnauthorized
	}

	existing, err := s.kiosks.GetKiosk(ctx, id)
	if err != nil {
		return Kiosk{}, mapStoreError(err)
	}

	input.Name = strings.TrimSpace(input.Name)
	vErr, err := s.validateKioskInput(ctx, input)
	if err != nil {
		return Kiosk{}, err
	}
	if vErr.HasErrors() {
		return Kiosk{}, vErr
	}

	updated := existing
	updated.Name = input.Name
	updated.Active = input.Active
	updated.Room = nil
	updated.PeriodID = nil
	updated.TeacherID = nil
	applyKioskBindings(&updated, input)

	if err := s.kiosks.UpdateKiosk(ctx, updated); err != nil {
		return Kiosk{}, mapStoreError(err)
	}

	s.appendAudit(ctx, principal, "kiosk.updated", updated.ID)
	return kioskFromRecord(updated), nil
}

// RotateToken replaces the kiosk's token, invalidating the previous one.
func (s *KioskService) RotateToken(ctx context.Context, principal Principal, id string) (Kiosk, error) {
	if !principal.IsAdmin() {
		return Kiosk{}, ErrUnauthorized
	}

	existing, err := s.kiosks.GetKiosk(ctx, id)
	if err != nil {
		return Kiosk{}, mapStoreError(err)
	}

	existing.Token = s.tokenGenerator()
	if err := s.kiosks.UpdateKiosk(ctx, existing); err != nil {
		return Kiosk{}, mapStoreError(err)
	}

	s.appendAudit(ctx, principal, "kiosk.token_rotated", existing.ID)
	serviceLogger(ctx, s.logger, "kiosk", "rotate_token", "kiosk_id", existing.ID).Info("kiosk token rotated")
	return kioskFromRecord(existing), nil
}

// ListKiosks returns every kiosk for administrators.
func (s *KioskService) ListKiosks(ctx context.Context, principal Principal) ([]Kiosk, error) {
	if !principal.IsAdmin() {
		return nil, ErrUnauthorized
	}

	records, err := s.kiosks.ListKiosks(ctx)
	if err != nil {
		return nil, err
	}

	kiosks := make([]Kiosk, 0, len(records))
	for _, record := range records {
		kiosks = append(kiosks, kioskFromRecord(record))
	}
	return kiosks, nil
}

func (s *KioskService) validateKioskInput(ctx context.Context, input KioskInput) (*ValidationError, error) {
	vErr := &ValidationError{}
	if input.Name == "" {
		vErr.add("name", "required")
	}
	if input.PeriodID != "" && input.TeacherID != "" {
		vErr.add("period_id", "bind to a period or a teacher, not both")
		return vErr, nil
	}

	if input.PeriodID != "" {
		if _, err := s.periods.GetPeriod(ctx, input.PeriodID); err != nil {
			if !errors.Is(err, persistence.ErrNotFound) {
				return nil, fmt.Errorf("failed to load period: %w", err)
			}
			vErr.add("period_id", "unknown period")
		}
	}
	if input.TeacherID != "" {
		teacher, err := s.users.GetUser(ctx, input.TeacherID)
		if err != nil {
			if !errors.Is(err, persistence.ErrNotFound) {
				return nil, fmt.Errorf("failed to load teacher: %w", err)
			}
			vErr.add("teacher_id", "unknown teacher")
		} else if teacher.Role != string(RoleTeacher) {
			vErr.add("teacher_id", "must reference a teacher account")
		}
	}
	return vErr, nil
}

func applyKioskBindings(record *persistence.Kiosk, input KioskInput) {
	if input.Room != "" {
		room := input.Room
		record.Room = &room
	}
	if input.PeriodID != "" {
		periodID := input.PeriodID
		record.PeriodID = &periodID
	}
	if input.TeacherID != "" {
		teacherID := input.TeacherID
		record.TeacherID = &teacherID
	}
}

func (s *KioskService) appendAudit(ctx context.Context, principal Principal, action, targetID string) {
	if s.audit == nil {
		return
	}
	actorID := principal.UserID
	target := targetID
	err := s.audit.AppendEntry(ctx, persistence.AuditEntry{
		ID:         s.idGenerator(),
		ActorID:    &actorID,
		Action:     action,
		TargetType: "kiosk",
		TargetID:   &target,
	})
	if err != nil {
		serviceLogger(ctx, s.logger, "kiosk", action).Warn("failed to append audit entry", "error", err)
	}
}
