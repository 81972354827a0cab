package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/hallpass/internal/persistence"
	"github.com/example/hallpass/internal/window"
)

// PassStore captures the persistence operations needed by the pass service.
type PassStore interface {
	CreatePass(ctx context.Context, pass persistence.Pass, assignment persistence.PassAssignment, entry persistence.AuditEntry) (persistence.Pass, error)
	GetPass(ctx context.Context, id string) (persistence.Pass, error)
	ActivatePass(ctx context.Context, id string, issuedAt, expiresAt time.Time, assignment persistence.PassAssignment, entry persistence.AuditEntry) (persistence.Pass, error)
	EnsureAssignment(ctx context.Context, assignment persistence.PassAssignment, entry persistence.AuditEntry) error
	TransitionPass(ctx context.Context, id string, fromStates []string, to string, entry persistence.AuditEntry) (persistence.Pass, error)
	ExtendPass(ctx context.Context, id string, override persistence.Override, entry persistence.AuditEntry) (persistence.Pass, error)
	ListPasses(ctx context.Context, filter persistence.PassFilter) ([]persistence.Pass, error)
	ListAssignments(ctx context.Context, passID string) ([]persistence.PassAssignment, error)
	ListOverrides(ctx context.Context, passID string) ([]persistence.Override, error)
	ListActiveBoard(ctx context.Context, limit int) ([]persistence.ActivePassRow, error)
}

// DestinationStore resolves destination catalog entries.
type DestinationStore interface {
	GetDestination(ctx context.Context, id string) (persistence.Destination, error)
}

// ApproverPeriodStore supplies the approver's period context at approval time.
type ApproverPeriodStore interface {
	ListApproverPeriodsForStudent(ctx context.Context, teacherID, studentID string) ([]persistence.SchedulePeriod, error)
}

// PolicyLoader materialises the current lifecycle policy.
type PolicyLoader interface {
	LoadPolicy(ctx context.Context) (Policy, error)
}

// Sweeper reconciles overdue passes before state is read or acted on.
type Sweeper interface {
	Sweep(ctx context.Context) ([]Pass, error)
}

// PassDetail is a pass together with its derived timer and approvers.
type PassDetail struct {
	Pass             Pass
	RemainingSeconds int64
	ApproverIDs      []string
}

// PassService orchestrates the pass lifecycle: request, approve, deny,
// cancel, extend, archive and the read surfaces. Overdue expiry is
// reconciled on demand through the injected Sweeper, never by a background
// timer.
type PassService struct {
	passes       PassStore
	destinations DestinationStore
	periods      ApproverPeriodStore
	resolver     *TeacherResolver
	policy       PolicyLoader
	sweeper      Sweeper
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
}

// NewPassService wires dependencies for the pass service.
func NewPassService(
	passes PassStore,
	destinations DestinationStore,
	periods ApproverPeriodStore,
	resolver *TeacherResolver,
	policy PolicyLoader,
	sweeper Sweeper,
	idGenerator func() string,
	now func() time.Time,
	logger *slog.Logger,
) *PassService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &PassService{
		passes:       passes,
		destinations: destinations,
		periods:      periods,
		resolver:     resolver,
		policy:       policy,
		sweeper:      sweeper,
		idGenerator:  idGenerator,
		now:          now,
		logger:       logger,
	}
}

// Request creates a pending pass for the student, resolving its approver and
// enforcing the request-time window policy.
func (s *PassService) Request(ctx context.Context, params RequestPassParams) (Pass, error) {
	logger := serviceLogger(ctx, s.logger, "pass", "request",
		"student_id", params.Principal.UserID)

	if params.Principal.Role != RoleStudent {
		return Pass{}, ErrUnauthorized
	}

	vErr := &ValidationError{}
	if params.Input.DestinationID == "" {
		vErr.add("destination_id", "required")
	}
	if vErr.HasErrors() {
		return Pass{}, vErr
	}

	if _, err := s.destinations.GetDestination(ctx, params.Input.DestinationID); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			vErr.add("destination_id", "unknown destination")
			return Pass{}, vErr
		}
		return Pass{}, fmt.Errorf("failed to load destination: %w", err)
	}

	if err := s.sweep(ctx); err != nil {
		return Pass{}, err
	}

	policy, err := s.policy.LoadPolicy(ctx)
	if err != nil {
		return Pass{}, err
	}

	resolution, err := s.resolver.Resolve(ctx, ResolveTeacherInput{
		StudentID:  params.Principal.UserID,
		PeriodID:   params.Input.PeriodID,
		KioskToken: params.Input.KioskToken,
		Policy:     policy,
	})
	if err != nil {
		logger.Info("teacher resolution failed", "error_kind", ErrorKind(err))
		return Pass{}, err
	}

	now := s.now()
	if policy.EnforcePeriodTimeWindow && resolution.Period != nil {
		w := window.Parse(resolution.Period.StartTime, resolution.Period.EndTime, resolution.Period.DaysMask)
		if !w.Contains(now) {
			return Pass{}, ErrWindowViolation
		}
	}

	passID := s.idGenerator()
	actorID := params.Principal.UserID
	message := "resolved via " + resolution.Source

	record, err := s.passes.CreatePass(ctx,
		persistence.Pass{
			ID:            passID,
			StudentID:     params.Principal.UserID,
			DestinationID: params.Input.DestinationID,
			State:         string(StatePending),
		},
		persistence.PassAssignment{
			ID:        s.idGenerator(),
			PassID:    passID,
			TeacherID: resolution.TeacherID,
		},
		persistence.AuditEntry{
			ID:         s.idGenerator(),
			ActorID:    &actorID,
			Action:     "pass.requested",
			TargetType: "pass",
			TargetID:   &passID,
			Message:    &message,
		},
	)
	if err != nil {
		return Pass{}, err
	}

	logger.Info("pass requested",
		"pass_id", record.ID,
		"teacher_id", resolution.TeacherID,
		"resolution_source", resolution.Source)

	return passFromRecord(record), nil
}

// Approve starts the timer on a pending pass. Approving an already active
// pass is idempotent: the approver is recorded as an additional assignment
// and the pass is returned unchanged.
func (s *PassService) Approve(ctx context.Context, params ApprovePassParams) (Pass, error) {
	logger := serviceLogger(ctx, s.logger, "pass", "approve",
		"pass_id", params.PassID, "approver_id", params.Principal.UserID)

	if !params.Principal.CanApprove() {
		return Pass{}, ErrUnauthorized
	}

	if err := s.sweep(ctx); err != nil {
		return Pass{}, err
	}

	record, err := s.passes.GetPass(ctx, params.PassID)
	if err != nil {
		return Pass{}, mapStoreError(err)
	}

	if record.State == string(StateActive) {
		if err := s.recordApprover(ctx, params.Principal, record.ID); err != nil {
			return Pass{}, err
		}
		logger.Info("pass already active, approver recorded")
		return passFromRecord(record), nil
	}
	if record.State != string(StatePending) {
		return Pass{}, ErrInvalidTransition
	}

	policy, err := s.policy.LoadPolicy(ctx)
	if err != nil {
		return Pass{}, err
	}

	now := s.now()
	if policy.EnforcePeriodTimeWindow {
		err := s.checkApproverWindow(ctx, params.Principal.UserID, record.StudentID, now)
		switch {
		case err == nil:
		case errors.Is(err, ErrWindowViolation) && policy.AllowApprovalOutsideWindow:
			logger.Warn("approving outside the period window")
		default:
			return Pass{}, err
		}
	}

	destination, err := s.destinations.GetDestination(ctx, record.DestinationID)
	if err != nil {
		return Pass{}, fmt.Errorf("failed to load destination: %w", err)
	}

	issuedAt := now
	expiresAt := now.Add(time.Duration(destination.DefaultMinutes) * time.Minute)
	actorID := params.Principal.UserID
	passID := record.ID

	updated, err := s.passes.ActivatePass(ctx, record.ID, issuedAt, expiresAt,
		persistence.PassAssignment{
			ID:        s.idGenerator(),
			PassID:    record.ID,
			TeacherID: params.Principal.UserID,
		},
		persistence.AuditEntry{
			ID:         s.idGenerator(),
			ActorID:    &actorID,
			Action:     "pass.approved",
			TargetType: "pass",
			TargetID:   &passID,
		},
	)
	if err != nil {
		if errors.Is(err, persistence.ErrStaleState) {
			// A concurrent approval may have won; treat that as success.
			current, getErr := s.passes.GetPass(ctx, record.ID)
			if getErr == nil && current.State == string(StateActive) {
				if err := s.recordApprover(ctx, params.Principal, record.ID); err != nil {
					return Pass{}, err
				}
				return passFromRecord(current), nil
			}
			return Pass{}, ErrConflict
		}
		return Pass{}, mapStoreError(err)
	}

	logger.Info("pass approved", "expires_at", expiresAt)
	return passFromRecord(updated), nil
}

// Deny rejects a pending pass.
func (s *PassService) Deny(ctx context.Context, params DenyPassParams) (Pass, error) {
	if !params.Principal.CanApprove() {
		return Pass{}, ErrUnauthorized
	}

	if err := s.sweep(ctx); err != nil {
		return Pass{}, err
	}

	record, err := s.passes.GetPass(ctx, params.PassID)
	if err != nil {
		return Pass{}, mapStoreError(err)
	}
	if record.State != string(StatePending) {
		return Pass{}, ErrInvalidTransition
	}

	actorID := params.Principal.UserID
	passID := record.ID
	updated, err := s.passes.TransitionPass(ctx, record.ID,
		[]string{string(StatePending)}, string(StateDenied),
		persistence.AuditEntry{
			ID:         s.idGenerator(),
			ActorID:    &actorID,
			Action:     "pass.denied",
			TargetType: "pass",
			TargetID:   &passID,
		},
	)
	if err != nil {
		return Pass{}, mapStoreError(err)
	}

	serviceLogger(ctx, s.logger, "pass", "deny", "pass_id", record.ID).Info("pass denied")
	return passFromRecord(updated), nil
}

// Cancel withdraws a pending or active pass. Students may cancel their own
// passes; approvers and administrators may cancel any.
func (s *PassService) Cancel(ctx context.Context, params CancelPassParams) (Pass, error) {
	if err := s.sweep(ctx); err != nil {
		return Pass{}, err
	}

	record, err := s.passes.GetPass(ctx, params.PassID)
	if err != nil {
		return Pass{}, mapStoreError(err)
	}

	owner := record.StudentID == params.Principal.UserID
	if !owner && !params.Principal.CanApprove() {
		return Pass{}, ErrUnauthorized
	}
	if record.State != string(StatePending) && record.State != string(StateActive) {
		return Pass{}, ErrInvalidTransition
	}

	actorID := params.Principal.UserID
	passID := record.ID
	updated, err := s.passes.TransitionPass(ctx, record.ID,
		[]string{string(StatePending), string(StateActive)}, string(StateCancelled),
		persistence.AuditEntry{
			ID:         s.idGenerator(),
			ActorID:    &actorID,
			Action:     "pass.cancelled",
			TargetType: "pass",
			TargetID:   &passID,
		},
	)
	if err != nil {
		return Pass{}, mapStoreError(err)
	}

	serviceLogger(ctx, s.logger, "pass", "cancel", "pass_id", record.ID).Info("pass cancelled")
	return passFromRecord(updated), nil
}

// Extend moves an active pass's deadline forward and appends the override to
// the pass's ledger. The extension is guarded on the deadline it was computed
// from, so racing extensions cannot both apply.
func (s *PassService) Extend(ctx context.Context, params ExtendPassParams) (Pass, error) {
	if !params.Principal.CanApprove() {
		return Pass{}, ErrUnauthorized
	}

	vErr := &ValidationError{}
	if params.Input.AdditionalMinutes <= 0 {
		vErr.add("add_minutes", "must be a positive number of minutes")
	}
	if vErr.HasErrors() {
		return Pass{}, vErr
	}

	if err := s.sweep(ctx); err != nil {
		return Pass{}, err
	}

	record, err := s.passes.GetPass(ctx, params.PassID)
	if err != nil {
		return Pass{}, mapStoreError(err)
	}
	if record.State != string(StateActive) || record.ExpiresAt == nil {
		return Pass{}, ErrInvalidTransition
	}

	previous := *record.ExpiresAt
	next := previous.Add(time.Duration(params.Input.AdditionalMinutes) * time.Minute)

	var reason *string
	if params.Input.Reason != "" {
		reason = &params.Input.Reason
	}

	actorID := params.Principal.UserID
	passID := record.ID
	updated, err := s.passes.ExtendPass(ctx, record.ID,
		persistence.Override{
			ID:                s.idGenerator(),
			PassID:            record.ID,
			PerformedByID:     params.Principal.UserID,
			PreviousExpiresAt: previous,
			NewExpiresAt:      next,
			Reason:            reason,
		},
		persistence.AuditEntry{
			ID:         s.idGenerator(),
			ActorID:    &actorID,
			Action:     "pass.extended",
			TargetType: "pass",
			TargetID:   &passID,
		},
	)
	if err != nil {
		return Pass{}, mapStoreError(err)
	}

	serviceLogger(ctx, s.logger, "pass", "extend",
		"pass_id", record.ID, "new_expires_at", next).Info("pass extended")
	return passFromRecord(updated), nil
}

// Archive moves a terminal pass out of the working set. Administrators only.
func (s *PassService) Archive(ctx context.Context, principal Principal, passID string) (Pass, error) {
	if !principal.IsAdmin() {
		return Pass{}, ErrUnauthorized
	}

	if err := s.sweep(ctx); err != nil {
		return Pass{}, err
	}

	record, err := s.passes.GetPass(ctx, passID)
	if err != nil {
		return Pass{}, mapStoreError(err)
	}
	state := PassState(record.State)
	if !state.Terminal() || state == StateArchived {
		return Pass{}, ErrInvalidTransition
	}

	actorID := principal.UserID
	id := record.ID
	updated, err := s.passes.TransitionPass(ctx, record.ID,
		[]string{string(StateExpired), string(StateCancelled), string(StateDenied)}, string(StateArchived),
		persistence.AuditEntry{
			ID:         s.idGenerator(),
			ActorID:    &actorID,
			Action:     "pass.archived",
			TargetType: "pass",
			TargetID:   &id,
		},
	)
	if err != nil {
		return Pass{}, mapStoreError(err)
	}

	return passFromRecord(updated), nil
}

// Get returns a pass with its derived timer and approvers. Students may read
// their own passes; approvers and administrators any.
func (s *PassService) Get(ctx context.Context, principal Principal, passID string) (PassDetail, error) {
	if err := s.sweep(ctx); err != nil {
		return PassDetail{}, err
	}

	record, err := s.passes.GetPass(ctx, passID)
	if err != nil {
		return PassDetail{}, mapStoreError(err)
	}
	if record.StudentID != principal.UserID && !principal.CanApprove() {
		return PassDetail{}, ErrUnauthorized
	}

	assignments, err := s.passes.ListAssignments(ctx, record.ID)
	if err != nil {
		return PassDetail{}, fmt.Errorf("failed to list assignments: %w", err)
	}
	approverIDs := make([]string, 0, len(assignments))
	for _, assignment := range assignments {
		approverIDs = append(approverIDs, assignment.TeacherID)
	}

	pass := passFromRecord(record)
	return PassDetail{
		Pass:             pass,
		RemainingSeconds: pass.RemainingSeconds(s.now()),
		ApproverIDs:      approverIDs,
	}, nil
}

// Mine returns the principal's own passes, newest first.
func (s *PassService) Mine(ctx context.Context, principal Principal) ([]PassDetail, error) {
	if err := s.sweep(ctx); err != nil {
		return nil, err
	}

	records, err := s.passes.ListPasses(ctx, persistence.PassFilter{StudentID: principal.UserID})
	if err != nil {
		return nil, err
	}
	return s.details(records), nil
}

// Queue returns the open passes assigned to the approver, newest first.
// Admins see every open pass. A non-empty periodID narrows the queue to
// students enrolled in that period.
func (s *PassService) Queue(ctx context.Context, principal Principal, periodID string) ([]PassDetail, error) {
	if !principal.CanApprove() {
		return nil, ErrUnauthorized
	}

	if err := s.sweep(ctx); err != nil {
		return nil, err
	}

	filter := persistence.PassFilter{
		States: []string{string(StatePending), string(StateActive)},
	}
	if !principal.IsAdmin() {
		filter.AssignedTeacherID = principal.UserID
	}
	if periodID != "" {
		filter.EnrolledInPeriodID = periodID
	}

	records, err := s.passes.ListPasses(ctx, filter)
	if err != nil {
		return nil, err
	}
	return s.details(records), nil
}

// Board returns the public snapshot of active passes, newest issue first.
func (s *PassService) Board(ctx context.Context, limit int) ([]BoardRow, error) {
	if err := s.sweep(ctx); err != nil {
		return nil, err
	}

	rows, err := s.passes.ListActiveBoard(ctx, limit)
	if err != nil {
		return nil, err
	}

	now := s.now()
	board := make([]BoardRow, 0, len(rows))
	for _, row := range rows {
		pass := passFromRecord(row.Pass)
		board = append(board, BoardRow{
			Pass:             pass,
			StudentName:      row.StudentName,
			DestinationName:  row.DestinationName,
			ApproverNames:    row.ApproverNames,
			RemainingSeconds: pass.RemainingSeconds(now),
		})
	}
	return board, nil
}

// ListOverrides returns the extension ledger of a pass, most recent first.
func (s *PassService) ListOverrides(ctx context.Context, principal Principal, passID string) ([]Override, error) {
	record, err := s.passes.GetPass(ctx, passID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if record.StudentID != principal.UserID && !principal.CanApprove() {
		return nil, ErrUnauthorized
	}

	records, err := s.passes.ListOverrides(ctx, passID)
	if err != nil {
		return nil, err
	}

	overrides := make([]Override, 0, len(records))
	for _, item := range records {
		overrides = append(overrides, overrideFromRecord(item))
	}
	return overrides, nil
}

// checkApproverWindow enforces the approval-time window using the approver's
// first active period the student is enrolled in. Approvers with no period
// context for the student are not constrained.
func (s *PassService) checkApproverWindow(ctx context.Context, teacherID, studentID string, now time.Time) error {
	periods, err := s.periods.ListApproverPeriodsForStudent(ctx, teacherID, studentID)
	if err != nil {
		return fmt.Errorf("failed to load approver periods: %w", err)
	}
	if len(periods) == 0 {
		return nil
	}

	period := periods[0]
	w := window.Parse(period.StartTime, period.EndTime, period.DaysMask)
	if !w.Contains(now) {
		return ErrWindowViolation
	}
	return nil
}

func (s *PassService) recordApprover(ctx context.Context, principal Principal, passID string) error {
	actorID := principal.UserID
	id := passID
	err := s.passes.EnsureAssignment(ctx,
		persistence.PassAssignment{
			ID:        s.idGenerator(),
			PassID:    passID,
			TeacherID: principal.UserID,
		},
		persistence.AuditEntry{
			ID:         s.idGenerator(),
			ActorID:    &actorID,
			Action:     "pass.approver_added",
			TargetType: "pass",
			TargetID:   &id,
		},
	)
	if err != nil {
		return mapStoreError(err)
	}
	return nil
}

func (s *PassService) details(records []persistence.Pass) []PassDetail {
	now := s.now()
	details := make([]PassDetail, 0, len(records))
	for _, record := range records {
		pass := passFromRecord(record)
		details = append(details, PassDetail{
			Pass:             pass,
			RemainingSeconds: pass.RemainingSeconds(now),
		})
	}
	return details
}

func (s *PassService) sweep(ctx context.Context) error {
	if s.sweeper == nil {
		return nil
	}
	if _, err := s.sweeper.Sweep(ctx); err != nil {
		return err
	}
	return nil
}

// mapStoreError translates persistence sentinels into application errors.
func mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrStaleState):
		return ErrConflict
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	default:
		return err
	}
}
