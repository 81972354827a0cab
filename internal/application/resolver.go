package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/hallpass/internal/persistence"
)

// ResolverPeriodStore captures the enrollment queries teacher resolution
// depends on.
type ResolverPeriodStore interface {
	GetPeriod(ctx context.Context, id string) (persistence.SchedulePeriod, error)
	ActiveEnrollmentExists(ctx context.Context, studentID, periodID string) (bool, error)
	ListActiveEnrolledPeriods(ctx context.Context, studentID string) ([]persistence.SchedulePeriod, error)
}

// ResolverKioskStore resolves kiosk tokens to their bindings.
type ResolverKioskStore interface {
	GetActiveKioskByToken(ctx context.Context, token string) (persistence.Kiosk, error)
}

// ResolverUserStore verifies candidate approver accounts.
type ResolverUserStore interface {
	GetUser(ctx context.Context, id string) (persistence.User, error)
}

// Resolution is the outcome of teacher resolution: the approver the pending
// pass is assigned to and, when resolution went through a period, that
// period for window enforcement.
type Resolution struct {
	TeacherID string
	// Period is non-nil when the approver was chosen through a schedule
	// period binding or an explicit period choice.
	Period *persistence.SchedulePeriod
	// Source records which rule produced the approver, for audit messages.
	Source string
}

// Resolution sources.
const (
	ResolvedByKioskPeriod    = "kiosk_period"
	ResolvedByKioskTeacher   = "kiosk_teacher"
	ResolvedByExplicitPeriod = "explicit_period"
	ResolvedByOnlyApprover   = "only_approver"
)

// ResolveTeacherInput carries the request context teacher resolution works on.
type ResolveTeacherInput struct {
	StudentID  string
	PeriodID   string
	KioskToken string
	Policy     Policy
}

// TeacherResolver picks the approver for a new pass request. Precedence:
// a kiosk's period binding, then its direct teacher binding, then the
// student's explicit period choice, then the single distinct approver across
// the student's active enrollments. Under strict kiosk binding a bound kiosk
// suppresses the explicit choice; otherwise a rule whose conditions are
// unmet falls through to the next.
type TeacherResolver struct {
	periods ResolverPeriodStore
	kiosks  ResolverKioskStore
	users   ResolverUserStore
}

// NewTeacherResolver wires dependencies for teacher resolution.
func NewTeacherResolver(periods ResolverPeriodStore, kiosks ResolverKioskStore, users ResolverUserStore) *TeacherResolver {
	return &TeacherResolver{periods: periods, kiosks: kiosks, users: users}
}

// Resolve picks the approver for the request, or reports ErrNoApprover /
// ErrAmbiguousApprover when no rule yields exactly one.
func (r *TeacherResolver) Resolve(ctx context.Context, input ResolveTeacherInput) (Resolution, error) {
	kioskResolution, kioskBound, err := r.resolveThroughKiosk(ctx, input.KioskToken)
	if err != nil {
		return Resolution{}, err
	}

	if kioskBound && input.Policy.KioskStrictBinding {
		// A bound kiosk forces its own routing. A binding that no longer
		// resolves to a usable approver leaves nothing to route to, since
		// the explicit choice is suppressed.
		if kioskResolution == nil {
			return Resolution{}, ErrNoApprover
		}
		return *kioskResolution, nil
	}

	if input.PeriodID != "" {
		resolution, ok, err := r.resolveExplicitPeriod(ctx, input.StudentID, input.PeriodID)
		if err != nil {
			return Resolution{}, err
		}
		if ok {
			return resolution, nil
		}
	}

	if kioskResolution != nil {
		return *kioskResolution, nil
	}

	return r.resolveOnlyApprover(ctx, input.StudentID)
}

// resolveThroughKiosk applies the kiosk bindings. The second return value
// reports whether an active kiosk with a binding was found. Unknown tokens
// and unbound kiosks are skipped so the remaining rules run.
func (r *TeacherResolver) resolveThroughKiosk(ctx context.Context, token string) (*Resolution, bool, error) {
	if token == "" {
		return nil, false, nil
	}

	kiosk, err := r.kiosks.GetActiveKioskByToken(ctx, token)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to resolve kiosk: %w", err)
	}

	if kiosk.PeriodID != nil {
		period, err := r.periods.GetPeriod(ctx, *kiosk.PeriodID)
		if err != nil {
			if errors.Is(err, persistence.ErrNotFound) {
				return nil, true, nil
			}
			return nil, true, fmt.Errorf("failed to load period: %w", err)
		}
		if !period.Active {
			return nil, true, nil
		}
		usable, err := r.approverUsable(ctx, period.TeacherID)
		if err != nil || !usable {
			return nil, true, err
		}
		// The kiosk routes every student to the period's owner; enrollment
		// in the bound period is not required.
		return &Resolution{TeacherID: period.TeacherID, Period: &period, Source: ResolvedByKioskPeriod}, true, nil
	}

	if kiosk.TeacherID != nil {
		usable, err := r.approverUsable(ctx, *kiosk.TeacherID)
		if err != nil || !usable {
			return nil, true, err
		}
		return &Resolution{TeacherID: *kiosk.TeacherID, Source: ResolvedByKioskTeacher}, true, nil
	}

	return nil, false, nil
}

// resolveExplicitPeriod honors the student's period choice when the period is
// active, owned by a usable approver and the student is actively enrolled in
// it. Any unmet condition lets resolution continue with the remaining rules.
func (r *TeacherResolver) resolveExplicitPeriod(ctx context.Context, studentID, periodID string) (Resolution, bool, error) {
	period, err := r.periods.GetPeriod(ctx, periodID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return Resolution{}, false, nil
		}
		return Resolution{}, false, fmt.Errorf("failed to load period: %w", err)
	}
	if !period.Active {
		return Resolution{}, false, nil
	}

	enrolled, err := r.periods.ActiveEnrollmentExists(ctx, studentID, period.ID)
	if err != nil {
		return Resolution{}, false, fmt.Errorf("failed to check enrollment: %w", err)
	}
	if !enrolled {
		return Resolution{}, false, nil
	}

	usable, err := r.approverUsable(ctx, period.TeacherID)
	if err != nil || !usable {
		return Resolution{}, false, err
	}

	return Resolution{TeacherID: period.TeacherID, Period: &period, Source: ResolvedByExplicitPeriod}, true, nil
}

// resolveOnlyApprover falls back to the single distinct teacher across the
// student's active enrollments. The representative context period is the
// enrolled period with the lowest ID, so resolution stays deterministic.
func (r *TeacherResolver) resolveOnlyApprover(ctx context.Context, studentID string) (Resolution, error) {
	periods, err := r.periods.ListActiveEnrolledPeriods(ctx, studentID)
	if err != nil {
		return Resolution{}, fmt.Errorf("failed to list enrolled periods: %w", err)
	}

	distinct := make(map[string]struct{})
	var teacherID string
	representative := persistence.SchedulePeriod{}
	for _, period := range periods {
		if _, seen := distinct[period.TeacherID]; !seen {
			distinct[period.TeacherID] = struct{}{}
			teacherID = period.TeacherID
		}
		if representative.ID == "" || period.ID < representative.ID {
			representative = period
		}
	}

	switch len(distinct) {
	case 0:
		return Resolution{}, ErrNoApprover
	case 1:
		return Resolution{TeacherID: teacherID, Period: &representative, Source: ResolvedByOnlyApprover}, nil
	default:
		return Resolution{}, ErrAmbiguousApprover
	}
}

// approverUsable reports whether the candidate is an active account allowed
// to approve passes.
func (r *TeacherResolver) approverUsable(ctx context.Context, teacherID string) (bool, error) {
	user, err := r.users.GetUser(ctx, teacherID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load approver: %w", err)
	}
	candidate := Principal{UserID: user.ID, Role: Role(user.Role)}
	return user.Active && candidate.CanApprove(), nil
}
