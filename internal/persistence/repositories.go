package persistence

import (
	"context"
	"time"
)

// UserRepository exposes account storage operations.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
}

// DestinationRepository exposes the destination catalog.
type DestinationRepository interface {
	CreateDestination(ctx context.Context, destination Destination) error
	UpdateDestination(ctx context.Context, destination Destination) error
	GetDestination(ctx context.Context, id string) (Destination, error)
	ListDestinations(ctx context.Context) ([]Destination, error)
}

// PeriodRepository stores schedule periods and student enrollments.
type PeriodRepository interface {
	CreatePeriod(ctx context.Context, period SchedulePeriod) error
	UpdatePeriod(ctx context.Context, period SchedulePeriod) error
	GetPeriod(ctx context.Context, id string) (SchedulePeriod, error)
	ListPeriods(ctx context.Context) ([]SchedulePeriod, error)
	ListPeriodsByTeacher(ctx context.Context, teacherID string) ([]SchedulePeriod, error)

	AddEnrollment(ctx context.Context, enrollment Enrollment) error
	RemoveEnrollment(ctx context.Context, id string) error
	ListEnrollments(ctx context.Context, periodID string) ([]Enrollment, error)
	// ActiveEnrollmentExists reports whether the student holds an active
	// enrollment in the period.
	ActiveEnrollmentExists(ctx context.Context, studentID, periodID string) (bool, error)
	// ListActiveEnrolledPeriods returns the active periods the student is
	// actively enrolled in whose owning teacher is an active approver,
	// ordered by period ID for deterministic resolution.
	ListActiveEnrolledPeriods(ctx context.Context, studentID string) ([]SchedulePeriod, error)
	// ListApproverPeriodsForStudent returns the approver's active periods in
	// which the student is actively enrolled, ordered by period ID.
	ListApproverPeriodsForStudent(ctx context.Context, teacherID, studentID string) ([]SchedulePeriod, error)
}

// KioskRepository stores kiosk bindings.
type KioskRepository interface {
	CreateKiosk(ctx context.Context, kiosk Kiosk) error
	UpdateKiosk(ctx context.Context, kiosk Kiosk) error
	GetKiosk(ctx context.Context, id string) (Kiosk, error)
	// GetActiveKioskByToken resolves an active kiosk from its token.
	GetActiveKioskByToken(ctx context.Context, token string) (Kiosk, error)
	ListKiosks(ctx context.Context) ([]Kiosk, error)
}

// PassFilter narrows pass listing queries.
type PassFilter struct {
	States             []string
	StudentID          string
	AssignedTeacherID  string
	EnrolledInPeriodID string
	Limit              int
}

// ActivePassRow is a board snapshot row joining a pass with display names.
type ActivePassRow struct {
	Pass            Pass
	StudentName     string
	DestinationName string
	ApproverNames   []string
}

// PassRepository stores passes together with their assignments, overrides
// and audit entries. Every mutation executes as a single transaction; state
// changes are guarded on the expected prior state and report ErrStaleState
// when a concurrent writer got there first.
type PassRepository interface {
	// CreatePass inserts a pending pass, its initial assignment and the
	// request audit entry in one transaction.
	CreatePass(ctx context.Context, pass Pass, assignment PassAssignment, entry AuditEntry) (Pass, error)
	GetPass(ctx context.Context, id string) (Pass, error)
	// ActivatePass starts the timer on a pending pass, records the approver
	// assignment if missing and appends the audit entry, in one transaction.
	ActivatePass(ctx context.Context, id string, issuedAt, expiresAt time.Time, assignment PassAssignment, entry AuditEntry) (Pass, error)
	// EnsureAssignment records an approver assignment on an active pass if
	// the (pass, teacher) pair is not already present.
	EnsureAssignment(ctx context.Context, assignment PassAssignment, entry AuditEntry) error
	// TransitionPass moves the pass to a terminal state when its current
	// state is one of fromStates.
	TransitionPass(ctx context.Context, id string, fromStates []string, to string, entry AuditEntry) (Pass, error)
	// ExtendPass moves expires_at to the override's new deadline, guarded on
	// the previous deadline, appending the override and audit rows.
	ExtendPass(ctx context.Context, id string, override Override, entry AuditEntry) (Pass, error)
	// ExpireOverdue transitions every active pass with a deadline at or
	// before now to the expired state, appending one audit entry per pass.
	ExpireOverdue(ctx context.Context, now time.Time, makeEntry func(pass Pass) AuditEntry) ([]Pass, error)

	ListPasses(ctx context.Context, filter PassFilter) ([]Pass, error)
	ListAssignments(ctx context.Context, passID string) ([]PassAssignment, error)
	// ListOverrides returns the override ledger for a pass, most recent first.
	ListOverrides(ctx context.Context, passID string) ([]Override, error)
	// ListActiveBoard returns the display snapshot of active passes, newest
	// issue first.
	ListActiveBoard(ctx context.Context, limit int) ([]ActivePassRow, error)
}

// SettingRepository stores scoped key/value configuration entries.
type SettingRepository interface {
	ListSettings(ctx context.Context, scope string) ([]Setting, error)
	UpsertSetting(ctx context.Context, setting Setting) error
}

// AuditRepository appends and lists event log entries. Entries written as
// part of a pass mutation go through PassRepository instead so they share
// the mutation's transaction.
type AuditRepository interface {
	AppendEntry(ctx context.Context, entry AuditEntry) error
	ListEntries(ctx context.Context, limit int) ([]AuditEntry, error)
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}
