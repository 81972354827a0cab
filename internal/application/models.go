// Package application holds the hall-pass domain services: pass lifecycle,
// teacher resolution, expiry reconciliation, authentication and the
// administrative catalogs. Services depend on narrow store interfaces and
// receive their clock and identifier generator by injection.
package application

import (
	"time"

	"github.com/example/hallpass/internal/persistence"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleStudent Role = "Student"
	RoleTeacher Role = "Teacher"
	RoleAdmin   Role = "Admin"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}

// Principal identifies the authenticated actor of an operation.
type Principal struct {
	UserID string
	Role   Role
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// CanApprove reports whether the principal may approve, deny and extend
// passes.
func (p Principal) CanApprove() bool {
	return p.Role == RoleTeacher || p.Role == RoleAdmin
}

// PassState is the closed set of pass lifecycle states.
type PassState string

const (
	StatePending   PassState = "Pending"
	StateActive    PassState = "Active"
	StateExpired   PassState = "Expired"
	StateCancelled PassState = "Cancelled"
	StateDenied    PassState = "Denied"
	StateArchived  PassState = "Archived"
)

// Terminal reports whether no further lifecycle transitions apply.
func (s PassState) Terminal() bool {
	switch s {
	case StateExpired, StateCancelled, StateDenied, StateArchived:
		return true
	}
	return false
}

// Policy carries the runtime flags that shape resolution and window
// enforcement. The zero value is never used; LoadPolicy applies defaults.
type Policy struct {
	// KioskStrictBinding blocks non-kiosk resolution fallbacks for requests
	// arriving through an unbound kiosk.
	KioskStrictBinding bool
	// EnforcePeriodTimeWindow rejects requests resolved through a period whose
	// window does not contain the current instant.
	EnforcePeriodTimeWindow bool
	// AllowApprovalOutsideWindow permits approvals outside the approver's
	// period window.
	AllowApprovalOutsideWindow bool
}

// DefaultPolicy returns the flag values applied when settings are absent.
func DefaultPolicy() Policy {
	return Policy{
		KioskStrictBinding:         true,
		EnforcePeriodTimeWindow:    false,
		AllowApprovalOutsideWindow: true,
	}
}

// User is the application view of an account.
type User struct {
	ID          string
	Email       string
	DisplayName string
	Role        Role
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func userFromRecord(record persistence.User) User {
	return User{
		ID:          record.ID,
		Email:       record.Email,
		DisplayName: record.DisplayName,
		Role:        Role(record.Role),
		Active:      record.Active,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
	}
}

// Pass is the application view of a hall pass.
type Pass struct {
	ID            string
	StudentID     string
	DestinationID string
	State         PassState
	IssuedAt      *time.Time
	ExpiresAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func passFromRecord(record persistence.Pass) Pass {
	return Pass{
		ID:            record.ID,
		StudentID:     record.StudentID,
		DestinationID: record.DestinationID,
		State:         PassState(record.State),
		IssuedAt:      record.IssuedAt,
		ExpiresAt:     record.ExpiresAt,
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.UpdatedAt,
	}
}

// RemainingSeconds reports how many whole seconds remain on the timer at the
// given instant. Passes without a running timer report zero, as do overdue
// ones.
func (p Pass) RemainingSeconds(now time.Time) int64 {
	if p.State != StateActive || p.ExpiresAt == nil {
		return 0
	}
	remaining := p.ExpiresAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int64(remaining / time.Second)
}

// Override is one entry of a pass's extension ledger.
type Override struct {
	ID                string
	PassID            string
	PerformedByID     string
	PreviousExpiresAt time.Time
	NewExpiresAt      time.Time
	Reason            *string
	CreatedAt         time.Time
}

func overrideFromRecord(record persistence.Override) Override {
	return Override{
		ID:                record.ID,
		PassID:            record.PassID,
		PerformedByID:     record.PerformedByID,
		PreviousExpiresAt: record.PreviousExpiresAt,
		NewExpiresAt:      record.NewExpiresAt,
		Reason:            record.Reason,
		CreatedAt:         record.CreatedAt,
	}
}

// BoardRow is one line of the public active-pass board.
type BoardRow struct {
	Pass             Pass
	StudentName      string
	DestinationName  string
	ApproverNames    []string
	RemainingSeconds int64
}

// RequestPassInput carries the caller-supplied fields of a pass request.
type RequestPassInput struct {
	DestinationID string
	// PeriodID optionally names the enrolled period whose teacher should
	// approve.
	PeriodID string
	// KioskToken identifies the kiosk the request arrived through, when any.
	KioskToken string
}

// RequestPassParams bundles the acting principal with the request input.
type RequestPassParams struct {
	Principal Principal
	Input     RequestPassInput
}

// ApprovePassParams identifies the pass an approver acts on.
type ApprovePassParams struct {
	Principal Principal
	PassID    string
}

// DenyPassParams identifies the pass an approver rejects.
type DenyPassParams struct {
	Principal Principal
	PassID    string
}

// CancelPassParams identifies the pass being cancelled.
type CancelPassParams struct {
	Principal Principal
	PassID    string
}

// ExtendPassInput carries the caller-supplied fields of an extension.
type ExtendPassInput struct {
	AdditionalMinutes int
	Reason            string
}

// ExtendPassParams bundles the acting principal with the extension input.
type ExtendPassParams struct {
	Principal Principal
	PassID    string
	Input     ExtendPassInput
}
