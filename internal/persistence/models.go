package persistence

import "time"

// User represents an account in the hall-pass domain: a student who requests
// passes, a teacher who approves them, or an administrator.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	Role         string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Destination is a location a pass can be issued for, with the default timer
// applied at approval. MaxConcurrent below zero means unbounded; the value is
// stored and surfaced but never enforced by the lifecycle.
type Destination struct {
	ID             string
	Name           string
	DefaultMinutes int
	MaxConcurrent  int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SchedulePeriod is a named recurring time block owned by one teacher.
// StartTime/EndTime are "HH:MM" 24-hour strings and DaysMask is a
// Monday-first seven-character activity mask; both are optional.
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

// Enrollment binds a student to a schedule period. Unique per (student, period).
type Enrollment struct {
	ID        string
	StudentID string
	PeriodID  string
	Active    bool
	CreatedAt time.Time
}

// Kiosk is a token-identified physical station, optionally bound to one
// schedule period or, failing that, to one teacher directly.
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

// Pass is the core fact: who wants to go where, in which lifecycle state.
// IssuedAt and ExpiresAt are nil exactly while the pass is pending.
type Pass struct {
	ID            string
	StudentID     string
	DestinationID string
	IssuedAt      *time.Time
	ExpiresAt     *time.Time
	State         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PassAssignment associates one approver with one pass. A pass accumulates
// assignments over its life; each (pass, teacher) pair is unique.
type PassAssignment struct {
	ID        string
	PassID    string
	TeacherID string
	CreatedAt time.Time
}

// Override is the immutable audit fact recording one timer extension.
type Override struct {
	ID                string
	PassID            string
	PerformedByID     string
	PreviousExpiresAt time.Time
	NewExpiresAt      time.Time
	Reason            *string
	CreatedAt         time.Time
}

// AuditEntry is one row of the append-only event log emitted by every
// mutating operation.
type AuditEntry struct {
	ID         string
	ActorID    *string
	Action     string
	TargetType string
	TargetID   *string
	Message    *string
	CreatedAt  time.Time
}

// Setting is an atomic key/value entry scoped to a configuration domain.
type Setting struct {
	Key   string
	Scope string
	Value string
}

// Session represents an authentication session persisted for a user.
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}
