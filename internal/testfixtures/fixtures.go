// Package testfixtures bundles deterministic clocks, identifier generators,
// record builders and a temporary SQLite harness shared by the test suites.
package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/hallpass/internal/persistence"
)

var (
	userCounter        uint64
	destinationCounter uint64
	periodCounter      uint64
	enrollmentCounter  uint64
	kioskCounter       uint64
	passCounter        uint64
)

var referenceTime = time.Date(2024, time.March, 14, 10, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
// It falls on a Thursday so day-mask assertions stay stable.
func ReferenceTime() time.Time {
	return referenceTime
}

// UserOption configures a generated user record.
type UserOption func(*persistence.User)

// NewUser returns a deterministic user record with optional overrides.
func NewUser(opts ...UserOption) persistence.User {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	user := persistence.User{
		ID:           id,
		Email:        fmt.Sprintf("%s@school.test", id),
		DisplayName:  fmt.Sprintf("User %03d", idx),
		PasswordHash: fmt.Sprintf("hash-%03d", idx),
		Role:         "Student",
		Active:       true,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&user)
	}
	return user
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(u *persistence.User) { u.ID = id }
}

// WithUserRole overrides the generated role.
func WithUserRole(role string) UserOption {
	return func(u *persistence.User) { u.Role = role }
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(u *persistence.User) { u.Email = email }
}

// WithUserActive overrides the active flag.
func WithUserActive(active bool) UserOption {
	return func(u *persistence.User) { u.Active = active }
}

// DestinationOption configures a generated destination record.
type DestinationOption func(*persistence.Destination)

// NewDestination returns a deterministic destination record with optional
// overrides.
func NewDestination(opts ...DestinationOption) persistence.Destination {
	idx := atomic.AddUint64(&destinationCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	destination := persistence.Destination{
		ID:             fmt.Sprintf("dest-%03d", idx),
		Name:           fmt.Sprintf("Destination %03d", idx),
		DefaultMinutes: 5,
		MaxConcurrent:  -1,
		CreatedAt:      created,
		UpdatedAt:      created,
	}
	for _, opt := range opts {
		opt(&destination)
	}
	return destination
}

// WithDestinationID overrides the generated destination ID.
func WithDestinationID(id string) DestinationOption {
	return func(d *persistence.Destination) { d.ID = id }
}

// WithDestinationName overrides the generated name.
func WithDestinationName(name string) DestinationOption {
	return func(d *persistence.Destination) { d.Name = name }
}

// WithDefaultMinutes overrides the default timer length.
func WithDefaultMinutes(minutes int) DestinationOption {
	return func(d *persistence.Destination) { d.DefaultMinutes = minutes }
}

// PeriodOption configures a generated schedule period record.
type PeriodOption func(*persistence.SchedulePeriod)

// NewPeriod returns a deterministic schedule period owned by the given
// teacher, unbounded unless overridden.
func NewPeriod(teacherID string, opts ...PeriodOption) persistence.SchedulePeriod {
	idx := atomic.AddUint64(&periodCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	period := persistence.SchedulePeriod{
		ID:        fmt.Sprintf("period-%03d", idx),
		Name:      fmt.Sprintf("Period %03d", idx),
		TeacherID: teacherID,
		Active:    true,
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&period)
	}
	return period
}

// WithPeriodID overrides the generated period ID.
func WithPeriodID(id string) PeriodOption {
	return func(p *persistence.SchedulePeriod) { p.ID = id }
}

// WithPeriodWindow sets the clock-time bounds and day mask.
func WithPeriodWindow(start, end, daysMask string) PeriodOption {
	return func(p *persistence.SchedulePeriod) {
		p.StartTime = start
		p.EndTime = end
		p.DaysMask = daysMask
	}
}

// WithPeriodActive overrides the active flag.
func WithPeriodActive(active bool) PeriodOption {
	return func(p *persistence.SchedulePeriod) { p.Active = active }
}

// NewEnrollment returns a deterministic active enrollment binding a student
// to a period.
func NewEnrollment(studentID, periodID string) persistence.Enrollment {
	idx := atomic.AddUint64(&enrollmentCounter, 1)
	return persistence.Enrollment{
		ID:        fmt.Sprintf("enroll-%03d", idx),
		StudentID: studentID,
		PeriodID:  periodID,
		Active:    true,
		CreatedAt: referenceTime.Add(time.Duration(idx) * time.Minute),
	}
}

// KioskOption configures a generated kiosk record.
type KioskOption func(*persistence.Kiosk)

// NewKiosk returns a deterministic unbound kiosk with optional overrides.
func NewKiosk(opts ...KioskOption) persistence.Kiosk {
	idx := atomic.AddUint64(&kioskCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	kiosk := persistence.Kiosk{
		ID:        fmt.Sprintf("kiosk-%03d", idx),
		Token:     fmt.Sprintf("kiosk-token-%03d", idx),
		Name:      fmt.Sprintf("Kiosk %03d", idx),
		Active:    true,
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&kiosk)
	}
	return kiosk
}

// WithKioskPeriod binds the kiosk to a schedule period.
func WithKioskPeriod(periodID string) KioskOption {
	return func(k *persistence.Kiosk) { k.PeriodID = &periodID }
}

// WithKioskTeacher binds the kiosk directly to a teacher.
func WithKioskTeacher(teacherID string) KioskOption {
	return func(k *persistence.Kiosk) { k.TeacherID = &teacherID }
}

// WithKioskActive overrides the active flag.
func WithKioskActive(active bool) KioskOption {
	return func(k *persistence.Kiosk) { k.Active = active }
}

// PassOption configures a generated pass record.
type PassOption func(*persistence.Pass)

// NewPass returns a deterministic pending pass with optional overrides.
func NewPass(studentID, destinationID string, opts ...PassOption) persistence.Pass {
	idx := atomic.AddUint64(&passCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	pass := persistence.Pass{
		ID:            fmt.Sprintf("pass-%03d", idx),
		StudentID:     studentID,
		DestinationID: destinationID,
		State:         "Pending",
		CreatedAt:     created,
		UpdatedAt:     created,
	}
	for _, opt := range opts {
		opt(&pass)
	}
	return pass
}

// WithPassState overrides the lifecycle state.
func WithPassState(state string) PassOption {
	return func(p *persistence.Pass) { p.State = state }
}

// WithPassTimer sets the issued and expiry instants.
func WithPassTimer(issuedAt, expiresAt time.Time) PassOption {
	return func(p *persistence.Pass) {
		p.IssuedAt = &issuedAt
		p.ExpiresAt = &expiresAt
	}
}
