package application

import "errors"

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a create collides with an existing record.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrInvalidTransition is returned when a lifecycle operation targets a pass
	// whose state does not permit it.
	ErrInvalidTransition = errors.New("application: invalid transition")
	// ErrConflict is returned when a concurrent writer won a state-guarded
	// update; the caller may retry against fresh state.
	ErrConflict = errors.New("application: conflict")
	// ErrWindowViolation is returned when policy requires the operation to fall
	// inside a schedule period's time window and it does not.
	ErrWindowViolation = errors.New("application: outside time window")
	// ErrNoApprover is returned when teacher resolution finds no candidate.
	ErrNoApprover = errors.New("application: no approver")
	// ErrAmbiguousApprover is returned when teacher resolution finds several
	// candidates and no rule picks one.
	ErrAmbiguousApprover = errors.New("application: ambiguous approver")
	// ErrInvalidCredentials is returned when authentication fails.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrAccountDisabled is returned when the account is deactivated.
	ErrAccountDisabled = errors.New("application: account disabled")
	// ErrSessionExpired is returned when the presented session is past its deadline.
	ErrSessionExpired = errors.New("application: session expired")
	// ErrSessionRevoked is returned when the presented session was revoked.
	ErrSessionRevoked = errors.New("application: session revoked")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}
