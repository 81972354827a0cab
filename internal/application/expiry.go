package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/hallpass/internal/persistence"
)

// ExpiryStore captures the sweep operation the reconciler depends on.
type ExpiryStore interface {
	ExpireOverdue(ctx context.Context, now time.Time, makeEntry func(pass persistence.Pass) persistence.AuditEntry) ([]persistence.Pass, error)
}

// ExpiryReconciler moves overdue active passes to the expired state. There is
// no background timer; callers run Sweep before reads and lifecycle
// operations so observed state is always consistent with the clock.
type ExpiryReconciler struct {
	passes      ExpiryStore
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewExpiryReconciler wires dependencies for the reconciler.
func NewExpiryReconciler(passes ExpiryStore, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ExpiryReconciler {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &ExpiryReconciler{
		passes:      passes,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// Sweep expires every overdue active pass, attributing the transitions to the
// system rather than a user. It returns the passes it expired.
func (r *ExpiryReconciler) Sweep(ctx context.Context) ([]Pass, error) {
	now := r.now()

	expired, err := r.passes.ExpireOverdue(ctx, now, func(pass persistence.Pass) persistence.AuditEntry {
		passID := pass.ID
		message := "timer elapsed"
		return persistence.AuditEntry{
			ID:         r.idGenerator(),
			ActorID:    nil,
			Action:     "pass.expired",
			TargetType: "pass",
			TargetID:   &passID,
			Message:    &message,
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sweep overdue passes: %w", err)
	}

	if len(expired) > 0 {
		serviceLogger(ctx, r.logger, "expiry", "sweep").Info("expired overdue passes",
			"count", len(expired))
	}

	result := make([]Pass, 0, len(expired))
	for _, record := range expired {
		result = append(result, passFromRecord(record))
	}
	return result, nil
}
