package application

import (
	"context"
	"time"

	"github.com/example/hallpass/internal/persistence"
)

// AuditEntry is the application view of one event log row.
type AuditEntry struct {
	ID         string
	ActorID    *string
	Action     string
	TargetType string
	TargetID   *string
	Message    *string
	CreatedAt  time.Time
}

// AuditStore lists event log entries.
type AuditStore interface {
	ListEntries(ctx context.Context, limit int) ([]persistence.AuditEntry, error)
}

// AuditService exposes the event log to administrators.
type AuditService struct {
	audit AuditStore
}

// NewAuditService wires dependencies for the audit service.
func NewAuditService(audit AuditStore) *AuditService {
	return &AuditService{audit: audit}
}

const defaultAuditLimit = 200

// ListEntries returns the most recent audit entries, newest first.
func (s *AuditService) ListEntries(ctx context.Context, principal Principal, limit int) ([]AuditEntry, error) {
	if !principal.IsAdmin() {
		return nil, ErrUnauthorized
	}
	if limit <= 0 {
		limit = defaultAuditLimit
	}

	records, err := s.audit.ListEntries(ctx, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]AuditEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, AuditEntry{
			ID:         record.ID,
			ActorID:    record.ActorID,
			Action:     record.Action,
			TargetType: record.TargetType,
			TargetID:   record.TargetID,
			Message:    record.Message,
			CreatedAt:  record.CreatedAt,
		})
	}
	return entries, nil
}
