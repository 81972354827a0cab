package sqlite

import (
	"context"
	"time"

	"github.com/example/hallpass/internal/persistence"
)

// AuditRepository implements persistence.AuditRepository using SQLite.
type AuditRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
	now    func() time.Time
}

// NewAuditRepository creates a new SQLite audit repository.
func NewAuditRepository(pool *ConnectionPool) *AuditRepository {
	return &AuditRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		now:    time.Now,
	}
}

// AppendEntry inserts an audit entry.
func (r *AuditRepository) AppendEntry(ctx context.Context, entry persistence.AuditEntry) error {
	if entry.ID == "" || entry.Action == "" {
		return persistence.ErrConstraintViolation
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now().UTC()
	}

	_, err := r.helper.Exec(ctx, `
		INSERT INTO audit_entries (id, actor_id, action, target_type, target_id, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		entry.ID,
		entry.ActorID,
		entry.Action,
		entry.TargetType,
		entry.TargetID,
		entry.Message,
		formatTime(entry.CreatedAt),
	)
	if err != nil {
		return r.mapper.MapError(err)
	}

	return nil
}

// ListEntries returns the most recent audit entries, newest first.
func (r *AuditRepository) ListEntries(ctx context.Context, limit int) ([]persistence.AuditEntry, error) {
	query := `
		SELECT id, actor_id, action, target_type, target_id, message, created_at
		FROM audit_entries
		ORDER BY created_at DESC, id DESC
	`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var entries []persistence.AuditEntry
	for rows.Next() {
		var entry persistence.AuditEntry
		var createdAtStr string

		err := rows.Scan(
			&entry.ID,
			&entry.ActorID,
			&entry.Action,
			&entry.TargetType,
			&entry.TargetID,
			&entry.Message,
			&createdAtStr,
		)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}

		if entry.CreatedAt, err = parseTime(createdAtStr, "created_at"); err != nil {
			return nil, err
		}

		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}

	return entries, nil
}
