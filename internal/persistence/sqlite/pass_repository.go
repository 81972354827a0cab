package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/hallpass/internal/persistence"
)

// PassRepository implements persistence.PassRepository using SQLite. Every
// mutation runs inside one transaction; state changes are guarded on the
// expected prior state so concurrent writers lose with ErrStaleState instead
// of overwriting each other.
type PassRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
	now    func() time.Time
}

// NewPassRepository creates a new SQLite pass repository.
func NewPassRepository(pool *ConnectionPool) *PassRepository {
	return &PassRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		now:    time.Now,
	}
}

const passColumns = "id, student_id, destination_id, issued_at, expires_at, state, created_at, updated_at"

// CreatePass inserts a pending pass, its initial approver assignment and the
// request audit entry in one transaction.
func (r *PassRepository) CreatePass(ctx context.Context, pass persistence.Pass, assignment persistence.PassAssignment, entry persistence.AuditEntry) (persistence.Pass, error) {
	if pass.ID == "" || pass.StudentID == "" || pass.DestinationID == "" {
		return persistence.Pass{}, persistence.ErrConstraintViolation
	}

	now := r.now().UTC()
	pass.CreatedAt = now
	pass.UpdatedAt = now
	assignment.CreatedAt = now
	entry.CreatedAt = now

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := r.helper.ExecTx(tx, `
			INSERT INTO passes (`+passColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			pass.ID,
			pass.StudentID,
			pass.DestinationID,
			formatNullableTime(pass.IssuedAt),
			formatNullableTime(pass.ExpiresAt),
			pass.State,
			formatTime(pass.CreatedAt),
			formatTime(pass.UpdatedAt),
		)
		if err != nil {
			return r.mapPassError(err)
		}

		if err := r.insertAssignmentTx(tx, assignment); err != nil {
			return err
		}

		return r.insertAuditTx(tx, entry)
	})
	if err != nil {
		return persistence.Pass{}, err
	}

	return pass, nil
}

// GetPass retrieves a pass by ID.
func (r *PassRepository) GetPass(ctx context.Context, id string) (persistence.Pass, error) {
	if id == "" {
		return persistence.Pass{}, persistence.ErrNotFound
	}

	row := r.helper.QueryRow(ctx, "SELECT "+passColumns+" FROM passes WHERE id = ?", id)
	return scanPass(row)
}

// ActivatePass starts the timer on a pending pass, ensures the approver
// assignment is recorded and appends the audit entry, in one transaction.
// Returns ErrStaleState when the pass exists but is no longer pending.
func (r *PassRepository) ActivatePass(ctx context.Context, id string, issuedAt, expiresAt time.Time, assignment persistence.PassAssignment, entry persistence.AuditEntry) (persistence.Pass, error) {
	now := r.now().UTC()
	assignment.CreatedAt = now
	entry.CreatedAt = now

	var updated persistence.Pass
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := r.helper.ExecTx(tx, `
			UPDATE passes
			SET issued_at = ?, expires_at = ?, state = 'Active', updated_at = ?
			WHERE id = ? AND state = 'Pending'
		`,
			formatTime(issuedAt),
			formatTime(expiresAt),
			formatTime(now),
			id,
		)
		if err != nil {
			return r.mapPassError(err)
		}
		if err := r.requireGuardedUpdate(tx, result, id); err != nil {
			return err
		}

		if err := r.ensureAssignmentTx(tx, assignment); err != nil {
			return err
		}
		if err := r.insertAuditTx(tx, entry); err != nil {
			return err
		}

		updated, err = r.getPassTx(tx, id)
		return err
	})
	if err != nil {
		return persistence.Pass{}, err
	}

	return updated, nil
}

// EnsureAssignment records an approver assignment if the (pass, teacher) pair
// is not already present, appending the audit entry only when a row was added.
func (r *PassRepository) EnsureAssignment(ctx context.Context, assignment persistence.PassAssignment, entry persistence.AuditEntry) error {
	now := r.now().UTC()
	assignment.CreatedAt = now
	entry.CreatedAt = now

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := r.helper.ExecTx(tx, `
			INSERT INTO pass_assignments (id, pass_id, teacher_id, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (pass_id, teacher_id) DO NOTHING
		`,
			assignment.ID,
			assignment.PassID,
			assignment.TeacherID,
			formatTime(assignment.CreatedAt),
		)
		if err != nil {
			return r.mapPassError(err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return nil
		}

		return r.insertAuditTx(tx, entry)
	})
}

// TransitionPass moves the pass to a new state when its current state is one
// of fromStates. Returns ErrStaleState when the pass exists but its state is
// not in fromStates.
func (r *PassRepository) TransitionPass(ctx context.Context, id string, fromStates []string, to string, entry persistence.AuditEntry) (persistence.Pass, error) {
	if len(fromStates) == 0 {
		return persistence.Pass{}, persistence.ErrConstraintViolation
	}

	now := r.now().UTC()
	entry.CreatedAt = now

	placeholders := strings.Repeat("?, ", len(fromStates)-1) + "?"
	args := make([]interface{}, 0, len(fromStates)+3)
	args = append(args, to, formatTime(now), id)
	for _, state := range fromStates {
		args = append(args, state)
	}

	var updated persistence.Pass
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := r.helper.ExecTx(tx, `
			UPDATE passes
			SET state = ?, updated_at = ?
			WHERE id = ? AND state IN (`+placeholders+`)
		`, args...)
		if err != nil {
			return r.mapPassError(err)
		}
		if err := r.requireGuardedUpdate(tx, result, id); err != nil {
			return err
		}

		if err := r.insertAuditTx(tx, entry); err != nil {
			return err
		}

		updated, err = r.getPassTx(tx, id)
		return err
	})
	if err != nil {
		return persistence.Pass{}, err
	}

	return updated, nil
}

// ExtendPass moves expires_at to the override's new deadline, guarded on the
// previous deadline so concurrent extensions cannot both apply against the
// same baseline. The override and audit rows are appended in the same
// transaction.
func (r *PassRepository) ExtendPass(ctx context.Context, id string, override persistence.Override, entry persistence.AuditEntry) (persistence.Pass, error) {
	now := r.now().UTC()
	override.CreatedAt = now
	entry.CreatedAt = now

	var updated persistence.Pass
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := r.helper.ExecTx(tx, `
			UPDATE passes
			SET expires_at = ?, updated_at = ?
			WHERE id = ? AND state = 'Active' AND expires_at = ?
		`,
			formatTime(override.NewExpiresAt),
			formatTime(now),
			id,
			formatTime(override.PreviousExpiresAt),
		)
		if err != nil {
			return r.mapPassError(err)
		}
		if err := r.requireGuardedUpdate(tx, result, id); err != nil {
			return err
		}

		_, err = r.helper.ExecTx(tx, `
			INSERT INTO pass_overrides (id, pass_id, performed_by_id, previous_expires_at, new_expires_at, reason, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			override.ID,
			override.PassID,
			override.PerformedByID,
			formatTime(override.PreviousExpiresAt),
			formatTime(override.NewExpiresAt),
			override.Reason,
			formatTime(override.CreatedAt),
		)
		if err != nil {
			return r.mapPassError(err)
		}

		if err := r.insertAuditTx(tx, entry); err != nil {
			return err
		}

		updated, err = r.getPassTx(tx, id)
		return err
	})
	if err != nil {
		return persistence.Pass{}, err
	}

	return updated, nil
}

// ExpireOverdue transitions every active pass whose deadline is at or before
// now to the expired state, appending one audit entry per pass. The whole
// sweep runs as one transaction so readers never observe a half-swept set.
func (r *PassRepository) ExpireOverdue(ctx context.Context, now time.Time, makeEntry func(pass persistence.Pass) persistence.AuditEntry) ([]persistence.Pass, error) {
	cutoff := formatTime(now)
	stamp := formatTime(r.now().UTC())

	var expired []persistence.Pass
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		rows, err := r.helper.QueryTx(tx, `
			SELECT `+passColumns+`
			FROM passes
			WHERE state = 'Active' AND expires_at IS NOT NULL AND expires_at <= ?
			ORDER BY expires_at ASC, id ASC
		`, cutoff)
		if err != nil {
			return r.mapper.MapError(err)
		}

		overdue, err := collectPasses(rows)
		if err != nil {
			return err
		}

		for _, pass := range overdue {
			result, err := r.helper.ExecTx(tx, `
				UPDATE passes
				SET state = 'Expired', updated_at = ?
				WHERE id = ? AND state = 'Active'
			`, stamp, pass.ID)
			if err != nil {
				return r.mapPassError(err)
			}
			rowsAffected, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			}
			if rowsAffected == 0 {
				continue
			}

			entry := makeEntry(pass)
			if entry.CreatedAt.IsZero() {
				entry.CreatedAt = r.now().UTC()
			}
			if err := r.insertAuditTx(tx, entry); err != nil {
				return err
			}

			pass.State = "Expired"
			expired = append(expired, pass)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return expired, nil
}

// ListPasses returns passes matching the filter, most recently created first.
func (r *PassRepository) ListPasses(ctx context.Context, filter persistence.PassFilter) ([]persistence.Pass, error) {
	query := "SELECT " + passColumns + " FROM passes"
	var conditions []string
	var args []interface{}

	if len(filter.States) > 0 {
		placeholders := strings.Repeat("?, ", len(filter.States)-1) + "?"
		conditions = append(conditions, "state IN ("+placeholders+")")
		for _, state := range filter.States {
			args = append(args, state)
		}
	}
	if filter.StudentID != "" {
		conditions = append(conditions, "student_id = ?")
		args = append(args, filter.StudentID)
	}
	if filter.AssignedTeacherID != "" {
		conditions = append(conditions, "EXISTS (SELECT 1 FROM pass_assignments pa WHERE pa.pass_id = passes.id AND pa.teacher_id = ?)")
		args = append(args, filter.AssignedTeacherID)
	}
	if filter.EnrolledInPeriodID != "" {
		conditions = append(conditions, "EXISTS (SELECT 1 FROM enrollments e WHERE e.student_id = passes.student_id AND e.period_id = ? AND e.is_active = 1)")
		args = append(args, filter.EnrolledInPeriodID)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	return collectPasses(rows)
}

// ListAssignments returns the approver assignments for a pass, oldest first.
func (r *PassRepository) ListAssignments(ctx context.Context, passID string) ([]persistence.PassAssignment, error) {
	rows, err := r.helper.Query(ctx, `
		SELECT id, pass_id, teacher_id, created_at
		FROM pass_assignments
		WHERE pass_id = ?
		ORDER BY created_at ASC, id ASC
	`, passID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var assignments []persistence.PassAssignment
	for rows.Next() {
		var assignment persistence.PassAssignment
		var createdAtStr string
		if err := rows.Scan(&assignment.ID, &assignment.PassID, &assignment.TeacherID, &createdAtStr); err != nil {
			return nil, r.mapper.MapError(err)
		}
		if assignment.CreatedAt, err = parseTime(createdAtStr, "created_at"); err != nil {
			return nil, err
		}
		assignments = append(assignments, assignment)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}

	return assignments, nil
}

// ListOverrides returns the override ledger for a pass, most recent first.
func (r *PassRepository) ListOverrides(ctx context.Context, passID string) ([]persistence.Override, error) {
	rows, err := r.helper.Query(ctx, `
		SELECT id, pass_id, performed_by_id, previous_expires_at, new_expires_at, reason, created_at
		FROM pass_overrides
		WHERE pass_id = ?
		ORDER BY created_at DESC, id DESC
	`, passID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var overrides []persistence.Override
	for rows.Next() {
		var override persistence.Override
		var previousStr, newStr, createdAtStr string
		if err := rows.Scan(
			&override.ID,
			&override.PassID,
			&override.PerformedByID,
			&previousStr,
			&newStr,
			&override.Reason,
			&createdAtStr,
		); err != nil {
			return nil, r.mapper.MapError(err)
		}
		if override.PreviousExpiresAt, err = parseTime(previousStr, "previous_expires_at"); err != nil {
			return nil, err
		}
		if override.NewExpiresAt, err = parseTime(newStr, "new_expires_at"); err != nil {
			return nil, err
		}
		if override.CreatedAt, err = parseTime(createdAtStr, "created_at"); err != nil {
			return nil, err
		}
		overrides = append(overrides, override)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}

	return overrides, nil
}

// ListActiveBoard returns the display snapshot of active passes with student,
// destination and approver names resolved, newest issue first.
func (r *PassRepository) ListActiveBoard(ctx context.Context, limit int) ([]persistence.ActivePassRow, error) {
	query := `
		SELECT ` + prefixedPassColumns("p") + `, u.display_name, d.name
		FROM passes p
		JOIN users u ON u.id = p.student_id
		JOIN destinations d ON d.id = p.destination_id
		WHERE p.state = 'Active'
		ORDER BY p.issued_at DESC, p.id DESC
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

	var board []persistence.ActivePassRow
	for rows.Next() {
		var row persistence.ActivePassRow
		var issuedAtStr, expiresAtStr *string
		var createdAtStr, updatedAtStr string
		if err := rows.Scan(
			&row.Pass.ID,
			&row.Pass.StudentID,
			&row.Pass.DestinationID,
			&issuedAtStr,
			&expiresAtStr,
			&row.Pass.State,
			&createdAtStr,
			&updatedAtStr,
			&row.StudentName,
			&row.DestinationName,
		); err != nil {
			return nil, r.mapper.MapError(err)
		}
		if row.Pass.IssuedAt, err = parseNullableTime(issuedAtStr, "issued_at"); err != nil {
			return nil, err
		}
		if row.Pass.ExpiresAt, err = parseNullableTime(expiresAtStr, "expires_at"); err != nil {
			return nil, err
		}
		if row.Pass.CreatedAt, err = parseTime(createdAtStr, "created_at"); err != nil {
			return nil, err
		}
		if row.Pass.UpdatedAt, err = parseTime(updatedAtStr, "updated_at"); err != nil {
			return nil, err
		}
		board = append(board, row)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}

	if err := r.attachApproverNames(ctx, board); err != nil {
		return nil, err
	}

	return board, nil
}

func (r *PassRepository) attachApproverNames(ctx context.Context, board []persistence.ActivePassRow) error {
	if len(board) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?, ", len(board)-1) + "?"
	args := make([]interface{}, 0, len(board))
	for _, row := range board {
		args = append(args, row.Pass.ID)
	}

	rows, err := r.helper.Query(ctx, `
		SELECT pa.pass_id, u.display_name
		FROM pass_assignments pa
		JOIN users u ON u.id = pa.teacher_id
		WHERE pa.pass_id IN (`+placeholders+`)
		ORDER BY pa.created_at ASC, pa.id ASC
	`, args...)
	if err != nil {
		return r.mapper.MapError(err)
	}
	defer rows.Close()

	names := make(map[string][]string)
	for rows.Next() {
		var passID, name string
		if err := rows.Scan(&passID, &name); err != nil {
			return r.mapper.MapError(err)
		}
		names[passID] = append(names[passID], name)
	}
	if err := rows.Err(); err != nil {
		return r.mapper.MapError(err)
	}

	for i := range board {
		board[i].ApproverNames = names[board[i].Pass.ID]
	}

	return nil
}

// requireGuardedUpdate distinguishes a missing pass from a lost state guard
// after a zero-row UPDATE.
func (r *PassRepository) requireGuardedUpdate(tx *sql.Tx, result sql.Result, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	var exists int
	if err := r.helper.QueryRowTx(tx, "SELECT COUNT(*) FROM passes WHERE id = ?", id).Scan(&exists); err != nil {
		return r.mapper.MapError(err)
	}
	if exists == 0 {
		return persistence.ErrNotFound
	}
	return persistence.ErrStaleState
}

func (r *PassRepository) getPassTx(tx *sql.Tx, id string) (persistence.Pass, error) {
	row := r.helper.QueryRowTx(tx, "SELECT "+passColumns+" FROM passes WHERE id = ?", id)
	return scanPass(row)
}

func (r *PassRepository) insertAssignmentTx(tx *sql.Tx, assignment persistence.PassAssignment) error {
	_, err := r.helper.ExecTx(tx, `
		INSERT INTO pass_assignments (id, pass_id, teacher_id, created_at)
		VALUES (?, ?, ?, ?)
	`,
		assignment.ID,
		assignment.PassID,
		assignment.TeacherID,
		formatTime(assignment.CreatedAt),
	)
	if err != nil {
		return r.mapPassError(err)
	}
	return nil
}

func (r *PassRepository) ensureAssignmentTx(tx *sql.Tx, assignment persistence.PassAssignment) error {
	_, err := r.helper.ExecTx(tx, `
		INSERT INTO pass_assignments (id, pass_id, teacher_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (pass_id, teacher_id) DO NOTHING
	`,
		assignment.ID,
		assignment.PassID,
		assignment.TeacherID,
		formatTime(assignment.CreatedAt),
	)
	if err != nil {
		return r.mapPassError(err)
	}
	return nil
}

func (r *PassRepository) insertAuditTx(tx *sql.Tx, entry persistence.AuditEntry) error {
	_, err := r.helper.ExecTx(tx, `
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
		return r.mapPassError(err)
	}
	return nil
}

// mapPassError maps SQLite errors to persistence errors for pass operations.
func (r *PassRepository) mapPassError(err error) error {
	if err == nil {
		return nil
	}

	errStr := err.Error()

	if containsAny(errStr, []string{"UNIQUE constraint failed"}) {
		return persistence.ErrDuplicate
	}
	if containsAny(errStr, []string{"FOREIGN KEY constraint failed"}) {
		return persistence.ErrForeignKeyViolation
	}
	if containsAny(errStr, []string{"CHECK constraint failed"}) {
		return persistence.ErrConstraintViolation
	}

	return r.mapper.MapError(err)
}

func scanPass(row *sql.Row) (persistence.Pass, error) {
	var pass persistence.Pass
	var issuedAtStr, expiresAtStr *string
	var createdAtStr, updatedAtStr string

	err := row.Scan(
		&pass.ID,
		&pass.StudentID,
		&pass.DestinationID,
		&issuedAtStr,
		&expiresAtStr,
		&pass.State,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Pass{}, persistence.ErrNotFound
		}
		return persistence.Pass{}, NewErrorMapper().MapError(err)
	}

	if pass.IssuedAt, err = parseNullableTime(issuedAtStr, "issued_at"); err != nil {
		return persistence.Pass{}, err
	}
	if pass.ExpiresAt, err = parseNullableTime(expiresAtStr, "expires_at"); err != nil {
		return persistence.Pass{}, err
	}
	if pass.CreatedAt, err = parseTime(createdAtStr, "created_at"); err != nil {
		return persistence.Pass{}, err
	}
	if pass.UpdatedAt, err = parseTime(updatedAtStr, "updated_at"); err != nil {
		return persistence.Pass{}, err
	}

	return pass, nil
}

func collectPasses(rows *sql.Rows) ([]persistence.Pass, error) {
	defer rows.Close()

	mapper := NewErrorMapper()
	var passes []persistence.Pass
	for rows.Next() {
		var pass persistence.Pass
		var issuedAtStr, expiresAtStr *string
		var createdAtStr, updatedAtStr string

		err := rows.Scan(
			&pass.ID,
			&pass.StudentID,
			&pass.DestinationID,
			&issuedAtStr,
			&expiresAtStr,
			&pass.State,
			&createdAtStr,
			&updatedAtStr,
		)
		if err != nil {
			return nil, mapper.MapError(err)
		}

		if pass.IssuedAt, err = parseNullableTime(issuedAtStr, "issued_at"); err != nil {
			return nil, err
		}
		if pass.ExpiresAt, err = parseNullableTime(expiresAtStr, "expires_at"); err != nil {
			return nil, err
		}
		if pass.CreatedAt, err = parseTime(createdAtStr, "created_at"); err != nil {
			return nil, err
		}
		if pass.UpdatedAt, err = parseTime(updatedAtStr, "updated_at"); err != nil {
			return nil, err
		}

		passes = append(passes, pass)
	}
	if err := rows.Err(); err != nil {
		return nil, mapper.MapError(err)
	}

	return passes, nil
}

func prefixedPassColumns(alias string) string {
	parts := strings.Split(passColumns, ", ")
	for i, part := range parts {
		parts[i] = alias + "." + part
	}
	return strings.Join(parts, ", ")
}
