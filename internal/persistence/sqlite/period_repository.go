package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/hallpass/internal/persistence"
)

// PeriodRepository implements persistence.PeriodRepository using SQLite.
type PeriodRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
	now    func() time.Time
}

// NewPeriodRepository creates a new SQLite schedule period repository.
func NewPeriodRepository(pool *ConnectionPool) *PeriodRepository {
	return &PeriodRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		now:    time.Now,
	}
}

const periodColumns = "id, name, teacher_id, start_time, end_time, days_mask, room, is_active, created_at, updated_at"

// CreatePeriod inserts a new schedule period.
func (r *PeriodRepository) CreatePeriod(ctx context.Context, period persistence.SchedulePeriod) error {
	if period.ID == "" || period.TeacherID == "" {
		return persistence.ErrConstraintViolation
	}

	now := r.now().UTC()
	period.CreatedAt = now
	period.UpdatedAt = now

	_, err := r.helper.Exec(ctx, `
		INSERT INTO schedule_periods (`+periodColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		period.ID,
		period.Name,
		period.TeacherID,
		period.StartTime,
		period.EndTime,
		period.DaysMask,
		period.Room,
		period.Active,
		formatTime(period.CreatedAt),
		formatTime(period.UpdatedAt),
	)
	if err != nil {
		return r.mapper.MapError(err)
	}

	return nil
}

// UpdatePeriod updates an existing schedule period.
func (r *PeriodRepository) UpdatePeriod(ctx context.Context, period persistence.SchedulePeriod) error {
	if period.ID == "" || period.TeacherID == "" {
		return persistence.ErrConstraintViolation
	}

	period.UpdatedAt = r.now().UTC()

	result, err := r.helper.Exec(ctx, `
		UPDATE schedule_periods
		SET name = ?, teacher_id = ?, start_time = ?, end_time = ?, days_mask = ?, room = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`,
		period.Name,
		period.TeacherID,
		period.StartTime,
		period.EndTime,
		period.DaysMask,
		period.Room,
		period.Active,
		formatTime(period.UpdatedAt),
		period.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return persistence.ErrNotFound
	}

	return nil
}

// GetPeriod retrieves a schedule period by ID.
func (r *PeriodRepository) GetPeriod(ctx context.Context, id string) (persistence.SchedulePeriod, error) {
	if id == "" {
		return persistence.SchedulePeriod{}, persistence.ErrNotFound
	}

	row := r.helper.QueryRow(ctx, "SELECT "+periodColumns+" FROM schedule_periods WHERE id = ?", id)
	return r.scanPeriod(row)
}

// ListPeriods returns all schedule periods ordered by ID.
func (r *PeriodRepository) ListPeriods(ctx context.Context) ([]persistence.SchedulePeriod, error) {
	rows, err := r.helper.Query(ctx, "SELECT "+periodColumns+" FROM schedule_periods ORDER BY id ASC")
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	return r.collectPeriods(rows)
}

// ListPeriodsByTeacher returns the teacher's schedule periods ordered by ID.
func (r *PeriodRepository) ListPeriodsByTeacher(ctx context.Context, teacherID string) ([]persistence.SchedulePeriod, error) {
	rows, err := r.helper.Query(ctx,
		"SELECT "+periodColumns+" FROM schedule_periods WHERE teacher_id = ? ORDER BY id ASC",
		teacherID,
	)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	return r.collectPeriods(rows)
}

// AddEnrollment inserts a student enrollment.
func (r *PeriodRepository) AddEnrollment(ctx context.Context, enrollment persistence.Enrollment) error {
	if enrollment.ID == "" || enrollment.StudentID == "" || enrollment.PeriodID == "" {
		return persistence.ErrConstraintViolation
	}

	enrollment.CreatedAt = r.now().UTC()

	_, err := r.helper.Exec(ctx, `
		INSERT INTO enrollments (id, student_id, period_id, is_active, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		enrollment.ID,
		enrollment.StudentID,
		enrollment.PeriodID,
		enrollment.Active,
		formatTime(enrollment.CreatedAt),
	)
	if err != nil {
		return r.mapper.MapError(err)
	}

	return nil
}

// RemoveEnrollment deletes an enrollment by ID.
func (r *PeriodRepository) RemoveEnrollment(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	result, err := r.helper.Exec(ctx, "DELETE FROM enrollments WHERE id = ?", id)
	if err != nil {
		return r.mapper.MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return persistence.ErrNotFound
	}

	return nil
}

// ListEnrollments returns the enrollments of a period ordered by creation.
func (r *PeriodRepository) ListEnrollments(ctx context.Context, periodID string) ([]persistence.Enrollment, error) {
	rows, err := r.helper.Query(ctx, `
		SELECT id, student_id, period_id, is_active, created_at
		FROM enrollments
		WHERE period_id = ?
		ORDER BY created_at ASC, id ASC
	`, periodID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var enrollments []persistence.Enrollment
	for rows.Next() {
		var enrollment persistence.Enrollment
		var createdAtStr string

		err := rows.Scan(
			&enrollment.ID,
			&enrollment.StudentID,
			&enrollment.PeriodID,
			&enrollment.Active,
			&createdAtStr,
		)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}

		if enrollment.CreatedAt, err = parseTime(createdAtStr, "created_at"); err != nil {
			return nil, err
		}

		enrollments = append(enrollments, enrollment)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}

	return enrollments, nil
}

// ActiveEnrollmentExists reports whether the student holds an active
// enrollment in the period.
func (r *PeriodRepository) ActiveEnrollmentExists(ctx context.Context, studentID, periodID string) (bool, error) {
	var count int
	err := r.helper.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM enrollments
		WHERE student_id = ? AND period_id = ? AND is_active = 1
	`, studentID, periodID).Scan(&count)
	if err != nil {
		return false, r.mapper.MapError(err)
	}
	return count > 0, nil
}

// ListActiveEnrolledPeriods returns the active periods the student is
// actively enrolled in whose owning teacher is an active teacher account,
// ordered by period ID.
func (r *PeriodRepository) ListActiveEnrolledPeriods(ctx context.Context, studentID string) ([]persistence.SchedulePeriod, error) {
	rows, err := r.helper.Query(ctx, `
		SELECT `+prefixedPeriodColumns("p")+`
		FROM schedule_periods p
		JOIN enrollments e ON e.period_id = p.id
		JOIN users t ON t.id = p.teacher_id
		WHERE e.student_id = ?
		  AND e.is_active = 1
		  AND p.is_active = 1
		  AND t.is_active = 1
		  AND t.role = 'Teacher'
		ORDER BY p.id ASC
	`, studentID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	return r.collectPeriods(rows)
}

// ListApproverPeriodsForStudent returns the approver's active periods in
// which the student is actively enrolled, ordered by period ID.
func (r *PeriodRepository) ListApproverPeriodsForStudent(ctx context.Context, teacherID, studentID string) ([]persistence.SchedulePeriod, error) {
	rows, err := r.helper.Query(ctx, `
		SELECT `+prefixedPeriodColumns("p")+`
		FROM schedule_periods p
		JOIN enrollments e ON e.period_id = p.id
		WHERE p.teacher_id = ?
		  AND p.is_active = 1
		  AND e.student_id = ?
		  AND e.is_active = 1
		ORDER BY p.id ASC
	`, teacherID, studentID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	return r.collectPeriods(rows)
}

func (r *PeriodRepository) scanPeriod(row *sql.Row) (persistence.SchedulePeriod, error) {
	var period persistence.SchedulePeriod
	var createdAtStr, updatedAtStr string

	err := row.Scan(
		&period.ID,
		&period.Name,
		&period.TeacherID,
		&period.StartTime,
		&period.EndTime,
		&period.DaysMask,
		&period.Room,
		&period.Active,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.SchedulePeriod{}, persistence.ErrNotFound
		}
		return persistence.SchedulePeriod{}, r.mapper.MapError(err)
	}

	if period.CreatedAt, err = parseTime(createdAtStr, "created_at"); err != nil {
		return persistence.SchedulePeriod{}, err
	}
	if period.UpdatedAt, err = parseTime(updatedAtStr, "updated_at"); err != nil {
		return persistence.SchedulePeriod{}, err
	}

	return period, nil
}

func (r *PeriodRepository) collectPeriods(rows *sql.Rows) ([]persistence.SchedulePeriod, error) {
	defer rows.Close()

	var periods []persistence.SchedulePeriod
	for rows.Next() {
		var period persistence.SchedulePeriod
		var createdAtStr, updatedAtStr string

		err := rows.Scan(
			&period.ID,
			&period.Name,
			&period.TeacherID,
			&period.StartTime,
			&period.EndTime,
			&period.DaysMask,
			&period.Room,
			&period.Active,
			&createdAtStr,
			&updatedAtStr,
		)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}

		if period.CreatedAt, err = parseTime(createdAtStr, "created_at"); err != nil {
			return nil, err
		}
		if period.UpdatedAt, err = parseTime(updatedAtStr, "updated_at"); err != nil {
			return nil, err
		}

		periods = append(periods, period)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}

	return periods, nil
}

func prefixedPeriodColumns(alias string) string {
	return alias + ".id, " + alias + ".name, " + alias + ".teacher_id, " +
		alias + ".start_time, " + alias + ".end_time, " + alias + ".days_mask, " +
		alias + ".room, " + alias + ".is_active, " + alias + ".created_at, " + alias + ".updated_at"
}
