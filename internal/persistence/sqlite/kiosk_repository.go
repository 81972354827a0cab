package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/hallpass/internal/persistence"
)

// KioskRepository implements persistence.KioskRepository using SQLite.
type KioskRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
	now    func() time.Time
}

// NewKioskRepository creates a new SQLite kiosk repository.
func NewKioskRepository(pool *ConnectionPool) *KioskRepository {
	return &KioskRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		now:    time.Now,
	}
}

const kioskColumns = "id, token, name, room, period_id, teacher_id, is_active, created_at, updated_at"

// CreateKiosk inserts a new kiosk.
func (r *KioskRepository) CreateKiosk(ctx context.Context, kiosk persistence.Kiosk) error {
	if kiosk.ID == "" || kiosk.Token == "" {
		return persistence.ErrConstraintViolation
	}

	now := r.now().UTC()
	kiosk.CreatedAt = now
	kiosk.UpdatedAt = now

	_, err := r.helper.Exec(ctx, `
		INSERT INTO kiosks (`+kioskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		kiosk.ID,
		kiosk.Token,
		kiosk.Name,
		kiosk.Room,
		kiosk.PeriodID,
		kiosk.TeacherID,
		kiosk.Active,
		formatTime(kiosk.CreatedAt),
		formatTime(kiosk.UpdatedAt),
	)
	if err != nil {
		return r.mapper.MapError(err)
	}

	return nil
}

// UpdateKiosk updates an existing kiosk, including token rotation and
// binding changes.
func (r *KioskRepository) UpdateKiosk(ctx context.Context, kiosk persistence.Kiosk) error {
	if kiosk.ID == "" || kiosk.Token == "" {
		return persistence.ErrConstraintViolation
	}

	kiosk.UpdatedAt = r.now().UTC()

	result, err := r.helper.Exec(ctx, `
		UPDATE kiosks
		SET token = ?, name = ?, room = ?, period_id = ?, teacher_id = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`,
		kiosk.Token,
		kiosk.Name,
		kiosk.Room,
		kiosk.PeriodID,
		kiosk.TeacherID,
		kiosk.Active,
		formatTime(kiosk.UpdatedAt),
		kiosk.ID,
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

// GetKiosk retrieves a kiosk by ID.
func (r *KioskRepository) GetKiosk(ctx context.Context, id string) (persistence.Kiosk, error) {
	if id == "" {
		return persistence.Kiosk{}, persistence.ErrNotFound
	}

	row := r.helper.QueryRow(ctx, "SELECT "+kioskColumns+" FROM kiosks WHERE id = ?", id)
	return r.scanKiosk(row)
}

// GetActiveKioskByToken resolves an active kiosk from its token.
func (r *KioskRepository) GetActiveKioskByToken(ctx context.Context, token string) (persistence.Kiosk, error) {
	if token == "" {
		return persistence.Kiosk{}, persistence.ErrNotFound
	}

	row := r.helper.QueryRow(ctx, "SELECT "+kioskColumns+" FROM kiosks WHERE token = ? AND is_active = 1", token)
	return r.scanKiosk(row)
}

// ListKiosks returns all kiosks ordered by name.
func (r *KioskRepository) ListKiosks(ctx context.Context) ([]persistence.Kiosk, error) {
	rows, err := r.helper.Query(ctx, "SELECT "+kioskColumns+" FROM kiosks ORDER BY name ASC, id ASC")
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var kiosks []persistence.Kiosk
	for rows.Next() {
		var kiosk persistence.Kiosk
		var createdAtStr, updatedAtStr string

		err := rows.Scan(
			&kiosk.ID,
			&kiosk.Token,
			&kiosk.Name,
			&kiosk.Room,
			&kiosk.PeriodID,
			&kiosk.TeacherID,
			&kiosk.Active,
			&createdAtStr,
			&updatedAtStr,
		)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}

		if kiosk.CreatedAt, err = parseTime(createdAtStr, "created_at"); err != nil {
			return nil, err
		}
		if kiosk.UpdatedAt, err = parseTime(updatedAtStr, "updated_at"); err != nil {
			return nil, err
		}

		kiosks = append(kiosks, kiosk)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}

	return kiosks, nil
}

func (r *KioskRepository) scanKiosk(row *sql.Row) (persistence.Kiosk, error) {
	var kiosk persistence.Kiosk
	var createdAtStr, updatedAtStr string

	err := row.Scan(
		&kiosk.ID,
		&kiosk.Token,
		&kiosk.Name,
		&kiosk.Room,
		&kiosk.PeriodID,
		&kiosk.TeacherID,
		&kiosk.Active,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Kiosk{}, persistence.ErrNotFound
		}
		return persistence.Kiosk{}, r.mapper.MapError(err)
	}

	if kiosk.CreatedAt, err = parseTime(createdAtStr, "created_at"); err != nil {
		return persistence.Kiosk{}, err
	}
	if kiosk.UpdatedAt, err = parseTime(updatedAtStr, "updated_at"); err != nil {
		return persistence.Kiosk{}, err
	}

	return kiosk, nil
}
