package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/hallpass/internal/persistence"
)

// DestinationRepository implements persistence.DestinationRepository using SQLite.
type DestinationRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
	now    func() time.Time
}

// NewDestinationRepository creates a new SQLite destination repository.
func NewDestinationRepository(pool *ConnectionPool) *DestinationRepository {
	return &DestinationRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		now:    time.Now,
	}
}

const destinationColumns = "id, name, default_minutes, max_concurrent, created_at, updated_at"

// CreateDestination inserts a new destination.
func (r *DestinationRepository) CreateDestination(ctx context.Context, destination persistence.Destination) error {
	if destination.ID == "" {
		return persistence.ErrConstraintViolation
	}

	now := r.now().UTC()
	destination.CreatedAt = now
	destination.UpdatedAt = now

	_, err := r.helper.Exec(ctx, `
		INSERT INTO destinations (`+destinationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		destination.ID,
		destination.Name,
		destination.DefaultMinutes,
		destination.MaxConcurrent,
		formatTime(destination.CreatedAt),
		formatTime(destination.UpdatedAt),
	)
	if err != nil {
		return r.mapper.MapError(err)
	}

	return nil
}

// UpdateDestination updates an existing destination.
func (r *DestinationRepository) UpdateDestination(ctx context.Context, destination persistence.Destination) error {
	if destination.ID == "" {
		return persistence.ErrConstraintViolation
	}

	destination.UpdatedAt = r.now().UTC()

	result, err := r.helper.Exec(ctx, `
		UPDATE destinations
		SET name = ?, default_minutes = ?, max_concurrent = ?, updated_at = ?
		WHERE id = ?
	`,
		destination.Name,
		destination.DefaultMinutes,
		destination.MaxConcurrent,
		formatTime(destination.UpdatedAt),
		destination.ID,
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

// GetDestination retrieves a destination by ID.
func (r *DestinationRepository) GetDestination(ctx context.Context, id string) (persistence.Destination, error) {
	if id == "" {
		return persistence.Destination{}, persistence.ErrNotFound
	}

	var destination persistence.Destination
	var createdAtStr, updatedAtStr string

	err := r.helper.QueryRow(ctx, "SELECT "+destinationColumns+" FROM destinations WHERE id = ?", id).Scan(
		&destination.ID,
		&destination.Name,
		&destination.DefaultMinutes,
		&destination.MaxConcurrent,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Destination{}, persistence.ErrNotFound
		}
		return persistence.Destination{}, r.mapper.MapError(err)
	}

	if destination.CreatedAt, err = parseTime(createdAtStr, "created_at"); err != nil {
		return persistence.Destination{}, err
	}
	if destination.UpdatedAt, err = parseTime(updatedAtStr, "updated_at"); err != nil {
		return persistence.Destination{}, err
	}

	return destination, nil
}

// ListDestinations returns all destinations ordered by name.
func (r *DestinationRepository) ListDestinations(ctx context.Context) ([]persistence.Destination, error) {
	rows, err := r.helper.Query(ctx, "SELECT "+destinationColumns+" FROM destinations ORDER BY name ASC, id ASC")
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var destinations []persistence.Destination
	for rows.Next() {
		var destination persistence.Destination
		var createdAtStr, updatedAtStr string

		err := rows.Scan(
			&destination.ID,
			&destination.Name,
			&destination.DefaultMinutes,
			&destination.MaxConcurrent,
			&createdAtStr,
			&updatedAtStr,
		)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}

		if destination.CreatedAt, err = parseTime(createdAtStr, "created_at"); err != nil {
			return nil, err
		}
		if destination.UpdatedAt, err = parseTime(updatedAtStr, "updated_at"); err != nil {
			return nil, err
		}

		destinations = append(destinations, destination)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}

	return destinations, nil
}
