package sqlite

import (
	"context"

	"github.com/example/hallpass/internal/persistence"
)

// SettingRepository implements persistence.SettingRepository using SQLite.
type SettingRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewSettingRepository creates a new SQLite setting repository.
func NewSettingRepository(pool *ConnectionPool) *SettingRepository {
	return &SettingRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// ListSettings returns every setting in the scope ordered by key.
func (r *SettingRepository) ListSettings(ctx context.Context, scope string) ([]persistence.Setting, error) {
	rows, err := r.helper.Query(ctx, `
		SELECT key, scope, value
		FROM settings
		WHERE scope = ?
		ORDER BY key ASC
	`, scope)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var settings []persistence.Setting
	for rows.Next() {
		var setting persistence.Setting
		if err := rows.Scan(&setting.Key, &setting.Scope, &setting.Value); err != nil {
			return nil, r.mapper.MapError(err)
		}
		settings = append(settings, setting)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}

	return settings, nil
}

// UpsertSetting inserts or replaces the value of a scoped key.
func (r *SettingRepository) UpsertSetting(ctx context.Context, setting persistence.Setting) error {
	if setting.Key == "" || setting.Scope == "" {
		return persistence.ErrConstraintViolation
	}

	_, err := r.helper.Exec(ctx, `
		INSERT INTO settings (key, scope, value)
		VALUES (?, ?, ?)
		ON CONFLICT (key, scope) DO UPDATE SET value = excluded.value
	`,
		setting.Key,
		setting.Scope,
		setting.Value,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}

	return nil
}
