package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/hallpass/internal/persistence"
	"github.com/example/hallpass/internal/persistence/sqlite"
)

// SQLiteHarness provides repository access backed by a temporary SQLite
// database for integration-style persistence tests.
type SQLiteHarness struct {
	Pool         *sqlite.ConnectionPool
	Users        persistence.UserRepository
	Destinations persistence.DestinationRepository
	Periods      persistence.PeriodRepository
	Kiosks       persistence.KioskRepository
	Passes       persistence.PassRepository
	Settings     persistence.SettingRepository
	Audit        persistence.AuditRepository
	Sessions     persistence.SessionRepository

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness over a temporary database file
// that is migrated automatically. A cleanup callback is registered with the
// provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	dir := tb.TempDir()
	path := filepath.Join(dir, "hallpass.db")

	pool, err := sqlite.NewConnectionPool(sqlite.DefaultConfig(path))
	if err != nil {
		tb.Fatalf("failed to open database: %v", err)
	}

	if err := sqlite.Migrate(context.Background(), pool); err != nil {
		_ = pool.Close()
		tb.Fatalf("failed to migrate database: %v", err)
	}

	harness := &SQLiteHarness{
		Pool:         pool,
		Users:        sqlite.NewUserRepository(pool),
		Destinations: sqlite.NewDestinationRepository(pool),
		Periods:      sqlite.NewPeriodRepository(pool),
		Kiosks:       sqlite.NewKioskRepository(pool),
		Passes:       sqlite.NewPassRepository(pool),
		Settings:     sqlite.NewSettingRepository(pool),
		Audit:        sqlite.NewAuditRepository(pool),
		Sessions:     sqlite.NewSessionRepository(pool),
		cleanup: func() {
			_ = pool.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}
