package config

import (
	"os"
	"testing"
	"time"
)

func TestLoader_ParseEnvironment(t *testing.T) {

	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		unset := []string{
			"HALLPASS_HTTP_PORT",
			"HALLPASS_SQLITE_DSN",
			"HALLPASS_SESSION_TTL",
			"HALLPASS_SEED_DEMO_DATA",
		}
		for _, key := range unset {
			if err := os.Unsetenv(key); err != nil {
				t.Fatalf("failed to unset %s: %v", key, err)
			}
		}

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 8080 {
			t.Fatalf("expected default HTTP port 8080, got %d", cfg.HTTPPort)
		}
		if cfg.SQLiteDSN != "file:hallpass.db" {
			t.Fatalf("unexpected default DSN: %q", cfg.SQLiteDSN)
		}
		if cfg.SessionTTL != 12*time.Hour {
			t.Fatalf("expected default session TTL 12h, got %s", cfg.SessionTTL)
		}
		if cfg.SeedDemoData {
			t.Fatalf("expected demo seeding to default off")
		}
	})

	t.Run("parses duration and numeric fields", func(t *testing.T) {
		t.Setenv("HALLPASS_HTTP_PORT", "9090")
		t.Setenv("HALLPASS_SQLITE_DSN", "file:/tmp/hallpass.db")
		t.Setenv("HALLPASS_SESSION_TTL", "8h")
		t.Setenv("HALLPASS_SEED_DEMO_DATA", "true")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 9090 {
			t.Fatalf("expected HTTP port 9090, got %d", cfg.HTTPPort)
		}
		if cfg.SQLiteDSN != "file:/tmp/hallpass.db" {
			t.Fatalf("unexpected DSN: %q", cfg.SQLiteDSN)
		}
		if cfg.SessionTTL != 8*time.Hour {
			t.Fatalf("expected session TTL 8h, got %s", cfg.SessionTTL)
		}
		if !cfg.SeedDemoData {
			t.Fatalf("expected demo seeding to be enabled")
		}
	})

	t.Run("reports unparsable values together", func(t *testing.T) {
		t.Setenv("HALLPASS_HTTP_PORT", "not-a-port")
		t.Setenv("HALLPASS_SESSION_TTL", "soon")

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error for invalid values")
		}
		expected := "invalid environment variable values: HALLPASS_HTTP_PORT, HALLPASS_SESSION_TTL"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})
}
