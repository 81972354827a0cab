package application_test

import (
	"context"
	"errors"
	"testing"

	"github.com/example/hallpass/internal/application"
	"github.com/example/hallpass/internal/testfixtures"
)

func newSettingsService(t *testing.T) (*application.SettingsService, *testfixtures.SQLiteHarness) {
	t.Helper()

	harness := testfixtures.NewSQLiteHarness(t)
	ids := testfixtures.NewIDGenerator("setting")
	return application.NewSettingsService(harness.Settings, harness.Audit, ids.NextFunc(), nil), harness
}

func TestSettingsService_LoadPolicyDefaults(t *testing.T) {
	t.Parallel()

	svc, _ := newSettingsService(t)

	policy, err := svc.LoadPolicy(context.Background())
	if err != nil {
		t.Fatalf("LoadPolicy failed: %v", err)
	}
	if !policy.KioskStrictBinding {
		t.Errorf("expected strict kiosk binding by default")
	}
	if policy.EnforcePeriodTimeWindow {
		t.Errorf("expected window enforcement off by default")
	}
	if !policy.AllowApprovalOutsideWindow {
		t.Errorf("expected approval outside window allowed by default")
	}
}

func TestSettingsService_UpdateSetting(t *testing.T) {
	t.Parallel()

	svc, _ := newSettingsService(t)
	admin := application.Principal{UserID: "admin-1", Role: application.RoleAdmin}

	if err := svc.UpdateSetting(context.Background(), admin, application.SettingEnforcePeriodTimeWindow, "true"); err != nil {
		t.Fatalf("UpdateSetting failed: %v", err)
	}

	policy, err := svc.LoadPolicy(context.Background())
	if err != nil {
		t.Fatalf("LoadPolicy failed: %v", err)
	}
	if !policy.EnforcePeriodTimeWindow {
		t.Errorf("expected window enforcement to be on")
	}
}

func TestSettingsService_UpdateSetting_Validation(t *testing.T) {
	t.Parallel()

	svc, _ := newSettingsService(t)
	admin := application.Principal{UserID: "admin-1", Role: application.RoleAdmin}

	err := svc.UpdateSetting(context.Background(), admin, "unknown_key", "nope")
	var vErr *application.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := vErr.FieldErrors["key"]; !ok {
		t.Errorf("expected key field error")
	}
	if _, ok := vErr.FieldErrors["value"]; !ok {
		t.Errorf("expected value field error")
	}

	teacher := application.Principal{UserID: "t-1", Role: application.RoleTeacher}
	if err := svc.UpdateSetting(context.Background(), teacher, application.SettingKioskStrictBinding, "false"); !errors.Is(err, application.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}
