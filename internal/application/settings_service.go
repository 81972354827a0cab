package application

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/example/hallpass/internal/persistence"
)

// PolicyScope is the settings scope holding the lifecycle policy flags.
const PolicyScope = "policy"

// Keys of the recognised policy settings.
const (
	SettingKioskStrictBinding         = "kiosk_strict_binding"
	SettingEnforcePeriodTimeWindow    = "enforce_period_time_window"
	SettingAllowApprovalOutsideWindow = "allow_teacher_approval_outside_period"
)

// SettingStore captures the persistence operations needed by the settings
// service.
type SettingStore interface {
	ListSettings(ctx context.Context, scope string) ([]persistence.Setting, error)
	UpsertSetting(ctx context.Context, setting persistence.Setting) error
}

// SettingsAuditStore appends audit entries for setting changes.
type SettingsAuditStore interface {
	AppendEntry(ctx context.Context, entry persistence.AuditEntry) error
}

// SettingsService stores scoped key/value settings and materialises the
// lifecycle Policy from them.
type SettingsService struct {
	settings    SettingStore
	audit       SettingsAuditStore
	idGenerator func() string
	logger      *slog.Logger
}

// NewSettingsService wires dependencies for the settings service.
func NewSettingsService(settings SettingStore, audit SettingsAuditStore, idGenerator func() string, logger *slog.Logger) *SettingsService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	return &SettingsService{
		settings:    settings,
		audit:       audit,
		idGenerator: idGenerator,
		logger:      defaultLogger(logger),
	}
}

// LoadPolicy reads the policy scope and overlays stored flags on the
// defaults. Unknown keys are ignored; unparsable values keep the default.
func (s *SettingsService) LoadPolicy(ctx context.Context) (Policy, error) {
	policy := DefaultPolicy()

	stored, err := s.settings.ListSettings(ctx, PolicyScope)
	if err != nil {
		return Policy{}, fmt.Errorf("failed to load policy settings: %w", err)
	}

	for _, setting := range stored {
		value, err := strconv.ParseBool(setting.Value)
		if err != nil {
			serviceLogger(ctx, s.logger, "settings", "load_policy").Warn("ignoring unparsable policy value",
				"key", setting.Key, "value", setting.Value)
			continue
		}
		switch setting.Key {
		case SettingKioskStrictBinding:
			policy.KioskStrictBinding = value
		case SettingEnforcePeriodTimeWindow:
			policy.EnforcePeriodTimeWindow = value
		case SettingAllowApprovalOutsideWindow:
			policy.AllowApprovalOutsideWindow = value
		}
	}

	return policy, nil
}

// ListSettings returns the policy scope settings for administrators.
func (s *SettingsService) ListSettings(ctx context.Context, principal Principal) ([]persistence.Setting, error) {
	if !principal.IsAdmin() {
		return nil, ErrUnauthorized
	}
	return s.settings.ListSettings(ctx, PolicyScope)
}

// UpdateSetting stores a policy flag for administrators. Only the recognised
// keys are accepted and values must parse as booleans.
func (s *SettingsService) UpdateSetting(ctx context.Context, principal Principal, key, value string) error {
	if !principal.IsAdmin() {
		return ErrUnauthorized
	}

	vErr := &ValidationError{}
	switch strings.TrimSpace(key) {
	case SettingKioskStrictBinding, SettingEnforcePeriodTimeWindow, SettingAllowApprovalOutsideWindow:
	default:
		vErr.add("key", "unknown setting key")
	}
	if _, err := strconv.ParseBool(value); err != nil {
		vErr.add("value", "must be a boolean")
	}
	if vErr.HasErrors() {
		return vErr
	}

	err := s.settings.UpsertSetting(ctx, persistence.Setting{
		Key:   strings.TrimSpace(key),
		Scope: PolicyScope,
		Value: value,
	})
	if err != nil {
		return err
	}

	s.appendAudit(ctx, principal, key, value)
	return nil
}

func (s *SettingsService) appendAudit(ctx context.Context, principal Principal, key, value string) {
	if s.audit == nil {
		return
	}
	actorID := principal.UserID
	message := key + "=" + value
	err := s.audit.AppendEntry(ctx, persistence.AuditEntry{
		ID:         s.idGenerator(),
		ActorID:    &actorID,
		Action:     "setting.updated",
		TargetType: "setting",
		TargetID:   &key,
		Message:    &message,
	})
	if err != nil {
		serviceLogger(ctx, s.logger, "settings", "update_setting").Warn("failed to append audit entry",
			"error", err)
	}
}
