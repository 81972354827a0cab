package application

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/example/hallpass/internal/persistence"
)

// Destination is the application view of a pass destination.
type Destination struct {
	ID             string
	Name           string
	DefaultMinutes int
	// MaxConcurrent is advisory: it is stored and surfaced but the lifecycle
	// never enforces it.
	MaxConcurrent int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func destinationFromRecord(record persistence.Destination) Destination {
	return Destination{
		ID:             record.ID,
		Name:           record.Name,
		DefaultMinutes: record.DefaultMinutes,
		MaxConcurrent:  record.MaxConcurrent,
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
	}
}

// DestinationInput carries the caller-supplied destination fields.
type DestinationInput struct {
	Name           string
	DefaultMinutes int
	MaxConcurrent  int
}

// CatalogStore captures the persistence operations needed by the catalog
// service.
type CatalogStore interface {
	CreateDestination(ctx context.Context, destination persistence.Destination) error
	UpdateDestination(ctx context.Context, destination persistence.Destination) error
	GetDestination(ctx context.Context, id string) (persistence.Destination, error)
	ListDestinations(ctx context.Context) ([]persistence.Destination, error)
}

// CatalogService manages the destination catalog.
type CatalogService struct {
	destinations CatalogStore
	audit        SettingsAuditStore
	idGenerator  func() string
	logger       *slog.Logger
}

// NewCatalogService wires dependencies for the catalog service.
func NewCatalogService(destinations CatalogStore, audit SettingsAuditStore, idGenerator func() string, logger *slog.Logger) *CatalogService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	return &CatalogService{
		destinations: destinations,
		audit:        audit,
		idGenerator:  idGenerator,
		logger:       defaultLogger(logger),
	}
}

// CreateDestination persists a new destination for administrators.
func (s *CatalogService) CreateDestination(ctx context.Context, principal Principal, input DestinationInput) (Destination, error) {
	if !principal.IsAdmin() {
		return Destination{}, ErrUnauthorized
	}

	input.Name = strings.TrimSpace(input.Name)
	vErr := validateDestinationInput(input)
	if vErr.HasErrors() {
		return Destination{}, vErr
	}

	record := persistence.Destination{
		ID:             s.idGenerator(),
		Name:           input.Name,
		DefaultMinutes: input.DefaultMinutes,
		MaxConcurrent:  input.MaxConcurrent,
	}
	if err := s.destinations.CreateDestination(ctx, record); err != nil {
		return Destination{}, mapStoreError(err)
	}

	s.appendAudit(ctx, principal, "destination.created", record.ID)
	return destinationFromRecord(record), nil
}

// UpdateDestination updates an existing destination for administrators.
func (s *CatalogService) UpdateDestination(ctx context.Context, principal Principal, id string, input DestinationInput) (Destination, error) {
	if !principal.IsAdmin() {
		return Destination{}, ErrUnauthorized
	}

	existing, err := s.destinations.GetDestination(ctx, id)
	if err != nil {
		return Destination{}, mapStoreError(err)
	}

	input.Name = strings.TrimSpace(input.Name)
	vErr := validateDestinationInput(input)
	if vErr.HasErrors() {
		return Destination{}, vErr
	}

	updated := existing
	updated.Name = input.Name
	updated.DefaultMinutes = input.DefaultMinutes
	updated.MaxConcurrent = input.MaxConcurrent

	if err := s.destinations.UpdateDestination(ctx, updated); err != nil {
		return Destination{}, mapStoreError(err)
	}

	s.appendAudit(ctx, principal, "destination.updated", updated.ID)
	return destinationFromRecord(updated), nil
}

// ListDestinations returns the catalog. Any authenticated principal may read
// it; students need it to file requests.
func (s *CatalogService) ListDestinations(ctx context.Context) ([]Destination, error) {
	records, err := s.destinations.ListDestinations(ctx)
	if err != nil {
		return nil, err
	}

	destinations := make([]Destination, 0, len(records))
	for _, record := range records {
		destinations = append(destinations, destinationFromRecord(record))
	}
	return destinations, nil
}

func (s *CatalogService) appendAudit(ctx context.Context, principal Principal, action, targetID string) {
	if s.audit == nil {
		return
	}
	actorID := principal.UserID
	target := targetID
	err := s.audit.AppendEntry(ctx, persistence.AuditEntry{
		ID:         s.idGenerator(),
		ActorID:    &actorID,
		Action:     action,
		TargetType: "destination",
		TargetID:   &target,
	})
	if err != nil {
		serviceLogger(ctx, s.logger, "catalog", action).Warn("failed to append audit entry", "error", err)
	}
}

func validateDestinationInput(input DestinationInput) *ValidationError {
	vErr := &ValidationError{}
	if input.Name == "" {
		vErr.add("name", "required")
	}
	if input.DefaultMinutes <= 0 {
		vErr.add("default_minutes", "must be positive")
	}
	if input.MaxConcurrent == 0 || input.MaxConcurrent < -1 {
		vErr.add("max_concurrent", "must be positive or -1 for unbounded")
	}
	return vErr
}
