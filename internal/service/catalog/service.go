package catalog

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"chairbook/internal/domain"
	"chairbook/internal/store"
)

type Service struct {
	repo store.ServiceRepository
	log  *slog.Logger
}

func NewService(repo store.ServiceRepository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, log: log.With(slog.String("component", "service.catalog"))}
}

type CreateInput struct {
	ID              string
	Name            string
	PriceMinorUnits int64
	DurationMinutes int
}

func (s *Service) Create(ctx context.Context, in CreateInput) (domain.Service, error) {
	id := strings.TrimSpace(in.ID)
	if !domain.ValidServiceID(id) {
		return domain.Service{}, domain.NewValidationError("service id must be a lowercase slug")
	}
	name := strings.TrimSpace(in.Name)
	if err := validateFields(name, in.PriceMinorUnits, in.DurationMinutes); err != nil {
		return domain.Service{}, err
	}

	created, err := s.repo.CreateService(ctx, domain.Service{
		ID:              id,
		Name:            name,
		PriceMinorUnits: in.PriceMinorUnits,
		DurationMinutes: in.DurationMinutes,
		Active:          true,
	})
	if err != nil {
		return domain.Service{}, err
	}
	s.log.Info("service created", slog.String("service_id", id))
	return created, nil
}

func (s *Service) List(ctx context.Context, includeInactive bool) ([]domain.Service, error) {
	return s.repo.ListServices(ctx, includeInactive)
}

// Get returns the service whether or not it is active.
func (s *Service) Get(ctx context.Context, id string) (domain.Service, error) {
	return s.repo.GetService(ctx, strings.TrimSpace(id))
}

// Lookup reports a missing service as ok=false instead of an error.
func (s *Service) Lookup(ctx context.Context, id string) (domain.Service, bool, error) {
	svc, err := s.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Service{}, false, nil
	}
	if err != nil {
		return domain.Service{}, false, err
	}
	return svc, true, nil
}

// UpdateInput carries a partial change; nil fields are left alone.
type UpdateInput struct {
	Name            *string
	PriceMinorUnits *int64
	DurationMinutes *int
	Active          *bool
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (domain.Service, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return domain.Service{}, err
	}

	next := current
	if in.Name != nil {
		next.Name = strings.TrimSpace(*in.Name)
	}
	if in.PriceMinorUnits != nil {
		next.PriceMinorUnits = *in.PriceMinorUnits
	}
	if in.DurationMinutes != nil {
		next.DurationMinutes = *in.DurationMinutes
	}
	if in.Active != nil {
		next.Active = *in.Active
	}
	if err := validateFields(next.Name, next.PriceMinorUnits, next.DurationMinutes); err != nil {
		return domain.Service{}, err
	}

	updated, err := s.repo.UpdateService(ctx, next)
	if err != nil {
		return domain.Service{}, err
	}
	s.log.Info("service updated", slog.String("service_id", updated.ID))
	return updated, nil
}

// Delete deactivates the service. Bookings keep their snapshot of it.
func (s *Service) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if err := s.repo.DeactivateService(ctx, id); err != nil {
		return err
	}
	s.log.Info("service deactivated", slog.String("service_id", id))
	return nil
}

func validateFields(name string, price int64, minutes int) error {
	if name == "" {
		return domain.NewValidationError("name is required")
	}
	if price < 0 {
		return domain.NewValidationError("price must not be negative")
	}
	if minutes <= 0 {
		return domain.NewValidationError("duration must be positive")
	}
	return nil
}
