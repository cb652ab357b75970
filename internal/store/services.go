package store

import (
	"context"

	"chairbook/internal/domain"
)

type ServiceRepository interface {
	CreateService(ctx context.Context, s domain.Service) (domain.Service, error)
	GetService(ctx context.Context, id string) (domain.Service, error)
	ListServices(ctx context.Context, includeInactive bool) ([]domain.Service, error)
	UpdateService(ctx context.Context, s domain.Service) (domain.Service, error)
	DeactivateService(ctx context.Context, id string) error
}
