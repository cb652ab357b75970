package store

import (
	"context"
	"time"

	"chairbook/internal/domain"
)

// AnalyticsRepository exposes rollups over active bookings.
type AnalyticsRepository interface {
	CountActive(ctx context.Context) (int, error)
	SumActiveRevenue(ctx context.Context) (int64, error)
	ActiveStartTimes(ctx context.Context) ([]time.Time, error)
	PopularServices(ctx context.Context, limit int) ([]domain.ServicePopularity, error)
}
