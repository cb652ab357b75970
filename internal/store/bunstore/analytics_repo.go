package bunstore

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"chairbook/internal/domain"
	"chairbook/internal/store"
)

type AnalyticsRepo struct {
	db *bun.DB
}

func NewAnalyticsRepo(db *bun.DB) *AnalyticsRepo {
	return &AnalyticsRepo{db: db}
}

func (r *AnalyticsRepo) CountActive(ctx context.Context) (int, error) {
	n, err := r.db.NewSelect().
		Model((*domain.Booking)(nil)).
		Where("status = ?", domain.BookingStatusActive).
		Count(ctx)
	if err != nil {
		return 0, store.Wrap("count active bookings", err)
	}
	return n, nil
}

func (r *AnalyticsRepo) SumActiveRevenue(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.NewSelect().
		Model((*domain.Booking)(nil)).
		ColumnExpr("CAST(COALESCE(SUM(price_minor_units), 0) AS BIGINT)").
		Where("status = ?", domain.BookingStatusActive).
		Scan(ctx, &total)
	if err != nil {
		return 0, store.Wrap("sum active revenue", err)
	}
	return total, nil
}

func (r *AnalyticsRepo) ActiveStartTimes(ctx context.Context) ([]time.Time, error) {
	var starts []time.Time
	err := r.db.NewSelect().
		Model((*domain.Booking)(nil)).
		Column("appointment_start").
		Where("status = ?", domain.BookingStatusActive).
		OrderExpr("id ASC").
		Scan(ctx, &starts)
	if err != nil {
		return nil, store.Wrap("active start times", err)
	}
	return starts, nil
}

// PopularServices groups active bookings by service ID. Snapshot names can
// differ across bookings of one ID; the greatest one is reported.
func (r *AnalyticsRepo) PopularServices(ctx context.Context, limit int) ([]domain.ServicePopularity, error) {
	var rows []domain.ServicePopularity
	err := r.db.NewSelect().
		Model((*domain.Booking)(nil)).
		ColumnExpr("service_id").
		ColumnExpr("MAX(service_name) AS service_name").
		ColumnExpr("COUNT(*) AS booking_count").
		ColumnExpr("CAST(COALESCE(SUM(price_minor_units), 0) AS BIGINT) AS total_revenue").
		Where("status = ?", domain.BookingStatusActive).
		Group("service_id").
		OrderExpr("booking_count DESC, service_id ASC").
		Limit(limit).
		Scan(ctx, &rows)
	if err != nil {
		return nil, store.Wrap("popular services", err)
	}
	return rows, nil
}
