package analytics

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"chairbook/internal/domain"
	"chairbook/internal/store"
)

const defaultLimit = 5

// Service reports rollups over active bookings. The single-value reports
// never fail: a storage error is logged and the zero value returned.
type Service struct {
	repo store.AnalyticsRepository
	loc  *time.Location
	log  *slog.Logger
}

func NewService(repo store.AnalyticsRepository, loc *time.Location, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		repo: repo,
		loc:  loc,
		log:  log.With(slog.String("component", "service.analytics")),
	}
}

func (s *Service) TotalBookings(ctx context.Context) int {
	n, err := s.repo.CountActive(ctx)
	if err != nil {
		s.log.Error("total bookings failed", slog.Any("err", err))
		return 0
	}
	return n
}

func (s *Service) TotalRevenue(ctx context.Context) int64 {
	total, err := s.repo.SumActiveRevenue(ctx)
	if err != nil {
		s.log.Error("total revenue failed", slog.Any("err", err))
		return 0
	}
	return total
}

// PeakHours buckets active bookings by local hour of day, busiest first.
func (s *Service) PeakHours(ctx context.Context, limit int) []domain.HourCount {
	out, err := s.peakHours(ctx, limit)
	if err != nil {
		s.log.Error("peak hours failed", slog.Any("err", err))
		return []domain.HourCount{}
	}
	return out
}

func (s *Service) MostPopularServices(ctx context.Context, limit int) []domain.ServicePopularity {
	out, err := s.repo.PopularServices(ctx, normalizeLimit(limit))
	if err != nil {
		s.log.Error("popular services failed", slog.Any("err", err))
		return []domain.ServicePopularity{}
	}
	return out
}

type Summary struct {
	TotalBookings   int
	TotalRevenue    int64
	PeakHours       []domain.HourCount
	PopularServices []domain.ServicePopularity
}

// Summary computes every rollup concurrently. Unlike the single reports it
// returns the first storage error.
func (s *Service) Summary(ctx context.Context, limit int) (Summary, error) {
	var out Summary
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := s.repo.CountActive(gctx)
		out.TotalBookings = n
		return err
	})
	g.Go(func() error {
		total, err := s.repo.SumActiveRevenue(gctx)
		out.TotalRevenue = total
		return err
	})
	g.Go(func() error {
		hours, err := s.peakHours(gctx, limit)
		out.PeakHours = hours
		return err
	})
	g.Go(func() error {
		popular, err := s.repo.PopularServices(gctx, normalizeLimit(limit))
		out.PopularServices = popular
		return err
	})

	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	return out, nil
}

func (s *Service) peakHours(ctx context.Context, limit int) ([]domain.HourCount, error) {
	starts, err := s.repo.ActiveStartTimes(ctx)
	if err != nil {
		return nil, err
	}

	var counts [24]int
	for _, t := range starts {
		counts[t.In(s.loc).Hour()]++
	}

	out := make([]domain.HourCount, 0, 24)
	for hour, n := range counts {
		if n > 0 {
			out = append(out, domain.HourCount{Hour: hour, Count: n})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Hour < out[j].Hour
	})

	if n := normalizeLimit(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	return limit
}
