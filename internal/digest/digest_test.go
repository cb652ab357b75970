package digest

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"chairbook/internal/domain"
)

type fakeAvailability struct {
	slotsFn func(ctx context.Context, date time.Time, minutes int) ([]domain.Slot, error)
	fullFn  func(ctx context.Context, year int, month time.Month) []time.Time
}

func (f *fakeAvailability) SlotAvailability(ctx context.Context, date time.Time, minutes int) ([]domain.Slot, error) {
	if f.slotsFn == nil {
		panic("SlotAvailability not configured")
	}
	return f.slotsFn(ctx, date, minutes)
}

func (f *fakeAvailability) FullyBookedDates(ctx context.Context, year int, month time.Month) []time.Time {
	if f.fullFn == nil {
		panic("FullyBookedDates not configured")
	}
	return f.fullFn(ctx, year, month)
}

func (f *fakeAvailability) Hours() domain.OpeningHours {
	h := domain.DefaultOpeningHours()
	h.Location = time.UTC
	return h
}

type revenueFunc func(ctx context.Context, year int, month time.Month) (int64, error)

func (f revenueFunc) Revenue(ctx context.Context, year int, month time.Month) (int64, error) {
	return f(ctx, year, month)
}

type catalogFunc func(ctx context.Context, includeInactive bool) ([]domain.Service, error)

func (f catalogFunc) List(ctx context.Context, includeInactive bool) ([]domain.Service, error) {
	return f(ctx, includeInactive)
}

func TestBuild(t *testing.T) {
	now := time.Date(2024, time.March, 31, 20, 0, 0, 0, time.UTC)
	var slotDays []time.Time

	avail := &fakeAvailability{
		slotsFn: func(ctx context.Context, date time.Time, minutes int) ([]domain.Slot, error) {
			slotDays = append(slotDays, date)
			if minutes == 30 {
				return []domain.Slot{{Available: true}, {Available: false}, {Available: true}}, nil
			}
			return []domain.Slot{{Available: false}}, nil
		},
		fullFn: func(ctx context.Context, year int, month time.Month) []time.Time {
			if year != 2024 || month != time.March {
				t.Fatalf("FullyBookedDates(%d, %v), want March 2024", year, month)
			}
			return []time.Time{time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)}
		},
	}
	revenue := revenueFunc(func(ctx context.Context, year int, month time.Month) (int64, error) {
		return 1500, nil
	})
	catalog := catalogFunc(func(ctx context.Context, includeInactive bool) ([]domain.Service, error) {
		if includeInactive {
			t.Fatalf("digest must only list active services")
		}
		return []domain.Service{
			{ID: "kids-cut", DurationMinutes: 30, Active: true},
			{ID: "colour", DurationMinutes: 120, Active: true},
		}, nil
	})

	job := NewJob(avail, revenue, catalog, slog.Default())
	job.now = func() time.Time { return now }

	report, err := job.Build(context.Background())
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	wantDay := time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)
	if !report.Day.Equal(wantDay) {
		t.Fatalf("Day = %v, want %v", report.Day, wantDay)
	}
	for _, d := range slotDays {
		if !d.Equal(wantDay) {
			t.Fatalf("slots requested for %v, want %v", d, wantDay)
		}
	}
	if report.OpenSlots["kids-cut"] != 2 || report.OpenSlots["colour"] != 0 {
		t.Fatalf("OpenSlots = %v", report.OpenSlots)
	}
	if len(report.FullDays) != 1 || report.MonthRevenue != 1500 {
		t.Fatalf("report = %+v", report)
	}
}

func TestBuild_PropagatesErrors(t *testing.T) {
	errDisk := errors.New("disk gone")
	job := NewJob(&fakeAvailability{
		slotsFn: func(ctx context.Context, date time.Time, minutes int) ([]domain.Slot, error) {
			return nil, errDisk
		},
	}, nil, catalogFunc(func(ctx context.Context, includeInactive bool) ([]domain.Service, error) {
		return []domain.Service{{ID: "cut", DurationMinutes: 30, Active: true}}, nil
	}), slog.Default())

	if _, err := job.Build(context.Background()); !errors.Is(err, errDisk) {
		t.Fatalf("error = %v, want %v", err, errDisk)
	}
}

func TestSchedule_RejectsBadSpec(t *testing.T) {
	job := NewJob(&fakeAvailability{}, nil, nil, slog.Default())
	if err := job.Schedule(context.Background(), "every tuesday"); err == nil {
		t.Fatalf("expected error for a bad cron spec")
	}
}

func TestSchedule_StopsWithContext(t *testing.T) {
	job := NewJob(&fakeAvailability{}, nil, nil, slog.Default())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := job.Schedule(ctx, "0 20 * * *"); err != nil {
		t.Fatalf("Schedule error: %v", err)
	}
}
