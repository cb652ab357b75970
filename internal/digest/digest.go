package digest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"chairbook/internal/domain"
)

type Availability interface {
	SlotAvailability(ctx context.Context, date time.Time, minutes int) ([]domain.Slot, error)
	FullyBookedDates(ctx context.Context, year int, month time.Month) []time.Time
	Hours() domain.OpeningHours
}

type Revenue interface {
	Revenue(ctx context.Context, year int, month time.Month) (int64, error)
}

type Catalog interface {
	List(ctx context.Context, includeInactive bool) ([]domain.Service, error)
}

// Report is the end-of-day summary for the owner.
type Report struct {
	Day          time.Time
	OpenSlots    map[string]int
	FullDays     []time.Time
	MonthRevenue int64
}

// Job builds and logs the daily digest: tomorrow's open slots per active
// service, this month's fully booked days and this month's revenue.
type Job struct {
	availability Availability
	revenue      Revenue
	catalog      Catalog
	log          *slog.Logger
	now          func() time.Time
}

func NewJob(availability Availability, revenue Revenue, catalog Catalog, log *slog.Logger) *Job {
	if log == nil {
		log = slog.Default()
	}
	return &Job{
		availability: availability,
		revenue:      revenue,
		catalog:      catalog,
		log:          log.With(slog.String("component", "digest")),
		now:          time.Now,
	}
}

func (j *Job) Build(ctx context.Context) (Report, error) {
	hours := j.availability.Hours()
	today := hours.StartOfDay(j.now())
	tomorrow := today.AddDate(0, 0, 1)

	services, err := j.catalog.List(ctx, false)
	if err != nil {
		return Report{}, fmt.Errorf("list services: %w", err)
	}

	report := Report{Day: tomorrow, OpenSlots: make(map[string]int, len(services))}
	for _, svc := range services {
		slots, err := j.availability.SlotAvailability(ctx, tomorrow, svc.DurationMinutes)
		if err != nil {
			return Report{}, fmt.Errorf("slots for %s: %w", svc.ID, err)
		}
		open := 0
		for _, s := range slots {
			if s.Available {
				open++
			}
		}
		report.OpenSlots[svc.ID] = open
	}

	report.FullDays = j.availability.FullyBookedDates(ctx, today.Year(), today.Month())
	report.MonthRevenue, err = j.revenue.Revenue(ctx, today.Year(), today.Month())
	if err != nil {
		return Report{}, fmt.Errorf("month revenue: %w", err)
	}
	return report, nil
}

// Run builds the digest and logs it. Failures are logged, not returned.
func (j *Job) Run(ctx context.Context) {
	report, err := j.Build(ctx)
	if err != nil {
		j.log.Error("digest failed", slog.Any("err", err))
		return
	}

	fullDays := make([]string, 0, len(report.FullDays))
	for _, d := range report.FullDays {
		fullDays = append(fullDays, d.Format(time.DateOnly))
	}
	j.log.Info("daily digest",
		slog.String("day", report.Day.Format(time.DateOnly)),
		slog.Any("open_slots", report.OpenSlots),
		slog.Any("fully_booked_days", fullDays),
		slog.Int64("month_revenue_minor_units", report.MonthRevenue),
	)
}

// Schedule runs the job on a cron spec in the business time zone until ctx
// is done, then waits for a running digest to finish.
func (j *Job) Schedule(ctx context.Context, spec string) error {
	c := cron.New(cron.WithLocation(j.availability.Hours().Loc()))
	if _, err := c.AddFunc(spec, func() { j.Run(ctx) }); err != nil {
		return fmt.Errorf("digest schedule %q: %w", spec, err)
	}

	c.Start()
	j.log.Info("digest scheduler started", slog.String("schedule", spec))

	<-ctx.Done()
	<-c.Stop().Done()
	j.log.Info("digest scheduler stopped")
	return nil
}
