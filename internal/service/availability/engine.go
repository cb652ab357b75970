package availability

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"chairbook/internal/domain"
	"chairbook/internal/store"
)

const tracerName = "chairbook/availability"

// Engine answers scheduling questions over the active bookings of the
// business. Booking durations always come from the current catalog.
type Engine struct {
	reader store.BookingReader
	hours  domain.OpeningHours
	log    *slog.Logger
	tracer trace.Tracer
}

func NewEngine(reader store.BookingReader, hours domain.OpeningHours, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		reader: reader,
		hours:  hours,
		log:    log.With(slog.String("component", "availability")),
		tracer: otel.Tracer(tracerName),
	}
}

func (e *Engine) Hours() domain.OpeningHours {
	return e.hours
}

// HasConflict reports whether [start, start+minutes) overlaps an active
// booking on the same calendar day. Any failure reads as a conflict.
func (e *Engine) HasConflict(ctx context.Context, start time.Time, minutes int) bool {
	return e.HasConflictExcluding(ctx, start, minutes, 0)
}

// HasConflictExcluding is HasConflict ignoring the booking with the given ID.
func (e *Engine) HasConflictExcluding(ctx context.Context, start time.Time, minutes int, excludeID int64) bool {
	ctx, span := e.tracer.Start(ctx, "availability.HasConflict", trace.WithAttributes(
		attribute.String("start", start.UTC().Format(time.RFC3339)),
		attribute.Int("duration_minutes", minutes),
	))
	defer span.End()

	conflict, err := e.CheckConflict(ctx, e.reader, start, minutes, excludeID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.log.Error("conflict check failed, reporting conflict", slog.Any("err", err))
		return true
	}
	span.SetAttributes(attribute.Bool("conflict", conflict))
	return conflict
}

// CheckConflict runs the overlap rule against reader, which may be a
// transaction. Unlike HasConflict it returns errors to the caller.
func (e *Engine) CheckConflict(ctx context.Context, reader store.BookingReader, start time.Time, minutes int, excludeID int64) (bool, error) {
	if minutes <= 0 {
		return false, domain.NewValidationError("duration must be positive")
	}
	blocked, _, err := e.blockedOn(ctx, reader, start, excludeID)
	if err != nil {
		return false, err
	}
	return domain.OverlapsAny(domain.NewInterval(start, minutes), blocked), nil
}

// SlotAvailability lays out the day's candidate starts for a service of the
// given length. Storage errors are returned so no slot is ever offered on a
// failed read.
func (e *Engine) SlotAvailability(ctx context.Context, date time.Time, minutes int) ([]domain.Slot, error) {
	ctx, span := e.tracer.Start(ctx, "availability.SlotAvailability", trace.WithAttributes(
		attribute.String("date", date.In(e.hours.Loc()).Format(time.DateOnly)),
		attribute.Int("duration_minutes", minutes),
	))
	defer span.End()

	if minutes <= 0 {
		return nil, domain.NewValidationError("duration must be positive")
	}
	blocked, _, err := e.blockedOn(ctx, e.reader, date, 0)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	open, closing := e.hours.Window(date)
	return domain.BuildSlotGrid(open, closing, e.hours.Step, time.Duration(minutes)*time.Minute, blocked), nil
}

// IsDateFullyBooked fails safe: a day that cannot be read counts as full.
func (e *Engine) IsDateFullyBooked(ctx context.Context, date time.Time) bool {
	ctx, span := e.tracer.Start(ctx, "availability.IsDateFullyBooked")
	defer span.End()

	_, booked, err := e.blockedOn(ctx, e.reader, date, 0)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.log.Error("fully booked check failed, reporting full", slog.Any("err", err))
		return true
	}
	return e.hours.IsFullyBooked(booked)
}

// FullyBookedDates returns local midnight of every full day in the month,
// in ascending order. The whole month is read once. A read failure reports
// every day of the month as full.
func (e *Engine) FullyBookedDates(ctx context.Context, year int, month time.Month) []time.Time {
	ctx, span := e.tracer.Start(ctx, "availability.FullyBookedDates", trace.WithAttributes(
		attribute.Int("year", year),
		attribute.Int("month", int(month)),
	))
	defer span.End()

	loc := e.hours.Loc()
	from, to := domain.MonthBounds(year, month, loc)

	durations, err := e.durations(ctx, e.reader)
	if err != nil {
		return e.allDaysFull(span, from, to, err)
	}
	bookings, err := e.reader.FindActiveBetween(ctx, from, to)
	if err != nil {
		return e.allDaysFull(span, from, to, err)
	}

	booked := make(map[int]int)
	for _, b := range bookings {
		minutes, ok := durations[b.ServiceID]
		if !ok {
			continue
		}
		booked[b.AppointmentStart.In(loc).Day()] += minutes
	}

	var full []time.Time
	for day := from; day.Before(to); day = day.AddDate(0, 0, 1) {
		if e.hours.IsFullyBooked(booked[day.Day()]) {
			full = append(full, day)
		}
	}
	return full
}

func (e *Engine) allDaysFull(span trace.Span, from, to time.Time, err error) []time.Time {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	e.log.Error("fully booked dates failed, reporting every day full", slog.Any("err", err))
	var days []time.Time
	for day := from; day.Before(to); day = day.AddDate(0, 0, 1) {
		days = append(days, day)
	}
	return days
}

// blockedOn returns the resolved intervals of the active bookings on the
// calendar day containing t, along with their total minutes. Bookings whose
// service no longer resolves are skipped.
func (e *Engine) blockedOn(ctx context.Context, reader store.BookingReader, t time.Time, excludeID int64) ([]domain.Interval, int, error) {
	durations, err := e.durations(ctx, reader)
	if err != nil {
		return nil, 0, err
	}

	dayStart := e.hours.StartOfDay(t)
	bookings, err := reader.FindActiveBetween(ctx, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return nil, 0, err
	}

	blocked := make([]domain.Interval, 0, len(bookings))
	total := 0
	for _, b := range bookings {
		if excludeID != 0 && b.ID == excludeID {
			continue
		}
		minutes, ok := durations[b.ServiceID]
		if !ok {
			e.log.Debug("skipping booking with unknown service",
				slog.Int64("booking_id", b.ID),
				slog.String("service_id", b.ServiceID),
			)
			continue
		}
		blocked = append(blocked, domain.NewInterval(b.AppointmentStart, minutes))
		total += minutes
	}
	return blocked, total, nil
}

// durations maps every catalog entry, active or not, to its length.
func (e *Engine) durations(ctx context.Context, reader store.BookingReader) (map[string]int, error) {
	services, err := reader.ListServices(ctx, true)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(services))
	for _, s := range services {
		out[s.ID] = s.DurationMinutes
	}
	return out, nil
}
