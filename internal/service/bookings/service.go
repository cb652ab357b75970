package bookings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"chairbook/internal/domain"
	"chairbook/internal/store"
)

const maxIdempotencyKeyLen = 256

// ConflictChecker is the part of the availability engine the reservation
// flow needs. It must accept a transaction as the reader.
type ConflictChecker interface {
	CheckConflict(ctx context.Context, reader store.BookingReader, start time.Time, minutes int, excludeID int64) (bool, error)
	Hours() domain.OpeningHours
}

type Service struct {
	repo    store.BookingRepository
	checker ConflictChecker
	log     *slog.Logger
}

func NewService(repo store.BookingRepository, checker ConflictChecker, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:    repo,
		checker: checker,
		log:     log.With(slog.String("component", "service.bookings")),
	}
}

type BookInput struct {
	ClientName     string
	Phone          string
	ServiceID      string
	Start          time.Time
	IdempotencyKey string
}

// Book reserves a slot. The service lookup, the conflict check and the insert
// share one transaction. A repeated idempotency key returns the booking it
// first produced, or ErrIdempotencyConflict if the request differs.
func (s *Service) Book(ctx context.Context, in BookInput) (domain.Booking, error) {
	candidate, key, err := prepare(in)
	if err != nil {
		return domain.Booking{}, err
	}
	if key != "" {
		candidate.Reference = reference("chairbook:book:" + key)
	}

	var (
		booked   domain.Booking
		replayed bool
	)
	err = s.repo.InBookingTransaction(ctx, func(ctx context.Context, tx store.BookingTx) error {
		var err error
		booked, replayed, err = s.reserve(ctx, tx, candidate)
		return err
	})
	if err != nil {
		return domain.Booking{}, err
	}

	if replayed {
		s.log.Info("booking replayed", slog.String("reference", booked.Reference))
	} else {
		s.log.Info("booking created",
			slog.Int64("booking_id", booked.ID),
			slog.String("reference", booked.Reference),
			slog.String("service_id", booked.ServiceID),
		)
	}
	return booked, nil
}

// BookSeries books a standing appointment: every visit of rule, starting at
// in.Start, or none of them. Each visit is checked against existing bookings
// and against the visits before it.
func (s *Service) BookSeries(ctx context.Context, in BookInput, rule domain.RepeatRule) ([]domain.Booking, error) {
	base, key, err := prepare(in)
	if err != nil {
		return nil, err
	}
	starts, err := domain.ExpandWeekly(base.AppointmentStart, s.checker.Hours().Loc(), rule)
	if err != nil {
		return nil, err
	}

	var booked []domain.Booking
	err = s.repo.InBookingTransaction(ctx, func(ctx context.Context, tx store.BookingTx) error {
		booked = make([]domain.Booking, 0, len(starts))
		for i, start := range starts {
			visit := base
			visit.AppointmentStart = domain.TruncateToMinute(start)
			if key != "" {
				visit.Reference = reference("chairbook:series:" + key + ":" + strconv.Itoa(i))
			}
			b, _, err := s.reserve(ctx, tx, visit)
			if err != nil {
				return fmt.Errorf("visit %d on %s: %w", i+1, start.Format(time.DateOnly), err)
			}
			booked = append(booked, b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("booking series created",
		slog.Int("visits", len(booked)),
		slog.Int("interval_weeks", rule.IntervalWeeks),
		slog.String("service_id", base.ServiceID),
	)
	return booked, nil
}

// reserve inserts candidate inside tx unless its reference already exists.
func (s *Service) reserve(ctx context.Context, tx store.BookingTx, candidate domain.Booking) (domain.Booking, bool, error) {
	if candidate.Reference != "" {
		existing, err := tx.GetByReference(ctx, candidate.Reference)
		switch {
		case err == nil:
			if !existing.SameRequest(candidate) {
				return domain.Booking{}, false, store.ErrIdempotencyConflict
			}
			return existing, true, nil
		case !errors.Is(err, store.ErrNotFound):
			return domain.Booking{}, false, err
		}
	}

	svc, err := bookableService(ctx, tx, candidate.ServiceID)
	if err != nil {
		return domain.Booking{}, false, err
	}
	if err := s.checkSlot(ctx, tx, candidate.AppointmentStart, svc.DurationMinutes, 0); err != nil {
		return domain.Booking{}, false, err
	}

	candidate.ServiceName = svc.Name
	candidate.PriceMinorUnits = svc.PriceMinorUnits
	booked, err := tx.Insert(ctx, candidate)
	return booked, false, err
}

// AmendInput carries a partial change; nil fields are left alone.
type AmendInput struct {
	ClientName *string
	Phone      *string
	ServiceID  *string
	Start      *time.Time
}

// Amend changes an active booking in place. A new service re-snapshots the
// name and price. Moving the booking or changing its service re-runs the
// conflict check with the booking itself excluded.
func (s *Service) Amend(ctx context.Context, id int64, in AmendInput) (domain.Booking, error) {
	var amended domain.Booking
	err := s.repo.InBookingTransaction(ctx, func(ctx context.Context, tx store.BookingTx) error {
		current, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if !current.IsActive() {
			return domain.NewValidationError("cancelled bookings cannot be amended")
		}

		next := current
		if in.ClientName != nil {
			next.ClientName = *in.ClientName
		}
		if in.Phone != nil {
			next.PhoneNumber = *in.Phone
		}
		if in.ServiceID != nil {
			next.ServiceID = *in.ServiceID
		}
		if in.Start != nil {
			next.AppointmentStart = *in.Start
		}
		next, err = normalizeBooking(next)
		if err != nil {
			return err
		}

		serviceChanged := next.ServiceID != current.ServiceID
		moved := !next.AppointmentStart.Equal(current.AppointmentStart)
		if serviceChanged || moved {
			svc, err := tx.GetService(ctx, next.ServiceID)
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("service %q: %w", next.ServiceID, store.ErrNotFound)
			}
			if err != nil {
				return err
			}
			if serviceChanged {
				if !svc.Active {
					return domain.NewValidationError("service is not bookable")
				}
				next.ServiceName = svc.Name
				next.PriceMinorUnits = svc.PriceMinorUnits
			}
			if err := s.checkSlot(ctx, tx, next.AppointmentStart, svc.DurationMinutes, id); err != nil {
				return err
			}
		}

		amended, err = tx.Update(ctx, next)
		return err
	})
	if err != nil {
		return domain.Booking{}, err
	}
	s.log.Info("booking amended", slog.Int64("booking_id", amended.ID))
	return amended, nil
}

// Insert stores a booking as given, without a conflict check.
func (s *Service) Insert(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	b.ID = 0
	if b.Status == "" {
		b.Status = domain.BookingStatusActive
	}
	nb, err := normalizeBooking(b)
	if err != nil {
		return domain.Booking{}, err
	}
	return s.repo.Insert(ctx, nb)
}

// Update overwrites every mutable field of the booking with b.ID, without a
// conflict check. Cancellation is one-way: a cancelled booking cannot be made
// active again.
func (s *Service) Update(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	if b.ID == 0 {
		return domain.Booking{}, store.ErrNotFound
	}
	nb, err := normalizeBooking(b)
	if err != nil {
		return domain.Booking{}, err
	}

	var updated domain.Booking
	err = s.repo.InBookingTransaction(ctx, func(ctx context.Context, tx store.BookingTx) error {
		current, err := tx.Get(ctx, nb.ID)
		if err != nil {
			return err
		}
		if !current.IsActive() && nb.IsActive() {
			return domain.NewValidationError("cancelled bookings cannot be reactivated")
		}
		updated, err = tx.Update(ctx, nb)
		return err
	})
	if err != nil {
		return domain.Booking{}, err
	}
	return updated, nil
}

func (s *Service) Get(ctx context.Context, id int64) (domain.Booking, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) GetByReference(ctx context.Context, reference string) (domain.Booking, error) {
	ref := strings.TrimSpace(reference)
	if ref == "" {
		return domain.Booking{}, domain.NewValidationError("reference is required")
	}
	return s.repo.GetByReference(ctx, ref)
}

func (s *Service) List(ctx context.Context) ([]domain.Booking, error) {
	return s.repo.List(ctx)
}

func (s *Service) FindByPhone(ctx context.Context, phone string) ([]domain.Booking, error) {
	normalized, err := domain.NormalizePhone(phone)
	if err != nil {
		return nil, err
	}
	return s.repo.FindByPhone(ctx, normalized)
}

// FindForDate returns the active bookings of the business day containing date.
func (s *Service) FindForDate(ctx context.Context, date time.Time) ([]domain.Booking, error) {
	return s.repo.FindForDate(ctx, s.checker.Hours().StartOfDay(date))
}

func (s *Service) Cancel(ctx context.Context, id int64) error {
	if err := s.repo.Cancel(ctx, id); err != nil {
		return err
	}
	s.log.Info("booking cancelled", slog.Int64("booking_id", id))
	return nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("booking deleted", slog.Int64("booking_id", id))
	return nil
}

// Revenue sums active booking prices for the calendar month in the business
// time zone.
func (s *Service) Revenue(ctx context.Context, year int, month time.Month) (int64, error) {
	if month < time.January || month > time.December {
		return 0, domain.NewValidationError("month must be between 1 and 12")
	}
	from, to := domain.MonthBounds(year, month, s.checker.Hours().Loc())
	return s.repo.Revenue(ctx, from, to)
}

func (s *Service) checkSlot(ctx context.Context, tx store.BookingTx, start time.Time, minutes int, excludeID int64) error {
	open, closing := s.checker.Hours().Window(start)
	end := start.Add(time.Duration(minutes) * time.Minute)
	if start.Before(open) || end.After(closing) {
		return domain.NewValidationError("appointment must fall within opening hours")
	}
	conflict, err := s.checker.CheckConflict(ctx, tx, start, minutes, excludeID)
	if err != nil {
		return err
	}
	if conflict {
		return store.ErrConflict
	}
	return nil
}

func prepare(in BookInput) (domain.Booking, string, error) {
	candidate, err := normalizeBooking(domain.Booking{
		ClientName:       in.ClientName,
		PhoneNumber:      in.Phone,
		ServiceID:        in.ServiceID,
		AppointmentStart: in.Start,
		Status:           domain.BookingStatusActive,
	})
	if err != nil {
		return domain.Booking{}, "", err
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if len(key) > maxIdempotencyKeyLen {
		return domain.Booking{}, "", domain.NewValidationError("idempotency_key too long")
	}
	return candidate, key, nil
}

func reference(name string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

func bookableService(ctx context.Context, tx store.BookingTx, id string) (domain.Service, error) {
	svc, err := tx.GetService(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Service{}, fmt.Errorf("service %q: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return domain.Service{}, err
	}
	if !svc.Active {
		return domain.Service{}, domain.NewValidationError("service is not bookable")
	}
	return svc, nil
}

func normalizeBooking(b domain.Booking) (domain.Booking, error) {
	b.ClientName = strings.TrimSpace(b.ClientName)
	if b.ClientName == "" {
		return domain.Booking{}, domain.NewValidationError("client_name is required")
	}
	phone, err := domain.NormalizePhone(b.PhoneNumber)
	if err != nil {
		return domain.Booking{}, err
	}
	b.PhoneNumber = phone
	b.ServiceID = strings.TrimSpace(b.ServiceID)
	if b.ServiceID == "" {
		return domain.Booking{}, domain.NewValidationError("service_id is required")
	}
	if b.AppointmentStart.IsZero() {
		return domain.Booking{}, domain.NewValidationError("appointment_start is required")
	}
	b.AppointmentStart = domain.TruncateToMinute(b.AppointmentStart)
	switch b.Status {
	case domain.BookingStatusActive, domain.BookingStatusCancelled:
	default:
		return domain.Booking{}, domain.NewValidationError("unknown booking status")
	}
	return b, nil
}
