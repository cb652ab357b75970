package store

import (
	"context"
	"time"

	"chairbook/internal/domain"
)

// BookingReader is the read surface the availability rules need. Both the
// repository and a booking transaction satisfy it.
type BookingReader interface {
	FindActiveBetween(ctx context.Context, from, to time.Time) ([]domain.Booking, error)
	ListServices(ctx context.Context, includeInactive bool) ([]domain.Service, error)
}

type BookingTx interface {
	BookingReader

	Get(ctx context.Context, id int64) (domain.Booking, error)
	GetByReference(ctx context.Context, reference string) (domain.Booking, error)
	GetService(ctx context.Context, id string) (domain.Service, error)
	Insert(ctx context.Context, b domain.Booking) (domain.Booking, error)
	Update(ctx context.Context, b domain.Booking) (domain.Booking, error)
}

type BookingRepository interface {
	BookingReader

	Insert(ctx context.Context, b domain.Booking) (domain.Booking, error)
	Get(ctx context.Context, id int64) (domain.Booking, error)
	GetByReference(ctx context.Context, reference string) (domain.Booking, error)
	List(ctx context.Context) ([]domain.Booking, error)
	FindByPhone(ctx context.Context, phone string) ([]domain.Booking, error)
	FindForDate(ctx context.Context, dayStart time.Time) ([]domain.Booking, error)
	Cancel(ctx context.Context, id int64) error
	Update(ctx context.Context, b domain.Booking) (domain.Booking, error)
	Delete(ctx context.Context, id int64) error
	Revenue(ctx context.Context, from, to time.Time) (int64, error)

	InBookingTransaction(ctx context.Context, fn func(ctx context.Context, tx BookingTx) error) error
}
