package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type BookingStatus string

const (
	BookingStatusActive    BookingStatus = "active"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Booking is a single appointment. ServiceName and PriceMinorUnits are
// copied from the catalog when the booking is made and never follow later
// catalog edits. ServiceID is not a foreign key and may no longer resolve.
type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	ID               int64         `bun:"id,pk,autoincrement"`
	Reference        string        `bun:"reference,nullzero"`
	ClientName       string        `bun:"client_name,notnull"`
	PhoneNumber      string        `bun:"phone_number,notnull"`
	ServiceID        string        `bun:"service_id,notnull"`
	ServiceName      string        `bun:"service_name,notnull"`
	PriceMinorUnits  int64         `bun:"price_minor_units,notnull"`
	AppointmentStart time.Time     `bun:"appointment_start,notnull"`
	Status           BookingStatus `bun:"status,notnull"`
	CreatedAt        time.Time     `bun:"created_at,notnull"`
	UpdatedAt        time.Time     `bun:"updated_at,notnull"`
}

func (b *Booking) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if b.Reference == "" {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			b.Reference = id.String()
		}
		if b.Status == "" {
			b.Status = BookingStatusActive
		}
		if b.CreatedAt.IsZero() {
			b.CreatedAt = now
		}
		if b.UpdatedAt.IsZero() {
			b.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		b.UpdatedAt = now
	}
	return nil
}

func (b Booking) IsActive() bool {
	return b.Status == BookingStatusActive
}

// SameRequest reports whether two bookings describe the same reservation,
// ignoring store-assigned fields.
func (b Booking) SameRequest(o Booking) bool {
	return b.ClientName == o.ClientName &&
		b.PhoneNumber == o.PhoneNumber &&
		b.ServiceID == o.ServiceID &&
		b.AppointmentStart.Equal(o.AppointmentStart)
}
