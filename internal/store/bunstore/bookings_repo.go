package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"chairbook/internal/domain"
	"chairbook/internal/store"
)

const bookingLockKey = "chairbook.bookings"

type bookingQueries struct {
	db bun.IDB
}

func (q bookingQueries) Insert(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	m := b
	m.ID = 0
	m.AppointmentStart = b.AppointmentStart.UTC()

	if _, err := q.db.NewInsert().Model(&m).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.Booking{}, store.ErrDuplicate
		}
		return domain.Booking{}, store.Wrap("insert booking", err)
	}
	return m, nil
}

func (q bookingQueries) Get(ctx context.Context, id int64) (domain.Booking, error) {
	var b domain.Booking
	err := q.db.NewSelect().
		Model(&b).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Booking{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Booking{}, store.Wrap("get booking", err)
	}
	return b, nil
}

func (q bookingQueries) GetByReference(ctx context.Context, reference string) (domain.Booking, error) {
	var b domain.Booking
	err := q.db.NewSelect().
		Model(&b).
		Where("reference = ?", reference).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Booking{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Booking{}, store.Wrap("get booking by reference", err)
	}
	return b, nil
}

func (q bookingQueries) FindActiveBetween(ctx context.Context, from, to time.Time) ([]domain.Booking, error) {
	var rows []domain.Booking
	err := q.db.NewSelect().
		Model(&rows).
		Where("status = ?", domain.BookingStatusActive).
		Where("appointment_start >= ?", from.UTC()).
		Where("appointment_start < ?", to.UTC()).
		OrderExpr("appointment_start ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, store.Wrap("find active bookings", err)
	}
	return rows, nil
}

// Update overwrites every mutable field. Reference and CreatedAt are kept.
func (q bookingQueries) Update(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	if b.ID == 0 {
		return domain.Booking{}, store.ErrNotFound
	}
	m := b
	m.AppointmentStart = b.AppointmentStart.UTC()

	res, err := q.db.NewUpdate().
		Model(&m).
		Column(
			"client_name",
			"phone_number",
			"service_id",
			"service_name",
			"price_minor_units",
			"appointment_start",
			"status",
			"updated_at",
		).
		WherePK().
		Exec(ctx)
	if err != nil {
		return domain.Booking{}, store.Wrap("update booking", err)
	}
	if err := expectAffected(res); err != nil {
		return domain.Booking{}, err
	}
	return q.Get(ctx, b.ID)
}

type bookingTx struct {
	bookingQueries
	serviceQueries
}

type BookingRepo struct {
	conn *bun.DB

	bookingQueries
	serviceQueries
}

func NewBookingRepo(db *bun.DB) *BookingRepo {
	return &BookingRepo{
		conn:           db,
		bookingQueries: bookingQueries{db: db},
		serviceQueries: serviceQueries{db: db},
	}
}

func (r *BookingRepo) List(ctx context.Context) ([]domain.Booking, error) {
	var rows []domain.Booking
	err := r.conn.NewSelect().
		Model(&rows).
		OrderExpr("appointment_start DESC, id DESC").
		Scan(ctx)
	if err != nil {
		return nil, store.Wrap("list bookings", err)
	}
	return rows, nil
}

func (r *BookingRepo) FindByPhone(ctx context.Context, phone string) ([]domain.Booking, error) {
	var rows []domain.Booking
	err := r.conn.NewSelect().
		Model(&rows).
		Where("phone_number = ?", phone).
		OrderExpr("appointment_start DESC, id DESC").
		Scan(ctx)
	if err != nil {
		return nil, store.Wrap("find bookings by phone", err)
	}
	return rows, nil
}

// FindForDate returns active bookings in [dayStart, dayStart+24h).
func (r *BookingRepo) FindForDate(ctx context.Context, dayStart time.Time) ([]domain.Booking, error) {
	return r.FindActiveBetween(ctx, dayStart, dayStart.Add(24*time.Hour))
}

// Cancel is idempotent for bookings that are already cancelled.
func (r *BookingRepo) Cancel(ctx context.Context, id int64) error {
	res, err := r.conn.NewUpdate().
		Model((*domain.Booking)(nil)).
		Set("status = ?", domain.BookingStatusCancelled).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Where("status <> ?", domain.BookingStatusCancelled).
		Exec(ctx)
	if err != nil {
		return store.Wrap("cancel booking", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return store.Wrap("cancel booking", err)
	}
	if affected > 0 {
		return nil
	}
	_, err = r.Get(ctx, id)
	return err
}

func (r *BookingRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.conn.NewDelete().
		Model((*domain.Booking)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return store.Wrap("delete booking", err)
	}
	return expectAffected(res)
}

// Revenue sums snapshot prices of active bookings starting in [from, to).
func (r *BookingRepo) Revenue(ctx context.Context, from, to time.Time) (int64, error) {
	var total int64
	err := r.conn.NewSelect().
		Model((*domain.Booking)(nil)).
		ColumnExpr("CAST(COALESCE(SUM(price_minor_units), 0) AS BIGINT)").
		Where("status = ?", domain.BookingStatusActive).
		Where("appointment_start >= ?", from.UTC()).
		Where("appointment_start < ?", to.UTC()).
		Scan(ctx, &total)
	if err != nil {
		return 0, store.Wrap("revenue", err)
	}
	return total, nil
}

// InBookingTransaction runs fn with every booking write serialised: an
// advisory lock on Postgres, the single connection on SQLite.
func (r *BookingRepo) InBookingTransaction(ctx context.Context, fn func(ctx context.Context, tx store.BookingTx) error) error {
	return r.conn.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockKey(ctx, tx, bookingLockKey); err != nil {
			return store.Wrap("lock bookings", err)
		}
		return fn(ctx, bookingTx{
			bookingQueries: bookingQueries{db: tx},
			serviceQueries: serviceQueries{db: tx},
		})
	})
}

func lockKey(ctx context.Context, tx bun.Tx, key string) error {
	if !isPostgres(tx) {
		return nil
	}
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", key).Exec(ctx)
	return err
}
