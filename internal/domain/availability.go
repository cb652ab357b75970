package domain

import (
	"errors"
	"sort"
	"time"
)

// OpeningHours is the bookable window applied to every calendar day.
// Open and Close are wall-clock offsets from local midnight.
type OpeningHours struct {
	Open             time.Duration
	Close            time.Duration
	Step             time.Duration
	Location         *time.Location
	FullyBookedRatio float64
}

// DefaultOpeningHours is 07:00 to 19:00 local time in 15 minute steps.
func DefaultOpeningHours() OpeningHours {
	return OpeningHours{
		Open:             7 * time.Hour,
		Close:            19 * time.Hour,
		Step:             15 * time.Minute,
		Location:         time.Local,
		FullyBookedRatio: 0.95,
	}
}

func (h OpeningHours) Validate() error {
	if h.Open < 0 || h.Close > 24*time.Hour {
		return errors.New("opening hours must fall within one day")
	}
	if h.Close <= h.Open {
		return errors.New("close must be after open")
	}
	if h.Step < time.Minute {
		return errors.New("slot step must be at least one minute")
	}
	if h.FullyBookedRatio <= 0 || h.FullyBookedRatio > 1 {
		return errors.New("fully booked ratio must be in (0, 1]")
	}
	return nil
}

// Loc returns the business time zone, time.Local when unset.
func (h OpeningHours) Loc() *time.Location {
	if h.Location == nil {
		return time.Local
	}
	return h.Location
}

// StartOfDay returns local midnight of the calendar day containing t.
func (h OpeningHours) StartOfDay(t time.Time) time.Time {
	y, m, d := t.In(h.Loc()).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, h.Loc())
}

// Window returns the opening and closing instants of the day containing t.
func (h OpeningHours) Window(t time.Time) (time.Time, time.Time) {
	y, m, d := t.In(h.Loc()).Date()
	open := time.Date(y, m, d, 0, int(h.Open/time.Minute), 0, 0, h.Loc())
	closing := time.Date(y, m, d, 0, int(h.Close/time.Minute), 0, 0, h.Loc())
	return open, closing
}

// OpenMinutes is the length of the daily window.
func (h OpeningHours) OpenMinutes() int {
	return int((h.Close - h.Open) / time.Minute)
}

// IsFullyBooked applies the booked-minutes heuristic: a day counts as full
// once bookings cover the configured share of its open minutes.
func (h OpeningHours) IsFullyBooked(bookedMinutes int) bool {
	return float64(bookedMinutes) >= h.FullyBookedRatio*float64(h.OpenMinutes())
}

// MonthBounds returns [first of month, first of next month) in loc.
func MonthBounds(year int, month time.Month, loc *time.Location) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0)
}

// TruncateToMinute drops seconds and returns the instant in UTC, the form
// appointment starts are stored in.
func TruncateToMinute(t time.Time) time.Time {
	return t.UTC().Truncate(time.Minute)
}

// Interval is a half-open time span [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval spans minutes from start.
func NewInterval(start time.Time, minutes int) Interval {
	return Interval{Start: start, End: start.Add(time.Duration(minutes) * time.Minute)}
}

// Overlaps reports whether two half-open intervals intersect. Intervals that
// only touch do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && i.End.After(o.Start)
}

func OverlapsAny(candidate Interval, blocked []Interval) bool {
	for _, b := range blocked {
		if candidate.Overlaps(b) {
			return true
		}
	}
	return false
}

type Slot struct {
	Start     time.Time
	Available bool
}

// BuildSlotGrid marks every step tick inside a blocked interval unavailable,
// then walks [open, close) in step increments and marks a candidate of the
// given length available when it fits before close and overlaps nothing.
// A tick already marked unavailable is never flipped to available.
func BuildSlotGrid(open, closing time.Time, step, length time.Duration, blocked []Interval) []Slot {
	loc := open.Location()
	marks := make(map[int64]bool)

	for _, b := range blocked {
		for t := b.Start; t.Before(b.End); t = t.Add(step) {
			marks[t.Unix()] = false
		}
	}

	for t := open; t.Before(closing); t = t.Add(step) {
		candidate := Interval{Start: t, End: t.Add(length)}
		key := t.Unix()
		if candidate.End.After(closing) || OverlapsAny(candidate, blocked) {
			marks[key] = false
			continue
		}
		if _, seen := marks[key]; !seen {
			marks[key] = true
		}
	}

	out := make([]Slot, 0, len(marks))
	for k, v := range marks {
		out = append(out, Slot{Start: time.Unix(k, 0).In(loc), Available: v})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

// HourCount is one bucket of the peak-hours rollup.
type HourCount struct {
	Hour  int
	Count int
}

// ServicePopularity is one row of the most-popular-services rollup.
type ServicePopularity struct {
	ServiceID    string `bun:"service_id"`
	ServiceName  string `bun:"service_name"`
	BookingCount int    `bun:"booking_count"`
	TotalRevenue int64  `bun:"total_revenue"`
}
