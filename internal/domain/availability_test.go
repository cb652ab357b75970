package domain

import (
	"testing"
	"time"
)

func TestIntervalOverlaps(t *testing.T) {
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	booked := NewInterval(base, 60)

	tests := []struct {
		name  string
		start time.Time
		mins  int
		want  bool
	}{
		{name: "same interval", start: base, mins: 60, want: true},
		{name: "starts inside", start: base.Add(30 * time.Minute), mins: 30, want: true},
		{name: "ends inside", start: base.Add(-30 * time.Minute), mins: 45, want: true},
		{name: "encloses", start: base.Add(-time.Hour), mins: 180, want: true},
		{name: "touches end", start: base.Add(time.Hour), mins: 30, want: false},
		{name: "touches start", start: base.Add(-30 * time.Minute), mins: 30, want: false},
		{name: "disjoint", start: base.Add(3 * time.Hour), mins: 30, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewInterval(tt.start, tt.mins).Overlaps(booked)
			if got != tt.want {
				t.Fatalf("Overlaps = %v, want %v", got, tt.want)
			}
			if rev := booked.Overlaps(NewInterval(tt.start, tt.mins)); rev != got {
				t.Fatalf("Overlaps not symmetric: %v vs %v", got, rev)
			}
		})
	}
}

func TestOpeningHoursWindow(t *testing.T) {
	h := DefaultOpeningHours()
	h.Location = time.UTC

	open, closing := h.Window(time.Date(2026, 3, 2, 15, 4, 0, 0, time.UTC))
	if want := time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC); !open.Equal(want) {
		t.Fatalf("open = %v, want %v", open, want)
	}
	if want := time.Date(2026, 3, 2, 19, 0, 0, 0, time.UTC); !closing.Equal(want) {
		t.Fatalf("close = %v, want %v", closing, want)
	}
	if h.OpenMinutes() != 720 {
		t.Fatalf("OpenMinutes = %d, want 720", h.OpenMinutes())
	}
}

func TestOpeningHoursWindow_UsesWallClockInLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("LoadLocation error: %v", err)
	}
	h := DefaultOpeningHours()
	h.Location = loc

	// DST starts on 2026-03-08 in New York.
	open, _ := h.Window(time.Date(2026, 3, 8, 18, 0, 0, 0, time.UTC))
	if open.Hour() != 7 || open.Minute() != 0 {
		t.Fatalf("open = %v, want 07:00 local", open)
	}
}

func TestOpeningHoursValidate(t *testing.T) {
	h := DefaultOpeningHours()
	if err := h.Validate(); err != nil {
		t.Fatalf("default hours invalid: %v", err)
	}

	bad := h
	bad.Close = bad.Open
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected error for empty window")
	}

	bad = h
	bad.Step = 0
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected error for zero step")
	}

	bad = h
	bad.FullyBookedRatio = 1.5
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected error for ratio above 1")
	}
}

func TestIsFullyBooked(t *testing.T) {
	h := DefaultOpeningHours()
	if h.IsFullyBooked(683) {
		t.Fatalf("683 of 720 minutes should not be fully booked")
	}
	if !h.IsFullyBooked(684) {
		t.Fatalf("684 of 720 minutes should be fully booked")
	}
	if !h.IsFullyBooked(720) {
		t.Fatalf("720 of 720 minutes should be fully booked")
	}
}

func TestBuildSlotGrid(t *testing.T) {
	open := time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC)
	closing := time.Date(2026, 3, 2, 19, 0, 0, 0, time.UTC)
	blocked := []Interval{NewInterval(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), 60)}

	slots := BuildSlotGrid(open, closing, 15*time.Minute, 30*time.Minute, blocked)
	if len(slots) != 48 {
		t.Fatalf("len(slots) = %d, want 48", len(slots))
	}

	byClock := make(map[string]bool, len(slots))
	for i, s := range slots {
		if i > 0 && !slots[i-1].Start.Before(s.Start) {
			t.Fatalf("slots not strictly ascending at %d", i)
		}
		byClock[s.Start.Format("15:04")] = s.Available
	}

	want := map[string]bool{
		"07:00": true,
		"09:30": true,
		"09:45": false,
		"10:00": false,
		"10:45": false,
		"11:00": true,
		"18:30": true,
		"18:45": false,
	}
	for clock, avail := range want {
		got, ok := byClock[clock]
		if !ok {
			t.Fatalf("slot %s missing", clock)
		}
		if got != avail {
			t.Fatalf("slot %s available = %v, want %v", clock, got, avail)
		}
	}
}

func TestBuildSlotGrid_UnalignedBookingRecordsEveryTick(t *testing.T) {
	open := time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC)
	closing := time.Date(2026, 3, 2, 19, 0, 0, 0, time.UTC)
	bStart := time.Date(2026, 3, 2, 10, 5, 0, 0, time.UTC)
	blocked := []Interval{NewInterval(bStart, 60)}

	slots := BuildSlotGrid(open, closing, 15*time.Minute, 15*time.Minute, blocked)

	seen := make(map[int64]int)
	for _, s := range slots {
		seen[s.Start.Unix()]++
		if blocked[0].Start.Equal(s.Start) || (s.Start.After(bStart) && s.Start.Before(blocked[0].End)) {
			if s.Available {
				t.Fatalf("tick %v inside booking marked available", s.Start)
			}
		}
	}
	for k, n := range seen {
		if n != 1 {
			t.Fatalf("timestamp %d appears %d times", k, n)
		}
	}

	for _, tick := range []time.Time{bStart, bStart.Add(15 * time.Minute), bStart.Add(30 * time.Minute), bStart.Add(45 * time.Minute)} {
		if _, ok := seen[tick.Unix()]; !ok {
			t.Fatalf("busy tick %v not recorded", tick)
		}
	}
	if len(slots) != 48+4 {
		t.Fatalf("len(slots) = %d, want %d", len(slots), 48+4)
	}
}

func TestBuildSlotGrid_LongerThanDay(t *testing.T) {
	open := time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC)
	closing := time.Date(2026, 3, 2, 19, 0, 0, 0, time.UTC)

	slots := BuildSlotGrid(open, closing, 15*time.Minute, 13*time.Hour, nil)
	for _, s := range slots {
		if s.Available {
			t.Fatalf("slot %v available for a service longer than the day", s.Start)
		}
	}
}

func TestMonthBounds(t *testing.T) {
	start, end := MonthBounds(2024, time.December, time.UTC)
	if !start.Equal(time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("start = %v", start)
	}
	if !end.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("end = %v", end)
	}
}

func TestTimeHelpers(t *testing.T) {
	if got := (OpeningHours{}).Loc(); got != time.Local {
		t.Fatalf("Loc() = %v, want time.Local", got)
	}
	if got := DefaultOpeningHours().OpenMinutes(); got != 720 {
		t.Fatalf("OpenMinutes() = %d, want 720", got)
	}

	east := time.FixedZone("UTC+2", 2*60*60)
	got := TruncateToMinute(time.Date(2024, time.March, 4, 12, 30, 59, 999, east))
	if want := time.Date(2024, time.March, 4, 10, 30, 0, 0, time.UTC); !got.Equal(want) || got.Location() != time.UTC {
		t.Fatalf("TruncateToMinute = %v, want %v in UTC", got, want)
	}

	iv := NewInterval(got, 45)
	if !iv.End.Equal(got.Add(45 * time.Minute)) {
		t.Fatalf("NewInterval end = %v", iv.End)
	}
}
