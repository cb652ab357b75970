package domain

import (
	"errors"
	"testing"
	"time"
)

func TestRepeatRule_Validate(t *testing.T) {
	tests := []struct {
		name    string
		rule    RepeatRule
		wantErr string
	}{
		{name: "zero count", rule: RepeatRule{IntervalWeeks: 1, Count: 0}, wantErr: "repeat count must be between 1 and 52"},
		{name: "too many", rule: RepeatRule{IntervalWeeks: 1, Count: 53}, wantErr: "repeat count must be between 1 and 52"},
		{name: "zero interval", rule: RepeatRule{IntervalWeeks: 0, Count: 3}, wantErr: "repeat interval must be between 1 and 12 weeks"},
		{name: "interval too long", rule: RepeatRule{IntervalWeeks: 13, Count: 3}, wantErr: "repeat interval must be between 1 and 12 weeks"},
		{name: "ok", rule: RepeatRule{IntervalWeeks: 4, Count: 6}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var vErr *ValidationError
			if !errors.As(err, &vErr) || vErr.Error() != tt.wantErr {
				t.Fatalf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestExpandWeekly_IntervalAndCount(t *testing.T) {
	first := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

	got, err := ExpandWeekly(first, time.UTC, RepeatRule{IntervalWeeks: 2, Count: 3})
	if err != nil {
		t.Fatalf("ExpandWeekly error: %v", err)
	}
	want := []time.Time{
		time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 19, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC),
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("visit %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestExpandWeekly_KeepsWallClockAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	first := time.Date(2026, 3, 1, 10, 0, 0, 0, loc)

	got, err := ExpandWeekly(first, loc, RepeatRule{IntervalWeeks: 1, Count: 2})
	if err != nil {
		t.Fatalf("ExpandWeekly error: %v", err)
	}
	second := got[1].In(loc)
	if second.Hour() != 10 || second.Day() != 8 {
		t.Fatalf("second visit = %v, want 2026-03-08 10:00 local", second)
	}
	if got[1].Sub(got[0]) != 7*24*time.Hour-time.Hour {
		t.Fatalf("gap = %v, want one week less the skipped hour", got[1].Sub(got[0]))
	}
}
