package domain

import (
	"time"
)

const (
	maxRepeatCount    = 52
	maxRepeatInterval = 12
)

// RepeatRule describes a standing appointment: Count visits, one every
// IntervalWeeks weeks, starting with the first one.
type RepeatRule struct {
	IntervalWeeks int
	Count         int
}

func (r RepeatRule) Validate() error {
	if r.Count < 1 || r.Count > maxRepeatCount {
		return NewValidationError("repeat count must be between 1 and 52")
	}
	if r.IntervalWeeks < 1 || r.IntervalWeeks > maxRepeatInterval {
		return NewValidationError("repeat interval must be between 1 and 12 weeks")
	}
	return nil
}

// ExpandWeekly returns the start of every visit in the rule. Visits keep the
// wall-clock time of first in loc, so a 10:00 appointment stays at 10:00
// across a daylight saving change.
func ExpandWeekly(first time.Time, loc *time.Location, rule RepeatRule) ([]time.Time, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}

	local := first.In(loc)
	out := make([]time.Time, 0, rule.Count)
	for i := 0; i < rule.Count; i++ {
		out = append(out, time.Date(
			local.Year(),
			local.Month(),
			local.Day()+i*rule.IntervalWeeks*7,
			local.Hour(),
			local.Minute(),
			0,
			0,
			loc,
		))
	}
	return out, nil
}
