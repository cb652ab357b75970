package domain

import (
	"regexp"
	"time"

	"github.com/uptrace/bun"
)

// Service is a catalog entry. It is never hard-deleted because historical
// bookings keep referring to it by ID.
type Service struct {
	bun.BaseModel `bun:"table:services"`

	ID              string `bun:"id,pk" yaml:"id"`
	Name            string `bun:"name,notnull" yaml:"name"`
	PriceMinorUnits int64  `bun:"price_minor_units,notnull" yaml:"price_minor_units"`
	DurationMinutes int    `bun:"duration_minutes,notnull" yaml:"duration_minutes"`
	Active          bool   `bun:"active,notnull" yaml:"active"`
}

func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

var serviceIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

func ValidServiceID(id string) bool {
	return len(id) <= 64 && serviceIDPattern.MatchString(id)
}
