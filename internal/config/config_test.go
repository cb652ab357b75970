package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CHAIRBOOK_STORE_DSN", "")
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.StoreDSN != "./chairbook.db" {
		t.Fatalf("StoreDSN = %q", cfg.StoreDSN)
	}
	if cfg.Hours.Open != 7*time.Hour || cfg.Hours.Close != 19*time.Hour || cfg.Hours.Step != 15*time.Minute {
		t.Fatalf("Hours = %+v", cfg.Hours)
	}
	if cfg.Hours.FullyBookedRatio != 0.95 {
		t.Fatalf("FullyBookedRatio = %v", cfg.Hours.FullyBookedRatio)
	}
	if cfg.DigestSchedule != "0 20 * * *" {
		t.Fatalf("DigestSchedule = %q", cfg.DigestSchedule)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CHAIRBOOK_BUSINESS_TIMEZONE", "Europe/Berlin")
	t.Setenv("CHAIRBOOK_BUSINESS_OPEN", "09:30")
	t.Setenv("CHAIRBOOK_BUSINESS_CLOSE", "24:00")
	t.Setenv("CHAIRBOOK_BUSINESS_SLOT_STEP", "30m")
	t.Setenv("DATABASE_URL", "postgres://chairbook@localhost/chairbook")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Hours.Location.String() != "Europe/Berlin" {
		t.Fatalf("Location = %v", cfg.Hours.Location)
	}
	if cfg.Hours.Open != 9*time.Hour+30*time.Minute || cfg.Hours.Close != 24*time.Hour {
		t.Fatalf("Hours = %+v", cfg.Hours)
	}
	if cfg.Hours.Step != 30*time.Minute {
		t.Fatalf("Step = %v", cfg.Hours.Step)
	}
	if cfg.StoreDSN != "postgres://chairbook@localhost/chairbook" {
		t.Fatalf("StoreDSN = %q", cfg.StoreDSN)
	}
	if cfg.OTLPEndpoint != "collector:4317" {
		t.Fatalf("OTLPEndpoint = %q", cfg.OTLPEndpoint)
	}
}

func TestLoad_RejectsBadHours(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "bad clock", key: "CHAIRBOOK_BUSINESS_OPEN", val: "7am"},
		{name: "close before open", key: "CHAIRBOOK_BUSINESS_CLOSE", val: "06:00"},
		{name: "unknown zone", key: "CHAIRBOOK_BUSINESS_TIMEZONE", val: "Mars/Olympus"},
		{name: "ratio out of range", key: "CHAIRBOOK_BUSINESS_FULLY_BOOKED_RATIO", val: "1.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", tt.key, tt.val)
			}
		})
	}
}
