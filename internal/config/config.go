package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"chairbook/internal/domain"
)

type Config struct {
	StoreDSN          string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration

	Hours domain.OpeningHours

	LogLevel        string
	OTLPEndpoint    string
	OTLPInsecure    bool
	DigestSchedule  string
	ShutdownTimeout time.Duration
}

func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CHAIRBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.dsn", "./chairbook.db")
	v.SetDefault("store.max_open_conns", 10)
	v.SetDefault("store.max_idle_conns", 5)
	v.SetDefault("store.conn_max_lifetime", "30m")
	v.SetDefault("store.conn_max_idle_time", "5m")
	v.SetDefault("business.timezone", "Local")
	v.SetDefault("business.open", "07:00")
	v.SetDefault("business.close", "19:00")
	v.SetDefault("business.slot_step", "15m")
	v.SetDefault("business.fully_booked_ratio", 0.95)
	v.SetDefault("log.level", "info")
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.insecure", false)
	v.SetDefault("digest.schedule", "0 20 * * *")
	v.SetDefault("shutdown.timeout", "10s")

	_ = v.BindEnv("store.dsn", "CHAIRBOOK_STORE_DSN", "DATABASE_URL")
	_ = v.BindEnv("store.max_open_conns", "CHAIRBOOK_STORE_MAX_OPEN_CONNS")
	_ = v.BindEnv("store.max_idle_conns", "CHAIRBOOK_STORE_MAX_IDLE_CONNS")
	_ = v.BindEnv("store.conn_max_lifetime", "CHAIRBOOK_STORE_CONN_MAX_LIFETIME")
	_ = v.BindEnv("store.conn_max_idle_time", "CHAIRBOOK_STORE_CONN_MAX_IDLE_TIME")
	_ = v.BindEnv("business.timezone", "CHAIRBOOK_BUSINESS_TIMEZONE")
	_ = v.BindEnv("business.open", "CHAIRBOOK_BUSINESS_OPEN")
	_ = v.BindEnv("business.close", "CHAIRBOOK_BUSINESS_CLOSE")
	_ = v.BindEnv("business.slot_step", "CHAIRBOOK_BUSINESS_SLOT_STEP")
	_ = v.BindEnv("business.fully_booked_ratio", "CHAIRBOOK_BUSINESS_FULLY_BOOKED_RATIO")
	_ = v.BindEnv("log.level", "CHAIRBOOK_LOG_LEVEL", "LOG_LEVEL")
	_ = v.BindEnv("telemetry.otlp_endpoint", "CHAIRBOOK_TELEMETRY_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	_ = v.BindEnv("telemetry.insecure", "CHAIRBOOK_TELEMETRY_INSECURE", "OTEL_EXPORTER_OTLP_INSECURE")
	_ = v.BindEnv("digest.schedule", "CHAIRBOOK_DIGEST_SCHEDULE")
	_ = v.BindEnv("shutdown.timeout", "CHAIRBOOK_SHUTDOWN_TIMEOUT", "SHUTDOWN_TIMEOUT")

	timeout, err := time.ParseDuration(v.GetString("shutdown.timeout"))
	if err != nil {
		return Config{}, err
	}

	connMaxLifetime, err := time.ParseDuration(v.GetString("store.conn_max_lifetime"))
	if err != nil {
		return Config{}, err
	}
	connMaxIdleTime, err := time.ParseDuration(v.GetString("store.conn_max_idle_time"))
	if err != nil {
		return Config{}, err
	}

	hours, err := loadHours(v)
	if err != nil {
		return Config{}, err
	}

	return Config{
		StoreDSN:          strings.TrimSpace(v.GetString("store.dsn")),
		DBMaxOpenConns:    v.GetInt("store.max_open_conns"),
		DBMaxIdleConns:    v.GetInt("store.max_idle_conns"),
		DBConnMaxLifetime: connMaxLifetime,
		DBConnMaxIdleTime: connMaxIdleTime,
		Hours:             hours,
		LogLevel:          v.GetString("log.level"),
		OTLPEndpoint:      strings.TrimSpace(v.GetString("telemetry.otlp_endpoint")),
		OTLPInsecure:      v.GetBool("telemetry.insecure"),
		DigestSchedule:    strings.TrimSpace(v.GetString("digest.schedule")),
		ShutdownTimeout:   timeout,
	}, nil
}

func loadHours(v *viper.Viper) (domain.OpeningHours, error) {
	loc, err := time.LoadLocation(strings.TrimSpace(v.GetString("business.timezone")))
	if err != nil {
		return domain.OpeningHours{}, fmt.Errorf("business.timezone: %w", err)
	}
	open, err := parseClock(v.GetString("business.open"))
	if err != nil {
		return domain.OpeningHours{}, fmt.Errorf("business.open: %w", err)
	}
	closing, err := parseClock(v.GetString("business.close"))
	if err != nil {
		return domain.OpeningHours{}, fmt.Errorf("business.close: %w", err)
	}
	step, err := time.ParseDuration(v.GetString("business.slot_step"))
	if err != nil {
		return domain.OpeningHours{}, fmt.Errorf("business.slot_step: %w", err)
	}

	hours := domain.OpeningHours{
		Open:             open,
		Close:            closing,
		Step:             step,
		Location:         loc,
		FullyBookedRatio: v.GetFloat64("business.fully_booked_ratio"),
	}
	if err := hours.Validate(); err != nil {
		return domain.OpeningHours{}, err
	}
	return hours, nil
}

// parseClock turns "HH:MM" into an offset from midnight. "24:00" is allowed
// as a closing time.
func parseClock(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "24:00" {
		return 24 * time.Hour, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("want HH:MM, got %q", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
