package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/uptrace/bun"

	"chairbook/internal/config"
	"chairbook/internal/digest"
	"chairbook/internal/service/accounts"
	"chairbook/internal/service/analytics"
	"chairbook/internal/service/availability"
	"chairbook/internal/service/bookings"
	"chairbook/internal/service/catalog"
	"chairbook/internal/store/bunstore"
	"chairbook/internal/telemetry"
)

const serviceName = "chairbook"

type app struct {
	cfg    config.Config
	log    *slog.Logger
	out    io.Writer
	schema *bunstore.SchemaManager

	accounts     *accounts.Service
	catalog      *catalog.Service
	bookings     *bookings.Service
	availability *availability.Engine
	analytics    *analytics.Service
	digest       *digest.Job
}

func main() {
	os.Exit(execute())
}

func execute() int {
	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})).With(
		slog.String("service", serviceName),
	)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		return 1
	}

	log = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)})).With(
		slog.String("service", serviceName),
	)
	slog.SetDefault(log)

	if len(os.Args) < 2 {
		usage(os.Stderr)
		return 2
	}
	cmd, args := os.Args[1], os.Args[2:]
	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		usage(os.Stdout)
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry := telemetry.Setup(ctx, telemetry.Options{
		ServiceName: serviceName,
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
	}, log)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			log.Warn("telemetry shutdown failed", slog.Any("err", err))
		}
	}()

	log.Debug("opening store", storeLogArgs(cfg.StoreDSN)...)
	db, err := bunstore.Open(cfg.StoreDSN, bunstore.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		args := append([]any{slog.Any("err", err)}, storeLogArgs(cfg.StoreDSN)...)
		log.Error("store open failed", args...)
		return 1
	}
	defer func() {
		if err := bunstore.Close(db); err != nil {
			log.Warn("store close failed", slog.Any("err", err))
		}
	}()

	a := newApp(cfg, db, log, os.Stdout)
	if err := a.schema.EnsureSchema(ctx); err != nil {
		log.Error("schema ensure failed", slog.Any("err", err))
		return 1
	}

	err = a.run(ctx, cmd, args)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		return 2
	default:
		fmt.Fprintf(os.Stderr, "%s: %v\n", cmd, err)
		return 1
	}
}

func newApp(cfg config.Config, db *bun.DB, log *slog.Logger, out io.Writer) *app {
	bookingRepo := bunstore.NewBookingRepo(db)
	engine := availability.NewEngine(bookingRepo, cfg.Hours, log)
	catalogSvc := catalog.NewService(bunstore.NewServiceRepo(db), log)
	bookingSvc := bookings.NewService(bookingRepo, engine, log)

	return &app{
		cfg:          cfg,
		log:          log,
		out:          out,
		schema:       bunstore.NewSchemaManager(db, log),
		accounts:     accounts.NewService(bunstore.NewAccountRepo(db), log),
		catalog:      catalogSvc,
		bookings:     bookingSvc,
		availability: engine,
		analytics:    analytics.NewService(bunstore.NewAnalyticsRepo(db), cfg.Hours.Loc(), log),
		digest:       digest.NewJob(engine, bookingSvc, catalogSvc, log),
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func storeLogArgs(dsn string) []any {
	if !bunstore.IsPostgresDSN(dsn) {
		return []any{slog.String("db_driver", "sqlite"), slog.String("db_path", dsn)}
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_driver", "postgres"),
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
