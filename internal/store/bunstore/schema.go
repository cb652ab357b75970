package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/uptrace/bun"

	"chairbook/internal/domain"
	"chairbook/internal/store"
)

// SchemaVersion is the latest declared layout of the store.
const SchemaVersion = 5

type schemaVersionRow struct {
	bun.BaseModel `bun:"table:schema_version"`

	ID        int       `bun:"id,pk"`
	Version   int       `bun:"version,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

type migrationStep struct {
	version int
	name    string
	apply   func(ctx context.Context, db bun.IDB) error
}

// SchemaManager owns the on-disk layout. Every step is additive and guarded
// by an existence check, so EnsureSchema can run on every open regardless of
// the version the store was last written with.
type SchemaManager struct {
	db  *bun.DB
	log *slog.Logger
}

func NewSchemaManager(db *bun.DB, log *slog.Logger) *SchemaManager {
	if log == nil {
		log = slog.Default()
	}
	return &SchemaManager{
		db:  db,
		log: log.With(slog.String("component", "store.schema")),
	}
}

func migrationSteps(db bun.IDB) []migrationStep {
	ts := timestampType(db)
	return []migrationStep{
		{version: 1, name: "create bookings", apply: createTable((*domain.Booking)(nil))},
		{version: 1, name: "create services", apply: createTable((*domain.Service)(nil))},
		{version: 1, name: "create accounts", apply: createTable((*domain.Account)(nil))},
		{version: 2, name: "add accounts.role", apply: addColumn("accounts", "role", "VARCHAR NOT NULL DEFAULT 'viewer'")},
		{version: 3, name: "add services.active", apply: addColumn("services", "active", "BOOLEAN NOT NULL DEFAULT TRUE")},
		{version: 4, name: "add bookings.reference", apply: addColumn("bookings", "reference", "VARCHAR")},
		{version: 4, name: "add bookings.created_at", apply: addColumn("bookings", "created_at", ts+" NOT NULL DEFAULT '1970-01-01 00:00:00'")},
		{version: 4, name: "add bookings.updated_at", apply: addColumn("bookings", "updated_at", ts+" NOT NULL DEFAULT '1970-01-01 00:00:00'")},
		{version: 5, name: "index bookings.appointment_start", apply: createIndex((*domain.Booking)(nil), "idx_bookings_appointment_start", false, "appointment_start")},
		{version: 5, name: "index bookings.phone_number", apply: createIndex((*domain.Booking)(nil), "idx_bookings_phone_number", false, "phone_number")},
		{version: 5, name: "index bookings.reference", apply: createIndex((*domain.Booking)(nil), "idx_bookings_reference", true, "reference")},
		{version: 5, name: "index accounts.username", apply: createIndex((*domain.Account)(nil), "idx_accounts_username", true, "username")},
	}
}

// EnsureSchema brings the store to the latest layout, promotes the earliest
// account to owner when no owner exists and seeds an empty catalog. Only a
// failure to guarantee the three tables is returned; every other step is
// logged and skipped so the store converges on the next open.
func (m *SchemaManager) EnsureSchema(ctx context.Context) error {
	if _, err := m.db.NewCreateTable().Model((*schemaVersionRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		m.log.Warn("schema_version table create failed", slog.Any("err", err))
	}

	stored, err := m.Version(ctx)
	if err != nil {
		m.log.Warn("schema version read failed", slog.Any("err", err))
	}

	for _, step := range migrationSteps(m.db) {
		if err := step.apply(ctx, m.db); err != nil {
			m.log.Warn(
				"migration step failed",
				slog.Int("version", step.version),
				slog.String("step", step.name),
				slog.Any("err", err),
			)
			continue
		}
		m.log.Debug("migration step ensured", slog.Int("version", step.version), slog.String("step", step.name))
	}

	if stored > SchemaVersion {
		m.log.Warn("store written by a newer schema version", slog.Int("stored", stored), slog.Int("declared", SchemaVersion))
	} else if err := m.recordVersion(ctx, SchemaVersion); err != nil {
		m.log.Warn("schema version record failed", slog.Any("err", err))
	}

	if err := m.ensureTables(ctx); err != nil {
		return store.Wrap("ensure schema", err)
	}

	if err := m.promoteEarliestAccount(ctx); err != nil {
		m.log.Warn("owner backfill failed", slog.Any("err", err))
	}
	if err := m.seedCatalog(ctx); err != nil {
		m.log.Warn("catalog seed failed", slog.Any("err", err))
	}

	if stored != SchemaVersion {
		m.log.Info("schema ensured", slog.Int("from_version", stored), slog.Int("to_version", SchemaVersion))
	}
	return nil
}

// Version returns the recorded schema version, 0 for a fresh store.
func (m *SchemaManager) Version(ctx context.Context) (int, error) {
	var row schemaVersionRow
	err := m.db.NewSelect().Model(&row).Where("id = ?", 1).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return row.Version, nil
}

func (m *SchemaManager) recordVersion(ctx context.Context, version int) error {
	row := schemaVersionRow{ID: 1, Version: version, UpdatedAt: time.Now().UTC()}
	_, err := m.db.NewInsert().
		Model(&row).
		On("CONFLICT (id) DO UPDATE").
		Set("version = EXCLUDED.version").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (m *SchemaManager) ensureTables(ctx context.Context) error {
	models := []struct {
		table string
		model any
	}{
		{table: "bookings", model: (*domain.Booking)(nil)},
		{table: "services", model: (*domain.Service)(nil)},
		{table: "accounts", model: (*domain.Account)(nil)},
	}
	for _, tm := range models {
		ok, err := tableExists(ctx, m.db, tm.table)
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		m.log.Info("creating missing table", slog.String("table", tm.table))
		if err := createTable(tm.model)(ctx, m.db); err != nil {
			return err
		}
	}
	return nil
}

func (m *SchemaManager) promoteEarliestAccount(ctx context.Context) error {
	promoted, err := accountQueries{db: m.db}.PromoteEarliest(ctx)
	if err != nil || promoted == "" {
		return err
	}
	m.log.Info("promoted earliest account to owner", slog.String("username", promoted))
	return nil
}

func (m *SchemaManager) seedCatalog(ctx context.Context) error {
	n, err := m.db.NewSelect().Model((*domain.Service)(nil)).Count(ctx)
	if err != nil || n > 0 {
		return err
	}

	services, err := SeedCatalog()
	if err != nil {
		return err
	}
	if len(services) == 0 {
		return nil
	}
	if _, err := m.db.NewInsert().Model(&services).Exec(ctx); err != nil {
		return err
	}
	m.log.Info("seeded service catalog", slog.Int("count", len(services)))
	return nil
}

func createTable(model any) func(ctx context.Context, db bun.IDB) error {
	return func(ctx context.Context, db bun.IDB) error {
		_, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx)
		return err
	}
}

func addColumn(table, column, definition string) func(ctx context.Context, db bun.IDB) error {
	return func(ctx context.Context, db bun.IDB) error {
		ok, err := columnExists(ctx, db, table, column)
		if err != nil || ok {
			return err
		}
		_, err = db.NewRaw("ALTER TABLE ? ADD COLUMN ? "+definition, bun.Ident(table), bun.Ident(column)).Exec(ctx)
		return err
	}
}

func createIndex(model any, name string, unique bool, columns ...string) func(ctx context.Context, db bun.IDB) error {
	return func(ctx context.Context, db bun.IDB) error {
		q := db.NewCreateIndex().Model(model).Index(name).Column(columns...).IfNotExists()
		if unique {
			q = q.Unique()
		}
		_, err := q.Exec(ctx)
		return err
	}
}

func tableExists(ctx context.Context, db bun.IDB, table string) (bool, error) {
	var n int
	var err error
	if isPostgres(db) {
		err = db.NewRaw(
			"SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?",
			table,
		).Scan(ctx, &n)
	} else {
		err = db.NewRaw("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(ctx, &n)
	}
	return n > 0, err
}

func columnExists(ctx context.Context, db bun.IDB, table, column string) (bool, error) {
	var n int
	var err error
	if isPostgres(db) {
		err = db.NewRaw(
			"SELECT COUNT(*) FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = ? AND column_name = ?",
			table, column,
		).Scan(ctx, &n)
	} else {
		err = db.NewRaw("SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?", table, column).Scan(ctx, &n)
	}
	return n > 0, err
}

func timestampType(db bun.IDB) string {
	if isPostgres(db) {
		return "TIMESTAMPTZ"
	}
	return "TIMESTAMP"
}
