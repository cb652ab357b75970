package bunstore_test

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"chairbook/internal/domain"
	"chairbook/internal/service/availability"
	"chairbook/internal/service/bookings"
	"chairbook/internal/store"
	"chairbook/internal/store/bunstore"
)

func TestPostgresIntegration_SchemaAndConcurrentBooking(t *testing.T) {
	databaseURL := strings.TrimSpace(os.Getenv("CHAIRBOOK_TEST_DATABASE_URL"))
	if databaseURL == "" {
		t.Skip("CHAIRBOOK_TEST_DATABASE_URL not set")
	}

	admin, err := bunstore.Open(databaseURL, bunstore.PoolConfig{MaxOpenConns: 1})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() {
		_ = bunstore.Close(admin)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	schema := "chairbook_test_" + randomHex(t, 8)
	if _, err := admin.NewRaw("CREATE SCHEMA " + schema).Exec(ctx); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = admin.NewRaw("DROP SCHEMA IF EXISTS " + schema + " CASCADE").Exec(ctx)
	})

	u, err := url.Parse(databaseURL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	q := u.Query()
	q.Set("search_path", schema)
	u.RawQuery = q.Encode()

	db, err := bunstore.Open(u.String(), bunstore.PoolConfig{MaxOpenConns: 8})
	if err != nil {
		t.Fatalf("Open scoped error: %v", err)
	}
	t.Cleanup(func() {
		_ = bunstore.Close(db)
	})

	mgr := bunstore.NewSchemaManager(db, slog.Default())
	for i := 0; i < 2; i++ {
		if err := mgr.EnsureSchema(ctx); err != nil {
			t.Fatalf("EnsureSchema #%d error: %v", i+1, err)
		}
	}
	if v, err := mgr.Version(ctx); err != nil || v != bunstore.SchemaVersion {
		t.Fatalf("Version = %d, %v", v, err)
	}

	if _, err := bunstore.NewServiceRepo(db).CreateService(ctx, domain.Service{ID: "cut", Name: "Cut", PriceMinorUnits: 1500, DurationMinutes: 60, Active: true}); err != nil {
		t.Fatalf("CreateService error: %v", err)
	}

	hours := domain.DefaultOpeningHours()
	hours.Location = time.UTC
	repo := bunstore.NewBookingRepo(db)
	svc := bookings.NewService(repo, availability.NewEngine(repo, hours, slog.Default()), slog.Default())

	start := time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC)
	const racers = 6
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Book(ctx, bookings.BookInput{
				ClientName: "Racer",
				Phone:      "555010020" + string(rune('0'+i)),
				ServiceID:  "cut",
				Start:      start.Add(time.Duration(i) * 5 * time.Minute),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, store.ErrConflict):
				conflicts++
			default:
				t.Errorf("Book #%d error: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if ok != 1 || conflicts != racers-1 {
		t.Fatalf("ok = %d, conflicts = %d, want exactly one winner", ok, conflicts)
	}

	from, to := domain.MonthBounds(2024, time.March, time.UTC)
	if got, err := repo.Revenue(ctx, from, to); err != nil || got != 1500 {
		t.Fatalf("Revenue = %d, %v, want 1500", got, err)
	}
}

func randomHex(t *testing.T, bytesLen int) string {
	t.Helper()
	b := make([]byte, bytesLen)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("rand.Read error: %v", err)
	}
	return hex.EncodeToString(b)
}
