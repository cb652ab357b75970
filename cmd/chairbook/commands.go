package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"chairbook/internal/domain"
	"chairbook/internal/service/bookings"
	"chairbook/internal/service/catalog"
)

var (
	errUsage        = errors.New("usage")
	errLoginDenied  = errors.New("login denied")
	errMissingFlags = errors.New("missing required flags")
)

type command struct {
	name    string
	summary string
	run     func(a *app, ctx context.Context, fs *flag.FlagSet, args []string) error
}

var commands = []command{
	{"migrate", "ensure the store schema and print its version", (*app).migrate},
	{"add-account", "create an account (-username -password)", (*app).addAccount},
	{"set-role", "change an account role (-username -role owner|viewer)", (*app).setRole},
	{"verify-login", "check credentials (-username -password)", (*app).verifyLogin},
	{"add-service", "add a catalog entry (-id -name -price -minutes)", (*app).addService},
	{"update-service", "change a catalog entry (-id [-name] [-price] [-minutes] [-active])", (*app).updateService},
	{"list-services", "list the catalog (-all to include inactive)", (*app).listServices},
	{"deactivate-service", "retire a catalog entry (-id)", (*app).deactivateService},
	{"book", "reserve a slot (-name -phone -service -at \"2006-01-02 15:04\" [-key] [-repeat-weeks N -count M])", (*app).book},
	{"amend", "change a booking (-id [-name] [-phone] [-service] [-at])", (*app).amend},
	{"cancel", "cancel a booking (-id)", (*app).cancel},
	{"list-bookings", "list bookings ([-phone] [-date 2006-01-02])", (*app).listBookings},
	{"slots", "show a day's slots (-date -service | -minutes)", (*app).slots},
	{"full-days", "list fully booked days (-month 2006-01)", (*app).fullDays},
	{"report", "print analytics and month revenue ([-month] [-limit])", (*app).report},
	{"digest", "run the daily digest ([-once])", (*app).runDigest},
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: chairbook <command> [flags]")
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, c := range commands {
		fmt.Fprintf(tw, "  %s\t%s\n", c.name, c.summary)
	}
	_ = tw.Flush()
}

func (a *app) run(ctx context.Context, name string, args []string) error {
	for _, c := range commands {
		if c.name != name {
			continue
		}
		fs := flag.NewFlagSet(name, flag.ContinueOnError)
		err := c.run(a, ctx, fs, args)
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		if errors.Is(err, errMissingFlags) {
			fs.Usage()
			return errUsage
		}
		return err
	}
	usage(a.out)
	return errUsage
}

func (a *app) migrate(ctx context.Context, fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	version, err := a.schema.Version(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "schema version %d\n", version)
	return nil
}

func (a *app) addAccount(ctx context.Context, fs *flag.FlagSet, args []string) error {
	username := fs.String("username", "", "account name")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	acct, err := a.accounts.CreateAccount(ctx, *username, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "created %s (%s)\n", acct.Username, acct.Role)
	return nil
}

func (a *app) setRole(ctx context.Context, fs *flag.FlagSet, args []string) error {
	username := fs.String("username", "", "account name")
	role := fs.String("role", "", "owner or viewer")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" || *role == "" {
		return errMissingFlags
	}
	return a.accounts.SetRole(ctx, *username, domain.Role(strings.ToLower(*role)))
}

func (a *app) verifyLogin(ctx context.Context, fs *flag.FlagSet, args []string) error {
	username := fs.String("username", "", "account name")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !a.accounts.VerifyLogin(ctx, *username, *password) {
		return errLoginDenied
	}
	role, _ := a.accounts.RoleOf(ctx, *username)
	fmt.Fprintf(a.out, "ok (%s)\n", role)
	return nil
}

func (a *app) addService(ctx context.Context, fs *flag.FlagSet, args []string) error {
	id := fs.String("id", "", "slug, e.g. beard-trim")
	name := fs.String("name", "", "display name")
	price := fs.Int64("price", 0, "price in minor units")
	minutes := fs.Int("minutes", 0, "duration in minutes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	svc, err := a.catalog.Create(ctx, catalog.CreateInput{
		ID:              *id,
		Name:            *name,
		PriceMinorUnits: *price,
		DurationMinutes: *minutes,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "created %s\n", svc.ID)
	return nil
}

func (a *app) updateService(ctx context.Context, fs *flag.FlagSet, args []string) error {
	id := fs.String("id", "", "service id")
	name := fs.String("name", "", "display name")
	price := fs.Int64("price", 0, "price in minor units")
	minutes := fs.Int("minutes", 0, "duration in minutes")
	active := fs.Bool("active", true, "whether the service can be booked")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errMissingFlags
	}

	var in catalog.UpdateInput
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "name":
			in.Name = name
		case "price":
			in.PriceMinorUnits = price
		case "minutes":
			in.DurationMinutes = minutes
		case "active":
			in.Active = active
		}
	})
	svc, err := a.catalog.Update(ctx, *id, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "updated %s\n", svc.ID)
	return nil
}

func (a *app) listServices(ctx context.Context, fs *flag.FlagSet, args []string) error {
	all := fs.Bool("all", false, "include inactive services")
	if err := fs.Parse(args); err != nil {
		return err
	}
	services, err := a.catalog.List(ctx, *all)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE\tMINUTES\tACTIVE")
	for _, s := range services {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%t\n", s.ID, s.Name, formatMoney(s.PriceMinorUnits), s.DurationMinutes, s.Active)
	}
	return tw.Flush()
}

func (a *app) deactivateService(ctx context.Context, fs *flag.FlagSet, args []string) error {
	id := fs.String("id", "", "service id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errMissingFlags
	}
	return a.catalog.Delete(ctx, *id)
}

func (a *app) book(ctx context.Context, fs *flag.FlagSet, args []string) error {
	name := fs.String("name", "", "client name")
	phone := fs.String("phone", "", "client phone number")
	serviceID := fs.String("service", "", "service id")
	at := fs.String("at", "", "start, \"2006-01-02 15:04\" in business time")
	key := fs.String("key", "", "idempotency key")
	every := fs.Int("repeat-weeks", 0, "repeat every N weeks")
	count := fs.Int("count", 1, "number of visits when repeating")
	if err := fs.Parse(args); err != nil {
		return err
	}
	start, err := a.parseLocal("2006-01-02 15:04", *at)
	if err != nil {
		return err
	}
	in := bookings.BookInput{
		ClientName:     *name,
		Phone:          *phone,
		ServiceID:      *serviceID,
		Start:          start,
		IdempotencyKey: *key,
	}

	var booked []domain.Booking
	if *every > 0 {
		booked, err = a.bookings.BookSeries(ctx, in, domain.RepeatRule{IntervalWeeks: *every, Count: *count})
	} else {
		var b domain.Booking
		b, err = a.bookings.Book(ctx, in)
		booked = append(booked, b)
	}
	if err != nil {
		return err
	}
	for _, b := range booked {
		fmt.Fprintf(a.out, "booked #%d %s at %s (ref %s)\n", b.ID, b.ServiceName, a.formatTime(b.AppointmentStart), b.Reference)
	}
	return nil
}

func (a *app) amend(ctx context.Context, fs *flag.FlagSet, args []string) error {
	id := fs.Int64("id", 0, "booking id")
	name := fs.String("name", "", "client name")
	phone := fs.String("phone", "", "client phone number")
	serviceID := fs.String("service", "", "service id")
	at := fs.String("at", "", "start, \"2006-01-02 15:04\" in business time")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == 0 {
		return errMissingFlags
	}

	var in bookings.AmendInput
	var parseErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "name":
			in.ClientName = name
		case "phone":
			in.Phone = phone
		case "service":
			in.ServiceID = serviceID
		case "at":
			start, err := a.parseLocal("2006-01-02 15:04", *at)
			if err != nil {
				parseErr = err
				return
			}
			in.Start = &start
		}
	})
	if parseErr != nil {
		return parseErr
	}

	b, err := a.bookings.Amend(ctx, *id, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "amended #%d %s at %s\n", b.ID, b.ServiceName, a.formatTime(b.AppointmentStart))
	return nil
}

func (a *app) cancel(ctx context.Context, fs *flag.FlagSet, args []string) error {
	id := fs.Int64("id", 0, "booking id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == 0 {
		return errMissingFlags
	}
	return a.bookings.Cancel(ctx, *id)
}

func (a *app) listBookings(ctx context.Context, fs *flag.FlagSet, args []string) error {
	phone := fs.String("phone", "", "only bookings for this phone number")
	date := fs.String("date", "", "only active bookings on this day (2006-01-02)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		rows []domain.Booking
		err  error
	)
	switch {
	case *phone != "":
		rows, err = a.bookings.FindByPhone(ctx, *phone)
	case *date != "":
		var day time.Time
		day, err = a.parseLocal(time.DateOnly, *date)
		if err == nil {
			rows, err = a.bookings.FindForDate(ctx, day)
		}
	default:
		rows, err = a.bookings.List(ctx)
	}
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTART\tCLIENT\tPHONE\tSERVICE\tPRICE\tSTATUS")
	for _, b := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			b.ID, a.formatTime(b.AppointmentStart), b.ClientName, b.PhoneNumber, b.ServiceName, formatMoney(b.PriceMinorUnits), b.Status)
	}
	return tw.Flush()
}

func (a *app) slots(ctx context.Context, fs *flag.FlagSet, args []string) error {
	date := fs.String("date", "", "day (2006-01-02)")
	serviceID := fs.String("service", "", "service id to size the slots")
	minutes := fs.Int("minutes", 0, "slot length when no service is given")
	if err := fs.Parse(args); err != nil {
		return err
	}
	day, err := a.parseLocal(time.DateOnly, *date)
	if err != nil {
		return err
	}
	length := *minutes
	if *serviceID != "" {
		svc, err := a.catalog.Get(ctx, *serviceID)
		if err != nil {
			return err
		}
		length = svc.DurationMinutes
	}

	slots, err := a.availability.SlotAvailability(ctx, day, length)
	if err != nil {
		return err
	}
	for _, s := range slots {
		mark := "busy"
		if s.Available {
			mark = "free"
		}
		fmt.Fprintf(a.out, "%s %s\n", s.Start.In(a.cfg.Hours.Loc()).Format("15:04"), mark)
	}
	return nil
}

func (a *app) fullDays(ctx context.Context, fs *flag.FlagSet, args []string) error {
	month := fs.String("month", "", "month (2006-01), default current")
	if err := fs.Parse(args); err != nil {
		return err
	}
	year, m, err := a.parseMonth(*month)
	if err != nil {
		return err
	}
	for _, d := range a.availability.FullyBookedDates(ctx, year, m) {
		fmt.Fprintln(a.out, d.Format(time.DateOnly))
	}
	return nil
}

func (a *app) report(ctx context.Context, fs *flag.FlagSet, args []string) error {
	month := fs.String("month", "", "month for revenue (2006-01), default current")
	limit := fs.Int("limit", 5, "rows per ranking")
	if err := fs.Parse(args); err != nil {
		return err
	}
	year, m, err := a.parseMonth(*month)
	if err != nil {
		return err
	}

	summary, err := a.analytics.Summary(ctx, *limit)
	if err != nil {
		return err
	}
	revenue, err := a.bookings.Revenue(ctx, year, m)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "active bookings: %d\n", summary.TotalBookings)
	fmt.Fprintf(a.out, "total revenue:   %s\n", formatMoney(summary.TotalRevenue))
	fmt.Fprintf(a.out, "revenue %04d-%02d: %s\n", year, int(m), formatMoney(revenue))

	fmt.Fprintln(a.out, "\npeak hours:")
	for _, h := range summary.PeakHours {
		fmt.Fprintf(a.out, "  %02d:00  %d\n", h.Hour, h.Count)
	}
	fmt.Fprintln(a.out, "\npopular services:")
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, p := range summary.PopularServices {
		fmt.Fprintf(tw, "  %s\t%s\t%d\t%s\n", p.ServiceID, p.ServiceName, p.BookingCount, formatMoney(p.TotalRevenue))
	}
	return tw.Flush()
}

func (a *app) runDigest(ctx context.Context, fs *flag.FlagSet, args []string) error {
	once := fs.Bool("once", false, "build one digest and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *once {
		a.digest.Run(ctx)
		return nil
	}
	return a.digest.Schedule(ctx, a.cfg.DigestSchedule)
}

func (a *app) parseLocal(layout, value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, errMissingFlags
	}
	t, err := time.ParseInLocation(layout, strings.TrimSpace(value), a.cfg.Hours.Loc())
	if err != nil {
		return time.Time{}, fmt.Errorf("want %s, got %q", layout, value)
	}
	return t, nil
}

func (a *app) parseMonth(value string) (int, time.Month, error) {
	if strings.TrimSpace(value) == "" {
		now := time.Now().In(a.cfg.Hours.Loc())
		return now.Year(), now.Month(), nil
	}
	t, err := a.parseLocal("2006-01", value)
	if err != nil {
		return 0, 0, err
	}
	return t.Year(), t.Month(), nil
}

func (a *app) formatTime(t time.Time) string {
	return t.In(a.cfg.Hours.Loc()).Format("2006-01-02 15:04")
}

func formatMoney(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}
