package application_test

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/example/amenity-booking/internal/application"
	"github.com/example/amenity-booking/internal/domain"
	"github.com/example/amenity-booking/internal/events"
	"github.com/example/amenity-booking/internal/persistence"
	"github.com/example/amenity-booking/internal/scheduler"
	"github.com/example/amenity-booking/internal/testfixtures"
)

// env is a seeded property: spaces, residents A and B, and a manager.
type env struct {
	t        *testing.T
	factory  *testfixtures.ServiceFactory
	store    persistence.Store
	svc      testfixtures.Services
	catalog  testfixtures.Catalog
	userA    application.Principal
	userB    application.Principal
	manager  application.Principal
	ctx      context.Context
	spaceIDs []string
}

func newEnv(t *testing.T, spaces ...domain.CommonSpace) *env {
	t.Helper()
	return newEnvWithStore(t, testfixtures.NewMemoryStore(t), spaces...)
}

func newEnvWithStore(t *testing.T, store persistence.Store, spaces ...domain.CommonSpace) *env {
	t.Helper()
	if len(spaces) == 0 {
		spaces = []domain.CommonSpace{testfixtures.NewSpace("")}
	}
	users := []domain.User{
		testfixtures.NewUser(testfixtures.WithUserName("Alice")),
		testfixtures.NewUser(testfixtures.WithUserName("Bob")),
		testfixtures.NewUser(testfixtures.WithUserName("Morgan")),
	}
	catalog := testfixtures.SeedCatalog(t, store, spaces, users)
	factory := testfixtures.NewServiceFactory()

	e := &env{
		t:       t,
		factory: factory,
		store:   store,
		svc:     factory.Build(store),
		catalog: catalog,
		userA:   application.Principal{UserID: users[0].ID, Role: application.RoleResident},
		userB:   application.Principal{UserID: users[1].ID, Role: application.RoleTenant},
		manager: application.Principal{UserID: users[2].ID, Role: application.RoleManager},
		ctx:     context.Background(),
	}
	for _, s := range catalog.Spaces {
		e.spaceIDs = append(e.spaceIDs, s.ID)
	}
	return e
}

func (e *env) space(i int) string { return e.spaceIDs[i] }

func (e *env) book(p application.Principal, spaceID string, start, end time.Time) (domain.Booking, error) {
	return e.svc.Bookings.CreateBooking(e.ctx, application.CreateBookingParams{
		Principal: p,
		SpaceID:   spaceID,
		Start:     start,
		End:       end,
	})
}

func (e *env) mustBook(p application.Principal, spaceID string, start, end time.Time) domain.Booking {
	e.t.Helper()
	b, err := e.book(p, spaceID, start, end)
	if err != nil {
		e.t.Fatalf("CreateBooking returned error: %v", err)
	}
	return b
}

func (e *env) spaceEvents(p application.Principal, spaceID string) int {
	e.t.Helper()
	cal, err := e.svc.Calendar.GetSpaceCalendar(e.ctx, application.SpaceCalendarParams{Principal: p, SpaceID: spaceID})
	if err != nil {
		e.t.Fatalf("GetSpaceCalendar returned error: %v", err)
	}
	return len(cal.Events)
}

func TestCreateBookingScenarios(t *testing.T) {
	t.Parallel()

	t.Run("books a free slot and shows it as own booking", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		clock := e.factory.Clock

		booking := e.mustBook(e.userA, e.space(0), clock.Tomorrow(14), clock.Tomorrow(16))
		if booking.Status != domain.BookingStatusConfirmed || booking.UserID != e.userA.UserID {
			t.Fatalf("unexpected booking %+v", booking)
		}

		cal, err := e.svc.Calendar.GetSpaceCalendar(e.ctx, application.SpaceCalendarParams{Principal: e.userA, SpaceID: e.space(0)})
		if err != nil {
			t.Fatalf("GetSpaceCalendar returned error: %v", err)
		}
		if len(cal.Events) != 1 || !cal.Events[0].IsOwnBooking {
			t.Fatalf("expected one own event, got %+v", cal.Events)
		}
	})

	t.Run("overlapping request is a time conflict", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		clock := e.factory.Clock

		e.mustBook(e.userA, e.space(0), clock.Tomorrow(14), clock.Tomorrow(16))
		_, err := e.book(e.userB, e.space(0), clock.Tomorrow(15), clock.Tomorrow(17))
		if !errors.Is(err, application.ErrTimeConflict) {
			t.Fatalf("expected ErrTimeConflict, got %v", err)
		}
		if got := e.spaceEvents(e.userB, e.space(0)); got != 1 {
			t.Fatalf("expected calendar to still show 1 event, got %d", got)
		}
	})

	t.Run("late evening slot is outside operating hours", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t, testfixtures.NewSpace("", testfixtures.WithSpaceHours(testfixtures.DailyHours("09:00", "21:00"))))
		clock := e.factory.Clock

		_, err := e.book(e.userA, e.space(0), clock.Tomorrow(23), clock.Tomorrow(24))
		if !errors.Is(err, application.ErrOutsideOperatingHours) {
			t.Fatalf("expected ErrOutsideOperatingHours, got %v", err)
		}
	})

	t.Run("restricted user is blocked only on that space", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t, testfixtures.NewSpace(""), testfixtures.NewSpace(""))
		clock := e.factory.Clock

		if _, err := e.svc.Restrictions.SetRestriction(e.ctx, application.SetRestrictionParams{
			Principal: e.manager,
			SpaceID:   e.space(0),
			UserID:    e.userA.UserID,
			IsBlocked: true,
			Reason:    "abuse",
		}); err != nil {
			t.Fatalf("SetRestriction returned error: %v", err)
		}

		_, err := e.book(e.userA, e.space(0), clock.Tomorrow(10), clock.Tomorrow(11))
		if !errors.Is(err, application.ErrUserRestricted) {
			t.Fatalf("expected ErrUserRestricted, got %v", err)
		}
		e.mustBook(e.userA, e.space(1), clock.Tomorrow(10), clock.Tomorrow(11))
	})

	t.Run("manager building calendar is unmasked", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t, testfixtures.NewSpace(""), testfixtures.NewSpace(""))
		clock := e.factory.Clock

		e.mustBook(e.userA, e.space(0), clock.Tomorrow(10), clock.Tomorrow(11))
		e.mustBook(e.userB, e.space(1), clock.Tomorrow(10), clock.Tomorrow(12))

		cal, err := e.svc.Calendar.GetBuildingCalendar(e.ctx, e.manager, e.catalog.Building.ID)
		if err != nil {
			t.Fatalf("GetBuildingCalendar returned error: %v", err)
		}
		if len(cal.Events) != 2 {
			t.Fatalf("expected 2 events, got %d", len(cal.Events))
		}
		for _, ev := range cal.Events {
			if ev.UserName == "Reserved" || ev.UserEmail == nil || ev.UserID == nil {
				t.Fatalf("expected unmasked event, got %+v", ev)
			}
		}
	})

	t.Run("export contains one event per confirmed booking", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		clock := e.factory.Clock

		e.mustBook(e.userA, e.space(0), clock.Tomorrow(10), clock.Tomorrow(11))
		e.mustBook(e.userB, e.space(0), clock.Tomorrow(12), clock.Tomorrow(13))

		doc, err := e.svc.Export.ExportCalendar(e.ctx, e.userA, e.space(0))
		if err != nil {
			t.Fatalf("ExportCalendar returned error: %v", err)
		}
		if got := strings.Count(doc, "BEGIN:VEVENT\r\n"); got != 2 {
			t.Fatalf("expected 2 VEVENT blocks, got %d", got)
		}
		if strings.Count(doc, "BEGIN:VCALENDAR\r\n") != 1 || strings.Count(doc, "END:VCALENDAR\r\n") != 1 {
			t.Fatalf("expected a single VCALENDAR envelope:\n%s", doc)
		}
	})
}

func TestCreateBookingRules(t *testing.T) {
	t.Parallel()

	t.Run("start at or before now is in the past", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		now := e.factory.Clock.Now()

		for _, start := range []time.Time{now, now.Add(-time.Hour), now.Add(-48 * time.Hour)} {
			_, err := e.book(e.userA, e.space(0), start, start.Add(time.Hour))
			if !errors.Is(err, application.ErrBookingInPast) {
				t.Fatalf("start %v: expected ErrBookingInPast, got %v", start, err)
			}
		}
	})

	t.Run("non reservable space", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t, testfixtures.NewSpace("", testfixtures.WithSpaceReservable(false)))
		clock := e.factory.Clock
		_, err := e.book(e.userA, e.space(0), clock.Tomorrow(10), clock.Tomorrow(11))
		if !errors.Is(err, application.ErrSpaceNotReservable) {
			t.Fatalf("expected ErrSpaceNotReservable, got %v", err)
		}
	})

	t.Run("restriction is checked before every other rule", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t, testfixtures.NewSpace("", testfixtures.WithSpaceReservable(false)))
		if _, err := e.svc.Restrictions.SetRestriction(e.ctx, application.SetRestrictionParams{
			Principal: e.manager, SpaceID: e.space(0), UserID: e.userA.UserID, IsBlocked: true,
		}); err != nil {
			t.Fatalf("SetRestriction returned error: %v", err)
		}
		past := e.factory.Clock.Now().Add(-time.Hour)
		_, err := e.book(e.userA, e.space(0), past, past.Add(time.Hour))
		if !errors.Is(err, application.ErrUserRestricted) {
			t.Fatalf("expected ErrUserRestricted, got %v", err)
		}
	})

	t.Run("past is checked before hours", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t, testfixtures.NewSpace("", testfixtures.WithSpaceHours(testfixtures.DailyHours("09:00", "10:00"))))
		start := e.factory.Clock.At(-1, 22)
		_, err := e.book(e.userA, e.space(0), start, start.Add(time.Hour))
		if !errors.Is(err, application.ErrBookingInPast) {
			t.Fatalf("expected ErrBookingInPast, got %v", err)
		}
	})

	t.Run("hours enforcement", func(t *testing.T) {
		t.Parallel()
		hours := testfixtures.DailyHours("09:00", "21:00")
		hours[time.Thursday] = scheduler.DayHours{Closed: true}
		e := newEnv(t, testfixtures.NewSpace("", testfixtures.WithSpaceHours(hours)))
		clock := e.factory.Clock

		cases := []struct {
			name       string
			start, end time.Time
			wantErr    error
		}{
			{name: "starts before opening", start: clock.Tomorrow(8), end: clock.Tomorrow(10), wantErr: application.ErrOutsideOperatingHours},
			{name: "ends after closing", start: clock.Tomorrow(20), end: clock.Tomorrow(22), wantErr: application.ErrOutsideOperatingHours},
			{name: "exactly opening hours", start: clock.Tomorrow(9), end: clock.Tomorrow(21)},
			{name: "closed weekday", start: clock.At(2, 10), end: clock.At(2, 11), wantErr: application.ErrOutsideOperatingHours},
		}
		for _, tc := range cases {
			_, err := e.book(e.userA, e.space(0), tc.start, tc.end)
			if tc.wantErr == nil && err != nil {
				t.Fatalf("%s: unexpected error %v", tc.name, err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("%s: expected %v, got %v", tc.name, tc.wantErr, err)
			}
		}
	})

	t.Run("hours are read in the property location", func(t *testing.T) {
		t.Parallel()
		store := testfixtures.NewMemoryStore(t)
		space := testfixtures.NewSpace("", testfixtures.WithSpaceHours(testfixtures.DailyHours("09:00", "21:00")))
		catalog := testfixtures.SeedCatalog(t, store, []domain.CommonSpace{space}, []domain.User{testfixtures.NewUser()})
		tokyo := time.FixedZone("UTC+9", 9*60*60)
		factory := testfixtures.NewServiceFactory(testfixtures.WithLocation(tokyo))
		svc := factory.Build(store)

		// 01:00 UTC is 10:00 in the property.
		start := factory.Clock.Tomorrow(1)
		_, err := svc.Bookings.CreateBooking(context.Background(), application.CreateBookingParams{
			Principal: application.Principal{UserID: catalog.User(0).ID, Role: application.RoleResident},
			SpaceID:   catalog.Space(0).ID,
			Start:     start,
			End:       start.Add(time.Hour),
		})
		if err != nil {
			t.Fatalf("expected booking inside local hours to succeed, got %v", err)
		}
	})

	t.Run("validation", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		clock := e.factory.Clock

		cases := []struct {
			name   string
			params application.CreateBookingParams
			field  string
		}{
			{name: "missing space", params: application.CreateBookingParams{Principal: e.userA, Start: clock.Tomorrow(10), End: clock.Tomorrow(11)}, field: "space_id"},
			{name: "missing start", params: application.CreateBookingParams{Principal: e.userA, SpaceID: e.space(0), End: clock.Tomorrow(11)}, field: "start_time"},
			{name: "end before start", params: application.CreateBookingParams{Principal: e.userA, SpaceID: e.space(0), Start: clock.Tomorrow(11), End: clock.Tomorrow(10)}, field: "end_time"},
			{name: "empty interval", params: application.CreateBookingParams{Principal: e.userA, SpaceID: e.space(0), Start: clock.Tomorrow(11), End: clock.Tomorrow(11)}, field: "end_time"},
			{name: "sub-second interval", params: application.CreateBookingParams{Principal: e.userA, SpaceID: e.space(0), Start: clock.Tomorrow(11).Add(200 * time.Millisecond), End: clock.Tomorrow(11).Add(900 * time.Millisecond)}, field: "end_time"},
		}
		for _, tc := range cases {
			_, err := e.svc.Bookings.CreateBooking(e.ctx, tc.params)
			var vErr *application.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("%s: expected ValidationError, got %v", tc.name, err)
			}
			if _, ok := vErr.FieldErrors[tc.field]; !ok {
				t.Fatalf("%s: expected error on %s, got %v", tc.name, tc.field, vErr.FieldErrors)
			}
		}
	})

	t.Run("unknown space", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		clock := e.factory.Clock
		_, err := e.book(e.userA, "missing", clock.Tomorrow(10), clock.Tomorrow(11))
		if !errors.Is(err, application.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("booking for someone else needs manager capability", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		clock := e.factory.Clock

		params := application.CreateBookingParams{
			Principal: e.userA,
			SpaceID:   e.space(0),
			UserID:    e.userB.UserID,
			Start:     clock.Tomorrow(10),
			End:       clock.Tomorrow(11),
		}
		if _, err := e.svc.Bookings.CreateBooking(e.ctx, params); !errors.Is(err, application.ErrInsufficientCapability) {
			t.Fatalf("expected ErrInsufficientCapability, got %v", err)
		}

		params.Principal = e.manager
		booking, err := e.svc.Bookings.CreateBooking(e.ctx, params)
		if err != nil {
			t.Fatalf("manager booking returned error: %v", err)
		}
		if booking.UserID != e.userB.UserID {
			t.Fatalf("expected booking for user B, got %q", booking.UserID)
		}
	})

	t.Run("adjacent bookings do not conflict", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		clock := e.factory.Clock
		e.mustBook(e.userA, e.space(0), clock.Tomorrow(10), clock.Tomorrow(11))
		e.mustBook(e.userB, e.space(0), clock.Tomorrow(11), clock.Tomorrow(12))
		e.mustBook(e.userB, e.space(0), clock.Tomorrow(9), clock.Tomorrow(10))
	})

	t.Run("times are stored in UTC to the second", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		zone := time.FixedZone("X", -5*60*60)
		start := e.factory.Clock.Tomorrow(10).In(zone).Add(750 * time.Millisecond)
		booking := e.mustBook(e.userA, e.space(0), start, start.Add(time.Hour))
		if booking.Start.Location() != time.UTC || booking.Start.Nanosecond() != 0 {
			t.Fatalf("expected normalized start, got %v", booking.Start)
		}
	})
}

func TestCreateBookingPublishesEvent(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	clock := e.factory.Clock
	booking := e.mustBook(e.userA, e.space(0), clock.Tomorrow(10), clock.Tomorrow(11))

	created := e.factory.Events.OfType(events.TypeBookingCreated)
	if len(created) != 1 || created[0].Key != e.space(0) {
		t.Fatalf("expected one booking.created event keyed by space, got %+v", created)
	}
	payload, ok := created[0].Payload.(events.BookingPayload)
	if !ok || payload.BookingID != booking.ID {
		t.Fatalf("unexpected payload %+v", created[0].Payload)
	}

	e.factory.Events.FailWith(errors.New("broker down"))
	if _, err := e.book(e.userA, e.space(0), clock.Tomorrow(12), clock.Tomorrow(13)); err != nil {
		t.Fatalf("publisher failure must not fail the booking, got %v", err)
	}
}

// slowPublisher blocks until its context ends.
type slowPublisher struct {
	deadline time.Time
	bounded  bool
}

func (p *slowPublisher) Publish(ctx context.Context, _ events.Event) error {
	p.deadline, p.bounded = ctx.Deadline()
	<-ctx.Done()
	return ctx.Err()
}

func (p *slowPublisher) Close() error { return nil }

func TestCreateBookingBoundsEventPublishing(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	publisher := &slowPublisher{}
	svc := application.NewBookingService(application.BookingServiceDeps{
		Bookings:    e.store,
		Spaces:      e.store,
		Publisher:   publisher,
		IDGenerator: e.factory.IDGenerator.NextFunc(),
		Now:         e.factory.Clock.NowFunc(),
	})

	clock := e.factory.Clock
	started := time.Now()
	_, err := svc.CreateBooking(e.ctx, application.CreateBookingParams{
		Principal: e.userA,
		SpaceID:   e.space(0),
		Start:     clock.Tomorrow(10),
		End:       clock.Tomorrow(11),
	})
	if err != nil {
		t.Fatalf("a stalled publisher must not fail the booking, got %v", err)
	}
	if !publisher.bounded {
		t.Fatalf("expected publishing to run under a deadline")
	}
	if publisher.deadline.Sub(started) > 5*time.Second {
		t.Fatalf("publish deadline too far out: %v", publisher.deadline.Sub(started))
	}
	if elapsed := time.Since(started); elapsed > 5*time.Second {
		t.Fatalf("booking waited %v on the publisher", elapsed)
	}
}

// flakyStore fails the first WithSpaceLock calls with the queued errors.
type flakyStore struct {
	persistence.Store
	failures []error
	calls    int
}

func (f *flakyStore) WithSpaceLock(ctx context.Context, spaceID string, fn func(ctx context.Context) error) error {
	f.calls++
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		return err
	}
	return f.Store.WithSpaceLock(ctx, spaceID, fn)
}

func TestCreateBookingRetry(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		failures  []error
		wantCalls int
		check     func(t *testing.T, err error)
	}{
		{
			name:      "one serialization failure is retried",
			failures:  []error{persistence.ErrSerialization},
			wantCalls: 2,
			check: func(t *testing.T, err error) {
				if err != nil {
					t.Fatalf("expected retry to succeed, got %v", err)
				}
			},
		},
		{
			name:      "two serialization failures surface as conflict",
			failures:  []error{persistence.ErrSerialization, persistence.ErrSerialization},
			wantCalls: 2,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, application.ErrTimeConflict) {
					t.Fatalf("expected ErrTimeConflict, got %v", err)
				}
			},
		},
		{
			name:      "storage failure is retried once then wrapped",
			failures:  []error{errors.New("connection reset"), errors.New("connection reset")},
			wantCalls: 2,
			check: func(t *testing.T, err error) {
				if err == nil || application.IsRejection(err) {
					t.Fatalf("expected infrastructure error, got %v", err)
				}
				if !strings.Contains(err.Error(), "connection reset") {
					t.Fatalf("expected wrapped cause, got %v", err)
				}
			},
		},
		{
			name:      "unique index violation is a conflict without retry",
			failures:  []error{persistence.ErrConflict},
			wantCalls: 1,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, application.ErrTimeConflict) {
					t.Fatalf("expected ErrTimeConflict, got %v", err)
				}
			},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			store := &flakyStore{Store: testfixtures.NewMemoryStore(t)}
			e := newEnvWithStore(t, store)
			store.failures = tc.failures

			clock := e.factory.Clock
			_, err := e.book(e.userA, e.space(0), clock.Tomorrow(10), clock.Tomorrow(11))
			tc.check(t, err)
			if store.calls != tc.wantCalls {
				t.Fatalf("expected %d transaction attempts, got %d", tc.wantCalls, store.calls)
			}
		})
	}
}

func TestNoOverlapProperty(t *testing.T) {
	t.Parallel()

	for _, factory := range []testfixtures.StoreFactory{
		{Name: "memory", Open: testfixtures.NewMemoryStore},
		{Name: "sqlite", Open: testfixtures.NewSQLiteStore},
	} {
		factory := factory
		t.Run(factory.Name, func(t *testing.T) {
			t.Parallel()
			e := newEnvWithStore(t, factory.Open(t))
			rng := rand.New(rand.NewSource(20240102))
			base := e.factory.Clock.Tomorrow(0)

			var accepted []scheduler.Interval
			for i := 0; i < 150; i++ {
				start := base.Add(time.Duration(rng.Intn(96)) * 30 * time.Minute)
				end := start.Add(time.Duration(1+rng.Intn(6)) * 30 * time.Minute)
				candidate := scheduler.Interval{Start: start, End: end}

				expectConflict := false
				for _, iv := range accepted {
					if iv.Overlaps(candidate) {
						expectConflict = true
						break
					}
				}

				p := e.userA
				if i%2 == 1 {
					p = e.userB
				}
				_, err := e.book(p, e.space(0), start, end)
				switch {
				case expectConflict && !errors.Is(err, application.ErrTimeConflict):
					t.Fatalf("attempt %d [%v, %v): expected ErrTimeConflict, got %v", i, start, end, err)
				case !expectConflict && err != nil:
					t.Fatalf("attempt %d [%v, %v): unexpected error %v", i, start, end, err)
				case err == nil:
					accepted = append(accepted, candidate)
				}
			}

			stored, err := e.store.ListBookings(e.ctx, persistence.BookingFilter{
				SpaceIDs: []string{e.space(0)},
				Status:   domain.BookingStatusConfirmed,
			})
			if err != nil {
				t.Fatalf("ListBookings returned error: %v", err)
			}
			if len(stored) != len(accepted) {
				t.Fatalf("expected %d stored bookings, got %d", len(accepted), len(stored))
			}
			for i := 0; i < len(stored); i++ {
				for j := i + 1; j < len(stored); j++ {
					a := scheduler.Interval{Start: stored[i].Start, End: stored[i].End}
					b := scheduler.Interval{Start: stored[j].Start, End: stored[j].End}
					if a.Overlaps(b) {
						t.Fatalf("stored bookings %s and %s overlap", stored[i].ID, stored[j].ID)
					}
				}
			}
		})
	}
}

func TestConcurrentOverlappingBookings(t *testing.T) {
	t.Parallel()

	const writers = 24

	for _, factory := range testfixtures.StoreFactories() {
		factory := factory
		t.Run(factory.Name, func(t *testing.T) {
			t.Parallel()
			e := newEnvWithStore(t, factory.Open(t))
			base := e.factory.Clock.Tomorrow(10)

			// Each request starts 20 minutes after the previous one and lasts an
			// hour, so it partially overlaps its neighbours but never repeats a slot.
			errs := make([]error, writers)
			var wg sync.WaitGroup
			ready := make(chan struct{})
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					p := e.userA
					if i%2 == 1 {
						p = e.userB
					}
					start := base.Add(time.Duration(i) * 20 * time.Minute)
					<-ready
					_, errs[i] = e.book(p, e.space(0), start, start.Add(time.Hour))
				}(i)
			}
			close(ready)
			wg.Wait()

			created := 0
			for i, err := range errs {
				switch {
				case err == nil:
					created++
				case !errors.Is(err, application.ErrTimeConflict):
					t.Fatalf("writer %d: expected ErrTimeConflict, got %v (%s)", i, err, application.ErrorKind(err))
				}
			}
			if created == 0 {
				t.Fatalf("expected at least one booking to succeed")
			}

			stored, err := e.store.ListBookings(e.ctx, persistence.BookingFilter{
				SpaceIDs: []string{e.space(0)},
				Status:   domain.BookingStatusConfirmed,
			})
			if err != nil {
				t.Fatalf("ListBookings returned error: %v", err)
			}
			if len(stored) != created {
				t.Fatalf("expected %d stored bookings, got %d", created, len(stored))
			}
			for i := 0; i < len(stored); i++ {
				for j := i + 1; j < len(stored); j++ {
					a := scheduler.Interval{Start: stored[i].Start, End: stored[i].End}
					b := scheduler.Interval{Start: stored[j].Start, End: stored[j].End}
					if a.Overlaps(b) {
						t.Fatalf("concurrent bookings %s [%v, %v) and %s [%v, %v) overlap",
							stored[i].ID, a.Start, a.End, stored[j].ID, b.Start, b.End)
					}
				}
			}
		})
	}
}

func TestCancelBooking(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	clock := e.factory.Clock
	own := e.mustBook(e.userA, e.space(0), clock.Tomorrow(10), clock.Tomorrow(11))
	other := e.mustBook(e.userB, e.space(0), clock.Tomorrow(12), clock.Tomorrow(13))

	if _, err := e.svc.Bookings.CancelBooking(e.ctx, e.userA, other.ID); !errors.Is(err, application.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if _, err := e.svc.Bookings.CancelBooking(e.ctx, e.userA, "missing"); !errors.Is(err, application.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	cancelled, err := e.svc.Bookings.CancelBooking(e.ctx, e.userA, own.ID)
	if err != nil {
		t.Fatalf("CancelBooking returned error: %v", err)
	}
	if cancelled.Status != domain.BookingStatusCancelled {
		t.Fatalf("expected cancelled status, got %q", cancelled.Status)
	}

	again, err := e.svc.Bookings.CancelBooking(e.ctx, e.userA, own.ID)
	if err != nil || again.Status != domain.BookingStatusCancelled {
		t.Fatalf("expected idempotent cancel, got %+v, %v", again, err)
	}
	if got := len(e.factory.Events.OfType(events.TypeBookingCancelled)); got != 1 {
		t.Fatalf("expected one cancellation event, got %d", got)
	}

	if _, err := e.svc.Bookings.CancelBooking(e.ctx, e.manager, other.ID); err != nil {
		t.Fatalf("manager cancel returned error: %v", err)
	}

	if got := e.spaceEvents(e.userA, e.space(0)); got != 0 {
		t.Fatalf("cancelled bookings must not appear on the calendar, got %d", got)
	}
	e.mustBook(e.userB, e.space(0), clock.Tomorrow(10), clock.Tomorrow(11))
}

func TestGetBooking(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	clock := e.factory.Clock
	booking := e.mustBook(e.userA, e.space(0), clock.Tomorrow(10), clock.Tomorrow(11))

	if got, err := e.svc.Bookings.GetBooking(e.ctx, e.userA, booking.ID); err != nil || got.ID != booking.ID {
		t.Fatalf("owner GetBooking = %+v, %v", got, err)
	}
	if _, err := e.svc.Bookings.GetBooking(e.ctx, e.manager, booking.ID); err != nil {
		t.Fatalf("manager GetBooking returned error: %v", err)
	}
	if _, err := e.svc.Bookings.GetBooking(e.ctx, e.userB, booking.ID); !errors.Is(err, application.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if _, err := e.svc.Bookings.GetBooking(e.ctx, e.userA, "missing"); !errors.Is(err, application.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
