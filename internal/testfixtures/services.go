package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/amenity-booking/internal/application"
	"github.com/example/amenity-booking/internal/events"
	"github.com/example/amenity-booking/internal/persistence"
)

// FastFeedSecretParams keeps feed secret hashing cheap in tests.
var FastFeedSecretParams = application.FeedSecretParams{
	Memory:      1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Events      *events.Recorder
	Location    *time.Location
	Logger      *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
		Events:      events.NewRecorder(),
		Location:    time.UTC,
		Logger:      DiscardLogger(),
	}
	for _, opt := range opts {
		opt(factory)
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithLocation sets the property time zone used for opening hours.
func WithLocation(loc *time.Location) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Location = loc
	}
}

// Services bundles every application service over one store.
type Services struct {
	Store        persistence.Store
	Bookings     *application.BookingService
	Restrictions *application.RestrictionService
	Calendar     *application.CalendarService
	Stats        *application.StatsService
	Export       *application.ExportService
	Feeds        *application.FeedService
}

// Build wires every service over store.
func (f *ServiceFactory) Build(store persistence.Store) Services {
	now := f.Clock.NowFunc()
	ids := f.IDGenerator.NextFunc()

	restrictions := application.NewRestrictionService(store, store, f.Events, now, f.Logger)
	export := application.NewExportService(application.ExportServiceDeps{
		Bookings: store,
		Spaces:   store,
		Users:    store,
		Now:      now,
		Logger:   f.Logger,
	})

	return Services{
		Store: store,
		Bookings: application.NewBookingService(application.BookingServiceDeps{
			Bookings:     store,
			Spaces:       store,
			Restrictions: restrictions,
			Publisher:    f.Events,
			IDGenerator:  ids,
			Now:          now,
			Location:     f.Location,
			Logger:       f.Logger,
		}),
		Restrictions: restrictions,
		Calendar: application.NewCalendarService(application.CalendarServiceDeps{
			Bookings:     store,
			Spaces:       store,
			Users:        store,
			Restrictions: restrictions,
			Now:          now,
			Location:     f.Location,
			Logger:       f.Logger,
		}),
		Stats:  application.NewStatsService(store, store, store, now, 0, f.Logger),
		Export: export,
		Feeds: application.NewFeedService(application.FeedServiceDeps{
			Feeds:       store,
			Spaces:      store,
			Exporter:    export,
			IDGenerator: ids,
			Now:         now,
			HashParams:  FastFeedSecretParams,
			Logger:      f.Logger,
		}),
	}
}
