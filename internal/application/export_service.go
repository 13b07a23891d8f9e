package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/amenity-booking/internal/calendar"
	"github.com/example/amenity-booking/internal/domain"
	"github.com/example/amenity-booking/internal/ics"
	"github.com/example/amenity-booking/internal/persistence"
)

const (
	// DefaultICSProdID identifies the exporting product.
	DefaultICSProdID = "-//Amenity Booking//Calendar Export//EN"
	// DefaultICSUIDDomain suffixes every event UID.
	DefaultICSUIDDomain = "amenity.local"
	// exportLookback is how far into the past the export reaches.
	exportLookback = 30 * 24 * time.Hour
)

// ExportServiceDeps lists the collaborators of an ExportService.
type ExportServiceDeps struct {
	Bookings  BookingReader
	Spaces    SpaceCatalog
	Users     UserDirectory
	Now       func() time.Time
	ProdID    string
	UIDDomain string
	Logger    *slog.Logger
}

// ExportService renders space calendars as ICS documents.
type ExportService struct {
	bookings  BookingReader
	spaces    SpaceCatalog
	users     UserDirectory
	now       func() time.Time
	prodID    string
	uidDomain string
	logger    *slog.Logger
}

// NewExportService wires dependencies for calendar export.
func NewExportService(deps ExportServiceDeps) *ExportService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.ProdID == "" {
		deps.ProdID = DefaultICSProdID
	}
	if deps.UIDDomain == "" {
		deps.UIDDomain = DefaultICSUIDDomain
	}
	return &ExportService{
		bookings:  deps.Bookings,
		spaces:    deps.Spaces,
		users:     deps.Users,
		now:       deps.Now,
		prodID:    deps.ProdID,
		uidDomain: deps.UIDDomain,
		logger:    defaultLogger(deps.Logger),
	}
}

// ExportCalendar returns the confirmed bookings of a space from thirty days
// ago onward as an ICS document, masked for the caller.
func (s *ExportService) ExportCalendar(ctx context.Context, principal Principal, spaceID string) (document string, err error) {
	if s == nil {
		return "", fmt.Errorf("ExportService is nil")
	}
	logger := serviceLogger(ctx, s.logger, "ExportService", "ExportCalendar",
		"principal_id", principal.UserID,
		"space_id", spaceID,
	)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, err, "calendar export failed", "")
		}
	}()

	return s.export(ctx, spaceID, principal.Viewer())
}

func (s *ExportService) export(ctx context.Context, spaceID string, viewer calendar.Viewer) (string, error) {
	space, err := s.spaces.GetSpace(ctx, spaceID)
	if err != nil {
		return "", mapCalendarRepoError(err)
	}

	now := s.now()
	from := now.Add(-exportLookback)
	bookings, err := s.bookings.ListBookings(ctx, persistence.BookingFilter{
		SpaceIDs: []string{space.ID},
		Status:   domain.BookingStatusConfirmed,
		From:     &from,
	})
	if err != nil {
		return "", fmt.Errorf("list bookings: %w", err)
	}

	j := newJoiner(s.spaces, s.users)
	j.addSpace(space)
	entries, err := j.entries(ctx, bookings)
	if err != nil {
		return "", err
	}

	projected := calendar.Project(entries, viewer)
	cal := ics.Calendar{
		ProdID: s.prodID,
		Name:   space.Name,
		Events: make([]ics.Event, 0, len(projected)),
	}
	for _, ev := range projected {
		cal.Events = append(cal.Events, ics.Event{
			UID:         ev.ID + "@" + s.uidDomain,
			Stamp:       now,
			Start:       ev.Start,
			End:         ev.End,
			Summary:     space.Name + " booking",
			Description: "Booked by " + describeBooker(ev),
		})
	}

	out, err := ics.Marshal(cal)
	if err != nil {
		return "", fmt.Errorf("encode calendar: %w", err)
	}
	return string(out), nil
}

func describeBooker(ev calendar.Event) string {
	if ev.UserName != "" {
		return ev.UserName
	}
	if ev.UserID != nil {
		return *ev.UserID
	}
	return calendar.MaskedUserName
}
