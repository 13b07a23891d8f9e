// Package calendar turns stored bookings into role-scoped calendar events.
//
// Every view (space, user, building) and the ICS export go through Project, so
// the identity masking rule lives in exactly one place.
package calendar

import (
	"sort"
	"time"

	"github.com/example/amenity-booking/internal/domain"
)

// MaskedUserName replaces the booker's name when the viewer may not see it.
const MaskedUserName = "Reserved"

// Viewer is the identity a projection is computed for.
type Viewer struct {
	UserID    string
	CanManage bool
}

// Entry is a booking joined with the catalog and directory data a view needs.
// The user fields may be empty when the directory has no record.
type Entry struct {
	Booking      domain.Booking
	SpaceName    string
	BuildingID   string
	BuildingName string
	UserName     string
	UserEmail    string
}

// Event is a booking as shown to one viewer.
type Event struct {
	ID           string               `json:"id"`
	SpaceID      string               `json:"space_id"`
	SpaceName    string               `json:"space_name,omitempty"`
	BuildingID   string               `json:"building_id,omitempty"`
	BuildingName string               `json:"building_name,omitempty"`
	Start        time.Time            `json:"start_time"`
	End          time.Time            `json:"end_time"`
	Status       domain.BookingStatus `json:"status"`
	IsOwnBooking bool                 `json:"is_own_booking"`
	UserID       *string              `json:"user_id"`
	UserName     string               `json:"user_name"`
	UserEmail    *string              `json:"user_email"`
}

// CanSeeIdentity reports whether viewer may see who made the booking: managers
// see everyone, occupants only themselves.
func CanSeeIdentity(viewer Viewer, booking domain.Booking) bool {
	if viewer.CanManage {
		return true
	}
	return viewer.UserID != "" && booking.UserID == viewer.UserID
}

// field projects one identity field, either from the entry or masked.
type field struct {
	reveal func(*Event, Entry)
	mask   func(*Event)
}

var identityFields = []field{
	{
		reveal: func(ev *Event, e Entry) { id := e.Booking.UserID; ev.UserID = &id },
		mask:   func(ev *Event) { ev.UserID = nil },
	},
	{
		reveal: func(ev *Event, e Entry) { ev.UserName = e.UserName },
		mask:   func(ev *Event) { ev.UserName = MaskedUserName },
	},
	{
		reveal: func(ev *Event, e Entry) {
			if e.UserEmail == "" {
				ev.UserEmail = nil
				return
			}
			email := e.UserEmail
			ev.UserEmail = &email
		},
		mask: func(ev *Event) { ev.UserEmail = nil },
	},
}

// ProjectOne builds the event for a single entry.
func ProjectOne(entry Entry, viewer Viewer) Event {
	b := entry.Booking
	ev := Event{
		ID:           b.ID,
		SpaceID:      b.SpaceID,
		SpaceName:    entry.SpaceName,
		BuildingID:   entry.BuildingID,
		BuildingName: entry.BuildingName,
		Start:        b.Start,
		End:          b.End,
		Status:       b.Status,
		IsOwnBooking: viewer.UserID != "" && b.UserID == viewer.UserID,
	}

	visible := CanSeeIdentity(viewer, b)
	for _, f := range identityFields {
		if visible {
			f.reveal(&ev, entry)
		} else {
			f.mask(&ev)
		}
	}
	return ev
}

// Project builds events for entries ordered by start time. Cancelled bookings
// are dropped.
func Project(entries []Entry, viewer Viewer) []Event {
	events := make([]Event, 0, len(entries))
	for _, entry := range entries {
		if !entry.Booking.IsConfirmed() {
			continue
		}
		events = append(events, ProjectOne(entry, viewer))
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Start.Equal(events[j].Start) {
			return events[i].ID < events[j].ID
		}
		return events[i].Start.Before(events[j].Start)
	})
	return events
}

// EndOfMonth returns the first instant of the month after t, in t's location.
func EndOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, 1, 0)
}
