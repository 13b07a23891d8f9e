package calendar

import (
	"testing"
	"time"

	"github.com/example/amenity-booking/internal/domain"
)

func entry(id, userID string, start time.Time) Entry {
	return Entry{
		Booking: domain.Booking{
			ID:      id,
			SpaceID: "gym",
			UserID:  userID,
			Start:   start,
			End:     start.Add(time.Hour),
			Status:  domain.BookingStatusConfirmed,
		},
		SpaceName: "Gym",
		UserName:  "Name of " + userID,
		UserEmail: userID + "@example.com",
	}
}

func TestProjectMasksOtherOccupants(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, time.March, 10, 14, 0, 0, 0, time.UTC)
	entries := []Entry{entry("b-1", "alice", start), entry("b-2", "bob", start.Add(2*time.Hour))}

	events := Project(entries, Viewer{UserID: "alice"})
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	own, other := events[0], events[1]
	if !own.IsOwnBooking || own.UserID == nil || *own.UserID != "alice" || own.UserName != "Name of alice" {
		t.Fatalf("expected own booking to be unmasked, got %#v", own)
	}
	if own.UserEmail == nil || *own.UserEmail != "alice@example.com" {
		t.Fatalf("expected own email to be visible, got %#v", own.UserEmail)
	}

	if other.IsOwnBooking {
		t.Fatalf("expected other booking not to be marked as own")
	}
	if other.UserID != nil || other.UserEmail != nil {
		t.Fatalf("expected identity to be nil for other occupant, got %#v", other)
	}
	if other.UserName != MaskedUserName {
		t.Fatalf("expected placeholder name, got %q", other.UserName)
	}
	if !other.Start.Equal(start.Add(2*time.Hour)) || other.Status != domain.BookingStatusConfirmed {
		t.Fatalf("expected times and status to stay visible, got %#v", other)
	}
}

func TestProjectManagerSeesEveryone(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, time.March, 10, 14, 0, 0, 0, time.UTC)
	entries := []Entry{entry("b-1", "alice", start), entry("b-2", "bob", start.Add(time.Hour))}

	for _, ev := range Project(entries, Viewer{UserID: "manager", CanManage: true}) {
		if ev.UserID == nil || ev.UserEmail == nil || ev.UserName == MaskedUserName {
			t.Fatalf("expected manager view to be unmasked, got %#v", ev)
		}
		if ev.IsOwnBooking {
			t.Fatalf("manager does not own %s", ev.ID)
		}
	}
}

func TestProjectMaskingInvariant(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	users := []string{"alice", "bob", "carol"}
	var entries []Entry
	for i := 0; i < 9; i++ {
		entries = append(entries, entry(string(rune('a'+i)), users[i%len(users)], start.Add(time.Duration(i)*time.Hour)))
	}

	viewers := []Viewer{
		{UserID: "alice"},
		{UserID: "dave"},
		{UserID: "bob", CanManage: true},
		{},
	}
	for _, viewer := range viewers {
		byID := map[string]Entry{}
		for _, e := range entries {
			byID[e.Booking.ID] = e
		}
		for _, ev := range Project(entries, viewer) {
			e := byID[ev.ID]
			if viewer.CanManage || e.Booking.UserID == viewer.UserID {
				if ev.UserID == nil || *ev.UserID != e.Booking.UserID || ev.UserName != e.UserName || ev.UserEmail == nil {
					t.Fatalf("viewer %+v: expected populated identity on %s", viewer, ev.ID)
				}
				continue
			}
			if ev.UserID != nil || ev.UserEmail != nil || ev.UserName != MaskedUserName {
				t.Fatalf("viewer %+v: expected masked identity on %s, got %#v", viewer, ev.ID, ev)
			}
		}
	}
}

func TestProjectDropsCancelledAndOrders(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	late := entry("b-late", "alice", start.Add(3*time.Hour))
	early := entry("b-early", "alice", start)
	cancelled := entry("b-cancelled", "alice", start.Add(time.Hour))
	cancelled.Booking.Status = domain.BookingStatusCancelled

	events := Project([]Entry{late, cancelled, early}, Viewer{UserID: "alice"})
	if len(events) != 2 {
		t.Fatalf("expected cancelled booking to be dropped, got %d events", len(events))
	}
	if events[0].ID != "b-early" || events[1].ID != "b-late" {
		t.Fatalf("unexpected order: %s, %s", events[0].ID, events[1].ID)
	}
}

func TestEndOfMonth(t *testing.T) {
	t.Parallel()

	got := EndOfMonth(time.Date(2026, time.December, 17, 10, 30, 0, 0, time.UTC))
	want := time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("EndOfMonth = %s, want %s", got, want)
	}
}
