package scheduler

import (
	"testing"
	"time"
)

func at(hour, minute int) time.Time {
	return time.Date(2026, time.March, 10, hour, minute, 0, 0, time.UTC)
}

func reservation(id, space string, start, end time.Time) Reservation {
	return Reservation{ID: id, SpaceID: space, Interval: Interval{Start: start, End: end}}
}

func TestIntervalOverlaps(t *testing.T) {
	t.Parallel()

	base := Interval{Start: at(14, 0), End: at(16, 0)}

	tests := []struct {
		name  string
		other Interval
		want  bool
	}{
		{name: "identical slot", other: Interval{Start: at(14, 0), End: at(16, 0)}, want: true},
		{name: "partial overlap at end", other: Interval{Start: at(15, 0), End: at(17, 0)}, want: true},
		{name: "partial overlap at start", other: Interval{Start: at(13, 0), End: at(14, 30)}, want: true},
		{name: "contained", other: Interval{Start: at(14, 30), End: at(15, 0)}, want: true},
		{name: "containing", other: Interval{Start: at(13, 0), End: at(17, 0)}, want: true},
		{name: "adjacent after", other: Interval{Start: at(16, 0), End: at(17, 0)}, want: false},
		{name: "adjacent before", other: Interval{Start: at(12, 0), End: at(14, 0)}, want: false},
		{name: "disjoint", other: Interval{Start: at(18, 0), End: at(19, 0)}, want: false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := base.Overlaps(tc.other); got != tc.want {
				t.Fatalf("Overlaps(%v) = %v, want %v", tc.other, got, tc.want)
			}
			if got := tc.other.Overlaps(base); got != tc.want {
				t.Fatalf("overlap must be symmetric for %v", tc.other)
			}
		})
	}
}

func TestDetectConflicts(t *testing.T) {
	t.Parallel()

	existing := []Reservation{
		reservation("b-1", "gym", at(14, 0), at(16, 0)),
		reservation("b-2", "gym", at(18, 0), at(19, 0)),
		reservation("b-3", "pool", at(14, 0), at(16, 0)),
	}

	t.Run("overlap on the same space produces conflict", func(t *testing.T) {
		t.Parallel()

		conflicts := DetectConflicts(existing, reservation("", "gym", at(15, 0), at(17, 0)))
		if len(conflicts) != 1 {
			t.Fatalf("expected 1 conflict, got %d", len(conflicts))
		}
		if conflicts[0].WithReservationID != "b-1" {
			t.Fatalf("expected conflict with b-1, got %q", conflicts[0].WithReservationID)
		}
	})

	t.Run("other spaces are ignored", func(t *testing.T) {
		t.Parallel()

		if HasConflict(existing, reservation("", "sauna", at(14, 0), at(16, 0))) {
			t.Fatalf("expected no conflict on an unrelated space")
		}
	})

	t.Run("non-overlapping reservations yield no conflicts", func(t *testing.T) {
		t.Parallel()

		if conflicts := DetectConflicts(existing, reservation("", "gym", at(16, 0), at(18, 0))); len(conflicts) != 0 {
			t.Fatalf("expected no conflicts, got %#v", conflicts)
		}
	})

	t.Run("a reservation never conflicts with itself", func(t *testing.T) {
		t.Parallel()

		if HasConflict(existing, reservation("b-1", "gym", at(14, 0), at(16, 0))) {
			t.Fatalf("expected self comparison to be skipped")
		}
	})

	t.Run("invalid candidate yields no conflicts", func(t *testing.T) {
		t.Parallel()

		if conflicts := DetectConflicts(existing, reservation("", "gym", at(16, 0), at(14, 0))); conflicts != nil {
			t.Fatalf("expected nil conflicts for inverted interval, got %#v", conflicts)
		}
	})
}
