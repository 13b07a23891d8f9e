package scheduler

import "time"

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether the interval has a positive length.
func (i Interval) Valid() bool {
	return !i.Start.IsZero() && !i.End.IsZero() && i.Start.Before(i.End)
}

// Overlaps reports whether two half-open intervals share any instant.
// [a,b) and [c,d) overlap iff a < d && c < b, which covers identical slots,
// partial overlaps and containment without special cases.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// Duration returns the length of the interval.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Reservation is an occupied interval on a space.
type Reservation struct {
	ID      string
	SpaceID string
	Interval
}

// Conflict identifies an existing reservation the candidate overlaps.
type Conflict struct {
	WithReservationID string
	SpaceID           string
	Interval          Interval
}

// DetectConflicts returns every existing reservation on the candidate's space
// whose interval overlaps the candidate. A reservation never conflicts with itself.
func DetectConflicts(existing []Reservation, candidate Reservation) []Conflict {
	if !candidate.Valid() {
		return nil
	}

	var conflicts []Conflict
	for _, other := range existing {
		if other.SpaceID != candidate.SpaceID {
			continue
		}
		if candidate.ID != "" && other.ID == candidate.ID {
			continue
		}
		if !other.Valid() || !candidate.Overlaps(other.Interval) {
			continue
		}
		conflicts = append(conflicts, Conflict{
			WithReservationID: other.ID,
			SpaceID:           other.SpaceID,
			Interval:          other.Interval,
		})
	}
	return conflicts
}

// HasConflict is a convenience wrapper around DetectConflicts.
func HasConflict(existing []Reservation, candidate Reservation) bool {
	return len(DetectConflicts(existing, candidate)) > 0
}
