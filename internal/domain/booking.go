package domain

import "time"

// BookingStatus is the lifecycle state of a booking. Status transitions are the
// only mutation a stored booking accepts.
type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s BookingStatus) Valid() bool {
	return s == BookingStatusConfirmed || s == BookingStatusCancelled
}

// Booking is a reservation of a common space for the half-open interval [Start, End).
type Booking struct {
	ID        string
	SpaceID   string
	UserID    string
	Start     time.Time
	End       time.Time
	Status    BookingStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Duration returns the booked length.
func (b Booking) Duration() time.Duration {
	return b.End.Sub(b.Start)
}

// IsConfirmed reports whether the booking still occupies its interval.
func (b Booking) IsConfirmed() bool {
	return b.Status == BookingStatusConfirmed
}
