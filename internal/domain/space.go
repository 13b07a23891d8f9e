package domain

import (
	"time"

	"github.com/example/amenity-booking/internal/scheduler"
)

// Building groups common spaces. Owned by the external catalog.
type Building struct {
	ID   string
	Name string
}

// CommonSpace is a bookable amenity. The booking subsystem only reads it.
type CommonSpace struct {
	ID           string
	BuildingID   string
	Name         string
	Capacity     int
	IsReservable bool
	OpeningHours scheduler.WeeklyHours
	BookingRules string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// User is the identity slice of an occupant the calendars need.
type User struct {
	ID    string
	Name  string
	Email string
}
