package application

import (
	"strings"
	"time"

	"github.com/example/amenity-booking/internal/calendar"
	"github.com/example/amenity-booking/internal/domain"
	"github.com/example/amenity-booking/internal/usage"
)

// Role is the capability level of a caller, resolved by the external identity
// collaborator.
type Role string

const (
	RoleResident Role = "resident"
	RoleTenant   Role = "tenant"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

var roleRank = map[Role]int{
	RoleResident: 1,
	RoleTenant:   1,
	RoleManager:  2,
	RoleAdmin:    3,
}

// ParseRole maps a header or config value to a Role. Unknown values return false.
func ParseRole(value string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	_, ok := roleRank[role]
	return role, ok
}

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID string
	Role   Role
}

// CanManage reports whether the principal has manager-or-above capability.
func (p Principal) CanManage() bool {
	return roleRank[p.Role] >= roleRank[RoleManager]
}

// Viewer returns the calendar viewer for the principal.
func (p Principal) Viewer() calendar.Viewer {
	return calendar.Viewer{UserID: p.UserID, CanManage: p.CanManage()}
}

func (p Principal) authenticated() bool {
	return p.UserID != ""
}

// CreateBookingParams wraps the data required to create a booking. When UserID
// is empty the booking is made for the principal.
type CreateBookingParams struct {
	Principal Principal
	SpaceID   string
	UserID    string
	Start     time.Time
	End       time.Time
}

// SetRestrictionParams wraps the data required to block or unblock a user on a space.
type SetRestrictionParams struct {
	Principal Principal
	SpaceID   string
	UserID    string
	IsBlocked bool
	Reason    string
}

// SpaceCalendarParams selects the window of a space calendar. Nil bounds fall
// back to now through the end of the current month.
type SpaceCalendarParams struct {
	Principal Principal
	SpaceID   string
	Start     *time.Time
	End       *time.Time
}

// CalendarPermissions tells the caller what it may do on a space.
type CalendarPermissions struct {
	CanBook        bool
	CanViewDetails bool
	CanManage      bool
}

// SpaceCalendar is the space view.
type SpaceCalendar struct {
	Space       domain.CommonSpace
	Start       time.Time
	End         time.Time
	Events      []calendar.Event
	Permissions CalendarPermissions
}

// UserCalendar is the caller's own upcoming bookings across every space.
type UserCalendar struct {
	User     domain.User
	Bookings []calendar.Event
}

// BuildingCalendar is the manager view of every space in a building.
type BuildingCalendar struct {
	Building domain.Building
	Start    time.Time
	End      time.Time
	Events   []calendar.Event
	Summary  usage.Summary
}

// SpaceStats is the usage report of one space over a trailing window.
type SpaceStats struct {
	Space  domain.CommonSpace
	Start  time.Time
	End    time.Time
	Report usage.Report
}

// IssuedFeed carries the plaintext secret of a new calendar feed. The secret is
// only available at issue time.
type IssuedFeed struct {
	Feed   domain.CalendarFeed
	Secret string
}
