package testfixtures

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/amenity-booking/internal/domain"
	"github.com/example/amenity-booking/internal/persistence"
	"github.com/example/amenity-booking/internal/scheduler"
)

var (
	buildingCounter uint64
	spaceCounter    uint64
	userCounter     uint64
	bookingCounter  uint64
)

// referenceTime is a Tuesday morning.
var referenceTime = time.Date(2024, time.January, 2, 8, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// DailyHours opens a space every day of the week between opensAt and closesAt.
func DailyHours(opensAt, closesAt string) scheduler.WeeklyHours {
	hours := make(scheduler.WeeklyHours, 7)
	for day := time.Sunday; day <= time.Saturday; day++ {
		hours[day] = scheduler.DayHours{Open: opensAt, Close: closesAt}
	}
	return hours
}

// ----------------------------- Building fixtures -----------------------------

// BuildingOption configures the generated building.
type BuildingOption func(*domain.Building)

// NewBuilding returns a deterministic building with optional overrides.
func NewBuilding(opts ...BuildingOption) domain.Building {
	idx := atomic.AddUint64(&buildingCounter, 1)
	building := domain.Building{
		ID:   fmt.Sprintf("building-%03d", idx),
		Name: fmt.Sprintf("Tower %03d", idx),
	}
	for _, opt := range opts {
		opt(&building)
	}
	return building
}

// WithBuildingID overrides the generated building ID.
func WithBuildingID(id string) BuildingOption {
	return func(b *domain.Building) { b.ID = id }
}

// WithBuildingName overrides the generated building name.
func WithBuildingName(name string) BuildingOption {
	return func(b *domain.Building) { b.Name = name }
}

// ----------------------------- Space fixtures -----------------------------

// SpaceOption configures the generated space.
type SpaceOption func(*domain.CommonSpace)

// NewSpace returns a reservable space without opening hour limits.
func NewSpace(buildingID string, opts ...SpaceOption) domain.CommonSpace {
	idx := atomic.AddUint64(&spaceCounter, 1)
	created := referenceTime.Add(-time.Duration(idx) * time.Hour)
	space := domain.CommonSpace{
		ID:           fmt.Sprintf("space-%03d", idx),
		BuildingID:   buildingID,
		Name:         fmt.Sprintf("Space %03d", idx),
		Capacity:     8,
		IsReservable: true,
		OpeningHours: scheduler.WeeklyHours{},
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&space)
	}
	return space
}

// WithSpaceID overrides the generated space ID.
func WithSpaceID(id string) SpaceOption {
	return func(s *domain.CommonSpace) { s.ID = id }
}

// WithSpaceName overrides the generated space name.
func WithSpaceName(name string) SpaceOption {
	return func(s *domain.CommonSpace) { s.Name = name }
}

// WithSpaceReservable toggles whether the space accepts bookings.
func WithSpaceReservable(reservable bool) SpaceOption {
	return func(s *domain.CommonSpace) { s.IsReservable = reservable }
}

// WithSpaceHours sets the weekly opening hours.
func WithSpaceHours(hours scheduler.WeeklyHours) SpaceOption {
	return func(s *domain.CommonSpace) { s.OpeningHours = hours }
}

// WithSpaceRules sets the free-text booking rules.
func WithSpaceRules(rules string) SpaceOption {
	return func(s *domain.CommonSpace) { s.BookingRules = rules }
}

// ----------------------------- User fixtures -----------------------------

// UserOption configures the generated user.
type UserOption func(*domain.User)

// NewUser returns a deterministic directory user with optional overrides.
func NewUser(opts ...UserOption) domain.User {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	user := domain.User{
		ID:    id,
		Name:  fmt.Sprintf("User %03d", idx),
		Email: fmt.Sprintf("%s@example.com", id),
	}
	for _, opt := range opts {
		opt(&user)
	}
	return user
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(u *domain.User) { u.ID = id }
}

// WithUserName overrides the generated display name.
func WithUserName(name string) UserOption {
	return func(u *domain.User) { u.Name = name }
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(u *domain.User) { u.Email = email }
}

// ----------------------------- Booking fixtures -----------------------------

// BookingOption configures the generated booking.
type BookingOption func(*domain.Booking)

// NewBooking returns a confirmed booking of spaceID by userID over
// [start, start+duration).
func NewBooking(spaceID, userID string, start time.Time, duration time.Duration, opts ...BookingOption) domain.Booking {
	idx := atomic.AddUint64(&bookingCounter, 1)
	booking := domain.Booking{
		ID:        fmt.Sprintf("booking-%04d", idx),
		SpaceID:   spaceID,
		UserID:    userID,
		Start:     start.UTC(),
		End:       start.Add(duration).UTC(),
		Status:    domain.BookingStatusConfirmed,
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&booking)
	}
	return booking
}

// WithBookingID overrides the generated booking ID.
func WithBookingID(id string) BookingOption {
	return func(b *domain.Booking) { b.ID = id }
}

// WithBookingStatus overrides the status.
func WithBookingStatus(status domain.BookingStatus) BookingOption {
	return func(b *domain.Booking) { b.Status = status }
}

// ----------------------------- Catalog seeding -----------------------------

// Catalog is a small property: one building, its spaces and some users.
type Catalog struct {
	Building domain.Building
	Spaces   []domain.CommonSpace
	Users    []domain.User
}

// Space returns the i-th space.
func (c Catalog) Space(i int) domain.CommonSpace { return c.Spaces[i] }

// User returns the i-th user.
func (c Catalog) User(i int) domain.User { return c.Users[i] }

// SeedCatalog writes a building with the given spaces and users into writer.
// Spaces are re-parented onto the new building.
func SeedCatalog(tb testing.TB, writer persistence.CatalogWriter, spaces []domain.CommonSpace, users []domain.User) Catalog {
	tb.Helper()
	ctx := context.Background()

	building := NewBuilding()
	if err := writer.UpsertBuilding(ctx, building); err != nil {
		tb.Fatalf("seed building: %v", err)
	}
	for i := range spaces {
		spaces[i].BuildingID = building.ID
		if err := writer.UpsertSpace(ctx, spaces[i]); err != nil {
			tb.Fatalf("seed space %s: %v", spaces[i].ID, err)
		}
	}
	for _, user := range users {
		if err := writer.UpsertUser(ctx, user); err != nil {
			tb.Fatalf("seed user %s: %v", user.ID, err)
		}
	}
	return Catalog{Building: building, Spaces: spaces, Users: users}
}
