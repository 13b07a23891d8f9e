package persistence

import (
	"context"
	"time"

	"github.com/example/amenity-booking/internal/domain"
)

// CatalogRepository reads the building, space and user catalog.
type CatalogRepository interface {
	GetBuilding(ctx context.Context, id string) (domain.Building, error)
	GetSpace(ctx context.Context, id string) (domain.CommonSpace, error)
	ListSpaces(ctx context.Context, buildingID string) ([]domain.CommonSpace, error)
	GetUser(ctx context.Context, id string) (domain.User, error)
	ListUsers(ctx context.Context, ids []string) ([]domain.User, error)
}

// CatalogWriter seeds the catalog. Every call is an upsert keyed by id.
type CatalogWriter interface {
	UpsertBuilding(ctx context.Context, building domain.Building) error
	UpsertSpace(ctx context.Context, space domain.CommonSpace) error
	UpsertUser(ctx context.Context, user domain.User) error
}

// BookingFilter narrows booking queries. Empty fields do not filter.
// From and To select bookings overlapping [From, To).
type BookingFilter struct {
	SpaceIDs []string
	UserID   string
	Status   domain.BookingStatus
	From     *time.Time
	To       *time.Time
}

// Matches reports whether b passes the filter. Stores that filter in memory use it.
func (f BookingFilter) Matches(b domain.Booking) bool {
	if len(f.SpaceIDs) > 0 {
		found := false
		for _, id := range f.SpaceIDs {
			if id == b.SpaceID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.UserID != "" && b.UserID != f.UserID {
		return false
	}
	if f.Status != "" && b.Status != f.Status {
		return false
	}
	if f.From != nil && !b.End.After(*f.From) {
		return false
	}
	if f.To != nil && !b.Start.Before(*f.To) {
		return false
	}
	return true
}

// BookingRepository stores bookings.
//
// WithSpaceLock runs fn while holding the write lock for one space. ListBookings
// and CreateBooking called with the context handed to fn take part in the same
// transaction, so a conflict check followed by an insert is atomic with respect
// to other writers on that space. It returns ErrNotFound when the space does not
// exist and ErrSerialization when the store gave up on the transaction.
type BookingRepository interface {
	CreateBooking(ctx context.Context, booking domain.Booking) error
	GetBooking(ctx context.Context, id string) (domain.Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]domain.Booking, error)
	UpdateBookingStatus(ctx context.Context, id string, status domain.BookingStatus, updatedAt time.Time) (domain.Booking, error)
	WithSpaceLock(ctx context.Context, spaceID string, fn func(ctx context.Context) error) error
}

// RestrictionRepository stores per user, per space booking bans.
type RestrictionRepository interface {
	UpsertRestriction(ctx context.Context, restriction domain.Restriction) (domain.Restriction, error)
	GetRestriction(ctx context.Context, userID, spaceID string) (domain.Restriction, error)
	ListRestrictions(ctx context.Context, spaceID string) ([]domain.Restriction, error)
}

// FeedRepository stores calendar subscription feeds.
type FeedRepository interface {
	CreateFeed(ctx context.Context, feed domain.CalendarFeed) error
	GetFeed(ctx context.Context, id string) (domain.CalendarFeed, error)
	RevokeFeed(ctx context.Context, id string, revokedAt time.Time) error
}

// Store is the full persistence surface implemented by every backend.
type Store interface {
	CatalogRepository
	CatalogWriter
	BookingRepository
	RestrictionRepository
	FeedRepository
	Ping(ctx context.Context) error
	Close() error
}
