// Package memory provides an in-process implementation of persistence.Store.
// It backs tests and the "memory" store setting.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/amenity-booking/internal/domain"
	"github.com/example/amenity-booking/internal/persistence"
	"github.com/example/amenity-booking/internal/scheduler"
)

// Storage keeps every record in maps guarded by one RWMutex. WithSpaceLock
// additionally serialises writers per space.
type Storage struct {
	mu           sync.RWMutex
	buildings    map[string]domain.Building
	spaces       map[string]domain.CommonSpace
	users        map[string]domain.User
	bookings     map[string]domain.Booking
	restrictions map[restrictionKey]domain.Restriction
	feeds        map[string]domain.CalendarFeed

	locksMu    sync.Mutex
	spaceLocks map[string]*sync.Mutex
}

type restrictionKey struct {
	userID  string
	spaceID string
}

var _ persistence.Store = (*Storage)(nil)

// Open returns an empty Storage.
func Open() *Storage {
	return &Storage{
		buildings:    make(map[string]domain.Building),
		spaces:       make(map[string]domain.CommonSpace),
		users:        make(map[string]domain.User),
		bookings:     make(map[string]domain.Booking),
		restrictions: make(map[restrictionKey]domain.Restriction),
		feeds:        make(map[string]domain.CalendarFeed),
		spaceLocks:   make(map[string]*sync.Mutex),
	}
}

// Close is a no-op.
func (s *Storage) Close() error {
	return nil
}

// Ping always succeeds.
func (s *Storage) Ping(context.Context) error {
	return nil
}

// --- catalog ---

// UpsertBuilding stores or replaces a building.
func (s *Storage) UpsertBuilding(ctx context.Context, building domain.Building) error {
	if building.ID == "" {
		return persistence.ErrConstraintViolation
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buildings[building.ID] = building
	return nil
}

// UpsertSpace stores or replaces a space. The building must exist.
func (s *Storage) UpsertSpace(ctx context.Context, space domain.CommonSpace) error {
	if space.ID == "" {
		return persistence.ErrConstraintViolation
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buildings[space.BuildingID]; !ok {
		return fmt.Errorf("memory: building %s: %w", space.BuildingID, persistence.ErrConstraintViolation)
	}
	s.spaces[space.ID] = cloneSpace(space)
	return nil
}

// UpsertUser stores or replaces a user.
func (s *Storage) UpsertUser(ctx context.Context, user domain.User) error {
	if user.ID == "" {
		return persistence.ErrConstraintViolation
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
	return nil
}

// GetBuilding retrieves a building by ID.
func (s *Storage) GetBuilding(ctx context.Context, id string) (domain.Building, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	building, ok := s.buildings[id]
	if !ok {
		return domain.Building{}, persistence.ErrNotFound
	}
	return building, nil
}

// GetSpace retrieves a space by ID.
func (s *Storage) GetSpace(ctx context.Context, id string) (domain.CommonSpace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	space, ok := s.spaces[id]
	if !ok {
		return domain.CommonSpace{}, persistence.ErrNotFound
	}
	return cloneSpace(space), nil
}

// ListSpaces returns the spaces of a building ordered by name.
func (s *Storage) ListSpaces(ctx context.Context, buildingID string) ([]domain.CommonSpace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	spaces := make([]domain.CommonSpace, 0)
	for _, space := range s.spaces {
		if space.BuildingID == buildingID {
			spaces = append(spaces, cloneSpace(space))
		}
	}
	sort.Slice(spaces, func(i, j int) bool {
		if spaces[i].Name == spaces[j].Name {
			return spaces[i].ID < spaces[j].ID
		}
		return spaces[i].Name < spaces[j].Name
	})
	return spaces, nil
}

// GetUser retrieves a user by ID.
func (s *Storage) GetUser(ctx context.Context, id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return domain.User{}, persistence.ErrNotFound
	}
	return user, nil
}

// ListUsers returns the known users among ids. Unknown ids are skipped.
func (s *Storage) ListUsers(ctx context.Context, ids []string) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.User, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if user, ok := s.users[id]; ok {
			users = append(users, user)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// --- bookings ---

// WithSpaceLock runs fn while holding the space's mutex.
func (s *Storage) WithSpaceLock(ctx context.Context, spaceID string, fn func(ctx context.Context) error) error {
	s.mu.RLock()
	_, ok := s.spaces[spaceID]
	s.mu.RUnlock()
	if !ok {
		return persistence.ErrNotFound
	}

	lock := s.spaceLock(spaceID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

func (s *Storage) spaceLock(spaceID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	lock, ok := s.spaceLocks[spaceID]
	if !ok {
		lock = &sync.Mutex{}
		s.spaceLocks[spaceID] = lock
	}
	return lock
}

// CreateBooking stores a new booking. Two confirmed bookings with the same
// space and interval are rejected, mirroring the SQL stores' unique index.
func (s *Storage) CreateBooking(ctx context.Context, booking domain.Booking) error {
	if booking.ID == "" || !booking.Start.Before(booking.End) || !booking.Status.Valid() {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.spaces[booking.SpaceID]; !ok {
		return fmt.Errorf("memory: space %s: %w", booking.SpaceID, persistence.ErrConstraintViolation)
	}
	if _, ok := s.bookings[booking.ID]; ok {
		return persistence.ErrConflict
	}
	if booking.IsConfirmed() {
		for _, existing := range s.bookings {
			if existing.SpaceID == booking.SpaceID && existing.IsConfirmed() &&
				existing.Start.Equal(booking.Start) && existing.End.Equal(booking.End) {
				return persistence.ErrConflict
			}
		}
	}

	s.bookings[booking.ID] = normalizeBooking(booking)
	return nil
}

// GetBooking retrieves a booking by ID.
func (s *Storage) GetBooking(ctx context.Context, id string) (domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	booking, ok := s.bookings[id]
	if !ok {
		return domain.Booking{}, persistence.ErrNotFound
	}
	return booking, nil
}

// ListBookings returns bookings matching filter ordered by start time.
func (s *Storage) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bookings := make([]domain.Booking, 0)
	for _, booking := range s.bookings {
		if filter.Matches(booking) {
			bookings = append(bookings, booking)
		}
	}
	sort.Slice(bookings, func(i, j int) bool {
		if bookings[i].Start.Equal(bookings[j].Start) {
			return bookings[i].ID < bookings[j].ID
		}
		return bookings[i].Start.Before(bookings[j].Start)
	})
	return bookings, nil
}

// UpdateBookingStatus changes the status of a booking.
func (s *Storage) UpdateBookingStatus(ctx context.Context, id string, status domain.BookingStatus, updatedAt time.Time) (domain.Booking, error) {
	if !status.Valid() {
		return domain.Booking{}, persistence.ErrConstraintViolation
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	booking, ok := s.bookings[id]
	if !ok {
		return domain.Booking{}, persistence.ErrNotFound
	}
	booking.Status = status
	booking.UpdatedAt = updatedAt.UTC().Truncate(time.Second)
	s.bookings[id] = booking
	return booking, nil
}

// --- restrictions ---

// UpsertRestriction stores the restriction, replacing any previous row for the pair.
func (s *Storage) UpsertRestriction(ctx context.Context, restriction domain.Restriction) (domain.Restriction, error) {
	if restriction.UserID == "" || restriction.SpaceID == "" {
		return domain.Restriction{}, persistence.ErrConstraintViolation
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.spaces[restriction.SpaceID]; !ok {
		return domain.Restriction{}, fmt.Errorf("memory: space %s: %w", restriction.SpaceID, persistence.ErrConstraintViolation)
	}
	restriction.UpdatedAt = restriction.UpdatedAt.UTC().Truncate(time.Second)
	s.restrictions[restrictionKey{userID: restriction.UserID, spaceID: restriction.SpaceID}] = restriction
	return restriction, nil
}

// GetRestriction retrieves the restriction for a (user, space) pair.
func (s *Storage) GetRestriction(ctx context.Context, userID, spaceID string) (domain.Restriction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	restriction, ok := s.restrictions[restrictionKey{userID: userID, spaceID: spaceID}]
	if !ok {
		return domain.Restriction{}, persistence.ErrNotFound
	}
	return restriction, nil
}

// ListRestrictions returns every restriction row of a space ordered by user.
func (s *Storage) ListRestrictions(ctx context.Context, spaceID string) ([]domain.Restriction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	restrictions := make([]domain.Restriction, 0)
	for key, restriction := range s.restrictions {
		if key.spaceID == spaceID {
			restrictions = append(restrictions, restriction)
		}
	}
	sort.Slice(restrictions, func(i, j int) bool { return restrictions[i].UserID < restrictions[j].UserID })
	return restrictions, nil
}

// --- feeds ---

// CreateFeed stores a new calendar feed.
func (s *Storage) CreateFeed(ctx context.Context, feed domain.CalendarFeed) error {
	if feed.ID == "" || feed.SecretHash == "" {
		return persistence.ErrConstraintViolation
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.feeds[feed.ID]; ok {
		return persistence.ErrConflict
	}
	s.feeds[feed.ID] = cloneFeed(feed)
	return nil
}

// GetFeed retrieves a feed by ID.
func (s *Storage) GetFeed(ctx context.Context, id string) (domain.CalendarFeed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	feed, ok := s.feeds[id]
	if !ok {
		return domain.CalendarFeed{}, persistence.ErrNotFound
	}
	return cloneFeed(feed), nil
}

// RevokeFeed marks a feed revoked. Revoking twice keeps the first timestamp.
func (s *Storage) RevokeFeed(ctx context.Context, id string, revokedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	feed, ok := s.feeds[id]
	if !ok {
		return persistence.ErrNotFound
	}
	if feed.RevokedAt == nil {
		at := revokedAt.UTC().Truncate(time.Second)
		feed.RevokedAt = &at
		s.feeds[id] = feed
	}
	return nil
}

func normalizeBooking(b domain.Booking) domain.Booking {
	b.Start = b.Start.UTC().Truncate(time.Second)
	b.End = b.End.UTC().Truncate(time.Second)
	b.CreatedAt = b.CreatedAt.UTC().Truncate(time.Second)
	b.UpdatedAt = b.UpdatedAt.UTC().Truncate(time.Second)
	return b
}

func cloneSpace(space domain.CommonSpace) domain.CommonSpace {
	if space.OpeningHours != nil {
		hours := make(scheduler.WeeklyHours, len(space.OpeningHours))
		for day, h := range space.OpeningHours {
			hours[day] = h
		}
		space.OpeningHours = hours
	}
	return space
}

func cloneFeed(feed domain.CalendarFeed) domain.CalendarFeed {
	if feed.RevokedAt != nil {
		at := *feed.RevokedAt
		feed.RevokedAt = &at
	}
	return feed
}
