package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/amenity-booking/internal/domain"
	"github.com/example/amenity-booking/internal/events"
	"github.com/example/amenity-booking/internal/persistence"
	"github.com/example/amenity-booking/internal/scheduler"
)

// maxWriteAttempts bounds the conflict-check-and-insert transaction: one try
// plus one retry.
const maxWriteAttempts = 2

// eventPublishTimeout bounds how long an operation waits on the event sink.
const eventPublishTimeout = 2 * time.Second

// BookingRepository captures the persistence interactions needed by the
// booking services. WithSpaceLock serializes writers on one space; calls made
// with the context handed to fn join that transaction.
type BookingRepository interface {
	CreateBooking(ctx context.Context, booking domain.Booking) error
	GetBooking(ctx context.Context, id string) (domain.Booking, error)
	ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]domain.Booking, error)
	UpdateBookingStatus(ctx context.Context, id string, status domain.BookingStatus, updatedAt time.Time) (domain.Booking, error)
	WithSpaceLock(ctx context.Context, spaceID string, fn func(ctx context.Context) error) error
}

// SpaceCatalog exposes the read-only building and space catalog.
type SpaceCatalog interface {
	GetBuilding(ctx context.Context, id string) (domain.Building, error)
	GetSpace(ctx context.Context, id string) (domain.CommonSpace, error)
	ListSpaces(ctx context.Context, buildingID string) ([]domain.CommonSpace, error)
}

// RestrictionChecker reports whether a user is blocked on a space.
type RestrictionChecker interface {
	IsBlocked(ctx context.Context, userID, spaceID string) (bool, error)
}

// BookingServiceDeps lists the collaborators of a BookingService.
type BookingServiceDeps struct {
	Bookings     BookingRepository
	Spaces       SpaceCatalog
	Restrictions RestrictionChecker
	Publisher    events.Publisher
	IDGenerator  func() string
	Now          func() time.Time
	Location     *time.Location
	Logger       *slog.Logger
}

// BookingService is the only writer of bookings. It applies the business
// rules in a fixed order and runs the conflict check and insert atomically per
// space.
type BookingService struct {
	bookings     BookingRepository
	spaces       SpaceCatalog
	restrictions RestrictionChecker
	publisher    events.Publisher
	idGenerator  func() string
	now          func() time.Time
	location     *time.Location
	logger       *slog.Logger
}

// NewBookingService wires dependencies for booking operations.
func NewBookingService(deps BookingServiceDeps) *BookingService {
	if deps.IDGenerator == nil {
		deps.IDGenerator = func() string { return "" }
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Publisher == nil {
		deps.Publisher = events.Noop{}
	}
	return &BookingService{
		bookings:     deps.Bookings,
		spaces:       deps.Spaces,
		restrictions: deps.Restrictions,
		publisher:    deps.Publisher,
		idGenerator:  deps.IDGenerator,
		now:          deps.Now,
		location:     deps.Location,
		logger:       defaultLogger(deps.Logger),
	}
}

func (s *BookingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "BookingService", operation, attrs...)
}

// CreateBooking validates the request, applies the space rules and stores a
// confirmed booking. Checks run in order and stop at the first failure:
// restriction, reservable flag, past start, opening hours, overlap.
func (s *BookingService) CreateBooking(ctx context.Context, params CreateBookingParams) (booking domain.Booking, err error) {
	if s == nil {
		return domain.Booking{}, fmt.Errorf("BookingService is nil")
	}

	principal := params.Principal
	userID := strings.TrimSpace(params.UserID)
	if userID == "" {
		userID = principal.UserID
	}

	logger := s.loggerWith(ctx, "CreateBooking",
		"principal_id", principal.UserID,
		"space_id", params.SpaceID,
		"user_id", userID,
	)
	defer func() {
		logOutcome(ctx, logger, err, "booking rejected", "booking created", "booking_id", booking.ID)
	}()

	start := params.Start.UTC().Truncate(time.Second)
	end := params.End.UTC().Truncate(time.Second)
	if vErr := validateBookingRequest(params.SpaceID, start, end); vErr.HasErrors() {
		return domain.Booking{}, vErr
	}
	if !principal.authenticated() {
		return domain.Booking{}, ErrInsufficientCapability
	}
	if userID != principal.UserID && !principal.CanManage() {
		return domain.Booking{}, ErrInsufficientCapability
	}

	space, err := s.spaces.GetSpace(ctx, params.SpaceID)
	if err != nil {
		return domain.Booking{}, mapBookingRepoError(err)
	}

	if s.restrictions != nil {
		blocked, err := s.restrictions.IsBlocked(ctx, userID, space.ID)
		if err != nil {
			return domain.Booking{}, err
		}
		if blocked {
			return domain.Booking{}, ErrUserRestricted
		}
	}

	if !space.IsReservable {
		return domain.Booking{}, ErrSpaceNotReservable
	}

	now := s.now()
	if !start.After(now) {
		return domain.Booking{}, ErrBookingInPast
	}

	interval := scheduler.Interval{Start: start, End: end}
	if !space.OpeningHours.Allows(interval, s.location) {
		return domain.Booking{}, ErrOutsideOperatingHours
	}

	createdAt := now.UTC().Truncate(time.Second)
	candidate := domain.Booking{
		ID:        s.idGenerator(),
		SpaceID:   space.ID,
		UserID:    userID,
		Start:     start,
		End:       end,
		Status:    domain.BookingStatusConfirmed,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}

	if err := s.insert(ctx, logger, candidate); err != nil {
		return domain.Booking{}, err
	}

	s.publish(ctx, logger, events.BookingCreated(candidate, principal.UserID))
	return candidate, nil
}

// insert checks for overlaps and stores the booking inside one space-scoped
// transaction. A failed transaction is retried once with a fresh check.
func (s *BookingService) insert(ctx context.Context, logger *slog.Logger, candidate domain.Booking) error {
	var err error
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		err = s.bookings.WithSpaceLock(ctx, candidate.SpaceID, func(txCtx context.Context) error {
			return s.checkAndCreate(txCtx, candidate)
		})
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrTimeConflict), errors.Is(err, persistence.ErrConflict):
			return ErrTimeConflict
		case errors.Is(err, persistence.ErrNotFound):
			return ErrNotFound
		case ctx.Err() != nil:
			return ctx.Err()
		}
		if attempt < maxWriteAttempts {
			logger.WarnContext(ctx, "retrying booking transaction", "attempt", attempt, "error", err)
		}
	}

	if errors.Is(err, persistence.ErrSerialization) {
		return ErrTimeConflict
	}
	return fmt.Errorf("create booking: %w", err)
}

func (s *BookingService) checkAndCreate(ctx context.Context, candidate domain.Booking) error {
	existing, err := s.bookings.ListBookings(ctx, persistence.BookingFilter{
		SpaceIDs: []string{candidate.SpaceID},
		Status:   domain.BookingStatusConfirmed,
		From:     &candidate.Start,
		To:       &candidate.End,
	})
	if err != nil {
		return err
	}

	reservations := make([]scheduler.Reservation, 0, len(existing))
	for _, b := range existing {
		reservations = append(reservations, reservationOf(b))
	}
	if scheduler.HasConflict(reservations, reservationOf(candidate)) {
		return ErrTimeConflict
	}

	return s.bookings.CreateBooking(ctx, candidate)
}

// CancelBooking marks a booking cancelled. Owners may cancel their own
// bookings, managers anyone's. Cancelling twice returns the booking unchanged.
func (s *BookingService) CancelBooking(ctx context.Context, principal Principal, bookingID string) (booking domain.Booking, err error) {
	if s == nil {
		return domain.Booking{}, fmt.Errorf("BookingService is nil")
	}

	logger := s.loggerWith(ctx, "CancelBooking",
		"principal_id", principal.UserID,
		"booking_id", bookingID,
	)
	defer func() {
		logOutcome(ctx, logger, err, "cancellation rejected", "booking cancelled")
	}()

	if strings.TrimSpace(bookingID) == "" {
		return domain.Booking{}, NewValidationError("booking_id", "booking id is required")
	}

	existing, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, mapBookingRepoError(err)
	}
	if existing.UserID != principal.UserID && !principal.CanManage() {
		return domain.Booking{}, ErrNotOwner
	}
	if existing.Status == domain.BookingStatusCancelled {
		return existing, nil
	}

	updated, err := s.bookings.UpdateBookingStatus(ctx, existing.ID, domain.BookingStatusCancelled, s.now().UTC())
	if err != nil {
		return domain.Booking{}, mapBookingRepoError(err)
	}

	s.publish(ctx, logger, events.BookingCancelled(updated, principal.UserID))
	return updated, nil
}

// GetBooking returns a booking to its owner or to a manager.
func (s *BookingService) GetBooking(ctx context.Context, principal Principal, bookingID string) (domain.Booking, error) {
	if s == nil {
		return domain.Booking{}, fmt.Errorf("BookingService is nil")
	}
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, mapBookingRepoError(err)
	}
	if booking.UserID != principal.UserID && !principal.CanManage() {
		return domain.Booking{}, ErrNotOwner
	}
	return booking, nil
}

func (s *BookingService) publish(ctx context.Context, logger *slog.Logger, event events.Event) {
	publishEvent(ctx, s.publisher, logger, event)
}

// publishEvent delivers event on a best effort basis. A failure never fails
// the operation that produced it.
func publishEvent(ctx context.Context, publisher events.Publisher, logger *slog.Logger, event events.Event) {
	if publisher == nil {
		return
	}
	// The write already happened, so the event outlives a caller that hangs up.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventPublishTimeout)
	defer cancel()
	if err := publisher.Publish(pubCtx, event); err != nil {
		logger.WarnContext(ctx, "failed to publish event",
			"event_type", event.Type,
			"event_id", event.ID,
			"error", err,
		)
	}
}

func validateBookingRequest(spaceID string, start, end time.Time) *ValidationError {
	vErr := &ValidationError{}
	if strings.TrimSpace(spaceID) == "" {
		vErr.add("space_id", "space id is required")
	}
	if start.IsZero() {
		vErr.add("start_time", "start time is required")
	}
	if end.IsZero() {
		vErr.add("end_time", "end time is required")
	}
	if !start.IsZero() && !end.IsZero() && !start.Before(end) {
		vErr.add("end_time", "end time must be after start time")
	}
	return vErr
}

func reservationOf(b domain.Booking) scheduler.Reservation {
	return scheduler.Reservation{
		ID:       b.ID,
		SpaceID:  b.SpaceID,
		Interval: scheduler.Interval{Start: b.Start, End: b.End},
	}
}

func mapBookingRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrConflict) {
		return ErrTimeConflict
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		return NewValidationError("booking", "booking violates a storage constraint")
	}
	return err
}
