package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/amenity-booking/internal/calendar"
	"github.com/example/amenity-booking/internal/domain"
	"github.com/example/amenity-booking/internal/persistence"
	"github.com/example/amenity-booking/internal/usage"
)

// DefaultBuildingWindow is how far either side of now the building view reaches.
const DefaultBuildingWindow = 30 * 24 * time.Hour

// BookingReader is the read side of the booking repository.
type BookingReader interface {
	GetBooking(ctx context.Context, id string) (domain.Booking, error)
	ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]domain.Booking, error)
}

// UserDirectory resolves the names and emails joined into unmasked views.
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (domain.User, error)
	ListUsers(ctx context.Context, ids []string) ([]domain.User, error)
}

// CalendarServiceDeps lists the collaborators of a CalendarService.
type CalendarServiceDeps struct {
	Bookings       BookingReader
	Spaces         SpaceCatalog
	Users          UserDirectory
	Restrictions   RestrictionChecker
	Now            func() time.Time
	Location       *time.Location
	BuildingWindow time.Duration
	Logger         *slog.Logger
}

// CalendarService serves the space, user and building calendar views. It
// never writes.
type CalendarService struct {
	bookings       BookingReader
	spaces         SpaceCatalog
	users          UserDirectory
	restrictions   RestrictionChecker
	now            func() time.Time
	location       *time.Location
	buildingWindow time.Duration
	logger         *slog.Logger
}

// NewCalendarService wires dependencies for calendar views.
func NewCalendarService(deps CalendarServiceDeps) *CalendarService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.BuildingWindow <= 0 {
		deps.BuildingWindow = DefaultBuildingWindow
	}
	return &CalendarService{
		bookings:       deps.Bookings,
		spaces:         deps.Spaces,
		users:          deps.Users,
		restrictions:   deps.Restrictions,
		now:            deps.Now,
		location:       deps.Location,
		buildingWindow: deps.BuildingWindow,
		logger:         defaultLogger(deps.Logger),
	}
}

func (s *CalendarService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "CalendarService", operation, attrs...)
}

// GetSpaceCalendar returns the confirmed bookings of one space overlapping the
// requested window, masked for the caller. Without bounds the window runs from
// now to the end of the current month.
func (s *CalendarService) GetSpaceCalendar(ctx context.Context, params SpaceCalendarParams) (result SpaceCalendar, err error) {
	if s == nil {
		return SpaceCalendar{}, fmt.Errorf("CalendarService is nil")
	}
	logger := s.loggerWith(ctx, "GetSpaceCalendar",
		"principal_id", params.Principal.UserID,
		"space_id", params.SpaceID,
	)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, err, "space calendar failed", "")
		}
	}()

	now := s.now()
	start := now
	if params.Start != nil {
		start = *params.Start
	}
	// Without an explicit end the window runs to the end of the start month.
	end := calendar.EndOfMonth(start.In(s.location))
	if params.End != nil {
		end = *params.End
	}
	if !start.Before(end) {
		return SpaceCalendar{}, NewValidationError("end", "end must be after start")
	}

	space, err := s.spaces.GetSpace(ctx, params.SpaceID)
	if err != nil {
		return SpaceCalendar{}, mapCalendarRepoError(err)
	}

	bookings, err := s.bookings.ListBookings(ctx, persistence.BookingFilter{
		SpaceIDs: []string{space.ID},
		Status:   domain.BookingStatusConfirmed,
		From:     &start,
		To:       &end,
	})
	if err != nil {
		return SpaceCalendar{}, fmt.Errorf("list bookings: %w", err)
	}

	j := newJoiner(s.spaces, s.users)
	j.addSpace(space)
	entries, err := j.entries(ctx, bookings)
	if err != nil {
		return SpaceCalendar{}, err
	}

	principal := params.Principal
	canBook := principal.authenticated() && space.IsReservable
	if canBook && s.restrictions != nil {
		blocked, err := s.restrictions.IsBlocked(ctx, principal.UserID, space.ID)
		if err != nil {
			return SpaceCalendar{}, err
		}
		canBook = !blocked
	}

	return SpaceCalendar{
		Space:  space,
		Start:  start.UTC(),
		End:    end.UTC(),
		Events: calendar.Project(entries, principal.Viewer()),
		Permissions: CalendarPermissions{
			CanBook:        canBook,
			CanViewDetails: principal.CanManage(),
			CanManage:      principal.CanManage(),
		},
	}, nil
}

// GetUserCalendar returns the caller's confirmed bookings that have not ended
// yet, across every space. The caller always sees their own details.
func (s *CalendarService) GetUserCalendar(ctx context.Context, principal Principal) (UserCalendar, error) {
	if s == nil {
		return UserCalendar{}, fmt.Errorf("CalendarService is nil")
	}
	if !principal.authenticated() {
		return UserCalendar{}, ErrInsufficientCapability
	}

	user, err := s.users.GetUser(ctx, principal.UserID)
	if errors.Is(err, persistence.ErrNotFound) {
		user = domain.User{ID: principal.UserID}
	} else if err != nil {
		return UserCalendar{}, fmt.Errorf("load user: %w", err)
	}

	now := s.now()
	bookings, err := s.bookings.ListBookings(ctx, persistence.BookingFilter{
		UserID: principal.UserID,
		Status: domain.BookingStatusConfirmed,
		From:   &now,
	})
	if err != nil {
		return UserCalendar{}, fmt.Errorf("list bookings: %w", err)
	}

	j := newJoiner(s.spaces, s.users)
	j.addUser(user)
	entries, err := j.entries(ctx, bookings)
	if err != nil {
		return UserCalendar{}, err
	}

	viewer := calendar.Viewer{UserID: principal.UserID, CanManage: principal.CanManage()}
	return UserCalendar{User: user, Bookings: calendar.Project(entries, viewer)}, nil
}

// GetBuildingCalendar returns every confirmed booking in a building around
// now, unmasked, with a usage summary. Managers only.
func (s *CalendarService) GetBuildingCalendar(ctx context.Context, principal Principal, buildingID string) (result BuildingCalendar, err error) {
	if s == nil {
		return BuildingCalendar{}, fmt.Errorf("CalendarService is nil")
	}
	logger := s.loggerWith(ctx, "GetBuildingCalendar",
		"principal_id", principal.UserID,
		"building_id", buildingID,
	)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, err, "building calendar failed", "")
		}
	}()

	if !principal.CanManage() {
		return BuildingCalendar{}, ErrInsufficientCapability
	}

	building, err := s.spaces.GetBuilding(ctx, buildingID)
	if err != nil {
		return BuildingCalendar{}, mapCalendarRepoError(err)
	}
	spaces, err := s.spaces.ListSpaces(ctx, building.ID)
	if err != nil {
		return BuildingCalendar{}, fmt.Errorf("list spaces: %w", err)
	}

	now := s.now()
	start, end := now.Add(-s.buildingWindow), now.Add(s.buildingWindow)
	result = BuildingCalendar{
		Building: building,
		Start:    start.UTC(),
		End:      end.UTC(),
		Events:   []calendar.Event{},
	}
	if len(spaces) == 0 {
		return result, nil
	}

	j := newJoiner(s.spaces, s.users)
	j.addBuilding(building)
	spaceIDs := make([]string, 0, len(spaces))
	for _, space := range spaces {
		j.addSpace(space)
		spaceIDs = append(spaceIDs, space.ID)
	}

	bookings, err := s.bookings.ListBookings(ctx, persistence.BookingFilter{
		SpaceIDs: spaceIDs,
		Status:   domain.BookingStatusConfirmed,
		From:     &start,
		To:       &end,
	})
	if err != nil {
		return BuildingCalendar{}, fmt.Errorf("list bookings: %w", err)
	}

	entries, err := j.entries(ctx, bookings)
	if err != nil {
		return BuildingCalendar{}, err
	}

	records := make([]usage.Record, 0, len(bookings))
	for _, b := range bookings {
		records = append(records, usage.FromBooking(b))
	}

	result.Events = calendar.Project(entries, principal.Viewer())
	result.Summary = usage.Summarize(records)
	return result, nil
}

func mapCalendarRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// joiner attaches space, building and user names to bookings, loading each
// catalog row at most once.
type joiner struct {
	spaces    SpaceCatalog
	users     UserDirectory
	spaceRows map[string]domain.CommonSpace
	buildings map[string]domain.Building
	userRows  map[string]domain.User
}

func newJoiner(spaces SpaceCatalog, users UserDirectory) *joiner {
	return &joiner{
		spaces:    spaces,
		users:     users,
		spaceRows: make(map[string]domain.CommonSpace),
		buildings: make(map[string]domain.Building),
		userRows:  make(map[string]domain.User),
	}
}

func (j *joiner) addSpace(space domain.CommonSpace)    { j.spaceRows[space.ID] = space }
func (j *joiner) addBuilding(building domain.Building) { j.buildings[building.ID] = building }
func (j *joiner) addUser(user domain.User)             { j.userRows[user.ID] = user }

func (j *joiner) space(ctx context.Context, id string) (domain.CommonSpace, error) {
	if space, ok := j.spaceRows[id]; ok {
		return space, nil
	}
	space, err := j.spaces.GetSpace(ctx, id)
	if errors.Is(err, persistence.ErrNotFound) {
		space = domain.CommonSpace{ID: id}
	} else if err != nil {
		return domain.CommonSpace{}, fmt.Errorf("load space %s: %w", id, err)
	}
	j.spaceRows[id] = space
	return space, nil
}

func (j *joiner) building(ctx context.Context, id string) (domain.Building, error) {
	if id == "" {
		return domain.Building{}, nil
	}
	if building, ok := j.buildings[id]; ok {
		return building, nil
	}
	building, err := j.spaces.GetBuilding(ctx, id)
	if errors.Is(err, persistence.ErrNotFound) {
		building = domain.Building{ID: id}
	} else if err != nil {
		return domain.Building{}, fmt.Errorf("load building %s: %w", id, err)
	}
	j.buildings[id] = building
	return building, nil
}

func (j *joiner) loadUsers(ctx context.Context, bookings []domain.Booking) error {
	if j.users == nil {
		return nil
	}
	var missing []string
	seen := make(map[string]bool)
	for _, b := range bookings {
		if _, ok := j.userRows[b.UserID]; ok || seen[b.UserID] {
			continue
		}
		seen[b.UserID] = true
		missing = append(missing, b.UserID)
	}
	if len(missing) == 0 {
		return nil
	}
	users, err := j.users.ListUsers(ctx, missing)
	if err != nil {
		return fmt.Errorf("load users: %w", err)
	}
	for _, u := range users {
		j.userRows[u.ID] = u
	}
	return nil
}

func (j *joiner) entries(ctx context.Context, bookings []domain.Booking) ([]calendar.Entry, error) {
	if err := j.loadUsers(ctx, bookings); err != nil {
		return nil, err
	}
	entries := make([]calendar.Entry, 0, len(bookings))
	for _, b := range bookings {
		space, err := j.space(ctx, b.SpaceID)
		if err != nil {
			return nil, err
		}
		building, err := j.building(ctx, space.BuildingID)
		if err != nil {
			return nil, err
		}
		user := j.userRows[b.UserID]
		entries = append(entries, calendar.Entry{
			Booking:      b,
			SpaceName:    space.Name,
			BuildingID:   space.BuildingID,
			BuildingName: building.Name,
			UserName:     user.Name,
			UserEmail:    user.Email,
		})
	}
	return entries, nil
}

func (j *joiner) userName(id string) string {
	return j.userRows[id].Name
}
