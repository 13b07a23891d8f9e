package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/amenity-booking/internal/domain"
	"github.com/example/amenity-booking/internal/persistence"
	"github.com/example/amenity-booking/internal/usage"
)

// DefaultStatsWindowMonths is the trailing window of GetSpaceStats.
const DefaultStatsWindowMonths = 12

// StatsService computes usage statistics for managers.
type StatsService struct {
	bookings     BookingReader
	spaces       SpaceCatalog
	users        UserDirectory
	now          func() time.Time
	windowMonths int
	logger       *slog.Logger
}

// NewStatsService constructs a stats service. A non-positive windowMonths
// selects DefaultStatsWindowMonths.
func NewStatsService(bookings BookingReader, spaces SpaceCatalog, users UserDirectory, now func() time.Time, windowMonths int, logger *slog.Logger) *StatsService {
	if now == nil {
		now = time.Now
	}
	if windowMonths <= 0 {
		windowMonths = DefaultStatsWindowMonths
	}
	return &StatsService{
		bookings:     bookings,
		spaces:       spaces,
		users:        users,
		now:          now,
		windowMonths: windowMonths,
		logger:       defaultLogger(logger),
	}
}

// GetSpaceStats ranks the users of a space by booked hours over the trailing
// window and totals the same bookings.
func (s *StatsService) GetSpaceStats(ctx context.Context, principal Principal, spaceID string) (stats SpaceStats, err error) {
	if s == nil {
		return SpaceStats{}, fmt.Errorf("StatsService is nil")
	}
	logger := serviceLogger(ctx, s.logger, "StatsService", "GetSpaceStats",
		"principal_id", principal.UserID,
		"space_id", spaceID,
	)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, err, "space stats failed", "")
		}
	}()

	if !principal.CanManage() {
		return SpaceStats{}, ErrInsufficientCapability
	}

	space, err := s.spaces.GetSpace(ctx, spaceID)
	if err != nil {
		return SpaceStats{}, mapCalendarRepoError(err)
	}

	start, end := usage.Window(s.now(), s.windowMonths)
	bookings, err := s.bookings.ListBookings(ctx, persistence.BookingFilter{
		SpaceIDs: []string{space.ID},
		Status:   domain.BookingStatusConfirmed,
		From:     &start,
		To:       &end,
	})
	if err != nil {
		return SpaceStats{}, fmt.Errorf("list bookings: %w", err)
	}

	records := make([]usage.Record, 0, len(bookings))
	for _, b := range bookings {
		records = append(records, usage.FromBooking(b))
	}
	report := usage.Aggregate(records)

	j := newJoiner(s.spaces, s.users)
	if err := j.loadUsers(ctx, bookings); err != nil {
		return SpaceStats{}, err
	}
	for i := range report.PerUser {
		report.PerUser[i].UserName = j.userName(report.PerUser[i].UserID)
	}

	logger.DebugContext(ctx, "space stats computed",
		"total_bookings", report.Summary.TotalBookings,
		"unique_users", report.Summary.UniqueUsers,
	)
	return SpaceStats{Space: space, Start: start.UTC(), End: end.UTC(), Report: report}, nil
}
