// Package usage computes booking statistics for a space.
package usage

import (
	"sort"
	"time"

	"github.com/example/amenity-booking/internal/domain"
)

// Record is the slice of a booking the aggregation reads.
type Record struct {
	UserID string
	Start  time.Time
	End    time.Time
	Status domain.BookingStatus
}

// FromBooking converts a stored booking.
func FromBooking(b domain.Booking) Record {
	return Record{UserID: b.UserID, Start: b.Start, End: b.End, Status: b.Status}
}

// UserUsage is one row of the per-user ranking.
type UserUsage struct {
	UserID       string  `json:"user_id"`
	UserName     string  `json:"user_name,omitempty"`
	TotalHours   float64 `json:"total_hours"`
	BookingCount int     `json:"booking_count"`
}

// Summary totals a set of bookings.
type Summary struct {
	TotalBookings int     `json:"total_bookings"`
	TotalHours    float64 `json:"total_hours"`
	UniqueUsers   int     `json:"unique_users"`
}

// Report is the per-user ranking plus the summary over the same records.
type Report struct {
	Summary Summary     `json:"summary"`
	PerUser []UserUsage `json:"per_user"`
}

// Aggregate groups confirmed records by user. Cancelled records are not
// counted anywhere. PerUser is sorted by hours descending, then booking count
// descending, then user id.
func Aggregate(records []Record) Report {
	byUser := make(map[string]*UserUsage)
	var summary Summary

	for _, r := range records {
		if r.Status != domain.BookingStatusConfirmed || !r.Start.Before(r.End) {
			continue
		}
		hours := r.End.Sub(r.Start).Hours()

		row, ok := byUser[r.UserID]
		if !ok {
			row = &UserUsage{UserID: r.UserID}
			byUser[r.UserID] = row
		}
		row.TotalHours += hours
		row.BookingCount++

		summary.TotalBookings++
		summary.TotalHours += hours
	}

	perUser := make([]UserUsage, 0, len(byUser))
	for _, row := range byUser {
		perUser = append(perUser, *row)
	}
	sort.Slice(perUser, func(i, j int) bool {
		a, b := perUser[i], perUser[j]
		if a.TotalHours != b.TotalHours {
			return a.TotalHours > b.TotalHours
		}
		if a.BookingCount != b.BookingCount {
			return a.BookingCount > b.BookingCount
		}
		return a.UserID < b.UserID
	})

	summary.UniqueUsers = len(perUser)
	return Report{Summary: summary, PerUser: perUser}
}

// Summarize returns only the totals of Aggregate.
func Summarize(records []Record) Summary {
	return Aggregate(records).Summary
}

// Window returns the trailing window [now - months, now].
func Window(now time.Time, months int) (time.Time, time.Time) {
	if months <= 0 {
		months = 12
	}
	return now.AddDate(0, -months, 0), now
}

// TopN returns at most n leading rows of the ranking.
func TopN(rows []UserUsage, n int) []UserUsage {
	if n <= 0 {
		return nil
	}
	if n > len(rows) {
		n = len(rows)
	}
	out := make([]UserUsage, n)
	copy(out, rows[:n])
	return out
}
