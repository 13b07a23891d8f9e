package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/amenity-booking/internal/domain"
	"github.com/example/amenity-booking/internal/persistence"
)

const bookingColumns = `id, common_space_id, user_id, start_time, end_time, status, created_at, updated_at`

// WithSpaceLock runs fn in an immediate transaction. SQLite has a single
// writer, so holding the write lock serialises every space at once.
func (s *Storage) WithSpaceLock(ctx context.Context, spaceID string, fn func(ctx context.Context) error) error {
	return s.pool.WithTransaction(ctx, func(txCtx context.Context) error {
		var id string
		err := s.pool.conn(txCtx).QueryRowContext(txCtx, `SELECT id FROM common_spaces WHERE id = ?`, spaceID).Scan(&id)
		if err != nil {
			return mapError(err)
		}
		return fn(txCtx)
	})
}

// CreateBooking inserts a booking.
func (s *Storage) CreateBooking(ctx context.Context, booking domain.Booking) error {
	if booking.ID == "" || !booking.Start.Before(booking.End) || !booking.Status.Valid() {
		return persistence.ErrConstraintViolation
	}
	_, err := s.pool.conn(ctx).ExecContext(ctx, `
		INSERT INTO common_space_bookings (`+bookingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		booking.ID,
		booking.SpaceID,
		booking.UserID,
		formatTime(booking.Start),
		formatTime(booking.End),
		string(booking.Status),
		formatTime(booking.CreatedAt),
		formatTime(booking.UpdatedAt),
	)
	return mapError(err)
}

// GetBooking retrieves a booking by ID.
func (s *Storage) GetBooking(ctx context.Context, id string) (domain.Booking, error) {
	row := s.pool.conn(ctx).QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM common_space_bookings WHERE id = ?`, id)
	booking, err := scanBooking(row)
	if err != nil {
		return domain.Booking{}, mapError(err)
	}
	return booking, nil
}

// ListBookings returns bookings matching filter ordered by start time.
func (s *Storage) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]domain.Booking, error) {
	var (
		clauses []string
		args    []any
	)
	if len(filter.SpaceIDs) > 0 {
		placeholders, ids := inClause(filter.SpaceIDs)
		clauses = append(clauses, "common_space_id IN ("+placeholders+")")
		args = append(args, ids...)
	}
	if filter.UserID != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}
	// Timestamps are fixed width UTC text, so string comparison orders them.
	if filter.From != nil {
		clauses = append(clauses, "end_time > ?")
		args = append(args, formatTime(*filter.From))
	}
	if filter.To != nil {
		clauses = append(clauses, "start_time < ?")
		args = append(args, formatTime(*filter.To))
	}

	query := `SELECT ` + bookingColumns + ` FROM common_space_bookings`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY start_time, id"

	rows, err := s.pool.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	bookings := make([]domain.Booking, 0)
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	return bookings, mapError(rows.Err())
}

// UpdateBookingStatus changes the status of a booking.
func (s *Storage) UpdateBookingStatus(ctx context.Context, id string, status domain.BookingStatus, updatedAt time.Time) (domain.Booking, error) {
	if !status.Valid() {
		return domain.Booking{}, persistence.ErrConstraintViolation
	}
	var updated domain.Booking
	err := s.pool.WithTransaction(ctx, func(txCtx context.Context) error {
		result, err := s.pool.conn(txCtx).ExecContext(txCtx,
			`UPDATE common_space_bookings SET status = ?, updated_at = ? WHERE id = ?`,
			string(status), formatTime(updatedAt), id)
		if err != nil {
			return mapError(err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return mapError(err)
		}
		if affected == 0 {
			return persistence.ErrNotFound
		}
		updated, err = s.GetBooking(txCtx, id)
		return err
	})
	if err != nil {
		return domain.Booking{}, err
	}
	return updated, nil
}

func scanBooking(row rowScanner) (domain.Booking, error) {
	var (
		booking                          domain.Booking
		status                           string
		start, end, createdAt, updatedAt string
	)
	err := row.Scan(&booking.ID, &booking.SpaceID, &booking.UserID, &start, &end, &status, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Booking{}, persistence.ErrNotFound
		}
		return domain.Booking{}, err
	}
	booking.Status = domain.BookingStatus(status)

	for _, field := range []struct {
		dst   *time.Time
		value string
	}{
		{&booking.Start, start},
		{&booking.End, end},
		{&booking.CreatedAt, createdAt},
		{&booking.UpdatedAt, updatedAt},
	} {
		t, err := parseTime(field.value)
		if err != nil {
			return domain.Booking{}, fmt.Errorf("booking %s: %w", booking.ID, err)
		}
		*field.dst = t
	}
	return booking, nil
}
