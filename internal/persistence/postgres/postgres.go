// Package postgres implements persistence.Store on PostgreSQL through pgx.
//
// Booking writes run in SERIALIZABLE transactions that first lock the space
// row with SELECT ... FOR UPDATE, so concurrent writers on one space queue up
// and writers on different spaces proceed in parallel.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/amenity-booking/internal/domain"
	"github.com/example/amenity-booking/internal/persistence"
)

// Storage is the Postgres backed store.
type Storage struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ persistence.Store = (*Storage)(nil)

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Storage, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return New(pool, logger), nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool, logger *slog.Logger) *Storage {
	if logger == nil {
		logger = slog.Default()
	}
	return &Storage{pool: pool, logger: logger}
}

// Close releases the pool.
func (s *Storage) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks the connection.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- catalog ---

// UpsertBuilding stores or replaces a building.
func (s *Storage) UpsertBuilding(ctx context.Context, building domain.Building) error {
	_, err := s.exec(ctx, `
INSERT INTO buildings (id, name) VALUES ($1, $2)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`, building.ID, building.Name)
	return mapError(err)
}

// UpsertSpace stores or replaces a space.
func (s *Storage) UpsertSpace(ctx context.Context, space domain.CommonSpace) error {
	hours := []byte("{}")
	if space.OpeningHours != nil {
		data, err := space.OpeningHours.MarshalJSON()
		if err != nil {
			return fmt.Errorf("postgres: encode opening hours: %w", err)
		}
		hours = data
	}
	_, err := s.exec(ctx, `
INSERT INTO common_spaces (id, building_id, name, capacity, is_reservable, opening_hours, booking_rules, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
	building_id = EXCLUDED.building_id,
	name = EXCLUDED.name,
	capacity = EXCLUDED.capacity,
	is_reservable = EXCLUDED.is_reservable,
	opening_hours = EXCLUDED.opening_hours,
	booking_rules = EXCLUDED.booking_rules,
	updated_at = EXCLUDED.updated_at`,
		space.ID, space.BuildingID, space.Name, space.Capacity, space.IsReservable,
		string(hours), space.BookingRules, space.CreatedAt.UTC(), space.UpdatedAt.UTC())
	return mapError(err)
}

// UpsertUser stores or replaces a user.
func (s *Storage) UpsertUser(ctx context.Context, user domain.User) error {
	_, err := s.exec(ctx, `
INSERT INTO users (id, name, email) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email`, user.ID, user.Name, user.Email)
	return mapError(err)
}

// GetBuilding retrieves a building by ID.
func (s *Storage) GetBuilding(ctx context.Context, id string) (domain.Building, error) {
	var b domain.Building
	if err := s.queryRow(ctx, `SELECT id, name FROM buildings WHERE id = $1`, id).Scan(&b.ID, &b.Name); err != nil {
		return domain.Building{}, mapError(err)
	}
	return b, nil
}

const spaceColumns = `id, building_id, name, capacity, is_reservable, opening_hours, booking_rules, created_at, updated_at`

// GetSpace retrieves a space by ID.
func (s *Storage) GetSpace(ctx context.Context, id string) (domain.CommonSpace, error) {
	space, err := scanSpace(s.queryRow(ctx, `SELECT `+spaceColumns+` FROM common_spaces WHERE id = $1`, id))
	if err != nil {
		return domain.CommonSpace{}, mapError(err)
	}
	return space, nil
}

// ListSpaces returns the spaces of a building ordered by name.
func (s *Storage) ListSpaces(ctx context.Context, buildingID string) ([]domain.CommonSpace, error) {
	rows, err := s.query(ctx, `SELECT `+spaceColumns+` FROM common_spaces WHERE building_id = $1 ORDER BY name, id`, buildingID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	spaces := make([]domain.CommonSpace, 0)
	for rows.Next() {
		space, err := scanSpace(rows)
		if err != nil {
			return nil, mapError(err)
		}
		spaces = append(spaces, space)
	}
	return spaces, mapError(rows.Err())
}

// GetUser retrieves a user by ID.
func (s *Storage) GetUser(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	if err := s.queryRow(ctx, `SELECT id, name, email FROM users WHERE id = $1`, id).Scan(&u.ID, &u.Name, &u.Email); err != nil {
		return domain.User{}, mapError(err)
	}
	return u, nil
}

// ListUsers returns the known users among ids ordered by id.
func (s *Storage) ListUsers(ctx context.Context, ids []string) ([]domain.User, error) {
	users := make([]domain.User, 0, len(ids))
	if len(ids) == 0 {
		return users, nil
	}
	rows, err := s.query(ctx, `SELECT id, name, email FROM users WHERE id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email); err != nil {
			return nil, mapError(err)
		}
		users = append(users, u)
	}
	return users, mapError(rows.Err())
}

func scanSpace(row pgx.Row) (domain.CommonSpace, error) {
	var (
		space domain.CommonSpace
		hours []byte
	)
	err := row.Scan(&space.ID, &space.BuildingID, &space.Name, &space.Capacity, &space.IsReservable,
		&hours, &space.BookingRules, &space.CreatedAt, &space.UpdatedAt)
	if err != nil {
		return domain.CommonSpace{}, err
	}
	if err := space.OpeningHours.UnmarshalJSON(hours); err != nil {
		return domain.CommonSpace{}, fmt.Errorf("postgres: space %s opening hours: %w", space.ID, err)
	}
	space.CreatedAt = space.CreatedAt.UTC()
	space.UpdatedAt = space.UpdatedAt.UTC()
	return space, nil
}

// --- bookings ---

const bookingColumns = `id, common_space_id, user_id, start_time, end_time, status, created_at, updated_at`

// WithSpaceLock runs fn in a SERIALIZABLE transaction holding the space row lock.
func (s *Storage) WithSpaceLock(ctx context.Context, spaceID string, fn func(ctx context.Context) error) error {
	return withTx(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(txCtx context.Context) error {
		var id string
		if err := s.queryRow(txCtx, `SELECT id FROM common_spaces WHERE id = $1 FOR UPDATE`, spaceID).Scan(&id); err != nil {
			return mapError(err)
		}
		return fn(txCtx)
	})
}

// CreateBooking inserts a booking.
func (s *Storage) CreateBooking(ctx context.Context, b domain.Booking) error {
	if b.ID == "" || !b.Start.Before(b.End) || !b.Status.Valid() {
		return persistence.ErrConstraintViolation
	}
	_, err := s.exec(ctx, `
INSERT INTO common_space_bookings (`+bookingColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		b.ID, b.SpaceID, b.UserID, truncate(b.Start), truncate(b.End), string(b.Status), truncate(b.CreatedAt), truncate(b.UpdatedAt))
	return mapError(err)
}

// GetBooking retrieves a booking by ID.
func (s *Storage) GetBooking(ctx context.Context, id string) (domain.Booking, error) {
	b, err := scanBooking(s.queryRow(ctx, `SELECT `+bookingColumns+` FROM common_space_bookings WHERE id = $1`, id))
	if err != nil {
		return domain.Booking{}, mapError(err)
	}
	return b, nil
}

// ListBookings returns bookings matching filter ordered by start time.
func (s *Storage) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]domain.Booking, error) {
	var spaceIDs []string
	if len(filter.SpaceIDs) > 0 {
		spaceIDs = filter.SpaceIDs
	}
	var from, to *time.Time
	if filter.From != nil {
		t := truncate(*filter.From)
		from = &t
	}
	if filter.To != nil {
		t := truncate(*filter.To)
		to = &t
	}

	rows, err := s.query(ctx, `
SELECT `+bookingColumns+`
FROM common_space_bookings
WHERE ($1::text[] IS NULL OR common_space_id = ANY($1))
  AND ($2 = '' OR user_id = $2)
  AND ($3 = '' OR status = $3)
  AND ($4::timestamptz IS NULL OR end_time > $4)
  AND ($5::timestamptz IS NULL OR start_time < $5)
ORDER BY start_time, id`,
		spaceIDs, filter.UserID, string(filter.Status), from, to)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	bookings := make([]domain.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, mapError(err)
		}
		bookings = append(bookings, b)
	}
	return bookings, mapError(rows.Err())
}

// UpdateBookingStatus changes the status of a booking.
func (s *Storage) UpdateBookingStatus(ctx context.Context, id string, status domain.BookingStatus, updatedAt time.Time) (domain.Booking, error) {
	if !status.Valid() {
		return domain.Booking{}, persistence.ErrConstraintViolation
	}
	b, err := scanBooking(s.queryRow(ctx, `
UPDATE common_space_bookings SET status = $2, updated_at = $3
WHERE id = $1
RETURNING `+bookingColumns, id, string(status), truncate(updatedAt)))
	if err != nil {
		return domain.Booking{}, mapError(err)
	}
	return b, nil
}

func scanBooking(row pgx.Row) (domain.Booking, error) {
	var (
		b      domain.Booking
		status string
	)
	if err := row.Scan(&b.ID, &b.SpaceID, &b.UserID, &b.Start, &b.End, &status, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return domain.Booking{}, err
	}
	b.Status = domain.BookingStatus(status)
	b.Start = b.Start.UTC()
	b.End = b.End.UTC()
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return b, nil
}

// --- restrictions ---

const restrictionColumns = `user_id, common_space_id, is_blocked, reason, updated_by, updated_at`

// UpsertRestriction stores the restriction, replacing any previous row for the pair.
func (s *Storage) UpsertRestriction(ctx context.Context, r domain.Restriction) (domain.Restriction, error) {
	if r.UserID == "" || r.SpaceID == "" {
		return domain.Restriction{}, persistence.ErrConstraintViolation
	}
	stored, err := scanRestriction(s.queryRow(ctx, `
INSERT INTO common_space_restrictions (`+restrictionColumns+`)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id, common_space_id) DO UPDATE SET
	is_blocked = EXCLUDED.is_blocked,
	reason = EXCLUDED.reason,
	updated_by = EXCLUDED.updated_by,
	updated_at = EXCLUDED.updated_at
RETURNING `+restrictionColumns,
		r.UserID, r.SpaceID, r.IsBlocked, r.Reason, r.UpdatedBy, truncate(r.UpdatedAt)))
	if err != nil {
		return domain.Restriction{}, mapError(err)
	}
	return stored, nil
}

// GetRestriction retrieves the restriction for a (user, space) pair.
func (s *Storage) GetRestriction(ctx context.Context, userID, spaceID string) (domain.Restriction, error) {
	r, err := scanRestriction(s.queryRow(ctx, `
SELECT `+restrictionColumns+` FROM common_space_restrictions WHERE user_id = $1 AND common_space_id = $2`, userID, spaceID))
	if err != nil {
		return domain.Restriction{}, mapError(err)
	}
	return r, nil
}

// ListRestrictions returns every restriction row of a space ordered by user.
func (s *Storage) ListRestrictions(ctx context.Context, spaceID string) ([]domain.Restriction, error) {
	rows, err := s.query(ctx, `
SELECT `+restrictionColumns+` FROM common_space_restrictions WHERE common_space_id = $1 ORDER BY user_id`, spaceID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	restrictions := make([]domain.Restriction, 0)
	for rows.Next() {
		r, err := scanRestriction(rows)
		if err != nil {
			return nil, mapError(err)
		}
		restrictions = append(restrictions, r)
	}
	return restrictions, mapError(rows.Err())
}

func scanRestriction(row pgx.Row) (domain.Restriction, error) {
	var r domain.Restriction
	if err := row.Scan(&r.UserID, &r.SpaceID, &r.IsBlocked, &r.Reason, &r.UpdatedBy, &r.UpdatedAt); err != nil {
		return domain.Restriction{}, err
	}
	r.UpdatedAt = r.UpdatedAt.UTC()
	return r, nil
}

// --- feeds ---

// CreateFeed stores a new calendar feed.
func (s *Storage) CreateFeed(ctx context.Context, f domain.CalendarFeed) error {
	if f.ID == "" || f.SecretHash == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := s.exec(ctx, `
INSERT INTO calendar_feeds (id, user_id, common_space_id, can_manage, secret_hash, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		f.ID, f.UserID, f.SpaceID, f.CanManage, f.SecretHash, truncate(f.CreatedAt))
	return mapError(err)
}

// GetFeed retrieves a feed by ID.
func (s *Storage) GetFeed(ctx context.Context, id string) (domain.CalendarFeed, error) {
	var f domain.CalendarFeed
	err := s.queryRow(ctx, `
SELECT id, user_id, common_space_id, can_manage, secret_hash, created_at, revoked_at
FROM calendar_feeds WHERE id = $1`, id).
		Scan(&f.ID, &f.UserID, &f.SpaceID, &f.CanManage, &f.SecretHash, &f.CreatedAt, &f.RevokedAt)
	if err != nil {
		return domain.CalendarFeed{}, mapError(err)
	}
	f.CreatedAt = f.CreatedAt.UTC()
	if f.RevokedAt != nil {
		at := f.RevokedAt.UTC()
		f.RevokedAt = &at
	}
	return f, nil
}

// RevokeFeed marks a feed revoked. Revoking twice keeps the first timestamp.
func (s *Storage) RevokeFeed(ctx context.Context, id string, revokedAt time.Time) error {
	tag, err := s.exec(ctx, `UPDATE calendar_feeds SET revoked_at = COALESCE(revoked_at, $2) WHERE id = $1`, id, truncate(revokedAt))
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func truncate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
