package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/example/amenity-booking/internal/domain"
	"github.com/example/amenity-booking/internal/persistence"
	"github.com/example/amenity-booking/internal/scheduler"
)

const spaceColumns = `id, building_id, name, capacity, is_reservable, opening_hours, booking_rules, created_at, updated_at`

// UpsertBuilding stores or replaces a building.
func (s *Storage) UpsertBuilding(ctx context.Context, building domain.Building) error {
	if building.ID == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := s.pool.conn(ctx).ExecContext(ctx, `
		INSERT INTO buildings (id, name) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name`,
		building.ID, building.Name)
	return mapError(err)
}

// UpsertSpace stores or replaces a space.
func (s *Storage) UpsertSpace(ctx context.Context, space domain.CommonSpace) error {
	if space.ID == "" {
		return persistence.ErrConstraintViolation
	}
	hours, err := encodeHours(space.OpeningHours)
	if err != nil {
		return err
	}
	_, err = s.pool.conn(ctx).ExecContext(ctx, `
		INSERT INTO common_spaces (`+spaceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			building_id = excluded.building_id,
			name = excluded.name,
			capacity = excluded.capacity,
			is_reservable = excluded.is_reservable,
			opening_hours = excluded.opening_hours,
			booking_rules = excluded.booking_rules,
			updated_at = excluded.updated_at`,
		space.ID,
		space.BuildingID,
		space.Name,
		space.Capacity,
		boolToInt(space.IsReservable),
		hours,
		space.BookingRules,
		formatTime(space.CreatedAt),
		formatTime(space.UpdatedAt),
	)
	return mapError(err)
}

// UpsertUser stores or replaces a user.
func (s *Storage) UpsertUser(ctx context.Context, user domain.User) error {
	if user.ID == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := s.pool.conn(ctx).ExecContext(ctx, `
		INSERT INTO users (id, name, email) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, email = excluded.email`,
		user.ID, user.Name, user.Email)
	return mapError(err)
}

// GetBuilding retrieves a building by ID.
func (s *Storage) GetBuilding(ctx context.Context, id string) (domain.Building, error) {
	var building domain.Building
	err := s.pool.conn(ctx).QueryRowContext(ctx, `SELECT id, name FROM buildings WHERE id = ?`, id).
		Scan(&building.ID, &building.Name)
	if err != nil {
		return domain.Building{}, mapError(err)
	}
	return building, nil
}

// GetSpace retrieves a space by ID.
func (s *Storage) GetSpace(ctx context.Context, id string) (domain.CommonSpace, error) {
	row := s.pool.conn(ctx).QueryRowContext(ctx, `SELECT `+spaceColumns+` FROM common_spaces WHERE id = ?`, id)
	space, err := scanSpace(row)
	if err != nil {
		return domain.CommonSpace{}, mapError(err)
	}
	return space, nil
}

// ListSpaces returns the spaces of a building ordered by name.
func (s *Storage) ListSpaces(ctx context.Context, buildingID string) ([]domain.CommonSpace, error) {
	rows, err := s.pool.conn(ctx).QueryContext(ctx,
		`SELECT `+spaceColumns+` FROM common_spaces WHERE building_id = ? ORDER BY name, id`, buildingID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	spaces := make([]domain.CommonSpace, 0)
	for rows.Next() {
		space, err := scanSpace(rows)
		if err != nil {
			return nil, err
		}
		spaces = append(spaces, space)
	}
	return spaces, mapError(rows.Err())
}

// GetUser retrieves a user by ID.
func (s *Storage) GetUser(ctx context.Context, id string) (domain.User, error) {
	var user domain.User
	err := s.pool.conn(ctx).QueryRowContext(ctx, `SELECT id, name, email FROM users WHERE id = ?`, id).
		Scan(&user.ID, &user.Name, &user.Email)
	if err != nil {
		return domain.User{}, mapError(err)
	}
	return user, nil
}

// ListUsers returns the known users among ids ordered by id.
func (s *Storage) ListUsers(ctx context.Context, ids []string) ([]domain.User, error) {
	users := make([]domain.User, 0, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	placeholders, args := inClause(ids)
	rows, err := s.pool.conn(ctx).QueryContext(ctx,
		`SELECT id, name, email FROM users WHERE id IN (`+placeholders+`) ORDER BY id`, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var user domain.User
		if err := rows.Scan(&user.ID, &user.Name, &user.Email); err != nil {
			return nil, mapError(err)
		}
		users = append(users, user)
	}
	return users, mapError(rows.Err())
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSpace(row rowScanner) (domain.CommonSpace, error) {
	var (
		space                domain.CommonSpace
		reservable           int
		hours                string
		createdAt, updatedAt string
	)
	err := row.Scan(&space.ID, &space.BuildingID, &space.Name, &space.Capacity, &reservable,
		&hours, &space.BookingRules, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.CommonSpace{}, persistence.ErrNotFound
		}
		return domain.CommonSpace{}, err
	}
	space.IsReservable = reservable != 0

	if err := json.Unmarshal([]byte(hours), &space.OpeningHours); err != nil {
		return domain.CommonSpace{}, fmt.Errorf("sqlite: space %s opening hours: %w", space.ID, err)
	}
	if space.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.CommonSpace{}, err
	}
	if space.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return domain.CommonSpace{}, err
	}
	return space, nil
}

func encodeHours(hours scheduler.WeeklyHours) (string, error) {
	if hours == nil {
		return "{}", nil
	}
	data, err := json.Marshal(hours)
	if err != nil {
		return "", fmt.Errorf("sqlite: encode opening hours: %w", err)
	}
	return string(data), nil
}

func inClause(values []string) (string, []any) {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return strings.TrimSuffix(strings.Repeat("?,", len(values)), ","), args
}
