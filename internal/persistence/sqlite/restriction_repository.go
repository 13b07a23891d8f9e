package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/example/amenity-booking/internal/domain"
	"github.com/example/amenity-booking/internal/persistence"
)

// UpsertRestriction stores the restriction, replacing any previous row for the pair.
func (s *Storage) UpsertRestriction(ctx context.Context, restriction domain.Restriction) (domain.Restriction, error) {
	if restriction.UserID == "" || restriction.SpaceID == "" {
		return domain.Restriction{}, persistence.ErrConstraintViolation
	}
	_, err := s.pool.conn(ctx).ExecContext(ctx, `
		INSERT INTO common_space_restrictions (user_id, common_space_id, is_blocked, reason, updated_by, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, common_space_id) DO UPDATE SET
			is_blocked = excluded.is_blocked,
			reason = excluded.reason,
			updated_by = excluded.updated_by,
			updated_at = excluded.updated_at`,
		restriction.UserID,
		restriction.SpaceID,
		boolToInt(restriction.IsBlocked),
		restriction.Reason,
		restriction.UpdatedBy,
		formatTime(restriction.UpdatedAt),
	)
	if err != nil {
		return domain.Restriction{}, mapError(err)
	}
	return s.GetRestriction(ctx, restriction.UserID, restriction.SpaceID)
}

// GetRestriction retrieves the restriction for a (user, space) pair.
func (s *Storage) GetRestriction(ctx context.Context, userID, spaceID string) (domain.Restriction, error) {
	row := s.pool.conn(ctx).QueryRowContext(ctx, `
		SELECT user_id, common_space_id, is_blocked, reason, updated_by, updated_at
		FROM common_space_restrictions WHERE user_id = ? AND common_space_id = ?`, userID, spaceID)
	restriction, err := scanRestriction(row)
	if err != nil {
		return domain.Restriction{}, mapError(err)
	}
	return restriction, nil
}

// ListRestrictions returns every restriction row of a space ordered by user.
func (s *Storage) ListRestrictions(ctx context.Context, spaceID string) ([]domain.Restriction, error) {
	rows, err := s.pool.conn(ctx).QueryContext(ctx, `
		SELECT user_id, common_space_id, is_blocked, reason, updated_by, updated_at
		FROM common_space_restrictions WHERE common_space_id = ? ORDER BY user_id`, spaceID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	restrictions := make([]domain.Restriction, 0)
	for rows.Next() {
		restriction, err := scanRestriction(rows)
		if err != nil {
			return nil, err
		}
		restrictions = append(restrictions, restriction)
	}
	return restrictions, mapError(rows.Err())
}

func scanRestriction(row rowScanner) (domain.Restriction, error) {
	var (
		restriction domain.Restriction
		blocked     int
		updatedAt   string
	)
	err := row.Scan(&restriction.UserID, &restriction.SpaceID, &blocked, &restriction.Reason, &restriction.UpdatedBy, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Restriction{}, persistence.ErrNotFound
		}
		return domain.Restriction{}, err
	}
	restriction.IsBlocked = blocked != 0
	if restriction.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return domain.Restriction{}, err
	}
	return restriction, nil
}
