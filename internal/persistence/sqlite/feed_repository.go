package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/example/amenity-booking/internal/domain"
	"github.com/example/amenity-booking/internal/persistence"
)

// CreateFeed stores a new calendar feed.
func (s *Storage) CreateFeed(ctx context.Context, feed domain.CalendarFeed) error {
	if feed.ID == "" || feed.SecretHash == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := s.pool.conn(ctx).ExecContext(ctx, `
		INSERT INTO calendar_feeds (id, user_id, common_space_id, can_manage, secret_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		feed.ID, feed.UserID, feed.SpaceID, boolToInt(feed.CanManage), feed.SecretHash, formatTime(feed.CreatedAt))
	return mapError(err)
}

// GetFeed retrieves a feed by ID.
func (s *Storage) GetFeed(ctx context.Context, id string) (domain.CalendarFeed, error) {
	var (
		feed      domain.CalendarFeed
		canManage int
		createdAt string
		revokedAt sql.NullString
	)
	err := s.pool.conn(ctx).QueryRowContext(ctx, `
		SELECT id, user_id, common_space_id, can_manage, secret_hash, created_at, revoked_at
		FROM calendar_feeds WHERE id = ?`, id).
		Scan(&feed.ID, &feed.UserID, &feed.SpaceID, &canManage, &feed.SecretHash, &createdAt, &revokedAt)
	if err != nil {
		return domain.CalendarFeed{}, mapError(err)
	}
	feed.CanManage = canManage != 0
	if feed.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.CalendarFeed{}, err
	}
	if revokedAt.Valid {
		at, err := parseTime(revokedAt.String)
		if err != nil {
			return domain.CalendarFeed{}, err
		}
		feed.RevokedAt = &at
	}
	return feed, nil
}

// RevokeFeed marks a feed revoked. Revoking twice keeps the first timestamp.
func (s *Storage) RevokeFeed(ctx context.Context, id string, revokedAt time.Time) error {
	result, err := s.pool.conn(ctx).ExecContext(ctx,
		`UPDATE calendar_feeds SET revoked_at = COALESCE(revoked_at, ?) WHERE id = ?`, formatTime(revokedAt), id)
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
	return nil
}
