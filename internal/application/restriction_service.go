package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/example/amenity-booking/internal/domain"
	"github.com/example/amenity-booking/internal/events"
	"github.com/example/amenity-booking/internal/persistence"
)

const maxRestrictionReasonLength = 500

// RestrictionRepository stores per user, per space booking bans.
type RestrictionRepository interface {
	UpsertRestriction(ctx context.Context, restriction domain.Restriction) (domain.Restriction, error)
	GetRestriction(ctx context.Context, userID, spaceID string) (domain.Restriction, error)
	ListRestrictions(ctx context.Context, spaceID string) ([]domain.Restriction, error)
}

// RestrictionService lets managers block and unblock users on a space.
type RestrictionService struct {
	restrictions RestrictionRepository
	spaces       SpaceCatalog
	publisher    events.Publisher
	now          func() time.Time
	logger       *slog.Logger
}

// NewRestrictionService constructs a restriction service.
func NewRestrictionService(restrictions RestrictionRepository, spaces SpaceCatalog, publisher events.Publisher, now func() time.Time, logger *slog.Logger) *RestrictionService {
	if now == nil {
		now = time.Now
	}
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &RestrictionService{
		restrictions: restrictions,
		spaces:       spaces,
		publisher:    publisher,
		now:          now,
		logger:       defaultLogger(logger),
	}
}

func (s *RestrictionService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RestrictionService", operation, attrs...)
}

// SetRestriction creates or overwrites the restriction of one user on one
// space. Applying it again with another reason keeps a single row.
func (s *RestrictionService) SetRestriction(ctx context.Context, params SetRestrictionParams) (restriction domain.Restriction, err error) {
	if s == nil {
		return domain.Restriction{}, fmt.Errorf("RestrictionService is nil")
	}

	logger := s.loggerWith(ctx, "SetRestriction",
		"principal_id", params.Principal.UserID,
		"space_id", params.SpaceID,
		"user_id", params.UserID,
		"is_blocked", params.IsBlocked,
	)
	defer func() {
		logOutcome(ctx, logger, err, "restriction rejected", "restriction updated")
	}()

	if !params.Principal.CanManage() {
		return domain.Restriction{}, ErrInsufficientCapability
	}

	vErr := &ValidationError{}
	if strings.TrimSpace(params.SpaceID) == "" {
		vErr.add("space_id", "space id is required")
	}
	if strings.TrimSpace(params.UserID) == "" {
		vErr.add("user_id", "user id is required")
	}
	reason := strings.TrimSpace(params.Reason)
	if utf8.RuneCountInString(reason) > maxRestrictionReasonLength {
		vErr.add("reason", fmt.Sprintf("reason must be at most %d characters", maxRestrictionReasonLength))
	}
	if vErr.HasErrors() {
		return domain.Restriction{}, vErr
	}

	if _, err := s.spaces.GetSpace(ctx, params.SpaceID); err != nil {
		return domain.Restriction{}, mapRestrictionRepoError(err)
	}

	stored, err := s.restrictions.UpsertRestriction(ctx, domain.Restriction{
		UserID:    params.UserID,
		SpaceID:   params.SpaceID,
		IsBlocked: params.IsBlocked,
		Reason:    reason,
		UpdatedBy: params.Principal.UserID,
		UpdatedAt: s.now().UTC().Truncate(time.Second),
	})
	if err != nil {
		return domain.Restriction{}, mapRestrictionRepoError(err)
	}

	publishEvent(ctx, s.publisher, logger, events.RestrictionUpdated(stored))
	return stored, nil
}

// IsBlocked reports whether userID currently may not book spaceID.
func (s *RestrictionService) IsBlocked(ctx context.Context, userID, spaceID string) (bool, error) {
	if s == nil {
		return false, fmt.Errorf("RestrictionService is nil")
	}
	restriction, err := s.restrictions.GetRestriction(ctx, userID, spaceID)
	if errors.Is(err, persistence.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load restriction: %w", err)
	}
	return restriction.IsBlocked, nil
}

// ListRestrictions returns every restriction recorded on a space.
func (s *RestrictionService) ListRestrictions(ctx context.Context, principal Principal, spaceID string) ([]domain.Restriction, error) {
	if s == nil {
		return nil, fmt.Errorf("RestrictionService is nil")
	}
	if !principal.CanManage() {
		return nil, ErrInsufficientCapability
	}
	if _, err := s.spaces.GetSpace(ctx, spaceID); err != nil {
		return nil, mapRestrictionRepoError(err)
	}
	restrictions, err := s.restrictions.ListRestrictions(ctx, spaceID)
	if err != nil {
		return nil, mapRestrictionRepoError(err)
	}
	if restrictions == nil {
		restrictions = []domain.Restriction{}
	}
	return restrictions, nil
}

func mapRestrictionRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		return NewValidationError("user_id", "user or space does not exist")
	}
	return err
}
