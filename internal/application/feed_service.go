package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/amenity-booking/internal/calendar"
	"github.com/example/amenity-booking/internal/domain"
	"github.com/example/amenity-booking/internal/persistence"
)

// FeedRepository stores calendar subscription feeds.
type FeedRepository interface {
	CreateFeed(ctx context.Context, feed domain.CalendarFeed) error
	GetFeed(ctx context.Context, id string) (domain.CalendarFeed, error)
	RevokeFeed(ctx context.Context, id string, revokedAt time.Time) error
}

// FeedServiceDeps lists the collaborators of a FeedService.
type FeedServiceDeps struct {
	Feeds       FeedRepository
	Spaces      SpaceCatalog
	Exporter    *ExportService
	IDGenerator func() string
	Now         func() time.Time
	HashParams  FeedSecretParams
	Logger      *slog.Logger
}

// FeedService issues secret ICS subscription URLs. A feed serves its space
// calendar masked as its owner would see it at issue time.
type FeedService struct {
	feeds       FeedRepository
	spaces      SpaceCatalog
	exporter    *ExportService
	idGenerator func() string
	now         func() time.Time
	hashParams  FeedSecretParams
	logger      *slog.Logger
}

// NewFeedService wires dependencies for calendar feeds.
func NewFeedService(deps FeedServiceDeps) *FeedService {
	if deps.IDGenerator == nil {
		deps.IDGenerator = func() string { return "" }
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.HashParams == (FeedSecretParams{}) {
		deps.HashParams = DefaultFeedSecretParams
	}
	return &FeedService{
		feeds:       deps.Feeds,
		spaces:      deps.Spaces,
		exporter:    deps.Exporter,
		idGenerator: deps.IDGenerator,
		now:         deps.Now,
		hashParams:  deps.HashParams,
		logger:      defaultLogger(deps.Logger),
	}
}

func (s *FeedService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "FeedService", operation, attrs...)
}

// IssueFeed creates a feed for the caller on a space. The returned secret is
// not stored and cannot be recovered later.
func (s *FeedService) IssueFeed(ctx context.Context, principal Principal, spaceID string) (issued IssuedFeed, err error) {
	if s == nil {
		return IssuedFeed{}, fmt.Errorf("FeedService is nil")
	}
	logger := s.loggerWith(ctx, "IssueFeed",
		"principal_id", principal.UserID,
		"space_id", spaceID,
	)
	defer func() {
		logOutcome(ctx, logger, err, "feed rejected", "feed issued", "feed_id", issued.Feed.ID)
	}()

	if !principal.authenticated() {
		return IssuedFeed{}, ErrInsufficientCapability
	}
	if strings.TrimSpace(spaceID) == "" {
		return IssuedFeed{}, NewValidationError("space_id", "space id is required")
	}
	if _, err := s.spaces.GetSpace(ctx, spaceID); err != nil {
		return IssuedFeed{}, mapFeedRepoError(err)
	}

	secret, hash, err := issueFeedSecret(s.hashParams)
	if err != nil {
		return IssuedFeed{}, err
	}

	feed := domain.CalendarFeed{
		ID:         s.idGenerator(),
		UserID:     principal.UserID,
		SpaceID:    spaceID,
		CanManage:  principal.CanManage(),
		SecretHash: hash,
		CreatedAt:  s.now().UTC().Truncate(time.Second),
	}
	if err := s.feeds.CreateFeed(ctx, feed); err != nil {
		return IssuedFeed{}, mapFeedRepoError(err)
	}
	return IssuedFeed{Feed: feed, Secret: secret}, nil
}

// RevokeFeed stops a feed from being served. Owners revoke their own feeds,
// managers anyone's.
func (s *FeedService) RevokeFeed(ctx context.Context, principal Principal, feedID string) (err error) {
	if s == nil {
		return fmt.Errorf("FeedService is nil")
	}
	logger := s.loggerWith(ctx, "RevokeFeed",
		"principal_id", principal.UserID,
		"feed_id", feedID,
	)
	defer func() {
		logOutcome(ctx, logger, err, "feed revocation rejected", "feed revoked")
	}()

	feed, err := s.feeds.GetFeed(ctx, feedID)
	if err != nil {
		return mapFeedRepoError(err)
	}
	if feed.UserID != principal.UserID && !principal.CanManage() {
		return ErrNotOwner
	}
	if err := s.feeds.RevokeFeed(ctx, feed.ID, s.now().UTC()); err != nil {
		return mapFeedRepoError(err)
	}
	return nil
}

// ExportFeed serves the ICS document of a feed. Unknown, revoked and wrong
// secret all report ErrNotFound.
func (s *FeedService) ExportFeed(ctx context.Context, feedID, secret string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("FeedService is nil")
	}
	feed, err := s.feeds.GetFeed(ctx, feedID)
	if err != nil {
		return "", mapFeedRepoError(err)
	}
	if !feed.Active() {
		return "", ErrNotFound
	}
	stored, err := parseFeedSecretHash(feed.SecretHash)
	if err != nil {
		s.loggerWith(ctx, "ExportFeed", "feed_id", feedID).
			WarnContext(ctx, "stored feed hash unreadable", "error", err)
		return "", ErrNotFound
	}
	if !stored.matches(secret) {
		return "", ErrNotFound
	}

	viewer := calendar.Viewer{UserID: feed.UserID, CanManage: feed.CanManage}
	return s.exporter.export(ctx, feed.SpaceID, viewer)
}

func mapFeedRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrConflict) {
		return fmt.Errorf("feed id collision: %w", err)
	}
	return err
}
