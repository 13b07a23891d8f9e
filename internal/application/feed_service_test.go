package application_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/example/amenity-booking/internal/application"
)

func TestFeedLifecycle(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	clock := e.factory.Clock
	e.mustBook(e.userA, e.space(0), clock.Tomorrow(10), clock.Tomorrow(11))
	e.mustBook(e.userB, e.space(0), clock.Tomorrow(12), clock.Tomorrow(13))

	issued, err := e.svc.Feeds.IssueFeed(e.ctx, e.userA, e.space(0))
	if err != nil {
		t.Fatalf("IssueFeed returned error: %v", err)
	}
	if issued.Secret == "" || issued.Feed.SecretHash == "" || strings.Contains(issued.Feed.SecretHash, issued.Secret) {
		t.Fatalf("expected hashed secret, got %+v", issued)
	}
	if issued.Feed.CanManage {
		t.Fatalf("resident feed must not carry manager capability")
	}

	doc, err := e.svc.Feeds.ExportFeed(e.ctx, issued.Feed.ID, issued.Secret)
	if err != nil {
		t.Fatalf("ExportFeed returned error: %v", err)
	}
	if strings.Count(doc, "BEGIN:VEVENT\r\n") != 2 {
		t.Fatalf("expected 2 events:\n%s", doc)
	}
	if !strings.Contains(doc, "Booked by Alice") || strings.Contains(doc, "Bob") {
		t.Fatalf("feed must be masked for its owner:\n%s", doc)
	}

	if _, err := e.svc.Feeds.ExportFeed(e.ctx, issued.Feed.ID, "wrong"); !errors.Is(err, application.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for wrong secret, got %v", err)
	}
	if _, err := e.svc.Feeds.ExportFeed(e.ctx, "missing", issued.Secret); !errors.Is(err, application.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown feed, got %v", err)
	}

	if err := e.svc.Feeds.RevokeFeed(e.ctx, e.userB, issued.Feed.ID); !errors.Is(err, application.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if err := e.svc.Feeds.RevokeFeed(e.ctx, e.userA, issued.Feed.ID); err != nil {
		t.Fatalf("RevokeFeed returned error: %v", err)
	}
	if _, err := e.svc.Feeds.ExportFeed(e.ctx, issued.Feed.ID, issued.Secret); !errors.Is(err, application.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for revoked feed, got %v", err)
	}
}

func TestManagerFeedIsUnmasked(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	clock := e.factory.Clock
	e.mustBook(e.userB, e.space(0), clock.Tomorrow(12), clock.Tomorrow(13))

	issued, err := e.svc.Feeds.IssueFeed(e.ctx, e.manager, e.space(0))
	if err != nil {
		t.Fatalf("IssueFeed returned error: %v", err)
	}
	if !issued.Feed.CanManage {
		t.Fatalf("expected manager capability captured on the feed")
	}
	doc, err := e.svc.Feeds.ExportFeed(e.ctx, issued.Feed.ID, issued.Secret)
	if err != nil {
		t.Fatalf("ExportFeed returned error: %v", err)
	}
	if !strings.Contains(doc, "Booked by Bob") {
		t.Fatalf("expected unmasked manager feed:\n%s", doc)
	}

	other, err := e.svc.Feeds.IssueFeed(e.ctx, e.userA, e.space(0))
	if err != nil {
		t.Fatalf("IssueFeed returned error: %v", err)
	}
	if err := e.svc.Feeds.RevokeFeed(e.ctx, e.manager, other.Feed.ID); err != nil {
		t.Fatalf("manager RevokeFeed returned error: %v", err)
	}
}

func TestIssueFeedRejections(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	if _, err := e.svc.Feeds.IssueFeed(e.ctx, application.Principal{}, e.space(0)); !errors.Is(err, application.ErrInsufficientCapability) {
		t.Fatalf("expected ErrInsufficientCapability, got %v", err)
	}
	if _, err := e.svc.Feeds.IssueFeed(e.ctx, e.userA, "missing"); !errors.Is(err, application.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	var vErr *application.ValidationError
	if _, err := e.svc.Feeds.IssueFeed(e.ctx, e.userA, ""); !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if err := e.svc.Feeds.RevokeFeed(e.ctx, e.userA, "missing"); !errors.Is(err, application.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
