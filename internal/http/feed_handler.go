package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/example/amenity-booking/internal/application"
)

type feedService interface {
	IssueFeed(ctx context.Context, principal application.Principal, spaceID string) (application.IssuedFeed, error)
	RevokeFeed(ctx context.Context, principal application.Principal, feedID string) error
	ExportFeed(ctx context.Context, feedID, secret string) (string, error)
}

// FeedHandler manages calendar subscription URLs.
type FeedHandler struct {
	service   feedService
	responder responder
}

func NewFeedHandler(service feedService, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{service: service, responder: newResponder(logger)}
}

// RegisterRoutes mounts the feed endpoints. The export route is meant for
// calendar clients and carries its credential in the path.
func (h *FeedHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/spaces/:spaceID/feeds", h.Issue)
	router.DELETE("/feeds/:feedID", h.Revoke)
	router.GET("/feeds/:feedID/:secret", h.Export)
}

func (h *FeedHandler) Issue(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, _ := PrincipalFromContext(r.Context())
	issued, err := h.service.IssueFeed(r.Context(), principal, ps.ByName("spaceID"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, feedResponse{
		ID:        issued.Feed.ID,
		SpaceID:   issued.Feed.SpaceID,
		Path:      "/feeds/" + issued.Feed.ID + "/" + issued.Secret,
		CreatedAt: issued.Feed.CreatedAt.UTC(),
	})
}

func (h *FeedHandler) Revoke(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.RevokeFeed(r.Context(), principal, ps.ByName("feedID")); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *FeedHandler) Export(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	feedID := ps.ByName("feedID")
	doc, err := h.service.ExportFeed(r.Context(), feedID, ps.ByName("secret"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	writeCalendar(r.Context(), h.responder, w, feedID, doc)
}

type feedResponse struct {
	ID        string    `json:"id"`
	SpaceID   string    `json:"space_id"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}
