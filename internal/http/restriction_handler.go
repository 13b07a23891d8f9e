package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/example/amenity-booking/internal/application"
	"github.com/example/amenity-booking/internal/domain"
)

type restrictionService interface {
	SetRestriction(ctx context.Context, params application.SetRestrictionParams) (domain.Restriction, error)
	ListRestrictions(ctx context.Context, principal application.Principal, spaceID string) ([]domain.Restriction, error)
}

// RestrictionHandler lets managers block and unblock users per space.
type RestrictionHandler struct {
	service   restrictionService
	validator *requestValidator
	responder responder
}

func NewRestrictionHandler(service restrictionService, logger *slog.Logger) *RestrictionHandler {
	return &RestrictionHandler{
		service:   service,
		validator: newRequestValidator(),
		responder: newResponder(logger),
	}
}

// RegisterRoutes mounts the restriction endpoints.
func (h *RestrictionHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/spaces/:spaceID/restrictions", h.List)
	router.PUT("/spaces/:spaceID/restrictions/:userID", h.Set)
}

func (h *RestrictionHandler) List(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, _ := PrincipalFromContext(r.Context())
	restrictions, err := h.service.ListRestrictions(r.Context(), principal, ps.ByName("spaceID"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]restrictionDTO, 0, len(restrictions))
	for _, restriction := range restrictions {
		dtos = append(dtos, toRestrictionDTO(restriction))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listRestrictionsResponse{Restrictions: dtos})
}

func (h *RestrictionHandler) Set(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req setRestrictionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	restriction, err := h.service.SetRestriction(r.Context(), application.SetRestrictionParams{
		Principal: principal,
		SpaceID:   ps.ByName("spaceID"),
		UserID:    ps.ByName("userID"),
		IsBlocked: *req.IsBlocked,
		Reason:    req.Reason,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toRestrictionDTO(restriction))
}

type setRestrictionRequest struct {
	IsBlocked *bool  `json:"is_blocked" validate:"required"`
	Reason    string `json:"reason" validate:"max=500"`
}

type restrictionDTO struct {
	UserID    string    `json:"user_id"`
	SpaceID   string    `json:"space_id"`
	IsBlocked bool      `json:"is_blocked"`
	Reason    string    `json:"reason,omitempty"`
	UpdatedBy string    `json:"updated_by"`
	UpdatedAt time.Time `json:"updated_at"`
}

type listRestrictionsResponse struct {
	Restrictions []restrictionDTO `json:"restrictions"`
}

func toRestrictionDTO(r domain.Restriction) restrictionDTO {
	return restrictionDTO{
		UserID:    r.UserID,
		SpaceID:   r.SpaceID,
		IsBlocked: r.IsBlocked,
		Reason:    r.Reason,
		UpdatedBy: r.UpdatedBy,
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}
