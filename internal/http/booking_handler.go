package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/example/amenity-booking/internal/application"
	"github.com/example/amenity-booking/internal/domain"
)

type bookingService interface {
	CreateBooking(ctx context.Context, params application.CreateBookingParams) (domain.Booking, error)
	CancelBooking(ctx context.Context, principal application.Principal, bookingID string) (domain.Booking, error)
	GetBooking(ctx context.Context, principal application.Principal, bookingID string) (domain.Booking, error)
}

// BookingHandler serves booking creation, lookup and cancellation.
type BookingHandler struct {
	service   bookingService
	validator *requestValidator
	responder responder
}

func NewBookingHandler(service bookingService, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{
		service:   service,
		validator: newRequestValidator(),
		responder: newResponder(logger),
	}
}

// RegisterRoutes mounts the booking endpoints.
func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/spaces/:spaceID/bookings", h.Create)
	router.GET("/bookings/:bookingID", h.Get)
	router.DELETE("/bookings/:bookingID", h.Cancel)
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	spaceID := strings.TrimSpace(ps.ByName("spaceID"))
	if spaceID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingPathParam)
		return
	}

	var req createBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	booking, err := h.service.CreateBooking(r.Context(), application.CreateBookingParams{
		Principal: principal,
		SpaceID:   spaceID,
		UserID:    strings.TrimSpace(req.UserID),
		Start:     req.StartTime,
		End:       req.EndTime,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.operationLogger(r.Context(), "BookingHandler", "Create").
		DebugContext(r.Context(), "booking created", "booking_id", booking.ID)
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toBookingDTO(booking))
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, _ := PrincipalFromContext(r.Context())
	booking, err := h.service.GetBooking(r.Context(), principal, ps.ByName("bookingID"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toBookingDTO(booking))
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, _ := PrincipalFromContext(r.Context())
	booking, err := h.service.CancelBooking(r.Context(), principal, ps.ByName("bookingID"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toBookingDTO(booking))
}

type createBookingRequest struct {
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
	UserID    string    `json:"user_id" validate:"max=128"`
}

type bookingDTO struct {
	ID        string    `json:"id"`
	SpaceID   string    `json:"space_id"`
	UserID    string    `json:"user_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toBookingDTO(b domain.Booking) bookingDTO {
	return bookingDTO{
		ID:        b.ID,
		SpaceID:   b.SpaceID,
		UserID:    b.UserID,
		StartTime: b.Start.UTC(),
		EndTime:   b.End.UTC(),
		Status:    string(b.Status),
		CreatedAt: b.CreatedAt.UTC(),
		UpdatedAt: b.UpdatedAt.UTC(),
	}
}
