package http

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/example/amenity-booking/internal/application"
	"github.com/example/amenity-booking/internal/calendar"
	"github.com/example/amenity-booking/internal/domain"
	"github.com/example/amenity-booking/internal/scheduler"
	"github.com/example/amenity-booking/internal/usage"
)

type calendarService interface {
	GetSpaceCalendar(ctx context.Context, params application.SpaceCalendarParams) (application.SpaceCalendar, error)
	GetUserCalendar(ctx context.Context, principal application.Principal) (application.UserCalendar, error)
	GetBuildingCalendar(ctx context.Context, principal application.Principal, buildingID string) (application.BuildingCalendar, error)
}

type statsService interface {
	GetSpaceStats(ctx context.Context, principal application.Principal, spaceID string) (application.SpaceStats, error)
}

type exportService interface {
	ExportCalendar(ctx context.Context, principal application.Principal, spaceID string) (string, error)
}

// CalendarHandler serves the read side: calendars, stats and ICS export.
type CalendarHandler struct {
	calendars calendarService
	stats     statsService
	export    exportService
	responder responder
}

func NewCalendarHandler(calendars calendarService, stats statsService, export exportService, logger *slog.Logger) *CalendarHandler {
	return &CalendarHandler{
		calendars: calendars,
		stats:     stats,
		export:    export,
		responder: newResponder(logger),
	}
}

// RegisterRoutes mounts the calendar endpoints.
func (h *CalendarHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/spaces/:spaceID/calendar", h.SpaceCalendar)
	router.GET("/spaces/:spaceID/calendar.ics", h.ExportCalendar)
	router.GET("/spaces/:spaceID/stats", h.SpaceStats)
	router.GET("/me/calendar", h.UserCalendar)
	router.GET("/buildings/:buildingID/calendar", h.BuildingCalendar)
}

func (h *CalendarHandler) SpaceCalendar(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	start, end, err := parseWindow(r.URL.Query())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	cal, err := h.calendars.GetSpaceCalendar(r.Context(), application.SpaceCalendarParams{
		Principal: principal,
		SpaceID:   ps.ByName("spaceID"),
		Start:     start,
		End:       end,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, spaceCalendarResponse{
		Space:  toSpaceDTO(cal.Space),
		Start:  cal.Start,
		End:    cal.End,
		Events: nonNilEvents(cal.Events),
		Permissions: permissionsDTO{
			CanBook:        cal.Permissions.CanBook,
			CanViewDetails: cal.Permissions.CanViewDetails,
			CanManage:      cal.Permissions.CanManage,
		},
	})
}

func (h *CalendarHandler) UserCalendar(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, _ := PrincipalFromContext(r.Context())
	cal, err := h.calendars.GetUserCalendar(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, userCalendarResponse{
		User:     userDTO{ID: cal.User.ID, Name: cal.User.Name, Email: cal.User.Email},
		Bookings: nonNilEvents(cal.Bookings),
	})
}

func (h *CalendarHandler) BuildingCalendar(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, _ := PrincipalFromContext(r.Context())
	cal, err := h.calendars.GetBuildingCalendar(r.Context(), principal, ps.ByName("buildingID"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, buildingCalendarResponse{
		Building: buildingDTO{ID: cal.Building.ID, Name: cal.Building.Name},
		Start:    cal.Start,
		End:      cal.End,
		Events:   nonNilEvents(cal.Events),
		Summary:  cal.Summary,
	})
}

func (h *CalendarHandler) SpaceStats(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, _ := PrincipalFromContext(r.Context())
	stats, err := h.stats.GetSpaceStats(r.Context(), principal, ps.ByName("spaceID"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	perUser := stats.Report.PerUser
	if perUser == nil {
		perUser = []usage.UserUsage{}
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, spaceStatsResponse{
		Space:   toSpaceDTO(stats.Space),
		Start:   stats.Start,
		End:     stats.End,
		Summary: stats.Report.Summary,
		PerUser: perUser,
	})
}

func (h *CalendarHandler) ExportCalendar(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, _ := PrincipalFromContext(r.Context())
	spaceID := ps.ByName("spaceID")
	doc, err := h.export.ExportCalendar(r.Context(), principal, spaceID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	writeCalendar(r.Context(), h.responder, w, spaceID, doc)
}

func writeCalendar(ctx context.Context, resp responder, w http.ResponseWriter, name, doc string) {
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+sanitizeFilename(name)+`.ics"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(doc)); err != nil {
		resp.loggerFor(ctx).WarnContext(ctx, "failed to write calendar", "error", err)
	}
}

func sanitizeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

// parseWindow reads the optional RFC 3339 start and end query parameters.
func parseWindow(q url.Values) (*time.Time, *time.Time, error) {
	vErr := &application.ValidationError{}
	parse := func(key string) *time.Time {
		raw := strings.TrimSpace(q.Get(key))
		if raw == "" {
			return nil
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			if vErr.FieldErrors == nil {
				vErr.FieldErrors = map[string]string{}
			}
			vErr.FieldErrors[key] = key + " must be an RFC 3339 timestamp"
			return nil
		}
		return &t
	}

	start, end := parse("start"), parse("end")
	if vErr.HasErrors() {
		return nil, nil, vErr
	}
	return start, end, nil
}

func nonNilEvents(events []calendar.Event) []calendar.Event {
	if events == nil {
		return []calendar.Event{}
	}
	return events
}

type spaceDTO struct {
	ID           string                        `json:"id"`
	BuildingID   string                        `json:"building_id"`
	Name         string                        `json:"name"`
	Capacity     int                           `json:"capacity"`
	IsReservable bool                          `json:"is_reservable"`
	OpeningHours map[string]scheduler.DayHours `json:"opening_hours"`
	BookingRules string                        `json:"booking_rules,omitempty"`
}

type buildingDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type userDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type permissionsDTO struct {
	CanBook        bool `json:"can_book"`
	CanViewDetails bool `json:"can_view_details"`
	CanManage      bool `json:"can_manage"`
}

type spaceCalendarResponse struct {
	Space       spaceDTO         `json:"space"`
	Start       time.Time        `json:"start"`
	End         time.Time        `json:"end"`
	Events      []calendar.Event `json:"events"`
	Permissions permissionsDTO   `json:"permissions"`
}

type userCalendarResponse struct {
	User     userDTO          `json:"user"`
	Bookings []calendar.Event `json:"bookings"`
}

type buildingCalendarResponse struct {
	Building buildingDTO      `json:"building"`
	Start    time.Time        `json:"start"`
	End      time.Time        `json:"end"`
	Events   []calendar.Event `json:"events"`
	Summary  usage.Summary    `json:"summary"`
}

type spaceStatsResponse struct {
	Space   spaceDTO          `json:"space"`
	Start   time.Time         `json:"start"`
	End     time.Time         `json:"end"`
	Summary usage.Summary     `json:"summary"`
	PerUser []usage.UserUsage `json:"per_user"`
}

func toSpaceDTO(space domain.CommonSpace) spaceDTO {
	return spaceDTO{
		ID:           space.ID,
		BuildingID:   space.BuildingID,
		Name:         space.Name,
		Capacity:     space.Capacity,
		IsReservable: space.IsReservable,
		OpeningHours: space.OpeningHours.Names(),
		BookingRules: space.BookingRules,
	}
}
