package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// routeRegistrar mounts a handler's endpoints.
type routeRegistrar interface {
	RegisterRoutes(router *httprouter.Router)
}

type RouterConfig struct {
	Health       *HealthHandler
	Bookings     *BookingHandler
	Calendars    *CalendarHandler
	Restrictions *RestrictionHandler
	Feeds        *FeedHandler
	Logger       *slog.Logger
	Middleware   []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	router := httprouter.New()
	responder := newResponder(cfg.Logger)

	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		responder.writeError(r.Context(), w, http.StatusNotFound, errors.New("no route matches the request"))
	})
	router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		responder.writeError(r.Context(), w, http.StatusMethodNotAllowed, errors.New("method not allowed on this route"))
	})

	registrars := []routeRegistrar{}
	if cfg.Health != nil {
		registrars = append(registrars, cfg.Health)
	}
	if cfg.Bookings != nil {
		registrars = append(registrars, cfg.Bookings)
	}
	if cfg.Calendars != nil {
		registrars = append(registrars, cfg.Calendars)
	}
	if cfg.Restrictions != nil {
		registrars = append(registrars, cfg.Restrictions)
	}
	if cfg.Feeds != nil {
		registrars = append(registrars, cfg.Feeds)
	}
	for _, registrar := range registrars {
		registrar.RegisterRoutes(router)
	}

	var handler http.Handler = router
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}
