// Package http exposes the booking services over JSON and iCalendar.
//
// The gateway in front of the service authenticates callers and forwards
// their identity in the X-User-ID and X-User-Role headers; Identity turns
// those into an application.Principal. Requests without X-User-ID are
// anonymous.
//
// The router exposes the following endpoints:
//   - GET /healthz: storage ping.
//   - POST /spaces/:spaceID/bookings: body {"start_time","end_time","user_id"?}.
//     201 with the booking; 409 on overlap; 403 when restricted; 422 for
//     validation, past start, closed hours or a non-reservable space.
//   - GET, DELETE /bookings/:bookingID: owner or manager only.
//   - GET /spaces/:spaceID/calendar?start&end: RFC 3339 window, events masked
//     for the caller, plus what the caller may do on the space.
//   - GET /spaces/:spaceID/calendar.ics: the same bookings as text/calendar.
//   - GET /me/calendar: the caller's upcoming bookings.
//   - GET /buildings/:buildingID/calendar: managers, unmasked, with a summary.
//   - GET /spaces/:spaceID/stats: managers, per-user ranking and totals.
//   - GET /spaces/:spaceID/restrictions, PUT /spaces/:spaceID/restrictions/:userID:
//     managers, body {"is_blocked","reason"}.
//   - POST /spaces/:spaceID/feeds, DELETE /feeds/:feedID: subscription feeds.
//   - GET /feeds/:feedID/:secret: feed export for calendar clients.
//
// Errors use {"error_code","message","errors"} where error_code is the stable
// kind reported by application.ErrorKind.
package http
