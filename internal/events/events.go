// Package events publishes booking domain events for downstream collaborators
// such as notification delivery.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/amenity-booking/internal/domain"
)

// Type names an event.
type Type string

const (
	TypeBookingCreated     Type = "booking.created"
	TypeBookingCancelled   Type = "booking.cancelled"
	TypeRestrictionUpdated Type = "restriction.updated"
)

// Source is stamped on every event.
const Source = "amenity-booking"

// Header names carried on every message.
const (
	HeaderEventID   = "event-id"
	HeaderEventType = "event-type"
	HeaderSource    = "source"
	HeaderTimestamp = "timestamp"
)

var (
	ErrPublisherClosed = errors.New("events: publisher closed")
	ErrEmptyKey        = errors.New("events: empty key")
)

// Event is one domain event. Key selects the partition; events of one space
// share a key and stay ordered.
type Event struct {
	ID         string
	Type       Type
	Key        string
	OccurredAt time.Time
	Payload    any
}

// Headers returns the message headers for e.
func (e Event) Headers() map[string]string {
	return map[string]string{
		HeaderEventID:   e.ID,
		HeaderEventType: string(e.Type),
		HeaderSource:    Source,
		HeaderTimestamp: e.OccurredAt.UTC().Format(time.RFC3339),
	}
}

// Body encodes the payload as JSON.
func (e Event) Body() ([]byte, error) {
	return json.Marshal(e.Payload)
}

// BookingPayload is the body of booking events.
type BookingPayload struct {
	BookingID string    `json:"booking_id"`
	SpaceID   string    `json:"space_id"`
	UserID    string    `json:"user_id"`
	Start     time.Time `json:"start_time"`
	End       time.Time `json:"end_time"`
	Status    string    `json:"status"`
	ActorID   string    `json:"actor_id,omitempty"`
}

// RestrictionPayload is the body of restriction events.
type RestrictionPayload struct {
	SpaceID   string    `json:"space_id"`
	UserID    string    `json:"user_id"`
	IsBlocked bool      `json:"is_blocked"`
	Reason    string    `json:"reason,omitempty"`
	UpdatedBy string    `json:"updated_by"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newEvent(t Type, key string, at time.Time, payload any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		Key:        key,
		OccurredAt: at.UTC(),
		Payload:    payload,
	}
}

func bookingPayload(b domain.Booking, actorID string) BookingPayload {
	return BookingPayload{
		BookingID: b.ID,
		SpaceID:   b.SpaceID,
		UserID:    b.UserID,
		Start:     b.Start.UTC(),
		End:       b.End.UTC(),
		Status:    string(b.Status),
		ActorID:   actorID,
	}
}

// BookingCreated builds the event for a new booking.
func BookingCreated(b domain.Booking, actorID string) Event {
	return newEvent(TypeBookingCreated, b.SpaceID, b.CreatedAt, bookingPayload(b, actorID))
}

// BookingCancelled builds the event for a cancelled booking.
func BookingCancelled(b domain.Booking, actorID string) Event {
	return newEvent(TypeBookingCancelled, b.SpaceID, b.UpdatedAt, bookingPayload(b, actorID))
}

// RestrictionUpdated builds the event for a restriction upsert.
func RestrictionUpdated(r domain.Restriction) Event {
	return newEvent(TypeRestrictionUpdated, r.SpaceID, r.UpdatedAt, RestrictionPayload{
		SpaceID:   r.SpaceID,
		UserID:    r.UserID,
		IsBlocked: r.IsBlocked,
		Reason:    r.Reason,
		UpdatedBy: r.UpdatedBy,
		UpdatedAt: r.UpdatedAt.UTC(),
	})
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Noop discards every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	err    error
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// FailWith makes subsequent Publish calls return err without recording.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

// Publish records event.
func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

// Close is a no-op.
func (r *Recorder) Close() error { return nil }

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns the recorded events of type t.
func (r *Recorder) OfType(t Type) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
