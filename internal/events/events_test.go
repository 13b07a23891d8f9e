package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/amenity-booking/internal/domain"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func testBooking() domain.Booking {
	at := time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC)
	return domain.Booking{
		ID:        "booking-1",
		SpaceID:   "space-1",
		UserID:    "user-1",
		Start:     at.Add(24 * time.Hour),
		End:       at.Add(26 * time.Hour),
		Status:    domain.BookingStatusConfirmed,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func TestKafkaPublisherWritesKeyedMessage(t *testing.T) {
	t.Parallel()

	writer := &fakeWriter{}
	pub := newKafkaPublisher(writer, "amenity.bookings", slog.New(slog.NewTextHandler(io.Discard, nil)))

	event := BookingCreated(testBooking(), "user-1")
	if err := pub.Publish(context.Background(), event); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if len(writer.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(writer.messages))
	}

	msg := writer.messages[0]
	if string(msg.Key) != "space-1" {
		t.Fatalf("expected key space-1, got %q", msg.Key)
	}

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	if headers[HeaderEventType] != string(TypeBookingCreated) {
		t.Fatalf("unexpected event type header %q", headers[HeaderEventType])
	}
	if headers[HeaderEventID] != event.ID || headers[HeaderSource] != Source {
		t.Fatalf("unexpected headers %v", headers)
	}
	if headers[HeaderTimestamp] != "2025-03-03T10:00:00Z" {
		t.Fatalf("unexpected timestamp header %q", headers[HeaderTimestamp])
	}

	var payload BookingPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if payload.BookingID != "booking-1" || payload.Status != "confirmed" || payload.ActorID != "user-1" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestKafkaPublisherErrors(t *testing.T) {
	t.Parallel()

	t.Run("wraps writer failures", func(t *testing.T) {
		t.Parallel()
		cause := errors.New("broker down")
		pub := newKafkaPublisher(&fakeWriter{err: cause}, "topic", nil)
		err := pub.Publish(context.Background(), BookingCancelled(testBooking(), "manager-1"))
		if !errors.Is(err, cause) {
			t.Fatalf("expected wrapped writer error, got %v", err)
		}
	})

	t.Run("rejects events without key", func(t *testing.T) {
		t.Parallel()
		pub := newKafkaPublisher(&fakeWriter{}, "topic", nil)
		err := pub.Publish(context.Background(), Event{ID: "e", Type: TypeBookingCreated})
		if !errors.Is(err, ErrEmptyKey) {
			t.Fatalf("expected ErrEmptyKey, got %v", err)
		}
	})

	t.Run("refuses after close", func(t *testing.T) {
		t.Parallel()
		writer := &fakeWriter{}
		pub := newKafkaPublisher(writer, "topic", nil)
		if err := pub.Close(); err != nil {
			t.Fatalf("Close returned error: %v", err)
		}
		if !writer.closed {
			t.Fatalf("expected writer to be closed")
		}
		if err := pub.Close(); err != nil {
			t.Fatalf("second Close returned error: %v", err)
		}
		err := pub.Publish(context.Background(), BookingCreated(testBooking(), ""))
		if !errors.Is(err, ErrPublisherClosed) {
			t.Fatalf("expected ErrPublisherClosed, got %v", err)
		}
	})
}

func TestNewKafkaPublisherValidatesConfig(t *testing.T) {
	t.Parallel()

	if _, err := NewKafkaPublisher(KafkaConfig{Topic: "t"}, nil); err == nil {
		t.Fatalf("expected error without brokers")
	}
	if _, err := NewKafkaPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}}, nil); err == nil {
		t.Fatalf("expected error without topic")
	}
	pub, err := NewKafkaPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "t"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = pub.Close()
}

func TestRestrictionUpdatedPayload(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, time.March, 3, 10, 0, 0, 0, time.FixedZone("X", 3600))
	event := RestrictionUpdated(domain.Restriction{
		UserID: "user-1", SpaceID: "space-1", IsBlocked: true, Reason: "abuse", UpdatedBy: "manager-1", UpdatedAt: at,
	})
	if event.Key != "space-1" || event.Type != TypeRestrictionUpdated {
		t.Fatalf("unexpected event %+v", event)
	}
	if event.OccurredAt.Location() != time.UTC {
		t.Fatalf("expected UTC timestamp")
	}
	body, err := event.Body()
	if err != nil {
		t.Fatalf("Body returned error: %v", err)
	}
	var payload RestrictionPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !payload.IsBlocked || payload.Reason != "abuse" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestRecorder(t *testing.T) {
	t.Parallel()

	rec := NewRecorder()
	_ = rec.Publish(context.Background(), BookingCreated(testBooking(), ""))
	_ = rec.Publish(context.Background(), BookingCancelled(testBooking(), ""))

	if got := len(rec.OfType(TypeBookingCreated)); got != 1 {
		t.Fatalf("expected 1 created event, got %d", got)
	}

	cause := errors.New("down")
	rec.FailWith(cause)
	if err := rec.Publish(context.Background(), BookingCreated(testBooking(), "")); !errors.Is(err, cause) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if got := len(rec.Events()); got != 2 {
		t.Fatalf("expected 2 recorded events, got %d", got)
	}
}
