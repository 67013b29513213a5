package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"hoy-server/models"
)

const (
	EventBookingCreated   = "BookingCreated"
	EventBookingConfirmed = "BookingConfirmed"
	EventBookingCancelled = "BookingCancelled"
	EventBookingExpired   = "BookingExpired"
	EventBookingCompleted = "BookingCompleted"
)

// Envelope is the versioned wrapper around every published event. Messages
// are keyed by booking reference so one booking's events stay ordered within
// a partition.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id"` // booking reference
	Payload       json.RawMessage `json:"payload"`
}

// BookingEventPayload is the payload carried by every booking lifecycle
// event.
type BookingEventPayload struct {
	BookingID  uint      `json:"booking_id"`
	Reference  string    `json:"reference"`
	PropertyID uint      `json:"property_id"`
	GuestID    uint      `json:"guest_id"`
	CheckIn    time.Time `json:"check_in"`
	CheckOut   time.Time `json:"check_out"`
	TotalPrice float64   `json:"total_price"`
	Currency   string    `json:"currency"`
	Status     string    `json:"status"`
}

// Events publishes booking lifecycle events to Kafka through a buffered
// inbox, so handlers never block on the broker. A nil *Events is valid and
// drops everything, for deployments without brokers configured.
type Events struct {
	w       *kafka.Writer
	inbox   chan kafka.Message
	closeCh chan struct{}
}

// NewEvents builds the publisher. Returns nil when no brokers are
// configured; all methods tolerate a nil receiver.
func NewEvents(brokers []string, topic string, buf int) *Events {
	if len(brokers) == 0 {
		return nil
	}
	return &Events{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        true, // fire-and-forget; the loop logs write errors
		},
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
	}
}

// Start drains the inbox until ctx is cancelled, then flushes what remains
// and closes the writer.
func (e *Events) Start(ctx context.Context) {
	if e == nil {
		return
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				close(e.inbox)
				for m := range e.inbox {
					if err := e.w.WriteMessages(context.Background(), m); err != nil {
						log.Printf("events: flush write failed: %v", err)
					}
				}
				if err := e.w.Close(); err != nil {
					log.Printf("events: close writer: %v", err)
				}
				close(e.closeCh)
				return
			case m, ok := <-e.inbox:
				if !ok {
					_ = e.w.Close()
					close(e.closeCh)
					return
				}
				if err := e.w.WriteMessages(context.Background(), m); err != nil {
					log.Printf("events: write failed: %v", err)
				}
			}
		}
	}()
}

// PublishBooking enqueues one lifecycle event for a booking.
func (e *Events) PublishBooking(eventType string, b *models.Booking) {
	if e == nil || b == nil {
		return
	}

	payload, err := json.Marshal(BookingEventPayload{
		BookingID:  b.ID,
		Reference:  b.Reference,
		PropertyID: b.PropertyID,
		GuestID:    b.GuestID,
		CheckIn:    b.CheckIn,
		CheckOut:   b.CheckOut,
		TotalPrice: b.TotalPrice,
		Currency:   b.Currency,
		Status:     string(b.Status),
	})
	if err != nil {
		log.Printf("events: marshal payload for %s: %v", b.Reference, err)
		return
	}

	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      "hoy-server",
		CorrelationID: b.Reference,
		Payload:       payload,
	}
	value, err := json.Marshal(env)
	if err != nil {
		log.Printf("events: marshal envelope for %s: %v", b.Reference, err)
		return
	}

	select {
	case e.inbox <- kafka.Message{Key: []byte(b.Reference), Value: value, Time: time.Now()}:
	default:
		log.Printf("events: inbox full, dropping %s for %s", eventType, b.Reference)
	}
}

// WaitClosed blocks until the background loop has flushed and exited.
func (e *Events) WaitClosed() {
	if e == nil {
		return
	}
	<-e.closeCh
}
