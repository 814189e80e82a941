package domain

import "time"

// BookingEventType identifies a lifecycle transition published to the bus
type BookingEventType string

const (
	BookingEventHeld      BookingEventType = "booking.held"
	BookingEventConfirmed BookingEventType = "booking.confirmed"
	BookingEventCancelled BookingEventType = "booking.cancelled"
	BookingEventReleased  BookingEventType = "booking.released"
	BookingEventExpired   BookingEventType = "booking.expired"
)

// BookingEvent is the envelope published for every lifecycle transition.
// ReservationID is empty for hold-only transitions; HoldID is empty for
// direct cancellations of old reservations whose hold is long gone.
type BookingEvent struct {
	EventID       string           `json:"event_id"`
	Type          BookingEventType `json:"type"`
	ResourceID    string           `json:"resource_id"`
	OwnerID       string           `json:"owner_id"`
	HoldID        string           `json:"hold_id,omitempty"`
	ReservationID string           `json:"reservation_id,omitempty"`
	Interval      Interval         `json:"interval"`
	OccurredAt    time.Time        `json:"occurred_at"`
	Source        string           `json:"source"`
}

// Key returns the partition key. Events for one resource stay ordered.
func (e *BookingEvent) Key() string {
	return e.ResourceID
}
