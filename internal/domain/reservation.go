package domain

import "time"

// ReservationStatus represents the status of a reservation
type ReservationStatus string

const (
	ReservationStatusConfirmed ReservationStatus = "confirmed"
	ReservationStatusCancelled ReservationStatus = "cancelled"
)

// IsValid checks if the status is a valid ReservationStatus
func (s ReservationStatus) IsValid() bool {
	switch s {
	case ReservationStatusConfirmed, ReservationStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of ReservationStatus
func (s ReservationStatus) String() string {
	return string(s)
}

// Reservation is a confirmed, durable booking. Reservations are never
// physically deleted; cancellation flips the status and bumps the version,
// preserving history. Version guards every mutation (optimistic concurrency).
type Reservation struct {
	ID          string            `json:"id"`
	ResourceID  string            `json:"resource_id"`
	OwnerID     string            `json:"owner_id"`
	HoldID      string            `json:"hold_id,omitempty"`
	Interval    Interval          `json:"interval"`
	Status      ReservationStatus `json:"status"`
	Version     int64             `json:"version"`
	CreatedAt   time.Time         `json:"created_at"`
	ConfirmedAt time.Time         `json:"confirmed_at"`
	CancelledAt *time.Time        `json:"cancelled_at,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// IsConfirmed checks if the reservation is in confirmed status
func (r *Reservation) IsConfirmed() bool {
	return r.Status == ReservationStatusConfirmed
}

// IsCancelled checks if the reservation is in cancelled status
func (r *Reservation) IsCancelled() bool {
	return r.Status == ReservationStatusCancelled
}

// ActiveAt reports whether the reservation blocks capacity at t. Cancelled
// reservations never block; confirmed ones block across their interval.
func (r *Reservation) ActiveAt(t time.Time) bool {
	return r.IsConfirmed()
}

// BelongsTo checks if the reservation belongs to the given owner.
func (r *Reservation) BelongsTo(ownerID string) bool {
	return r.OwnerID == ownerID
}

// Cancel marks the reservation as cancelled. The store performs the version
// check; this transition only validates state.
func (r *Reservation) Cancel(now time.Time) error {
	if r.IsCancelled() {
		return ErrAlreadyCancelled
	}
	r.Status = ReservationStatusCancelled
	r.CancelledAt = &now
	r.UpdatedAt = now
	r.Version++
	return nil
}
