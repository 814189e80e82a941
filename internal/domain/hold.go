package domain

import "time"

// Hold is a provisional, time-boxed claim on a resource interval. A hold
// counts toward capacity while unexpired so that two concurrent flows cannot
// both believe a slot is free. It disappears on confirm, explicit release,
// or the expiry sweep.
type Hold struct {
	ID         string    `json:"id"`
	ResourceID string    `json:"resource_id"`
	OwnerID    string    `json:"owner_id"`
	Interval   Interval  `json:"interval"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// IsExpiredAt reports whether the hold no longer counts toward capacity at t.
func (h *Hold) IsExpiredAt(t time.Time) bool {
	return !t.Before(h.ExpiresAt)
}

// ActiveAt reports whether the hold still blocks other claims at t.
func (h *Hold) ActiveAt(t time.Time) bool {
	return !h.IsExpiredAt(t)
}

// BelongsTo checks if the hold was created by the given owner.
func (h *Hold) BelongsTo(ownerID string) bool {
	return h.OwnerID == ownerID
}

// Validate validates the hold fields.
func (h *Hold) Validate() error {
	if h.ID == "" {
		return ErrInvalidHoldID
	}
	if h.OwnerID == "" {
		return ErrInvalidOwner
	}
	if h.ResourceID == "" {
		return ErrResourceNotFound
	}
	if !h.Interval.Start.Before(h.Interval.End) {
		return ErrInvalidInterval
	}
	return nil
}
