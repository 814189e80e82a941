package domain

import "time"

// Resource is a bookable unit: a room, a table, a machine. The engine treats
// the catalog as external; only capacity matters for conflict decisions.
type Resource struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Capacity  int       `json:"capacity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EffectiveCapacity returns the capacity with the exclusive-use default.
func (r *Resource) EffectiveCapacity() int {
	if r.Capacity <= 0 {
		return 1
	}
	return r.Capacity
}

// Validate validates the resource fields.
func (r *Resource) Validate() error {
	if r.ID == "" {
		return ErrResourceNotFound
	}
	if r.Capacity < 0 {
		return ErrInvalidCapacity
	}
	return nil
}
