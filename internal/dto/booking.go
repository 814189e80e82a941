package dto

import (
	"time"

	"github.com/aikokik/bookabl-api/internal/domain"
)

// HoldRequest represents a request to place a hold on a resource
type HoldRequest struct {
	Start time.Time `json:"start" binding:"required"`
	End   time.Time `json:"end" binding:"required"`
}

// HoldResponse represents a placed hold
type HoldResponse struct {
	HoldID     string    `json:"hold_id"`
	ResourceID string    `json:"resource_id"`
	OwnerID    string    `json:"owner_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// ConfirmResponse represents a confirmed reservation
type ConfirmResponse struct {
	ReservationID string    `json:"reservation_id"`
	ResourceID    string    `json:"resource_id"`
	Status        string    `json:"status"`
	Version       int64     `json:"version"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	ConfirmedAt   time.Time `json:"confirmed_at"`
}

// CancelRequest carries the version the caller last observed
type CancelRequest struct {
	Version int64 `json:"version" binding:"required,min=1"`
}

// CancelResponse represents a cancelled reservation
type CancelResponse struct {
	ReservationID string    `json:"reservation_id"`
	Status        string    `json:"status"`
	Version       int64     `json:"version"`
	CancelledAt   time.Time `json:"cancelled_at"`
}

// ReleaseResponse represents a released hold
type ReleaseResponse struct {
	HoldID  string `json:"hold_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ReservationResponse represents a reservation in API responses
type ReservationResponse struct {
	ID          string     `json:"id"`
	ResourceID  string     `json:"resource_id"`
	OwnerID     string     `json:"owner_id"`
	Status      string     `json:"status"`
	Version     int64      `json:"version"`
	Start       time.Time  `json:"start"`
	End         time.Time  `json:"end"`
	ConfirmedAt time.Time  `json:"confirmed_at"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

// WindowResponse is one free window in an availability response
type WindowResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// AvailabilityResponse lists the free windows of a resource over a range
type AvailabilityResponse struct {
	ResourceID string           `json:"resource_id"`
	Start      time.Time        `json:"start"`
	End        time.Time        `json:"end"`
	Windows    []WindowResponse `json:"windows"`
	Cached     bool             `json:"cached,omitempty"`
}

// CreateResourceRequest represents a request to add a resource
type CreateResourceRequest struct {
	Name     string `json:"name" binding:"required"`
	Capacity int    `json:"capacity" binding:"omitempty,min=1"`
}

// UpdateCapacityRequest represents a capacity change
type UpdateCapacityRequest struct {
	Capacity int `json:"capacity" binding:"required,min=1"`
}

// ResourceResponse represents a resource in API responses
type ResourceResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
}

// ResourceListResponse is a page of resources
type ResourceListResponse struct {
	Resources []*ResourceResponse `json:"resources"`
	Limit     int                 `json:"limit"`
	Offset    int                 `json:"offset"`
}

// HoldFromDomain converts a domain Hold to its API shape
func HoldFromDomain(h *domain.Hold) *HoldResponse {
	return &HoldResponse{
		HoldID:     h.ID,
		ResourceID: h.ResourceID,
		OwnerID:    h.OwnerID,
		Start:      h.Interval.Start,
		End:        h.Interval.End,
		ExpiresAt:  h.ExpiresAt,
	}
}

// ReservationFromDomain converts a domain Reservation to its API shape
func ReservationFromDomain(r *domain.Reservation) *ReservationResponse {
	resp := &ReservationResponse{
		ID:          r.ID,
		ResourceID:  r.ResourceID,
		OwnerID:     r.OwnerID,
		Status:      string(r.Status),
		Version:     r.Version,
		Start:       r.Interval.Start,
		End:         r.Interval.End,
		ConfirmedAt: r.ConfirmedAt,
	}
	if r.CancelledAt != nil {
		cancelledAt := *r.CancelledAt
		resp.CancelledAt = &cancelledAt
	}
	return resp
}

// ResourceFromDomain converts a domain Resource to its API shape
func ResourceFromDomain(r *domain.Resource) *ResourceResponse {
	return &ResourceResponse{
		ID:       r.ID,
		Name:     r.Name,
		Capacity: r.EffectiveCapacity(),
	}
}

// WindowsFromDomain converts free windows to their API shape
func WindowsFromDomain(windows []domain.Interval) []WindowResponse {
	out := make([]WindowResponse, 0, len(windows))
	for _, w := range windows {
		out = append(out, WindowResponse{Start: w.Start, End: w.End})
	}
	return out
}
