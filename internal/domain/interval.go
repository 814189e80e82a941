package domain

import (
	"fmt"
	"time"
)

// Interval is a half-open time range [Start, End). It is a pure value type:
// two intervals with the same bounds are the same interval.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewInterval builds a well-formed interval. Both bounds are normalized to
// UTC; an interval whose start is not strictly before its end is rejected.
func NewInterval(start, end time.Time) (Interval, error) {
	iv := Interval{Start: start.UTC(), End: end.UTC()}
	if !iv.Start.Before(iv.End) {
		return Interval{}, fmt.Errorf("%w: start %s is not before end %s", ErrInvalidInterval, iv.Start.Format(time.RFC3339), iv.End.Format(time.RFC3339))
	}
	return iv, nil
}

// IsZero reports whether the interval is the zero value.
func (iv Interval) IsZero() bool {
	return iv.Start.IsZero() && iv.End.IsZero()
}

// Duration returns End - Start.
func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Overlaps reports whether two half-open intervals share any instant.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Contains reports whether t falls inside the interval. The end bound is
// exclusive, so Contains(iv.End) is false.
func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}

// Adjacent reports whether the intervals touch without overlapping.
func (iv Interval) Adjacent(other Interval) bool {
	return iv.End.Equal(other.Start) || other.End.Equal(iv.Start)
}

// Intersect clamps the interval to other. The second return value is false
// when the intervals do not overlap.
func (iv Interval) Intersect(other Interval) (Interval, bool) {
	if !iv.Overlaps(other) {
		return Interval{}, false
	}
	out := iv
	if other.Start.After(out.Start) {
		out.Start = other.Start
	}
	if other.End.Before(out.End) {
		out.End = other.End
	}
	return out, true
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%s, %s)", iv.Start.Format(time.RFC3339), iv.End.Format(time.RFC3339))
}

// IntervalPolicy bounds the horizon of acceptable intervals. Requests further
// in the past than PastHorizon or further out than FutureHorizon are rejected
// before they reach the store, as are spans longer than MaxSpan.
type IntervalPolicy struct {
	PastHorizon   time.Duration
	FutureHorizon time.Duration
	MaxSpan       time.Duration
}

// DefaultIntervalPolicy returns the policy used when none is configured.
func DefaultIntervalPolicy() IntervalPolicy {
	return IntervalPolicy{
		PastHorizon:   24 * time.Hour,
		FutureHorizon: 365 * 24 * time.Hour,
		MaxSpan:       30 * 24 * time.Hour,
	}
}

// Validate checks the interval against the policy horizons relative to now.
func (p IntervalPolicy) Validate(iv Interval, now time.Time) error {
	if !iv.Start.Before(iv.End) {
		return fmt.Errorf("%w: start must be before end", ErrInvalidInterval)
	}
	if p.PastHorizon > 0 && iv.Start.Before(now.Add(-p.PastHorizon)) {
		return fmt.Errorf("%w: start %s is beyond the retention boundary", ErrInvalidInterval, iv.Start.Format(time.RFC3339))
	}
	if p.FutureHorizon > 0 && iv.End.After(now.Add(p.FutureHorizon)) {
		return fmt.Errorf("%w: end %s is beyond the booking horizon", ErrInvalidInterval, iv.End.Format(time.RFC3339))
	}
	if p.MaxSpan > 0 && iv.Duration() > p.MaxSpan {
		return fmt.Errorf("%w: span %s exceeds maximum %s", ErrInvalidInterval, iv.Duration(), p.MaxSpan)
	}
	return nil
}
