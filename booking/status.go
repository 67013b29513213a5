package booking

import "time"

// Status is the reservation lifecycle state carried on every booking row and
// mirrored to clients. Transitions are one-directional; cancellation is the
// only branch and is allowed while the stay has not started.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusConfirmed: true, StatusCancelled: true, StatusExpired: true},
	StatusConfirmed: {StatusActive: true, StatusCancelled: true},
	StatusActive:    {StatusCompleted: true},
	StatusCompleted: {},
	StatusCancelled: {},
	StatusExpired:   {},
}

// CanTransition reports whether a booking may move from one status to
// another in a single step.
func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Terminal reports whether a status admits no further transitions.
func (s Status) Terminal() bool {
	next, ok := validNext[s]
	return ok && len(next) == 0
}

// Known reports whether s is one of the lifecycle statuses.
func (s Status) Known() bool {
	_, ok := validNext[s]
	return ok
}

// NextByClock returns the single time-driven transition due for a booking,
// if any: confirmed bookings become active once the stay window opens, and
// active bookings complete once it closes. Callers that may have missed
// sweeps should apply it repeatedly until it reports false.
func NextByClock(s Status, checkIn, checkOut, now time.Time) (Status, bool) {
	switch s {
	case StatusConfirmed:
		if !now.Before(checkIn) {
			return StatusActive, true
		}
	case StatusActive:
		if !now.Before(checkOut) {
			return StatusCompleted, true
		}
	}
	return s, false
}
