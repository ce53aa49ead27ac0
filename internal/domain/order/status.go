package order

import "fmt"

// Status is the fulfillment state of an order.
type Status string

const (
	StatusPending        Status = "pending"
	StatusConfirmed      Status = "confirmed"
	StatusPreparing      Status = "preparing"
	StatusReadyForPickup Status = "ready-for-pickup"
	StatusOutForDelivery Status = "out-for-delivery"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
)

// transitions maps each status to the set of statuses it may move to.
// Completed and cancelled are terminal.
var transitions = map[Status][]Status{
	StatusPending:        {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusPreparing, StatusCancelled},
	StatusPreparing:      {StatusReadyForPickup, StatusOutForDelivery, StatusCancelled},
	StatusReadyForPickup: {StatusCompleted, StatusCancelled},
	StatusOutForDelivery: {StatusCompleted, StatusCancelled},
	StatusCompleted:      nil,
	StatusCancelled:      nil,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no further transitions are possible from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition reports whether moving from one status to another follows the
// fulfillment state machine.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CustomerCanCancel reports whether a customer may self-cancel an order in
// the given status. Once preparation starts only admins can intervene.
func CustomerCanCancel(s Status) bool {
	return s == StatusPending || s == StatusConfirmed
}

// InvalidStateError indicates an operation was attempted on an order whose
// status does not permit it.
type InvalidStateError struct {
	Status Status
	Op     string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s order in status %q", e.Op, e.Status)
}
