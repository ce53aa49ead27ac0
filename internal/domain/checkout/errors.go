package checkout

import (
	"fmt"
	"time"
)

// ValidationError reports a missing or malformed request field. It is raised
// before any read or write happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// CustomerError reports a failure while resolving or creating the customer
// record. No order exists when it is returned.
type CustomerError struct {
	Op  string
	Err error
}

func (e *CustomerError) Error() string {
	return fmt.Sprintf("customer %s: %v", e.Op, e.Err)
}

func (e *CustomerError) Unwrap() error { return e.Err }

// ItemError names a cart line that cannot be priced: unknown product,
// unavailable product, or a quantity below the product's minimum. It aborts
// the whole checkout, so partial orders never persist.
type ItemError struct {
	ProductID string
	Reason    string
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %s: %s", e.ProductID, e.Reason)
}

// SchedulingError reports a booking time inside the minimum lead window.
type SchedulingError struct {
	BookingAt time.Time
	MinLead   time.Duration
}

func (e *SchedulingError) Error() string {
	return fmt.Sprintf("booking must be at least %s ahead, got %s",
		e.MinLead, e.BookingAt.Format(time.RFC3339))
}
