package order

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/mk-uidev/flavorforge/internal/domain/customer"
)

// ErrNotFound is returned when a requested order does not exist or is not
// visible to the caller.
var ErrNotFound = errors.New("order not found")

// ServiceType selects how the order reaches the customer. It determines the
// delivery fee and whether a delivery address is required.
type ServiceType string

const (
	ServiceDelivery ServiceType = "delivery"
	ServicePickup   ServiceType = "pickup"
)

// Valid reports whether the service type is one of the known values.
func (s ServiceType) Valid() bool {
	return s == ServiceDelivery || s == ServicePickup
}

// PaymentStatus tracks payment state. Capture itself is out of scope; the
// field exists so admin tooling can record outcomes.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// Item is one order line. UnitPrice is the effective price snapshotted at
// checkout time; Subtotal is UnitPrice multiplied by Quantity.
type Item struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// Order is a placed order. Total is the sum of line subtotals only; delivery
// fee and tax are display-time values derived from store config and are not
// persisted.
type Order struct {
	ID              string
	Number          string
	CustomerID      string
	Items           []Item
	Total           decimal.Decimal
	Status          Status
	ServiceType     ServiceType
	BookingAt       time.Time
	DeliveryAddress *customer.Address
	PaymentStatus   PaymentStatus
	CustomerNotes   string
	AdminNotes      string
	CreatedAt       time.Time
}

// HistoryEntry is one append-only audit record of a status transition.
// ChangedBy identifies the admin actor; customer-initiated cancellations
// leave it empty and explain themselves in Notes.
type HistoryEntry struct {
	ID        string
	OrderID   string
	Status    Status
	ChangedBy string
	Notes     string
	CreatedAt time.Time
}

// ListFilter narrows and pages an order listing.
type ListFilter struct {
	CustomerID string
	Status     Status
	Page       int
	Limit      int
}

// Repository defines read operations used by the HTTP surface.
type Repository interface {
	ByNumber(ctx context.Context, number string) (*Order, error)
	ByID(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context, f ListFilter) ([]Order, int, error)
	HistoryFor(ctx context.Context, orderID string) ([]HistoryEntry, error)
}

// NewNumber generates a human-readable unique order number. The millisecond
// timestamp keeps numbers roughly sortable; the suffix disambiguates orders
// placed within the same millisecond.
func NewNumber(now time.Time) string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	suffix := make([]byte, 4)
	for i := range suffix {
		suffix[i] = letters[rand.Intn(len(letters))]
	}
	return fmt.Sprintf("ORD-%d-%s", now.UnixMilli(), suffix)
}
