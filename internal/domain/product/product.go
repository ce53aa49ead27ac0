package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// DiscountType enumerates the supported offer discount strategies.
type DiscountType string

const (
	// DiscountPercentage reduces the price by a percentage of itself.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed reduces the price by a fixed monetary amount.
	DiscountFixed DiscountType = "fixed"
)

// Product represents a menu item available for ordering. Price is the
// authoritative unit price; client-supplied prices are never trusted.
type Product struct {
	ID               string
	Name             string
	Description      string
	Price            decimal.Decimal
	CategoryID       string
	MinOrderQuantity int
	Available        bool

	// Offer fields. An offer is only honoured while OnOffer is set,
	// DiscountValue is positive, and the current time falls within the
	// optional [OfferStartsAt, OfferEndsAt] window.
	OnOffer       bool
	DiscountType  DiscountType
	DiscountValue decimal.Decimal
	OfferStartsAt *time.Time
	OfferEndsAt   *time.Time
}

// Category groups products for storefront browsing. ItemCount is a derived
// counter recomputed whenever the catalog changes.
type Category struct {
	ID        string
	Name      string
	ItemCount int
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}

// CategoryRepository defines read operations for product categories.
type CategoryRepository interface {
	ListCategories(ctx context.Context) ([]Category, error)
}
