// Package store holds the storefront configuration singleton and the pricing
// policy derived from it. The pricing functions are pure so every page that
// renders a total computes the same numbers.
package store

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotConfigured is returned when the store configuration row is missing.
var ErrNotConfigured = errors.New("store is not configured")

// DeliveryOptions controls the delivery service.
type DeliveryOptions struct {
	Enabled       bool            `json:"enabled"`
	Fee           decimal.Decimal `json:"fee"`
	FreeThreshold decimal.Decimal `json:"freeThreshold"`
	EstimatedTime string          `json:"estimatedTime,omitempty"`
	Message       string          `json:"message,omitempty"`
}

// PickupOptions controls the pickup service.
type PickupOptions struct {
	Enabled       bool   `json:"enabled"`
	Address       string `json:"address,omitempty"`
	EstimatedTime string `json:"estimatedTime,omitempty"`
	Message       string `json:"message,omitempty"`
}

// ContactInfo is displayed on the storefront.
type ContactInfo struct {
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}

// OperatingHours define when the store accepts orders. OpenTime and CloseTime
// are zero-padded 24h "HH:MM" strings; ClosedDays holds English weekday names.
type OperatingHours struct {
	OpenTime   string   `json:"openTime"`
	CloseTime  string   `json:"closeTime"`
	ClosedDays []string `json:"closedDays,omitempty"`
}

// Config is the store-wide configuration singleton.
type Config struct {
	Currency       string
	CurrencySymbol string
	TaxRate        decimal.Decimal // percent
	MinOrderAmount decimal.Decimal
	Delivery       DeliveryOptions
	Pickup         PickupOptions
	Contact        ContactInfo
	Hours          OperatingHours
	UpdatedAt      time.Time
}

// Repository loads the configuration singleton.
type Repository interface {
	Get(ctx context.Context) (*Config, error)
}
