package store

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mk-uidev/flavorforge/internal/domain/order"
)

var hundred = decimal.NewFromInt(100)

// DeliveryFee returns the fee charged for the given subtotal and service
// type. Pickup and disabled delivery cost nothing. A positive free-delivery
// threshold waives the fee once the subtotal reaches it.
func DeliveryFee(subtotal decimal.Decimal, serviceType order.ServiceType, cfg *Config) decimal.Decimal {
	if serviceType != order.ServiceDelivery || !cfg.Delivery.Enabled {
		return decimal.Zero
	}
	if cfg.Delivery.FreeThreshold.IsPositive() && subtotal.GreaterThanOrEqual(cfg.Delivery.FreeThreshold) {
		return decimal.Zero
	}
	return cfg.Delivery.Fee
}

// Tax returns the tax on a subtotal at the configured percentage rate,
// rounded to 2 decimal places.
func Tax(subtotal decimal.Decimal, cfg *Config) decimal.Decimal {
	return subtotal.Mul(cfg.TaxRate).Div(hundred).Round(2)
}

// MeetsMinimumOrder reports whether the subtotal satisfies the configured
// minimum order amount.
func MeetsMinimumOrder(subtotal decimal.Decimal, cfg *Config) bool {
	return subtotal.GreaterThanOrEqual(cfg.MinOrderAmount)
}

// IsOpen reports whether the store accepts orders at the given time. Closed
// days beat hours; within an open day the zero-padded "HH:MM" strings compare
// lexically, so 09:00 <= now <= 21:30 works without parsing.
func IsOpen(cfg *Config, now time.Time) bool {
	weekday := now.Weekday().String()
	for _, closed := range cfg.Hours.ClosedDays {
		if closed == weekday {
			return false
		}
	}
	hhmm := now.Format("15:04")
	return cfg.Hours.OpenTime <= hhmm && hhmm <= cfg.Hours.CloseTime
}
