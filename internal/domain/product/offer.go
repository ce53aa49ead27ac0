package product

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// OfferActive reports whether the product's offer applies at the given time.
// An offer with a non-positive discount value never applies, regardless of
// dates. A missing start or end bound leaves that side of the window open.
func OfferActive(p *Product, now time.Time) bool {
	if !p.OnOffer || !p.DiscountValue.IsPositive() {
		return false
	}
	if p.OfferStartsAt != nil && now.Before(*p.OfferStartsAt) {
		return false
	}
	if p.OfferEndsAt != nil && now.After(*p.OfferEndsAt) {
		return false
	}
	return true
}

// EffectivePrice returns the price the customer is charged at the given time.
// When no offer is active it is the raw price. Percentage and fixed discounts
// are clamped to the [0, price] range even when stored values are out of
// bounds; write-time validation rejects such values, but stale rows may still
// carry them.
func EffectivePrice(p *Product, now time.Time) decimal.Decimal {
	if !OfferActive(p, now) {
		return p.Price
	}

	var discounted decimal.Decimal
	switch p.DiscountType {
	case DiscountPercentage:
		discounted = p.Price.Sub(p.Price.Mul(p.DiscountValue).Div(hundred))
	case DiscountFixed:
		discounted = p.Price.Sub(p.DiscountValue)
	default:
		return p.Price
	}

	if discounted.IsNegative() {
		return decimal.Zero
	}
	if discounted.GreaterThan(p.Price) {
		return p.Price
	}
	return discounted.Round(2)
}

// Savings returns the absolute amount saved by the active offer, zero when
// no offer applies.
func Savings(p *Product, now time.Time) decimal.Decimal {
	return p.Price.Sub(EffectivePrice(p, now))
}

// SavingsPercent returns the saved share of the raw price as a rounded whole
// percentage. A zero-priced product yields 0 rather than dividing by zero.
func SavingsPercent(p *Product, now time.Time) int {
	if p.Price.IsZero() {
		return 0
	}
	pct := Savings(p, now).Mul(hundred).Div(p.Price)
	return int(pct.Round(0).IntPart())
}
