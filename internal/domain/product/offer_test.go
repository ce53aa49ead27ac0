package product

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var now = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func offerProduct(price string, dt DiscountType, value string) *Product {
	return &Product{
		ID:            "p1",
		Name:          "Butter Chicken",
		Price:         decimal.RequireFromString(price),
		OnOffer:       true,
		DiscountType:  dt,
		DiscountValue: decimal.RequireFromString(value),
	}
}

func TestOfferActive_Window(t *testing.T) {
	p := offerProduct("10.00", DiscountPercentage, "20")

	assert.True(t, OfferActive(p, now), "unbounded window")

	start := now.Add(time.Hour)
	p.OfferStartsAt = &start
	assert.False(t, OfferActive(p, now), "offer not started")

	start = now.Add(-time.Hour)
	end := now.Add(time.Hour)
	p.OfferStartsAt = &start
	p.OfferEndsAt = &end
	assert.True(t, OfferActive(p, now), "inside window")

	end = now.Add(-time.Minute)
	p.OfferEndsAt = &end
	assert.False(t, OfferActive(p, now), "offer ended")
}

func TestOfferActive_InactiveConditions(t *testing.T) {
	p := offerProduct("10.00", DiscountPercentage, "20")
	p.OnOffer = false
	assert.False(t, OfferActive(p, now))

	p = offerProduct("10.00", DiscountPercentage, "0")
	assert.False(t, OfferActive(p, now), "zero discount value")

	p = offerProduct("10.00", DiscountFixed, "-3")
	assert.False(t, OfferActive(p, now), "negative discount value")
}

func TestEffectivePrice_Percentage(t *testing.T) {
	p := offerProduct("10.00", DiscountPercentage, "20")

	assert.True(t, decimal.RequireFromString("8.00").Equal(EffectivePrice(p, now)))
	assert.True(t, decimal.RequireFromString("2.00").Equal(Savings(p, now)))
	assert.Equal(t, 20, SavingsPercent(p, now))
}

func TestEffectivePrice_Fixed(t *testing.T) {
	p := offerProduct("10.00", DiscountFixed, "3")

	assert.True(t, decimal.RequireFromString("7.00").Equal(EffectivePrice(p, now)))
	assert.True(t, decimal.RequireFromString("3.00").Equal(Savings(p, now)))
	assert.Equal(t, 30, SavingsPercent(p, now))
}

func TestEffectivePrice_NoActiveOffer(t *testing.T) {
	p := offerProduct("10.00", DiscountPercentage, "20")
	p.OnOffer = false

	assert.True(t, p.Price.Equal(EffectivePrice(p, now)))
	assert.True(t, Savings(p, now).IsZero())
	assert.Equal(t, 0, SavingsPercent(p, now))
}

func TestEffectivePrice_ClampsStaleValues(t *testing.T) {
	// Write-time validation rejects these, but reads must survive stale rows.
	p := offerProduct("10.00", DiscountPercentage, "150")
	assert.True(t, EffectivePrice(p, now).IsZero(), "percentage above 100 clamps to zero")

	p = offerProduct("10.00", DiscountFixed, "25")
	assert.True(t, EffectivePrice(p, now).IsZero(), "fixed above price clamps to zero")
}

func TestEffectivePrice_Bounds(t *testing.T) {
	products := []*Product{
		offerProduct("10.00", DiscountPercentage, "20"),
		offerProduct("10.00", DiscountPercentage, "100"),
		offerProduct("10.00", DiscountFixed, "9.99"),
		offerProduct("0.00", DiscountPercentage, "50"),
		offerProduct("10.00", DiscountType("bogus"), "5"),
	}
	for _, p := range products {
		ep := EffectivePrice(p, now)
		assert.False(t, ep.IsNegative(), "effective price below zero for %s", p.ID)
		assert.False(t, ep.GreaterThan(p.Price), "effective price above raw price for %s", p.ID)
	}
}

func TestSavingsPercent_ZeroPrice(t *testing.T) {
	p := offerProduct("0.00", DiscountPercentage, "50")
	assert.Equal(t, 0, SavingsPercent(p, now))
}
