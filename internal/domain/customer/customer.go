package customer

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrNotFound is returned when no customer matches the lookup.
	ErrNotFound = errors.New("customer not found")
	// ErrEmailTaken is returned when creating a customer with an email that
	// already has an account.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials is returned on a failed login attempt.
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Address is a delivery or default contact address.
type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

// Complete reports whether the address carries enough data to deliver to.
func (a *Address) Complete() bool {
	return a != nil && a.Street != "" && a.City != ""
}

// Customer is a storefront account. TotalOrders, TotalSpent and LoyaltyPoints
// are monotonically non-decreasing aggregates updated exactly once per
// successfully created order.
type Customer struct {
	ID             string
	Email          string
	PasswordHash   string
	FirstName      string
	LastName       string
	Phone          string
	DefaultAddress *Address
	TotalOrders    int
	TotalSpent     decimal.Decimal
	LoyaltyPoints  int64
	LastOrderAt    *time.Time
	Active         bool
	CreatedAt      time.Time
}

// ContactUpdate carries the contact fields refreshed on every checkout for a
// returning customer. DefaultAddress is only replaced when non-nil.
type ContactUpdate struct {
	FirstName      string
	LastName       string
	Phone          string
	DefaultAddress *Address
}

// Repository defines persistence operations for customers.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*Customer, error)
	GetByID(ctx context.Context, id string) (*Customer, error)
	Create(ctx context.Context, c *Customer) error
	UpdateContact(ctx context.Context, id string, upd ContactUpdate) error
	// ApplyOrderStats increments the order aggregates atomically at the store
	// layer so concurrent checkouts never lose an update.
	ApplyOrderStats(ctx context.Context, id string, total decimal.Decimal, points int64, at time.Time) error
}

// NormalizeEmail lowercases and trims an email so lookups and the unique
// constraint agree on one canonical form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HashPassword derives a bcrypt hash for storage.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "hash password")
	}
	return string(h), nil
}

// CheckPassword verifies a candidate password against the stored hash.
func (c *Customer) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)) == nil
}

// LoyaltyPointsFor returns the points awarded for an order total: one point
// per whole currency unit spent.
func LoyaltyPointsFor(total decimal.Decimal) int64 {
	return total.Floor().IntPart()
}
