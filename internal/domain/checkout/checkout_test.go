package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mk-uidev/flavorforge/internal/domain/customer"
	"github.com/mk-uidev/flavorforge/internal/domain/order"
	"github.com/mk-uidev/flavorforge/internal/domain/product"
)

// --- Mock store with rollback semantics ---

type mockStore struct {
	customersByEmail map[string]*customer.Customer
	products         map[string]product.Product
	orders           []*order.Order
	history          []*order.HistoryEntry
	statsApplied     int

	findErr        error
	createCustErr  error
	createOrderErr error
	statsErr       error
}

func newMockStore(products ...product.Product) *mockStore {
	byID := make(map[string]product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return &mockStore{
		customersByEmail: make(map[string]*customer.Customer),
		products:         byID,
	}
}

func (m *mockStore) FindCustomerByEmail(_ context.Context, email string) (*customer.Customer, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	c, ok := m.customersByEmail[email]
	if !ok {
		return nil, customer.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockStore) CreateCustomer(_ context.Context, c *customer.Customer) error {
	if m.createCustErr != nil {
		return m.createCustErr
	}
	cp := *c
	m.customersByEmail[c.Email] = &cp
	return nil
}

func (m *mockStore) UpdateCustomerContact(_ context.Context, id string, upd customer.ContactUpdate) error {
	for _, c := range m.customersByEmail {
		if c.ID == id {
			c.FirstName = upd.FirstName
			c.LastName = upd.LastName
			c.Phone = upd.Phone
			if upd.DefaultAddress != nil {
				c.DefaultAddress = upd.DefaultAddress
			}
			return nil
		}
	}
	return customer.ErrNotFound
}

func (m *mockStore) ProductsByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockStore) CreateOrder(_ context.Context, o *order.Order) error {
	if m.createOrderErr != nil {
		return m.createOrderErr
	}
	m.orders = append(m.orders, o)
	return nil
}

func (m *mockStore) AppendHistory(_ context.Context, e *order.HistoryEntry) error {
	m.history = append(m.history, e)
	return nil
}

func (m *mockStore) ApplyOrderStats(_ context.Context, id string, total decimal.Decimal, points int64, at time.Time) error {
	if m.statsErr != nil {
		return m.statsErr
	}
	for _, c := range m.customersByEmail {
		if c.ID == id {
			c.TotalOrders++
			c.TotalSpent = c.TotalSpent.Add(total)
			c.LoyaltyPoints += points
			c.LastOrderAt = &at
			m.statsApplied++
			return nil
		}
	}
	return customer.ErrNotFound
}

// InTx snapshots the store and restores it when fn fails, mirroring a
// database rollback.
func (m *mockStore) InTx(_ context.Context, fn func(Store) error) error {
	customers := make(map[string]*customer.Customer, len(m.customersByEmail))
	for k, v := range m.customersByEmail {
		cp := *v
		customers[k] = &cp
	}
	orders := len(m.orders)
	history := len(m.history)
	stats := m.statsApplied

	if err := fn(m); err != nil {
		m.customersByEmail = customers
		m.orders = m.orders[:orders]
		m.history = m.history[:history]
		m.statsApplied = stats
		return err
	}
	return nil
}

type mockTokens struct {
	token string
	err   error
}

func (m *mockTokens) Issue(_, _ string) (string, error) { return m.token, m.err }

// --- Helpers ---

var testNow = time.Date(2026, 3, 17, 12, 0, 0, 0, time.UTC)

func newTestProduct(id, name, price string) product.Product {
	return product.Product{
		ID:        id,
		Name:      name,
		Price:     decimal.RequireFromString(price),
		Available: true,
	}
}

func newTestService(st *mockStore, tokens TokenIssuer) *Service {
	if tokens == nil {
		tokens = &mockTokens{token: "session-token"}
	}
	svc := NewService(st, tokens, zap.NewNop())
	svc.now = func() time.Time { return testNow }
	return svc
}

func validRequest() Request {
	return Request{
		Items: []CartItem{{ProductID: "p1", Quantity: 2}},
		Customer: CustomerInfo{
			Email:     "Jane@Example.com",
			Password:  "hunter22",
			FirstName: "Jane",
			LastName:  "Doe",
			Phone:     "+15551234",
		},
		ServiceType: order.ServicePickup,
		BookingAt:   testNow.Add(30 * time.Hour),
	}
}

// --- Tests ---

func TestCheckout_NewCustomer(t *testing.T) {
	st := newMockStore(newTestProduct("p1", "Butter Chicken", "10.00"))
	svc := newTestService(st, nil)

	res, err := svc.Checkout(context.Background(), validRequest())
	require.NoError(t, err)

	assert.True(t, res.IsNewCustomer)
	assert.Equal(t, "jane@example.com", res.Customer.Email, "email is normalized")
	assert.Equal(t, "session-token", res.AuthToken)

	require.Len(t, st.orders, 1)
	o := st.orders[0]
	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, order.PaymentPending, o.PaymentStatus)
	assert.True(t, decimal.RequireFromString("20.00").Equal(o.Total))
	assert.NotEmpty(t, o.Number)

	require.Len(t, st.history, 1, "order placement is audited")
	assert.Equal(t, order.StatusPending, st.history[0].Status)

	saved := st.customersByEmail["jane@example.com"]
	assert.Equal(t, 1, saved.TotalOrders)
	assert.EqualValues(t, 20, saved.LoyaltyPoints)
}

func TestCheckout_ExistingCustomerContactRefresh(t *testing.T) {
	st := newMockStore(newTestProduct("p1", "Butter Chicken", "10.00"))
	st.customersByEmail["jane@example.com"] = &customer.Customer{
		ID:         "cust-1",
		Email:      "jane@example.com",
		FirstName:  "J",
		TotalSpent: decimal.Zero,
		Active:     true,
	}
	svc := newTestService(st, nil)

	req := validRequest()
	req.Customer.Password = "" // returning customers do not resubmit one
	req.ServiceType = order.ServiceDelivery
	req.DeliveryAddress = &customer.Address{Street: "12 Baker St", City: "Springfield"}

	res, err := svc.Checkout(context.Background(), req)
	require.NoError(t, err)

	assert.False(t, res.IsNewCustomer)
	assert.Equal(t, "cust-1", res.Customer.ID)

	saved := st.customersByEmail["jane@example.com"]
	assert.Equal(t, "Jane", saved.FirstName)
	assert.Equal(t, "12 Baker St", saved.DefaultAddress.Street, "delivery checkout refreshes default address")
	require.Len(t, st.orders, 1)
	assert.Equal(t, "12 Baker St", st.orders[0].DeliveryAddress.Street)
}

func TestCheckout_RepricesFromCatalogWithActiveOffer(t *testing.T) {
	p := newTestProduct("p1", "Butter Chicken", "10.00")
	p.OnOffer = true
	p.DiscountType = product.DiscountPercentage
	p.DiscountValue = decimal.NewFromInt(20)
	st := newMockStore(p)
	svc := newTestService(st, nil)

	res, err := svc.Checkout(context.Background(), validRequest())
	require.NoError(t, err)

	require.Len(t, res.Order.Items, 1)
	line := res.Order.Items[0]
	assert.True(t, decimal.RequireFromString("8.00").Equal(line.UnitPrice),
		"unit price snapshots the effective price, not the raw price")
	assert.True(t, decimal.RequireFromString("16.00").Equal(line.Subtotal))
	assert.True(t, decimal.RequireFromString("16.00").Equal(res.Order.Total))
	assert.EqualValues(t, 16, res.Customer.LoyaltyPoints)
}

func TestCheckout_BookingLeadTime(t *testing.T) {
	st := newMockStore(newTestProduct("p1", "Butter Chicken", "10.00"))
	svc := newTestService(st, nil)

	req := validRequest()
	req.BookingAt = testNow.Add(23 * time.Hour)
	_, err := svc.Checkout(context.Background(), req)

	var schedErr *SchedulingError
	require.ErrorAs(t, err, &schedErr)
	assert.Empty(t, st.orders, "nothing persists on a scheduling failure")

	req.BookingAt = testNow.Add(25 * time.Hour)
	_, err = svc.Checkout(context.Background(), req)
	require.NoError(t, err)
}

func TestCheckout_UnknownItemAbortsEverything(t *testing.T) {
	st := newMockStore(newTestProduct("p1", "Butter Chicken", "10.00"))
	svc := newTestService(st, nil)

	req := validRequest()
	req.Items = []CartItem{
		{ProductID: "p1", Quantity: 1},
		{ProductID: "ghost", Quantity: 1},
	}
	_, err := svc.Checkout(context.Background(), req)

	var itemErr *ItemError
	require.ErrorAs(t, err, &itemErr)
	assert.Equal(t, "ghost", itemErr.ProductID)

	assert.Empty(t, st.orders, "no partial order")
	assert.Zero(t, st.statsApplied, "no aggregate mutation")
	assert.Empty(t, st.customersByEmail, "customer write rolled back with the transaction")
}

func TestCheckout_UnavailableItemRejected(t *testing.T) {
	p := newTestProduct("p1", "Butter Chicken", "10.00")
	p.Available = false
	st := newMockStore(p)
	svc := newTestService(st, nil)

	_, err := svc.Checkout(context.Background(), validRequest())

	var itemErr *ItemError
	require.ErrorAs(t, err, &itemErr)
	assert.Equal(t, "not available", itemErr.Reason)
}

func TestCheckout_MinOrderQuantity(t *testing.T) {
	p := newTestProduct("p1", "Party Tray", "40.00")
	p.MinOrderQuantity = 3
	st := newMockStore(p)
	svc := newTestService(st, nil)

	req := validRequest()
	req.Items = []CartItem{{ProductID: "p1", Quantity: 2}}
	_, err := svc.Checkout(context.Background(), req)

	var itemErr *ItemError
	require.ErrorAs(t, err, &itemErr)

	req.Items = []CartItem{{ProductID: "p1", Quantity: 3}}
	_, err = svc.Checkout(context.Background(), req)
	require.NoError(t, err)
}

func TestCheckout_StructuralValidation(t *testing.T) {
	st := newMockStore(newTestProduct("p1", "Butter Chicken", "10.00"))
	svc := newTestService(st, nil)

	cases := []struct {
		name   string
		mutate func(*Request)
	}{
		{"empty items", func(r *Request) { r.Items = nil }},
		{"missing product id", func(r *Request) { r.Items = []CartItem{{Quantity: 1}} }},
		{"zero quantity", func(r *Request) { r.Items = []CartItem{{ProductID: "p1", Quantity: 0}} }},
		{"missing email", func(r *Request) { r.Customer.Email = "" }},
		{"missing first name", func(r *Request) { r.Customer.FirstName = "" }},
		{"missing phone", func(r *Request) { r.Customer.Phone = "" }},
		{"bad service type", func(r *Request) { r.ServiceType = "drone" }},
		{"delivery without address", func(r *Request) {
			r.ServiceType = order.ServiceDelivery
			r.DeliveryAddress = nil
		}},
		{"incomplete address", func(r *Request) {
			r.ServiceType = order.ServiceDelivery
			r.DeliveryAddress = &customer.Address{Street: "12 Baker St"}
		}},
		{"missing booking date", func(r *Request) { r.BookingAt = time.Time{} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(&req)

			_, err := svc.Checkout(context.Background(), req)

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Empty(t, st.orders)
		})
	}
}

func TestCheckout_NewCustomerNeedsPassword(t *testing.T) {
	st := newMockStore(newTestProduct("p1", "Butter Chicken", "10.00"))
	svc := newTestService(st, nil)

	req := validRequest()
	req.Customer.Password = "short"
	_, err := svc.Checkout(context.Background(), req)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "password", vErr.Field)
	assert.Empty(t, st.customersByEmail)
}

func TestCheckout_CustomerCreateFailure(t *testing.T) {
	st := newMockStore(newTestProduct("p1", "Butter Chicken", "10.00"))
	st.createCustErr = errors.New("unique violation")
	svc := newTestService(st, nil)

	_, err := svc.Checkout(context.Background(), validRequest())

	var custErr *CustomerError
	require.ErrorAs(t, err, &custErr)
	assert.Empty(t, st.orders, "no order without a customer")
}

func TestCheckout_OrderCreateFailureRollsBack(t *testing.T) {
	st := newMockStore(newTestProduct("p1", "Butter Chicken", "10.00"))
	st.createOrderErr = errors.New("db write failed")
	svc := newTestService(st, nil)

	_, err := svc.Checkout(context.Background(), validRequest())
	require.Error(t, err)
	assert.Empty(t, st.customersByEmail, "customer creation rolled back")
	assert.Zero(t, st.statsApplied)
}

func TestCheckout_StatsFailureRollsBackOrder(t *testing.T) {
	st := newMockStore(newTestProduct("p1", "Butter Chicken", "10.00"))
	st.statsErr = errors.New("db write failed")
	svc := newTestService(st, nil)

	_, err := svc.Checkout(context.Background(), validRequest())
	require.Error(t, err)
	assert.Empty(t, st.orders, "aggregate failure rolls the order back too")
}

func TestCheckout_TokenFailureDegradesSilently(t *testing.T) {
	st := newMockStore(newTestProduct("p1", "Butter Chicken", "10.00"))
	svc := newTestService(st, &mockTokens{err: errors.New("signer down")})

	res, err := svc.Checkout(context.Background(), validRequest())
	require.NoError(t, err, "the committed order wins over the session")
	assert.Empty(t, res.AuthToken)
	assert.Len(t, st.orders, 1)
}

func TestCheckout_NoIdempotencyDedup(t *testing.T) {
	// Resubmitting an identical payload intentionally creates a second
	// order: there is no fingerprint key to dedup on.
	st := newMockStore(newTestProduct("p1", "Butter Chicken", "10.00"))
	svc := newTestService(st, nil)

	first, err := svc.Checkout(context.Background(), validRequest())
	require.NoError(t, err)
	second, err := svc.Checkout(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Len(t, st.orders, 2)
	assert.NotEqual(t, first.Order.Number, second.Order.Number)
}

func TestCheckout_AggregatesAcrossOrders(t *testing.T) {
	st := newMockStore(
		newTestProduct("p1", "Butter Chicken", "10.50"),
		newTestProduct("p2", "Garlic Naan", "3.25"),
	)
	svc := newTestService(st, nil)

	// 2x10.50 = 21.00, then 3x3.25 = 9.75.
	req := validRequest()
	_, err := svc.Checkout(context.Background(), req)
	require.NoError(t, err)

	req.Items = []CartItem{{ProductID: "p2", Quantity: 3}}
	req.Customer.Password = ""
	_, err = svc.Checkout(context.Background(), req)
	require.NoError(t, err)

	saved := st.customersByEmail["jane@example.com"]
	assert.Equal(t, 2, saved.TotalOrders)
	assert.True(t, decimal.RequireFromString("30.75").Equal(saved.TotalSpent))
	// floor(21.00) + floor(9.75) = 21 + 9.
	assert.EqualValues(t, 30, saved.LoyaltyPoints)
	require.NotNil(t, saved.LastOrderAt)
}
