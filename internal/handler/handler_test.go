package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mk-uidev/flavorforge/internal/domain/auth"
	"github.com/mk-uidev/flavorforge/internal/domain/checkout"
	"github.com/mk-uidev/flavorforge/internal/domain/customer"
	"github.com/mk-uidev/flavorforge/internal/domain/order"
	"github.com/mk-uidev/flavorforge/internal/domain/product"
	"github.com/mk-uidev/flavorforge/internal/domain/store"
)

// --- Fake persistence ---

type fakeStore struct {
	products   []product.Product
	categories []product.Category
	customers  map[string]*customer.Customer
	byEmail    map[string]string
	orders     map[string]*order.Order
	byNumber   map[string]string
	history    []order.HistoryEntry

	createOrderErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		customers: make(map[string]*customer.Customer),
		byEmail:   make(map[string]string),
		orders:    make(map[string]*order.Order),
		byNumber:  make(map[string]string),
	}
}

func (f *fakeStore) List(_ context.Context) ([]product.Product, error) {
	return f.products, nil
}

func (f *fakeStore) GetByID(_ context.Context, id string) (*product.Product, error) {
	for i := range f.products {
		if f.products[i].ID == id {
			return &f.products[i], nil
		}
	}
	return nil, product.ErrNotFound
}

func (f *fakeStore) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		for i := range f.products {
			if f.products[i].ID == id {
				out = append(out, f.products[i])
			}
		}
	}
	return out, nil
}

func (f *fakeStore) ListCategories(_ context.Context) ([]product.Category, error) {
	return f.categories, nil
}

func (f *fakeStore) FindByEmail(_ context.Context, email string) (*customer.Customer, error) {
	id, ok := f.byEmail[email]
	if !ok {
		return nil, customer.ErrNotFound
	}
	return f.customers[id], nil
}

func (f *fakeStore) GetByIDCustomer(_ context.Context, id string) (*customer.Customer, error) {
	c, ok := f.customers[id]
	if !ok {
		return nil, customer.ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) CreateCustomer(_ context.Context, c *customer.Customer) error {
	if _, taken := f.byEmail[c.Email]; taken {
		return customer.ErrEmailTaken
	}
	cp := *c
	f.customers[c.ID] = &cp
	f.byEmail[c.Email] = c.ID
	return nil
}

func (f *fakeStore) UpdateContact(_ context.Context, id string, upd customer.ContactUpdate) error {
	c, ok := f.customers[id]
	if !ok {
		return customer.ErrNotFound
	}
	c.FirstName, c.LastName, c.Phone = upd.FirstName, upd.LastName, upd.Phone
	if upd.DefaultAddress != nil {
		c.DefaultAddress = upd.DefaultAddress
	}
	return nil
}

func (f *fakeStore) ApplyOrderStats(_ context.Context, id string, total decimal.Decimal, points int64, at time.Time) error {
	c, ok := f.customers[id]
	if !ok {
		return customer.ErrNotFound
	}
	c.TotalOrders++
	c.TotalSpent = c.TotalSpent.Add(total)
	c.LoyaltyPoints += points
	c.LastOrderAt = &at
	return nil
}

func (f *fakeStore) CreateOrder(_ context.Context, o *order.Order) error {
	if f.createOrderErr != nil {
		return f.createOrderErr
	}
	cp := *o
	f.orders[o.ID] = &cp
	f.byNumber[o.Number] = o.ID
	return nil
}

func (f *fakeStore) ByNumber(_ context.Context, number string) (*order.Order, error) {
	id, ok := f.byNumber[number]
	if !ok {
		return nil, order.ErrNotFound
	}
	return f.orders[id], nil
}

func (f *fakeStore) ByID(_ context.Context, id string) (*order.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o, nil
}

func (f *fakeStore) HistoryFor(_ context.Context, orderID string) ([]order.HistoryEntry, error) {
	var out []order.HistoryEntry
	for _, e := range f.history {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, id string, status order.Status) error {
	o, ok := f.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	o.Status = status
	return nil
}

func (f *fakeStore) AppendCustomerNotes(_ context.Context, id, notes string) error {
	o, ok := f.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	if o.CustomerNotes == "" {
		o.CustomerNotes = notes
	} else {
		o.CustomerNotes += "\n" + notes
	}
	return nil
}

func (f *fakeStore) SetAdminNotes(_ context.Context, id, notes string) error {
	o, ok := f.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	o.AdminNotes = notes
	return nil
}

func (f *fakeStore) AppendHistory(_ context.Context, e *order.HistoryEntry) error {
	f.history = append(f.history, *e)
	return nil
}

type checkoutFake struct{ *fakeStore }

func (s checkoutFake) FindCustomerByEmail(ctx context.Context, email string) (*customer.Customer, error) {
	return s.FindByEmail(ctx, email)
}

func (s checkoutFake) UpdateCustomerContact(ctx context.Context, id string, upd customer.ContactUpdate) error {
	return s.UpdateContact(ctx, id, upd)
}

func (s checkoutFake) ProductsByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	return s.GetByIDs(ctx, ids)
}

func (s checkoutFake) InTx(_ context.Context, fn func(checkout.Store) error) error {
	return fn(s)
}

type orderFake struct{ *fakeStore }

func (s orderFake) InTx(_ context.Context, fn func(order.Store) error) error {
	return fn(s)
}

func (s orderFake) List(_ context.Context, f order.ListFilter) ([]order.Order, int, error) {
	var all []order.Order
	for _, o := range s.orders {
		if f.CustomerID != "" && o.CustomerID != f.CustomerID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		all = append(all, *o)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return all, len(all), nil
}

type customerRepoFake struct{ *fakeStore }

func (s customerRepoFake) GetByID(ctx context.Context, id string) (*customer.Customer, error) {
	return s.GetByIDCustomer(ctx, id)
}

func (s customerRepoFake) Create(ctx context.Context, c *customer.Customer) error {
	return s.CreateCustomer(ctx, c)
}

type configRepoFake struct {
	cfg   *store.Config
	calls int
}

func (f *configRepoFake) Get(_ context.Context) (*store.Config, error) {
	f.calls++
	return f.cfg, nil
}

type keyRepoFake struct {
	byHash map[string]*auth.APIKeyInfo
}

func (f *keyRepoFake) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	info, ok := f.byHash[hash]
	if !ok {
		return nil, auth.ErrUnauthorized
	}
	return info, nil
}

// --- Fixture ---

const (
	testAdminKey = "test-admin-key"
	testPepper   = "pepper"
)

type fixture struct {
	store  *fakeStore
	config *configRepoFake
	tokens *auth.TokenIssuer
	router http.Handler
	cache  *store.ConfigCache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	fs := newFakeStore()
	fs.products = []product.Product{
		{ID: "burger", Name: "Classic Burger", Price: decimal.NewFromInt(10), Available: true, MinOrderQuantity: 1,
			OnOffer: true, DiscountType: product.DiscountPercentage, DiscountValue: decimal.NewFromInt(20)},
		{ID: "fries", Name: "Fries", Price: decimal.RequireFromString("3.50"), Available: true, MinOrderQuantity: 1},
	}
	fs.categories = []product.Category{{ID: "mains", Name: "Mains", ItemCount: 2}}

	cfgRepo := &configRepoFake{cfg: &store.Config{
		Currency:       "USD",
		CurrencySymbol: "$",
		TaxRate:        decimal.NewFromInt(10),
		MinOrderAmount: decimal.NewFromInt(5),
		Delivery: store.DeliveryOptions{
			Enabled:       true,
			Fee:           decimal.NewFromInt(1),
			FreeThreshold: decimal.NewFromInt(50),
		},
		Pickup: store.PickupOptions{Enabled: true},
		Hours:  store.OperatingHours{OpenTime: "00:00", CloseTime: "23:59"},
	}}

	tokens, err := auth.NewTokenIssuer([]byte("test-secret"), time.Hour)
	require.NoError(t, err)

	keys := &keyRepoFake{byHash: map[string]*auth.APIKeyInfo{}}
	hash := auth.HashKey(testAdminKey, []byte(testPepper))
	keys.byHash[hash] = &auth.APIKeyInfo{ID: "key-1", KeyHash: hash, Name: "ops"}

	cache := store.NewConfigCache(cfgRepo, time.Minute)
	h := NewHandler(
		checkout.NewService(checkoutFake{fs}, tokens, zap.NewNop()),
		order.NewService(orderFake{fs}),
		orderFake{fs},
		fs,
		fs,
		customer.NewService(customerRepoFake{fs}, tokens),
		cache,
		auth.NewAPIKeyVerifier(keys, []byte(testPepper)),
		tokens,
	)

	return &fixture{store: fs, config: cfgRepo, tokens: tokens, router: h.Router(), cache: cache}
}

func (f *fixture) do(t *testing.T, method, path string, body any, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func validCheckout() map[string]any {
	return map[string]any{
		"items": []map[string]any{
			{"productId": "burger", "quantity": 2},
		},
		"customerInfo": map[string]any{
			"email":     "jo@example.com",
			"password":  "sekret1",
			"firstName": "Jo",
			"lastName":  "Nakamura",
			"phone":     "555-0101",
		},
		"serviceType": "pickup",
		"bookingDate": time.Now().Add(48 * time.Hour).Format(time.RFC3339),
	}
}

func (f *fixture) placeOrder(t *testing.T) (orderNumber, customerID, token string) {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/checkout", validCheckout(), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	ord := body["order"].(map[string]any)
	cust := body["customer"].(map[string]any)
	token, _ = body["authToken"].(string)
	return ord["orderNumber"].(string), cust["id"].(string), token
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func adminHeader() map[string]string {
	return map[string]string{APIKeyHeader: testAdminKey}
}

// --- Checkout ---

func TestCheckoutCreatesOrderAndSession(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/checkout", validCheckout(), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])

	ord := body["order"].(map[string]any)
	// Two burgers at the 20%-off effective price of 8.00 each.
	assert.InDelta(t, 16.0, ord["totalAmount"], 0.001)
	assert.Equal(t, "pending", ord["status"])
	assert.NotEmpty(t, ord["orderNumber"])

	cust := body["customer"].(map[string]any)
	assert.Equal(t, true, cust["isNewCustomer"])
	assert.Equal(t, "jo@example.com", cust["email"])

	token := body["authToken"].(string)
	claims, err := f.tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, cust["id"], claims.CustomerID)

	pricing := body["pricing"].(map[string]any)
	assert.InDelta(t, 0.0, pricing["deliveryFee"], 0.001)
	assert.InDelta(t, 1.60, pricing["tax"], 0.001)
}

func TestCheckoutRejectsMalformedBody(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/checkout", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
}

func TestCheckoutUnknownProduct(t *testing.T) {
	f := newFixture(t)

	payload := validCheckout()
	payload["items"] = []map[string]any{{"productId": "ghost", "quantity": 1}}
	rec := f.do(t, http.MethodPost, "/api/checkout", payload, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Contains(t, body["error"], "ghost")
	assert.Empty(t, f.store.orders)
}

func TestCheckoutShortLeadTime(t *testing.T) {
	f := newFixture(t)

	payload := validCheckout()
	payload["bookingDate"] = time.Now().Add(23 * time.Hour).Format(time.RFC3339)
	rec := f.do(t, http.MethodPost, "/api/checkout", payload, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.store.orders)
}

func TestCheckoutStoreFailureIsOpaque(t *testing.T) {
	f := newFixture(t)
	f.store.createOrderErr = fmt.Errorf("pq: relation orders does not exist")

	rec := f.do(t, http.MethodPost, "/api/checkout", validCheckout(), nil)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "internal server error", body["error"])
	assert.NotContains(t, body["error"], "pq:")
}

// --- Sessions ---

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/customers/register", map[string]any{
		"email":     "New@Example.com",
		"password":  "hunter22",
		"firstName": "Ada",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	user := body["user"].(map[string]any)
	assert.Equal(t, "new@example.com", user["email"])
	assert.NotEmpty(t, body["token"])

	rec = f.do(t, http.MethodPost, "/api/customers/login", map[string]any{
		"email":    "new@example.com",
		"password": "hunter22",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/customers/login", map[string]any{
		"email":    "new@example.com",
		"password": "wrong",
	}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid email or password", decodeBody(t, rec)["error"])
}

func TestLoginUnknownAccountLooksLikeBadPassword(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/customers/login", map[string]any{
		"email":    "nobody@example.com",
		"password": "whatever",
	}, nil)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid email or password", decodeBody(t, rec)["error"])
}

// --- Orders ---

func TestGetOrderByNumberAsOwner(t *testing.T) {
	f := newFixture(t)
	number, _, token := f.placeOrder(t)

	rec := f.do(t, http.MethodGet, "/api/orders?orderNumber="+number, nil, bearer(token))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	history := body["history"].([]any)
	require.Len(t, history, 1)
	first := history[0].(map[string]any)
	assert.Equal(t, "pending", first["status"])
}

func TestGetOrderByNumberForeignCustomerIsAMiss(t *testing.T) {
	f := newFixture(t)
	number, _, _ := f.placeOrder(t)

	other, err := f.tokens.Issue("someone-else", "other@example.com")
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/api/orders?orderNumber="+number, nil, bearer(other))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListOrdersRequiresIdentity(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/orders", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCustomerOrderHistory(t *testing.T) {
	f := newFixture(t)
	first, customerID, token := f.placeOrder(t)
	second, _, _ := f.placeOrder(t)
	assert.NotEqual(t, first, second)

	rec := f.do(t, http.MethodGet, "/api/orders/customer?customerId="+customerID, nil, bearer(token))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.EqualValues(t, 2, body["total"])
	assert.Len(t, body["orders"].([]any), 2)
}

func TestAdminStatusUpdateAppendsHistory(t *testing.T) {
	f := newFixture(t)
	number, _, _ := f.placeOrder(t)

	rec := f.do(t, http.MethodPatch, "/api/orders", map[string]any{
		"orderNumber": number,
		"status":      "confirmed",
		"adminNotes":  "called the kitchen",
	}, adminHeader())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	ord := body["order"].(map[string]any)
	assert.Equal(t, "confirmed", ord["status"])

	require.Len(t, f.store.history, 2)
	assert.Equal(t, "ops", f.store.history[1].ChangedBy)
}

func TestStatusUpdateWithoutKeyIsRejected(t *testing.T) {
	f := newFixture(t)
	number, _, _ := f.placeOrder(t)

	rec := f.do(t, http.MethodPatch, "/api/orders", map[string]any{
		"orderNumber": number,
		"status":      "confirmed",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPatch, "/api/orders", map[string]any{
		"orderNumber": number,
		"status":      "confirmed",
	}, map[string]string{APIKeyHeader: "bogus"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCancelPendingOrder(t *testing.T) {
	f := newFixture(t)
	number, customerID, token := f.placeOrder(t)

	rec := f.do(t, http.MethodGet,
		"/api/orders/cancel?orderNumber="+number+"&customerId="+customerID, nil, bearer(token))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["eligible"])

	rec = f.do(t, http.MethodPost, "/api/orders/cancel", map[string]any{
		"orderNumber": number,
		"customerId":  customerID,
		"reason":      "changed my mind",
	}, bearer(token))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	ord := decodeBody(t, rec)["order"].(map[string]any)
	assert.Equal(t, "cancelled", ord["status"])
}

func TestCancelPreparingOrderRejected(t *testing.T) {
	f := newFixture(t)
	number, customerID, token := f.placeOrder(t)

	id := f.store.byNumber[number]
	f.store.orders[id].Status = order.StatusPreparing

	rec := f.do(t, http.MethodPost, "/api/orders/cancel", map[string]any{
		"orderNumber": number,
		"customerId":  customerID,
	}, bearer(token))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "preparing")
}

// --- Catalog ---

func TestListProductsDecoratesOfferPricing(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/products", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	products := decodeBody(t, rec)["products"].([]any)
	require.Len(t, products, 2)

	burger := products[0].(map[string]any)
	assert.Equal(t, "burger", burger["id"])
	assert.InDelta(t, 10.0, burger["price"], 0.001)
	assert.InDelta(t, 8.0, burger["effectivePrice"], 0.001)
	assert.InDelta(t, 2.0, burger["savings"], 0.001)

	fries := products[1].(map[string]any)
	assert.InDelta(t, 3.50, fries["effectivePrice"], 0.001)
	_, hasSavings := fries["savings"]
	assert.False(t, hasSavings)
}

func TestGetProductNotFound(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/products/ghost", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListCategories(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/categories", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	categories := decodeBody(t, rec)["categories"].([]any)
	require.Len(t, categories, 1)
	assert.Equal(t, "Mains", categories[0].(map[string]any)["name"])
}

// --- Store config ---

func TestStoreConfigIsCached(t *testing.T) {
	f := newFixture(t)

	for range 3 {
		rec := f.do(t, http.MethodGet, "/api/store-config", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, 1, f.config.calls)
}

func TestStoreConfigRefreshIsAdminOnly(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/store-config", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, f.config.calls)

	rec = f.do(t, http.MethodPost, "/api/store-config", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 1, f.config.calls)

	rec = f.do(t, http.MethodPost, "/api/store-config", nil, adminHeader())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, f.config.calls)
}

func TestUnknownRouteReturnsJSON(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["success"])
}
