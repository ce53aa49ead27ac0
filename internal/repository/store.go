package repository

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mk-uidev/flavorforge/internal/domain/checkout"
	"github.com/mk-uidev/flavorforge/internal/domain/customer"
	"github.com/mk-uidev/flavorforge/internal/domain/order"
	"github.com/mk-uidev/flavorforge/internal/domain/product"
)

// Store bundles all repositories over one DB binding. A Store created from a
// pool can open transactions; a Store created inside inTx is bound to that
// transaction and shares its visibility and fate.
type Store struct {
	pool *pgxpool.Pool

	Products  *ProductRepository
	Customers *CustomerRepository
	Orders    *OrderRepository
	Config    *StoreConfigRepository
	APIKeys   *APIKeyRepository
}

// NewStore creates a Store backed by the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	s := bindStore(pool)
	s.pool = pool
	return s
}

func bindStore(db DB) *Store {
	return &Store{
		Products:  &ProductRepository{db: db},
		Customers: &CustomerRepository{db: db},
		Orders:    &OrderRepository{db: db},
		Config:    &StoreConfigRepository{db: db},
		APIKeys:   &APIKeyRepository{db: db},
	}
}

// inTx runs fn against a Store bound to a single transaction. The transaction
// commits when fn returns nil and rolls back otherwise.
func (s *Store) inTx(ctx context.Context, fn func(*Store) error) error {
	if s.pool == nil {
		return errors.New("store is already bound to a transaction")
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(bindStore(tx))
	})
}

// CheckoutStore adapts a Store to the checkout workflow's transactional
// persistence interface.
type CheckoutStore struct {
	*Store
}

var _ checkout.TxStore = CheckoutStore{}

func (s CheckoutStore) FindCustomerByEmail(ctx context.Context, email string) (*customer.Customer, error) {
	return s.Customers.FindByEmail(ctx, email)
}

func (s CheckoutStore) CreateCustomer(ctx context.Context, c *customer.Customer) error {
	return s.Customers.Create(ctx, c)
}

func (s CheckoutStore) UpdateCustomerContact(ctx context.Context, id string, upd customer.ContactUpdate) error {
	return s.Customers.UpdateContact(ctx, id, upd)
}

func (s CheckoutStore) ProductsByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	return s.Products.GetByIDs(ctx, ids)
}

func (s CheckoutStore) CreateOrder(ctx context.Context, o *order.Order) error {
	return s.Orders.Create(ctx, o)
}

func (s CheckoutStore) AppendHistory(ctx context.Context, e *order.HistoryEntry) error {
	return s.Orders.AppendHistory(ctx, e)
}

func (s CheckoutStore) ApplyOrderStats(ctx context.Context, customerID string, total decimal.Decimal, points int64, at time.Time) error {
	return s.Customers.ApplyOrderStats(ctx, customerID, total, points, at)
}

// InTx implements checkout.TxStore.
func (s CheckoutStore) InTx(ctx context.Context, fn func(checkout.Store) error) error {
	return s.inTx(ctx, func(tx *Store) error {
		return fn(CheckoutStore{tx})
	})
}

// OrderStore adapts a Store to the order service's transactional persistence
// interface.
type OrderStore struct {
	*Store
}

var _ order.TxStore = OrderStore{}

func (s OrderStore) ByNumber(ctx context.Context, number string) (*order.Order, error) {
	return s.Orders.ByNumber(ctx, number)
}

func (s OrderStore) ByID(ctx context.Context, id string) (*order.Order, error) {
	return s.Orders.ByID(ctx, id)
}

func (s OrderStore) UpdateStatus(ctx context.Context, id string, status order.Status) error {
	return s.Orders.UpdateStatus(ctx, id, status)
}

func (s OrderStore) AppendCustomerNotes(ctx context.Context, id, notes string) error {
	return s.Orders.AppendCustomerNotes(ctx, id, notes)
}

func (s OrderStore) SetAdminNotes(ctx context.Context, id, notes string) error {
	return s.Orders.SetAdminNotes(ctx, id, notes)
}

func (s OrderStore) AppendHistory(ctx context.Context, e *order.HistoryEntry) error {
	return s.Orders.AppendHistory(ctx, e)
}

// InTx implements order.TxStore.
func (s OrderStore) InTx(ctx context.Context, fn func(order.Store) error) error {
	return s.inTx(ctx, func(tx *Store) error {
		return fn(OrderStore{tx})
	})
}
