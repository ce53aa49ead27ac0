// Package checkout implements the order-composition workflow: repricing the
// untrusted cart from the catalog, resolving the customer, persisting the
// order, and updating customer aggregates, all inside one transaction.
package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mk-uidev/flavorforge/internal/domain/customer"
	"github.com/mk-uidev/flavorforge/internal/domain/order"
	"github.com/mk-uidev/flavorforge/internal/domain/product"
)

// MinLeadTime is the minimum interval between placing an order and the
// requested booking time.
const MinLeadTime = 24 * time.Hour

// CartItem is one untrusted cart line. Any client-claimed price is discarded;
// quantity is the only client input that survives repricing.
type CartItem struct {
	ProductID string
	Quantity  int
}

// CustomerInfo is the contact block submitted with a checkout. Password is
// required only when no account exists for the email yet.
type CustomerInfo struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

// Request is a checkout submission.
type Request struct {
	Items           []CartItem
	Customer        CustomerInfo
	ServiceType     order.ServiceType
	DeliveryAddress *customer.Address
	BookingAt       time.Time
	CustomerNotes   string
}

// Result is a successful checkout: the persisted order, the resolved
// customer, and an optional session token. AuthToken is empty when session
// issuance failed; the order itself is still committed.
type Result struct {
	Order         *order.Order
	Customer      *customer.Customer
	IsNewCustomer bool
	AuthToken     string
}

// Store defines the persistence operations the checkout saga needs. All of
// them run inside a single transaction supplied by a TxStore.
type Store interface {
	FindCustomerByEmail(ctx context.Context, email string) (*customer.Customer, error)
	CreateCustomer(ctx context.Context, c *customer.Customer) error
	UpdateCustomerContact(ctx context.Context, id string, upd customer.ContactUpdate) error
	ProductsByIDs(ctx context.Context, ids []string) ([]product.Product, error)
	CreateOrder(ctx context.Context, o *order.Order) error
	AppendHistory(ctx context.Context, e *order.HistoryEntry) error
	ApplyOrderStats(ctx context.Context, customerID string, total decimal.Decimal, points int64, at time.Time) error
}

// TxStore runs a function against a Store bound to a single transaction.
type TxStore interface {
	Store
	InTx(ctx context.Context, fn func(Store) error) error
}

// TokenIssuer mints a session credential for the checkout customer.
type TokenIssuer interface {
	Issue(customerID, email string) (string, error)
}

// Service orchestrates the checkout workflow.
type Service struct {
	store  TxStore
	tokens TokenIssuer
	lg     *zap.Logger
	now    func() time.Time
}

// NewService creates a checkout Service.
func NewService(store TxStore, tokens TokenIssuer, lg *zap.Logger) *Service {
	return &Service{
		store:  store,
		tokens: tokens,
		lg:     lg,
		now:    time.Now,
	}
}

// Checkout runs the full workflow. The customer upsert, order insert, history
// append, and aggregate update commit together or not at all; a failure on
// any line leaves no partial order and no aggregate drift. Session issuance
// happens after commit and degrades silently on failure.
func (s *Service) Checkout(ctx context.Context, req Request) (*Result, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	now := s.now()

	// Booking lead time is pure input validation; check it before touching
	// the database at all.
	if req.BookingAt.Sub(now) < MinLeadTime {
		return nil, &SchedulingError{BookingAt: req.BookingAt, MinLead: MinLeadTime}
	}

	result := &Result{}
	err := s.store.InTx(ctx, func(st Store) error {
		cust, isNew, err := s.resolveCustomer(ctx, st, req)
		if err != nil {
			return err
		}

		items, total, err := s.priceItems(ctx, st, req.Items, now)
		if err != nil {
			return err
		}

		o := &order.Order{
			ID:            uuid.New().String(),
			Number:        order.NewNumber(now),
			CustomerID:    cust.ID,
			Items:         items,
			Total:         total,
			Status:        order.StatusPending,
			ServiceType:   req.ServiceType,
			BookingAt:     req.BookingAt,
			PaymentStatus: order.PaymentPending,
			CustomerNotes: req.CustomerNotes,
			CreatedAt:     now,
		}
		if req.ServiceType == order.ServiceDelivery {
			o.DeliveryAddress = req.DeliveryAddress
		}
		if err := st.CreateOrder(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}
		if err := st.AppendHistory(ctx, &order.HistoryEntry{
			ID:        uuid.New().String(),
			OrderID:   o.ID,
			Status:    order.StatusPending,
			Notes:     "order placed",
			CreatedAt: now,
		}); err != nil {
			return errors.Wrap(err, "append history")
		}

		points := customer.LoyaltyPointsFor(total)
		if err := st.ApplyOrderStats(ctx, cust.ID, total, points, now); err != nil {
			return errors.Wrap(err, "apply order stats")
		}
		cust.TotalOrders++
		cust.TotalSpent = cust.TotalSpent.Add(total)
		cust.LoyaltyPoints += points
		cust.LastOrderAt = &now

		result.Order = o
		result.Customer = cust
		result.IsNewCustomer = isNew
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The order is committed; a token failure only degrades the response.
	token, err := s.tokens.Issue(result.Customer.ID, result.Customer.Email)
	if err != nil {
		s.lg.Warn("session issuance failed after checkout",
			zap.String("order_number", result.Order.Number),
			zap.Error(err),
		)
	} else {
		result.AuthToken = token
	}
	return result, nil
}

// resolveCustomer matches the checkout email to an existing account, updating
// its contact fields, or creates a fresh account when none exists.
func (s *Service) resolveCustomer(ctx context.Context, st Store, req Request) (*customer.Customer, bool, error) {
	email := customer.NormalizeEmail(req.Customer.Email)

	cust, err := st.FindCustomerByEmail(ctx, email)
	switch {
	case err == nil:
		upd := customer.ContactUpdate{
			FirstName: req.Customer.FirstName,
			LastName:  req.Customer.LastName,
			Phone:     req.Customer.Phone,
		}
		if req.ServiceType == order.ServiceDelivery {
			upd.DefaultAddress = req.DeliveryAddress
		}
		if err := st.UpdateCustomerContact(ctx, cust.ID, upd); err != nil {
			return nil, false, &CustomerError{Op: "update", Err: err}
		}
		cust.FirstName = upd.FirstName
		cust.LastName = upd.LastName
		cust.Phone = upd.Phone
		if upd.DefaultAddress != nil {
			cust.DefaultAddress = upd.DefaultAddress
		}
		return cust, false, nil

	case errors.Is(err, customer.ErrNotFound):
		if len(req.Customer.Password) < customer.MinPasswordLength {
			return nil, false, &ValidationError{Field: "password", Reason: "required for new accounts, at least 6 characters"}
		}
		hash, err := customer.HashPassword(req.Customer.Password)
		if err != nil {
			return nil, false, &CustomerError{Op: "create", Err: err}
		}
		fresh := &customer.Customer{
			ID:           uuid.New().String(),
			Email:        email,
			PasswordHash: hash,
			FirstName:    req.Customer.FirstName,
			LastName:     req.Customer.LastName,
			Phone:        req.Customer.Phone,
			TotalSpent:   decimal.Zero,
			Active:       true,
			CreatedAt:    s.now(),
		}
		if req.ServiceType == order.ServiceDelivery {
			fresh.DefaultAddress = req.DeliveryAddress
		}
		if err := st.CreateCustomer(ctx, fresh); err != nil {
			return nil, false, &CustomerError{Op: "create", Err: err}
		}
		return fresh, true, nil

	default:
		return nil, false, &CustomerError{Op: "lookup", Err: err}
	}
}

// priceItems reprices every cart line from the catalog. The unit price is the
// offer evaluator's effective price at checkout time, snapshotted into the
// line so later catalog changes never alter what was charged.
func (s *Service) priceItems(ctx context.Context, st Store, cart []CartItem, now time.Time) ([]order.Item, decimal.Decimal, error) {
	ids := make([]string, len(cart))
	for i, line := range cart {
		ids[i] = line.ProductID
	}

	fetched, err := st.ProductsByIDs(ctx, ids)
	if err != nil {
		return nil, decimal.Zero, errors.Wrap(err, "get products")
	}
	byID := make(map[string]*product.Product, len(fetched))
	for i := range fetched {
		byID[fetched[i].ID] = &fetched[i]
	}

	items := make([]order.Item, len(cart))
	total := decimal.Zero
	for i, line := range cart {
		p, ok := byID[line.ProductID]
		if !ok {
			return nil, decimal.Zero, &ItemError{ProductID: line.ProductID, Reason: "not found"}
		}
		if !p.Available {
			return nil, decimal.Zero, &ItemError{ProductID: line.ProductID, Reason: "not available"}
		}
		if p.MinOrderQuantity > 1 && line.Quantity < p.MinOrderQuantity {
			return nil, decimal.Zero, &ItemError{
				ProductID: line.ProductID,
				Reason:    errors.Errorf("minimum order quantity is %d", p.MinOrderQuantity).Error(),
			}
		}

		unit := product.EffectivePrice(p, now)
		subtotal := unit.Mul(decimal.NewFromInt(int64(line.Quantity))).Round(2)
		items[i] = order.Item{
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  line.Quantity,
			UnitPrice: unit,
			Subtotal:  subtotal,
		}
		total = total.Add(subtotal)
	}
	return items, total.Round(2), nil
}

func validate(req Request) error {
	if len(req.Items) == 0 {
		return &ValidationError{Field: "items", Reason: "at least one item is required"}
	}
	for _, line := range req.Items {
		if line.ProductID == "" {
			return &ValidationError{Field: "items", Reason: "item is missing a product id"}
		}
		if line.Quantity < 1 {
			return &ValidationError{Field: "items", Reason: "quantity must be at least 1"}
		}
	}
	if req.Customer.Email == "" {
		return &ValidationError{Field: "customerInfo.email", Reason: "required"}
	}
	if req.Customer.FirstName == "" {
		return &ValidationError{Field: "customerInfo.firstName", Reason: "required"}
	}
	if req.Customer.Phone == "" {
		return &ValidationError{Field: "customerInfo.phone", Reason: "required"}
	}
	if !req.ServiceType.Valid() {
		return &ValidationError{Field: "serviceType", Reason: "must be delivery or pickup"}
	}
	if req.ServiceType == order.ServiceDelivery && !req.DeliveryAddress.Complete() {
		return &ValidationError{Field: "deliveryAddress", Reason: "street and city are required for delivery"}
	}
	if req.BookingAt.IsZero() {
		return &ValidationError{Field: "bookingDate", Reason: "required"}
	}
	return nil
}
