package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/mk-uidev/flavorforge/internal/domain/order"
)

const (
	orderCols = `id, number, customer_id, items, total, status, service_type,
		booking_at, delivery_address, payment_status, customer_notes,
		admin_notes, created_at`

	createOrderSQL = `INSERT INTO orders
		(id, number, customer_id, items, total, status, service_type,
		 booking_at, delivery_address, payment_status, customer_notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	getOrderByNumberSQL = `SELECT ` + orderCols + `
		FROM orders WHERE number = $1`

	getOrderByIDSQL = `SELECT ` + orderCols + `
		FROM orders WHERE id = $1`

	updateOrderStatusSQL = `UPDATE orders SET status = $2 WHERE id = $1`

	appendCustomerNotesSQL = `UPDATE orders
		SET customer_notes = CASE
			WHEN customer_notes = '' THEN $2
			ELSE customer_notes || E'\n' || $2
		END
		WHERE id = $1`

	setAdminNotesSQL = `UPDATE orders SET admin_notes = $2 WHERE id = $1`

	appendHistorySQL = `INSERT INTO order_status_history
		(id, order_id, status, changed_by, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	historyForOrderSQL = `SELECT id, order_id, status, changed_by, notes, created_at
		FROM order_status_history WHERE order_id = $1 ORDER BY created_at, id`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order persistence backed by PostgreSQL. Order
// lines live in a JSONB column since they are immutable once placed and are
// always read with their order.
type OrderRepository struct {
	db DB
}

// NewOrderRepository returns an OrderRepository bound to the given DB.
func NewOrderRepository(db DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create persists a new order with its serialized line items.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}
	addr, err := marshalAddress(o.DeliveryAddress)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, createOrderSQL,
		o.ID, o.Number, o.CustomerID, items, o.Total, o.Status, o.ServiceType,
		o.BookingAt, addr, o.PaymentStatus, o.CustomerNotes, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.Number, err)
	}
	return nil
}

// ByNumber returns an order by its human-readable number.
func (r *OrderRepository) ByNumber(ctx context.Context, number string) (*order.Order, error) {
	return r.getOne(ctx, getOrderByNumberSQL, number)
}

// ByID returns an order by its identifier.
func (r *OrderRepository) ByID(ctx context.Context, id string) (*order.Order, error) {
	return r.getOne(ctx, getOrderByIDSQL, id)
}

func (r *OrderRepository) getOne(ctx context.Context, sql string, arg any) (*order.Order, error) {
	rows, err := r.db.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("querying order: %w", err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("scanning order: %w", err)
	}
	return &o, nil
}

// List returns a page of orders matching the filter, newest first, along
// with the total match count for pagination.
func (r *OrderRepository) List(ctx context.Context, f order.ListFilter) ([]order.Order, int, error) {
	conds := make([]string, 0, 2)
	args := make([]any, 0, 4)
	if f.CustomerID != "" {
		args = append(args, f.CustomerID)
		conds = append(conds, fmt.Sprintf("customer_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT count(*) FROM orders"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting orders: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	args = append(args, limit, (page-1)*limit)
	query := fmt.Sprintf("SELECT %s FROM orders%s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d",
		orderCols, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, 0, fmt.Errorf("scanning orders: %w", err)
	}
	return orders, total, nil
}

// UpdateStatus sets the order status. Transition legality is the caller's
// responsibility.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status) error {
	return r.execOne(ctx, updateOrderStatusSQL, id, status)
}

// AppendCustomerNotes adds a line to the order's customer notes.
func (r *OrderRepository) AppendCustomerNotes(ctx context.Context, id, notes string) error {
	return r.execOne(ctx, appendCustomerNotesSQL, id, notes)
}

// SetAdminNotes replaces the order's admin notes.
func (r *OrderRepository) SetAdminNotes(ctx context.Context, id, notes string) error {
	return r.execOne(ctx, setAdminNotesSQL, id, notes)
}

func (r *OrderRepository) execOne(ctx context.Context, sql, id string, args ...any) error {
	tag, err := r.db.Exec(ctx, sql, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("updating order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// AppendHistory inserts one audit record for a status transition.
func (r *OrderRepository) AppendHistory(ctx context.Context, e *order.HistoryEntry) error {
	_, err := r.db.Exec(ctx, appendHistorySQL,
		e.ID, e.OrderID, e.Status, e.ChangedBy, e.Notes, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("appending order history for %q: %w", e.OrderID, err)
	}
	return nil
}

// HistoryFor returns the audit trail for an order, oldest first.
func (r *OrderRepository) HistoryFor(ctx context.Context, orderID string) ([]order.HistoryEntry, error) {
	rows, err := r.db.Query(ctx, historyForOrderSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing order history for %q: %w", orderID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.HistoryEntry, error) {
		var e order.HistoryEntry
		err := row.Scan(&e.ID, &e.OrderID, &e.Status, &e.ChangedBy, &e.Notes, &e.CreatedAt)
		return e, err
	})
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var o order.Order
	err := row.Scan(
		&o.ID, &o.Number, &o.CustomerID, &o.Items, &o.Total, &o.Status,
		&o.ServiceType, &o.BookingAt, &o.DeliveryAddress, &o.PaymentStatus,
		&o.CustomerNotes, &o.AdminNotes, &o.CreatedAt,
	)
	return o, err
}
