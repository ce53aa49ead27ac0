package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/mk-uidev/flavorforge/internal/domain/customer"
)

const (
	customerCols = `id, email, password_hash, first_name, last_name, phone,
		default_address, total_orders, total_spent, loyalty_points,
		last_order_at, active, created_at`

	findCustomerByEmailSQL = `SELECT ` + customerCols + `
		FROM customers WHERE email = $1`

	getCustomerByIDSQL = `SELECT ` + customerCols + `
		FROM customers WHERE id = $1`

	createCustomerSQL = `INSERT INTO customers
		(id, email, password_hash, first_name, last_name, phone, default_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	updateCustomerContactSQL = `UPDATE customers
		SET first_name = $2, last_name = $3, phone = $4,
			default_address = COALESCE($5, default_address)
		WHERE id = $1`

	applyOrderStatsSQL = `UPDATE customers
		SET total_orders = total_orders + 1,
			total_spent = total_spent + $2,
			loyalty_points = loyalty_points + $3,
			last_order_at = $4
		WHERE id = $1`
)

// uniqueViolation is the PostgreSQL error code for unique constraint breaches.
const uniqueViolation = "23505"

var _ customer.Repository = (*CustomerRepository)(nil)

// CustomerRepository implements customer.Repository backed by PostgreSQL.
type CustomerRepository struct {
	db DB
}

// NewCustomerRepository returns a CustomerRepository bound to the given DB.
func NewCustomerRepository(db DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// FindByEmail looks up a customer account by its normalized email.
func (r *CustomerRepository) FindByEmail(ctx context.Context, email string) (*customer.Customer, error) {
	return r.getOne(ctx, findCustomerByEmailSQL, email)
}

// GetByID looks up a customer account by its identifier.
func (r *CustomerRepository) GetByID(ctx context.Context, id string) (*customer.Customer, error) {
	return r.getOne(ctx, getCustomerByIDSQL, id)
}

func (r *CustomerRepository) getOne(ctx context.Context, sql string, arg any) (*customer.Customer, error) {
	rows, err := r.db.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("querying customer: %w", err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCustomer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrNotFound
		}
		return nil, fmt.Errorf("scanning customer: %w", err)
	}
	return &c, nil
}

// Create persists a new customer account. A duplicate email maps to
// customer.ErrEmailTaken so callers can surface a conflict.
func (r *CustomerRepository) Create(ctx context.Context, c *customer.Customer) error {
	addr, err := marshalAddress(c.DefaultAddress)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, createCustomerSQL,
		c.ID, c.Email, c.PasswordHash, c.FirstName, c.LastName, c.Phone,
		addr, c.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return customer.ErrEmailTaken
		}
		return fmt.Errorf("creating customer %q: %w", c.ID, err)
	}
	return nil
}

// UpdateContact refreshes the contact fields. The default address is only
// replaced when the update carries one.
func (r *CustomerRepository) UpdateContact(ctx context.Context, id string, upd customer.ContactUpdate) error {
	addr, err := marshalAddress(upd.DefaultAddress)
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, updateCustomerContactSQL,
		id, upd.FirstName, upd.LastName, upd.Phone, addr,
	)
	if err != nil {
		return fmt.Errorf("updating customer contact %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return customer.ErrNotFound
	}
	return nil
}

// ApplyOrderStats increments the order aggregates in a single UPDATE so
// concurrent checkouts for the same customer never lose an increment.
func (r *CustomerRepository) ApplyOrderStats(ctx context.Context, id string, total decimal.Decimal, points int64, at time.Time) error {
	tag, err := r.db.Exec(ctx, applyOrderStatsSQL, id, total, points, at)
	if err != nil {
		return fmt.Errorf("applying order stats for %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return customer.ErrNotFound
	}
	return nil
}

func scanCustomer(row pgx.CollectableRow) (customer.Customer, error) {
	var c customer.Customer
	err := row.Scan(
		&c.ID, &c.Email, &c.PasswordHash, &c.FirstName, &c.LastName, &c.Phone,
		&c.DefaultAddress, &c.TotalOrders, &c.TotalSpent, &c.LoyaltyPoints,
		&c.LastOrderAt, &c.Active, &c.CreatedAt,
	)
	return c, err
}

// marshalAddress serializes an address for a JSONB column. A nil address
// becomes SQL NULL.
func marshalAddress(a *customer.Address) ([]byte, error) {
	if a == nil {
		return nil, nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshaling address: %w", err)
	}
	return b, nil
}
