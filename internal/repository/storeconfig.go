package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/mk-uidev/flavorforge/internal/domain/store"
)

const getStoreConfigSQL = `SELECT currency, currency_symbol, tax_rate,
		min_order_amount, delivery, pickup, contact, hours, updated_at
	FROM store_config WHERE id = 1`

var _ store.Repository = (*StoreConfigRepository)(nil)

// StoreConfigRepository loads the store configuration singleton row.
type StoreConfigRepository struct {
	db DB
}

// NewStoreConfigRepository returns a StoreConfigRepository bound to the
// given DB.
func NewStoreConfigRepository(db DB) *StoreConfigRepository {
	return &StoreConfigRepository{db: db}
}

// Get returns the configuration singleton. A missing row maps to
// store.ErrNotConfigured.
func (r *StoreConfigRepository) Get(ctx context.Context) (*store.Config, error) {
	var cfg store.Config
	err := r.db.QueryRow(ctx, getStoreConfigSQL).Scan(
		&cfg.Currency, &cfg.CurrencySymbol, &cfg.TaxRate, &cfg.MinOrderAmount,
		&cfg.Delivery, &cfg.Pickup, &cfg.Contact, &cfg.Hours, &cfg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotConfigured
		}
		return nil, fmt.Errorf("loading store config: %w", err)
	}
	return &cfg, nil
}
