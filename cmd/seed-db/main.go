// Command seed-db applies migrations and loads a starter catalog, the store
// configuration singleton, and an admin API key into PostgreSQL.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mk-uidev/flavorforge/internal/domain/auth"
	"github.com/mk-uidev/flavorforge/internal/repository"
)

type categoryJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type productJSON struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	Price            decimal.Decimal `json:"price"`
	CategoryID       string          `json:"categoryId"`
	MinOrderQuantity int             `json:"minOrderQuantity"`
	Available        bool            `json:"available"`
	OnOffer          bool            `json:"onOffer"`
	DiscountType     string          `json:"discountType"`
	DiscountValue    decimal.Decimal `json:"discountValue"`
}

type storeConfigJSON struct {
	Currency       string          `json:"currency"`
	CurrencySymbol string          `json:"currencySymbol"`
	TaxRate        decimal.Decimal `json:"taxRate"`
	MinOrderAmount decimal.Decimal `json:"minOrderAmount"`
	Delivery       json.RawMessage `json:"delivery"`
	Pickup         json.RawMessage `json:"pickup"`
	Contact        json.RawMessage `json:"contact"`
	Hours          json.RawMessage `json:"hours"`
}

type seedFile struct {
	Categories []categoryJSON   `json:"categories"`
	Products   []productJSON    `json:"products"`
	Store      *storeConfigJSON `json:"store"`
}

func main() {
	var (
		databaseURL  string
		seedPath     string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedPath, "seed-file", "db/seed/storefront.json", "path to seed JSON file")
	flag.StringVar(&apiKey, "api-key", "", "admin API key to seed (or FORGE_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or FORGE_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("FORGE_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or FORGE_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("FORGE_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, seedPath, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, seedPath, apiKey, pepper string) error {
	slog.Info("reading seed file", slog.String("path", seedPath))

	data, err := os.ReadFile(seedPath)
	if err != nil {
		return errors.Wrap(err, "read seed file")
	}
	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return errors.Wrap(err, "parse seed JSON")
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedCategories(ctx, pool, seed.Categories); err != nil {
		return errors.Wrap(err, "seed categories")
	}
	if err := seedProducts(ctx, pool, seed.Products); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := recomputeItemCounts(ctx, pool); err != nil {
		return errors.Wrap(err, "recompute category counts")
	}
	if seed.Store != nil {
		if err := seedStoreConfig(ctx, pool, seed.Store); err != nil {
			return errors.Wrap(err, "seed store config")
		}
	}
	if err := seedAPIKey(ctx, pool, apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

const upsertCategorySQL = `INSERT INTO categories (id, name)
	VALUES ($1, $2)
	ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`

const upsertProductSQL = `INSERT INTO products
	(id, name, description, price, category_id, min_order_quantity, available,
	 on_offer, discount_type, discount_value)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		description = EXCLUDED.description,
		price = EXCLUDED.price,
		category_id = EXCLUDED.category_id,
		min_order_quantity = EXCLUDED.min_order_quantity,
		available = EXCLUDED.available,
		on_offer = EXCLUDED.on_offer,
		discount_type = EXCLUDED.discount_type,
		discount_value = EXCLUDED.discount_value`

const recomputeItemCountsSQL = `UPDATE categories c SET item_count =
	(SELECT count(*) FROM products p WHERE p.category_id = c.id)`

const upsertStoreConfigSQL = `INSERT INTO store_config
	(id, currency, currency_symbol, tax_rate, min_order_amount, delivery, pickup, contact, hours, updated_at)
	VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, now())
	ON CONFLICT (id) DO UPDATE SET
		currency = EXCLUDED.currency,
		currency_symbol = EXCLUDED.currency_symbol,
		tax_rate = EXCLUDED.tax_rate,
		min_order_amount = EXCLUDED.min_order_amount,
		delivery = EXCLUDED.delivery,
		pickup = EXCLUDED.pickup,
		contact = EXCLUDED.contact,
		hours = EXCLUDED.hours,
		updated_at = now()`

const upsertAPIKeySQL = `INSERT INTO admin_api_keys (id, key_hash, name, scopes, active)
	VALUES ($1, $2, $3, $4, TRUE)
	ON CONFLICT (key_hash) DO UPDATE SET
		name = EXCLUDED.name,
		scopes = EXCLUDED.scopes,
		active = TRUE`

func seedCategories(ctx context.Context, pool repository.DB, categories []categoryJSON) error {
	slog.Info("upserting categories", slog.Int("count", len(categories)))

	for _, c := range categories {
		if _, err := pool.Exec(ctx, upsertCategorySQL, c.ID, c.Name); err != nil {
			return errors.Wrapf(err, "upsert category %s", c.ID)
		}
	}
	return nil
}

func seedProducts(ctx context.Context, pool repository.DB, products []productJSON) error {
	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		minQty := p.MinOrderQuantity
		if minQty <= 0 {
			minQty = 1
		}
		discountType := p.DiscountType
		if discountType == "" {
			discountType = "percentage"
		}
		if _, err := pool.Exec(ctx, upsertProductSQL,
			p.ID, p.Name, p.Description, p.Price, p.CategoryID, minQty,
			p.Available, p.OnOffer, discountType, p.DiscountValue,
		); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}
	return nil
}

func recomputeItemCounts(ctx context.Context, pool repository.DB) error {
	_, err := pool.Exec(ctx, recomputeItemCountsSQL)
	return err
}

func seedStoreConfig(ctx context.Context, pool repository.DB, cfg *storeConfigJSON) error {
	slog.Info("upserting store config", slog.String("currency", cfg.Currency))

	_, err := pool.Exec(ctx, upsertStoreConfigSQL,
		cfg.Currency, cfg.CurrencySymbol, cfg.TaxRate, cfg.MinOrderAmount,
		[]byte(cfg.Delivery), []byte(cfg.Pickup), []byte(cfg.Contact), []byte(cfg.Hours),
	)
	return err
}

func seedAPIKey(ctx context.Context, pool repository.DB, apiKey, pepper string) error {
	slog.Info("seeding admin API key")

	keyHash := auth.HashKey(apiKey, []byte(pepper))
	id := uuid.New()

	if _, err := pool.Exec(ctx, upsertAPIKeySQL,
		id, keyHash, "Default admin key", []string{"manage_orders", "manage_store"},
	); err != nil {
		return errors.Wrap(err, "upsert admin API key")
	}

	slog.Info("upserted API key", slog.String("name", "Default admin key"))
	return nil
}
