// Command catalog-import bulk-loads gzipped JSONL product feeds into the
// catalog. Feeds are processed in the order given; when the same SKU appears
// in multiple feeds the earliest feed wins. Dedupe across feeds uses a bloom
// filter, so a false positive can drop a row from a later feed; re-running
// the import with the feeds reordered recovers it.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/mk-uidev/flavorforge/internal/repository"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.0001
	batchSize     = 500
	progressEvery = 100_000
)

// record is one product line from a supplier feed.
type record struct {
	ID               string
	Name             string
	Description      string
	Price            decimal.Decimal
	CategoryID       string
	CategoryName     string
	MinOrderQuantity int
	Available        bool
	OnOffer          bool
	DiscountType     string
	DiscountValue    decimal.Decimal
}

func main() {
	var databaseURL string

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	files := flag.Args()
	if len(files) == 0 {
		slog.Error("usage: catalog-import [flags] feed1.jsonl.gz [feed2.jsonl.gz ...]")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, files); err != nil {
		slog.Error("catalog import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog import completed successfully")
}

func run(ctx context.Context, databaseURL string, files []string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	seen := bloom.NewWithEstimates(bloomCapacity, bloomFPR)

	var imported, skipped uint64
	for _, f := range files {
		n, dup, err := importFeed(ctx, pool, f, seen)
		if err != nil {
			return errors.Wrapf(err, "import %s", f)
		}
		imported += n
		skipped += dup
		slog.Info("feed imported",
			slog.String("file", f),
			slog.Uint64("products", n),
			slog.Uint64("duplicates_skipped", dup),
		)
	}

	if _, err := pool.Exec(ctx, recomputeItemCountsSQL); err != nil {
		return errors.Wrap(err, "recompute category counts")
	}

	slog.Info("catalog updated",
		slog.Uint64("imported", imported),
		slog.Uint64("skipped", skipped),
	)
	return nil
}

// importFeed streams one gzipped JSONL feed. The decoder and the batch writer
// run concurrently; lines flow between them on a channel.
func importFeed(
	ctx context.Context,
	pool *pgxpool.Pool,
	path string,
	seen *bloom.BloomFilter,
) (imported, skipped uint64, err error) {
	records := make(chan record, batchSize)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(records)
		var lineNo uint64
		return streamFeed(ctx, path, func(line []byte) error {
			lineNo++
			rec, err := decodeRecord(line)
			if err != nil {
				return errors.Wrapf(err, "decode line %d", lineNo)
			}
			if seen.TestAndAddString(rec.ID) {
				skipped++
				return nil
			}
			select {
			case records <- rec:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	})

	g.Go(func() error {
		batch := make([]record, 0, batchSize)
		for rec := range records {
			batch = append(batch, rec)
			if len(batch) == batchSize {
				if err := flushBatch(ctx, pool, batch); err != nil {
					return err
				}
				imported += uint64(len(batch))
				batch = batch[:0]
				if imported%progressEvery < batchSize {
					slog.Info("import progress", slog.Uint64("products", imported))
				}
			}
		}
		if len(batch) > 0 {
			if err := flushBatch(ctx, pool, batch); err != nil {
				return err
			}
			imported += uint64(len(batch))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return 0, 0, err
	}
	return imported, skipped, nil
}

// streamFeed opens a gzip-compressed file and calls fn for each non-empty line.
func streamFeed(ctx context.Context, path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}

// decodeRecord parses one feed line. Monetary fields are accepted as JSON
// numbers or strings.
func decodeRecord(line []byte) (record, error) {
	rec := record{MinOrderQuantity: 1, Available: true, DiscountType: "percentage"}

	d := jx.DecodeBytes(line)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			rec.ID, err = d.Str()
		case "name":
			rec.Name, err = d.Str()
		case "description":
			rec.Description, err = d.Str()
		case "price":
			rec.Price, err = decodeDecimal(d)
		case "category":
			rec.CategoryID, err = d.Str()
		case "categoryName":
			rec.CategoryName, err = d.Str()
		case "minOrderQuantity":
			rec.MinOrderQuantity, err = d.Int()
		case "available":
			rec.Available, err = d.Bool()
		case "onOffer":
			rec.OnOffer, err = d.Bool()
		case "discountType":
			rec.DiscountType, err = d.Str()
		case "discountValue":
			rec.DiscountValue, err = decodeDecimal(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return record{}, err
	}
	if rec.ID == "" {
		return record{}, errors.New("missing product id")
	}
	if rec.Name == "" {
		return record{}, errors.Errorf("product %s: missing name", rec.ID)
	}
	return rec, nil
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	if d.Next() == jx.String {
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(s)
	}
	n, err := d.Num()
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(n.String())
}

const upsertProductSQL = `INSERT INTO products
	(id, name, description, price, category_id, min_order_quantity, available,
	 on_offer, discount_type, discount_value)
	VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10)
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

const upsertCategorySQL = `INSERT INTO categories (id, name)
	VALUES ($1, $2)
	ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`

const recomputeItemCountsSQL = `UPDATE categories c SET item_count =
	(SELECT count(*) FROM products p WHERE p.category_id = c.id)`

// flushBatch upserts one batch of products in a single round trip. Categories
// referenced by the batch are upserted first so the product rows always have
// their parent row in place.
func flushBatch(ctx context.Context, pool *pgxpool.Pool, batch []record) error {
	b := &pgx.Batch{}

	queued := 0
	cats := make(map[string]struct{}, 8)
	for _, r := range batch {
		if r.CategoryID == "" {
			continue
		}
		if _, ok := cats[r.CategoryID]; ok {
			continue
		}
		cats[r.CategoryID] = struct{}{}
		name := r.CategoryName
		if name == "" {
			name = r.CategoryID
		}
		b.Queue(upsertCategorySQL, r.CategoryID, name)
		queued++
	}
	for _, r := range batch {
		b.Queue(upsertProductSQL,
			r.ID, r.Name, r.Description, r.Price, r.CategoryID,
			r.MinOrderQuantity, r.Available, r.OnOffer, r.DiscountType, r.DiscountValue,
		)
		queued++
	}

	br := pool.SendBatch(ctx, b)
	defer func() { _ = br.Close() }()

	for i := 0; i < queued; i++ {
		if _, err := br.Exec(); err != nil {
			return errors.Wrap(err, "batch upsert")
		}
	}
	return br.Close()
}
