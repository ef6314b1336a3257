package storage

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rl1809/pos-checkout/internal/core/domain"
	"github.com/rl1809/pos-checkout/internal/core/schema"
	"github.com/rl1809/pos-checkout/internal/port"
)

const (
	pgUndefinedColumn  = "42703"
	pgInvalidTextInput = "22P02"
)

var postgresSchema = []string{
	`CREATE EXTENSION IF NOT EXISTS pgcrypto`,
	`CREATE TABLE IF NOT EXISTS products (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name TEXT NOT NULL DEFAULT '',
		price NUMERIC(12,2) NOT NULL DEFAULT 0,
		stock_quantity INTEGER NOT NULL DEFAULT 0,
		low_stock_threshold INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		order_number TEXT,
		business_id TEXT,
		subtotal NUMERIC(12,2),
		tax_amount NUMERIC(12,2),
		discount NUMERIC(12,2) DEFAULT 0,
		total_amount NUMERIC(12,2) NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		payment_status TEXT NOT NULL DEFAULT 'pending',
		payment_method TEXT NOT NULL DEFAULT 'cash',
		order_type TEXT,
		customer_name TEXT,
		customer_phone TEXT,
		customer_email TEXT,
		customer_address TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders (created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_customer_email ON orders (customer_email)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		order_id UUID NOT NULL,
		product_id TEXT,
		product_name TEXT,
		quantity INTEGER NOT NULL,
		unit_price NUMERIC(12,2) NOT NULL,
		total_price NUMERIC(12,2) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items (order_id)`,
}

// PostgresAdapter is the DataStore over a hosted Postgres schema. Ids and
// timestamps are assigned by column defaults and read back with RETURNING.
type PostgresAdapter struct {
	pool *pgxpool.Pool
}

func NewPostgresAdapter(pool *pgxpool.Pool) *PostgresAdapter {
	return &PostgresAdapter{pool: pool}
}

func OpenPostgres(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

func (p *PostgresAdapter) Migrate(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (p *PostgresAdapter) Insert(ctx context.Context, collection string, rows []port.Record) ([]port.Record, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	stmt, args, err := postgresDialect.buildInsert(collection, rows)
	if err != nil {
		return nil, err
	}

	result, err := p.pool.Query(ctx, stmt+" RETURNING *", args...)
	if err != nil {
		return nil, p.translate("insert "+collection, collection, err)
	}
	out, err := collectPgRows(result)
	if err != nil {
		return nil, p.translate("insert "+collection, collection, err)
	}
	return out, nil
}

func (p *PostgresAdapter) Select(ctx context.Context, collection string, q port.Query) ([]port.Record, error) {
	stmt, args, err := postgresDialect.buildSelect(collection, q)
	if err != nil {
		return nil, err
	}
	result, err := p.pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, p.translate("select "+collection, collection, err)
	}
	out, err := collectPgRows(result)
	if err != nil {
		// A filter value that cannot be cast to the column type, such as a
		// malformed uuid, matches no rows.
		if isInvalidTextInput(err) {
			return nil, nil
		}
		return nil, p.translate("select "+collection, collection, err)
	}
	return out, nil
}

func (p *PostgresAdapter) Update(ctx context.Context, collection string, filter map[string]any, values port.Record) (int64, error) {
	stmt, args, err := postgresDialect.buildUpdate(collection, filter, values)
	if err != nil {
		return 0, err
	}
	tag, err := p.pool.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, p.translate("update "+collection, collection, err)
	}
	return tag.RowsAffected(), nil
}

func (p *PostgresAdapter) DecrementStock(ctx context.Context, productID string, quantity int) (domain.StockAdjustment, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return domain.StockAdjustment{}, p.translate("begin tx", domain.CollectionProducts, err)
	}
	defer tx.Rollback(ctx)

	records, err := lockProduct(ctx, tx, productID)
	if err != nil {
		if isInvalidTextInput(err) {
			return domain.StockAdjustment{}, fmt.Errorf("product %s: %w", productID, domain.ErrNotFound)
		}
		return domain.StockAdjustment{}, p.translate("lock product", domain.CollectionProducts, err)
	}

	adj, err := adjustmentFor(productID, records, quantity)
	if err != nil {
		return domain.StockAdjustment{}, err
	}

	if _, err := tx.Exec(ctx, `UPDATE "products" SET "stock_quantity" = $1, "updated_at" = now() WHERE "id" = $2`, adj.New, productID); err != nil {
		return domain.StockAdjustment{}, p.translate("update stock", domain.CollectionProducts, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.StockAdjustment{}, p.translate("commit stock", domain.CollectionProducts, err)
	}
	return adj, nil
}

func (p *PostgresAdapter) translate(op, collection string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == pgUndefinedColumn {
			return &domain.ColumnError{Collection: collection, Columns: schema.ParseMissingColumns(pgErr.Message), Err: err}
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	var ne net.Error
	if errors.As(err, &ne) || pgconn.Timeout(err) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.Unavailable(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func lockProduct(ctx context.Context, tx pgx.Tx, productID string) ([]port.Record, error) {
	rows, err := tx.Query(ctx, `SELECT * FROM "products" WHERE "id" = $1 FOR UPDATE`, productID)
	if err != nil {
		return nil, err
	}
	return collectPgRows(rows)
}

// isInvalidTextInput reports a value that could not be cast to its column type.
func isInvalidTextInput(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgInvalidTextInput
}

func collectPgRows(rows pgx.Rows) ([]port.Record, error) {
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []port.Record
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		rec := make(port.Record, len(fields))
		for i, f := range fields {
			rec[f.Name] = normalizePgValue(values[i])
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// normalizePgValue maps pgx native types onto the ones port.Record reads.
func normalizePgValue(v any) any {
	switch x := v.(type) {
	case [16]byte:
		return uuid.UUID(x).String()
	case pgtype.Numeric:
		if !x.Valid {
			return nil
		}
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case int32:
		return int(x)
	case int16:
		return int(x)
	}
	return v
}
