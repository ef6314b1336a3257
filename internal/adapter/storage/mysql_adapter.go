package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/rl1809/pos-checkout/internal/core/domain"
	"github.com/rl1809/pos-checkout/internal/core/schema"
	"github.com/rl1809/pos-checkout/internal/port"
)

const mysqlErrUnknownColumn = 1054

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id CHAR(36) PRIMARY KEY,
		name VARCHAR(255) NOT NULL DEFAULT '',
		price DECIMAL(12,2) NOT NULL DEFAULT 0,
		stock_quantity INT NOT NULL DEFAULT 0,
		low_stock_threshold INT NOT NULL DEFAULT 0,
		created_at TIMESTAMP(6) DEFAULT CURRENT_TIMESTAMP(6),
		updated_at TIMESTAMP(6) DEFAULT CURRENT_TIMESTAMP(6) ON UPDATE CURRENT_TIMESTAMP(6)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id CHAR(36) PRIMARY KEY,
		order_number VARCHAR(64),
		business_id VARCHAR(64),
		subtotal DECIMAL(12,2),
		tax_amount DECIMAL(12,2),
		discount DECIMAL(12,2) DEFAULT 0,
		total_amount DECIMAL(12,2) NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'pending',
		payment_status VARCHAR(16) NOT NULL DEFAULT 'pending',
		payment_method VARCHAR(32) NOT NULL DEFAULT 'cash',
		order_type VARCHAR(32),
		customer_name VARCHAR(255),
		customer_phone VARCHAR(64),
		customer_email VARCHAR(255),
		customer_address TEXT,
		created_at TIMESTAMP(6) DEFAULT CURRENT_TIMESTAMP(6),
		updated_at TIMESTAMP(6) DEFAULT CURRENT_TIMESTAMP(6) ON UPDATE CURRENT_TIMESTAMP(6),
		INDEX idx_orders_created_at (created_at),
		INDEX idx_orders_customer_email (customer_email)
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id CHAR(36) PRIMARY KEY,
		order_id CHAR(36) NOT NULL,
		product_id CHAR(36),
		product_name VARCHAR(255),
		quantity INT NOT NULL,
		unit_price DECIMAL(12,2) NOT NULL,
		total_price DECIMAL(12,2) NOT NULL,
		created_at TIMESTAMP(6) DEFAULT CURRENT_TIMESTAMP(6),
		INDEX idx_order_items_order_id (order_id)
	)`,
}

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

// OpenMySQL opens a pooled connection and verifies it.
func OpenMySQL(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

// Migrate creates the tables when they do not exist. Existing tables are
// left untouched, whatever columns they have.
func (m *MySQLAdapter) Migrate(ctx context.Context) error {
	for _, stmt := range mysqlSchema {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (m *MySQLAdapter) Insert(ctx context.Context, collection string, rows []port.Record) ([]port.Record, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	prepared := make([]port.Record, len(rows))
	ids := make([]any, len(rows))
	for i, r := range rows {
		p := r.Clone()
		if p.String(domain.ColumnID) == "" {
			p[domain.ColumnID] = uuid.NewString()
		}
		prepared[i] = p
		ids[i] = p[domain.ColumnID]
	}

	stmt, args, err := mysqlDialect.buildInsert(collection, prepared)
	if err != nil {
		return nil, err
	}
	if _, err := m.db.ExecContext(ctx, stmt, args...); err != nil {
		return nil, m.translate("insert "+collection, collection, err)
	}

	stored, err := m.selectByIDs(ctx, collection, ids)
	return readBack(ctx, collection, prepared, stored, err), nil
}

// readBack prefers the stored rows. The insert is already committed, so when
// the read-back fails the rows are returned as sent, without store defaults.
func readBack(ctx context.Context, collection string, prepared, stored []port.Record, err error) []port.Record {
	if err != nil {
		slog.WarnContext(ctx, "insert read-back failed, returning rows as sent",
			"collection", collection, "rows", len(prepared), "error", err)
		return prepared
	}
	if len(stored) != len(prepared) {
		slog.WarnContext(ctx, "insert read-back incomplete, returning rows as sent",
			"collection", collection, "rows", len(prepared), "found", len(stored))
		return prepared
	}
	return stored
}

func (m *MySQLAdapter) selectByIDs(ctx context.Context, collection string, ids []any) ([]port.Record, error) {
	placeholders := make([]byte, 0, len(ids)*3)
	for i := range ids {
		if i > 0 {
			placeholders = append(placeholders, ", "...)
		}
		placeholders = append(placeholders, '?')
	}
	stmt := fmt.Sprintf("SELECT * FROM %s WHERE `id` IN (%s)", mysqlDialect.quote(collection), placeholders)
	rows, err := m.db.QueryContext(ctx, stmt, ids...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSQLRows(rows)
}

func (m *MySQLAdapter) Select(ctx context.Context, collection string, q port.Query) ([]port.Record, error) {
	stmt, args, err := mysqlDialect.buildSelect(collection, q)
	if err != nil {
		return nil, err
	}
	rows, err := m.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, m.translate("select "+collection, collection, err)
	}
	defer rows.Close()

	out, err := scanSQLRows(rows)
	if err != nil {
		return nil, m.translate("scan "+collection, collection, err)
	}
	return out, nil
}

func (m *MySQLAdapter) Update(ctx context.Context, collection string, filter map[string]any, values port.Record) (int64, error) {
	stmt, args, err := mysqlDialect.buildUpdate(collection, filter, values)
	if err != nil {
		return 0, err
	}
	result, err := m.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, m.translate("update "+collection, collection, err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// DecrementStock locks the product row, clamps the new quantity at zero and
// commits, so concurrent orders for the same product serialize on the row.
func (m *MySQLAdapter) DecrementStock(ctx context.Context, productID string, quantity int) (domain.StockAdjustment, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.StockAdjustment{}, m.translate("begin tx", domain.CollectionProducts, err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, "SELECT * FROM `products` WHERE `id` = ? FOR UPDATE", productID)
	if err != nil {
		return domain.StockAdjustment{}, m.translate("lock product", domain.CollectionProducts, err)
	}
	records, err := scanSQLRows(rows)
	rows.Close()
	if err != nil {
		return domain.StockAdjustment{}, m.translate("lock product", domain.CollectionProducts, err)
	}

	adj, err := adjustmentFor(productID, records, quantity)
	if err != nil {
		return domain.StockAdjustment{}, err
	}

	if _, err := tx.ExecContext(ctx, "UPDATE `products` SET `stock_quantity` = ? WHERE `id` = ?", adj.New, productID); err != nil {
		return domain.StockAdjustment{}, m.translate("update stock", domain.CollectionProducts, err)
	}
	if err := tx.Commit(); err != nil {
		return domain.StockAdjustment{}, m.translate("commit stock", domain.CollectionProducts, err)
	}
	return adj, nil
}

func (m *MySQLAdapter) translate(op, collection string, err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == mysqlErrUnknownColumn {
		return &domain.ColumnError{Collection: collection, Columns: schema.ParseMissingColumns(me.Message), Err: err}
	}
	if isTransportError(err) || errors.Is(err, mysql.ErrInvalidConn) {
		return domain.Unavailable(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isTransportError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}

func scanSQLRows(rows *sql.Rows) ([]port.Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []port.Record
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(port.Record, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				rec[c] = string(b)
			} else {
				rec[c] = values[i]
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// adjustmentFor computes the clamped decrement for a locked product row.
func adjustmentFor(productID string, records []port.Record, quantity int) (domain.StockAdjustment, error) {
	if len(records) == 0 {
		return domain.StockAdjustment{}, fmt.Errorf("product %s: %w", productID, domain.ErrNotFound)
	}
	current, ok := records[0].Int(domain.ColumnStockQuantity)
	if !ok {
		return domain.StockAdjustment{}, fmt.Errorf("product %s: %w: stock_quantity unreadable", productID, domain.ErrNotFound)
	}
	threshold, hasThreshold := records[0].Int(domain.ColumnLowStockThreshold)
	return domain.StockAdjustment{
		ProductID:         productID,
		Previous:          current,
		Sold:              quantity,
		New:               domain.ClampedDecrement(current, quantity),
		LowStockThreshold: threshold,
		HasThreshold:      hasThreshold,
	}, nil
}
