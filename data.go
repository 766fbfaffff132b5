package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const sellTransactionsTable = "sell_transactions"

var requiredSellColumns = []string{"id", "description", "rate_per_quintal", "quantity", "grain_type"}

type grainSource string

const (
	sourcePayload grainSource = "payload"
	sourceText    grainSource = "text"
	sourceRate    grainSource = "rate"
)

// sellTransaction is one sell_transactions row as read by the backfill.
type sellTransaction struct {
	id          any // INTEGER or TEXT key, kept as the driver value
	description sql.NullString
	rate        decimal.NullDecimal
	quantity    decimal.NullDecimal
	grainType   sql.NullString
}

// grainChange is one resolved grain_type update.
type grainChange struct {
	id          any
	grainType   string
	source      grainSource
	description sql.NullString
	rate        decimal.NullDecimal
	quantity    decimal.NullDecimal
}

type sqlQueryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// openMandiDB opens an existing database file. The file must already exist:
// the sqlite driver would otherwise create an empty one.
func openMandiDB(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open sqlite db %q: %w", path, err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// checkSellTransactionsSchema verifies the table and the columns the backfill
// reads and writes. It never alters schema.
func checkSellTransactionsSchema(ctx context.Context, q sqlQueryer) error {
	rows, err := q.QueryContext(ctx, `PRAGMA table_info(sell_transactions)`)
	if err != nil {
		return fmt.Errorf("inspect %s: %w", sellTransactionsTable, err)
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var (
			cid     int
			name    string
			colType string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return fmt.Errorf("scan %s column: %w", sellTransactionsTable, err)
		}
		columns[strings.ToLower(name)] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s columns: %w", sellTransactionsTable, err)
	}

	if len(columns) == 0 {
		return fmt.Errorf("table %s not found", sellTransactionsTable)
	}
	var missing []string
	for _, col := range requiredSellColumns {
		if !columns[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("table %s is missing column(s): %s", sellTransactionsTable, strings.Join(missing, ", "))
	}
	return nil
}

// loadEmptyGrainRows returns rows whose grain_type is NULL or blank, in table
// order.
func loadEmptyGrainRows(ctx context.Context, q sqlQueryer) ([]sellTransaction, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, description, rate_per_quintal, quantity, grain_type
		FROM sell_transactions
		WHERE grain_type IS NULL OR trim(grain_type) = ''
	`)
	if err != nil {
		return nil, fmt.Errorf("query empty grain_type rows: %w", err)
	}
	defer rows.Close()

	var out []sellTransaction
	for rows.Next() {
		var (
			row            sellTransaction
			rate, quantity any
		)
		if err := rows.Scan(&row.id, &row.description, &rate, &quantity, &row.grainType); err != nil {
			return nil, fmt.Errorf("scan sell transaction: %w", err)
		}
		row.rate = decimalFromColumn(rate)
		row.quantity = decimalFromColumn(quantity)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate empty grain_type rows: %w", err)
	}
	return out, nil
}

// decimalFromColumn converts a numeric column value. SQLite does not enforce
// column types, so blank or non-numeric text reads as NULL.
func decimalFromColumn(v any) decimal.NullDecimal {
	var d decimal.NullDecimal
	if err := d.Scan(v); err != nil {
		return decimal.NullDecimal{}
	}
	return d
}

func updateGrainType(ctx context.Context, q sqlQueryer, id any, grain string) error {
	res, err := q.ExecContext(ctx, `
		UPDATE sell_transactions
		SET grain_type = ?
		WHERE id = ?
	`, grain, id)
	if err != nil {
		return fmt.Errorf("update grain_type for %s: %w", formatRowID(id), err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update grain_type for %s: no row matched", formatRowID(id))
	}
	return nil
}

func countEmptyGrainRows(ctx context.Context, q sqlQueryer) (int, error) {
	var count int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sell_transactions
		WHERE grain_type IS NULL OR trim(grain_type) = ''
	`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count empty grain_type rows: %w", err)
	}
	return count, nil
}

func formatRowID(id any) string {
	switch v := id.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

// formatChangeTuple renders a changed row as "(id, 'grain', 'description')".
func formatChangeTuple(c grainChange) string {
	id := formatRowID(c.id)
	switch c.id.(type) {
	case string, []byte:
		id = quoteReportValue(id)
	}
	desc := "None"
	if c.description.Valid {
		desc = quoteReportValue(c.description.String)
	}
	return fmt.Sprintf("(%s, %s, %s)", id, quoteReportValue(c.grainType), desc)
}

func quoteReportValue(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
}

func formatNullDecimal(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return d.Decimal.String()
}
