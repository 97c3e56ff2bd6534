package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"finishtime/bfsp/internal/models"
)

// SelectionKey identifies one bettor-selection row within a price table.
type SelectionKey struct {
	EventID     int64
	SelectionID int64
}

// Catalog is the SQL-over-object-storage query surface over the price
// datasets. Coverage audits go through it rather than the file-name
// index because catalog presence is the actual correctness contract:
// "is this row durably queryable", not "was a file with this name ever
// written".
type Catalog interface {
	// DistinctSelectionKeys returns the (event_id, selection_id) pairs
	// present in table for one country within [from, to].
	DistinctSelectionKeys(ctx context.Context, table, country string, from, to time.Time) (map[SelectionKey]struct{}, error)

	// DistinctEventDates returns the set of ISO event dates present in
	// table for one country.
	DistinctEventDates(ctx context.Context, table, country string) (map[string]struct{}, error)

	// CreateTable creates table over the dataset files at location with
	// the supplied schema, if it does not already exist.
	CreateTable(ctx context.Context, table string, schema []models.Column, location string) error

	// DropTable removes the table definition. The underlying dataset
	// files are untouched.
	DropTable(ctx context.Context, table string) error

	// Close releases catalog connection resources.
	Close() error
}

// nonNullableColumns are the canonical columns that are always populated:
// identity columns and the columns the normalizer derives itself.
var nonNullableColumns = map[string]struct{}{
	"event_id":               {},
	"event_dt":               {},
	"selection_id":           {},
	"selection_name":         {},
	"country":                {},
	"type":                   {},
	"selection_name_cleaned": {},
	"event_date":             {},
	"year":                   {},
}

// clickhouseCatalog implements Catalog on ClickHouse, with tables defined
// over the parquet dataset files in object storage via the S3 engine.
type clickhouseCatalog struct {
	conn     driver.Conn
	database string
}

// NewClickHouseCatalog opens a ClickHouse connection and verifies
// connectivity with a ping. Returns an error if the catalog cannot be
// reached within 5 seconds.
func NewClickHouseCatalog(dsn, database string) (Catalog, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		return nil, err
	}

	return &clickhouseCatalog{conn: conn, database: database}, nil
}

func (c *clickhouseCatalog) qualify(table string) string {
	return fmt.Sprintf("%s.%s", c.database, table)
}

func (c *clickhouseCatalog) DistinctSelectionKeys(ctx context.Context, table, country string, from, to time.Time) (map[SelectionKey]struct{}, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT event_id, selection_id
		FROM %s
		WHERE country = ? AND event_dt BETWEEN ? AND ?
	`, c.qualify(table))

	rows, err := c.conn.Query(ctx, query, country, from, to)
	if err != nil {
		return nil, fmt.Errorf("querying selection keys from %s: %w", table, err)
	}
	defer rows.Close()

	keys := make(map[SelectionKey]struct{})
	for rows.Next() {
		var k SelectionKey
		if err := rows.Scan(&k.EventID, &k.SelectionID); err != nil {
			return nil, err
		}
		keys[k] = struct{}{}
	}
	return keys, rows.Err()
}

func (c *clickhouseCatalog) DistinctEventDates(ctx context.Context, table, country string) (map[string]struct{}, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT event_date
		FROM %s
		WHERE country = ?
	`, c.qualify(table))

	rows, err := c.conn.Query(ctx, query, country)
	if err != nil {
		return nil, fmt.Errorf("querying event dates from %s: %w", table, err)
	}
	defer rows.Close()

	dates := make(map[string]struct{})
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates[d] = struct{}{}
	}
	return dates, rows.Err()
}

func (c *clickhouseCatalog) CreateTable(ctx context.Context, table string, schema []models.Column, location string) error {
	cols := make([]string, len(schema))
	for i, col := range schema {
		cols[i] = fmt.Sprintf("%s %s", col.Name, clickhouseType(col))
	}

	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s) ENGINE = S3('%s', 'Parquet')",
		c.qualify(table), strings.Join(cols, ", "), location)

	if err := c.conn.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("creating table %s: %w", table, err)
	}
	return nil
}

func (c *clickhouseCatalog) DropTable(ctx context.Context, table string) error {
	if err := c.conn.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", c.qualify(table))); err != nil {
		return fmt.Errorf("dropping table %s: %w", table, err)
	}
	return nil
}

func (c *clickhouseCatalog) Close() error {
	return c.conn.Close()
}

// clickhouseType maps a canonical schema type to the ClickHouse column
// type, nullable unless the column is always populated.
func clickhouseType(col models.Column) string {
	var base string
	switch col.Type {
	case "int":
		base = "Int64"
	case "double":
		base = "Float64"
	case "timestamp":
		base = "DateTime"
	default:
		base = "String"
	}

	if _, ok := nonNullableColumns[col.Name]; ok {
		return base
	}
	return fmt.Sprintf("Nullable(%s)", base)
}
