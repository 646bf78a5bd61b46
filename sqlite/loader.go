// Package sqlite loads test rows from a SQLite query. It implements
// source.RowLoader so a suite can draw its cases from a database instead of a
// tabular file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/asaidimu/go-rowcase/core/query"
	"github.com/asaidimu/go-rowcase/core/record"
	"github.com/asaidimu/go-rowcase/core/source"
)

// DriverName is the database/sql driver registered by go-sqlite3.
const DriverName = "sqlite3"

// Querier abstracts the query method shared by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// QueryLoader runs a query and turns every result row into a record.Row.
// Columns keep their select order and every value is rendered as a string;
// NULL becomes "".
type QueryLoader struct {
	db     Querier
	dsn    string
	query  string
	args   []any
	logger *zap.Logger
}

var _ source.RowLoader = (*QueryLoader)(nil)

// NewQueryLoader creates a loader that queries an open database or
// transaction. The caller keeps ownership of db.
func NewQueryLoader(db Querier, logger *zap.Logger, query string, args ...any) *QueryLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryLoader{db: db, query: query, args: args, logger: logger}
}

// NewDSNLoader creates a loader that opens dsn for every Load and closes it
// afterwards.
func NewDSNLoader(dsn string, logger *zap.Logger, query string, args ...any) *QueryLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryLoader{dsn: dsn, query: query, args: args, logger: logger}
}

// Open opens and pings a SQLite database.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %q: %w", dsn, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database %q: %w", dsn, err)
	}
	return db, nil
}

// Load executes the query.
func (l *QueryLoader) Load(ctx context.Context) ([]record.Row, error) {
	runner := l.db
	if runner == nil {
		db, err := Open(ctx, l.dsn)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		runner = db
	}

	l.logger.Debug("Executing row query", zap.String("query", l.query), zap.Int("args", len(l.args)))
	rows, err := runner.QueryContext(ctx, l.query, l.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	result, err := readRows(rows)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("Rows read from database", zap.Int("count", len(result)))
	return result, nil
}

// String names the loader in logs and events.
func (l *QueryLoader) String() string {
	if l.dsn != "" {
		return fmt.Sprintf("sqlite %s: %s", l.dsn, l.query)
	}
	return "sqlite: " + l.query
}

// readRows reads every row of rows into record.Rows.
func readRows(rows *sql.Rows) ([]record.Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	results := []record.Row{}
	for rows.Next() {
		values := make([]any, len(columns))
		scanArgs := make([]any, len(columns))
		for i := range values {
			scanArgs[i] = &values[i]
		}

		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		cells := make([]string, len(columns))
		for i, val := range values {
			cells[i] = cell(val)
		}
		results = append(results, record.New(columns, cells))
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error after scanning rows: %w", err)
	}
	return results, nil
}

func cell(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return query.Stringify(v)
	}
}
