// Package warehouse loads validated rows into an analytical SQL store.
// One schema, several interchangeable drivers: PostgreSQL for shared
// deployments, DuckDB or SQLite for local analysis. Replacement is modeled
// as delete-by-window-overlap followed by append, so re-running a month is
// idempotent.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/reefwatch/griddap-etl/internal/dataset"
	"github.com/reefwatch/griddap-etl/internal/domain"
)

// Config selects the driver and its DSN.
type Config struct {
	// Driver is a registered database/sql driver name: "pgx", "sqlite",
	// or "duckdb" (the latter needs the duckdb build tag).
	Driver string
	DSN    string
}

// Warehouse wraps one SQL connection pool plus the driver-specific SQL
// dialect choices.
type Warehouse struct {
	db     *sql.DB
	driver string
	logger *slog.Logger
}

// Open connects and verifies liveness. File-backed engines are capped to a
// single connection; they serialize writes anyway and the cap avoids
// lock contention.
func Open(cfg Config, logger *slog.Logger) (*Warehouse, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "pgx", "sqlite", "duckdb":
	default:
		return nil, domain.Configf("unsupported warehouse driver %q", cfg.Driver)
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, &domain.SinkError{Op: "open", Err: err}
	}

	if driver == "sqlite" || driver == "duckdb" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &domain.SinkError{Op: "ping", Err: err}
	}

	logger.Info("warehouse connected", "driver", driver)
	return &Warehouse{db: db, driver: driver, logger: logger}, nil
}

func (w *Warehouse) Close() error {
	return w.db.Close()
}

// EnsureTable creates the destination table when absent. Column DDL is
// derived from the dataset schema; required columns become NOT NULL so the
// store enforces the same contract the pipeline validates.
func (w *Warehouse) EnsureTable(ctx context.Context, table string, schema domain.Schema) error {
	cols := make([]string, len(schema))
	for i, c := range schema {
		decl := quoteIdent(c.Name) + " " + w.sqlType(c.Type)
		if c.Required {
			decl += " NOT NULL"
		}
		cols[i] = decl
	}
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		quoteIdent(table), strings.Join(cols, ", "))
	if _, err := w.db.ExecContext(ctx, ddl); err != nil {
		return &domain.SinkError{Op: "ensure table", Err: err}
	}
	return nil
}

// Append inserts all rows in one transaction. Missing measurements become
// SQL NULLs.
func (w *Warehouse) Append(ctx context.Context, table string, schema domain.Schema, rows []domain.Row) error {
	if len(rows) == 0 {
		return nil
	}

	names := schema.Names()
	quoted := make([]string, len(names))
	marks := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdent(n)
		marks[i] = w.placeholder(i + 1)
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(quoted, ", "), strings.Join(marks, ", "))

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return &domain.SinkError{Op: "append begin", Err: err}
	}
	defer tx.Rollback()

	ins, err := tx.PrepareContext(ctx, stmt)
	if err != nil {
		return &domain.SinkError{Op: "append prepare", Err: err}
	}
	defer ins.Close()

	for _, r := range rows {
		args := make([]any, len(names))
		for i, n := range names {
			args[i] = bindValue(r, n)
		}
		if _, err := ins.ExecContext(ctx, args...); err != nil {
			return &domain.SinkError{Op: "append insert", Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &domain.SinkError{Op: "append commit", Err: err}
	}

	w.logger.Info("rows appended", "table", table, "rows", len(rows))
	return nil
}

// DeleteOverlapping removes previously loaded rows for the region whose
// period overlaps the window. Daily rows match by date range; composite rows
// match when their period intersects the window, which also clears
// straddling composites loaded by an adjacent month's run.
func (w *Warehouse) DeleteOverlapping(ctx context.Context, table, regionID string, window domain.MonthWindow, period dataset.PeriodKind) error {
	var cond string
	var args []any
	switch period {
	case dataset.Composite:
		cond = fmt.Sprintf("region_id = %s AND period_start_date <= %s AND period_end_date >= %s",
			w.placeholder(1), w.placeholder(2), w.placeholder(3))
		args = []any{regionID, window.End.String(), window.Start.String()}
	default:
		cond = fmt.Sprintf("region_id = %s AND date >= %s AND date <= %s",
			w.placeholder(1), w.placeholder(2), w.placeholder(3))
		args = []any{regionID, window.Start.String(), window.End.String()}
	}

	res, err := w.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE %s", quoteIdent(table), cond), args...)
	if err != nil {
		return &domain.SinkError{Op: "delete overlapping", Err: err}
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		w.logger.Info("rows replaced", "table", table, "region", regionID, "deleted", n)
	}
	return nil
}

// sqlType maps the schema's logical types onto the driver's dialect.
func (w *Warehouse) sqlType(logical string) string {
	switch logical {
	case "STRING":
		return "TEXT"
	case "FLOAT64":
		if w.driver == "sqlite" {
			return "REAL"
		}
		return "DOUBLE PRECISION"
	case "DATE":
		if w.driver == "sqlite" {
			return "TEXT"
		}
		return "DATE"
	case "TIMESTAMP":
		if w.driver == "pgx" {
			return "TIMESTAMPTZ"
		}
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

// placeholder renders the i-th bind marker. pgx wants $N, the file-backed
// drivers take ?.
func (w *Warehouse) placeholder(i int) string {
	if w.driver == "pgx" {
		return fmt.Sprintf("$%d", i)
	}
	return "?"
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// bindValue converts one row field to its SQL argument. NaN measurements and
// zero-valued optional fields bind as NULL; dates bind as ISO strings so the
// same statement works across dialects.
func bindValue(r domain.Row, col string) any {
	switch col {
	case "region_id":
		return r.RegionID
	case "lat":
		return floatArg(r.Lat)
	case "lon":
		return floatArg(r.Lon)
	case "date":
		return dateArg(r.Date)
	case "period_start_date":
		return dateArg(r.WindowStart)
	case "period_end_date":
		return dateArg(r.WindowEnd)
	case "source":
		if r.Source == "" {
			return nil
		}
		return r.Source
	case "ingested_at":
		if r.IngestedAt.IsZero() {
			return nil
		}
		return r.IngestedAt.UTC()
	default:
		v, ok := r.Values[col]
		if !ok {
			return nil
		}
		return floatArg(v)
	}
}

func floatArg(v float64) any {
	if v != v { // NaN
		return nil
	}
	return v
}

func dateArg(d domain.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}
