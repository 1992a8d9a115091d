package output

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-dataprep/internal/logger"
	"github.com/rxtech-lab/argo-dataprep/pkg/errors"
)

// Format is the file format of the feature table.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// ParseFormat parses an output format, defaulting to csv.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatCSV, "":
		return FormatCSV, nil
	case FormatParquet:
		return FormatParquet, nil
	default:
		return "", errors.Newf(errors.ErrCodeInvalidConfiguration, "unsupported output format %q", s)
	}
}

// FileName is the name of the feature table file for the format.
func (f Format) FileName() string {
	return "features." + string(f)
}

const featuresTable = "features"

// Writer stages table rows in an in-memory DuckDB table and exports them with COPY.
//
// The lifecycle is Initialize, Write for every row, Finalize, then Close.
type Writer struct {
	dir     string
	format  Format
	columns []string
	log     *logger.Logger

	db   *sql.DB
	tx   *sql.Tx
	stmt *sql.Stmt
}

// NewWriter creates a writer exporting into dir.
func NewWriter(dir string, format Format, log *logger.Logger) *Writer {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Writer{dir: dir, format: format, log: log.Named("output")}
}

// Initialize creates the staging table for the given param columns and prepares the insert.
func (w *Writer) Initialize(ctx context.Context, columns []string) (err error) {
	if len(columns) == 0 {
		return errors.New(errors.ErrCodeOutputWriteFailed, "feature table has no param column")
	}

	w.columns = columns

	w.db, err = sql.Open("duckdb", ":memory:")
	if err != nil {
		return errors.Wrap(errors.ErrCodeOutputWriteFailed, "failed to open DuckDB connection", err)
	}

	definitions := []string{quote(InstrumentColumn) + " TEXT", quote(DayColumn) + " DATE"}
	for _, c := range columns {
		definitions = append(definitions, quote(c)+" DOUBLE")
	}

	if _, err = w.db.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", featuresTable, strings.Join(definitions, ", "))); err != nil {
		w.db.Close()

		return errors.Wrap(errors.ErrCodeOutputWriteFailed, "failed to create feature table", err)
	}

	w.tx, err = w.db.BeginTx(ctx, nil)
	if err != nil {
		w.db.Close()

		return errors.Wrap(errors.ErrCodeOutputWriteFailed, "failed to begin transaction", err)
	}

	values := make([]any, 0, len(columns)+2)
	values = append(values, nil, squirrel.Expr("CAST(? AS DATE)", nil))

	for range columns {
		values = append(values, nil)
	}

	query, _, err := squirrel.Insert(featuresTable).
		Columns(quotedAll(append([]string{InstrumentColumn, DayColumn}, columns...))...).
		Values(values...).
		ToSql()
	if err != nil {
		w.tx.Rollback()
		w.db.Close()

		return errors.Wrap(errors.ErrCodeOutputWriteFailed, "failed to build insert", err)
	}

	w.stmt, err = w.tx.PrepareContext(ctx, query)
	if err != nil {
		w.tx.Rollback()
		w.db.Close()

		return errors.Wrap(errors.ErrCodeOutputWriteFailed, "failed to prepare statement", err)
	}

	return nil
}

// Write stages one row. NaN values are written as NULL.
func (w *Writer) Write(ctx context.Context, row Row) error {
	if w.stmt == nil {
		return errors.New(errors.ErrCodeOutputWriteFailed, "writer not initialized")
	}

	if len(row.Values) != len(w.columns) {
		return errors.Newf(errors.ErrCodeOutputWriteFailed, "row has %d values, table has %d columns", len(row.Values), len(w.columns))
	}

	args := make([]any, 0, len(row.Values)+2)
	args = append(args, row.Instrument, row.Day)

	for _, v := range row.Values {
		args = append(args, sql.NullFloat64{Float64: v, Valid: !math.IsNaN(v) && !math.IsInf(v, 0)})
	}

	if _, err := w.stmt.ExecContext(ctx, args...); err != nil {
		return errors.Wrapf(errors.ErrCodeOutputWriteFailed, err, "failed to insert row %s", row.Instrument)
	}

	return nil
}

// Finalize commits the staged rows and exports them, ordered by instrument and day, to the
// feature file. It returns the path of the written file.
func (w *Writer) Finalize(ctx context.Context) (string, error) {
	if w.tx == nil {
		return "", errors.New(errors.ErrCodeOutputWriteFailed, "writer not initialized")
	}

	if err := w.tx.Commit(); err != nil {
		w.tx.Rollback()

		return "", errors.Wrap(errors.ErrCodeOutputWriteFailed, "failed to commit transaction", err)
	}

	w.tx = nil

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", errors.Wrapf(errors.ErrCodeOutputWriteFailed, err, "failed to create %s", w.dir)
	}

	path := filepath.Join(w.dir, w.format.FileName())

	options := "FORMAT PARQUET"
	if w.format == FormatCSV {
		options = "FORMAT CSV, HEADER"
	}

	copyStmt := fmt.Sprintf("COPY (SELECT * FROM %s ORDER BY %s, %s) TO '%s' (%s)",
		featuresTable, quote(InstrumentColumn), quote(DayColumn), strings.ReplaceAll(path, "'", "''"), options)
	if _, err := w.db.ExecContext(ctx, copyStmt); err != nil {
		return "", errors.Wrapf(errors.ErrCodeOutputWriteFailed, err, "failed to export %s", path)
	}

	w.log.Info("feature table exported", zap.String("path", path), zap.String("format", string(w.format)))

	return path, nil
}

// Close releases the statement, rolls back an unfinished transaction and closes the database.
func (w *Writer) Close() error {
	var errs []error

	if w.stmt != nil {
		if err := w.stmt.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close statement: %w", err))
		}

		w.stmt = nil
	}

	if w.tx != nil {
		if err := w.tx.Rollback(); err != nil {
			errs = append(errs, fmt.Errorf("failed to rollback transaction: %w", err))
		}

		w.tx = nil
	}

	if w.db != nil {
		if err := w.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}

		w.db = nil
	}

	if err := errors.Join(errs...); err != nil {
		return errors.Wrap(errors.ErrCodeOutputWriteFailed, "failed to close writer", err)
	}

	return nil
}

// WriteTable runs the whole writer lifecycle for table and returns the exported file path.
func (w *Writer) WriteTable(ctx context.Context, table *Table) (path string, err error) {
	if err := w.Initialize(ctx, table.Columns); err != nil {
		return "", err
	}

	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for _, row := range table.Rows {
		if err := w.Write(ctx, row); err != nil {
			return "", err
		}
	}

	return w.Finalize(ctx)
}

func quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

func quotedAll(identifiers []string) []string {
	out := make([]string, len(identifiers))
	for i, id := range identifiers {
		out[i] = quote(id)
	}

	return out
}
