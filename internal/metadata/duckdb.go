package metadata

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"

	"github.com/rxtech-lab/argo-dataprep/internal/types"
	"github.com/rxtech-lab/argo-dataprep/pkg/errors"
)

// Keys are enforced by the delete-then-insert writes below rather than PRIMARY KEY
// constraints: DuckDB rejects re-inserting a key deleted earlier in the same transaction.
var metadataSchema = []string{
	`CREATE TABLE IF NOT EXISTS strategies (
		owner TEXT,
		name TEXT,
		scope TEXT,
		benchmark TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS strategy_params (
		owner TEXT,
		strategy TEXT,
		position INTEGER,
		param_owner TEXT,
		param_name TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS params (
		owner TEXT,
		name TEXT,
		source_kind TEXT,
		source_id TEXT,
		pre_period INTEGER,
		post_period INTEGER,
		agg_func TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS indicators (
		owner TEXT,
		name TEXT,
		calculation_fn TEXT,
		active BOOLEAN,
		window_size INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS indicator_params (
		owner TEXT,
		indicator TEXT,
		position INTEGER,
		param_owner TEXT,
		param_name TEXT
	)`,
}

// DuckDBRepository stores definitions in relational tables of a DuckDB database.
type DuckDBRepository struct {
	db *sql.DB
	sq squirrel.StatementBuilderType
}

// OpenDuckDBRepository opens (or creates) the definitions database at path. An empty path
// opens an in-memory database.
func OpenDuckDBRepository(path string) (*DuckDBRepository, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to open metadata database", err)
	}

	repo, err := NewDuckDBRepository(db)
	if err != nil {
		db.Close()

		return nil, err
	}

	return repo, nil
}

// NewDuckDBRepository uses an already open database and creates the tables it needs.
func NewDuckDBRepository(db *sql.DB) (*DuckDBRepository, error) {
	for _, stmt := range metadataSchema {
		if _, err := db.Exec(stmt); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to create metadata tables", err)
		}
	}

	return &DuckDBRepository{
		db: db,
		sq: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}, nil
}

// Close closes the underlying database.
func (r *DuckDBRepository) Close() error {
	return r.db.Close()
}

// GetStrategy implements Repository.
func (r *DuckDBRepository) GetStrategy(ctx context.Context, owner, name string) (Strategy, error) {
	strategy, ok, err := lookup(owner, func(candidate string) (Strategy, bool, error) {
		return r.findStrategy(ctx, candidate, name)
	})
	if err != nil {
		return Strategy{}, err
	}

	if !ok {
		return Strategy{}, errors.Newf(errors.ErrCodeStrategyNotFound, "strategy %s not found", key(owner, name))
	}

	return strategy, nil
}

// GetParam implements Repository.
func (r *DuckDBRepository) GetParam(ctx context.Context, owner, name string) (ParamDef, error) {
	param, ok, err := lookup(owner, func(candidate string) (ParamDef, bool, error) {
		return r.findParam(ctx, candidate, name)
	})
	if err != nil {
		return ParamDef{}, err
	}

	if !ok {
		return ParamDef{}, errors.Newf(errors.ErrCodeParamNotFound, "param %s not found", key(owner, name))
	}

	return param.normalize(), nil
}

// GetIndicator implements Repository.
func (r *DuckDBRepository) GetIndicator(ctx context.Context, owner, name string) (IndicatorDef, error) {
	def, ok, err := lookup(owner, func(candidate string) (IndicatorDef, bool, error) {
		return r.findIndicator(ctx, candidate, name)
	})
	if err != nil {
		return IndicatorDef{}, err
	}

	if !ok {
		return IndicatorDef{}, errors.Newf(errors.ErrCodeIndicatorNotFound, "indicator %s not found", key(owner, name))
	}

	return checkActive(def)
}

func (r *DuckDBRepository) findStrategy(ctx context.Context, owner, name string) (Strategy, bool, error) {
	strategy := Strategy{Owner: owner, Name: name, Scope: "", Benchmark: "", Params: nil}

	err := r.sq.
		Select("scope", "benchmark").
		From("strategies").
		Where(squirrel.Eq{"owner": owner, "name": name}).
		RunWith(r.db).
		QueryRowContext(ctx).
		Scan(&strategy.Scope, &strategy.Benchmark)
	if err == sql.ErrNoRows {
		return Strategy{}, false, nil
	}

	if err != nil {
		return Strategy{}, false, errors.Wrapf(errors.ErrCodeCacheQueryFailed, err, "failed to query strategy %s", key(owner, name))
	}

	strategy.Params, err = r.refs(ctx, "strategy_params", "strategy", owner, name)
	if err != nil {
		return Strategy{}, false, err
	}

	return strategy, true, nil
}

func (r *DuckDBRepository) findParam(ctx context.Context, owner, name string) (ParamDef, bool, error) {
	param := ParamDef{Owner: owner, Name: name}

	var sourceKind, aggFunc string

	err := r.sq.
		Select("source_kind", "source_id", "pre_period", "post_period", "agg_func").
		From("params").
		Where(squirrel.Eq{"owner": owner, "name": name}).
		RunWith(r.db).
		QueryRowContext(ctx).
		Scan(&sourceKind, &param.SourceID, &param.PrePeriod, &param.PostPeriod, &aggFunc)
	if err == sql.ErrNoRows {
		return ParamDef{}, false, nil
	}

	if err != nil {
		return ParamDef{}, false, errors.Wrapf(errors.ErrCodeCacheQueryFailed, err, "failed to query param %s", key(owner, name))
	}

	param.SourceKind = types.SourceKind(sourceKind)
	param.AggFunc = types.AggFunc(aggFunc)

	return param, true, nil
}

func (r *DuckDBRepository) findIndicator(ctx context.Context, owner, name string) (IndicatorDef, bool, error) {
	def := IndicatorDef{Owner: owner, Name: name}

	var calculationFn string

	err := r.sq.
		Select("calculation_fn", "active", "window_size").
		From("indicators").
		Where(squirrel.Eq{"owner": owner, "name": name}).
		RunWith(r.db).
		QueryRowContext(ctx).
		Scan(&calculationFn, &def.Active, &def.Window)
	if err == sql.ErrNoRows {
		return IndicatorDef{}, false, nil
	}

	if err != nil {
		return IndicatorDef{}, false, errors.Wrapf(errors.ErrCodeCacheQueryFailed, err, "failed to query indicator %s", key(owner, name))
	}

	def.CalculationFn = types.IndicatorType(calculationFn)

	def.Params, err = r.refs(ctx, "indicator_params", "indicator", owner, name)
	if err != nil {
		return IndicatorDef{}, false, err
	}

	return def, true, nil
}

// refs reads the ordered parameter references of a strategy or indicator.
func (r *DuckDBRepository) refs(ctx context.Context, table, column, owner, name string) ([]types.Ref, error) {
	rows, err := r.sq.
		Select("param_owner", "param_name").
		From(table).
		Where(squirrel.Eq{"owner": owner, column: name}).
		OrderBy("position ASC").
		RunWith(r.db).
		QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeCacheQueryFailed, err, "failed to query %s", table)
	}
	defer rows.Close()

	refs := make([]types.Ref, 0)

	for rows.Next() {
		var ref types.Ref
		if err := rows.Scan(&ref.Owner, &ref.Name); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", table, err)
		}

		refs = append(refs, ref)
	}

	return refs, rows.Err()
}

// SaveStrategy inserts or replaces a strategy and its parameter list.
func (r *DuckDBRepository) SaveStrategy(ctx context.Context, strategy Strategy) error {
	if err := strategy.Validate(); err != nil {
		return err
	}

	return r.inTx(ctx, func(tx *sql.Tx) error {
		if err := r.deleteRow(ctx, tx, "strategies", squirrel.Eq{"owner": strategy.Owner, "name": strategy.Name}); err != nil {
			return err
		}

		if err := r.deleteRow(ctx, tx, "strategy_params", squirrel.Eq{"owner": strategy.Owner, "strategy": strategy.Name}); err != nil {
			return err
		}

		_, err := r.sq.
			Insert("strategies").
			Columns("owner", "name", "scope", "benchmark").
			Values(strategy.Owner, strategy.Name, strategy.Scope, strategy.Benchmark).
			RunWith(tx).
			ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to insert strategy: %w", err)
		}

		return r.insertRefs(ctx, tx, "strategy_params", "strategy", strategy.Owner, strategy.Name, strategy.Params)
	})
}

// SaveParam inserts or replaces a parameter definition.
func (r *DuckDBRepository) SaveParam(ctx context.Context, param ParamDef) error {
	if err := param.Validate(); err != nil {
		return err
	}

	param = param.normalize()

	return r.inTx(ctx, func(tx *sql.Tx) error {
		if err := r.deleteRow(ctx, tx, "params", squirrel.Eq{"owner": param.Owner, "name": param.Name}); err != nil {
			return err
		}

		_, err := r.sq.
			Insert("params").
			Columns("owner", "name", "source_kind", "source_id", "pre_period", "post_period", "agg_func").
			Values(param.Owner, param.Name, string(param.SourceKind), param.SourceID, param.PrePeriod, param.PostPeriod, string(param.AggFunc)).
			RunWith(tx).
			ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to insert param: %w", err)
		}

		return nil
	})
}

// SaveIndicator inserts or replaces an indicator definition and its ordered dependencies.
func (r *DuckDBRepository) SaveIndicator(ctx context.Context, def IndicatorDef) error {
	if err := def.Validate(); err != nil {
		return err
	}

	return r.inTx(ctx, func(tx *sql.Tx) error {
		if err := r.deleteRow(ctx, tx, "indicators", squirrel.Eq{"owner": def.Owner, "name": def.Name}); err != nil {
			return err
		}

		if err := r.deleteRow(ctx, tx, "indicator_params", squirrel.Eq{"owner": def.Owner, "indicator": def.Name}); err != nil {
			return err
		}

		_, err := r.sq.
			Insert("indicators").
			Columns("owner", "name", "calculation_fn", "active", "window_size").
			Values(def.Owner, def.Name, string(def.CalculationFn), def.Active, def.Window).
			RunWith(tx).
			ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to insert indicator: %w", err)
		}

		return r.insertRefs(ctx, tx, "indicator_params", "indicator", def.Owner, def.Name, def.Params)
	})
}

// Import saves every definition of defs.
func (r *DuckDBRepository) Import(ctx context.Context, defs Definitions) error {
	for _, param := range defs.Params {
		if err := r.SaveParam(ctx, param); err != nil {
			return err
		}
	}

	for _, doc := range defs.Indicators {
		if err := r.SaveIndicator(ctx, doc.definition()); err != nil {
			return err
		}
	}

	for _, strategy := range defs.Strategies {
		if err := r.SaveStrategy(ctx, strategy); err != nil {
			return err
		}
	}

	return nil
}

func (r *DuckDBRepository) insertRefs(ctx context.Context, tx *sql.Tx, table, column, owner, name string, refs []types.Ref) error {
	if len(refs) == 0 {
		return nil
	}

	insert := r.sq.Insert(table).Columns("owner", column, "position", "param_owner", "param_name")
	for i, ref := range refs {
		insert = insert.Values(owner, name, i, ref.Owner, ref.Name)
	}

	if _, err := insert.RunWith(tx).ExecContext(ctx); err != nil {
		return fmt.Errorf("failed to insert %s: %w", table, err)
	}

	return nil
}

func (r *DuckDBRepository) deleteRow(ctx context.Context, tx *sql.Tx, table string, where squirrel.Eq) error {
	if _, err := r.sq.Delete(table).Where(where).RunWith(tx).ExecContext(ctx); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}

	return nil
}

func (r *DuckDBRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.ErrCodeCacheWriteFailed, "failed to begin transaction", err)
	}

	if err := fn(tx); err != nil {
		//nolint:errcheck // rollback error is secondary to fn's error
		tx.Rollback()

		return errors.Wrap(errors.ErrCodeCacheWriteFailed, "failed to save definition", err)
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeCacheWriteFailed, "failed to commit transaction", err)
	}

	return nil
}
