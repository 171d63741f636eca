package projectionstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"

	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell"
)

// Dialect selects the SQL flavor a SQLStore generates.
type Dialect string

// Supported dialects, named as goqu registers them.
const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite3"
)

const (
	colID = "id"

	logMsgSQLQuery = "projectionstore: executing sql"
	logAttrQuery   = "query"
	logAttrTable   = "table"
	logAttrDialect = "dialect"
)

//go:embed schema/*.sql
var schemaFiles embed.FS

// EnsureSchema creates the projection tables of the dialect if they are missing.
func EnsureSchema(ctx context.Context, db *sqlx.DB, dialect Dialect) error {
	if db == nil {
		return ErrNilDatabase
	}

	file, err := schemaFileOf(dialect)
	if err != nil {
		return err
	}

	ddl, err := schemaFiles.ReadFile(file)
	if err != nil {
		return errors.Join(ErrCreatingSchema, err)
	}

	for _, statement := range strings.Split(string(ddl), ";") {
		if strings.TrimSpace(statement) == "" {
			continue
		}

		if _, err = db.ExecContext(ctx, statement); err != nil {
			return errors.Join(ErrCreatingSchema, err)
		}
	}

	return nil
}

func schemaFileOf(dialect Dialect) (string, error) {
	switch dialect {
	case DialectPostgres:
		return "schema/postgres.sql", nil
	case DialectSQLite:
		return "schema/sqlite.sql", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedDialect, dialect)
	}
}

// SQLStore is a Store over one table, with goqu building the statements and sqlx running them.
// The columns of R come from its `db` struct tags; the id column must be tagged `db:"id"`.
type SQLStore[R any] struct {
	db      *sqlx.DB
	dialect Dialect
	builder goqu.DialectWrapper
	table   string
	columns []any
	known   map[string]bool
	logger  shell.Logger
}

// SQLOption configures a SQLStore.
type SQLOption func(*sqlOptions)

type sqlOptions struct {
	logger shell.Logger
}

// WithLogger logs every statement at debug level.
func WithLogger(logger shell.Logger) SQLOption {
	return func(o *sqlOptions) {
		o.logger = logger
	}
}

// NewSQLStore creates a SQLStore for table. R must be a struct.
func NewSQLStore[R any](db *sqlx.DB, dialect Dialect, table string, options ...SQLOption) (*SQLStore[R], error) {
	if db == nil {
		return nil, ErrNilDatabase
	}

	if _, err := schemaFileOf(dialect); err != nil {
		return nil, err
	}

	var opts sqlOptions
	for _, option := range options {
		option(&opts)
	}

	names, err := columnsOf[R]()
	if err != nil {
		return nil, err
	}

	s := &SQLStore[R]{
		db:      db,
		dialect: dialect,
		builder: goqu.Dialect(string(dialect)),
		table:   table,
		known:   make(map[string]bool, len(names)),
		logger:  opts.logger,
	}

	for _, name := range names {
		s.columns = append(s.columns, name)
		s.known[name] = true
	}

	if !s.known[colID] {
		return nil, fmt.Errorf("%w: %s has no %q column", ErrUnknownColumn, table, colID)
	}

	return s, nil
}

func columnsOf[R any]() ([]string, error) {
	var zero R

	t := reflect.TypeOf(zero)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: record type %T is not a struct", ErrInvalidCriteria, zero)
	}

	names := make([]string, 0, t.NumField())

	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}

		names = append(names, strings.Split(tag, ",")[0])
	}

	return names, nil
}

// Insert relies on ON CONFLICT DO NOTHING, so a second insert with the same id affects no rows.
func (s *SQLStore[R]) Insert(ctx context.Context, id string, record R) (bool, error) {
	if id == "" {
		return false, ErrEmptyID
	}

	query, args, err := s.builder.
		Insert(s.table).
		Prepared(true).
		Rows(record).
		OnConflict(goqu.DoNothing()).
		ToSQL()
	if err != nil {
		return false, errors.Join(ErrQueryFailed, err)
	}

	s.logQuery(query)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, errors.Join(ErrQueryFailed, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, errors.Join(ErrQueryFailed, err)
	}

	return affected > 0, nil
}

// Update reads the row, applies mutate, and writes it back in one transaction.
// On PostgreSQL the row is locked with FOR UPDATE; SQLite serializes writers on its own.
func (s *SQLStore[R]) Update(ctx context.Context, id string, mutate func(*R)) (R, bool, error) {
	var zero R

	if id == "" {
		return zero, false, ErrEmptyID
	}

	if mutate == nil {
		return zero, false, ErrNilMutation
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return zero, false, errors.Join(ErrQueryFailed, err)
	}

	defer func() { _ = tx.Rollback() }()

	selectStmt := s.selectByID(id)
	if s.dialect == DialectPostgres {
		selectStmt = selectStmt.ForUpdate(exp.Wait)
	}

	query, args, err := selectStmt.ToSQL()
	if err != nil {
		return zero, false, errors.Join(ErrQueryFailed, err)
	}

	s.logQuery(query)

	var record R
	if err = tx.GetContext(ctx, &record, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return zero, false, nil
		}

		return zero, false, errors.Join(ErrQueryFailed, err)
	}

	mutate(&record)

	query, args, err = s.builder.
		Update(s.table).
		Prepared(true).
		Set(record).
		Where(goqu.C(colID).Eq(id)).
		ToSQL()
	if err != nil {
		return zero, false, errors.Join(ErrQueryFailed, err)
	}

	s.logQuery(query)

	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return zero, false, errors.Join(ErrQueryFailed, err)
	}

	if err = tx.Commit(); err != nil {
		return zero, false, errors.Join(ErrQueryFailed, err)
	}

	return record, true, nil
}

// Get returns the row with the given id.
func (s *SQLStore[R]) Get(ctx context.Context, id string) (R, bool, error) {
	var zero R

	query, args, err := s.selectByID(id).ToSQL()
	if err != nil {
		return zero, false, errors.Join(ErrQueryFailed, err)
	}

	s.logQuery(query)

	var record R
	if err = s.db.GetContext(ctx, &record, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return zero, false, nil
		}

		return zero, false, errors.Join(ErrQueryFailed, err)
	}

	return record, true, nil
}

// List filters with LIKE on criteria.Column and pages ordered by id.
func (s *SQLStore[R]) List(ctx context.Context, criteria Criteria) ([]R, error) {
	if err := criteria.validate(); err != nil {
		return nil, err
	}

	selectStmt := s.builder.
		From(s.table).
		Prepared(true).
		Select(s.columns...).
		Order(goqu.C(colID).Asc())

	if criteria.Like != "" {
		if !s.known[criteria.Column] {
			return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, criteria.Column)
		}

		selectStmt = selectStmt.Where(goqu.C(criteria.Column).Like(criteria.Like))
	}

	switch {
	case criteria.Limit > 0:
		selectStmt = selectStmt.Limit(uint(criteria.Limit))
	case criteria.Offset > 0:
		// SQLite accepts OFFSET only after a LIMIT
		selectStmt = selectStmt.Limit(math.MaxInt32)
	}

	if criteria.Offset > 0 {
		selectStmt = selectStmt.Offset(uint(criteria.Offset))
	}

	query, args, err := selectStmt.ToSQL()
	if err != nil {
		return nil, errors.Join(ErrQueryFailed, err)
	}

	s.logQuery(query)

	records := []R{}
	if err = s.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, errors.Join(ErrQueryFailed, err)
	}

	return records, nil
}

func (s *SQLStore[R]) selectByID(id string) *goqu.SelectDataset {
	return s.builder.
		From(s.table).
		Prepared(true).
		Select(s.columns...).
		Where(goqu.C(colID).Eq(id))
}

func (s *SQLStore[R]) logQuery(query string) {
	if s.logger != nil {
		s.logger.Debug(logMsgSQLQuery, logAttrTable, s.table, logAttrDialect, string(s.dialect), logAttrQuery, query)
	}
}
