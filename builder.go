// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlrecord

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"github.com/xwb1989/sqlparser"

	"github.com/canonical/sqlrecord/internal/expr"
)

// Builder accumulates the directives of a query and runs it on an
// [Executor]. Its methods mutate and return the receiver so they can be
// chained. Misuse of a directive is reported by the method that runs the
// query.
type Builder struct {
	ex         Executor
	q          *expr.Query
	primaryKey string
	eager      []string
	err        error
}

// NewBuilder returns an empty builder running on ex.
func NewBuilder(ex Executor) *Builder {
	return &Builder{
		ex:         ex,
		q:          expr.NewQuery(""),
		primaryKey: "id",
	}
}

// Table sets the table the query runs on.
func (b *Builder) Table(table string) *Builder {
	b.q.Table = table
	return b
}

// Select sets the projected columns. The default is "*".
func (b *Builder) Select(columns ...string) *Builder {
	if len(columns) == 0 {
		columns = []string{"*"}
	}
	b.q.Columns = append([]string(nil), columns...)
	return b
}

// PrimaryKey sets the column used by [Builder.Find]. The default is "id".
func (b *Builder) PrimaryKey(column string) *Builder {
	b.primaryKey = column
	return b
}

// Where adds a predicate joined with AND. It takes either a value, which
// is compared with "=", or an operator and a value:
//
//	b.Where("status", "active")
//	b.Where("age", ">", 18)
func (b *Builder) Where(column string, args ...any) *Builder {
	return b.where(expr.And, column, args)
}

// OrWhere is the same as [Builder.Where] but joins the predicate with OR.
func (b *Builder) OrWhere(column string, args ...any) *Builder {
	return b.where(expr.Or, column, args)
}

func (b *Builder) where(conjunction, column string, args []any) *Builder {
	switch len(args) {
	case 1:
		b.q.AddPredicate(conjunction, column, "=", args[0])
	case 2:
		op, ok := args[0].(string)
		if !ok {
			b.setErr(errors.Errorf("where %s: operator must be a string, got %T", column, args[0]))
			return b
		}
		b.q.AddPredicate(conjunction, column, op, args[1])
	default:
		b.setErr(errors.Errorf("where %s: expected value or operator and value, got %d arguments", column, len(args)))
	}
	return b
}

// WhereIn adds a "column IN (...)" predicate joined with AND. An empty
// list matches no rows.
func (b *Builder) WhereIn(column string, values []any) *Builder {
	b.q.AddInPredicate(expr.And, column, values)
	return b
}

// Join adds an INNER JOIN of table on "left op right".
func (b *Builder) Join(table, left, op, right string) *Builder {
	b.q.AddJoin(expr.InnerJoin, table, left, op, right)
	return b
}

// LeftJoin adds a LEFT JOIN of table on "left op right".
func (b *Builder) LeftJoin(table, left, op, right string) *Builder {
	b.q.AddJoin(expr.LeftJoin, table, left, op, right)
	return b
}

// OrderBy sets the sort key, replacing any previous one.
func (b *Builder) OrderBy(column, direction string) *Builder {
	b.q.SetOrder(column, direction)
	return b
}

// Limit sets the maximum number of rows. Zero means no limit.
func (b *Builder) Limit(n int) *Builder {
	b.q.Limit = n
	return b
}

// Offset sets the number of rows skipped. Zero means no offset.
func (b *Builder) Offset(n int) *Builder {
	b.q.Offset = n
	return b
}

// With records relations to eager load. The builder does not resolve
// them; see [Query.With].
func (b *Builder) With(relations ...string) *Builder {
	b.eager = append(b.eager, relations...)
	return b
}

// Eager returns the relation names recorded by [Builder.With].
func (b *Builder) Eager() []string {
	return b.eager
}

// Reset clears every directive except the table so the builder can be
// reused.
func (b *Builder) Reset() *Builder {
	b.q.Reset()
	b.eager = nil
	b.err = nil
	return b
}

// ToSQL renders the SELECT statement without running it.
func (b *Builder) ToSQL() (string, []any) {
	return b.q.SelectSQL()
}

// Get runs the SELECT statement and returns every row.
func (b *Builder) Get(ctx context.Context) ([]M, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	query, params := b.q.SelectSQL()
	return b.query(ctx, query, params)
}

// First runs the SELECT statement limited to one row. The returned row is
// nil if there is no match. The limit stays set on the builder.
func (b *Builder) First(ctx context.Context) (M, error) {
	b.q.Limit = 1
	rows, err := b.Get(ctx)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// Find returns the row whose primary key is id, or nil.
func (b *Builder) Find(ctx context.Context, id any) (M, error) {
	return b.Where(b.primaryKey, "=", id).First(ctx)
}

// Count returns the number of matching rows.
func (b *Builder) Count(ctx context.Context) (int64, error) {
	if err := b.check(); err != nil {
		return 0, err
	}
	columns := b.q.Columns
	b.q.Columns = []string{"COUNT(*) AS count"}
	query, params := b.q.SelectSQL()
	b.q.Columns = columns

	rows, err := b.query(ctx, query, params)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := toInt64(rows[0]["count"])
	if err != nil {
		return 0, &QueryError{SQL: query, Err: err}
	}
	return n, nil
}

// Exists reports whether any row matches.
func (b *Builder) Exists(ctx context.Context) (bool, error) {
	n, err := b.Count(ctx)
	return n > 0, err
}

// Insert inserts a row built from data, with the columns in sorted order,
// and returns the generated primary key.
func (b *Builder) Insert(ctx context.Context, data M) (int64, error) {
	columns, values := sortedColumns(data)
	return b.InsertOrdered(ctx, columns, values)
}

// InsertOrdered inserts a row with the given columns and values and
// returns the generated primary key.
func (b *Builder) InsertOrdered(ctx context.Context, columns []string, values []any) (int64, error) {
	if err := b.check(); err != nil {
		return 0, err
	}
	if len(columns) == 0 || len(columns) != len(values) {
		return 0, errors.Errorf("cannot insert %d columns with %d values", len(columns), len(values))
	}
	if b.ex.Dialect().Returning {
		query := expr.InsertSQL(b.q.Table, columns, b.primaryKey)
		rows, err := b.query(ctx, query, values)
		if err != nil {
			return 0, err
		}
		if len(rows) == 0 {
			return 0, nil
		}
		id, err := toInt64(rows[0][b.primaryKey])
		if err != nil {
			return 0, &QueryError{SQL: query, Err: err}
		}
		return id, nil
	}

	query := expr.InsertSQL(b.q.Table, columns, "")
	result, err := b.exec(ctx, query, values)
	if err != nil {
		return 0, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, &QueryError{SQL: query, Err: err}
	}
	return id, nil
}

// Update sets the columns of data, in sorted order, on every matching row
// and returns the number of rows affected.
func (b *Builder) Update(ctx context.Context, data M) (int64, error) {
	if err := b.check(); err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, errors.New("cannot update without columns")
	}
	columns, values := sortedColumns(data)
	query, params := b.q.UpdateSQL(columns, values)
	result, err := b.exec(ctx, query, params)
	if err != nil {
		return 0, err
	}
	return rowsAffected(query, result)
}

// Delete removes every matching row and returns the number of rows
// affected.
func (b *Builder) Delete(ctx context.Context) (int64, error) {
	if err := b.check(); err != nil {
		return 0, err
	}
	query, params := b.q.DeleteSQL()
	result, err := b.exec(ctx, query, params)
	if err != nil {
		return 0, err
	}
	return rowsAffected(query, result)
}

// RawResult is the outcome of [Builder.Raw]. Rows is set for statements
// that return rows, the counters for the others.
type RawResult struct {
	Rows         []M
	RowsAffected int64
	LastInsertID int64
}

// Raw runs an arbitrary statement with "?" placeholders. The builder's
// directives are ignored.
func (b *Builder) Raw(ctx context.Context, query string, args ...any) (*RawResult, error) {
	if returnsRows(query) {
		rows, err := b.query(ctx, query, args)
		if err != nil {
			return nil, err
		}
		return &RawResult{Rows: rows}, nil
	}
	result, err := b.exec(ctx, query, args)
	if err != nil {
		return nil, err
	}
	res := &RawResult{}
	// Not every driver reports both counters.
	res.RowsAffected, _ = result.RowsAffected()
	res.LastInsertID, _ = result.LastInsertId()
	return res, nil
}

var returningRx = regexp.MustCompile(`(?i)\bRETURNING\b`)

// returnsRows reports whether query produces a result set.
func returnsRows(query string) bool {
	switch sqlparser.Preview(query) {
	case sqlparser.StmtInsert, sqlparser.StmtReplace, sqlparser.StmtUpdate, sqlparser.StmtDelete:
		return returningRx.MatchString(query)
	case sqlparser.StmtDDL, sqlparser.StmtBegin, sqlparser.StmtCommit, sqlparser.StmtRollback,
		sqlparser.StmtSet, sqlparser.StmtUse:
		return false
	}
	return true
}

func (b *Builder) setErr(err error) {
	if b.err == nil {
		b.err = err
	}
}

func (b *Builder) check() error {
	if b.err != nil {
		return b.err
	}
	if b.q.Table == "" {
		return ErrNoTable
	}
	return nil
}

func (b *Builder) query(ctx context.Context, query string, params []any) ([]M, error) {
	rows, err := b.ex.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, &QueryError{SQL: query, Err: err}
	}
	result, err := scanRows(rows)
	if err != nil {
		return nil, &QueryError{SQL: query, Err: err}
	}
	return result, nil
}

func (b *Builder) exec(ctx context.Context, query string, params []any) (sql.Result, error) {
	result, err := b.ex.ExecContext(ctx, query, params...)
	if err != nil {
		return nil, &QueryError{SQL: query, Err: err}
	}
	return result, nil
}

// scanRows reads every row into a map keyed by column name and closes
// rows. Byte slices are returned as strings.
func scanRows(rows *sql.Rows) (result []M, err error) {
	defer func() {
		closeErr := rows.Close()
		if err == nil {
			err = closeErr
		}
	}()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, "cannot get columns")
	}
	result = []M{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Wrap(err, "cannot scan row")
		}
		row := make(M, len(columns))
		for i, column := range columns {
			if bs, ok := values[i].([]byte); ok {
				row[column] = string(bs)
				continue
			}
			row[column] = values[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func rowsAffected(query string, result sql.Result) (int64, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return 0, &QueryError{SQL: query, Err: err}
	}
	return n, nil
}

func sortedColumns(data M) ([]string, []any) {
	columns := make([]string, 0, len(data))
	for column := range data {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	values := make([]any, len(columns))
	for i, column := range columns {
		values[i] = data[column]
	}
	return columns, values
}

// toInt64 converts the integer representations drivers return.
func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
	}
	return 0, fmt.Errorf("cannot convert %T to integer", v)
}
