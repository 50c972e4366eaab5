// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlrecord

import (
	"context"
	"reflect"
)

// Repo runs the lifecycle operations of the model type T on an executor.
//
//	users := sqlrecord.NewRepo[models.User](db)
//	u, err := users.Find(ctx, 1)
type Repo[T any, PT ModelPtr[T]] struct {
	ex     Executor
	schema Schema
}

// NewRepo returns a repository of T running on ex.
func NewRepo[T any, PT ModelPtr[T]](ex Executor) *Repo[T, PT] {
	return &Repo[T, PT]{ex: ex, schema: PT(new(T)).Schema()}
}

// Schema returns the schema of T.
func (r *Repo[T, PT]) Schema() Schema {
	return r.schema
}

// Query starts a query on the table of T.
func (r *Repo[T, PT]) Query() *Query[T, PT] {
	b := NewBuilder(r.ex).Table(r.schema.TableName()).PrimaryKey(r.schema.Key())
	return &Query[T, PT]{b: b, ex: r.ex}
}

// All returns every row of the table.
func (r *Repo[T, PT]) All(ctx context.Context) ([]PT, error) {
	return r.Query().Get(ctx)
}

// Where starts a query with a predicate. See [Builder.Where].
func (r *Repo[T, PT]) Where(column string, args ...any) *Query[T, PT] {
	return r.Query().Where(column, args...)
}

// With starts a query that eager loads relations.
func (r *Repo[T, PT]) With(relations ...string) *Query[T, PT] {
	return r.Query().With(relations...)
}

// Find returns the model with primary key id, or nil.
func (r *Repo[T, PT]) Find(ctx context.Context, id any) (PT, error) {
	return r.Query().Find(ctx, id)
}

// First returns the first row of the table, or nil.
func (r *Repo[T, PT]) First(ctx context.Context) (PT, error) {
	return r.Query().First(ctx)
}

// Count returns the number of rows in the table.
func (r *Repo[T, PT]) Count(ctx context.Context) (int64, error) {
	return r.Query().Count(ctx)
}

// Exists reports whether the table has any row.
func (r *Repo[T, PT]) Exists(ctx context.Context) (bool, error) {
	return r.Query().Exists(ctx)
}

// Create builds a model from the fillable entries of attrs and saves it.
func (r *Repo[T, PT]) Create(ctx context.Context, attrs M) (PT, error) {
	m, err := New[T, PT](attrs)
	if err != nil {
		return nil, err
	}
	if _, err := Save(ctx, r.ex, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Update sets attrs on the row with primary key id. No fillable filtering
// is applied. It reports whether a row was affected.
func (r *Repo[T, PT]) Update(ctx context.Context, id any, attrs M) (bool, error) {
	n, err := r.Query().Where(r.schema.Key(), "=", id).b.Update(ctx, attrs)
	return n > 0, err
}

// Delete removes the row with primary key id. It reports whether a row
// was affected.
func (r *Repo[T, PT]) Delete(ctx context.Context, id any) (bool, error) {
	n, err := r.Query().Where(r.schema.Key(), "=", id).b.Delete(ctx)
	return n > 0, err
}

// Save inserts or updates m. See [Save].
func (r *Repo[T, PT]) Save(ctx context.Context, m PT) (bool, error) {
	return Save(ctx, r.ex, m)
}

// Destroy deletes m. See [Destroy].
func (r *Repo[T, PT]) Destroy(ctx context.Context, m PT) (bool, error) {
	return Destroy(ctx, r.ex, m)
}

// Refresh reloads the attributes of m from the database and clears its
// relation cache. It reports whether the row still exists.
func (r *Repo[T, PT]) Refresh(ctx context.Context, m PT) (bool, error) {
	id := PrimaryKeyValue(m)
	if id == nil {
		return false, ErrNoPrimaryKey
	}
	row, err := r.Query().b.Find(ctx, id)
	if err != nil || row == nil {
		return false, err
	}
	if err := hydrate(m, row); err != nil {
		return false, err
	}
	m.record().relations = nil
	return true, nil
}

// Hydrate builds persisted models from rows.
func (r *Repo[T, PT]) Hydrate(rows []M) ([]PT, error) {
	return hydrateAll[T, PT](rows)
}

func hydrateAll[T any, PT ModelPtr[T]](rows []M) ([]PT, error) {
	models := make([]PT, 0, len(rows))
	for _, row := range rows {
		m := PT(new(T))
		if err := hydrate(m, row); err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return models, nil
}

// Save persists m. A model without primary key is inserted with its
// fillable columns, then receives the generated key; Save reports false
// if there was nothing to insert. Otherwise only the dirty columns are
// updated and Save reports whether a row was affected, or true when
// nothing changed and no statement was run.
func Save(ctx context.Context, ex Executor, m Model) (bool, error) {
	if IsNew(m) {
		return insert(ctx, ex, m)
	}
	return update(ctx, ex, m)
}

func insert(ctx context.Context, ex Executor, m Model) (bool, error) {
	schema := m.Schema()
	pk := schema.Key()
	columns, values := infoOf(m).Values(reflect.ValueOf(m))
	var insertColumns []string
	var insertValues []any
	for i, column := range columns {
		if column == pk || !schema.IsFillable(column) {
			continue
		}
		insertColumns = append(insertColumns, column)
		insertValues = append(insertValues, values[i])
	}
	if len(insertColumns) == 0 {
		return false, nil
	}

	id, err := NewBuilder(ex).Table(schema.TableName()).PrimaryKey(pk).InsertOrdered(ctx, insertColumns, insertValues)
	if err != nil {
		return false, err
	}
	if err := decode(M{pk: id}, m); err != nil {
		return false, err
	}
	snapshot(m)
	return true, nil
}

func update(ctx context.Context, ex Executor, m Model) (bool, error) {
	dirty := Dirty(m)
	if len(dirty) == 0 {
		return true, nil
	}
	schema := m.Schema()
	n, err := NewBuilder(ex).Table(schema.TableName()).
		Where(schema.Key(), "=", PrimaryKeyValue(m)).
		Update(ctx, dirty)
	if err != nil {
		return false, err
	}
	snapshot(m)
	return n > 0, nil
}

// Destroy deletes the row of m. It reports false without running a
// statement when m has no primary key.
func Destroy(ctx context.Context, ex Executor, m Model) (bool, error) {
	id := PrimaryKeyValue(m)
	if id == nil {
		return false, nil
	}
	schema := m.Schema()
	n, err := NewBuilder(ex).Table(schema.TableName()).Where(schema.Key(), "=", id).Delete(ctx)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Query is a query whose rows are returned as models of type T.
type Query[T any, PT ModelPtr[T]] struct {
	b  *Builder
	ex Executor
}

// Builder returns the underlying builder.
func (q *Query[T, PT]) Builder() *Builder {
	return q.b
}

// Select sets the projected columns.
func (q *Query[T, PT]) Select(columns ...string) *Query[T, PT] {
	q.b.Select(columns...)
	return q
}

// Where adds a predicate joined with AND. See [Builder.Where].
func (q *Query[T, PT]) Where(column string, args ...any) *Query[T, PT] {
	q.b.Where(column, args...)
	return q
}

// OrWhere adds a predicate joined with OR.
func (q *Query[T, PT]) OrWhere(column string, args ...any) *Query[T, PT] {
	q.b.OrWhere(column, args...)
	return q
}

// WhereIn adds a "column IN (...)" predicate.
func (q *Query[T, PT]) WhereIn(column string, values []any) *Query[T, PT] {
	q.b.WhereIn(column, values)
	return q
}

// Join adds an INNER JOIN.
func (q *Query[T, PT]) Join(table, left, op, right string) *Query[T, PT] {
	q.b.Join(table, left, op, right)
	return q
}

// LeftJoin adds a LEFT JOIN.
func (q *Query[T, PT]) LeftJoin(table, left, op, right string) *Query[T, PT] {
	q.b.LeftJoin(table, left, op, right)
	return q
}

// OrderBy sets the sort key.
func (q *Query[T, PT]) OrderBy(column, direction string) *Query[T, PT] {
	q.b.OrderBy(column, direction)
	return q
}

// Limit sets the maximum number of rows.
func (q *Query[T, PT]) Limit(n int) *Query[T, PT] {
	q.b.Limit(n)
	return q
}

// Offset sets the number of rows skipped.
func (q *Query[T, PT]) Offset(n int) *Query[T, PT] {
	q.b.Offset(n)
	return q
}

// With eager loads the named relations of the returned models. T must
// implement [EagerLoader].
func (q *Query[T, PT]) With(relations ...string) *Query[T, PT] {
	q.b.With(relations...)
	return q
}

// Get returns every matching model.
func (q *Query[T, PT]) Get(ctx context.Context) ([]PT, error) {
	rows, err := q.b.Get(ctx)
	if err != nil {
		return nil, err
	}
	models, err := hydrateAll[T, PT](rows)
	if err != nil {
		return nil, err
	}
	if err := eagerLoad[T, PT](ctx, q.ex, models, q.b.Eager()); err != nil {
		return nil, err
	}
	return models, nil
}

// First returns the first matching model, or nil.
func (q *Query[T, PT]) First(ctx context.Context) (PT, error) {
	q.b.Limit(1)
	models, err := q.Get(ctx)
	if err != nil || len(models) == 0 {
		return nil, err
	}
	return models[0], nil
}

// Find returns the model with primary key id, or nil.
func (q *Query[T, PT]) Find(ctx context.Context, id any) (PT, error) {
	return q.Where(q.b.primaryKey, "=", id).First(ctx)
}

// Count returns the number of matching rows.
func (q *Query[T, PT]) Count(ctx context.Context) (int64, error) {
	return q.b.Count(ctx)
}

// Exists reports whether any row matches.
func (q *Query[T, PT]) Exists(ctx context.Context) (bool, error) {
	return q.b.Exists(ctx)
}
