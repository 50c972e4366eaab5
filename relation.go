// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlrecord

import (
	"context"
	"sort"
	"strings"
)

// Lazy returns the cached named relation of m, calling load and caching
// its result on first access. A relation marked absent returns the zero
// value of V.
//
//	func (p *Post) User(ctx context.Context, ex sqlrecord.Executor) (*User, error) {
//		return sqlrecord.Lazy(p, "user", func() (*User, error) {
//			return sqlrecord.BelongsTo[User](ctx, ex, p)
//		})
//	}
func Lazy[V any](m Model, name string, load func() (V, error)) (V, error) {
	r := m.record()
	switch rel := r.relations[name]; rel.State {
	case Loaded:
		if v, ok := rel.Value.(V); ok {
			return v, nil
		}
	case Absent:
		var zero V
		return zero, nil
	}
	v, err := load()
	if err != nil {
		var zero V
		return zero, err
	}
	r.SetRelation(name, v)
	return v, nil
}

// PivotTable returns the default pivot table joining a and b: both model
// names lower-cased, sorted and joined with "_".
func PivotTable(a, b Schema) string {
	names := []string{strings.ToLower(a.Name), strings.ToLower(b.Name)}
	sort.Strings(names)
	return names[0] + "_" + names[1]
}

func keyOr(keys []string, i int, def string) string {
	if i < len(keys) && keys[i] != "" {
		return keys[i]
	}
	return def
}

func schemaOf[T any, PT ModelPtr[T]]() Schema {
	return PT(new(T)).Schema()
}

// BelongsTo returns the R that m references. The optional keys are the
// foreign key column on m, by default the lower-cased name of R followed
// by "_id", and the owner key on R, by default its primary key. The
// result is nil when the foreign key is unset or matches nothing.
func BelongsTo[R any, PR ModelPtr[R]](ctx context.Context, ex Executor, m Model, keys ...string) (PR, error) {
	related := schemaOf[R, PR]()
	foreignKey := keyOr(keys, 0, related.ForeignKey())
	ownerKey := keyOr(keys, 1, related.Key())
	fk := columnValue(m, foreignKey)
	if fk == nil {
		return nil, nil
	}
	return NewRepo[R, PR](ex).Where(ownerKey, "=", fk).First(ctx)
}

// HasMany returns the R that reference m. The optional keys are the
// foreign key column on R, by default the lower-cased name of m followed
// by "_id", and the local key on m, by default its primary key. The result
// is empty when the local key is unset.
func HasMany[R any, PR ModelPtr[R]](ctx context.Context, ex Executor, m Model, keys ...string) ([]PR, error) {
	schema := m.Schema()
	foreignKey := keyOr(keys, 0, schema.ForeignKey())
	localKey := keyOr(keys, 1, schema.Key())
	local := columnValue(m, localKey)
	if local == nil {
		return []PR{}, nil
	}
	return NewRepo[R, PR](ex).Where(foreignKey, "=", local).Get(ctx)
}

// HasOne is the same as [HasMany] but returns only the first match, or
// nil.
func HasOne[R any, PR ModelPtr[R]](ctx context.Context, ex Executor, m Model, keys ...string) (PR, error) {
	schema := m.Schema()
	foreignKey := keyOr(keys, 0, schema.ForeignKey())
	localKey := keyOr(keys, 1, schema.Key())
	local := columnValue(m, localKey)
	if local == nil {
		return nil, nil
	}
	return NewRepo[R, PR](ex).Where(foreignKey, "=", local).First(ctx)
}

// BelongsToMany returns the R linked to m through a pivot table. The
// optional keys are the pivot table, by default [PivotTable], the pivot
// column referencing m and the pivot column referencing R, by default
// their lower-cased names followed by "_id".
func BelongsToMany[R any, PR ModelPtr[R]](ctx context.Context, ex Executor, m Model, keys ...string) ([]PR, error) {
	this := m.Schema()
	related := schemaOf[R, PR]()
	pivot := keyOr(keys, 0, PivotTable(this, related))
	foreignPivotKey := keyOr(keys, 1, this.ForeignKey())
	relatedPivotKey := keyOr(keys, 2, related.ForeignKey())
	local := PrimaryKeyValue(m)
	if local == nil {
		return []PR{}, nil
	}
	table := related.TableName()
	return NewRepo[R, PR](ex).Query().
		Select(table+".*").
		Join(pivot, table+"."+related.Key(), "=", pivot+"."+relatedPivotKey).
		Where(pivot+"."+foreignPivotKey, "=", local).
		Get(ctx)
}
