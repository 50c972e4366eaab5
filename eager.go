// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlrecord

import (
	"context"
	"fmt"
)

// EagerLoader is implemented by models that support [Query.With]. The
// implementation resolves the named relation for every model in one
// batch, usually through one of the Eager functions, and returns a
// *RelationError for names it does not know.
//
//	func (*User) EagerLoad(ctx context.Context, ex sqlrecord.Executor, relation string, users []*User) error {
//		switch relation {
//		case "posts":
//			return sqlrecord.EagerHasMany[User, Post](ctx, ex, users, relation)
//		}
//		return &sqlrecord.RelationError{Model: "User", Relation: relation}
//	}
type EagerLoader[T any] interface {
	EagerLoad(ctx context.Context, ex Executor, relation string, models []*T) error
}

func eagerLoad[T any, PT ModelPtr[T]](ctx context.Context, ex Executor, models []PT, relations []string) error {
	if len(relations) == 0 || len(models) == 0 {
		return nil
	}
	loader, ok := any(models[0]).(EagerLoader[T])
	if !ok {
		return &RelationError{Model: models[0].Schema().Name, Relation: relations[0]}
	}
	ptrs := make([]*T, len(models))
	for i, m := range models {
		ptrs[i] = (*T)(m)
	}
	for _, relation := range relations {
		if err := loader.EagerLoad(ctx, ex, relation, ptrs); err != nil {
			return err
		}
	}
	return nil
}

// keyOf returns a map key under which equal column values from different
// Go types, such as int and int64, collide.
func keyOf(v any) string {
	return fmt.Sprint(v)
}

// distinct returns the set column values of models, in first-seen order.
func distinct[P any, PP ModelPtr[P]](models []PP, name string) []any {
	seen := map[string]bool{}
	var values []any
	for _, m := range models {
		v := columnValue(m, name)
		if v == nil || seen[keyOf(v)] {
			continue
		}
		seen[keyOf(v)] = true
		values = append(values, v)
	}
	return values
}

// EagerBelongsTo resolves [BelongsTo] for every parent with a single
// query and caches the result under name.
func EagerBelongsTo[P any, R any, PP ModelPtr[P], PR ModelPtr[R]](ctx context.Context, ex Executor, parents []PP, name string, keys ...string) error {
	related := schemaOf[R, PR]()
	foreignKey := keyOr(keys, 0, related.ForeignKey())
	ownerKey := keyOr(keys, 1, related.Key())

	owners := map[string]PR{}
	if values := distinct[P, PP](parents, foreignKey); len(values) > 0 {
		results, err := NewRepo[R, PR](ex).Query().WhereIn(ownerKey, values).Get(ctx)
		if err != nil {
			return err
		}
		for _, r := range results {
			owners[keyOf(columnValue(r, ownerKey))] = r
		}
	}
	for _, p := range parents {
		var owner PR
		if fk := columnValue(p, foreignKey); fk != nil {
			owner = owners[keyOf(fk)]
		}
		p.record().SetRelation(name, owner)
	}
	return nil
}

// EagerHasMany resolves [HasMany] for every parent with a single query and
// caches the result under name.
func EagerHasMany[P any, R any, PP ModelPtr[P], PR ModelPtr[R]](ctx context.Context, ex Executor, parents []PP, name string, keys ...string) error {
	groups, localKey, err := eagerChildren[P, R, PP, PR](ctx, ex, parents, keys)
	if err != nil {
		return err
	}
	for _, p := range parents {
		children := groups[keyOf(columnValue(p, localKey))]
		if children == nil || columnValue(p, localKey) == nil {
			children = []PR{}
		}
		p.record().SetRelation(name, children)
	}
	return nil
}

// EagerHasOne resolves [HasOne] for every parent with a single query and
// caches the result under name.
func EagerHasOne[P any, R any, PP ModelPtr[P], PR ModelPtr[R]](ctx context.Context, ex Executor, parents []PP, name string, keys ...string) error {
	groups, localKey, err := eagerChildren[P, R, PP, PR](ctx, ex, parents, keys)
	if err != nil {
		return err
	}
	for _, p := range parents {
		var child PR
		if local := columnValue(p, localKey); local != nil {
			if children := groups[keyOf(local)]; len(children) > 0 {
				child = children[0]
			}
		}
		p.record().SetRelation(name, child)
	}
	return nil
}

// eagerChildren fetches the R referencing any of parents and groups them
// by the referenced local key.
func eagerChildren[P any, R any, PP ModelPtr[P], PR ModelPtr[R]](ctx context.Context, ex Executor, parents []PP, keys []string) (map[string][]PR, string, error) {
	schema := schemaOf[P, PP]()
	foreignKey := keyOr(keys, 0, schema.ForeignKey())
	localKey := keyOr(keys, 1, schema.Key())

	groups := map[string][]PR{}
	values := distinct[P, PP](parents, localKey)
	if len(values) == 0 {
		return groups, localKey, nil
	}
	results, err := NewRepo[R, PR](ex).Query().WhereIn(foreignKey, values).Get(ctx)
	if err != nil {
		return nil, "", err
	}
	for _, r := range results {
		k := keyOf(columnValue(r, foreignKey))
		groups[k] = append(groups[k], r)
	}
	return groups, localKey, nil
}

// EagerBelongsToMany resolves [BelongsToMany] for every parent with a
// single query and caches the result under name.
func EagerBelongsToMany[P any, R any, PP ModelPtr[P], PR ModelPtr[R]](ctx context.Context, ex Executor, parents []PP, name string, keys ...string) error {
	this := schemaOf[P, PP]()
	related := schemaOf[R, PR]()
	pivot := keyOr(keys, 0, PivotTable(this, related))
	foreignPivotKey := keyOr(keys, 1, this.ForeignKey())
	relatedPivotKey := keyOr(keys, 2, related.ForeignKey())

	groups := map[string][]PR{}
	if values := distinct[P, PP](parents, this.Key()); len(values) > 0 {
		table := related.TableName()
		// The pivot column is aliased so that it cannot shadow a column of
		// the related table.
		alias := "pivot_" + foreignPivotKey
		rows, err := NewBuilder(ex).
			Table(table).
			Select(table+".*", pivot+"."+foreignPivotKey+" AS "+alias).
			Join(pivot, table+"."+related.Key(), "=", pivot+"."+relatedPivotKey).
			WhereIn(pivot+"."+foreignPivotKey, values).
			Get(ctx)
		if err != nil {
			return err
		}
		for _, row := range rows {
			k := keyOf(row[alias])
			delete(row, alias)
			r := PR(new(R))
			if err := hydrate(r, row); err != nil {
				return err
			}
			groups[k] = append(groups[k], r)
		}
	}
	for _, p := range parents {
		children := groups[keyOf(PrimaryKeyValue(p))]
		if children == nil {
			children = []PR{}
		}
		p.record().SetRelation(name, children)
	}
	return nil
}
