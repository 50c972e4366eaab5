// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package models

import (
	"context"
	"time"

	"github.com/canonical/sqlrecord"
)

var categorySchema = sqlrecord.Schema{
	Name:     "Category",
	Table:    "categories",
	Fillable: []string{"name", "slug", "created_at", "updated_at"},
}

type Category struct {
	sqlrecord.Record
	ID        int64      `db:"id"`
	Name      string     `db:"name"`
	Slug      string     `db:"slug"`
	CreatedAt *time.Time `db:"created_at,omitempty"`
	UpdatedAt *time.Time `db:"updated_at,omitempty"`
}

func (Category) Schema() sqlrecord.Schema {
	return categorySchema
}

// Posts returns the posts filed under the category.
func (c *Category) Posts(ctx context.Context, ex sqlrecord.Executor) ([]*Post, error) {
	return sqlrecord.Lazy(c, "posts", func() ([]*Post, error) {
		return sqlrecord.HasMany[Post](ctx, ex, c)
	})
}

// Users returns the users following the category.
func (c *Category) Users(ctx context.Context, ex sqlrecord.Executor) ([]*User, error) {
	return sqlrecord.Lazy(c, "users", func() ([]*User, error) {
		return sqlrecord.BelongsToMany[User](ctx, ex, c)
	})
}

func (*Category) EagerLoad(ctx context.Context, ex sqlrecord.Executor, relation string, categories []*Category) error {
	switch relation {
	case "posts":
		return sqlrecord.EagerHasMany[Category, Post](ctx, ex, categories, relation)
	case "users":
		return sqlrecord.EagerBelongsToMany[Category, User](ctx, ex, categories, relation)
	}
	return &sqlrecord.RelationError{Model: categorySchema.Name, Relation: relation}
}
