// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package models

import (
	"context"
	"time"

	"github.com/canonical/sqlrecord"
)

var userSchema = sqlrecord.Schema{
	Name:  "User",
	Table: "users",
	Fillable: []string{
		"name",
		"email",
		"password",
		"status",
		"age",
		"created_at",
		"updated_at",
	},
}

type User struct {
	sqlrecord.Record
	ID        int64      `db:"id"`
	Name      string     `db:"name"`
	Email     string     `db:"email"`
	Password  string     `db:"password,omitempty"`
	Status    string     `db:"status,omitempty"`
	Age       int        `db:"age,omitempty"`
	CreatedAt *time.Time `db:"created_at,omitempty"`
	UpdatedAt *time.Time `db:"updated_at,omitempty"`
}

func (User) Schema() sqlrecord.Schema {
	return userSchema
}

// Posts returns the posts written by the user.
func (u *User) Posts(ctx context.Context, ex sqlrecord.Executor) ([]*Post, error) {
	return sqlrecord.Lazy(u, "posts", func() ([]*Post, error) {
		return sqlrecord.HasMany[Post](ctx, ex, u)
	})
}

// Comments returns the comments written by the user.
func (u *User) Comments(ctx context.Context, ex sqlrecord.Executor) ([]*Comment, error) {
	return sqlrecord.Lazy(u, "comments", func() ([]*Comment, error) {
		return sqlrecord.HasMany[Comment](ctx, ex, u)
	})
}

// Categories returns the categories the user follows, through the
// category_user pivot table.
func (u *User) Categories(ctx context.Context, ex sqlrecord.Executor) ([]*Category, error) {
	return sqlrecord.Lazy(u, "categories", func() ([]*Category, error) {
		return sqlrecord.BelongsToMany[Category](ctx, ex, u)
	})
}

func (*User) EagerLoad(ctx context.Context, ex sqlrecord.Executor, relation string, users []*User) error {
	switch relation {
	case "posts":
		return sqlrecord.EagerHasMany[User, Post](ctx, ex, users, relation)
	case "comments":
		return sqlrecord.EagerHasMany[User, Comment](ctx, ex, users, relation)
	case "categories":
		return sqlrecord.EagerBelongsToMany[User, Category](ctx, ex, users, relation)
	}
	return &sqlrecord.RelationError{Model: userSchema.Name, Relation: relation}
}
