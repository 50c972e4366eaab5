// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package models

import (
	"context"
	"time"

	"github.com/canonical/sqlrecord"
)

var postSchema = sqlrecord.Schema{
	Name:  "Post",
	Table: "posts",
	Fillable: []string{
		"user_id",
		"category_id",
		"title",
		"content",
		"status",
		"created_at",
		"updated_at",
	},
}

type Post struct {
	sqlrecord.Record
	ID     int64 `db:"id"`
	UserID int64 `db:"user_id"`
	// CategoryID is nil for uncategorised posts.
	CategoryID *int64     `db:"category_id,omitempty"`
	Title      string     `db:"title"`
	Content    string     `db:"content"`
	Status     string     `db:"status,omitempty"`
	CreatedAt  *time.Time `db:"created_at,omitempty"`
	UpdatedAt  *time.Time `db:"updated_at,omitempty"`
}

func (Post) Schema() sqlrecord.Schema {
	return postSchema
}

// User returns the author of the post.
func (p *Post) User(ctx context.Context, ex sqlrecord.Executor) (*User, error) {
	return sqlrecord.Lazy(p, "user", func() (*User, error) {
		return sqlrecord.BelongsTo[User](ctx, ex, p)
	})
}

// Category returns the category of the post, or nil.
func (p *Post) Category(ctx context.Context, ex sqlrecord.Executor) (*Category, error) {
	return sqlrecord.Lazy(p, "category", func() (*Category, error) {
		return sqlrecord.BelongsTo[Category](ctx, ex, p)
	})
}

// Comments returns the comments on the post.
func (p *Post) Comments(ctx context.Context, ex sqlrecord.Executor) ([]*Comment, error) {
	return sqlrecord.Lazy(p, "comments", func() ([]*Comment, error) {
		return sqlrecord.HasMany[Comment](ctx, ex, p)
	})
}

func (*Post) EagerLoad(ctx context.Context, ex sqlrecord.Executor, relation string, posts []*Post) error {
	switch relation {
	case "user":
		return sqlrecord.EagerBelongsTo[Post, User](ctx, ex, posts, relation)
	case "category":
		return sqlrecord.EagerBelongsTo[Post, Category](ctx, ex, posts, relation)
	case "comments":
		return sqlrecord.EagerHasMany[Post, Comment](ctx, ex, posts, relation)
	}
	return &sqlrecord.RelationError{Model: postSchema.Name, Relation: relation}
}
