// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package models

import (
	"context"
	"time"

	"github.com/canonical/sqlrecord"
)

var commentSchema = sqlrecord.Schema{
	Name:     "Comment",
	Table:    "comments",
	Fillable: []string{"user_id", "post_id", "content", "created_at", "updated_at"},
}

type Comment struct {
	sqlrecord.Record
	ID        int64      `db:"id"`
	UserID    int64      `db:"user_id"`
	PostID    int64      `db:"post_id"`
	Content   string     `db:"content"`
	CreatedAt *time.Time `db:"created_at,omitempty"`
	UpdatedAt *time.Time `db:"updated_at,omitempty"`
}

func (Comment) Schema() sqlrecord.Schema {
	return commentSchema
}

// User returns the author of the comment.
func (c *Comment) User(ctx context.Context, ex sqlrecord.Executor) (*User, error) {
	return sqlrecord.Lazy(c, "user", func() (*User, error) {
		return sqlrecord.BelongsTo[User](ctx, ex, c)
	})
}

// Post returns the post the comment was made on.
func (c *Comment) Post(ctx context.Context, ex sqlrecord.Executor) (*Post, error) {
	return sqlrecord.Lazy(c, "post", func() (*Post, error) {
		return sqlrecord.BelongsTo[Post](ctx, ex, c)
	})
}

func (*Comment) EagerLoad(ctx context.Context, ex sqlrecord.Executor, relation string, comments []*Comment) error {
	switch relation {
	case "user":
		return sqlrecord.EagerBelongsTo[Comment, User](ctx, ex, comments, relation)
	case "post":
		return sqlrecord.EagerBelongsTo[Comment, Post](ctx, ex, comments, relation)
	}
	return &sqlrecord.RelationError{Model: commentSchema.Name, Relation: relation}
}
