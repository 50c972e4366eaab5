// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package models defines the blog models: users write posts and
// comments, posts belong to categories and users follow categories.
//
// Relation accessors resolve on first call and cache the result on the
// model. Every model also supports eager loading of its relations through
// sqlrecord.Query.With.
package models
