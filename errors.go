// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlrecord

import (
	"database/sql"
	"fmt"

	"github.com/pkg/errors"
)

var ErrTXDone = sql.ErrTxDone

// ErrUnknownDriver is returned when a Config names a driver that sqlrecord
// cannot open.
var ErrUnknownDriver = errors.New("unknown driver")

// ErrNoTable is returned by builders run without a table.
var ErrNoTable = errors.New("no table selected")

// ErrNoPrimaryKey is returned when an operation needs the primary key of a
// model that has not been persisted.
var ErrNoPrimaryKey = errors.New("model has no primary key value")

// ConnectionError is returned when the database handle cannot be
// established.
type ConnectionError struct {
	Driver string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("cannot connect to %s database: %s", e.Driver, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// QueryError is returned when the database rejects a statement. SQL holds
// the rendered statement.
type QueryError struct {
	SQL string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed: %s (query: %s)", e.Err, e.SQL)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// RelationError is returned when eager loading names a relation the model
// does not declare.
type RelationError struct {
	Model    string
	Relation string
}

func (e *RelationError) Error() string {
	return fmt.Sprintf("model %s has no relation %q", e.Model, e.Relation)
}

var errNilHandle = errors.New("nil database handle")
