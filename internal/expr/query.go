// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package expr

import (
	"strings"
)

// Conjunctions joining a predicate to the one before it.
const (
	And = "AND"
	Or  = "OR"
)

// Join kinds.
const (
	InnerJoin = "INNER"
	LeftJoin  = "LEFT"
)

// Predicate is a single condition in the WHERE clause.
type Predicate struct {
	Column   string
	Operator string
	// Values holds the bound values. Comparisons have exactly one, IN
	// predicates have one per list element.
	Values []any
	// In is set for "column IN (...)" predicates.
	In bool
	// Conjunction is And or Or. It is ignored on the first predicate.
	Conjunction string
}

// Join is a join clause rendered after the FROM table.
type Join struct {
	Kind     string
	Table    string
	Left     string
	Operator string
	Right    string
}

// Query is the mutable specification of a query under construction.
type Query struct {
	Table      string
	Columns    []string
	Predicates []Predicate
	Joins      []Join
	// OrderColumn is empty when no sort key is set.
	OrderColumn    string
	OrderDirection string
	// Limit and Offset are not rendered when zero.
	Limit  int
	Offset int
}

// NewQuery returns a Query on table with the default projection.
func NewQuery(table string) *Query {
	q := &Query{Table: table}
	q.Reset()
	return q
}

// Reset clears every directive except the table.
func (q *Query) Reset() {
	q.Columns = []string{"*"}
	q.Predicates = nil
	q.Joins = nil
	q.OrderColumn = ""
	q.OrderDirection = "ASC"
	q.Limit = 0
	q.Offset = 0
}

// AddPredicate appends a comparison predicate.
func (q *Query) AddPredicate(conjunction, column, operator string, value any) {
	q.Predicates = append(q.Predicates, Predicate{
		Column:      column,
		Operator:    operator,
		Values:      []any{value},
		Conjunction: conjunction,
	})
}

// AddInPredicate appends a "column IN (...)" predicate.
func (q *Query) AddInPredicate(conjunction, column string, values []any) {
	vals := make([]any, len(values))
	copy(vals, values)
	q.Predicates = append(q.Predicates, Predicate{
		Column:      column,
		Operator:    "IN",
		Values:      vals,
		In:          true,
		Conjunction: conjunction,
	})
}

// AddJoin appends a join clause.
func (q *Query) AddJoin(kind, table, left, operator, right string) {
	q.Joins = append(q.Joins, Join{
		Kind:     kind,
		Table:    table,
		Left:     left,
		Operator: operator,
		Right:    right,
	})
}

// SetOrder replaces the sort key. The direction is upper-cased.
func (q *Query) SetOrder(column, direction string) {
	q.OrderColumn = column
	q.OrderDirection = strings.ToUpper(direction)
}

// Clone returns a deep copy of q.
func (q *Query) Clone() *Query {
	c := *q
	c.Columns = append([]string(nil), q.Columns...)
	c.Joins = append([]Join(nil), q.Joins...)
	c.Predicates = make([]Predicate, len(q.Predicates))
	for i, p := range q.Predicates {
		p.Values = append([]any(nil), p.Values...)
		c.Predicates[i] = p
	}
	if len(q.Predicates) == 0 {
		c.Predicates = nil
	}
	return &c
}

// SelectSQL renders the SELECT statement and its parameters.
func (q *Query) SelectSQL() (string, []any) {
	b := &sqlBuilder{}
	b.write("SELECT ")
	b.writeCommaSeparatedList(q.Columns, identity)
	b.write(" FROM ")
	b.write(q.Table)
	for _, j := range q.Joins {
		b.writeJoin(j)
	}
	params := b.writeWhere(q.Predicates)
	if q.OrderColumn != "" {
		b.write(" ORDER BY ")
		b.write(q.OrderColumn)
		b.write(" ")
		b.write(q.OrderDirection)
	}
	if q.Limit != 0 {
		b.write(" LIMIT ")
		b.writeInt(q.Limit)
	}
	if q.Offset != 0 {
		b.write(" OFFSET ")
		b.writeInt(q.Offset)
	}
	return b.getSQL(), params
}

// UpdateSQL renders an UPDATE of columns on the query table restricted by
// the query predicates. The parameters are the SET values followed by the
// WHERE values.
func (q *Query) UpdateSQL(columns []string, values []any) (string, []any) {
	b := &sqlBuilder{}
	b.write("UPDATE ")
	b.write(q.Table)
	b.write(" SET ")
	b.writeCommaSeparatedList(columns, func(_ int, column string) string {
		return column + " = ?"
	})
	params := append([]any{}, values...)
	params = append(params, b.writeWhere(q.Predicates)...)
	return b.getSQL(), params
}

// DeleteSQL renders a DELETE on the query table restricted by the query
// predicates.
func (q *Query) DeleteSQL() (string, []any) {
	b := &sqlBuilder{}
	b.write("DELETE FROM ")
	b.write(q.Table)
	params := b.writeWhere(q.Predicates)
	return b.getSQL(), params
}

// InsertSQL renders an INSERT of a single row into table. If returning is
// not empty a RETURNING clause for that column is appended.
func InsertSQL(table string, columns []string, returning string) string {
	b := &sqlBuilder{}
	b.write("INSERT INTO ")
	b.write(table)
	b.write(" ")
	b.writeInsert(columns)
	if returning != "" {
		b.write(" RETURNING ")
		b.write(returning)
	}
	return b.getSQL()
}
