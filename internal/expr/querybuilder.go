// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package expr

import (
	"bytes"
	"strconv"
)

// sqlBuilder is used to generate SQL string piece by piece using the struct
// methods.
type sqlBuilder struct {
	buf bytes.Buffer
}

// writeInsert writes the column list and a single row of placeholders.
func (b *sqlBuilder) writeInsert(columns []string) {
	b.buf.WriteString("(")
	b.writeCommaSeparatedList(columns, identity)
	b.buf.WriteString(") VALUES (")
	b.writeInputs(len(columns))
	b.buf.WriteString(")")
}

// writeInputs writes num comma separated placeholders.
func (b *sqlBuilder) writeInputs(num int) {
	b.writeCommaSeparatedList(make([]string, num), func(int, string) string {
		return "?"
	})
}

// writeJoin writes a single join clause.
func (b *sqlBuilder) writeJoin(j Join) {
	b.buf.WriteString(" ")
	b.buf.WriteString(j.Kind)
	b.buf.WriteString(" JOIN ")
	b.buf.WriteString(j.Table)
	b.buf.WriteString(" ON ")
	b.buf.WriteString(j.Left)
	b.buf.WriteString(" ")
	b.buf.WriteString(j.Operator)
	b.buf.WriteString(" ")
	b.buf.WriteString(j.Right)
}

// writeWhere writes the WHERE clause for predicates and returns the values to
// bind, in placeholder order. Nothing is written for an empty list.
func (b *sqlBuilder) writeWhere(predicates []Predicate) []any {
	params := []any{}
	if len(predicates) == 0 {
		return params
	}
	b.buf.WriteString(" WHERE ")
	for i, p := range predicates {
		if i != 0 {
			b.buf.WriteString(" ")
			b.buf.WriteString(p.Conjunction)
			b.buf.WriteString(" ")
		}
		if !p.In {
			b.buf.WriteString(p.Column)
			b.buf.WriteString(" ")
			b.buf.WriteString(p.Operator)
			b.buf.WriteString(" ?")
			params = append(params, p.Values[0])
			continue
		}
		// An empty IN list matches nothing.
		if len(p.Values) == 0 {
			b.buf.WriteString("1 = 0")
			continue
		}
		b.buf.WriteString(p.Column)
		b.buf.WriteString(" IN (")
		b.writeInputs(len(p.Values))
		b.buf.WriteString(")")
		params = append(params, p.Values...)
	}
	return params
}

// writeCommaSeparatedList writes out the provided list using the writer to
// write each element into the SQL.
func (b *sqlBuilder) writeCommaSeparatedList(list []string, writer func(i int, s string) string) {
	for i, s := range list {
		if i != 0 {
			b.buf.WriteString(", ")
		}
		b.buf.WriteString(writer(i, s))
	}
}

func (b *sqlBuilder) writeInt(n int) {
	b.buf.WriteString(strconv.Itoa(n))
}

// write writes the SQL to the sqlBuilder.
func (b *sqlBuilder) write(sql string) {
	b.buf.WriteString(sql)
}

// getSQL returns the generated SQL string
func (b *sqlBuilder) getSQL() string {
	return b.buf.String()
}

func identity(_ int, s string) string {
	return s
}
