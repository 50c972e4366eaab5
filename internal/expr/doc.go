// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

/*
Package expr holds the accumulated state of a fluent query and renders it to
SQL. It covers everything relating to SQL text and query parameters, it does
not cover interaction with databases.

A Query is built up by the sqlrecord builder one directive at a time: table,
projected columns, predicates, joins, sort key and bounds. Rendering walks
that state in a fixed clause order:

	SELECT <cols> FROM <table> [<join>...] [WHERE <predicates>]
	[ORDER BY <col> <dir>] [LIMIT <n>] [OFFSET <n>]

Values are never written into the SQL text. Every predicate value is replaced
with a "?" placeholder and returned, in clause order, as a query parameter.
Dialects that need a different placeholder syntax rewrite the rendered SQL
afterwards.

Rendering does not mutate the Query, so the same Query can be rendered any
number of times with identical results.
*/
package expr
