// Copyright (c) 2025 COREGX. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package core

import (
	"sort"
	"strings"

	"github.com/coregx/memora/internal/dialects"
)

// Expression represents a condition tree that can be embedded in a WHERE clause.
// Expressions build SQL with "?" placeholders; renumbering to dialect-specific
// placeholders happens at query render time.
//
// Example:
//
//	albums.Query().All(ctx, &rows, memora.And(
//	    memora.Eq("release_year", 2020),
//	    memora.GreaterThan("copies_sold", 1000),
//	))
type Expression interface {
	// Build converts the expression into a SQL fragment and bind values.
	// The dialect parameter is used for identifier quoting only.
	Build(dialect dialects.Dialect) (sql string, args []interface{})
}

// RawExp represents a raw SQL expression with optional parameter bindings.
type RawExp struct {
	SQL  string
	Args []interface{}
}

// NewExp creates a raw SQL expression with optional parameter bindings.
// The SQL string may contain ? placeholders.
func NewExp(sql string, args ...interface{}) Expression {
	return &RawExp{
		SQL:  sql,
		Args: args,
	}
}

// Build returns the raw SQL as-is with its args.
func (e *RawExp) Build(_ dialects.Dialect) (string, []interface{}) {
	return e.SQL, e.Args
}

// CompareExp represents a comparison expression (=, <>, >, <, >=, <=).
type CompareExp struct {
	Col      string
	Operator string
	Value    interface{}
}

// Build converts the comparison into a SQL fragment.
// A nil value with the "=" operator renders IS NULL.
func (e *CompareExp) Build(dialect dialects.Dialect) (string, []interface{}) {
	col := dialect.QuoteIdentifier(e.Col)
	if e.Value == nil {
		if e.Operator == "=" {
			return col + " IS NULL", nil
		}
		return col + " IS NOT NULL", nil
	}
	return col + " " + e.Operator + " ?", []interface{}{e.Value}
}

// Eq creates an equality expression (col = value).
func Eq(col string, value interface{}) Expression {
	return &CompareExp{Col: col, Operator: "=", Value: value}
}

// NotEq creates an inequality expression (col <> value).
func NotEq(col string, value interface{}) Expression {
	return &CompareExp{Col: col, Operator: "<>", Value: value}
}

// GreaterThan creates a col > value expression.
func GreaterThan(col string, value interface{}) Expression {
	return &CompareExp{Col: col, Operator: ">", Value: value}
}

// LessThan creates a col < value expression.
func LessThan(col string, value interface{}) Expression {
	return &CompareExp{Col: col, Operator: "<", Value: value}
}

// GreaterOrEqual creates a col >= value expression.
func GreaterOrEqual(col string, value interface{}) Expression {
	return &CompareExp{Col: col, Operator: ">=", Value: value}
}

// LessOrEqual creates a col <= value expression.
func LessOrEqual(col string, value interface{}) Expression {
	return &CompareExp{Col: col, Operator: "<=", Value: value}
}

// InExp represents an IN expression (col IN (v1, v2, ...)).
type InExp struct {
	Col    string
	Values []interface{}
}

// In creates an IN expression. An empty value list renders 0=1 so the
// condition matches no rows instead of producing invalid SQL.
func In(col string, values ...interface{}) Expression {
	return &InExp{Col: col, Values: values}
}

// Build converts the IN expression into a SQL fragment.
func (e *InExp) Build(dialect dialects.Dialect) (string, []interface{}) {
	if len(e.Values) == 0 {
		return "0=1", nil
	}
	placeholders := make([]string, len(e.Values))
	for i := range e.Values {
		placeholders[i] = "?"
	}
	return dialect.QuoteIdentifier(e.Col) + " IN (" + strings.Join(placeholders, ", ") + ")", e.Values
}

// HashExp represents a hash-based expression using column-value pairs.
// Keys are sorted so SQL generation is deterministic.
//
// Special value handling:
//   - nil value → "column IS NULL"
//   - []interface{} → "column IN (...)"
//   - Expression → recursively builds nested expression
type HashExp map[string]interface{}

// Build converts a HashExp into a SQL fragment; conditions combine with AND.
func (e HashExp) Build(dialect dialects.Dialect) (string, []interface{}) {
	if len(e) == 0 {
		return "", nil
	}

	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	var args []interface{}
	for _, key := range keys {
		sql, subArgs := buildHashExpValue(key, e[key], dialect)
		if sql != "" {
			parts = append(parts, sql)
			args = append(args, subArgs...)
		}
	}

	if len(parts) == 0 {
		return "", nil
	}
	if len(parts) == 1 {
		return parts[0], args
	}
	return strings.Join(parts, " AND "), args
}

// buildHashExpValue processes a single key-value pair from HashExp.
func buildHashExpValue(key string, value interface{}, dialect dialects.Dialect) (sql string, args []interface{}) {
	col := dialect.QuoteIdentifier(key)

	switch v := value.(type) {
	case nil:
		return col + " IS NULL", nil

	case Expression:
		sql, args = v.Build(dialect)
		if sql != "" {
			return "(" + sql + ")", args
		}
		return "", nil

	case []interface{}:
		if len(v) == 0 {
			return "0=1", nil
		}
		in := In(key, v...)
		return in.Build(dialect)

	default:
		return col + "=?", []interface{}{value}
	}
}

// junctionExp combines sub-expressions with AND or OR.
type junctionExp struct {
	op    string
	exprs []Expression
}

// And combines expressions with AND. Empty sub-expressions are skipped.
func And(exprs ...Expression) Expression {
	return &junctionExp{op: "AND", exprs: exprs}
}

// Or combines expressions with OR. Empty sub-expressions are skipped.
func Or(exprs ...Expression) Expression {
	return &junctionExp{op: "OR", exprs: exprs}
}

// Build converts the junction into a parenthesized SQL fragment.
func (e *junctionExp) Build(dialect dialects.Dialect) (string, []interface{}) {
	var parts []string
	var args []interface{}

	for _, expr := range e.exprs {
		if expr == nil {
			continue
		}
		sql, subArgs := expr.Build(dialect)
		if sql == "" {
			continue
		}
		parts = append(parts, sql)
		args = append(args, subArgs...)
	}

	if len(parts) == 0 {
		return "", nil
	}
	if len(parts) == 1 {
		return parts[0], args
	}
	return "(" + strings.Join(parts, " "+e.op+" ") + ")", args
}

// NotExp negates a sub-expression.
type NotExp struct {
	Expr Expression
}

// Not negates an expression.
func Not(expr Expression) Expression {
	return &NotExp{Expr: expr}
}

// Build converts the negation into a SQL fragment.
func (e *NotExp) Build(dialect dialects.Dialect) (string, []interface{}) {
	if e.Expr == nil {
		return "", nil
	}
	sql, args := e.Expr.Build(dialect)
	if sql == "" {
		return "", nil
	}
	return "NOT (" + sql + ")", args
}
