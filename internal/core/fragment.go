// Copyright (c) 2025 COREGX. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/coregx/memora/internal/dialects"
)

// FragmentKind identifies the clause slot a fragment occupies.
type FragmentKind int

// Fragment kinds.
const (
	KindProjection FragmentKind = iota
	KindPredicate
	KindOrdering
	KindLimit
)

// Fragment is one immutable clause of a query: a projection, a predicate,
// an ordering, or a limit. Fragments never change after construction, so a
// fragment may be shared freely between builders and declarations.
type Fragment interface {
	// Kind reports which clause slot the fragment occupies.
	Kind() FragmentKind

	// key returns the canonical structural identity of the fragment,
	// used to compose builder shape keys. Two fragments with equal keys
	// render identical SQL.
	key() string

	// bindArgs returns runtime bind values carried by the fragment.
	// A fragment with bind values can never be declared cacheable.
	bindArgs() []interface{}
}

// keyDialect is a fixed dialect used only for canonical key rendering, so
// shape keys stay stable regardless of the connection's dialect.
type keyDialect struct{}

func (keyDialect) QuoteIdentifier(s string) string { return s }
func (keyDialect) Placeholder(_ int) string        { return "?" }

var _ dialects.Dialect = keyDialect{}

// projectionFragment selects a fixed set of columns.
type projectionFragment struct {
	cols []string
}

// Projection creates a projection fragment over the given columns.
// The column list is copied; the fragment is immutable.
func Projection(cols ...string) Fragment {
	copied := make([]string, len(cols))
	copy(copied, cols)
	return &projectionFragment{cols: copied}
}

func (f *projectionFragment) Kind() FragmentKind { return KindProjection }

func (f *projectionFragment) key() string {
	return "proj(" + strings.Join(f.cols, ",") + ")"
}

func (f *projectionFragment) bindArgs() []interface{} { return nil }

func (f *projectionFragment) columns() []string { return f.cols }

// predicateFragment filters rows with a condition tree.
type predicateFragment struct {
	expr Expression
	// Canonical form rendered once at construction. Keys and the
	// declaration-time bind check use these, not the live expression.
	canonSQL string
	args     []interface{}
}

// Predicate creates a predicate fragment from a condition tree.
func Predicate(expr Expression) Fragment {
	sql, args := expr.Build(keyDialect{})
	copied := make([]interface{}, len(args))
	copy(copied, args)
	return &predicateFragment{expr: expr, canonSQL: sql, args: copied}
}

func (f *predicateFragment) Kind() FragmentKind { return KindPredicate }

func (f *predicateFragment) key() string {
	if len(f.args) == 0 {
		return "pred(" + f.canonSQL + ")"
	}
	// Bind values participate in the key so structurally equal predicates
	// with different constants never collide.
	parts := make([]string, len(f.args))
	for i, a := range f.args {
		parts[i] = fmt.Sprintf("%#v", a)
	}
	return "pred(" + f.canonSQL + "|" + strings.Join(parts, ",") + ")"
}

func (f *predicateFragment) bindArgs() []interface{} { return f.args }

// OrderKey is a single ordering column with direction.
type OrderKey struct {
	Col  string
	Desc bool
}

// Asc creates an ascending order key.
func Asc(col string) OrderKey { return OrderKey{Col: col} }

// Desc creates a descending order key.
func Desc(col string) OrderKey { return OrderKey{Col: col, Desc: true} }

// orderingFragment sorts rows by a fixed list of keys.
type orderingFragment struct {
	keys []OrderKey
}

// OrderBy creates an ordering fragment over the given keys.
func OrderBy(keys ...OrderKey) Fragment {
	copied := make([]OrderKey, len(keys))
	copy(copied, keys)
	return &orderingFragment{keys: copied}
}

func (f *orderingFragment) Kind() FragmentKind { return KindOrdering }

func (f *orderingFragment) key() string {
	parts := make([]string, len(f.keys))
	for i, k := range f.keys {
		if k.Desc {
			parts[i] = k.Col + " desc"
		} else {
			parts[i] = k.Col + " asc"
		}
	}
	return "order(" + strings.Join(parts, ",") + ")"
}

func (f *orderingFragment) bindArgs() []interface{} { return nil }

// limitFragment bounds the result set. The count and offset are rendered
// as SQL literals, fixed at construction time.
type limitFragment struct {
	n      int64
	offset int64
}

// Limit creates a limit fragment without an offset.
func Limit(n int64) Fragment {
	return &limitFragment{n: n}
}

// LimitOffset creates a limit fragment with an offset.
func LimitOffset(n, offset int64) Fragment {
	return &limitFragment{n: n, offset: offset}
}

func (f *limitFragment) Kind() FragmentKind { return KindLimit }

func (f *limitFragment) key() string {
	return "limit(" + strconv.FormatInt(f.n, 10) + "," + strconv.FormatInt(f.offset, 10) + ")"
}

func (f *limitFragment) bindArgs() []interface{} { return nil }
