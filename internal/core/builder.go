package core

import (
	"strconv"
	"strings"
)

// shapeSep joins fragment keys inside a builder shape key.
const shapeSep = "\x1e"

// Builder is an immutable accumulator of query fragments over a base
// source. Every chaining call returns a builder, new or memoized, and
// never mutates the receiver, so builders may be shared between goroutines
// and held in the source's cache indefinitely.
type Builder struct {
	source    *Source
	fragments []Fragment

	// shapeKey is the structural identity of the fragment sequence plus
	// base source. Builders with equal shape keys render identical SQL.
	shapeKey string

	// cacheable is false once any fragment in the chain carries bind
	// values. From that point on, Apply allocates fresh builders and the
	// cache is neither read nor written: cache benefit is prefix-based.
	cacheable bool
}

func newRootBuilder(s *Source) *Builder {
	return &Builder{
		source:    s,
		shapeKey:  "src(" + s.table + ")",
		cacheable: true,
	}
}

// with returns a new builder appending frag to the chain.
func (b *Builder) with(frag Fragment) *Builder {
	fragments := make([]Fragment, len(b.fragments)+1)
	copy(fragments, b.fragments)
	fragments[len(b.fragments)] = frag

	return &Builder{
		source:    b.source,
		fragments: fragments,
		shapeKey:  b.shapeKey + shapeSep + frag.key(),
		cacheable: b.cacheable && len(frag.bindArgs()) == 0,
	}
}

// Apply resolves a declared operation by name and returns the memoized
// builder for this chain position, allocating and caching it on first use.
// Applying an undeclared operation is a programming error and panics, as
// does a corrupted cache entry.
func (b *Builder) Apply(op string) *Builder {
	next, err := b.source.cachedApply(b, op)
	if err != nil {
		panic(err)
	}
	return next
}

// With appends an ad hoc fragment to the chain. Ad hoc fragments are never
// served from or stored in the builder cache, and a fragment carrying bind
// values disables caching for every later step of the chain.
func (b *Builder) With(frag Fragment) *Builder {
	return b.with(frag)
}

// Where appends an ad hoc predicate fragment built from the expression.
func (b *Builder) Where(expr Expression) *Builder {
	return b.with(Predicate(expr))
}

// Source returns the base source this builder selects from.
func (b *Builder) Source() *Source {
	return b.source
}

// ShapeKey returns the structural identity of the builder.
func (b *Builder) ShapeKey() string {
	return b.shapeKey
}

// Cacheable reports whether chaining from this builder can still hit the
// builder cache.
func (b *Builder) Cacheable() bool {
	return b.cacheable
}

// Fragments returns a copy of the applied fragment sequence.
func (b *Builder) Fragments() []Fragment {
	out := make([]Fragment, len(b.fragments))
	copy(out, b.fragments)
	return out
}

// render produces the SQL text and bind values for this builder plus an
// optional extra filter. Within the chain, the last projection and the
// last limit win; predicates combine with AND in order; orderings append.
// limitOne forces LIMIT 1 regardless of any limit fragment.
func (b *Builder) render(filter Expression, limitOne bool) (string, []interface{}) {
	dialect := b.source.db.dialect

	var proj *projectionFragment
	var whereParts []string
	var args []interface{}
	var orderParts []string
	var limit *limitFragment

	for _, frag := range b.fragments {
		switch f := frag.(type) {
		case *projectionFragment:
			proj = f
		case *predicateFragment:
			sql, exprArgs := f.expr.Build(dialect)
			if sql != "" {
				whereParts = append(whereParts, sql)
				args = append(args, exprArgs...)
			}
		case *orderingFragment:
			for _, k := range f.keys {
				part := dialect.QuoteIdentifier(k.Col)
				if k.Desc {
					part += " DESC"
				}
				orderParts = append(orderParts, part)
			}
		case *limitFragment:
			limit = f
		}
	}

	if filter != nil {
		sql, exprArgs := filter.Build(dialect)
		if sql != "" {
			whereParts = append(whereParts, sql)
			args = append(args, exprArgs...)
		}
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(b.renderColumns(proj))
	sb.WriteString(" FROM ")
	sb.WriteString(dialect.QuoteIdentifier(b.source.table))

	if len(whereParts) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(whereParts, " AND "))
	}
	if len(orderParts) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(orderParts, ", "))
	}
	if limitOne {
		sb.WriteString(" LIMIT 1")
	} else if limit != nil {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.FormatInt(limit.n, 10))
		if limit.offset > 0 {
			sb.WriteString(" OFFSET ")
			sb.WriteString(strconv.FormatInt(limit.offset, 10))
		}
	}

	query := sb.String()

	// Renumber placeholders for dialects that do not use "?" ($1, $2, etc.).
	if dialect.Placeholder(1) != "?" {
		for i := range args {
			query = strings.Replace(query, "?", dialect.Placeholder(i+1), 1)
		}
	}

	return query, args
}

// renderColumns picks the projection: an explicit projection fragment wins,
// then the source's declared columns, then "*".
func (b *Builder) renderColumns(proj *projectionFragment) string {
	dialect := b.source.db.dialect

	cols := b.source.columns
	if proj != nil {
		cols = proj.cols
	}
	if len(cols) == 0 {
		return "*"
	}

	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = dialect.QuoteIdentifier(c)
	}
	return strings.Join(quoted, ", ")
}
