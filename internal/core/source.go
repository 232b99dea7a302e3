package core

import (
	"sync"
	"sync/atomic"
)

// Source describes a base table (or view) that builders select from.
// A Source owns the declaration table of cacheable operations and the
// builder cache for its shapes. Sources are registered on a DB and assumed
// static for the lifetime of the process.
type Source struct {
	db      *DB
	table   string
	columns []string

	mu       sync.RWMutex
	declared map[string]Fragment
	builders map[string]*Builder
	root     *Builder

	hits   atomic.Uint64
	misses atomic.Uint64
}

func newSource(db *DB, table string, columns []string) *Source {
	copied := make([]string, len(columns))
	copy(copied, columns)
	s := &Source{
		db:       db,
		table:    table,
		columns:  copied,
		declared: make(map[string]Fragment),
		builders: make(map[string]*Builder),
	}
	s.root = newRootBuilder(s)
	return s
}

// Table returns the base table name.
func (s *Source) Table() string { return s.table }

// Declare registers a named cacheable operation on the source. The fragment
// must carry no bind values: cacheable operations take their arguments
// fixed at declaration time, which is what bounds the builder cache.
// Redeclaring a name with a different fragment shape is rejected.
func (s *Source) Declare(name string, frag Fragment) error {
	if name == "" {
		return &DeclarationError{Op: name, Reason: "operation name must not be empty"}
	}
	if frag == nil {
		return &DeclarationError{Op: name, Reason: "fragment must not be nil"}
	}
	if n := len(frag.bindArgs()); n > 0 {
		return &DeclarationError{Op: name, Reason: "fragment carries bind values; cacheable operations require fixed arguments"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prior, ok := s.declared[name]; ok {
		if prior.key() != frag.key() {
			return &DeclarationError{Op: name, Reason: "already declared with a different fragment"}
		}
		return nil
	}
	s.declared[name] = frag
	return nil
}

// MustDeclare is like Declare but panics on error. It returns the source
// so declarations can be chained at setup time.
func (s *Source) MustDeclare(name string, frag Fragment) *Source {
	if err := s.Declare(name, frag); err != nil {
		panic(err)
	}
	return s
}

// Query returns the root builder for this source. The root builder is a
// single shared instance: chains starting from it hit the builder cache.
func (s *Source) Query() *Builder {
	return s.root
}

// lookupDeclared returns the declared fragment for an operation name.
func (s *Source) lookupDeclared(op string) (Fragment, bool) {
	s.mu.RLock()
	frag, ok := s.declared[op]
	s.mu.RUnlock()
	return frag, ok
}

// cachedApply resolves a declared operation against the builder cache.
// On a cacheable chain it returns the memoized builder for (shape, op),
// populating the cache on first use. On a chain that already carries bind
// values it allocates fresh without touching the cache.
func (s *Source) cachedApply(b *Builder, op string) (*Builder, error) {
	frag, ok := s.lookupDeclared(op)
	if !ok {
		return nil, WrapError(ErrUndeclaredOperation, op)
	}

	if !b.cacheable {
		return b.with(frag), nil
	}

	key := b.shapeKey + "\x1f" + op

	s.mu.RLock()
	cached := s.builders[key]
	s.mu.RUnlock()

	if cached != nil {
		s.hits.Add(1)
		if err := verifyShape(cached, b, frag, key); err != nil {
			return nil, err
		}
		return cached, nil
	}

	s.misses.Add(1)
	next := b.with(frag)

	s.mu.Lock()
	if prior, ok := s.builders[key]; ok {
		// Lost a populate race; the duplicate allocation is discarded.
		next = prior
	} else {
		s.builders[key] = next
	}
	s.mu.Unlock()

	return next, nil
}

// verifyShape is a defensive check that a cache hit really is the builder
// the chain would have constructed. A failure means the cache is corrupted.
func verifyShape(cached, parent *Builder, frag Fragment, key string) error {
	if cached.shapeKey != parent.shapeKey+shapeSep+frag.key() ||
		len(cached.fragments) != len(parent.fragments)+1 {
		return &ShapeMismatchError{Key: key}
	}
	return nil
}

// resetCache drops all memoized builders and counters. Declarations stay.
func (s *Source) resetCache() {
	s.mu.Lock()
	s.builders = make(map[string]*Builder)
	s.mu.Unlock()
	s.hits.Store(0)
	s.misses.Store(0)
}

// CacheStats holds builder-cache metrics for a source.
type CacheStats struct {
	Declared int    // Number of declared cacheable operations.
	Builders int    // Number of memoized builder instances.
	Hits     uint64 // Cache hits across all Apply calls.
	Misses   uint64 // Cache misses that populated the cache.
}

// CacheStats returns builder-cache metrics for this source.
func (s *Source) CacheStats() CacheStats {
	s.mu.RLock()
	declared := len(s.declared)
	builders := len(s.builders)
	s.mu.RUnlock()

	return CacheStats{
		Declared: declared,
		Builders: builders,
		Hits:     s.hits.Load(),
		Misses:   s.misses.Load(),
	}
}
