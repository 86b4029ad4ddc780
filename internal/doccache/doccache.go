// Package doccache memoizes query parsing and validation so repeated
// queries skip both phases until the cache is cleared.
package doccache

import (
	"sync"

	"github.com/pagegen/gqlrun/internal/language"
)

// RawQuery is a query in either of its accepted forms. When Source is
// non-nil the cache keys by the Source pointer, so two Source values
// with identical text are distinct entries; the Text form keys by value.
type RawQuery struct {
	Text   string
	Source *language.Source
}

func (q RawQuery) key() any {
	if q.Source != nil {
		return q.Source
	}
	return q.Text
}

// Input returns the query text regardless of form.
func (q RawQuery) Input() string {
	if q.Source != nil {
		return q.Source.Input
	}
	return q.Text
}

type entry struct {
	doc       *language.QueryDocument
	validated bool
}

// Cache holds parsed documents keyed by raw query, with a per-document
// record of clean validation. Validity never outlives the parse entry:
// Clear drops both together. The cache knows nothing about schema
// changes; callers must Clear when the schema they validate against is
// replaced.
type Cache struct {
	mu      sync.Mutex
	entries map[any]*entry
	byDoc   map[*language.QueryDocument]*entry

	parse    func(*language.Source) (*language.QueryDocument, error)
	validate func(*language.Schema, *language.QueryDocument) language.ErrorList
}

func New() *Cache {
	return &Cache{
		entries:  map[any]*entry{},
		byDoc:    map[*language.QueryDocument]*entry{},
		parse:    language.ParseQuery,
		validate: language.Validate,
	}
}

// Parse returns the document for q, parsing at most once per cached
// lifetime. Repeated calls with the same key return the same document
// pointer. Parse failures are returned to the caller and never cached.
func (c *Cache) Parse(q RawQuery) (*language.QueryDocument, error) {
	key := q.key()
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return e.doc, nil
	}
	c.mu.Unlock()

	src := q.Source
	if src == nil {
		src = &language.Source{Input: q.Text}
	}
	doc, err := c.parse(src)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		// lost a concurrent parse race; keep the stored winner
		return e.doc, nil
	}
	e := &entry{doc: doc}
	c.entries[key] = e
	c.byDoc[doc] = e
	return doc, nil
}

// Validate reports validation errors for doc against schema. A document
// previously validated clean, and still cached, skips the validator and
// returns nil immediately. Only clean results are recorded, and only
// for documents the cache owns; absence means not yet proven valid,
// never invalid.
func (c *Cache) Validate(schema *language.Schema, doc *language.QueryDocument) language.ErrorList {
	c.mu.Lock()
	e := c.byDoc[doc]
	if e != nil && e.validated {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	errs := c.validate(schema, doc)
	if len(errs) == 0 && e != nil {
		c.mu.Lock()
		if c.byDoc[doc] == e {
			e.validated = true
		}
		c.mu.Unlock()
	}
	return errs
}

// Clear drops every cached document and validity record, returning the
// number of entries dropped.
func (c *Cache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = map[any]*entry{}
	c.byDoc = map[*language.QueryDocument]*entry{}
	return n
}

// Len reports the number of cached documents.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
