// Package nodestore is an in-memory node model: typed content nodes
// queried by filter and sort, answered from a per-field equality index
// when the filter allows it and by linear scan otherwise.
package nodestore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/pagegen/gqlrun/internal/stats"
)

// Node is one content node, a bag of fields. Nested objects are nested
// maps.
type Node = map[string]any

// Store holds nodes grouped by type name, with equality indexes built
// lazily per (type, field).
type Store struct {
	mu      sync.RWMutex
	nodes   map[string][]Node
	indexes map[string]map[string]map[any][]Node
}

func NewStore() *Store {
	return &Store{
		nodes:   map[string][]Node{},
		indexes: map[string]map[string]map[any][]Node{},
	}
}

// Add registers nodes under typeName, preserving insertion order.
// Existing indexes for the type are dropped and rebuilt on demand.
func (s *Store) Add(typeName string, nodes ...Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[typeName] = append(s.nodes[typeName], nodes...)
	delete(s.indexes, typeName)
}

// Len reports the number of nodes held for typeName.
func (s *Store) Len(typeName string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes[typeName])
}

// Types lists the registered type names in sorted order.
func (s *Store) Types() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.nodes))
	for name := range s.nodes {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ScopedModel returns the model handle for one query run. pagePath
// identifies the page the run is issued for; collector receives the
// run's node-query statistics and may be nil.
func (s *Store) ScopedModel(pagePath string, collector *stats.Collector) *Model {
	return &Model{store: s, pagePath: pagePath, stats: collector}
}

func (s *Store) index(typeName, field string) map[any][]Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	byField := s.indexes[typeName]
	if byField == nil {
		byField = map[string]map[any][]Node{}
		s.indexes[typeName] = byField
	}
	if idx, ok := byField[field]; ok {
		return idx
	}
	idx := map[any][]Node{}
	for _, n := range s.nodes[typeName] {
		v, ok := n[field]
		if !ok {
			continue
		}
		key := normalize(v)
		if !isScalar(key) {
			continue
		}
		idx[key] = append(idx[key], n)
	}
	byField[field] = idx
	return idx
}

func (s *Store) all(typeName string) []Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodes[typeName]
}

// Sort orders query results by one or more fields. Order entries are
// "ASC" or "DESC" and pair positionally with Fields; missing entries
// default to ascending.
type Sort struct {
	Fields []string `json:"fields"`
	Order  []string `json:"order"`
}

// QuerySpec is one node-model query.
type QuerySpec struct {
	Type      string
	Filter    map[string]any
	Sort      *Sort
	Limit     int
	Skip      int
	FirstOnly bool
}

// Model is the store handle scoped to one query run.
type Model struct {
	store    *Store
	pagePath string
	stats    *stats.Collector
}

// PagePath identifies the page this run was issued for.
func (m *Model) PagePath() string { return m.pagePath }

// RunQuery answers spec against the store. A single top-level equality
// filter is answered from the index; any other filter falls back to a
// linear scan. Both outcomes, the comparators used, the filter paths
// and the sort are recorded on the run's stats handle.
func (m *Model) RunQuery(ctx context.Context, spec QuerySpec) ([]Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.stats.RecordRunQuery(!spec.FirstOnly)

	preds, err := parseFilter(spec.Filter)
	if err != nil {
		return nil, err
	}

	var out []Node
	switch {
	case len(preds) == 0:
		out = append(out, m.store.all(spec.Type)...)
	case indexable(preds):
		m.stats.RecordIndexHit()
		out = append(out, m.store.index(spec.Type, preds[0].path[0])[normalize(preds[0].operand)]...)
	default:
		m.stats.RecordSiftHit()
		for _, n := range m.store.all(spec.Type) {
			if matchesAll(n, preds) {
				out = append(out, n)
			}
		}
	}

	if len(preds) > 0 {
		m.stats.RecordFilterPaths(filterPaths(preds))
		for _, p := range preds {
			m.stats.RecordComparator(p.comparator)
		}
		if len(preds) > 1 {
			m.stats.RecordNonSingleFilter()
		}
	}

	if spec.Sort != nil && len(spec.Sort.Fields) > 0 {
		m.stats.RecordSortSpec(spec.Sort)
		sortNodes(out, spec.Sort)
	}

	if spec.Skip > 0 {
		if spec.Skip >= len(out) {
			out = nil
		} else {
			out = out[spec.Skip:]
		}
	}
	if spec.Limit > 0 && spec.Limit < len(out) {
		out = out[:spec.Limit]
	}
	if spec.FirstOnly && len(out) > 1 {
		out = out[:1]
	}
	return out, nil
}

// indexable reports whether preds can be answered by an equality index:
// exactly one predicate, $eq, on a top-level field, with a scalar
// operand.
func indexable(preds []predicate) bool {
	return len(preds) == 1 &&
		preds[0].comparator == "$eq" &&
		len(preds[0].path) == 1 &&
		isScalar(normalize(preds[0].operand))
}

func sortNodes(nodes []Node, s *Sort) {
	sort.SliceStable(nodes, func(i, j int) bool {
		for k, field := range s.Fields {
			desc := k < len(s.Order) && s.Order[k] == "DESC"
			path := strings.Split(field, ".")
			a, _ := lookupPath(nodes[i], path)
			b, _ := lookupPath(nodes[j], path)
			c, ok := compareValues(a, b)
			if !ok || c == 0 {
				continue
			}
			if desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}
