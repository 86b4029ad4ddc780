// Package stats aggregates query workload counters and content
// fingerprints for a single runner.
package stats

import (
	"crypto/sha1"
	"encoding/json"
	"sort"
	"sync"
)

// Fingerprint is a 160-bit content digest keying the uniqueness sets.
type Fingerprint = [sha1.Size]byte

// QueryFingerprint digests query text alone.
func QueryFingerprint(text string) Fingerprint {
	return sha1.Sum([]byte(text))
}

// OperationFingerprint digests query text together with its variable
// bindings. Variables serialize to canonical JSON (object keys sorted),
// so equal bindings fingerprint equally regardless of map order.
func OperationFingerprint(text string, variables map[string]any) Fingerprint {
	h := sha1.New()
	h.Write([]byte(text))
	if len(variables) > 0 {
		raw, _ := json.Marshal(variables)
		h.Write(raw)
	}
	var fp Fingerprint
	h.Sum(fp[:0])
	return fp
}

// JSONFingerprint digests the canonical JSON form of v.
func JSONFingerprint(v any) Fingerprint {
	raw, _ := json.Marshal(v)
	return sha1.Sum(raw)
}

// Collector accumulates workload statistics. A nil *Collector is a
// valid disabled collector: every method is a no-op and Summary returns
// nil, so call sites never branch on whether collection is on.
type Collector struct {
	mu sync.Mutex

	totalQueries          uint64
	totalRunQuery         uint64
	totalPluralRunQuery   uint64
	totalIndexHits        uint64
	totalSiftHits         uint64
	totalNonSingleFilters uint64

	uniqueOperations  map[Fingerprint]struct{}
	uniqueQueries     map[Fingerprint]struct{}
	uniqueFilterPaths map[Fingerprint]struct{}
	uniqueSorts       map[Fingerprint]struct{}

	comparators map[string]uint64
}

func New() *Collector {
	return &Collector{
		uniqueOperations:  map[Fingerprint]struct{}{},
		uniqueQueries:     map[Fingerprint]struct{}{},
		uniqueFilterPaths: map[Fingerprint]struct{}{},
		uniqueSorts:       map[Fingerprint]struct{}{},
		comparators:       map[string]uint64{},
	}
}

// RecordQuery notes one runner call. The operation fingerprint covers
// text plus variables, the query fingerprint text alone.
func (c *Collector) RecordQuery(text string, variables map[string]any) {
	if c == nil {
		return
	}
	op := OperationFingerprint(text, variables)
	q := QueryFingerprint(text)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalQueries++
	c.uniqueOperations[op] = struct{}{}
	c.uniqueQueries[q] = struct{}{}
}

// RecordRunQuery notes one node-model query, plural when it returned a
// result set rather than a single node.
func (c *Collector) RecordRunQuery(plural bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRunQuery++
	if plural {
		c.totalPluralRunQuery++
	}
}

func (c *Collector) RecordIndexHit() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalIndexHits++
}

func (c *Collector) RecordSiftHit() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalSiftHits++
}

func (c *Collector) RecordNonSingleFilter() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalNonSingleFilters++
}

func (c *Collector) RecordComparator(name string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.comparators[name]++
}

// RecordFilterPaths notes the set of field paths one filter touched.
func (c *Collector) RecordFilterPaths(paths []string) {
	if c == nil {
		return
	}
	fp := JSONFingerprint(paths)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uniqueFilterPaths[fp] = struct{}{}
}

// RecordSortSpec notes one sort specification.
func (c *Collector) RecordSortSpec(spec any) {
	if c == nil {
		return
	}
	fp := JSONFingerprint(spec)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uniqueSorts[fp] = struct{}{}
}

// ComparatorUse reports how often one comparator appeared in filters.
type ComparatorUse struct {
	Comparator string `json:"comparator"`
	Amount     uint64 `json:"amount"`
}

// Summary is a point-in-time aggregate suitable for JSON reporting.
// Fingerprint sets flatten to their cardinalities.
type Summary struct {
	TotalQueries          uint64          `json:"totalQueries"`
	UniqueOperations      int             `json:"uniqueOperations"`
	UniqueQueries         int             `json:"uniqueQueries"`
	TotalRunQuery         uint64          `json:"totalRunQuery"`
	TotalPluralRunQuery   uint64          `json:"totalPluralRunQuery"`
	TotalIndexHits        uint64          `json:"totalIndexHits"`
	TotalSiftHits         uint64          `json:"totalSiftHits"`
	TotalNonSingleFilters uint64          `json:"totalNonSingleFilters"`
	ComparatorsUsed       []ComparatorUse `json:"comparatorsUsed"`
	UniqueFilterPaths     int             `json:"uniqueFilterPaths"`
	UniqueSorts           int             `json:"uniqueSorts"`
}

// Summary snapshots the collector. Comparators are listed in name order
// so repeated snapshots compare stably. Returns nil when collection is
// disabled.
func (c *Collector) Summary() *Summary {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	uses := make([]ComparatorUse, 0, len(c.comparators))
	for name, amount := range c.comparators {
		uses = append(uses, ComparatorUse{Comparator: name, Amount: amount})
	}
	sort.Slice(uses, func(i, j int) bool { return uses[i].Comparator < uses[j].Comparator })

	return &Summary{
		TotalQueries:          c.totalQueries,
		UniqueOperations:      len(c.uniqueOperations),
		UniqueQueries:         len(c.uniqueQueries),
		TotalRunQuery:         c.totalRunQuery,
		TotalPluralRunQuery:   c.totalPluralRunQuery,
		TotalIndexHits:        c.totalIndexHits,
		TotalSiftHits:         c.totalSiftHits,
		TotalNonSingleFilters: c.totalNonSingleFilters,
		ComparatorsUsed:       uses,
		UniqueFilterPaths:     len(c.uniqueFilterPaths),
		UniqueSorts:           len(c.uniqueSorts),
	}
}
