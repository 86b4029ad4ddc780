package nodestore

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pagegen/gqlrun/internal/stats"
)

func seedStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	s.Add("Post",
		Node{"id": "p1", "title": "Go Generics", "rating": 5, "draft": false, "author": map[string]any{"name": "ada"}},
		Node{"id": "p2", "title": "Error Handling", "rating": 3, "draft": true, "author": map[string]any{"name": "brian"}},
		Node{"id": "p3", "title": "Iterators", "rating": 4, "author": map[string]any{"name": "ada"}},
	)
	return s
}

func ids(nodes []Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n["id"].(string))
	}
	return out
}

func runQuery(t *testing.T, m *Model, spec QuerySpec) []Node {
	t.Helper()
	nodes, err := m.RunQuery(context.Background(), spec)
	if err != nil {
		t.Fatalf("RunQuery: %v", err)
	}
	return nodes
}

func TestRunQueryNoFilterReturnsAllInOrder(t *testing.T) {
	collector := stats.New()
	m := seedStore(t).ScopedModel("/blog/", collector)

	nodes := runQuery(t, m, QuerySpec{Type: "Post"})
	if diff := cmp.Diff([]string{"p1", "p2", "p3"}, ids(nodes)); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}

	summary := collector.Summary()
	if summary.TotalRunQuery != 1 || summary.TotalPluralRunQuery != 1 {
		t.Errorf("run counters = %d/%d, want 1/1", summary.TotalRunQuery, summary.TotalPluralRunQuery)
	}
	if summary.TotalIndexHits != 0 || summary.TotalSiftHits != 0 {
		t.Errorf("unfiltered query hit index/sift: %d/%d", summary.TotalIndexHits, summary.TotalSiftHits)
	}
	if m.PagePath() != "/blog/" {
		t.Errorf("PagePath() = %q, want %q", m.PagePath(), "/blog/")
	}
}

func TestRunQueryEqualityUsesIndex(t *testing.T) {
	collector := stats.New()
	m := seedStore(t).ScopedModel("/", collector)

	nodes := runQuery(t, m, QuerySpec{
		Type:   "Post",
		Filter: map[string]any{"id": map[string]any{"eq": "p2"}},
	})
	if diff := cmp.Diff([]string{"p2"}, ids(nodes)); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}

	summary := collector.Summary()
	if summary.TotalIndexHits != 1 {
		t.Errorf("TotalIndexHits = %d, want 1", summary.TotalIndexHits)
	}
	if summary.TotalSiftHits != 0 {
		t.Errorf("TotalSiftHits = %d, want 0", summary.TotalSiftHits)
	}
	want := []stats.ComparatorUse{{Comparator: "$eq", Amount: 1}}
	if diff := cmp.Diff(want, summary.ComparatorsUsed); diff != "" {
		t.Errorf("comparators mismatch (-want +got):\n%s", diff)
	}
	if summary.UniqueFilterPaths != 1 {
		t.Errorf("UniqueFilterPaths = %d, want 1", summary.UniqueFilterPaths)
	}
}

func TestRunQueryNestedFilterSifts(t *testing.T) {
	collector := stats.New()
	m := seedStore(t).ScopedModel("/", collector)

	nodes := runQuery(t, m, QuerySpec{
		Type:   "Post",
		Filter: map[string]any{"author": map[string]any{"name": map[string]any{"eq": "ada"}}},
	})
	if diff := cmp.Diff([]string{"p1", "p3"}, ids(nodes)); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}

	summary := collector.Summary()
	if summary.TotalIndexHits != 0 || summary.TotalSiftHits != 1 {
		t.Errorf("index/sift = %d/%d, want 0/1", summary.TotalIndexHits, summary.TotalSiftHits)
	}
}

func TestRunQueryMultiPredicateCountsNonSingle(t *testing.T) {
	collector := stats.New()
	m := seedStore(t).ScopedModel("/", collector)

	nodes := runQuery(t, m, QuerySpec{
		Type: "Post",
		Filter: map[string]any{
			"rating": map[string]any{"gte": 4},
			"draft":  map[string]any{"ne": true},
		},
	})
	if diff := cmp.Diff([]string{"p1", "p3"}, ids(nodes)); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}

	summary := collector.Summary()
	if summary.TotalNonSingleFilters != 1 {
		t.Errorf("TotalNonSingleFilters = %d, want 1", summary.TotalNonSingleFilters)
	}
	want := []stats.ComparatorUse{
		{Comparator: "$gte", Amount: 1},
		{Comparator: "$ne", Amount: 1},
	}
	if diff := cmp.Diff(want, summary.ComparatorsUsed); diff != "" {
		t.Errorf("comparators mismatch (-want +got):\n%s", diff)
	}
}

func TestRunQueryComparators(t *testing.T) {
	m := seedStore(t).ScopedModel("/", nil)

	tests := []struct {
		name   string
		filter map[string]any
		want   []string
	}{
		{
			name:   "in",
			filter: map[string]any{"id": map[string]any{"in": []any{"p1", "p3"}}},
			want:   []string{"p1", "p3"},
		},
		{
			name:   "nin",
			filter: map[string]any{"id": map[string]any{"nin": []any{"p1", "p3"}}},
			want:   []string{"p2"},
		},
		{
			name:   "lt",
			filter: map[string]any{"rating": map[string]any{"lt": 4}},
			want:   []string{"p2"},
		},
		{
			name:   "gt",
			filter: map[string]any{"rating": map[string]any{"gt": 4}},
			want:   []string{"p1"},
		},
		{
			name:   "regex",
			filter: map[string]any{"title": map[string]any{"regex": "^Go"}},
			want:   []string{"p1"},
		},
		{
			name:   "ne matches absent field",
			filter: map[string]any{"draft": map[string]any{"ne": true}},
			want:   []string{"p1", "p3"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes := runQuery(t, m, QuerySpec{Type: "Post", Filter: tt.filter})
			if diff := cmp.Diff(tt.want, ids(nodes)); diff != "" {
				t.Errorf("result mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRunQuerySortAndWindow(t *testing.T) {
	collector := stats.New()
	m := seedStore(t).ScopedModel("/", collector)

	t.Run("descending", func(t *testing.T) {
		nodes := runQuery(t, m, QuerySpec{
			Type: "Post",
			Sort: &Sort{Fields: []string{"rating"}, Order: []string{"DESC"}},
		})
		if diff := cmp.Diff([]string{"p1", "p3", "p2"}, ids(nodes)); diff != "" {
			t.Errorf("result mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("nested field with secondary order", func(t *testing.T) {
		nodes := runQuery(t, m, QuerySpec{
			Type: "Post",
			Sort: &Sort{Fields: []string{"author.name", "rating"}, Order: []string{"ASC", "DESC"}},
		})
		if diff := cmp.Diff([]string{"p1", "p3", "p2"}, ids(nodes)); diff != "" {
			t.Errorf("result mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("skip and limit", func(t *testing.T) {
		nodes := runQuery(t, m, QuerySpec{
			Type:  "Post",
			Sort:  &Sort{Fields: []string{"rating"}, Order: []string{"DESC"}},
			Skip:  1,
			Limit: 1,
		})
		if diff := cmp.Diff([]string{"p3"}, ids(nodes)); diff != "" {
			t.Errorf("result mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("skip past the end", func(t *testing.T) {
		nodes := runQuery(t, m, QuerySpec{Type: "Post", Skip: 9})
		if len(nodes) != 0 {
			t.Errorf("got %d nodes, want 0", len(nodes))
		}
	})

	if got := collector.Summary().UniqueSorts; got != 2 {
		t.Errorf("UniqueSorts = %d, want 2", got)
	}
}

func TestRunQueryFirstOnly(t *testing.T) {
	collector := stats.New()
	m := seedStore(t).ScopedModel("/", collector)

	nodes := runQuery(t, m, QuerySpec{
		Type:      "Post",
		Filter:    map[string]any{"author": map[string]any{"name": map[string]any{"eq": "ada"}}},
		FirstOnly: true,
	})
	if diff := cmp.Diff([]string{"p1"}, ids(nodes)); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}

	summary := collector.Summary()
	if summary.TotalRunQuery != 1 || summary.TotalPluralRunQuery != 0 {
		t.Errorf("run counters = %d/%d, want 1/0", summary.TotalRunQuery, summary.TotalPluralRunQuery)
	}
}

func TestRunQueryBadFilter(t *testing.T) {
	m := seedStore(t).ScopedModel("/", nil)

	t.Run("scalar in place of comparator object", func(t *testing.T) {
		_, err := m.RunQuery(context.Background(), QuerySpec{
			Type:   "Post",
			Filter: map[string]any{"id": "p1"},
		})
		if err == nil {
			t.Fatal("expected an error for a non-comparator leaf")
		}
	})

	t.Run("invalid regex", func(t *testing.T) {
		_, err := m.RunQuery(context.Background(), QuerySpec{
			Type:   "Post",
			Filter: map[string]any{"title": map[string]any{"regex": "("}},
		})
		if err == nil {
			t.Fatal("expected an error for an invalid pattern")
		}
	})

	t.Run("non-string regex operand", func(t *testing.T) {
		_, err := m.RunQuery(context.Background(), QuerySpec{
			Type:   "Post",
			Filter: map[string]any{"title": map[string]any{"regex": 7}},
		})
		if err == nil {
			t.Fatal("expected an error for a non-string pattern")
		}
	})
}

func TestRunQueryCanceledContext(t *testing.T) {
	collector := stats.New()
	m := seedStore(t).ScopedModel("/", collector)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.RunQuery(ctx, QuerySpec{Type: "Post"}); err == nil {
		t.Fatal("expected a context error")
	}
	if got := collector.Summary().TotalRunQuery; got != 0 {
		t.Errorf("TotalRunQuery = %d after canceled run, want 0", got)
	}
}

func TestAddRebuildsIndex(t *testing.T) {
	s := seedStore(t)
	m := s.ScopedModel("/", nil)
	byID := QuerySpec{Type: "Post", Filter: map[string]any{"id": map[string]any{"eq": "p4"}}}

	if nodes := runQuery(t, m, byID); len(nodes) != 0 {
		t.Fatalf("got %d nodes before insert, want 0", len(nodes))
	}

	s.Add("Post", Node{"id": "p4", "title": "Profiling"})
	nodes := runQuery(t, m, byID)
	if diff := cmp.Diff([]string{"p4"}, ids(nodes)); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestSortLeavesStoreOrderAlone(t *testing.T) {
	m := seedStore(t).ScopedModel("/", nil)

	runQuery(t, m, QuerySpec{
		Type: "Post",
		Sort: &Sort{Fields: []string{"rating"}, Order: []string{"DESC"}},
	})
	nodes := runQuery(t, m, QuerySpec{Type: "Post"})
	if diff := cmp.Diff([]string{"p1", "p2", "p3"}, ids(nodes)); diff != "" {
		t.Errorf("store order changed (-want +got):\n%s", diff)
	}
}

func TestStoreTypes(t *testing.T) {
	s := seedStore(t)
	s.Add("Author", Node{"name": "ada"})
	if diff := cmp.Diff([]string{"Author", "Post"}, s.Types()); diff != "" {
		t.Errorf("Types() mismatch (-want +got):\n%s", diff)
	}
	if got := s.Len("Post"); got != 3 {
		t.Errorf("Len(Post) = %d, want 3", got)
	}
}
