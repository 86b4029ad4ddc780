package nodestore

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
)

// Comparator names follow the query-operator convention used in filter
// stats: the GraphQL input key "eq" records as "$eq".
const (
	cmpEq    = "$eq"
	cmpNe    = "$ne"
	cmpIn    = "$in"
	cmpNin   = "$nin"
	cmpLt    = "$lt"
	cmpLte   = "$lte"
	cmpGt    = "$gt"
	cmpGte   = "$gte"
	cmpRegex = "$regex"
)

var comparatorKeys = map[string]string{
	"eq":    cmpEq,
	"ne":    cmpNe,
	"in":    cmpIn,
	"nin":   cmpNin,
	"lt":    cmpLt,
	"lte":   cmpLte,
	"gt":    cmpGt,
	"gte":   cmpGte,
	"regex": cmpRegex,
}

// predicate is one leaf condition of a filter: a field path, a
// comparator and its operand. Regex operands are compiled at parse
// time.
type predicate struct {
	path       []string
	comparator string
	operand    any
	re         *regexp.Regexp
}

// parseFilter flattens a filter argument into predicates. Nested
// objects extend the field path; comparator keys terminate it. A nil
// filter yields no predicates.
func parseFilter(filter map[string]any) ([]predicate, error) {
	var preds []predicate
	if err := walkFilter(nil, filter, &preds); err != nil {
		return nil, err
	}
	return preds, nil
}

func walkFilter(path []string, node map[string]any, preds *[]predicate) error {
	// Sorted keys keep predicate order stable across runs.
	keys := make([]string, 0, len(node))
	for k := range node {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := node[k]
		if name, ok := comparatorKeys[k]; ok {
			p := predicate{path: append([]string(nil), path...), comparator: name, operand: v}
			if name == cmpRegex {
				pattern, ok := v.(string)
				if !ok {
					return fmt.Errorf("filter %s: regex operand must be a string", strings.Join(path, "."))
				}
				re, err := regexp.Compile(pattern)
				if err != nil {
					return fmt.Errorf("filter %s: %w", strings.Join(path, "."), err)
				}
				p.re = re
			}
			*preds = append(*preds, p)
			continue
		}
		child, ok := v.(map[string]any)
		if !ok {
			return fmt.Errorf("filter %s: expected a comparator object", strings.Join(append(path, k), "."))
		}
		if err := walkFilter(append(path, k), child, preds); err != nil {
			return err
		}
	}
	return nil
}

// filterPaths lists the dotted field paths a predicate set touches, in
// canonical sorted order without duplicates.
func filterPaths(preds []predicate) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, p := range preds {
		dotted := strings.Join(p.path, ".")
		if _, ok := seen[dotted]; ok {
			continue
		}
		seen[dotted] = struct{}{}
		out = append(out, dotted)
	}
	sort.Strings(out)
	return out
}

func matchesAll(n Node, preds []predicate) bool {
	for _, p := range preds {
		if !p.matches(n) {
			return false
		}
	}
	return true
}

func (p predicate) matches(n Node) bool {
	v, ok := lookupPath(n, p.path)
	switch p.comparator {
	case cmpEq:
		return ok && equalValues(v, p.operand)
	case cmpNe:
		return !ok || !equalValues(v, p.operand)
	case cmpIn:
		return ok && containsValue(p.operand, v)
	case cmpNin:
		return !ok || !containsValue(p.operand, v)
	case cmpLt:
		c, cok := compareValues(v, p.operand)
		return ok && cok && c < 0
	case cmpLte:
		c, cok := compareValues(v, p.operand)
		return ok && cok && c <= 0
	case cmpGt:
		c, cok := compareValues(v, p.operand)
		return ok && cok && c > 0
	case cmpGte:
		c, cok := compareValues(v, p.operand)
		return ok && cok && c >= 0
	case cmpRegex:
		s, sok := v.(string)
		return ok && sok && p.re.MatchString(s)
	}
	return false
}

// lookupPath walks nested maps along path.
func lookupPath(n Node, path []string) (any, bool) {
	var v any = map[string]any(n)
	for _, key := range path {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return v, true
}

// normalize folds numeric types to float64 so values from JSON
// fixtures and coerced query arguments compare equal.
func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}

func isScalar(v any) bool {
	switch v.(type) {
	case nil, bool, float64, string:
		return true
	}
	return false
}

func equalValues(a, b any) bool {
	an, bn := normalize(a), normalize(b)
	if isScalar(an) && isScalar(bn) {
		return an == bn
	}
	return reflect.DeepEqual(an, bn)
}

func containsValue(operand, v any) bool {
	list, ok := operand.([]any)
	if !ok {
		return false
	}
	for _, item := range list {
		if equalValues(item, v) {
			return true
		}
	}
	return false
}

// compareValues orders two values when both are numbers or both are
// strings. ok is false for unordered kinds.
func compareValues(a, b any) (int, bool) {
	an, bn := normalize(a), normalize(b)
	switch av := an.(type) {
	case float64:
		bv, ok := bn.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case string:
		bv, ok := bn.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	}
	return 0, false
}
