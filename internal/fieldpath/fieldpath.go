// Package fieldpath models resolver paths as parent-linked chains of
// field and list-index segments, mirroring the path threaded through
// field resolution.
package fieldpath

import (
	"strconv"
	"strings"

	"github.com/pagegen/gqlrun/internal/language"
)

// Step is one segment of a resolver path, linked upward through Prev.
// Key is either a string field name or an int list index. A nil *Step
// is the query root. Steps are immutable once created and safe for
// concurrent reads.
type Step struct {
	Prev *Step
	Key  any
}

// Field appends a field-name segment to prev.
func Field(prev *Step, name string) *Step {
	return &Step{Prev: prev, Key: name}
}

// Index appends a list-index segment to prev.
func Index(prev *Step, i int) *Step {
	return &Step{Prev: prev, Key: i}
}

// IsIndex reports whether this segment is a list index.
func (s *Step) IsIndex() bool {
	_, ok := s.Key.(int)
	return ok
}

// Path flattens the chain into a root-to-leaf ast path. A nil step
// yields a nil path.
func (s *Step) Path() language.Path {
	if s == nil {
		return nil
	}
	n := 0
	for p := s; p != nil; p = p.Prev {
		n++
	}
	out := make(language.Path, n)
	for p := s; p != nil; p = p.Prev {
		n--
		switch k := p.Key.(type) {
		case string:
			out[n] = language.PathName(k)
		case int:
			out[n] = language.PathIndex(k)
		}
	}
	return out
}

// String renders the canonical serialized form, "posts[2].author.name".
// The rendering is unambiguous: field segments are dot-joined and index
// segments bracketed, so distinct chains never collide.
func (s *Step) String() string {
	if s == nil {
		return ""
	}
	var b strings.Builder
	for i, el := range s.Path() {
		switch el := el.(type) {
		case language.PathName:
			if i > 0 {
				b.WriteByte('.')
			}
			b.WriteString(string(el))
		case language.PathIndex:
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(int(el)))
			b.WriteByte(']')
		}
	}
	return b.String()
}
