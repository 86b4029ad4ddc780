package executor

import (
	"context"

	"github.com/pagegen/gqlrun/internal/fieldpath"
	"github.com/pagegen/gqlrun/internal/language"
	"github.com/pagegen/gqlrun/internal/stats"
	"github.com/pagegen/gqlrun/internal/tracing"
)

// ExecContext carries the per-run collaborators every resolver can
// reach: the domain object model, the stats collector, the span tracer,
// the fallback resolver and an opaque caller payload. Model is typed by
// the resolver package that consumes it; the executor never inspects
// it. A nil Tracer disables resolver spans, a nil Stats collector
// disables counting.
type ExecContext struct {
	Model   any
	Stats   *stats.Collector
	Tracer  *tracing.QueryTracer
	Default FieldResolver
	Payload any
}

// FieldResolver produces the value of one field.
type FieldResolver func(ctx context.Context, p *ResolveParams) (any, error)

// ResolverMap assigns resolvers to "Type.field" keys. Fields without an
// entry fall back to the ExecContext's default resolver.
type ResolverMap map[string]FieldResolver

// ResolveParams is the input to one resolver call.
type ResolveParams struct {
	Source any
	Args   map[string]any
	Info   ResolveInfo
	Exec   *ExecContext
}

// ResolveInfo locates the field being resolved.
type ResolveInfo struct {
	FieldName  string
	Path       *fieldpath.Step
	ParentType string
	ReturnType *language.Type
}

// DefaultFieldResolver reads the field from a map source by field name.
// Non-map sources resolve to null.
func DefaultFieldResolver(ctx context.Context, p *ResolveParams) (any, error) {
	if m, ok := p.Source.(map[string]any); ok {
		return m[p.Info.FieldName], nil
	}
	return nil, nil
}
