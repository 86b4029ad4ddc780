// Package tracing reconstructs the resolver call tree of one query run
// as a span hierarchy keyed by serialized field paths.
package tracing

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pagegen/gqlrun/internal/fieldpath"
)

// QueryTracer owns the span tree of a single query run: one root span
// covering the whole query and one child span per traced resolver call.
// Resolver calls under list elements carry index segments in their
// paths; no span exists at an index path, so parent resolution skips
// them. One tracer serves exactly one run.
type QueryTracer struct {
	ctx    context.Context
	tracer trace.Tracer
	root   trace.Span

	mu    sync.Mutex
	spans map[string]trace.Span
}

type options struct {
	tracer trace.Tracer
	parent trace.Span
	attrs  []attribute.KeyValue
}

type Option func(*options)

// WithTracer overrides the otel tracer used for every span in the run.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) { o.tracer = tracer }
}

// WithParentSpan parents the root span under a caller-owned span.
func WithParentSpan(span trace.Span) Option {
	return func(o *options) { o.parent = span }
}

// WithAttributes sets extra attributes on the root span.
func WithAttributes(attrs ...attribute.KeyValue) Option {
	return func(o *options) { o.attrs = append(o.attrs, attrs...) }
}

// New starts the root span for one query run. The root becomes a child
// of the span on ctx, or of the span given via WithParentSpan.
func New(ctx context.Context, name string, opts ...Option) *QueryTracer {
	o := options{tracer: otel.Tracer("gqlrun")}
	for _, opt := range opts {
		opt(&o)
	}
	if o.parent != nil {
		ctx = trace.ContextWithSpan(ctx, o.parent)
	}
	ctx, root := o.tracer.Start(ctx, name)
	if len(o.attrs) > 0 {
		root.SetAttributes(o.attrs...)
	}
	return &QueryTracer{
		ctx:    ctx,
		tracer: o.tracer,
		root:   root,
		spans:  map[string]trace.Span{},
	}
}

// StartResolver starts a span for the resolver call at step and
// registers it under the step's serialized path. The caller ends the
// span when the resolver returns. step must be non-nil. Registering a
// path a second time replaces the span for future lookups; spans
// already parented on the first registration keep their parent.
func (t *QueryTracer) StartResolver(step *fieldpath.Step, name string) trace.Span {
	parent := t.parentFor(step)
	_, span := t.tracer.Start(trace.ContextWithSpan(t.ctx, parent), name)
	span.SetAttributes(attribute.String("graphql.field.path", step.String()))
	t.mu.Lock()
	t.spans[step.String()] = span
	t.mu.Unlock()
	return span
}

// parentFor walks upward from step's parent, skipping list-index
// segments, and returns the first ancestor with a registered span,
// falling back to the root span.
func (t *QueryTracer) parentFor(step *fieldpath.Step) trace.Span {
	t.mu.Lock()
	defer t.mu.Unlock()
	for p := step.Prev; p != nil; p = p.Prev {
		if p.IsIndex() {
			continue
		}
		if span, ok := t.spans[p.String()]; ok {
			return span
		}
	}
	return t.root
}

// SpanFor returns the span registered at step. A nil step addresses the
// root span. ok is false when nothing is registered at that path.
func (t *QueryTracer) SpanFor(step *fieldpath.Step) (trace.Span, bool) {
	if step == nil {
		return t.root, true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	span, ok := t.spans[step.String()]
	return span, ok
}

// Root returns the whole-query span.
func (t *QueryTracer) Root() trace.Span { return t.root }

// Context returns the run's base context, carrying the root span.
func (t *QueryTracer) Context() context.Context { return t.ctx }

// Finish ends the root span. Resolver spans are ended by the resolver
// call sites that started them.
func (t *QueryTracer) Finish() { t.root.End() }
