package tracing

import (
	"context"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/pagegen/gqlrun/internal/fieldpath"
)

func newRecorded(t *testing.T) (trace.Tracer, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp.Tracer("test"), sr
}

func endedSpan(t *testing.T, sr *tracetest.SpanRecorder, name string) sdktrace.ReadOnlySpan {
	t.Helper()
	for _, s := range sr.Ended() {
		if s.Name() == name {
			return s
		}
	}
	t.Fatalf("span %q was never ended", name)
	return nil
}

func TestResolverSpansSkipListIndexSegments(t *testing.T) {
	tracer, sr := newRecorded(t)
	qt := New(context.Background(), "GraphQL Query", WithTracer(tracer))

	posts := fieldpath.Field(nil, "posts")
	qt.StartResolver(posts, "Query.posts").End()

	author := fieldpath.Field(fieldpath.Index(posts, 0), "author")
	qt.StartResolver(author, "Post.author").End()

	name := fieldpath.Field(author, "name")
	qt.StartResolver(name, "Author.name").End()

	qt.Finish()

	root := endedSpan(t, sr, "GraphQL Query")
	postsSpan := endedSpan(t, sr, "Query.posts")
	authorSpan := endedSpan(t, sr, "Post.author")
	nameSpan := endedSpan(t, sr, "Author.name")

	if got := postsSpan.Parent().SpanID(); got != root.SpanContext().SpanID() {
		t.Errorf("Query.posts parented on %v, want root", got)
	}
	// posts[0] has no span of its own; author must hang off posts.
	if got := authorSpan.Parent().SpanID(); got != postsSpan.SpanContext().SpanID() {
		t.Errorf("Post.author parented on %v, want Query.posts", got)
	}
	if got := nameSpan.Parent().SpanID(); got != authorSpan.SpanContext().SpanID() {
		t.Errorf("Author.name parented on %v, want Post.author", got)
	}
}

func TestResolverSpanFallsBackToRoot(t *testing.T) {
	tracer, sr := newRecorded(t)
	qt := New(context.Background(), "GraphQL Query", WithTracer(tracer))

	// No ancestor was ever registered for this chain.
	orphan := fieldpath.Field(fieldpath.Index(fieldpath.Field(nil, "ghost"), 3), "leaf")
	qt.StartResolver(orphan, "Ghost.leaf").End()
	qt.Finish()

	root := endedSpan(t, sr, "GraphQL Query")
	leaf := endedSpan(t, sr, "Ghost.leaf")
	if got := leaf.Parent().SpanID(); got != root.SpanContext().SpanID() {
		t.Errorf("orphan resolver parented on %v, want root", got)
	}
}

func TestRootSpanParentsOnCallerSpan(t *testing.T) {
	tracer, sr := newRecorded(t)
	_, outer := tracer.Start(context.Background(), "page.build")

	qt := New(context.Background(), "GraphQL Query", WithTracer(tracer), WithParentSpan(outer))
	qt.Finish()
	outer.End()

	root := endedSpan(t, sr, "GraphQL Query")
	outerRO := endedSpan(t, sr, "page.build")
	if got := root.Parent().SpanID(); got != outerRO.SpanContext().SpanID() {
		t.Errorf("root parented on %v, want caller span", got)
	}
}

func TestSpanFor(t *testing.T) {
	tracer, _ := newRecorded(t)
	qt := New(context.Background(), "GraphQL Query", WithTracer(tracer))
	defer qt.Finish()

	if span, ok := qt.SpanFor(nil); !ok || span != qt.Root() {
		t.Error("nil step must address the root span")
	}

	step := fieldpath.Field(nil, "posts")
	if _, ok := qt.SpanFor(step); ok {
		t.Error("unregistered path reported a span")
	}

	started := qt.StartResolver(step, "Query.posts")
	defer started.End()
	if span, ok := qt.SpanFor(step); !ok || span != started {
		t.Error("registered path did not return its span")
	}
}

func TestReRegistrationReplacesLookup(t *testing.T) {
	tracer, _ := newRecorded(t)
	qt := New(context.Background(), "GraphQL Query", WithTracer(tracer))
	defer qt.Finish()

	step := fieldpath.Field(nil, "posts")
	first := qt.StartResolver(step, "Query.posts")
	first.End()
	second := qt.StartResolver(step, "Query.posts")
	second.End()

	span, ok := qt.SpanFor(step)
	if !ok || span != second {
		t.Error("lookup did not return the most recent span for the path")
	}
}
