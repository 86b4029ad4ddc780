// Package otelwire configures OpenTelemetry export and turns lifecycle
// events into spans: one http.request span per request, one
// graphql.query span per run, correlated through the query id.
package otelwire

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"

	"github.com/pagegen/gqlrun/internal/eventbus"
	"github.com/pagegen/gqlrun/internal/events"
	"github.com/pagegen/gqlrun/internal/queryid"
)

// Setup installs the global tracer provider with an OTLP gRPC exporter
// and attaches the eventbus subscribers. An empty endpoint leaves
// telemetry off and returns a no-op shutdown.
func Setup(endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithInsecure()))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	sub := &subscriber{tracer: otel.Tracer("gqlrun")}
	sub.register()

	return tp.Shutdown, nil
}

type subscriber struct {
	tracer     trace.Tracer
	httpSpans  sync.Map // query id -> trace.Span
	querySpans sync.Map // query id -> trace.Span
}

func (s *subscriber) register() {
	eventbus.Subscribe(func(ctx context.Context, e events.HTTPStart) {
		id, _ := queryid.FromContext(ctx)
		_, span := s.tracer.Start(ctx, "http.request")
		span.SetAttributes(
			semconv.HTTPMethodKey.String(e.Request.Method),
			attribute.String("http.target", e.Request.URL.Path),
			attribute.Int64("gqlrun.query_id", id),
		)
		s.httpSpans.Store(id, span)
	})

	eventbus.Subscribe(func(ctx context.Context, e events.HTTPFinish) {
		id, _ := queryid.FromContext(ctx)
		v, ok := s.httpSpans.LoadAndDelete(id)
		if !ok {
			return
		}
		span := v.(trace.Span)
		span.SetAttributes(semconv.HTTPStatusCodeKey.Int(e.Status))
		span.End()
	})

	eventbus.Subscribe(func(ctx context.Context, e events.QueryStart) {
		id, _ := queryid.FromContext(ctx)
		parent := ctx
		if v, ok := s.httpSpans.Load(id); ok {
			parent = trace.ContextWithSpan(ctx, v.(trace.Span))
		}
		_, span := s.tracer.Start(parent, "graphql.query")
		span.SetAttributes(
			attribute.String("graphql.query.name", e.QueryName),
			attribute.String("graphql.operation.name", e.OperationName),
			attribute.Int64("gqlrun.query_id", id),
		)
		s.querySpans.Store(id, span)
	})

	eventbus.Subscribe(func(ctx context.Context, e events.QueryFinish) {
		id, _ := queryid.FromContext(ctx)
		v, ok := s.querySpans.LoadAndDelete(id)
		if !ok {
			return
		}
		span := v.(trace.Span)
		span.SetAttributes(attribute.Int("graphql.error_count", e.ErrorCount))
		span.End()
	})

	eventbus.Subscribe(func(ctx context.Context, e events.CacheCleared) {
		_, span := s.tracer.Start(ctx, "cache.clear")
		span.SetAttributes(
			attribute.String("cache.clear.reason", e.Reason),
			attribute.Int("cache.clear.entries", e.Entries),
		)
		span.End()
	})
}
