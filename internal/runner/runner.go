// Package runner orchestrates one GraphQL query run: schema check,
// memoized parse, memoized validation, traced execution and idle cache
// eviction. Malformed queries are reported in the result; only
// infrastructure faults surface as Go errors.
package runner

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pagegen/gqlrun/internal/debounce"
	"github.com/pagegen/gqlrun/internal/doccache"
	"github.com/pagegen/gqlrun/internal/eventbus"
	"github.com/pagegen/gqlrun/internal/events"
	"github.com/pagegen/gqlrun/internal/executor"
	"github.com/pagegen/gqlrun/internal/language"
	"github.com/pagegen/gqlrun/internal/logging"
	"github.com/pagegen/gqlrun/internal/nodestore"
	"github.com/pagegen/gqlrun/internal/queryid"
	"github.com/pagegen/gqlrun/internal/stats"
	"github.com/pagegen/gqlrun/internal/tracing"
)

// DefaultEvictionDelay is the quiet period after the last query before
// the document cache is dropped.
const DefaultEvictionDelay = 5 * time.Second

const defaultQueryName = "GraphQL Query"

// ErrNoSchema reports a store snapshot without a schema.
var ErrNoSchema = errors.New("runner: store snapshot has no schema")

// Store supplies the data a query executes against. Snapshot is called
// once per query. The returned schema pointer doubles as the cache
// version: serving a new pointer invalidates every cached document,
// even when the SDL text is unchanged.
type Store interface {
	Snapshot() Snapshot
}

// Snapshot is one consistent view of the store.
type Snapshot struct {
	Schema        *language.Schema
	Nodes         *nodestore.Store
	Resolvers     executor.ResolverMap
	CustomContext map[string]any
}

// RawQuery is the cache key form of a query: Text is value-keyed,
// Source is identity-keyed.
type RawQuery = doccache.RawQuery

// Options configures a Runner.
type Options struct {
	collectStats    bool
	evictionDelay   time.Duration
	tracer          trace.Tracer
	defaultResolver executor.FieldResolver
	log             logging.Logger
}

type Option func(*Options)

// WithStats turns on workload statistics collection.
func WithStats() Option {
	return func(o *Options) { o.collectStats = true }
}

// WithEvictionDelay overrides the idle period before cache eviction.
func WithEvictionDelay(d time.Duration) Option {
	return func(o *Options) { o.evictionDelay = d }
}

// WithTracer injects the otel tracer used for query and resolver spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Options) { o.tracer = tracer }
}

// WithDefaultResolver replaces the fallback resolver for fields without
// a ResolverMap entry.
func WithDefaultResolver(f executor.FieldResolver) Option {
	return func(o *Options) { o.defaultResolver = f }
}

// WithLogger sets the runner's diagnostic logger.
func WithLogger(l logging.Logger) Option {
	return func(o *Options) { o.log = l }
}

// Runner runs queries against a Store. The document cache, stats
// collector and eviction timer are shared across concurrent calls;
// every call gets its own span tracker.
type Runner struct {
	store Store
	opts  Options

	cache *doccache.Cache
	evict *debounce.Trigger
	stats *stats.Collector

	mu     sync.Mutex
	schema *language.Schema
}

func New(store Store, opts ...Option) *Runner {
	o := Options{
		evictionDelay:   DefaultEvictionDelay,
		defaultResolver: executor.DefaultFieldResolver,
		log:             logging.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	r := &Runner{
		store: store,
		opts:  o,
		cache: doccache.New(),
	}
	if o.collectStats {
		r.stats = stats.New()
	}
	r.evict = debounce.New(o.evictionDelay, r.evictIdle)
	return r
}

// QueryOptions carries the per-call knobs of Query.
type QueryOptions struct {
	// OperationName selects the operation when the document defines
	// several.
	OperationName string
	// QueryName names the whole-query span. Defaults to "GraphQL Query".
	QueryName string
	// PagePath scopes the node model handle for this run.
	PagePath string
	// ParentSpan, when set, becomes the parent of the whole-query span.
	ParentSpan trace.Span
}

// Query runs one GraphQL query. Parse and validation failures are
// reported in the result with a nil error; the executor is never
// invoked for them. A non-nil error means the run itself could not
// proceed.
func (r *Runner) Query(ctx context.Context, q RawQuery, variables map[string]any, opts QueryOptions) (*executor.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap := r.store.Snapshot()
	if snap.Schema == nil {
		return nil, ErrNoSchema
	}
	r.checkSchema(snap.Schema)

	r.stats.RecordQuery(q.Input(), variables)
	defer r.evict.Schedule()

	queryName := opts.QueryName
	if queryName == "" {
		queryName = defaultQueryName
	}
	ctx, id := queryid.Ensure(ctx)
	eventbus.Publish(ctx, events.QueryStart{
		Query:         q.Input(),
		OperationName: opts.OperationName,
		QueryName:     queryName,
	})
	started := time.Now()

	doc, parseErr := r.cache.Parse(q)
	if parseErr != nil {
		result := &executor.Result{Errors: language.ToErrorList(parseErr)}
		r.finish(ctx, q, opts, queryName, started, result)
		return result, nil
	}

	if errs := r.cache.Validate(snap.Schema, doc); len(errs) > 0 {
		result := &executor.Result{Errors: errs}
		r.finish(ctx, q, opts, queryName, started, result)
		return result, nil
	}

	tracerOpts := []tracing.Option{
		tracing.WithAttributes(attribute.Int64("gqlrun.query_id", id)),
	}
	if r.opts.tracer != nil {
		tracerOpts = append(tracerOpts, tracing.WithTracer(r.opts.tracer))
	}
	if opts.ParentSpan != nil {
		tracerOpts = append(tracerOpts, tracing.WithParentSpan(opts.ParentSpan))
	}
	tracer := tracing.New(ctx, queryName, tracerOpts...)

	exec := &executor.ExecContext{
		Stats:   r.stats,
		Tracer:  tracer,
		Default: r.opts.defaultResolver,
		Payload: snap.CustomContext,
	}
	if snap.Nodes != nil {
		exec.Model = snap.Nodes.ScopedModel(opts.PagePath, r.stats)
	}

	result := executor.Execute(tracer.Context(), executor.Params{
		Schema:        snap.Schema,
		Document:      doc,
		OperationName: opts.OperationName,
		Variables:     variables,
		Resolvers:     snap.Resolvers,
		Exec:          exec,
	})
	tracer.Finish()

	r.finish(ctx, q, opts, queryName, started, result)
	return result, nil
}

func (r *Runner) finish(ctx context.Context, q RawQuery, opts QueryOptions, queryName string, started time.Time, result *executor.Result) {
	eventbus.Publish(ctx, events.QueryFinish{
		Query:         q.Input(),
		OperationName: opts.OperationName,
		QueryName:     queryName,
		ErrorCount:    len(result.Errors),
		Duration:      time.Since(started),
	})
}

// checkSchema drops every cached document when the store serves a new
// schema pointer. The first observed schema does not count as a change.
func (r *Runner) checkSchema(schema *language.Schema) {
	r.mu.Lock()
	previous := r.schema
	r.schema = schema
	r.mu.Unlock()
	if previous == nil || previous == schema {
		return
	}

	dropped := r.cache.Clear()
	r.opts.log.Debug("document cache cleared", "reason", "schema", "entries", dropped)
	eventbus.Publish(context.Background(), events.CacheCleared{Reason: "schema", Entries: dropped})
}

func (r *Runner) evictIdle() {
	dropped := r.cache.Clear()
	r.opts.log.Debug("document cache cleared", "reason", "idle", "entries", dropped)
	eventbus.Publish(context.Background(), events.CacheCleared{Reason: "idle", Entries: dropped})
}

// StatsSummary snapshots collected workload statistics. Nil when
// collection is disabled.
func (r *Runner) StatsSummary() *stats.Summary { return r.stats.Summary() }

// Stats exposes the collector for metrics registration. Nil when
// collection is disabled.
func (r *Runner) Stats() *stats.Collector { return r.stats }

// CacheLen reports the number of cached documents.
func (r *Runner) CacheLen() int { return r.cache.Len() }

// Close cancels any pending idle eviction.
func (r *Runner) Close() { r.evict.Stop() }
