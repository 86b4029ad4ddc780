package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/pagegen/gqlrun/internal/eventbus"
	"github.com/pagegen/gqlrun/internal/executor"
	"github.com/pagegen/gqlrun/internal/language"
	"github.com/pagegen/gqlrun/internal/logging"
	"github.com/pagegen/gqlrun/internal/nodestore"
	"github.com/pagegen/gqlrun/internal/otelwire"
	"github.com/pagegen/gqlrun/internal/runner"
	"github.com/pagegen/gqlrun/internal/server"
)

const rootUsage = `gqlrun — cached GraphQL query runner & tools

USAGE:
  gqlrun <command> [flags]

COMMANDS:
  serve            Run the HTTP GraphQL endpoint over a node fixture file
  check            Parse and validate query files against a schema
  help             Show help for any command
`

const serveUsage = `serve FLAGS:
  -schema.file <file>        GraphQL SDL schema file (required)
  -data.file <file>          JSON node fixtures, {"Type": [node, ...]}
  -server.addr <addr>        HTTP listen address (default: :8080)
  -server.pretty             Pretty-print JSON responses
  -server.timeout <duration> Per-request timeout, e.g. 10s (default: 10s)
  -server.max-body <bytes>   Request body size limit (default: 1048576)
  -server.cors <origin>      Allowed CORS origin. Repeatable; * allows any
  -cache.idle <duration>     Idle delay before the document cache is
                             evicted (default: 5s)
  -stats.collect             Collect workload statistics, enabling
                             /statsz and /metrics
  -log.level <level>         debug, info, warn or error (default: info)
  -otel.endpoint <addr>      OTLP collector endpoint
  -otel.service <name>       OpenTelemetry service name (default: gqlrun)
`

const checkUsage = `check FLAGS:
  -schema.file <file>  GraphQL SDL schema file (required)

  Remaining arguments are query files. Each is parsed and validated;
  errors go to stderr and the exit status is non-zero when any file
  fails.
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	global := flag.NewFlagSet("gqlrun", flag.ContinueOnError)
	global.SetOutput(new(bytes.Buffer)) // silence automatic output
	if err := global.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, rootUsage)
		return err
	}
	remaining := global.Args()
	if len(remaining) == 0 {
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd := remaining[0]
	cmdArgs := remaining[1:]
	switch cmd {
	case "serve":
		return cmdServe(cmdArgs)
	case "check":
		return cmdCheck(cmdArgs)
	case "help":
		return cmdHelp(cmdArgs)
	default:
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string) error {
	if len(args) == 0 {
		fmt.Print(rootUsage)
		return nil
	}
	switch args[0] {
	case "serve":
		fmt.Print(serveUsage)
	case "check":
		fmt.Print(checkUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

type stringListFlag []string

func (s *stringListFlag) String() string { return "" }

func (s *stringListFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// fileStore serves one immutable snapshot loaded at startup.
type fileStore struct {
	snap runner.Snapshot
}

func (s fileStore) Snapshot() runner.Snapshot { return s.snap }

func cmdServe(args []string) error {
	schemaFile := ""
	dataFile := ""
	addr := ":8080"
	pretty := false
	timeout := 10 * time.Second
	maxBody := int64(1 << 20)
	idle := runner.DefaultEvictionDelay
	collectStats := false
	logLevel := "info"
	otelEndpoint := ""
	otelService := "gqlrun"
	var corsOrigins stringListFlag

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&schemaFile, "schema.file", schemaFile, "GraphQL SDL schema file")
	fs.StringVar(&dataFile, "data.file", dataFile, "JSON node fixtures")
	fs.StringVar(&addr, "server.addr", addr, "HTTP listen address")
	fs.BoolVar(&pretty, "server.pretty", pretty, "Pretty-print JSON responses")
	fs.DurationVar(&timeout, "server.timeout", timeout, "Per-request timeout")
	fs.Int64Var(&maxBody, "server.max-body", maxBody, "Request body size limit")
	fs.Var(&corsOrigins, "server.cors", "Allowed CORS origin")
	fs.DurationVar(&idle, "cache.idle", idle, "Idle delay before cache eviction")
	fs.BoolVar(&collectStats, "stats.collect", collectStats, "Collect workload statistics")
	fs.StringVar(&logLevel, "log.level", logLevel, "Log level")
	fs.StringVar(&otelEndpoint, "otel.endpoint", otelEndpoint, "OTLP collector endpoint")
	fs.StringVar(&otelService, "otel.service", otelService, "OpenTelemetry service name")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, serveUsage)
		return err
	}
	if schemaFile == "" {
		fmt.Fprint(os.Stderr, serveUsage)
		return fmt.Errorf("-schema.file is required")
	}
	level, err := parseLevel(logLevel)
	if err != nil {
		fmt.Fprint(os.Stderr, serveUsage)
		return err
	}

	schema, err := loadSchema(schemaFile)
	if err != nil {
		return fmt.Errorf("load schema: %w", err)
	}
	var nodes *nodestore.Store
	if dataFile != "" {
		if nodes, err = loadNodes(dataFile); err != nil {
			return fmt.Errorf("load nodes: %w", err)
		}
	}

	eventbus.Use(eventbus.New())
	logger := logging.New(level)
	detach := logging.AttachBus(logger)
	defer detach()
	shutdown, err := otelwire.Setup(otelEndpoint, otelService)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	ropts := []runner.Option{
		runner.WithEvictionDelay(idle),
		runner.WithLogger(logger),
	}
	if collectStats {
		ropts = append(ropts, runner.WithStats())
	}
	store := fileStore{snap: runner.Snapshot{
		Schema:    schema,
		Nodes:     nodes,
		Resolvers: buildResolvers(schema, nodes),
	}}
	run := runner.New(store, ropts...)
	defer run.Close()

	sopts := []server.Option{server.WithMaxBodyBytes(maxBody)}
	if pretty {
		sopts = append(sopts, server.WithPretty())
	}
	if timeout > 0 {
		sopts = append(sopts, server.WithTimeout(timeout))
	}
	if len(corsOrigins) > 0 {
		sopts = append(sopts, server.WithCORS(corsOrigins...))
	}
	h := server.New(run, sopts...)

	logger.Info("GraphQL server listening", "addr", addr, "schema", schemaFile)
	return http.ListenAndServe(addr, h.Routes())
}

func cmdCheck(args []string) error {
	schemaFile := ""
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&schemaFile, "schema.file", schemaFile, "GraphQL SDL schema file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, checkUsage)
		return err
	}
	if schemaFile == "" {
		fmt.Fprint(os.Stderr, checkUsage)
		return fmt.Errorf("-schema.file is required")
	}
	files := fs.Args()
	if len(files) == 0 {
		fmt.Fprint(os.Stderr, checkUsage)
		return fmt.Errorf("no query files given")
	}

	schema, err := loadSchema(schemaFile)
	if err != nil {
		return fmt.Errorf("load schema: %w", err)
	}

	failed := 0
	for _, file := range files {
		raw, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		doc, perr := language.ParseQuery(language.NewSource(file, string(raw)))
		if perr != nil {
			printErrors(language.ToErrorList(perr))
			failed++
			continue
		}
		if errs := language.Validate(schema, doc); len(errs) > 0 {
			printErrors(errs)
			failed++
			continue
		}
		fmt.Printf("%s: ok\n", file)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d query files failed", failed, len(files))
	}
	return nil
}

func printErrors(errs language.ErrorList) {
	for _, e := range errs {
		fmt.Fprintln(os.Stderr, e.Error())
	}
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

func loadSchema(path string) (*language.Schema, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return language.LoadSchema(language.NewSource(path, string(raw)))
}

// loadNodes reads a fixture file mapping type names to node lists.
func loadNodes(path string) (*nodestore.Store, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	byType := map[string][]nodestore.Node{}
	if err := json.Unmarshal(raw, &byType); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	names := make([]string, 0, len(byType))
	for name := range byType {
		names = append(names, name)
	}
	sort.Strings(names)
	store := nodestore.NewStore()
	for _, name := range names {
		store.Add(name, byType[name]...)
	}
	return store, nil
}

// buildResolvers binds node store resolvers to Query fields whose type
// is an object backed by the store: list fields get the plural query,
// single fields get a first-match lookup. Other fields fall through to
// the default resolver.
func buildResolvers(schema *language.Schema, nodes *nodestore.Store) executor.ResolverMap {
	resolvers := executor.ResolverMap{}
	if schema.Query == nil || nodes == nil {
		return resolvers
	}
	for _, field := range schema.Query.Fields {
		named := language.NamedType(field.Type)
		def := schema.Types[named]
		if def == nil || def.Kind != language.Object {
			continue
		}
		key := schema.Query.Name + "." + field.Name
		if language.IsListType(field.Type) {
			resolvers[key] = nodestore.NodesResolver(named)
		} else {
			resolvers[key] = nodestore.NodeResolver(named)
		}
	}
	return resolvers
}
