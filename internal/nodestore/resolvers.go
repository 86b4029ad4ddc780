package nodestore

import (
	"context"
	"fmt"

	"github.com/pagegen/gqlrun/internal/executor"
)

// NodesResolver builds a resolver listing nodes of typeName, honoring
// filter, sort, limit and skip arguments.
func NodesResolver(typeName string) executor.FieldResolver {
	return func(ctx context.Context, p *executor.ResolveParams) (any, error) {
		model, err := modelFrom(p)
		if err != nil {
			return nil, err
		}
		nodes, err := model.RunQuery(ctx, specFromArgs(typeName, p.Args, false))
		if err != nil {
			return nil, err
		}
		out := make([]any, len(nodes))
		for i, n := range nodes {
			out[i] = map[string]any(n)
		}
		return out, nil
	}
}

// NodeResolver builds a resolver fetching the first node of typeName
// matching the filter, or null when nothing matches.
func NodeResolver(typeName string) executor.FieldResolver {
	return func(ctx context.Context, p *executor.ResolveParams) (any, error) {
		model, err := modelFrom(p)
		if err != nil {
			return nil, err
		}
		nodes, err := model.RunQuery(ctx, specFromArgs(typeName, p.Args, true))
		if err != nil {
			return nil, err
		}
		if len(nodes) == 0 {
			return nil, nil
		}
		return map[string]any(nodes[0]), nil
	}
}

func modelFrom(p *executor.ResolveParams) (*Model, error) {
	model, ok := p.Exec.Model.(*Model)
	if !ok || model == nil {
		return nil, fmt.Errorf("node model is not configured for this run")
	}
	return model, nil
}

func specFromArgs(typeName string, args map[string]any, firstOnly bool) QuerySpec {
	spec := QuerySpec{Type: typeName, FirstOnly: firstOnly}
	if filter, ok := args["filter"].(map[string]any); ok {
		spec.Filter = filter
	}
	if sortArg, ok := args["sort"].(map[string]any); ok {
		spec.Sort = parseSort(sortArg)
	}
	spec.Limit = intArg(args, "limit")
	spec.Skip = intArg(args, "skip")
	return spec
}

func parseSort(arg map[string]any) *Sort {
	s := &Sort{
		Fields: stringList(arg["fields"]),
		Order:  stringList(arg["order"]),
	}
	if len(s.Fields) == 0 {
		return nil
	}
	return s
}

func stringList(v any) []string {
	switch vv := v.(type) {
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return vv
	case string:
		return []string{vv}
	}
	return nil
}

func intArg(args map[string]any, name string) int {
	switch v := args[name].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
