package executor

import (
	"context"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pagegen/gqlrun/internal/fieldpath"
	"github.com/pagegen/gqlrun/internal/language"
)

// Params configures one execution.
type Params struct {
	Schema        *language.Schema
	Document      *language.QueryDocument
	OperationName string
	Variables     map[string]any
	Root          any
	Resolvers     ResolverMap
	Exec          *ExecContext
}

type executionState struct {
	schema    *language.Schema
	document  *language.QueryDocument
	variables map[string]any
	resolvers ResolverMap
	exec      *ExecContext
	errors    language.ErrorList
}

func (s *executionState) addError(err *language.Error) {
	s.errors = append(s.errors, err)
}

// Execute runs one operation of p.Document against p.Schema. Parsing
// and validation are the caller's concern; execution assumes a
// structurally valid document and reports field-level failures in the
// result rather than aborting.
func Execute(ctx context.Context, p Params) *Result {
	operation, opErr := selectOperation(p.Document, p.OperationName)
	if opErr != nil {
		return &Result{Errors: language.ErrorList{opErr}}
	}

	root, rootErr := rootType(p.Schema, operation.Operation)
	if rootErr != nil {
		return &Result{Errors: language.ErrorList{rootErr}}
	}

	variables, varErr := coerceVariableValues(operation, p.Variables)
	if varErr != nil {
		return &Result{Errors: language.ErrorList{varErr}}
	}

	exec := ExecContext{}
	if p.Exec != nil {
		exec = *p.Exec
	}
	if exec.Default == nil {
		exec.Default = DefaultFieldResolver
	}

	state := &executionState{
		schema:    p.Schema,
		document:  p.Document,
		variables: variables,
		resolvers: p.Resolvers,
		exec:      &exec,
	}

	data, err := state.executeSelectionSet(ctx, operation.SelectionSet, root, p.Root, nil)
	if err != nil {
		// A non-null root field failed; the whole data tree is null.
		state.addError(err)
		return &Result{Errors: state.errors}
	}
	return &Result{Data: data, Errors: state.errors}
}

func selectOperation(doc *language.QueryDocument, name string) (*language.OperationDefinition, *language.Error) {
	if name != "" {
		if op := doc.Operations.ForName(name); op != nil {
			return op, nil
		}
		return nil, language.Errorf("operation %q is not defined in the document", name)
	}
	switch len(doc.Operations) {
	case 1:
		return doc.Operations[0], nil
	case 0:
		return nil, language.Errorf("document defines no operations")
	default:
		return nil, language.Errorf("operation name required when the document defines multiple operations")
	}
}

func rootType(schema *language.Schema, operation language.Operation) (*language.Definition, *language.Error) {
	switch operation {
	case language.Query:
		if schema.Query == nil {
			return nil, language.Errorf("schema defines no query type")
		}
		return schema.Query, nil
	case language.Mutation:
		if schema.Mutation == nil {
			return nil, language.Errorf("schema defines no mutation type")
		}
		return schema.Mutation, nil
	default:
		return nil, language.Errorf("%s operations are not supported", operation)
	}
}

// executeSelectionSet resolves every collected field of objectType
// depth-first in query order. A non-nil error means a non-null field
// could not produce a value, so the whole object must become null at
// the nearest nullable ancestor.
func (s *executionState) executeSelectionSet(ctx context.Context, selectionSet language.SelectionSet, objectType *language.Definition, source any, path *fieldpath.Step) (map[string]any, *language.Error) {
	grouped := collectFields(s, objectType, selectionSet)
	result := make(map[string]any, len(grouped.fields))
	for _, cf := range grouped.orderedFields() {
		fieldPath := fieldpath.Field(path, cf.ResponseName)
		value, err := s.executeField(ctx, objectType, source, cf, fieldPath)
		if err != nil {
			return nil, err
		}
		result[cf.ResponseName] = value
	}
	return result, nil
}

func (s *executionState) executeField(ctx context.Context, objectType *language.Definition, source any, cf collectedField, path *fieldpath.Step) (any, *language.Error) {
	field := cf.Fields[0]

	if field.Name == "__typename" {
		return objectType.Name, nil
	}

	fieldDef := objectType.Fields.ForName(field.Name)
	if fieldDef == nil {
		s.addError(language.ErrorPathf(path.Path(), "field %q is not defined on type %s", field.Name, objectType.Name))
		return nil, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, language.ErrorPathf(path.Path(), "%s", ctxErr)
	}

	args := s.coerceArgumentValues(fieldDef, field.Arguments, path)

	resolver := s.resolvers[objectType.Name+"."+field.Name]
	if resolver == nil {
		resolver = s.exec.Default
	}

	var span trace.Span
	if s.exec.Tracer != nil {
		span = s.exec.Tracer.StartResolver(path, objectType.Name+"."+field.Name)
	}
	value, resolveErr := resolver(ctx, &ResolveParams{
		Source: source,
		Args:   args,
		Info: ResolveInfo{
			FieldName:  field.Name,
			Path:       path,
			ParentType: objectType.Name,
			ReturnType: fieldDef.Type,
		},
		Exec: s.exec,
	})
	if span != nil {
		if resolveErr != nil {
			span.RecordError(resolveErr)
			span.SetStatus(codes.Error, resolveErr.Error())
		}
		span.End()
	}

	if resolveErr != nil {
		fieldErr := language.ErrorPathf(path.Path(), "%s", resolveErr)
		if fieldDef.Type.NonNull {
			return nil, fieldErr
		}
		s.addError(fieldErr)
		return nil, nil
	}

	completed, completeErr := s.completeValue(ctx, fieldDef.Type, cf.selections(), value, path)
	if completeErr != nil {
		if fieldDef.Type.NonNull {
			return nil, completeErr
		}
		s.addError(completeErr)
		return nil, nil
	}
	return completed, nil
}

// completeValue shapes a resolved value to its declared type: lists
// recurse per element with index path segments, objects execute their
// sub-selections, leaves pass through. A non-nil error is a null still
// bubbling because the current position is non-null.
func (s *executionState) completeValue(ctx context.Context, t *language.Type, selectionSet language.SelectionSet, value any, path *fieldpath.Step) (any, *language.Error) {
	if value == nil {
		if t.NonNull {
			return nil, language.ErrorPathf(path.Path(), "cannot return null for non-nullable field")
		}
		return nil, nil
	}

	if language.IsListType(t) {
		list, ok := normalizeList(value)
		if !ok {
			return nil, language.ErrorPathf(path.Path(), "expected a list for type %s", t.String())
		}
		out := make([]any, len(list))
		for i, item := range list {
			itemPath := fieldpath.Index(path, i)
			cv, err := s.completeValue(ctx, t.Elem, selectionSet, item, itemPath)
			if err != nil {
				if t.Elem.NonNull {
					return nil, err
				}
				s.addError(err)
				cv = nil
			}
			out[i] = cv
		}
		return out, nil
	}

	def := s.schema.Types[t.NamedType]
	if def == nil {
		return nil, language.ErrorPathf(path.Path(), "unknown type %s", t.NamedType)
	}

	switch def.Kind {
	case language.Scalar, language.Enum:
		return value, nil

	case language.Object:
		sub, err := s.executeSelectionSet(ctx, selectionSet, def, value, path)
		if err != nil {
			return nil, err
		}
		return sub, nil

	case language.Interface, language.Union:
		concrete := s.resolveConcreteType(def, value)
		if concrete == nil {
			return nil, language.ErrorPathf(path.Path(), "cannot resolve concrete type for abstract type %s", def.Name)
		}
		sub, err := s.executeSelectionSet(ctx, selectionSet, concrete, value, path)
		if err != nil {
			return nil, err
		}
		return sub, nil

	default:
		return nil, language.ErrorPathf(path.Path(), "type %s cannot be completed", def.Name)
	}
}

// resolveConcreteType picks the object type for a value of an abstract
// type from the source's __typename field.
func (s *executionState) resolveConcreteType(abstract *language.Definition, value any) *language.Definition {
	m, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	name, ok := m["__typename"].(string)
	if !ok {
		return nil
	}
	def := s.schema.Types[name]
	if def == nil || def.Kind != language.Object {
		return nil
	}
	return def
}

func normalizeList(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []map[string]any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = item
		}
		return out, true
	}
	return nil, false
}
