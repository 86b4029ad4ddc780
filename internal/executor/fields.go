package executor

import (
	"github.com/pagegen/gqlrun/internal/language"
)

// collectedFieldMap preserves field order from the original query.
type collectedFieldMap struct {
	fields []collectedField
	index  map[string]int
}

type collectedField struct {
	ResponseName string
	Fields       []*language.Field
}

// selections merges the sub-selections of every field grouped under one
// response name.
func (cf collectedField) selections() language.SelectionSet {
	if len(cf.Fields) == 1 {
		return cf.Fields[0].SelectionSet
	}
	var merged language.SelectionSet
	for _, f := range cf.Fields {
		merged = append(merged, f.SelectionSet...)
	}
	return merged
}

func newCollectedFieldMap() *collectedFieldMap {
	return &collectedFieldMap{index: map[string]int{}}
}

func (cfm *collectedFieldMap) add(responseName string, field *language.Field) {
	if idx, ok := cfm.index[responseName]; ok {
		cfm.fields[idx].Fields = append(cfm.fields[idx].Fields, field)
		return
	}
	cfm.index[responseName] = len(cfm.fields)
	cfm.fields = append(cfm.fields, collectedField{
		ResponseName: responseName,
		Fields:       []*language.Field{field},
	})
}

func (cfm *collectedFieldMap) orderedFields() []collectedField {
	return cfm.fields
}

// collectFields groups the selection set's fields by response name,
// expanding fragments whose type condition applies to objectType and
// honoring @skip and @include.
func collectFields(state *executionState, objectType *language.Definition, selectionSet language.SelectionSet) *collectedFieldMap {
	grouped := newCollectedFieldMap()
	state.collectFieldsImpl(objectType, selectionSet, grouped, map[string]bool{})
	return grouped
}

func (s *executionState) collectFieldsImpl(objectType *language.Definition, selectionSet language.SelectionSet, grouped *collectedFieldMap, visited map[string]bool) {
	for _, selection := range selectionSet {
		switch sel := selection.(type) {
		case *language.Field:
			if !s.shouldIncludeNode(sel.Directives) {
				continue
			}
			responseName := sel.Alias
			if responseName == "" {
				responseName = sel.Name
			}
			grouped.add(responseName, sel)

		case *language.InlineFragment:
			if !s.shouldIncludeNode(sel.Directives) {
				continue
			}
			if !s.typeApplies(sel.TypeCondition, objectType) {
				continue
			}
			s.collectFieldsImpl(objectType, sel.SelectionSet, grouped, visited)

		case *language.FragmentSpread:
			if !s.shouldIncludeNode(sel.Directives) {
				continue
			}
			if visited[sel.Name] {
				continue
			}
			visited[sel.Name] = true

			fragment := s.document.Fragments.ForName(sel.Name)
			if fragment == nil {
				continue
			}
			if !s.typeApplies(fragment.TypeCondition, objectType) {
				continue
			}
			if !s.shouldIncludeNode(fragment.Directives) {
				continue
			}
			s.collectFieldsImpl(objectType, fragment.SelectionSet, grouped, visited)
		}
	}
}

// typeApplies reports whether a fragment type condition selects
// objectType, either directly, through an implemented interface, or
// through union membership.
func (s *executionState) typeApplies(condition string, objectType *language.Definition) bool {
	if condition == "" || condition == objectType.Name {
		return true
	}
	conditionDef := s.schema.Types[condition]
	if conditionDef == nil {
		return false
	}
	switch conditionDef.Kind {
	case language.Interface:
		for _, name := range objectType.Interfaces {
			if name == condition {
				return true
			}
		}
	case language.Union:
		for _, member := range conditionDef.Types {
			if member == objectType.Name {
				return true
			}
		}
	}
	return false
}

// shouldIncludeNode applies @skip and @include with variable-aware
// argument evaluation.
func (s *executionState) shouldIncludeNode(directives language.DirectiveList) bool {
	if skip := directives.ForName("skip"); skip != nil {
		if cond, ok := s.directiveArgument(skip, "if").(bool); ok && cond {
			return false
		}
	}
	if include := directives.ForName("include"); include != nil {
		if cond, ok := s.directiveArgument(include, "if").(bool); ok && !cond {
			return false
		}
	}
	return true
}

func (s *executionState) directiveArgument(directive *language.Directive, name string) any {
	for _, arg := range directive.Arguments {
		if arg.Name == name {
			return valueFromAST(arg.Value, s.variables)
		}
	}
	return nil
}
