package executor

import (
	"fmt"
	"strconv"

	"github.com/pagegen/gqlrun/internal/fieldpath"
	"github.com/pagegen/gqlrun/internal/language"
)

// coerceVariableValues applies defaults and coerces the caller's
// variable bindings against the operation's variable definitions.
func coerceVariableValues(operation *language.OperationDefinition, variableValues map[string]any) (map[string]any, *language.Error) {
	coerced := make(map[string]any, len(operation.VariableDefinitions))
	for _, varDef := range operation.VariableDefinitions {
		name := varDef.Variable
		val, ok := variableValues[name]
		if !ok {
			if varDef.DefaultValue != nil {
				coerced[name] = astValueToGo(varDef.DefaultValue)
				continue
			}
			if varDef.Type.NonNull {
				return nil, language.Errorf("variable $%s of required type %s was not provided", name, varDef.Type.String())
			}
			continue
		}
		if val == nil && varDef.Type.NonNull {
			return nil, language.Errorf("variable $%s of type %s cannot be null", name, varDef.Type.String())
		}
		cv, err := coerceValue(val, varDef.Type)
		if err != nil {
			return nil, language.Errorf("variable $%s of type %s cannot be coerced: %v", name, varDef.Type.String(), err)
		}
		coerced[name] = cv
	}
	return coerced, nil
}

// coerceArgumentValues coerces the field's arguments, applying argument
// defaults. Coercion problems are recorded on the state and the
// offending argument omitted.
func (s *executionState) coerceArgumentValues(fieldDef *language.FieldDefinition, arguments language.ArgumentList, path *fieldpath.Step) map[string]any {
	coerced := make(map[string]any, len(fieldDef.Arguments))
	for _, arg := range arguments {
		argDef := fieldDef.Arguments.ForName(arg.Name)
		if argDef == nil {
			continue
		}
		val := valueFromAST(arg.Value, s.variables)
		cv, err := coerceValue(val, argDef.Type)
		if err != nil {
			s.addError(language.ErrorPathf(path.Path(), "argument %q cannot be coerced: %v", arg.Name, err))
			continue
		}
		coerced[arg.Name] = cv
	}
	for _, argDef := range fieldDef.Arguments {
		if _, ok := coerced[argDef.Name]; ok {
			continue
		}
		if argDef.DefaultValue != nil {
			coerced[argDef.Name] = astValueToGo(argDef.DefaultValue)
		} else if argDef.Type.NonNull {
			s.addError(language.ErrorPathf(path.Path(), "argument %q of required type %s was not provided", argDef.Name, argDef.Type.String()))
		}
	}
	return coerced
}

// valueFromAST converts an AST value to a runtime value, substituting
// variables at any depth.
func valueFromAST(value *language.Value, variables map[string]any) any {
	if value == nil {
		return nil
	}
	switch value.Kind {
	case language.Variable:
		return variables[value.Raw]
	case language.ListValue:
		out := make([]any, len(value.Children))
		for i, c := range value.Children {
			out[i] = valueFromAST(c.Value, variables)
		}
		return out
	case language.ObjectValue:
		m := make(map[string]any, len(value.Children))
		for _, f := range value.Children {
			m[f.Name] = valueFromAST(f.Value, variables)
		}
		return m
	default:
		return astValueToGo(value)
	}
}

// astValueToGo converts a constant AST value to a plain Go value.
func astValueToGo(value *language.Value) any {
	if value == nil {
		return nil
	}
	switch value.Kind {
	case language.IntValue:
		iv, _ := strconv.Atoi(value.Raw)
		return iv
	case language.FloatValue:
		fv, _ := strconv.ParseFloat(value.Raw, 64)
		return fv
	case language.StringValue, language.BlockValue:
		return value.Raw
	case language.BooleanValue:
		return value.Raw == "true"
	case language.NullValue:
		return nil
	case language.EnumValue:
		return value.Raw
	case language.ListValue:
		out := make([]any, len(value.Children))
		for i, c := range value.Children {
			out[i] = astValueToGo(c.Value)
		}
		return out
	case language.ObjectValue:
		m := make(map[string]any, len(value.Children))
		for _, f := range value.Children {
			m[f.Name] = astValueToGo(f.Value)
		}
		return m
	default:
		return nil
	}
}

// coerceValue coerces a runtime value to a GraphQL type. Input objects,
// enums and custom scalars pass through untouched.
func coerceValue(value any, t *language.Type) (any, error) {
	if t.NonNull && value == nil {
		return nil, fmt.Errorf("cannot provide null for non-null type %s", t.String())
	}
	if value == nil {
		return nil, nil
	}
	if language.IsListType(t) {
		return coerceListValue(value, t)
	}
	switch t.NamedType {
	case "Int":
		return coerceToInt(value)
	case "Float":
		return coerceToFloat(value)
	case "String":
		return coerceToString(value)
	case "Boolean":
		return coerceToBoolean(value)
	case "ID":
		return coerceToID(value)
	default:
		return value, nil
	}
}

func coerceListValue(value any, listType *language.Type) (any, error) {
	if slice, ok := value.([]any); ok {
		out := make([]any, len(slice))
		for i, item := range slice {
			cv, err := coerceValue(item, listType.Elem)
			if err != nil {
				return nil, err
			}
			out[i] = cv
		}
		return out, nil
	}
	// A single value coerces to a one-element list.
	cv, err := coerceValue(value, listType.Elem)
	if err != nil {
		return nil, err
	}
	return []any{cv}, nil
}

func coerceToInt(value any) (any, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case float32:
		return int(v), nil
	case string:
		if iv, err := strconv.Atoi(v); err == nil {
			return iv, nil
		}
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to Int", value, value)
}

func coerceToFloat(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		if fv, err := strconv.ParseFloat(v, 64); err == nil {
			return fv, nil
		}
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to Float", value, value)
}

func coerceToString(value any) (any, error) {
	if v, ok := value.(string); ok {
		return v, nil
	}
	return fmt.Sprintf("%v", value), nil
}

func coerceToBoolean(value any) (any, error) {
	if v, ok := value.(bool); ok {
		return v, nil
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to Boolean", value, value)
}

func coerceToID(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatInt(int64(v), 10), nil
	default:
		return fmt.Sprintf("%v", value), nil
	}
}
