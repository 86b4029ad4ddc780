package language

import (
	"errors"

	gqlparser "github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"
	"github.com/vektah/gqlparser/v2/validator"
)

// NewSource wraps a query string in a Source token. Callers that want
// identity-keyed caching should create the Source once and reuse it.
func NewSource(name, input string) *Source {
	return &Source{Name: name, Input: input}
}

func ParseQuery(src *Source) (*QueryDocument, error) {
	doc, err := parser.ParseQuery(src)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// LoadSchema parses and validates SDL sources into an executable schema.
func LoadSchema(sources ...*Source) (*Schema, error) {
	schema, err := gqlparser.LoadSchema(sources...)
	if err != nil {
		return nil, err
	}
	return schema, nil
}

// Validate runs the standard validation rules for doc against schema.
// A nil return means the document is valid.
func Validate(schema *Schema, doc *QueryDocument) ErrorList {
	return validator.Validate(schema, doc)
}

// ToError normalizes err into a located GraphQL error.
func ToError(err error) *Error {
	if err == nil {
		return nil
	}
	var gqlErr *Error
	if errors.As(err, &gqlErr) {
		return gqlErr
	}
	return &Error{Err: err, Message: err.Error()}
}

// ToErrorList normalizes err into an error list, flattening nested lists.
func ToErrorList(err error) ErrorList {
	if err == nil {
		return nil
	}
	var list ErrorList
	if errors.As(err, &list) {
		return list
	}
	return ErrorList{ToError(err)}
}

// ErrorPathf builds a located error carrying the field path that produced it.
func ErrorPathf(path Path, format string, args ...any) *Error {
	return gqlerror.ErrorPathf(path, format, args...)
}

func Errorf(format string, args ...any) *Error {
	return gqlerror.Errorf(format, args...)
}

// NamedType returns the innermost named type of t, unwrapping lists and
// non-null markers.
func NamedType(t *Type) string {
	for t.Elem != nil {
		t = t.Elem
	}
	return t.NamedType
}

// IsListType reports whether t is a list after unwrapping a non-null marker.
func IsListType(t *Type) bool {
	return t.Elem != nil
}
