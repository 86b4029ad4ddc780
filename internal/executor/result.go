package executor

import "github.com/pagegen/gqlrun/internal/language"

// Result is the outcome of one execution: the data tree plus any errors
// collected along the way. Errors use the located type the validator
// produces, so validation short-circuits surface through the same shape
// execution failures do.
type Result struct {
	Data   any                `json:"data"`
	Errors language.ErrorList `json:"errors,omitempty"`
}
