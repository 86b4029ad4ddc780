package events

import "time"

// QueryStart is emitted when the runner accepts a query, before any
// cache lookup.
type QueryStart struct {
	Query         string
	OperationName string
	QueryName     string
}

// QueryFinish is emitted after a query run completes, whether it
// executed or was cut short by parse or validation errors.
type QueryFinish struct {
	Query         string
	OperationName string
	QueryName     string
	ErrorCount    int
	Duration      time.Duration
}

// CacheCleared is emitted when the runner drops its document cache.
// Reason is "idle" after a quiet period or "schema" when a replaced
// schema invalidated the cache.
type CacheCleared struct {
	Reason  string
	Entries int
}
