package events

import (
	"net/http"
	"time"
)

// HTTPStart is emitted when a request reaches the query endpoint.
// The event context carries the request context.
type HTTPStart struct {
	Request *http.Request
}

// HTTPFinish is emitted once the handler has written its response.
type HTTPFinish struct {
	Request  *http.Request
	Status   int
	Duration time.Duration
}
