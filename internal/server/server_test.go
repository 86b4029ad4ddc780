package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/pagegen/gqlrun/internal/eventbus"
	"github.com/pagegen/gqlrun/internal/events"
	"github.com/pagegen/gqlrun/internal/executor"
	"github.com/pagegen/gqlrun/internal/language"
	"github.com/pagegen/gqlrun/internal/queryid"
	"github.com/pagegen/gqlrun/internal/runner"
)

type staticStore struct {
	snap runner.Snapshot
}

func (s staticStore) Snapshot() runner.Snapshot { return s.snap }

func testStore(t *testing.T, hello executor.FieldResolver) staticStore {
	t.Helper()
	schema, err := language.LoadSchema(language.NewSource("schema.graphql", `type Query { hello: String }`))
	if err != nil {
		t.Fatalf("LoadSchema: %v", err)
	}
	if hello == nil {
		hello = func(ctx context.Context, p *executor.ResolveParams) (any, error) {
			return "world", nil
		}
	}
	return staticStore{snap: runner.Snapshot{
		Schema:    schema,
		Resolvers: executor.ResolverMap{"Query.hello": hello},
	}}
}

func newTestHandler(t *testing.T, store runner.Store, ropts []runner.Option, opts ...Option) *Handler {
	t.Helper()
	run := runner.New(store, ropts...)
	t.Cleanup(run.Close)
	return New(run, opts...)
}

type gqlResponse struct {
	Data   map[string]any `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) gqlResponse {
	t.Helper()
	var resp gqlResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return resp
}

func postQuery(h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/graphql", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestServeQueryPost(t *testing.T) {
	h := newTestHandler(t, testStore(t, nil), nil)

	w := postQuery(h, `{"query":"{ hello }"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	resp := decodeResponse(t, w)
	if len(resp.Errors) != 0 {
		t.Fatalf("errors: %v", resp.Errors)
	}
	if resp.Data["hello"] != "world" {
		t.Fatalf("data = %v", resp.Data)
	}
}

func TestServeQueryGet(t *testing.T) {
	h := newTestHandler(t, testStore(t, nil), nil)

	req := httptest.NewRequest("GET", "/graphql?query=%7B%20hello%20%7D", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if resp := decodeResponse(t, w); resp.Data["hello"] != "world" {
		t.Fatalf("data = %v", resp.Data)
	}
}

func TestServeBatch(t *testing.T) {
	h := newTestHandler(t, testStore(t, nil), nil)

	w := postQuery(h, `[{"query":"{ hello }"},{"query":"{ nosuch }"}]`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var batch []gqlResponse
	if err := json.Unmarshal(w.Body.Bytes(), &batch); err != nil {
		t.Fatalf("decode batch %q: %v", w.Body.String(), err)
	}
	if len(batch) != 2 {
		t.Fatalf("batch size %d", len(batch))
	}
	if batch[0].Data["hello"] != "world" || len(batch[0].Errors) != 0 {
		t.Fatalf("batch[0] = %+v", batch[0])
	}
	if len(batch[1].Errors) == 0 {
		t.Fatalf("batch[1] = %+v, want validation errors", batch[1])
	}
}

func TestParseErrorsReported(t *testing.T) {
	h := newTestHandler(t, testStore(t, nil), nil)

	w := postQuery(h, `{"query":"{ hello"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d, want 200 with reported errors", w.Code)
	}
	resp := decodeResponse(t, w)
	if len(resp.Errors) == 0 {
		t.Fatal("no errors in response")
	}
	if resp.Data != nil {
		t.Fatalf("data = %v, want null", resp.Data)
	}
}

func TestBadRequests(t *testing.T) {
	h := newTestHandler(t, testStore(t, nil), nil)

	t.Run("missing query", func(t *testing.T) {
		if w := postQuery(h, `{"query":""}`); w.Code != http.StatusBadRequest {
			t.Fatalf("status %d", w.Code)
		}
	})

	t.Run("invalid JSON", func(t *testing.T) {
		if w := postQuery(h, `{"query"`); w.Code != http.StatusBadRequest {
			t.Fatalf("status %d", w.Code)
		}
	})

	t.Run("empty batch", func(t *testing.T) {
		if w := postQuery(h, `[]`); w.Code != http.StatusBadRequest {
			t.Fatalf("status %d", w.Code)
		}
	})

	t.Run("unsupported content type", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/graphql", bytes.NewBufferString("query { hello }"))
		req.Header.Set("Content-Type", "text/plain")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status %d", w.Code)
		}
	})

	t.Run("method not allowed", func(t *testing.T) {
		req := httptest.NewRequest("DELETE", "/graphql", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusMethodNotAllowed {
			t.Fatalf("status %d", w.Code)
		}
	})
}

func TestCORSAndPreflight(t *testing.T) {
	h := newTestHandler(t, testStore(t, nil), nil, WithCORS("*"))

	req := httptest.NewRequest("POST", "/graphql", bytes.NewBufferString(`{"query":"{ hello }"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "http://example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS header")
	}

	pre := httptest.NewRequest("OPTIONS", "/graphql", nil)
	pre.Header.Set("Origin", "http://example.com")
	pre.Header.Set("Access-Control-Request-Headers", "X-Test")
	pw := httptest.NewRecorder()
	h.ServeHTTP(pw, pre)
	if pw.Code != http.StatusNoContent {
		t.Fatalf("preflight status %d", pw.Code)
	}
	if pw.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("preflight missing CORS header")
	}
	if pw.Header().Get("Access-Control-Allow-Headers") != "X-Test" {
		t.Fatalf("preflight missing allow headers")
	}
}

func TestMaxBodyBytes(t *testing.T) {
	h := newTestHandler(t, testStore(t, nil), nil, WithMaxBodyBytes(10))

	w := postQuery(h, `{"query":"{ hello }"}`)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 got %d", w.Code)
	}
}

func TestStatsEndpoints(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		h := newTestHandler(t, testStore(t, nil), nil)
		mux := h.Routes()

		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest("GET", "/statsz", nil))
		if w.Code != http.StatusNotFound {
			t.Fatalf("/statsz status %d", w.Code)
		}

		w = httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
		if w.Code != http.StatusNotFound {
			t.Fatalf("/metrics status %d", w.Code)
		}
	})

	t.Run("enabled", func(t *testing.T) {
		h := newTestHandler(t, testStore(t, nil), []runner.Option{runner.WithStats()})
		mux := h.Routes()

		if w := postQuery(mux, `{"query":"{ hello }"}`); w.Code != http.StatusOK {
			t.Fatalf("query status %d", w.Code)
		}

		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest("GET", "/statsz", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("/statsz status %d", w.Code)
		}
		var summary map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
			t.Fatalf("decode summary: %v", err)
		}
		if got := summary["totalQueries"]; got != float64(1) {
			t.Fatalf("totalQueries = %v, want 1", got)
		}

		w = httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("/metrics status %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), "gqlrun_queries_total 1") {
			t.Fatalf("metrics body missing counter:\n%s", w.Body.String())
		}
	})
}

func TestRequestEventsAndID(t *testing.T) {
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })

	var mu sync.Mutex
	var eventID int64
	var finishes []events.HTTPFinish
	eventbus.Subscribe(func(ctx context.Context, e events.HTTPStart) {
		mu.Lock()
		eventID, _ = queryid.FromContext(ctx)
		mu.Unlock()
	})
	eventbus.Subscribe(func(ctx context.Context, e events.HTTPFinish) {
		mu.Lock()
		finishes = append(finishes, e)
		mu.Unlock()
	})

	var resolverID int64
	hello := func(ctx context.Context, p *executor.ResolveParams) (any, error) {
		resolverID, _ = queryid.FromContext(ctx)
		return "world", nil
	}
	h := newTestHandler(t, testStore(t, hello), nil)

	if w := postQuery(h, `{"query":"{ hello }"}`); w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}

	mu.Lock()
	defer mu.Unlock()
	if eventID == 0 {
		t.Fatal("HTTPStart context carries no query id")
	}
	if resolverID != eventID {
		t.Fatalf("resolver saw id %d, HTTP layer minted %d", resolverID, eventID)
	}
	if len(finishes) != 1 || finishes[0].Status != http.StatusOK {
		t.Fatalf("finishes = %+v", finishes)
	}
}
