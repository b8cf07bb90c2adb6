package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mttchpmn/flux/internal/infrastructure/config"
	"github.com/mttchpmn/flux/internal/infrastructure/logging"
	"github.com/mttchpmn/flux/internal/node"
	"github.com/mttchpmn/flux/internal/store"
)

const defaultNodeA = `{"id":null,"name":"default","color0":"#42b0f4","color1":"","color2":"","pattern":"flash","delay":1000}`

type serverOpts struct {
	schema     node.Schema
	strict     bool
	healthPath string
	ws         bool
}

// testServer creates a Server over a store backed by memory.
func testServer(t *testing.T, opts serverOpts) (*Server, *store.MemoryBackend) {
	t.Helper()

	backend := store.NewMemoryBackend()
	st, err := store.Open(context.Background(), backend)
	if err != nil {
		t.Fatalf("store.Open() error: %v", err)
	}

	schema := opts.schema
	if schema == "" {
		schema = node.SchemaA
	}
	registry := node.NewRegistry(st, schema)
	registry.SetStrict(opts.strict)

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
			HealthPath: opts.healthPath,
		},
		WS: config.WebSocketConfig{
			Enabled:        opts.ws,
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logger:   logging.Discard(),
		Registry: registry,
		Store:    st,
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return srv, backend
}

func doRequest(t *testing.T, h http.Handler, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func postJSON(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	return doRequest(t, h, http.MethodPost, "/config/node", "application/json", body)
}

func getNode(t *testing.T, h http.Handler, query string) *httptest.ResponseRecorder {
	t.Helper()
	return doRequest(t, h, http.MethodGet, "/config/node"+query, "", "")
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) Error {
	t.Helper()
	var e Error
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("unmarshal error body %q: %v", w.Body.String(), err)
	}
	return e
}

// ─── Constructor Tests ─────────────────────────────────────────────

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Deps{Registry: &node.Registry{}}); err == nil {
		t.Error("New() without logger expected error")
	}
	if _, err := New(Deps{Logger: logging.Discard()}); err == nil {
		t.Error("New() without registry expected error")
	}
}

// ─── Root ──────────────────────────────────────────────────────────

func TestRoot(t *testing.T) {
	srv, _ := testServer(t, serverOpts{})

	w := doRequest(t, srv.Handler(), http.MethodGet, "/", "", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Body.String() != "Flux API online.\n" {
		t.Errorf("body = %q", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q, want text/plain", ct)
	}
}

// ─── GET /config/node ──────────────────────────────────────────────

func TestGetNode_UnknownReturnsDefault(t *testing.T) {
	srv, _ := testServer(t, serverOpts{})
	h := srv.Handler()
	postJSON(t, h, `{"id":"node1","name":"Kitchen","color0":"#ff0000"}`)

	for _, query := range []string{"?id=missing", "?id=NODE1", "?id=", ""} {
		t.Run(query, func(t *testing.T) {
			w := getNode(t, h, query)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}
			if w.Body.String() != defaultNodeA {
				t.Errorf("body = %s\nwant   %s", w.Body.String(), defaultNodeA)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
		})
	}
}

func TestGetNode_SchemaBDefault(t *testing.T) {
	srv, _ := testServer(t, serverOpts{schema: node.SchemaB})

	w := getNode(t, srv.Handler(), "?id=strip")

	want := `{"id":null,"name":"default","state":1,"r0":66,"g0":176,"b0":244,"pattern":"flash","brightness":200,"delay":1000}`
	if w.Body.String() != want {
		t.Errorf("body = %s\nwant   %s", w.Body.String(), want)
	}
}

func TestGetNode_NullIDRecord(t *testing.T) {
	srv, _ := testServer(t, serverOpts{})
	h := srv.Handler()

	// A body without an id is stored under the shared null id, which is
	// what a request without an id looks up.
	postJSON(t, h, `{"name":"Unnamed","color0":"#ffffff"}`)

	w := getNode(t, h, "")
	want := `{"id":null,"name":"Unnamed","color0":"#ffffff","color1":null,"color2":null,"pattern":"static","delay":1000}`
	if w.Body.String() != want {
		t.Errorf("body = %s\nwant   %s", w.Body.String(), want)
	}
}

func TestGetNode_Stringify(t *testing.T) {
	srv, _ := testServer(t, serverOpts{})
	h := srv.Handler()
	postJSON(t, h, `{"id":"node1","name":"Kitchen","color0":"#ff0000","pattern":"fade"}`)

	for _, id := range []string{"node1", "unknown"} {
		t.Run(id, func(t *testing.T) {
			plain := getNode(t, h, "?id="+id).Body.String()
			quoted := getNode(t, h, "?id="+id+"&stringify=true").Body.Bytes()

			var inner string
			if err := json.Unmarshal(quoted, &inner); err != nil {
				t.Fatalf("stringified body %q is not a JSON string: %v", quoted, err)
			}
			if inner != plain {
				t.Errorf("decoded once = %s, want %s", inner, plain)
			}

			var rec map[string]any
			if err := json.Unmarshal([]byte(inner), &rec); err != nil {
				t.Fatalf("decoding twice: %v", err)
			}
		})
	}
}

func TestGetNode_EmptyStringifyIsPlain(t *testing.T) {
	srv, _ := testServer(t, serverOpts{})

	w := getNode(t, srv.Handler(), "?id=x&stringify=")
	if w.Body.String() != defaultNodeA {
		t.Errorf("body = %s, want plain default", w.Body.String())
	}
}

// ─── POST /config/node ─────────────────────────────────────────────

func TestUpsert_CreateThenUpdate(t *testing.T) {
	srv, _ := testServer(t, serverOpts{})
	h := srv.Handler()

	w := postJSON(t, h, `{"id":"node1","name":"Kitchen","color0":"#ff0000"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("create status = %d, body %s", w.Code, w.Body.String())
	}
	wantNode := `{"id":"node1","name":"Kitchen","color0":"#ff0000","color1":null,"color2":null,"pattern":"static","delay":1000}`
	want := `{"message":"New node added to DB successfully","node":` + wantNode + `}`
	if w.Body.String() != want {
		t.Errorf("create body = %s\nwant          %s", w.Body.String(), want)
	}

	if got := getNode(t, h, "?id=node1").Body.String(); got != wantNode {
		t.Errorf("GET after create = %s\nwant               %s", got, wantNode)
	}

	w = postJSON(t, h, `{"id":"node1","name":"Kitchen","color0":"#00ff00"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", w.Code, w.Body.String())
	}
	want = `{"message":"Existing node updated successfully","node":{"id":"node1","name":"Kitchen","color0":"#00ff00","color1":null,"color2":null,"pattern":"static","delay":1000}}`
	if w.Body.String() != want {
		t.Errorf("update body = %s\nwant          %s", w.Body.String(), want)
	}
}

func TestUpsert_UpdateDefaultsAgain(t *testing.T) {
	srv, _ := testServer(t, serverOpts{})
	h := srv.Handler()

	postJSON(t, h, `{"id":"n","name":"N","color0":"#000000","color1":"#111111","pattern":"flash","delay":20}`)
	postJSON(t, h, `{"id":"n","name":"N","color0":"#000000"}`)

	want := `{"id":"n","name":"N","color0":"#000000","color1":null,"color2":null,"pattern":"static","delay":1000}`
	if got := getNode(t, h, "?id=n").Body.String(); got != want {
		t.Errorf("GET = %s\nwant  %s", got, want)
	}
}

func TestUpsert_Idempotent(t *testing.T) {
	srv, backend := testServer(t, serverOpts{})
	h := srv.Handler()
	body := `{"id":"n","name":"N","color0":"#010203","color2":"#040506","delay":250}`

	postJSON(t, h, body)
	first := getNode(t, h, "?id=n").Body.String()
	postJSON(t, h, body)
	second := getNode(t, h, "?id=n").Body.String()

	if first != second {
		t.Errorf("after second POST = %s, after first = %s", second, first)
	}

	doc, err := backend.Document()
	if err != nil {
		t.Fatalf("Document() error: %v", err)
	}
	if n := strings.Count(string(doc), `"id": "n"`); n != 1 {
		t.Errorf("document holds %d records for id n, want 1:\n%s", n, doc)
	}
}

func TestUpsert_Defaults(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantPattern string
		wantDelay   string
	}{
		{"absent", `{"id":"a"}`, `"static"`, `1000`},
		{"null", `{"id":"a","pattern":null,"delay":null}`, `"static"`, `1000`},
		{"empty and zero", `{"id":"a","pattern":"","delay":0}`, `"static"`, `1000`},
		{"false", `{"id":"a","pattern":false,"delay":false}`, `"static"`, `1000`},
		{"supplied", `{"id":"a","pattern":"flash","delay":"0"}`, `"flash"`, `"0"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := testServer(t, serverOpts{})
			h := srv.Handler()
			postJSON(t, h, tt.body)

			var rec map[string]json.RawMessage
			if err := json.Unmarshal(getNode(t, h, "?id=a").Body.Bytes(), &rec); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if string(rec["pattern"]) != tt.wantPattern {
				t.Errorf("pattern = %s, want %s", rec["pattern"], tt.wantPattern)
			}
			if string(rec["delay"]) != tt.wantDelay {
				t.Errorf("delay = %s, want %s", rec["delay"], tt.wantDelay)
			}
		})
	}
}

func TestUpsert_FormBody(t *testing.T) {
	srv, _ := testServer(t, serverOpts{})
	h := srv.Handler()

	w := doRequest(t, h, http.MethodPost, "/config/node",
		"application/x-www-form-urlencoded",
		"id=node2&name=Hall&color0=%23123456&delay=500")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	want := `{"id":"node2","name":"Hall","color0":"#123456","color1":null,"color2":null,"pattern":"static","delay":"500"}`
	if got := getNode(t, h, "?id=node2").Body.String(); got != want {
		t.Errorf("GET = %s\nwant  %s", got, want)
	}
}

func TestUpsert_KeepsHTMLCharacters(t *testing.T) {
	srv, _ := testServer(t, serverOpts{})
	h := srv.Handler()

	postJSON(t, h, `{"id":"r&d","name":"<Lab>"}`)

	got := getNode(t, h, "?id=r%26d").Body.String()
	if !strings.Contains(got, `"name":"<Lab>"`) || !strings.Contains(got, `"id":"r&d"`) {
		t.Errorf("GET = %s, want unescaped <, > and &", got)
	}
}

func TestUpsert_NormalisesNumbersAndEscapes(t *testing.T) {
	srv, backend := testServer(t, serverOpts{})
	h := srv.Handler()

	w := postJSON(t, h, `{"id":1,"name":"\u0041","color0":"\u003cb\u003e","delay":1.0}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	// 1.0 addresses the same record as 1.
	w = postJSON(t, h, `{"id":1.0,"name":"\u0041","delay":250.00}`)
	if !strings.Contains(w.Body.String(), msgNodeUpdated) {
		t.Errorf("second POST = %s, want an update", w.Body.String())
	}

	doc, err := backend.Document()
	if err != nil {
		t.Fatalf("Document() error: %v", err)
	}
	if n := strings.Count(string(doc), `"id": 1`); n != 1 {
		t.Errorf("document holds %d records for id 1, want 1:\n%s", n, doc)
	}
	if !strings.Contains(string(doc), `"delay": 250`) || strings.Contains(string(doc), "250.00") {
		t.Errorf("document = %s, want delay 250", doc)
	}

	w = postJSON(t, h, `{"id":"n2","color0":"\u003cb\u003e","delay":1.0}`)
	want := `{"message":"New node added to DB successfully","node":{"id":"n2","color0":"<b>","color1":null,"color2":null,"pattern":"static","delay":1}}`
	if got := w.Body.String(); got != want {
		t.Errorf("body = %s\nwant   %s", got, want)
	}
}

func TestUpsert_UnsupportedContentTypeIsEmptyBody(t *testing.T) {
	srv, _ := testServer(t, serverOpts{})
	h := srv.Handler()

	w := doRequest(t, h, http.MethodPost, "/config/node", "text/plain", `{"id":"ignored"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	want := `{"message":"New node added to DB successfully","node":{"id":null,"color1":null,"color2":null,"pattern":"static","delay":1000}}`
	if w.Body.String() != want {
		t.Errorf("body = %s\nwant   %s", w.Body.String(), want)
	}
}

func TestUpsert_BadBodies(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"syntax error", `{"id":"n",`},
		{"array", `[{"id":"n"}]`},
		{"string", `"node"`},
		{"trailing garbage", `{"id":"n"} x`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, backend := testServer(t, serverOpts{})
			saves := backend.Saves()

			w := postJSON(t, srv.Handler(), tt.body)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			if e := decodeError(t, w); e.Code != ErrCodeBadRequest {
				t.Errorf("code = %q, want %q", e.Code, ErrCodeBadRequest)
			}
			if backend.Saves() != saves {
				t.Error("document flushed for a rejected body")
			}
		})
	}
}

func TestUpsert_EmptyJSONBody(t *testing.T) {
	srv, _ := testServer(t, serverOpts{})

	w := postJSON(t, srv.Handler(), "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for an empty body", w.Code)
	}
}

func TestUpsert_TooLarge(t *testing.T) {
	srv, _ := testServer(t, serverOpts{})

	body := `{"id":"n","name":"` + strings.Repeat("x", maxRequestBodySize) + `"}`
	w := postJSON(t, srv.Handler(), body)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
}

func TestUpsert_FlushFailure(t *testing.T) {
	srv, backend := testServer(t, serverOpts{})
	h := srv.Handler()
	backend.SetSaveError(errors.New("disk full"))

	w := postJSON(t, h, `{"id":"node1","name":"Kitchen","color0":"#ff0000"}`)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if e := decodeError(t, w); e.Code != ErrCodeInternal || e.Status != 500 {
		t.Errorf("error = %+v", e)
	}

	backend.SetSaveError(nil)
	if got := getNode(t, h, "?id=node1").Body.String(); got != defaultNodeA {
		t.Errorf("GET after failed flush = %s, want default", got)
	}
}

func TestUpsert_Strict(t *testing.T) {
	srv, _ := testServer(t, serverOpts{strict: true})
	h := srv.Handler()

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"valid", `{"id":"n","name":"N","color0":"#ff0000"}`, http.StatusOK},
		{"null id", `{"name":"N","color0":"#ff0000"}`, http.StatusBadRequest},
		{"bad colour", `{"id":"n","name":"N","color0":"red"}`, http.StatusBadRequest},
		{"form delay is a string", `{"id":"n","name":"N","color0":"#ff0000","delay":"100"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(t, h, tt.body)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantCode, w.Body.String())
			}
			if tt.wantCode == http.StatusBadRequest {
				if e := decodeError(t, w); e.Code != ErrCodeValidation {
					t.Errorf("code = %q, want %q", e.Code, ErrCodeValidation)
				}
			}
		})
	}
}

// ─── Routing & Middleware ──────────────────────────────────────────

func TestHealth(t *testing.T) {
	srv, _ := testServer(t, serverOpts{})
	if w := doRequest(t, srv.Handler(), http.MethodGet, "/healthz", "", ""); w.Code != http.StatusNotFound {
		t.Errorf("health route without health_path: status = %d, want 404", w.Code)
	}

	srv, backend := testServer(t, serverOpts{healthPath: "/healthz"})
	w := doRequest(t, srv.Handler(), http.MethodGet, "/healthz", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", w.Code)
	}
	if w.Body.String() != `{"status":"ok","version":"test"}` {
		t.Errorf("health body = %s", w.Body.String())
	}

	if err := backend.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	w = doRequest(t, srv.Handler(), http.MethodGet, "/healthz", "", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("health after backend close: status = %d, want 503", w.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := testServer(t, serverOpts{})

	w := doRequest(t, srv.Handler(), http.MethodDelete, "/config/node", "", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}

func TestRequestID(t *testing.T) {
	srv, _ := testServer(t, serverOpts{})
	h := srv.Handler()

	w := doRequest(t, h, http.MethodGet, "/", "", "")
	if len(w.Header().Get("X-Request-ID")) != 36 {
		t.Errorf("generated X-Request-ID = %q, want a UUID", w.Header().Get("X-Request-ID"))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc123")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "abc123" {
		t.Errorf("X-Request-ID = %q, want abc123", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := testServer(t, serverOpts{})

	req := httptest.NewRequest(http.MethodOptions, "/config/node", nil)
	req.Header.Set("Origin", "http://flux.local")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://flux.local" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	srv, _ := testServer(t, serverOpts{})

	h := srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

// ─── Lifecycle ─────────────────────────────────────────────────────

func TestServe(t *testing.T) {
	srv, _ := testServer(t, serverOpts{})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx) }()

	var addr string
	deadline := time.Now().Add(2 * time.Second)
	for addr == "" && time.Now().Before(deadline) {
		addr = srv.Addr()
		time.Sleep(10 * time.Millisecond)
	}
	if addr == "" {
		t.Fatal("server did not bind")
	}

	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	resp, err := http.Get("http://" + addr + "/")
	if err != nil {
		t.Fatalf("GET / error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}

func TestHealthCheck_NotStarted(t *testing.T) {
	srv, _ := testServer(t, serverOpts{})

	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start expected error")
	}
	if err := srv.Close(); err != nil {
		t.Errorf("Close() before Start error = %v", err)
	}
}
