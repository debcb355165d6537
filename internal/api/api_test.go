package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/froggy/mcp-tester/internal/app"
	"github.com/froggy/mcp-tester/internal/mcp"
	"github.com/froggy/mcp-tester/internal/store"
	"github.com/froggy/mcp-tester/internal/tools"
)

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newMux(t *testing.T, opts Options) http.Handler {
	t.Helper()
	svc := app.New(store.New(t.TempDir()), quietLogger())
	return NewMux(svc, opts)
}

func do(t *testing.T, h http.Handler, method, path, body string, headers ...string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.RemoteAddr = "127.0.0.1:5555"
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr, decodeBody(t, rr)
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	if err := json.NewDecoder(bytes.NewReader(rr.Body.Bytes())).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v (%s)", err, rr.Body.String())
	}
	return body
}

func errorCode(t *testing.T, body map[string]any) string {
	t.Helper()

	rawError, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error object in response: %v", body)
	}
	code, ok := rawError["code"].(string)
	if !ok {
		t.Fatalf("expected error code in response: %v", body)
	}
	return code
}

func TestHealthIsOpen(t *testing.T) {
	h := newMux(t, Options{Token: "secret"})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "8.8.8.8:1"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestGuard(t *testing.T) {
	h := newMux(t, Options{Token: "secret", Allowlist: "10.0.0.0/8"})

	rr, body := do(t, h, http.MethodGet, "/api/servers", "")
	if rr.Code != http.StatusUnauthorized || errorCode(t, body) != "UNAUTHORIZED" {
		t.Fatalf("expected unauthorized, got %d %v", rr.Code, body)
	}

	rr, _ = do(t, h, http.MethodGet, "/api/servers", "", "Authorization", "Bearer secret")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/servers", nil)
	req.RemoteAddr = "10.1.2.3:2358"
	req.Header.Set("Authorization", "Bearer secret")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("allowlisted IP rejected: %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/servers", nil)
	req.RemoteAddr = "8.8.8.8:3333"
	req.Header.Set("Authorization", "Bearer secret")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden || errorCode(t, decodeBody(t, rr)) != "FORBIDDEN_IP" {
		t.Fatalf("expected forbidden, got %d", rr.Code)
	}
}

func TestServerRoutes(t *testing.T) {
	h := newMux(t, Options{})

	rr, body := do(t, h, http.MethodPost, "/api/servers", `{"name":"local","address":"node s.js"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("add: %d %v", rr.Code, body)
	}
	data := body["data"].(map[string]any)
	if data["transport"] != "stdio" {
		t.Fatalf("expected stdio default, got %v", data)
	}

	rr, body = do(t, h, http.MethodPost, "/api/servers", `{"name":"","address":"x"}`)
	if rr.Code != http.StatusBadRequest || errorCode(t, body) != "INVALID_CONFIG" {
		t.Fatalf("expected invalid config, got %d %v", rr.Code, body)
	}

	rr, body = do(t, h, http.MethodPut, "/api/servers/0", `{"name":"remote","transport":"rest","address":"http://localhost:9/mcp"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("update: %d %v", rr.Code, body)
	}

	rr, body = do(t, h, http.MethodPut, "/api/servers/7", `{"name":"x","address":"y"}`)
	if rr.Code != http.StatusNotFound || errorCode(t, body) != "NOT_FOUND" {
		t.Fatalf("expected not found, got %d %v", rr.Code, body)
	}

	rr, body = do(t, h, http.MethodDelete, "/api/servers/abc", "")
	if rr.Code != http.StatusBadRequest || errorCode(t, body) != "BAD_INDEX" {
		t.Fatalf("expected bad index, got %d %v", rr.Code, body)
	}

	rr, body = do(t, h, http.MethodGet, "/api/servers", "")
	list := body["data"].([]any)
	if rr.Code != http.StatusOK || len(list) != 1 {
		t.Fatalf("unexpected list %d %v", rr.Code, body)
	}

	rr, _ = do(t, h, http.MethodDelete, "/api/servers/0", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("delete: %d", rr.Code)
	}
}

func TestOperationRoutes(t *testing.T) {
	demo := httptest.NewServer(mcp.NewHTTPHandler(tools.NewServer(quietLogger()), ""))
	defer demo.Close()

	h := newMux(t, Options{})
	rr, body := do(t, h, http.MethodPost, "/api/servers", `{"name":"demo","transport":"rest","address":"`+demo.URL+`"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("add: %d %v", rr.Code, body)
	}

	_, body = do(t, h, http.MethodPost, "/api/servers/0/tools", "")
	outcome := body["data"].(map[string]any)
	if outcome["success"] != true || len(outcome["tools"].([]any)) != 4 {
		t.Fatalf("unexpected tools outcome %v", outcome)
	}
	if _, ok := outcome["debug"].(map[string]any); !ok {
		t.Fatalf("debug trace missing: %v", outcome)
	}

	_, body = do(t, h, http.MethodPost, "/api/servers/0/call", `{"tool":"echo","args":{"message":"ribbit"}}`)
	outcome = body["data"].(map[string]any)
	if outcome["success"] != true || !strings.Contains(mustJSON(t, outcome["result"]), "ribbit") {
		t.Fatalf("unexpected call outcome %v", outcome)
	}

	_, body = do(t, h, http.MethodPost, "/api/servers/0/call", `{"tool":"sum","inputs":{"numbers":"1, 2, 3.5"}}`)
	outcome = body["data"].(map[string]any)
	if outcome["success"] != true || !strings.Contains(mustJSON(t, outcome["result"]), "6.5") {
		t.Fatalf("unexpected inputs outcome %v", outcome)
	}

	_, body = do(t, h, http.MethodPost, "/api/servers/0/method", `{"method":"custom/thing","params":{"a":1}}`)
	outcome = body["data"].(map[string]any)
	if outcome["success"] != false || !strings.HasPrefix(outcome["error"].(string), "method not found") {
		t.Fatalf("unexpected method outcome %v", outcome)
	}

	rr, body = do(t, h, http.MethodPost, "/api/servers/0/method", `{}`)
	if rr.Code != http.StatusBadRequest || errorCode(t, body) != "INVALID_REQUEST" {
		t.Fatalf("expected invalid request, got %d %v", rr.Code, body)
	}

	rr, body = do(t, h, http.MethodPost, "/api/servers/3/tools", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected not found, got %d %v", rr.Code, body)
	}

	_, body = do(t, h, http.MethodPost, "/api/scan", "")
	results := body["data"].([]any)
	if len(results) != 1 {
		t.Fatalf("unexpected scan %v", body)
	}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func TestLogRequestsTagsRequestID(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	h := LogRequests(logrus.NewEntry(l), http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	generated := rr.Header().Get("X-Request-ID")
	if len(generated) != 36 {
		t.Fatalf("expected generated uuid, got %q", generated)
	}
	if !strings.Contains(buf.String(), "request_id="+generated) || !strings.Contains(buf.String(), "status=418") {
		t.Fatalf("unexpected log line: %s", buf.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Request-ID"); got != "abc" {
		t.Fatalf("expected caller request id, got %q", got)
	}
}
