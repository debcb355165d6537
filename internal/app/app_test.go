package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/froggy/mcp-tester/internal/mcp"
	"github.com/froggy/mcp-tester/internal/mcpclient"
	"github.com/froggy/mcp-tester/internal/store"
	"github.com/froggy/mcp-tester/internal/testutil"
	"github.com/froggy/mcp-tester/internal/tools"
)

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

var pipeDialer mcpclient.Dialer = testutil.StdioDialer(func() *mcp.Server { return tools.NewServer(quietLogger()) }, "demo up")

func newService(t *testing.T) *Service {
	t.Helper()
	return New(store.New(t.TempDir()), quietLogger(), mcpclient.WithDialer(pipeDialer))
}

func demoREST(t *testing.T) mcpclient.ServerConfig {
	t.Helper()
	srv := httptest.NewServer(mcp.NewHTTPHandler(tools.NewServer(quietLogger()), ""))
	t.Cleanup(srv.Close)
	return mcpclient.ServerConfig{Name: "rest-demo", Transport: mcpclient.KindREST, Address: srv.URL}
}

func TestListToolsOverBothTransports(t *testing.T) {
	svc := newService(t)
	for _, cfg := range []mcpclient.ServerConfig{
		demoREST(t),
		{Name: "stdio-demo", Address: "demo --stdio"},
	} {
		out := svc.ListTools(context.Background(), cfg)
		if !out.Success {
			t.Fatalf("%s: %s", cfg.Name, out.Error)
		}
		if len(out.Tools) != 4 {
			t.Fatalf("%s: expected 4 tools, got %d", cfg.Name, len(out.Tools))
		}
		if out.Debug == nil || out.Debug.Transport != cfg.Normalize().Transport {
			t.Fatalf("%s: unexpected debug %+v", cfg.Name, out.Debug)
		}
	}
}

func TestConnectFailureCarriesTrace(t *testing.T) {
	out := newService(t).ListTools(context.Background(), mcpclient.ServerConfig{Name: "bad", Transport: mcpclient.KindREST, Address: "::nope"})
	if out.Success {
		t.Fatalf("expected failure")
	}
	if out.ErrorKind != "connect" {
		t.Fatalf("expected connect error, got %q (%s)", out.ErrorKind, out.Error)
	}
	if out.Debug == nil || out.Debug.Action != "connect" || out.Debug.URL != "::nope" || out.Debug.ErrorMessage == "" {
		t.Fatalf("unexpected debug %+v", out.Debug)
	}
}

func TestCallToolInputs(t *testing.T) {
	svc := newService(t)
	cfg := demoREST(t)

	out := svc.CallToolInputs(context.Background(), cfg, "uppercase", map[string]string{"text": "hi", "exclaim": "true"})
	if !out.Success {
		t.Fatalf("call: %s", out.Error)
	}
	if !strings.Contains(string(out.Result), "HI!") {
		t.Fatalf("unexpected result %s", out.Result)
	}

	out = svc.CallToolInputs(context.Background(), cfg, "uppercase", map[string]string{})
	if out.Success || out.ErrorKind != "call" || !strings.Contains(out.Error, "text") {
		t.Fatalf("expected missing parameter error, got %+v", out)
	}
	if out.Debug == nil || out.Debug.ErrorMessage != out.Error {
		t.Fatalf("input error missing from trace: %+v", out.Debug)
	}

	out = svc.CallToolInputs(context.Background(), cfg, "nope", nil)
	if out.Success || out.ErrorKind != "call" || !strings.Contains(out.Error, `"nope"`) {
		t.Fatalf("expected unknown tool error, got %+v", out)
	}
}

func TestCallToolAndMethod(t *testing.T) {
	svc := newService(t)
	stdio := mcpclient.ServerConfig{Name: "stdio-demo", Address: "demo"}

	out := svc.CallTool(context.Background(), stdio, "sum", map[string]any{"numbers": []any{2, 3}})
	if !out.Success || !strings.Contains(string(out.Result), `"5"`) {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if len(out.Debug.Stderr) == 0 {
		t.Fatalf("stderr tail missing from debug")
	}

	out = svc.CallMethod(context.Background(), stdio, "custom/thing", nil)
	if out.Success || out.ErrorKind != "call" || !strings.Contains(out.Error, "custom/thing") {
		t.Fatalf("unexpected outcome %+v", out)
	}

	out = svc.CallMethod(context.Background(), demoREST(t), "ping", nil)
	if !out.Success || string(out.Result) != "{}" {
		t.Fatalf("unexpected ping outcome %+v", out)
	}
}

func TestServerCRUD(t *testing.T) {
	svc := newService(t)

	if _, err := svc.AddServer(mcpclient.ServerConfig{Name: "a", Address: "node a.js"}); err != nil {
		t.Fatalf("add a: %v", err)
	}
	if _, err := svc.AddServer(mcpclient.ServerConfig{Name: "b", Transport: "rest", Address: "http://localhost:3000", APIKey: "k"}); err != nil {
		t.Fatalf("add b: %v", err)
	}

	var cfgErr *mcpclient.ConfigError
	if _, err := svc.AddServer(mcpclient.ServerConfig{Name: "a", Address: "other"}); !errors.As(err, &cfgErr) {
		t.Fatalf("expected duplicate name error, got %v", err)
	}
	if _, err := svc.AddServer(mcpclient.ServerConfig{Name: "c", Transport: "rest", Address: "nowhere"}); !errors.As(err, &cfgErr) {
		t.Fatalf("expected invalid url error, got %v", err)
	}

	srv, idx, err := svc.Lookup("b")
	if err != nil || idx != 1 || srv.APIKey != "k" {
		t.Fatalf("lookup by name: %+v %d %v", srv, idx, err)
	}
	srv, idx, err = svc.Lookup("0")
	if err != nil || idx != 0 || srv.Name != "a" {
		t.Fatalf("lookup by index: %+v %d %v", srv, idx, err)
	}
	if _, _, err := svc.Lookup("zzz"); !errors.Is(err, ErrServerNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if _, err := svc.UpdateServer(0, mcpclient.ServerConfig{Name: "b", Address: "x"}); !errors.As(err, &cfgErr) {
		t.Fatalf("expected rename clash, got %v", err)
	}
	if _, err := svc.UpdateServer(0, mcpclient.ServerConfig{Name: "a2", Address: "python a.py"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := svc.UpdateServer(5, mcpclient.ServerConfig{Name: "z", Address: "x"}); !errors.Is(err, ErrServerNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	removed, err := svc.DeleteServer(1)
	if err != nil || removed.Name != "b" {
		t.Fatalf("delete: %+v %v", removed, err)
	}
	list, err := svc.Servers()
	if err != nil {
		t.Fatalf("servers: %v", err)
	}
	if len(list) != 1 || list[0].Name != "a2" {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestImportServers(t *testing.T) {
	svc := newService(t)
	if _, err := svc.AddServer(mcpclient.ServerConfig{Name: "keep", Address: "x"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	incoming := []mcpclient.ServerConfig{{Name: "n1", Address: "y"}, {Name: "n2", Transport: "rest", Address: "http://h"}}
	if n, err := svc.ImportServers(incoming, false); err != nil || n != 2 {
		t.Fatalf("append import: %d %v", n, err)
	}
	if list, _ := svc.Servers(); len(list) != 3 {
		t.Fatalf("expected 3 servers, got %d", len(list))
	}

	if _, err := svc.ImportServers([]mcpclient.ServerConfig{{Name: "keep", Address: "z"}}, false); err == nil {
		t.Fatalf("expected duplicate error")
	}
	if _, err := svc.ImportServers([]mcpclient.ServerConfig{{Name: "only", Address: "z"}}, true); err != nil {
		t.Fatalf("replace import: %v", err)
	}
	if list, _ := svc.Servers(); len(list) != 1 || list[0].Name != "only" {
		t.Fatalf("unexpected list after replace %+v", list)
	}
}

func TestScanKeepsOrder(t *testing.T) {
	svc := newService(t)
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	good := demoREST(t)
	for _, cfg := range []mcpclient.ServerConfig{
		good,
		{Name: "dead", Transport: mcpclient.KindREST, Address: deadURL},
		{Name: "pipe", Address: "demo"},
	} {
		if _, err := svc.AddServer(cfg); err != nil {
			t.Fatalf("add %s: %v", cfg.Name, err)
		}
	}

	results, err := svc.Scan(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Name != "rest-demo" || !results[0].Outcome.Success {
		t.Fatalf("unexpected first result %+v", results[0])
	}
	if results[1].Name != "dead" || results[1].Outcome.Success || results[1].Outcome.ErrorKind != "call" {
		t.Fatalf("unexpected second result %+v", results[1])
	}
	if results[2].Name != "pipe" || len(results[2].Outcome.Tools) != 4 {
		t.Fatalf("unexpected third result %+v", results[2])
	}
}
