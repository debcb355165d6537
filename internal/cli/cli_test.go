package cli

import (
	"bytes"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/froggy/mcp-tester/internal/mcp"
	"github.com/froggy/mcp-tester/internal/tools"
)

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// run executes the command tree against home and returns stdout, stderr and
// the command error.
func run(t *testing.T, home string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("FROGGY_HTTP_TIMEOUT", "")
	t.Setenv("FROGGY_LOG_LEVEL", "")
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--home", home}, args...))
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func demoURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(mcp.NewHTTPHandler(tools.NewServer(quietLogger()), ""))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestRootRegistersCommands(t *testing.T) {
	root := NewRootCmd()
	for _, name := range []string{"servers", "tools", "call", "method", "scan", "serve", "version"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd == root {
			t.Fatalf("command %q not registered", name)
		}
	}
	for _, flag := range []string{"home", "verbose", "debug"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Fatalf("missing persistent flag --%s", flag)
		}
	}
}

func TestVersionSkipsInit(t *testing.T) {
	home := filepath.Join(t.TempDir(), "never-created")
	out, _, err := run(t, home, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "froggy ") {
		t.Fatalf("unexpected output %q", out)
	}
	if _, err := os.Stat(home); !os.IsNotExist(err) {
		t.Fatalf("version should not touch the home dir")
	}
}

func TestServersLifecycle(t *testing.T) {
	home := t.TempDir()

	out, _, err := run(t, home, "servers", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "No servers saved") {
		t.Fatalf("expected empty hint, got %q", out)
	}

	if _, _, err := run(t, home, "servers", "add", "--name", "local", "--address", "node server.js"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, _, err := run(t, home, "servers", "add", "--name", "remote", "--transport", "REST", "--address", "http://localhost:3000/mcp", "--api-key", "k"); err != nil {
		t.Fatalf("add rest: %v", err)
	}
	if _, _, err := run(t, home, "servers", "add", "--name", "local", "--address", "other"); err == nil {
		t.Fatalf("expected duplicate name to be rejected")
	}

	out, _, err = run(t, home, "servers", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, want := range []string{"local", "stdio", "node server.js", "remote", "rest", "set"} {
		if !strings.Contains(out, want) {
			t.Fatalf("list output missing %q:\n%s", want, out)
		}
	}

	if _, _, err := run(t, home, "servers", "edit", "0", "--address", "python server.py"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	out, _, _ = run(t, home, "servers", "list")
	if !strings.Contains(out, "python server.py") || strings.Contains(out, "node server.js") {
		t.Fatalf("edit not applied:\n%s", out)
	}

	if _, _, err := run(t, home, "servers", "rm", "remote"); err != nil {
		t.Fatalf("rm: %v", err)
	}
	out, _, _ = run(t, home, "servers", "list")
	if strings.Contains(out, "remote") {
		t.Fatalf("rm not applied:\n%s", out)
	}
	if _, _, err := run(t, home, "servers", "rm", "missing"); err == nil {
		t.Fatalf("expected error for unknown server")
	}
}

func TestServersExportImport(t *testing.T) {
	src := t.TempDir()
	if _, _, err := run(t, src, "servers", "add", "--name", "a", "--address", "cmd a"); err != nil {
		t.Fatalf("add: %v", err)
	}
	file := filepath.Join(t.TempDir(), "servers.yaml")
	if _, _, err := run(t, src, "servers", "export", "--file", file); err != nil {
		t.Fatalf("export: %v", err)
	}

	dst := t.TempDir()
	out, _, err := run(t, dst, "servers", "import", file)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out, "Imported 1 server(s)") {
		t.Fatalf("unexpected import output %q", out)
	}
	out, _, _ = run(t, dst, "servers", "list")
	if !strings.Contains(out, "cmd a") {
		t.Fatalf("imported server missing:\n%s", out)
	}
}

func TestToolsAndCallOverREST(t *testing.T) {
	home := t.TempDir()
	url := demoURL(t)
	if _, _, err := run(t, home, "servers", "add", "--name", "demo", "--transport", "rest", "--address", url); err != nil {
		t.Fatalf("add: %v", err)
	}

	out, _, err := run(t, home, "tools", "demo")
	if err != nil {
		t.Fatalf("tools: %v", err)
	}
	if !strings.Contains(out, "echo") || !strings.Contains(out, "--arg message=<string>") {
		t.Fatalf("tools output missing echo:\n%s", out)
	}

	out, _, err = run(t, home, "call", "demo", "echo", "--arg", "message=hello froggy")
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if !strings.Contains(out, "hello froggy") {
		t.Fatalf("call output missing echo text:\n%s", out)
	}

	out, _, err = run(t, home, "call", "demo", "sum", "--json", `{"numbers":[1,2,3.5]}`)
	if err != nil {
		t.Fatalf("call --json: %v", err)
	}
	if !strings.Contains(out, "6.5") {
		t.Fatalf("sum output unexpected:\n%s", out)
	}

	out, errOut, err := run(t, home, "--debug", "method", "demo", "tools/list")
	if err != nil {
		t.Fatalf("method: %v", err)
	}
	if !strings.Contains(out, "uppercase") {
		t.Fatalf("method output missing tools:\n%s", out)
	}
	if !strings.Contains(errOut, "--- debug ---") || !strings.Contains(errOut, "tools/list") {
		t.Fatalf("debug trace not printed:\n%s", errOut)
	}
}

func TestCallFailures(t *testing.T) {
	home := t.TempDir()
	url := demoURL(t)
	if _, _, err := run(t, home, "servers", "add", "--name", "demo", "--transport", "rest", "--address", url); err != nil {
		t.Fatalf("add: %v", err)
	}

	if _, _, err := run(t, home, "call", "demo", "echo"); err == nil || !strings.Contains(err.Error(), "missing required parameters") {
		t.Fatalf("expected missing parameter error, got %v", err)
	}
	if _, _, err := run(t, home, "call", "demo", "echo", "--arg", "nonsense"); err == nil {
		t.Fatalf("expected malformed --arg to fail")
	}
	if _, _, err := run(t, home, "call", "demo", "echo", "--arg", "message=x", "--json", "{}"); err == nil {
		t.Fatalf("expected --arg with --json to fail")
	}
	if _, _, err := run(t, home, "call", "demo", "fail"); err == nil {
		t.Fatalf("expected failing tool to return an error")
	}
}

func TestScanReportsFailures(t *testing.T) {
	home := t.TempDir()
	url := demoURL(t)
	if _, _, err := run(t, home, "servers", "add", "--name", "good", "--transport", "rest", "--address", url); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, _, err := run(t, home, "servers", "add", "--name", "bad", "--transport", "rest", "--address", "http://127.0.0.1:1"); err != nil {
		t.Fatalf("add: %v", err)
	}

	out, _, err := run(t, home, "scan")
	if err == nil || !strings.Contains(err.Error(), "1 of 2") {
		t.Fatalf("expected one failure, got %v", err)
	}
	if !strings.Contains(out, "good") || !strings.Contains(out, "tool(s)") || !strings.Contains(out, "bad") {
		t.Fatalf("scan output unexpected:\n%s", out)
	}
}

func TestParsePairs(t *testing.T) {
	got, err := parsePairs([]string{"a=1", "b = x=y", "c="})
	if err != nil {
		t.Fatalf("parsePairs: %v", err)
	}
	if got["a"] != "1" || got["b"] != " x=y" || got["c"] != "" {
		t.Fatalf("unexpected pairs %#v", got)
	}
	if _, err := parsePairs([]string{"=v"}); err == nil {
		t.Fatalf("expected empty name to fail")
	}
}
