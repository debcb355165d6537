// Package mcpclient connects to a single MCP server over either a child
// process speaking newline-delimited JSON-RPC on stdio or plain HTTP POSTs,
// and returns a DebugTrace with every result.
package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/froggy/mcp-tester/internal/protocol"
)

// Identity announced during the stdio handshake.
const (
	ClientName    = "froggy-mcp-tester"
	ClientVersion = "1.0.0"
)

// Transport is one connection to one server. Calls on the same Transport are
// serialized; distinct Transports are independent.
type Transport interface {
	Kind() Kind
	Connect(ctx context.Context) error
	ListTools(ctx context.Context) ([]protocol.ToolDescriptor, DebugTrace, error)
	CallTool(ctx context.Context, name string, args map[string]any) (json.RawMessage, DebugTrace, error)
	CallMethod(ctx context.Context, method string, params map[string]any) (json.RawMessage, DebugTrace, error)
	Disconnect() error
}

// Dialer produces the SDK transport for a stdio server. stderr receives the
// child's diagnostic output.
type Dialer func(ctx context.Context, command string, args []string, stderr io.Writer) (sdk.Transport, error)

// Option customises a Transport built by New.
type Option func(*options)

type options struct {
	logger      *logrus.Entry
	httpClient  *http.Client
	timeout     time.Duration
	dial        Dialer
	stderrLines int
}

// WithLogger routes transport diagnostics to l.
func WithLogger(l *logrus.Entry) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithHTTPClient replaces the HTTP client used by the rest transport.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithTimeout bounds each rest exchange. Zero means no client-side limit.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithDialer replaces how stdio servers are started.
func WithDialer(d Dialer) Option {
	return func(o *options) { o.dial = d }
}

// WithStderrLines sets how many stderr lines a stdio transport retains.
func WithStderrLines(n int) Option {
	return func(o *options) { o.stderrLines = n }
}

// New selects the transport variant named by cfg. It does not connect.
func New(cfg ServerConfig, opts ...Option) (Transport, error) {
	o := options{
		dial:        commandDialer,
		stderrLines: defaultStderrLines,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		o.logger = logrus.NewEntry(l)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: o.timeout}
	}

	cfg = cfg.Normalize()
	switch cfg.Transport {
	case KindREST:
		return newREST(cfg, o), nil
	case KindStdio:
		return newStdio(cfg, o), nil
	default:
		return nil, &ConfigError{Field: "transport", Message: fmt.Sprintf("unknown transport %q", cfg.Transport)}
	}
}
