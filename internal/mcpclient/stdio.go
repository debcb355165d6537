package mcpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/froggy/mcp-tester/internal/protocol"
)

// maxToolPages caps cursor pagination against servers that never stop.
const maxToolPages = 100

// stdioTransport drives a child process through the SDK client session,
// which owns the initialize handshake and id correlation.
type stdioTransport struct {
	cfg         ServerConfig
	dial        Dialer
	stderrLines int
	log         *logrus.Entry

	mu      sync.Mutex
	session *sdk.ClientSession
	stderr  *stderrTail
}

func newStdio(cfg ServerConfig, o options) *stdioTransport {
	return &stdioTransport{
		cfg:         cfg,
		dial:        o.dial,
		stderrLines: o.stderrLines,
		log:         o.logger.WithFields(logrus.Fields{"transport": KindStdio, "server": cfg.Name}),
	}
}

func commandDialer(_ context.Context, command string, args []string, stderr io.Writer) (sdk.Transport, error) {
	// The child outlives the Connect context; Disconnect terminates it.
	cmd := exec.Command(command, args...)
	cmd.Stderr = stderr
	return &sdk.CommandTransport{Command: cmd}, nil
}

func (t *stdioTransport) Kind() Kind { return KindStdio }

// Connect spawns the command and completes the initialize handshake.
// Calling it while connected is a no-op.
func (t *stdioTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session != nil {
		return nil
	}
	command, args := SplitCommand(t.cfg.Address)
	if command == "" {
		return &ConnectError{Transport: KindStdio, Message: "No command configured for stdio server"}
	}

	t.stderr = newStderrTail(t.stderrLines)
	transport, err := t.dial(ctx, command, args, t.stderr)
	if err != nil {
		return &ConnectError{Transport: KindStdio, Message: fmt.Sprintf("Failed to start %s", t.cfg.Target()), Err: err}
	}

	// ClientCapabilities has no tools field; the SDK advertises its default
	// roots capability instead of an empty tools set.
	client := sdk.NewClient(&sdk.Implementation{Name: ClientName, Version: ClientVersion}, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		tail := t.stderr.Tail(traceStderrLines)
		t.log.WithError(err).WithField("stderr", tail).Warn("stdio connect failed")
		return &ConnectError{Transport: KindStdio, Message: fmt.Sprintf("Failed to connect to %s", t.cfg.Target()), Err: err, Stderr: tail}
	}
	t.session = session
	t.log.WithField("command", t.cfg.Target()).Info("stdio session established")
	return nil
}

// Disconnect closes the session and terminates the child. It is safe to call
// more than once.
func (t *stdioTransport) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session == nil {
		return nil
	}
	err := t.session.Close()
	t.session = nil
	if err != nil {
		t.log.WithError(err).Debug("stdio session close")
		return fmt.Errorf("close stdio session: %w", err)
	}
	return nil
}

func (t *stdioTransport) ListTools(ctx context.Context) ([]protocol.ToolDescriptor, DebugTrace, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.listTools(ctx)
}

func (t *stdioTransport) CallTool(ctx context.Context, name string, args map[string]any) (json.RawMessage, DebugTrace, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.callTool(ctx, name, args)
}

// CallMethod supports tools/list and tools/call only; the session exposes no
// generic request pass-through.
func (t *stdioTransport) CallMethod(ctx context.Context, method string, params map[string]any) (json.RawMessage, DebugTrace, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch method {
	case protocol.MethodToolsList:
		tools, trace, err := t.listTools(ctx)
		trace.Action = method
		if err != nil {
			return nil, trace, err
		}
		raw, _ := json.Marshal(protocol.ListResult{Tools: tools})
		return raw, trace, nil
	case protocol.MethodToolsCall:
		trace := t.newTrace(method)
		trace.RequestBody = params
		name, _ := params["name"].(string)
		if name == "" {
			err := &CallError{Reason: ReasonInvalidParams, Method: method, Message: "Tool name is required for tools/call"}
			trace.fail(err)
			return nil, trace, err
		}
		var args map[string]any
		if raw, ok := params["arguments"]; ok && raw != nil {
			m, ok := raw.(map[string]any)
			if !ok {
				err := &CallError{Reason: ReasonInvalidParams, Method: method, Message: "tools/call arguments must be an object"}
				trace.fail(err)
				return nil, trace, err
			}
			args = m
		}
		result, trace, err := t.callTool(ctx, name, args)
		trace.Action = method
		return result, trace, err
	default:
		trace := t.newTrace(method)
		trace.RequestBody = params
		err := &CallError{Reason: ReasonUnsupported, Method: method, Message: fmt.Sprintf(
			"Method %q is not directly supported for stdio transport. Use the REST transport for arbitrary method calls, or use tools/list and tools/call.", method)}
		trace.fail(err)
		return nil, trace, err
	}
}

func (t *stdioTransport) newTrace(action string) DebugTrace {
	return DebugTrace{Transport: KindStdio, Command: t.cfg.Target(), Action: action}
}

func (t *stdioTransport) listTools(ctx context.Context) ([]protocol.ToolDescriptor, DebugTrace, error) {
	trace := t.newTrace("listTools")
	if t.session == nil {
		err := notConnected(protocol.MethodToolsList)
		trace.fail(err)
		return nil, trace, err
	}

	var all []*sdk.Tool
	params := &sdk.ListToolsParams{}
	for page := 0; page < maxToolPages; page++ {
		res, err := t.session.ListTools(ctx, params)
		if err != nil {
			trace.Stderr = t.stderr.Tail(traceStderrLines)
			cerr := sessionError(protocol.MethodToolsList, err)
			trace.fail(cerr)
			return nil, trace, cerr
		}
		all = append(all, res.Tools...)
		if res.NextCursor == "" {
			break
		}
		params = &sdk.ListToolsParams{Cursor: res.NextCursor}
	}
	trace.Stderr = t.stderr.Tail(traceStderrLines)

	raw, err := json.Marshal(map[string]any{"tools": all})
	if err != nil {
		cerr := &CallError{Reason: ReasonParse, Method: protocol.MethodToolsList, Message: fmt.Sprintf("Failed to encode tools/list result: %v", err), Err: err}
		trace.fail(cerr)
		return nil, trace, cerr
	}
	trace.ResponseBody = raw
	tools, err := decodeTools(raw)
	if err != nil {
		cerr := &CallError{Reason: ReasonParse, Method: protocol.MethodToolsList, Message: fmt.Sprintf("Failed to decode tools/list result: %v", err), Err: err}
		trace.fail(cerr)
		return nil, trace, cerr
	}
	t.log.WithField("count", len(tools)).Debug("stdio tools listed")
	return tools, trace, nil
}

func (t *stdioTransport) callTool(ctx context.Context, name string, args map[string]any) (json.RawMessage, DebugTrace, error) {
	trace := t.newTrace("callTool")
	if args == nil {
		args = map[string]any{}
	}
	trace.RequestBody = map[string]any{"name": name, "arguments": args}
	if t.session == nil {
		err := notConnected(protocol.MethodToolsCall)
		trace.fail(err)
		return nil, trace, err
	}

	res, err := t.session.CallTool(ctx, &sdk.CallToolParams{Name: name, Arguments: args})
	trace.Stderr = t.stderr.Tail(traceStderrLines)
	if err != nil {
		cerr := sessionError(protocol.MethodToolsCall, err)
		trace.fail(cerr)
		return nil, trace, cerr
	}
	raw, err := json.Marshal(res)
	if err != nil {
		cerr := &CallError{Reason: ReasonParse, Method: protocol.MethodToolsCall, Message: fmt.Sprintf("Failed to encode tools/call result: %v", err), Err: err}
		trace.fail(cerr)
		return nil, trace, cerr
	}
	trace.ResponseBody = raw
	t.log.WithFields(logrus.Fields{"tool": name, "isError": res.IsError}).Debug("stdio tool called")
	return raw, trace, nil
}

// sessionError classifies a failure reported by the SDK session. Context
// expiry, a closed connection and a dead pipe are network failures; anything
// else came back from the server.
func sessionError(method string, err error) *CallError {
	reason := ReasonRPC
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, sdk.ErrConnectionClosed) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
		reason = ReasonNetwork
	}
	return &CallError{Reason: reason, Method: method, Message: err.Error(), Err: err}
}
