package mcpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/froggy/mcp-tester/internal/protocol"
	"github.com/froggy/mcp-tester/internal/version"
)

// restTransport POSTs one JSON-RPC envelope per call to <base>/<method>.
type restTransport struct {
	cfg        ServerConfig
	httpClient *http.Client
	log        *logrus.Entry

	mu     sync.Mutex
	base   *url.URL
	apiKey string
	seq    atomic.Uint64
}

func newREST(cfg ServerConfig, o options) *restTransport {
	return &restTransport{
		cfg:        cfg,
		httpClient: o.httpClient,
		log:        o.logger.WithFields(logrus.Fields{"transport": KindREST, "server": cfg.Name}),
	}
}

func (t *restTransport) Kind() Kind { return KindREST }

// Connect only validates the base URL; no request is sent.
func (t *restTransport) Connect(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	base, err := parseBaseURL(t.cfg.Address)
	if err != nil {
		return &ConnectError{Transport: KindREST, Message: fmt.Sprintf("Invalid REST URL: %s", t.cfg.Address), Err: err}
	}
	t.base = base
	t.apiKey = t.cfg.APIKey
	t.log.WithField("url", base.Redacted()).Debug("rest transport ready")
	return nil
}

func (t *restTransport) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.base = nil
	t.apiKey = ""
	return nil
}

func (t *restTransport) ListTools(ctx context.Context) ([]protocol.ToolDescriptor, DebugTrace, error) {
	result, trace, err := t.CallMethod(ctx, protocol.MethodToolsList, map[string]any{})
	trace.Action = "listTools"
	if err != nil {
		return nil, trace, err
	}
	tools, err := decodeTools(result)
	if err != nil {
		cerr := &CallError{Reason: ReasonParse, Method: protocol.MethodToolsList, Message: fmt.Sprintf("Failed to decode tools/list result: %v", err), Err: err}
		trace.fail(cerr)
		return nil, trace, cerr
	}
	return tools, trace, nil
}

func (t *restTransport) CallTool(ctx context.Context, name string, args map[string]any) (json.RawMessage, DebugTrace, error) {
	if args == nil {
		args = map[string]any{}
	}
	result, trace, err := t.CallMethod(ctx, protocol.MethodToolsCall, map[string]any{"name": name, "arguments": args})
	trace.Action = "callTool"
	return result, trace, err
}

func (t *restTransport) CallMethod(ctx context.Context, method string, params map[string]any) (json.RawMessage, DebugTrace, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	trace := DebugTrace{Transport: KindREST, Action: method}
	if t.base == nil {
		err := notConnected(method)
		trace.fail(err)
		return nil, trace, err
	}
	target := methodURL(t.base, method)
	trace.URL = target

	if params == nil {
		params = map[string]any{}
	}
	rawParams, err := json.Marshal(params)
	if err != nil {
		cerr := &CallError{Reason: ReasonInvalidParams, Method: method, Message: fmt.Sprintf("encode params: %v", err), Err: err}
		trace.fail(cerr)
		return nil, trace, cerr
	}
	envelope := protocol.Request{
		JSONRPC: protocol.Version,
		ID:      t.seq.Add(1),
		Method:  method,
		Params:  rawParams,
	}
	trace.RequestBody = envelope
	buf, _ := json.Marshal(envelope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(buf))
	if err != nil {
		return nil, trace, t.networkFailure(&trace, method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
		req.Header.Set("X-API-Key", t.apiKey)
	}

	start := time.Now()
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, trace, t.networkFailure(&trace, method, err)
	}
	defer resp.Body.Close()

	trace.StatusCode = resp.StatusCode
	trace.ResponseHeaders = resp.Header.Clone()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, trace, t.networkFailure(&trace, method, err)
	}

	result, err := classifyResponse(method, resp.StatusCode, resp.Header.Get("Content-Type"), data, &trace)
	entry := t.log.WithFields(logrus.Fields{
		"method": method,
		"url":    target,
		"status": resp.StatusCode,
		"dur":    time.Since(start).String(),
	})
	if err != nil {
		trace.fail(err)
		entry.WithError(err).Warn("rest exchange failed")
		return nil, trace, err
	}
	entry.Debug("rest exchange")
	return result, trace, nil
}

func (t *restTransport) networkFailure(trace *DebugTrace, method string, err error) error {
	msg := err.Error()
	var uerr *url.Error
	if errors.As(err, &uerr) {
		msg = uerr.Err.Error()
	}
	trace.ErrorMessage = msg
	t.log.WithError(err).WithField("method", method).Warn("rest request failed")
	return &CallError{Reason: ReasonNetwork, Method: method, Message: "REST request failed: " + msg, Err: err}
}

// classifyResponse turns a raw HTTP exchange into a result or a CallError.
// Checks run in a fixed order so the most specific explanation wins.
func classifyResponse(method string, status int, contentType string, data []byte, trace *DebugTrace) (json.RawMessage, error) {
	text := string(data)
	trimmed := strings.TrimSpace(text)
	ct := strings.ToLower(contentType)

	if status < 200 || status >= 300 {
		trace.ResponseBodyPreview = truncate(text, responsePreviewLimit)
		statusText := http.StatusText(status)
		if statusText == "" {
			statusText = "Unknown error"
		}
		if strings.Contains(ct, "text/html") || looksLikeHTML(trimmed) {
			return nil, &CallError{Reason: ReasonHTMLResponse, Method: method, Status: status, Message: fmt.Sprintf(
				"Server returned HTML (status %d %s). The endpoint may not exist or the server may have returned an error page. Response preview: %s...",
				status, statusText, truncate(text, shortPreviewLimit))}
		}
		return nil, &CallError{Reason: ReasonHTTPStatus, Method: method, Status: status, Message: fmt.Sprintf(
			"HTTP %d %s: %s", status, statusText, truncate(text, statusBodyLimit))}
	}

	if ct != "" && !strings.Contains(ct, "application/json") && !strings.Contains(ct, "text/json") {
		trace.ResponseBodyPreview = truncate(text, responsePreviewLimit)
		return nil, &CallError{Reason: ReasonContentType, Method: method, Status: status, Message: fmt.Sprintf(
			"Unexpected content type: %s. Expected JSON but received: %s...", contentType, truncate(text, shortPreviewLimit))}
	}

	if looksLikeHTML(trimmed) {
		trace.ResponseBodyPreview = truncate(trimmed, responsePreviewLimit)
		return nil, &CallError{Reason: ReasonHTMLResponse, Method: method, Status: status, Message: fmt.Sprintf(
			"Server returned HTML instead of JSON. This usually means the endpoint doesn't exist or the server returned an error page. Response preview: %s...",
			truncate(trimmed, statusBodyLimit))}
	}

	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		preview := ellipsize(text, shortPreviewLimit)
		trace.ResponseBodyPreview = truncate(text, responsePreviewLimit)
		return nil, &CallError{Reason: ReasonParse, Method: method, Status: status, Err: err, Message: fmt.Sprintf(
			"Failed to parse JSON response: %v. Response preview: %s", err, preview)}
	}
	trace.ResponseBody = json.RawMessage(bytes.TrimSpace(data))

	obj, ok := parsed.(map[string]any)
	if !ok {
		return nil, nil
	}
	if truthy(obj["error"]) {
		return nil, envelopeError(method, status, obj["error"])
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, &CallError{Reason: ReasonParse, Method: method, Status: status, Err: err, Message: fmt.Sprintf("Failed to parse JSON response: %v", err)}
	}
	return envelope.Result, nil
}

func envelopeError(method string, status int, v any) *CallError {
	cerr := &CallError{Reason: ReasonRPC, Method: method, Status: status, Message: "REST request failed"}
	m, ok := v.(map[string]any)
	if !ok {
		return cerr
	}
	if msg, ok := m["message"].(string); ok && msg != "" {
		cerr.Message = msg
	}
	if code, ok := m["code"].(float64); ok {
		c := int(code)
		cerr.Code = &c
	}
	return cerr
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0
	default:
		return true
	}
}

// methodURL joins the method onto the base path. The query and fragment of
// the base are dropped and a default port is omitted.
func methodURL(base *url.URL, method string) string {
	path := base.EscapedPath()
	if path == "" {
		path = "/"
	}
	if path != "/" {
		path = strings.TrimSuffix(path, "/")
	}
	if path == "/" {
		path = "/" + method
	} else {
		path = path + "/" + method
	}
	return base.Scheme + "://" + hostPort(base) + path
}

func hostPort(u *url.URL) string {
	host := u.Hostname()
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	port := u.Port()
	if port == "" || (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		return host
	}
	return host + ":" + port
}

func decodeTools(raw json.RawMessage) ([]protocol.ToolDescriptor, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return []protocol.ToolDescriptor{}, nil
	}
	var list protocol.ListResult
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return nil, err
	}
	if list.Tools == nil {
		list.Tools = []protocol.ToolDescriptor{}
	}
	return list.Tools, nil
}
