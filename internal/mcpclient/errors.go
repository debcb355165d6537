package mcpclient

import (
	"errors"
	"fmt"
)

// ConfigError reports a malformed server configuration.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string { return e.Message }

// ConnectError reports that a transport could not be established: the child
// process failed to start or handshake, or the base URL did not parse.
type ConnectError struct {
	Transport Kind
	Message   string
	Err       error
	// Stderr holds the child's last stderr lines when a stdio server failed
	// to start or handshake.
	Stderr []string
}

func (e *ConnectError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ConnectError) Unwrap() error { return e.Err }

// CallReason classifies why an exchange failed.
type CallReason string

const (
	ReasonHTTPStatus    CallReason = "http_status"
	ReasonHTMLResponse  CallReason = "html_response"
	ReasonContentType   CallReason = "content_type"
	ReasonParse         CallReason = "parse"
	ReasonRPC           CallReason = "rpc"
	ReasonNetwork       CallReason = "network"
	ReasonUnsupported   CallReason = "unsupported"
	ReasonNotConnected  CallReason = "not_connected"
	ReasonInvalidParams CallReason = "invalid_params"
)

// CallError reports a failed exchange. Message is the complete human-readable
// text; Code is set when the server returned a JSON-RPC error code.
type CallError struct {
	Reason  CallReason
	Method  string
	Status  int
	Code    *int
	Message string
	Err     error
}

func (e *CallError) Error() string { return e.Message }

func (e *CallError) Unwrap() error { return e.Err }

// ErrorKind names the taxonomy bucket of err: "config", "connect", "call", or
// "" for anything else.
func ErrorKind(err error) string {
	var (
		cfgErr  *ConfigError
		connErr *ConnectError
		callErr *CallError
	)
	switch {
	case errors.As(err, &cfgErr):
		return "config"
	case errors.As(err, &connErr):
		return "connect"
	case errors.As(err, &callErr):
		return "call"
	default:
		return ""
	}
}

func notConnected(method string) *CallError {
	return &CallError{Reason: ReasonNotConnected, Method: method, Message: "Not connected to MCP server"}
}
