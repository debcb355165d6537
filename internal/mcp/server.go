package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/froggy/mcp-tester/internal/protocol"
)

// Protocol revisions the server can speak, newest last.
var supportedProtocolVersions = []string{"2024-11-05", "2025-03-26", "2025-06-18"}

// LatestProtocolVersion is offered when a client asks for a revision the
// server does not know.
const LatestProtocolVersion = "2025-06-18"

// Server handles MCP JSON-RPC requests against a toolbox.
type Server struct {
	toolbox *Toolbox
	info    protocol.Implementation
	log     *logrus.Entry
}

// NewServer wires a toolbox into an MCP server.
func NewServer(tb *Toolbox, info protocol.Implementation, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Server{toolbox: tb, info: info, log: log}
}

// Handle routes a single request. Callers must not write a reply when
// req.IsNotification() is true.
func (s *Server) Handle(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	if err := validateJSONRPC(req); err != nil {
		return protocol.Response{JSONRPC: protocol.Version, ID: normalizeID(req.ID), Error: err}, nil
	}
	s.log.WithFields(logrus.Fields{"method": req.Method, "id": req.ID}).Debug("mcp request")

	switch req.Method {
	case protocol.MethodInitialize:
		var params protocol.InitializeParams
		if len(req.Params) > 0 {
			if err := json.Unmarshal(req.Params, &params); err != nil {
				return WriteError(req.ID, protocol.CodeInvalidParams, "invalid initialize params", err), nil
			}
		}
		return protocol.Response{JSONRPC: protocol.Version, ID: normalizeID(req.ID), Result: protocol.InitializeResult{
			ProtocolVersion: negotiateVersion(params.ProtocolVersion),
			ServerInfo:      s.info,
			Capabilities: map[string]any{
				"tools": map[string]any{},
			},
		}}, nil
	case protocol.MethodInitialized:
		return protocol.Response{}, nil
	case protocol.MethodPing:
		return protocol.Response{JSONRPC: protocol.Version, ID: normalizeID(req.ID), Result: map[string]any{}}, nil
	case protocol.MethodToolsList:
		return protocol.Response{JSONRPC: protocol.Version, ID: normalizeID(req.ID), Result: protocol.ListResult{Tools: s.toolbox.Describe()}}, nil
	case protocol.MethodToolsCall:
		var params protocol.CallParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return WriteError(req.ID, protocol.CodeInvalidParams, "invalid params", err), nil
		}
		if params.Name == "" {
			return WriteError(req.ID, protocol.CodeInvalidParams, "tool name required", nil), nil
		}
		result, toolErr := s.toolbox.Call(ctx, params.Name, params.Args)
		if toolErr != nil {
			return protocol.Response{JSONRPC: protocol.Version, ID: normalizeID(req.ID), Error: toolErr}, nil
		}
		return protocol.Response{JSONRPC: protocol.Version, ID: normalizeID(req.ID), Result: result}, nil
	default:
		return WriteError(req.ID, protocol.CodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method), nil), nil
	}
}

// WriteError builds a response with an error and wraps encode issues.
func WriteError(id any, code int, message string, err error) protocol.Response {
	detail := message
	if err != nil {
		detail = fmt.Sprintf("%s: %v", message, err)
	}
	return protocol.Response{JSONRPC: protocol.Version, ID: normalizeID(id), Error: &protocol.ResponseError{Code: code, Message: detail}}
}

func negotiateVersion(requested string) string {
	for _, v := range supportedProtocolVersions {
		if v == requested {
			return v
		}
	}
	return LatestProtocolVersion
}

func validateJSONRPC(req protocol.Request) *protocol.ResponseError {
	if req.JSONRPC != "" && req.JSONRPC != protocol.Version {
		return &protocol.ResponseError{Code: protocol.CodeInvalidRequest, Message: "invalid jsonrpc version"}
	}
	if req.Method == "" {
		return &protocol.ResponseError{Code: protocol.CodeInvalidRequest, Message: "method required"}
	}
	return nil
}

func normalizeID(id any) any {
	switch v := id.(type) {
	case nil:
		return nil
	case string, float64, int, int32, int64, uint32, uint64:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
