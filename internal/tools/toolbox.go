package tools

import (
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/froggy/mcp-tester/internal/mcp"
	"github.com/froggy/mcp-tester/internal/protocol"
	"github.com/froggy/mcp-tester/internal/version"
)

// ServerName identifies the demo server in its initialize reply.
const ServerName = "froggy-echo-server"

// NewToolbox builds the demo toolbox.
func NewToolbox() *mcp.Toolbox {
	return mcp.NewToolbox(
		Echo(),
		Sum(),
		Uppercase(),
		Fail(),
	)
}

// NewServer constructs the demo MCP server.
func NewServer(log *logrus.Entry) *mcp.Server {
	return mcp.NewServer(NewToolbox(), protocol.Implementation{Name: ServerName, Version: version.Get().Version}, log)
}

func decodeArgs(raw json.RawMessage, v any) *protocol.ResponseError {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &protocol.ResponseError{Code: protocol.CodeInvalidParams, Message: fmt.Sprintf("invalid arguments: %v", err)}
	}
	return nil
}

func missingArg(name string) *protocol.ResponseError {
	return &protocol.ResponseError{Code: protocol.CodeInvalidParams, Message: fmt.Sprintf("missing required argument: %s", name)}
}

func textResult(text string) protocol.CallResult {
	return protocol.CallResult{Content: []protocol.ContentPart{{Type: "text", Text: text}}}
}
