package tools

import (
	"context"
	"encoding/json"

	"github.com/froggy/mcp-tester/internal/protocol"
)

// failTool always answers with a JSON-RPC error, for exercising client error
// rendering.
type failTool struct{}

// Fail constructs the fail tool.
func Fail() *failTool {
	return &failTool{}
}

func (t *failTool) Descriptor() protocol.ToolDescriptor {
	return protocol.ToolDescriptor{
		Name:        "fail",
		Description: "Return a JSON-RPC error with the given message.",
		InputSchema: &protocol.JSONSchema{
			Type: "object",
			Properties: map[string]protocol.JSONSchema{
				"message": {Type: "string", Description: "Error message", Default: "boom"},
				"code":    {Type: "integer", Description: "Error code", Default: -32000},
			},
		},
	}
}

type failArgs struct {
	Message string `json:"message"`
	Code    *int   `json:"code"`
}

func (t *failTool) Invoke(_ context.Context, raw json.RawMessage) (protocol.CallResult, *protocol.ResponseError) {
	var args failArgs
	if err := decodeArgs(raw, &args); err != nil {
		return protocol.CallResult{}, err
	}
	if args.Message == "" {
		args.Message = "boom"
	}
	code := -32000
	if args.Code != nil {
		code = *args.Code
	}
	return protocol.CallResult{}, &protocol.ResponseError{Code: code, Message: args.Message}
}
