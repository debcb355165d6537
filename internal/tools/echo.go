package tools

import (
	"context"
	"encoding/json"

	"github.com/froggy/mcp-tester/internal/protocol"
)

// echoTool returns its message unchanged.
type echoTool struct{}

// Echo constructs the echo tool.
func Echo() *echoTool {
	return &echoTool{}
}

func (t *echoTool) Descriptor() protocol.ToolDescriptor {
	return protocol.ToolDescriptor{
		Name:        "echo",
		Description: "Echo a message back to the caller.",
		InputSchema: &protocol.JSONSchema{
			Type: "object",
			Properties: map[string]protocol.JSONSchema{
				"message": {Type: "string", Description: "Text to echo"},
			},
			Required: []string{"message"},
		},
	}
}

type echoArgs struct {
	Message *string `json:"message"`
}

func (t *echoTool) Invoke(_ context.Context, raw json.RawMessage) (protocol.CallResult, *protocol.ResponseError) {
	var args echoArgs
	if err := decodeArgs(raw, &args); err != nil {
		return protocol.CallResult{}, err
	}
	if args.Message == nil {
		return protocol.CallResult{}, missingArg("message")
	}
	return textResult(*args.Message), nil
}
