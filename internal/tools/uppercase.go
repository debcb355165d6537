package tools

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/froggy/mcp-tester/internal/protocol"
)

type uppercaseTool struct{}

// Uppercase constructs the uppercase tool.
func Uppercase() *uppercaseTool {
	return &uppercaseTool{}
}

func (t *uppercaseTool) Descriptor() protocol.ToolDescriptor {
	return protocol.ToolDescriptor{
		Name:        "uppercase",
		Title:       "Uppercase",
		Description: "Convert text to upper case, optionally adding an exclamation mark.",
		InputSchema: &protocol.JSONSchema{
			Type: "object",
			Properties: map[string]protocol.JSONSchema{
				"text":    {Type: "string", Description: "Text to convert"},
				"exclaim": {Type: "boolean", Description: "Append an exclamation mark", Default: false},
			},
			Required: []string{"text"},
		},
	}
}

type uppercaseArgs struct {
	Text    *string `json:"text"`
	Exclaim bool    `json:"exclaim"`
}

func (t *uppercaseTool) Invoke(_ context.Context, raw json.RawMessage) (protocol.CallResult, *protocol.ResponseError) {
	var args uppercaseArgs
	if err := decodeArgs(raw, &args); err != nil {
		return protocol.CallResult{}, err
	}
	if args.Text == nil {
		return protocol.CallResult{}, missingArg("text")
	}
	out := strings.ToUpper(*args.Text)
	if args.Exclaim {
		out += "!"
	}
	return textResult(out), nil
}
