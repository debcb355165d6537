package tools

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/froggy/mcp-tester/internal/protocol"
)

// sumTool adds a list of numbers.
type sumTool struct{}

// Sum constructs the sum tool.
func Sum() *sumTool {
	return &sumTool{}
}

func (t *sumTool) Descriptor() protocol.ToolDescriptor {
	return protocol.ToolDescriptor{
		Name:        "sum",
		Description: "Add up a list of numbers.",
		InputSchema: &protocol.JSONSchema{
			Type: "object",
			Properties: map[string]protocol.JSONSchema{
				"numbers": {
					Type:        "array",
					Description: "Numbers to add",
					Items:       &protocol.JSONSchema{Type: "number"},
				},
			},
			Required: []string{"numbers"},
		},
	}
}

type sumArgs struct {
	Numbers []float64 `json:"numbers"`
}

func (t *sumTool) Invoke(_ context.Context, raw json.RawMessage) (protocol.CallResult, *protocol.ResponseError) {
	var args sumArgs
	if err := decodeArgs(raw, &args); err != nil {
		return protocol.CallResult{}, err
	}
	if args.Numbers == nil {
		return protocol.CallResult{}, missingArg("numbers")
	}
	var total float64
	for _, n := range args.Numbers {
		total += n
	}
	return textResult(strconv.FormatFloat(total, 'f', -1, 64)), nil
}
