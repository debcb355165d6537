// Package form turns a tool's input schema into editable fields and turns
// the text a user typed back into typed call arguments.
package form

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/froggy/mcp-tester/internal/protocol"
)

// Widget is the input control used for a parameter.
type Widget string

const (
	WidgetText     Widget = "text"
	WidgetNumber   Widget = "number"
	WidgetCheckbox Widget = "checkbox"
	WidgetJSON     Widget = "json"
	WidgetList     Widget = "list"
)

// Field describes one tool parameter.
type Field struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Widget      Widget `json:"widget"`
	Required    bool   `json:"required"`
	Description string `json:"description,omitempty"`
	Default     any    `json:"default,omitempty"`
}

// Fields lists the parameters of tool sorted by name. A tool without a schema
// or without properties has no fields.
func Fields(tool protocol.ToolDescriptor) []Field {
	schema := tool.InputSchema
	if schema == nil || len(schema.Properties) == 0 {
		return nil
	}
	fields := make([]Field, 0, len(schema.Properties))
	for name, prop := range schema.Properties {
		typ := string(prop.Type)
		if typ == "" {
			typ = "any"
		}
		fields = append(fields, Field{
			Name:        name,
			Type:        typ,
			Widget:      widgetFor(prop),
			Required:    schema.IsRequired(name),
			Description: prop.Description,
			Default:     prop.Default,
		})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
	return fields
}

func widgetFor(prop protocol.JSONSchema) Widget {
	switch {
	case prop.Type == "number" || prop.Type == "integer":
		return WidgetNumber
	case prop.Type == "boolean":
		return WidgetCheckbox
	case isJSONValued(prop):
		return WidgetJSON
	case prop.Type == "array":
		return WidgetList
	default:
		return WidgetText
	}
}

func isJSONValued(prop protocol.JSONSchema) bool {
	return prop.Type == "object" || (prop.Type == "array" && prop.Items != nil && prop.Items.Type == "object")
}

// Arguments converts raw field text into call arguments following the
// schema. Booleans are always sent; empty numbers, strings, and JSON values
// are omitted. When the schema declares no properties the inputs pass
// through as strings.
func Arguments(schema *protocol.JSONSchema, inputs map[string]string) (map[string]any, error) {
	args := make(map[string]any, len(inputs))
	if schema == nil || len(schema.Properties) == 0 {
		for k, v := range inputs {
			if v != "" {
				args[k] = v
			}
		}
		return args, nil
	}

	for name := range inputs {
		if _, ok := schema.Properties[name]; !ok {
			return nil, fmt.Errorf("unknown parameter %q", name)
		}
	}

	for name, prop := range schema.Properties {
		raw, present := inputs[name]
		value, keep, err := coerce(name, prop, raw, present)
		if err != nil {
			return nil, err
		}
		if keep {
			args[name] = value
		}
	}

	var missing []string
	for _, name := range schema.Required {
		if _, ok := args[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("missing required parameters: %s", strings.Join(missing, ", "))
	}

	if err := Validate(schema, args); err != nil {
		return nil, err
	}
	return args, nil
}

func coerce(name string, prop protocol.JSONSchema, raw string, present bool) (any, bool, error) {
	switch {
	case prop.Type == "boolean":
		b, err := parseCheckbox(raw)
		if err != nil {
			return nil, false, fmt.Errorf("parameter %q: %w", name, err)
		}
		return b, true, nil
	case prop.Type == "number" || prop.Type == "integer":
		s := strings.TrimSpace(raw)
		if s == "" {
			return nil, false, nil
		}
		n, err := parseNumber(s, prop.Type == "integer")
		if err != nil {
			return nil, false, fmt.Errorf("parameter %q: %w", name, err)
		}
		return n, true, nil
	case isJSONValued(prop):
		s := strings.TrimSpace(raw)
		if s == "" {
			return nil, false, nil
		}
		v, err := decodeJSON(s)
		if err != nil {
			return nil, false, fmt.Errorf("invalid JSON for parameter %q: %w", name, err)
		}
		return v, true, nil
	case prop.Type == "array":
		if !present {
			return nil, false, nil
		}
		list, err := splitList(raw, prop.Items)
		if err != nil {
			return nil, false, fmt.Errorf("parameter %q: %w", name, err)
		}
		return list, true, nil
	default:
		if raw == "" {
			return nil, false, nil
		}
		return raw, true, nil
	}
}

func parseCheckbox(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "false", "0", "off", "no":
		return false, nil
	case "true", "1", "on", "yes":
		return true, nil
	default:
		return false, fmt.Errorf("expected a boolean, got %q", raw)
	}
}

func parseNumber(s string, integer bool) (any, error) {
	if integer {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("expected an integer, got %q", s)
		}
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("expected a number, got %q", s)
	}
	return f, nil
}

func splitList(raw string, items *protocol.JSONSchema) ([]any, error) {
	if strings.TrimSpace(raw) == "" {
		return []any{}, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]any, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if items != nil && (items.Type == "number" || items.Type == "integer") {
			n, err := parseNumber(p, items.Type == "integer")
			if err != nil {
				return nil, err
			}
			out = append(out, n)
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// ParseParams decodes a JSON object typed by the user. Blank text means no
// parameters.
func ParseParams(text string) (map[string]any, error) {
	if strings.TrimSpace(text) == "" {
		return map[string]any{}, nil
	}
	v, err := decodeJSON(text)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("parameters must be a JSON object")
	}
	return obj, nil
}

// decodeJSON keeps numbers as json.Number so large integers survive the trip
// back onto the wire.
func decodeJSON(text string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after JSON value")
	}
	return v, nil
}

// Validate checks args against schema. A schema the validator cannot
// resolve is not enforced.
func Validate(schema *protocol.JSONSchema, args map[string]any) error {
	if schema == nil {
		return nil
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var js jsonschema.Schema
	if err := json.Unmarshal(raw, &js); err != nil {
		return nil
	}
	resolved, err := js.Resolve(nil)
	if err != nil {
		return nil
	}
	instance, err := normalizeInstance(args)
	if err != nil {
		return err
	}
	if err := resolved.Validate(instance); err != nil {
		return fmt.Errorf("arguments do not match the input schema: %w", err)
	}
	return nil
}

// normalizeInstance round-trips args through JSON so the validator sees
// plain float64 numbers instead of json.Number or int64.
func normalizeInstance(args map[string]any) (any, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode arguments: %w", err)
	}
	var out any
	if err := json.NewDecoder(bytes.NewReader(raw)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode arguments: %w", err)
	}
	return out, nil
}
