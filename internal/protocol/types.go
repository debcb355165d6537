package protocol

import (
	"bytes"
	"encoding/json"
)

// Version is the JSON-RPC version carried by every envelope.
const Version = "2.0"

// Method names used by the tool-invocation protocol.
const (
	MethodInitialize  = "initialize"
	MethodInitialized = "notifications/initialized"
	MethodPing        = "ping"
	MethodToolsList   = "tools/list"
	MethodToolsCall   = "tools/call"
)

// JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Request represents a minimal JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request expects no reply.
func (r Request) IsNotification() bool {
	return r.ID == nil
}

// Response models a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string         `json:"jsonrpc,omitempty"`
	ID      any            `json:"id"`
	Result  any            `json:"result,omitempty"`
	Error   *ResponseError `json:"error,omitempty"`
}

// ResponseError holds JSON-RPC error data.
type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *ResponseError) Error() string { return e.Message }

// ToolDescriptor describes a tool advertised by a server.
type ToolDescriptor struct {
	Name        string      `json:"name"`
	Title       string      `json:"title,omitempty"`
	Description string      `json:"description,omitempty"`
	InputSchema *JSONSchema `json:"inputSchema,omitempty"`
}

// JSONSchema is the subset of JSON Schema used to describe tool inputs.
// Decoding never fails: boolean schemas, tuple items and keywords of an
// unexpected shape leave the affected fields empty. Raw keeps the document as
// received and is what MarshalJSON emits when set.
type JSONSchema struct {
	Type                 SchemaType            `json:"type,omitempty"`
	Properties           map[string]JSONSchema `json:"properties,omitempty"`
	Items                *JSONSchema           `json:"items,omitempty"`
	Required             []string              `json:"required,omitempty"`
	Enum                 []any                 `json:"enum,omitempty"`
	Description          string                `json:"description,omitempty"`
	Default              any                   `json:"default,omitempty"`
	AdditionalProperties any                   `json:"additionalProperties,omitempty"`

	Raw json.RawMessage `json:"-"`
}

type schemaFields JSONSchema

func (s JSONSchema) MarshalJSON() ([]byte, error) {
	if len(s.Raw) > 0 {
		return s.Raw, nil
	}
	return json.Marshal(schemaFields(s))
}

func (s *JSONSchema) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	*s = JSONSchema{Raw: append(json.RawMessage(nil), trimmed...)}
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil
	}
	lenient := func(key string, dst any) {
		if raw, ok := doc[key]; ok {
			_ = json.Unmarshal(raw, dst)
		}
	}

	lenient("type", &s.Type)
	lenient("required", &s.Required)
	lenient("enum", &s.Enum)
	lenient("description", &s.Description)
	lenient("default", &s.Default)
	lenient("additionalProperties", &s.AdditionalProperties)

	var props map[string]JSONSchema
	lenient("properties", &props)
	if len(props) > 0 {
		s.Properties = props
	}
	if raw, ok := doc["items"]; ok && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		var items JSONSchema
		_ = json.Unmarshal(raw, &items)
		s.Items = &items
	}
	return nil
}

// SchemaType is a JSON Schema "type" keyword. Servers sometimes send a list
// such as ["string","null"]; the first non-null entry wins.
type SchemaType string

func (t *SchemaType) UnmarshalJSON(b []byte) error {
	var single string
	if err := json.Unmarshal(b, &single); err == nil {
		*t = SchemaType(single)
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return err
	}
	*t = ""
	for _, v := range list {
		if v != "null" {
			*t = SchemaType(v)
			return nil
		}
	}
	if len(list) > 0 {
		*t = SchemaType(list[0])
	}
	return nil
}

// IsRequired reports whether name is listed in the schema's required set.
func (s *JSONSchema) IsRequired(name string) bool {
	if s == nil {
		return false
	}
	for _, r := range s.Required {
		if r == name {
			return true
		}
	}
	return false
}

// ListResult is the payload for tools/list.
type ListResult struct {
	Tools []ToolDescriptor `json:"tools"`
}

// CallParams represents parameters for tools/call.
type CallParams struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"arguments,omitempty"`
}

// ContentPart is a single piece of tool output.
type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallResult is the payload for a tool invocation.
type CallResult struct {
	Content []ContentPart `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// Implementation identifies a client or server during the handshake.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeParams is sent by the client to open a session.
type InitializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      Implementation `json:"clientInfo"`
}

// InitializeResult is the server's answer to initialize.
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      Implementation `json:"serverInfo"`
	Instructions    string         `json:"instructions,omitempty"`
}
