package mcpclient

import (
	"encoding/json"
	"net/http"
	"strings"
	"unicode/utf8"
)

const (
	responsePreviewLimit = 1000
	statusBodyLimit      = 500
	shortPreviewLimit    = 200

	unavailableTrace = "debug info unavailable"
)

// DebugTrace is the diagnostic snapshot of one exchange. It is returned
// alongside every result so the caller can render what went over the wire.
type DebugTrace struct {
	Transport           Kind            `json:"transport"`
	URL                 string          `json:"url,omitempty"`
	Command             string          `json:"command,omitempty"`
	Action              string          `json:"action,omitempty"`
	RequestBody         any             `json:"requestBody,omitempty"`
	StatusCode          int             `json:"statusCode,omitempty"`
	ResponseHeaders     http.Header     `json:"responseHeaders,omitempty"`
	ResponseBody        json.RawMessage `json:"responseBody,omitempty"`
	ResponseBodyPreview string          `json:"responseBodyPreview,omitempty"`
	ErrorMessage        string          `json:"errorMessage,omitempty"`
	Stderr              []string        `json:"stderr,omitempty"`
}

type plainTrace DebugTrace

// Pretty renders the trace as indented JSON, or a placeholder when the trace
// itself cannot be encoded.
func (t DebugTrace) Pretty() string {
	out, err := json.MarshalIndent(plainTrace(t), "", "  ")
	if err != nil {
		return unavailableTrace
	}
	return string(out)
}

// MarshalJSON degrades to a placeholder trace instead of failing the
// enclosing document when a request body cannot be encoded.
func (t DebugTrace) MarshalJSON() ([]byte, error) {
	out, err := json.Marshal(plainTrace(t))
	if err == nil {
		return out, nil
	}
	return json.Marshal(struct {
		Transport    Kind   `json:"transport"`
		ErrorMessage string `json:"errorMessage"`
	}{Transport: t.Transport, ErrorMessage: unavailableTrace})
}

func (t *DebugTrace) fail(err error) {
	if err != nil {
		t.ErrorMessage = err.Error()
	}
}

// truncate returns at most n runes of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// ellipsize truncates s to n runes and marks the cut.
func ellipsize(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return truncate(s, n) + "..."
}

func looksLikeHTML(trimmed string) bool {
	lower := strings.ToLower(truncate(trimmed, 16))
	return strings.HasPrefix(lower, "<!doctype") || strings.HasPrefix(lower, "<html")
}
