package mcpclient

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Kind selects the transport variant used to reach a server.
type Kind string

const (
	KindStdio Kind = "stdio"
	KindREST  Kind = "rest"
)

// ServerConfig is the connection recipe for one server. The client treats it
// as immutable for the duration of an operation.
type ServerConfig struct {
	Name      string `json:"name" yaml:"name"`
	Transport Kind   `json:"transport" yaml:"transport"`
	Address   string `json:"address" yaml:"address"`
	APIKey    string `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
}

// Normalize trims every field, defaults the transport to stdio and drops the
// credential when it is empty or the transport is not rest.
func (c ServerConfig) Normalize() ServerConfig {
	c.Name = strings.TrimSpace(c.Name)
	c.Address = strings.TrimSpace(c.Address)
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.Transport = Kind(strings.ToLower(strings.TrimSpace(string(c.Transport))))
	if c.Transport == "" {
		c.Transport = KindStdio
	}
	if c.Transport != KindREST {
		c.APIKey = ""
	}
	return c
}

// Validate reports the first problem that would make the configuration
// unusable, as a *ConfigError.
func (c ServerConfig) Validate() error {
	c = c.Normalize()
	if c.Name == "" {
		return &ConfigError{Field: "name", Message: "server name is required"}
	}
	if c.Address == "" {
		return &ConfigError{Field: "address", Message: "server address is required"}
	}
	switch c.Transport {
	case KindStdio:
		return nil
	case KindREST:
		if _, err := parseBaseURL(c.Address); err != nil {
			return &ConfigError{Field: "address", Message: fmt.Sprintf("Invalid REST URL: %s (%v)", c.Address, err)}
		}
		return nil
	default:
		return &ConfigError{Field: "transport", Message: fmt.Sprintf("unknown transport %q (expected %q or %q)", c.Transport, KindStdio, KindREST)}
	}
}

// Target returns the address shown in traces: the command line for stdio or
// the base URL for rest.
func (c ServerConfig) Target() string {
	if c.Transport == KindStdio || c.Transport == "" {
		return strings.Join(strings.Fields(c.Address), " ")
	}
	return strings.TrimSpace(c.Address)
}

// SplitCommand breaks a stdio address into the executable and its arguments
// by splitting on runs of whitespace. No shell quoting is interpreted.
func SplitCommand(address string) (string, []string) {
	parts := strings.Fields(address)
	if len(parts) == 0 {
		return "", nil
	}
	return parts[0], parts[1:]
}

func parseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, errors.New("not an absolute URL")
	}
	return u, nil
}
