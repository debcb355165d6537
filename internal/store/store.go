// Package store persists the ordered server list as a JSON file.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/froggy/mcp-tester/internal/mcpclient"
)

// FileName is the servers file inside the data directory.
const FileName = "mcp-servers.json"

// Store reads and writes the servers file.
type Store struct {
	path string
}

// New returns a store for the servers file under home.
func New(home string) *Store {
	return &Store{path: filepath.Join(home, FileName)}
}

// Path returns the servers file location.
func (s *Store) Path() string { return s.path }

// Load returns the saved servers in order. A missing file is an empty list.
func (s *Store) Load() ([]mcpclient.ServerConfig, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []mcpclient.ServerConfig{}, nil
		}
		return nil, fmt.Errorf("read servers file: %w", err)
	}
	if len(raw) == 0 {
		return []mcpclient.ServerConfig{}, nil
	}

	var servers []mcpclient.ServerConfig
	if err := json.Unmarshal(raw, &servers); err != nil {
		return nil, fmt.Errorf("parse servers file %s: %w", s.path, err)
	}
	for i := range servers {
		servers[i] = servers[i].Normalize()
	}
	if servers == nil {
		servers = []mcpclient.ServerConfig{}
	}
	return servers, nil
}

// Save replaces the servers file atomically with 0600 permissions.
func (s *Store) Save(servers []mcpclient.ServerConfig) error {
	if servers == nil {
		servers = []mcpclient.ServerConfig{}
	}
	enc, err := json.MarshalIndent(servers, "", "  ")
	if err != nil {
		return fmt.Errorf("encode servers: %w", err)
	}
	return writeAtomic(s.path, append(enc, '\n'))
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	// best-effort fsync on directory
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

type yamlDocument struct {
	Servers []mcpclient.ServerConfig `yaml:"servers"`
}

// ExportYAML writes servers as a YAML document with a top-level servers key.
func ExportYAML(w io.Writer, servers []mcpclient.ServerConfig) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(yamlDocument{Servers: servers}); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

// ImportYAML reads servers from either a document with a servers key or a
// bare YAML list.
func ImportYAML(r io.Reader) ([]mcpclient.ServerConfig, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read yaml: %w", err)
	}

	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	var servers []mcpclient.ServerConfig
	if len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode {
		if err := node.Content[0].Decode(&servers); err != nil {
			return nil, fmt.Errorf("decode server list: %w", err)
		}
	} else {
		var doc yamlDocument
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode servers document: %w", err)
		}
		servers = doc.Servers
	}

	for i := range servers {
		servers[i] = servers[i].Normalize()
	}
	return servers, nil
}
