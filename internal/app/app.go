// Package app runs one connect, operate, disconnect cycle per user action and
// manages the saved server list.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/froggy/mcp-tester/internal/form"
	"github.com/froggy/mcp-tester/internal/mcpclient"
	"github.com/froggy/mcp-tester/internal/protocol"
	"github.com/froggy/mcp-tester/internal/store"
)

const scanConcurrency = 4

// ErrServerNotFound is returned when an index or name matches no saved server.
var ErrServerNotFound = errors.New("server not found")

// Outcome is what every operation reports back to a front end. ErrorKind is
// "config", "connect" or "call" as returned by mcpclient.ErrorKind.
type Outcome struct {
	Success   bool                      `json:"success"`
	Tools     []protocol.ToolDescriptor `json:"tools,omitempty"`
	Result    json.RawMessage           `json:"result,omitempty"`
	Error     string                    `json:"error,omitempty"`
	ErrorKind string                    `json:"errorKind,omitempty"`
	Debug     *mcpclient.DebugTrace     `json:"debug,omitempty"`
}

// ScanResult pairs a saved server with its tools/list outcome.
type ScanResult struct {
	Name      string         `json:"name"`
	Transport mcpclient.Kind `json:"transport"`
	Outcome   Outcome        `json:"outcome"`
}

// Service is safe for concurrent use. Each operation builds its own
// transport, so operations on different servers run in parallel.
type Service struct {
	store *store.Store
	log   *logrus.Entry
	opts  []mcpclient.Option

	mu sync.Mutex
}

// New builds a service over st. opts are applied to every transport.
func New(st *store.Store, log *logrus.Entry, opts ...mcpclient.Option) *Service {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Service{store: st, log: log, opts: opts}
}

// ListTools connects to cfg, lists its tools, and disconnects.
func (s *Service) ListTools(ctx context.Context, cfg mcpclient.ServerConfig) Outcome {
	return s.run(ctx, cfg, "listTools", func(tr mcpclient.Transport) Outcome {
		tools, trace, err := tr.ListTools(ctx)
		if err != nil {
			return failure(err, trace)
		}
		return Outcome{Success: true, Tools: tools, Debug: &trace}
	})
}

// CallTool connects to cfg, invokes name with args, and disconnects.
func (s *Service) CallTool(ctx context.Context, cfg mcpclient.ServerConfig, name string, args map[string]any) Outcome {
	return s.run(ctx, cfg, "callTool", func(tr mcpclient.Transport) Outcome {
		result, trace, err := tr.CallTool(ctx, name, args)
		if err != nil {
			return failure(err, trace)
		}
		return Outcome{Success: true, Result: result, Debug: &trace}
	})
}

// CallToolInputs converts raw field text using the tool's advertised schema
// and then invokes it, all over one connection.
func (s *Service) CallToolInputs(ctx context.Context, cfg mcpclient.ServerConfig, name string, inputs map[string]string) Outcome {
	return s.run(ctx, cfg, "callTool", func(tr mcpclient.Transport) Outcome {
		tools, trace, err := tr.ListTools(ctx)
		if err != nil {
			return failure(err, trace)
		}
		var schema *protocol.JSONSchema
		found := false
		for _, t := range tools {
			if t.Name == name {
				schema, found = t.InputSchema, true
				break
			}
		}
		if !found {
			return failure(invalidInputs(fmt.Sprintf("tool %q is not advertised by %s", name, cfg.Name), nil), trace)
		}
		args, err := form.Arguments(schema, inputs)
		if err != nil {
			return failure(invalidInputs(err.Error(), err), trace)
		}

		result, trace, err := tr.CallTool(ctx, name, args)
		if err != nil {
			return failure(err, trace)
		}
		return Outcome{Success: true, Result: result, Debug: &trace}
	})
}

// CallMethod connects to cfg, issues an arbitrary method, and disconnects.
func (s *Service) CallMethod(ctx context.Context, cfg mcpclient.ServerConfig, method string, params map[string]any) Outcome {
	return s.run(ctx, cfg, "callMethod", func(tr mcpclient.Transport) Outcome {
		result, trace, err := tr.CallMethod(ctx, method, params)
		if err != nil {
			return failure(err, trace)
		}
		return Outcome{Success: true, Result: result, Debug: &trace}
	})
}

// Scan lists the tools of every saved server concurrently. Results keep the
// saved order.
func (s *Service) Scan(ctx context.Context) ([]ScanResult, error) {
	servers, err := s.Servers()
	if err != nil {
		return nil, err
	}
	results := make([]ScanResult, len(servers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scanConcurrency)
	for i, cfg := range servers {
		g.Go(func() error {
			results[i] = ScanResult{Name: cfg.Name, Transport: cfg.Transport, Outcome: s.ListTools(gctx, cfg)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) run(ctx context.Context, cfg mcpclient.ServerConfig, op string, fn func(mcpclient.Transport) Outcome) Outcome {
	start := time.Now()
	cfg = cfg.Normalize()
	log := s.log.WithFields(logrus.Fields{"server": cfg.Name, "transport": cfg.Transport, "op": op})

	opts := append([]mcpclient.Option{mcpclient.WithLogger(log)}, s.opts...)
	tr, err := mcpclient.New(cfg, opts...)
	if err != nil {
		log.WithError(err).Warn("transport rejected")
		trace := connectTrace(cfg, err)
		return failure(err, trace)
	}
	if err := tr.Connect(ctx); err != nil {
		log.WithError(err).WithField("dur", time.Since(start).String()).Warn("connect failed")
		return failure(err, connectTrace(cfg, err))
	}
	defer func() {
		if err := tr.Disconnect(); err != nil {
			log.WithError(err).Debug("disconnect")
		}
	}()

	out := fn(tr)
	entry := log.WithField("dur", time.Since(start).String())
	if !out.Success {
		entry.WithField("error", out.Error).Warn("operation failed")
	} else {
		entry.Info("operation completed")
	}
	return out
}

func failure(err error, trace mcpclient.DebugTrace) Outcome {
	if trace.ErrorMessage == "" {
		trace.ErrorMessage = err.Error()
	}
	return Outcome{Error: err.Error(), ErrorKind: mcpclient.ErrorKind(err), Debug: &trace}
}

// invalidInputs reports field input that could not become tool arguments.
func invalidInputs(msg string, err error) *mcpclient.CallError {
	return &mcpclient.CallError{Reason: mcpclient.ReasonInvalidParams, Method: protocol.MethodToolsCall, Message: msg, Err: err}
}

// connectTrace describes a connection that never got as far as an exchange.
func connectTrace(cfg mcpclient.ServerConfig, err error) mcpclient.DebugTrace {
	trace := mcpclient.DebugTrace{Transport: cfg.Transport, Action: "connect", ErrorMessage: err.Error()}
	if cfg.Transport == mcpclient.KindREST {
		trace.URL = cfg.Address
	} else {
		trace.Command = cfg.Target()
	}
	var connErr *mcpclient.ConnectError
	if errors.As(err, &connErr) {
		trace.Stderr = connErr.Stderr
	}
	return trace
}

// Servers returns the saved list in order.
func (s *Service) Servers() ([]mcpclient.ServerConfig, error) {
	return s.store.Load()
}

// Lookup finds a saved server by exact name or by zero-based index.
func (s *Service) Lookup(ref string) (mcpclient.ServerConfig, int, error) {
	servers, err := s.Servers()
	if err != nil {
		return mcpclient.ServerConfig{}, -1, err
	}
	ref = strings.TrimSpace(ref)
	for i, srv := range servers {
		if srv.Name == ref {
			return srv, i, nil
		}
	}
	if i, err := strconv.Atoi(ref); err == nil && i >= 0 && i < len(servers) {
		return servers[i], i, nil
	}
	return mcpclient.ServerConfig{}, -1, fmt.Errorf("%w: %s", ErrServerNotFound, ref)
}

// AddServer validates cfg and appends it to the saved list.
func (s *Service) AddServer(cfg mcpclient.ServerConfig) (mcpclient.ServerConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return mcpclient.ServerConfig{}, err
	}
	servers, err := s.store.Load()
	if err != nil {
		return mcpclient.ServerConfig{}, err
	}
	if err := checkUnique(servers, cfg.Name, -1); err != nil {
		return mcpclient.ServerConfig{}, err
	}
	servers = append(servers, cfg)
	if err := s.store.Save(servers); err != nil {
		return mcpclient.ServerConfig{}, fmt.Errorf("save servers: %w", err)
	}
	s.log.WithFields(logrus.Fields{"server": cfg.Name, "transport": cfg.Transport}).Info("server added")
	return cfg, nil
}

// UpdateServer replaces the server at index.
func (s *Service) UpdateServer(index int, cfg mcpclient.ServerConfig) (mcpclient.ServerConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return mcpclient.ServerConfig{}, err
	}
	servers, err := s.store.Load()
	if err != nil {
		return mcpclient.ServerConfig{}, err
	}
	if index < 0 || index >= len(servers) {
		return mcpclient.ServerConfig{}, fmt.Errorf("%w: index %d", ErrServerNotFound, index)
	}
	if err := checkUnique(servers, cfg.Name, index); err != nil {
		return mcpclient.ServerConfig{}, err
	}
	servers[index] = cfg
	if err := s.store.Save(servers); err != nil {
		return mcpclient.ServerConfig{}, fmt.Errorf("save servers: %w", err)
	}
	s.log.WithFields(logrus.Fields{"server": cfg.Name, "index": index}).Info("server updated")
	return cfg, nil
}

// DeleteServer removes the server at index and returns it.
func (s *Service) DeleteServer(index int) (mcpclient.ServerConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	servers, err := s.store.Load()
	if err != nil {
		return mcpclient.ServerConfig{}, err
	}
	if index < 0 || index >= len(servers) {
		return mcpclient.ServerConfig{}, fmt.Errorf("%w: index %d", ErrServerNotFound, index)
	}
	removed := servers[index]
	servers = append(servers[:index], servers[index+1:]...)
	if err := s.store.Save(servers); err != nil {
		return mcpclient.ServerConfig{}, fmt.Errorf("save servers: %w", err)
	}
	s.log.WithFields(logrus.Fields{"server": removed.Name, "index": index}).Info("server removed")
	return removed, nil
}

// ImportServers validates every entry first and then either replaces the
// saved list or appends to it.
func (s *Service) ImportServers(incoming []mcpclient.ServerConfig, replace bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var servers []mcpclient.ServerConfig
	if !replace {
		existing, err := s.store.Load()
		if err != nil {
			return 0, err
		}
		servers = existing
	}
	for i, cfg := range incoming {
		cfg = cfg.Normalize()
		if err := cfg.Validate(); err != nil {
			return 0, fmt.Errorf("entry %d: %w", i, err)
		}
		if err := checkUnique(servers, cfg.Name, -1); err != nil {
			return 0, fmt.Errorf("entry %d: %w", i, err)
		}
		servers = append(servers, cfg)
	}
	if err := s.store.Save(servers); err != nil {
		return 0, fmt.Errorf("save servers: %w", err)
	}
	s.log.WithFields(logrus.Fields{"count": len(incoming), "replace": replace}).Info("servers imported")
	return len(incoming), nil
}

func checkUnique(servers []mcpclient.ServerConfig, name string, skip int) error {
	for i, srv := range servers {
		if i != skip && srv.Name == name {
			return &mcpclient.ConfigError{Field: "name", Message: fmt.Sprintf("a server named %q already exists", name)}
		}
	}
	return nil
}
