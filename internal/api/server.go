// Package api exposes the app operations as a local JSON API, the
// programmatic counterpart of the CLI.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/froggy/mcp-tester/internal/app"
	"github.com/froggy/mcp-tester/internal/mcpclient"
	"github.com/froggy/mcp-tester/internal/version"
)

const maxBodyBytes = 1 << 20

// Options configures the API handler.
type Options struct {
	Token     string
	Allowlist string
}

type handler struct {
	svc *app.Service
}

// NewMux registers every route on a fresh mux. Health and version are open;
// everything under /api passes through the guard.
func NewMux(svc *app.Service, opts Options) http.Handler {
	if svc == nil {
		panic("service must not be nil")
	}
	h := &handler{svc: svc}
	guard := NewGuard(opts.Token, opts.Allowlist)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /version", versionHandler)

	mux.Handle("GET /api/servers", guard(http.HandlerFunc(h.listServers)))
	mux.Handle("POST /api/servers", guard(http.HandlerFunc(h.addServer)))
	mux.Handle("PUT /api/servers/{index}", guard(http.HandlerFunc(h.updateServer)))
	mux.Handle("DELETE /api/servers/{index}", guard(http.HandlerFunc(h.deleteServer)))
	mux.Handle("POST /api/servers/{index}/tools", guard(http.HandlerFunc(h.listTools)))
	mux.Handle("POST /api/servers/{index}/call", guard(http.HandlerFunc(h.callTool)))
	mux.Handle("POST /api/servers/{index}/method", guard(http.HandlerFunc(h.callMethod)))
	mux.Handle("POST /api/scan", guard(http.HandlerFunc(h.scan)))
	return mux
}

// Run serves handler on addr until ctx is cancelled.
func Run(ctx context.Context, addr string, handler http.Handler, log *logrus.Entry) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           LogRequests(log, handler),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", addr).Info("local API listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	RespondOK(w, http.StatusOK, map[string]any{"status": "healthy"})
}

func versionHandler(w http.ResponseWriter, _ *http.Request) {
	RespondOK(w, http.StatusOK, version.Get())
}

func (h *handler) listServers(w http.ResponseWriter, _ *http.Request) {
	servers, err := h.svc.Servers()
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	RespondOK(w, http.StatusOK, servers)
}

func (h *handler) addServer(w http.ResponseWriter, r *http.Request) {
	var cfg mcpclient.ServerConfig
	if !decodeJSON(w, r, &cfg) {
		return
	}
	saved, err := h.svc.AddServer(cfg)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	RespondOK(w, http.StatusCreated, saved)
}

func (h *handler) updateServer(w http.ResponseWriter, r *http.Request) {
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}
	var cfg mcpclient.ServerConfig
	if !decodeJSON(w, r, &cfg) {
		return
	}
	saved, err := h.svc.UpdateServer(index, cfg)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	RespondOK(w, http.StatusOK, saved)
}

func (h *handler) deleteServer(w http.ResponseWriter, r *http.Request) {
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}
	removed, err := h.svc.DeleteServer(index)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	RespondOK(w, http.StatusOK, removed)
}

func (h *handler) listTools(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.serverAt(w, r)
	if !ok {
		return
	}
	RespondOK(w, http.StatusOK, h.svc.ListTools(r.Context(), cfg))
}

type callRequest struct {
	Tool   string            `json:"tool"`
	Args   map[string]any    `json:"args,omitempty"`
	Inputs map[string]string `json:"inputs,omitempty"`
}

func (h *handler) callTool(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.serverAt(w, r)
	if !ok {
		return
	}
	var req callRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Tool) == "" {
		RespondError(w, http.StatusBadRequest, "INVALID_REQUEST", "tool is required")
		return
	}
	if req.Inputs != nil {
		RespondOK(w, http.StatusOK, h.svc.CallToolInputs(r.Context(), cfg, req.Tool, req.Inputs))
		return
	}
	RespondOK(w, http.StatusOK, h.svc.CallTool(r.Context(), cfg, req.Tool, req.Args))
}

type methodRequest struct {
	Method string         `json:"method"`
	Params map[string]any `json:"params,omitempty"`
}

func (h *handler) callMethod(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.serverAt(w, r)
	if !ok {
		return
	}
	var req methodRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Method) == "" {
		RespondError(w, http.StatusBadRequest, "INVALID_REQUEST", "method is required")
		return
	}
	RespondOK(w, http.StatusOK, h.svc.CallMethod(r.Context(), cfg, strings.TrimSpace(req.Method), req.Params))
}

func (h *handler) scan(w http.ResponseWriter, r *http.Request) {
	results, err := h.svc.Scan(r.Context())
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	RespondOK(w, http.StatusOK, results)
}

func (h *handler) serverAt(w http.ResponseWriter, r *http.Request) (mcpclient.ServerConfig, bool) {
	index, ok := pathIndex(w, r)
	if !ok {
		return mcpclient.ServerConfig{}, false
	}
	servers, err := h.svc.Servers()
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return mcpclient.ServerConfig{}, false
	}
	if index >= len(servers) {
		RespondError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("no server at index %d", index))
		return mcpclient.ServerConfig{}, false
	}
	return servers[index], true
}

func pathIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 0 {
		RespondError(w, http.StatusBadRequest, "BAD_INDEX", "server index must be a non-negative integer")
		return 0, false
	}
	return index, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			RespondError(w, http.StatusBadRequest, "INVALID_JSON", "request body required")
			return false
		}
		RespondError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return false
	}
	return true
}

func respondServiceError(w http.ResponseWriter, err error) {
	var cfgErr *mcpclient.ConfigError
	switch {
	case errors.As(err, &cfgErr):
		RespondError(w, http.StatusBadRequest, "INVALID_CONFIG", err.Error())
	case errors.Is(err, app.ErrServerNotFound):
		RespondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	default:
		RespondError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
	}
}
