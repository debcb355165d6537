package mcp

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/froggy/mcp-tester/internal/protocol"
)

// NewHTTPHandler serves one JSON-RPC request per POST, on "/" or on
// "/<method>". When apiKey is set, requests must carry it either as a bearer
// token or in X-API-Key.
func NewHTTPHandler(server *Server, apiKey string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if apiKey != "" && !authorized(r, apiKey) {
			writeJSON(w, WriteError(nil, -32001, "unauthorized", nil), http.StatusUnauthorized)
			return
		}

		var req protocol.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, WriteError(nil, protocol.CodeParseError, "invalid JSON", err), http.StatusBadRequest)
			return
		}
		if req.Method == "" {
			req.Method = strings.TrimPrefix(r.URL.Path, "/")
		}

		resp, err := server.Handle(r.Context(), req)
		if err != nil {
			writeJSON(w, WriteError(req.ID, protocol.CodeInternalError, "internal error", err), http.StatusInternalServerError)
			return
		}
		if req.IsNotification() {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		writeJSON(w, resp, http.StatusOK)
	})
	return mux
}

// RunHTTP serves the handler on addr until ctx is cancelled.
func RunHTTP(ctx context.Context, server *Server, addr, apiKey string, log *logrus.Entry) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewHTTPHandler(server, apiKey),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", addr).Info("HTTP MCP server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func authorized(r *http.Request, key string) bool {
	if v := strings.TrimSpace(r.Header.Get("X-API-Key")); v != "" {
		return subtle.ConstantTimeCompare([]byte(v), []byte(key)) == 1
	}
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(auth[len(prefix):])), []byte(key)) == 1
	}
	return false
}

func writeJSON(w http.ResponseWriter, resp protocol.Response, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(resp)
}
