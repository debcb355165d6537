package api

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// NewGuard admits loopback callers and callers inside allowlist (comma
// separated CIDRs). When token is set, a matching bearer token is also
// required.
func NewGuard(token, allowlist string) func(http.Handler) http.Handler {
	g := &guard{token: token, allowed: parseAllowlist(allowlist)}
	return g.wrap
}

type guard struct {
	token   string
	allowed []*net.IPNet
}

func (g *guard) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := parseRemoteIP(r.RemoteAddr)
		if !g.isAllowed(ip) {
			RespondError(w, http.StatusForbidden, "FORBIDDEN_IP", "request IP not allowed")
			return
		}

		if g.token != "" {
			const bearerPrefix = "Bearer "
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, bearerPrefix) {
				RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid bearer token")
				return
			}
			provided := strings.TrimSpace(strings.TrimPrefix(auth, bearerPrefix))
			if subtle.ConstantTimeCompare([]byte(provided), []byte(g.token)) != 1 {
				RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid bearer token")
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func (g *guard) isAllowed(ip net.IP) bool {
	if ip == nil {
		return false
	}
	if ip.IsLoopback() {
		return true
	}
	for _, network := range g.allowed {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

func parseRemoteIP(remoteAddr string) net.IP {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err == nil {
		return net.ParseIP(host)
	}
	return net.ParseIP(remoteAddr)
}

func parseAllowlist(raw string) []*net.IPNet {
	var networks []*net.IPNet
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		_, network, err := net.ParseCIDR(entry)
		if err != nil {
			continue
		}
		networks = append(networks, network)
	}
	return networks
}

type responseRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// LogRequests tags each request with an X-Request-ID, generating one when the
// caller sent none, and logs one line per request.
func LogRequests(logger *logrus.Entry, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", requestID)

		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		dur := time.Since(start).Round(time.Millisecond)
		logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rec.status,
			"bytes":      rec.bytes,
			"dur":        dur,
		}).Info("request")
	})
}
