// Command mcp-server runs the froggy echo server used to try the tester
// against a known MCP endpoint, over HTTP or stdio.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/froggy/mcp-tester/internal/logging"
	"github.com/froggy/mcp-tester/internal/mcp"
	"github.com/froggy/mcp-tester/internal/tools"
)

func main() {
	_ = godotenv.Load()

	httpAddr := flag.String("http", envOr("MCP_HTTP_ADDR", ":3333"), "MCP HTTP listen address (e.g., :3333)")
	stdio := flag.Bool("stdio", false, "Serve newline-delimited JSON-RPC on stdin/stdout instead of HTTP")
	apiKey := flag.String("api-key", envOr("MCP_API_KEY", ""), "Require this key as a bearer token or X-API-Key header")
	logLevel := flag.String("log-level", envOr("MCP_LOG_LEVEL", "info"), "Log level")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %q\n", *logLevel)
		os.Exit(2)
	}
	// stdout carries protocol frames in stdio mode.
	log := logging.Fallback(os.Stderr, "mcp-server", level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := tools.NewServer(log)
	if *stdio {
		log.Info("serving MCP over stdio")
		if err := server.ServeStdio(ctx, os.Stdin, os.Stdout); err != nil {
			log.WithError(err).Fatal("stdio server error")
		}
		return
	}

	if err := mcp.RunHTTP(ctx, server, *httpAddr, strings.TrimSpace(*apiKey), log); err != nil {
		log.WithError(err).Fatal("MCP server error")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
