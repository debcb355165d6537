package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/froggy/mcp-tester/internal/protocol"
)

const maxLineBytes = 4 << 20

// ServeStdio reads newline-delimited JSON-RPC requests from r and writes one
// reply line per request to w. It returns when r is exhausted or ctx ends.
func (s *Server) ServeStdio(ctx context.Context, r io.Reader, w io.Writer) error {
	var mu sync.Mutex
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	reply := func(resp protocol.Response) error {
		mu.Lock()
		defer mu.Unlock()
		return enc.Encode(resp)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req protocol.Request
		if err := json.Unmarshal(line, &req); err != nil {
			if werr := reply(WriteError(nil, protocol.CodeParseError, "invalid JSON", err)); werr != nil {
				return werr
			}
			continue
		}
		// A message without a method is a response; this server never sends
		// requests, so there is nothing to match it against.
		if req.Method == "" {
			continue
		}

		resp, err := s.Handle(ctx, req)
		if err != nil {
			resp = WriteError(req.ID, protocol.CodeInternalError, "internal error", err)
		}
		if req.IsNotification() {
			continue
		}
		if err := reply(resp); err != nil {
			return err
		}
	}
	return scanner.Err()
}
