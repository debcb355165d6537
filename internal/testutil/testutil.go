// Package testutil provides shared test helpers used across packages.
package testutil

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/froggy/mcp-tester/internal/mcp"
)

// DiscardLogger returns a logrus entry that discards all output.
func DiscardLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// PipeTransport is an sdk.Transport speaking newline-delimited JSON-RPC over
// a reader and a writer. Closing the connection closes both.
type PipeTransport struct {
	r io.ReadCloser
	w io.WriteCloser
}

// NewPipeTransport returns a transport that reads from r and writes to w.
func NewPipeTransport(r io.ReadCloser, w io.WriteCloser) *PipeTransport {
	return &PipeTransport{r: r, w: w}
}

// Connect implements sdk.Transport.
func (t *PipeTransport) Connect(context.Context) (sdk.Connection, error) {
	return &pipeConn{r: bufio.NewReader(t.r), rc: t.r, w: t.w}, nil
}

type pipeConn struct {
	r  *bufio.Reader
	rc io.Closer

	mu sync.Mutex
	w  io.WriteCloser

	once     sync.Once
	closeErr error
}

func (c *pipeConn) Read(context.Context) (jsonrpc.Message, error) {
	for {
		data, err := c.r.ReadBytes('\n')
		line := bytes.TrimSpace(data)
		if len(line) > 0 {
			return jsonrpc.DecodeMessage(line)
		}
		if err != nil {
			return nil, err
		}
	}
}

func (c *pipeConn) Write(_ context.Context, msg jsonrpc.Message) error {
	data, err := jsonrpc.EncodeMessage(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err = c.w.Write(append(data, '\n'))
	return err
}

func (c *pipeConn) Close() error {
	c.once.Do(func() {
		c.closeErr = errors.Join(c.rc.Close(), c.w.Close())
	})
	return c.closeErr
}

func (c *pipeConn) SessionID() string { return "" }

// StdioDialer returns a dialer, assignable to mcpclient.Dialer, that serves
// every connection from a fresh server over in-memory pipes instead of
// spawning a process. banner, when set, is written to stderr as the child's
// first diagnostic line.
func StdioDialer(newServer func() *mcp.Server, banner string) func(context.Context, string, []string, io.Writer) (sdk.Transport, error) {
	return func(_ context.Context, _ string, _ []string, stderr io.Writer) (sdk.Transport, error) {
		clientR, serverW := io.Pipe()
		serverR, clientW := io.Pipe()
		if banner != "" {
			fmt.Fprintln(stderr, banner)
		}
		srv := newServer()
		go func() {
			_ = srv.ServeStdio(context.Background(), serverR, serverW)
			_ = serverW.Close()
			_ = serverR.Close()
		}()
		return NewPipeTransport(clientR, clientW), nil
	}
}
