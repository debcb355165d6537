// Package cli is the froggy command tree.
package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/froggy/mcp-tester/internal/app"
	"github.com/froggy/mcp-tester/internal/config"
	"github.com/froggy/mcp-tester/internal/logging"
	"github.com/froggy/mcp-tester/internal/mcpclient"
	"github.com/froggy/mcp-tester/internal/store"
	"github.com/froggy/mcp-tester/internal/version"
)

// env carries what every subcommand needs once the root has initialised.
type env struct {
	home    string
	verbose bool
	debug   bool

	cfg     config.Config
	log     *logrus.Entry
	cleanup func()
	svc     *app.Service
	opts    []mcpclient.Option
}

// NewRootCmd builds a fresh command tree. opts are passed to every
// transport the commands create.
func NewRootCmd(opts ...mcpclient.Option) *cobra.Command {
	e := &env{opts: opts}

	root := &cobra.Command{
		Use:   "froggy",
		Short: "Inspect and exercise MCP servers over stdio or HTTP",
		Long: `froggy connects to Model Context Protocol servers, lists their tools,
calls tools or arbitrary methods, and shows a debug trace of every exchange.

Servers are saved in <home>/mcp-servers.json. Each command opens a fresh
connection, performs one operation, and disconnects.`,
		Example: `  froggy servers add --name local --address "node server.js"
  froggy servers add --name remote --transport rest --address http://localhost:3000/mcp
  froggy tools local
  froggy call local echo --arg message=hello --debug
  froggy method remote resources/list
  froggy serve`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.init(cmd)
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if e.cleanup != nil {
				e.cleanup()
			}
		},
	}
	root.PersistentFlags().StringVar(&e.home, "home", "", "Data directory (default $FROGGY_HOME or the user config dir)")
	root.PersistentFlags().BoolVarP(&e.verbose, "verbose", "v", false, "Log at debug level")
	root.PersistentFlags().BoolVar(&e.debug, "debug", false, "Print the debug trace after each operation")
	root.CompletionOptions.HiddenDefaultCmd = true

	root.AddGroup(
		&cobra.Group{ID: "servers", Title: "Server Commands:"},
		&cobra.Group{ID: "ops", Title: "Operation Commands:"},
	)

	root.AddCommand(
		newServersCmd(e),
		newToolsCmd(e),
		newCallCmd(e),
		newMethodCmd(e),
		newScanCmd(e),
		newServeCmd(e),
		newVersionCmd(),
	)
	return root
}

// Execute runs the froggy command tree.
func Execute() error {
	return NewRootCmd().Execute()
}

func (e *env) init(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if e.home != "" {
		cfg.Home = e.home
	}
	if e.verbose {
		cfg.LogLevel = logrus.DebugLevel
	}
	e.cfg = cfg

	log, cleanup, err := logging.New(cfg.LogDir(), "froggy", cfg.LogLevel)
	if err != nil {
		log = logging.Fallback(cmd.ErrOrStderr(), "froggy", logrus.WarnLevel)
		log.WithError(err).Warn("log file unavailable, logging to stderr")
		cleanup = func() {}
	}
	e.log = log
	e.cleanup = cleanup

	opts := append([]mcpclient.Option{mcpclient.WithTimeout(cfg.HTTPTimeout)}, e.opts...)
	e.svc = app.New(store.New(cfg.Home), log, opts...)
	return nil
}

// report prints an outcome and turns a failed one into a command error.
func (e *env) report(w, errw io.Writer, out app.Outcome, render func(io.Writer, app.Outcome) error) error {
	if out.Success {
		if err := render(w, out); err != nil {
			return err
		}
	}
	if e.debug && out.Debug != nil {
		fmt.Fprintln(errw, "--- debug ---")
		fmt.Fprintln(errw, out.Debug.Pretty())
	}
	if !out.Success {
		return fmt.Errorf("%s", out.Error)
	}
	return nil
}

func renderResult(w io.Writer, out app.Outcome) error {
	return printJSON(w, out.Result)
}

func printJSON(w io.Writer, v any) error {
	if raw, ok := v.(json.RawMessage); ok {
		if len(raw) == 0 {
			raw = json.RawMessage("null")
		}
		var buf bytes.Buffer
		if err := json.Indent(&buf, raw, "", "  "); err != nil {
			_, err = fmt.Fprintln(w, string(raw))
			return err
		}
		buf.WriteByte('\n')
		_, err := w.Write(buf.Bytes())
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		// The version command needs no config or service.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.Get()
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "froggy %s\n  commit: %s\n  built:  %s\n", info.Version, info.Commit, info.BuildDate)
			return err
		},
	}
}
