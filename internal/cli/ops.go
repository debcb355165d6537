package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/froggy/mcp-tester/internal/api"
	"github.com/froggy/mcp-tester/internal/app"
	"github.com/froggy/mcp-tester/internal/form"
)

func newToolsCmd(e *env) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "tools <server>",
		Short:   "List the tools a server advertises",
		GroupID: "ops",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := e.svc.Lookup(args[0])
			if err != nil {
				return err
			}
			out := e.svc.ListTools(cmd.Context(), cfg)
			render := renderTools
			if asJSON {
				render = func(w io.Writer, out app.Outcome) error { return printJSON(w, out.Tools) }
			}
			return e.report(cmd.OutOrStdout(), cmd.ErrOrStderr(), out, render)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw tool descriptors")
	return cmd
}

func renderTools(w io.Writer, out app.Outcome) error {
	if len(out.Tools) == 0 {
		_, err := fmt.Fprintln(w, "No tools advertised.")
		return err
	}
	for _, tool := range out.Tools {
		fmt.Fprintf(w, "%s\n", tool.Name)
		if tool.Description != "" {
			fmt.Fprintf(w, "  %s\n", tool.Description)
		}
		fields := form.Fields(tool)
		if len(fields) == 0 {
			fmt.Fprintln(w, "  No parameters required.")
			continue
		}
		for _, f := range fields {
			req := "optional"
			if f.Required {
				req = "required"
			}
			line := fmt.Sprintf("  --arg %s=<%s> (%s, %s)", f.Name, f.Type, f.Widget, req)
			if f.Description != "" {
				line += "  " + f.Description
			}
			fmt.Fprintln(w, line)
		}
	}
	return nil
}

func newCallCmd(e *env) *cobra.Command {
	var (
		pairs   []string
		rawJSON string
	)
	cmd := &cobra.Command{
		Use:   "call <server> <tool>",
		Short: "Call a tool",
		Long: `Call a tool with arguments given either as --arg name=value pairs, which
are converted using the tool's input schema, or as one --json object sent as is.`,
		GroupID: "ops",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := e.svc.Lookup(args[0])
			if err != nil {
				return err
			}
			if rawJSON != "" && len(pairs) > 0 {
				return fmt.Errorf("use either --arg or --json, not both")
			}

			var out app.Outcome
			if rawJSON != "" {
				toolArgs, err := form.ParseParams(rawJSON)
				if err != nil {
					return fmt.Errorf("--json: %w", err)
				}
				out = e.svc.CallTool(cmd.Context(), cfg, args[1], toolArgs)
			} else {
				inputs, err := parsePairs(pairs)
				if err != nil {
					return err
				}
				out = e.svc.CallToolInputs(cmd.Context(), cfg, args[1], inputs)
			}
			return e.report(cmd.OutOrStdout(), cmd.ErrOrStderr(), out, renderResult)
		},
	}
	cmd.Flags().StringArrayVarP(&pairs, "arg", "a", nil, "Argument as name=value (repeatable)")
	cmd.Flags().StringVar(&rawJSON, "json", "", "Arguments as a JSON object")
	return cmd
}

func parsePairs(pairs []string) (map[string]string, error) {
	inputs := make(map[string]string, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --arg %q: expected name=value", p)
		}
		inputs[name] = value
	}
	return inputs, nil
}

func newMethodCmd(e *env) *cobra.Command {
	var params string
	cmd := &cobra.Command{
		Use:   "method <server> <method>",
		Short: "Send an arbitrary JSON-RPC method",
		Long: `Send any JSON-RPC method with an optional --params object. Over stdio only
tools/list and tools/call are available.`,
		GroupID: "ops",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := e.svc.Lookup(args[0])
			if err != nil {
				return err
			}
			p, err := form.ParseParams(params)
			if err != nil {
				return fmt.Errorf("--params: %w", err)
			}
			out := e.svc.CallMethod(cmd.Context(), cfg, strings.TrimSpace(args[1]), p)
			return e.report(cmd.OutOrStdout(), cmd.ErrOrStderr(), out, renderResult)
		},
	}
	cmd.Flags().StringVarP(&params, "params", "p", "", "Parameters as a JSON object")
	return cmd
}

func newScanCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:     "scan",
		Short:   "List tools of every saved server",
		GroupID: "ops",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			results, err := e.svc.Scan(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(w, "No servers saved.")
				return nil
			}
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tTRANSPORT\tSTATUS\tDETAIL")
			failed := 0
			for _, r := range results {
				if r.Outcome.Success {
					fmt.Fprintf(tw, "%s\t%s\tok\t%d tool(s)\n", r.Name, r.Transport, len(r.Outcome.Tools))
					continue
				}
				failed++
				fmt.Fprintf(tw, "%s\t%s\terror\t%s\n", r.Name, r.Transport, firstLine(r.Outcome.Error))
			}
			_ = tw.Flush()
			if e.debug {
				for _, r := range results {
					if r.Outcome.Debug != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "--- debug: %s ---\n%s\n", r.Name, r.Outcome.Debug.Pretty())
					}
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d server(s) failed", failed, len(results))
			}
			return nil
		},
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func newServeCmd(e *env) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the local JSON API",
		GroupID: "ops",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = e.cfg.APIAddr
			}
			ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			handler := api.NewMux(e.svc, api.Options{Token: e.cfg.APIToken, Allowlist: e.cfg.APIAllowlist})
			fmt.Fprintf(cmd.OutOrStdout(), "Local API listening on http://%s\n", addr)
			return api.Run(ctx, addr, handler, e.log.WithField("component", "api"))
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default $FROGGY_API_ADDR or 127.0.0.1:7331)")
	return cmd
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
