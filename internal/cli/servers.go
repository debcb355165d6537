package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/froggy/mcp-tester/internal/mcpclient"
	"github.com/froggy/mcp-tester/internal/store"
)

func newServersCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "servers",
		Short:   "Manage saved servers",
		GroupID: "servers",
	}
	cmd.AddCommand(
		newServersListCmd(e),
		newServersAddCmd(e),
		newServersEditCmd(e),
		newServersRemoveCmd(e),
		newServersExportCmd(e),
		newServersImportCmd(e),
	)
	return cmd
}

func newServersListCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved servers",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			servers, err := e.svc.Servers()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(servers) == 0 {
				fmt.Fprintln(out, "No servers saved. Add one with: froggy servers add --name NAME --address ADDRESS")
				return nil
			}
			printServers(out, servers)
			return nil
		},
	}
}

func printServers(w io.Writer, servers []mcpclient.ServerConfig) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tNAME\tTRANSPORT\tADDRESS\tAPI KEY")
	for i, srv := range servers {
		key := "-"
		if srv.APIKey != "" {
			key = "set"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i, srv.Name, srv.Transport, srv.Address, key)
	}
	_ = tw.Flush()
}

type serverFlags struct {
	name      string
	transport string
	address   string
	apiKey    string
}

func (f *serverFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "Display name")
	cmd.Flags().StringVar(&f.transport, "transport", "", "Transport: stdio or rest (default stdio)")
	cmd.Flags().StringVar(&f.address, "address", "", "Command line (stdio) or base URL (rest)")
	cmd.Flags().StringVar(&f.apiKey, "api-key", "", "API key sent to rest servers")
}

func newServersAddCmd(e *env) *cobra.Command {
	var f serverFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Save a new server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			saved, err := e.svc.AddServer(mcpclient.ServerConfig{
				Name:      f.name,
				Transport: mcpclient.Kind(f.transport),
				Address:   f.address,
				APIKey:    f.apiKey,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s)\n", saved.Name, saved.Transport)
			return nil
		},
	}
	f.register(cmd)
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("address")
	return cmd
}

func newServersEditCmd(e *env) *cobra.Command {
	var f serverFlags
	cmd := &cobra.Command{
		Use:   "edit <server>",
		Short: "Change fields of a saved server",
		Long:  "Only the flags given are changed. <server> is a name or an index from 'froggy servers list'.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, index, err := e.svc.Lookup(args[0])
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("name") {
				cfg.Name = f.name
			}
			if flags.Changed("transport") {
				cfg.Transport = mcpclient.Kind(f.transport)
			}
			if flags.Changed("address") {
				cfg.Address = f.address
			}
			if flags.Changed("api-key") {
				cfg.APIKey = f.apiKey
			}
			saved, err := e.svc.UpdateServer(index, cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s (%s)\n", saved.Name, saved.Transport)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newServersRemoveCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <server>",
		Aliases: []string{"remove"},
		Short:   "Delete a saved server",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, index, err := e.svc.Lookup(args[0])
			if err != nil {
				return err
			}
			removed, err := e.svc.DeleteServer(index)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", removed.Name)
			return nil
		},
	}
}

func newServersExportCmd(e *env) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write saved servers as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			servers, err := e.svc.Servers()
			if err != nil {
				return err
			}
			if file == "" || file == "-" {
				return store.ExportYAML(cmd.OutOrStdout(), servers)
			}
			f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
			if err != nil {
				return err
			}
			if err := store.ExportYAML(f, servers); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Output file (default stdout)")
	return cmd
}

func newServersImportCmd(e *env) *cobra.Command {
	var replace bool
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Add servers from a YAML file",
		Long:  "Reads a YAML document with a top-level 'servers' list, or a bare list. Use - for stdin.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if strings.TrimSpace(args[0]) != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			servers, err := store.ImportYAML(r)
			if err != nil {
				return err
			}
			n, err := e.svc.ImportServers(servers, replace)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d server(s)\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "Replace the saved list instead of appending")
	return cmd
}
