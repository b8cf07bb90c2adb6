package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/mttchpmn/flux/internal/infrastructure/logging"
	"github.com/mttchpmn/flux/internal/node"
	"github.com/mttchpmn/flux/internal/store"
)

// Output formats for the nodes commands.
const (
	formatText = "text"
	formatJSON = "json"
)

type nodesOptions struct {
	*rootOptions
	format string
}

func newNodesCommand(root *rootOptions) *cobra.Command {
	opts := &nodesOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "Inspect stored node configurations",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if opts.format != formatText && opts.format != formatJSON {
				return fmt.Errorf("invalid format %q: must be %s or %s", opts.format, formatText, formatJSON)
			}
			return loadEnvFile(root.envFile)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.format, "format", formatText, "output format (text|json)")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print every stored node configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry, closeFn, err := openRegistry(cmd, opts)
			if err != nil {
				return err
			}
			defer closeFn()
			return printNodes(cmd.OutOrStdout(), opts.format, registry.List())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get [ID]",
		Short: "Print the configuration a node with ID would receive",
		Long:  "Print the configuration a node with ID would receive. Without ID the null-id record is looked up.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, closeFn, err := openRegistry(cmd, opts)
			if err != nil {
				return err
			}
			defer closeFn()

			id := node.Null()
			if len(args) == 1 && args[0] != "" {
				id = node.String(args[0])
			}
			cfg, found := registry.Lookup(id)
			if !found {
				fmt.Fprintf(cmd.ErrOrStderr(), "no stored config for %s, showing default\n", id)
			}
			return printNodes(cmd.OutOrStdout(), opts.format, []node.Config{cfg})
		},
	})

	return cmd
}

// openRegistry loads the configured document for inspection. The document
// is never written, so an empty file store stays absent.
func openRegistry(cmd *cobra.Command, opts *nodesOptions) (*node.Registry, func(), error) {
	cfg, _, err := loadConfig(opts.rootOptions)
	if err != nil {
		return nil, nil, err
	}

	log := logging.Discard()
	st, err := openStore(cmd.Context(), cfg, log, store.Inspect)
	if err != nil {
		return nil, nil, err
	}

	registry, err := newRegistry(cfg, st, log)
	if err != nil {
		//nolint:errcheck // already failing
		st.Close()
		return nil, nil, err
	}

	return registry, func() { _ = st.Close() }, nil
}

// printNodes writes configs as a table or as a JSON array.
func printNodes(w io.Writer, format string, configs []node.Config) error {
	if format == formatJSON {
		data, err := sonic.ConfigDefault.MarshalIndent(configs, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding nodes: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPATTERN\tDELAY")
	for _, c := range configs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.ID, c.Name, c.Pattern, c.Delay)
	}
	return tw.Flush()
}
