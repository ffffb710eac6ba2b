// Command typegraphctl is a thin example CLI wiring a TypeGraph backend
// together from the command line (spec §6.3 expansion) — dump the active
// schema document for a graph, or wipe one out. It is not part of the
// engine's contract; every operation here goes through the same
// storage.Backend interface an embedding application would use.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nicia-ai/typegraph"
	"github.com/nicia-ai/typegraph/dialect/pgdialect"
	"github.com/nicia-ai/typegraph/dialect/sqlitedialect"
	"github.com/nicia-ai/typegraph/storage"
)

var (
	dsn        string
	dialectFlg string
	configPath string
)

func main() {
	root := &cobra.Command{
		Use:   "typegraphctl",
		Short: "inspect and administer a TypeGraph graph store",
	}
	root.PersistentFlags().StringVar(&dsn, "dsn", "", "database connection string")
	root.PersistentFlags().StringVar(&dialectFlg, "dialect", "sqlite", "backend dialect: sqlite or postgres")
	root.PersistentFlags().StringVar(&configPath, "config", "", "optional YAML config file (table name overrides, cache sizing)")

	root.AddCommand(schemaCmd())
	root.AddCommand(clearGraphCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*typegraph.Config, error) {
	if configPath == "" {
		return typegraph.Default(), nil
	}
	return typegraph.LoadConfig(configPath)
}

func openBackend() (storage.Backend, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	tables := cfg.TableNames()
	switch dialectFlg {
	case "postgres":
		return pgdialect.OpenWithSlowQuery(dsn, tables, cfg.SlowQuery)
	case "sqlite":
		return sqlitedialect.OpenWithSlowQuery(dsn, tables, cfg.SlowQuery)
	default:
		return nil, fmt.Errorf("typegraphctl: unknown dialect %q", dialectFlg)
	}
}

func schemaCmd() *cobra.Command {
	var graphID string
	var version int
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "print a graph's schema document as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := openBackend()
			if err != nil {
				return err
			}
			defer backend.Close()

			ctx := context.Background()
			var sv *storage.SchemaVersion
			if version > 0 {
				sv, err = backend.GetSchemaVersion(ctx, graphID, version)
			} else {
				sv, err = backend.GetActiveSchema(ctx, graphID)
			}
			if err != nil {
				return err
			}
			if sv == nil {
				return fmt.Errorf("typegraphctl: no schema found for graph %q", graphID)
			}
			_, err = os.Stdout.Write(sv.SchemaDoc)
			return err
		},
	}
	cmd.Flags().StringVar(&graphID, "graph", "", "graph id (required)")
	cmd.Flags().IntVar(&version, "version", 0, "schema version (default: the active version)")
	cmd.MarkFlagRequired("graph")
	return cmd
}

func clearGraphCmd() *cobra.Command {
	var graphID string
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear-graph",
		Short: "delete every row scoped to a graph (embeddings, uniques, edges, nodes, schema versions)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("typegraphctl: refusing to clear graph %q without --yes", graphID)
			}
			backend, err := openBackend()
			if err != nil {
				return err
			}
			defer backend.Close()
			return backend.ClearGraph(context.Background(), graphID)
		},
	}
	cmd.Flags().StringVar(&graphID, "graph", "", "graph id (required)")
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the destructive delete")
	cmd.MarkFlagRequired("graph")
	return cmd
}
