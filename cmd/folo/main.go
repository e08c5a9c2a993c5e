// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-tracking.
//
// go-tracking is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jeremyhahn/go-tracking/pkg/cli"
	"github.com/jeremyhahn/go-tracking/pkg/metrics"
	"github.com/jeremyhahn/go-tracking/pkg/version"
)

var (
	cfgFile      string
	viperConfig  *viper.Viper
	globalConfig *cli.Config
)

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"backend":             "store.backend",
	"store-path":          "store.path",
	"cassandra-hosts":     "cassandra.hosts",
	"cassandra-keyspace":  "cassandra.keyspace",
	"host":                "server.host",
	"port":                "server.port",
	"rate-limit":          "server.rate-limit",
	"content-base-url":    "tracking.content-base-url",
	"track-group-content": "tracking.track-group-content",
	"base-dir":            "tracking.base-dir",
	"content-url":         "services.content-url",
	"promote-url":         "services.promote-url",
	"storage-url":         "services.storage-url",
	"maintenance-url":     "services.maintenance-url",
	"log-level":           "log.level",
	"output-format":       "output-format",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "folo",
	Short: "Track the content builds download and upload",
	Long: `folo records every artifact a build downloads from or uploads to the
repository, seals the record when the build finishes and serves the records
to the promotion and cleanup tooling.

Ledger backends:
  - memory    : In-process store, for tests and trials
  - sqlite    : Single-file embedded store
  - cassandra : Replicated store with quorum reads and writes

Configuration can be provided via:
  - Command-line flags (highest priority)
  - Environment variables (FOLO_*, e.g. FOLO_STORE_BACKEND)
  - Configuration file (~/.folo.yaml or ./.folo.yaml)
  - Default values (lowest priority)`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		viperConfig, err = cli.InitConfig(cfgFile)
		if err != nil {
			return err
		}

		var bindErr error
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			key, ok := flagKeys[f.Name]
			if !ok || bindErr != nil {
				return
			}
			bindErr = viperConfig.BindPFlag(key, f)
		})
		if bindErr != nil {
			return fmt.Errorf("failed to bind flags: %w", bindErr)
		}

		globalConfig = cli.GetConfig(viperConfig)
		return nil
	},
}

func outputFormat() cli.OutputFormat {
	return cli.OutputFormat(globalConfig.OutputFormat)
}

// withContext opens the ledger, runs fn and reports its error in the
// configured output format.
func withContext(cmd *cobra.Command, fn func(ctx *cli.CommandContext) error, opts ...cli.Option) error {
	ctx, err := cli.NewCommandContext(globalConfig, opts...)
	if err != nil {
		fmt.Fprint(os.Stderr, cli.FormatError(err, outputFormat()))
		return err
	}
	defer func() { _ = ctx.Close() }()

	if err := fn(ctx); err != nil {
		fmt.Fprint(os.Stderr, cli.FormatError(err, outputFormat()))
		return err
	}
	return nil
}

func printResult(msg string, data any) {
	fmt.Print(cli.FormatOperationResult(&cli.OperationResult{Success: true, Message: msg, Data: data}, outputFormat()))
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the tracking admin API and event receiver",
	Long: `Run the HTTP admin API under /api/folo/admin, the event receiver at
/api/folo/events, /health and /metrics. The server stops gracefully on
SIGINT or SIGTERM.`,
	Example: `  folo serve --backend sqlite --store-path /var/lib/folo/ledger.db
  folo serve --backend cassandra --cassandra-hosts db1,db2 --promote-url http://promote:8080`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var m *metrics.Metrics
		if globalConfig.MetricsEnabled {
			m = metrics.Init(nil)
		}

		c, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return withContext(cmd, func(ctx *cli.CommandContext) error {
			return ctx.ServeCommand(c)
		}, cli.WithLogOutput(os.Stdout), cli.WithMetrics(m))
	},
}

var getCmd = &cobra.Command{
	Use:   "get <tracking-id>",
	Short: "Show the tracking record of a build",
	Long: `Show the record of a tracking id. The current table is read first and
the legacy table is used when the id is not found there.`,
	Example: `  folo get build-42
  folo get build-42 --legacy -o yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		legacy, _ := cmd.Flags().GetBool("legacy")
		return withContext(cmd, func(ctx *cli.CommandContext) error {
			dto, err := ctx.GetCommand(cmd.Context(), args[0], legacy)
			if err != nil {
				return err
			}
			fmt.Print(cli.FormatContent(dto, outputFormat()))
			return nil
		})
	},
}

var sealCmd = &cobra.Command{
	Use:   "seal <tracking-id>",
	Short: "Seal a tracking record against further writes",
	Example: `  folo seal build-42`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContext(cmd, func(ctx *cli.CommandContext) error {
			dto, err := ctx.SealCommand(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Print(cli.FormatContent(dto, outputFormat()))
			return nil
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <tracking-id>",
	Short:   "Delete every record of a tracking id",
	Example: `  folo delete build-42`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContext(cmd, func(ctx *cli.CommandContext) error {
			if err := ctx.DeleteCommand(cmd.Context(), args[0]); err != nil {
				return err
			}
			printResult(fmt.Sprintf("Deleted tracking record '%s'", args[0]), nil)
			return nil
		})
	},
}

var idsCmd = &cobra.Command{
	Use:   "ids [sealed|legacy|in_progress|all]",
	Short: "List tracking ids",
	Long: `List the tracking ids in the ledger. In-progress ids are not tracked
separately, so in_progress and all report an unsupported operation.`,
	Example: `  folo ids
  folo ids legacy -o table`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := "sealed"
		if len(args) == 1 {
			kind = args[0]
		}
		return withContext(cmd, func(ctx *cli.CommandContext) error {
			ids, err := ctx.IDsCommand(cmd.Context(), kind)
			if err != nil {
				return err
			}
			fmt.Print(cli.FormatIDs(ids, outputFormat()))
			return nil
		})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every tracking record to a zip archive",
	Long: `Export every record of the current table as a zip archive. The archive
is written to --to: a local path, s3://bucket/key or gs://bucket/object.
Without --to it goes to <base-dir>/folo/folo-sealed.zip.`,
	Example: `  folo export
  folo export --to /backups/folo.zip
  folo export --to s3://ledger-backups/folo/folo-sealed.zip`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dest, _ := cmd.Flags().GetString("to")
		return withContext(cmd, func(ctx *cli.CommandContext) error {
			location, n, err := ctx.ExportCommand(cmd.Context(), dest)
			if err != nil {
				return err
			}
			printResult(fmt.Sprintf("Exported %d record(s) to %s", n, location),
				map[string]any{"records": n, "location": location})
			return nil
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import <archive>",
	Short: "Import tracking records from a zip archive",
	Long: `Replace the ledger records found in an export archive. A malformed
archive is rejected before anything is written. Use - to read standard input.`,
	Example: `  folo import /backups/folo.zip`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContext(cmd, func(ctx *cli.CommandContext) error {
			n, err := ctx.ImportCommand(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printResult(fmt.Sprintf("Imported %d record(s)", n), map[string]any{"records": n})
			return nil
		})
	},
}

var recalculateCmd = &cobra.Command{
	Use:   "recalculate <tracking-id>",
	Short: "Refresh sizes and checksums from the content service",
	Example: `  folo recalculate build-42 --content-url http://indy:8080`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContext(cmd, func(ctx *cli.CommandContext) error {
			dto, err := ctx.RecalculateCommand(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Print(cli.FormatContent(dto, outputFormat()))
			return nil
		})
	},
}

var batchDeleteCmd = &cobra.Command{
	Use:   "batch-delete <tracking-id> <store-key> [paths...]",
	Short: "Delete the uploads of a build from a store",
	Long: `Ask the maintenance service to delete content a build uploaded to a
store. With the deletion guard enabled the store must be the target of one of
the build's promotions. Without paths every tracked upload to the store is
deleted. Parent folders left empty are removed through the storage service.`,
	Example: `  folo batch-delete build-42 maven:hosted:builds --maintenance-url http://indy:8080 --promote-url http://indy:8080
  folo batch-delete build-42 maven:hosted:builds org/foo/1.0/foo-1.0.jar`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContext(cmd, func(ctx *cli.CommandContext) error {
			done, err := ctx.BatchDeleteCommand(cmd.Context(), args[0], args[1], args[2:])
			if err != nil {
				return err
			}
			printResult(fmt.Sprintf("Deleted %d path(s) from %s", len(done.Paths), done.StoreKey), done)
			return nil
		})
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Print(cli.DisplayConfig(globalConfig, outputFormat()))
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(version.String())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.folo.yaml)")
	rootCmd.PersistentFlags().String("backend", "memory", "ledger backend (memory, sqlite, cassandra)")
	rootCmd.PersistentFlags().String("store-path", "", "database file for the sqlite backend")
	rootCmd.PersistentFlags().StringSlice("cassandra-hosts", []string{"localhost"}, "cassandra contact points")
	rootCmd.PersistentFlags().String("cassandra-keyspace", "folo", "cassandra keyspace")
	rootCmd.PersistentFlags().String("content-base-url", "", "base URL used to build localUrl in reports")
	rootCmd.PersistentFlags().String("content-url", "", "content service URL (recalculate, repository zip)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringP("output-format", "o", "text", "output format (text, json, yaml, table)")

	serveCmd.Flags().String("host", "0.0.0.0", "address to listen on")
	serveCmd.Flags().Int("port", 8080, "port to listen on")
	serveCmd.Flags().Float64("rate-limit", 0, "per-client requests per second on the admin API (0 disables)")
	serveCmd.Flags().Bool("track-group-content", false, "record content served directly from group stores")
	serveCmd.Flags().String("promote-url", "", "promotion service URL for the deletion guard")
	serveCmd.Flags().String("storage-url", "", "storage service URL for empty folder cleanup")
	serveCmd.Flags().String("maintenance-url", "", "maintenance service URL for batch deletes")

	batchDeleteCmd.Flags().String("promote-url", "", "promotion service URL for the deletion guard")
	batchDeleteCmd.Flags().String("storage-url", "", "storage service URL for empty folder cleanup")
	batchDeleteCmd.Flags().String("maintenance-url", "", "maintenance service URL")

	getCmd.Flags().Bool("legacy", false, "read only the legacy table")

	exportCmd.Flags().String("to", "", "destination: path, s3://bucket/key or gs://bucket/object")
	exportCmd.Flags().String("base-dir", "", "base directory for the default export destination")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(sealCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(idsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(recalculateCmd)
	rootCmd.AddCommand(batchDeleteCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
