package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/mongoscan/pkg/config"
	"github.com/ajitpratap0/mongoscan/pkg/errors"
	"github.com/ajitpratap0/mongoscan/pkg/logger"
	"github.com/ajitpratap0/mongoscan/pkg/mongoscan"
	"github.com/ajitpratap0/mongoscan/pkg/observability"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := newRootCmd(viper.New()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode is 2 for failures worth retrying (connection trouble) and 1
// otherwise.
func exitCode(err error) int {
	if errors.IsRetryable(err) {
		return 2
	}
	return 1
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:   "mongoscan",
		Short: "Read MongoDB collections into Arrow tables",
		Long: `mongoscan reads a MongoDB collection into a columnar table, inferring the
schema from a sample of documents and splitting the read across parallel cursors.

Options come from flags, MONGOSCAN_* environment variables and an optional
YAML config file, in that order of precedence.`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "Path to a YAML config file")
	flags.String("uri", "", "MongoDB connection string")
	flags.String("db", "", "Database name")
	flags.String("collection", "", "Collection name")
	flags.Int("infer-schema-length", config.DefaultInferSchemaLength, "Documents sampled for schema inference")
	flags.Int("threads", runtime.GOMAXPROCS(0), "Number of parallel cursors")
	flags.Int("batch-size", 0, "Documents per server round trip (driver default when unset)")
	flags.String("log-level", "warn", "Log level (debug, info, warn, error)")
	flags.Bool("trace", false, "Write trace spans to stderr")

	bindFlags(v, root)

	root.AddCommand(newVersionCmd(), newSchemaCmd(v), newScanCmd(v))
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "mongoscan v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newSchemaCmd(v *viper.Viper) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Infer and print a collection's schema",
		Example: `  mongoscan schema --uri mongodb://localhost:27017 --db shop --collection orders
  mongoscan schema --config scan.yaml --format json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := resolveOptions(v, cmd)
			if err != nil {
				return err
			}
			return withSession(cmd, opts, func(ctx context.Context, log *zap.Logger) error {
				frame, err := mongoscan.ScanMongoCollection(opts, mongoscan.WithLogger(log))
				if err != nil {
					return err
				}
				s, err := frame.Schema(ctx)
				if err != nil {
					return err
				}
				return writeSchema(cmd.OutOrStdout(), s, format)
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "table", "Output format (table, json)")
	return cmd
}

func newScanCmd(v *viper.Viper) *cobra.Command {
	var (
		columns     []string
		head        int
		format      string
		output      string
		showMetrics bool
	)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Read a collection and write it out",
		Long: `Read a collection and write the result as a text table, JSON lines or an
Arrow IPC file. --n-rows reads the newest N documents by _id.`,
		Example: `  mongoscan scan --uri mongodb://localhost:27017 --db shop --collection orders --n-rows 129
  mongoscan scan --config scan.yaml --select _id,total --format arrow --output orders.arrow`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := resolveOptions(v, cmd)
			if err != nil {
				return err
			}
			return withSession(cmd, opts, func(ctx context.Context, log *zap.Logger) error {
				return runScan(ctx, cmd, log, opts, scanFlags{
					columns:     columns,
					head:        head,
					format:      format,
					output:      output,
					showMetrics: showMetrics,
				})
			})
		},
	}
	cmd.Flags().Int("n-rows", 0, "Read only the newest N documents")
	cmd.Flags().Bool("rechunk", false, "Compact the result into one record batch")
	cmd.Flags().StringSliceVar(&columns, "select", nil, "Columns to read, comma separated")
	cmd.Flags().IntVar(&head, "head", 0, "Keep at most N rows of the result")
	cmd.Flags().StringVar(&format, "format", "table", "Output format (table, json, arrow)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "Print scan metrics to stderr when done")
	_ = v.BindPFlag("rechunk", cmd.Flags().Lookup("rechunk"))
	return cmd
}

// withSession sets up logging, tracing and signal handling around fn.
func withSession(cmd *cobra.Command, opts config.ScanOptions, fn func(context.Context, *zap.Logger) error) error {
	if err := logger.Init(logger.Config{Level: opts.LogLevel, Encoding: "console"}); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	log := logger.With(
		zap.String("component", "mongoscan-cli"),
		zap.String(string(logger.CollectionKey), opts.DB+"."+opts.Collection))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if trace, _ := cmd.Flags().GetBool("trace"); trace {
		cfg := observability.DefaultTracingConfig()
		cfg.ServiceVersion = version
		cfg.Output = cmd.ErrOrStderr()
		shutdown, err := observability.InitTracing(cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Warn("failed to flush traces", zap.Error(err))
			}
		}()
	}

	return fn(ctx, log)
}
