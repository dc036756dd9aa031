package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/apache/arrow-go/v18/arrow/memory"
	gojson "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/mongoscan/pkg/config"
	"github.com/ajitpratap0/mongoscan/pkg/errors"
	"github.com/ajitpratap0/mongoscan/pkg/metrics"
	"github.com/ajitpratap0/mongoscan/pkg/mongoscan"
	"github.com/ajitpratap0/mongoscan/pkg/schema"
	"github.com/ajitpratap0/mongoscan/pkg/table"
)

const envPrefix = "MONGOSCAN"

// flagKeys maps option keys to the persistent flags that set them.
var flagKeys = map[string]string{
	"connection_str":      "uri",
	"db":                  "db",
	"collection":          "collection",
	"infer_schema_length": "infer-schema-length",
	"threads":             "threads",
	"log_level":           "log-level",
}

func bindFlags(v *viper.Viper, root *cobra.Command) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	flags := root.PersistentFlags()
	for key, name := range flagKeys {
		_ = v.BindPFlag(key, flags.Lookup(name))
	}
	// Optional values stay nil unless set somewhere.
	for _, key := range []string{"n_rows", "batch_size", "rechunk"} {
		_ = v.BindEnv(key)
	}
}

// resolveOptions merges the config file, environment and flags.
func resolveOptions(v *viper.Viper, cmd *cobra.Command) (config.ScanOptions, error) {
	var opts config.ScanOptions

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		file := map[string]interface{}{}
		if err := config.Load(path, &file); err != nil {
			return opts, err
		}
		if err := v.MergeConfigMap(file); err != nil {
			return opts, errors.Wrap(err, errors.ErrorTypeConfig, "failed to merge config file").
				WithDetail("path", path)
		}
	}

	if err := v.Unmarshal(&opts); err != nil {
		return opts, errors.Wrap(err, errors.ErrorTypeConfig, "failed to decode options")
	}

	if f := cmd.Flags().Lookup("n-rows"); f != nil && f.Changed {
		n, _ := cmd.Flags().GetInt("n-rows")
		opts.NRows = &n
	}
	if f := cmd.Flags().Lookup("batch-size"); f != nil && f.Changed {
		n, _ := cmd.Flags().GetInt("batch-size")
		opts.BatchSize = &n
	}

	opts.ApplyDefaults()
	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

type scanFlags struct {
	columns     []string
	head        int
	format      string
	output      string
	showMetrics bool
}

func runScan(ctx context.Context, cmd *cobra.Command, log *zap.Logger, opts config.ScanOptions, f scanFlags) (err error) {
	if err := checkFormat(f.format, "table", "json", "arrow"); err != nil {
		return err
	}

	extra := []mongoscan.Option{mongoscan.WithLogger(log)}
	var reg *prometheus.Registry
	if f.showMetrics {
		reg = prometheus.NewRegistry()
		extra = append(extra, mongoscan.WithMetrics(metrics.NewCollector(reg)))
	}

	frame, err := mongoscan.ScanMongoCollection(opts, extra...)
	if err != nil {
		return err
	}
	if len(f.columns) > 0 {
		frame = frame.Select(f.columns...)
	}
	if f.head > 0 {
		frame = frame.Head(f.head)
	}

	tbl, err := frame.Collect(ctx)
	if err != nil {
		return err
	}
	defer tbl.Release()

	out := cmd.OutOrStdout()
	if f.output != "" {
		file, err := os.Create(f.output) //nolint:gosec // G304: path comes from the operator
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() {
			if cerr := file.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("failed to close output file: %w", cerr)
			}
		}()
		out = file
	}

	bw := bufio.NewWriter(out)
	if err := writeTable(bw, tbl, f.format); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	log.Info("wrote result",
		zap.Int64("rows", tbl.NumRows()),
		zap.Int("columns", tbl.NumCols()),
		zap.String("format", f.format))

	if reg != nil {
		return writeMetrics(cmd.ErrOrStderr(), reg)
	}
	return nil
}

func checkFormat(format string, allowed ...string) error {
	for _, a := range allowed {
		if format == a {
			return nil
		}
	}
	return errors.Newf(errors.ErrorTypeValidation, "unknown format %q", format).
		WithDetail("allowed", strings.Join(allowed, ","))
}

func writeTable(w io.Writer, tbl *table.Table, format string) error {
	switch format {
	case "json":
		return tbl.WriteJSONLines(w)
	case "arrow":
		return tbl.WriteIPC(w, memory.DefaultAllocator)
	case "table":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, strings.Join(tbl.ColumnNames(), "\t"))
		cells := make([]string, tbl.NumCols())
		for _, rec := range tbl.Records() {
			for row := 0; row < int(rec.NumRows()); row++ {
				for i := range cells {
					cells[i] = rec.Column(i).ValueStr(row)
				}
				fmt.Fprintln(tw, strings.Join(cells, "\t"))
			}
		}
		fmt.Fprintf(tw, "(%d rows)\n", tbl.NumRows())
		return tw.Flush()
	default:
		return checkFormat(format, "table", "json", "arrow")
	}
}

type schemaField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func writeSchema(w io.Writer, s schema.Schema, format string) error {
	if err := checkFormat(format, "table", "json"); err != nil {
		return err
	}
	fields := make([]schemaField, s.Len())
	for i, f := range s.Fields() {
		fields[i] = schemaField{Name: f.Name, Type: f.Type.String()}
	}

	if format == "json" {
		data, err := gojson.MarshalIndent(fields, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COLUMN\tTYPE")
	for _, f := range fields {
		fmt.Fprintf(tw, "%s\t%s\n", f.Name, f.Type)
	}
	return tw.Flush()
}

func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
