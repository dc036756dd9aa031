package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/mongoscan/pkg/errors"
	"github.com/ajitpratap0/mongoscan/pkg/metrics"
	"github.com/ajitpratap0/mongoscan/pkg/schema"
	"github.com/ajitpratap0/mongoscan/pkg/table"
)

func parse(t *testing.T, v *viper.Viper, sub string, args ...string) *cobra.Command {
	t.Helper()
	root := newRootCmd(v)
	cmd, rest, err := root.Find(append([]string{sub}, args...))
	require.NoError(t, err)
	require.NoError(t, cmd.ParseFlags(rest))
	return cmd
}

func TestResolveOptionsFromFlags(t *testing.T) {
	v := viper.New()
	cmd := parse(t, v, "scan",
		"--uri", "mongodb://localhost:27017",
		"--db", "shop",
		"--collection", "orders",
		"--n-rows", "129",
		"--batch-size", "50",
		"--threads", "3",
		"--rechunk")

	opts, err := resolveOptions(v, cmd)
	require.NoError(t, err)
	assert.Equal(t, "mongodb://localhost:27017", opts.ConnectionStr)
	assert.Equal(t, "shop", opts.DB)
	assert.Equal(t, "orders", opts.Collection)
	require.NotNil(t, opts.NRows)
	assert.Equal(t, 129, *opts.NRows)
	require.NotNil(t, opts.BatchSize)
	assert.Equal(t, 50, *opts.BatchSize)
	assert.Equal(t, 3, opts.Threads)
	assert.True(t, opts.Rechunk)
	assert.Equal(t, 100, opts.InferSchemaLength)
}

func TestResolveOptionsLeavesOptionalsUnset(t *testing.T) {
	v := viper.New()
	cmd := parse(t, v, "scan", "--uri", "mongodb://localhost", "--db", "d", "--collection", "c")
	opts, err := resolveOptions(v, cmd)
	require.NoError(t, err)
	assert.Nil(t, opts.NRows)
	assert.Nil(t, opts.BatchSize)
	assert.False(t, opts.Rechunk)
}

func TestResolveOptionsFromEnv(t *testing.T) {
	t.Setenv("MONGOSCAN_CONNECTION_STR", "mongodb://env-host")
	t.Setenv("MONGOSCAN_DB", "envdb")
	t.Setenv("MONGOSCAN_COLLECTION", "envcoll")
	t.Setenv("MONGOSCAN_N_ROWS", "10")

	v := viper.New()
	cmd := parse(t, v, "scan", "--collection", "flagcoll")
	opts, err := resolveOptions(v, cmd)
	require.NoError(t, err)
	assert.Equal(t, "mongodb://env-host", opts.ConnectionStr)
	assert.Equal(t, "envdb", opts.DB)
	assert.Equal(t, "flagcoll", opts.Collection)
	require.NotNil(t, opts.NRows)
	assert.Equal(t, 10, *opts.NRows)
}

func TestResolveOptionsFromConfigFile(t *testing.T) {
	t.Setenv("MONGOSCAN_TEST_CLI_HOST", "cfg-host")
	path := filepath.Join(t.TempDir(), "scan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
connection_str: mongodb://${MONGOSCAN_TEST_CLI_HOST}
db: filedb
collection: filecoll
n_rows: 5
infer_schema_length: 1000
`), 0o600))

	v := viper.New()
	cmd := parse(t, v, "schema", "--config", path, "--db", "flagdb")
	opts, err := resolveOptions(v, cmd)
	require.NoError(t, err)
	assert.Equal(t, "mongodb://cfg-host", opts.ConnectionStr)
	assert.Equal(t, "flagdb", opts.DB)
	assert.Equal(t, "filecoll", opts.Collection)
	assert.Equal(t, 1000, opts.InferSchemaLength)
	require.NotNil(t, opts.NRows)
	assert.Equal(t, 5, *opts.NRows)
}

func TestResolveOptionsValidates(t *testing.T) {
	v := viper.New()
	cmd := parse(t, v, "scan", "--uri", "mongodb://localhost", "--db", "d")
	_, err := resolveOptions(v, cmd)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = resolveOptions(viper.New(), parse(t, viper.New(), "scan", "--config", filepath.Join(t.TempDir(), "nope.yaml")))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd(viper.New())
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "mongoscan v"+version)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 1, exitCode(errors.New(errors.ErrorTypeConfig, "bad")))
	conn := errors.New(errors.ErrorTypeConnection, "refused")
	assert.Equal(t, 2, exitCode(errors.Wrap(conn, errors.ErrorTypeSchemaInference, "infer")))
}

func sampleTable(t *testing.T) *table.Table {
	t.Helper()
	s := arrow.NewSchema([]arrow.Field{
		{Name: "_id", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
	}, nil)
	b := array.NewRecordBuilder(memory.DefaultAllocator, s)
	defer b.Release()
	b.Field(0).(*array.Int64Builder).AppendValues([]int64{1, 2}, nil)
	b.Field(1).(*array.StringBuilder).AppendValues([]string{"ada", "bob"}, nil)
	tbl, err := table.New(s, []arrow.Record{b.NewRecord()})
	require.NoError(t, err)
	return tbl
}

func TestWriteTableFormats(t *testing.T) {
	tbl := sampleTable(t)
	defer tbl.Release()

	var buf bytes.Buffer
	require.NoError(t, writeTable(&buf, tbl, "table"))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, []string{"_id", "name"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"2", "bob"}, strings.Fields(lines[2]))
	assert.Equal(t, "(2 rows)", lines[3])

	buf.Reset()
	require.NoError(t, writeTable(&buf, tbl, "json"))
	assert.Equal(t, "{\"_id\":1,\"name\":\"ada\"}\n{\"_id\":2,\"name\":\"bob\"}\n", buf.String())

	buf.Reset()
	require.NoError(t, writeTable(&buf, tbl, "arrow"))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("ARROW1")))

	err := writeTable(&buf, tbl, "csv")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestWriteSchema(t *testing.T) {
	s := schema.MustNew(
		schema.Field{Name: "_id", Type: schema.Int64Type},
		schema.Field{Name: "tags", Type: schema.ListOf(schema.StringType)},
	)

	var buf bytes.Buffer
	require.NoError(t, writeSchema(&buf, s, "table"))
	assert.Contains(t, buf.String(), "COLUMN")
	assert.Contains(t, buf.String(), "tags")

	buf.Reset()
	require.NoError(t, writeSchema(&buf, s, "json"))
	assert.Contains(t, buf.String(), `"name": "_id"`)

	assert.Error(t, writeSchema(&buf, s, "arrow"))
}

func TestWriteMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)
	c.ObserveScan("db.c", 7, 0, nil)

	var buf bytes.Buffer
	require.NoError(t, writeMetrics(&buf, reg))
	assert.Contains(t, buf.String(), "mongoscan_scans_total")
}
