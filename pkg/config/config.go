// Package config defines the options of a collection scan and loads them
// from YAML.
//
// ScanOptions mirrors the parameters of a scan request: where the
// collection lives, how much of it to sample for schema inference, how many
// rows to read and how the read is split up.
//
// Example usage:
//
//	var cfg config.ScanOptions
//	if err := config.Load("scan.yaml", &cfg); err != nil {
//	    log.Fatal(err)
//	}
//	cfg.ApplyDefaults()
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
// YAML values may reference environment variables as ${NAME} or
// ${NAME:-fallback}.
package config

import (
	"fmt"
	"os"
	"regexp"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/mongoscan/pkg/errors"
)

// DefaultInferSchemaLength is the number of documents sampled when inferring
// a schema.
const DefaultInferSchemaLength = 100

// ScanOptions configures one collection scan.
type ScanOptions struct {
	// ConnectionStr is a mongodb:// or mongodb+srv:// URI
	ConnectionStr string `yaml:"connection_str" json:"connection_str" mapstructure:"connection_str"`
	// DB is the database name
	DB string `yaml:"db" json:"db" mapstructure:"db"`
	// Collection is the collection name
	Collection string `yaml:"collection" json:"collection" mapstructure:"collection"`
	// InferSchemaLength is the schema inference sample size
	InferSchemaLength int `yaml:"infer_schema_length" json:"infer_schema_length" mapstructure:"infer_schema_length"`
	// NRows bounds the scan to the newest N documents by _id. Nil reads all.
	NRows *int `yaml:"n_rows,omitempty" json:"n_rows,omitempty" mapstructure:"n_rows"`
	// BatchSize is the driver cursor batch size. Nil uses the driver default.
	BatchSize *int `yaml:"batch_size,omitempty" json:"batch_size,omitempty" mapstructure:"batch_size"`
	// Threads is the number of partitions. Zero uses GOMAXPROCS.
	Threads int `yaml:"threads" json:"threads" mapstructure:"threads"`
	// Rechunk compacts the result into a single record batch
	Rechunk bool `yaml:"rechunk" json:"rechunk" mapstructure:"rechunk"`
	// LogLevel is one of debug, info, warn, error
	LogLevel string `yaml:"log_level" json:"log_level" mapstructure:"log_level"`
}

// ApplyDefaults fills unset fields.
func (o *ScanOptions) ApplyDefaults() {
	if o.InferSchemaLength == 0 {
		o.InferSchemaLength = DefaultInferSchemaLength
	}
	if o.Threads == 0 {
		o.Threads = runtime.GOMAXPROCS(0)
	}
	if o.LogLevel == "" {
		o.LogLevel = "info"
	}
}

// Validate checks the options without contacting the server.
func (o *ScanOptions) Validate() error {
	switch {
	case o.ConnectionStr == "":
		return invalid("connection_str", "is required")
	case o.DB == "":
		return invalid("db", "is required")
	case o.Collection == "":
		return invalid("collection", "is required")
	case o.InferSchemaLength < 0:
		return invalid("infer_schema_length", "must not be negative")
	case o.NRows != nil && *o.NRows < 0:
		return invalid("n_rows", "must not be negative")
	case o.BatchSize != nil && (*o.BatchSize <= 0 || *o.BatchSize > 1<<31-1):
		return invalid("batch_size", "must be a positive int32")
	case o.Threads < 0:
		return invalid("threads", "must not be negative")
	}
	switch o.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return invalid("log_level", fmt.Sprintf("unknown level %q", o.LogLevel))
	}
	return nil
}

func invalid(field, reason string) error {
	return errors.Newf(errors.ErrorTypeConfig, "%s %s", field, reason).WithDetail("field", field)
}

// Load reads a YAML file into config after substituting environment
// variables.
func Load(filePath string, config interface{}) error {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file").
			WithDetail("path", filePath)
	}

	if err := yaml.Unmarshal([]byte(substituteEnvVars(string(data))), config); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse YAML").
			WithDetail("path", filePath)
	}
	return nil
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// substituteEnvVars replaces ${NAME} and ${NAME:-fallback}. Unset variables
// without a fallback become empty.
func substituteEnvVars(content string) string {
	return envRef.ReplaceAllStringFunc(content, func(ref string) string {
		m := envRef.FindStringSubmatch(ref)
		if v, ok := os.LookupEnv(m[1]); ok && v != "" {
			return v
		}
		return m[2]
	})
}
