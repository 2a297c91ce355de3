package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	ctyjson "github.com/zclconf/go-cty/cty/json"
	"gopkg.in/yaml.v3"
)

// LoadFile loads a configuration file on top of the defaults.
//
// The format follows the extension: ".hcl" files are parsed as HCL attributes,
// anything else (".yaml", ".yml", ".json") as YAML. The "dims" key is read
// first so that per-axis defaults match the requested dimensionality.
//
// Example YAML:
//
//	dims: 3
//	dstype: NUMERIC
//	patterns:
//	  - [CONSTANT, CONSTANT, ADDITIVE]
//	cluster_distribution:
//	  - {kind: UNIFORM, min: 3, max: 5}
//	  - {kind: UNIFORM, min: 3, max: 5}
//	  - {kind: NORMAL, mean: 2, sdev: 1}
//
// Example HCL:
//
//	dims     = 2
//	dstype   = "SYMBOLIC"
//	patterns = [["CONSTANT", "NONE"]]
//	values   = { nsymbols = 5 }
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	doc := data
	if strings.EqualFold(filepath.Ext(path), ".hcl") {
		doc, err = hclToJSON(data, path)
		if err != nil {
			return nil, err
		}
	}

	var head struct {
		Dims Dimensionality `yaml:"dims"`
	}
	if err := yaml.Unmarshal(doc, &head); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrInvalidConfig, path, err)
	}

	cfg := DefaultConfig(head.Dims)
	if err := yaml.Unmarshal(doc, cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrInvalidConfig, path, err)
	}
	if head.Dims != 0 {
		cfg.Dims = head.Dims
	}
	cfg.normalize()

	return cfg, nil
}

// hclToJSON evaluates the top-level attributes of an HCL file and renders them
// as one JSON object so that the YAML schema applies unchanged.
func hclToJSON(data []byte, filename string) ([]byte, error) {
	file, diags := hclsyntax.ParseConfig(data, filename, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: failed to parse HCL file %s: %v", ErrInvalidConfig, filename, diags)
	}

	attrs, diags := file.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: failed to decode HCL file %s: %v", ErrInvalidConfig, filename, diags)
	}

	doc := make(map[string]json.RawMessage, len(attrs))
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("%w: evaluating %s in %s: %v", ErrInvalidConfig, name, filename, diags)
		}
		raw, err := ctyjson.Marshal(val, val.Type())
		if err != nil {
			return nil, fmt.Errorf("%w: encoding %s in %s: %v", ErrInvalidConfig, name, filename, err)
		}
		doc[name] = raw
	}

	return json.Marshal(doc)
}

// normalize upper-cases enumerators so that lower-case files are accepted.
// Unknown values are left for Validate to report.
func (c *Config) normalize() {
	c.ValueKind = ValueKind(normalize(string(c.ValueKind)))
	c.Background.Kind = BackgroundKind(normalize(string(c.Background.Kind)))
	c.TimeProfile = TimeProfile(normalize(string(c.TimeProfile)))
	c.Contiguity = Contiguity(normalize(string(c.Contiguity)))
	if c.Contiguity == "" {
		c.Contiguity = ContiguityNone
	}
	c.Overlap.Plaid = PlaidCoherency(normalize(string(c.Overlap.Plaid)))
	for i := range c.Patterns {
		for j := range c.Patterns[i] {
			c.Patterns[i][j] = PatternType(normalize(string(c.Patterns[i][j])))
		}
	}
	for i := range c.ClusterDistribution {
		c.ClusterDistribution[i].Kind = Distribution(normalize(string(c.ClusterDistribution[i].Kind)))
	}
}

// LoadFromEnv builds a configuration from defaults and NCLUSTGEN_* variables.
//
// NCLUSTGEN_DIMS selects the dimensionality of the defaults; every other
// variable is applied by ApplyEnv.
func LoadFromEnv() *Config {
	cfg := DefaultConfig(Dimensionality(getEnvInt("NCLUSTGEN_DIMS", int(Bicluster))))
	ApplyEnv(cfg)
	return cfg
}

// ApplyEnv overlays environment variables onto cfg.
//
// Environment Variables:
//
//	NCLUSTGEN_SEED                 - engine seed
//	NCLUSTGEN_DSTYPE               - NUMERIC or SYMBOLIC
//	NCLUSTGEN_LOG_LEVEL            - debug, info, warn, error
//	NCLUSTGEN_LOG_FORMAT           - text or json
//	NCLUSTGEN_LOG_OUTPUT           - stderr, stdout or a file path
//	NCLUSTGEN_CHUNK_DIVISOR        - sparse chunk divisor
//	NCLUSTGEN_WORKERS              - parallel sparse chunk decoders
//	NCLUSTGEN_DENSE_LIMIT          - dense auto-selection limit (e.g. 1GB)
//	NCLUSTGEN_GRAPH_BACKEND        - tensor or generic
//	NCLUSTGEN_GRAPH_DEVICE         - local or accelerated
//	NCLUSTGEN_GRAPH_DEVICE_INDEX   - accelerator index
//	NCLUSTGEN_STORAGE_DIR          - BadgerDB directory for generic graphs
//	NCLUSTGEN_STORAGE_IN_MEMORY    - BadgerDB in-memory mode
//	NCLUSTGEN_OUTPUT_PATH          - persistence directory
//	NCLUSTGEN_OUTPUT_COMPRESS      - zstd-compress dataset files
func ApplyEnv(cfg *Config) {
	cfg.Seed = getEnvInt64("NCLUSTGEN_SEED", cfg.Seed)
	cfg.ValueKind = ValueKind(normalize(getEnv("NCLUSTGEN_DSTYPE", string(cfg.ValueKind))))

	cfg.Logging.Level = getEnv("NCLUSTGEN_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("NCLUSTGEN_LOG_FORMAT", cfg.Logging.Format)
	cfg.Logging.Output = getEnv("NCLUSTGEN_LOG_OUTPUT", cfg.Logging.Output)

	cfg.Materialize.ChunkDivisor = getEnvInt("NCLUSTGEN_CHUNK_DIVISOR", cfg.Materialize.ChunkDivisor)
	cfg.Materialize.Workers = getEnvInt("NCLUSTGEN_WORKERS", cfg.Materialize.Workers)
	cfg.Materialize.DenseLimit = getEnv("NCLUSTGEN_DENSE_LIMIT", cfg.Materialize.DenseLimit)

	cfg.Graph.Backend = getEnv("NCLUSTGEN_GRAPH_BACKEND", cfg.Graph.Backend)
	cfg.Graph.Device = getEnv("NCLUSTGEN_GRAPH_DEVICE", cfg.Graph.Device)
	cfg.Graph.DeviceIndex = getEnvInt("NCLUSTGEN_GRAPH_DEVICE_INDEX", cfg.Graph.DeviceIndex)

	cfg.Storage.Dir = getEnv("NCLUSTGEN_STORAGE_DIR", cfg.Storage.Dir)
	cfg.Storage.InMemory = getEnvBool("NCLUSTGEN_STORAGE_IN_MEMORY", cfg.Storage.InMemory)

	cfg.Output.Path = getEnv("NCLUSTGEN_OUTPUT_PATH", cfg.Output.Path)
	cfg.Output.Compress = getEnvBool("NCLUSTGEN_OUTPUT_COMPRESS", cfg.Output.Compress)
}

// Save writes cfg as YAML to path.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
