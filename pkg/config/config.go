// Package config holds the declarative description of a synthetic
// bicluster/tricluster dataset and the settings of the pipeline around it.
//
// A Config is loaded from a YAML, JSON or HCL file with LoadFile, overlaid with
// NCLUSTGEN_* environment variables by ApplyEnv, and checked with Validate
// before it reaches the specification builder.
//
// Example Usage:
//
//	cfg, err := config.LoadFile("./tricluster.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	config.ApplyEnv(cfg)
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("Invalid config: %v", err)
//	}
//
// Configuration is organized into sections:
//   - Dataset: dimensionality, value kind, background, patterns, structure, overlap
//   - Quality: noise, errors and missing-value rates
//   - Logging: level, format and output of the structured logger
//   - Materialize: sparse chunking and the dense/sparse auto-selection limit
//   - Graph: default graph backend and device placement
//   - Storage: where the generic graph backend keeps its nodes and edges
//   - Output: persistence destination and file layout
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ErrInvalidConfig is returned for every configuration error: unknown
// enumerators, per-axis settings that do not match the dimensionality, and
// out-of-range values. Callers match it with errors.Is.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the complete parameter set of one generator.
//
// Every per-axis list (each pattern tuple, ClusterDistribution and
// Overlap.AxisFractions) must have exactly Dims entries, ordered row, col[, ctx].
type Config struct {
	// Dims is 2 (bicluster) or 3 (tricluster).
	Dims Dimensionality `yaml:"dims" json:"dims"`
	// ValueKind selects NUMERIC or SYMBOLIC values.
	ValueKind ValueKind `yaml:"dstype" json:"dstype"`
	// Background fills cells outside the planted clusters.
	Background Background `yaml:"background" json:"background"`
	// Patterns holds one pattern tuple per planted pattern, one type per axis.
	Patterns [][]PatternType `yaml:"patterns" json:"patterns"`
	// TimeProfile is shared by every pattern; empty means none.
	TimeProfile TimeProfile `yaml:"time_profile" json:"time_profile"`
	// ClusterDistribution drives cluster sizes, one entry per axis.
	ClusterDistribution []AxisDistribution `yaml:"cluster_distribution" json:"cluster_distribution"`
	// Contiguity constrains cluster indices; CONTEXTS is only meaningful for 3 axes.
	Contiguity Contiguity `yaml:"contiguity" json:"contiguity"`
	// Overlap configures plaid coherency and overlap amounts.
	Overlap Overlap `yaml:"overlap" json:"overlap"`
	// Values configures the numeric range or the symbol alphabet.
	Values Values `yaml:"values" json:"values"`
	// Quality configures noise, errors and missing values.
	Quality Quality `yaml:"quality" json:"quality"`
	// Seed is forwarded to the engine; -1 lets the engine choose.
	Seed int64 `yaml:"seed" json:"seed"`

	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
	Materialize MaterializeConfig `yaml:"materialize" json:"materialize"`
	Graph       GraphConfig       `yaml:"graph" json:"graph"`
	Storage     StorageConfig     `yaml:"storage" json:"storage"`
	Output      OutputConfig      `yaml:"output" json:"output"`
}

// Background describes the background distribution.
//
// Mean and Sdev apply to NORMAL; Probabilities (one per symbol) apply to DISCRETE.
type Background struct {
	Kind          BackgroundKind `yaml:"kind" json:"kind"`
	Mean          float64        `yaml:"mean" json:"mean"`
	Sdev          float64        `yaml:"sdev" json:"sdev"`
	Probabilities []float64      `yaml:"probabilities" json:"probabilities"`
}

// AxisDistribution drives cluster sizes along one axis.
// UNIFORM uses Min and Max; NORMAL uses Mean and Sdev.
type AxisDistribution struct {
	Kind Distribution `yaml:"kind" json:"kind"`
	Min  float64      `yaml:"min" json:"min"`
	Max  float64      `yaml:"max" json:"max"`
	Mean float64      `yaml:"mean" json:"mean"`
	Sdev float64      `yaml:"sdev" json:"sdev"`
}

// Params returns the two distribution parameters in engine order.
func (a AxisDistribution) Params() (float64, float64) {
	if Distribution(normalize(string(a.Kind))) == DistributionNormal {
		return a.Mean, a.Sdev
	}
	return a.Min, a.Max
}

// Overlap configures how planted clusters may overlap.
type Overlap struct {
	Plaid PlaidCoherency `yaml:"plaid_coherency" json:"plaid_coherency"`
	// ClustersFraction is the fraction of clusters allowed to overlap.
	ClustersFraction float64 `yaml:"clusters_fraction" json:"clusters_fraction"`
	// MaxClustersPerArea caps clusters sharing one overlapped area.
	MaxClustersPerArea int `yaml:"max_clusters_per_area" json:"max_clusters_per_area"`
	// MaxElementsFraction caps the fraction of overlapping elements.
	MaxElementsFraction float64 `yaml:"max_elements_fraction" json:"max_elements_fraction"`
	// AxisFractions holds the overlap fraction per axis (rows, cols[, contexts]).
	AxisFractions []float64 `yaml:"axis_fractions" json:"axis_fractions"`
}

// Values configures the value domain.
type Values struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
	// Real requests real-valued numbers; false requests integers.
	Real bool `yaml:"real" json:"real"`
	// Symbols is the explicit alphabet for SYMBOLIC datasets.
	Symbols []string `yaml:"symbols" json:"symbols"`
	// NSymbols builds the alphabet "1".."n" when Symbols is empty.
	NSymbols int `yaml:"nsymbols" json:"nsymbols"`
	// MissingToken is the serialized form of a missing value.
	MissingToken string `yaml:"missing_token" json:"missing_token"`
}

// Alphabet returns the configured symbol alphabet.
func (v Values) Alphabet() []string {
	if len(v.Symbols) > 0 {
		return v.Symbols
	}
	out := make([]string, 0, v.NSymbols)
	for i := 1; i <= v.NSymbols; i++ {
		out = append(out, strconv.Itoa(i))
	}
	return out
}

// Perturbation is a (fraction, min deviation, max deviation) triple.
type Perturbation struct {
	Fraction     float64 `yaml:"fraction" json:"fraction"`
	MinDeviation float64 `yaml:"min_deviation" json:"min_deviation"`
	MaxDeviation float64 `yaml:"max_deviation" json:"max_deviation"`
}

// Quality configures data degradation.
type Quality struct {
	Noise             Perturbation `yaml:"noise" json:"noise"`
	Errors            Perturbation `yaml:"errors" json:"errors"`
	MissingBackground float64      `yaml:"missing_background" json:"missing_background"`
	MissingClusters   float64      `yaml:"missing_clusters" json:"missing_clusters"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level (debug, info, warn, error)
	Level string `yaml:"level" json:"level"`
	// Format (text, json)
	Format string `yaml:"format" json:"format"`
	// Output (stderr, stdout, or file path)
	Output string `yaml:"output" json:"output"`
}

// MaterializeConfig tunes dense and sparse decoding.
type MaterializeConfig struct {
	// ChunkDivisor splits the row range into about this many sparse chunks.
	ChunkDivisor int `yaml:"chunk_divisor" json:"chunk_divisor"`
	// Workers decodes sparse chunks in parallel when > 1.
	Workers int `yaml:"workers" json:"workers"`
	// DenseLimit is the largest dense tensor (e.g. "512MB") chosen automatically.
	DenseLimit string `yaml:"dense_limit" json:"dense_limit"`
}

// DenseLimitBytes returns DenseLimit in bytes (0 means unlimited).
func (m MaterializeConfig) DenseLimitBytes() int64 {
	return parseMemorySize(m.DenseLimit)
}

// GraphConfig selects the default graph representation and its placement.
type GraphConfig struct {
	// Backend is "tensor" or "generic" (aliases "dgl", "networkx").
	Backend string `yaml:"backend" json:"backend"`
	// Device is "local" or "accelerated" (aliases "cpu", "gpu").
	Device string `yaml:"device" json:"device"`
	// DeviceIndex selects the accelerator when Device is accelerated.
	DeviceIndex int `yaml:"device_index" json:"device_index"`
}

// StorageConfig selects the store behind the generic graph backend.
type StorageConfig struct {
	// Dir is a BadgerDB directory; empty keeps the graph in memory.
	Dir string `yaml:"dir" json:"dir"`
	// InMemory runs BadgerDB without touching disk.
	InMemory bool `yaml:"in_memory" json:"in_memory"`
	// SyncWrites forces fsync on every BadgerDB write.
	SyncWrites bool `yaml:"sync_writes" json:"sync_writes"`
}

// OutputConfig describes where generated datasets are persisted.
type OutputConfig struct {
	Path     string `yaml:"path" json:"path"`
	FileName string `yaml:"file_name" json:"file_name"`
	// SingleFile forces one dataset file (true) or row-chunked files (false);
	// nil chooses by size.
	SingleFile *bool `yaml:"single_file" json:"single_file"`
	// Compress writes zstd-compressed dataset files.
	Compress bool `yaml:"compress" json:"compress"`
}

// DefaultConfig returns the generator defaults for the given dimensionality.
//
// Example:
//
//	cfg := config.DefaultConfig(config.Tricluster)
//	cfg.Seed = 42
func DefaultConfig(dims Dimensionality) *Config {
	if !dims.Valid() {
		dims = Bicluster
	}
	n := int(dims)

	first := make([]PatternType, n)
	second := make([]PatternType, n)
	dist := make([]AxisDistribution, n)
	fractions := make([]float64, n)
	for i := 0; i < n; i++ {
		first[i] = PatternConstant
		second[i] = PatternNone
		dist[i] = AxisDistribution{Kind: DistributionUniform, Min: 4, Max: 4}
		fractions[i] = 1.0
	}
	second[0] = PatternConstant

	return &Config{
		Dims:                dims,
		ValueKind:           Numeric,
		Background:          Background{Kind: BackgroundUniform},
		Patterns:            [][]PatternType{first, second},
		TimeProfile:         TimeProfileNone,
		ClusterDistribution: dist,
		Contiguity:          ContiguityNone,
		Overlap: Overlap{
			Plaid:         PlaidNoOverlapping,
			AxisFractions: fractions,
		},
		Values: Values{
			Min:          -10,
			Max:          10,
			Real:         true,
			MissingToken: "?",
		},
		Seed: -1,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Materialize: MaterializeConfig{
			ChunkDivisor: 10,
			Workers:      1,
			DenseLimit:   "512MB",
		},
		Graph: GraphConfig{
			Backend: "tensor",
			Device:  "local",
		},
		Output: OutputConfig{
			FileName: "example",
		},
	}
}

// Validate checks every invariant of the configuration.
//
// This method checks:
//   - Dims is 2 or 3
//   - every enumerator is recognized
//   - each pattern tuple, ClusterDistribution and Overlap.AxisFractions has Dims entries
//   - fractions lie in [0, 1] and the value domain is usable
//
// Returns nil if the configuration is valid, or an error wrapping ErrInvalidConfig.
func (c *Config) Validate() error {
	if !c.Dims.Valid() {
		return fmt.Errorf("%w: dims must be 2 or 3, got %d", ErrInvalidConfig, c.Dims)
	}
	n := int(c.Dims)

	kind, err := ParseValueKind(string(c.ValueKind))
	if err != nil {
		return err
	}
	if _, err := ParseBackgroundKind(string(c.Background.Kind)); err != nil {
		return err
	}
	if _, err := ParseTimeProfile(string(c.TimeProfile)); err != nil {
		return err
	}
	if _, err := ParseContiguity(string(c.Contiguity)); err != nil {
		return err
	}
	if _, err := ParsePlaidCoherency(string(c.Overlap.Plaid)); err != nil {
		return err
	}

	if len(c.Patterns) == 0 {
		return fmt.Errorf("%w: at least one pattern is required", ErrInvalidConfig)
	}
	for i, p := range c.Patterns {
		if len(p) != n {
			return fmt.Errorf("%w: pattern %d has %d types, want %d", ErrInvalidConfig, i, len(p), n)
		}
		for _, t := range p {
			if _, err := ParsePatternType(string(t)); err != nil {
				return err
			}
		}
	}

	if len(c.ClusterDistribution) != n {
		return fmt.Errorf("%w: cluster_distribution has %d axes, want %d",
			ErrInvalidConfig, len(c.ClusterDistribution), n)
	}
	for i, d := range c.ClusterDistribution {
		if _, err := ParseDistribution(string(d.Kind)); err != nil {
			return err
		}
		if p1, p2 := d.Params(); p1 < 0 || p2 < 0 {
			return fmt.Errorf("%w: cluster_distribution[%d] has negative parameters", ErrInvalidConfig, i)
		}
	}

	if len(c.Overlap.AxisFractions) != n {
		return fmt.Errorf("%w: overlap.axis_fractions has %d entries, want %d",
			ErrInvalidConfig, len(c.Overlap.AxisFractions), n)
	}
	fractions := append([]float64{
		c.Overlap.ClustersFraction,
		c.Overlap.MaxElementsFraction,
		c.Quality.Noise.Fraction,
		c.Quality.Errors.Fraction,
		c.Quality.MissingBackground,
		c.Quality.MissingClusters,
	}, c.Overlap.AxisFractions...)
	for _, f := range fractions {
		if f < 0 || f > 1 {
			return fmt.Errorf("%w: fraction %v outside [0, 1]", ErrInvalidConfig, f)
		}
	}
	if c.Overlap.MaxClustersPerArea < 0 {
		return fmt.Errorf("%w: overlap.max_clusters_per_area must be >= 0", ErrInvalidConfig)
	}

	switch kind {
	case Numeric:
		if c.Values.Min >= c.Values.Max {
			return fmt.Errorf("%w: values.min %v must be below values.max %v",
				ErrInvalidConfig, c.Values.Min, c.Values.Max)
		}
	case Symbolic:
		if len(c.Values.Alphabet()) == 0 {
			return fmt.Errorf("%w: symbolic datasets need symbols or nsymbols", ErrInvalidConfig)
		}
	}

	if c.Materialize.ChunkDivisor <= 0 {
		return fmt.Errorf("%w: materialize.chunk_divisor must be > 0", ErrInvalidConfig)
	}
	if c.Materialize.Workers < 0 {
		return fmt.Errorf("%w: materialize.workers must be >= 0", ErrInvalidConfig)
	}

	return nil
}

// String returns a short summary suitable for logging.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Dims: %d, Kind: %s, Background: %s, Patterns: %d, Plaid: %s, Seed: %d}",
		c.Dims, c.ValueKind, c.Background.Kind, len(c.Patterns), c.Overlap.Plaid, c.Seed,
	)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}

// parseMemorySize parses a human-readable memory size string.
// Supports: "1024", "1KB", "1MB", "1GB", "1TB", "0", "unlimited"
func parseMemorySize(s string) int64 {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" || s == "0" || s == "UNLIMITED" {
		return 0
	}

	s = strings.TrimSuffix(s, "B")

	var multiplier int64 = 1
	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = 1024
		s = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		multiplier = 1024 * 1024
		s = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "G"):
		multiplier = 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "G")
	case strings.HasSuffix(s, "T"):
		multiplier = 1024 * 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "T")
	}

	val, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return val * multiplier
}

// FormatMemorySize formats bytes as human-readable string.
func FormatMemorySize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.2f TB", float64(bytes)/float64(TB))
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
