package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	t.Run("bicluster defaults", func(t *testing.T) {
		cfg := DefaultConfig(Bicluster)
		require.NoError(t, cfg.Validate())

		assert.Equal(t, Numeric, cfg.ValueKind)
		assert.Equal(t, BackgroundUniform, cfg.Background.Kind)
		assert.Equal(t, [][]PatternType{
			{PatternConstant, PatternConstant},
			{PatternConstant, PatternNone},
		}, cfg.Patterns)
		assert.Len(t, cfg.ClusterDistribution, 2)
		assert.Equal(t, []float64{1.0, 1.0}, cfg.Overlap.AxisFractions)
		assert.Equal(t, PlaidNoOverlapping, cfg.Overlap.Plaid)
		assert.Equal(t, -10.0, cfg.Values.Min)
		assert.Equal(t, 10.0, cfg.Values.Max)
		assert.True(t, cfg.Values.Real)
		assert.Equal(t, int64(-1), cfg.Seed)
	})

	t.Run("tricluster defaults", func(t *testing.T) {
		cfg := DefaultConfig(Tricluster)
		require.NoError(t, cfg.Validate())

		assert.Equal(t, []PatternType{PatternConstant, PatternNone, PatternNone}, cfg.Patterns[1])
		assert.Len(t, cfg.ClusterDistribution, 3)
		assert.Len(t, cfg.Overlap.AxisFractions, 3)
	})

	t.Run("invalid dims fall back to bicluster", func(t *testing.T) {
		cfg := DefaultConfig(Dimensionality(7))
		assert.Equal(t, Bicluster, cfg.Dims)
	})
}

func TestDimensionality_Axes(t *testing.T) {
	assert.Equal(t, []string{"row", "col"}, Bicluster.Axes())
	assert.Equal(t, []string{"row", "col", "ctx"}, Tricluster.Axes())
	assert.Nil(t, Dimensionality(4).Axes())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad dims", func(c *Config) { c.Dims = 4 }},
		{"unknown value kind", func(c *Config) { c.ValueKind = "TEXT" }},
		{"unknown background", func(c *Config) { c.Background.Kind = "POISSON" }},
		{"unknown pattern", func(c *Config) { c.Patterns[0][1] = "SHIFTING" }},
		{"pattern length mismatch", func(c *Config) { c.Patterns[0] = []PatternType{PatternConstant} }},
		{"no patterns", func(c *Config) { c.Patterns = nil }},
		{"unknown time profile", func(c *Config) { c.TimeProfile = "SEASONAL" }},
		{"unknown contiguity", func(c *Config) { c.Contiguity = "ROWS" }},
		{"unknown plaid", func(c *Config) { c.Overlap.Plaid = "MAX" }},
		{"unknown distribution", func(c *Config) { c.ClusterDistribution[0].Kind = "ZIPF" }},
		{"distribution length", func(c *Config) { c.ClusterDistribution = c.ClusterDistribution[:1] }},
		{"negative distribution", func(c *Config) { c.ClusterDistribution[1].Min = -1 }},
		{"axis fractions length", func(c *Config) { c.Overlap.AxisFractions = []float64{1, 1, 1} }},
		{"fraction above one", func(c *Config) { c.Quality.Noise.Fraction = 1.5 }},
		{"negative max clusters", func(c *Config) { c.Overlap.MaxClustersPerArea = -1 }},
		{"empty numeric range", func(c *Config) { c.Values.Min = c.Values.Max }},
		{"symbolic without alphabet", func(c *Config) { c.ValueKind = Symbolic }},
		{"zero chunk divisor", func(c *Config) { c.Materialize.ChunkDivisor = 0 }},
		{"negative workers", func(c *Config) { c.Materialize.Workers = -2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig(Bicluster)
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestValidate_SymbolicAlphabet(t *testing.T) {
	cfg := DefaultConfig(Bicluster)
	cfg.ValueKind = Symbolic
	cfg.Values.NSymbols = 3
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []string{"1", "2", "3"}, cfg.Values.Alphabet())

	cfg.Values.Symbols = []string{"a", "b"}
	assert.Equal(t, []string{"a", "b"}, cfg.Values.Alphabet())
}

func TestParseEnums(t *testing.T) {
	v, err := ParseValueKind(" symbolic ")
	require.NoError(t, err)
	assert.Equal(t, Symbolic, v)

	c, err := ParseContiguity("")
	require.NoError(t, err)
	assert.Equal(t, ContiguityNone, c)

	tp, err := ParseTimeProfile("")
	require.NoError(t, err)
	assert.Equal(t, TimeProfileNone, tp)

	p, err := ParsePatternType("order_preserving")
	require.NoError(t, err)
	assert.Equal(t, PatternOrderPreserving, p)

	_, err = ParsePlaidCoherency("sum")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestAxisDistribution_Params(t *testing.T) {
	a, b := AxisDistribution{Kind: DistributionUniform, Min: 3, Max: 5, Mean: 9}.Params()
	assert.Equal(t, 3.0, a)
	assert.Equal(t, 5.0, b)

	a, b = AxisDistribution{Kind: "normal", Min: 3, Max: 5, Mean: 4, Sdev: 1}.Params()
	assert.Equal(t, 4.0, a)
	assert.Equal(t, 1.0, b)
}

func TestLoadFile_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tri.yaml")
	doc := `
dims: 3
dstype: numeric
patterns:
  - [constant, additive, none]
cluster_distribution:
  - {kind: uniform, min: 3, max: 5}
  - {kind: uniform, min: 3, max: 5}
  - {kind: normal, mean: 2, sdev: 1}
contiguity: contexts
seed: 7
graph:
  backend: generic
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, Tricluster, cfg.Dims)
	assert.Equal(t, [][]PatternType{{PatternConstant, PatternAdditive, PatternNone}}, cfg.Patterns)
	assert.Equal(t, DistributionNormal, cfg.ClusterDistribution[2].Kind)
	assert.Equal(t, ContiguityContexts, cfg.Contiguity)
	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, "generic", cfg.Graph.Backend)
	// Untouched sections keep tricluster defaults.
	assert.Len(t, cfg.Overlap.AxisFractions, 3)
	assert.Equal(t, 10, cfg.Materialize.ChunkDivisor)
}

func TestLoadFile_HCL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bi.hcl")
	doc := `
dims     = 2
dstype   = "SYMBOLIC"
patterns = [["CONSTANT", "NONE"]]
values   = { nsymbols = 5, missing_token = "NA" }
seed     = 11
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, Symbolic, cfg.ValueKind)
	assert.Equal(t, 5, cfg.Values.NSymbols)
	assert.Equal(t, "NA", cfg.Values.MissingToken)
	assert.Equal(t, int64(11), cfg.Seed)
	assert.Len(t, cfg.Values.Alphabet(), 5)
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.hcl")
	require.NoError(t, os.WriteFile(bad, []byte("dims = = 2"), 0644))
	_, err = LoadFile(bad)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	badYAML := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(badYAML, []byte("dims: [1, 2"), 0644))
	_, err = LoadFile(badYAML)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	cfg := DefaultConfig(Tricluster)
	cfg.Seed = 99

	require.NoError(t, Save(cfg, path))
	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Seed, loaded.Seed)
	assert.Equal(t, cfg.Patterns, loaded.Patterns)
	assert.Equal(t, cfg.ClusterDistribution, loaded.ClusterDistribution)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("NCLUSTGEN_DIMS", "3")
	t.Setenv("NCLUSTGEN_SEED", "42")
	t.Setenv("NCLUSTGEN_DSTYPE", "symbolic")
	t.Setenv("NCLUSTGEN_LOG_LEVEL", "debug")
	t.Setenv("NCLUSTGEN_CHUNK_DIVISOR", "4")
	t.Setenv("NCLUSTGEN_GRAPH_BACKEND", "generic")
	t.Setenv("NCLUSTGEN_STORAGE_IN_MEMORY", "yes")
	t.Setenv("NCLUSTGEN_OUTPUT_COMPRESS", "1")

	cfg := LoadFromEnv()
	assert.Equal(t, Tricluster, cfg.Dims)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, Symbolic, cfg.ValueKind)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 4, cfg.Materialize.ChunkDivisor)
	assert.Equal(t, "generic", cfg.Graph.Backend)
	assert.True(t, cfg.Storage.InMemory)
	assert.True(t, cfg.Output.Compress)
}

func TestConfig_String(t *testing.T) {
	s := DefaultConfig(Bicluster).String()
	assert.Contains(t, s, "Dims: 2")
	assert.Contains(t, s, "NO_OVERLAPPING")
}
