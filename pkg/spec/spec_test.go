package spec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/nclustgen/pkg/config"
)

func TestBuild_Bicluster(t *testing.T) {
	cfg := config.DefaultConfig(config.Bicluster)
	cfg.Seed = 5
	cfg.TimeProfile = "random"

	s, err := Build(cfg)
	require.NoError(t, err)

	assert.Equal(t, Version, s.Version)
	assert.Equal(t, config.Bicluster, s.Dims)
	assert.Equal(t, []string{"row", "col"}, s.Axes())
	assert.Equal(t, int64(5), s.Seed)
	require.Len(t, s.Patterns, 2)
	assert.Equal(t, []config.PatternType{config.PatternConstant, config.PatternNone}, s.Patterns[1].Types)
	assert.Equal(t, config.TimeProfileRandom, s.Patterns[0].TimeProfile)
	require.Len(t, s.Structure.Axes, 2)
	assert.Equal(t, AxisSettings{Distribution: config.DistributionUniform, P1: 4, P2: 4}, s.Structure.Axes[0])
	assert.Len(t, s.Overlap.AxisFractions, 2)
	assert.Nil(t, s.Values.Symbols)
}

func TestBuild_Tricluster(t *testing.T) {
	cfg := config.DefaultConfig(config.Tricluster)
	cfg.ClusterDistribution[2] = config.AxisDistribution{Kind: "normal", Mean: 2, Sdev: 0.5}
	cfg.Contiguity = config.ContiguityContexts
	cfg.Background = config.Background{Kind: config.BackgroundNormal, Mean: 1, Sdev: 2}

	s, err := Build(cfg)
	require.NoError(t, err)

	assert.Len(t, s.Structure.Axes, 3)
	assert.Equal(t, AxisSettings{Distribution: config.DistributionNormal, P1: 2, P2: 0.5}, s.Structure.Axes[2])
	assert.Equal(t, config.ContiguityContexts, s.Structure.Contiguity)
	assert.Len(t, s.Overlap.AxisFractions, 3)
	assert.Equal(t, Background{Kind: config.BackgroundNormal, Mean: 1, Sdev: 2}, s.Background)
}

func TestBuild_ContextsContiguityOnTwoAxes(t *testing.T) {
	cfg := config.DefaultConfig(config.Bicluster)
	cfg.Contiguity = config.ContiguityContexts

	s, err := Build(cfg)
	require.NoError(t, err)
	assert.Equal(t, config.ContiguityNone, s.Structure.Contiguity)

	cfg.Contiguity = config.ContiguityColumns
	s, err = Build(cfg)
	require.NoError(t, err)
	assert.Equal(t, config.ContiguityColumns, s.Structure.Contiguity)
}

func TestBuild_Symbolic(t *testing.T) {
	cfg := config.DefaultConfig(config.Bicluster)
	cfg.ValueKind = "symbolic"
	cfg.Values.Symbols = []string{"a", "b", "c"}
	cfg.Background = config.Background{Kind: config.BackgroundDiscrete, Probabilities: []float64{0.5, 0.25, 0.25}}

	s, err := Build(cfg)
	require.NoError(t, err)
	assert.Equal(t, config.Symbolic, s.ValueKind)
	assert.Equal(t, []string{"a", "b", "c"}, s.Values.Symbols)
	assert.Equal(t, []float64{0.5, 0.25, 0.25}, s.Background.Probabilities)

	// The spec owns its slices.
	cfg.Values.Symbols[0] = "z"
	assert.Equal(t, "a", s.Values.Symbols[0])
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *config.Config)
	}{
		{"unknown pattern", func(c *config.Config) { c.Patterns[0][0] = "WAVE" }},
		{"pattern length", func(c *config.Config) { c.Patterns[1] = append(c.Patterns[1], config.PatternNone) }},
		{"unknown distribution", func(c *config.Config) { c.ClusterDistribution[1].Kind = "GAMMA" }},
		{"unknown plaid", func(c *config.Config) { c.Overlap.Plaid = "AVERAGE" }},
		{"unknown background", func(c *config.Config) { c.Background.Kind = "CAUCHY" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig(config.Bicluster)
			tt.mutate(cfg)
			_, err := Build(cfg)
			assert.ErrorIs(t, err, config.ErrInvalidConfig)
		})
	}

	_, err := Build(nil)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}
