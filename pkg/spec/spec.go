// Package spec translates a configuration into the call contract of a
// generation engine.
//
// The builder is pure: it resolves every enumerator, checks per-axis counts
// against the dimensionality and produces a Spec value that an engine.Engine
// consumes. Nothing is deferred to the engine call, so an unknown pattern or
// distribution name fails here with config.ErrInvalidConfig.
//
// Example:
//
//	cfg := config.DefaultConfig(config.Tricluster)
//	s, err := spec.Build(cfg)
//	if err != nil {
//		return err
//	}
//	res, err := eng.Generate(ctx, s, engine.Shape{Rows: 10, Cols: 8, Contexts: 3}, 2)
package spec

import (
	"fmt"

	"github.com/orneryd/nclustgen/pkg/config"
)

// Version is the data-contract version stamped on every Spec. Engines may
// reject specifications carrying a version they do not understand.
const Version = "1"

// Spec is the dimensionality-independent engine call contract.
type Spec struct {
	Version    string
	Dims       config.Dimensionality
	ValueKind  config.ValueKind
	Background Background
	Patterns   []Pattern
	Structure  Structure
	Overlap    Overlap
	Values     Values
	Quality    Quality
	// Seed is forwarded verbatim; negative means the engine chooses.
	Seed int64
}

// Background is the resolved background distribution.
type Background struct {
	Kind          config.BackgroundKind
	Mean          float64
	Sdev          float64
	Probabilities []float64
}

// Pattern is one planted pattern: a type per axis plus the shared time profile.
type Pattern struct {
	Types       []config.PatternType
	TimeProfile config.TimeProfile
}

// AxisSettings drives cluster sizes along one axis.
// For UNIFORM, P1 and P2 are min and max; for NORMAL, mean and sdev.
type AxisSettings struct {
	Distribution config.Distribution
	P1, P2       float64
}

// Structure holds per-axis size settings and the contiguity constraint.
type Structure struct {
	Axes       []AxisSettings
	Contiguity config.Contiguity
}

// Overlap is the resolved overlapping policy.
type Overlap struct {
	Plaid               config.PlaidCoherency
	ClustersFraction    float64
	MaxClustersPerArea  int
	MaxElementsFraction float64
	// AxisFractions has one entry per axis.
	AxisFractions []float64
}

// Values describes the value domain handed to the engine.
type Values struct {
	Min     float64
	Max     float64
	Real    bool
	Symbols []string

	// MissingToken is how the engine serializes a missing value.
	MissingToken string
}

// Quality carries noise, error and missing-value rates.
type Quality struct {
	Noise             config.Perturbation
	Errors            config.Perturbation
	MissingBackground float64
	MissingClusters   float64
}

// Axes returns the axis names of the specification.
func (s *Spec) Axes() []string {
	return s.Dims.Axes()
}

// Build produces the engine call contract for cfg.
//
// The configuration is validated first. Contiguity CONTEXTS has no meaning
// for two axes and is normalized to NONE.
func Build(cfg *config.Config) (*Spec, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil configuration", config.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	kind, _ := config.ParseValueKind(string(cfg.ValueKind))
	s := &Spec{
		Version:   Version,
		Dims:      cfg.Dims,
		ValueKind: kind,
		Seed:      cfg.Seed,
	}

	var err error
	if s.Background, err = buildBackground(cfg); err != nil {
		return nil, err
	}
	if s.Patterns, err = buildPatterns(cfg); err != nil {
		return nil, err
	}
	if s.Structure, err = buildStructure(cfg); err != nil {
		return nil, err
	}
	if s.Overlap, err = buildOverlap(cfg); err != nil {
		return nil, err
	}

	s.Values = Values{
		Min:          cfg.Values.Min,
		Max:          cfg.Values.Max,
		Real:         cfg.Values.Real,
		MissingToken: cfg.Values.MissingToken,
	}
	if kind == config.Symbolic {
		s.Values.Symbols = append([]string(nil), cfg.Values.Alphabet()...)
	}
	s.Quality = Quality{
		Noise:             cfg.Quality.Noise,
		Errors:            cfg.Quality.Errors,
		MissingBackground: cfg.Quality.MissingBackground,
		MissingClusters:   cfg.Quality.MissingClusters,
	}

	return s, nil
}

func buildBackground(cfg *config.Config) (Background, error) {
	kind, err := config.ParseBackgroundKind(string(cfg.Background.Kind))
	if err != nil {
		return Background{}, err
	}
	bg := Background{Kind: kind}
	switch kind {
	case config.BackgroundNormal:
		bg.Mean, bg.Sdev = cfg.Background.Mean, cfg.Background.Sdev
	case config.BackgroundDiscrete:
		bg.Probabilities = append([]float64(nil), cfg.Background.Probabilities...)
	}
	return bg, nil
}

func buildPatterns(cfg *config.Config) ([]Pattern, error) {
	profile, err := config.ParseTimeProfile(string(cfg.TimeProfile))
	if err != nil {
		return nil, err
	}

	n := int(cfg.Dims)
	patterns := make([]Pattern, 0, len(cfg.Patterns))
	for i, tuple := range cfg.Patterns {
		if len(tuple) != n {
			return nil, fmt.Errorf("%w: pattern %d has %d types, want %d",
				config.ErrInvalidConfig, i, len(tuple), n)
		}
		p := Pattern{Types: make([]config.PatternType, n), TimeProfile: profile}
		for axis, name := range tuple {
			if p.Types[axis], err = config.ParsePatternType(string(name)); err != nil {
				return nil, err
			}
		}
		patterns = append(patterns, p)
	}
	return patterns, nil
}

func buildStructure(cfg *config.Config) (Structure, error) {
	n := int(cfg.Dims)
	if len(cfg.ClusterDistribution) != n {
		return Structure{}, fmt.Errorf("%w: cluster_distribution has %d axes, want %d",
			config.ErrInvalidConfig, len(cfg.ClusterDistribution), n)
	}

	st := Structure{Axes: make([]AxisSettings, n)}
	for i, d := range cfg.ClusterDistribution {
		kind, err := config.ParseDistribution(string(d.Kind))
		if err != nil {
			return Structure{}, err
		}
		p1, p2 := d.Params()
		st.Axes[i] = AxisSettings{Distribution: kind, P1: p1, P2: p2}
	}

	contiguity, err := config.ParseContiguity(string(cfg.Contiguity))
	if err != nil {
		return Structure{}, err
	}
	if contiguity == config.ContiguityContexts && cfg.Dims == config.Bicluster {
		contiguity = config.ContiguityNone
	}
	st.Contiguity = contiguity
	return st, nil
}

func buildOverlap(cfg *config.Config) (Overlap, error) {
	plaid, err := config.ParsePlaidCoherency(string(cfg.Overlap.Plaid))
	if err != nil {
		return Overlap{}, err
	}
	if len(cfg.Overlap.AxisFractions) != int(cfg.Dims) {
		return Overlap{}, fmt.Errorf("%w: overlap.axis_fractions has %d entries, want %d",
			config.ErrInvalidConfig, len(cfg.Overlap.AxisFractions), cfg.Dims)
	}
	return Overlap{
		Plaid:               plaid,
		ClustersFraction:    cfg.Overlap.ClustersFraction,
		MaxClustersPerArea:  cfg.Overlap.MaxClustersPerArea,
		MaxElementsFraction: cfg.Overlap.MaxElementsFraction,
		AxisFractions:       append([]float64(nil), cfg.Overlap.AxisFractions...),
	}, nil
}
