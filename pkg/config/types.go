package config

import (
	"fmt"
	"strings"
)

// Dimensionality is the number of axes of a generated dataset.
//
// Two axes produce biclusters over (rows, cols); three axes produce
// triclusters over (rows, cols, contexts).
type Dimensionality int

const (
	// Bicluster datasets have rows and columns.
	Bicluster Dimensionality = 2
	// Tricluster datasets add a context axis.
	Tricluster Dimensionality = 3
)

// axisNames lists axis names in the order used by cluster coordinates.
var axisNames = [...]string{"row", "col", "ctx"}

// Axes returns the axis names for this dimensionality ("row", "col"[, "ctx"]).
func (d Dimensionality) Axes() []string {
	if d != Bicluster && d != Tricluster {
		return nil
	}
	return axisNames[:d]
}

// Valid reports whether d is 2 or 3.
func (d Dimensionality) Valid() bool {
	return d == Bicluster || d == Tricluster
}

// ValueKind selects numeric or symbolic dataset values.
type ValueKind string

const (
	Numeric  ValueKind = "NUMERIC"
	Symbolic ValueKind = "SYMBOLIC"
)

// BackgroundKind is the distribution that fills cells outside planted clusters.
type BackgroundKind string

const (
	BackgroundUniform  BackgroundKind = "UNIFORM"
	BackgroundNormal   BackgroundKind = "NORMAL"
	BackgroundDiscrete BackgroundKind = "DISCRETE"
	BackgroundMissing  BackgroundKind = "MISSING"
)

// Distribution drives cluster sizes along one axis.
type Distribution string

const (
	DistributionUniform Distribution = "UNIFORM"
	DistributionNormal  Distribution = "NORMAL"
)

// PatternType is the value relationship imposed inside a cluster along one axis.
type PatternType string

const (
	PatternConstant        PatternType = "CONSTANT"
	PatternAdditive        PatternType = "ADDITIVE"
	PatternMultiplicative  PatternType = "MULTIPLICATIVE"
	PatternOrderPreserving PatternType = "ORDER_PRESERVING"
	PatternNone            PatternType = "NONE"
)

// TimeProfile constrains the ordering of one designated axis within a pattern.
// The empty value means no profile.
type TimeProfile string

const (
	TimeProfileNone                  TimeProfile = ""
	TimeProfileRandom                TimeProfile = "RANDOM"
	TimeProfileMonotonicallyIncrease TimeProfile = "MONONICALLY_INCREASING"
	TimeProfileMonotonicallyDecrease TimeProfile = "MONONICALLY_DECREASING"
)

// Contiguity forces cluster indices along an axis to form a contiguous run.
type Contiguity string

const (
	ContiguityNone     Contiguity = "NONE"
	ContiguityColumns  Contiguity = "COLUMNS"
	ContiguityContexts Contiguity = "CONTEXTS"
)

// PlaidCoherency governs how overlapping clusters combine their values.
type PlaidCoherency string

const (
	PlaidAdditive       PlaidCoherency = "ADDITIVE"
	PlaidMultiplicative PlaidCoherency = "MULTIPLICATIVE"
	PlaidInterpoled     PlaidCoherency = "INTERPOLED"
	PlaidNone           PlaidCoherency = "NONE"
	PlaidNoOverlapping  PlaidCoherency = "NO_OVERLAPPING"
)

// normalize upper-cases and trims an enumerator token.
func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func unknown(kind, value string) error {
	return fmt.Errorf("%w: unknown %s %q", ErrInvalidConfig, kind, value)
}

// ParseValueKind parses NUMERIC or SYMBOLIC (case-insensitive).
func ParseValueKind(s string) (ValueKind, error) {
	switch v := ValueKind(normalize(s)); v {
	case Numeric, Symbolic:
		return v, nil
	}
	return "", unknown("value kind", s)
}

// ParseBackgroundKind parses a background distribution name.
func ParseBackgroundKind(s string) (BackgroundKind, error) {
	switch v := BackgroundKind(normalize(s)); v {
	case BackgroundUniform, BackgroundNormal, BackgroundDiscrete, BackgroundMissing:
		return v, nil
	}
	return "", unknown("background", s)
}

// ParseDistribution parses a cluster-size distribution name.
func ParseDistribution(s string) (Distribution, error) {
	switch v := Distribution(normalize(s)); v {
	case DistributionUniform, DistributionNormal:
		return v, nil
	}
	return "", unknown("distribution", s)
}

// ParsePatternType parses a per-axis pattern name.
func ParsePatternType(s string) (PatternType, error) {
	switch v := PatternType(normalize(s)); v {
	case PatternConstant, PatternAdditive, PatternMultiplicative, PatternOrderPreserving, PatternNone:
		return v, nil
	}
	return "", unknown("pattern type", s)
}

// ParseTimeProfile parses a time profile. An empty string yields TimeProfileNone.
func ParseTimeProfile(s string) (TimeProfile, error) {
	switch v := TimeProfile(normalize(s)); v {
	case TimeProfileNone, TimeProfileRandom, TimeProfileMonotonicallyIncrease, TimeProfileMonotonicallyDecrease:
		return v, nil
	}
	return "", unknown("time profile", s)
}

// ParseContiguity parses a contiguity setting. An empty string yields ContiguityNone.
func ParseContiguity(s string) (Contiguity, error) {
	v := Contiguity(normalize(s))
	switch v {
	case "":
		return ContiguityNone, nil
	case ContiguityNone, ContiguityColumns, ContiguityContexts:
		return v, nil
	}
	return "", unknown("contiguity", s)
}

// ParsePlaidCoherency parses an overlap coherency policy.
func ParsePlaidCoherency(s string) (PlaidCoherency, error) {
	switch v := PlaidCoherency(normalize(s)); v {
	case PlaidAdditive, PlaidMultiplicative, PlaidInterpoled, PlaidNone, PlaidNoOverlapping:
		return v, nil
	}
	return "", unknown("plaid coherency", s)
}
