// Package decode parses the engine's tab-delimited row serialization into
// float64 values.
//
// Each serialized line holds one row: a leading row index, then the row's
// values separated by tabs. The block ends with an empty line. Tokens are
// read according to the dataset's value kind:
//
//   - NUMERIC: the token is parsed as a real number
//   - SYMBOLIC: the token is looked up in the alphabet and decoded to its
//     position (a token that is itself an integer position is accepted too)
//   - the missing-value token decodes to NaN in either mode
//
// A Decoder holds no mutable state and is safe for concurrent use.
package decode

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/orneryd/nclustgen/pkg/config"
	"github.com/orneryd/nclustgen/pkg/pool"
	"github.com/orneryd/nclustgen/pkg/spec"
)

// ErrMalformed is returned for serialized text that does not match the
// expected layout or holds tokens that cannot be decoded.
var ErrMalformed = errors.New("decode: malformed serialization")

// DefaultMissingToken is used when no missing token is configured.
const DefaultMissingToken = "?"

// Decoder turns serialized tokens into values.
type Decoder struct {
	kind    config.ValueKind
	missing string
	symbols map[string]int
}

// New returns a decoder for the given value kind. symbols is the alphabet of
// a SYMBOLIC dataset and is ignored for NUMERIC data. An empty missing token
// selects DefaultMissingToken.
func New(kind config.ValueKind, symbols []string, missing string) *Decoder {
	if missing == "" {
		missing = DefaultMissingToken
	}
	d := &Decoder{kind: kind, missing: missing}
	if kind == config.Symbolic {
		d.symbols = make(map[string]int, len(symbols))
		for i, s := range symbols {
			d.symbols[s] = i
		}
	}
	return d
}

// ForSpec returns the decoder matching a built specification.
func ForSpec(s *spec.Spec) *Decoder {
	return New(s.ValueKind, s.Values.Symbols, s.Values.MissingToken)
}

// Kind returns the value kind the decoder was built for.
func (d *Decoder) Kind() config.ValueKind {
	return d.kind
}

// Token decodes a single token.
func (d *Decoder) Token(tok string) (float64, error) {
	tok = strings.TrimSpace(tok)
	if tok == d.missing {
		return math.NaN(), nil
	}

	if d.kind == config.Symbolic {
		if i, ok := d.symbols[tok]; ok {
			return float64(i), nil
		}
		if i, err := strconv.Atoi(tok); err == nil && i >= 0 && (len(d.symbols) == 0 || i < len(d.symbols)) {
			return float64(i), nil
		}
		return 0, fmt.Errorf("%w: unknown symbol %q", ErrMalformed, tok)
	}

	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid number %q", ErrMalformed, tok)
	}
	return v, nil
}

// Row decodes one serialized line, dropping the leading index column.
func (d *Decoder) Row(line string) ([]float64, error) {
	return d.AppendRow(nil, line)
}

// AppendRow decodes one serialized line and appends its values to dst.
func (d *Decoder) AppendRow(dst []float64, line string) ([]float64, error) {
	fields := pool.GetStringSlice()
	defer pool.PutStringSlice(fields)

	fields = splitFields(fields, strings.TrimRight(line, "\r"))
	if len(fields) == 0 {
		return dst, fmt.Errorf("%w: empty row", ErrMalformed)
	}
	for _, tok := range fields[1:] {
		v, err := d.Token(tok)
		if err != nil {
			return dst, err
		}
		dst = append(dst, v)
	}
	return dst, nil
}

// Lines splits a serialized block into row lines, dropping the trailing
// empty line. The returned slice references text.
func Lines(text string) []string {
	lines := strings.Split(text, "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func splitFields(dst []string, line string) []string {
	for {
		field, rest, found := strings.Cut(line, "\t")
		dst = append(dst, field)
		if !found {
			return dst
		}
		line = rest
	}
}
