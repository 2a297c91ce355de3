// Package persist writes a generated dataset and its planted clusters to
// disk.
//
// A save produces, for a base name N:
//
//	N_dataset.tsv            one file, or N_dataset_0.tsv, N_dataset_1.tsv, ...
//	N_cluster_data.json      planted clusters, 1-based ids
//	N_cluster_data.txt       the same clusters, one line each
//	N_manifest.json          shape, cluster count and a BLAKE2b-256 digest per file
//
// Dataset files hold the row serialization of the Matrix Result verbatim
// and, with compression enabled, are zstd streams named *.tsv.zst. Split
// files follow the same row chunk plan as the sparse materializer.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/orneryd/nclustgen/pkg/config"
	"github.com/orneryd/nclustgen/pkg/engine"
	"github.com/orneryd/nclustgen/pkg/materialize"
)

// ManifestVersion is written into every manifest.
const ManifestVersion = "1"

// DefaultSplitAboveBytes is the dense size above which a save without an
// explicit SingleFile choice is split into row chunks.
const DefaultSplitAboveBytes int64 = 512 << 20

var (
	// ErrDigestMismatch is returned by Verify when a file changed after it
	// was saved.
	ErrDigestMismatch = errors.New("persist: digest mismatch")
	// ErrNoName is returned when the base file name is empty.
	ErrNoName = errors.New("persist: file name is required")
)

// Saver persists a Matrix Result. The result must stay valid until Save
// returns.
type Saver interface {
	Save(ctx context.Context, res engine.Result, dir, name string) (*Manifest, error)
}

// File kinds recorded in the manifest.
const (
	KindDataset  = "dataset"
	KindClusters = "clusters"
	KindSummary  = "summary"
)

// FileEntry describes one written file.
type FileEntry struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Bytes   int64  `json:"bytes"`
	BLAKE2b string `json:"blake2b"`
	// Rows is the row span held by a dataset file.
	Rows *materialize.Span `json:"rows,omitempty"`
}

// Manifest describes a saved dataset.
type Manifest struct {
	Version    string                `json:"version"`
	Dims       config.Dimensionality `json:"dims"`
	Shape      []int                 `json:"shape"`
	Clusters   int                   `json:"clusters"`
	SingleFile bool                  `json:"single_file"`
	Compressed bool                  `json:"compressed"`
	Files      []FileEntry           `json:"files"`
}

// Datasets returns the dataset entries in row order.
func (m *Manifest) Datasets() []FileEntry {
	var out []FileEntry
	for _, f := range m.Files {
		if f.Kind == KindDataset {
			out = append(out, f)
		}
	}
	return out
}

// Options controls a FileSaver.
type Options struct {
	// SingleFile forces one dataset file (true) or split files (false).
	// nil splits only when the dense size exceeds SplitAboveBytes.
	SingleFile *bool
	// Compress writes zstd-compressed dataset files.
	Compress bool
	// ChunkDivisor drives the split row plan; see materialize.Plan.
	ChunkDivisor int
	// SplitAboveBytes is the automatic split threshold; 0 uses
	// DefaultSplitAboveBytes.
	SplitAboveBytes int64
}

// OptionsFrom builds Options from the output and materialize configuration.
func OptionsFrom(out config.OutputConfig, m config.MaterializeConfig) Options {
	return Options{
		SingleFile:      out.SingleFile,
		Compress:        out.Compress,
		ChunkDivisor:    m.ChunkDivisor,
		SplitAboveBytes: m.DenseLimitBytes(),
	}
}

// FileSaver writes datasets to the local filesystem.
type FileSaver struct {
	opts Options
}

// NewFileSaver creates a FileSaver.
func NewFileSaver(opts Options) *FileSaver {
	if opts.ChunkDivisor <= 0 {
		opts.ChunkDivisor = materialize.DefaultChunkDivisor
	}
	if opts.SplitAboveBytes <= 0 {
		opts.SplitAboveBytes = DefaultSplitAboveBytes
	}
	return &FileSaver{opts: opts}
}

var _ Saver = (*FileSaver)(nil)

// SingleFile reports whether res is saved as one dataset file.
func (s *FileSaver) SingleFile(res engine.Result) bool {
	if s.opts.SingleFile != nil {
		return *s.opts.SingleFile
	}
	return engine.ShapeOf(res).Cells()*8 <= s.opts.SplitAboveBytes
}

// Save writes res under dir using the base file name. dir is created if
// needed; an empty dir means the working directory.
func (s *FileSaver) Save(ctx context.Context, res engine.Result, dir, name string) (*Manifest, error) {
	if name == "" {
		return nil, ErrNoName
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	single := s.SingleFile(res)
	m := &Manifest{
		Version:    ManifestVersion,
		Dims:       res.Dims(),
		Shape:      materialize.Shape(res),
		Clusters:   len(res.Clusters()),
		SingleFile: single,
		Compressed: s.opts.Compress,
	}

	spans := []materialize.Span{{Start: 0, Count: res.Rows()}}
	if !single {
		spans = materialize.Plan(res.Rows(), s.opts.ChunkDivisor)
	}
	ext := ".tsv"
	if s.opts.Compress {
		ext += ".zst"
	}

	for k, span := range spans {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		file := name + "_dataset" + ext
		if !single {
			file = fmt.Sprintf("%s_dataset_%d%s", name, k, ext)
		}
		text, err := res.SerializeRows(span.Count, span.Start, false)
		if err != nil {
			return nil, fmt.Errorf("serializing rows %d-%d: %w", span.Start, span.End(), err)
		}
		entry, err := writeFile(filepath.Join(dir, file), s.opts.Compress, writeString(text))
		if err != nil {
			return nil, err
		}
		entry.Name, entry.Kind = file, KindDataset
		span := span
		entry.Rows = &span
		m.Files = append(m.Files, entry)
	}

	records := clusterRecords(res.Clusters())
	jsonFile := name + "_cluster_data.json"
	entry, err := writeFile(filepath.Join(dir, jsonFile), false, writeJSON(records))
	if err != nil {
		return nil, err
	}
	entry.Name, entry.Kind = jsonFile, KindClusters
	m.Files = append(m.Files, entry)

	txtFile := name + "_cluster_data.txt"
	entry, err = writeFile(filepath.Join(dir, txtFile), false, writeSummary(records))
	if err != nil {
		return nil, err
	}
	entry.Name, entry.Kind = txtFile, KindSummary
	m.Files = append(m.Files, entry)

	if _, err := writeFile(filepath.Join(dir, ManifestName(name)), false, writeJSON(m)); err != nil {
		return nil, err
	}
	return m, nil
}

// ManifestName returns the manifest file name for a base name.
func ManifestName(name string) string {
	return name + "_manifest.json"
}

// ReadManifest loads the manifest of a saved dataset.
func ReadManifest(dir, name string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName(name)))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return &m, nil
}

// Verify recomputes the digest of every file listed in m.
func Verify(dir string, m *Manifest) error {
	for _, f := range m.Files {
		sum, size, err := digestFile(filepath.Join(dir, f.Name))
		if err != nil {
			return err
		}
		if sum != f.BLAKE2b || size != f.Bytes {
			return fmt.Errorf("%w: %s", ErrDigestMismatch, f.Name)
		}
	}
	return nil
}

// ClusterRecord is the saved form of one planted cluster.
type ClusterRecord struct {
	ID       int   `json:"id"`
	Rows     []int `json:"rows"`
	Cols     []int `json:"cols"`
	Contexts []int `json:"contexts,omitempty"`
}

func clusterRecords(clusters []engine.Cluster) []ClusterRecord {
	out := make([]ClusterRecord, len(clusters))
	for k, c := range clusters {
		out[k] = ClusterRecord{ID: k + 1, Rows: c.Rows(), Cols: c.Cols(), Contexts: c.Contexts()}
	}
	return out
}

// ReadClusters loads the cluster records of a saved dataset.
func ReadClusters(dir, name string) ([]ClusterRecord, error) {
	data, err := os.ReadFile(filepath.Join(dir, name+"_cluster_data.json"))
	if err != nil {
		return nil, err
	}
	var out []ClusterRecord
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parsing clusters: %w", err)
	}
	return out, nil
}
