package persist

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"

	"github.com/orneryd/nclustgen/pkg/pool"
)

// countingWriter counts bytes written through it.
type countingWriter struct{ n int64 }

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}

// writeFile creates path and streams fill into it, optionally through a
// zstd encoder. Size and digest cover the bytes on disk.
func writeFile(path string, compress bool, fill func(w io.Writer) error) (entry FileEntry, err error) {
	f, err := os.Create(path)
	if err != nil {
		return FileEntry{}, fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", path, cerr)
		}
	}()

	h, err := blake2b.New256(nil)
	if err != nil {
		return FileEntry{}, err
	}
	counter := &countingWriter{}
	sink := io.MultiWriter(f, h, counter)

	var enc *zstd.Encoder
	out := sink
	if compress {
		enc, err = zstd.NewWriter(sink)
		if err != nil {
			return FileEntry{}, fmt.Errorf("failed to create compressor: %w", err)
		}
		out = enc
	}

	bw := bufio.NewWriter(out)
	if err := fill(bw); err != nil {
		if enc != nil {
			_ = enc.Close()
		}
		return FileEntry{}, fmt.Errorf("writing %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		return FileEntry{}, fmt.Errorf("writing %s: %w", path, err)
	}
	if enc != nil {
		if err := enc.Close(); err != nil {
			return FileEntry{}, fmt.Errorf("compressing %s: %w", path, err)
		}
	}

	return FileEntry{Bytes: counter.n, BLAKE2b: hex.EncodeToString(h.Sum(nil))}, nil
}

func writeString(s string) func(io.Writer) error {
	return func(w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	}
}

func writeJSON(v any) func(io.Writer) error {
	return func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}

// writeSummary writes one line per cluster:
//
//	Cluster 1: rows=[0 1 2] cols=[4 5] contexts=[1]
func writeSummary(records []ClusterRecord) func(io.Writer) error {
	return func(w io.Writer) error {
		buf := pool.GetByteBuffer()
		defer func() { pool.PutByteBuffer(buf) }()

		for _, r := range records {
			buf = buf[:0]
			buf = append(buf, "Cluster "...)
			buf = strconv.AppendInt(buf, int64(r.ID), 10)
			buf = append(buf, ':')
			buf = appendAxis(buf, "rows", r.Rows)
			buf = appendAxis(buf, "cols", r.Cols)
			if r.Contexts != nil {
				buf = appendAxis(buf, "contexts", r.Contexts)
			}
			buf = append(buf, '\n')
			if _, err := w.Write(buf); err != nil {
				return err
			}
		}
		return nil
	}
}

func appendAxis(buf []byte, name string, idx []int) []byte {
	buf = append(buf, ' ')
	buf = append(buf, name...)
	buf = append(buf, "=["...)
	for k, i := range idx {
		if k > 0 {
			buf = append(buf, ' ')
		}
		buf = strconv.AppendInt(buf, int64(i), 10)
	}
	return append(buf, ']')
}

func digestFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", 0, err
	}
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// ReadDataset returns the decompressed contents of a dataset file.
func ReadDataset(dir string, f FileEntry) (string, error) {
	file, err := os.Open(filepath.Join(dir, f.Name))
	if err != nil {
		return "", err
	}
	defer file.Close()

	var r io.Reader = file
	if strings.HasSuffix(f.Name, ".zst") {
		dec, err := zstd.NewReader(file)
		if err != nil {
			return "", fmt.Errorf("failed to create decompressor: %w", err)
		}
		defer dec.Close()
		r = dec
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
