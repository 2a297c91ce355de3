package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/nclustgen/pkg/config"
	"github.com/orneryd/nclustgen/pkg/persist"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "nclustgen v"+version)
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tri.yaml")
	_, err := run(t, "init", path, "--dims", "3")
	require.NoError(t, err)

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.Tricluster, cfg.Dims)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	out, err := run(t, "init", bad, "--dims", "4")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.NotContains(t, out, "Wrote")
	assert.NoFileExists(t, bad)
}

func TestGenerate(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "generate",
		"--dims", "3", "--rows", "10", "--cols", "8", "--contexts", "3",
		"-n", "2", "--seed", "3", "--mode", "sparse",
		"--graph", "networkx", "--stamp",
		"--output", dir, "--name", "cli", "--single-file", "false",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "with 2 clusters")
	assert.Contains(t, out, "Sparse tensor [3 10 8]")
	assert.Contains(t, out, "row-col:80")
	assert.Contains(t, out, "cluster 1:")

	m, err := persist.ReadManifest(dir, "cli")
	require.NoError(t, err)
	assert.Len(t, m.Datasets(), 10)
	assert.NoError(t, persist.Verify(dir, m))

	out, err = run(t, "inspect", dir, "cli")
	require.NoError(t, err)
	assert.Contains(t, out, "shape [3 10 8], 2 clusters, 10 dataset files, 10 rows")
}

func TestInspect_Tampered(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "generate", "--rows", "6", "--cols", "4", "--seed", "1",
		"--output", dir, "--name", "two", "--compress")
	require.NoError(t, err)

	out, err := run(t, "inspect", dir, "two")
	require.NoError(t, err)
	assert.Contains(t, out, "shape [6 4], 1 clusters, 1 dataset files, 6 rows")

	m, err := persist.ReadManifest(dir, "two")
	require.NoError(t, err)
	path := filepath.Join(dir, m.Datasets()[0].Name)
	require.NoError(t, os.WriteFile(path, []byte("0\t1\n"), 0o644))

	_, err = run(t, "inspect", dir, "two")
	assert.ErrorIs(t, err, persist.ErrDigestMismatch)

	_, err = run(t, "inspect", dir, "missing")
	assert.Error(t, err)
}

func TestGenerate_Errors(t *testing.T) {
	_, err := run(t, "generate", "--graph", "igraph", "--rows", "4", "--cols", "4")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = run(t, "generate", "--mode", "lazy")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = run(t, "generate", "--single-file", "maybe")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	out, err := run(t, "generate", "--dims", "4", "--rows", "5", "--cols", "4")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.NotContains(t, out, "Dense tensor")
}
