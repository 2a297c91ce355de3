// Package main provides the nclustgen CLI entry point.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/orneryd/nclustgen/pkg/config"
	"github.com/orneryd/nclustgen/pkg/decode"
	"github.com/orneryd/nclustgen/pkg/engine"
	"github.com/orneryd/nclustgen/pkg/gpu"
	"github.com/orneryd/nclustgen/pkg/graph"
	"github.com/orneryd/nclustgen/pkg/nclustgen"
	"github.com/orneryd/nclustgen/pkg/persist"
	"github.com/orneryd/nclustgen/pkg/storage"
	"github.com/orneryd/nclustgen/pkg/tensor"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nclustgen",
		Short: "nclustgen - synthetic bicluster and tricluster dataset generator",
		Long: `nclustgen plants biclusters and triclusters in synthetic datasets and
turns them into dense or sparse tensors, attributed graphs and files.

Two-axis datasets are rows x cols; three-axis datasets add contexts.
Graphs are bipartite (row/col) or tripartite (row/col/ctx).`,
		SilenceUsage: true,
	}

	// Version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "nclustgen v%s (%s)\n", version, commit)
		},
	})

	// Init command
	initCmd := &cobra.Command{
		Use:   "init [file]",
		Short: "Write a default configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runInit,
	}
	initCmd.Flags().Int("dims", 2, "Dimensionality (2 or 3)")
	rootCmd.AddCommand(initCmd)

	// Generate command
	genCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a dataset with planted clusters",
		RunE:  runGenerate,
	}
	genCmd.Flags().StringP("config", "c", "", "Configuration file (.yaml, .yml or .hcl)")
	genCmd.Flags().Int("dims", 2, "Dimensionality when no configuration file is given")
	genCmd.Flags().Int("rows", 100, "Number of rows")
	genCmd.Flags().Int("cols", 50, "Number of columns")
	genCmd.Flags().Int("contexts", 0, "Number of contexts (three-axis only)")
	genCmd.Flags().IntP("clusters", "n", 1, "Number of planted clusters")
	genCmd.Flags().Int64("seed", -1, "Engine seed (-1 for random)")
	genCmd.Flags().String("mode", "auto", "Materialization: dense, sparse or auto")
	genCmd.Flags().String("graph", "", "Build a graph: tensor or generic (empty to skip)")
	genCmd.Flags().String("device", "", "Graph placement: local or accelerated[:n]")
	genCmd.Flags().Bool("multigraph", false, "Keep one generic edge per cell")
	genCmd.Flags().Bool("stamp", false, "Stamp planted cluster ids onto graph nodes")
	genCmd.Flags().String("storage-dir", "", "BadgerDB directory for generic graphs")
	genCmd.Flags().String("output", "", "Save the dataset to this directory")
	genCmd.Flags().String("name", "", "Base file name for saved files")
	genCmd.Flags().String("single-file", "auto", "Single dataset file: true, false or auto")
	genCmd.Flags().Bool("compress", false, "zstd-compress dataset files")
	rootCmd.AddCommand(genCmd)

	// Inspect command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "inspect <dir> <name>",
		Short: "Verify a saved dataset against its manifest",
		Args:  cobra.ExactArgs(2),
		RunE:  runInspect,
	})

	return rootCmd
}

// dimsFlag reads --dims, rejecting anything but 2 and 3.
func dimsFlag(cmd *cobra.Command) (config.Dimensionality, error) {
	n, _ := cmd.Flags().GetInt("dims")
	dims := config.Dimensionality(n)
	if !dims.Valid() {
		return 0, fmt.Errorf("%w: --dims must be 2 or 3, got %d", config.ErrInvalidConfig, n)
	}
	return dims, nil
}

func runInit(cmd *cobra.Command, args []string) error {
	dims, err := dimsFlag(cmd)
	if err != nil {
		return err
	}
	path := "nclustgen.yaml"
	if len(args) == 1 {
		path = args[0]
	}

	cfg := config.DefaultConfig(dims)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(cfg, path); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ Wrote %d-axis configuration to %s\n", cfg.Dims, path)
	return nil
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	var cfg *config.Config
	if path != "" {
		var err error
		if cfg, err = config.LoadFile(path); err != nil {
			return nil, err
		}
	} else {
		dims, err := dimsFlag(cmd)
		if err != nil {
			return nil, err
		}
		cfg = config.DefaultConfig(dims)
	}
	config.ApplyEnv(cfg)

	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Seed, _ = flags.GetInt64("seed")
	}
	if flags.Changed("storage-dir") {
		cfg.Storage.Dir, _ = flags.GetString("storage-dir")
	}
	if flags.Changed("output") {
		cfg.Output.Path, _ = flags.GetString("output")
	}
	if flags.Changed("name") {
		cfg.Output.FileName, _ = flags.GetString("name")
	}
	if flags.Changed("compress") {
		cfg.Output.Compress, _ = flags.GetBool("compress")
	}
	if flags.Changed("single-file") {
		s, _ := flags.GetString("single-file")
		if s != "auto" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return nil, fmt.Errorf("%w: --single-file must be true, false or auto", config.ErrInvalidConfig)
			}
			cfg.Output.SingleFile = &b
		}
	}
	return cfg, cfg.Validate()
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, closer, err := nclustgen.LoggerFromConfig(cfg.Logging)
	if err != nil {
		return err
	}
	defer closer.Close()

	modeName, _ := cmd.Flags().GetString("mode")
	mode, err := nclustgen.ParseMode(modeName)
	if err != nil {
		return err
	}

	gen, err := nclustgen.New(cfg, nil, nclustgen.WithLogger(logger))
	if err != nil {
		return err
	}

	rows, _ := cmd.Flags().GetInt("rows")
	cols, _ := cmd.Flags().GetInt("cols")
	contexts, _ := cmd.Flags().GetInt("contexts")
	n, _ := cmd.Flags().GetInt("clusters")

	g, err := gen.Generate(ctx, engine.Shape{Rows: rows, Cols: cols, Contexts: contexts}, n)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Generated %v dataset with %d clusters (%d overlapping pairs)\n",
		g.Shape(), len(g.Clusters()), engine.OverlappingPairs(g.Clusters()))

	x, err := g.Materialize(ctx, mode)
	if err != nil {
		return err
	}
	describeTensor(out, x)

	if backend, _ := cmd.Flags().GetString("graph"); backend != "" {
		if err := buildGraph(cmd, g, cfg, backend); err != nil {
			return err
		}
	}

	if cfg.Output.Path != "" {
		m, err := g.Save(ctx, cfg.Output.Path, cfg.Output.FileName)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Saved %d files to %s\n", len(m.Files), cfg.Output.Path)
	}
	return nil
}

func describeTensor(w io.Writer, x tensor.Tensor) {
	switch t := x.(type) {
	case *tensor.Dense:
		fmt.Fprintf(w, "Dense tensor %v (%s)\n", t.Shape(), config.FormatMemorySize(t.SizeBytes()))
	case *tensor.Sparse:
		fmt.Fprintf(w, "Sparse tensor %v (%d non-zero, density %.3f)\n", t.Shape(), t.NNZ(), t.Density())
	}
}

func buildGraph(cmd *cobra.Command, g *nclustgen.Generation, cfg *config.Config, backendName string) error {
	ctx := cmd.Context()
	backend, err := graph.ParseBackend(backendName)
	if err != nil {
		return err
	}

	device, _ := cmd.Flags().GetString("device")
	if device == "" {
		device = cfg.Graph.Device
	}
	placement, err := gpu.ParsePlacement(device, cfg.Graph.DeviceIndex)
	if err != nil {
		return err
	}
	multigraph, _ := cmd.Flags().GetBool("multigraph")

	opts := graph.Options{Backend: backend, Placement: placement, Multigraph: multigraph}
	if backend == graph.BackendGeneric {
		store, err := storage.Open(cfg.Storage)
		if err != nil {
			return err
		}
		defer store.Close()
		opts.Store = store
	}

	gr, err := g.Graph(ctx, opts)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Graph (%s): nodes %v, edges %v\n", gr.Backend(), gr.NodeCounts(), gr.EdgeCounts())

	if stamp, _ := cmd.Flags().GetBool("stamp"); stamp {
		if err := graph.StampClusters(ctx, gr, g.Clusters()); err != nil {
			return err
		}
		sizes, err := graph.StampedSizes(ctx, gr)
		if err != nil {
			return err
		}
		ids := make([]int, 0, len(sizes))
		for id := range sizes {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		for _, id := range ids {
			fmt.Fprintf(out, "  cluster %d: %v\n", id, sizes[id])
		}
	}
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	dir, name := args[0], args[1]
	out := cmd.OutOrStdout()

	m, err := persist.ReadManifest(dir, name)
	if err != nil {
		return err
	}
	if err := persist.Verify(dir, m); err != nil {
		return err
	}
	clusters, err := persist.ReadClusters(dir, name)
	if err != nil {
		return err
	}
	if len(clusters) != m.Clusters {
		return fmt.Errorf("%w: manifest lists %d clusters, %s has %d",
			persist.ErrDigestMismatch, m.Clusters, name, len(clusters))
	}

	rows := 0
	for _, f := range m.Datasets() {
		text, err := persist.ReadDataset(dir, f)
		if err != nil {
			return err
		}
		rows += len(decode.Lines(text))
	}
	if want := m.Shape[tensor.RowAxis(len(m.Shape))]; rows != want {
		return fmt.Errorf("%w: dataset holds %d rows, manifest shape %v", persist.ErrDigestMismatch, rows, m.Shape)
	}

	fmt.Fprintf(out, "✅ %s: shape %v, %d clusters, %d dataset files, %d rows\n",
		name, m.Shape, len(clusters), len(m.Datasets()), rows)
	return nil
}
