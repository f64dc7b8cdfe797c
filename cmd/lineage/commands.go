package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	flag "github.com/spf13/pflag"

	"github.com/hupe1980/lineage"
	"github.com/hupe1980/lineage/blobstore"
	"github.com/hupe1980/lineage/checkpoint"
	"github.com/hupe1980/lineage/codec"
	"github.com/hupe1980/lineage/filter"
	"github.com/hupe1980/lineage/persistence"
	"github.com/hupe1980/lineage/promcollector"
	"github.com/hupe1980/lineage/resource"
)

func cmdRun(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := parseRunFlags(args, stderr)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Log, stderr)
	compression, _ := persistence.ParseCompression(cfg.Checkpoint.Compression)

	reg := prometheus.NewRegistry()
	rc := resource.NewController(resource.Config{MemoryLimitBytes: cfg.MemoryLimit})
	cacheOpts := []lineage.Option{
		lineage.WithLogger(logger),
		lineage.WithMetricsCollector(promcollector.New(reg)),
		lineage.WithMemoryController(rc),
		lineage.WithSnapshotCompression(compression),
	}

	var mgr *checkpoint.Manager
	if cfg.Checkpoint.Dir != "" {
		mgr = checkpoint.NewManager(blobstore.NewLocalStore(cfg.Checkpoint.Dir),
			checkpoint.WithLogger(logger),
			checkpoint.WithRetain(cfg.Checkpoint.Retain),
			checkpoint.WithResourceController(rc),
			checkpoint.WithCacheOptions(cacheOpts...),
		)
	}

	cache, err := openCache(ctx, cfg, mgr, cacheOpts)
	if err != nil {
		return err
	}

	model := filter.RandomWalk{
		Dim:      cfg.Filter.Width,
		Sigma:    cfg.Filter.Sigma,
		ObsSigma: cfg.Filter.ObsSigma,
		Drift:    cfg.Filter.Drift,
	}

	fcfg := filter.Config{
		Particles:    cfg.Filter.Particles,
		Steps:        cfg.Filter.Steps,
		ESSThreshold: cfg.Filter.ESSThreshold,
		Seed:         cfg.Filter.Seed,
		Logger:       logger,
	}
	if cfg.Filter.Resampler == "multinomial" {
		fcfg.Resampler = filter.Multinomial{}
	}
	if mgr != nil && cfg.Checkpoint.Every > 0 {
		fcfg.OnStep = func(s filter.Step) error {
			if (s.T+1)%cfg.Checkpoint.Every != 0 {
				return nil
			}
			_, err := mgr.Save(ctx, cache)
			return err
		}
	}

	res, err := filter.Run(ctx, model, fcfg, cache)
	if err != nil {
		return err
	}

	if mgr != nil && (cfg.Checkpoint.Every == 0 || cache.Size()%cfg.Checkpoint.Every != 0) {
		if _, err := mgr.Save(ctx, cache); err != nil {
			return err
		}
	}

	fmt.Fprintln(stdout, cache.Report())
	fmt.Fprintf(stdout, "steps=%d resamples=%d loglik=%.6f ess=%.2f\n",
		res.Steps, res.Resamples, res.LogLikelihood, res.ESS)

	if cfg.Output.File != "" {
		if err := exportFile(ctx, cache, cfg.Output, logger); err != nil {
			return err
		}
	}

	if cfg.Output.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(cfg.Output.MetricsFile, reg); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

func openCache(ctx context.Context, cfg Config, mgr *checkpoint.Manager, opts []lineage.Option) (*lineage.Cache, error) {
	if cfg.Checkpoint.Resume {
		cache, err := mgr.Restore(ctx)
		if err == nil {
			if cache.Width() != cfg.Filter.Width {
				return nil, fmt.Errorf("checkpoint width %d does not match --width %d", cache.Width(), cfg.Filter.Width)
			}
			return cache, nil
		}
		if !errors.Is(err, checkpoint.ErrNoCheckpoint) {
			return nil, err
		}
	}
	return lineage.New(cfg.Filter.Width, opts...)
}

// restoreDir loads the latest checkpoint from a local directory.
func restoreDir(ctx context.Context, dir string, logger *lineage.Logger) (*lineage.Cache, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, err
	}
	mgr := checkpoint.NewManager(blobstore.NewLocalStore(dir),
		checkpoint.WithLogger(logger),
		checkpoint.WithCacheOptions(lineage.WithLogger(logger)),
	)
	return mgr.Restore(ctx)
}

func cmdInspect(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: lineage inspect <checkpoint-dir>")
	}

	cache, err := restoreDir(ctx, fs.Arg(0), lineage.NoopLogger())
	if err != nil {
		return err
	}

	st := cache.Stats()
	fmt.Fprintln(stdout, cache.Report())
	fmt.Fprintf(stdout, "width=%d particles=%d generation=%d bytes=%d\n",
		st.Width, st.Particles, st.Generation, st.BytesReserved)
	return nil
}

func cmdExport(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	out := OutputConfig{Codec: codec.Default.Name(), Workers: 4}

	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&out.File, "out", "o", "", "Output file (default: stdout)")
	fs.StringVar(&out.Codec, "codec", out.Codec, "Trajectory codec (json, go-json)")
	fs.IntVar(&out.Workers, "workers", out.Workers, "Export workers")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: lineage export <checkpoint-dir> [--out file]")
	}

	cache, err := restoreDir(ctx, fs.Arg(0), lineage.NoopLogger())
	if err != nil {
		return err
	}

	if out.File == "" {
		return writeTrajectories(ctx, cache, stdout, out)
	}
	return exportFile(ctx, cache, out, lineage.NoopLogger())
}

func exportFile(ctx context.Context, cache *lineage.Cache, out OutputConfig, logger *lineage.Logger) error {
	err := persistence.SaveToFile(out.File, func(w io.Writer) error {
		return writeTrajectories(ctx, cache, w, out)
	})
	if err != nil {
		return fmt.Errorf("export %s: %w", out.File, err)
	}
	logger.InfoContext(ctx, "trajectories exported", "file", out.File, "particles", cache.Particles())
	return nil
}

func writeTrajectories(ctx context.Context, cache *lineage.Cache, w io.Writer, out OutputConfig) error {
	c, ok := codec.ByName(out.Codec)
	if !ok {
		return fmt.Errorf("unknown codec %q", out.Codec)
	}

	indices := make([]int, cache.Particles())
	for i := range indices {
		indices[i] = i
	}
	trajs, err := cache.ExportTrajectories(ctx, indices, out.Workers)
	if err != nil {
		return err
	}

	lw := codec.NewLineWriter(w, c)
	for p, traj := range trajs {
		if err := lw.Write(codec.NewRecord(p, cache.Width(), traj)); err != nil {
			return err
		}
	}
	return lw.Flush()
}
