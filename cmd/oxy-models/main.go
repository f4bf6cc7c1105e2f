// oxy-models loads a model onto a graphics device, validates its tangent pass and reports what was built.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/Carmen-Shannon/oxy-models/engine/config"
	"github.com/Carmen-Shannon/oxy-models/engine/loader"
	"github.com/Carmen-Shannon/oxy-models/engine/logger"
	"github.com/Carmen-Shannon/oxy-models/engine/model"
	"github.com/Carmen-Shannon/oxy-models/engine/profiler"
	"github.com/Carmen-Shannon/oxy-models/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-models/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-models/engine/renderer/texture"
	"go.uber.org/zap"
)

var (
	flagConfig      = flag.String("config", "", "Path to config file")
	flagBackend     = flag.String("backend", "", "Device backend: wgpu or software")
	flagDebug       = flag.Bool("debug", false, "Enable debug logging")
	flagLogFile     = flag.String("log-file", "", "Also write logs to this file")
	flagWatch       = flag.Bool("watch", false, "Reload the model when it or its dependencies change")
	flagConcurrency = flag.Int("concurrency", 0, "Maximum concurrent texture and mesh tasks (0 = unbounded)")
)

func main() {
	flag.Usage = printUsage
	flag.Parse()
	if flag.NArg() != 1 {
		printUsage()
		os.Exit(2)
	}

	cfg, err := config.Load(*flagConfig, config.Overrides{
		Backend:     *flagBackend,
		Debug:       *flagDebug,
		LogFile:     *flagLogFile,
		Watch:       *flagWatch,
		Concurrency: *flagConcurrency,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, flag.Arg(0)); err != nil {
		logger.Error("oxy-models failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `oxy-models - load a model, run its tangent pass and report the result

Usage:
  oxy-models [options] <model.obj|model.gltf|model.glb>

Options:`)
	flag.PrintDefaults()
}

func run(ctx context.Context, cfg *config.Config, path string) error {
	// ── Device ──────────────────────────────────────────────────────────
	device, err := newDevice(cfg.Backend)
	if err != nil {
		return fmt.Errorf("creating %s device: %w", cfg.Backend.Type, err)
	}
	defer device.Release()
	logger.Info("device ready", zap.Stringer("backend", device.Type()))

	// ── Loader ──────────────────────────────────────────────────────────
	prof := profiler.NewProfiler()
	options, err := loaderOptions(cfg, prof)
	if err != nil {
		return err
	}
	l, err := loader.NewLoader(device, options...)
	if err != nil {
		return fmt.Errorf("creating loader: %w", err)
	}
	defer l.Release()

	if !cfg.Loader.Watch {
		m, err := l.Load(ctx, path)
		if err != nil {
			return err
		}
		defer m.Release()
		prof.Report(logger.Named("profiler"))
		return inspect(os.Stdout, device, m)
	}

	// ── Watch ───────────────────────────────────────────────────────────
	var current model.Model
	defer func() {
		if current != nil {
			current.Release()
		}
	}()

	w, err := loader.NewWatcher(l, path, func(m model.Model, err error) {
		if err != nil {
			logger.Warn("reload failed", zap.String("path", path), zap.Error(err))
			return
		}
		if current != nil {
			current.Release()
		}
		current = m
		prof.Report(logger.Named("profiler"))
		prof.Reset()
		if err := inspect(os.Stdout, device, m); err != nil {
			logger.Warn("inspection failed", zap.Error(err))
		}
	}, loader.WithWatcherLogger(logger.Named("watcher")))
	if err != nil {
		return err
	}

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newDevice(cfg config.BackendConfig) (backend.Device, error) {
	kind, err := cfg.BackendType()
	if err != nil {
		return nil, err
	}
	if kind == backend.BackendTypeSoftware {
		return backend.NewSoftwareDevice(), nil
	}

	power, err := cfg.Power()
	if err != nil {
		return nil, err
	}
	return backend.NewWGPUDevice(
		backend.WithDeviceLabel("oxy-models"),
		backend.WithForceFallbackAdapter(cfg.ForceFallbackAdapter),
		backend.WithPowerPreference(power),
	)
}

func loaderOptions(cfg *config.Config, prof *profiler.Profiler) ([]loader.LoaderBuilderOption, error) {
	sampler, err := cfg.Textures.Sampler()
	if err != nil {
		return nil, err
	}

	options := []loader.LoaderBuilderOption{
		loader.WithLogger(logger.Named("loader")),
		loader.WithMaxConcurrency(cfg.Loader.MaxConcurrency),
		loader.WithProfiler(prof),
		loader.WithTextureOptions(
			texture.WithSampler(sampler),
			texture.WithMaxDimension(cfg.Textures.MaxDimension),
		),
	}

	if cfg.Loader.ComputeShader != "" {
		// Keeping the built-in key lets the software device fall back to the CPU tangent kernel.
		s, err := shader.LoadShader(shader.TangentShaderKey, shader.ShaderTypeCompute, cfg.Loader.ComputeShader)
		if err != nil {
			return nil, fmt.Errorf("loading compute shader: %w", err)
		}
		options = append(options, loader.WithComputeShader(s))
	}
	return options, nil
}
