package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/crimson-sun/tonal/internal/artifact"
	"github.com/crimson-sun/tonal/internal/cache"
	"github.com/crimson-sun/tonal/internal/config"
	"github.com/crimson-sun/tonal/internal/httpserver"
	"github.com/crimson-sun/tonal/internal/logging"
	"github.com/crimson-sun/tonal/internal/model"
	"github.com/crimson-sun/tonal/internal/pipeline"
	"github.com/crimson-sun/tonal/internal/prediction"
	"github.com/crimson-sun/tonal/internal/scheduler"
	"github.com/crimson-sun/tonal/internal/source"
	"github.com/crimson-sun/tonal/internal/version"

	// Register source implementations.
	_ "github.com/crimson-sun/tonal/internal/source/jsonfile"
	_ "github.com/crimson-sun/tonal/internal/source/postgres"
)

const setupTimeout = 30 * time.Second

type app struct {
	cfg       config.Config
	src       source.Source
	store     *artifact.Store
	cache     *cache.Scores
	service   *prediction.Service
	pipeline  *pipeline.Pipeline
	scheduler *scheduler.Scheduler
}

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: tonal [-version] [serve|retrain]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Get())
		return
	}

	cfg, err := config.Load()
	if err != nil {
		// slog is not configured yet
		log.Fatalf("failed to load config: %v", err)
	}
	if mode := flag.Arg(0); mode != "" {
		cfg.Mode = mode
	}

	logging.Init(cfg.LogFormat, logging.ParseLevel(cfg.LogLevel))
	slog.Info("tonal starting", "version", version.Version, "mode", cfg.Mode, "source", cfg.Source.Provider)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, cfg)
	if err != nil {
		slog.Error("setup failed", "error", err)
		os.Exit(1)
	}
	defer a.close()

	switch cfg.Mode {
	case "retrain":
		if !a.scheduler.Trigger(ctx) {
			a.close()
			os.Exit(1)
		}
	case "serve":
		if err := a.serve(ctx); err != nil {
			slog.Error("server error", "error", err)
			a.close()
			os.Exit(1)
		}
	default:
		slog.Error("unknown mode", "mode", cfg.Mode)
		a.close()
		os.Exit(2)
	}
}

func setup(ctx context.Context, cfg config.Config) (*app, error) {
	setupCtx, cancel := context.WithTimeout(ctx, setupTimeout)
	defer cancel()

	policy, err := model.ParseLabelPolicy(cfg.Training.LabelPolicy)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}

	a.src, err = source.Open(setupCtx, source.Config{
		Provider:    cfg.Source.Provider,
		DatabaseURL: cfg.Source.DatabaseURL,
		Path:        cfg.Source.Path,
	})
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}

	a.store, err = artifact.New(cfg.Training.ModelDir)
	if err != nil {
		a.close()
		return nil, err
	}

	var svcOpts []prediction.Option
	if cfg.Cache.RedisURL != "" {
		a.cache, err = cache.New(cfg.Cache.RedisURL, cfg.Cache.TTL)
		if err != nil {
			a.close()
			return nil, err
		}
		if err := a.cache.Ping(setupCtx); err != nil {
			slog.Warn("score cache unreachable, continuing without hits", "error", err)
		}
		svcOpts = append(svcOpts, prediction.WithCache(a.cache))
	}
	a.service = prediction.New(a.store, svcOpts...)

	a.pipeline = pipeline.New(a.src, a.store,
		pipeline.WithLabelPolicy(policy),
		pipeline.WithMaxFeatures(cfg.Training.MaxFeatures),
		pipeline.WithStopWords(cfg.Training.StopWords),
		pipeline.WithSplit(cfg.Training.TestFraction, cfg.Training.SplitSeed),
		pipeline.WithActivation(a.service.Activate),
	)

	a.scheduler = scheduler.New(a.pipeline, a.store,
		scheduler.WithInterval(cfg.Schedule.Interval),
		scheduler.WithRetention(cfg.Schedule.Keep),
		scheduler.WithTriggerOnStart(cfg.Schedule.OnStart),
		scheduler.WithActiveVersion(a.service.Version),
	)
	return a, nil
}

func (a *app) serve(ctx context.Context) error {
	if err := a.service.Reload(ctx); err != nil {
		slog.Warn("no model loaded at startup, predictions will fail until one is trained", "error", err)
	}

	var opts []httpserver.Option
	opts = append(opts, httpserver.WithRateLimit(a.cfg.Server.RateLimit, a.cfg.Server.RateBurst))
	if rec, ok := a.src.(source.Recorder); ok && a.cfg.Server.RecordPredictions {
		opts = append(opts, httpserver.WithRecorder(rec))
	}
	if l, ok := a.src.(source.Lister); ok {
		opts = append(opts, httpserver.WithLister(l))
	}
	if p, ok := a.src.(interface{ Ping(context.Context) error }); ok {
		opts = append(opts, httpserver.WithHealthChecks(httpserver.HealthCheck{Name: a.cfg.Source.Provider, Check: p.Ping}))
	}
	srv := httpserver.New(a.service, opts...)

	go a.scheduler.Run(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(":" + a.cfg.Server.Port) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutdown signal received, cleaning up")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (a *app) close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			slog.Warn("failed to close score cache", "error", err)
		}
		a.cache = nil
	}
	if c, ok := a.src.(io.Closer); ok {
		if err := c.Close(); err != nil {
			slog.Warn("failed to close source", "error", err)
		}
		a.src = nil
	}
}
