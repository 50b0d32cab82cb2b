package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"codeberg.org/mutker/vitalsd/internal/api"
	"codeberg.org/mutker/vitalsd/internal/archive"
	"codeberg.org/mutker/vitalsd/internal/config"
	"codeberg.org/mutker/vitalsd/internal/errors"
	"codeberg.org/mutker/vitalsd/internal/logger"
	"codeberg.org/mutker/vitalsd/internal/metrics"
	"codeberg.org/mutker/vitalsd/internal/pid"
	"codeberg.org/mutker/vitalsd/internal/refresh"
	"codeberg.org/mutker/vitalsd/internal/render"
	"codeberg.org/mutker/vitalsd/internal/telemetry"
	"github.com/spf13/pflag"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
)

type app struct {
	cfg       *config.Config
	store     *telemetry.Store
	scheduler *refresh.Scheduler
	consumer  *render.Consumer
	archive   archive.Recorder
	server    *http.Server
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	level, _ := logger.ParseLevel(cfg.LogLevel.String())
	logCloser := logger.Init(logger.Options{
		Level:      level,
		IsService:  logger.IsService(),
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})
	defer logCloser.Close()
	logger.Debug().Msg("Config loaded")

	if err := pid.Write(cfg.PIDFile); err != nil {
		logger.FatalWithCode(err).Str("pid_file", cfg.PIDFile).Msg("Failed to acquire PID file")
	}

	a, err := newApp(cfg)
	if err != nil {
		cleanupPID(cfg.PIDFile)
		logger.FatalWithCode(err).Msg("Failed to initialize application")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	if err := a.run(ctx); err != nil {
		logger.ErrorWithCode(err).Msg("Error in main loop")
	}
	a.cleanup()
	cleanupPID(cfg.PIDFile)
}

func newApp(cfg *config.Config) (*app, error) {
	errFactory := errors.New()

	channels := make([]telemetry.Channel, len(cfg.Channels))
	for i, name := range cfg.Channels {
		channels[i] = telemetry.Channel(name)
	}

	store, err := telemetry.NewStore(channels)
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrInitApp, err)
	}

	scheduler, err := refresh.New(cfg.Interval)
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrInitApp, err)
	}

	m := metrics.New()
	m.WatchScheduler(scheduler)

	consumer, err := render.NewConsumer(store, render.NewPNGRenderer(), render.Options{
		Width:  cfg.ChartWidth,
		Height: cfg.ChartHeight,
		XMax:   cfg.ChartXMax,
		YMax:   cfg.ChartYMax,
	}, render.WithObserver(m))
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrInitApp, err)
	}
	m.WatchRenderer(consumer)

	recorder, err := archive.New(archive.Config{
		Enabled:      cfg.Archive,
		DBPath:       cfg.ArchiveDB,
		BatchSize:    cfg.ArchiveBatchSize,
		BatchTimeout: cfg.ArchiveBatchTimeout,
	})
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrInitApp, err)
	}

	var verifier *api.Verifier
	if cfg.AuthSecret != "" {
		verifier, err = api.NewVerifier(cfg.AuthSecret)
		if err != nil {
			recorder.Close()
			return nil, errFactory.Wrap(errors.ErrInitApp, err)
		}
	}

	router := api.NewServer(api.Deps{
		Store:    store,
		Frames:   consumer,
		Metrics:  m,
		Archive:  recorder,
		Verifier: verifier,
	})

	return &app{
		cfg:       cfg,
		store:     store,
		scheduler: scheduler,
		consumer:  consumer,
		archive:   recorder,
		server: &http.Server{
			Addr:              cfg.Listen,
			Handler:           router,
			ReadHeaderTimeout: readHeaderTimeout,
			ReadTimeout:       readTimeout,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       idleTimeout,
		},
	}, nil
}

// run serves HTTP and drives the refresh loop until ctx is cancelled or the
// server fails.
func (a *app) run(ctx context.Context) error {
	errFactory := errors.New()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.scheduler.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		a.consumer.Run(ctx, a.scheduler.Signals())
	}()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().
			Str("listen", a.cfg.Listen).
			Dur("interval", a.cfg.Interval).
			Strs("channels", a.cfg.Channels).
			Bool("archive", a.archive.Enabled()).
			Msg("vitalsd started")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-serveErr:
		if ok {
			runErr = errFactory.Wrap(errors.ErrServeHTTP, err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithCode(errFactory.Wrap(errors.ErrShutdownFailed, err)).Msg("HTTP server shutdown failed")
	}

	cancel()
	wg.Wait()

	return runErr
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

func (a *app) cleanup() {
	if err := a.archive.Close(); err != nil {
		logger.ErrorWithCode(err).Msg("Failed to close archive")
	}

	stats := a.scheduler.Stats()
	logger.Info().
		Int("measurements", a.store.Snapshot().Total()).
		Uint64("refresh_delivered", stats.Delivered).
		Uint64("refresh_dropped", stats.Dropped).
		Msg("Exiting...")
}

func cleanupPID(path string) {
	if err := pid.Remove(path); err != nil {
		logger.ErrorWithCode(err).Msg("Failed to remove PID file")
	}
}
