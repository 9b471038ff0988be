package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron"

	"github.com/okian/qualtrack/internal/adapters/cache"
	"github.com/okian/qualtrack/internal/adapters/http/api"
	"github.com/okian/qualtrack/internal/adapters/http/swagger"
	"github.com/okian/qualtrack/internal/adapters/repository"
	"github.com/okian/qualtrack/internal/adapters/source"
	app "github.com/okian/qualtrack/internal/app"
	"github.com/okian/qualtrack/internal/config"
	"github.com/okian/qualtrack/internal/domain/events"
	"github.com/okian/qualtrack/pkg/logger"
	"github.com/okian/qualtrack/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 60 * time.Second // cutoff and predict may scrape a full cohort
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second

	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func run() error {
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (dotenv -> defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	metrics.Configure(
		metrics.WithNamespace(cfg.MetricsNamespace),
		metrics.WithMetricsEnabled(cfg.MetricsEnabled),
		metrics.WithRefreshInterval(cfg.MetricsInterval()),
	)

	svc, closeCache, err := buildService(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeCache()

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := svc.Stop(stopCtx); err != nil {
			log.Error(stopCtx, "service stop failed", logger.Error(err))
		}
	}()

	sched, err := scheduleRefresh(ctx, cfg.RefreshSchedule, svc, log)
	if err != nil {
		return err
	}
	if sched != nil {
		sched.Start()
		defer sched.Stop()
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc, cfg.MaxLimit).Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("%w: %w", api.ErrServe, err)
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}

	log.Info(shutdownCtx, "server stopped")
	return nil
}

// buildService wires the cache, the snapshot store and the results-site client into a
// service. The returned func closes the cache backend.
func buildService(ctx context.Context, cfg *config.Config, log logger.Logger) (*app.Service, func(), error) {
	c, err := cache.Open(cache.Config{
		Backend:       cfg.CacheBackend,
		Dir:           cfg.CacheDir,
		MemoryMax:     cfg.CacheMemoryMax,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open cache: %w", err)
	}
	closeCache := func() {
		if cl, ok := c.(io.Closer); ok {
			if err := cl.Close(); err != nil {
				log.Warn(ctx, "cache close failed", logger.Error(err))
			}
		}
	}

	cat := events.Default()
	src := source.NewClient(
		source.WithBaseURL(cfg.SourceBaseURL),
		source.WithHTTPClient(&http.Client{Timeout: cfg.SourceTimeout()}),
		source.WithRate(cfg.SourceRatePerSec, cfg.SourceBurst),
		source.WithFetchWindow(cfg.FetchConcurrency),
		source.WithCatalogue(cat),
		source.WithLogger(log.Named("source")),
	)

	opts := []app.Option{
		app.WithLogger(log.Named("service")),
		app.WithCatalogue(cat),
		app.WithSource(src),
		app.WithCache(c),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithTTLs(cfg.RankingsTTL(), cfg.PBTTL()),
		app.WithMaxCohort(cfg.MaxCohort),
		app.WithDefaultMonths(cfg.DefaultMonths),
		app.WithPredictionK(cfg.PredictionK),
	}
	if cfg.RankingDate != "" {
		opts = append(opts, app.WithRankingDate(cfg.RankingDate))
	}
	if cfg.DBPath != "" {
		store, err := repository.NewSQLiteStore(ctx, cfg.DBPath, repository.WithStoreLogger(log.Named("store")))
		if err != nil {
			closeCache()
			return nil, nil, fmt.Errorf("failed to open snapshot store: %w", err)
		}
		opts = append(opts, app.WithStore(store))
	}
	return app.New(opts...), closeCache, nil
}

// scheduleRefresh returns a cron that queues every segment on schedule, or nil when it is empty.
// The schedule is a five-field cron expression or a descriptor such as "@every 6h".
func scheduleRefresh(ctx context.Context, schedule string, svc *app.Service, log logger.Logger) (*cron.Cron, error) {
	if schedule == "" {
		return nil, nil
	}
	sched, err := cron.ParseStandard(schedule)
	if err != nil {
		return nil, fmt.Errorf("%w: refresh_schedule %q: %w", config.ErrInvalidConfig, schedule, err)
	}
	c := cron.New()
	c.Schedule(sched, cron.FuncJob(func() {
		n, err := svc.EnqueueAll(ctx)
		if err != nil {
			log.Warn(ctx, "scheduled refresh incomplete", logger.Int("queued", n), logger.Error(err))
			return
		}
		log.Info(ctx, "scheduled refresh queued", logger.Int("queued", n))
	}))
	return c, nil
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics refreshes the service gauges. GetStats updates the queue, board and
// worker activity gauges itself.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()
	if workerCount, ok := stats["workerCount"].(int); ok {
		metrics.UpdateWorkerCount(workerCount)
	}
}
