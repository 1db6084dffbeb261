package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/amartya2002/uptime-monitor-core/cache"
	"github.com/amartya2002/uptime-monitor-core/config"
	"github.com/amartya2002/uptime-monitor-core/httpapi"
	"github.com/amartya2002/uptime-monitor-core/persistence"
	"github.com/amartya2002/uptime-monitor-core/uptime"
)

// roster is what both store implementations offer beyond uptime.Store.
type roster interface {
	uptime.Store
	ImportSystems(ctx context.Context, seeds []persistence.SystemSeed) (int, error)
}

func main() {
	configPath := pflag.StringP("config", "c", "", "path to config file (YAML)")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	err = run(cfg, logger)
	if err != nil {
		logger.Error("uptime monitor exited", zap.Error(err))
		if !logger.Core().Enabled(zapcore.ErrorLevel) {
			fmt.Fprintf(os.Stderr, "uptime monitor exited: %v\n", err)
		}
	}
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	if cfg.SeedFile != "" {
		seeds, err := persistence.LoadSeedFile(cfg.SeedFile)
		if err != nil {
			return err
		}
		n, err := store.ImportSystems(ctx, seeds)
		if err != nil {
			return err
		}
		logger.Info("roster imported", zap.String("file", cfg.SeedFile), zap.Int("systems", n))
	}

	level, err := uptime.ParseLogLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	schedule, err := resolveSchedule(cfg.Schedule)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := []uptime.Option{
		uptime.WithLogger(logger.Named("uptime")),
		uptime.WithLogLevel(level),
		uptime.WithInternalLogs(cfg.Log.Internal),
		uptime.WithSchedule(schedule),
		uptime.WithRunOnStart(cfg.Schedule.RunOnStart),
		uptime.WithTimeout(cfg.Probe.Timeout),
		uptime.WithRedirectLimit(cfg.Probe.RedirectLimit),
		uptime.WithTLSVerification(cfg.Probe.VerifyTLS),
		uptime.WithWindowDays(cfg.Uptime.WindowDays),
		uptime.WithLocation(cfg.Location()),
		uptime.WithMetricsRegisterer(reg),
	}
	if cfg.Redis.Addr != "" {
		sc, err := cache.New(ctx, cache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		})
		if err != nil {
			return err
		}
		defer func() { _ = sc.Close() }()
		opts = append(opts, uptime.WithStatsCache(sc))
		logger.Info("stats cache enabled", zap.String("addr", cfg.Redis.Addr))
	}

	checker := uptime.New(store, opts...)
	if err := checker.Start(ctx); err != nil {
		return err
	}
	defer checker.Stop()

	gin.SetMode(gin.ReleaseMode)
	router := httpapi.NewRouter(httpapi.NewHandler(checker, logger.Named("http")), reg)
	srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: router}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		logger.Info("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (roster, func(), error) {
	if cfg.Driver == "memory" {
		logger.Warn("using in-memory store, data is lost on exit")
		return persistence.NewMemoryStore(), func() {}, nil
	}
	db, err := persistence.Open(ctx, persistence.Config{
		Driver:             cfg.Driver,
		DSN:                cfg.DSN,
		MaxOpenConns:       cfg.MaxOpenConns,
		MaxIdleConns:       cfg.MaxIdleConns,
		ConnMaxLifetime:    cfg.ConnMaxLifetime,
		LogQueries:         cfg.LogQueries,
		SlowQueryThreshold: cfg.SlowQueryThreshold,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	repo := persistence.NewRepository(db)
	if err := repo.AutoMigrate(ctx); err != nil {
		_ = persistence.Close(db)
		return nil, nil, err
	}
	return repo, func() { _ = persistence.Close(db) }, nil
}

func resolveSchedule(cfg config.ScheduleConfig) (string, error) {
	switch {
	case cfg.Cron != "":
		return cfg.Cron, uptime.ValidateSchedule(cfg.Cron)
	case cfg.Preset != "":
		return uptime.PresetSchedule(cfg.Preset)
	case cfg.IntervalMinutes > 0:
		return uptime.IntervalSchedule(cfg.IntervalMinutes), nil
	}
	return uptime.DefaultSchedule, nil
}

// newLogger builds the daemon logger. log.level applies here as well as to
// the per-site check logs.
func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := uptime.ParseLogLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if level == uptime.LogNone {
		return zap.NewNop(), nil
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(zapLevel(level))
	var paths []string
	if cfg.Console {
		paths = append(paths, "stdout")
	}
	paths = append(paths, cfg.Files...)
	if len(paths) == 0 {
		paths = []string{"stdout"}
	}
	zcfg.OutputPaths = paths
	return zcfg.Build()
}

func zapLevel(l uptime.LogLevel) zapcore.Level {
	switch l {
	case uptime.LogDebug:
		return zapcore.DebugLevel
	case uptime.LogError:
		return zapcore.ErrorLevel
	}
	return zapcore.InfoLevel
}
