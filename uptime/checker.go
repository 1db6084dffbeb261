// Package uptime implements the high-level Checker public API.
package uptime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const schedulerName = "health-check"

// Checker owns the check schedule and runs cycles against a Store. At most
// one cycle runs at a time, whoever triggers it.
type Checker struct {
	store      Store
	prober     *Prober
	ledger     *Ledger
	aggregator *Aggregator
	metrics    *Metrics
	registerer prometheus.Registerer
	cache      StatsCache

	probeCfg   ProberConfig
	schedule   string
	runOnStart bool
	windowDays int
	location   *time.Location
	now        func() time.Time

	logLevel           LogLevel
	enableInternalLogs bool
	logger             *zap.Logger
	loggerExplicit     bool // set when WithLogger/WithZapLogger used

	// logging configuration accumulated by options
	logConsoleOpt *bool
	logFilesOpt   []string
	logDisableOpt bool

	reports chan CycleReport
	running atomic.Bool
	wg      sync.WaitGroup

	mu      sync.Mutex
	cron    *cron.Cron
	entryID cron.EntryID
	last    *CycleReport
}

// ===== Constructor =====
func New(store Store, opts ...Option) *Checker {
	c := &Checker{
		store: store,
		probeCfg: ProberConfig{
			Timeout:       30 * time.Second,
			RedirectLimit: 5,
		},
		schedule:   DefaultSchedule,
		runOnStart: true,
		windowDays: defaultWindowDays,
		location:   time.UTC,
		now:        time.Now,
		logLevel:   LogInfo,
		reports:    make(chan CycleReport, 16),
		logger:     nil, // build after applying options
	}
	for _, opt := range opts {
		opt(c)
	}
	// Build logger after options applied unless explicitly provided
	if !c.loggerExplicit {
		c.logger = c.buildLoggerFromConfig()
	}
	// Safety fallback
	if c.logger == nil {
		c.logger = defaultConsoleLogger()
	}

	c.probeCfg.Now = c.now
	c.metrics = NewMetrics(c.registerer)
	c.prober = NewProber(c.probeCfg, c.logger.Named("probe"))
	c.ledger = NewLedger(store, c.logger.Named("ledger"), c.metrics)
	c.aggregator = NewAggregator(store, c.windowDays, c.location, c.cache, c.logger.Named("aggregator"), c.metrics)
	return c
}

func defaultConsoleLogger() *zap.Logger {
	l, err := zap.NewProduction(zap.AddCallerSkip(1))
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func (c *Checker) buildLoggerFromConfig() *zap.Logger {
	// If disabled explicitly
	if c.logDisableOpt {
		return zap.NewNop()
	}

	// Determine console default: true unless explicitly set to false
	console := true
	if c.logConsoleOpt != nil {
		console = *c.logConsoleOpt
	}

	// Build output paths
	var paths []string
	seen := map[string]struct{}{}
	if console {
		paths = append(paths, "stdout")
		seen["stdout"] = struct{}{}
	}
	for _, f := range c.logFilesOpt {
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		paths = append(paths, f)
	}

	if len(paths) == 0 {
		// No outputs selected: default to console
		return defaultConsoleLogger()
	}

	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = paths
	if c.logLevel == LogDebug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// ===== Public API =====

// Start registers the schedule, starts it and, unless disabled, runs one
// cycle right away.
// Cycles started by the schedule use ctx.
func (c *Checker) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return errors.New("uptime: checker already started")
	}

	sched := cron.New(
		cron.WithLocation(c.location),
		cron.WithLogger(cronLogger{sugar: c.logger.Named("cron").Sugar()}),
	)
	id, err := sched.AddFunc(c.schedule, func() { c.fire(ctx, TriggerSchedule) })
	if err != nil {
		return fmt.Errorf("uptime: invalid schedule %q: %w", c.schedule, err)
	}
	c.cron = sched
	c.entryID = id
	sched.Start()
	c.ilog("Scheduler started (schedule %s)", c.schedule)

	if c.runOnStart {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.fire(ctx, TriggerStartup)
		}()
	}
	return nil
}

// Stop halts the schedule and waits for cycles it started to finish.
func (c *Checker) Stop() {
	c.mu.Lock()
	sched := c.cron
	c.cron = nil
	c.mu.Unlock()

	if sched != nil {
		<-sched.Stop().Done()
	}
	c.wg.Wait()
	c.ilog("Checker stopped")
}

// RunCycle runs one cycle now. It returns ErrCycleInProgress without doing
// anything when another cycle holds the gate.
func (c *Checker) RunCycle(ctx context.Context) (CycleSummary, error) {
	return c.runCycle(ctx, TriggerManual)
}

// Cycles delivers a report for every cycle that ran. Reports are dropped
// when nobody reads and the buffer is full.
func (c *Checker) Cycles() <-chan CycleReport { return c.reports }

// Status returns a snapshot of the scheduler.
func (c *Checker) Status() SchedulerStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := SchedulerStatus{
		Name:     schedulerName,
		Schedule: c.schedule,
		Started:  c.cron != nil,
		State:    StateIdle,
	}
	if c.running.Load() {
		st.State = StateRunning
	}
	if c.cron != nil {
		if next := c.cron.Entry(c.entryID).Next; !next.IsZero() {
			st.NextRun = &next
		}
	}
	if c.last != nil {
		last := *c.last
		st.LastCycle = &last
	}
	return st
}

// Stats returns uptime statistics for one system.
func (c *Checker) Stats(ctx context.Context, systemID uint) (UptimeStats, error) {
	return c.aggregator.Stats(ctx, systemID, c.now())
}

// Trend returns the daily uptime series for one system.
func (c *Checker) Trend(ctx context.Context, systemID uint, days int) ([]TrendPoint, error) {
	if _, err := c.store.GetSystemStatus(ctx, systemID); err != nil {
		return nil, err
	}
	return c.aggregator.ComputeTrend(ctx, systemID, days, c.now())
}

// Probe checks a single target without recording anything.
func (c *Checker) Probe(ctx context.Context, t Target) ProbeOutcome {
	return c.prober.Probe(ctx, t)
}

// Metrics exposes the checker's collectors.
func (c *Checker) Metrics() *Metrics { return c.metrics }

func (c *Checker) fire(ctx context.Context, trigger Trigger) {
	c.ilog("Health check cycle triggered (%s)", trigger)
	if _, err := c.runCycle(ctx, trigger); errors.Is(err, ErrCycleInProgress) {
		c.logger.Warn("previous check cycle still running, skipping this firing", zap.String("trigger", string(trigger)))
	}
}

func (c *Checker) runCycle(ctx context.Context, trigger Trigger) (summary CycleSummary, err error) {
	if !c.running.CompareAndSwap(false, true) {
		c.metrics.observeCycle("skipped", 0)
		return CycleSummary{}, ErrCycleInProgress
	}
	defer c.running.Store(false)

	report := CycleReport{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		StartedAt: c.now(),
	}
	logger := c.logger.With(zap.String("cycle_id", report.ID), zap.String("trigger", string(trigger)))
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("uptime: check cycle panicked: %v", r)
			logger.Error("check cycle panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
		report.FinishedAt = c.now()
		report.Summary = summary
		if err != nil {
			report.Error = err.Error()
			logger.Error("check cycle failed", zap.Error(err))
			c.metrics.observeCycle("failed", 0)
		} else {
			c.metrics.observeCycle("completed", time.Since(started).Seconds())
		}
		c.publish(report)
	}()

	// A started cycle runs to completion; only the per-target timeout ends a
	// request early.
	return c.cycle(context.WithoutCancel(ctx), logger)
}

func (c *Checker) publish(report CycleReport) {
	c.mu.Lock()
	c.last = &report
	c.mu.Unlock()

	select {
	case c.reports <- report:
	default:
	}
}
