// Package uptime exposes configuration options for the Checker via a
// functional options API.
package uptime

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// ===== Options Pattern =====
type Option func(*Checker)

// WithSchedule sets a standard five-field cron expression or a descriptor
// such as "@every 5m".
func WithSchedule(expr string) Option {
	return func(c *Checker) {
		if expr != "" {
			c.schedule = expr
		}
	}
}

// WithIntervalMinutes schedules a cycle every n minutes.
func WithIntervalMinutes(n int) Option {
	return func(c *Checker) {
		if n > 0 {
			c.schedule = IntervalSchedule(n)
		}
	}
}

// WithRunOnStart controls the immediate cycle fired by Start. On by default.
func WithRunOnStart(enabled bool) Option {
	return func(c *Checker) { c.runOnStart = enabled }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Checker) { c.probeCfg.Timeout = d }
}

func WithRedirectLimit(n int) Option {
	return func(c *Checker) { c.probeCfg.RedirectLimit = n }
}

// WithTLSVerification turns server identity validation on. It is off by
// default so that hosts with self-signed or non-standard chains can still be
// observed.
func WithTLSVerification(enabled bool) Option {
	return func(c *Checker) { c.probeCfg.VerifyTLS = enabled }
}

// WithTransport replaces the probe HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Checker) { c.probeCfg.Transport = rt }
}

func WithWindowDays(n int) Option {
	return func(c *Checker) {
		if n > 0 {
			c.windowDays = n
		}
	}
}

// WithLocation sets the time zone used for schedules and trend days.
func WithLocation(loc *time.Location) Option {
	return func(c *Checker) {
		if loc != nil {
			c.location = loc
		}
	}
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Checker) {
		if now != nil {
			c.now = now
		}
	}
}

func WithStatsCache(cache StatsCache) Option {
	return func(c *Checker) { c.cache = cache }
}

// WithMetricsRegisterer registers the checker's collectors on reg.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(c *Checker) { c.registerer = reg }
}

func WithLogLevel(level LogLevel) Option {
	return func(c *Checker) { c.logLevel = level }
}

// WithResultBuffer sizes the cycle report channel.
func WithResultBuffer(size int) Option {
	return func(c *Checker) {
		if size >= 0 {
			c.reports = make(chan CycleReport, size)
		}
	}
}

// enable/disable internal logs
func WithInternalLogs(enabled bool) Option {
	return func(c *Checker) { c.enableInternalLogs = enabled }
}

// WithZapLogger sets up a zap logger. If filePath is empty, logs to console.
func WithZapLogger(filePath string) Option {
	return func(c *Checker) {
		var err error
		if filePath != "" {
			cfg := zap.NewProductionConfig()
			cfg.OutputPaths = []string{"stdout", filePath}
			c.logger, err = cfg.Build()
		} else {
			c.logger, err = zap.NewProduction(zap.AddCallerSkip(1))
		}
		if err != nil {
			panic(fmt.Sprintf("Failed to initialize Zap logger: %v", err))
		}
		c.loggerExplicit = true
	}
}

// WithLogger allows injecting a custom zap logger (useful in tests).
func WithLogger(l *zap.Logger) Option {
	return func(c *Checker) {
		c.logger = l
		c.loggerExplicit = l != nil
	}
}

// LogConsole turns the stdout sink on or off.
func LogConsole(enabled bool) Option {
	return func(c *Checker) { c.logConsoleOpt = &enabled }
}

// LogFile adds a file sink; it may be given more than once.
func LogFile(path string) Option {
	return func(c *Checker) { c.logFilesOpt = append(c.logFilesOpt, path) }
}

// DisableLogs silences the checker entirely.
func DisableLogs() Option {
	return func(c *Checker) { c.logDisableOpt = true }
}
