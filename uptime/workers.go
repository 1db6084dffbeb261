package uptime

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ===== Cycle internals =====

// cycle probes the whole roster, applies the outcomes and refreshes uptime.
func (c *Checker) cycle(ctx context.Context, logger *zap.Logger) (CycleSummary, error) {
	roster, err := c.store.ListProbeableSystems(ctx)
	if err != nil {
		return CycleSummary{}, fmt.Errorf("list probeable systems: %w", err)
	}

	summary := CycleSummary{Total: len(roster)}
	if ids, err := c.store.ListAllSystemIDs(ctx); err != nil {
		logger.Warn("could not count systems without URL", zap.Error(err))
	} else if len(ids) > len(roster) {
		summary.Total = len(ids)
		summary.Skipped = len(ids) - len(roster)
	}

	if len(roster) == 0 {
		c.ilog("No systems with URLs to check")
	} else {
		c.ilog("Checking %d system(s)...", len(roster))
	}

	// One goroutine per target, no cap: rosters are in the low hundreds and
	// every probe is bounded by its own timeout.
	outcomes := c.probeAll(ctx, roster)

	for _, o := range outcomes {
		c.log(o)
		c.metrics.observeProbe(o)
		if !o.Attempted {
			summary.Skipped++
			continue
		}
		summary.Checked++
		switch o.Status {
		case StatusUp:
			summary.Up++
		case StatusDown:
			summary.Down++
		}
		c.apply(ctx, logger, o)
	}

	if err := c.aggregator.UpdateAllUptimes(ctx, c.now()); err != nil {
		logger.Error("uptime refresh incomplete", zap.Error(err))
	}

	logger.Info("check cycle complete",
		zap.Int("total", summary.Total),
		zap.Int("checked", summary.Checked),
		zap.Int("up", summary.Up),
		zap.Int("down", summary.Down),
		zap.Int("skipped", summary.Skipped),
	)
	return summary, nil
}

func (c *Checker) probeAll(ctx context.Context, roster []Target) []ProbeOutcome {
	outcomes := make([]ProbeOutcome, len(roster))
	var wg sync.WaitGroup
	for i, t := range roster {
		wg.Add(1)
		go func(i int, t Target) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					outcomes[i] = ProbeOutcome{
						SystemID:   t.ID,
						SystemName: t.Name,
						Status:     StatusDown,
						Category:   CategoryUnknown,
						Error:      fmt.Sprintf("probe panicked: %v", r),
						Attempted:  true,
						CheckedAt:  c.now(),
					}
				}
			}()
			outcomes[i] = c.prober.Probe(ctx, t)
		}(i, t)
	}
	wg.Wait()
	return outcomes
}

// apply records one attempted outcome. A failed ledger write leaves the
// stored status untouched so the next cycle sees the transition again.
func (c *Checker) apply(ctx context.Context, logger *zap.Logger, o ProbeOutcome) {
	fields := []zap.Field{zap.Uint("system_id", o.SystemID), zap.String("system", o.SystemName)}

	oldStatus, err := c.store.GetSystemStatus(ctx, o.SystemID)
	if err != nil {
		logger.Error("read system status failed, skipping update", append(fields, zap.Error(err))...)
		return
	}
	if oldStatus != o.Status {
		if err := c.ledger.RecordOutcome(ctx, o.SystemID, oldStatus, o.Status, o.Error, o.CheckedAt); err != nil {
			logger.Error("transition not applied", append(fields, zap.Error(err))...)
			return
		}
	}
	if err := c.store.SetSystemStatus(ctx, o.SystemID, o.Status, o.CheckedAt); err != nil {
		logger.Error("store system status failed", append(fields, zap.Error(err))...)
	}
}

func (c *Checker) log(o ProbeOutcome) {
	switch c.logLevel {
	case LogNone:
		return
	case LogError:
		if o.Attempted && o.Status == StatusDown {
			c.logger.Error("Site DOWN", zap.String("name", o.SystemName), zap.String("error", o.Error))
		}
	case LogInfo:
		switch {
		case !o.Attempted:
			c.logger.Info("Site skipped", zap.String("name", o.SystemName), zap.String("reason", o.Error))
		case o.Status == StatusUp:
			c.logger.Info("Site UP", zap.String("name", o.SystemName), zap.Intp("status_code", o.HTTPStatus), zap.Int64("elapsed_ms", o.ElapsedMS))
		default:
			c.logger.Warn("Site DOWN", zap.String("name", o.SystemName), zap.String("error", o.Error), zap.String("category", string(o.Category)))
		}
	case LogDebug:
		c.logger.Debug("Site check", zap.String("name", o.SystemName),
			zap.Intp("status_code", o.HTTPStatus), zap.Int64("elapsed_ms", o.ElapsedMS),
			zap.String("error", o.Error), zap.String("category", string(o.Category)),
			zap.String("error_code", o.ErrorCode), zap.String("raw_error", o.RawError))
	}
}

// ===== Internal Logging Helper =====
func (c *Checker) ilog(format string, args ...interface{}) {
	if c.enableInternalLogs {
		c.logger.Info(fmt.Sprintf("[INTERNAL] "+format, args...))
	}
}
