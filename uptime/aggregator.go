package uptime

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	minutesPerDay     = 1440
	defaultWindowDays = 30
	maxRecentIncident = 5
)

// Aggregator derives uptime figures from stored downtime intervals. All of
// its reads are pure functions of the store contents and the given time.
type Aggregator struct {
	store      Store
	windowDays int
	location   *time.Location
	cache      StatsCache
	logger     *zap.Logger
	metrics    *Metrics
}

// NewAggregator creates an aggregator with a trailing window of windowDays
// (30 when not positive). loc decides calendar-day boundaries for trends.
func NewAggregator(store Store, windowDays int, loc *time.Location, cache StatsCache, logger *zap.Logger, metrics *Metrics) *Aggregator {
	if windowDays <= 0 {
		windowDays = defaultWindowDays
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		store:      store,
		windowDays: windowDays,
		location:   loc,
		cache:      cache,
		logger:     logger,
		metrics:    metrics,
	}
}

// WindowDays is the trailing window used by ComputeUptime and Stats.
func (a *Aggregator) WindowDays() int { return a.windowDays }

// ComputeUptime returns the availability percentage of a system over the
// trailing windowDays ending at now, rounded to two decimals.
func (a *Aggregator) ComputeUptime(ctx context.Context, systemID uint, windowDays int, now time.Time) (float64, error) {
	if windowDays <= 0 {
		windowDays = a.windowDays
	}
	since := now.Add(-time.Duration(windowDays) * 24 * time.Hour)
	intervals, err := a.store.ListIntervalsInWindow(ctx, systemID, since)
	if err != nil {
		return 0, fmt.Errorf("list intervals for system %d: %w", systemID, err)
	}
	return Percentage(windowDays*minutesPerDay, sumDowntime(intervals, now)), nil
}

// Percentage computes clamp((total-down)/total*100, 0, 100) rounded to two
// decimals.
func Percentage(totalMinutes, downtimeMinutes int) float64 {
	if totalMinutes <= 0 {
		return 0
	}
	total := decimal.NewFromInt(int64(totalMinutes))
	pct := total.Sub(decimal.NewFromInt(int64(downtimeMinutes))).
		Div(total).
		Mul(decimal.NewFromInt(100))
	if pct.IsNegative() {
		pct = decimal.Zero
	}
	if pct.GreaterThan(decimal.NewFromInt(100)) {
		pct = decimal.NewFromInt(100)
	}
	return pct.Round(2).InexactFloat64()
}

func sumDowntime(intervals []DowntimeInterval, now time.Time) int {
	total := 0
	for _, iv := range intervals {
		total += DowntimeMinutes(iv.DownTime, intervalEnd(iv, now))
	}
	return total
}

func intervalEnd(iv DowntimeInterval, now time.Time) time.Time {
	if iv.UpTime != nil {
		return *iv.UpTime
	}
	return now
}

// ComputeTrend returns one point per calendar day for the last days days
// (today included), oldest first. Each interval contributes the part of it
// that overlaps the day; open intervals run until now.
func (a *Aggregator) ComputeTrend(ctx context.Context, systemID uint, days int, now time.Time) ([]TrendPoint, error) {
	if days <= 0 {
		return []TrendPoint{}, nil
	}
	local := now.In(a.location)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, a.location)
	first := today.AddDate(0, 0, -(days - 1))

	intervals, err := a.store.ListIntervalsInWindow(ctx, systemID, first)
	if err != nil {
		return nil, fmt.Errorf("list intervals for system %d: %w", systemID, err)
	}

	points := make([]TrendPoint, 0, days)
	for i := 0; i < days; i++ {
		dayStart := first.AddDate(0, 0, i)
		dayEnd := dayStart.AddDate(0, 0, 1)
		down := 0
		for _, iv := range intervals {
			lo, hi := iv.DownTime, intervalEnd(iv, now)
			if lo.Before(dayStart) {
				lo = dayStart
			}
			if hi.After(dayEnd) {
				hi = dayEnd
			}
			if hi.After(lo) {
				down += DowntimeMinutes(lo, hi)
			}
		}
		if down > minutesPerDay {
			down = minutesPerDay
		}
		points = append(points, TrendPoint{
			Date:     dayStart.Format("2006-01-02"),
			Uptime:   Percentage(minutesPerDay, down),
			Downtime: down,
		})
	}
	return points, nil
}

// Stats summarises the trailing window of one system. Results are served
// from the cache when one is configured.
func (a *Aggregator) Stats(ctx context.Context, systemID uint, now time.Time) (UptimeStats, error) {
	if a.cache != nil {
		if cached, ok, err := a.cache.GetStats(ctx, systemID); err != nil {
			a.logger.Warn("uptime stats cache read failed", zap.Uint("system_id", systemID), zap.Error(err))
		} else if ok {
			return cached, nil
		}
	}

	if _, err := a.store.GetSystemStatus(ctx, systemID); err != nil {
		return UptimeStats{}, err
	}
	since := now.Add(-time.Duration(a.windowDays) * 24 * time.Hour)
	intervals, err := a.store.ListIntervalsInWindow(ctx, systemID, since)
	if err != nil {
		return UptimeStats{}, fmt.Errorf("list intervals for system %d: %w", systemID, err)
	}
	sort.SliceStable(intervals, func(i, j int) bool {
		return intervals[i].DownTime.After(intervals[j].DownTime)
	})

	stats := UptimeStats{
		TotalIncidents:  len(intervals),
		RecentIncidents: intervals,
	}
	for _, iv := range intervals {
		stats.TotalDowntimeMinutes += DowntimeMinutes(iv.DownTime, intervalEnd(iv, now))
		if iv.Open() {
			stats.CurrentlyDown = true
		}
	}
	stats.UptimePercentage = Percentage(a.windowDays*minutesPerDay, stats.TotalDowntimeMinutes)
	stats.TotalDowntimeHours = decimal.NewFromInt(int64(stats.TotalDowntimeMinutes)).
		Div(decimal.NewFromInt(60)).
		Round(2).
		InexactFloat64()
	if len(stats.RecentIncidents) > maxRecentIncident {
		stats.RecentIncidents = stats.RecentIncidents[:maxRecentIncident]
	}

	if a.cache != nil {
		if err := a.cache.SetStats(ctx, systemID, stats); err != nil {
			a.logger.Warn("uptime stats cache write failed", zap.Uint("system_id", systemID), zap.Error(err))
		}
	}
	return stats, nil
}

// UpdateAllUptimes recomputes and stores the percentage of every system,
// one after another. A failing system does not stop the pass; all failures
// are returned joined.
func (a *Aggregator) UpdateAllUptimes(ctx context.Context, now time.Time) error {
	ids, err := a.store.ListAllSystemIDs(ctx)
	if err != nil {
		return fmt.Errorf("list systems: %w", err)
	}

	var errs []error
	for _, id := range ids {
		pct, err := a.ComputeUptime(ctx, id, a.windowDays, now)
		if err != nil {
			a.logger.Error("compute uptime failed", zap.Uint("system_id", id), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		if err := a.store.SetUptimePercentage(ctx, id, pct); err != nil {
			a.logger.Error("store uptime failed", zap.Uint("system_id", id), zap.Error(err))
			errs = append(errs, fmt.Errorf("store uptime for system %d: %w", id, err))
			continue
		}
		a.metrics.setUptime(id, pct)
		a.logger.Debug("uptime updated", zap.Uint("system_id", id), zap.Float64("uptime_percentage", pct))
	}

	if a.cache != nil && len(ids) > 0 {
		if err := a.cache.Invalidate(ctx, ids...); err != nil {
			a.logger.Warn("uptime stats cache invalidation failed", zap.Error(err))
		}
	}
	return errors.Join(errs...)
}
