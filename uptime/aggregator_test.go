package uptime_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amartya2002/uptime-monitor-core/persistence"
	"github.com/amartya2002/uptime-monitor-core/uptime"
)

// outage records a closed interval [start, start+d).
func outage(t *testing.T, store *persistence.MemoryStore, id uint, start time.Time, d time.Duration) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.InsertOpenInterval(ctx, id, start, "Up → Down", "test"))
	_, err := store.CloseLatestOpenInterval(ctx, id, start.Add(d))
	require.NoError(t, err)
}

type mapCache struct {
	mu          sync.Mutex
	entries     map[uint]uptime.UptimeStats
	invalidated []uint
}

func newMapCache() *mapCache { return &mapCache{entries: map[uint]uptime.UptimeStats{}} }

func (c *mapCache) GetStats(_ context.Context, id uint) (uptime.UptimeStats, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entries[id]
	return s, ok, nil
}

func (c *mapCache) SetStats(_ context.Context, id uint, s uptime.UptimeStats) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = s
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, ids ...uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.entries, id)
	}
	c.invalidated = append(c.invalidated, ids...)
	return nil
}

func TestComputeUptime_NoIntervals(t *testing.T) {
	store := persistence.NewMemoryStore()
	id := store.AddSystem(uptime.MonitoredSystem{Name: "a"})
	agg := uptime.NewAggregator(store, 30, time.UTC, nil, zap.NewNop(), nil)

	pct, err := agg.ComputeUptime(context.Background(), id, 30, t0)
	require.NoError(t, err)
	assert.Equal(t, 100.0, pct)
}

func TestComputeUptime_OneDayOutageInThirtyDays(t *testing.T) {
	store := persistence.NewMemoryStore()
	id := store.AddSystem(uptime.MonitoredSystem{Name: "a"})
	outage(t, store, id, t0.AddDate(0, 0, -3), 24*time.Hour)
	agg := uptime.NewAggregator(store, 30, time.UTC, nil, zap.NewNop(), nil)

	pct, err := agg.ComputeUptime(context.Background(), id, 30, t0)
	require.NoError(t, err)
	assert.Equal(t, 96.67, pct)
}

func TestComputeUptime_OpenIntervalCountsToNow(t *testing.T) {
	store := persistence.NewMemoryStore()
	id := store.AddSystem(uptime.MonitoredSystem{Name: "a"})
	require.NoError(t, store.InsertOpenInterval(context.Background(), id, t0.Add(-12*time.Hour), "Up → Down", ""))
	agg := uptime.NewAggregator(store, 1, time.UTC, nil, zap.NewNop(), nil)

	pct, err := agg.ComputeUptime(context.Background(), id, 1, t0)
	require.NoError(t, err)
	assert.Equal(t, 50.0, pct)
}

func TestComputeUptime_IgnoresIntervalsBeforeWindow(t *testing.T) {
	store := persistence.NewMemoryStore()
	id := store.AddSystem(uptime.MonitoredSystem{Name: "a"})
	outage(t, store, id, t0.AddDate(0, 0, -40), 48*time.Hour)
	agg := uptime.NewAggregator(store, 30, time.UTC, nil, zap.NewNop(), nil)

	pct, err := agg.ComputeUptime(context.Background(), id, 30, t0)
	require.NoError(t, err)
	assert.Equal(t, 100.0, pct)
}

func TestUpdateAllUptimes_IsIdempotent(t *testing.T) {
	store := persistence.NewMemoryStore()
	a := store.AddSystem(uptime.MonitoredSystem{Name: "a"})
	b := store.AddSystem(uptime.MonitoredSystem{Name: "b"})
	outage(t, store, a, t0.AddDate(0, 0, -1), 24*time.Hour)
	agg := uptime.NewAggregator(store, 30, time.UTC, nil, zap.NewNop(), nil)
	ctx := context.Background()

	require.NoError(t, agg.UpdateAllUptimes(ctx, t0))
	first, _ := store.System(a)
	require.NoError(t, agg.UpdateAllUptimes(ctx, t0))
	second, _ := store.System(a)

	assert.Equal(t, 96.67, first.UptimePercentage)
	assert.Equal(t, first.UptimePercentage, second.UptimePercentage)
	other, _ := store.System(b)
	assert.Equal(t, 100.0, other.UptimePercentage)
}

func TestComputeTrend_SplitsOutageAcrossDays(t *testing.T) {
	store := persistence.NewMemoryStore()
	id := store.AddSystem(uptime.MonitoredSystem{Name: "a"})
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	outage(t, store, id, time.Date(2024, 6, 9, 23, 0, 0, 0, time.UTC), 2*time.Hour)
	agg := uptime.NewAggregator(store, 30, time.UTC, nil, zap.NewNop(), nil)

	points, err := agg.ComputeTrend(context.Background(), id, 3, now)
	require.NoError(t, err)
	require.Len(t, points, 3)

	assert.Equal(t, uptime.TrendPoint{Date: "2024-06-08", Uptime: 100, Downtime: 0}, points[0])
	assert.Equal(t, uptime.TrendPoint{Date: "2024-06-09", Uptime: 95.83, Downtime: 60}, points[1])
	assert.Equal(t, uptime.TrendPoint{Date: "2024-06-10", Uptime: 95.83, Downtime: 60}, points[2])

	again, err := agg.ComputeTrend(context.Background(), id, 3, now)
	require.NoError(t, err)
	assert.Equal(t, points, again)
}

func TestComputeTrend_UsesConfiguredLocation(t *testing.T) {
	store := persistence.NewMemoryStore()
	id := store.AddSystem(uptime.MonitoredSystem{Name: "a"})
	loc := time.FixedZone("UTC+3", 3*60*60)
	now := time.Date(2024, 6, 10, 22, 0, 0, 0, time.UTC)
	agg := uptime.NewAggregator(store, 30, loc, nil, zap.NewNop(), nil)

	points, err := agg.ComputeTrend(context.Background(), id, 1, now)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "2024-06-11", points[0].Date)
}

func TestComputeTrend_NonPositiveDays(t *testing.T) {
	agg := uptime.NewAggregator(persistence.NewMemoryStore(), 30, time.UTC, nil, zap.NewNop(), nil)
	points, err := agg.ComputeTrend(context.Background(), 1, 0, t0)
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestStats(t *testing.T) {
	store := persistence.NewMemoryStore()
	id := store.AddSystem(uptime.MonitoredSystem{Name: "a"})
	for i := 1; i <= 6; i++ {
		outage(t, store, id, t0.AddDate(0, 0, -i), 30*time.Minute)
	}
	require.NoError(t, store.InsertOpenInterval(context.Background(), id, t0.Add(-30*time.Minute), "Up → Down", "HTTP 500"))
	agg := uptime.NewAggregator(store, 30, time.UTC, nil, zap.NewNop(), nil)

	stats, err := agg.Stats(context.Background(), id, t0)
	require.NoError(t, err)

	assert.Equal(t, 7, stats.TotalIncidents)
	assert.Equal(t, 210, stats.TotalDowntimeMinutes)
	assert.Equal(t, 3.5, stats.TotalDowntimeHours)
	assert.True(t, stats.CurrentlyDown)
	assert.Equal(t, 99.51, stats.UptimePercentage)
	require.Len(t, stats.RecentIncidents, 5)
	assert.True(t, stats.RecentIncidents[0].Open())
	for i := 1; i < len(stats.RecentIncidents); i++ {
		assert.True(t, stats.RecentIncidents[i-1].DownTime.After(stats.RecentIncidents[i].DownTime))
	}
}

func TestStats_UnknownSystem(t *testing.T) {
	agg := uptime.NewAggregator(persistence.NewMemoryStore(), 30, time.UTC, nil, zap.NewNop(), nil)
	_, err := agg.Stats(context.Background(), 42, t0)
	assert.ErrorIs(t, err, uptime.ErrSystemNotFound)
}

func TestStats_CachedUntilRefresh(t *testing.T) {
	store := persistence.NewMemoryStore()
	id := store.AddSystem(uptime.MonitoredSystem{Name: "a"})
	cache := newMapCache()
	agg := uptime.NewAggregator(store, 30, time.UTC, cache, zap.NewNop(), nil)
	ctx := context.Background()

	first, err := agg.Stats(ctx, id, t0)
	require.NoError(t, err)
	assert.Equal(t, 0, first.TotalIncidents)

	outage(t, store, id, t0.Add(-2*time.Hour), time.Hour)
	cached, err := agg.Stats(ctx, id, t0)
	require.NoError(t, err)
	assert.Equal(t, 0, cached.TotalIncidents)

	require.NoError(t, agg.UpdateAllUptimes(ctx, t0))
	assert.Contains(t, cache.invalidated, id)

	fresh, err := agg.Stats(ctx, id, t0)
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.TotalIncidents)
	assert.Equal(t, 60, fresh.TotalDowntimeMinutes)
}
