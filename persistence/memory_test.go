package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amartya2002/uptime-monitor-core/persistence"
	"github.com/amartya2002/uptime-monitor-core/uptime"
)

func TestMemoryStore_IntervalInvariants(t *testing.T) {
	store := persistence.NewMemoryStore()
	id := store.AddSystem(uptime.MonitoredSystem{Name: "portal", URL: "https://portal.example"})
	ctx := context.Background()

	_, err := store.CloseLatestOpenInterval(ctx, id, t0)
	assert.ErrorIs(t, err, uptime.ErrNoOpenInterval)

	require.NoError(t, store.InsertOpenInterval(ctx, id, t0, "Up → Down", ""))
	assert.ErrorIs(t, store.InsertOpenInterval(ctx, id, t0.Add(time.Minute), "Up → Down", ""), uptime.ErrOpenIntervalExists)

	closed, err := store.CloseLatestOpenInterval(ctx, id, t0.Add(2*time.Minute+29*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 2, *closed.DurationMinutes)

	_, err = store.CloseLatestOpenInterval(ctx, id, t0.Add(time.Hour))
	assert.ErrorIs(t, err, uptime.ErrNoOpenInterval)
	assert.Equal(t, 2, *store.Intervals(id)[0].DurationMinutes)
}

func TestMemoryStore_RosterAndStatus(t *testing.T) {
	store := persistence.NewMemoryStore()
	ctx := context.Background()
	n, err := store.ImportSystems(ctx, []persistence.SystemSeed{
		{Name: "portal", URL: "https://portal.example"},
		{Name: "intranet"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = store.ImportSystems(ctx, []persistence.SystemSeed{{Name: "portal", URL: "https://new.example"}})
	require.NoError(t, err)

	targets, err := store.ListProbeableSystems(ctx)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, "https://new.example", targets[0].URL)

	ids, err := store.ListAllSystemIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 2}, ids)

	require.NoError(t, store.SetSystemStatus(ctx, 1, uptime.StatusDown, t0))
	status, err := store.GetSystemStatus(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, uptime.StatusDown, status)

	assert.ErrorIs(t, store.SetUptimePercentage(ctx, 7, 50), uptime.ErrSystemNotFound)
	require.NoError(t, store.DeleteSystem(ctx, 2))
	_, err = store.GetSystemStatus(ctx, 2)
	assert.ErrorIs(t, err, uptime.ErrSystemNotFound)
}
