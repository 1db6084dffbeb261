package uptime

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNoOpenInterval is returned when a Down→Up close finds nothing open.
	ErrNoOpenInterval = errors.New("uptime: no open downtime interval")
	// ErrOpenIntervalExists guards the one-open-interval-per-system invariant.
	ErrOpenIntervalExists = errors.New("uptime: downtime interval already open")
	// ErrSystemNotFound is returned by stores for unknown system IDs.
	ErrSystemNotFound = errors.New("uptime: system not found")
	// ErrCycleInProgress is returned when the single-flight gate is held.
	ErrCycleInProgress = errors.New("uptime: check cycle already running")
)

// Store is the persistence collaborator the core reads from and writes to.
//
// CloseLatestOpenInterval must find and close the newest open interval of
// the system as one atomic unit and return ErrNoOpenInterval when there is
// none. InsertOpenInterval must refuse with ErrOpenIntervalExists when the
// system already has an open interval.
type Store interface {
	ListProbeableSystems(ctx context.Context) ([]Target, error)
	ListAllSystemIDs(ctx context.Context) ([]uint, error)
	GetSystemStatus(ctx context.Context, id uint) (Status, error)
	SetSystemStatus(ctx context.Context, id uint, status Status, lastCheck time.Time) error
	InsertOpenInterval(ctx context.Context, systemID uint, start time.Time, transition, errorDetail string) error
	CloseLatestOpenInterval(ctx context.Context, systemID uint, end time.Time) (DowntimeInterval, error)
	ListIntervalsInWindow(ctx context.Context, systemID uint, since time.Time) ([]DowntimeInterval, error)
	SetUptimePercentage(ctx context.Context, id uint, percentage float64) error
}

// StatsCache is an optional read cache in front of Stats.
type StatsCache interface {
	GetStats(ctx context.Context, id uint) (UptimeStats, bool, error)
	SetStats(ctx context.Context, id uint, stats UptimeStats) error
	Invalidate(ctx context.Context, ids ...uint) error
}

// DowntimeMinutes is the whole-minute length of an outage, rounded to the
// nearest minute. Every duration stored or summed by this package uses it.
func DowntimeMinutes(start, end time.Time) int {
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Round(time.Minute) / time.Minute)
}
