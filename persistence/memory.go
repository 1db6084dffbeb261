package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/amartya2002/uptime-monitor-core/uptime"
)

// MemoryStore keeps systems and intervals in process memory. Every method
// runs under one mutex, which makes the close operation atomic.
type MemoryStore struct {
	mu        sync.Mutex
	nextID    uint
	nextIvID  uint
	systems   map[uint]*uptime.MonitoredSystem
	intervals map[uint][]uptime.DowntimeInterval
}

var _ uptime.Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		systems:   make(map[uint]*uptime.MonitoredSystem),
		intervals: make(map[uint][]uptime.DowntimeInterval),
	}
}

// AddSystem stores s under a fresh ID and returns it. An empty status
// becomes Up.
func (m *MemoryStore) AddSystem(s uptime.MonitoredSystem) uint {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	s.ID = m.nextID
	if s.Status == "" {
		s.Status = uptime.StatusUp
	}
	m.systems[s.ID] = &s
	return s.ID
}

// System returns a copy of one system.
func (m *MemoryStore) System(id uint) (uptime.MonitoredSystem, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.systems[id]
	if !ok {
		return uptime.MonitoredSystem{}, false
	}
	return *s, true
}

// Intervals returns a copy of every interval of a system, oldest first.
func (m *MemoryStore) Intervals(id uint) []uptime.DowntimeInterval {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uptime.DowntimeInterval(nil), m.intervals[id]...)
}

// DeleteSystem removes a system and its intervals.
func (m *MemoryStore) DeleteSystem(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.systems[id]; !ok {
		return uptime.ErrSystemNotFound
	}
	delete(m.systems, id)
	delete(m.intervals, id)
	return nil
}

// ImportSystems mirrors Repository.ImportSystems.
func (m *MemoryStore) ImportSystems(_ context.Context, seeds []SystemSeed) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, seed := range seeds {
		if existing := m.byName(seed.Name); existing != nil {
			existing.Type, existing.Agency, existing.URL = seed.Type, seed.Agency, seed.URL
			continue
		}
		status := seed.Status
		if status == "" {
			status = uptime.StatusUp
		}
		m.nextID++
		m.systems[m.nextID] = &uptime.MonitoredSystem{
			ID:               m.nextID,
			Name:             seed.Name,
			Type:             seed.Type,
			Agency:           seed.Agency,
			URL:              seed.URL,
			Status:           status,
			UptimePercentage: 100,
		}
	}
	return len(seeds), nil
}

func (m *MemoryStore) byName(name string) *uptime.MonitoredSystem {
	for _, s := range m.systems {
		if s.Name == name {
			return s
		}
	}
	return nil
}

func (m *MemoryStore) sortedIDs() []uint {
	ids := make([]uint, 0, len(m.systems))
	for id := range m.systems {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (m *MemoryStore) ListProbeableSystems(context.Context) ([]uptime.Target, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []uptime.Target
	for _, id := range m.sortedIDs() {
		s := m.systems[id]
		if s.URL == "" {
			continue
		}
		res = append(res, uptime.Target{ID: s.ID, Name: s.Name, URL: s.URL, Status: s.Status})
	}
	return res, nil
}

func (m *MemoryStore) ListAllSystemIDs(context.Context) ([]uint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedIDs(), nil
}

func (m *MemoryStore) GetSystemStatus(_ context.Context, id uint) (uptime.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.systems[id]
	if !ok {
		return "", uptime.ErrSystemNotFound
	}
	return s.Status, nil
}

func (m *MemoryStore) SetSystemStatus(_ context.Context, id uint, status uptime.Status, lastCheck time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.systems[id]
	if !ok {
		return uptime.ErrSystemNotFound
	}
	s.Status = status
	lc := lastCheck
	s.LastCheck = &lc
	return nil
}

func (m *MemoryStore) InsertOpenInterval(_ context.Context, systemID uint, start time.Time, transition, errorDetail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.systems[systemID]; !ok {
		return uptime.ErrSystemNotFound
	}
	for _, iv := range m.intervals[systemID] {
		if iv.Open() {
			return uptime.ErrOpenIntervalExists
		}
	}
	m.nextIvID++
	m.intervals[systemID] = append(m.intervals[systemID], uptime.DowntimeInterval{
		ID:              m.nextIvID,
		SystemID:        systemID,
		DownTime:        start,
		StateTransition: transition,
		ErrorMessage:    errorDetail,
	})
	return nil
}

func (m *MemoryStore) CloseLatestOpenInterval(_ context.Context, systemID uint, end time.Time) (uptime.DowntimeInterval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ivs := m.intervals[systemID]
	latest := -1
	for i := range ivs {
		if !ivs[i].Open() {
			continue
		}
		if latest < 0 || ivs[i].DownTime.After(ivs[latest].DownTime) {
			latest = i
		}
	}
	if latest < 0 {
		return uptime.DowntimeInterval{}, uptime.ErrNoOpenInterval
	}
	up := end
	duration := uptime.DowntimeMinutes(ivs[latest].DownTime, end)
	ivs[latest].UpTime = &up
	ivs[latest].DurationMinutes = &duration
	return ivs[latest], nil
}

func (m *MemoryStore) ListIntervalsInWindow(_ context.Context, systemID uint, since time.Time) ([]uptime.DowntimeInterval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []uptime.DowntimeInterval
	for _, iv := range m.intervals[systemID] {
		if !iv.DownTime.Before(since) {
			res = append(res, iv)
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].DownTime.Before(res[j].DownTime) })
	return res, nil
}

func (m *MemoryStore) SetUptimePercentage(_ context.Context, id uint, percentage float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.systems[id]
	if !ok {
		return uptime.ErrSystemNotFound
	}
	s.UptimePercentage = percentage
	return nil
}
