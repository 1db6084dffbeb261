// Package uptime defines core types for the uptime monitor.
package uptime

import (
	"fmt"
	"strings"
	"time"
)

type LogLevel int

const (
	LogNone  LogLevel = iota // no logs
	LogError                 // only errors
	LogInfo                  // info + errors
	LogDebug                 // verbose
)

// ParseLogLevel maps "none", "error", "info" and "debug" to a LogLevel.
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "off":
		return LogNone, nil
	case "error":
		return LogError, nil
	case "", "info":
		return LogInfo, nil
	case "debug":
		return LogDebug, nil
	}
	return LogInfo, fmt.Errorf("unknown log level %q", s)
}

// Status is the availability state stored for a monitored system.
type Status string

const (
	StatusUp          Status = "Up"
	StatusDown        Status = "Down"
	StatusMaintenance Status = "Maintenance"
)

// ErrorCategory classifies why a probe resulted in Down.
type ErrorCategory string

const (
	CategoryNone                    ErrorCategory = ""
	CategoryConnectionRefused       ErrorCategory = "connection-refused"
	CategoryTimeout                 ErrorCategory = "timeout"
	CategoryDNSFailure              ErrorCategory = "dns-failure"
	CategoryConnectionReset         ErrorCategory = "connection-reset"
	CategoryCertificateExpired      ErrorCategory = "certificate-expired"
	CategoryCertificateVerification ErrorCategory = "certificate-verification-failed"
	CategoryHTTPErrorStatus         ErrorCategory = "http-error-status"
	CategoryUnknown                 ErrorCategory = "unknown"
)

// Target is one roster member handed to the probe engine.
type Target struct {
	ID     uint   `json:"id"`
	Name   string `json:"name"`
	URL    string `json:"url"`
	Status Status `json:"status"`
}

// MonitoredSystem is the stored view of a system.
type MonitoredSystem struct {
	ID               uint       `json:"id"`
	Name             string     `json:"name"`
	Type             string     `json:"type,omitempty"`
	Agency           string     `json:"agency,omitempty"`
	URL              string     `json:"url,omitempty"`
	Status           Status     `json:"status"`
	UptimePercentage float64    `json:"uptime_percentage"`
	LastCheck        *time.Time `json:"last_check,omitempty"`
}

// DowntimeInterval is one outage. UpTime is nil while the outage is open.
type DowntimeInterval struct {
	ID              uint       `json:"id"`
	SystemID        uint       `json:"system_id"`
	DownTime        time.Time  `json:"down_time"`
	UpTime          *time.Time `json:"up_time"`
	DurationMinutes *int       `json:"duration_minutes"`
	StateTransition string     `json:"state_transition"`
	ErrorMessage    string     `json:"error_message,omitempty"`
}

// Open reports whether the outage has not ended yet.
func (d DowntimeInterval) Open() bool { return d.UpTime == nil }

// ProbeOutcome represents the outcome of a single probe.
type ProbeOutcome struct {
	SystemID   uint          `json:"system_id"`
	SystemName string        `json:"system_name"`
	Status     Status        `json:"status"`
	ElapsedMS  int64         `json:"elapsed_ms"`
	HTTPStatus *int          `json:"http_status,omitempty"`
	Error      string        `json:"error,omitempty"`
	Category   ErrorCategory `json:"category,omitempty"`
	ErrorCode  string        `json:"error_code,omitempty"`
	RawError   string        `json:"raw_error,omitempty"`
	Attempted  bool          `json:"attempted"`
	CheckedAt  time.Time     `json:"checked_at"`
}

// CycleSummary counts what one check cycle did.
type CycleSummary struct {
	Total   int `json:"total"`
	Checked int `json:"checked"`
	Up      int `json:"up"`
	Down    int `json:"down"`
	Skipped int `json:"skipped"`
}

// Trigger names what started a cycle.
type Trigger string

const (
	TriggerStartup  Trigger = "startup"
	TriggerSchedule Trigger = "schedule"
	TriggerManual   Trigger = "manual"
)

// CycleReport is published once per finished (or failed) cycle.
type CycleReport struct {
	ID         string       `json:"id"`
	Trigger    Trigger      `json:"trigger"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Summary    CycleSummary `json:"summary"`
	Error      string       `json:"error,omitempty"`
}

// UptimeStats summarises the trailing window for one system.
type UptimeStats struct {
	UptimePercentage     float64            `json:"uptime_percentage"`
	TotalIncidents       int                `json:"total_incidents"`
	TotalDowntimeMinutes int                `json:"total_downtime_minutes"`
	TotalDowntimeHours   float64            `json:"total_downtime_hours"`
	CurrentlyDown        bool               `json:"currently_down"`
	RecentIncidents      []DowntimeInterval `json:"recent_incidents"`
}

// TrendPoint is one calendar day of a trend series.
type TrendPoint struct {
	Date     string  `json:"date"`
	Uptime   float64 `json:"uptime"`
	Downtime int     `json:"downtime"`
}

// SchedulerState is either idle or running a cycle.
type SchedulerState string

const (
	StateIdle    SchedulerState = "idle"
	StateRunning SchedulerState = "running"
)

// SchedulerStatus is a snapshot of the scheduler for operators.
type SchedulerStatus struct {
	Name      string         `json:"name"`
	Schedule  string         `json:"schedule"`
	Started   bool           `json:"started"`
	State     SchedulerState `json:"state"`
	NextRun   *time.Time     `json:"next_run,omitempty"`
	LastCycle *CycleReport   `json:"last_cycle,omitempty"`
}
