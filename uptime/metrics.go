package uptime

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors of a Checker. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	CyclesTotal      *prometheus.CounterVec
	CycleDuration    prometheus.Histogram
	ProbesTotal      *prometheus.CounterVec
	ProbeDuration    prometheus.Histogram
	TransitionsTotal *prometheus.CounterVec
	SystemUptime     *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them on reg when reg is
// non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uptime",
			Name:      "cycles_total",
			Help:      "Check cycles by result (completed, failed, skipped).",
		}, []string{"result"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "uptime",
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of completed check cycles.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}),
		ProbesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uptime",
			Name:      "probes_total",
			Help:      "Attempted probes by resulting status and error category.",
		}, []string{"status", "category"}),
		ProbeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "uptime",
			Name:      "probe_duration_seconds",
			Help:      "Elapsed time of attempted probes.",
			Buckets:   prometheus.DefBuckets,
		}),
		TransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uptime",
			Name:      "transitions_total",
			Help:      "Applied status transitions by new status.",
		}, []string{"to"}),
		SystemUptime: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "uptime",
			Name:      "system_uptime_percent",
			Help:      "Trailing-window uptime percentage per system.",
		}, []string{"system_id"}),
	}
	if reg != nil {
		reg.MustRegister(m.CyclesTotal, m.CycleDuration, m.ProbesTotal, m.ProbeDuration, m.TransitionsTotal, m.SystemUptime)
	}
	return m
}

func (m *Metrics) observeCycle(result string, seconds float64) {
	if m == nil {
		return
	}
	m.CyclesTotal.WithLabelValues(result).Inc()
	if result == "completed" {
		m.CycleDuration.Observe(seconds)
	}
}

func (m *Metrics) observeProbe(o ProbeOutcome) {
	if m == nil || !o.Attempted {
		return
	}
	category := string(o.Category)
	if category == "" {
		category = "none"
	}
	m.ProbesTotal.WithLabelValues(string(o.Status), category).Inc()
	m.ProbeDuration.Observe(float64(o.ElapsedMS) / 1000)
}

func (m *Metrics) observeTransition(to Status) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(string(to)).Inc()
}

func (m *Metrics) setUptime(id uint, pct float64) {
	if m == nil {
		return
	}
	m.SystemUptime.WithLabelValues(strconv.FormatUint(uint64(id), 10)).Set(pct)
}
