// Package metrics tracks compile-run performance counters using
// lock-free atomic operations, and optionally exposes them as
// Prometheus gauges/counters for operational visibility.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gofhir/fsh/diag"
)

// Metrics tracks one compilation run's throughput and diagnostics. All
// methods are safe for concurrent use, though the compiler itself runs
// single-threaded per §5 of the concurrency model; this still matters
// for a long-running server process compiling many Tanks concurrently.
type Metrics struct {
	entitiesCompiled atomic.Uint64
	entitiesSkipped  atomic.Uint64

	compileTimeTotal atomic.Uint64
	compileTimeMin   atomic.Uint64
	compileTimeMax   atomic.Uint64

	cacheHits   atomic.Uint64
	cacheMisses atomic.Uint64

	errorsTotal   atomic.Uint64
	warningsTotal atomic.Uint64
	infosTotal    atomic.Uint64

	phaseTiming sync.Map // map[string]*phaseMetrics
}

type phaseMetrics struct {
	invocations atomic.Uint64
	totalTime   atomic.Uint64
	issuesFound atomic.Uint64
}

// New creates an empty Metrics instance.
func New() *Metrics {
	m := &Metrics{}
	m.compileTimeMin.Store(^uint64(0))
	return m
}

// --- Recording methods ---

// RecordEntity records one entity's export outcome and wall-clock cost.
func (m *Metrics) RecordEntity(duration time.Duration, skipped bool) {
	if skipped {
		m.entitiesSkipped.Add(1)
	} else {
		m.entitiesCompiled.Add(1)
	}

	ns := uint64(duration.Nanoseconds())
	m.compileTimeTotal.Add(ns)

	for {
		old := m.compileTimeMin.Load()
		if ns >= old {
			break
		}
		if m.compileTimeMin.CompareAndSwap(old, ns) {
			break
		}
	}
	for {
		old := m.compileTimeMax.Load()
		if ns <= old {
			break
		}
		if m.compileTimeMax.CompareAndSwap(old, ns) {
			break
		}
	}
}

// RecordCacheHit records a Definitions Cache hit.
func (m *Metrics) RecordCacheHit() { m.cacheHits.Add(1) }

// RecordCacheMiss records a Definitions Cache miss.
func (m *Metrics) RecordCacheMiss() { m.cacheMisses.Add(1) }

// RecordDiagnostic tallies one diagnostic by severity.
func (m *Metrics) RecordDiagnostic(sev diag.Severity) {
	switch sev {
	case diag.SeverityError:
		m.errorsTotal.Add(1)
	case diag.SeverityWarn:
		m.warningsTotal.Add(1)
	case diag.SeverityInfo:
		m.infosTotal.Add(1)
	}
}

// RecordPhase records one phase invocation's cost (import, assembly,
// sd export, instance export) for per-phase timing breakdowns.
func (m *Metrics) RecordPhase(phaseName string, duration time.Duration, issuesFound int) {
	pm := m.getOrCreatePhaseMetrics(phaseName)
	pm.invocations.Add(1)
	pm.totalTime.Add(uint64(duration.Nanoseconds()))
	pm.issuesFound.Add(uint64(issuesFound))
}

func (m *Metrics) getOrCreatePhaseMetrics(name string) *phaseMetrics {
	if v, ok := m.phaseTiming.Load(name); ok {
		return v.(*phaseMetrics)
	}
	pm := &phaseMetrics{}
	actual, _ := m.phaseTiming.LoadOrStore(name, pm)
	return actual.(*phaseMetrics)
}

// --- Query methods ---

// EntitiesCompiled returns the count of entities exported successfully.
func (m *Metrics) EntitiesCompiled() uint64 { return m.entitiesCompiled.Load() }

// EntitiesSkipped returns the count of entities skipped after an error.
func (m *Metrics) EntitiesSkipped() uint64 { return m.entitiesSkipped.Load() }

// CacheHitRate returns the Definitions Cache hit rate (0.0 to 1.0).
func (m *Metrics) CacheHitRate() float64 {
	hits, misses := m.cacheHits.Load(), m.cacheMisses.Load()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// PhaseStats reports aggregated timing for one named phase.
type PhaseStats struct {
	Name        string
	Invocations uint64
	TotalTime   time.Duration
	AvgTime     time.Duration
	IssuesFound uint64
}

// AllPhaseStats returns statistics for every recorded phase.
func (m *Metrics) AllPhaseStats() []PhaseStats {
	var stats []PhaseStats
	m.phaseTiming.Range(func(key, value any) bool {
		pm := value.(*phaseMetrics)
		name := key.(string)
		invocations := pm.invocations.Load()
		totalTime := pm.totalTime.Load()
		var avg time.Duration
		if invocations > 0 {
			avg = time.Duration(totalTime / invocations)
		}
		stats = append(stats, PhaseStats{
			Name: name, Invocations: invocations,
			TotalTime: time.Duration(totalTime), AvgTime: avg,
			IssuesFound: pm.issuesFound.Load(),
		})
		return true
	})
	return stats
}

// Snapshot is a point-in-time readout of every counter, suitable for
// the CLI's JSON summary output.
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`

	EntitiesCompiled uint64 `json:"entities_compiled"`
	EntitiesSkipped  uint64 `json:"entities_skipped"`

	AvgCompileTimeNs uint64 `json:"avg_compile_time_ns"`
	MinCompileTimeNs uint64 `json:"min_compile_time_ns"`
	MaxCompileTimeNs uint64 `json:"max_compile_time_ns"`

	CacheHits    uint64  `json:"cache_hits"`
	CacheMisses  uint64  `json:"cache_misses"`
	CacheHitRate float64 `json:"cache_hit_rate"`

	ErrorsTotal   uint64 `json:"errors_total"`
	WarningsTotal uint64 `json:"warnings_total"`
	InfosTotal    uint64 `json:"infos_total"`

	Phases []PhaseStats `json:"phases,omitempty"`
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (m *Metrics) Snapshot() Snapshot {
	total := m.entitiesCompiled.Load() + m.entitiesSkipped.Load()
	var avg float64
	if total > 0 {
		avg = float64(m.compileTimeTotal.Load()) / float64(total)
	}
	minTime := m.compileTimeMin.Load()
	if minTime == ^uint64(0) {
		minTime = 0
	}
	return Snapshot{
		Timestamp:        time.Now(),
		EntitiesCompiled: m.entitiesCompiled.Load(),
		EntitiesSkipped:  m.entitiesSkipped.Load(),
		AvgCompileTimeNs: uint64(avg),
		MinCompileTimeNs: minTime,
		MaxCompileTimeNs: m.compileTimeMax.Load(),
		CacheHits:        m.cacheHits.Load(),
		CacheMisses:      m.cacheMisses.Load(),
		CacheHitRate:     m.CacheHitRate(),
		ErrorsTotal:      m.errorsTotal.Load(),
		WarningsTotal:    m.warningsTotal.Load(),
		InfosTotal:       m.infosTotal.Load(),
		Phases:           m.AllPhaseStats(),
	}
}

// Collector adapts Metrics to prometheus.Collector so a long-running
// fsh server process can expose /metrics alongside its CLI use.
type Collector struct {
	m *Metrics

	entitiesCompiled *prometheus.Desc
	entitiesSkipped  *prometheus.Desc
	cacheHitRate     *prometheus.Desc
	errorsTotal      *prometheus.Desc
	warningsTotal    *prometheus.Desc
}

// NewCollector wraps m for Prometheus registration.
func NewCollector(m *Metrics) *Collector {
	return &Collector{
		m:                m,
		entitiesCompiled: prometheus.NewDesc("fsh_entities_compiled_total", "Entities exported successfully.", nil, nil),
		entitiesSkipped:  prometheus.NewDesc("fsh_entities_skipped_total", "Entities skipped after a fatal error.", nil, nil),
		cacheHitRate:     prometheus.NewDesc("fsh_definitions_cache_hit_rate", "Definitions Cache hit rate.", nil, nil),
		errorsTotal:      prometheus.NewDesc("fsh_diagnostics_errors_total", "Error-severity diagnostics emitted.", nil, nil),
		warningsTotal:    prometheus.NewDesc("fsh_diagnostics_warnings_total", "Warning-severity diagnostics emitted.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entitiesCompiled
	ch <- c.entitiesSkipped
	ch <- c.cacheHitRate
	ch <- c.errorsTotal
	ch <- c.warningsTotal
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.m.Snapshot()
	ch <- prometheus.MustNewConstMetric(c.entitiesCompiled, prometheus.CounterValue, float64(s.EntitiesCompiled))
	ch <- prometheus.MustNewConstMetric(c.entitiesSkipped, prometheus.CounterValue, float64(s.EntitiesSkipped))
	ch <- prometheus.MustNewConstMetric(c.cacheHitRate, prometheus.GaugeValue, s.CacheHitRate)
	ch <- prometheus.MustNewConstMetric(c.errorsTotal, prometheus.CounterValue, float64(s.ErrorsTotal))
	ch <- prometheus.MustNewConstMetric(c.warningsTotal, prometheus.CounterValue, float64(s.WarningsTotal))
}
