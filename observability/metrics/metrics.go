// Package metrics defines the Prometheus metric families for each major
// Aura subsystem (journal, guard chain, ceremony runtime), grounded on the
// teacher's observability/metrics.go lazily-initialized module-metrics
// pattern (sync.Once-guarded singletons, namespace/subsystem/name triples).
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// JournalMetrics instruments fact appends and journal merges (C1).
type JournalMetrics struct {
	FactsAppended   *prometheus.CounterVec
	MergeDuration   *prometheus.HistogramVec
	JournalSize     *prometheus.GaugeVec
}

// GuardMetrics instruments the guard chain's three steps (C3).
type GuardMetrics struct {
	Evaluations    *prometheus.CounterVec // labels: step, outcome
	FlowBudgetSpent *prometheus.CounterVec
}

// CeremonyMetrics instruments the ceremony runtime (C5).
type CeremonyMetrics struct {
	Started     *prometheus.CounterVec // labels: kind
	Completed   *prometheus.CounterVec // labels: kind, outcome
	ActiveGauge prometheus.Gauge
}

var (
	once     sync.Once
	journal  *JournalMetrics
	guard    *GuardMetrics
	ceremony *CeremonyMetrics
)

func initAll() {
	journal = &JournalMetrics{
		FactsAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aura",
			Subsystem: "journal",
			Name:      "facts_appended_total",
			Help:      "Total facts appended to a journal, segmented by namespace kind.",
		}, []string{"namespace_kind"}),
		MergeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aura",
			Subsystem: "journal",
			Name:      "merge_duration_seconds",
			Help:      "Latency distribution for journal merge operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"namespace_kind"}),
		JournalSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "aura",
			Subsystem: "journal",
			Name:      "fact_count",
			Help:      "Current number of facts held by a journal.",
		}, []string{"namespace_kind"}),
	}

	guard = &GuardMetrics{
		Evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aura",
			Subsystem: "guard",
			Name:      "evaluations_total",
			Help:      "Guard-chain evaluations segmented by step and outcome.",
		}, []string{"step", "outcome"}),
		FlowBudgetSpent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aura",
			Subsystem: "guard",
			Name:      "flow_budget_spent_total",
			Help:      "Flow-budget units charged, segmented by context.",
		}, []string{"context"}),
	}

	ceremony = &CeremonyMetrics{
		Started: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aura",
			Subsystem: "ceremony",
			Name:      "started_total",
			Help:      "Ceremonies started, segmented by kind.",
		}, []string{"kind"}),
		Completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aura",
			Subsystem: "ceremony",
			Name:      "completed_total",
			Help:      "Ceremonies reaching a terminal state, segmented by kind and outcome.",
		}, []string{"kind", "outcome"}),
		ActiveGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aura",
			Subsystem: "ceremony",
			Name:      "active",
			Help:      "Ceremonies currently in a non-terminal state.",
		}),
	}

	prometheus.MustRegister(
		journal.FactsAppended, journal.MergeDuration, journal.JournalSize,
		guard.Evaluations, guard.FlowBudgetSpent,
		ceremony.Started, ceremony.Completed, ceremony.ActiveGauge,
	)
}

// Journal returns the process-wide journal metrics, registering them with
// the default Prometheus registry on first call.
func Journal() *JournalMetrics {
	once.Do(initAll)
	return journal
}

// Guard returns the process-wide guard-chain metrics.
func Guard() *GuardMetrics {
	once.Do(initAll)
	return guard
}

// Ceremony returns the process-wide ceremony-runtime metrics.
func Ceremony() *CeremonyMetrics {
	once.Do(initAll)
	return ceremony
}
