// Package metrics exposes Prometheus collectors for the crawl pipeline.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scoutSearchCallsTotal    prometheus.Counter
	scoutQuotaUnitsTotal     prometheus.Counter
	scoutCacheLookupsTotal   *prometheus.CounterVec
	scoutChannelsTotal       *prometheus.CounterVec
	scoutSessionsTotal       *prometheus.CounterVec
	scoutLedgerRowsTotal     *prometheus.CounterVec
	scoutSessionRunning      prometheus.Gauge
	scoutSessionProgress     prometheus.Gauge
	scoutHistorySessions     prometheus.Gauge
	scoutPrunedSessionsTotal prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		scoutSearchCallsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scout_search_calls_total",
				Help: "Total number of platform search calls issued.",
			},
		)

		scoutQuotaUnitsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scout_quota_units_total",
				Help: "Total platform quota units consumed.",
			},
		)

		scoutCacheLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scout_cache_lookups_total",
				Help: "Channel cache resolutions, labeled hit or miss.",
			},
			[]string{"result"},
		)

		scoutChannelsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scout_channels_total",
				Help: "Channels accumulated per session, labeled by origin.",
			},
			[]string{"origin"},
		)

		scoutSessionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scout_sessions_total",
				Help: "Crawl sessions finished, labeled by terminal state.",
			},
			[]string{"state"},
		)

		scoutLedgerRowsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scout_ledger_rows_total",
				Help: "Rows merged into the master ledger, labeled new or updated.",
			},
			[]string{"kind"},
		)

		scoutSessionRunning = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scout_session_running",
				Help: "1 while a crawl session is in progress.",
			},
		)

		scoutSessionProgress = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scout_session_progress",
				Help: "Fraction of (term, region) pairs processed in the current session.",
			},
		)

		scoutHistorySessions = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scout_history_sessions",
				Help: "Number of sessions currently retained in the history document.",
			},
		)

		scoutPrunedSessionsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scout_pruned_sessions_total",
				Help: "History sessions removed by age-based pruning.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveSearchCall counts one search call. Quota is tracked separately.
func ObserveSearchCall() {
	if scoutSearchCallsTotal == nil {
		return
	}
	scoutSearchCallsTotal.Inc()
}

// ObserveQuota adds consumed quota units.
func ObserveQuota(units int) {
	if scoutQuotaUnitsTotal == nil {
		return
	}
	if units > 0 {
		scoutQuotaUnitsTotal.Add(float64(units))
	}
}

// ObserveCacheLookup counts cache hits and misses from one resolution.
func ObserveCacheLookup(hits, misses int) {
	if scoutCacheLookupsTotal == nil {
		return
	}
	if hits > 0 {
		scoutCacheLookupsTotal.WithLabelValues("hit").Add(float64(hits))
	}
	if misses > 0 {
		scoutCacheLookupsTotal.WithLabelValues("miss").Add(float64(misses))
	}
}

// ObserveChannels counts accumulated channels by origin ("cache" or "fetch").
func ObserveChannels(origin string, n int) {
	if scoutChannelsTotal == nil {
		return
	}
	if n > 0 {
		scoutChannelsTotal.WithLabelValues(origin).Add(float64(n))
	}
}

// ObserveSession increments the session counter for the given terminal state.
func ObserveSession(state string) {
	if scoutSessionsTotal == nil {
		return
	}
	scoutSessionsTotal.WithLabelValues(state).Inc()
}

// ObserveLedgerMerge counts rows written by a ledger merge.
func ObserveLedgerMerge(newRows, updatedRows int) {
	if scoutLedgerRowsTotal == nil {
		return
	}
	if newRows > 0 {
		scoutLedgerRowsTotal.WithLabelValues("new").Add(float64(newRows))
	}
	if updatedRows > 0 {
		scoutLedgerRowsTotal.WithLabelValues("updated").Add(float64(updatedRows))
	}
}

// SetSessionRunning flips the running gauge.
func SetSessionRunning(running bool) {
	if scoutSessionRunning == nil {
		return
	}
	if running {
		scoutSessionRunning.Set(1)
		return
	}
	scoutSessionRunning.Set(0)
}

// SetSessionProgress records the processed fraction of the current session.
func SetSessionProgress(fraction float64) {
	if scoutSessionProgress == nil {
		return
	}
	scoutSessionProgress.Set(fraction)
}

// SetHistorySessions records the retained session count.
func SetHistorySessions(n int) {
	if scoutHistorySessions == nil {
		return
	}
	scoutHistorySessions.Set(float64(n))
}

// ObservePrunedSessions counts sessions removed by pruning.
func ObservePrunedSessions(n int) {
	if scoutPrunedSessionsTotal == nil {
		return
	}
	if n > 0 {
		scoutPrunedSessionsTotal.Add(float64(n))
	}
}
