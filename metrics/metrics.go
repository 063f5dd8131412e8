// Package metrics exposes run-level Prometheus gauges/counters for the
// backtest CLI (SPEC_FULL §10's ambient observability commitment): trade
// counts, position, and equity per asset, scraped the same way the
// teacher's matching engine exposed throughput counters, just over HTTP
// instead of logged periodically.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles the per-asset vectors one backtest run updates as it
// steps the driver. Labeled by asset name so a multi-asset run reports
// each instrument separately.
type Registry struct {
	reg *prometheus.Registry

	fills    *prometheus.CounterVec
	position *prometheus.GaugeVec
	equity   *prometheus.GaugeVec
	rows     prometheus.Counter

	lastFills map[string]int64
}

// NewRegistry constructs a fresh, isolated registry (not the global
// default one) so repeated runs in the same process — e.g. from tests —
// never collide on already-registered collector names.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		fills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hftbacktest_fills_total",
			Help: "Number of order fills recorded, by asset.",
		}, []string{"asset"}),
		position: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hftbacktest_position",
			Help: "Current position, by asset.",
		}, []string{"asset"}),
		equity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hftbacktest_equity",
			Help: "Current unrealized equity, by asset.",
		}, []string{"asset"}),
		rows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hftbacktest_rows_replayed_total",
			Help: "Total canonical event rows replayed across every asset.",
		}),
		lastFills: make(map[string]int64),
	}
	reg.MustRegister(r.fills, r.position, r.equity, r.rows)
	return r
}

// Observe records one asset's current ledger snapshot. numTrades is the
// cumulative trade count from domain.State, so only its delta since the
// last Observe call is added to the counter.
func (r *Registry) Observe(asset string, numTrades int64, position, equity float64) {
	delta := numTrades - r.lastFills[asset]
	if delta > 0 {
		r.fills.WithLabelValues(asset).Add(float64(delta))
	}
	r.lastFills[asset] = numTrades
	r.position.WithLabelValues(asset).Set(position)
	r.equity.WithLabelValues(asset).Set(equity)
}

// IncRows increments the total rows-replayed counter by n.
func (r *Registry) IncRows(n int) {
	r.rows.Add(float64(n))
}

// Serve starts a blocking HTTP server exposing /metrics on addr. Intended
// to run in its own goroutine for the lifetime of a `backtest run`
// invocation.
func (r *Registry) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}))
	return http.ListenAndServe(addr, mux)
}
