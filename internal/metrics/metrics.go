package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder exposes the service's Prometheus instruments. A nil *Recorder is a no-op.
type Recorder struct {
	registry *prometheus.Registry

	pollCycles      *prometheus.CounterVec
	pollDuration    prometheus.Histogram
	fetchFailures   *prometheus.CounterVec
	quotes          *prometheus.CounterVec
	lastPrice       *prometheus.GaugeVec
	subscribers     prometheus.Gauge
	broadcastPruned prometheus.Counter
	alertsSent      *prometheus.CounterVec
}

// New creates a recorder backed by its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		pollCycles: f.NewCounterVec(prometheus.CounterOpts{
			Name: "signalfeed_poll_cycles_total",
			Help: "Poll cycles by result (completed, skipped, cancelled or failed)",
		}, []string{"result"}),
		pollDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "signalfeed_poll_duration_seconds",
			Help:    "Duration of completed poll cycles",
			Buckets: prometheus.DefBuckets,
		}),
		fetchFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "signalfeed_fetch_failures_total",
			Help: "Upstream fetch failures by provider and cause",
		}, []string{"provider", "cause"}),
		quotes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "signalfeed_quotes_total",
			Help: "Resolved quotes by source",
		}, []string{"source"}),
		lastPrice: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "signalfeed_last_price",
			Help: "Last cached price per provider symbol",
		}, []string{"symbol"}),
		subscribers: f.NewGauge(prometheus.GaugeOpts{
			Name: "signalfeed_subscribers",
			Help: "Live websocket subscribers",
		}),
		broadcastPruned: f.NewCounter(prometheus.CounterOpts{
			Name: "signalfeed_broadcast_pruned_total",
			Help: "Subscribers removed after a failed send",
		}),
		alertsSent: f.NewCounterVec(prometheus.CounterOpts{
			Name: "signalfeed_alerts_total",
			Help: "Signal alerts by outcome",
		}, []string{"outcome"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// RecordPollCycle counts a cycle by result and observes its duration when positive.
func (r *Recorder) RecordPollCycle(result string, seconds float64) {
	if r == nil {
		return
	}
	r.pollCycles.WithLabelValues(result).Inc()
	if seconds > 0 {
		r.pollDuration.Observe(seconds)
	}
}

// RecordFetchFailure counts a failed upstream fetch.
func (r *Recorder) RecordFetchFailure(provider, cause string) {
	if r == nil {
		return
	}
	r.fetchFailures.WithLabelValues(provider, cause).Inc()
}

// RecordQuote counts a served quote by source and tracks the symbol's last price.
func (r *Recorder) RecordQuote(symbol, source string, price float64) {
	if r == nil {
		return
	}
	r.quotes.WithLabelValues(source).Inc()
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// SetSubscribers sets the live subscriber gauge.
func (r *Recorder) SetSubscribers(n int) {
	if r == nil {
		return
	}
	r.subscribers.Set(float64(n))
}

// RecordPruned adds subscribers dropped after a failed send.
func (r *Recorder) RecordPruned(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.broadcastPruned.Add(float64(n))
}

// RecordAlert counts an alert dispatch by outcome.
func (r *Recorder) RecordAlert(outcome string) {
	if r == nil {
		return
	}
	r.alertsSent.WithLabelValues(outcome).Inc()
}
