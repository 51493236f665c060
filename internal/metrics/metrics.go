package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ResultSuccess = "success"
	ResultFailed  = "failed"
)

// Metrics is nil-safe: every method on a nil *Metrics is a no-op, so
// components can run without instrumentation.
type Metrics struct {
	cycles             prometheus.Counter
	cyclesSkipped      prometheus.Counter
	cycleDuration      prometheus.Histogram
	resolutions        *prometheus.CounterVec
	resolutionFailures *prometheus.CounterVec
	fetchErrors        *prometheus.CounterVec
	submissions        *prometheus.CounterVec
	price              *prometheus.GaugeVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		cycles: factory.NewCounter(prometheus.CounterOpts{
			Name: "oracle_cycles_total",
			Help: "Completed price update cycles",
		}),
		cyclesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "oracle_cycles_skipped_total",
			Help: "Ticks skipped because a cycle was still running",
		}),
		cycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "oracle_cycle_duration_seconds",
			Help:    "Duration of price update cycles",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		}),
		resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "oracle_resolutions_total",
			Help: "Prices resolved, by resolution method",
		}, []string{"symbol", "method"}),
		resolutionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "oracle_resolution_failures_total",
			Help: "Assets for which no price could be resolved in a cycle",
		}, []string{"symbol"}),
		fetchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "oracle_fetch_errors_total",
			Help: "Failed market-data requests",
		}, []string{"kind"}),
		submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "oracle_submissions_total",
			Help: "Ledger submission attempts",
		}, []string{"symbol", "result"}),
		price: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "oracle_price_usd",
			Help: "Latest committed price",
		}, []string{"symbol"}),
	}
}

func (m *Metrics) CycleCompleted(d time.Duration) {
	if m == nil {
		return
	}
	m.cycles.Inc()
	m.cycleDuration.Observe(d.Seconds())
}

func (m *Metrics) CycleSkipped() {
	if m == nil {
		return
	}
	m.cyclesSkipped.Inc()
}

func (m *Metrics) Resolved(symbol, method string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(symbol, method).Inc()
}

func (m *Metrics) ResolutionFailed(symbol string) {
	if m == nil {
		return
	}
	m.resolutionFailures.WithLabelValues(symbol).Inc()
}

func (m *Metrics) FetchError(kind string) {
	if m == nil {
		return
	}
	m.fetchErrors.WithLabelValues(kind).Inc()
}

func (m *Metrics) Submission(symbol string, ok bool) {
	if m == nil {
		return
	}
	result := ResultSuccess
	if !ok {
		result = ResultFailed
	}
	m.submissions.WithLabelValues(symbol, result).Inc()
}

func (m *Metrics) Price(symbol string, value float64) {
	if m == nil {
		return
	}
	m.price.WithLabelValues(symbol).Set(value)
}
