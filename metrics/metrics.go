// Package metrics instruments sessions, decoded/encoded message counts,
// bytes transferred, and proxy upstream errors with Prometheus, mirrored
// from JeelKantaria-db-bouncer's internal/metrics package.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collector holds every Prometheus metric pgwire's server and proxy emit.
// New registers them against a private registry so repeated construction
// (tests, config reload) never collides with a prior instance.
type Collector struct {
	Registry *prometheus.Registry

	SessionsActive      prometheus.Gauge
	SessionsTotal       *prometheus.CounterVec
	CommandsDecoded     *prometheus.CounterVec
	ResponsesEncoded    *prometheus.CounterVec
	BytesTransferred    *prometheus.CounterVec
	SessionDuration     prometheus.Histogram
	AuthFailuresTotal   *prometheus.CounterVec
	UpstreamErrorsTotal *prometheus.CounterVec
	QueriesRejected     prometheus.Counter
}

// New constructs and registers the full metric set.
func New() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		Registry: reg,

		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pgwire_sessions_active",
			Help: "Number of currently open client sessions.",
		}),
		SessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pgwire_sessions_total",
			Help: "Total client sessions accepted, labeled by outcome.",
		}, []string{"outcome"}),
		CommandsDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pgwire_commands_decoded_total",
			Help: "Frontend commands decoded, labeled by command code.",
		}, []string{"code"}),
		ResponsesEncoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pgwire_responses_encoded_total",
			Help: "Backend responses encoded, labeled by response code.",
		}, []string{"code"}),
		BytesTransferred: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pgwire_bytes_transferred_total",
			Help: "Raw bytes moved, labeled by direction.",
		}, []string{"direction"}),
		SessionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pgwire_session_duration_seconds",
			Help:    "Duration of a client session from accept to close.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 16),
		}),
		AuthFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pgwire_auth_failures_total",
			Help: "Authentication failures, labeled by strategy.",
		}, []string{"strategy"}),
		UpstreamErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pgwire_upstream_errors_total",
			Help: "Proxy upstream transport errors, labeled by stage.",
		}, []string{"stage"}),
		QueriesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pgwire_queries_rejected_total",
			Help: "Queries rejected by the simple-query interceptor policy.",
		}),
	}

	reg.MustRegister(
		c.SessionsActive,
		c.SessionsTotal,
		c.CommandsDecoded,
		c.ResponsesEncoded,
		c.BytesTransferred,
		c.SessionDuration,
		c.AuthFailuresTotal,
		c.UpstreamErrorsTotal,
		c.QueriesRejected,
	)

	return c
}
