package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ritzau/mfa-dashboard/pkg/logging"
)

// Registry holds the dashboard's metrics on a private prometheus registry
type Registry struct {
	registry *prometheus.Registry

	RecomputesTotal   *prometheus.CounterVec
	RecomputeDuration prometheus.Histogram
	WorkbookLoads     *prometheus.CounterVec
	Links             prometheus.Gauge
	Nodes             prometheus.Gauge
	HTTPRequestsTotal *prometheus.CounterVec
}

// NewRegistry creates and registers all metrics
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		RecomputesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mfa_recomputes_total",
			Help: "Render model recomputations by status",
		}, []string{"status"}),
		RecomputeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mfa_recompute_duration_seconds",
			Help:    "Time to rebuild the render model for one factor",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		WorkbookLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mfa_workbook_loads_total",
			Help: "Workbook loads by status",
		}, []string{"status"}),
		Links: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mfa_links",
			Help: "Links in the current flow network",
		}),
		Nodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mfa_nodes",
			Help: "Nodes in the current flow network",
		}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mfa_http_requests_total",
			Help: "HTTP requests by route template and status",
		}, []string{"method", "path", "status"}),
	}

	r.registry.MustRegister(
		r.RecomputesTotal,
		r.RecomputeDuration,
		r.WorkbookLoads,
		r.Links,
		r.Nodes,
		r.HTTPRequestsTotal,
	)
	return r
}

// RecordRecompute records one recompute attempt
func (r *Registry) RecordRecompute(err error, duration time.Duration) {
	r.RecomputesTotal.WithLabelValues(status(err)).Inc()
	r.RecomputeDuration.Observe(duration.Seconds())
}

// RecordWorkbookLoad records a load attempt and, on success, the network size
func (r *Registry) RecordWorkbookLoad(err error, links, nodes int) {
	r.WorkbookLoads.WithLabelValues(status(err)).Inc()
	if err == nil {
		r.Links.Set(float64(links))
		r.Nodes.Set(float64(nodes))
	}
}

// RecordHTTPRequest counts a served request
func (r *Registry) RecordHTTPRequest(method, path string, code int) {
	r.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(code)).Inc()
}

// Handler exposes the registry for scraping
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		ErrorLog: promLogger{},
	})
}

// Gatherer is used by tests to inspect values
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

type promLogger struct{}

func (promLogger) Println(v ...interface{}) {
	logging.Error("metrics handler error", "error", v)
}
