// Package metrics holds the Prometheus collectors of the bot.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "memoirbot"

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	registry *prometheus.Registry

	renders        *prometheus.CounterVec
	renderDuration *prometheus.HistogramVec
	stories        *prometheus.CounterVec
	events         *prometheus.CounterVec
	filesSaved     *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		renders: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renders_total",
			Help:      "Document renders by flow and result.",
		}, []string{"flow", "result"}),
		renderDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Time spent rendering a document, staging included.",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 90, 120, 180},
		}, []string{"flow"}),
		stories: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stories_total",
			Help:      "Photo story generations by result.",
		}, []string{"result"}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Inbound chat events by kind and the route that handled them.",
		}, []string{"kind", "route"}),
		filesSaved: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_saved_total",
			Help:      "Files written to the object store by message type.",
		}, []string{"message_type"}),
	}
}

func (m *Metrics) ObserveRender(flow, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.renders.WithLabelValues(flow, result).Inc()
	m.renderDuration.WithLabelValues(flow).Observe(d.Seconds())
}

func (m *Metrics) ObserveStory(result string) {
	if m == nil {
		return
	}
	m.stories.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveEvent(kind, route string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind, route).Inc()
}

func (m *Metrics) FileSaved(messageType string) {
	if m == nil {
		return
	}
	m.filesSaved.WithLabelValues(messageType).Inc()
}

// ActiveSessions exposes fn as the active session gauge of one flow.
func (m *Metrics) ActiveSessions(flow string, fn func() float64) {
	if m == nil {
		return
	}
	promauto.With(m.registry).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "active_sessions",
		Help:        "Sessions currently held in memory.",
		ConstLabels: prometheus.Labels{"flow": flow},
	}, fn)
}

// TasksInFlight exposes fn as the background task gauge.
func (m *Metrics) TasksInFlight(fn func() float64) {
	if m == nil {
		return
	}
	promauto.With(m.registry).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "tasks_inflight",
		Help:      "Background tasks pending or running.",
	}, fn)
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
