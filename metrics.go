package urlpdf

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/porticus-lab/go-url-pdf/fetch"
	"github.com/porticus-lab/go-url-pdf/render"
)

// Metrics bundles Prometheus collectors for conversion runs.
type Metrics struct {
	Registry       *prometheus.Registry
	ItemsTotal     *prometheus.CounterVec
	ItemDuration   prometheus.Histogram
	BytesWritten   prometheus.Counter
	PagesWritten   prometheus.Counter
	ErrorsTotal    *prometheus.CounterVec
	RunsTotal      *prometheus.CounterVec
	RendererActive *prometheus.GaugeVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	items := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urlpdf_items_total",
			Help: "Items processed, by outcome.",
		},
		[]string{"status"},
	)
	itemDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "urlpdf_item_duration_seconds",
			Help:    "Time to fetch, render and write one item.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)
	bytesWritten := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "urlpdf_bytes_written_total",
			Help: "Bytes written to output files.",
		},
	)
	pagesWritten := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "urlpdf_pages_written_total",
			Help: "PDF pages written to output files.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urlpdf_errors_total",
			Help: "Failed items by error type.",
		},
		[]string{"error_type"},
	)
	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urlpdf_runs_total",
			Help: "Finished runs by final state.",
		},
		[]string{"state"},
	)
	active := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "urlpdf_renderer_info",
			Help: "Renderer in use, set to 1 for the selected kind.",
		},
		[]string{"kind"},
	)

	registry.MustRegister(items, itemDuration, bytesWritten, pagesWritten, errorsTotal, runs, active)

	return &Metrics{
		Registry:       registry,
		ItemsTotal:     items,
		ItemDuration:   itemDuration,
		BytesWritten:   bytesWritten,
		PagesWritten:   pagesWritten,
		ErrorsTotal:    errorsTotal,
		RunsTotal:      runs,
		RendererActive: active,
	}
}

// ObserveItem records one item outcome.
func (m *Metrics) ObserveItem(r ItemResult) {
	if m == nil {
		return
	}
	m.ItemsTotal.WithLabelValues(r.Status.String()).Inc()
	m.ItemDuration.Observe(r.Duration.Seconds())
	if r.Status == StatusSucceeded {
		m.BytesWritten.Add(float64(r.Bytes))
		m.PagesWritten.Add(float64(r.Pages))
	}
	if r.Err != nil {
		m.ErrorsTotal.WithLabelValues(ErrorType(r.Err)).Inc()
	}
}

// IncRun records a finished run.
func (m *Metrics) IncRun(s State) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(s.String()).Inc()
}

// SetRenderer marks the renderer kind in use.
func (m *Metrics) SetRenderer(k render.Kind) {
	if m == nil {
		return
	}
	m.RendererActive.Reset()
	m.RendererActive.WithLabelValues(string(k)).Set(1)
}

// Error type labels beyond those of fetch.Classify.
const (
	ErrorProcess       = "process"
	ErrorEmptyOutput   = "empty_output"
	ErrorOutputMissing = "output_missing"
	ErrorPanic         = "panic"
)

// ErrorType maps an item error to a short label for logs and metrics.
func ErrorType(err error) string {
	var perr *render.ProcessError
	switch {
	case errors.As(err, &perr):
		return ErrorProcess
	case errors.Is(err, render.ErrEmptyOutput):
		return ErrorEmptyOutput
	case errors.Is(err, ErrOutputMissing):
		return ErrorOutputMissing
	case errors.Is(err, ErrRendererPanic):
		return ErrorPanic
	}
	return fetch.Classify(err)
}
