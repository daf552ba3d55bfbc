// internal/infra/metrics/prometheus.go
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	mintdom "github.com/aaruvan/tokenchamp/internal/domain/mint"
)

// Pipeline は application/mint.Metrics の Prometheus 実装。
type Pipeline struct {
	registry *prometheus.Registry

	attempts     prometheus.Counter
	results      *prometheus.CounterVec
	steps        *prometheus.CounterVec
	uploads      *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	httpPanics   prometheus.Counter
}

// NewPipeline registers the collectors on a dedicated registry.
func NewPipeline() *Pipeline {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Pipeline{
		registry: reg,
		attempts: f.NewCounter(prometheus.CounterOpts{
			Name: "champion_mint_attempts_total",
			Help: "Mint attempts started (lease acquired).",
		}),
		results: f.NewCounterVec(prometheus.CounterOpts{
			Name: "champion_mint_results_total",
			Help: "Finished mint attempts by result status.",
		}, []string{"status"}),
		steps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "champion_step_total",
			Help: "Pipeline step tries by step and outcome.",
		}, []string{"step", "outcome"}),
		uploads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "champion_uploads_total",
			Help: "Uploads served from the dedup cache (hit) or stored (miss).",
		}, []string{"result"}),
		stepDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "champion_step_duration_seconds",
			Help:    "Duration of a single pipeline step try.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"step"}),
		httpPanics: f.NewCounter(prometheus.CounterOpts{
			Name: "champion_http_panics_total",
			Help: "Panics recovered by the HTTP middleware.",
		}),
	}
}

// HTTPPanics is the counter handed to the recover middleware.
func (p *Pipeline) HTTPPanics() prometheus.Counter { return p.httpPanics }

func (p *Pipeline) AttemptStarted() { p.attempts.Inc() }

func (p *Pipeline) StepFinished(step, outcome string, d time.Duration) {
	p.steps.WithLabelValues(step, outcome).Inc()
	p.stepDuration.WithLabelValues(step).Observe(d.Seconds())
}

func (p *Pipeline) UploadServed(cached bool) {
	result := "miss"
	if cached {
		result = "hit"
	}
	p.uploads.WithLabelValues(result).Inc()
}

func (p *Pipeline) MintFinished(status mintdom.ResultStatus) {
	p.results.WithLabelValues(string(status)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Pipeline) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}
