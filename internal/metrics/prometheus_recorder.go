package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "assetbuilder"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	reg             *prom.Registry
	stageDuration   *prom.HistogramVec
	buildDuration   *prom.HistogramVec
	stageResults    *prom.CounterVec
	buildOutcome    *prom.CounterVec
	assets          *prom.CounterVec
	manifestEntries prom.Gauge
	rebuilds        *prom.CounterVec
	reloadClients   prom.Gauge
}

// NewPrometheusRecorder constructs the metrics and registers them on reg.
// A nil reg gets a fresh registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		reg: reg,
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual build stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		buildDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Total build duration per plan",
			Buckets:   prom.DefBuckets,
		}, []string{"plan"}),
		stageResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"}),
		buildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"}),
		assets: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "assets_processed_total",
			Help:      "Assets written by each stage",
		}, []string{"stage", "category"}),
		manifestEntries: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "manifest_entries",
			Help:      "Entries in the manifest after the last fingerprinting run",
		}),
		rebuilds: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "rebuild_requests_total",
			Help:      "Rebuilds requested in watch mode by trigger",
		}, []string{"trigger"}),
		reloadClients: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "livereload_clients",
			Help:      "Connected live reload clients",
		}),
	}
	reg.MustRegister(pr.stageDuration, pr.buildDuration, pr.stageResults, pr.buildOutcome,
		pr.assets, pr.manifestEntries, pr.rebuilds, pr.reloadClients)
	return pr
}

// Registry returns the registry the metrics are registered on.
func (p *PrometheusRecorder) Registry() *prom.Registry { return p.reg }

// HTTPHandler serves the recorder's registry in the Prometheus exposition format.
func (p *PrometheusRecorder) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveBuildDuration(plan string, d time.Duration) {
	p.buildDuration.WithLabelValues(plan).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome BuildOutcomeLabel) {
	p.buildOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) AddAssets(stage, category string, n int) {
	if n <= 0 {
		return
	}
	p.assets.WithLabelValues(stage, category).Add(float64(n))
}

func (p *PrometheusRecorder) SetManifestEntries(n int) { p.manifestEntries.Set(float64(n)) }

func (p *PrometheusRecorder) IncRebuildRequest(trigger string) {
	p.rebuilds.WithLabelValues(trigger).Inc()
}

func (p *PrometheusRecorder) SetLiveReloadClients(n int) { p.reloadClients.Set(float64(n)) }
