// Package metrics provides the observability hooks for asset builds.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics collection never needs nil checks:
//
//	runner := pipeline.NewRunner(cfg, pipeline.WithRecorder(metrics.NoopRecorder{}))
//
// When metrics.enabled is set the CLI swaps in a PrometheusRecorder and
// exposes its registry on /metrics of the dev server through HTTPHandler.
package metrics
