// Package metrics provides the observability hooks of the geofence lifecycle.
//
// The package follows the Null Object pattern: components hold a Recorder and
// default to NoopRecorder, so metrics never need nil checks at call sites. The
// daemon swaps in a PrometheusRecorder and serves it on /metrics.
//
//	recorder := metrics.NewPrometheusRecorder(registry)
//	handler := transition.NewHandler(store, notifier, transition.WithRecorder(recorder))
package metrics
