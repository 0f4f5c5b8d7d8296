// Package prometheus exports sessionkit metrics to Prometheus.
//
// [Exporter] renders the text exposition format directly and needs no
// registry; [Collector] plugs into a client_golang registry for programs that
// already run one. Both read [sessionkit.Controller.MetricsSnapshot] on
// demand and share series names with the OpenTelemetry exporter.
//
// # What this package must NOT do
//
//   - Register anything in the global Prometheus registry.
//   - Mutate controller state.
package prometheus
