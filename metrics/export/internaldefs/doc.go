// Package internaldefs holds the metric names and bucket boundaries shared by
// the exporters, so Prometheus and OpenTelemetry report identical series.
//
// # What this package must NOT do
//
//   - Import an exporter package.
//   - Perform I/O.
package internaldefs
