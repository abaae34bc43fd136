// Package prometheus exposes goSession metrics as a Prometheus collector.
//
// [Exporter] implements prometheus.Collector and reads a fresh
// [goSession.MetricsSnapshot] on every scrape. Counter names are
// gosession_*_total; the refresh and request latencies are histograms in
// seconds.
//
// The exporter never registers itself in the global registry. Register it
// with your own registry, or mount [Exporter.Handler] which uses a private
// one.
package prometheus
