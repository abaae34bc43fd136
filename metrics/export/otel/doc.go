// Package otel publishes goSession metrics through an OpenTelemetry Meter.
//
// [NewExporter] registers one Int64ObservableCounter per goSession counter
// and, for each latency histogram, one Int64ObservableGauge per cumulative
// bucket plus a count gauge. A single callback reads the Manager's
// MetricsSnapshot on every collection cycle.
//
// Callers own the MeterProvider; the exporter only needs a Meter.
package otel
