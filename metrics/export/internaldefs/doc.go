// Package internaldefs holds the metric names shared by the goSession
// exporters.
//
// Both the Prometheus and OpenTelemetry exporters read their counter and
// histogram definitions from here, so a rename applies to both at once. The
// package performs no I/O.
package internaldefs
