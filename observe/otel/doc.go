// Package otel provides an OpenTelemetry observer for scopes. It adds span
// events (scope created, cancelled, joined; task started, finished; handler
// finished) to the span carried by the observed context.
package otel
