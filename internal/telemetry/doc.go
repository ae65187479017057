// Package telemetry records Prometheus metrics and OpenTelemetry spans for
// sessions and forwarded calls.
//
// Metrics collected (namespace "evsctl" by default):
//   - evsctl_calls_total: forwarded calls by method and outcome
//   - evsctl_call_duration_seconds: forwarded call latency by method
//   - evsctl_launches_total: process launches by outcome
//   - evsctl_sessions_active: sessions currently connected
//
// Spans use the global OpenTelemetry tracer provider unless one is supplied.
// A nil *Recorder is valid and records nothing.
package telemetry
