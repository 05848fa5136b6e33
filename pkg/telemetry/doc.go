// Package telemetry provides observability instrumentation for the
// orchestration substrate: structured logging (zerolog), metrics
// (Prometheus) and tracing (OpenTelemetry).
//
// Initialize at startup:
//
//	logger, err := telemetry.NewLogger(telemetry.LoggingConfig{Level: "info", Format: "json", Output: "stderr"})
//	metrics, err := telemetry.NewMetrics(telemetry.MetricsConfig{Enabled: true, Namespace: "salesops"})
//	tracer, err := telemetry.NewTracer(telemetry.TracingConfig{Enabled: true, Exporter: "stdout"}, "salesops", version)
//
// Loggers travel through context; components derive child loggers with
// NewComponentLogger and the WithIntentID/WithTaskID field helpers.
package telemetry
