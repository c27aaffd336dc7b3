// Package telemetry provides OpenTelemetry instrumentation for
// paperwatch.
//
// # Overview
//
// Telemetry wraps the OTEL SDK providers (traces and metrics) behind a
// single lifecycle object. A run creates one Telemetry at startup,
// hands its Meter to the pipeline metrics, and shuts it down after the
// report is written so that a short-lived batch process still flushes
// every measurement.
//
// # Graceful degradation
//
// Telemetry failures never fail a run. If an exporter cannot be
// created the instance marks itself degraded and hands out no-op
// tracers and meters; the pipeline keeps going and the report is still
// produced.
//
// # Configuration
//
// Telemetry is disabled by default. Enable it via the telemetry
// section of the config file or PAPERWATCH_TELEMETRY_* environment
// variables, pointing at an OTLP collector over gRPC or
// HTTP/protobuf.
package telemetry
