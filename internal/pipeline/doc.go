// Package pipeline implements the staged fan-out/fan-in execution core
// of a paperwatch run.
//
// # Overview
//
// A run is a fixed sequence of four stages: fetch (sequential), filter
// (fan-out, cheap calls), analyze (fan-out, expensive calls), and
// synthesize (sequential). Ordered collections of work items flow
// between stages; each stage's per-item outcomes are recorded in an
// append-only State so later stages can proceed with partial results
// and a completed run remains fully auditable.
//
// # Failure model
//
// All failures are values. The executor classifies every item outcome
// as success, transient failure (retries exhausted), or permanent
// failure, and fan-out stages return exactly one result per input item
// with no drops. Item failures never abort a run; a run aborts only
// when a mandatory stage (fetch, synthesize) produces no usable output
// or fails outright.
//
// # Concurrency
//
// Stages execute strictly in sequence. The only parallelism is inside
// a fan-out stage, bounded by Options.Concurrency. Output order always
// equals input order, independent of completion timing, and in-flight
// work drains cooperatively before an abort is reported.
package pipeline
