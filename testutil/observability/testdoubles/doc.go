// Package testdoubles provides spies for the observability interfaces of the event log
// and the command runtime.
//
//   - MetricsCollectorSpy records counters, durations, and values with their labels
//   - TracingCollectorSpy records started and finished spans
//   - LoggerSpy records plain and context-aware log calls
//
// All spies are safe for concurrent use.
package testdoubles
