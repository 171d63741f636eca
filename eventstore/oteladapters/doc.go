// Package oteladapters implements the event log and runtime observability interfaces
// on top of the OpenTelemetry metrics and tracing APIs.
package oteladapters
