package oteladapters

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rkamradt/vehicleevent/eventstore"
)

// TracingCollector implements eventstore.TracingCollector with an OpenTelemetry tracer.
// Spans started here become children of whatever span ctx already carries,
// such as the HTTP server span.
type TracingCollector struct {
	tracer trace.Tracer
}

// NewTracingCollector creates a collector on top of tracer.
func NewTracingCollector(tracer trace.Tracer) *TracingCollector {
	return &TracingCollector{tracer: tracer}
}

// StartSpan starts a span carrying attrs and returns the derived context.
func (t *TracingCollector) StartSpan(
	ctx context.Context,
	name string,
	attrs map[string]string,
) (context.Context, eventstore.SpanContext) {

	spanCtx, span := t.tracer.Start(ctx, name, trace.WithAttributes(toAttributes(attrs)...))

	return spanCtx, &Span{span: span}
}

// FinishSpan adds attrs, maps status, and ends the span.
func (t *TracingCollector) FinishSpan(spanCtx eventstore.SpanContext, status string, attrs map[string]string) {
	s, ok := spanCtx.(*Span)
	if !ok {
		return
	}

	s.span.SetAttributes(toAttributes(attrs)...)
	s.SetStatus(status)
	s.span.End()
}

// Span wraps an OpenTelemetry span as eventstore.SpanContext.
type Span struct {
	span trace.Span
}

// SetStatus maps the status strings used across the code base onto span status codes.
// Unknown strings are kept as a "status" attribute.
func (s *Span) SetStatus(status string) {
	switch status {
	case "success", "idempotent", "ok":
		s.span.SetStatus(codes.Ok, "")
	case "error":
		s.span.SetStatus(codes.Error, "operation failed")
	case "canceled", "cancelled":
		s.span.SetStatus(codes.Error, "operation canceled")
	case "timeout":
		s.span.SetStatus(codes.Error, "operation timed out")
	case "conflict", "concurrency_conflict":
		s.span.SetStatus(codes.Error, "concurrency conflict")
	default:
		s.span.SetAttributes(attribute.String("status", status))
	}
}

// AddAttribute sets one string attribute.
func (s *Span) AddAttribute(key, value string) {
	s.span.SetAttributes(attribute.String(key, value))
}

var (
	_ eventstore.TracingCollector = (*TracingCollector)(nil)
	_ eventstore.SpanContext      = (*Span)(nil)
)
