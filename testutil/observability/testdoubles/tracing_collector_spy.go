package testdoubles

import (
	"context"
	"maps"
	"sync"

	"github.com/rkamradt/vehicleevent/eventstore"
)

// SpanSpy is the span handle returned by TracingCollectorSpy.
type SpanSpy struct {
	mu         sync.Mutex
	name       string
	status     string
	finished   bool
	attributes map[string]string
}

// SetStatus records the span status.
func (s *SpanSpy) SetStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status = status
}

// AddAttribute records one attribute.
func (s *SpanSpy) AddAttribute(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attributes[key] = value
}

// Name returns the span name.
func (s *SpanSpy) Name() string { return s.name }

// Status returns the last status set on the span.
func (s *SpanSpy) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.status
}

// Finished reports whether FinishSpan was called for the span.
func (s *SpanSpy) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.finished
}

// Attributes returns a copy of the start, added, and finish attributes.
func (s *SpanSpy) Attributes() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return maps.Clone(s.attributes)
}

// TracingCollectorSpy captures started spans in order.
type TracingCollectorSpy struct {
	mu    sync.Mutex
	spans []*SpanSpy
}

// NewTracingCollectorSpy creates an empty spy.
func NewTracingCollectorSpy() *TracingCollectorSpy {
	return &TracingCollectorSpy{}
}

// StartSpan records a new span.
func (c *TracingCollectorSpy) StartSpan(
	ctx context.Context,
	name string,
	attrs map[string]string,
) (context.Context, eventstore.SpanContext) {

	span := &SpanSpy{name: name, attributes: maps.Clone(attrs)}
	if span.attributes == nil {
		span.attributes = make(map[string]string)
	}

	c.mu.Lock()
	c.spans = append(c.spans, span)
	c.mu.Unlock()

	return ctx, span
}

// FinishSpan marks the span as finished with the final status and attributes.
func (c *TracingCollectorSpy) FinishSpan(spanCtx eventstore.SpanContext, status string, attrs map[string]string) {
	span, ok := spanCtx.(*SpanSpy)
	if !ok {
		return
	}

	span.mu.Lock()
	defer span.mu.Unlock()

	span.status = status
	span.finished = true
	maps.Copy(span.attributes, attrs)
}

// Spans returns the captured spans in start order.
func (c *TracingCollectorSpy) Spans() []*SpanSpy {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*SpanSpy, len(c.spans))
	copy(out, c.spans)

	return out
}

// SpanNamed returns the first span with the name, or nil.
func (c *TracingCollectorSpy) SpanNamed(name string) *SpanSpy {
	for _, span := range c.Spans() {
		if span.name == name {
			return span
		}
	}

	return nil
}
