package testdoubles

import (
	"context"
	"maps"
	"sync"
	"time"
)

// MetricKind tells which collector method produced a MetricRecord.
type MetricKind string

// Metric kinds.
const (
	KindCounter  MetricKind = "counter"
	KindDuration MetricKind = "duration"
	KindValue    MetricKind = "value"
)

// MetricRecord is one captured metrics call.
type MetricRecord struct {
	Kind     MetricKind
	Metric   string
	Duration time.Duration
	Value    float64
	Labels   map[string]string
}

// MetricsCollectorSpy captures metrics calls. It implements both the plain and the contextual collector.
type MetricsCollectorSpy struct {
	mu          sync.Mutex
	records     []MetricRecord
	recordCalls bool
}

// NewMetricsCollectorSpy creates a spy; with recordCalls false every call is discarded.
func NewMetricsCollectorSpy(recordCalls bool) *MetricsCollectorSpy {
	return &MetricsCollectorSpy{recordCalls: recordCalls}
}

func (s *MetricsCollectorSpy) record(r MetricRecord) {
	if !s.recordCalls {
		return
	}

	r.Labels = maps.Clone(r.Labels)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, r)
}

// RecordDuration captures a duration metric.
func (s *MetricsCollectorSpy) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	s.record(MetricRecord{Kind: KindDuration, Metric: metric, Duration: duration, Labels: labels})
}

// IncrementCounter captures a counter increment.
func (s *MetricsCollectorSpy) IncrementCounter(metric string, labels map[string]string) {
	s.record(MetricRecord{Kind: KindCounter, Metric: metric, Labels: labels})
}

// RecordValue captures a value metric.
func (s *MetricsCollectorSpy) RecordValue(metric string, value float64, labels map[string]string) {
	s.record(MetricRecord{Kind: KindValue, Metric: metric, Value: value, Labels: labels})
}

// RecordDurationContext captures a duration metric; the context is ignored.
func (s *MetricsCollectorSpy) RecordDurationContext(_ context.Context, metric string, duration time.Duration, labels map[string]string) {
	s.RecordDuration(metric, duration, labels)
}

// IncrementCounterContext captures a counter increment; the context is ignored.
func (s *MetricsCollectorSpy) IncrementCounterContext(_ context.Context, metric string, labels map[string]string) {
	s.IncrementCounter(metric, labels)
}

// RecordValueContext captures a value metric; the context is ignored.
func (s *MetricsCollectorSpy) RecordValueContext(_ context.Context, metric string, value float64, labels map[string]string) {
	s.RecordValue(metric, value, labels)
}

// Records returns a copy of everything captured so far.
func (s *MetricsCollectorSpy) Records() []MetricRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]MetricRecord, len(s.records))
	copy(out, s.records)

	return out
}

// Reset drops all captured records.
func (s *MetricsCollectorSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
}

// Count returns how many records of the kind exist for the metric.
func (s *MetricsCollectorSpy) Count(kind MetricKind, metric string) int {
	count := 0

	for _, r := range s.Records() {
		if r.Kind == kind && r.Metric == metric {
			count++
		}
	}

	return count
}

// SumValues adds up all values recorded for the metric.
func (s *MetricsCollectorSpy) SumValues(metric string) float64 {
	sum := 0.0

	for _, r := range s.Records() {
		if r.Kind == KindValue && r.Metric == metric {
			sum += r.Value
		}
	}

	return sum
}

// MetricRecordMatcher is a fluent filter over the captured records.
type MetricRecordMatcher struct {
	candidates []MetricRecord
}

func (s *MetricsCollectorSpy) matcher(kind MetricKind, metric string) *MetricRecordMatcher {
	m := &MetricRecordMatcher{}

	for _, r := range s.Records() {
		if r.Kind == kind && r.Metric == metric {
			m.candidates = append(m.candidates, r)
		}
	}

	return m
}

// HasCounterRecordForMetric starts a fluent check for a counter record.
func (s *MetricsCollectorSpy) HasCounterRecordForMetric(metric string) *MetricRecordMatcher {
	return s.matcher(KindCounter, metric)
}

// HasDurationRecordForMetric starts a fluent check for a duration record.
func (s *MetricsCollectorSpy) HasDurationRecordForMetric(metric string) *MetricRecordMatcher {
	return s.matcher(KindDuration, metric)
}

// HasValueRecordForMetric starts a fluent check for a value record.
func (s *MetricsCollectorSpy) HasValueRecordForMetric(metric string) *MetricRecordMatcher {
	return s.matcher(KindValue, metric)
}

// WithLabel keeps only the records carrying the label with the given value.
func (m *MetricRecordMatcher) WithLabel(key, value string) *MetricRecordMatcher {
	kept := m.candidates[:0:0]

	for _, r := range m.candidates {
		if v, ok := r.Labels[key]; ok && v == value {
			kept = append(kept, r)
		}
	}

	m.candidates = kept

	return m
}

// WithStatus is WithLabel("status", status).
func (m *MetricRecordMatcher) WithStatus(status string) *MetricRecordMatcher {
	return m.WithLabel("status", status)
}

// WithOperation is WithLabel("operation", operation).
func (m *MetricRecordMatcher) WithOperation(operation string) *MetricRecordMatcher {
	return m.WithLabel("operation", operation)
}

// WithErrorType is WithLabel("error_type", errorType).
func (m *MetricRecordMatcher) WithErrorType(errorType string) *MetricRecordMatcher {
	return m.WithLabel("error_type", errorType)
}

// Assert reports whether at least one record survived the filters.
func (m *MetricRecordMatcher) Assert() bool {
	return len(m.candidates) > 0
}
