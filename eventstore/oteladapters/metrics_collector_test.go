package oteladapters_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/rkamradt/vehicleevent/eventstore/oteladapters"
)

func givenCollector(t *testing.T) (*oteladapters.MetricsCollector, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	return oteladapters.NewMetricsCollector(provider.Meter("test")), reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader, name string) metricdata.Aggregation {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m.Data
			}
		}
	}

	require.Failf(t, "metric not found", "metric %s was not recorded", name)

	return nil
}

func Test_MetricsCollector_RecordDuration_UsesSeconds(t *testing.T) {
	// arrange
	collector, reader := givenCollector(t)

	// act
	collector.RecordDuration("eventstore_append_duration_seconds", 150*time.Millisecond,
		map[string]string{"operation": "append", "status": "success"})

	// assert
	histogram, ok := collect(t, reader, "eventstore_append_duration_seconds").(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, histogram.DataPoints, 1)
	assert.Equal(t, uint64(1), histogram.DataPoints[0].Count)
	assert.InDelta(t, 0.15, histogram.DataPoints[0].Sum, 0.001)

	expected := attribute.NewSet(attribute.String("operation", "append"), attribute.String("status", "success"))
	assert.True(t, histogram.DataPoints[0].Attributes.Equals(&expected))
}

func Test_MetricsCollector_IncrementCounter_IsSafeForConcurrentUse(t *testing.T) {
	// arrange
	collector, reader := givenCollector(t)
	labels := map[string]string{"projection": "vehicle_summary"}

	// act
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()
			collector.IncrementCounterContext(context.Background(), "projection_mutation_dropped_total", labels)
		}()
	}

	wg.Wait()

	// assert
	sum, ok := collect(t, reader, "projection_mutation_dropped_total").(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(20), sum.DataPoints[0].Value)
}

func Test_MetricsCollector_RecordValue_KeepsLastValue(t *testing.T) {
	// arrange
	collector, reader := givenCollector(t)

	// act
	collector.RecordValue("publisher_queue_depth", 3, nil)
	collector.RecordValue("publisher_queue_depth", 7, nil)

	// assert
	gauge, ok := collect(t, reader, "publisher_queue_depth").(metricdata.Gauge[float64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, 7.0, gauge.DataPoints[0].Value)
}
