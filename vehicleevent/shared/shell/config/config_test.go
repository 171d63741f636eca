package config_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell/config"
)

func Test_LoadFrom_AppliesDefaults(t *testing.T) {
	// act
	cfg, err := config.LoadFrom(map[string]string{})

	// assert
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, config.EngineMemory, cfg.EventStoreEngine)
	assert.Equal(t, config.StoreMemory, cfg.ProjectionStore)
	assert.Equal(t, 5, cfg.RetryMaxAttempts)
	assert.Equal(t, 5*time.Millisecond, cfg.RetryBaseDelay)
	assert.Equal(t, 16, cfg.SubscriptionBuffer)
	assert.Equal(t, config.OverflowDropOldest, cfg.SubscriptionOverflow)
	assert.Equal(t, 2*time.Second, cfg.LotLookupTimeout)
	assert.False(t, cfg.StateCacheEnabled)
	assert.Empty(t, cfg.AllowedOrigins)
}

func Test_LoadFrom_ReadsOverrides(t *testing.T) {
	// act
	cfg, err := config.LoadFrom(map[string]string{
		"EVENT_STORE_ENGINE":    "postgres",
		"POSTGRES_DSN":          "postgres://u:p@localhost:5432/db?sslmode=disable",
		"POSTGRES_DRIVER":       "sqlx",
		"RETRY_MAX_ATTEMPTS":    "8",
		"RETRY_BASE_DELAY":      "20ms",
		"SUBSCRIPTION_OVERFLOW": "disconnect",
		"STATE_CACHE_ENABLED":   "true",
		"LOT_QUERY_SERVICE_URL": "http://lots.internal/lot",
		"CORS_ALLOWED_ORIGINS":  "https://a.example,https://b.example",
	})

	// assert
	require.NoError(t, err)
	assert.Equal(t, config.EnginePostgres, cfg.EventStoreEngine)
	assert.Equal(t, config.DriverSQLX, cfg.PostgresDriver)
	assert.Equal(t, 8, cfg.RetryMaxAttempts)
	assert.Equal(t, 20*time.Millisecond, cfg.RetryBaseDelay)
	assert.Equal(t, config.OverflowDisconnect, cfg.SubscriptionOverflow)
	assert.True(t, cfg.StateCacheEnabled)
	assert.Equal(t, "http://lots.internal/lot", cfg.LotQueryServiceURL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func Test_LoadFrom_RejectsInvalidValues(t *testing.T) {
	testCases := map[string]map[string]string{
		"unknown engine":        {"EVENT_STORE_ENGINE": "cassandra"},
		"postgres without dsn":  {"EVENT_STORE_ENGINE": "postgres"},
		"zero attempts":         {"RETRY_MAX_ATTEMPTS": "0"},
		"unknown overflow":      {"SUBSCRIPTION_OVERFLOW": "block"},
		"unknown exporter":      {"OTEL_EXPORTER": "zipkin"},
		"zero subscriber queue": {"SUBSCRIPTION_BUFFER": "0"},
	}

	for name, environment := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := config.LoadFrom(environment)

			assert.ErrorIs(t, err, config.ErrInvalidConfig)
		})
	}
}

func Test_LoadFrom_RejectsUnparsableDuration(t *testing.T) {
	_, err := config.LoadFrom(map[string]string{"RETRY_BASE_DELAY": "soon"})

	assert.Error(t, err)
}

func Test_SQLiteDB_OpensInMemoryDatabase(t *testing.T) {
	db, err := config.SQLiteDB(context.Background(), "file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var one int
	require.NoError(t, db.Get(&one, "SELECT 1"))
	assert.Equal(t, 1, one)
}

func Test_NewTracerProvider_WithoutExporter(t *testing.T) {
	ctx := context.Background()

	tracerProvider, err := config.NewTracerProvider(ctx, config.ExporterNone, resource.Empty())
	require.NoError(t, err)
	meterProvider, err := config.NewMeterProvider(ctx, config.ExporterNone, resource.Empty())
	require.NoError(t, err)

	_, span := tracerProvider.Tracer("test").Start(ctx, "op")
	span.End()

	assert.True(t, span.SpanContext().IsValid())
	assert.NoError(t, tracerProvider.Shutdown(ctx))
	assert.NoError(t, meterProvider.Shutdown(ctx))
}
