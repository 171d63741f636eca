// Package config loads the service configuration from the environment and builds the
// infrastructure it describes: PostgreSQL connections for the three supported drivers,
// the SQLite connection for the embedded projection store, and the OpenTelemetry providers.
package config
