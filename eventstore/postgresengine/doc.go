// Package postgresengine provides a PostgreSQL implementation of the aggregate event log.
//
// Every event row carries its aggregate id and per-aggregate sequence number. Append is a
// single INSERT ... SELECT whose CTE reads the aggregate's current max sequence number and
// only inserts when it equals the expected version. Under concurrent appends the
// UNIQUE (aggregate_id, sequence_number) constraint rejects the loser; both cases surface as
// eventstore.ErrConcurrencyConflict.
//
// Key features:
//   - Multiple database adapter support (PGX, SQL, SQLX)
//   - Optional read replica for eventual consistency reads
//   - Atomic multi-event appends with consecutive sequence numbers
//   - Global position paging for projection replay
//   - Pluggable logging, metrics, and tracing
//
// Usage examples:
//
//	db, _ := pgxpool.New(context.Background(), dsn)
//	store, _ := postgresengine.NewEventStoreFromPGXPool(
//		db,
//		postgresengine.WithTableName("vehicle_events"),
//		postgresengine.WithLogger(logger),
//	)
//	_ = store.EnsureSchema(ctx)
//
//	events, version, _ := store.Load(ctx, vehicleID)
//	committed, err := store.Append(ctx, vehicleID, version, newEvent)
package postgresengine
