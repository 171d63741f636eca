package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/rkamradt/vehicleevent/eventstore/memengine"
	"github.com/rkamradt/vehicleevent/eventstore/postgresengine"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell/config"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell/projectionstore"
)

// eventLog is what the app needs from an engine: aggregate access for the runtimes and global reads for replay.
type eventLog interface {
	shell.EventLog
	shell.ReadsAllEvents
}

func (a *App) openEventLog(ctx context.Context) (eventLog, error) {
	if a.cfg.EventStoreEngine == config.EngineMemory {
		return memengine.NewEventStore(
			memengine.WithLogger(a.logger),
			memengine.WithMetrics(a.metrics),
		), nil
	}

	options := []postgresengine.Option{
		postgresengine.WithTableName(a.cfg.EventTableName),
		postgresengine.WithLogger(a.logger),
		postgresengine.WithContextualLogger(a.logger),
		postgresengine.WithMetrics(a.metrics),
		postgresengine.WithTracing(a.tracing),
	}

	var (
		es  *postgresengine.EventStore
		err error
	)

	switch a.cfg.PostgresDriver {
	case config.DriverSQL:
		es, err = a.openSQLEventStore(ctx, options)
	case config.DriverSQLX:
		es, err = a.openSQLXEventStore(ctx, options)
	default:
		es, err = a.openPGXEventStore(ctx, options)
	}

	if err != nil {
		return nil, err
	}

	if err = es.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("create event table: %w", err)
	}

	a.readiness = append(a.readiness, readiness{name: "eventstore", check: es.Ping})

	return es, nil
}

func (a *App) openPGXEventStore(ctx context.Context, options []postgresengine.Option) (*postgresengine.EventStore, error) {
	primary, err := config.PostgresPGXPoolPrimary(ctx, a.cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	a.onClose(func() error { primary.Close(); return nil })

	if a.cfg.PostgresReplicaDSN == "" {
		return postgresengine.NewEventStoreFromPGXPool(primary, options...)
	}

	replica, err := config.PostgresPGXPoolReplica(ctx, a.cfg.PostgresReplicaDSN)
	if err != nil {
		return nil, err
	}

	a.onClose(func() error { replica.Close(); return nil })

	return postgresengine.NewEventStoreFromPGXPoolAndReplica(primary, replica, options...)
}

func (a *App) openSQLEventStore(ctx context.Context, options []postgresengine.Option) (*postgresengine.EventStore, error) {
	primary, err := config.PostgresSQLDB(ctx, a.cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	a.onClose(primary.Close)

	if a.cfg.PostgresReplicaDSN == "" {
		return postgresengine.NewEventStoreFromSQLDB(primary, options...)
	}

	replica, err := config.PostgresSQLDB(ctx, a.cfg.PostgresReplicaDSN)
	if err != nil {
		return nil, err
	}

	a.onClose(replica.Close)

	return postgresengine.NewEventStoreFromSQLDBAndReplica(primary, replica, options...)
}

func (a *App) openSQLXEventStore(ctx context.Context, options []postgresengine.Option) (*postgresengine.EventStore, error) {
	primary, err := config.PostgresSQLXDB(ctx, a.cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	a.onClose(primary.Close)

	if a.cfg.PostgresReplicaDSN == "" {
		return postgresengine.NewEventStoreFromSQLX(primary, options...)
	}

	replica, err := config.PostgresSQLXDB(ctx, a.cfg.PostgresReplicaDSN)
	if err != nil {
		return nil, err
	}

	a.onClose(replica.Close)

	return postgresengine.NewEventStoreFromSQLXAndReplica(primary, replica, options...)
}

// openProjectionDB returns a nil database for the memory store.
func (a *App) openProjectionDB(ctx context.Context) (*sqlx.DB, projectionstore.Dialect, error) {
	var (
		db      *sqlx.DB
		dialect projectionstore.Dialect
		err     error
	)

	switch a.cfg.ProjectionStore {
	case config.StoreSQLite:
		dialect = projectionstore.DialectSQLite
		db, err = config.SQLiteDB(ctx, a.cfg.SQLitePath)
	case config.StorePostgres:
		dialect = projectionstore.DialectPostgres
		db, err = config.PostgresSQLXDB(ctx, a.cfg.PostgresDSN)
	default:
		return nil, "", nil
	}

	if err != nil {
		return nil, "", err
	}

	a.onClose(db.Close)

	if err = projectionstore.EnsureSchema(ctx, db, dialect); err != nil {
		return nil, "", err
	}

	a.readiness = append(a.readiness, readiness{name: "projections", check: db.PingContext})

	return db, dialect, nil
}

func newProjectionStore[R any](
	db *sqlx.DB,
	dialect projectionstore.Dialect,
	table string,
	columns map[string]projectionstore.Column[R],
	logger shell.Logger,
) (projectionstore.Store[R], error) {

	if db == nil {
		return projectionstore.NewMemoryStore(columns), nil
	}

	store, err := projectionstore.NewSQLStore[R](db, dialect, table, projectionstore.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	return store, nil
}
