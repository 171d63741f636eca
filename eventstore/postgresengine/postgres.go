package postgresengine

import (
	"cmp"
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/rkamradt/vehicleevent/eventstore"
	"github.com/rkamradt/vehicleevent/eventstore/postgresengine/internal/adapters"
)

const (
	defaultEventTableName          = "events"
	logMsgBuildSelectQueryFailed   = "failed to build select query"
	logMsgDBQueryFailed            = "database query execution failed"
	logMsgCloseRowsFailed          = "failed to close database rows"
	logMsgScanRowFailed            = "failed to scan database row"
	logMsgBuildStorableEventFailed = "failed to build storable event from database row"
	logMsgBuildInsertQueryFailed   = "failed to build insert query"
	logMsgDBExecFailed             = "database execution failed during event append"
	logMsgLoadCompleted            = "load completed"
	logMsgReadAllCompleted         = "read all completed"
	logMsgEventsAppended           = "events appended"
	logMsgConcurrencyConflict      = "concurrency conflict detected"
	logMsgSchemaEnsured            = "event table ensured"
	logMsgSQLExecuted              = "executed sql for: "
	logMsgOperation                = "eventstore operation: "
	logAttrError                   = "error"
	logAttrQuery                   = "query"
	logAttrAggregateID             = "aggregate_id"
	logAttrEventType               = "event_type"
	logAttrEventCount              = "event_count"
	logAttrDurationMS              = "duration_ms"
	logAttrExpectedEvents          = "expected_events"
	logAttrRowsAffected            = "rows_affected"
	logAttrExpectedSequence        = "expected_sequence"
	logAttrTable                   = "table"
	logActionLoad                  = "load"
	logActionReadAll               = "read_all"
	logActionAppend                = "append"
	colGlobalPosition              = "global_position"
	colAggregateID                 = "aggregate_id"
	colSequenceNumber              = "sequence_number"
	colEventType                   = "event_type"
	colOccurredAt                  = "occurred_at"
	colPayload                     = "payload"
	colMetadata                    = "metadata"
	cteContext                     = "context"
	cteVals                        = "vals"
	dialectPostgres                = "postgres"
	aliasMaxSeq                    = "max_seq"
	castText                       = "?::text"
	castBigint                     = "?::bigint"
	castTimestamp                  = "?::timestamp with time zone"
	castJsonb                      = "?::jsonb"
)

//go:embed schema.sql
var schemaTemplate string

type (
	sqlQueryString = string
	queryDuration  = time.Duration
)

// EventStore is the PostgreSQL implementation of the aggregate event log.
// It leverages a database adapter and supports customizable logging, metrics, tracing, and event table configuration.
type EventStore struct {
	db               adapters.DBAdapter
	eventTableName   string
	logger           Logger
	metricsCollector MetricsCollector
	tracingCollector TracingCollector
	contextualLogger ContextualLogger
}

type eventRow struct {
	aggregateID    string
	sequenceNumber int64
	globalPosition int64
	eventType      string
	occurredAt     time.Time
	payload        []byte
	metadata       []byte
}

// NewEventStoreFromPGXPool creates a new EventStore using a pgx Pool with optional configuration.
func NewEventStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (*EventStore, error) {
	if db == nil {
		return nil, eventstore.ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewPGXAdapter(db), options...)
}

// NewEventStoreFromPGXPoolAndReplica creates a new EventStore that reads with eventual consistency from the replica pool.
func NewEventStoreFromPGXPoolAndReplica(db *pgxpool.Pool, replica *pgxpool.Pool, options ...Option) (*EventStore, error) {
	if db == nil {
		return nil, eventstore.ErrNilDatabaseConnection
	}

	if replica == nil {
		return newEventStore(adapters.NewPGXAdapter(db), options...)
	}

	return newEventStore(adapters.NewPGXAdapterWithReplica(db, replica), options...)
}

// NewEventStoreFromSQLDB creates a new EventStore using a sql.DB with optional configuration.
func NewEventStoreFromSQLDB(db *sql.DB, options ...Option) (*EventStore, error) {
	if db == nil {
		return nil, eventstore.ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewSQLAdapter(db), options...)
}

// NewEventStoreFromSQLDBAndReplica creates a new EventStore over sql.DB connections with a read replica.
func NewEventStoreFromSQLDBAndReplica(db *sql.DB, replica *sql.DB, options ...Option) (*EventStore, error) {
	if db == nil {
		return nil, eventstore.ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewSQLAdapterWithReplica(db, replica), options...)
}

// NewEventStoreFromSQLX creates a new EventStore using a sqlx.DB with optional configuration.
func NewEventStoreFromSQLX(db *sqlx.DB, options ...Option) (*EventStore, error) {
	if db == nil {
		return nil, eventstore.ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewSQLXAdapter(db), options...)
}

// NewEventStoreFromSQLXAndReplica creates a new EventStore over sqlx.DB connections with a read replica.
func NewEventStoreFromSQLXAndReplica(db *sqlx.DB, replica *sqlx.DB, options ...Option) (*EventStore, error) {
	if db == nil {
		return nil, eventstore.ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewSQLXAdapterWithReplica(db, replica), options...)
}

func newEventStore(db adapters.DBAdapter, options ...Option) (*EventStore, error) {
	es := &EventStore{
		db:             db,
		eventTableName: defaultEventTableName,
	}

	for _, option := range options {
		if err := option(es); err != nil {
			return nil, err
		}
	}

	return es, nil
}

// EnsureSchema creates the event table and its unique (aggregate_id, sequence_number) constraint if missing.
func (es *EventStore) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(schemaTemplate, es.eventTableName)

	if _, err := es.db.Exec(ctx, ddl); err != nil {
		es.logError(logMsgDBExecFailed, err, logAttrQuery, ddl)
		return errors.Join(eventstore.ErrCreatingSchemaFailed, err)
	}

	es.logOperation(logMsgSchemaEnsured, logAttrTable, es.eventTableName)

	return nil
}

// Ping checks the primary database connection.
func (es *EventStore) Ping(ctx context.Context) error {
	return es.db.Ping(ctx)
}

// Load retrieves all events of one aggregate ordered by sequence number,
// together with the aggregate's current version.
//
// An unknown aggregate yields an empty sequence and version zero.
func (es *EventStore) Load(ctx context.Context, aggregateID string) (
	eventstore.StorableEvents,
	eventstore.SequenceNumberUint,
	error,
) {

	return es.LoadAfter(ctx, aggregateID, 0)
}

// LoadAfter retrieves the events of one aggregate with a sequence number greater than after.
// The returned version is the sequence number of the last returned event, or after if there are none.
func (es *EventStore) LoadAfter(
	ctx context.Context,
	aggregateID string,
	after eventstore.SequenceNumberUint,
) (eventstore.StorableEvents, eventstore.SequenceNumberUint, error) {

	if aggregateID == "" {
		return nil, 0, eventstore.ErrEmptyAggregateID
	}

	tracer, ctx := es.startQueryTracing(ctx, operationLoad)
	metrics := es.startQueryMetrics(ctx, operationLoad)

	sqlQuery, buildQueryErr := es.buildLoadQuery(aggregateID, after)
	if buildQueryErr != nil {
		es.logErrorContext(ctx, logMsgBuildSelectQueryFailed, buildQueryErr)
		tracer.finishError(errorTypeBuildQuery, 0)
		metrics.recordError(errorTypeBuildQuery, 0)

		return nil, 0, buildQueryErr
	}

	eventStream, duration, err := es.queryEvents(ctx, sqlQuery, logActionLoad)
	if err != nil {
		tracer.finishError(errorTypeQuery, duration)
		metrics.recordError(errorTypeQuery, duration)

		return nil, 0, err
	}

	version := after
	if len(eventStream) > 0 {
		version = eventstore.VersionOf(eventStream)
	}

	es.logOperationContext(ctx, logMsgLoadCompleted,
		logAttrAggregateID, aggregateID,
		logAttrEventCount, len(eventStream),
		logAttrDurationMS, es.toMilliseconds(duration))

	tracer.finishSuccess(eventStream, version, duration)
	metrics.recordSuccess(eventStream, duration)

	return eventStream, version, nil
}

// ReadAll pages through the whole event log in global position order,
// returning at most limit events positioned after the given global position.
func (es *EventStore) ReadAll(
	ctx context.Context,
	after eventstore.GlobalPositionUint,
	limit int,
) (eventstore.StorableEvents, error) {

	if limit <= 0 {
		return nil, eventstore.ErrInvalidReadLimit
	}

	tracer, ctx := es.startQueryTracing(ctx, operationReadAll)
	metrics := es.startQueryMetrics(ctx, operationReadAll)

	sqlQuery, buildQueryErr := es.buildReadAllQuery(after, limit)
	if buildQueryErr != nil {
		es.logErrorContext(ctx, logMsgBuildSelectQueryFailed, buildQueryErr)
		tracer.finishError(errorTypeBuildQuery, 0)
		metrics.recordError(errorTypeBuildQuery, 0)

		return nil, buildQueryErr
	}

	eventStream, duration, err := es.queryEvents(ctx, sqlQuery, logActionReadAll)
	if err != nil {
		tracer.finishError(errorTypeQuery, duration)
		metrics.recordError(errorTypeQuery, duration)

		return nil, err
	}

	es.logOperationContext(ctx, logMsgReadAllCompleted,
		logAttrEventCount, len(eventStream),
		logAttrDurationMS, es.toMilliseconds(duration))

	tracer.finishSuccess(eventStream, eventstore.VersionOf(eventStream), duration)
	metrics.recordSuccess(eventStream, duration)

	return eventStream, nil
}

// queryEvents executes a select or insert-returning query and scans the resulting event rows.
func (es *EventStore) queryEvents(ctx context.Context, sqlQuery string, action string) (
	eventstore.StorableEvents,
	queryDuration,
	error,
) {

	start := time.Now()
	rows, queryErr := es.db.Query(ctx, sqlQuery)
	if queryErr != nil {
		duration := time.Since(start)
		es.logQueryWithDuration(sqlQuery, action, duration)
		es.logError(logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)

		return nil, duration, es.wrapDBError(queryErr)
	}
	defer es.closeRows(rows)

	eventStream, scanErr := es.processRows(rows)
	duration := time.Since(start)
	es.logQueryWithDuration(sqlQuery, action, duration)

	if scanErr != nil {
		return nil, duration, scanErr
	}

	return eventStream, duration, nil
}

// wrapDBError maps a unique violation to ErrConcurrencyConflict, everything else to ErrQueryingEventsFailed.
func (es *EventStore) wrapDBError(err error) error {
	if errors.Is(err, adapters.ErrUniqueViolation) {
		return errors.Join(eventstore.ErrConcurrencyConflict, err)
	}

	return errors.Join(eventstore.ErrQueryingEventsFailed, err)
}

// closeRows safely closes database rows and logs any errors.
func (es *EventStore) closeRows(rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		if es.logger != nil {
			es.logger.Warn(logMsgCloseRowsFailed, logAttrError, closeErr.Error())
		}
	}
}

// processRows converts database rows to storable events.
func (es *EventStore) processRows(rows adapters.DBRows) (eventstore.StorableEvents, error) {
	eventStream := make(eventstore.StorableEvents, 0)

	for rows.Next() {
		row := eventRow{}

		rowScanErr := rows.Scan(
			&row.aggregateID,
			&row.sequenceNumber,
			&row.globalPosition,
			&row.eventType,
			&row.occurredAt,
			&row.payload,
			&row.metadata,
		)
		if rowScanErr != nil {
			es.logError(logMsgScanRowFailed, rowScanErr)
			return nil, errors.Join(eventstore.ErrScanningDBRowFailed, rowScanErr)
		}

		event, buildStorableErr := eventstore.BuildStorableEvent(row.eventType, row.occurredAt, row.payload, row.metadata)
		if buildStorableErr != nil {
			es.logError(logMsgBuildStorableEventFailed, buildStorableErr, logAttrEventType, row.eventType)
			return nil, errors.Join(eventstore.ErrBuildingStorableEventFailed, buildStorableErr)
		}

		eventStream = append(eventStream, event.WithPosition(
			row.aggregateID,
			eventstore.SequenceNumberUint(row.sequenceNumber),
			eventstore.GlobalPositionUint(row.globalPosition),
		))
	}

	if iterErr := rows.Err(); iterErr != nil {
		es.logError(logMsgDBQueryFailed, iterErr)
		return nil, es.wrapDBError(iterErr)
	}

	return eventStream, nil
}

// Append attempts to append one or multiple eventstore.StorableEvent(s) to the stream of one aggregate,
// provided that the aggregate's version still equals expectedVersion.
//
// The events get the consecutive sequence numbers expectedVersion+1, expectedVersion+2, ... and are written atomically.
// The committed events are returned with AggregateID, SequenceNumber, and GlobalPosition set.
//
// Returns eventstore.ErrConcurrencyConflict if another writer appended in the meantime, either detected by the
// version check inside the insert or by the unique (aggregate_id, sequence_number) constraint.
func (es *EventStore) Append(
	ctx context.Context,
	aggregateID string,
	expectedVersion eventstore.SequenceNumberUint,
	event eventstore.StorableEvent,
	additionalEvents ...eventstore.StorableEvent,
) (eventstore.StorableEvents, error) {

	if aggregateID == "" {
		return nil, eventstore.ErrEmptyAggregateID
	}

	allEvents := eventstore.StorableEvents{event}
	allEvents = append(allEvents, additionalEvents...)

	// appends always go to the primary
	ctx = eventstore.WithStrongConsistency(ctx)

	tracer, ctx := es.startAppendTracing(ctx, allEvents, expectedVersion)
	metrics := es.startAppendMetrics(ctx)

	sqlQuery, buildQueryErr := es.buildAppendQuery(aggregateID, allEvents, expectedVersion)
	if buildQueryErr != nil {
		tracer.finishError(errorTypeBuildQuery, 0)
		metrics.recordError(errorTypeBuildQuery, 0)

		return nil, buildQueryErr
	}

	committed, duration, err := es.queryEvents(ctx, sqlQuery, logActionAppend)
	if err != nil {
		if errors.Is(err, eventstore.ErrConcurrencyConflict) {
			return nil, es.concurrencyConflict(ctx, tracer, metrics, aggregateID, len(allEvents), 0, expectedVersion)
		}

		es.logErrorContext(ctx, logMsgDBExecFailed, err, logAttrAggregateID, aggregateID)
		tracer.finishError(errorTypeExec, duration)
		metrics.recordError(errorTypeExec, duration)

		return nil, errors.Join(eventstore.ErrAppendingEventFailed, err)
	}

	slices.SortFunc(committed, func(a, b eventstore.StorableEvent) int {
		return cmp.Compare(a.SequenceNumber, b.SequenceNumber)
	})

	if len(committed) < len(allEvents) {
		return nil, es.concurrencyConflict(ctx, tracer, metrics, aggregateID, len(allEvents), len(committed), expectedVersion)
	}

	es.logOperationContext(ctx, logMsgEventsAppended,
		logAttrAggregateID, aggregateID,
		logAttrEventCount, len(committed),
		logAttrDurationMS, es.toMilliseconds(duration),
	)

	tracer.finishSuccess(int64(len(committed)), duration)
	metrics.recordSuccess(len(committed), duration)

	return committed, nil
}

func (es *EventStore) concurrencyConflict(
	ctx context.Context,
	tracer *appendTracingObserver,
	metrics *appendMetricsObserver,
	aggregateID string,
	expectedEventCount int,
	rowsAffected int,
	expectedVersion eventstore.SequenceNumberUint,
) error {

	es.logOperationContext(ctx, logMsgConcurrencyConflict,
		logAttrAggregateID, aggregateID,
		logAttrExpectedEvents, expectedEventCount,
		logAttrRowsAffected, rowsAffected,
		logAttrExpectedSequence, expectedVersion,
	)

	tracer.finishErrorWithAttrs(errorTypeConcurrencyConflict, map[string]string{
		spanAttrExpectedSeq: fmt.Sprintf("%d", expectedVersion),
	})
	metrics.recordConcurrencyConflict()

	return eventstore.ErrConcurrencyConflict
}

// buildAppendQuery builds the appropriate SQL query for single or multiple events.
func (es *EventStore) buildAppendQuery(
	aggregateID string,
	allEvents eventstore.StorableEvents,
	expectedVersion eventstore.SequenceNumberUint,
) (sqlQueryString, error) {

	var sqlQuery sqlQueryString
	var buildQueryErr error

	switch len(allEvents) {
	case 1:
		sqlQuery, buildQueryErr = es.buildInsertQueryForSingleEvent(aggregateID, allEvents[0], expectedVersion)

	default:
		sqlQuery, buildQueryErr = es.buildInsertQueryForMultipleEvents(aggregateID, allEvents, expectedVersion)
	}

	if buildQueryErr != nil {
		es.logError(logMsgBuildInsertQueryFailed, buildQueryErr, logAttrEventCount, len(allEvents))
		return "", buildQueryErr
	}

	return sqlQuery, nil
}

func (es *EventStore) returningCols() []any {
	return []any{
		colAggregateID,
		colSequenceNumber,
		colGlobalPosition,
		colEventType,
		colOccurredAt,
		colPayload,
		colMetadata,
	}
}

func (es *EventStore) buildLoadQuery(aggregateID string, after eventstore.SequenceNumberUint) (sqlQueryString, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(es.eventTableName).
		Select(es.returningCols()...).
		Where(
			goqu.C(colAggregateID).Eq(aggregateID),
			goqu.C(colSequenceNumber).Gt(after),
		).
		Order(goqu.I(colSequenceNumber).Asc())

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (es *EventStore) buildReadAllQuery(after eventstore.GlobalPositionUint, limit int) (sqlQueryString, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(es.eventTableName).
		Select(es.returningCols()...).
		Where(goqu.C(colGlobalPosition).Gt(after)).
		Order(goqu.I(colGlobalPosition).Asc()).
		Limit(uint(limit))

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

// versionContextCTE selects the current max sequence number of the aggregate.
func (es *EventStore) versionContextCTE(builder goqu.DialectWrapper, aggregateID string) *goqu.SelectDataset {
	return builder.
		From(es.eventTableName).
		Select(goqu.MAX(colSequenceNumber).As(aliasMaxSeq)).
		Where(goqu.C(colAggregateID).Eq(aggregateID))
}

func (es *EventStore) buildInsertQueryForSingleEvent(
	aggregateID string,
	event eventstore.StorableEvent,
	expectedVersion eventstore.SequenceNumberUint,
) (sqlQueryString, error) {

	builder := goqu.Dialect(dialectPostgres)

	cteStmt := es.versionContextCTE(builder, aggregateID)

	selectStmt := builder.
		From(cteContext).
		Select(
			goqu.L(castText, aggregateID),
			goqu.L(castBigint, expectedVersion+1),
			goqu.L(castText, event.EventType),
			goqu.L(castTimestamp, event.OccurredAt),
			goqu.L(castJsonb, string(event.PayloadJSON)),
			goqu.L(castJsonb, string(event.MetadataJSON)),
		).
		Where(goqu.COALESCE(goqu.C(aliasMaxSeq), 0).Eq(goqu.V(expectedVersion)))

	insertStmt := builder.
		Insert(es.eventTableName).
		Cols(colAggregateID, colSequenceNumber, colEventType, colOccurredAt, colPayload, colMetadata).
		FromQuery(selectStmt).
		With(cteContext, cteStmt).
		Returning(es.returningCols()...)

	sqlQuery, _, toSQLErr := insertStmt.ToSQL()
	if toSQLErr != nil {
		es.logError(logMsgBuildInsertQueryFailed, toSQLErr, logAttrEventType, event.EventType)
		return "", errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (es *EventStore) buildInsertQueryForMultipleEvents(
	aggregateID string,
	events eventstore.StorableEvents,
	expectedVersion eventstore.SequenceNumberUint,
) (sqlQueryString, error) {

	builder := goqu.Dialect(dialectPostgres)

	cteStmt := es.versionContextCTE(builder, aggregateID)

	// One SELECT per event, combined with UNION ALL.
	unionStatements := make([]*goqu.SelectDataset, len(events))
	for i, event := range events {
		unionStatements[i] = builder.
			Select(
				goqu.L(castText, aggregateID).As(colAggregateID),
				goqu.L(castBigint, expectedVersion+eventstore.SequenceNumberUint(i)+1).As(colSequenceNumber),
				goqu.L(castText, event.EventType).As(colEventType),
				goqu.L(castTimestamp, event.OccurredAt).As(colOccurredAt),
				goqu.L(castJsonb, string(event.PayloadJSON)).As(colPayload),
				goqu.L(castJsonb, string(event.MetadataJSON)).As(colMetadata),
			)
	}

	valuesStmt := unionStatements[0]
	for i := 1; i < len(unionStatements); i++ {
		valuesStmt = valuesStmt.UnionAll(unionStatements[i])
	}

	valsCol := func(col string) string { return fmt.Sprintf("%s.%s", cteVals, col) }

	insertStmt := builder.
		Insert(es.eventTableName).
		Cols(colAggregateID, colSequenceNumber, colEventType, colOccurredAt, colPayload, colMetadata).
		With(cteContext, cteStmt).
		With(cteVals, valuesStmt).
		FromQuery(
			builder.From(cteContext, cteVals).
				Select(
					valsCol(colAggregateID),
					valsCol(colSequenceNumber),
					valsCol(colEventType),
					valsCol(colOccurredAt),
					valsCol(colPayload),
					valsCol(colMetadata),
				).
				Where(goqu.COALESCE(goqu.C(aliasMaxSeq), 0).Eq(goqu.V(expectedVersion))).
				Order(goqu.I(valsCol(colSequenceNumber)).Asc()),
		).
		Returning(es.returningCols()...)

	sqlQuery, _, toSQLErr := insertStmt.ToSQL()
	if toSQLErr != nil {
		es.logError(logMsgBuildInsertQueryFailed, toSQLErr, logAttrEventCount, len(events))
		return "", errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}
