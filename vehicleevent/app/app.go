// Package app assembles the service from its configuration: event log, projection stores,
// publisher, live query registries, command and query handlers, and the HTTP router.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/rkamradt/vehicleevent/eventstore/oteladapters"
	"github.com/rkamradt/vehicleevent/vehicleevent/features/query/lotsummary"
	"github.com/rkamradt/vehicleevent/vehicleevent/features/query/vehiclesummary"
	"github.com/rkamradt/vehicleevent/vehicleevent/httpapi"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell/config"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell/logging"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell/publisher"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell/relay"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell/subscription"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second

	logMsgReplayed     = "projections replayed"
	logMsgListening    = "http server listening"
	logMsgShuttingDown = "shutting down"
	logMsgCloseFailed  = "releasing resource failed"
	logAttrEvents      = "events"
	logAttrAddr        = "addr"
	logAttrError       = "error"
)

type readiness struct {
	name  string
	check httpapi.ReadinessCheck
}

// App is the assembled service.
type App struct {
	cfg    config.Config
	logger *logging.Logger

	metrics *oteladapters.MetricsCollector
	tracing *oteladapters.TracingCollector

	publisher      *publisher.Publisher
	relay          *relay.RedisRelay
	vehicleUpdates *subscription.Registry[vehiclesummary.VehicleSummary]
	lotUpdates     *subscription.Registry[lotsummary.LotSummary]

	router    *gin.Engine
	readiness []readiness
	closers   []func() error
}

// New builds every component, registers the projections, and replays the event log into them.
// Metrics and traces go to the global OpenTelemetry providers.
func New(ctx context.Context, cfg config.Config, logger *logging.Logger) (*App, error) {
	a := &App{
		cfg:     cfg,
		logger:  logger,
		metrics: oteladapters.NewMetricsCollector(otel.Meter(cfg.ServiceName)),
		tracing: oteladapters.NewTracingCollector(otel.Tracer(cfg.ServiceName)),
	}

	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

func (a *App) build(ctx context.Context) error {
	log, err := a.openEventLog(ctx)
	if err != nil {
		return err
	}

	db, dialect, err := a.openProjectionDB(ctx)
	if err != nil {
		return err
	}

	vehicles, err := newProjectionStore(db, dialect, vehiclesummary.TableName, vehiclesummary.Columns(), a.logger)
	if err != nil {
		return err
	}

	lots, err := newProjectionStore(db, dialect, lotsummary.TableName, lotsummary.Columns(), a.logger)
	if err != nil {
		return err
	}

	if a.publisher, err = publisher.NewPublisher(
		publisher.WithShards(a.cfg.PublisherShards),
		publisher.WithQueueSize(a.cfg.PublisherQueueSize),
		publisher.WithGapLoader(log),
		publisher.WithLogger(a.logger),
		publisher.WithContextualLogger(a.logger),
		publisher.WithMetrics(a.metrics),
	); err != nil {
		return err
	}

	a.onClose(func() error { a.publisher.Close(); return nil })

	if err = a.newRegistries(); err != nil {
		return err
	}

	if err = a.newRelay(); err != nil {
		return err
	}

	vehicleOptions := []vehiclesummary.ProjectionOption{
		vehiclesummary.WithLogger(a.logger),
		vehiclesummary.WithContextualLogger(a.logger),
		vehiclesummary.WithMetrics(a.metrics),
	}

	lotOptions := []lotsummary.ProjectionOption{
		lotsummary.WithLogger(a.logger),
		lotsummary.WithContextualLogger(a.logger),
		lotsummary.WithMetrics(a.metrics),
	}

	if a.relay != nil {
		vehicleOptions = append(vehicleOptions, vehiclesummary.WithForwarder(a.relay))
		lotOptions = append(lotOptions, lotsummary.WithForwarder(a.relay))
	}

	vehiclesummary.NewProjection(vehicles, a.vehicleUpdates, vehicleOptions...).Register(a.publisher)
	lotsummary.NewProjection(lots, a.lotUpdates, lotOptions...).Register(a.publisher)

	replayed, err := a.publisher.Replay(ctx, log)
	if err != nil {
		return fmt.Errorf("replay projections: %w", err)
	}

	a.logger.Info(logMsgReplayed, logAttrEvents, replayed)

	rt, err := a.newRuntimes(log)
	if err != nil {
		return err
	}

	handlers, err := a.newHandlers(rt, a.newDirectory(lots), vehicles, lots)
	if err != nil {
		return err
	}

	a.router = httpapi.NewRouter(handlers, a.routerOptions()...)

	return nil
}

func (a *App) newRegistries() error {
	options := []subscription.Option{
		subscription.WithBufferSize(a.cfg.SubscriptionBuffer),
		subscription.WithOverflowPolicy(subscription.ParseOverflowPolicy(a.cfg.SubscriptionOverflow)),
		subscription.WithLogger(a.logger),
		subscription.WithMetrics(a.metrics),
	}

	var err error

	if a.vehicleUpdates, err = subscription.NewRegistry[vehiclesummary.VehicleSummary](options...); err != nil {
		return err
	}

	a.onClose(func() error { a.vehicleUpdates.Close(); return nil })

	if a.lotUpdates, err = subscription.NewRegistry[lotsummary.LotSummary](options...); err != nil {
		return err
	}

	a.onClose(func() error { a.lotUpdates.Close(); return nil })

	return nil
}

// newRelay connects the live query registries of all instances through Redis when an address is configured.
func (a *App) newRelay() error {
	if a.cfg.RedisAddr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{Addr: a.cfg.RedisAddr})
	a.onClose(client.Close)

	var err error
	if a.relay, err = relay.NewRedisRelay(client, a.cfg.RedisChannel,
		relay.WithLogger(a.logger),
		relay.WithMetrics(a.metrics),
	); err != nil {
		return err
	}

	a.relay.Register(vehiclesummary.QueryTypeName, relay.EmitTo(a.vehicleUpdates))
	a.relay.Register(lotsummary.QueryTypeName, relay.EmitTo(a.lotUpdates))

	a.readiness = append(a.readiness, readiness{
		name:  "redis",
		check: func(ctx context.Context) error { return client.Ping(ctx).Err() },
	})

	return nil
}

func (a *App) routerOptions() []httpapi.Option {
	options := []httpapi.Option{
		httpapi.WithLogger(a.logger),
		httpapi.WithContextualLogger(a.logger),
		httpapi.WithTracing(a.cfg.ServiceName),
		httpapi.WithAllowedOrigins(a.cfg.AllowedOrigins...),
	}

	for _, r := range a.readiness {
		options = append(options, httpapi.WithReadinessCheck(r.name, r.check))
	}

	return options
}

// Handler returns the HTTP router.
func (a *App) Handler() http.Handler {
	return a.router
}

// Run starts the publisher, the relay, and the HTTP server, and blocks until ctx is done or one of them fails.
// Live query streams are closed before the server shuts down.
func (a *App) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return a.publisher.Run(groupCtx)
	})

	if a.relay != nil {
		group.Go(func() error {
			return a.relay.Run(groupCtx)
		})
	}

	group.Go(func() error {
		a.logger.Info(logMsgListening, logAttrAddr, a.cfg.HTTPAddr)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}

		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		a.logger.Info(logMsgShuttingDown)

		a.vehicleUpdates.Close()
		a.lotUpdates.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

// Close releases every resource New acquired, in reverse order.
func (a *App) Close() {
	for _, closer := range slices.Backward(a.closers) {
		if err := closer(); err != nil {
			a.logger.Warn(logMsgCloseFailed, logAttrError, err.Error())
		}
	}

	a.closers = nil
}

func (a *App) onClose(closer func() error) {
	a.closers = append(a.closers, closer)
}
