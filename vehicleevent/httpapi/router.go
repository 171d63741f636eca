package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/rkamradt/vehicleevent/eventstore"
	"github.com/rkamradt/vehicleevent/vehicleevent/features/command/addpurchaseorder"
	"github.com/rkamradt/vehicleevent/vehicleevent/features/command/createlot"
	"github.com/rkamradt/vehicleevent/vehicleevent/features/command/purchasevehicle"
	"github.com/rkamradt/vehicleevent/vehicleevent/features/command/sellvehicle"
	"github.com/rkamradt/vehicleevent/vehicleevent/features/command/sendvehicletolot"
	"github.com/rkamradt/vehicleevent/vehicleevent/features/command/updatelot"
	"github.com/rkamradt/vehicleevent/vehicleevent/features/query/lotsummary"
	"github.com/rkamradt/vehicleevent/vehicleevent/features/query/vehiclesummary"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell/subscription"
)

const readinessTimeout = time.Second

// Handlers holds everything the routes delegate to.
type Handlers struct {
	PurchaseVehicle  shell.CoreCommandHandler[purchasevehicle.Command]
	SendVehicleToLot shell.CoreCommandHandler[sendvehicletolot.Command]
	SellVehicle      shell.CoreCommandHandler[sellvehicle.Command]
	CreateLot        shell.CoreCommandHandler[createlot.Command]
	UpdateLot        shell.CoreCommandHandler[updatelot.Command]
	AddPurchaseOrder shell.CoreCommandHandler[addpurchaseorder.Command]

	VehicleSummary shell.CoreQueryHandler[vehiclesummary.Query, vehiclesummary.VehicleSummary]
	LotSummary     shell.CoreQueryHandler[lotsummary.Query, lotsummary.LotSummary]
	LotList        shell.CoreQueryHandler[lotsummary.ListQuery, []lotsummary.LotSummary]

	VehicleUpdates *subscription.Registry[vehiclesummary.VehicleSummary]
	LotUpdates     *subscription.Registry[lotsummary.LotSummary]
}

// ReadinessCheck reports whether a dependency can serve requests.
type ReadinessCheck func(ctx context.Context) error

type server struct {
	handlers          Handlers
	logger            shell.Logger
	contextualLogger  shell.ContextualLogger
	readinessChecks   map[string]ReadinessCheck
	allowedOrigins    []string
	serviceName       string
	heartbeatInterval time.Duration
}

// Option configures the router.
type Option func(*server)

// WithLogger sets the logger for failed requests.
func WithLogger(logger shell.Logger) Option {
	return func(s *server) {
		s.logger = logger
	}
}

// WithContextualLogger sets the contextual logger for failed requests.
func WithContextualLogger(logger shell.ContextualLogger) Option {
	return func(s *server) {
		s.contextualLogger = logger
	}
}

// WithReadinessCheck adds a named check to /ready.
func WithReadinessCheck(name string, check ReadinessCheck) Option {
	return func(s *server) {
		s.readinessChecks[name] = check
	}
}

// WithAllowedOrigins restricts CORS to the given origins.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *server) {
		s.allowedOrigins = origins
	}
}

// WithTracing creates a server span per request under the given service name.
func WithTracing(serviceName string) Option {
	return func(s *server) {
		s.serviceName = serviceName
	}
}

// WithHeartbeatInterval sets how often an idle live query stream sends a heartbeat event.
func WithHeartbeatInterval(interval time.Duration) Option {
	return func(s *server) {
		s.heartbeatInterval = interval
	}
}

// NewRouter wires all routes.
func NewRouter(handlers Handlers, opts ...Option) *gin.Engine {
	s := &server{
		handlers:          handlers,
		readinessChecks:   make(map[string]ReadinessCheck),
		heartbeatInterval: defaultHeartbeatInterval,
	}

	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(CORS(s.allowedOrigins))

	if s.serviceName != "" {
		r.Use(otelgin.Middleware(s.serviceName))
	}

	r.Use(RequestContext())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", s.ready)

	r.POST("/vehicle", s.purchaseVehicle)
	r.PUT("/vehicle/move/:id/:lot", s.sendVehicleToLot)
	r.PUT("/vehicle/sell/:id", s.sellVehicle)
	r.GET("/vehicle/:id", s.getVehicle)
	r.GET("/vehicle/:id/updates", s.streamVehicle)

	r.POST("/lot", s.createLot)
	r.PUT("/lot/:id", s.updateLot)
	r.GET("/lot", s.listLots)
	r.GET("/lot/:id", s.getLot)
	r.GET("/lot/:id/updates", s.streamLot)

	r.POST("/purchaseorder", s.addPurchaseOrder)

	return r
}

func (s *server) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	for name, check := range s.readinessChecks {
		if err := check(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "check": name, "error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// CommandResponse is the body of a successful command.
type CommandResponse struct {
	ID      string                        `json:"id"`
	Version eventstore.SequenceNumberUint `json:"version"`
}

func (s *server) respondCommand(c *gin.Context, status int, result shell.HandlerResult, err error) {
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(status, CommandResponse{ID: result.AggregateID, Version: result.Version})
}
