package app

import (
	"github.com/rkamradt/vehicleevent/vehicleevent/features/command/addpurchaseorder"
	"github.com/rkamradt/vehicleevent/vehicleevent/features/command/createlot"
	"github.com/rkamradt/vehicleevent/vehicleevent/features/command/purchasevehicle"
	"github.com/rkamradt/vehicleevent/vehicleevent/features/command/sellvehicle"
	"github.com/rkamradt/vehicleevent/vehicleevent/features/command/sendvehicletolot"
	"github.com/rkamradt/vehicleevent/vehicleevent/features/command/updatelot"
	"github.com/rkamradt/vehicleevent/vehicleevent/features/query/lotsummary"
	"github.com/rkamradt/vehicleevent/vehicleevent/features/query/vehiclesummary"
	"github.com/rkamradt/vehicleevent/vehicleevent/httpapi"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/core"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell/lotdirectory"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell/observable"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell/projectionstore"
)

type runtimes struct {
	vehicle *shell.Runtime[core.VehicleState]
	lot     *shell.Runtime[core.LotState]
	order   *shell.Runtime[core.PurchaseOrderState]
}

func (a *App) newRuntimes(log eventLog) (runtimes, error) {
	vehicle, err := shell.NewRuntime(log, core.ApplyVehicleEvent, core.VehicleState{}, runtimeOptions[core.VehicleState](a)...)
	if err != nil {
		return runtimes{}, err
	}

	lot, err := shell.NewRuntime(log, core.ApplyLotEvent, core.LotState{}, runtimeOptions[core.LotState](a)...)
	if err != nil {
		return runtimes{}, err
	}

	order, err := shell.NewRuntime(log, core.ApplyPurchaseOrderEvent, core.PurchaseOrderState{}, runtimeOptions[core.PurchaseOrderState](a)...)
	if err != nil {
		return runtimes{}, err
	}

	return runtimes{vehicle: vehicle, lot: lot, order: order}, nil
}

func runtimeOptions[S any](a *App) []shell.RuntimeOption[S] {
	options := []shell.RuntimeOption[S]{
		shell.WithPublisher[S](a.publisher),
		shell.WithRuntimeLogger[S](a.logger),
		shell.WithRuntimeContextualLogger[S](a.logger),
		shell.WithRetryOptions[S](
			shell.WithMaxAttempts(a.cfg.RetryMaxAttempts),
			shell.WithBaseDelay(a.cfg.RetryBaseDelay),
		),
	}

	if a.cfg.StateCacheEnabled {
		options = append(options, shell.WithStateCache[S](shell.NewMemoryStateCache[S]()))
	}

	return options
}

// newDirectory prefers the remote lot query service and falls back to the local lot projection.
func (a *App) newDirectory(lots projectionstore.Store[lotsummary.LotSummary]) lotdirectory.Directory {
	if a.cfg.LotQueryServiceURL == "" {
		return lotdirectory.NewProjectionDirectory(lots, lotsummary.NameColumn, lotsummary.ToLot)
	}

	return lotdirectory.NewHTTPDirectory(a.cfg.LotQueryServiceURL,
		lotdirectory.WithTimeout(a.cfg.LotLookupTimeout),
		lotdirectory.WithLogger(a.logger),
		lotdirectory.WithContextualLogger(a.logger),
	)
}

func (a *App) newHandlers(
	rt runtimes,
	directory lotdirectory.Directory,
	vehicles projectionstore.Store[vehiclesummary.VehicleSummary],
	lots projectionstore.Store[lotsummary.LotSummary],
) (httpapi.Handlers, error) {

	var (
		h   httpapi.Handlers
		err error
	)

	if h.PurchaseVehicle, err = wrapCommand[purchasevehicle.Command](a, purchasevehicle.NewCommandHandler(rt.vehicle,
		purchasevehicle.WithRetryOptions(a.commandMetrics(purchasevehicle.Command{}))),
	); err != nil {
		return httpapi.Handlers{}, err
	}

	if h.SendVehicleToLot, err = wrapCommand[sendvehicletolot.Command](a, sendvehicletolot.NewCommandHandler(rt.vehicle, directory,
		sendvehicletolot.WithRetryOptions(a.commandMetrics(sendvehicletolot.Command{}))),
	); err != nil {
		return httpapi.Handlers{}, err
	}

	if h.SellVehicle, err = wrapCommand[sellvehicle.Command](a, sellvehicle.NewCommandHandler(rt.vehicle,
		sellvehicle.WithRetryOptions(a.commandMetrics(sellvehicle.Command{}))),
	); err != nil {
		return httpapi.Handlers{}, err
	}

	if h.CreateLot, err = wrapCommand[createlot.Command](a, createlot.NewCommandHandler(rt.lot,
		createlot.WithRetryOptions(a.commandMetrics(createlot.Command{}))),
	); err != nil {
		return httpapi.Handlers{}, err
	}

	if h.UpdateLot, err = wrapCommand[updatelot.Command](a, updatelot.NewCommandHandler(rt.lot,
		updatelot.WithRetryOptions(a.commandMetrics(updatelot.Command{}))),
	); err != nil {
		return httpapi.Handlers{}, err
	}

	if h.AddPurchaseOrder, err = wrapCommand[addpurchaseorder.Command](a, addpurchaseorder.NewCommandHandler(rt.order,
		addpurchaseorder.WithRetryOptions(a.commandMetrics(addpurchaseorder.Command{}))),
	); err != nil {
		return httpapi.Handlers{}, err
	}

	if h.VehicleSummary, err = wrapQuery[vehiclesummary.Query, vehiclesummary.VehicleSummary](a,
		vehiclesummary.NewQueryHandler(vehicles),
	); err != nil {
		return httpapi.Handlers{}, err
	}

	if h.LotSummary, err = wrapQuery[lotsummary.Query, lotsummary.LotSummary](a,
		lotsummary.NewQueryHandler(lots),
	); err != nil {
		return httpapi.Handlers{}, err
	}

	if h.LotList, err = wrapQuery[lotsummary.ListQuery, []lotsummary.LotSummary](a,
		lotsummary.NewListHandler(lots),
	); err != nil {
		return httpapi.Handlers{}, err
	}

	h.VehicleUpdates = a.vehicleUpdates
	h.LotUpdates = a.lotUpdates

	return h, nil
}

func (a *App) commandMetrics(command shell.Command) shell.RetryOption {
	return shell.WithMetrics(a.metrics, command.CommandType())
}

// wrapCommand returns a nil interface, not a typed nil pointer, when wrapping fails.
func wrapCommand[C shell.Command](a *App, handler shell.CoreCommandHandler[C]) (shell.CoreCommandHandler[C], error) {
	wrapper, err := observable.NewCommandWrapper(handler,
		observable.WithCommandMetrics[C](a.metrics),
		observable.WithCommandTracing[C](a.tracing),
		observable.WithCommandLogging[C](a.logger),
		observable.WithCommandContextualLogging[C](a.logger),
	)
	if err != nil {
		return nil, err
	}

	return wrapper, nil
}

func wrapQuery[Q shell.Query, R any](a *App, handler shell.CoreQueryHandler[Q, R]) (shell.CoreQueryHandler[Q, R], error) {
	wrapper, err := observable.NewQueryWrapper(handler,
		observable.WithQueryMetrics[Q, R](a.metrics),
		observable.WithQueryTracing[Q, R](a.tracing),
		observable.WithQueryLogging[Q, R](a.logger),
		observable.WithQueryContextualLogging[Q, R](a.logger),
	)
	if err != nil {
		return nil, err
	}

	return wrapper, nil
}
