// Package vehiclesummary maintains the VehicleSummary read model and answers queries against it.
//
// The projection folds VehiclePurchased, VehicleSentToLot and VehicleSold into one summary per
// vehicle. Every successful mutation is emitted to live subscribers of that vehicle.
package vehiclesummary
