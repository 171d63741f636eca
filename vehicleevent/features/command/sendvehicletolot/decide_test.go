package sendvehicletolot_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkamradt/vehicleevent/vehicleevent/features/command/sendvehicletolot"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/core"
)

func givenPurchasedVehicle() core.VehicleState {
	return core.Fold(core.ApplyVehicleEvent, core.VehicleState{}, core.DomainEvents{
		core.BuildVehiclePurchased("v1", core.MustParseAmount("25000.00"), "sedan", time.Now().Add(-time.Hour)),
	})
}

func Test_Decide_Success(t *testing.T) {
	// arrange
	command := sendvehicletolot.BuildCommand("v1", "b", time.Now())

	// act
	result := sendvehicletolot.Decide(givenPurchasedVehicle(), command, "lot-b")

	// assert
	require.True(t, result.HasEventsToAppend())

	event, ok := result.Events[0].(core.VehicleSentToLot)
	require.True(t, ok)
	assert.Equal(t, "v1", event.VehicleID)
	assert.Equal(t, "b", event.Lot)
	assert.Equal(t, "lot-b", event.LotID)
}

func Test_Decide_Error_VehicleNotFound(t *testing.T) {
	result := sendvehicletolot.Decide(core.VehicleState{}, sendvehicletolot.BuildCommand("v1", "a", time.Now()), "lot-a")

	assert.ErrorIs(t, result.HasError(), core.ErrNotFound)
	assert.False(t, result.HasEventsToAppend())
}

func Test_Decide_Error_InvalidLotCode(t *testing.T) {
	result := sendvehicletolot.Decide(givenPurchasedVehicle(), sendvehicletolot.BuildCommand("v1", "d", time.Now()), "lot-d")

	assert.ErrorIs(t, result.HasError(), core.ErrValidation)
	assert.ErrorContains(t, result.HasError(), "lot must be a, b, or c")
}
