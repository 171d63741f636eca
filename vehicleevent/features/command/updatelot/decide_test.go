package updatelot_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkamradt/vehicleevent/vehicleevent/features/command/updatelot"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/core"
)

func Test_Decide(t *testing.T) {
	now := time.Now()
	existing := core.Fold(core.ApplyLotEvent, core.LotState{}, core.DomainEvents{
		core.BuildLotCreated("lot-a", "North", "Dana", now.Add(-time.Hour)),
	})

	testCases := []struct {
		name           string
		state          core.LotState
		command        updatelot.Command
		wantErr        error
		wantIdempotent bool
	}{
		{
			name:    "rename",
			state:   existing,
			command: updatelot.BuildCommand("lot-a", "North Annex", "Dana", now),
		},
		{
			name:    "new manager",
			state:   existing,
			command: updatelot.BuildCommand("lot-a", "North", "Kim", now),
		},
		{
			name:           "unchanged",
			state:          existing,
			command:        updatelot.BuildCommand("lot-a", "North", "Dana", now),
			wantIdempotent: true,
		},
		{
			name:    "unknown lot",
			state:   core.LotState{},
			command: updatelot.BuildCommand("lot-x", "North", "Dana", now),
			wantErr: core.ErrNotFound,
		},
		{
			name:    "empty name",
			state:   existing,
			command: updatelot.BuildCommand("lot-a", "", "Dana", now),
			wantErr: core.ErrValidation,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// act
			result := updatelot.Decide(tc.state, tc.command)

			// assert
			switch {
			case tc.wantErr != nil:
				assert.ErrorIs(t, result.HasError(), tc.wantErr)
				assert.False(t, result.HasEventsToAppend())
			case tc.wantIdempotent:
				assert.True(t, result.IsIdempotent())
				assert.False(t, result.HasEventsToAppend())
			default:
				require.True(t, result.HasEventsToAppend())
				event, ok := result.Events[0].(core.LotUpdated)
				require.True(t, ok)
				assert.Equal(t, tc.command.Name, event.Name)
				assert.Equal(t, tc.command.Manager, event.Manager)
			}
		})
	}
}
