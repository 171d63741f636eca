package lotdirectory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkamradt/vehicleevent/vehicleevent/shared/core"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell/lotdirectory"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell/projectionstore"
)

type lotRecord struct {
	ID   string
	Name string
}

func givenProjectionDirectory(t *testing.T, records ...lotRecord) *lotdirectory.ProjectionDirectory[lotRecord] {
	t.Helper()

	store := projectionstore.NewMemoryStore(map[string]projectionstore.Column[lotRecord]{
		"name": func(r lotRecord) string { return r.Name },
	})

	for _, r := range records {
		_, err := store.Insert(context.Background(), r.ID, r)
		require.NoError(t, err)
	}

	return lotdirectory.NewProjectionDirectory[lotRecord](store, "name", func(r lotRecord) lotdirectory.Lot {
		return lotdirectory.Lot{ID: r.ID, Name: r.Name}
	})
}

func Test_ProjectionDirectory_FindByName(t *testing.T) {
	// arrange
	directory := givenProjectionDirectory(t,
		lotRecord{ID: "lot-2", Name: "b"},
		lotRecord{ID: "lot-1", Name: "a"},
		lotRecord{ID: "lot-3", Name: "ab"},
	)

	// act
	found, foundErr := directory.FindByName(context.Background(), "a")
	_, missingErr := directory.FindByName(context.Background(), "c")

	// assert
	require.NoError(t, foundErr)
	assert.Equal(t, lotdirectory.Lot{ID: "lot-1", Name: "a"}, found)
	assert.ErrorIs(t, missingErr, core.ErrNotFound)
}

func Test_ProjectionDirectory_FindByName_StoreFailureIsUpstreamUnavailable(t *testing.T) {
	// arrange
	directory := givenProjectionDirectory(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// act
	_, err := directory.FindByName(ctx, "a")

	// assert
	assert.ErrorIs(t, err, core.ErrUpstreamUnavailable)
}
