package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vtlabs/tallysync/modules/tally/domain/entities/syncrun"
)

func TestSyncStatusStore_TracksLifecyclePerTenant(t *testing.T) {
	store := NewSyncStatusStore()

	require.False(t, store.Status("acme/main").InFlight)
	require.Nil(t, store.Status("acme/main").Last)

	store.Begin("acme/main")
	require.True(t, store.Status("acme/main").InFlight)
	require.False(t, store.Status("globex/main").InFlight)

	result := &syncrun.Result{CompanyID: "acme", DivisionID: "main", RecordsProcessed: 7}
	store.Finish("acme/main", result)

	status := store.Status("acme/main")
	require.False(t, status.InFlight)
	require.Equal(t, 7, status.Last.RecordsProcessed)

	// a later failed bookkeeping call must not erase the last result
	store.Begin("acme/main")
	store.Finish("acme/main", nil)
	require.Equal(t, 7, store.Status("acme/main").Last.RecordsProcessed)
}
