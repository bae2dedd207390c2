package balancesnapshots

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWALStore_SaveAndReplay(t *testing.T) {
	dir := t.TempDir()
	store, err := NewWALStore(dir)
	require.NoError(t, err)

	ts := time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)
	for i, v := range []float64{1000, 1010, 995.5} {
		require.NoError(t, store.Save(Snapshot{Timestamp: ts, Cycle: uint64(i + 1), AccountValue: v}))
	}

	assert.Error(t, store.Save(Snapshot{Cycle: 9}))

	records, err := store.SnapshotsAfter(1)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, uint64(2), records[0].Index)
	assert.Equal(t, 1010.0, records[0].Snapshot.AccountValue)

	require.NoError(t, store.Close())

	reopened, err := NewWALStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	values, err := reopened.AccountValues()
	require.NoError(t, err)
	assert.Equal(t, []float64{1000, 1010, 995.5}, values)
}
