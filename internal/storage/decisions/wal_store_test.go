package decisions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/perpagent/internal/domain"
)

func TestWALStore_SaveAndEventsAfter(t *testing.T) {
	dir := t.TempDir()
	store, err := NewWALStore(dir)
	require.NoError(t, err)

	ts := time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)
	first, err := store.Save(domain.CycleEvent{Timestamp: ts, Cycle: 1, Symbol: "BTC", Action: "OPEN_LONG", Success: true})
	require.NoError(t, err)
	second, err := store.Save(domain.CycleEvent{Timestamp: ts, Cycle: 2, Action: "DO_NOTHING", Success: true})
	require.NoError(t, err)
	assert.Equal(t, first+1, second)
	assert.Equal(t, second, store.CurrentIndex())

	_, err = store.Save(domain.CycleEvent{Cycle: 3})
	assert.Error(t, err)

	all, err := store.EventsAfter(0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "BTC", all[0].Event.Symbol)
	assert.Equal(t, uint64(2), all[1].Event.Cycle)

	none, err := store.EventsAfter(second)
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, store.Close())

	reopened, err := NewWALStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	tail, err := reopened.EventsAfter(first)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, "DO_NOTHING", tail[0].Event.Action)
	assert.True(t, ts.Equal(tail[0].Event.Timestamp))
}
