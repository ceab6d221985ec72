package tick_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gohornet/fundgov/pkg/model/tick"
	"github.com/iotaledger/hive.go/events"
	"github.com/iotaledger/hive.go/kvstore/mapdb"
)

func TestClockAdvance(t *testing.T) {
	store := mapdb.NewMapDB()

	clock, err := tick.NewClock(store)
	require.NoError(t, err)
	require.Equal(t, tick.Index(0), clock.CurrentIndex())

	var ticked []tick.Index
	clock.Events.Tick.Attach(events.NewClosure(func(index tick.Index) {
		ticked = append(ticked, index)
	}))

	for i := 0; i < 3; i++ {
		_, err := clock.Advance()
		require.NoError(t, err)
	}
	require.Equal(t, []tick.Index{1, 2, 3}, ticked)

	// the index survives a restart
	reloaded, err := tick.NewClock(store)
	require.NoError(t, err)
	require.Equal(t, tick.Index(3), reloaded.CurrentIndex())
}

func TestIndexAddSaturates(t *testing.T) {
	require.Equal(t, tick.Index(15), tick.Index(5).Add(10))
	require.Equal(t, tick.Index(^uint32(0)), tick.Index(^uint32(0)-1).Add(10))
}
