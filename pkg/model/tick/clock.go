package tick

import (
	"github.com/pkg/errors"

	"github.com/iotaledger/hive.go/events"
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/marshalutil"
	"github.com/iotaledger/hive.go/syncutils"
)

var (
	keyCurrentIndex = []byte("currentIndex")
)

// ClockEvents are the events issued by the Clock.
type ClockEvents struct {
	// Tick is triggered with the new index after the clock advanced.
	Tick *events.Event
}

// Clock is the persisted logical clock. Rounds and disputes expire at its ticks.
type Clock struct {
	syncutils.RWMutex

	store   kvstore.KVStore
	current Index

	Events *ClockEvents
}

// NewClock loads the current index from the store, or starts at zero on a fresh store.
func NewClock(store kvstore.KVStore) (*Clock, error) {
	c := &Clock{
		store: store,
		Events: &ClockEvents{
			Tick: events.NewEvent(IndexCaller),
		},
	}

	value, err := store.Get(keyCurrentIndex)
	if err != nil {
		if !errors.Is(err, kvstore.ErrKeyNotFound) {
			return nil, errors.Wrap(err, "failed to load current tick index")
		}
		return c, nil
	}

	index, err := marshalutil.New(value).ReadUint32()
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse current tick index")
	}
	c.current = Index(index)

	return c, nil
}

// CurrentIndex returns the current tick.
func (c *Clock) CurrentIndex() Index {
	c.RLock()
	defer c.RUnlock()
	return c.current
}

// Advance moves the clock one tick forward, persists it and triggers the Tick event.
func (c *Clock) Advance() (Index, error) {
	c.Lock()
	next := c.current.Add(1)
	if err := c.store.Set(keyCurrentIndex, marshalutil.New(4).WriteUint32(uint32(next)).Bytes()); err != nil {
		c.Unlock()
		return c.current, errors.Wrap(err, "failed to store current tick index")
	}
	c.current = next
	c.Unlock()

	c.Events.Tick.Trigger(next)
	return next, nil
}
