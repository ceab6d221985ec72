package tick

import (
	"strconv"
)

// Index is a tick of the logical clock.
type Index uint32

func (i Index) Int() int {
	return int(i)
}

func (i Index) String() string {
	return strconv.Itoa(i.Int())
}

// Add returns the index the given amount of ticks later, saturating at the maximum index.
func (i Index) Add(ticks uint32) Index {
	sum := uint64(i) + uint64(ticks)
	if sum > uint64(^uint32(0)) {
		return Index(^uint32(0))
	}
	return Index(sum)
}

func IndexCaller(handler interface{}, params ...interface{}) {
	handler.(func(index Index))(params[0].(Index))
}
