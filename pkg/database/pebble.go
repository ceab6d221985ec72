package database

import (
	pebbleDB "github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/bloom"

	"github.com/iotaledger/hive.go/kvstore/pebble"
)

// NewPebbleDB creates a new pebble DB instance.
// The state of the engine is small, so the cache and memtables are kept moderate and the WAL stays enabled.
func NewPebbleDB(directory string, verbose bool) (*pebbleDB.DB, error) {
	cache := pebbleDB.NewCache(64 << 20) // 64 MB
	defer cache.Unref()

	opts := &pebbleDB.Options{
		Cache:                       cache,
		L0CompactionThreshold:       2,
		L0StopWritesThreshold:       1000,
		LBaseMaxBytes:               64 << 20, // 64 MB
		Levels:                      make([]pebbleDB.LevelOptions, 7),
		MaxConcurrentCompactions:    2,
		MaxOpenFiles:                1024,
		MemTableSize:                16 << 20, // 16 MB
		MemTableStopWritesThreshold: 4,
	}

	for i := 0; i < len(opts.Levels); i++ {
		l := &opts.Levels[i]
		l.BlockSize = 32 << 10       // 32 KB
		l.IndexBlockSize = 256 << 10 // 256 KB
		l.FilterPolicy = bloom.FilterPolicy(10)
		l.FilterType = pebbleDB.TableFilter
		if i > 0 {
			l.TargetFileSize = opts.Levels[i-1].TargetFileSize * 2
		}
		l.EnsureDefaults()
	}
	opts.Levels[6].FilterPolicy = nil

	opts.EnsureDefaults()

	if verbose {
		opts.EventListener = pebbleDB.MakeLoggingEventListener(nil)
	}

	return pebble.CreateDB(directory, opts)
}
