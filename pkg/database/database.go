package database

import (
	"github.com/dustin/go-humanize"

	"github.com/gohornet/fundgov/pkg/utils"
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/logger"
)

type Engine string

const (
	EngineUnknown Engine = "unknown"
	EnginePebble  Engine = "pebble"
	EngineMapDB   Engine = "mapdb"
)

// Database holds the underlying KVStore and the engine it was opened with.
type Database struct {
	*utils.WrappedLogger

	path   string
	engine Engine
	store  kvstore.KVStore
}

// Open opens the store at path with the given engine.
func Open(log *logger.Logger, path string, engine Engine) (*Database, error) {
	store, err := StoreWithDefaultSettings(path, engine)
	if err != nil {
		return nil, err
	}

	db := &Database{
		WrappedLogger: utils.NewWrappedLogger(log),
		path:          path,
		engine:        engine,
		store:         store,
	}
	db.LogInfof("opened %s database at %s (%s)", engine, path, humanize.Bytes(uint64(db.Size())))
	return db, nil
}

// KVStore returns the underlying KVStore.
func (db *Database) KVStore() kvstore.KVStore {
	return db.store
}

// Engine returns the engine of the database.
func (db *Database) Engine() Engine {
	return db.engine
}

// Size returns the size of the database files in bytes. In-memory databases have no size.
func (db *Database) Size() int64 {
	if db.engine == EngineMapDB {
		return 0
	}
	size, err := utils.FolderSize(db.path)
	if err != nil {
		db.LogWarnf("unable to determine database size: %s", err)
		return 0
	}
	return size
}

// Close flushes and closes the underlying store.
func (db *Database) Close() error {
	if err := db.store.Flush(); err != nil {
		return err
	}
	return db.store.Close()
}
