package database_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gohornet/fundgov/pkg/database"
)

func TestDatabaseEngine(t *testing.T) {
	engine, err := database.DatabaseEngine("Pebble")
	require.NoError(t, err)
	require.Equal(t, database.EnginePebble, engine)

	_, err = database.DatabaseEngine("rocksdb")
	require.ErrorIs(t, err, database.ErrUnknownEngine)
}

func TestCheckDatabaseEngine(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "db")

	engine, err := database.CheckDatabaseEngine(dbPath, database.EnginePebble)
	require.NoError(t, err)
	require.Equal(t, database.EnginePebble, engine)

	stored, err := database.LoadDatabaseEngineFromFile(filepath.Join(dbPath, "dbinfo"))
	require.NoError(t, err)
	require.Equal(t, database.EnginePebble, stored)

	// a second start finds the info file
	engine, err = database.CheckDatabaseEngine(dbPath, database.EnginePebble)
	require.NoError(t, err)
	require.Equal(t, database.EnginePebble, engine)

	require.NoError(t, os.WriteFile(filepath.Join(dbPath, "dbinfo"), []byte("databaseEngine = 'mapdb'\n"), 0600))
	_, err = database.CheckDatabaseEngine(dbPath, database.EnginePebble)
	require.ErrorIs(t, err, database.ErrEngineMismatch)
}

func TestCheckDatabaseEngineForeignFolder(t *testing.T) {
	dbPath := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dbPath, "000001.log"), []byte{1}, 0600))

	_, err := database.CheckDatabaseEngine(dbPath, database.EnginePebble)
	require.Error(t, err)
}

func TestOpenMapDB(t *testing.T) {
	db, err := database.Open(nil, filepath.Join(t.TempDir(), "unused"), database.EngineMapDB)
	require.NoError(t, err)
	require.Equal(t, database.EngineMapDB, db.Engine())
	require.Zero(t, db.Size())

	require.NoError(t, db.KVStore().Set([]byte("key"), []byte("value")))
	value, err := db.KVStore().Get([]byte("key"))
	require.NoError(t, err)
	require.Equal(t, []byte("value"), value)

	require.NoError(t, db.Close())
}

func TestOpenPebble(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "pebble")

	db, err := database.Open(nil, dbPath, database.EnginePebble)
	require.NoError(t, err)
	require.NoError(t, db.KVStore().Set([]byte("key"), []byte("value")))
	require.NoError(t, db.Close())

	db, err = database.Open(nil, dbPath, database.EnginePebble)
	require.NoError(t, err)
	defer func() { require.NoError(t, db.Close()) }()

	value, err := db.KVStore().Get([]byte("key"))
	require.NoError(t, err)
	require.Equal(t, []byte("value"), value)
	require.Positive(t, db.Size())
}
