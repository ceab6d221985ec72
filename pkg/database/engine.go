package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/gohornet/fundgov/pkg/utils"
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/kvstore/mapdb"
	"github.com/iotaledger/hive.go/kvstore/pebble"
)

const (
	dbInfoFileName = "dbinfo"
)

var (
	ErrUnknownEngine  = errors.New("unknown database engine")
	ErrEngineMismatch = errors.New("database engine does not match the configuration")
)

type databaseInfo struct {
	Engine string `toml:"databaseEngine"`
}

// DatabaseEngine parses a string and returns an engine.
func DatabaseEngine(engineStr string) (Engine, error) {
	engine := Engine(strings.ToLower(engineStr))

	switch engine {
	case EnginePebble, EngineMapDB:
		return engine, nil
	default:
		return EngineUnknown, errors.WithMessagef(ErrUnknownEngine, "%q, supported engines: pebble/mapdb", engineStr)
	}
}

// CheckDatabaseEngine makes sure the files in dbPath were written by the given engine.
// A new database records its engine in a "database info file", an existing one is compared against it.
func CheckDatabaseEngine(dbPath string, dbEngine Engine) (Engine, error) {
	if dbEngine == EngineMapDB {
		// in-memory, nothing on disk to check
		return EngineMapDB, nil
	}

	dbInfoFilePath := filepath.Join(dbPath, dbInfoFileName)

	exists, err := utils.PathExists(dbInfoFilePath)
	if err != nil {
		return EngineUnknown, fmt.Errorf("unable to check database info file (%s): %w", dbInfoFilePath, err)
	}

	if !exists {
		dbExists, err := DatabaseExists(dbPath)
		if err != nil {
			return EngineUnknown, err
		}
		if dbExists {
			return EngineUnknown, fmt.Errorf("database info file not found in non-empty database folder (%s)", dbPath)
		}

		if err := storeDatabaseInfoToFile(dbInfoFilePath, dbEngine); err != nil {
			return EngineUnknown, err
		}
		return dbEngine, nil
	}

	storedEngine, err := LoadDatabaseEngineFromFile(dbInfoFilePath)
	if err != nil {
		return EngineUnknown, err
	}
	if storedEngine != dbEngine {
		return EngineUnknown, errors.WithMessagef(ErrEngineMismatch, "'%s' != '%s'", storedEngine, dbEngine)
	}

	return storedEngine, nil
}

// LoadDatabaseEngineFromFile returns the engine from the "database info file".
func LoadDatabaseEngineFromFile(path string) (Engine, error) {
	var info databaseInfo
	if err := utils.ReadTOMLFromFile(path, &info); err != nil {
		return EngineUnknown, fmt.Errorf("unable to read database info file: %w", err)
	}
	return DatabaseEngine(info.Engine)
}

func storeDatabaseInfoToFile(filePath string, engine Engine) error {
	dirPath := filepath.Dir(filePath)
	if err := os.MkdirAll(dirPath, 0700); err != nil {
		return fmt.Errorf("could not create database dir '%s': %w", dirPath, err)
	}

	return utils.WriteTOMLToFile(filePath, &databaseInfo{Engine: string(engine)}, 0660, "# auto-generated", "# !!! do not modify this file !!!")
}

// StoreWithDefaultSettings returns a kvstore of the given engine at path after checking the "database info file".
func StoreWithDefaultSettings(path string, dbEngine Engine) (kvstore.KVStore, error) {
	targetEngine, err := CheckDatabaseEngine(path, dbEngine)
	if err != nil {
		return nil, err
	}

	switch targetEngine {
	case EnginePebble:
		db, err := NewPebbleDB(path, false)
		if err != nil {
			return nil, err
		}
		return pebble.New(db), nil

	case EngineMapDB:
		return mapdb.NewMapDB(), nil

	default:
		return nil, errors.WithMessagef(ErrUnknownEngine, "%q", targetEngine)
	}
}
