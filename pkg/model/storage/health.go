package storage

import (
	"github.com/pkg/errors"

	"github.com/gohornet/fundgov/pkg/common"
	"github.com/iotaledger/hive.go/kvstore"
)

var (
	keyCorrupted = []byte("dbCorrupted")
	keyVersion   = []byte("dbVersion")
)

// StoreHealthTracker keeps the shutdown status and the scheme version of a store.
type StoreHealthTracker struct {
	store   kvstore.KVStore
	version byte
}

// HealthRealm returns the realm used to track the health of the data stored under storePrefix.
func HealthRealm(storePrefix byte) kvstore.Realm {
	return kvstore.Realm{common.StorePrefixHealth, storePrefix}
}

// NewStoreHealthTracker creates a tracker in the given realm of the store.
// The version is only written if the realm does not carry one yet.
func NewStoreHealthTracker(store kvstore.KVStore, realm kvstore.Realm, version byte) (*StoreHealthTracker, error) {
	s := &StoreHealthTracker{
		store:   store.WithRealm(realm),
		version: version,
	}
	if err := s.setDatabaseVersion(version); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *StoreHealthTracker) MarkCorrupted() error {

	if err := s.store.Set(keyCorrupted, []byte{}); err != nil {
		return errors.Wrap(NewDatabaseError(err), "failed to set database health status")
	}
	return s.store.Flush()
}

func (s *StoreHealthTracker) MarkHealthy() error {

	if err := s.store.Delete(keyCorrupted); err != nil {
		return errors.Wrap(NewDatabaseError(err), "failed to set database health status")
	}

	return nil
}

func (s *StoreHealthTracker) IsCorrupted() (bool, error) {

	contains, err := s.store.Has(keyCorrupted)
	if err != nil {
		return true, errors.Wrap(NewDatabaseError(err), "failed to read database health status")
	}
	return contains, nil
}

// DatabaseVersion returns the database version.
func (s *StoreHealthTracker) DatabaseVersion() (int, error) {

	value, err := s.store.Get(keyVersion)
	if err != nil {
		return 0, errors.Wrap(NewDatabaseError(err), "failed to read database version")
	}

	if len(value) < 1 {
		return 0, errors.New("failed to read database version: empty value")
	}

	return int(value[0]), nil
}

func (s *StoreHealthTracker) setDatabaseVersion(version byte) error {

	_, err := s.store.Get(keyVersion)
	if errors.Is(err, kvstore.ErrKeyNotFound) {
		// only create the entry if it doesn't exist already (fresh database)
		if err := s.store.Set(keyVersion, []byte{version}); err != nil {
			return errors.Wrap(NewDatabaseError(err), "failed to set database version")
		}
		return nil
	}
	if err != nil {
		return errors.Wrap(NewDatabaseError(err), "failed to read database version")
	}
	return nil
}

func (s *StoreHealthTracker) CheckCorrectDatabaseVersion() (bool, error) {

	value, err := s.store.Get(keyVersion)
	if err != nil {
		return false, errors.Wrap(NewDatabaseError(err), "failed to read database version")
	}

	if len(value) > 0 {
		return value[0] == s.version, nil
	}

	return false, nil
}

// CheckHealthyAndMarkCorrupted is called on startup by every manager owning a realm of the store.
// It fails if the store was not shut down properly or carries another scheme version,
// and marks the store as corrupted until MarkHealthy is called on shutdown.
func (s *StoreHealthTracker) CheckHealthyAndMarkCorrupted(errCorrupted error) error {

	corrupted, err := s.IsCorrupted()
	if err != nil {
		return err
	}
	if corrupted {
		return errCorrupted
	}

	correctVersion, err := s.CheckCorrectDatabaseVersion()
	if err != nil {
		return err
	}
	if !correctVersion {
		return errors.New("database version mismatch. The database scheme was updated. Please delete the database folder.")
	}

	return s.MarkCorrupted()
}
