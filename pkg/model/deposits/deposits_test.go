package deposits_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/gohornet/fundgov/pkg/model/deposits"
	"github.com/gohornet/fundgov/pkg/model/ledger"
	"github.com/gohornet/fundgov/pkg/model/storage"
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/kvstore/mapdb"
)

var errDiskFull = errors.New("disk full")

// commitFailingStore fails all batch commits while failing is set.
type commitFailingStore struct {
	kvstore.KVStore
	failing *atomic.Bool
}

func (s *commitFailingStore) WithRealm(realm kvstore.Realm) kvstore.KVStore {
	return &commitFailingStore{KVStore: s.KVStore.WithRealm(realm), failing: s.failing}
}

func (s *commitFailingStore) Batched() kvstore.BatchedMutations {
	return &commitFailingBatch{BatchedMutations: s.KVStore.Batched(), failing: s.failing}
}

type commitFailingBatch struct {
	kvstore.BatchedMutations
	failing *atomic.Bool
}

func (b *commitFailingBatch) Commit() error {
	if b.failing.Load() {
		b.BatchedMutations.Cancel()
		return errDiskFull
	}
	return b.BatchedMutations.Commit()
}

func TestTakeAndReturnDeposit(t *testing.T) {
	store := mapdb.NewMapDB()

	l, err := ledger.NewLedger(store, nil)
	require.NoError(t, err)
	require.NoError(t, l.Deposit(ledger.CurrencyNative, "alice", 1000))

	manager, err := deposits.NewManager(store, l, map[deposits.StorageItem]uint64{deposits.StorageItemProject: 100}, nil)
	require.NoError(t, err)

	first, err := manager.TakeDeposit("alice", deposits.StorageItemProject, ledger.CurrencyNative)
	require.NoError(t, err)
	second, err := manager.TakeDeposit("alice", deposits.StorageItemProject, ledger.CurrencyNative)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	balance, err := l.Balance(ledger.CurrencyNative, "alice")
	require.NoError(t, err)
	require.Equal(t, uint64(800), balance.Free)
	require.Equal(t, uint64(200), balance.Reserved)

	deposit, err := manager.Deposit(first)
	require.NoError(t, err)
	require.Equal(t, ledger.AccountID("alice"), deposit.Who)
	require.Equal(t, uint64(100), deposit.Amount)

	require.NoError(t, manager.ReturnDeposit(first))
	require.ErrorIs(t, manager.ReturnDeposit(first), deposits.ErrDepositNotFound)

	balance, err = l.Balance(ledger.CurrencyNative, "alice")
	require.NoError(t, err)
	require.Equal(t, uint64(900), balance.Free)
	require.Equal(t, uint64(100), balance.Reserved)
}

func TestTakeDepositFailures(t *testing.T) {
	store := mapdb.NewMapDB()

	l, err := ledger.NewLedger(store, nil)
	require.NoError(t, err)

	manager, err := deposits.NewManager(store, l, map[deposits.StorageItem]uint64{deposits.StorageItemProject: 100}, nil)
	require.NoError(t, err)

	_, err = manager.TakeDeposit("bob", deposits.StorageItemProject, ledger.CurrencyNative)
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	_, err = manager.TakeDeposit("bob", deposits.StorageItemDispute, ledger.CurrencyNative)
	require.ErrorIs(t, err, deposits.ErrUnknownStorageItem)
}

func TestFailedWriteReleasesDeposit(t *testing.T) {
	store := mapdb.NewMapDB()
	failing := atomic.NewBool(false)

	l, err := ledger.NewLedger(store, nil)
	require.NoError(t, err)
	require.NoError(t, l.Deposit(ledger.CurrencyNative, "alice", 1000))

	manager, err := deposits.NewManager(&commitFailingStore{KVStore: store, failing: failing}, l, map[deposits.StorageItem]uint64{deposits.StorageItemProject: 100}, nil)
	require.NoError(t, err)

	failing.Store(true)
	_, err = manager.TakeDeposit("alice", deposits.StorageItemProject, ledger.CurrencyNative)
	require.ErrorIs(t, err, errDiskFull)
	var dbErr *storage.ErrDatabaseError
	require.True(t, errors.As(err, &dbErr))

	// the reserved funds were given back
	balance, err := l.Balance(ledger.CurrencyNative, "alice")
	require.NoError(t, err)
	require.Equal(t, &ledger.Balance{Free: 1000}, balance)

	failing.Store(false)
	id, err := manager.TakeDeposit("alice", deposits.StorageItemProject, ledger.CurrencyNative)
	require.NoError(t, err)
	require.NoError(t, manager.ReturnDeposit(id))
}
