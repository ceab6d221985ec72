package deposits

import (
	"github.com/pkg/errors"

	"github.com/gohornet/fundgov/pkg/common"
	"github.com/gohornet/fundgov/pkg/model/ledger"
	"github.com/gohornet/fundgov/pkg/model/storage"
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/logger"
	"github.com/iotaledger/hive.go/marshalutil"
	"github.com/iotaledger/hive.go/syncutils"
)

const (
	DBVersion byte = 1

	// Holds the deposit records
	DepositsStoreKeyPrefixDeposits byte = 0
	// Holds the last used deposit ID
	DepositsStoreKeyPrefixDepositCount byte = 1
)

var (
	ErrDepositsCorruptedStorage = errors.New("the deposits database was not shutdown properly")
	ErrDepositNotFound          = errors.New("deposit does not exist")
	ErrUnknownStorageItem       = errors.New("no deposit configured for storage item")
)

// DepositID identifies a taken deposit.
type DepositID uint64

// StorageItem is the kind of record a deposit is taken for.
type StorageItem byte

const (
	StorageItemProject StorageItem = iota
	StorageItemDispute
)

// Reserver reserves and releases funds of an account.
type Reserver interface {
	Reserve(currency ledger.CurrencyID, who ledger.AccountID, amount uint64) error
	Unreserve(currency ledger.CurrencyID, who ledger.AccountID, amount uint64) error
}

// Deposit is a reserved amount backing a stored record.
type Deposit struct {
	ID       DepositID
	Who      ledger.AccountID
	Currency ledger.CurrencyID
	Amount   uint64
}

// Manager takes and returns storage deposits.
type Manager struct {
	syncutils.Mutex

	store       kvstore.KVStore
	storeHealth *storage.StoreHealthTracker
	reserver    Reserver
	amounts     map[StorageItem]uint64

	log *logger.Logger
}

// NewManager creates a deposits manager. amounts holds the deposit taken per storage item.
func NewManager(store kvstore.KVStore, reserver Reserver, amounts map[StorageItem]uint64, log *logger.Logger) (*Manager, error) {

	healthTracker, err := storage.NewStoreHealthTracker(store, storage.HealthRealm(common.StorePrefixDeposits), DBVersion)
	if err != nil {
		return nil, err
	}
	if err := healthTracker.CheckHealthyAndMarkCorrupted(ErrDepositsCorruptedStorage); err != nil {
		return nil, err
	}

	return &Manager{
		store:       store.WithRealm([]byte{common.StorePrefixDeposits}),
		storeHealth: healthTracker,
		reserver:    reserver,
		amounts:     amounts,
		log:         log,
	}, nil
}

// Shutdown marks the deposits realm as healthy.
func (m *Manager) Shutdown() error {
	if err := m.storeHealth.MarkHealthy(); err != nil {
		return err
	}
	return m.store.Flush()
}

func depositKey(id DepositID) []byte {
	ms := marshalutil.New(9)
	ms.WriteByte(DepositsStoreKeyPrefixDeposits) // 1 byte
	ms.WriteUint64(uint64(id))                   // 8 bytes
	return ms.Bytes()
}

func depositCountKey() []byte {
	return []byte{DepositsStoreKeyPrefixDepositCount}
}

func (d *Deposit) valueBytes() []byte {
	ms := marshalutil.New(12 + len(d.Who))
	ms.WriteUint32(uint32(d.Currency))
	ms.WriteUint64(d.Amount)
	ms.WriteBytes([]byte(d.Who))
	return ms.Bytes()
}

func depositFromBytes(id DepositID, value []byte) (*Deposit, error) {
	ms := marshalutil.New(value)
	currency, err := ms.ReadUint32()
	if err != nil {
		return nil, err
	}
	amount, err := ms.ReadUint64()
	if err != nil {
		return nil, err
	}
	who, err := ms.ReadBytes(len(value) - 12)
	if err != nil {
		return nil, err
	}
	return &Deposit{
		ID:       id,
		Who:      ledger.AccountID(who),
		Currency: ledger.CurrencyID(currency),
		Amount:   amount,
	}, nil
}

// TakeDeposit reserves the deposit configured for the item from the account.
func (m *Manager) TakeDeposit(who ledger.AccountID, item StorageItem, currency ledger.CurrencyID) (DepositID, error) {
	m.Lock()
	defer m.Unlock()

	amount, has := m.amounts[item]
	if !has {
		return 0, errors.WithMessagef(ErrUnknownStorageItem, "item %d", item)
	}

	var lastID uint64
	value, err := m.store.Get(depositCountKey())
	switch {
	case err == nil:
		if lastID, err = marshalutil.New(value).ReadUint64(); err != nil {
			return 0, err
		}
	case !errors.Is(err, kvstore.ErrKeyNotFound):
		return 0, storage.NewDatabaseError(err)
	}

	deposit := &Deposit{
		ID:       DepositID(lastID + 1),
		Who:      who,
		Currency: currency,
		Amount:   amount,
	}

	if err := m.reserver.Reserve(currency, who, amount); err != nil {
		return 0, errors.Wrap(err, "unable to reserve storage deposit")
	}

	if err := m.storeDeposit(deposit); err != nil {
		// give the funds back, the record was never written
		if unreserveErr := m.reserver.Unreserve(currency, who, amount); unreserveErr != nil && m.log != nil {
			m.log.Errorf("%s: failed to release deposit of %d from %s: %s", common.ErrInvariantViolated, amount, who, unreserveErr)
		}
		return 0, err
	}

	if m.log != nil {
		m.log.Debugf("took deposit %d of %d from %s", deposit.ID, amount, who)
	}
	return deposit.ID, nil
}

func (m *Manager) storeDeposit(deposit *Deposit) error {
	mutations := m.store.Batched()
	if err := mutations.Set(depositKey(deposit.ID), deposit.valueBytes()); err != nil {
		mutations.Cancel()
		return storage.NewDatabaseError(err)
	}
	if err := mutations.Set(depositCountKey(), marshalutil.New(8).WriteUint64(uint64(deposit.ID)).Bytes()); err != nil {
		mutations.Cancel()
		return storage.NewDatabaseError(err)
	}
	if err := mutations.Commit(); err != nil {
		return storage.NewDatabaseError(err)
	}
	return nil
}

// ReturnDeposit releases a taken deposit back to its owner.
func (m *Manager) ReturnDeposit(id DepositID) error {
	m.Lock()
	defer m.Unlock()

	deposit, err := m.deposit(id)
	if err != nil {
		return err
	}

	if err := m.reserver.Unreserve(deposit.Currency, deposit.Who, deposit.Amount); err != nil {
		return errors.Wrap(err, "unable to return storage deposit")
	}

	if err := m.store.Delete(depositKey(id)); err != nil {
		return storage.NewDatabaseError(err)
	}

	if m.log != nil {
		m.log.Debugf("returned deposit %d of %d to %s", deposit.ID, deposit.Amount, deposit.Who)
	}
	return nil
}

// Deposit returns a taken deposit.
func (m *Manager) Deposit(id DepositID) (*Deposit, error) {
	m.Lock()
	defer m.Unlock()
	return m.deposit(id)
}

func (m *Manager) deposit(id DepositID) (*Deposit, error) {
	value, err := m.store.Get(depositKey(id))
	if err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return nil, ErrDepositNotFound
		}
		return nil, storage.NewDatabaseError(err)
	}
	return depositFromBytes(id, value)
}
