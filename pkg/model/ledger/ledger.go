package ledger

import (
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/gohornet/fundgov/pkg/common"
	"github.com/gohornet/fundgov/pkg/model/storage"
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/logger"
	"github.com/iotaledger/hive.go/marshalutil"
	"github.com/iotaledger/hive.go/syncutils"
)

const (
	DBVersion byte = 1
)

var (
	ErrLedgerCorruptedStorage = errors.New("the ledger database was not shutdown properly")
	ErrInsufficientBalance    = errors.New("insufficient free balance")
	ErrInsufficientReserved   = errors.New("insufficient reserved balance")
	ErrBalanceOverflow        = errors.New("balance overflow")
)

// Ledger is a multi-asset ledger of free and reserved balances.
type Ledger struct {
	syncutils.RWMutex

	store       kvstore.KVStore
	storeHealth *storage.StoreHealthTracker

	log *logger.Logger
}

// NewLedger creates a new Ledger on the ledger realm of the given store.
func NewLedger(store kvstore.KVStore, log *logger.Logger) (*Ledger, error) {

	healthTracker, err := storage.NewStoreHealthTracker(store, storage.HealthRealm(common.StorePrefixLedger), DBVersion)
	if err != nil {
		return nil, err
	}

	l := &Ledger{
		store:       store.WithRealm([]byte{common.StorePrefixLedger}),
		storeHealth: healthTracker,
		log:         log,
	}

	if err := healthTracker.CheckHealthyAndMarkCorrupted(ErrLedgerCorruptedStorage); err != nil {
		return nil, err
	}

	return l, nil
}

// Shutdown marks the ledger realm as healthy.
func (l *Ledger) Shutdown() error {
	if err := l.storeHealth.MarkHealthy(); err != nil {
		return err
	}
	return l.store.Flush()
}

func balanceKey(prefix byte, currency CurrencyID, who AccountID) []byte {
	m := marshalutil.New(5 + len(who))
	m.WriteByte(prefix)             // 1 byte
	m.WriteUint32(uint32(currency)) // 4 bytes
	m.WriteBytes([]byte(who))       // n bytes
	return m.Bytes()
}

func (l *Ledger) readBalance(key []byte) (uint64, error) {
	value, err := l.store.Get(key)
	if err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, storage.NewDatabaseError(err)
	}
	return marshalutil.New(value).ReadUint64()
}

// pendingBalances caches balances read during one operation and writes them in one batch.
type pendingBalances struct {
	ledger  *Ledger
	amounts map[string]uint64
}

func (l *Ledger) newPendingBalances() *pendingBalances {
	return &pendingBalances{ledger: l, amounts: make(map[string]uint64)}
}

func (p *pendingBalances) get(key []byte) (uint64, error) {
	if amount, has := p.amounts[string(key)]; has {
		return amount, nil
	}
	amount, err := p.ledger.readBalance(key)
	if err != nil {
		return 0, err
	}
	p.amounts[string(key)] = amount
	return amount, nil
}

func (p *pendingBalances) add(key []byte, amount uint64) error {
	current, err := p.get(key)
	if err != nil {
		return err
	}
	if current+amount < current {
		return ErrBalanceOverflow
	}
	p.amounts[string(key)] = current + amount
	return nil
}

func (p *pendingBalances) sub(key []byte, amount uint64, errInsufficient error) error {
	current, err := p.get(key)
	if err != nil {
		return err
	}
	if current < amount {
		return errors.WithMessagef(errInsufficient, "available %d, required %d", current, amount)
	}
	p.amounts[string(key)] = current - amount
	return nil
}

func (p *pendingBalances) commit() error {
	mutations := p.ledger.store.Batched()
	for key, amount := range p.amounts {
		if amount == 0 {
			if err := mutations.Delete([]byte(key)); err != nil {
				mutations.Cancel()
				return err
			}
			continue
		}
		if err := mutations.Set([]byte(key), marshalutil.New(8).WriteUint64(amount).Bytes()); err != nil {
			mutations.Cancel()
			return err
		}
	}
	return mutations.Commit()
}

// FreeBalance returns the spendable balance of an account.
func (l *Ledger) FreeBalance(currency CurrencyID, who AccountID) (uint64, error) {
	l.RLock()
	defer l.RUnlock()
	return l.readBalance(balanceKey(LedgerStoreKeyPrefixFree, currency, who))
}

// ReservedBalance returns the reserved balance of an account.
func (l *Ledger) ReservedBalance(currency CurrencyID, who AccountID) (uint64, error) {
	l.RLock()
	defer l.RUnlock()
	return l.readBalance(balanceKey(LedgerStoreKeyPrefixReserved, currency, who))
}

// Balance returns the free and reserved balance of an account.
func (l *Ledger) Balance(currency CurrencyID, who AccountID) (*Balance, error) {
	l.RLock()
	defer l.RUnlock()

	free, err := l.readBalance(balanceKey(LedgerStoreKeyPrefixFree, currency, who))
	if err != nil {
		return nil, err
	}
	reserved, err := l.readBalance(balanceKey(LedgerStoreKeyPrefixReserved, currency, who))
	if err != nil {
		return nil, err
	}
	return &Balance{Free: free, Reserved: reserved}, nil
}

// Deposit mints new funds into the free balance of an account.
func (l *Ledger) Deposit(currency CurrencyID, who AccountID, amount uint64) error {
	l.Lock()
	defer l.Unlock()

	pending := l.newPendingBalances()
	if err := pending.add(balanceKey(LedgerStoreKeyPrefixFree, currency, who), amount); err != nil {
		return err
	}
	if err := pending.commit(); err != nil {
		return err
	}

	l.logDebugf("minted %s %s to %s", humanize.Comma(int64(amount)), currency, who)
	return nil
}

// Transfer moves free funds between two accounts.
func (l *Ledger) Transfer(currency CurrencyID, from AccountID, to AccountID, amount uint64) error {
	return l.TransferMany(currency, from, []*Payout{{To: to, Amount: amount}})
}

// TransferMany moves free funds from one account to several accounts.
// Either all payouts are applied or none.
func (l *Ledger) TransferMany(currency CurrencyID, from AccountID, payouts []*Payout) error {
	l.Lock()
	defer l.Unlock()

	var total uint64
	for _, payout := range payouts {
		if total+payout.Amount < total {
			return ErrBalanceOverflow
		}
		total += payout.Amount
	}
	if total == 0 {
		return nil
	}

	pending := l.newPendingBalances()
	if err := pending.sub(balanceKey(LedgerStoreKeyPrefixFree, currency, from), total, ErrInsufficientBalance); err != nil {
		return errors.WithMessagef(err, "transfer from %s failed", from)
	}
	for _, payout := range payouts {
		if payout.Amount == 0 {
			continue
		}
		if err := pending.add(balanceKey(LedgerStoreKeyPrefixFree, currency, payout.To), payout.Amount); err != nil {
			return err
		}
	}
	if err := pending.commit(); err != nil {
		return err
	}

	l.logDebugf("transferred %s %s from %s to %d accounts", humanize.Comma(int64(total)), currency, from, len(payouts))
	return nil
}

// Reserve moves free funds of an account to its reserved balance.
func (l *Ledger) Reserve(currency CurrencyID, who AccountID, amount uint64) error {
	l.Lock()
	defer l.Unlock()

	pending := l.newPendingBalances()
	if err := pending.sub(balanceKey(LedgerStoreKeyPrefixFree, currency, who), amount, ErrInsufficientBalance); err != nil {
		return errors.WithMessagef(err, "reserve of %s failed", who)
	}
	if err := pending.add(balanceKey(LedgerStoreKeyPrefixReserved, currency, who), amount); err != nil {
		return err
	}
	return pending.commit()
}

// Unreserve moves reserved funds of an account back to its free balance.
func (l *Ledger) Unreserve(currency CurrencyID, who AccountID, amount uint64) error {
	l.Lock()
	defer l.Unlock()

	pending := l.newPendingBalances()
	if err := pending.sub(balanceKey(LedgerStoreKeyPrefixReserved, currency, who), amount, ErrInsufficientReserved); err != nil {
		return errors.WithMessagef(err, "unreserve of %s failed", who)
	}
	if err := pending.add(balanceKey(LedgerStoreKeyPrefixFree, currency, who), amount); err != nil {
		return err
	}
	return pending.commit()
}

// TransferReserved moves reserved funds of several accounts into the free balance of one account.
// Either all reserved amounts are moved or none.
func (l *Ledger) TransferReserved(currency CurrencyID, to AccountID, from map[AccountID]uint64) error {
	l.Lock()
	defer l.Unlock()

	pending := l.newPendingBalances()
	for who, amount := range from {
		if err := pending.sub(balanceKey(LedgerStoreKeyPrefixReserved, currency, who), amount, ErrInsufficientReserved); err != nil {
			return errors.WithMessagef(err, "transfer of reserved funds of %s failed", who)
		}
		if err := pending.add(balanceKey(LedgerStoreKeyPrefixFree, currency, to), amount); err != nil {
			return err
		}
	}
	return pending.commit()
}

// TransferFromMany moves free funds of several accounts into the free balance of one account.
// Either all amounts are moved or none.
func (l *Ledger) TransferFromMany(currency CurrencyID, to AccountID, from map[AccountID]uint64) error {
	l.Lock()
	defer l.Unlock()

	pending := l.newPendingBalances()
	for who, amount := range from {
		if err := pending.sub(balanceKey(LedgerStoreKeyPrefixFree, currency, who), amount, ErrInsufficientBalance); err != nil {
			return errors.WithMessagef(err, "transfer from %s failed", who)
		}
		if err := pending.add(balanceKey(LedgerStoreKeyPrefixFree, currency, to), amount); err != nil {
			return err
		}
	}
	return pending.commit()
}

func (l *Ledger) logDebugf(template string, args ...interface{}) {
	if l.log != nil {
		l.log.Debugf(template, args...)
	}
}
