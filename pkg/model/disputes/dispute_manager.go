package disputes

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/gohornet/fundgov/pkg/common"
	"github.com/gohornet/fundgov/pkg/model/deposits"
	"github.com/gohornet/fundgov/pkg/model/funding"
	"github.com/gohornet/fundgov/pkg/model/ledger"
	"github.com/gohornet/fundgov/pkg/model/storage"
	"github.com/gohornet/fundgov/pkg/model/tick"
	"github.com/iotaledger/hive.go/events"
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/logger"
	"github.com/iotaledger/hive.go/marshalutil"
	"github.com/iotaledger/hive.go/syncutils"
)

const (
	DBVersion byte = 1

	// Holds the open disputes
	DisputesStoreKeyPrefixDisputes byte = 0
	// Holds the last used dispute ID
	DisputesStoreKeyPrefixDisputeCount byte = 1
	// Holds the disputes per expiry tick
	DisputesStoreKeyPrefixDisputesExpiring byte = 2
)

var (
	ErrDisputesCorruptedStorage = errors.New("the disputes database was not shutdown properly")
	ErrDisputeDoesNotExist      = errors.New("dispute does not exist")
	ErrJuryRequired             = errors.New("a jury is required to raise a dispute")
	ErrNotAJuryAccount          = errors.New("only jury members can vote on a dispute")
	ErrAlreadyVoted             = errors.New("juror has already voted on the dispute")
	ErrTooManyJuryMembers       = errors.New("too many jury members")
	ErrTooManyDisputesExpiring  = errors.New("too many disputes expiring at the same tick")
)

// Hooks are notified once a dispute completed.
type Hooks interface {
	OnDisputeComplete(projectKey funding.ProjectKey, milestoneKeys []funding.MilestoneKey, result funding.DisputeResult) error
}

// DisputeCaller is used to signal dispute updates.
func DisputeCaller(handler interface{}, params ...interface{}) {
	handler.(func(*Dispute))(params[0].(*Dispute))
}

type Events struct {
	DisputeRaised    *events.Event
	DisputeVoted     *events.Event
	DisputeCompleted *events.Event
}

// Manager lets a jury decide on disputed milestones.
type Manager struct {
	syncutils.Mutex

	clock          funding.Clock
	depositHandler funding.DepositHandler
	hooks          Hooks

	// holds the Manager options.
	opts *Options

	store       kvstore.KVStore
	storeHealth *storage.StoreHealthTracker

	Events *Events
}

// the default options applied to the Manager.
var defaultOptions = []Option{
	WithVotingWindow(100),
	WithMaxJurySize(50),
	WithMaxDisputesPerTick(100),
	WithDepositCurrency(ledger.CurrencyNative),
}

// Options define options for the Manager.
type Options struct {
	logger *logger.Logger

	votingWindow       uint32
	maxJurySize        int
	maxDisputesPerTick int
	defaultJury        []ledger.AccountID
	depositCurrency    ledger.CurrencyID
}

// applies the given Option.
func (so *Options) apply(opts ...Option) {
	for _, opt := range opts {
		opt(so)
	}
}

// WithLogger enables logging within the Manager.
func WithLogger(logger *logger.Logger) Option {
	return func(opts *Options) {
		opts.logger = logger
	}
}

// WithVotingWindow defines after how many ticks a dispute is decided with the votes cast so far.
func WithVotingWindow(ticks uint32) Option {
	return func(opts *Options) {
		opts.votingWindow = ticks
	}
}

func WithMaxJurySize(size int) Option {
	return func(opts *Options) {
		opts.maxJurySize = size
	}
}

func WithMaxDisputesPerTick(count int) Option {
	return func(opts *Options) {
		opts.maxDisputesPerTick = count
	}
}

// WithDefaultJury defines the jury deciding disputes of projects without a jury of their own.
func WithDefaultJury(jury []ledger.AccountID) Option {
	return func(opts *Options) {
		opts.defaultJury = jury
	}
}

// WithDepositCurrency defines the currency the dispute deposit is taken in.
func WithDepositCurrency(currency ledger.CurrencyID) Option {
	return func(opts *Options) {
		opts.depositCurrency = currency
	}
}

// Option is a function setting a Manager option.
type Option func(opts *Options)

// NewManager creates a new dispute Manager working on the disputes realm of the given store.
func NewManager(store kvstore.KVStore, clock funding.Clock, depositHandler funding.DepositHandler, opts ...Option) (*Manager, error) {

	options := &Options{}
	options.apply(defaultOptions...)
	options.apply(opts...)

	if options.votingWindow == 0 {
		return nil, errors.WithMessage(funding.ErrInvalidParam, "dispute voting window must be at least one tick")
	}

	healthTracker, err := storage.NewStoreHealthTracker(store, storage.HealthRealm(common.StorePrefixDisputes), DBVersion)
	if err != nil {
		return nil, err
	}
	if err := healthTracker.CheckHealthyAndMarkCorrupted(ErrDisputesCorruptedStorage); err != nil {
		return nil, err
	}

	return &Manager{
		clock:          clock,
		depositHandler: depositHandler,
		opts:           options,
		store:          store.WithRealm([]byte{common.StorePrefixDisputes}),
		storeHealth:    healthTracker,
		Events: &Events{
			DisputeRaised:    events.NewEvent(DisputeCaller),
			DisputeVoted:     events.NewEvent(DisputeCaller),
			DisputeCompleted: events.NewEvent(DisputeCaller),
		},
	}, nil
}

// SetHooks registers the component notified about completed disputes.
func (m *Manager) SetHooks(hooks Hooks) {
	m.Lock()
	defer m.Unlock()
	m.hooks = hooks
}

// Shutdown marks the disputes realm as healthy.
func (m *Manager) Shutdown() error {
	m.Lock()
	defer m.Unlock()

	if err := m.storeHealth.MarkHealthy(); err != nil {
		return err
	}
	return m.store.Flush()
}

func disputeKey(id DisputeID) []byte {
	ms := marshalutil.New(9)
	ms.WriteByte(DisputesStoreKeyPrefixDisputes) // 1 byte
	ms.WriteUint64(uint64(id))                   // 8 bytes
	return ms.Bytes()
}

func disputeCountKey() []byte {
	return []byte{DisputesStoreKeyPrefixDisputeCount}
}

func disputesExpiringPrefix(at tick.Index) []byte {
	ms := marshalutil.New(5)
	ms.WriteByte(DisputesStoreKeyPrefixDisputesExpiring) // 1 byte
	ms.WriteUint32(uint32(at))                           // 4 bytes
	return ms.Bytes()
}

func disputeExpiringKey(at tick.Index, id DisputeID) []byte {
	ms := marshalutil.New(13)
	ms.WriteBytes(disputesExpiringPrefix(at)) // 5 bytes
	ms.WriteUint64(uint64(id))                // 8 bytes
	return ms.Bytes()
}

func (m *Manager) dispute(id DisputeID) (*Dispute, error) {
	value, err := m.store.Get(disputeKey(id))
	if err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return nil, errors.WithMessagef(ErrDisputeDoesNotExist, "dispute %d", id)
		}
		return nil, storage.NewDatabaseError(err)
	}
	dispute, err := disputeFromBytes(id, value)
	if err != nil {
		return nil, storage.NewDatabaseError(err)
	}
	return dispute, nil
}

func (m *Manager) expiringDisputeIDs(at tick.Index) ([]DisputeID, error) {
	var ids []DisputeID
	prefix := disputesExpiringPrefix(at)
	if err := m.store.IterateKeys(prefix, func(key kvstore.Key) bool {
		id, err := marshalutil.New(key[len(prefix):]).ReadUint64()
		if err == nil {
			ids = append(ids, DisputeID(id))
		}
		return true
	}); err != nil {
		return nil, storage.NewDatabaseError(err)
	}
	return ids, nil
}

// RaiseDispute opens a dispute on the milestones of a project. Projects without a jury are decided by the default jury.
// A deposit is taken from the raiser and returned once the dispute completed.
func (m *Manager) RaiseDispute(projectKey funding.ProjectKey, raisedBy ledger.AccountID, jury []ledger.AccountID, milestoneKeys []funding.MilestoneKey) error {
	m.Lock()

	if len(jury) == 0 {
		jury = m.opts.defaultJury
	}
	if len(jury) == 0 {
		m.Unlock()
		return ErrJuryRequired
	}
	if len(jury) > m.opts.maxJurySize {
		m.Unlock()
		return errors.WithMessagef(ErrTooManyJuryMembers, "%d jurors, at most %d allowed", len(jury), m.opts.maxJurySize)
	}

	expiry := m.clock.CurrentIndex().Add(m.opts.votingWindow)
	expiring, err := m.expiringDisputeIDs(expiry)
	if err != nil {
		m.Unlock()
		return err
	}
	if len(expiring) >= m.opts.maxDisputesPerTick {
		m.Unlock()
		return ErrTooManyDisputesExpiring
	}

	var lastID uint64
	value, err := m.store.Get(disputeCountKey())
	switch {
	case err == nil:
		if lastID, err = marshalutil.New(value).ReadUint64(); err != nil {
			m.Unlock()
			return storage.NewDatabaseError(err)
		}
	case !errors.Is(err, kvstore.ErrKeyNotFound):
		m.Unlock()
		return storage.NewDatabaseError(err)
	}

	depositID, err := m.depositHandler.TakeDeposit(raisedBy, deposits.StorageItemDispute, m.opts.depositCurrency)
	if err != nil {
		m.Unlock()
		return errors.Wrapf(err, "failed to take dispute deposit from %s", raisedBy)
	}

	dispute := &Dispute{
		ID:            DisputeID(lastID + 1),
		ProjectKey:    projectKey,
		MilestoneKeys: append([]funding.MilestoneKey{}, milestoneKeys...),
		RaisedBy:      raisedBy,
		Jury:          append([]ledger.AccountID{}, jury...),
		Votes:         make(map[ledger.AccountID]bool),
		Expiry:        expiry,
		DepositID:     depositID,
	}

	if err := m.storeDispute(dispute); err != nil {
		if returnErr := m.depositHandler.ReturnDeposit(depositID); returnErr != nil {
			m.logErrorf("%s: failed to return deposit %d of %s: %s", common.ErrInvariantViolated, depositID, raisedBy, returnErr)
		}
		m.Unlock()
		return err
	}

	m.logInfof("dispute %d raised on project %d by %s, jury of %d decides until tick %d", dispute.ID, projectKey, raisedBy, len(dispute.Jury), expiry)
	m.Unlock()

	m.Events.DisputeRaised.Trigger(dispute)
	return nil
}

func (m *Manager) storeDispute(dispute *Dispute) error {
	mutations := m.store.Batched()
	if err := mutations.Set(disputeKey(dispute.ID), dispute.valueBytes()); err != nil {
		mutations.Cancel()
		return storage.NewDatabaseError(err)
	}
	if err := mutations.Set(disputeExpiringKey(dispute.Expiry, dispute.ID), []byte{}); err != nil {
		mutations.Cancel()
		return storage.NewDatabaseError(err)
	}
	if err := mutations.Set(disputeCountKey(), marshalutil.New(8).WriteUint64(uint64(dispute.ID)).Bytes()); err != nil {
		mutations.Cancel()
		return storage.NewDatabaseError(err)
	}
	if err := mutations.Commit(); err != nil {
		return storage.NewDatabaseError(err)
	}
	return nil
}

// Vote records the vote of a juror. Votes cannot be changed.
// The dispute completes as soon as every juror voted.
func (m *Manager) Vote(who ledger.AccountID, id DisputeID, inFavour bool) error {
	m.Lock()

	dispute, err := m.dispute(id)
	if err != nil {
		m.Unlock()
		return err
	}
	if !dispute.IsJuror(who) {
		m.Unlock()
		return ErrNotAJuryAccount
	}
	if _, voted := dispute.Votes[who]; voted {
		m.Unlock()
		return ErrAlreadyVoted
	}
	dispute.Votes[who] = inFavour

	if len(dispute.Votes) < len(dispute.Jury) {
		if err := m.store.Set(disputeKey(id), dispute.valueBytes()); err != nil {
			m.Unlock()
			return storage.NewDatabaseError(err)
		}
		m.Unlock()

		m.Events.DisputeVoted.Trigger(dispute)
		return nil
	}

	err = m.removeDispute(dispute)
	m.Unlock()
	if err != nil {
		return err
	}

	m.Events.DisputeVoted.Trigger(dispute)
	m.complete(dispute)
	return nil
}

// ProcessTick decides all disputes expiring at the given tick with the votes cast so far.
func (m *Manager) ProcessTick(now tick.Index) error {
	m.Lock()

	ids, err := m.expiringDisputeIDs(now)
	if err != nil {
		m.Unlock()
		return err
	}

	var expired []*Dispute
	for _, id := range ids {
		dispute, err := m.dispute(id)
		if err != nil {
			if errors.Is(err, ErrDisputeDoesNotExist) {
				// completed by the last vote
				if err := m.store.Delete(disputeExpiringKey(now, id)); err != nil {
					m.Unlock()
					return storage.NewDatabaseError(err)
				}
				continue
			}
			m.Unlock()
			return err
		}
		if err := m.removeDispute(dispute); err != nil {
			m.Unlock()
			return err
		}
		expired = append(expired, dispute)
	}
	m.Unlock()

	for _, dispute := range expired {
		m.complete(dispute)
	}
	return nil
}

// removeDispute deletes the dispute and returns the deposit. The caller holds the lock.
func (m *Manager) removeDispute(dispute *Dispute) error {
	mutations := m.store.Batched()
	if err := mutations.Delete(disputeKey(dispute.ID)); err != nil {
		mutations.Cancel()
		return err
	}
	if err := mutations.Delete(disputeExpiringKey(dispute.Expiry, dispute.ID)); err != nil {
		mutations.Cancel()
		return err
	}
	if err := mutations.Commit(); err != nil {
		return storage.NewDatabaseError(err)
	}

	if err := m.depositHandler.ReturnDeposit(dispute.DepositID); err != nil {
		m.logErrorf("%s: failed to return deposit %d of dispute %d: %s", common.ErrInvariantViolated, dispute.DepositID, dispute.ID, err)
	}
	return nil
}

// complete notifies the hooks about a removed dispute. It must be called without holding the lock.
func (m *Manager) complete(dispute *Dispute) {
	result := dispute.Result()
	inFavour, against := dispute.Tally()
	m.logInfof("dispute %d on project %d completed with %d:%d votes: %s", dispute.ID, dispute.ProjectKey, inFavour, against, result)

	m.Lock()
	hooks := m.hooks
	m.Unlock()

	if hooks != nil {
		if err := hooks.OnDisputeComplete(dispute.ProjectKey, dispute.MilestoneKeys, result); err != nil {
			m.logErrorf("applying result of dispute %d to project %d failed: %s", dispute.ID, dispute.ProjectKey, err)
		}
	}

	m.Events.DisputeCompleted.Trigger(dispute)
}

// Dispute returns an open dispute.
func (m *Manager) Dispute(id DisputeID) (*Dispute, error) {
	m.Lock()
	defer m.Unlock()
	return m.dispute(id)
}

// Disputes returns all open disputes.
func (m *Manager) Disputes() ([]*Dispute, error) {
	m.Lock()
	defer m.Unlock()

	var disputes []*Dispute
	var innerErr error
	if err := m.store.Iterate([]byte{DisputesStoreKeyPrefixDisputes}, func(key kvstore.Key, value kvstore.Value) bool {
		id, err := marshalutil.New(key[1:]).ReadUint64()
		if err != nil {
			innerErr = err
			return false
		}
		dispute, err := disputeFromBytes(DisputeID(id), value)
		if err != nil {
			innerErr = err
			return false
		}
		disputes = append(disputes, dispute)
		return true
	}); err != nil {
		return nil, err
	}

	if innerErr != nil {
		return nil, innerErr
	}

	sort.Slice(disputes, func(i, j int) bool { return disputes[i].ID < disputes[j].ID })
	return disputes, nil
}

func (m *Manager) logInfof(template string, args ...interface{}) {
	if m.opts.logger != nil {
		m.opts.logger.Infof(template, args...)
	}
}

func (m *Manager) logErrorf(template string, args ...interface{}) {
	if m.opts.logger != nil {
		m.opts.logger.Errorf(template, args...)
	}
}
