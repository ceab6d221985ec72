package funding

import (
	"github.com/pkg/errors"

	"github.com/gohornet/fundgov/pkg/common"
	"github.com/gohornet/fundgov/pkg/model/ledger"
	"github.com/gohornet/fundgov/pkg/model/storage"
	"github.com/gohornet/fundgov/pkg/model/tick"
	"github.com/gohornet/fundgov/pkg/utils"
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/logger"
	"github.com/iotaledger/hive.go/marshalutil"
	"github.com/iotaledger/hive.go/syncutils"
)

const (
	DBVersion byte = 1
)

var (
	ErrNoDisputeRaiser = errors.New("no dispute subsystem configured")
	ErrNoRefundHandler = errors.New("no external refund handler configured")
)

// Manager is the funding governance engine.
// It keeps projects, schedules and sweeps rounds, counts votes and accounts withdrawals and refunds.
type Manager struct {
	syncutils.RWMutex
	// the logger used to log events.
	*utils.WrappedLogger

	clock          Clock
	currencies     Currencies
	depositHandler DepositHandler

	// holds the Manager options.
	opts *Options

	fundingStore       kvstore.KVStore
	fundingStoreHealth *storage.StoreHealthTracker

	Events *Events
}

// the default options applied to the Manager.
var defaultOptions = []Option{
	WithMilestoneVotingWindow(100),
	WithNoConfidenceTimeLimit(100),
	WithPercentRequiredForVoteToPass(75),
	WithPercentRequiredForVoteNoConfidenceToPass(75),
	WithExpiringPerTick(100),
	WithMaxContributorsPerProject(1000),
	WithMaxMilestonesPerProject(50),
	WithMaxProjectsPerAccount(100),
	WithMaxJuryMembers(50),
	WithImbueFee(5),
	WithFeeAccount("fundgov/fees"),
}

// Options define options for the Manager.
type Options struct {
	logger *logger.Logger

	milestoneVotingWindow                    uint32
	noConfidenceTimeLimit                    uint32
	percentRequiredForVoteToPass             Percent
	percentRequiredForVoteNoConfidenceToPass Percent
	expiringPerTick                          int
	maxContributorsPerProject                int
	maxMilestonesPerProject                  int
	maxProjectsPerAccount                    int
	maxJuryMembers                           int
	imbueFee                                 Percent
	feeAccount                               ledger.AccountID

	disputeRaiser         DisputeRaiser
	externalRefundHandler ExternalRefundHandler
}

// applies the given Option.
func (so *Options) apply(opts ...Option) {
	for _, opt := range opts {
		opt(so)
	}
}

func (so *Options) validate() error {
	for name, percent := range map[string]Percent{
		"percentRequiredForVoteToPass":             so.percentRequiredForVoteToPass,
		"percentRequiredForVoteNoConfidenceToPass": so.percentRequiredForVoteNoConfidenceToPass,
		"imbueFee":                                 so.imbueFee,
	} {
		if percent > 100 {
			return errors.WithMessagef(ErrInvalidParam, "%s must not exceed 100, got %d", name, percent)
		}
	}
	if so.expiringPerTick <= 0 {
		return errors.WithMessage(ErrInvalidParam, "expiringPerTick must be positive")
	}
	if so.milestoneVotingWindow == 0 || so.noConfidenceTimeLimit == 0 {
		return errors.WithMessage(ErrInvalidParam, "round durations must be at least one tick")
	}
	if so.feeAccount == "" {
		return errors.WithMessage(ErrInvalidParam, "feeAccount must be set")
	}
	return nil
}

// WithLogger enables logging within the Manager.
func WithLogger(logger *logger.Logger) Option {
	return func(opts *Options) {
		opts.logger = logger
	}
}

// WithMilestoneVotingWindow defines how many ticks a milestone voting round stays open.
func WithMilestoneVotingWindow(ticks uint32) Option {
	return func(opts *Options) {
		opts.milestoneVotingWindow = ticks
	}
}

// WithNoConfidenceTimeLimit defines how many ticks a no-confidence round is scheduled for.
func WithNoConfidenceTimeLimit(ticks uint32) Option {
	return func(opts *Options) {
		opts.noConfidenceTimeLimit = ticks
	}
}

// WithPercentRequiredForVoteToPass defines the share of the raised funds needed to approve or reject a milestone.
func WithPercentRequiredForVoteToPass(percent Percent) Option {
	return func(opts *Options) {
		opts.percentRequiredForVoteToPass = percent
	}
}

// WithPercentRequiredForVoteNoConfidenceToPass defines the share of the raised funds needed to end a project by no-confidence.
func WithPercentRequiredForVoteNoConfidenceToPass(percent Percent) Option {
	return func(opts *Options) {
		opts.percentRequiredForVoteNoConfidenceToPass = percent
	}
}

// WithExpiringPerTick bounds how many rounds may expire at the same tick.
func WithExpiringPerTick(count int) Option {
	return func(opts *Options) {
		opts.expiringPerTick = count
	}
}

func WithMaxContributorsPerProject(count int) Option {
	return func(opts *Options) {
		opts.maxContributorsPerProject = count
	}
}

func WithMaxMilestonesPerProject(count int) Option {
	return func(opts *Options) {
		opts.maxMilestonesPerProject = count
	}
}

// WithMaxProjectsPerAccount bounds the completed projects kept per initiator.
func WithMaxProjectsPerAccount(count int) Option {
	return func(opts *Options) {
		opts.maxProjectsPerAccount = count
	}
}

func WithMaxJuryMembers(count int) Option {
	return func(opts *Options) {
		opts.maxJuryMembers = count
	}
}

// WithImbueFee defines the protocol fee taken from withdrawals and refunds.
func WithImbueFee(percent Percent) Option {
	return func(opts *Options) {
		opts.imbueFee = percent
	}
}

// WithFeeAccount defines the account receiving the protocol fee.
func WithFeeAccount(account ledger.AccountID) Option {
	return func(opts *Options) {
		opts.feeAccount = account
	}
}

// WithDisputeRaiser defines the dispute subsystem disputes are handed to.
func WithDisputeRaiser(raiser DisputeRaiser) Option {
	return func(opts *Options) {
		opts.disputeRaiser = raiser
	}
}

// WithExternalRefundHandler defines where refunds of treasury funded projects are sent.
func WithExternalRefundHandler(handler ExternalRefundHandler) Option {
	return func(opts *Options) {
		opts.externalRefundHandler = handler
	}
}

// Option is a function setting a Manager option.
type Option func(opts *Options)

// NewManager creates a new Manager instance working on the funding realm of the given store.
func NewManager(
	store kvstore.KVStore,
	clock Clock,
	currencies Currencies,
	depositHandler DepositHandler,
	opts ...Option) (*Manager, error) {

	options := &Options{}
	options.apply(defaultOptions...)
	options.apply(opts...)

	if err := options.validate(); err != nil {
		return nil, err
	}

	healthTracker, err := storage.NewStoreHealthTracker(store, storage.HealthRealm(common.StorePrefixFunding), DBVersion)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		WrappedLogger:      utils.NewWrappedLogger(options.logger),
		clock:              clock,
		currencies:         currencies,
		depositHandler:     depositHandler,
		fundingStore:       store.WithRealm([]byte{common.StorePrefixFunding}),
		fundingStoreHealth: healthTracker,
		opts:               options,
		Events:             newEvents(),
	}

	if err := manager.init(); err != nil {
		return nil, err
	}

	return manager, nil
}

func (m *Manager) init() error {
	// mark the database as corrupted here and as clean when we shut it down
	if err := m.fundingStoreHealth.CheckHealthyAndMarkCorrupted(ErrFundingCorruptedStorage); err != nil {
		return err
	}

	// a fresh store starts sweeping at the next tick
	_, exists, err := m.sweptIndex()
	if err != nil || exists {
		return err
	}
	if err := m.fundingStore.Set(keyForSweptIndex(), marshalutil.New(4).WriteUint32(uint32(m.now())).Bytes()); err != nil {
		return storage.NewDatabaseError(err)
	}
	return nil
}

// Shutdown marks the funding realm as healthy and flushes it.
func (m *Manager) Shutdown() error {
	m.Lock()
	defer m.Unlock()

	var flushError error
	if err := m.fundingStoreHealth.MarkHealthy(); err != nil {
		flushError = err
	}
	if err := m.fundingStore.Flush(); err != nil {
		flushError = err
	}
	return flushError
}

// FeeAccount returns the account receiving the protocol fee.
func (m *Manager) FeeAccount() ledger.AccountID {
	return m.opts.feeAccount
}

func (m *Manager) now() tick.Index {
	return m.clock.CurrentIndex()
}

// apply runs the operation under the write lock and triggers its events after the lock was released.
func (m *Manager) apply(operation func(events *pendingEvents) error) error {
	var events pendingEvents

	m.Lock()
	err := operation(&events)
	m.Unlock()

	if err != nil {
		return err
	}
	events.trigger()
	return nil
}
