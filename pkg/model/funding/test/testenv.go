package test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gohornet/fundgov/pkg/common"
	"github.com/gohornet/fundgov/pkg/model/deposits"
	"github.com/gohornet/fundgov/pkg/model/disputes"
	"github.com/gohornet/fundgov/pkg/model/funding"
	"github.com/gohornet/fundgov/pkg/model/ledger"
	"github.com/gohornet/fundgov/pkg/model/tick"
	"github.com/iotaledger/hive.go/events"
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/kvstore/mapdb"
)

const (
	FeeAccount     ledger.AccountID = "fees"
	KusamaTreasury ledger.AccountID = "treasury/kusama"

	ProjectDeposit uint64 = 100
	DisputeDeposit uint64 = 10

	MilestoneVotingWindow uint32 = 10
	NoConfidenceTimeLimit uint32 = 20
	DisputeVotingWindow   uint32 = 15
)

type FundingTestEnv struct {
	t *testing.T

	store    kvstore.KVStore
	Clock    *tick.Clock
	Ledger   *ledger.Ledger
	Deposits *deposits.Manager
	Disputes *disputes.Manager
	Funding  *funding.Manager

	// Notifications holds all funding events in the order they were triggered.
	Notifications []*funding.Notification
}

// NewFundingTestEnv wires a funding engine with a ledger, deposits, a jury dispute subsystem and a treasury
// on a fresh in-memory store. Every tick of the clock sweeps the rounds and processes the disputes.
func NewFundingTestEnv(t *testing.T, opts ...funding.Option) *FundingTestEnv {

	store := mapdb.NewMapDB()

	clock, err := tick.NewClock(store.WithRealm([]byte{common.StorePrefixClock}))
	require.NoError(t, err)

	l, err := ledger.NewLedger(store, nil)
	require.NoError(t, err)

	d, err := deposits.NewManager(store, l, map[deposits.StorageItem]uint64{
		deposits.StorageItemProject: ProjectDeposit,
		deposits.StorageItemDispute: DisputeDeposit,
	}, nil)
	require.NoError(t, err)

	dm, err := disputes.NewManager(store, clock, d, disputes.WithVotingWindow(DisputeVotingWindow))
	require.NoError(t, err)

	treasury := funding.NewTreasuryRefundHandler(l, map[funding.TreasuryOrigin]ledger.AccountID{
		funding.TreasuryKusama: KusamaTreasury,
	})

	options := []funding.Option{
		funding.WithMilestoneVotingWindow(MilestoneVotingWindow),
		funding.WithNoConfidenceTimeLimit(NoConfidenceTimeLimit),
		funding.WithPercentRequiredForVoteToPass(50),
		funding.WithPercentRequiredForVoteNoConfidenceToPass(75),
		funding.WithImbueFee(5),
		funding.WithFeeAccount(FeeAccount),
		funding.WithDisputeRaiser(dm),
		funding.WithExternalRefundHandler(treasury),
	}

	fm, err := funding.NewManager(store, clock, l, d, append(options, opts...)...)
	require.NoError(t, err)
	dm.SetHooks(fm)

	env := &FundingTestEnv{
		t:        t,
		store:    store,
		Clock:    clock,
		Ledger:   l,
		Deposits: d,
		Disputes: dm,
		Funding:  fm,
	}

	fm.Events.AttachAll(events.NewClosure(func(notification *funding.Notification) {
		env.Notifications = append(env.Notifications, notification)
	}))

	clock.Events.Tick.Attach(events.NewClosure(func(index tick.Index) {
		require.NoError(t, fm.Sweep(index))
		require.NoError(t, dm.ProcessTick(index))
	}))

	return env
}

// Cleanup shuts the managers down.
func (env *FundingTestEnv) Cleanup() {
	require.NoError(env.t, env.Funding.Shutdown())
	require.NoError(env.t, env.Disputes.Shutdown())
	require.NoError(env.t, env.Deposits.Shutdown())
	require.NoError(env.t, env.Ledger.Shutdown())
}

// Store returns the store all managers of the environment work on.
func (env *FundingTestEnv) Store() kvstore.KVStore {
	return env.store
}

// Mint gives free funds to an account.
func (env *FundingTestEnv) Mint(who ledger.AccountID, amount uint64) {
	require.NoError(env.t, env.Ledger.Deposit(ledger.CurrencyNative, who, amount))
}

// AdvanceTicks moves the clock forward.
func (env *FundingTestEnv) AdvanceTicks(ticks int) {
	for i := 0; i < ticks; i++ {
		_, err := env.Clock.Advance()
		require.NoError(env.t, err)
	}
}

// FreeBalance returns the free native balance of an account.
func (env *FundingTestEnv) FreeBalance(who ledger.AccountID) uint64 {
	balance, err := env.Ledger.FreeBalance(ledger.CurrencyNative, who)
	require.NoError(env.t, err)
	return balance
}

// ReservedBalance returns the reserved native balance of an account.
func (env *FundingTestEnv) ReservedBalance(who ledger.AccountID) uint64 {
	balance, err := env.Ledger.ReservedBalance(ledger.CurrencyNative, who)
	require.NoError(env.t, err)
	return balance
}

func (env *FundingTestEnv) AssertFreeBalance(who ledger.AccountID, expected uint64) {
	require.Equal(env.t, expected, env.FreeBalance(who), "free balance of %s", who)
}

// AssertProjectDeleted checks that the project is gone.
func (env *FundingTestEnv) AssertProjectDeleted(projectKey funding.ProjectKey) {
	_, err := env.Funding.Project(projectKey)
	require.ErrorIs(env.t, err, funding.ErrProjectDoesNotExist)
}

// Project returns a stored project.
func (env *FundingTestEnv) Project(projectKey funding.ProjectKey) *funding.Project {
	project, err := env.Funding.Project(projectKey)
	require.NoError(env.t, err)
	return project
}

// NotificationsOfKind returns the triggered events of the given kind.
func (env *FundingTestEnv) NotificationsOfKind(kind funding.NotificationKind) []*funding.Notification {
	var result []*funding.Notification
	for _, notification := range env.Notifications {
		if notification.Kind == kind {
			result = append(result, notification)
		}
	}
	return result
}

// NewProposal starts building a project initiated by the given account.
func (env *FundingTestEnv) NewProposal(initiator ledger.AccountID) *ProposalBuilder {
	return &ProposalBuilder{
		env: env,
		request: &funding.ProposalRequest{
			CurrencyID:    ledger.CurrencyNative,
			Contributions: make(map[ledger.AccountID]*funding.Contribution),
			Beneficiary:   initiator,
			FundingType:   funding.FundingType{Kind: funding.FundingKindProposal},
		},
	}
}
