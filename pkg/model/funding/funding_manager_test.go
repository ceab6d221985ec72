package funding_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gohornet/fundgov/pkg/model/deposits"
	"github.com/gohornet/fundgov/pkg/model/funding"
	"github.com/gohornet/fundgov/pkg/model/funding/test"
	"github.com/gohornet/fundgov/pkg/model/ledger"
	"github.com/gohornet/fundgov/pkg/model/tick"
	"github.com/iotaledger/hive.go/events"
	"github.com/iotaledger/hive.go/kvstore/mapdb"
)

const (
	initiator ledger.AccountID = "initiator"
	alice     ledger.AccountID = "alice"
	bob       ledger.AccountID = "bob"
	carol     ledger.AccountID = "carol"
	mallory   ledger.AccountID = "mallory"
)

// newTwoContributorProject creates a project funded by alice (600) and bob (400).
func newTwoContributorProject(env *test.FundingTestEnv, percentages ...funding.Percent) funding.ProjectKey {
	return env.NewProposal(initiator).
		Contribution(alice, 600).
		Contribution(bob, 400).
		Milestones(percentages...).
		Create()
}

func TestApprovedMilestoneIsWithdrawn(t *testing.T) {
	env := test.NewFundingTestEnv(t)
	defer env.Cleanup()

	projectKey := newTwoContributorProject(env, 100)
	escrow := funding.ProjectAccountID(projectKey)
	env.AssertFreeBalance(escrow, 1000)
	require.Equal(t, test.ProjectDeposit, env.ReservedBalance(initiator))

	require.NoError(t, env.Funding.SubmitMilestone(initiator, projectKey, 0))
	require.NoError(t, env.Funding.VoteOnMilestone(alice, projectKey, 0, true))

	project := env.Project(projectKey)
	require.True(t, project.Milestones[0].IsApproved)
	require.Len(t, env.NotificationsOfKind(funding.NotificationMilestoneApproved), 1)

	// the round was closed by the approval
	require.ErrorIs(t, env.Funding.VoteOnMilestone(bob, projectKey, 0, true), funding.ErrVotingRoundNotStarted)

	require.NoError(t, env.Funding.Withdraw(initiator, projectKey))

	// 1000 minus 5% fee, plus the returned project deposit
	env.AssertFreeBalance(initiator, 950+test.ProjectDeposit)
	require.Zero(t, env.ReservedBalance(initiator))
	env.AssertFreeBalance(test.FeeAccount, 50)
	env.AssertFreeBalance(escrow, 0)
	env.AssertProjectDeleted(projectKey)

	completed, err := env.Funding.CompletedProjects(initiator)
	require.NoError(t, err)
	require.Equal(t, []funding.ProjectKey{projectKey}, completed)

	withdrawn := env.NotificationsOfKind(funding.NotificationProjectFundsWithdrawn)
	require.Len(t, withdrawn, 1)
	require.Equal(t, uint64(950), withdrawn[0].Amount)
}

func TestExpiredVotingRoundIsSwept(t *testing.T) {
	env := test.NewFundingTestEnv(t)
	defer env.Cleanup()

	projectKey := newTwoContributorProject(env, 100)

	require.NoError(t, env.Funding.SubmitMilestone(initiator, projectKey, 0))
	require.ErrorIs(t, env.Funding.SubmitMilestone(initiator, projectKey, 0), funding.ErrRoundStarted)

	rounds, err := env.Funding.OpenRounds(projectKey)
	require.NoError(t, err)
	require.Equal(t, map[funding.RoundKey]tick.Index{
		{ProjectKey: projectKey, Kind: funding.RoundKindVoting, MilestoneKey: 0}: tick.Index(test.MilestoneVotingWindow),
	}, rounds)

	// one tick before the expiry the round is still open
	env.AdvanceTicks(int(test.MilestoneVotingWindow) - 1)
	require.NoError(t, env.Funding.VoteOnMilestone(bob, projectKey, 0, true))

	env.AdvanceTicks(1)

	require.Len(t, env.NotificationsOfKind(funding.NotificationVotingRoundExpired), 1)
	require.False(t, env.Project(projectKey).Milestones[0].IsApproved)

	_, err = env.Funding.MilestoneVote(projectKey, 0)
	require.ErrorIs(t, err, funding.ErrVotingRoundNotStarted)
	require.ErrorIs(t, env.Funding.VoteOnMilestone(alice, projectKey, 0, true), funding.ErrVotingRoundNotStarted)

	rounds, err = env.Funding.OpenRounds(projectKey)
	require.NoError(t, err)
	require.Empty(t, rounds)

	// the milestone can be submitted again and bob can vote again
	require.NoError(t, env.Funding.SubmitMilestone(initiator, projectKey, 0))
	require.NoError(t, env.Funding.VoteOnMilestone(bob, projectKey, 0, true))

	vote, err := env.Funding.MilestoneVote(projectKey, 0)
	require.NoError(t, err)
	require.Equal(t, &funding.Vote{Yay: 400}, vote)
}

type manualClock struct {
	index tick.Index
}

func (c *manualClock) CurrentIndex() tick.Index {
	return c.index
}

func TestMissedTicksAreSweptLater(t *testing.T) {
	store := mapdb.NewMapDB()
	clock := &manualClock{}

	l, err := ledger.NewLedger(store, nil)
	require.NoError(t, err)
	d, err := deposits.NewManager(store, l, map[deposits.StorageItem]uint64{deposits.StorageItemProject: test.ProjectDeposit}, nil)
	require.NoError(t, err)
	fm, err := funding.NewManager(store, clock, l, d, funding.WithMilestoneVotingWindow(test.MilestoneVotingWindow))
	require.NoError(t, err)

	require.NoError(t, l.Deposit(ledger.CurrencyNative, alice, 1000))
	require.NoError(t, l.Deposit(ledger.CurrencyNative, initiator, test.ProjectDeposit))
	projectKey, err := fm.ConvertToProposal(&funding.ProposalRequest{
		CurrencyID:    ledger.CurrencyNative,
		Contributions: map[ledger.AccountID]*funding.Contribution{alice: {Value: 1000}},
		Beneficiary:   initiator,
		Milestones:    []*funding.ProposedMilestone{{PercentageToUnlock: 100}},
	})
	require.NoError(t, err)
	require.NoError(t, fm.SubmitMilestone(initiator, projectKey, 0))

	var expired int
	fm.Events.VotingRoundExpired.Attach(events.NewClosure(func(_ *funding.Notification) {
		expired++
	}))

	// the sweep of the expiry tick never ran, the next one catches up
	clock.index = tick.Index(test.MilestoneVotingWindow + 2)
	require.NoError(t, fm.Sweep(clock.index))
	require.Equal(t, 1, expired)

	rounds, err := fm.OpenRounds(projectKey)
	require.NoError(t, err)
	require.Empty(t, rounds)
	require.NoError(t, fm.SubmitMilestone(initiator, projectKey, 0))

	// swept ticks are not visited again
	require.NoError(t, fm.Sweep(clock.index))
	require.Equal(t, 1, expired)

	require.NoError(t, fm.Shutdown())
}

func TestVotesAreImmutable(t *testing.T) {
	env := test.NewFundingTestEnv(t)
	defer env.Cleanup()

	projectKey := newTwoContributorProject(env, 100)
	require.NoError(t, env.Funding.SubmitMilestone(initiator, projectKey, 0))

	require.NoError(t, env.Funding.VoteOnMilestone(bob, projectKey, 0, false))
	require.ErrorIs(t, env.Funding.VoteOnMilestone(bob, projectKey, 0, true), funding.ErrVotesAreImmutable)
	require.ErrorIs(t, env.Funding.VoteOnMilestone(bob, projectKey, 0, false), funding.ErrVotesAreImmutable)

	vote, err := env.Funding.MilestoneVote(projectKey, 0)
	require.NoError(t, err)
	require.Equal(t, &funding.Vote{Nay: 400}, vote)

	require.ErrorIs(t, env.Funding.VoteOnMilestone(mallory, projectKey, 0, true), funding.ErrOnlyContributorsCanVote)
	require.ErrorIs(t, env.Funding.SubmitMilestone(alice, projectKey, 0), funding.ErrUserIsNotInitiator)
	require.ErrorIs(t, env.Funding.VoteOnMilestone(alice, projectKey, 1, true), funding.ErrMilestoneDoesNotExist)
	require.ErrorIs(t, env.Funding.VoteOnMilestone(alice, projectKey+1, 0, true), funding.ErrProjectDoesNotExist)
}

func TestRejectedMilestoneCanBeResubmitted(t *testing.T) {
	env := test.NewFundingTestEnv(t)
	defer env.Cleanup()

	projectKey := newTwoContributorProject(env, 100)
	require.NoError(t, env.Funding.SubmitMilestone(initiator, projectKey, 0))
	require.NoError(t, env.Funding.VoteOnMilestone(alice, projectKey, 0, false))

	require.Len(t, env.NotificationsOfKind(funding.NotificationMilestoneRejected), 1)
	require.False(t, env.Project(projectKey).Milestones[0].IsApproved)
	require.ErrorIs(t, env.Funding.VoteOnMilestone(bob, projectKey, 0, true), funding.ErrVotingRoundNotStarted)

	// resubmitting in the same tick schedules the same expiry twice, the sweep closes the round once
	require.NoError(t, env.Funding.SubmitMilestone(initiator, projectKey, 0))
	vote, err := env.Funding.MilestoneVote(projectKey, 0)
	require.NoError(t, err)
	require.Equal(t, &funding.Vote{}, vote)

	env.AdvanceTicks(int(test.MilestoneVotingWindow))
	require.Len(t, env.NotificationsOfKind(funding.NotificationVotingRoundExpired), 1)

	require.NoError(t, env.Funding.SubmitMilestone(initiator, projectKey, 0))
	require.NoError(t, env.Funding.VoteOnMilestone(alice, projectKey, 0, true))
	require.True(t, env.Project(projectKey).Milestones[0].IsApproved)
}

func TestApprovalIsFinal(t *testing.T) {
	env := test.NewFundingTestEnv(t)
	defer env.Cleanup()

	env.Mint(bob, test.DisputeDeposit)
	projectKey := env.NewProposal(initiator).
		Contribution(alice, 600).
		Contribution(bob, 400).
		Milestones(50, 50).
		Jury(carol).
		Create()

	require.NoError(t, env.Funding.SubmitMilestone(initiator, projectKey, 0))
	require.NoError(t, env.Funding.VoteOnMilestone(alice, projectKey, 0, true))

	require.ErrorIs(t, env.Funding.SubmitMilestone(initiator, projectKey, 0), funding.ErrMilestoneAlreadyApproved)
	require.ErrorIs(t, env.Funding.RaiseDispute(bob, projectKey, []funding.MilestoneKey{0}), funding.ErrCannotRaiseDisputeOnApprovedMilestone)

	// the sweep of the stale round entry does not touch the approval
	env.AdvanceTicks(int(test.MilestoneVotingWindow))
	require.Empty(t, env.NotificationsOfKind(funding.NotificationVotingRoundExpired))
	require.True(t, env.Project(projectKey).Milestones[0].IsApproved)

	vote, err := env.Funding.MilestoneVote(projectKey, 0)
	require.NoError(t, err)
	require.True(t, vote.IsApproved)

	require.NoError(t, env.Funding.Withdraw(initiator, projectKey))
	require.True(t, env.Project(projectKey).Milestones[0].IsApproved)
}

func TestWithdrawIsIdempotent(t *testing.T) {
	env := test.NewFundingTestEnv(t)
	defer env.Cleanup()

	projectKey := newTwoContributorProject(env, 50, 50)
	escrow := funding.ProjectAccountID(projectKey)

	require.ErrorIs(t, env.Funding.Withdraw(initiator, projectKey), funding.ErrNoAvailableFundsToWithdraw)

	require.NoError(t, env.Funding.SubmitMilestone(initiator, projectKey, 0))
	require.NoError(t, env.Funding.VoteOnMilestone(alice, projectKey, 0, true))

	require.ErrorIs(t, env.Funding.Withdraw(alice, projectKey), funding.ErrUserIsNotInitiator)
	require.NoError(t, env.Funding.Withdraw(initiator, projectKey))

	env.AssertFreeBalance(initiator, 475)
	env.AssertFreeBalance(test.FeeAccount, 25)
	env.AssertFreeBalance(escrow, 500)

	require.ErrorIs(t, env.Funding.Withdraw(initiator, projectKey), funding.ErrNoAvailableFundsToWithdraw)
	env.AssertFreeBalance(initiator, 475)
	env.AssertFreeBalance(test.FeeAccount, 25)
	env.AssertFreeBalance(escrow, 500)

	project := env.Project(projectKey)
	require.Equal(t, uint64(500), project.WithdrawnFunds)
	require.Equal(t, &funding.TransferStatus{Kind: funding.TransferKindWithdrawn, At: 0}, project.Milestones[0].TransferStatus)
	require.Nil(t, project.Milestones[1].TransferStatus)

	// a withdrawn milestone cannot be submitted again
	require.ErrorIs(t, env.Funding.SubmitMilestone(initiator, projectKey, 0), funding.ErrMilestoneAlreadyApproved)
}

func TestWithdrawLeavesNoDust(t *testing.T) {
	env := test.NewFundingTestEnv(t)
	defer env.Cleanup()

	projectKey := env.NewProposal(initiator).
		Contribution(alice, 667).
		Contribution(bob, 334).
		Milestones(33, 33, 34).
		Create()
	escrow := funding.ProjectAccountID(projectKey)

	for milestoneKey := funding.MilestoneKey(0); milestoneKey < 3; milestoneKey++ {
		require.NoError(t, env.Funding.SubmitMilestone(initiator, projectKey, milestoneKey))
		require.NoError(t, env.Funding.VoteOnMilestone(alice, projectKey, milestoneKey, true))
		require.NoError(t, env.Funding.Withdraw(initiator, projectKey))

		if milestoneKey < 2 {
			project := env.Project(projectKey)
			require.LessOrEqual(t, project.WithdrawnFunds, project.RaisedFunds)
			env.AssertFreeBalance(escrow, project.RaisedFunds-project.WithdrawnFunds)
		}
	}

	env.AssertProjectDeleted(projectKey)
	env.AssertFreeBalance(escrow, 0)
	require.Equal(t, uint64(1001), env.FreeBalance(initiator)-test.ProjectDeposit+env.FreeBalance(test.FeeAccount))
}

func TestRoundsPerTickAreBounded(t *testing.T) {
	env := test.NewFundingTestEnv(t, funding.WithExpiringPerTick(1))
	defer env.Cleanup()

	first := newTwoContributorProject(env, 100)
	second := newTwoContributorProject(env, 100)

	require.NoError(t, env.Funding.SubmitMilestone(initiator, first, 0))
	require.ErrorIs(t, env.Funding.SubmitMilestone(initiator, second, 0), funding.ErrOverflow)

	// nothing of the failed submission was stored
	_, err := env.Funding.MilestoneVote(second, 0)
	require.ErrorIs(t, err, funding.ErrVotingRoundNotStarted)
	require.ErrorIs(t, env.Funding.VoteOnMilestone(alice, second, 0, true), funding.ErrVotingRoundNotStarted)

	// the next tick has room again
	env.AdvanceTicks(1)
	require.NoError(t, env.Funding.SubmitMilestone(initiator, second, 0))
}

func TestCompletedProjectsAreBounded(t *testing.T) {
	env := test.NewFundingTestEnv(t, funding.WithMaxProjectsPerAccount(1))
	defer env.Cleanup()

	first := newTwoContributorProject(env, 100)
	second := newTwoContributorProject(env, 100)

	for _, projectKey := range []funding.ProjectKey{first, second} {
		require.NoError(t, env.Funding.SubmitMilestone(initiator, projectKey, 0))
		require.NoError(t, env.Funding.VoteOnMilestone(alice, projectKey, 0, true))
	}

	require.NoError(t, env.Funding.Withdraw(initiator, first))

	balance := env.FreeBalance(initiator)
	require.ErrorIs(t, env.Funding.Withdraw(initiator, second), funding.ErrTooManyProjects)
	env.AssertFreeBalance(initiator, balance)
	env.AssertFreeBalance(funding.ProjectAccountID(second), 1000)
	require.Nil(t, env.Project(second).Milestones[0].TransferStatus)
}

func TestManagerRejectsInvalidOptions(t *testing.T) {
	env := test.NewFundingTestEnv(t)
	defer env.Cleanup()

	_, err := funding.NewManager(env.Store(), env.Clock, env.Ledger, env.Deposits, funding.WithImbueFee(101))
	require.ErrorIs(t, err, funding.ErrInvalidParam)

	_, err = funding.NewManager(env.Store(), env.Clock, env.Ledger, env.Deposits, funding.WithMilestoneVotingWindow(0))
	require.ErrorIs(t, err, funding.ErrInvalidParam)
}
