package funding_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gohornet/fundgov/pkg/model/disputes"
	"github.com/gohornet/fundgov/pkg/model/funding"
	"github.com/gohornet/fundgov/pkg/model/funding/test"
	"github.com/gohornet/fundgov/pkg/model/ledger"
)

const (
	juror1 ledger.AccountID = "juror1"
	juror2 ledger.AccountID = "juror2"
)

func newDisputableProject(env *test.FundingTestEnv) funding.ProjectKey {
	env.Mint(alice, test.DisputeDeposit)
	return env.NewProposal(initiator).
		Contribution(alice, 600).
		Contribution(bob, 400).
		Milestones(50, 50).
		Jury(juror1, juror2).
		Create()
}

func TestDisputeOnlyBlocksDisputedMilestones(t *testing.T) {
	env := test.NewFundingTestEnv(t)
	defer env.Cleanup()

	projectKey := newDisputableProject(env)
	escrow := funding.ProjectAccountID(projectKey)

	require.ErrorIs(t, env.Funding.RaiseDispute(mallory, projectKey, []funding.MilestoneKey{0}), funding.ErrOnlyContributorsCanRaiseDispute)
	require.ErrorIs(t, env.Funding.RaiseDispute(alice, projectKey, []funding.MilestoneKey{2}), funding.ErrMilestoneDoesNotExist)

	require.NoError(t, env.Funding.RaiseDispute(alice, projectKey, []funding.MilestoneKey{0}))
	require.Equal(t, test.DisputeDeposit, env.ReservedBalance(alice))

	inDispute, err := env.Funding.MilestonesInDispute(projectKey)
	require.NoError(t, err)
	require.Equal(t, []funding.MilestoneKey{0}, inDispute)

	require.ErrorIs(t, env.Funding.RaiseDispute(bob, projectKey, []funding.MilestoneKey{1, 0}), funding.ErrMilestonesAlreadyInDispute)

	// the other milestone stays votable
	require.NoError(t, env.Funding.SubmitMilestone(initiator, projectKey, 1))
	require.NoError(t, env.Funding.VoteOnMilestone(bob, projectKey, 1, true))

	require.ErrorIs(t, env.Funding.SubmitMilestone(initiator, projectKey, 0), funding.ErrMilestonesAlreadyInDispute)
	require.ErrorIs(t, env.Funding.VoteOnMilestone(bob, projectKey, 0, true), funding.ErrMilestonesAlreadyInDispute)

	open, err := env.Disputes.Disputes()
	require.NoError(t, err)
	require.Len(t, open, 1)
	disputeID := open[0].ID

	require.ErrorIs(t, env.Disputes.Vote(alice, disputeID, true), disputes.ErrNotAJuryAccount)
	require.NoError(t, env.Disputes.Vote(juror1, disputeID, true))
	require.ErrorIs(t, env.Disputes.Vote(juror1, disputeID, false), disputes.ErrAlreadyVoted)
	require.NoError(t, env.Disputes.Vote(juror2, disputeID, true))

	// the last vote completed the dispute
	_, err = env.Disputes.Dispute(disputeID)
	require.ErrorIs(t, err, disputes.ErrDisputeDoesNotExist)
	require.Zero(t, env.ReservedBalance(alice))

	project := env.Project(projectKey)
	require.True(t, project.Milestones[0].CanRefund)
	require.False(t, project.Milestones[1].CanRefund)

	inDispute, err = env.Funding.MilestonesInDispute(projectKey)
	require.NoError(t, err)
	require.Empty(t, inDispute)

	completed := env.NotificationsOfKind(funding.NotificationDisputeCompleted)
	require.Len(t, completed, 1)
	require.Equal(t, funding.DisputeResultSuccess.String(), completed[0].Result)

	require.ErrorIs(t, env.Funding.Refund(mallory, projectKey), funding.ErrOnlyContributorsCanInitiateRefund)
	require.NoError(t, env.Funding.Refund(bob, projectKey))

	// 500 minus 5% fee, split 60:40
	env.AssertFreeBalance(alice, test.DisputeDeposit+285)
	env.AssertFreeBalance(bob, 190)
	env.AssertFreeBalance(test.FeeAccount, 25)
	env.AssertFreeBalance(escrow, 500)

	project = env.Project(projectKey)
	require.Equal(t, uint64(500), project.RefundedFunds)
	require.Equal(t, funding.TransferKindRefunded, project.Milestones[0].TransferStatus.Kind)

	// nothing is left to refund
	require.ErrorIs(t, env.Funding.Refund(bob, projectKey), funding.ErrNoAvailableFundsToWithdraw)
	require.ErrorIs(t, env.Funding.SubmitMilestone(initiator, projectKey, 0), funding.ErrMilestoneAlreadyTransferred)

	// the remaining milestone completes the project
	require.NoError(t, env.Funding.VoteOnMilestone(alice, projectKey, 1, true))
	require.NoError(t, env.Funding.Withdraw(initiator, projectKey))

	env.AssertProjectDeleted(projectKey)
	env.AssertFreeBalance(escrow, 0)
	env.AssertFreeBalance(initiator, 475+test.ProjectDeposit)
	env.AssertFreeBalance(test.FeeAccount, 50)
}

func TestFailedDisputeReleasesMilestones(t *testing.T) {
	env := test.NewFundingTestEnv(t)
	defer env.Cleanup()

	projectKey := newDisputableProject(env)

	require.NoError(t, env.Funding.RaiseDispute(alice, projectKey, []funding.MilestoneKey{0, 1}))

	open, err := env.Disputes.Disputes()
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.Equal(t, []ledger.AccountID{juror1, juror2}, open[0].Jury)

	require.NoError(t, env.Disputes.Vote(juror1, open[0].ID, true))
	require.NoError(t, env.Disputes.Vote(juror2, open[0].ID, false))

	completed := env.NotificationsOfKind(funding.NotificationDisputeCompleted)
	require.Len(t, completed, 1)
	require.Equal(t, funding.DisputeResultFailure.String(), completed[0].Result)
	require.Equal(t, []funding.MilestoneKey{0, 1}, completed[0].MilestoneKeys)

	project := env.Project(projectKey)
	for _, milestone := range project.Milestones {
		require.False(t, milestone.CanRefund)
	}
	env.AssertFreeBalance(alice, test.DisputeDeposit)
	require.ErrorIs(t, env.Funding.Refund(alice, projectKey), funding.ErrNoAvailableFundsToWithdraw)

	// the milestones can be voted on again
	require.NoError(t, env.Funding.SubmitMilestone(initiator, projectKey, 0))
	require.NoError(t, env.Funding.VoteOnMilestone(alice, projectKey, 0, true))
	require.True(t, env.Project(projectKey).Milestones[0].IsApproved)
}

func TestExpiredDisputeIsDecidedByCastVotes(t *testing.T) {
	env := test.NewFundingTestEnv(t)
	defer env.Cleanup()

	projectKey := newDisputableProject(env)

	require.NoError(t, env.Funding.RaiseDispute(alice, projectKey, []funding.MilestoneKey{1}))

	open, err := env.Disputes.Disputes()
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.NoError(t, env.Disputes.Vote(juror2, open[0].ID, true))

	env.AdvanceTicks(int(test.DisputeVotingWindow) - 1)
	inDispute, err := env.Funding.MilestonesInDispute(projectKey)
	require.NoError(t, err)
	require.Equal(t, []funding.MilestoneKey{1}, inDispute)

	env.AdvanceTicks(1)
	inDispute, err = env.Funding.MilestonesInDispute(projectKey)
	require.NoError(t, err)
	require.Empty(t, inDispute)

	open, err = env.Disputes.Disputes()
	require.NoError(t, err)
	require.Empty(t, open)

	env.AssertFreeBalance(alice, test.DisputeDeposit)
	require.True(t, env.Project(projectKey).Milestones[1].CanRefund)
}

func TestRaiseDisputeValidation(t *testing.T) {
	env := test.NewFundingTestEnv(t)
	defer env.Cleanup()

	projectKey := newDisputableProject(env)

	require.ErrorIs(t, env.Funding.RaiseDispute(alice, projectKey, nil), funding.ErrInvalidParam)
	require.ErrorIs(t, env.Funding.RaiseDispute(alice, projectKey+1, []funding.MilestoneKey{0}), funding.ErrProjectDoesNotExist)

	require.NoError(t, env.Funding.SubmitMilestone(initiator, projectKey, 0))
	require.NoError(t, env.Funding.VoteOnMilestone(alice, projectKey, 0, true))
	require.ErrorIs(t, env.Funding.RaiseDispute(alice, projectKey, []funding.MilestoneKey{0}), funding.ErrCannotRaiseDisputeOnApprovedMilestone)

	// the deposit could not be taken
	require.NoError(t, env.Ledger.Transfer(ledger.CurrencyNative, alice, mallory, test.DisputeDeposit))
	require.Error(t, env.Funding.RaiseDispute(alice, projectKey, []funding.MilestoneKey{1}))

	inDispute, err := env.Funding.MilestonesInDispute(projectKey)
	require.NoError(t, err)
	require.Empty(t, inDispute)
}

func TestRaiseDisputeWithoutDisputeSubsystem(t *testing.T) {
	env := test.NewFundingTestEnv(t, funding.WithDisputeRaiser(nil))
	defer env.Cleanup()

	projectKey := newDisputableProject(env)
	require.ErrorIs(t, env.Funding.RaiseDispute(alice, projectKey, []funding.MilestoneKey{0}), funding.ErrNoDisputeRaiser)
}

func TestRefundOfGrantGoesToTreasury(t *testing.T) {
	env := test.NewFundingTestEnv(t)
	defer env.Cleanup()

	env.Mint(alice, test.DisputeDeposit)
	projectKey := env.NewProposal(initiator).
		Contribution(test.KusamaTreasury, 600).
		Contribution(alice, 400).
		Milestones(50, 50).
		Jury(juror1, juror2).
		FundingType(funding.FundingType{Kind: funding.FundingKindGrant, Treasury: funding.TreasuryKusama}).
		Create()
	escrow := funding.ProjectAccountID(projectKey)

	// grants are paid from the free balance of the treasury
	env.AssertFreeBalance(test.KusamaTreasury, 0)
	env.AssertFreeBalance(escrow, 1000)

	require.NoError(t, env.Funding.RaiseDispute(alice, projectKey, []funding.MilestoneKey{0}))

	open, err := env.Disputes.Disputes()
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.NoError(t, env.Disputes.Vote(juror1, open[0].ID, true))
	require.NoError(t, env.Disputes.Vote(juror2, open[0].ID, true))
	require.True(t, env.Project(projectKey).Milestones[0].CanRefund)

	require.NoError(t, env.Funding.Refund(alice, projectKey))

	// 500 minus 5% fee, all of it back to the treasury
	env.AssertFreeBalance(test.KusamaTreasury, 475)
	env.AssertFreeBalance(test.FeeAccount, 25)
	env.AssertFreeBalance(escrow, 500)
	env.AssertFreeBalance(alice, test.DisputeDeposit)

	project := env.Project(projectKey)
	require.Equal(t, uint64(500), project.RefundedFunds)
	require.Equal(t, funding.TransferKindRefunded, project.Milestones[0].TransferStatus.Kind)

	refunded := env.NotificationsOfKind(funding.NotificationProjectRefunded)
	require.Len(t, refunded, 1)
	require.Equal(t, uint64(500), refunded[0].Amount)

	require.ErrorIs(t, env.Funding.Refund(alice, projectKey), funding.ErrNoAvailableFundsToWithdraw)
}
