package funding_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gohornet/fundgov/pkg/model/funding"
	"github.com/gohornet/fundgov/pkg/model/funding/test"
	"github.com/gohornet/fundgov/pkg/model/ledger"
)

func TestConvertToProposal(t *testing.T) {
	env := test.NewFundingTestEnv(t)
	defer env.Cleanup()

	builder := env.NewProposal(initiator).
		Contribution(alice, 600).
		Contribution(bob, 400).
		Milestones(20, 30, 50).
		Jury(carol)
	builder.Request().Contributions[carol] = &funding.Contribution{}

	projectKey := builder.Create()
	require.Equal(t, funding.ProjectKey(0), projectKey)

	project := env.Project(projectKey)
	require.Equal(t, initiator, project.Initiator)
	require.Equal(t, uint64(1000), project.RaisedFunds)
	require.Len(t, project.Milestones, 3)
	require.Equal(t, funding.Percent(50), project.Milestones[2].PercentageToUnlock)
	require.Equal(t, []ledger.AccountID{carol}, project.Jury)
	require.NotContains(t, project.Contributions, carol, "empty contributions are dropped")
	require.Len(t, project.Contributions, 2)

	env.AssertFreeBalance(funding.ProjectAccountID(projectKey), 1000)
	env.AssertFreeBalance(alice, 0)
	require.Equal(t, test.ProjectDeposit, env.ReservedBalance(initiator))

	count, err := env.Funding.ProjectCount()
	require.NoError(t, err)
	require.Equal(t, funding.ProjectKey(1), count)

	created := env.NotificationsOfKind(funding.NotificationProjectCreated)
	require.Len(t, created, 1)
	require.Equal(t, uint64(1000), created[0].Amount)
	require.Equal(t, initiator, created[0].Account)

	secondKey := env.NewProposal(bob).Contribution(carol, 10).Milestones(100).Create()
	require.Equal(t, funding.ProjectKey(1), secondKey)

	projects, err := env.Funding.Projects()
	require.NoError(t, err)
	require.Len(t, projects, 2)
	require.Equal(t, projectKey, projects[0].Key)
	require.Equal(t, secondKey, projects[1].Key)
}

func TestConvertBriefUsesReservedFunds(t *testing.T) {
	env := test.NewFundingTestEnv(t)
	defer env.Cleanup()

	projectKey := env.NewProposal(initiator).
		Contribution(alice, 700).
		Contribution(bob, 300).
		Milestones(100).
		FundingType(funding.FundingType{Kind: funding.FundingKindBrief}).
		Create()

	require.Zero(t, env.ReservedBalance(alice))
	require.Zero(t, env.ReservedBalance(bob))
	env.AssertFreeBalance(funding.ProjectAccountID(projectKey), 1000)
	require.Equal(t, funding.FundingKindBrief, env.Project(projectKey).FundingType.Kind)
}

func TestConvertToProposalValidation(t *testing.T) {
	env := test.NewFundingTestEnv(t, funding.WithMaxMilestonesPerProject(3))
	defer env.Cleanup()

	env.Mint(initiator, test.ProjectDeposit)

	tests := []struct {
		name     string
		build    func(b *test.ProposalBuilder)
		expected error
	}{
		{
			name:     "percentages below 100",
			build:    func(b *test.ProposalBuilder) { b.Contribution(alice, 10).Milestones(50, 49) },
			expected: funding.ErrMilestonePercentagesInvalid,
		},
		{
			name:     "percentages above 100",
			build:    func(b *test.ProposalBuilder) { b.Contribution(alice, 10).Milestones(60, 50) },
			expected: funding.ErrMilestonePercentagesInvalid,
		},
		{
			name:     "no milestones",
			build:    func(b *test.ProposalBuilder) { b.Contribution(alice, 10) },
			expected: funding.ErrMilestonePercentagesInvalid,
		},
		{
			name:     "too many milestones",
			build:    func(b *test.ProposalBuilder) { b.Contribution(alice, 10).Milestones(25, 25, 25, 25) },
			expected: funding.ErrTooManyMilestones,
		},
		{
			name:     "no contributions",
			build:    func(b *test.ProposalBuilder) { b.Milestones(100) },
			expected: funding.ErrNoContributions,
		},
		{
			name: "empty beneficiary",
			build: func(b *test.ProposalBuilder) {
				b.Contribution(alice, 10).Milestones(100)
				b.Request().Beneficiary = ""
			},
			expected: funding.ErrInvalidParam,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			builder := env.NewProposal(initiator)
			tt.build(builder)
			_, err := env.Funding.ConvertToProposal(builder.Request())
			require.ErrorIs(t, err, tt.expected)
		})
	}

	count, err := env.Funding.ProjectCount()
	require.NoError(t, err)
	require.Zero(t, count)
	require.Zero(t, env.ReservedBalance(initiator))
	require.Empty(t, env.NotificationsOfKind(funding.NotificationProjectCreated))
}

func TestFailedFundingReturnsDeposit(t *testing.T) {
	env := test.NewFundingTestEnv(t)
	defer env.Cleanup()

	env.Mint(initiator, test.ProjectDeposit)

	request := env.NewProposal(initiator).Contribution(alice, 500).Milestones(100).Request()
	// bob never got the funds he pledged
	request.Contributions[bob] = &funding.Contribution{Value: 500}

	_, err := env.Funding.ConvertToProposal(request)
	require.ErrorIs(t, err, funding.ErrProjectFundingFailed)

	env.AssertFreeBalance(initiator, test.ProjectDeposit)
	require.Zero(t, env.ReservedBalance(initiator))
	env.AssertFreeBalance(alice, 500)
	env.AssertFreeBalance(funding.ProjectAccountID(0), 0)

	count, err := env.Funding.ProjectCount()
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestConvertToProposalRequiresDeposit(t *testing.T) {
	env := test.NewFundingTestEnv(t)
	defer env.Cleanup()

	request := env.NewProposal(initiator).Contribution(alice, 500).Milestones(100).Request()
	_, err := env.Funding.ConvertToProposal(request)
	require.Error(t, err)
	require.NotErrorIs(t, err, funding.ErrProjectFundingFailed)

	env.AssertFreeBalance(alice, 500)
}
