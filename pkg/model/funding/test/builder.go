package test

import (
	"github.com/stretchr/testify/require"

	"github.com/gohornet/fundgov/pkg/model/funding"
	"github.com/gohornet/fundgov/pkg/model/ledger"
)

// ProposalBuilder funds the accounts involved in a proposal and converts it into a project.
type ProposalBuilder struct {
	env     *FundingTestEnv
	request *funding.ProposalRequest
	reserve bool
}

// Contribution mints the value to the contributor and adds the contribution.
func (b *ProposalBuilder) Contribution(who ledger.AccountID, value uint64) *ProposalBuilder {
	b.env.Mint(who, value)
	b.request.Contributions[who] = &funding.Contribution{Value: value, Timestamp: b.env.Clock.CurrentIndex()}
	return b
}

// Milestones adds milestones unlocking the given percentages.
func (b *ProposalBuilder) Milestones(percentages ...funding.Percent) *ProposalBuilder {
	for _, percentage := range percentages {
		b.request.Milestones = append(b.request.Milestones, &funding.ProposedMilestone{PercentageToUnlock: percentage})
	}
	return b
}

// Jury sets the jury deciding disputes of the project.
func (b *ProposalBuilder) Jury(jury ...ledger.AccountID) *ProposalBuilder {
	b.request.Jury = jury
	return b
}

// FundingType sets the originator of the project. Briefs and crowdfunds reserve the contributions upfront.
func (b *ProposalBuilder) FundingType(fundingType funding.FundingType) *ProposalBuilder {
	b.request.FundingType = fundingType
	b.reserve = fundingType.Kind == funding.FundingKindBrief || fundingType.Kind == funding.FundingKindCrowdfund
	return b
}

func (b *ProposalBuilder) Request() *funding.ProposalRequest {
	return b.request
}

// Create converts the proposal and returns the key of the new project.
func (b *ProposalBuilder) Create() funding.ProjectKey {
	b.env.Mint(b.request.Beneficiary, ProjectDeposit)

	if b.reserve {
		for who, contribution := range b.request.Contributions {
			require.NoError(b.env.t, b.env.Ledger.Reserve(b.request.CurrencyID, who, contribution.Value))
		}
	}

	projectKey, err := b.env.Funding.ConvertToProposal(b.request)
	require.NoError(b.env.t, err)
	return projectKey
}
