package funding

import (
	"fmt"
	"math/bits"
	"sort"

	"github.com/gohornet/fundgov/pkg/model/deposits"
	"github.com/gohornet/fundgov/pkg/model/ledger"
	"github.com/gohornet/fundgov/pkg/model/tick"
)

// ProjectKey identifies a project. Keys are handed out in increasing order.
type ProjectKey uint32

// MilestoneKey identifies a milestone within its project.
type MilestoneKey uint32

// Percent is an exact percentage between 0 and 100.
type Percent uint8

// MulFloor returns p percent of amount, rounded down.
func (p Percent) MulFloor(amount uint64) uint64 {
	return amount/100*uint64(p) + amount%100*uint64(p)/100
}

// mulDiv returns a*b/c rounded down without intermediate overflow. c must be larger than zero
// and the result must fit into 64 bits, which holds for shares of a total (b <= c).
func mulDiv(a uint64, b uint64, c uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	quo, _ := bits.Div64(hi, lo, c)
	return quo
}

// RoundKind distinguishes milestone voting rounds from no-confidence rounds.
type RoundKind byte

const (
	RoundKindVoting RoundKind = iota
	RoundKindNoConfidence
)

func (k RoundKind) String() string {
	switch k {
	case RoundKindVoting:
		return "voting"
	case RoundKindNoConfidence:
		return "noConfidence"
	default:
		return fmt.Sprintf("unknown(%d)", byte(k))
	}
}

// FundingKind names the originator of a project.
type FundingKind byte

const (
	// FundingKindProposal projects are funded from the free balances of the contributors.
	FundingKindProposal FundingKind = iota
	// FundingKindBrief projects are funded from the reserved balances of the contributors.
	FundingKindBrief
	// FundingKindGrant projects wait for funding by a treasury and refund to it.
	FundingKindGrant
	// FundingKindCrowdfund projects are funded from the reserved balances of the contributors.
	FundingKindCrowdfund
)

// TreasuryOrigin is the treasury a grant came from.
type TreasuryOrigin byte

const (
	TreasuryKusama TreasuryOrigin = iota
	TreasuryImbue
	TreasuryKarura
)

// FundingType tags a project with its originator and carries what is needed to route refunds.
type FundingType struct {
	Kind     FundingKind    `json:"kind"`
	Treasury TreasuryOrigin `json:"treasury"`
}

// IsTreasuryFunded tells whether refunds of the project go back to a treasury.
func (f FundingType) IsTreasuryFunded() bool {
	return f.Kind == FundingKindGrant
}

func (f FundingType) String() string {
	switch f.Kind {
	case FundingKindProposal:
		return "proposal"
	case FundingKindBrief:
		return "brief"
	case FundingKindGrant:
		return fmt.Sprintf("grant(%s)", f.Treasury)
	case FundingKindCrowdfund:
		return "crowdfund"
	default:
		return fmt.Sprintf("unknown(%d)", f.Kind)
	}
}

// TransferKind tells how the funds of a milestone left the project.
type TransferKind byte

const (
	TransferKindWithdrawn TransferKind = iota + 1
	TransferKindRefunded
)

// TransferStatus is set once the funds of a milestone were paid out.
type TransferStatus struct {
	Kind TransferKind `json:"kind"`
	At   tick.Index   `json:"at"`
}

// Milestone is a percentage of the raised funds, unlocked by vote or refunded after a dispute.
type Milestone struct {
	ProjectKey         ProjectKey      `json:"projectKey"`
	MilestoneKey       MilestoneKey    `json:"milestoneKey"`
	PercentageToUnlock Percent         `json:"percentageToUnlock"`
	IsApproved         bool            `json:"isApproved"`
	CanRefund          bool            `json:"canRefund"`
	TransferStatus     *TransferStatus `json:"transferStatus,omitempty"`
}

// Contribution is the value a contributor put into a project.
type Contribution struct {
	Value     uint64     `json:"value"`
	Timestamp tick.Index `json:"timestamp"`
}

// Project is a funded unit of work with milestones and contributors.
type Project struct {
	Key            ProjectKey                         `json:"key"`
	AgreementHash  [32]byte                           `json:"-"`
	Milestones     map[MilestoneKey]*Milestone        `json:"milestones"`
	Contributions  map[ledger.AccountID]*Contribution `json:"contributions"`
	CurrencyID     ledger.CurrencyID                  `json:"currencyId"`
	WithdrawnFunds uint64                             `json:"withdrawnFunds"`
	RaisedFunds    uint64                             `json:"raisedFunds"`
	RefundedFunds  uint64                             `json:"refundedFunds"`
	Initiator      ledger.AccountID                   `json:"initiator"`
	CreatedOn      tick.Index                         `json:"createdOn"`
	// Cancelled is never set by the engine, a project ended by no confidence is removed instead.
	Cancelled      bool                               `json:"cancelled"`
	FundingType    FundingType                        `json:"fundingType"`
	DepositID      deposits.DepositID                 `json:"depositId"`
	Jury           []ledger.AccountID                 `json:"jury"`
}

// IsContributor tells whether the account contributed a nonzero value.
func (p *Project) IsContributor(who ledger.AccountID) bool {
	contribution, has := p.Contributions[who]
	return has && contribution.Value > 0
}

// SortedMilestoneKeys returns the milestone keys in ascending order.
func (p *Project) SortedMilestoneKeys() []MilestoneKey {
	keys := make([]MilestoneKey, 0, len(p.Milestones))
	for key := range p.Milestones {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// SortedContributors returns the contributors in ascending order.
func (p *Project) SortedContributors() []ledger.AccountID {
	contributors := make([]ledger.AccountID, 0, len(p.Contributions))
	for who := range p.Contributions {
		contributors = append(contributors, who)
	}
	sort.Slice(contributors, func(i, j int) bool { return contributors[i] < contributors[j] })
	return contributors
}

// paidOut is the value that already left the project.
func (p *Project) paidOut() uint64 {
	return p.WithdrawnFunds + p.RefundedFunds
}

// remaining is the value still held for the project.
func (p *Project) remaining() uint64 {
	return p.RaisedFunds - p.paidOut()
}

// settledAfter tells whether every milestone carries a transfer status once the given milestones are paid out.
func (p *Project) settledAfter(paying map[MilestoneKey]struct{}) bool {
	for key, milestone := range p.Milestones {
		if milestone.TransferStatus != nil {
			continue
		}
		if _, has := paying[key]; !has {
			return false
		}
	}
	return true
}

// Vote is the contribution weighted tally of a round.
type Vote struct {
	Yay        uint64 `json:"yay"`
	Nay        uint64 `json:"nay"`
	IsApproved bool   `json:"isApproved"`
}

// DisputeResult is the outcome of a dispute.
type DisputeResult byte

const (
	DisputeResultSuccess DisputeResult = iota
	DisputeResultFailure
)

func (r DisputeResult) String() string {
	if r == DisputeResultSuccess {
		return "success"
	}
	return "failure"
}

// ProposedMilestone is a milestone as proposed by an originator.
type ProposedMilestone struct {
	PercentageToUnlock Percent `json:"percentageToUnlock"`
}

// ProposalRequest is what every originator hands to ConvertToProposal.
type ProposalRequest struct {
	CurrencyID    ledger.CurrencyID
	Contributions map[ledger.AccountID]*Contribution
	AgreementHash [32]byte
	Beneficiary   ledger.AccountID
	Milestones    []*ProposedMilestone
	FundingType   FundingType
	Jury          []ledger.AccountID
}

// ProjectAccountID returns the escrow account holding the funds of a project.
func ProjectAccountID(key ProjectKey) ledger.AccountID {
	return ledger.AccountID(fmt.Sprintf("fundgov/project/%d", key))
}

func sortedMilestoneKeys(keys map[MilestoneKey]struct{}) []MilestoneKey {
	sorted := make([]MilestoneKey, 0, len(keys))
	for key := range keys {
		sorted = append(sorted, key)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted
}

func sortProjects(projects []*Project) {
	sort.Slice(projects, func(i, j int) bool { return projects[i].Key < projects[j].Key })
}
