package fundingapi

import (
	"github.com/gohornet/fundgov/pkg/indexer"
	"github.com/gohornet/fundgov/pkg/model/disputes"
	"github.com/gohornet/fundgov/pkg/model/funding"
	"github.com/gohornet/fundgov/pkg/model/ledger"
	"github.com/gohornet/fundgov/pkg/model/tick"
)

// InfoResponse defines the response of a GET RouteInfo REST API call.
type InfoResponse struct {
	// The current tick of the logical clock.
	Tick tick.Index `json:"tick"`
	// The key the next project will get.
	NextProjectKey funding.ProjectKey `json:"nextProjectKey"`
	// The account receiving the protocol fee.
	FeeAccount ledger.AccountID `json:"feeAccount"`
	// Whether the funding events are recorded.
	AuditLogEnabled bool `json:"auditLogEnabled"`
}

// ProjectResponse is a project with its agreement hash in base58.
type ProjectResponse struct {
	*funding.Project
	AgreementHash string `json:"agreementHash"`
}

// ProjectsResponse defines the response of a GET RouteProjects REST API call.
type ProjectsResponse struct {
	Projects []*ProjectResponse `json:"projects"`
}

// RoundResponse is an open round of a project.
type RoundResponse struct {
	Kind         string               `json:"kind"`
	MilestoneKey funding.MilestoneKey `json:"milestoneKey"`
	Expiry       tick.Index           `json:"expiry"`
}

// RoundsResponse defines the response of a GET RouteProjectRounds REST API call.
type RoundsResponse struct {
	Rounds []*RoundResponse `json:"rounds"`
}

// MilestonesInDisputeResponse defines the response of a GET RouteProjectDisputes REST API call.
type MilestonesInDisputeResponse struct {
	MilestoneKeys []funding.MilestoneKey `json:"milestoneKeys"`
}

// DisputesResponse defines the response of a GET RouteDisputes REST API call.
type DisputesResponse struct {
	Disputes []*disputes.Dispute `json:"disputes"`
}

// CompletedProjectsResponse defines the response of a GET RouteAccountCompleted REST API call.
type CompletedProjectsResponse struct {
	ProjectKeys []funding.ProjectKey `json:"projectKeys"`
}

// EventsResponse defines the response of a GET RouteEvents REST API call.
type EventsResponse struct {
	Events []*indexer.Entry `json:"events"`
}

// ContributionRequest is a contribution of a proposal.
type ContributionRequest struct {
	Account ledger.AccountID `json:"account"`
	Value   uint64           `json:"value"`
}

// CreateProposalRequest defines the request of a POST RouteProposals REST API call.
type CreateProposalRequest struct {
	// The name of the currency, e.g. "native" or "ksm".
	Currency      string                 `json:"currency"`
	Contributions []*ContributionRequest `json:"contributions"`
	// The base58 encoded hash of the agreement.
	AgreementHash string            `json:"agreementHash"`
	Milestones    []funding.Percent `json:"milestones"`
	// One of "proposal", "brief", "grant" or "crowdfund".
	FundingKind string `json:"fundingKind"`
	// The treasury of a grant.
	Treasury string             `json:"treasury,omitempty"`
	Jury     []ledger.AccountID `json:"jury,omitempty"`
	// The initiator of the project. Only the admin account may name an account other than itself.
	Beneficiary ledger.AccountID `json:"beneficiary,omitempty"`
}

// CreateProposalResponse defines the response of a POST RouteProposals REST API call.
type CreateProposalResponse struct {
	ProjectKey funding.ProjectKey `json:"projectKey"`
}

// VoteRequest defines the request of the vote REST API calls.
type VoteRequest struct {
	Approve bool `json:"approve"`
}

// RaiseDisputeRequest defines the request of a POST RouteProjectDisputes REST API call.
type RaiseDisputeRequest struct {
	MilestoneKeys []funding.MilestoneKey `json:"milestoneKeys"`
}

// DisputeVoteRequest defines the request of a POST RouteDisputeVote REST API call.
type DisputeVoteRequest struct {
	InFavour bool `json:"inFavour"`
}

// ReserveRequest defines the request of a POST RouteReserve REST API call.
type ReserveRequest struct {
	Currency string `json:"currency"`
	Amount   uint64 `json:"amount"`
}

// MintRequest defines the request of a POST RouteAdminMint REST API call.
type MintRequest struct {
	Account  ledger.AccountID `json:"account"`
	Currency string           `json:"currency"`
	Amount   uint64           `json:"amount"`
}
