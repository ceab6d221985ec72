package fundingapi

import (
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/gohornet/fundgov/pkg/indexer"
	"github.com/gohornet/fundgov/pkg/model/funding"
	"github.com/gohornet/fundgov/pkg/model/ledger"
	"github.com/gohornet/fundgov/pkg/restapi"
)

func projectResponse(project *funding.Project) *ProjectResponse {
	return &ProjectResponse{
		Project:       project,
		AgreementHash: restapi.EncodeAgreementHash(project.AgreementHash),
	}
}

func parseFundingType(kind string, treasury string) (funding.FundingType, error) {
	var fundingType funding.FundingType

	switch strings.ToLower(kind) {
	case "", "proposal":
		fundingType.Kind = funding.FundingKindProposal
	case "brief":
		fundingType.Kind = funding.FundingKindBrief
	case "crowdfund":
		fundingType.Kind = funding.FundingKindCrowdfund
	case "grant":
		origin, err := funding.ParseTreasuryOrigin(treasury)
		if err != nil {
			return fundingType, errors.WithMessagef(restapi.ErrInvalidParameter, "invalid treasury: %s", err)
		}
		fundingType.Kind = funding.FundingKindGrant
		fundingType.Treasury = origin
	default:
		return fundingType, errors.WithMessagef(restapi.ErrInvalidParameter, "unknown funding kind: %s", kind)
	}

	return fundingType, nil
}

func (s *Server) getInfo(_ echo.Context) (*InfoResponse, error) {
	nextProjectKey, err := s.deps.Funding.ProjectCount()
	if err != nil {
		return nil, err
	}

	return &InfoResponse{
		Tick:            s.deps.Clock.CurrentIndex(),
		NextProjectKey:  nextProjectKey,
		FeeAccount:      s.deps.Funding.FeeAccount(),
		AuditLogEnabled: s.deps.Indexer != nil,
	}, nil
}

func (s *Server) getProjects(c echo.Context) (*ProjectsResponse, error) {
	limit, err := restapi.ParseLimitQueryParam(c, s.opts.MaxResults)
	if err != nil {
		return nil, err
	}

	projects, err := s.deps.Funding.Projects()
	if err != nil {
		return nil, err
	}
	if len(projects) > limit {
		projects = projects[:limit]
	}

	resp := &ProjectsResponse{Projects: make([]*ProjectResponse, 0, len(projects))}
	for _, project := range projects {
		resp.Projects = append(resp.Projects, projectResponse(project))
	}
	return resp, nil
}

func (s *Server) getProject(c echo.Context) (*ProjectResponse, error) {
	projectKey, err := restapi.ParseProjectKeyParam(c)
	if err != nil {
		return nil, err
	}

	project, err := s.deps.Funding.Project(projectKey)
	if err != nil {
		return nil, err
	}
	return projectResponse(project), nil
}

func (s *Server) getProjectRounds(c echo.Context) (*RoundsResponse, error) {
	projectKey, err := restapi.ParseProjectKeyParam(c)
	if err != nil {
		return nil, err
	}

	rounds, err := s.deps.Funding.OpenRounds(projectKey)
	if err != nil {
		return nil, err
	}

	resp := &RoundsResponse{Rounds: make([]*RoundResponse, 0, len(rounds))}
	for round, expiry := range rounds {
		resp.Rounds = append(resp.Rounds, &RoundResponse{
			Kind:         round.Kind.String(),
			MilestoneKey: round.MilestoneKey,
			Expiry:       expiry,
		})
	}
	sort.Slice(resp.Rounds, func(i, j int) bool {
		if resp.Rounds[i].Kind != resp.Rounds[j].Kind {
			return resp.Rounds[i].Kind > resp.Rounds[j].Kind
		}
		return resp.Rounds[i].MilestoneKey < resp.Rounds[j].MilestoneKey
	})
	return resp, nil
}

func (s *Server) getProjectDisputes(c echo.Context) (*MilestonesInDisputeResponse, error) {
	projectKey, err := restapi.ParseProjectKeyParam(c)
	if err != nil {
		return nil, err
	}

	milestoneKeys, err := s.deps.Funding.MilestonesInDispute(projectKey)
	if err != nil {
		return nil, err
	}
	return &MilestonesInDisputeResponse{MilestoneKeys: milestoneKeys}, nil
}

func (s *Server) getMilestoneVote(c echo.Context) (*funding.Vote, error) {
	projectKey, err := restapi.ParseProjectKeyParam(c)
	if err != nil {
		return nil, err
	}
	milestoneKey, err := restapi.ParseMilestoneKeyParam(c)
	if err != nil {
		return nil, err
	}

	return s.deps.Funding.MilestoneVote(projectKey, milestoneKey)
}

func (s *Server) getNoConfidenceVote(c echo.Context) (*funding.Vote, error) {
	projectKey, err := restapi.ParseProjectKeyParam(c)
	if err != nil {
		return nil, err
	}

	return s.deps.Funding.NoConfidenceVote(projectKey)
}

func (s *Server) getCompletedProjects(c echo.Context) (*CompletedProjectsResponse, error) {
	accountID, err := restapi.ParseAccountIDParam(c)
	if err != nil {
		return nil, err
	}

	projectKeys, err := s.deps.Funding.CompletedProjects(accountID)
	if err != nil {
		return nil, err
	}
	if projectKeys == nil {
		projectKeys = []funding.ProjectKey{}
	}
	return &CompletedProjectsResponse{ProjectKeys: projectKeys}, nil
}

func (s *Server) queryEvents(c echo.Context, filter *indexer.Filter) (*EventsResponse, error) {
	if s.deps.Indexer == nil {
		return nil, errors.WithMessage(restapi.ErrServiceNotImplemented, "audit log is disabled")
	}

	limit, err := restapi.ParseLimitQueryParam(c, s.opts.MaxResults)
	if err != nil {
		return nil, err
	}
	filter.Limit = limit
	filter.Kind = funding.NotificationKind(c.QueryParam(restapi.QueryParameterKind))

	entries, err := s.deps.Indexer.Events(filter)
	if err != nil {
		return nil, err
	}
	return &EventsResponse{Events: entries}, nil
}

func (s *Server) getProjectEvents(c echo.Context) (*EventsResponse, error) {
	projectKey, err := restapi.ParseProjectKeyParam(c)
	if err != nil {
		return nil, err
	}
	return s.queryEvents(c, &indexer.Filter{ProjectKey: &projectKey})
}

func (s *Server) getEvents(c echo.Context) (*EventsResponse, error) {
	return s.queryEvents(c, &indexer.Filter{})
}

func (s *Server) createProposal(c echo.Context) (*CreateProposalResponse, error) {
	caller, err := s.caller(c)
	if err != nil {
		return nil, err
	}

	request := &CreateProposalRequest{}
	if err := c.Bind(request); err != nil {
		return nil, errors.WithMessagef(restapi.ErrInvalidParameter, "invalid request! Error: %s", err)
	}

	currency, err := parseCurrency(request.Currency)
	if err != nil {
		return nil, err
	}

	agreementHash, err := restapi.DecodeAgreementHash(request.AgreementHash)
	if err != nil {
		return nil, err
	}

	fundingType, err := parseFundingType(request.FundingKind, request.Treasury)
	if err != nil {
		return nil, err
	}

	// the admin originates projects on behalf of other accounts, everybody else only funds their own
	originator := s.isAdmin(caller)
	beneficiary := caller
	if request.Beneficiary != "" && request.Beneficiary != caller {
		if !originator {
			return nil, errors.WithMessagef(restapi.ErrForbidden, "%s cannot create a project for %s", caller, request.Beneficiary)
		}
		beneficiary = request.Beneficiary
	}

	now := s.deps.Clock.CurrentIndex()
	contributions := make(map[ledger.AccountID]*funding.Contribution, len(request.Contributions))
	for _, contribution := range request.Contributions {
		if contribution == nil || contribution.Account == "" {
			return nil, errors.WithMessage(restapi.ErrInvalidParameter, "contribution without account")
		}
		if _, has := contributions[contribution.Account]; has {
			return nil, errors.WithMessagef(restapi.ErrInvalidParameter, "duplicate contribution of %s", contribution.Account)
		}
		if contribution.Account != caller && !originator {
			return nil, errors.WithMessagef(restapi.ErrForbidden, "%s cannot contribute funds of %s", caller, contribution.Account)
		}
		contributions[contribution.Account] = &funding.Contribution{Value: contribution.Value, Timestamp: now}
	}

	milestones := make([]*funding.ProposedMilestone, 0, len(request.Milestones))
	for _, percentage := range request.Milestones {
		milestones = append(milestones, &funding.ProposedMilestone{PercentageToUnlock: percentage})
	}

	projectKey, err := s.deps.Funding.ConvertToProposal(&funding.ProposalRequest{
		CurrencyID:    currency,
		Contributions: contributions,
		AgreementHash: agreementHash,
		Beneficiary:   beneficiary,
		Milestones:    milestones,
		FundingType:   fundingType,
		Jury:          request.Jury,
	})
	if err != nil {
		return nil, err
	}

	s.LogInfof("project %d created by %s", projectKey, caller)
	return &CreateProposalResponse{ProjectKey: projectKey}, nil
}

func (s *Server) submitMilestone(c echo.Context) error {
	caller, err := s.caller(c)
	if err != nil {
		return err
	}
	projectKey, err := restapi.ParseProjectKeyParam(c)
	if err != nil {
		return err
	}
	milestoneKey, err := restapi.ParseMilestoneKeyParam(c)
	if err != nil {
		return err
	}

	return s.deps.Funding.SubmitMilestone(caller, projectKey, milestoneKey)
}

func (s *Server) voteOnMilestone(c echo.Context) error {
	caller, err := s.caller(c)
	if err != nil {
		return err
	}
	projectKey, err := restapi.ParseProjectKeyParam(c)
	if err != nil {
		return err
	}
	milestoneKey, err := restapi.ParseMilestoneKeyParam(c)
	if err != nil {
		return err
	}

	request := &VoteRequest{}
	if err := c.Bind(request); err != nil {
		return errors.WithMessagef(restapi.ErrInvalidParameter, "invalid request! Error: %s", err)
	}

	return s.deps.Funding.VoteOnMilestone(caller, projectKey, milestoneKey, request.Approve)
}

func (s *Server) withdraw(c echo.Context) error {
	caller, err := s.caller(c)
	if err != nil {
		return err
	}
	projectKey, err := restapi.ParseProjectKeyParam(c)
	if err != nil {
		return err
	}

	return s.deps.Funding.Withdraw(caller, projectKey)
}

func (s *Server) refund(c echo.Context) error {
	caller, err := s.caller(c)
	if err != nil {
		return err
	}
	projectKey, err := restapi.ParseProjectKeyParam(c)
	if err != nil {
		return err
	}

	return s.deps.Funding.Refund(caller, projectKey)
}

func (s *Server) raiseNoConfidence(c echo.Context) error {
	caller, err := s.caller(c)
	if err != nil {
		return err
	}
	projectKey, err := restapi.ParseProjectKeyParam(c)
	if err != nil {
		return err
	}

	return s.deps.Funding.RaiseNoConfidenceRound(caller, projectKey)
}

func (s *Server) voteOnNoConfidence(c echo.Context) error {
	caller, err := s.caller(c)
	if err != nil {
		return err
	}
	projectKey, err := restapi.ParseProjectKeyParam(c)
	if err != nil {
		return err
	}

	request := &VoteRequest{}
	if err := c.Bind(request); err != nil {
		return errors.WithMessagef(restapi.ErrInvalidParameter, "invalid request! Error: %s", err)
	}

	// approving keeps the confidence in the project
	return s.deps.Funding.VoteOnNoConfidenceRound(caller, projectKey, request.Approve)
}

func (s *Server) raiseDispute(c echo.Context) error {
	caller, err := s.caller(c)
	if err != nil {
		return err
	}
	projectKey, err := restapi.ParseProjectKeyParam(c)
	if err != nil {
		return err
	}

	request := &RaiseDisputeRequest{}
	if err := c.Bind(request); err != nil {
		return errors.WithMessagef(restapi.ErrInvalidParameter, "invalid request! Error: %s", err)
	}

	return s.deps.Funding.RaiseDispute(caller, projectKey, request.MilestoneKeys)
}
