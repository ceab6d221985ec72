package fundingapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/gohornet/fundgov/pkg/fundingapi"
	"github.com/gohornet/fundgov/pkg/indexer"
	"github.com/gohornet/fundgov/pkg/jwt"
	"github.com/gohornet/fundgov/pkg/metrics"
	"github.com/gohornet/fundgov/pkg/model/funding"
	"github.com/gohornet/fundgov/pkg/model/funding/test"
	"github.com/gohornet/fundgov/pkg/model/ledger"
	"github.com/gohornet/fundgov/pkg/restapi"
)

const (
	apiPrefix = "/api/funding/v1"

	admin     ledger.AccountID = "admin"
	initiator ledger.AccountID = "initiator"
	alice     ledger.AccountID = "alice"
)

type apiTestEnv struct {
	t       *testing.T
	env     *test.FundingTestEnv
	echo    *echo.Echo
	auth    *jwt.Auth
	metrics *metrics.RestAPIMetrics
}

func newAPITestEnv(t *testing.T, withIndexer bool, opts fundingapi.Options) *apiTestEnv {
	env := test.NewFundingTestEnv(t)

	auth, err := jwt.NewAuth("fundgov", time.Hour, "0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	restAPIMetrics := &metrics.RestAPIMetrics{}

	deps := fundingapi.Dependencies{
		Funding:        env.Funding,
		Disputes:       env.Disputes,
		Ledger:         env.Ledger,
		Clock:          env.Clock,
		RestAPIMetrics: restAPIMetrics,
	}

	if withIndexer {
		idx, err := indexer.NewIndexer(t.TempDir(), nil)
		require.NoError(t, err)
		idx.AttachFunding(env.Funding.Events)
		t.Cleanup(func() {
			require.NoError(t, idx.CloseDatabase())
		})
		deps.Indexer = idx
	}

	e := echo.New()
	e.HTTPErrorHandler = restapi.ErrorHandler(func(_ error, _ echo.Context) {
		restAPIMetrics.HTTPRequestErrorCounter.Inc()
	})
	fundingapi.NewServer(deps, e.Group(apiPrefix), auth, opts, nil)

	return &apiTestEnv{
		t:       t,
		env:     env,
		echo:    e,
		auth:    auth,
		metrics: restAPIMetrics,
	}
}

func (a *apiTestEnv) request(method string, route string, caller ledger.AccountID, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, apiPrefix+route, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if caller != "" {
		token, err := a.auth.IssueJWT(string(caller))
		require.NoError(a.t, err)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.echo.ServeHTTP(rec, req)
	return rec
}

func (a *apiTestEnv) requireStatus(expected int, method string, route string, caller ledger.AccountID, body interface{}) *httptest.ResponseRecorder {
	rec := a.request(method, route, caller, body)
	require.Equal(a.t, expected, rec.Code, "%s %s: %s", method, route, rec.Body.String())
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, target interface{}) {
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), target))
}

func TestProjectLifecycle(t *testing.T) {
	api := newAPITestEnv(t, true, fundingapi.Options{AdminAccount: admin})
	defer api.env.Cleanup()

	info := &fundingapi.InfoResponse{}
	decode(t, api.requireStatus(http.StatusOK, http.MethodGet, fundingapi.RouteInfo, "", nil), info)
	require.Equal(t, funding.ProjectKey(0), info.NextProjectKey)
	require.Equal(t, test.FeeAccount, info.FeeAccount)
	require.True(t, info.AuditLogEnabled)

	// only the admin mints
	mint := &fundingapi.MintRequest{Account: alice, Amount: 1000}
	api.requireStatus(http.StatusUnauthorized, http.MethodPost, fundingapi.RouteAdminMint, alice, mint)
	api.requireStatus(http.StatusNoContent, http.MethodPost, fundingapi.RouteAdminMint, admin, mint)
	api.requireStatus(http.StatusNoContent, http.MethodPost, fundingapi.RouteAdminMint, admin, &fundingapi.MintRequest{Account: initiator, Amount: test.ProjectDeposit})

	agreementHash := restapi.EncodeAgreementHash([32]byte{1, 2, 3})
	proposal := &fundingapi.CreateProposalRequest{
		Contributions: []*fundingapi.ContributionRequest{{Account: alice, Value: 1000}},
		AgreementHash: agreementHash,
		Milestones:    []funding.Percent{100},
	}
	api.requireStatus(http.StatusUnauthorized, http.MethodPost, fundingapi.RouteProposals, "", proposal)
	// alice's funds can only be committed by alice or the admin
	api.requireStatus(http.StatusForbidden, http.MethodPost, fundingapi.RouteProposals, initiator, proposal)

	proposal.Beneficiary = initiator
	created := &fundingapi.CreateProposalResponse{}
	decode(t, api.requireStatus(http.StatusCreated, http.MethodPost, fundingapi.RouteProposals, admin, proposal), created)
	require.Equal(t, funding.ProjectKey(0), created.ProjectKey)

	var project struct {
		Key           funding.ProjectKey `json:"key"`
		RaisedFunds   uint64             `json:"raisedFunds"`
		Initiator     ledger.AccountID   `json:"initiator"`
		AgreementHash string             `json:"agreementHash"`
	}
	decode(t, api.requireStatus(http.StatusOK, http.MethodGet, "/projects/0", "", nil), &project)
	require.Equal(t, uint64(1000), project.RaisedFunds)
	require.Equal(t, initiator, project.Initiator)
	require.Equal(t, agreementHash, project.AgreementHash)

	api.requireStatus(http.StatusBadRequest, http.MethodGet, "/projects/abc", "", nil)
	api.requireStatus(http.StatusNotFound, http.MethodGet, "/projects/7", "", nil)

	api.requireStatus(http.StatusForbidden, http.MethodPost, "/projects/0/milestones/0/submit", alice, nil)
	api.requireStatus(http.StatusNoContent, http.MethodPost, "/projects/0/milestones/0/submit", initiator, nil)
	api.requireStatus(http.StatusConflict, http.MethodPost, "/projects/0/milestones/0/submit", initiator, nil)

	rounds := &fundingapi.RoundsResponse{}
	decode(t, api.requireStatus(http.StatusOK, http.MethodGet, "/projects/0/rounds", "", nil), rounds)
	require.Len(t, rounds.Rounds, 1)
	require.Equal(t, funding.RoundKindVoting.String(), rounds.Rounds[0].Kind)
	require.EqualValues(t, test.MilestoneVotingWindow, rounds.Rounds[0].Expiry)

	api.requireStatus(http.StatusForbidden, http.MethodPost, "/projects/0/milestones/0/vote", initiator, &fundingapi.VoteRequest{Approve: true})
	api.requireStatus(http.StatusNoContent, http.MethodPost, "/projects/0/milestones/0/vote", alice, &fundingapi.VoteRequest{Approve: true})

	api.requireStatus(http.StatusForbidden, http.MethodPost, "/projects/0/withdraw", alice, nil)
	api.requireStatus(http.StatusNoContent, http.MethodPost, "/projects/0/withdraw", initiator, nil)
	api.requireStatus(http.StatusNotFound, http.MethodPost, "/projects/0/withdraw", initiator, nil)

	balance := &ledger.Balance{}
	decode(t, api.requireStatus(http.StatusOK, http.MethodGet, "/accounts/initiator/balances/native", "", nil), balance)
	require.Equal(t, &ledger.Balance{Free: 950 + test.ProjectDeposit}, balance)
	api.requireStatus(http.StatusBadRequest, http.MethodGet, "/accounts/initiator/balances/doge", "", nil)

	completed := &fundingapi.CompletedProjectsResponse{}
	decode(t, api.requireStatus(http.StatusOK, http.MethodGet, "/accounts/initiator/completed", "", nil), completed)
	require.Equal(t, []funding.ProjectKey{0}, completed.ProjectKeys)

	events := &fundingapi.EventsResponse{}
	decode(t, api.requireStatus(http.StatusOK, http.MethodGet, "/projects/0/events", "", nil), events)
	require.Len(t, events.Events, len(api.env.Notifications))

	decode(t, api.requireStatus(http.StatusOK, http.MethodGet, "/events?kind=projectFundsWithdrawn", "", nil), events)
	require.Len(t, events.Events, 1)
	require.Equal(t, uint64(950), events.Events[0].Amount)

	require.Positive(t, api.metrics.HTTPRequestErrorCounter.Load())
}

func TestProposalOnlyCommitsOwnFunds(t *testing.T) {
	api := newAPITestEnv(t, false, fundingapi.Options{AdminAccount: admin})
	defer api.env.Cleanup()

	const mallory ledger.AccountID = "mallory"

	api.requireStatus(http.StatusNoContent, http.MethodPost, fundingapi.RouteAdminMint, admin, &fundingapi.MintRequest{Account: alice, Amount: 1000})
	api.requireStatus(http.StatusNoContent, http.MethodPost, fundingapi.RouteAdminMint, admin, &fundingapi.MintRequest{Account: mallory, Amount: 3000 + test.ProjectDeposit})

	proposal := &fundingapi.CreateProposalRequest{
		Contributions: []*fundingapi.ContributionRequest{
			{Account: alice, Value: 1000},
			{Account: mallory, Value: 3000},
		},
		AgreementHash: restapi.EncodeAgreementHash([32]byte{7}),
		Milestones:    []funding.Percent{100},
	}
	api.requireStatus(http.StatusForbidden, http.MethodPost, fundingapi.RouteProposals, mallory, proposal)

	// naming another beneficiary is reserved to the admin as well
	proposal.Contributions = []*fundingapi.ContributionRequest{{Account: mallory, Value: 3000}}
	proposal.Beneficiary = alice
	api.requireStatus(http.StatusForbidden, http.MethodPost, fundingapi.RouteProposals, mallory, proposal)

	balance := &ledger.Balance{}
	decode(t, api.requireStatus(http.StatusOK, http.MethodGet, "/accounts/alice/balances/native", "", nil), balance)
	require.Equal(t, &ledger.Balance{Free: 1000}, balance)

	count, err := api.env.Funding.ProjectCount()
	require.NoError(t, err)
	require.Equal(t, funding.ProjectKey(0), count)

	// a self funded project is fine
	proposal.Beneficiary = ""
	created := &fundingapi.CreateProposalResponse{}
	decode(t, api.requireStatus(http.StatusCreated, http.MethodPost, fundingapi.RouteProposals, mallory, proposal), created)

	project, err := api.env.Funding.Project(created.ProjectKey)
	require.NoError(t, err)
	require.Equal(t, mallory, project.Initiator)
	require.Equal(t, uint64(3000), project.RaisedFunds)
}

func TestDisputeRoutes(t *testing.T) {
	api := newAPITestEnv(t, false, fundingapi.Options{})
	defer api.env.Cleanup()

	api.env.Mint(alice, test.DisputeDeposit)
	projectKey := api.env.NewProposal(initiator).
		Contribution(alice, 1000).
		Milestones(60, 40).
		Jury("juror").
		Create()
	require.Equal(t, funding.ProjectKey(0), projectKey)

	api.requireStatus(http.StatusBadRequest, http.MethodPost, "/projects/0/disputes", alice, &fundingapi.RaiseDisputeRequest{})
	api.requireStatus(http.StatusNoContent, http.MethodPost, "/projects/0/disputes", alice, &fundingapi.RaiseDisputeRequest{MilestoneKeys: []funding.MilestoneKey{1}})

	inDispute := &fundingapi.MilestonesInDisputeResponse{}
	decode(t, api.requireStatus(http.StatusOK, http.MethodGet, "/projects/0/disputes", "", nil), inDispute)
	require.Equal(t, []funding.MilestoneKey{1}, inDispute.MilestoneKeys)

	open := &fundingapi.DisputesResponse{}
	decode(t, api.requireStatus(http.StatusOK, http.MethodGet, fundingapi.RouteDisputes, "", nil), open)
	require.Len(t, open.Disputes, 1)
	require.Equal(t, alice, open.Disputes[0].RaisedBy)

	api.requireStatus(http.StatusOK, http.MethodGet, "/disputes/1", "", nil)
	api.requireStatus(http.StatusForbidden, http.MethodPost, "/disputes/1/vote", alice, &fundingapi.DisputeVoteRequest{InFavour: true})
	api.requireStatus(http.StatusNoContent, http.MethodPost, "/disputes/1/vote", "juror", &fundingapi.DisputeVoteRequest{InFavour: true})
	api.requireStatus(http.StatusNotFound, http.MethodGet, "/disputes/1", "", nil)

	api.requireStatus(http.StatusNoContent, http.MethodPost, "/projects/0/refund", alice, nil)

	balance := &ledger.Balance{}
	decode(t, api.requireStatus(http.StatusOK, http.MethodGet, "/accounts/alice/balances/native", "", nil), balance)
	// 400 minus 5% fee plus the returned dispute deposit
	require.Equal(t, uint64(380)+test.DisputeDeposit, balance.Free)

	// the audit log is disabled
	api.requireStatus(http.StatusNotImplemented, http.MethodGet, fundingapi.RouteEvents, "", nil)
}

func TestNoConfidenceRoutes(t *testing.T) {
	api := newAPITestEnv(t, false, fundingapi.Options{})
	defer api.env.Cleanup()

	api.env.NewProposal(initiator).
		Contribution(alice, 600).
		Contribution("bob", 400).
		Milestones(100).
		Create()

	api.requireStatus(http.StatusNotFound, http.MethodGet, "/projects/0/noconfidence", "", nil)
	api.requireStatus(http.StatusForbidden, http.MethodPost, "/projects/0/noconfidence", initiator, nil)
	api.requireStatus(http.StatusNoContent, http.MethodPost, "/projects/0/noconfidence", alice, nil)
	api.requireStatus(http.StatusConflict, http.MethodPost, "/projects/0/noconfidence", "bob", nil)

	vote := &funding.Vote{}
	decode(t, api.requireStatus(http.StatusOK, http.MethodGet, "/projects/0/noconfidence", "", nil), vote)
	require.Equal(t, uint64(600), vote.Nay)
	require.Zero(t, vote.Yay)

	api.requireStatus(http.StatusConflict, http.MethodPost, "/projects/0/noconfidence/vote", alice, &fundingapi.VoteRequest{Approve: true})
	api.requireStatus(http.StatusNoContent, http.MethodPost, "/projects/0/noconfidence/vote", "bob", &fundingapi.VoteRequest{Approve: false})

	api.env.AssertProjectDeleted(0)
	api.env.AssertFreeBalance(alice, 600)
	api.env.AssertFreeBalance("bob", 400)
	api.requireStatus(http.StatusNotFound, http.MethodGet, "/projects/0", "", nil)
}

func TestReserveIsRateLimited(t *testing.T) {
	api := newAPITestEnv(t, false, fundingapi.Options{LimitsPerSecond: 0.001, LimitsBurst: 1})
	defer api.env.Cleanup()

	api.env.Mint(alice, 100)

	reserve := &fundingapi.ReserveRequest{Amount: 40}
	api.requireStatus(http.StatusNoContent, http.MethodPost, fundingapi.RouteReserve, alice, reserve)
	api.requireStatus(http.StatusTooManyRequests, http.MethodPost, fundingapi.RouteReserve, alice, reserve)
	require.Equal(t, uint32(1), api.metrics.RateLimitedCounter.Load())

	// limits are tracked per account
	api.requireStatus(http.StatusBadRequest, http.MethodPost, fundingapi.RouteReserve, initiator, reserve)

	require.Equal(t, uint64(40), api.env.ReservedBalance(alice))
}
