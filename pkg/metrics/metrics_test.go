package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/gohornet/fundgov/pkg/metrics"
	"github.com/gohornet/fundgov/pkg/model/funding"
	"github.com/gohornet/fundgov/pkg/model/funding/test"
	"github.com/gohornet/fundgov/pkg/model/ledger"
)

const (
	initiator ledger.AccountID = "initiator"
	alice     ledger.AccountID = "alice"
	bob       ledger.AccountID = "bob"
	juror     ledger.AccountID = "juror"
)

type fixedSize int64

func (s fixedSize) Size() int64 {
	return int64(s)
}

func newMeteredEnv(t *testing.T) (*test.FundingTestEnv, *metrics.FundingMetrics) {
	env := test.NewFundingTestEnv(t)

	fundingMetrics := &metrics.FundingMetrics{}
	fundingMetrics.AttachFunding(env.Funding.Events)
	fundingMetrics.AttachDisputes(env.Disputes.Events)

	return env, fundingMetrics
}

func TestFundingMetrics(t *testing.T) {
	env, m := newMeteredEnv(t)
	defer env.Cleanup()

	projectKey := env.NewProposal(initiator).
		Contribution(alice, 600).
		Contribution(bob, 400).
		Milestones(50, 50).
		Jury(juror).
		Create()

	require.NoError(t, env.Funding.SubmitMilestone(initiator, projectKey, 0))
	require.NoError(t, env.Funding.VoteOnMilestone(alice, projectKey, 0, true))
	require.NoError(t, env.Funding.Withdraw(initiator, projectKey))

	env.Mint(bob, test.DisputeDeposit)
	require.NoError(t, env.Funding.RaiseDispute(bob, projectKey, []funding.MilestoneKey{1}))

	open, err := env.Disputes.Disputes()
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.NoError(t, env.Disputes.Vote(juror, open[0].ID, true))
	require.NoError(t, env.Funding.Refund(alice, projectKey))

	require.Equal(t, uint32(1), m.ProjectsCreated.Load())
	require.Equal(t, uint32(1), m.MilestonesSubmitted.Load())
	require.Equal(t, uint32(1), m.MilestonesApproved.Load())
	require.Equal(t, uint32(1), m.VotesSubmitted.Load())
	require.Equal(t, uint64(475), m.WithdrawnFunds.Load())
	require.Equal(t, uint64(500), m.RefundedFunds.Load())
	require.Equal(t, uint32(1), m.DisputesRaised.Load())
	require.Equal(t, uint32(1), m.DisputeVotes.Load())
	require.Equal(t, uint32(1), m.DisputesSucceeded.Load())
	require.Zero(t, m.DisputesFailed.Load())
}

func TestPrometheusCollector(t *testing.T) {
	env, m := newMeteredEnv(t)
	defer env.Cleanup()

	env.NewProposal(initiator).
		Contribution(alice, 600).
		Milestones(100).
		Create()

	restAPIMetrics := &metrics.RestAPIMetrics{}
	restAPIMetrics.HTTPRequestErrorCounter.Add(3)

	collector := metrics.NewPrometheusCollector(m, restAPIMetrics, fixedSize(4096), env.Funding, false)

	e := echo.New()
	collector.InstrumentEcho(e, "restapi")
	e.GET("/metrics", collector.Handler())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	require.Contains(t, body, "fundgov_funding_projects_created 1")
	require.Contains(t, body, "fundgov_funding_projects 1")
	require.Contains(t, body, "fundgov_restapi_http_request_errors 3")
	require.Contains(t, body, "fundgov_database_size_bytes 4096")
	require.Contains(t, body, `fundgov_funding_milestones{state="approved"} 0`)
}
