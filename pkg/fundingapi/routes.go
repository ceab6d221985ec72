package fundingapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gohornet/fundgov/pkg/jwt"
	"github.com/gohornet/fundgov/pkg/restapi"
)

const (
	// RouteInfo is the route to get the state of the engine.
	// GET returns the current tick, the next project key and the fee account.
	RouteInfo = "/info"

	// RouteProjects is the route to list the stored projects.
	// GET returns the projects in key order, limited by the limit query parameter.
	RouteProjects = "/projects"

	// RouteProject is the route to access a single project.
	// GET returns the project with its milestones and contributions.
	RouteProject = "/projects/:" + restapi.ParameterProjectKey

	// RouteProjectRounds is the route to get the open rounds of a project.
	// GET returns the open rounds with their expiry tick.
	RouteProjectRounds = "/projects/:" + restapi.ParameterProjectKey + "/rounds"

	// RouteProjectDisputes is the route to disputes on milestones of a project.
	// GET returns the milestones currently in dispute.
	// POST raises a dispute on the given milestones.
	RouteProjectDisputes = "/projects/:" + restapi.ParameterProjectKey + "/disputes"

	// RouteProjectEvents is the route to the recorded history of a project.
	// GET returns the recorded funding events of the project, also after the project was removed.
	RouteProjectEvents = "/projects/:" + restapi.ParameterProjectKey + "/events"

	// RouteProjectWithdraw is the route to withdraw the approved funds of a project.
	// POST pays the approved, not yet withdrawn milestones to the initiator.
	RouteProjectWithdraw = "/projects/:" + restapi.ParameterProjectKey + "/withdraw"

	// RouteProjectRefund is the route to refund disputed milestones.
	// POST pays the refundable milestones back to the contributors or the treasury.
	RouteProjectRefund = "/projects/:" + restapi.ParameterProjectKey + "/refund"

	// RouteProjectNoConfidence is the route to the vote of no confidence of a project.
	// GET returns the tally.
	// POST raises the round, the caller votes against the project.
	RouteProjectNoConfidence = "/projects/:" + restapi.ParameterProjectKey + "/noconfidence"

	// RouteProjectNoConfidenceVote is the route to vote in the no-confidence round.
	// POST casts the vote of the caller.
	RouteProjectNoConfidenceVote = "/projects/:" + restapi.ParameterProjectKey + "/noconfidence/vote"

	// RouteMilestoneSubmit is the route to submit a milestone for approval.
	// POST opens a voting round for the milestone.
	RouteMilestoneSubmit = "/projects/:" + restapi.ParameterProjectKey + "/milestones/:" + restapi.ParameterMilestoneKey + "/submit"

	// RouteMilestoneVote is the route to the voting round of a milestone.
	// GET returns the tally of the last round.
	// POST casts the vote of the caller.
	RouteMilestoneVote = "/projects/:" + restapi.ParameterProjectKey + "/milestones/:" + restapi.ParameterMilestoneKey + "/vote"

	// RouteProposals is the route to convert a proposal into a project.
	// POST creates the project. Callers fund their own projects, the admin account originates projects
	// funded by other accounts for the named beneficiary.
	RouteProposals = "/proposals"

	// RouteDisputes is the route to list the open disputes.
	RouteDisputes = "/disputes"

	// RouteDispute is the route to access a single open dispute.
	RouteDispute = "/disputes/:" + restapi.ParameterDisputeID

	// RouteDisputeVote is the route for jurors to vote on a dispute.
	RouteDisputeVote = "/disputes/:" + restapi.ParameterDisputeID + "/vote"

	// RouteAccountBalance is the route to the balance of an account in one currency.
	RouteAccountBalance = "/accounts/:" + restapi.ParameterAccountID + "/balances/:" + restapi.ParameterCurrencyID

	// RouteAccountCompleted is the route to the projects an account completed as initiator.
	RouteAccountCompleted = "/accounts/:" + restapi.ParameterAccountID + "/completed"

	// RouteReserve is the route to reserve free funds of the caller for briefs and crowdfunds.
	RouteReserve = "/reserve"

	// RouteEvents is the route to query the recorded funding events.
	// GET returns the events filtered by the kind and limit query parameters.
	RouteEvents = "/events"

	// RouteAdminMint is the route to mint funds to an account.
	// POST is restricted to the admin account.
	RouteAdminMint = "/admin/mint"
)

func jsonHandler[T any](handler func(c echo.Context) (T, error)) echo.HandlerFunc {
	return func(c echo.Context) error {
		resp, err := handler(c)
		if err != nil {
			return restapi.HTTPError(err)
		}
		return restapi.JSONResponse(c, http.StatusOK, resp)
	}
}

func noContentHandler(handler func(c echo.Context) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := handler(c); err != nil {
			return restapi.HTTPError(err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func (s *Server) configureRoutes(routeGroup *echo.Group) {

	routeGroup.GET(RouteInfo, jsonHandler(s.getInfo))
	routeGroup.GET(RouteProjects, jsonHandler(s.getProjects))
	routeGroup.GET(RouteProject, jsonHandler(s.getProject))
	routeGroup.GET(RouteProjectRounds, jsonHandler(s.getProjectRounds))
	routeGroup.GET(RouteProjectDisputes, jsonHandler(s.getProjectDisputes))
	routeGroup.GET(RouteProjectEvents, jsonHandler(s.getProjectEvents))
	routeGroup.GET(RouteProjectNoConfidence, jsonHandler(s.getNoConfidenceVote))
	routeGroup.GET(RouteMilestoneVote, jsonHandler(s.getMilestoneVote))
	routeGroup.GET(RouteDisputes, jsonHandler(s.getDisputes))
	routeGroup.GET(RouteDispute, jsonHandler(s.getDispute))
	routeGroup.GET(RouteAccountBalance, jsonHandler(s.getBalance))
	routeGroup.GET(RouteAccountCompleted, jsonHandler(s.getCompletedProjects))
	routeGroup.GET(RouteEvents, jsonHandler(s.getEvents))

	// every mutation acts on behalf of the authenticated account
	protected := []echo.MiddlewareFunc{s.auth.Middleware(nil, nil)}
	if s.opts.LimitsPerSecond > 0 {
		protected = append(protected, s.rateLimiter())
	}

	routeGroup.POST(RouteProposals, func(c echo.Context) error {
		resp, err := s.createProposal(c)
		if err != nil {
			return restapi.HTTPError(err)
		}
		return restapi.JSONResponse(c, http.StatusCreated, resp)
	}, protected...)

	routeGroup.POST(RouteMilestoneSubmit, noContentHandler(s.submitMilestone), protected...)
	routeGroup.POST(RouteMilestoneVote, noContentHandler(s.voteOnMilestone), protected...)
	routeGroup.POST(RouteProjectWithdraw, noContentHandler(s.withdraw), protected...)
	routeGroup.POST(RouteProjectRefund, noContentHandler(s.refund), protected...)
	routeGroup.POST(RouteProjectNoConfidence, noContentHandler(s.raiseNoConfidence), protected...)
	routeGroup.POST(RouteProjectNoConfidenceVote, noContentHandler(s.voteOnNoConfidence), protected...)
	routeGroup.POST(RouteProjectDisputes, noContentHandler(s.raiseDispute), protected...)
	routeGroup.POST(RouteDisputeVote, noContentHandler(s.voteOnDispute), protected...)
	routeGroup.POST(RouteReserve, noContentHandler(s.reserve), protected...)

	adminOnly := s.auth.Middleware(nil, func(_ echo.Context, claims *jwt.AuthClaims) bool {
		return s.opts.AdminAccount != "" && claims.VerifySubject(string(s.opts.AdminAccount))
	})
	routeGroup.POST(RouteAdminMint, noContentHandler(s.mint), adminOnly)
}
