package funding

import (
	"github.com/pkg/errors"
)

var (
	ErrFundingCorruptedStorage = errors.New("the funding database was not shutdown properly")

	// not found
	ErrProjectDoesNotExist   = errors.New("project does not exist")
	ErrMilestoneDoesNotExist = errors.New("milestone does not exist")
	ErrVotingRoundNotStarted = errors.New("the voting round has not started yet")
	ErrNoActiveRound         = errors.New("currently no active round to participate in")

	// authorization
	ErrUserIsNotInitiator                = errors.New("caller is not the initiator of the project")
	ErrOnlyContributorsCanVote           = errors.New("only contributors can vote")
	ErrOnlyContributorsCanRaiseDispute   = errors.New("only contributors can raise a dispute")
	ErrOnlyContributorsCanInitiateRefund = errors.New("only contributors can initiate a refund")
	ErrOnlyContributorsCanRaiseRound     = errors.New("only contributors can raise a vote of no confidence")

	// state conflict
	ErrRoundStarted                          = errors.New("round has already started")
	ErrVotesAreImmutable                     = errors.New("already voted in this round, votes cannot be changed")
	ErrMilestoneAlreadyApproved              = errors.New("milestone has already been approved")
	ErrMilestonesAlreadyInDispute            = errors.New("milestone is already in a dispute")
	ErrCannotRaiseDisputeOnApprovedMilestone = errors.New("cannot raise a dispute on an approved milestone")
	ErrProjectWithdrawn                      = errors.New("project has been cancelled")
	ErrMilestoneAlreadyTransferred           = errors.New("the funds of the milestone have already been transferred")

	// capacity
	ErrOverflow             = errors.New("too many rounds expiring at the same tick")
	ErrTooManyContributions = errors.New("too many contributions")
	ErrTooManyMilestones    = errors.New("too many milestones")
	ErrTooManyProjects      = errors.New("too many completed projects for the account")
	ErrTooManyJuryMembers   = errors.New("too many jury members")

	// accounting and input
	ErrNoAvailableFundsToWithdraw  = errors.New("there are no available funds to withdraw")
	ErrProjectFundingFailed        = errors.New("funding the project failed")
	ErrMilestonePercentagesInvalid = errors.New("milestone percentages must add up to 100")
	ErrNoContributions             = errors.New("project has no contributions")
	ErrInvalidParam                = errors.New("invalid parameter")
)
