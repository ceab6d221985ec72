package metrics

import (
	"go.uber.org/atomic"

	"github.com/gohornet/fundgov/pkg/model/disputes"
	"github.com/gohornet/fundgov/pkg/model/funding"
	"github.com/iotaledger/hive.go/events"
)

// FundingMetrics defines funding metrics over the entire runtime of the daemon.
type FundingMetrics struct {
	// The number of created projects.
	ProjectsCreated atomic.Uint32
	// The number of projects ended by a vote of no confidence.
	ProjectsFinalised atomic.Uint32
	// The number of submitted milestones.
	MilestonesSubmitted atomic.Uint32
	// The number of approved milestones.
	MilestonesApproved atomic.Uint32
	// The number of rejected milestones.
	MilestonesRejected atomic.Uint32
	// The number of cast milestone votes.
	VotesSubmitted atomic.Uint32
	// The number of voting rounds that expired without result.
	RoundsExpired atomic.Uint32
	// The number of raised no-confidence rounds.
	NoConfidenceRounds atomic.Uint32
	// The total amount withdrawn by initiators.
	WithdrawnFunds atomic.Uint64
	// The total amount refunded to contributors or treasuries.
	RefundedFunds atomic.Uint64
	// The number of raised disputes.
	DisputesRaised atomic.Uint32
	// The number of cast juror votes.
	DisputeVotes atomic.Uint32
	// The number of disputes decided in favour of the raiser.
	DisputesSucceeded atomic.Uint32
	// The number of disputes decided against the raiser.
	DisputesFailed atomic.Uint32
}

// AttachFunding counts the events of the funding engine.
func (m *FundingMetrics) AttachFunding(fundingEvents *funding.Events) {
	fundingEvents.AttachAll(events.NewClosure(m.onNotification))
}

// AttachDisputes counts the juror votes of the dispute subsystem.
func (m *FundingMetrics) AttachDisputes(disputeEvents *disputes.Events) {
	disputeEvents.DisputeVoted.Attach(events.NewClosure(func(_ *disputes.Dispute) {
		m.DisputeVotes.Inc()
	}))
}

func (m *FundingMetrics) onNotification(notification *funding.Notification) {
	switch notification.Kind {
	case funding.NotificationProjectCreated:
		m.ProjectsCreated.Inc()
	case funding.NotificationMilestoneSubmitted:
		m.MilestonesSubmitted.Inc()
	case funding.NotificationVoteSubmitted:
		m.VotesSubmitted.Inc()
	case funding.NotificationMilestoneApproved:
		m.MilestonesApproved.Inc()
	case funding.NotificationMilestoneRejected:
		m.MilestonesRejected.Inc()
	case funding.NotificationVotingRoundExpired:
		m.RoundsExpired.Inc()
	case funding.NotificationProjectFundsWithdrawn:
		m.WithdrawnFunds.Add(notification.Amount)
	case funding.NotificationProjectRefunded:
		m.RefundedFunds.Add(notification.Amount)
	case funding.NotificationNoConfidenceRoundCreated:
		m.NoConfidenceRounds.Inc()
	case funding.NotificationNoConfidenceRoundFinalised:
		m.ProjectsFinalised.Inc()
		m.RefundedFunds.Add(notification.Amount)
	case funding.NotificationDisputeRaised:
		m.DisputesRaised.Inc()
	case funding.NotificationDisputeCompleted:
		if notification.Result == funding.DisputeResultSuccess.String() {
			m.DisputesSucceeded.Inc()
			return
		}
		m.DisputesFailed.Inc()
	}
}
