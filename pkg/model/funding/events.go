package funding

import (
	"github.com/gohornet/fundgov/pkg/model/ledger"
	"github.com/gohornet/fundgov/pkg/model/tick"
	"github.com/iotaledger/hive.go/events"
)

// NotificationKind names a domain event.
type NotificationKind string

const (
	NotificationProjectCreated             NotificationKind = "projectCreated"
	NotificationMilestoneSubmitted         NotificationKind = "milestoneSubmitted"
	NotificationVoteSubmitted              NotificationKind = "voteSubmitted"
	NotificationMilestoneApproved          NotificationKind = "milestoneApproved"
	NotificationMilestoneRejected          NotificationKind = "milestoneRejected"
	NotificationVotingRoundExpired         NotificationKind = "votingRoundExpired"
	NotificationProjectFundsWithdrawn      NotificationKind = "projectFundsWithdrawn"
	NotificationProjectRefunded            NotificationKind = "projectRefunded"
	NotificationNoConfidenceRoundCreated   NotificationKind = "noConfidenceRoundCreated"
	NotificationNoConfidenceRoundVotedUpon NotificationKind = "noConfidenceRoundVotedUpon"
	NotificationNoConfidenceRoundFinalised NotificationKind = "noConfidenceRoundFinalised"
	NotificationDisputeRaised              NotificationKind = "disputeRaised"
	NotificationDisputeCompleted           NotificationKind = "disputeCompleted"
)

// Notification is the payload of every funding event.
type Notification struct {
	Kind          NotificationKind  `json:"kind"`
	ProjectKey    ProjectKey        `json:"projectKey"`
	MilestoneKeys []MilestoneKey    `json:"milestoneKeys,omitempty"`
	Account       ledger.AccountID  `json:"account,omitempty"`
	Amount        uint64            `json:"amount,omitempty"`
	CurrencyID    ledger.CurrencyID `json:"currencyId"`
	Approve       bool              `json:"approve,omitempty"`
	Result        string            `json:"result,omitempty"`
	Tick          tick.Index        `json:"tick"`
}

func NotificationCaller(handler interface{}, params ...interface{}) {
	handler.(func(*Notification))(params[0].(*Notification))
}

// Events are the domain events of the funding engine. They are triggered after the state change was committed.
type Events struct {
	ProjectCreated             *events.Event
	MilestoneSubmitted         *events.Event
	VoteSubmitted              *events.Event
	MilestoneApproved          *events.Event
	MilestoneRejected          *events.Event
	VotingRoundExpired         *events.Event
	ProjectFundsWithdrawn      *events.Event
	ProjectRefunded            *events.Event
	NoConfidenceRoundCreated   *events.Event
	NoConfidenceRoundVotedUpon *events.Event
	NoConfidenceRoundFinalised *events.Event
	DisputeRaised              *events.Event
	DisputeCompleted           *events.Event
}

func newEvents() *Events {
	return &Events{
		ProjectCreated:             events.NewEvent(NotificationCaller),
		MilestoneSubmitted:         events.NewEvent(NotificationCaller),
		VoteSubmitted:              events.NewEvent(NotificationCaller),
		MilestoneApproved:          events.NewEvent(NotificationCaller),
		MilestoneRejected:          events.NewEvent(NotificationCaller),
		VotingRoundExpired:         events.NewEvent(NotificationCaller),
		ProjectFundsWithdrawn:      events.NewEvent(NotificationCaller),
		ProjectRefunded:            events.NewEvent(NotificationCaller),
		NoConfidenceRoundCreated:   events.NewEvent(NotificationCaller),
		NoConfidenceRoundVotedUpon: events.NewEvent(NotificationCaller),
		NoConfidenceRoundFinalised: events.NewEvent(NotificationCaller),
		DisputeRaised:              events.NewEvent(NotificationCaller),
		DisputeCompleted:           events.NewEvent(NotificationCaller),
	}
}

// AttachAll attaches the closure to every funding event.
func (e *Events) AttachAll(closure *events.Closure) {
	for _, event := range []*events.Event{
		e.ProjectCreated,
		e.MilestoneSubmitted,
		e.VoteSubmitted,
		e.MilestoneApproved,
		e.MilestoneRejected,
		e.VotingRoundExpired,
		e.ProjectFundsWithdrawn,
		e.ProjectRefunded,
		e.NoConfidenceRoundCreated,
		e.NoConfidenceRoundVotedUpon,
		e.NoConfidenceRoundFinalised,
		e.DisputeRaised,
		e.DisputeCompleted,
	} {
		event.Attach(closure)
	}
}

type eventTrigger struct {
	event        *events.Event
	notification *Notification
}

// pendingEvents collects the events of one operation. They are triggered once the operation released the lock.
type pendingEvents []*eventTrigger

func (p *pendingEvents) add(event *events.Event, notification *Notification) {
	*p = append(*p, &eventTrigger{event: event, notification: notification})
}

func (p pendingEvents) trigger() {
	for _, t := range p {
		t.event.Trigger(t.notification)
	}
}
