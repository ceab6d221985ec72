package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gohornet/fundgov/pkg/model/disputes"
	"github.com/gohornet/fundgov/pkg/model/funding"
	"github.com/gohornet/fundgov/pkg/utils"
	"github.com/iotaledger/hive.go/events"
	"github.com/iotaledger/hive.go/logger"
)

const (
	TopicFundingEvents   = "funding/events"
	TopicFundingKind     = "funding/events/{kind}"
	TopicFundingProject  = "funding/projects/{projectKey}"
	TopicDisputesUpdated = "disputes/updated"
	TopicDispute         = "disputes/{disputeId}"
)

// Sender publishes raw payloads. It is implemented by the Broker.
type Sender interface {
	HasSubscribers(topic string) bool
	Send(topic string, payload []byte)
}

// disputePayload is the message published for dispute updates.
type disputePayload struct {
	Event   string `json:"event"`
	Against int    `json:"against"`
	For     int    `json:"for"`
	*disputes.Dispute
}

// Publisher serializes the domain events to JSON and publishes them on the topics they belong to.
// Only topics with exact subscriptions are served, wildcard subscriptions receive nothing.
type Publisher struct {
	*utils.WrappedLogger

	sender Sender
}

func NewPublisher(sender Sender, log *logger.Logger) *Publisher {
	return &Publisher{
		WrappedLogger: utils.NewWrappedLogger(log),
		sender:        sender,
	}
}

func FundingKindTopic(kind funding.NotificationKind) string {
	return strings.Replace(TopicFundingKind, "{kind}", string(kind), 1)
}

func FundingProjectTopic(projectKey funding.ProjectKey) string {
	return strings.Replace(TopicFundingProject, "{projectKey}", fmt.Sprintf("%d", projectKey), 1)
}

func DisputeTopic(id disputes.DisputeID) string {
	return strings.Replace(TopicDispute, "{disputeId}", fmt.Sprintf("%d", id), 1)
}

// AttachFunding publishes every funding event.
func (p *Publisher) AttachFunding(fundingEvents *funding.Events) {
	fundingEvents.AttachAll(events.NewClosure(p.PublishNotification))
}

// AttachDisputes publishes the lifecycle of every dispute.
func (p *Publisher) AttachDisputes(disputeEvents *disputes.Events) {
	disputeEvents.DisputeRaised.Attach(events.NewClosure(func(dispute *disputes.Dispute) {
		p.PublishDispute("raised", dispute)
	}))
	disputeEvents.DisputeVoted.Attach(events.NewClosure(func(dispute *disputes.Dispute) {
		p.PublishDispute("voted", dispute)
	}))
	disputeEvents.DisputeCompleted.Attach(events.NewClosure(func(dispute *disputes.Dispute) {
		p.PublishDispute("completed", dispute)
	}))
}

// PublishNotification publishes a funding event on the event stream, its kind topic and its project topic.
func (p *Publisher) PublishNotification(notification *funding.Notification) {
	p.publishOnTopics(notification,
		TopicFundingEvents,
		FundingKindTopic(notification.Kind),
		FundingProjectTopic(notification.ProjectKey),
	)
}

// PublishDispute publishes a dispute update on the dispute stream and the topic of the dispute.
func (p *Publisher) PublishDispute(event string, dispute *disputes.Dispute) {
	inFavour, against := dispute.Tally()
	p.publishOnTopics(&disputePayload{
		Event:   event,
		For:     inFavour,
		Against: against,
		Dispute: dispute,
	},
		TopicDisputesUpdated,
		DisputeTopic(dispute.ID),
	)
}

func (p *Publisher) publishOnTopics(payload interface{}, topics ...string) {
	var jsonPayload []byte
	for _, topic := range topics {
		if !p.sender.HasSubscribers(topic) {
			continue
		}

		if jsonPayload == nil {
			var err error
			if jsonPayload, err = json.Marshal(payload); err != nil {
				p.LogWarnf("failed to serialize payload for topic %s: %s", topic, err)
				return
			}
		}

		p.sender.Send(topic, jsonPayload)
	}
}
