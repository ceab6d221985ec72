package mqtt

import (
	"sort"
	"sync"

	"github.com/eclipse/paho.mqtt.golang/packets"
	"github.com/fhmq/hmq/broker/lib/topics"
)

type OnSubscribeHandler func(topic []byte)
type OnUnsubscribeHandler func(topic []byte)

// topicManager replaces the "mem" topics provider of the broker and counts the subscriptions per topic,
// so events are only serialized if somebody listens.
type topicManager struct {
	mem topics.TopicsProvider

	subscriptionsLock sync.RWMutex
	subscriptions     map[string]int
	deletedTopics     int

	cleanupThreshold int

	onSubscribe   OnSubscribeHandler
	onUnsubscribe OnUnsubscribeHandler
}

func newTopicManager(onSubscribe OnSubscribeHandler, onUnsubscribe OnUnsubscribeHandler, cleanupThreshold int) *topicManager {
	t := &topicManager{
		mem:              topics.NewMemProvider(),
		subscriptions:    make(map[string]int),
		cleanupThreshold: cleanupThreshold,
		onSubscribe:      onSubscribe,
		onUnsubscribe:    onUnsubscribe,
	}

	// the broker looks up its provider by name
	topics.Unregister("mem")
	topics.Register("mem", t)

	return t
}

func (t *topicManager) Subscribe(topic []byte, qos byte, subscriber interface{}) (byte, error) {
	t.subscriptionsLock.Lock()
	defer t.subscriptionsLock.Unlock()

	granted, err := t.mem.Subscribe(topic, qos, subscriber)
	if err != nil {
		return granted, err
	}

	t.subscriptions[string(topic)]++
	if t.onSubscribe != nil {
		t.onSubscribe(topic)
	}

	return granted, nil
}

func (t *topicManager) Unsubscribe(topic []byte, subscriber interface{}) error {
	t.subscriptionsLock.Lock()
	defer t.subscriptionsLock.Unlock()

	// the count is decreased even if the provider did not know the subscriber
	err := t.mem.Unsubscribe(topic, subscriber)

	topicName := string(topic)
	if count, has := t.subscriptions[topicName]; has {
		if count > 1 {
			t.subscriptions[topicName] = count - 1
		} else {
			t.removeTopic(topicName)
		}
	}

	if t.onUnsubscribe != nil {
		t.onUnsubscribe(topic)
	}

	return err
}

func (t *topicManager) Subscribers(topic []byte, qos byte, subs *[]interface{}, qoss *[]byte) error {
	return t.mem.Subscribers(topic, qos, subs, qoss)
}

func (t *topicManager) Retain(msg *packets.PublishPacket) error {
	return t.mem.Retain(msg)
}

func (t *topicManager) Retained(topic []byte, msgs *[]*packets.PublishPacket) error {
	return t.mem.Retained(topic, msgs)
}

func (t *topicManager) Close() error {
	return t.mem.Close()
}

func (t *topicManager) hasSubscribers(topicName string) bool {
	t.subscriptionsLock.RLock()
	defer t.subscriptionsLock.RUnlock()

	return t.subscriptions[topicName] > 0
}

// subscribedTopics returns the topics with at least one subscriber in sorted order.
func (t *topicManager) subscribedTopics() []string {
	t.subscriptionsLock.RLock()
	defer t.subscriptionsLock.RUnlock()

	result := make([]string, 0, len(t.subscriptions))
	for topicName := range t.subscriptions {
		result = append(result, topicName)
	}
	sort.Strings(result)
	return result
}

func (t *topicManager) removeTopic(topicName string) {
	delete(t.subscriptions, topicName)

	t.deletedTopics++
	if t.cleanupThreshold == 0 || t.deletedTopics < t.cleanupThreshold {
		return
	}

	// maps never shrink, copy the remaining entries to release the memory
	compacted := make(map[string]int, len(t.subscriptions))
	for name, count := range t.subscriptions {
		compacted[name] = count
	}
	t.subscriptions = compacted
	t.deletedTopics = 0
}
