package eventbus

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bootstrapNotification struct {
	EventID string
	Topic   string
}

func newTestBus() EventBusWithError {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewEventPublisher(log)
}

func TestPublish_DeliversToMatchingSubscriber(t *testing.T) {
	bus := newTestBus()

	var got []bootstrapNotification
	bus.Subscribe(func(n *bootstrapNotification) {
		got = append(got, *n)
	})

	bus.Publish(&bootstrapNotification{EventID: "e1", Topic: "workflow.bootstrap.initiated"})

	require.Len(t, got, 1)
	assert.Equal(t, "e1", got[0].EventID)
}

func TestPublish_SkipsNonMatchingSubscriber(t *testing.T) {
	bus := newTestBus()

	called := false
	bus.Subscribe(func(s string) { called = true })

	bus.Publish(&bootstrapNotification{EventID: "e1"})
	assert.False(t, called)
}

func TestPublish_ContainsPanickingHandler(t *testing.T) {
	bus := newTestBus()

	bus.Subscribe(func(n *bootstrapNotification) { panic("boom") })

	var delivered bool
	bus.Subscribe(func(n *bootstrapNotification) { delivered = true })

	assert.NotPanics(t, func() {
		bus.Publish(&bootstrapNotification{EventID: "e1"})
	})
	assert.True(t, delivered)
}

func TestPublishE_NoSubscribers(t *testing.T) {
	bus := newTestBus()
	err := bus.PublishE(&bootstrapNotification{EventID: "e1"})
	assert.ErrorIs(t, err, ErrNoSubscribers)
}

func TestPublishE_CollectsHandlerErrors(t *testing.T) {
	bus := newTestBus()

	wantErr := errors.New("dispatch failed")
	bus.Subscribe(func(n *bootstrapNotification) error { return wantErr })
	bus.Subscribe(func(n *bootstrapNotification) error { return nil })

	err := bus.PublishE(&bootstrapNotification{EventID: "e1"})
	assert.ErrorIs(t, err, wantErr)
}

func TestPublishE_RejectsNonErrorReturn(t *testing.T) {
	bus := newTestBus()
	bus.Subscribe(func(n *bootstrapNotification) int { return 1 })

	err := bus.PublishE(&bootstrapNotification{EventID: "e1"})
	assert.ErrorIs(t, err, ErrInvalidHandlerReturn)
}

func TestMatchSignature(t *testing.T) {
	handler := func(n *bootstrapNotification, topic string) {}

	assert.True(t, MatchSignature(handler, []interface{}{&bootstrapNotification{}, "t"}))
	assert.False(t, MatchSignature(handler, []interface{}{&bootstrapNotification{}}))
	assert.False(t, MatchSignature(handler, []interface{}{"t", &bootstrapNotification{}}))
	assert.False(t, MatchSignature("not a func", []interface{}{}))
}

func TestSubscribeUnsubscribe(t *testing.T) {
	bus := newTestBus()

	handler := func(n *bootstrapNotification) {}
	bus.Subscribe(handler)
	assert.Equal(t, 1, bus.SubscribersCount())

	bus.Unsubscribe(handler)
	assert.Equal(t, 0, bus.SubscribersCount())

	bus.Subscribe(handler)
	bus.Clear()
	assert.Equal(t, 0, bus.SubscribersCount())
}
