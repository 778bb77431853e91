package eventbus

import (
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type testEvent struct {
	Name string
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestPublish_DeliversToMatchingSubscribers(t *testing.T) {
	bus := NewEventPublisher(quietLogger())

	var (
		mu  sync.Mutex
		got []testEvent
	)
	bus.Subscribe(func(e testEvent) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e)
	})
	bus.Subscribe(func(s string) {
		t.Errorf("string handler must not receive testEvent")
	})

	bus.Publish(testEvent{Name: "first"})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	require.Equal(t, "first", got[0].Name)
}

func TestUnsubscribe_StopsDelivery(t *testing.T) {
	bus := NewEventPublisher(quietLogger())

	calls := 0
	handler := func(e testEvent) { calls++ }
	bus.Subscribe(handler)
	require.Equal(t, 1, bus.SubscribersCount())

	bus.Publish(testEvent{})
	bus.Unsubscribe(handler)
	require.Equal(t, 0, bus.SubscribersCount())

	bus.Publish(testEvent{})
	require.Equal(t, 1, calls)
}

func TestPublish_RecoversFromPanickingHandler(t *testing.T) {
	bus := NewEventPublisher(quietLogger())

	delivered := false
	bus.Subscribe(func(e testEvent) { panic("boom") })
	bus.Subscribe(func(e testEvent) { delivered = true })

	require.NotPanics(t, func() {
		bus.Publish(testEvent{})
	})
	require.True(t, delivered)
}

func TestMatchSignature(t *testing.T) {
	handler := func(e testEvent) {}

	require.True(t, MatchSignature(handler, []interface{}{testEvent{}}))
	require.False(t, MatchSignature(handler, []interface{}{"other"}))
	require.False(t, MatchSignature(handler, []interface{}{testEvent{}, testEvent{}}))
	require.False(t, MatchSignature("not a func", []interface{}{testEvent{}}))
}

func TestClear_RemovesAllSubscribers(t *testing.T) {
	bus := NewEventPublisher(quietLogger())
	bus.Subscribe(func(e testEvent) {})
	bus.Subscribe(func(s string) {})
	require.Equal(t, 2, bus.SubscribersCount())

	bus.Clear()
	require.Equal(t, 0, bus.SubscribersCount())
}
