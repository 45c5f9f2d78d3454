package events

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rbright/listend/internal/transcript"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversByTopic(t *testing.T) {
	bus := NewBus()

	var lifecycle, data []Payload
	bus.Subscribe(TopicLifecycle, func(p Payload) { lifecycle = append(lifecycle, p) })
	bus.Subscribe(TopicData, func(p Payload) { data = append(data, p) })

	bus.Publish(Lifecycle{SessionID: "s1", Status: LifecycleActive})
	bus.Publish(Data{SessionID: "s1", Kind: DataMicMuted, Muted: true})
	bus.Publish(Progress{SessionID: "s1", Kind: ProgressConnecting})
	bus.Publish(nil)

	require.Equal(t, []Payload{Lifecycle{SessionID: "s1", Status: LifecycleActive}}, lifecycle)
	require.Equal(t, []Payload{Data{SessionID: "s1", Kind: DataMicMuted, Muted: true}}, data)
}

func TestBusUnsubscribeIsIdempotent(t *testing.T) {
	bus := NewBus()

	var calls int
	unsubscribe := bus.Subscribe(TopicError, func(Payload) { calls++ })
	keep := bus.Subscribe(TopicError, func(Payload) {})
	require.Equal(t, 2, bus.Subscribers(TopicError))

	unsubscribe()
	unsubscribe()
	require.Equal(t, 1, bus.Subscribers(TopicError))

	bus.Publish(Error{SessionID: "s1", Kind: ErrorConnection, Message: "boom"})
	require.Zero(t, calls)

	keep()
	require.Zero(t, bus.Subscribers(TopicError))
}

func TestBusSkipsSubscriptionRevokedMidDispatch(t *testing.T) {
	bus := NewBus()

	var second int
	var unsubscribeSecond Unsubscribe
	bus.Subscribe(TopicLifecycle, func(Payload) { unsubscribeSecond() })
	unsubscribeSecond = bus.Subscribe(TopicLifecycle, func(Payload) { second++ })

	bus.Publish(Lifecycle{SessionID: "s1", Status: LifecycleInactive})
	require.Zero(t, second)
}

func TestBusSerializesConcurrentPublishers(t *testing.T) {
	bus := NewBus()

	var inFlight, maxInFlight atomic.Int32
	var total atomic.Int32
	bus.Subscribe(TopicData, func(Payload) {
		n := inFlight.Add(1)
		for {
			current := maxInFlight.Load()
			if n <= current || maxInFlight.CompareAndSwap(current, n) {
				break
			}
		}
		total.Add(1)
		inFlight.Add(-1)
	})

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				bus.Publish(Data{SessionID: "s1", Kind: DataAudioAmplitude})
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(800), total.Load())
	require.Equal(t, int32(1), maxInFlight.Load())
}

func TestForSessionFilters(t *testing.T) {
	bus := NewBus()

	var seen []string
	bus.Subscribe(TopicBatch, ForSession("wanted", func(p Payload) {
		seen = append(seen, p.Session())
	}))

	bus.Publish(Batch{SessionID: "other", Kind: BatchStarted})
	bus.Publish(Batch{SessionID: "wanted", Kind: BatchStarted})

	require.Equal(t, []string{"wanted"}, seen)
}

func TestScopeReleaseRevokesAll(t *testing.T) {
	bus := NewBus()
	scope := NewScope(bus)

	var calls int
	for _, topic := range []Topic{TopicLifecycle, TopicProgress, TopicError, TopicData} {
		require.NoError(t, scope.Subscribe(topic, func(Payload) { calls++ }))
	}
	bus.Publish(Progress{SessionID: "s1", Kind: ProgressConnected})
	require.Equal(t, 1, calls)

	scope.Release()
	scope.Release()
	require.True(t, scope.Released())
	for _, topic := range []Topic{TopicLifecycle, TopicProgress, TopicError, TopicData} {
		require.Zero(t, bus.Subscribers(topic))
	}

	bus.Publish(Progress{SessionID: "s1", Kind: ProgressConnected})
	require.Equal(t, 1, calls)

	err := scope.Subscribe(TopicData, func(Payload) {})
	require.ErrorIs(t, err, ErrScopeReleased)
	require.Zero(t, bus.Subscribers(TopicData))
}

func TestScopeReleaseFromHandler(t *testing.T) {
	bus := NewBus()
	scope := NewScope(bus)

	var calls int
	require.NoError(t, scope.Subscribe(TopicLifecycle, func(Payload) {
		calls++
		scope.Release()
	}))

	bus.Publish(Lifecycle{SessionID: "s1", Status: LifecycleInactive})
	bus.Publish(Lifecycle{SessionID: "s1", Status: LifecycleInactive})
	require.Equal(t, 1, calls)
}

func TestBatchTerminal(t *testing.T) {
	chunk := &transcript.StreamResponse{Type: transcript.ResponseTypeResults, FromFinalize: true}

	require.True(t, Batch{Kind: BatchProgress, Chunk: chunk}.Terminal())
	require.False(t, Batch{Kind: BatchProgress}.Terminal())
	require.False(t, Batch{Kind: BatchProgress, Chunk: &transcript.StreamResponse{Type: transcript.ResponseTypeResults}}.Terminal())
	require.False(t, Batch{Kind: BatchResponse, Chunk: chunk}.Terminal())
}
