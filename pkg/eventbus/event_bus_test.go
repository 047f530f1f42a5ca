package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmatrix/matrix/pkg/channels/gochannel"
	"github.com/agentmatrix/matrix/pkg/eventbus"
	"github.com/agentmatrix/matrix/pkg/events"
)

func newTestBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestWatermillEventBus_PublishSubscribe(t *testing.T) {
	bus := newTestBus(t)

	received := make(chan any, 1)

	err := bus.Subscribe(t.Context(), func(_ context.Context, event any) error {
		received <- event

		return nil
	})
	require.NoError(t, err)

	err = bus.Publish(t.Context(), events.RunStartRequested{
		BaseEvent: events.NewBaseEvent(events.RunStartRequestedEvent, "project-1"),
		RunID:     "run-1",
	})
	require.NoError(t, err)

	select {
	case event := <-received:
		startRequested, ok := event.(*events.RunStartRequested)
		require.True(t, ok, "expected *events.RunStartRequested, got %T", event)
		assert.Equal(t, "run-1", startRequested.RunID)
		assert.Equal(t, "project-1", startRequested.ProjectID)
		assert.Equal(t, events.RunStartRequestedEvent, startRequested.GetType())
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestWatermillEventBus_DispatchesByType(t *testing.T) {
	bus := newTestBus(t)

	received := make(chan any, 2)

	err := bus.Subscribe(t.Context(), func(_ context.Context, event any) error {
		received <- event

		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(t.Context(), events.RunWorkflowFailed{
		BaseEvent:  events.NewBaseEvent(events.RunWorkflowFailedEvent, "project-1"),
		RunID:      "run-1",
		WorkflowID: "w2",
		Error:      "boom",
	}))
	require.NoError(t, bus.Publish(t.Context(), events.GateApproved{
		BaseEvent: events.NewBaseEvent(events.GateApprovedEvent, "project-1"),
		GateID:    "gate-1",
	}))

	types := make(map[events.EventType]bool)

	for range 2 {
		select {
		case event := <-received:
			switch typed := event.(type) {
			case *events.RunWorkflowFailed:
				assert.Equal(t, "boom", typed.Error)
				types[typed.GetType()] = true
			case *events.GateApproved:
				assert.Equal(t, "gate-1", typed.GateID)
				types[typed.GetType()] = true
			default:
				t.Fatalf("unexpected event type %T", event)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for events")
		}
	}

	assert.Len(t, types, 2)
}

func TestWatermillEventBus_GenerateID(t *testing.T) {
	bus := newTestBus(t)

	first := bus.GenerateID()
	second := bus.GenerateID()

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}
