package liveevents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishWithoutSubscribersIsDropped(t *testing.T) {
	hub := NewHub()
	hub.Publish(LiveEvent{ID: "1", ConcessionID: "CX-1"})

	sub, backlog, err := hub.Subscribe("CX-1")
	require.NoError(t, err)
	defer sub.Close()
	assert.Empty(t, backlog)
}

func TestSubscribeReceivesConcessionEvents(t *testing.T) {
	hub := NewHub()
	sub, _, err := hub.Subscribe("CX-1")
	require.NoError(t, err)
	defer sub.Close()

	hub.Publish(LiveEvent{ID: "1", ConcessionID: "CX-1", Kind: "QuotaUsed"})
	hub.Publish(LiveEvent{ID: "2", ConcessionID: "CX-2", Kind: "QuotaUsed"})

	got := <-sub.Events()
	assert.Equal(t, "1", got.ID)
	select {
	case extra := <-sub.Events():
		t.Fatalf("unexpected event %s", extra.ID)
	default:
	}

	late, backlog, err := hub.Subscribe("CX-1")
	require.NoError(t, err)
	defer late.Close()
	require.Len(t, backlog, 1)
	assert.Equal(t, "1", backlog[0].ID)
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub()
	sub, _, err := hub.Subscribe("CX-1")
	require.NoError(t, err)
	defer sub.Close()

	for i := 0; i < DefaultSubscriberBuffer*3; i++ {
		hub.Publish(LiveEvent{ConcessionID: "CX-1"})
	}
	assert.Len(t, sub.Events(), DefaultSubscriberBuffer)
}

func TestCloseRemovesStream(t *testing.T) {
	hub := NewHub()
	sub, _, err := hub.Subscribe("CX-1")
	require.NoError(t, err)

	sub.Close()
	sub.Close()

	hub.mu.RLock()
	_, ok := hub.streams["CX-1"]
	hub.mu.RUnlock()
	assert.False(t, ok)

	_, _, err = hub.Subscribe(" ")
	assert.ErrorIs(t, err, ErrInvalidConcession)
}

func TestCounterpartyStreamReceivesEvent(t *testing.T) {
	hub := NewHub()
	from, _, err := hub.Subscribe("CX-1")
	require.NoError(t, err)
	defer from.Close()
	to, _, err := hub.Subscribe("CY-1")
	require.NoError(t, err)
	defer to.Close()

	hub.Publish(LiveEvent{ID: "7", ConcessionID: "CX-1", CounterpartyConcession: "CY-1", Kind: "QuotaTransferred"})
	hub.Publish(LiveEvent{ID: "8", ConcessionID: "CX-1", CounterpartyConcession: "CX-1", Kind: "QuotaTransferred"})

	assert.Equal(t, "7", (<-to.Events()).ID)
	assert.Equal(t, "7", (<-from.Events()).ID)
	assert.Equal(t, "8", (<-from.Events()).ID)
	assert.Len(t, from.Events(), 0)
	assert.Len(t, to.Events(), 0)
}
