package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/editor-bridge/pkg/editorbridge"
	"github.com/tendant/editor-bridge/pkg/editorbridge/events"
)

func receive(t *testing.T, ch <-chan *message.Message) events.Event {
	t.Helper()
	select {
	case msg := <-ch:
		evt, err := events.Decode(msg)
		require.NoError(t, err)
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}
	return events.Event{}
}

func TestWatermillSink_Delivers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubsub := events.NewGoChannel(8)
	defer pubsub.Close()

	saved, err := pubsub.Subscribe(ctx, events.TopicDocumentSaved)
	require.NoError(t, err)
	locks, err := pubsub.Subscribe(ctx, events.TopicLockChanged)
	require.NoError(t, err)

	sink := events.NewWatermillSink(pubsub, nil)
	node := &editorbridge.Node{ID: "n1", Type: "File", Title: "topic.xml", Path: "/docs/topic.xml", LockOwner: "alice"}

	require.NoError(t, sink.DocumentSaved(ctx, node, true))
	evt := receive(t, saved)
	assert.Equal(t, "n1", evt.NodeID)
	assert.True(t, evt.Autosave)
	assert.Equal(t, "/docs/topic.xml", evt.Path)
	assert.False(t, evt.OccurredAt.IsZero())

	require.NoError(t, sink.LockChanged(ctx, node, true))
	evt = receive(t, locks)
	require.NotNil(t, evt.Locked)
	assert.True(t, *evt.Locked)
	assert.Equal(t, "alice", evt.Principal)
}

func TestWatermillSink_AsServiceSink(t *testing.T) {
	var _ editorbridge.EventSink = (*events.WatermillSink)(nil)

	ctx := context.Background()
	pubsub := events.NewGoChannel(8)
	defer pubsub.Close()

	created, err := pubsub.Subscribe(ctx, events.TopicAssetCreated)
	require.NoError(t, err)

	sink := editorbridge.MultiEventSink{editorbridge.NewNoopEventSink(), events.NewWatermillSink(pubsub, nil)}
	require.NoError(t, sink.AssetCreated(ctx, &editorbridge.Node{ID: "img-1", Type: "Picture"}))

	evt := receive(t, created)
	assert.Equal(t, "img-1", evt.NodeID)
	assert.Equal(t, "Picture", evt.Type)
}
