// Package events publishes bridge notifications on a watermill pub/sub.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/tendant/editor-bridge/pkg/editorbridge"
)

// Topics the sink publishes to.
const (
	TopicDocumentCreated = "editor.document.created"
	TopicDocumentSaved   = "editor.document.saved"
	TopicAssetCreated    = "editor.asset.created"
	TopicLockChanged     = "editor.document.lock"
)

// Event is the JSON payload of every message.
type Event struct {
	NodeID     string    `json:"nodeId"`
	Type       string    `json:"type"`
	Title      string    `json:"title"`
	Path       string    `json:"path"`
	Principal  string    `json:"principal,omitempty"`
	Autosave   bool      `json:"autosave,omitempty"`
	Locked     *bool     `json:"locked,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// WatermillSink implements editorbridge.EventSink over any watermill publisher.
type WatermillSink struct {
	publisher message.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewWatermillSink wraps publisher.
func NewWatermillSink(publisher message.Publisher, logger *slog.Logger) *WatermillSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &WatermillSink{publisher: publisher, logger: logger, now: time.Now}
}

// NewGoChannel creates the in-process pub/sub used when no broker is configured.
func NewGoChannel(buffer int64) *gochannel.GoChannel {
	return gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: buffer},
		watermill.NewStdLogger(false, false),
	)
}

func (s *WatermillSink) publish(ctx context.Context, topic string, evt Event) error {
	evt.OccurredAt = s.now().UTC()
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("node_id", evt.NodeID)
	if err := s.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	s.logger.Debug("event published", "topic", topic, "node_id", evt.NodeID, "message_id", msg.UUID)
	return nil
}

func nodeEvent(node *editorbridge.Node) Event {
	return Event{NodeID: node.ID, Type: node.Type, Title: node.Title, Path: node.Path}
}

func (s *WatermillSink) DocumentCreated(ctx context.Context, node *editorbridge.Node) error {
	return s.publish(ctx, TopicDocumentCreated, nodeEvent(node))
}

func (s *WatermillSink) DocumentSaved(ctx context.Context, node *editorbridge.Node, autosave bool) error {
	evt := nodeEvent(node)
	evt.Autosave = autosave
	return s.publish(ctx, TopicDocumentSaved, evt)
}

func (s *WatermillSink) AssetCreated(ctx context.Context, node *editorbridge.Node) error {
	return s.publish(ctx, TopicAssetCreated, nodeEvent(node))
}

func (s *WatermillSink) LockChanged(ctx context.Context, node *editorbridge.Node, locked bool) error {
	evt := nodeEvent(node)
	evt.Locked = &locked
	evt.Principal = node.LockOwner
	return s.publish(ctx, TopicLockChanged, evt)
}

// Decode reads an Event back from a message and acks it.
func Decode(msg *message.Message) (Event, error) {
	var evt Event
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		msg.Ack()
		return Event{}, fmt.Errorf("decode event %s: %w", msg.UUID, err)
	}
	msg.Ack()
	return evt, nil
}
