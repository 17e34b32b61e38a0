package editorbridge

import (
	"context"
	"errors"
	"log/slog"
)

// NoopEventSink is a no-operation implementation of EventSink
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

func (n *NoopEventSink) DocumentCreated(ctx context.Context, node *Node) error { return nil }

func (n *NoopEventSink) DocumentSaved(ctx context.Context, node *Node, autosave bool) error {
	return nil
}

func (n *NoopEventSink) AssetCreated(ctx context.Context, node *Node) error { return nil }

func (n *NoopEventSink) LockChanged(ctx context.Context, node *Node, locked bool) error { return nil }

// LoggingEventSink writes every event to a slog logger.
type LoggingEventSink struct {
	logger *slog.Logger
}

// NewLoggingEventSink creates an event sink that logs at info level.
func NewLoggingEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEventSink{logger: logger}
}

func (l *LoggingEventSink) DocumentCreated(ctx context.Context, node *Node) error {
	l.logger.InfoContext(ctx, "document created", "node_id", node.ID, "type", node.Type, "title", node.Title)
	return nil
}

func (l *LoggingEventSink) DocumentSaved(ctx context.Context, node *Node, autosave bool) error {
	l.logger.InfoContext(ctx, "document saved", "node_id", node.ID, "autosave", autosave)
	return nil
}

func (l *LoggingEventSink) AssetCreated(ctx context.Context, node *Node) error {
	l.logger.InfoContext(ctx, "asset created", "node_id", node.ID, "type", node.Type, "title", node.Title)
	return nil
}

func (l *LoggingEventSink) LockChanged(ctx context.Context, node *Node, locked bool) error {
	l.logger.InfoContext(ctx, "lock changed", "node_id", node.ID, "locked", locked, "owner", node.LockOwner)
	return nil
}

// MultiEventSink fans events out to several sinks and joins their errors.
type MultiEventSink []EventSink

func (m MultiEventSink) each(fn func(EventSink) error) error {
	var errs []error
	for _, s := range m {
		if err := fn(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiEventSink) DocumentCreated(ctx context.Context, node *Node) error {
	return m.each(func(s EventSink) error { return s.DocumentCreated(ctx, node) })
}

func (m MultiEventSink) DocumentSaved(ctx context.Context, node *Node, autosave bool) error {
	return m.each(func(s EventSink) error { return s.DocumentSaved(ctx, node, autosave) })
}

func (m MultiEventSink) AssetCreated(ctx context.Context, node *Node) error {
	return m.each(func(s EventSink) error { return s.AssetCreated(ctx, node) })
}

func (m MultiEventSink) LockChanged(ctx context.Context, node *Node, locked bool) error {
	return m.each(func(s EventSink) error { return s.LockChanged(ctx, node, locked) })
}

// NoopPreviewer never produces a preview.
type NoopPreviewer struct{}

func (NoopPreviewer) Preview(ctx context.Context, node *Node, variant string) (*Blob, error) {
	return nil, ErrPreviewUnavailable
}
