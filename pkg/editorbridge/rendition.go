package editorbridge

import (
	"context"
	"log/slog"
	"strings"
)

// Resolver picks which binary representation of a node is served to the editor.
type Resolver struct {
	config   RenditionConfig
	chains   *Chains
	detector MimeDetector
	logger   *slog.Logger
}

// NewResolver creates a resolver. A nil chains registry or detector is replaced
// by an empty registry and the default detector.
func NewResolver(config RenditionConfig, chains *Chains, detector MimeDetector, logger *slog.Logger) *Resolver {
	if chains == nil {
		chains = NewChains()
	}
	if detector == nil {
		detector = NewDefaultMimeDetector()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{config: config, chains: chains, detector: detector, logger: logger}
}

// Resolve walks the fallback chain: extension chain, named view, xpath, then
// primary content. It returns nil when nothing matches. A returned blob always
// carries a mime type.
func (r *Resolver) Resolve(ctx context.Context, sess Session, node *Node) (*Blob, error) {
	blob, err := r.pick(ctx, sess, node)
	if err != nil || blob == nil {
		return nil, err
	}
	if _, err := EnsureMimeType(ctx, r.detector, blob); err != nil {
		return nil, &NodeError{NodeID: node.ID, Op: "resolve", Err: err}
	}
	return blob, nil
}

func (r *Resolver) pick(ctx context.Context, sess Session, node *Node) (*Blob, error) {
	if r.config.ChainID != "" {
		blob, err := r.chains.RunRendition(ctx, r.config.ChainID, sess, node)
		if err != nil {
			return nil, err
		}
		if blob != nil {
			return blob, nil
		}
	}

	if r.config.DefaultView != "" {
		if mv, ok := node.Multiview(); ok {
			if blob := mv.View(r.config.DefaultView); blob != nil {
				return blob, nil
			}
		}
		r.logger.Debug("default view not available", "node_id", node.ID, "view", r.config.DefaultView)
	}

	if r.config.XPath != "" {
		schema, _, found := strings.Cut(r.config.XPath, ":")
		if found && node.HasSchema(schema) {
			if blob := node.BlobProperty(r.config.XPath); blob != nil {
				return blob, nil
			}
		}
	}

	if node.HasSchema(SchemaFile) {
		return node.Content, nil
	}
	return nil, nil
}
