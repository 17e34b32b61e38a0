package scan

import (
	"context"
	"sync"

	"github.com/tendant/editor-bridge/pkg/editorbridge"
)

// RenditionCheck fails every node for which the resolver finds no binary.
// It records the size of each resolved rendition.
type RenditionCheck struct {
	Resolver *editorbridge.Resolver

	mu    sync.Mutex
	sizes map[string]int64
}

func (c *RenditionCheck) Process(ctx context.Context, sess editorbridge.Session, node *editorbridge.Node) error {
	blob, err := c.Resolver.Resolve(ctx, sess, node)
	if err != nil {
		return err
	}
	if blob == nil {
		return &editorbridge.NodeError{NodeID: node.ID, Op: "resolve", Err: editorbridge.ErrNoContent}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sizes == nil {
		c.sizes = map[string]int64{}
	}
	c.sizes[node.ID] = blob.Length
	return nil
}

// Sizes returns the rendition size per resolved node id.
func (c *RenditionCheck) Sizes() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int64, len(c.sizes))
	for k, v := range c.sizes {
		out[k] = v
	}
	return out
}
