package editorbridge

import (
	"context"
	"fmt"
	"sync"
)

// Extension chains let a deployment customize rendition and creation behavior.
// They are registered by identifier and selected through RenditionConfig and
// CreationConfig.

// RenditionChain picks a binary for a node. A nil blob with a nil error lets
// the resolver fall through to its built-in steps.
type RenditionChain func(ctx context.Context, sess Session, node *Node) (*Blob, error)

// CreationChain creates a node for uploaded content. A nil node with a nil
// error lets the router fall through to container resolution.
type CreationChain func(ctx context.Context, sess Session, content *Blob, params CreationParams) (*Node, error)

// Chains is a registry of extension chains.
type Chains struct {
	mu        sync.RWMutex
	rendition map[string]RenditionChain
	creation  map[string]CreationChain
}

// NewChains creates an empty registry.
func NewChains() *Chains {
	return &Chains{
		rendition: make(map[string]RenditionChain),
		creation:  make(map[string]CreationChain),
	}
}

// RegisterRendition adds or replaces a rendition chain.
func (c *Chains) RegisterRendition(id string, fn RenditionChain) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rendition[id] = fn
}

// RegisterCreation adds or replaces a creation chain.
func (c *Chains) RegisterCreation(id string, fn CreationChain) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creation[id] = fn
}

func (c *Chains) hasRendition(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.rendition[id]
	return ok
}

func (c *Chains) hasCreation(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.creation[id]
	return ok
}

// RunRendition invokes the named rendition chain.
func (c *Chains) RunRendition(ctx context.Context, id string, sess Session, node *Node) (*Blob, error) {
	c.mu.RLock()
	fn, ok := c.rendition[id]
	c.mu.RUnlock()
	if !ok {
		return nil, &ChainError{ChainID: id, Op: "rendition", Err: ErrChainNotRegistered}
	}
	blob, err := fn(ctx, sess, node)
	if err != nil {
		return nil, &ChainError{ChainID: id, Op: "rendition", Err: err}
	}
	return blob, nil
}

// RunCreation invokes the named creation chain.
func (c *Chains) RunCreation(ctx context.Context, id string, sess Session, content *Blob, params CreationParams) (*Node, error) {
	c.mu.RLock()
	fn, ok := c.creation[id]
	c.mu.RUnlock()
	if !ok {
		return nil, &ChainError{ChainID: id, Op: "creation", Err: ErrChainNotRegistered}
	}
	node, err := fn(ctx, sess, content, params)
	if err != nil {
		return nil, &ChainError{ChainID: id, Op: "creation", Err: err}
	}
	return node, nil
}

// validate checks that configured identifiers have an implementation.
func (c *Chains) validate(rendition RenditionConfig, creation CreationConfig) error {
	if rendition.ChainID != "" && !c.hasRendition(rendition.ChainID) {
		return fmt.Errorf("rendition chain %q: %w", rendition.ChainID, ErrChainNotRegistered)
	}
	if creation.ChainID != "" && !c.hasCreation(creation.ChainID) {
		return fmt.Errorf("creation chain %q: %w", creation.ChainID, ErrChainNotRegistered)
	}
	return nil
}
