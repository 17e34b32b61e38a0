package editorbridge

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DocumentSequence names the counter used for generated document filenames.
const DocumentSequence = "editor-document"

// Creator routes content uploaded by the editor into the repository.
type Creator struct {
	config   CreationConfig
	chains   *Chains
	importer FileImporter
	detector MimeDetector
	logger   *slog.Logger
}

// NewCreator creates a creation router.
func NewCreator(config CreationConfig, chains *Chains, importer FileImporter, detector MimeDetector, logger *slog.Logger) *Creator {
	if chains == nil {
		chains = NewChains()
	}
	if detector == nil {
		detector = NewDefaultMimeDetector()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if importer == nil {
		importer = NewDefaultImporter(nil)
	}
	return &Creator{config: config, chains: chains, importer: importer, detector: detector, logger: logger}
}

// Create makes a new document (IsAsset false) or asset (IsAsset true).
func (c *Creator) Create(ctx context.Context, sess Session, req CreateRequest) (*Node, error) {
	if req.Content == nil {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidRequest)
	}

	if c.config.ChainID != "" {
		params := CreationParams{IsAsset: req.IsAsset}
		if req.Main != nil {
			params.MainID = req.Main.ID
		}
		if req.Folder != nil {
			params.FolderID = req.Folder.ID
		}
		if !req.IsAsset {
			params.DocumentType = c.config.DocumentType
		}
		node, err := c.chains.RunCreation(ctx, c.config.ChainID, sess, req.Content, params)
		if err != nil {
			return nil, err
		}
		if node != nil {
			return node, nil
		}
	}

	container, err := c.ResolveContainer(ctx, sess, req.Main, req.Folder)
	if err != nil {
		return nil, err
	}

	content := req.Content
	if content.Filename == "" {
		if req.IsAsset {
			return nil, ErrMissingFilename
		}
		seq, err := sess.NextSequence(ctx, DocumentSequence)
		if err != nil {
			return nil, fmt.Errorf("generate document filename: %w", err)
		}
		content = content.WithFilename(fmt.Sprintf("XML-Doc-%d.xml", seq))
	}
	if _, err := EnsureMimeType(ctx, c.detector, content); err != nil {
		return nil, err
	}

	if req.IsAsset || c.config.DocumentType == "" {
		node, err := c.importer.Import(ctx, sess, content, container, true)
		if err != nil {
			return nil, &NodeError{NodeID: container.ID, Op: "import", Err: err}
		}
		return node, nil
	}

	now := time.Now().UTC()
	node := &Node{
		ParentID:   container.ID,
		Name:       content.Filename,
		Type:       c.config.DocumentType,
		Title:      content.Filename,
		Schemas:    []string{SchemaDublinCore, SchemaFile},
		Content:    content,
		CreatedAt:  now,
		ModifiedAt: now,
	}
	created, err := sess.CreateNode(ctx, node)
	if err != nil {
		return nil, &NodeError{NodeID: container.ID, Op: "create", Err: err}
	}
	c.logger.Info("document created", "node_id", created.ID, "type", created.Type, "parent_id", container.ID)
	return created, nil
}

// ResolveContainer applies the container precedence: explicit folder, then the
// main node if it is a container, then the parent of the main node.
func (c *Creator) ResolveContainer(ctx context.Context, sess Session, main, folder *Node) (*Node, error) {
	if folder != nil {
		return folder, nil
	}
	if main == nil {
		return nil, ErrNoContainer
	}
	if main.Container {
		return main, nil
	}
	parent, err := sess.GetParent(ctx, main.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: parent of %s: %v", ErrNoContainer, main.ID, err)
	}
	if parent == nil {
		return nil, ErrNoContainer
	}
	return parent, nil
}
