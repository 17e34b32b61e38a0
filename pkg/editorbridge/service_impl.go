package editorbridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// service implements the Service interface
type service struct {
	repository Repository
	rendition  RenditionConfig
	creation   CreationConfig
	chains     *Chains
	detector   MimeDetector
	importer   FileImporter
	tags       TagService
	previewer  Previewer
	eventSink  EventSink
	logger     *slog.Logger

	resolver *Resolver
	creator  *Creator
	locks    *LockCoordinator
	browser  *Browser
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithRenditionConfig selects how binaries are resolved for GET /asset
func WithRenditionConfig(cfg RenditionConfig) Option {
	return func(s *service) {
		s.rendition = cfg
	}
}

// WithCreationConfig selects how new documents and assets are created
func WithCreationConfig(cfg CreationConfig) Option {
	return func(s *service) {
		s.creation = cfg
	}
}

// WithChains sets the extension chain registry
func WithChains(chains *Chains) Option {
	return func(s *service) {
		s.chains = chains
	}
}

// WithMimeDetector replaces the default mime detector
func WithMimeDetector(detector MimeDetector) Option {
	return func(s *service) {
		s.detector = detector
	}
}

// WithImporter replaces the default file importer
func WithImporter(importer FileImporter) Option {
	return func(s *service) {
		s.importer = importer
	}
}

// WithTagService replaces the node tag reader
func WithTagService(tags TagService) Option {
	return func(s *service) {
		s.tags = tags
	}
}

// WithPreviewer sets the preview generator
func WithPreviewer(previewer Previewer) Option {
	return func(s *service) {
		s.previewer = previewer
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithLogger sets the logger shared by the bridge components
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.chains == nil {
		s.chains = NewChains()
	}
	if s.detector == nil {
		s.detector = NewDefaultMimeDetector()
	}
	if s.importer == nil {
		s.importer = NewDefaultImporter(s.logger)
	}
	if s.previewer == nil {
		s.previewer = NoopPreviewer{}
	}
	if s.eventSink == nil {
		s.eventSink = NewNoopEventSink()
	}
	if err := s.chains.validate(s.rendition, s.creation); err != nil {
		return nil, err
	}

	s.resolver = NewResolver(s.rendition, s.chains, s.detector, s.logger)
	s.creator = NewCreator(s.creation, s.chains, s.importer, s.detector, s.logger)
	s.locks = NewLockCoordinator(s.logger)
	s.browser = NewBrowser(s.tags, s.logger)

	return s, nil
}

// withSession opens a session for principal and closes it on every path.
func (s *service) withSession(ctx context.Context, principal string, fn func(Session) error) error {
	sess, err := s.repository.OpenSession(ctx, principal)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			s.logger.Warn("failed to close session", "principal", principal, "err", cerr)
		}
	}()
	return fn(sess)
}

func (s *service) lockContext(ctx context.Context, sess Session, node *Node) (LockSnapshot, DocumentContext, error) {
	snap, err := s.locks.Snapshot(ctx, sess, node)
	if err != nil {
		return LockSnapshot{}, DocumentContext{}, err
	}
	return snap, s.locks.NewContext(node, snap), nil
}

// Document operations

func (s *service) GetDocument(ctx context.Context, principal, documentID string) (*DocumentResult, error) {
	var result *DocumentResult
	err := s.withSession(ctx, principal, func(sess Session) error {
		node, err := sess.GetNode(ctx, documentID)
		if err != nil {
			return err
		}
		if node.Content == nil {
			return &NodeError{NodeID: documentID, Op: "get document", Err: ErrNoContent}
		}
		if _, err := EnsureMimeType(ctx, s.detector, node.Content); err != nil {
			return err
		}
		if !IsEditable(node.Content) {
			return &NodeError{NodeID: documentID, Op: "get document", Err: ErrNotEditable}
		}
		content, err := node.Content.String(ctx)
		if err != nil {
			return fmt.Errorf("read document content: %w", err)
		}
		snap, dc, err := s.lockContext(ctx, sess, node)
		if err != nil {
			return err
		}
		result = &DocumentResult{DocumentID: node.ID, Content: content, Lock: snap, DocumentContext: dc}
		return nil
	})
	return result, err
}

func (s *service) CreateDocument(ctx context.Context, principal string, req CreateDocumentRequest) (*DocumentResult, error) {
	var result *DocumentResult
	err := s.withSession(ctx, principal, func(sess Session) error {
		main, folder, err := s.references(ctx, sess, req.MainDocumentID, req.FolderID)
		if err != nil {
			return err
		}
		node, err := s.creator.Create(ctx, sess, CreateRequest{
			Content: NewStringBlob(req.Content, MimeTypeXML, req.Filename),
			Main:    main,
			Folder:  folder,
			IsAsset: false,
		})
		if err != nil {
			return err
		}
		snap, dc, err := s.lockContext(ctx, sess, node)
		if err != nil {
			return err
		}
		if err := s.eventSink.DocumentCreated(ctx, node); err != nil {
			s.logger.Warn("document created event failed", "node_id", node.ID, "err", err)
		}
		result = &DocumentResult{DocumentID: node.ID, Content: req.Content, Lock: snap, DocumentContext: dc}
		return nil
	})
	return result, err
}

func (s *service) SaveDocument(ctx context.Context, principal string, req SaveDocumentRequest) (*SaveDocumentResult, error) {
	err := s.withSession(ctx, principal, func(sess Session) error {
		node, err := sess.GetNode(ctx, req.DocumentID)
		if err != nil {
			return err
		}
		filename := node.Name
		if node.Content != nil && node.Content.Filename != "" {
			filename = node.Content.Filename
		}
		node.Content = NewStringBlob(req.Content, MimeTypeXML, filename)
		node.ModifiedAt = time.Now().UTC()
		saved, err := sess.SaveNode(ctx, node)
		if err != nil {
			return &NodeError{NodeID: node.ID, Op: "save document", Err: err}
		}
		if err := s.eventSink.DocumentSaved(ctx, saved, req.Autosave); err != nil {
			s.logger.Warn("document saved event failed", "node_id", saved.ID, "err", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &SaveDocumentResult{DocumentContext: req.DocumentContext, RevisionID: req.RevisionID}, nil
}

// Asset operations

func (s *service) GetAsset(ctx context.Context, principal, assetID string) (*Blob, error) {
	var blob *Blob
	err := s.withSession(ctx, principal, func(sess Session) error {
		node, err := sess.GetNode(ctx, assetID)
		if err != nil {
			return err
		}
		blob, err = s.resolver.Resolve(ctx, sess, node)
		if err != nil {
			return err
		}
		if blob == nil {
			return &NodeError{NodeID: assetID, Op: "resolve", Err: ErrNoContent}
		}
		return nil
	})
	return blob, err
}

func (s *service) GetAssetPreview(ctx context.Context, principal, assetID, variant string) (*Blob, error) {
	var blob *Blob
	err := s.withSession(ctx, principal, func(sess Session) error {
		node, err := sess.GetNode(ctx, assetID)
		if err != nil {
			return err
		}
		blob, err = s.previewer.Preview(ctx, node, variant)
		if err != nil {
			if errors.Is(err, ErrPreviewUnavailable) {
				return &NodeError{NodeID: assetID, Op: "preview", Err: err}
			}
			return &NodeError{NodeID: assetID, Op: "preview", Err: fmt.Errorf("%w: %v", ErrPreviewUnavailable, err)}
		}
		if blob == nil {
			return &NodeError{NodeID: assetID, Op: "preview", Err: ErrPreviewUnavailable}
		}
		return nil
	})
	return blob, err
}

func (s *service) CreateAsset(ctx context.Context, principal string, req CreateAssetRequest) (*AssetResult, error) {
	var result *AssetResult
	err := s.withSession(ctx, principal, func(sess Session) error {
		main, folder, err := s.references(ctx, sess, req.DocumentID, req.FolderID)
		if err != nil {
			return err
		}
		node, err := s.creator.Create(ctx, sess, CreateRequest{
			Content: NewBlob(req.Data, req.MimeType, req.Filename),
			Main:    main,
			Folder:  folder,
			IsAsset: true,
		})
		if err != nil {
			return err
		}
		if err := s.eventSink.AssetCreated(ctx, node); err != nil {
			s.logger.Warn("asset created event failed", "node_id", node.ID, "err", err)
		}
		typ := ItemType(node)
		if typ == AssetUnknown && req.Type != "" {
			typ = req.Type
		}
		result = &AssetResult{ID: node.ID, Label: node.Title, Type: typ}
		return nil
	})
	return result, err
}

// references loads the optional main and folder nodes of a creation call.
func (s *service) references(ctx context.Context, sess Session, mainID, folderID string) (main, folder *Node, err error) {
	if mainID != "" {
		if main, err = sess.GetNode(ctx, mainID); err != nil {
			return nil, nil, err
		}
	}
	if folderID != "" {
		if folder, err = sess.GetNode(ctx, folderID); err != nil {
			return nil, nil, err
		}
	}
	return main, folder, nil
}

// Browse

func (s *service) Browse(ctx context.Context, principal string, req BrowseRequest) (*BrowseResult, error) {
	var result *BrowseResult
	err := s.withSession(ctx, principal, func(sess Session) error {
		var err error
		result, err = s.browser.Browse(ctx, sess, req)
		return err
	})
	return result, err
}

// Lock operations

func (s *service) DocumentStates(ctx context.Context, reqs []DocumentStateRequest) []DocumentStateResult {
	results := make([]DocumentStateResult, 0, len(reqs))
	for _, req := range reqs {
		dc, err := DecodeDocumentContext(req.DocumentContext)
		if err != nil {
			s.logger.Debug("document state without usable context", "document_id", req.DocumentID, "err", err)
			results = append(results, DocumentStateResult{DocumentID: req.DocumentID})
			continue
		}
		results = append(results, DocumentStateResult{
			Found:           true,
			DocumentID:      req.DocumentID,
			DocumentContext: &dc,
			Lock:            s.locks.CachedStatus(dc),
		})
	}
	return results
}

func (s *service) SetLock(ctx context.Context, principal string, req LockRequest) (*LockResult, error) {
	var result *LockResult
	err := s.withSession(ctx, principal, func(sess Session) error {
		node, err := sess.GetNode(ctx, req.DocumentID)
		if err != nil {
			return err
		}
		var out *LockOutcome
		if req.Acquire {
			out, err = s.locks.Acquire(ctx, sess, node)
		} else {
			out, err = s.locks.Release(ctx, sess, node)
		}
		if err != nil {
			return err
		}
		if out.Changed {
			if err := s.eventSink.LockChanged(ctx, out.Node, req.Acquire); err != nil {
				s.logger.Warn("lock changed event failed", "node_id", node.ID, "err", err)
			}
		}
		granted := out.State != LockedByOther
		if req.Acquire {
			granted = out.State == LockedByCaller
		}
		result = &LockResult{
			Granted:         granted,
			Lock:            out.Snapshot,
			DocumentContext: s.locks.NewContext(out.Node, out.Snapshot),
		}
		return nil
	})
	return result, err
}
