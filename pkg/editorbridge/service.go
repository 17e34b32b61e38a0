package editorbridge

import (
	"context"
	"encoding/json"
)

// Service is the bridge facade: one method per editor operation. Every call
// opens a repository session for the principal and closes it before returning.
type Service interface {
	GetDocument(ctx context.Context, principal, documentID string) (*DocumentResult, error)
	CreateDocument(ctx context.Context, principal string, req CreateDocumentRequest) (*DocumentResult, error)
	SaveDocument(ctx context.Context, principal string, req SaveDocumentRequest) (*SaveDocumentResult, error)

	GetAsset(ctx context.Context, principal, assetID string) (*Blob, error)
	GetAssetPreview(ctx context.Context, principal, assetID, variant string) (*Blob, error)
	CreateAsset(ctx context.Context, principal string, req CreateAssetRequest) (*AssetResult, error)

	Browse(ctx context.Context, principal string, req BrowseRequest) (*BrowseResult, error)

	DocumentStates(ctx context.Context, reqs []DocumentStateRequest) []DocumentStateResult
	SetLock(ctx context.Context, principal string, req LockRequest) (*LockResult, error)
}

// DocumentResult is returned when a document is fetched or created.
type DocumentResult struct {
	DocumentID      string          `json:"documentId"`
	Content         string          `json:"content"`
	Lock            LockSnapshot    `json:"lock"`
	DocumentContext DocumentContext `json:"documentContext"`
}

// CreateDocumentRequest creates a document next to, or inside, the main document.
type CreateDocumentRequest struct {
	MainDocumentID string
	FolderID       string
	Content        string
	Filename       string
}

// SaveDocumentRequest replaces the XML content of a document.
type SaveDocumentRequest struct {
	DocumentID      string
	Content         string
	DocumentContext *DocumentContext
	RevisionID      string
	Autosave        bool
}

// SaveDocumentResult echoes the context and revision the editor sent, if any.
type SaveDocumentResult struct {
	DocumentContext *DocumentContext `json:"documentContext,omitempty"`
	RevisionID      string           `json:"revisionId,omitempty"`
}

// Empty reports whether there is nothing to send back.
func (r *SaveDocumentResult) Empty() bool {
	return r.DocumentContext == nil && r.RevisionID == ""
}

// CreateAssetRequest uploads a binary asset.
type CreateAssetRequest struct {
	DocumentID string
	FolderID   string
	// Type is reported back when the stored node has no recognizable asset type.
	Type     AssetType
	Filename string
	MimeType string
	Data     []byte
}

// AssetResult describes a created asset.
type AssetResult struct {
	ID    string    `json:"id"`
	Label string    `json:"label"`
	Type  AssetType `json:"type"`
}

// DocumentStateRequest asks for the cached status of one document.
type DocumentStateRequest struct {
	DocumentID      string          `json:"documentId"`
	DocumentContext json.RawMessage `json:"documentContext"`
}

// DocumentStateResult is the cached status of one document. Found is false when
// the request carried no usable context.
type DocumentStateResult struct {
	Found           bool
	DocumentID      string
	DocumentContext *DocumentContext
	Lock            LockSnapshot
}

// LockRequest acquires (Acquire true) or releases the editing lock.
type LockRequest struct {
	DocumentID string
	Acquire    bool
}

// LockResult reports the lock after an acquire or release. Granted is false
// when another user holds the lock.
type LockResult struct {
	Granted         bool            `json:"-"`
	Lock            LockSnapshot    `json:"lock"`
	DocumentContext DocumentContext `json:"documentContext"`
}
