package api

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tendant/editor-bridge/pkg/editorbridge"
)

// RequestContext is the "context" object the editor attaches to requests.
type RequestContext struct {
	EditSessionToken   string `json:"editSessionToken,omitempty"`
	DocumentID         string `json:"documentId,omitempty"`
	ReferrerDocumentID string `json:"referrerDocumentId,omitempty"`
}

// EditSessionToken is the JSON string the host page hands to the editor when
// it opens a document.
type EditSessionToken struct {
	MainDocID    string      `json:"mainDocId"`
	UnicityToken json.Number `json:"unicityToken"`
}

// ParseEditSessionToken decodes the token. An empty token is not an error.
func ParseEditSessionToken(raw string) (*EditSessionToken, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var t EditSessionToken
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return nil, fmt.Errorf("%w: editSessionToken: %v", editorbridge.ErrInvalidRequest, err)
	}
	if t.MainDocID == "" {
		return nil, fmt.Errorf("%w: editSessionToken has no mainDocId", editorbridge.ErrInvalidRequest)
	}
	return &t, nil
}

// parseQueryContext reads the JSON "context" query parameter.
func parseQueryContext(raw string) (RequestContext, error) {
	var c RequestContext
	if strings.TrimSpace(raw) == "" {
		return c, nil
	}
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return c, fmt.Errorf("%w: context: %v", editorbridge.ErrInvalidRequest, err)
	}
	return c, nil
}

// PostDocumentRequest is the body of POST /document.
type PostDocumentRequest struct {
	Context  RequestContext `json:"context"`
	Content  string         `json:"content"`
	FolderID string         `json:"folderId,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// PutDocumentRequest is the body of PUT /document.
type PutDocumentRequest struct {
	Context         RequestContext  `json:"context"`
	DocumentID      string          `json:"documentId"`
	Content         *string         `json:"content"`
	DocumentContext json.RawMessage `json:"documentContext,omitempty"`
	RevisionID      string          `json:"revisionId,omitempty"`
	Autosave        bool            `json:"autosave,omitempty"`
	Metadata        map[string]any  `json:"metadata,omitempty"`
}

// BrowseRequest is the body of POST /browse.
type BrowseRequest struct {
	Context     RequestContext `json:"context"`
	AssetTypes  []string       `json:"assetTypes"`
	ResultTypes []string       `json:"resultTypes"`
	FolderID    string         `json:"folderId,omitempty"`
	Limit       int            `json:"limit,omitempty"`
	Offset      int            `json:"offset,omitempty"`
	Query       map[string]any `json:"query,omitempty"`
}

// AssetRequest is the "request" part of POST /asset.
type AssetRequest struct {
	Context  RequestContext `json:"context"`
	Type     string         `json:"type"`
	FolderID string         `json:"folderId,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// DocumentStateRequest is the body of POST /document/state.
type DocumentStateRequest struct {
	Documents []editorbridge.DocumentStateRequest `json:"documents"`
}

// DocumentStateResponse keeps results in request order.
type DocumentStateResponse struct {
	Results []DocumentStateItem `json:"results"`
}

// DocumentStateItem is one per-document answer.
type DocumentStateItem struct {
	Status int                `json:"status"`
	Body   *DocumentStateBody `json:"body,omitempty"`
}

// DocumentStateBody is the cached status of a document.
type DocumentStateBody struct {
	DocumentID      string                        `json:"documentId"`
	DocumentContext *editorbridge.DocumentContext `json:"documentContext"`
	Lock            editorbridge.LockSnapshot     `json:"lock"`
}

// LockWish is the "lock" object of PUT /document/lock.
type LockWish struct {
	IsLockAcquired *bool `json:"isLockAcquired"`
}

// PutLockRequest is the body of PUT /document/lock.
type PutLockRequest struct {
	Context         RequestContext  `json:"context"`
	DocumentID      string          `json:"documentId"`
	Lock            LockWish        `json:"lock"`
	DocumentContext json.RawMessage `json:"documentContext,omitempty"`
	RevisionID      string          `json:"revisionId,omitempty"`
}

// PutLockResponse is the 200 answer of PUT /document/lock.
type PutLockResponse struct {
	DocumentContext editorbridge.DocumentContext `json:"documentContext"`
	Lock            editorbridge.LockSnapshot    `json:"lock"`
	RevisionID      string                       `json:"revisionId,omitempty"`
}

func assetTypes(in []string) []editorbridge.AssetType {
	out := make([]editorbridge.AssetType, 0, len(in))
	for _, t := range in {
		out = append(out, editorbridge.AssetType(t))
	}
	return out
}

func resultTypes(in []string) []editorbridge.ResultType {
	out := make([]editorbridge.ResultType, 0, len(in))
	for _, t := range in {
		out = append(out, editorbridge.ResultType(t))
	}
	return out
}
