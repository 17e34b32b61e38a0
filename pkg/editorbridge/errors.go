package editorbridge

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrNodeNotFound indicates the referenced document or asset does not exist
	ErrNodeNotFound = errors.New("document not found")

	// ErrNoContent indicates the node has no binary content to serve
	ErrNoContent = errors.New("document has no content")

	// ErrNotEditable indicates the content is not text the editor can load
	ErrNotEditable = errors.New("document content is not editable xml")

	// ErrPreviewUnavailable indicates no preview could be produced for the asset
	ErrPreviewUnavailable = errors.New("preview unavailable")

	// ErrLockUnavailable indicates another user holds the editing lock
	ErrLockUnavailable = errors.New("lock unavailable")

	// ErrLockConflict is returned by a session when a compare-and-set lock fails
	ErrLockConflict = errors.New("document is locked by another user")

	// ErrPermissionDenied indicates the principal lacks the permission the operation needs
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidRequest indicates a malformed request body or parameter
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInvalidDocumentContext indicates an unreadable or unsupported document context
	ErrInvalidDocumentContext = errors.New("invalid document context")

	// ErrChainFailed indicates an extension chain returned an error
	ErrChainFailed = errors.New("extension chain failed")

	// ErrChainNotRegistered indicates a configured chain identifier has no implementation
	ErrChainNotRegistered = errors.New("extension chain not registered")

	// ErrNoContainer indicates no target container could be resolved for a new node
	ErrNoContainer = errors.New("no valid container for new document")

	// ErrMissingFilename indicates an asset upload without a filename
	ErrMissingFilename = errors.New("asset filename is required")

	// ErrMimeDetection indicates both sniffing and extension lookup failed
	ErrMimeDetection = errors.New("cannot detect mime type")

	// ErrObjectNotFound indicates a blob store has no object under the key
	ErrObjectNotFound = errors.New("object not found")

	// ErrSessionClosed indicates use of a session after Close
	ErrSessionClosed = errors.New("session closed")
)

// NodeError represents an error related to a repository node
type NodeError struct {
	NodeID string
	Op     string
	Err    error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node operation %s failed for node %s: %v", e.Op, e.NodeID, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// ChainError identifies the extension chain that failed
type ChainError struct {
	ChainID string
	Op      string
	Err     error
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("%s chain %q failed: %v", e.Op, e.ChainID, e.Err)
}

func (e *ChainError) Unwrap() []error {
	return []error{ErrChainFailed, e.Err}
}
