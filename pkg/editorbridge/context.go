package editorbridge

import (
	"encoding/json"
	"fmt"
	"time"
)

// DocumentContextVersion is the only document context layout this build accepts.
const DocumentContextVersion = 1

// DocumentContext is the snapshot handed to the editor with every document
// fetch and lock change. The editor echoes it back on status checks, and the
// bridge answers those checks from it without asking the repository again.
type DocumentContext struct {
	Version        int          `json:"version"`
	LockInfo       LockSnapshot `json:"lockInfo"`
	DocumentType   string       `json:"documentType,omitempty"`
	LifecycleState string       `json:"lifecycleState,omitempty"`
	CapturedAt     time.Time    `json:"capturedAt"`
}

// Encode serializes the context for the wire.
func (c DocumentContext) Encode() (json.RawMessage, error) {
	return json.Marshal(c)
}

// Age is how long ago the embedded lock snapshot was taken.
func (c DocumentContext) Age(now time.Time) time.Duration {
	return now.Sub(c.CapturedAt)
}

// DecodeDocumentContext parses a context echoed by the editor.
func DecodeDocumentContext(raw json.RawMessage) (DocumentContext, error) {
	var c DocumentContext
	if len(raw) == 0 || string(raw) == "null" {
		return c, fmt.Errorf("%w: missing", ErrInvalidDocumentContext)
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("%w: %v", ErrInvalidDocumentContext, err)
	}
	if c.Version != DocumentContextVersion {
		return c, fmt.Errorf("%w: unsupported version %d", ErrInvalidDocumentContext, c.Version)
	}
	return c, nil
}
