package editorbridge

import (
	"context"
	"io"
	"time"
)

// Repository opens per-request sessions on the backing content store.
type Repository interface {
	OpenSession(ctx context.Context, principal string) (Session, error)
}

// Session is a scoped handle on the repository bound to one caller.
// It must be closed on every exit path.
type Session interface {
	Principal() string

	GetNode(ctx context.Context, id string) (*Node, error)
	GetParent(ctx context.Context, id string) (*Node, error)
	GetRoot(ctx context.Context) (*Node, error)
	GetChild(ctx context.Context, parentID, name string) (*Node, error)
	Exists(ctx context.Context, id string) (bool, error)
	Query(ctx context.Context, q NodeQuery) ([]*Node, error)

	CreateNode(ctx context.Context, node *Node) (*Node, error)
	SaveNode(ctx context.Context, node *Node) (*Node, error)

	HasPermission(ctx context.Context, id string, perm Permission) (bool, error)

	// SetLock locks the node for the session principal if it is unlocked.
	// It is idempotent for the current owner and returns ErrLockConflict when
	// another principal holds the lock.
	SetLock(ctx context.Context, id string) (*Node, error)
	// RemoveLock unlocks the node when the session principal owns the lock.
	RemoveLock(ctx context.Context, id string) (bool, error)

	// NextSequence returns the next value of a named, monotonically increasing counter.
	NextSequence(ctx context.Context, name string) (int64, error)

	Close() error
}

// ObjectMeta describes a stored object.
type ObjectMeta struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
	ETag        string
}

// BlobStore stores the bytes behind node content for repositories that keep
// metadata and binaries apart.
type BlobStore interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, mimeType string) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	GetObjectMeta(ctx context.Context, key string) (*ObjectMeta, error)
	Delete(ctx context.Context, key string) error
}

// MimeDetector finds content types when a blob arrives without one.
type MimeDetector interface {
	// Sniff inspects leading bytes. It returns "" when nothing specific matches.
	Sniff(head []byte) string
	// ByFilename looks the type up from the file extension. It returns "" when unknown.
	ByFilename(name string) string
}

// FileImporter creates the most appropriate node for a blob inside a container.
type FileImporter interface {
	Import(ctx context.Context, sess Session, content *Blob, container *Node, overwrite bool) (*Node, error)
}

// TagService lists the tags applied to a node.
type TagService interface {
	Tags(ctx context.Context, sess Session, node *Node) ([]string, error)
}

// Previewer produces resized variants of picture assets.
type Previewer interface {
	Preview(ctx context.Context, node *Node, variant string) (*Blob, error)
}

// EventSink receives notifications about repository changes made by the bridge.
type EventSink interface {
	DocumentCreated(ctx context.Context, node *Node) error
	DocumentSaved(ctx context.Context, node *Node, autosave bool) error
	AssetCreated(ctx context.Context, node *Node) error
	LockChanged(ctx context.Context, node *Node, locked bool) error
}
