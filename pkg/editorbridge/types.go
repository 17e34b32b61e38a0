package editorbridge

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

// NodeKind is the closed set of node shapes the bridge reasons about.
// Repositories resolve it once from the concrete type name when a node is loaded.
type NodeKind int

const (
	KindOther NodeKind = iota
	KindFolder
	KindFile
	KindPicture
	KindAudio
	KindVideo
)

func (k NodeKind) String() string {
	switch k {
	case KindFolder:
		return "folder"
	case KindFile:
		return "file"
	case KindPicture:
		return "picture"
	case KindAudio:
		return "audio"
	case KindVideo:
		return "video"
	default:
		return "other"
	}
}

// Schema names understood by the resolver and the browse translator.
const (
	SchemaFile       = "file"
	SchemaPicture    = "picture"
	SchemaDublinCore = "dublincore"
)

// PrimaryContentXPath addresses the primary binary property of a node.
const PrimaryContentXPath = "file:content"

// Permission is a repository access right checked on behalf of the caller.
type Permission string

const (
	PermissionRead  Permission = "Read"
	PermissionWrite Permission = "WriteProperties"
)

// MediaInfo carries the dimensions and duration of picture, audio and video nodes.
type MediaInfo struct {
	Width    int           `json:"width,omitempty" yaml:"width,omitempty"`
	Height   int           `json:"height,omitempty" yaml:"height,omitempty"`
	Duration time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// Node is a single item of the repository: a folder, a file, a media asset.
//
// Nodes are owned by the repository. The bridge reads and mutates them through
// a Session and never keeps one beyond the request that loaded it.
type Node struct {
	ID          string   `json:"id"`
	ParentID    string   `json:"parent_id,omitempty"`
	Name        string   `json:"name"`
	Path        string   `json:"path"`
	Type        string   `json:"type"`
	Kind        NodeKind `json:"-"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Container   bool     `json:"container"`
	Schemas     []string `json:"schemas,omitempty"`

	Hidden    bool `json:"hidden,omitempty"`
	Trashed   bool `json:"trashed,omitempty"`
	IsVersion bool `json:"is_version,omitempty"`
	IsProxy   bool `json:"is_proxy,omitempty"`

	VersionLabel   string `json:"version_label,omitempty"`
	LifecycleState string `json:"lifecycle_state,omitempty"`

	LockOwner   string     `json:"lock_owner,omitempty"`
	LockCreated *time.Time `json:"lock_created,omitempty"`

	Content    *Blob            `json:"-"`
	Views      map[string]*Blob `json:"-"`
	Properties map[string]any   `json:"-"`
	Media      *MediaInfo       `json:"media,omitempty"`
	Tags       []string         `json:"tags,omitempty"`

	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// HasSchema reports whether the node exposes the named schema.
func (n *Node) HasSchema(name string) bool {
	for _, s := range n.Schemas {
		if s == name {
			return true
		}
	}
	return false
}

// BlobProperty returns the binary value stored at xpath, or nil.
func (n *Node) BlobProperty(xpath string) *Blob {
	if xpath == PrimaryContentXPath {
		return n.Content
	}
	if b, ok := n.Properties[xpath].(*Blob); ok {
		return b
	}
	return nil
}

// Multiview is the adapter over precomputed alternate renditions of a node.
type Multiview interface {
	View(name string) *Blob
}

type nodeViews map[string]*Blob

func (v nodeViews) View(name string) *Blob {
	return v[name]
}

// Multiview adapts the node to its named views. Only picture nodes adapt.
func (n *Node) Multiview() (Multiview, bool) {
	if !n.HasSchema(SchemaPicture) {
		return nil, false
	}
	return nodeViews(n.Views), true
}

// Clone returns a deep enough copy for a caller to mutate freely. Blob bytes
// are shared.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	c.Content = n.Content.clone()
	c.Schemas = append([]string(nil), n.Schemas...)
	c.Tags = append([]string(nil), n.Tags...)
	if n.Views != nil {
		c.Views = make(map[string]*Blob, len(n.Views))
		for k, v := range n.Views {
			c.Views[k] = v.clone()
		}
	}
	if n.Properties != nil {
		c.Properties = make(map[string]any, len(n.Properties))
		for k, v := range n.Properties {
			if b, ok := v.(*Blob); ok {
				v = b.clone()
			}
			c.Properties[k] = v
		}
	}
	if n.Media != nil {
		m := *n.Media
		c.Media = &m
	}
	if n.LockCreated != nil {
		t := *n.LockCreated
		c.LockCreated = &t
	}
	return &c
}

// Blob is a binary content value: bytes plus content type, filename and length.
//
// A Blob is immutable once built, except that a missing MimeType may be set once
// with SetMimeType.
type Blob struct {
	MimeType string
	Filename string
	Length   int64
	// Key is the blob store key once a repository has persisted the bytes.
	Key string

	data []byte
	open func(ctx context.Context) (io.ReadCloser, error)
}

// NewBlob wraps an in-memory buffer.
func NewBlob(data []byte, mimeType, filename string) *Blob {
	return &Blob{
		MimeType: mimeType,
		Filename: filename,
		Length:   int64(len(data)),
		data:     data,
	}
}

// NewStringBlob wraps text content.
func NewStringBlob(content, mimeType, filename string) *Blob {
	return NewBlob([]byte(content), mimeType, filename)
}

// NewLazyBlob describes content whose bytes are fetched on demand, typically
// from a BlobStore.
func NewLazyBlob(length int64, mimeType, filename string, open func(ctx context.Context) (io.ReadCloser, error)) *Blob {
	return &Blob{
		MimeType: mimeType,
		Filename: filename,
		Length:   length,
		open:     open,
	}
}

// Open returns a reader over the blob bytes.
func (b *Blob) Open(ctx context.Context) (io.ReadCloser, error) {
	if b.open != nil {
		return b.open(ctx)
	}
	return io.NopCloser(bytes.NewReader(b.data)), nil
}

// Bytes reads the whole blob.
func (b *Blob) Bytes(ctx context.Context) ([]byte, error) {
	if b.open == nil {
		return b.data, nil
	}
	rc, err := b.open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// String reads the blob as text.
func (b *Blob) String(ctx context.Context) (string, error) {
	data, err := b.Bytes(ctx)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// head returns up to n leading bytes, used for content sniffing.
func (b *Blob) head(ctx context.Context, n int) ([]byte, error) {
	if b.open == nil {
		if len(b.data) > n {
			return b.data[:n], nil
		}
		return b.data, nil
	}
	rc, err := b.open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	buf := make([]byte, n)
	read, err := io.ReadFull(rc, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:read], nil
}

func (b *Blob) clone() *Blob {
	if b == nil {
		return nil
	}
	c := *b
	return &c
}

// SetMimeType fills in a missing content type. It does not overwrite a set one.
func (b *Blob) SetMimeType(mimeType string) {
	if b.MimeType == "" {
		b.MimeType = mimeType
	}
}

// WithFilename returns a copy of the blob under another filename.
func (b *Blob) WithFilename(name string) *Blob {
	c := *b
	c.Filename = name
	return &c
}

// RenditionConfig selects how the resolver picks a binary for a node.
type RenditionConfig struct {
	ChainID     string
	DefaultView string
	XPath       string
}

// CreationConfig selects how new documents are created.
// An empty DocumentType sends every creation through the FileImporter.
type CreationConfig struct {
	ChainID      string
	DocumentType string
}

// ContainerFilter restricts a query to containers or to leaves.
type ContainerFilter int

const (
	AnyNode ContainerFilter = iota
	ContainersOnly
	NonContainersOnly
)

// NodeQuery is a structured repository query produced by the browse translator.
type NodeQuery struct {
	ParentID        string
	Containers      ContainerFilter
	ExcludeTrashed  bool
	ExcludeVersions bool
	ExcludeProxies  bool
	ExcludeHidden   bool
	OrderBy         string
	Descending      bool
}

// Matches evaluates the query predicate against a node. Repositories without a
// query language of their own filter with it.
func (q NodeQuery) Matches(n *Node) bool {
	if q.ParentID != "" && n.ParentID != q.ParentID {
		return false
	}
	if q.ExcludeTrashed && n.Trashed {
		return false
	}
	if q.ExcludeVersions && n.IsVersion {
		return false
	}
	if q.ExcludeProxies && n.IsProxy {
		return false
	}
	if q.ExcludeHidden && n.Hidden {
		return false
	}
	switch q.Containers {
	case ContainersOnly:
		return n.Container
	case NonContainersOnly:
		return !n.Container
	}
	return true
}

// String renders the query in a readable form for logs.
func (q NodeQuery) String() string {
	var clauses []string
	if q.ExcludeTrashed {
		clauses = append(clauses, "trashed = 0")
	}
	if q.ExcludeVersions {
		clauses = append(clauses, "is_version = 0")
	}
	if q.ExcludeProxies {
		clauses = append(clauses, "is_proxy = 0")
	}
	if q.ExcludeHidden {
		clauses = append(clauses, "hidden = 0")
	}
	switch q.Containers {
	case ContainersOnly:
		clauses = append(clauses, "container = 1")
	case NonContainersOnly:
		clauses = append(clauses, "container = 0")
	}
	clauses = append(clauses, "parent_id = '"+q.ParentID+"'")
	s := "SELECT * FROM node WHERE " + strings.Join(clauses, " AND ")
	if q.OrderBy != "" {
		dir := "ASC"
		if q.Descending {
			dir = "DESC"
		}
		s += " ORDER BY " + q.OrderBy + " " + dir
	}
	return s
}

// CreationParams are handed to a creation chain.
type CreationParams struct {
	MainID       string
	FolderID     string
	IsAsset      bool
	DocumentType string
}

// CreateRequest is the input of the creation router.
type CreateRequest struct {
	Content *Blob
	Main    *Node
	Folder  *Node
	IsAsset bool
}
