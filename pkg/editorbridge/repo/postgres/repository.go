package postgres

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/editor-bridge/pkg/editorbridge"
	"github.com/tendant/editor-bridge/pkg/editorbridge/objectkey"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements editorbridge.Repository using PostgreSQL for node
// metadata and a BlobStore for binaries.
type Repository struct {
	db     DBTX
	store  editorbridge.BlobStore
	keys   objectkey.Generator
	types  *editorbridge.TypeRegistry
	logger *slog.Logger
}

// Option configures the repository.
type Option func(*Repository)

// WithTypes sets the registry used to resolve node kinds.
func WithTypes(types *editorbridge.TypeRegistry) Option {
	return func(r *Repository) { r.types = types }
}

// WithKeyGenerator sets how blob store keys are laid out.
func WithKeyGenerator(g objectkey.Generator) Option {
	return func(r *Repository) { r.keys = g }
}

// WithLogger sets the repository logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Repository) { r.logger = logger }
}

// New creates a new PostgreSQL repository
func New(db DBTX, store editorbridge.BlobStore, opts ...Option) *Repository {
	r := &Repository{
		db:     db,
		store:  store,
		keys:   objectkey.NewGitLikeGenerator(),
		types:  editorbridge.DefaultTypes(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool, store editorbridge.BlobStore, opts ...Option) *Repository {
	return New(pool, store, opts...)
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s: a node with this name already exists", operation)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%s: %w", operation, editorbridge.ErrNodeNotFound)
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", operation, editorbridge.ErrNodeNotFound)
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

// Grant adds permissions for principal on a node.
func (r *Repository) Grant(ctx context.Context, nodeID, principal string, perms ...editorbridge.Permission) error {
	id, err := uuid.Parse(nodeID)
	if err != nil {
		return notFound(nodeID)
	}
	for _, p := range perms {
		_, err := r.db.Exec(ctx, `
			INSERT INTO node_acl (node_id, principal, permission) VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING`, id, principal, string(p))
		if err != nil {
			return r.handlePostgresError("grant", err)
		}
	}
	return nil
}

// OpenSession binds a session to principal.
func (r *Repository) OpenSession(ctx context.Context, principal string) (editorbridge.Session, error) {
	if principal == "" {
		return nil, fmt.Errorf("%w: principal is required", editorbridge.ErrInvalidRequest)
	}
	return &session{repo: r, principal: principal}, nil
}

type session struct {
	repo      *Repository
	principal string
	closed    atomic.Bool
}

func (s *session) check() error {
	if s.closed.Load() {
		return editorbridge.ErrSessionClosed
	}
	return nil
}

func (s *session) Principal() string { return s.principal }

func (s *session) Close() error {
	s.closed.Store(true)
	return nil
}

func notFound(id string) error {
	return &editorbridge.NodeError{NodeID: id, Op: "get", Err: editorbridge.ErrNodeNotFound}
}

// require checks perm on id. A missing read permission reports the node as
// missing; a missing write permission reports ErrPermissionDenied.
func (s *session) require(ctx context.Context, op, id string, perm editorbridge.Permission) error {
	ok, err := s.allowed(ctx, id, perm, make(map[string]bool))
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if perm == editorbridge.PermissionRead {
		return notFound(id)
	}
	return &editorbridge.NodeError{NodeID: id, Op: op, Err: editorbridge.ErrPermissionDenied}
}

const nodeColumns = `id, parent_id, name, path, type, title, description, is_container, schemas,
	hidden, trashed, is_version, is_proxy, version_label, lifecycle_state, lock_owner, lock_created,
	content, views, properties, COALESCE(width, 0), COALESCE(height, 0), COALESCE(duration_ms, 0),
	tags, created_at, modified_at`

// blobRef is the JSON form of a blob kept in the blob store.
type blobRef struct {
	Key      string `json:"key"`
	MimeType string `json:"mime_type,omitempty"`
	Filename string `json:"filename,omitempty"`
	Length   int64  `json:"length"`
}

// blobMarker wraps blob-valued entries of the properties column.
const blobMarker = "$blob"

func (r *Repository) lazyBlob(ref blobRef) *editorbridge.Blob {
	key := ref.Key
	b := editorbridge.NewLazyBlob(ref.Length, ref.MimeType, ref.Filename, func(ctx context.Context) (io.ReadCloser, error) {
		return r.store.Download(ctx, key)
	})
	b.Key = key
	return b
}

func (r *Repository) scanNode(row pgx.Row) (*editorbridge.Node, error) {
	var (
		n                          editorbridge.Node
		id                         uuid.UUID
		parentID                   *uuid.UUID
		lockOwner                  *string
		content, views, properties []byte
		width, height              int32
		durationMS                 int64
	)
	err := row.Scan(&id, &parentID, &n.Name, &n.Path, &n.Type, &n.Title, &n.Description, &n.Container, &n.Schemas,
		&n.Hidden, &n.Trashed, &n.IsVersion, &n.IsProxy, &n.VersionLabel, &n.LifecycleState, &lockOwner, &n.LockCreated,
		&content, &views, &properties, &width, &height, &durationMS,
		&n.Tags, &n.CreatedAt, &n.ModifiedAt)
	if err != nil {
		return nil, err
	}

	n.ID = id.String()
	if parentID != nil {
		n.ParentID = parentID.String()
	}
	if lockOwner != nil {
		n.LockOwner = *lockOwner
	}
	if len(content) > 0 && string(content) != "null" {
		var ref blobRef
		if err := json.Unmarshal(content, &ref); err != nil {
			return nil, fmt.Errorf("decode content of %s: %w", n.ID, err)
		}
		n.Content = r.lazyBlob(ref)
	}
	if len(views) > 0 {
		var refs map[string]blobRef
		if err := json.Unmarshal(views, &refs); err != nil {
			return nil, fmt.Errorf("decode views of %s: %w", n.ID, err)
		}
		if len(refs) > 0 {
			n.Views = make(map[string]*editorbridge.Blob, len(refs))
			for name, ref := range refs {
				n.Views[name] = r.lazyBlob(ref)
			}
		}
	}
	if len(properties) > 0 {
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(properties, &raw); err != nil {
			return nil, fmt.Errorf("decode properties of %s: %w", n.ID, err)
		}
		if len(raw) > 0 {
			n.Properties = make(map[string]any, len(raw))
			for k, v := range raw {
				var wrapped map[string]blobRef
				if json.Unmarshal(v, &wrapped) == nil {
					if ref, ok := wrapped[blobMarker]; ok && len(wrapped) == 1 {
						n.Properties[k] = r.lazyBlob(ref)
						continue
					}
				}
				var value any
				if err := json.Unmarshal(v, &value); err != nil {
					return nil, fmt.Errorf("decode property %s of %s: %w", k, n.ID, err)
				}
				n.Properties[k] = value
			}
		}
	}
	if width > 0 || height > 0 || durationMS > 0 {
		n.Media = &editorbridge.MediaInfo{
			Width:    int(width),
			Height:   int(height),
			Duration: time.Duration(durationMS) * time.Millisecond,
		}
	}
	n.Kind = r.types.Resolve(n.Type, n.Container)
	return &n, nil
}

func (s *session) getNode(ctx context.Context, op string, id string) (*editorbridge.Node, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, notFound(id)
	}
	row := s.repo.db.QueryRow(ctx, `SELECT `+nodeColumns+` FROM node WHERE id = $1`, uid)
	node, err := s.repo.scanNode(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound(id)
		}
		return nil, s.repo.handlePostgresError(op, err)
	}
	return node, nil
}

func (s *session) GetNode(ctx context.Context, id string) (*editorbridge.Node, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	node, err := s.getNode(ctx, "get node", id)
	if err != nil {
		return nil, err
	}
	if err := s.require(ctx, "get node", id, editorbridge.PermissionRead); err != nil {
		return nil, err
	}
	return node, nil
}

func (s *session) GetParent(ctx context.Context, id string) (*editorbridge.Node, error) {
	node, err := s.GetNode(ctx, id)
	if err != nil {
		return nil, err
	}
	if node.ParentID == "" {
		return nil, nil
	}
	parent, err := s.getNode(ctx, "get parent", node.ParentID)
	if err != nil {
		return nil, err
	}
	if err := s.require(ctx, "get parent", parent.ID, editorbridge.PermissionRead); err != nil {
		return nil, err
	}
	return parent, nil
}

func (s *session) GetRoot(ctx context.Context) (*editorbridge.Node, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	row := s.repo.db.QueryRow(ctx, `SELECT `+nodeColumns+` FROM node WHERE parent_id IS NULL LIMIT 1`)
	node, err := s.repo.scanNode(row)
	if err != nil {
		return nil, s.repo.handlePostgresError("get root", err)
	}
	return node, nil
}

func (s *session) GetChild(ctx context.Context, parentID, name string) (*editorbridge.Node, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	pid, err := uuid.Parse(parentID)
	if err != nil {
		return nil, notFound(parentID)
	}
	if err := s.require(ctx, "get child", parentID, editorbridge.PermissionRead); err != nil {
		return nil, err
	}
	row := s.repo.db.QueryRow(ctx, `SELECT `+nodeColumns+` FROM node WHERE parent_id = $1 AND name = $2`, pid, name)
	node, err := s.repo.scanNode(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &editorbridge.NodeError{NodeID: parentID, Op: "get child " + name, Err: editorbridge.ErrNodeNotFound}
		}
		return nil, s.repo.handlePostgresError("get child", err)
	}
	if err := s.require(ctx, "get child", node.ID, editorbridge.PermissionRead); err != nil {
		if errors.Is(err, editorbridge.ErrNodeNotFound) {
			return nil, &editorbridge.NodeError{NodeID: parentID, Op: "get child " + name, Err: editorbridge.ErrNodeNotFound}
		}
		return nil, err
	}
	return node, nil
}

func (s *session) Exists(ctx context.Context, id string) (bool, error) {
	if err := s.check(); err != nil {
		return false, err
	}
	uid, err := uuid.Parse(id)
	if err != nil {
		return false, nil
	}
	var exists bool
	if err := s.repo.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM node WHERE id = $1)`, uid).Scan(&exists); err != nil {
		return false, s.repo.handlePostgresError("exists", err)
	}
	return exists, nil
}

var orderColumns = map[string]string{
	"title":    "title",
	"name":     "name",
	"created":  "created_at",
	"modified": "modified_at",
}

// buildQuery renders a NodeQuery as SQL.
func buildQuery(q editorbridge.NodeQuery) (string, []any, error) {
	var (
		clauses []string
		args    []any
	)
	if q.ParentID != "" {
		pid, err := uuid.Parse(q.ParentID)
		if err != nil {
			return "", nil, notFound(q.ParentID)
		}
		args = append(args, pid)
		clauses = append(clauses, fmt.Sprintf("parent_id = $%d", len(args)))
	}
	if q.ExcludeTrashed {
		clauses = append(clauses, "NOT trashed")
	}
	if q.ExcludeVersions {
		clauses = append(clauses, "NOT is_version")
	}
	if q.ExcludeProxies {
		clauses = append(clauses, "NOT is_proxy")
	}
	if q.ExcludeHidden {
		clauses = append(clauses, "NOT hidden")
	}
	switch q.Containers {
	case editorbridge.ContainersOnly:
		clauses = append(clauses, "is_container")
	case editorbridge.NonContainersOnly:
		clauses = append(clauses, "NOT is_container")
	}
	clauses = append(clauses, "parent_id IS NOT NULL")

	sql := `SELECT ` + nodeColumns + ` FROM node WHERE ` + strings.Join(clauses, " AND ")
	column, ok := orderColumns[q.OrderBy]
	if !ok {
		column = "title"
	}
	dir := "ASC"
	if q.Descending {
		dir = "DESC"
	}
	sql += fmt.Sprintf(" ORDER BY %s %s, id", column, dir)
	return sql, args, nil
}

func (s *session) Query(ctx context.Context, q editorbridge.NodeQuery) ([]*editorbridge.Node, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	sql, args, err := buildQuery(q)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, s.repo.handlePostgresError("query", err)
	}
	defer rows.Close()

	var nodes []*editorbridge.Node
	for rows.Next() {
		node, err := s.repo.scanNode(rows)
		if err != nil {
			return nil, s.repo.handlePostgresError("query", err)
		}
		nodes = append(nodes, node)
	}
	if err := rows.Err(); err != nil {
		return nil, s.repo.handlePostgresError("query", err)
	}

	memo := make(map[string]bool)
	visible := nodes[:0]
	for _, n := range nodes {
		ok, err := s.allowed(ctx, n.ID, editorbridge.PermissionRead, memo)
		if err != nil {
			return nil, err
		}
		if ok {
			visible = append(visible, n)
		}
	}
	return visible, nil
}

// persistBlob uploads a blob that has no store key yet and returns its reference.
func (s *session) persistBlob(ctx context.Context, nodeID string, b *editorbridge.Blob, meta objectkey.KeyMetadata) (blobRef, error) {
	if b.Key != "" {
		return blobRef{Key: b.Key, MimeType: b.MimeType, Filename: b.Filename, Length: b.Length}, nil
	}
	data, err := b.Bytes(ctx)
	if err != nil {
		return blobRef{}, fmt.Errorf("read blob %s: %w", b.Filename, err)
	}
	meta.FileName = b.Filename
	key := s.repo.keys.GenerateKey(nodeID, uuid.New(), meta)
	if err := s.repo.store.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), b.MimeType); err != nil {
		return blobRef{}, fmt.Errorf("upload blob %s: %w", key, err)
	}
	return blobRef{Key: key, MimeType: b.MimeType, Filename: b.Filename, Length: int64(len(data))}, nil
}

type encodedBlobs struct {
	content    []byte
	views      []byte
	properties []byte
}

func (s *session) encodeBlobs(ctx context.Context, n *editorbridge.Node) (*encodedBlobs, error) {
	out := &encodedBlobs{}
	if n.Content != nil {
		ref, err := s.persistBlob(ctx, n.ID, n.Content, objectkey.KeyMetadata{Role: objectkey.RoleContent})
		if err != nil {
			return nil, err
		}
		if out.content, err = json.Marshal(ref); err != nil {
			return nil, err
		}
	}

	views := make(map[string]blobRef, len(n.Views))
	for name, b := range n.Views {
		if b == nil {
			continue
		}
		ref, err := s.persistBlob(ctx, n.ID, b, objectkey.KeyMetadata{Role: objectkey.RoleView, Name: name})
		if err != nil {
			return nil, err
		}
		views[name] = ref
	}
	var err error
	if out.views, err = json.Marshal(views); err != nil {
		return nil, err
	}

	props := make(map[string]any, len(n.Properties))
	for k, v := range n.Properties {
		if b, ok := v.(*editorbridge.Blob); ok {
			ref, err := s.persistBlob(ctx, n.ID, b, objectkey.KeyMetadata{Role: objectkey.RoleProperty, Name: k})
			if err != nil {
				return nil, err
			}
			props[k] = map[string]blobRef{blobMarker: ref}
			continue
		}
		props[k] = v
	}
	if out.properties, err = json.Marshal(props); err != nil {
		return nil, err
	}
	return out, nil
}

func mediaColumns(m *editorbridge.MediaInfo) (width, height *int32, durationMS *int64) {
	if m == nil {
		return nil, nil, nil
	}
	w, h, d := int32(m.Width), int32(m.Height), m.Duration.Milliseconds()
	return &w, &h, &d
}

func (s *session) uniqueName(ctx context.Context, parentID uuid.UUID, name string) (string, error) {
	if name == "" {
		name = "untitled"
	}
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	candidate := name
	for i := 1; ; i++ {
		var taken bool
		err := s.repo.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM node WHERE parent_id = $1 AND name = $2)`,
			parentID, candidate).Scan(&taken)
		if err != nil {
			return "", s.repo.handlePostgresError("unique name", err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s.%d%s", base, i, ext)
	}
}

func (s *session) CreateNode(ctx context.Context, node *editorbridge.Node) (*editorbridge.Node, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	parent, err := s.getNode(ctx, "create node", node.ParentID)
	if err != nil {
		return nil, err
	}
	if !parent.Container {
		return nil, fmt.Errorf("%w: parent %s is not a container", editorbridge.ErrInvalidRequest, parent.ID)
	}
	if err := s.require(ctx, "create node", parent.ID, editorbridge.PermissionWrite); err != nil {
		return nil, err
	}
	parentID := uuid.MustParse(parent.ID)

	n := node.Clone()
	id := uuid.New()
	if n.ID != "" {
		if id, err = uuid.Parse(n.ID); err != nil {
			return nil, fmt.Errorf("%w: node id %q", editorbridge.ErrInvalidRequest, n.ID)
		}
	}
	n.ID = id.String()
	if n.Name, err = s.uniqueName(ctx, parentID, n.Name); err != nil {
		return nil, err
	}
	if n.Title == "" {
		n.Title = n.Name
	}
	if n.LifecycleState == "" {
		n.LifecycleState = "project"
	}
	if n.VersionLabel == "" {
		n.VersionLabel = "0.0"
	}
	now := time.Now().UTC()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	if n.ModifiedAt.IsZero() {
		n.ModifiedAt = now
	}

	blobs, err := s.encodeBlobs(ctx, n)
	if err != nil {
		return nil, &editorbridge.NodeError{NodeID: n.ID, Op: "store blobs", Err: err}
	}
	width, height, duration := mediaColumns(n.Media)
	if n.Schemas == nil {
		n.Schemas = []string{}
	}
	if n.Tags == nil {
		n.Tags = []string{}
	}

	_, err = s.repo.db.Exec(ctx, `
		INSERT INTO node (
			id, parent_id, name, path, type, title, description, is_container, schemas,
			hidden, trashed, is_version, is_proxy, version_label, lifecycle_state,
			content, views, properties, width, height, duration_ms, tags, created_at, modified_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24)`,
		id, parentID, n.Name, path.Join(parent.Path, n.Name), n.Type, n.Title, n.Description, n.Container, n.Schemas,
		n.Hidden, n.Trashed, n.IsVersion, n.IsProxy, n.VersionLabel, n.LifecycleState,
		blobs.content, blobs.views, blobs.properties, width, height, duration, n.Tags, n.CreatedAt, n.ModifiedAt)
	if err != nil {
		return nil, s.repo.handlePostgresError("create node", err)
	}
	return s.getNode(ctx, "create node", n.ID)
}

func (s *session) SaveNode(ctx context.Context, node *editorbridge.Node) (*editorbridge.Node, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(node.ID)
	if err != nil {
		return nil, notFound(node.ID)
	}
	if err := s.require(ctx, "save node", node.ID, editorbridge.PermissionRead); err != nil {
		return nil, err
	}
	if err := s.require(ctx, "save node", node.ID, editorbridge.PermissionWrite); err != nil {
		return nil, err
	}
	blobs, err := s.encodeBlobs(ctx, node)
	if err != nil {
		return nil, &editorbridge.NodeError{NodeID: node.ID, Op: "store blobs", Err: err}
	}
	width, height, duration := mediaColumns(node.Media)
	schemas, tags := node.Schemas, node.Tags
	if schemas == nil {
		schemas = []string{}
	}
	if tags == nil {
		tags = []string{}
	}
	modified := node.ModifiedAt
	if modified.IsZero() {
		modified = time.Now().UTC()
	}

	tag, err := s.repo.db.Exec(ctx, `
		UPDATE node SET
			type = $2, title = $3, description = $4, is_container = $5, schemas = $6,
			hidden = $7, trashed = $8, is_version = $9, is_proxy = $10,
			version_label = $11, lifecycle_state = $12,
			content = $13, views = $14, properties = $15,
			width = $16, height = $17, duration_ms = $18, tags = $19, modified_at = $20
		WHERE id = $1`,
		id, node.Type, node.Title, node.Description, node.Container, schemas,
		node.Hidden, node.Trashed, node.IsVersion, node.IsProxy,
		node.VersionLabel, node.LifecycleState,
		blobs.content, blobs.views, blobs.properties,
		width, height, duration, tags, modified)
	if err != nil {
		return nil, s.repo.handlePostgresError("save node", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, notFound(node.ID)
	}
	return s.getNode(ctx, "save node", node.ID)
}

func (s *session) HasPermission(ctx context.Context, id string, perm editorbridge.Permission) (bool, error) {
	if err := s.check(); err != nil {
		return false, err
	}
	return s.allowed(ctx, id, perm, make(map[string]bool))
}

// allowed walks up from id to the closest node carrying an ACL. Decisions are
// memoized per call since siblings share ancestors.
func (s *session) allowed(ctx context.Context, id string, perm editorbridge.Permission, memo map[string]bool) (bool, error) {
	if v, ok := memo[id]; ok {
		return v, nil
	}
	uid, err := uuid.Parse(id)
	if err != nil {
		return false, notFound(id)
	}

	rows, err := s.repo.db.Query(ctx, `SELECT principal, permission FROM node_acl WHERE node_id = $1`, uid)
	if err != nil {
		return false, s.repo.handlePostgresError("check permission", err)
	}
	hasACL, granted := false, false
	for rows.Next() {
		var principal, permission string
		if err := rows.Scan(&principal, &permission); err != nil {
			rows.Close()
			return false, s.repo.handlePostgresError("check permission", err)
		}
		hasACL = true
		if principal != s.principal && principal != "Everyone" {
			continue
		}
		p := editorbridge.Permission(permission)
		if p == perm || (perm == editorbridge.PermissionRead && p == editorbridge.PermissionWrite) {
			granted = true
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return false, s.repo.handlePostgresError("check permission", err)
	}

	var result bool
	if hasACL {
		result = granted
	} else {
		var parentID *uuid.UUID
		err := s.repo.db.QueryRow(ctx, `SELECT parent_id FROM node WHERE id = $1`, uid).Scan(&parentID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return false, notFound(id)
			}
			return false, s.repo.handlePostgresError("check permission", err)
		}
		if parentID == nil {
			result = true
		} else if result, err = s.allowed(ctx, parentID.String(), perm, memo); err != nil {
			return false, err
		}
	}
	memo[id] = result
	return result, nil
}

func (s *session) SetLock(ctx context.Context, id string) (*editorbridge.Node, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, notFound(id)
	}
	if err := s.require(ctx, "set lock", id, editorbridge.PermissionRead); err != nil {
		return nil, err
	}
	if err := s.require(ctx, "set lock", id, editorbridge.PermissionWrite); err != nil {
		return nil, err
	}
	tag, err := s.repo.db.Exec(ctx, `
		UPDATE node SET lock_owner = $2, lock_created = COALESCE(lock_created, now())
		WHERE id = $1 AND (lock_owner IS NULL OR lock_owner = $2)`, uid, s.principal)
	if err != nil {
		return nil, s.repo.handlePostgresError("set lock", err)
	}
	if tag.RowsAffected() == 0 {
		exists, err := s.Exists(ctx, id)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, notFound(id)
		}
		return nil, editorbridge.ErrLockConflict
	}
	return s.getNode(ctx, "set lock", id)
}

func (s *session) RemoveLock(ctx context.Context, id string) (bool, error) {
	if err := s.check(); err != nil {
		return false, err
	}
	uid, err := uuid.Parse(id)
	if err != nil {
		return false, notFound(id)
	}
	if err := s.require(ctx, "remove lock", id, editorbridge.PermissionRead); err != nil {
		return false, err
	}
	if err := s.require(ctx, "remove lock", id, editorbridge.PermissionWrite); err != nil {
		return false, err
	}
	tag, err := s.repo.db.Exec(ctx, `
		UPDATE node SET lock_owner = NULL, lock_created = NULL
		WHERE id = $1 AND lock_owner = $2`, uid, s.principal)
	if err != nil {
		return false, s.repo.handlePostgresError("remove lock", err)
	}
	if tag.RowsAffected() == 0 {
		exists, err := s.Exists(ctx, id)
		if err != nil {
			return false, err
		}
		if !exists {
			return false, notFound(id)
		}
		return false, nil
	}
	return true, nil
}

func (s *session) NextSequence(ctx context.Context, name string) (int64, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	var value int64
	err := s.repo.db.QueryRow(ctx, `
		INSERT INTO node_sequence (name, value) VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET value = node_sequence.value + 1
		RETURNING value`, name).Scan(&value)
	if err != nil {
		return 0, s.repo.handlePostgresError("next sequence", err)
	}
	return value, nil
}
