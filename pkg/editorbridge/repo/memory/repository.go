package memory

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/editor-bridge/pkg/editorbridge"
)

// Everyone is the ACL principal matching every caller.
const Everyone = "Everyone"

// Repository implements editorbridge.Repository using in-memory storage.
//
// Nodes are copied on the way in and out. Lock changes happen under the write
// mutex, which gives SetLock its compare-and-set behavior.
type Repository struct {
	mu        sync.RWMutex
	nodes     map[string]*editorbridge.Node
	acl       map[string]map[string][]editorbridge.Permission // node_id -> principal -> permissions
	sequences map[string]int64
	rootID    string
	types     *editorbridge.TypeRegistry
	now       func() time.Time
}

// Option configures the repository.
type Option func(*Repository)

// WithTypes sets the registry used to resolve node kinds.
func WithTypes(types *editorbridge.TypeRegistry) Option {
	return func(r *Repository) {
		r.types = types
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		r.now = now
	}
}

// New creates a new in-memory repository holding only the root folder.
func New(opts ...Option) *Repository {
	r := &Repository{
		nodes:     make(map[string]*editorbridge.Node),
		acl:       make(map[string]map[string][]editorbridge.Permission),
		sequences: make(map[string]int64),
		types:     editorbridge.DefaultTypes(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	now := r.now().UTC()
	root := &editorbridge.Node{
		ID:         uuid.New().String(),
		Name:       "",
		Path:       "/",
		Type:       editorbridge.TypeRoot,
		Title:      "Root",
		Container:  true,
		Schemas:    editorbridge.SchemasForType(editorbridge.TypeRoot),
		CreatedAt:  now,
		ModifiedAt: now,
	}
	root.Kind = r.types.Resolve(root.Type, root.Container)
	r.nodes[root.ID] = root
	r.rootID = root.ID
	return r
}

// RootID returns the identifier of the root folder.
func (r *Repository) RootID() string {
	return r.rootID
}

// Grant adds permissions for principal on a node. A node with any grant
// restricts itself and its descendants to the principals it names.
func (r *Repository) Grant(ctx context.Context, nodeID, principal string, perms ...editorbridge.Permission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.nodes[nodeID]; !ok {
		return notFound(nodeID)
	}
	if r.acl[nodeID] == nil {
		r.acl[nodeID] = make(map[string][]editorbridge.Permission)
	}
	r.acl[nodeID][principal] = append(r.acl[nodeID][principal], perms...)
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

func (s *session) Principal() string {
	return s.principal
}

func (s *session) Close() error {
	s.closed.Store(true)
	return nil
}

func notFound(id string) error {
	return &editorbridge.NodeError{NodeID: id, Op: "get", Err: editorbridge.ErrNodeNotFound}
}

func denied(id, op string) error {
	return &editorbridge.NodeError{NodeID: id, Op: op, Err: editorbridge.ErrPermissionDenied}
}

// readableLocked returns the node when it exists and the session may read it.
// Unreadable nodes look missing.
func (s *session) readableLocked(id string) (*editorbridge.Node, bool) {
	node, ok := s.repo.nodes[id]
	if !ok || !s.repo.allowedLocked(id, s.principal, editorbridge.PermissionRead) {
		return nil, false
	}
	return node, true
}

func (s *session) GetNode(ctx context.Context, id string) (*editorbridge.Node, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	s.repo.mu.RLock()
	defer s.repo.mu.RUnlock()

	node, ok := s.readableLocked(id)
	if !ok {
		return nil, notFound(id)
	}
	return node.Clone(), nil
}

func (s *session) GetParent(ctx context.Context, id string) (*editorbridge.Node, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	s.repo.mu.RLock()
	defer s.repo.mu.RUnlock()

	node, ok := s.readableLocked(id)
	if !ok {
		return nil, notFound(id)
	}
	if node.ParentID == "" {
		return nil, nil
	}
	parent, ok := s.readableLocked(node.ParentID)
	if !ok {
		return nil, notFound(node.ParentID)
	}
	return parent.Clone(), nil
}

func (s *session) GetRoot(ctx context.Context) (*editorbridge.Node, error) {
	return s.GetNode(ctx, s.repo.rootID)
}

func (s *session) GetChild(ctx context.Context, parentID, name string) (*editorbridge.Node, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	s.repo.mu.RLock()
	defer s.repo.mu.RUnlock()

	if _, ok := s.readableLocked(parentID); ok {
		if child := s.repo.childLocked(parentID, name); child != nil && s.repo.allowedLocked(child.ID, s.principal, editorbridge.PermissionRead) {
			return child.Clone(), nil
		}
	}
	return nil, &editorbridge.NodeError{NodeID: parentID, Op: "get child " + name, Err: editorbridge.ErrNodeNotFound}
}

func (r *Repository) childLocked(parentID, name string) *editorbridge.Node {
	for _, n := range r.nodes {
		if n.ParentID == parentID && n.Name == name {
			return n
		}
	}
	return nil
}

func (s *session) Exists(ctx context.Context, id string) (bool, error) {
	if err := s.check(); err != nil {
		return false, err
	}
	s.repo.mu.RLock()
	defer s.repo.mu.RUnlock()
	_, ok := s.repo.nodes[id]
	return ok, nil
}

func (s *session) Query(ctx context.Context, q editorbridge.NodeQuery) ([]*editorbridge.Node, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	s.repo.mu.RLock()
	defer s.repo.mu.RUnlock()

	var result []*editorbridge.Node
	for _, n := range s.repo.nodes {
		if n.ID == s.repo.rootID || !q.Matches(n) {
			continue
		}
		if !s.repo.allowedLocked(n.ID, s.principal, editorbridge.PermissionRead) {
			continue
		}
		result = append(result, n.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := orderKey(result[i], q.OrderBy), orderKey(result[j], q.OrderBy)
		if a == b {
			return result[i].ID < result[j].ID
		}
		if q.Descending {
			return a > b
		}
		return a < b
	})
	return result, nil
}

func orderKey(n *editorbridge.Node, field string) string {
	switch field {
	case "name":
		return n.Name
	case "modified":
		return n.ModifiedAt.Format(time.RFC3339Nano)
	case "created":
		return n.CreatedAt.Format(time.RFC3339Nano)
	default:
		return n.Title
	}
}

func (s *session) CreateNode(ctx context.Context, node *editorbridge.Node) (*editorbridge.Node, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	s.repo.mu.Lock()
	defer s.repo.mu.Unlock()

	parent, ok := s.repo.nodes[node.ParentID]
	if !ok {
		return nil, notFound(node.ParentID)
	}
	if !parent.Container {
		return nil, fmt.Errorf("%w: parent %s is not a container", editorbridge.ErrInvalidRequest, parent.ID)
	}
	if !s.repo.allowedLocked(parent.ID, s.principal, editorbridge.PermissionWrite) {
		return nil, denied(parent.ID, "create")
	}

	n := node.Clone()
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if _, exists := s.repo.nodes[n.ID]; exists {
		return nil, fmt.Errorf("node %s already exists", n.ID)
	}
	n.Name = s.repo.uniqueNameLocked(parent.ID, n.Name)
	n.Path = path.Join(parent.Path, n.Name)
	if n.Title == "" {
		n.Title = n.Name
	}
	if n.LifecycleState == "" {
		n.LifecycleState = "project"
	}
	if n.VersionLabel == "" {
		n.VersionLabel = "0.0"
	}
	now := s.repo.now().UTC()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	if n.ModifiedAt.IsZero() {
		n.ModifiedAt = now
	}
	n.LockOwner = ""
	n.LockCreated = nil
	n.Kind = s.repo.types.Resolve(n.Type, n.Container)

	s.repo.nodes[n.ID] = n
	return n.Clone(), nil
}

func (r *Repository) uniqueNameLocked(parentID, name string) string {
	if name == "" {
		name = "untitled"
	}
	if r.childLocked(parentID, name) == nil {
		return name
	}
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s.%d%s", base, i, ext)
		if r.childLocked(parentID, candidate) == nil {
			return candidate
		}
	}
}

func (s *session) SaveNode(ctx context.Context, node *editorbridge.Node) (*editorbridge.Node, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	s.repo.mu.Lock()
	defer s.repo.mu.Unlock()

	existing, ok := s.readableLocked(node.ID)
	if !ok {
		return nil, notFound(node.ID)
	}
	if !s.repo.allowedLocked(node.ID, s.principal, editorbridge.PermissionWrite) {
		return nil, denied(node.ID, "save")
	}

	n := node.Clone()
	n.ParentID = existing.ParentID
	n.Name = existing.Name
	n.Path = existing.Path
	n.CreatedAt = existing.CreatedAt
	n.LockOwner = existing.LockOwner
	n.LockCreated = existing.LockCreated
	n.Kind = s.repo.types.Resolve(n.Type, n.Container)
	if n.ModifiedAt.IsZero() || !n.ModifiedAt.After(existing.ModifiedAt) {
		n.ModifiedAt = s.repo.now().UTC()
	}

	s.repo.nodes[n.ID] = n
	return n.Clone(), nil
}

func (s *session) HasPermission(ctx context.Context, id string, perm editorbridge.Permission) (bool, error) {
	if err := s.check(); err != nil {
		return false, err
	}
	s.repo.mu.RLock()
	defer s.repo.mu.RUnlock()

	if _, ok := s.repo.nodes[id]; !ok {
		return false, notFound(id)
	}
	return s.repo.allowedLocked(id, s.principal, perm), nil
}

// allowedLocked walks up from id to the closest node carrying an ACL. Without
// any ACL on the way everything is allowed.
func (r *Repository) allowedLocked(id, principal string, perm editorbridge.Permission) bool {
	for n := r.nodes[id]; n != nil; n = r.nodes[n.ParentID] {
		acl, ok := r.acl[n.ID]
		if !ok {
			continue
		}
		granted := append(append([]editorbridge.Permission(nil), acl[principal]...), acl[Everyone]...)
		for _, p := range granted {
			if p == perm || (perm == editorbridge.PermissionRead && p == editorbridge.PermissionWrite) {
				return true
			}
		}
		return false
	}
	return true
}

func (s *session) SetLock(ctx context.Context, id string) (*editorbridge.Node, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	s.repo.mu.Lock()
	defer s.repo.mu.Unlock()

	node, ok := s.readableLocked(id)
	if !ok {
		return nil, notFound(id)
	}
	if !s.repo.allowedLocked(id, s.principal, editorbridge.PermissionWrite) {
		return nil, denied(id, "lock")
	}
	switch node.LockOwner {
	case "":
		t := s.repo.now().UTC()
		node.LockOwner = s.principal
		node.LockCreated = &t
	case s.principal:
	default:
		return nil, editorbridge.ErrLockConflict
	}
	return node.Clone(), nil
}

func (s *session) RemoveLock(ctx context.Context, id string) (bool, error) {
	if err := s.check(); err != nil {
		return false, err
	}
	s.repo.mu.Lock()
	defer s.repo.mu.Unlock()

	node, ok := s.readableLocked(id)
	if !ok {
		return false, notFound(id)
	}
	if !s.repo.allowedLocked(id, s.principal, editorbridge.PermissionWrite) {
		return false, denied(id, "unlock")
	}
	if node.LockOwner != s.principal {
		return false, nil
	}
	node.LockOwner = ""
	node.LockCreated = nil
	return true, nil
}

func (s *session) NextSequence(ctx context.Context, name string) (int64, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	s.repo.mu.Lock()
	defer s.repo.mu.Unlock()
	s.repo.sequences[name]++
	return s.repo.sequences[name], nil
}
