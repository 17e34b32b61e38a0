// Package fixtures seeds a repository from a YAML tree description.
//
//	principal: admin
//	nodes:
//	  - name: docs
//	    type: Folder
//	    acl:
//	      alice: [Read, WriteProperties]
//	    children:
//	      - name: topic.dita
//	        type: File
//	        content: "<topic id='t1'/>"
//	        lockedBy: bob
package fixtures

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/tendant/editor-bridge/pkg/editorbridge"
	"gopkg.in/yaml.v3"
)

// Fixture is a seed file.
type Fixture struct {
	// Principal creates the nodes. Defaults to "admin".
	Principal string `yaml:"principal"`
	Nodes     []Node `yaml:"nodes"`
}

// Node describes one node and its children.
type Node struct {
	Name        string                  `yaml:"name"`
	Type        string                  `yaml:"type"`
	Title       string                  `yaml:"title"`
	Description string                  `yaml:"description"`
	Container   *bool                   `yaml:"container"`
	Schemas     []string                `yaml:"schemas"`
	Hidden      bool                    `yaml:"hidden"`
	Trashed     bool                    `yaml:"trashed"`
	Version     string                  `yaml:"version"`
	State       string                  `yaml:"state"`
	Tags        []string                `yaml:"tags"`
	Content     string                  `yaml:"content"`
	File        string                  `yaml:"file"`
	MimeType    string                  `yaml:"mimeType"`
	Views       map[string]View         `yaml:"views"`
	Properties  map[string]any          `yaml:"properties"`
	Media       *editorbridge.MediaInfo `yaml:"media"`
	LockedBy    string                  `yaml:"lockedBy"`
	ACL         map[string][]string     `yaml:"acl"`
	Children    []Node                  `yaml:"children"`
}

// View is an alternate rendition of a picture.
type View struct {
	Content  string `yaml:"content"`
	File     string `yaml:"file"`
	MimeType string `yaml:"mimeType"`
}

// Granter is implemented by repositories that accept ACL grants.
type Granter interface {
	Grant(ctx context.Context, nodeID, principal string, perms ...editorbridge.Permission) error
}

// Load decodes a fixture.
func Load(r io.Reader) (*Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	if f.Principal == "" {
		f.Principal = "admin"
	}
	return &f, nil
}

// LoadFile reads a fixture from disk. Relative "file" entries resolve against
// the fixture's directory.
func LoadFile(name string) (*Fixture, fs.FS, error) {
	fh, err := os.Open(name)
	if err != nil {
		return nil, nil, err
	}
	defer fh.Close()
	f, err := Load(fh)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", name, err)
	}
	return f, os.DirFS(filepath.Dir(name)), nil
}

// Seeder writes fixtures into a repository.
type Seeder struct {
	repo     editorbridge.Repository
	files    fs.FS
	detector editorbridge.MimeDetector
	logger   *slog.Logger
}

// NewSeeder creates a seeder. files may be nil when the fixture has no "file" entries.
func NewSeeder(repo editorbridge.Repository, files fs.FS, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{repo: repo, files: files, detector: editorbridge.NewDefaultMimeDetector(), logger: logger}
}

// Seed creates every node under the repository root and returns node ids by path.
func (s *Seeder) Seed(ctx context.Context, f *Fixture) (map[string]string, error) {
	sess, err := s.repo.OpenSession(ctx, f.Principal)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	root, err := sess.GetRoot(ctx)
	if err != nil {
		return nil, fmt.Errorf("get root: %w", err)
	}
	ids := make(map[string]string)
	for _, n := range f.Nodes {
		if err := s.seed(ctx, sess, root, n, ids); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

func (s *Seeder) seed(ctx context.Context, sess editorbridge.Session, parent *editorbridge.Node, spec Node, ids map[string]string) error {
	node, err := s.build(ctx, parent, spec)
	if err != nil {
		return fmt.Errorf("fixture %s: %w", path.Join(parent.Path, spec.Name), err)
	}
	created, err := sess.CreateNode(ctx, node)
	if err != nil {
		return fmt.Errorf("create %s: %w", path.Join(parent.Path, spec.Name), err)
	}
	ids[created.Path] = created.ID
	s.logger.Debug("seeded node", "path", created.Path, "id", created.ID, "type", created.Type)

	// Children go in before the ACL so a restricted folder can still be filled.
	for _, child := range spec.Children {
		if err := s.seed(ctx, sess, created, child, ids); err != nil {
			return err
		}
	}
	if err := s.grant(ctx, created.ID, spec.ACL); err != nil {
		return err
	}
	if spec.LockedBy != "" {
		if err := s.lock(ctx, created.ID, spec.LockedBy); err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) build(ctx context.Context, parent *editorbridge.Node, spec Node) (*editorbridge.Node, error) {
	if spec.Name == "" {
		return nil, errors.New("name is required")
	}
	typeName := spec.Type
	if typeName == "" {
		typeName = editorbridge.TypeFile
		if len(spec.Children) > 0 {
			typeName = editorbridge.TypeFolder
		}
	}
	container := typeName == editorbridge.TypeFolder
	if spec.Container != nil {
		container = *spec.Container
	}
	schemas := spec.Schemas
	if schemas == nil {
		schemas = editorbridge.SchemasForType(typeName)
	}

	node := &editorbridge.Node{
		ParentID:       parent.ID,
		Name:           spec.Name,
		Type:           typeName,
		Title:          spec.Title,
		Description:    spec.Description,
		Container:      container,
		Schemas:        schemas,
		Hidden:         spec.Hidden,
		Trashed:        spec.Trashed,
		VersionLabel:   spec.Version,
		LifecycleState: spec.State,
		Tags:           spec.Tags,
		Properties:     spec.Properties,
		Media:          spec.Media,
	}

	content, err := s.blob(ctx, spec.Content, spec.File, spec.MimeType, spec.Name)
	if err != nil {
		return nil, err
	}
	node.Content = content
	for name, v := range spec.Views {
		b, err := s.blob(ctx, v.Content, v.File, v.MimeType, name)
		if err != nil {
			return nil, fmt.Errorf("view %s: %w", name, err)
		}
		if node.Views == nil {
			node.Views = make(map[string]*editorbridge.Blob)
		}
		node.Views[name] = b
	}
	return node, nil
}

// blob builds inline or file content. It returns nil when neither is set.
func (s *Seeder) blob(ctx context.Context, inline, file, mimeType, filename string) (*editorbridge.Blob, error) {
	var data []byte
	switch {
	case file != "":
		if s.files == nil {
			return nil, fmt.Errorf("file %s: no fixture directory", file)
		}
		b, err := fs.ReadFile(s.files, file)
		if err != nil {
			return nil, err
		}
		data = b
		filename = path.Base(file)
	case inline != "":
		data = []byte(inline)
	default:
		return nil, nil
	}
	b := editorbridge.NewBlob(data, mimeType, filename)
	if _, err := editorbridge.EnsureMimeType(ctx, s.detector, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Seeder) grant(ctx context.Context, nodeID string, acl map[string][]string) error {
	if len(acl) == 0 {
		return nil
	}
	g, ok := s.repo.(Granter)
	if !ok {
		s.logger.Warn("repository does not accept grants, acl ignored", "node_id", nodeID)
		return nil
	}
	for principal, names := range acl {
		perms := make([]editorbridge.Permission, 0, len(names))
		for _, n := range names {
			perms = append(perms, editorbridge.Permission(n))
		}
		if err := g.Grant(ctx, nodeID, principal, perms...); err != nil {
			return fmt.Errorf("grant %s on %s: %w", principal, nodeID, err)
		}
	}
	return nil
}

// lock takes the lock as owner through a session of its own.
func (s *Seeder) lock(ctx context.Context, nodeID, owner string) error {
	sess, err := s.repo.OpenSession(ctx, owner)
	if err != nil {
		return err
	}
	defer sess.Close()
	if _, err := sess.SetLock(ctx, nodeID); err != nil {
		return fmt.Errorf("lock %s for %s: %w", nodeID, owner, err)
	}
	return nil
}

// seedTimeout bounds a whole seed run started from the command line.
const seedTimeout = 2 * time.Minute

// SeedFile loads and seeds name in one call.
func SeedFile(ctx context.Context, repo editorbridge.Repository, name string, logger *slog.Logger) (map[string]string, error) {
	f, files, err := LoadFile(name)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, seedTimeout)
	defer cancel()
	return NewSeeder(repo, files, logger).Seed(ctx, f)
}
