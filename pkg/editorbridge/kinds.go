package editorbridge

import (
	"strings"
	"sync"
)

// Concrete repository type names known out of the box.
const (
	TypeFolder  = "Folder"
	TypeFile    = "File"
	TypePicture = "Picture"
	TypeAudio   = "Audio"
	TypeVideo   = "Video"
	TypeRoot    = "Root"
)

// TypeRegistry maps concrete type names to node kinds. Repositories call
// Resolve when they load a node so the rest of the bridge only sees NodeKind.
type TypeRegistry struct {
	mu    sync.RWMutex
	kinds map[string]NodeKind
}

// DefaultTypes returns a registry with the built-in document types.
func DefaultTypes() *TypeRegistry {
	return &TypeRegistry{kinds: map[string]NodeKind{
		TypeFile:    KindFile,
		TypePicture: KindPicture,
		TypeAudio:   KindAudio,
		TypeVideo:   KindVideo,
	}}
}

// Register maps a custom type name to a kind.
func (r *TypeRegistry) Register(typeName string, kind NodeKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds[typeName] = kind
}

// Resolve returns the kind for a node. Containers are always folders.
func (r *TypeRegistry) Resolve(typeName string, container bool) NodeKind {
	if container {
		return KindFolder
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if k, ok := r.kinds[typeName]; ok {
		return k
	}
	return KindOther
}

// TypeForMime picks the concrete type an importer creates for a mime type.
func TypeForMime(mimeType string) string {
	mt := baseMimeType(mimeType)
	switch {
	case strings.HasPrefix(mt, "image/"):
		return TypePicture
	case strings.HasPrefix(mt, "audio/"):
		return TypeAudio
	case strings.HasPrefix(mt, "video/"):
		return TypeVideo
	default:
		return TypeFile
	}
}

// SchemasForType lists the schemas a node of a built-in type exposes.
func SchemasForType(typeName string) []string {
	switch typeName {
	case TypePicture:
		return []string{SchemaDublinCore, SchemaFile, SchemaPicture}
	case TypeAudio, TypeVideo:
		return []string{SchemaDublinCore, SchemaFile, strings.ToLower(typeName)}
	case TypeFolder, TypeRoot:
		return []string{SchemaDublinCore}
	default:
		return []string{SchemaDublinCore, SchemaFile}
	}
}
