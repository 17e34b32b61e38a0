package objectkey

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Role says which property of a node a blob belongs to.
type Role string

const (
	RoleContent  Role = "content"
	RoleView     Role = "view"
	RoleProperty Role = "property"
)

// KeyMetadata contains information that influences key generation
type KeyMetadata struct {
	FileName string
	Role     Role
	// Name is the view name or property xpath for non-content roles.
	Name string
}

// Generator defines the interface for object key generation strategies
type Generator interface {
	GenerateKey(nodeID string, blobID uuid.UUID, metadata KeyMetadata) string
}

// FlatGenerator lays objects out per node: nodes/{node}/{role}/{blob}_{filename}
type FlatGenerator struct{}

func NewFlatGenerator() *FlatGenerator {
	return &FlatGenerator{}
}

func (g *FlatGenerator) GenerateKey(nodeID string, blobID uuid.UUID, metadata KeyMetadata) string {
	return fmt.Sprintf("nodes/%s/%s/%s", sanitizePathComponent(nodeID), rolePath(metadata), objectName(blobID.String(), metadata))
}

// GitLikeGenerator shards by blob id:
// content/objects/ab/cd1234ef5678_filename, views/{name}/objects/ab/...
type GitLikeGenerator struct {
	// ShardLength controls how many characters to use for sharding (default: 2)
	ShardLength int
}

func NewGitLikeGenerator() *GitLikeGenerator {
	return &GitLikeGenerator{ShardLength: 2}
}

func (g *GitLikeGenerator) GenerateKey(nodeID string, blobID uuid.UUID, metadata KeyMetadata) string {
	id := strings.ReplaceAll(blobID.String(), "-", "")
	shard := g.ShardLength
	if shard <= 0 || shard > len(id) {
		shard = 2
	}
	return fmt.Sprintf("%s/objects/%s/%s", rolePath(metadata), id[:shard], objectName(id[shard:], metadata))
}

func rolePath(metadata KeyMetadata) string {
	switch metadata.Role {
	case RoleView:
		return "views/" + sanitizePathComponent(metadata.Name)
	case RoleProperty:
		return "properties/" + sanitizePathComponent(metadata.Name)
	default:
		return string(RoleContent)
	}
}

func objectName(id string, metadata KeyMetadata) string {
	if metadata.FileName == "" {
		return id
	}
	return id + "_" + sanitizeFilename(metadata.FileName)
}

var unsafeChars = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
	" ", "_",
)

func sanitizeFilename(filename string) string {
	return unsafeChars.Replace(filename)
}

func sanitizePathComponent(component string) string {
	return strings.ToLower(unsafeChars.Replace(component))
}
