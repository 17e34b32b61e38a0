package objectkey

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

var testBlobID = uuid.MustParse("987fcdeb-51a2-43d1-9f12-345678901234")

func TestGitLikeGenerator(t *testing.T) {
	gen := NewGitLikeGenerator()

	tests := []struct {
		name     string
		metadata KeyMetadata
		expected string
	}{
		{
			name:     "content without filename",
			metadata: KeyMetadata{},
			expected: "content/objects/98/7fcdeb51a243d19f12345678901234",
		},
		{
			name:     "content with filename",
			metadata: KeyMetadata{FileName: "my report.pdf", Role: RoleContent},
			expected: "content/objects/98/7fcdeb51a243d19f12345678901234_my_report.pdf",
		},
		{
			name:     "view",
			metadata: KeyMetadata{FileName: "medium.jpg", Role: RoleView, Name: "Medium"},
			expected: "views/medium/objects/98/7fcdeb51a243d19f12345678901234_medium.jpg",
		},
		{
			name:     "property",
			metadata: KeyMetadata{FileName: "print.pdf", Role: RoleProperty, Name: "files:print"},
			expected: "properties/files_print/objects/98/7fcdeb51a243d19f12345678901234_print.pdf",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := gen.GenerateKey("node-1", testBlobID, tt.metadata)
			if result != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, result)
			}
		})
	}
}

func TestGitLikeGenerator_ShardLength(t *testing.T) {
	gen := &GitLikeGenerator{ShardLength: 4}
	result := gen.GenerateKey("node-1", testBlobID, KeyMetadata{})
	if !strings.HasPrefix(result, "content/objects/987f/cdeb") {
		t.Errorf("unexpected key %s", result)
	}

	gen = &GitLikeGenerator{ShardLength: 0}
	result = gen.GenerateKey("node-1", testBlobID, KeyMetadata{})
	if !strings.HasPrefix(result, "content/objects/98/") {
		t.Errorf("invalid shard length should fall back to 2, got %s", result)
	}
}

func TestFlatGenerator(t *testing.T) {
	gen := NewFlatGenerator()

	result := gen.GenerateKey("Node/1", testBlobID, KeyMetadata{FileName: "topic.dita"})
	expected := "nodes/node_1/content/987fcdeb-51a2-43d1-9f12-345678901234_topic.dita"
	if result != expected {
		t.Errorf("expected %s, got %s", expected, result)
	}

	result = gen.GenerateKey("n1", testBlobID, KeyMetadata{Role: RoleView, Name: "Thumbnail"})
	expected = "nodes/n1/views/thumbnail/987fcdeb-51a2-43d1-9f12-345678901234"
	if result != expected {
		t.Errorf("expected %s, got %s", expected, result)
	}
}

func TestGeneratorsProduceDistinctKeys(t *testing.T) {
	generators := map[string]Generator{
		"git-like": NewGitLikeGenerator(),
		"flat":     NewFlatGenerator(),
	}
	for name, gen := range generators {
		t.Run(name, func(t *testing.T) {
			seen := map[string]bool{}
			for i := 0; i < 50; i++ {
				key := gen.GenerateKey("node", uuid.New(), KeyMetadata{FileName: "a.xml"})
				if seen[key] {
					t.Fatalf("duplicate key %s", key)
				}
				seen[key] = true
			}
		})
	}
}
