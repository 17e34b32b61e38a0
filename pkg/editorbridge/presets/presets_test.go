package presets_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/editor-bridge/pkg/editorbridge"
	"github.com/tendant/editor-bridge/pkg/editorbridge/presets"
)

const tree = `
principal: admin
nodes:
  - name: docs
    type: Folder
    children:
      - name: topic.dita
        type: File
        content: "<topic id='t1'/>"
      - name: logo.svg
        type: Picture
        content: "<svg xmlns='http://www.w3.org/2000/svg'/>"
        mimeType: image/svg+xml
`

func TestNewTesting_Fixture(t *testing.T) {
	b := presets.NewTesting(t, presets.WithFixture(tree))
	ctx := context.Background()

	id := b.ID("/docs/topic.dita")
	require.NotEmpty(t, id)

	doc, err := b.Service.GetDocument(ctx, "alice", id)
	require.NoError(t, err)
	assert.Equal(t, "<topic id='t1'/>", doc.Content)
	assert.Equal(t, 1, doc.DocumentContext.Version)

	lock, err := b.Service.SetLock(ctx, "alice", editorbridge.LockRequest{DocumentID: id, Acquire: true})
	require.NoError(t, err)
	assert.True(t, lock.Granted)
	assert.True(t, lock.Lock.Acquired)

	assert.Empty(t, b.ID("/docs/missing.xml"))
}

func TestNewTesting_DocumentType(t *testing.T) {
	b := presets.NewTesting(t, presets.WithFixture(tree), presets.WithDocumentType("Topic"))

	res, err := b.Service.CreateDocument(context.Background(), "alice", editorbridge.CreateDocumentRequest{
		FolderID: b.ID("/docs"),
		Content:  "<topic/>",
	})
	require.NoError(t, err)
	assert.Equal(t, "Topic", res.DocumentContext.DocumentType)
}

func TestNewTesting_Chains(t *testing.T) {
	chains := editorbridge.NewChains()
	chains.RegisterRendition("print", func(ctx context.Context, sess editorbridge.Session, node *editorbridge.Node) (*editorbridge.Blob, error) {
		return editorbridge.NewStringBlob("print:"+node.Name, "text/plain", node.Name+".txt"), nil
	})
	b := presets.NewTesting(t, presets.WithFixture(tree), presets.WithTestChains(chains, "print", ""))

	blob, err := b.Service.GetAsset(context.Background(), "alice", b.ID("/docs/logo.svg"))
	require.NoError(t, err)
	text, err := blob.String(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "print:logo.svg", text)
}

func TestNewTesting_Isolated(t *testing.T) {
	first := presets.NewTesting(t, presets.WithFixture(tree))
	second := presets.NewTesting(t)

	_, err := second.Service.GetDocument(context.Background(), "alice", first.ID("/docs/topic.dita"))
	assert.ErrorIs(t, err, editorbridge.ErrNodeNotFound)
}

func TestNewDevelopment_SeedFile(t *testing.T) {
	dir := t.TempDir()
	seed := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(seed, []byte(tree), 0o600))

	b, err := presets.NewDevelopment(context.Background(), presets.WithDevSeedFile(seed))
	require.NoError(t, err)
	defer b.Close()

	assert.NotEmpty(t, b.ID("/docs"))
	assert.NotEmpty(t, b.ID("/docs/topic.dita"))

	_, err = presets.NewDevelopment(context.Background(), presets.WithDevSeedFile(filepath.Join(dir, "missing.yaml")))
	assert.Error(t, err)
}

func TestNewProduction_RejectsMemoryBackends(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("STORAGE_URL", "")
	ctx := context.Background()

	_, err := presets.NewProduction(ctx, nil)
	assert.ErrorContains(t, err, "DATABASE_URL")

	_, err = presets.NewProduction(ctx, nil, presets.WithProdDatabase("postgres://localhost/bridge", ""))
	assert.ErrorContains(t, err, "persistent storage")

	_, err = presets.NewProduction(ctx, nil,
		presets.WithProdDatabase("postgres://localhost/bridge", ""),
		presets.WithProdStorage("memory://"),
	)
	assert.ErrorContains(t, err, "persistent storage")
}
