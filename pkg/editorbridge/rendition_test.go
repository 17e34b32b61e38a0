package editorbridge_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/editor-bridge/pkg/editorbridge"
)

func renditionNode() *editorbridge.Node {
	return &editorbridge.Node{
		ID:      "pic-1",
		Type:    editorbridge.TypePicture,
		Kind:    editorbridge.KindPicture,
		Schemas: []string{editorbridge.SchemaDublinCore, editorbridge.SchemaFile, editorbridge.SchemaPicture, "files"},
		Content: editorbridge.NewBlob([]byte("original"), "image/tiff", "pic.tiff"),
		Views: map[string]*editorbridge.Blob{
			"Medium": editorbridge.NewBlob([]byte("medium"), "image/jpeg", "medium.jpg"),
		},
		Properties: map[string]any{
			"files:print": editorbridge.NewBlob([]byte("print"), "application/pdf", "print.pdf"),
		},
	}
}

func resolve(t *testing.T, cfg editorbridge.RenditionConfig, chains *editorbridge.Chains, node *editorbridge.Node) (*editorbridge.Blob, error) {
	t.Helper()
	r := editorbridge.NewResolver(cfg, chains, nil, nil)
	return r.Resolve(context.Background(), nil, node)
}

func TestResolver_FallbackOrder(t *testing.T) {
	tests := []struct {
		name     string
		config   editorbridge.RenditionConfig
		mutate   func(n *editorbridge.Node)
		wantFile string
	}{
		{
			name:     "primary content by default",
			wantFile: "pic.tiff",
		},
		{
			name:     "named view",
			config:   editorbridge.RenditionConfig{DefaultView: "Medium", XPath: "files:print"},
			wantFile: "medium.jpg",
		},
		{
			name:     "missing view falls through to xpath",
			config:   editorbridge.RenditionConfig{DefaultView: "Large", XPath: "files:print"},
			wantFile: "print.pdf",
		},
		{
			name:   "views ignored without the picture schema",
			config: editorbridge.RenditionConfig{DefaultView: "Medium"},
			mutate: func(n *editorbridge.Node) {
				n.Schemas = []string{editorbridge.SchemaFile}
			},
			wantFile: "pic.tiff",
		},
		{
			name:   "xpath ignored when the schema is absent",
			config: editorbridge.RenditionConfig{XPath: "files:print"},
			mutate: func(n *editorbridge.Node) {
				n.Schemas = []string{editorbridge.SchemaFile, editorbridge.SchemaPicture}
			},
			wantFile: "pic.tiff",
		},
		{
			name:     "xpath without a value falls through",
			config:   editorbridge.RenditionConfig{XPath: "files:other"},
			wantFile: "pic.tiff",
		},
		{
			name:     "primary content xpath",
			config:   editorbridge.RenditionConfig{XPath: editorbridge.PrimaryContentXPath},
			wantFile: "pic.tiff",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := renditionNode()
			if tt.mutate != nil {
				tt.mutate(node)
			}
			blob, err := resolve(t, tt.config, nil, node)
			require.NoError(t, err)
			require.NotNil(t, blob)
			assert.Equal(t, tt.wantFile, blob.Filename)
		})
	}
}

func TestResolver_NoFileSchema(t *testing.T) {
	node := &editorbridge.Node{ID: "f", Kind: editorbridge.KindFolder, Container: true, Schemas: []string{editorbridge.SchemaDublinCore}}
	blob, err := resolve(t, editorbridge.RenditionConfig{DefaultView: "Medium"}, nil, node)
	require.NoError(t, err)
	assert.Nil(t, blob)
}

func TestResolver_Chain(t *testing.T) {
	chains := editorbridge.NewChains()
	chains.RegisterRendition("watermark", func(ctx context.Context, sess editorbridge.Session, node *editorbridge.Node) (*editorbridge.Blob, error) {
		return editorbridge.NewBlob([]byte("marked"), "image/png", "marked.png"), nil
	})
	chains.RegisterRendition("skip", func(ctx context.Context, sess editorbridge.Session, node *editorbridge.Node) (*editorbridge.Blob, error) {
		return nil, nil
	})
	boom := errors.New("boom")
	chains.RegisterRendition("broken", func(ctx context.Context, sess editorbridge.Session, node *editorbridge.Node) (*editorbridge.Blob, error) {
		return nil, boom
	})

	t.Run("chain result wins", func(t *testing.T) {
		blob, err := resolve(t, editorbridge.RenditionConfig{ChainID: "watermark", DefaultView: "Medium"}, chains, renditionNode())
		require.NoError(t, err)
		assert.Equal(t, "marked.png", blob.Filename)
	})

	t.Run("empty chain result falls through", func(t *testing.T) {
		blob, err := resolve(t, editorbridge.RenditionConfig{ChainID: "skip", DefaultView: "Medium"}, chains, renditionNode())
		require.NoError(t, err)
		assert.Equal(t, "medium.jpg", blob.Filename)
	})

	t.Run("chain failure", func(t *testing.T) {
		_, err := resolve(t, editorbridge.RenditionConfig{ChainID: "broken"}, chains, renditionNode())
		require.Error(t, err)
		assert.ErrorIs(t, err, editorbridge.ErrChainFailed)
		assert.ErrorIs(t, err, boom)

		var chainErr *editorbridge.ChainError
		require.ErrorAs(t, err, &chainErr)
		assert.Equal(t, "broken", chainErr.ChainID)
		assert.Equal(t, "rendition", chainErr.Op)
	})

	t.Run("unregistered chain", func(t *testing.T) {
		_, err := resolve(t, editorbridge.RenditionConfig{ChainID: "missing"}, chains, renditionNode())
		assert.ErrorIs(t, err, editorbridge.ErrChainNotRegistered)
	})
}

func TestResolver_DetectsMissingMimeType(t *testing.T) {
	node := renditionNode()
	node.Content = editorbridge.NewStringBlob("<topic/>", "", "topic")

	blob, err := resolve(t, editorbridge.RenditionConfig{}, nil, node)
	require.NoError(t, err)
	assert.Equal(t, editorbridge.MimeTypeXML, blob.MimeType)

	node.Content = editorbridge.NewBlob([]byte{0x00, 0x01}, "", "data.zz9")
	_, err = resolve(t, editorbridge.RenditionConfig{}, nil, node)
	assert.ErrorIs(t, err, editorbridge.ErrMimeDetection)

	var nodeErr *editorbridge.NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "pic-1", nodeErr.NodeID)
}
