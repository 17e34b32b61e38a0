package editorbridge_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/editor-bridge/pkg/editorbridge"
)

func TestCreator_ResolveContainer(t *testing.T) {
	tr := newTree(t)
	sess := tr.session(t, "alice")
	c := editorbridge.NewCreator(editorbridge.CreationConfig{}, nil, nil, nil, nil)
	ctx := context.Background()

	t.Run("explicit folder wins", func(t *testing.T) {
		got, err := c.ResolveContainer(ctx, sess, tr.topic, tr.images)
		require.NoError(t, err)
		assert.Equal(t, tr.images.ID, got.ID)
	})

	t.Run("main container", func(t *testing.T) {
		got, err := c.ResolveContainer(ctx, sess, tr.docs, nil)
		require.NoError(t, err)
		assert.Equal(t, tr.docs.ID, got.ID)
	})

	t.Run("parent of main", func(t *testing.T) {
		got, err := c.ResolveContainer(ctx, sess, tr.topic, nil)
		require.NoError(t, err)
		assert.Equal(t, tr.docs.ID, got.ID)
	})

	t.Run("nothing to resolve", func(t *testing.T) {
		_, err := c.ResolveContainer(ctx, sess, nil, nil)
		assert.ErrorIs(t, err, editorbridge.ErrNoContainer)
	})

	t.Run("root has no parent", func(t *testing.T) {
		root, err := sess.GetRoot(ctx)
		require.NoError(t, err)
		root.Container = false
		_, err = c.ResolveContainer(ctx, sess, root, nil)
		assert.ErrorIs(t, err, editorbridge.ErrNoContainer)
	})
}

func TestCreator_DocumentFilenames(t *testing.T) {
	tr := newTree(t)
	sess := tr.session(t, "alice")
	c := editorbridge.NewCreator(editorbridge.CreationConfig{DocumentType: "Topic"}, nil, nil, nil, nil)
	ctx := context.Background()

	first, err := c.Create(ctx, sess, editorbridge.CreateRequest{
		Content: editorbridge.NewStringBlob("<topic/>", editorbridge.MimeTypeXML, ""),
		Main:    tr.topic,
	})
	require.NoError(t, err)
	assert.Equal(t, "XML-Doc-1.xml", first.Name)
	assert.Equal(t, "Topic", first.Type)
	assert.Equal(t, tr.docs.ID, first.ParentID)
	assert.True(t, first.HasSchema(editorbridge.SchemaFile))

	second, err := c.Create(ctx, sess, editorbridge.CreateRequest{
		Content: editorbridge.NewStringBlob("<topic/>", editorbridge.MimeTypeXML, ""),
		Folder:  tr.images,
	})
	require.NoError(t, err)
	assert.Equal(t, "XML-Doc-2.xml", second.Name)
	assert.Equal(t, tr.images.ID, second.ParentID)

	named, err := c.Create(ctx, sess, editorbridge.CreateRequest{
		Content: editorbridge.NewStringBlob("<topic/>", editorbridge.MimeTypeXML, "chapter.dita"),
		Main:    tr.docs,
	})
	require.NoError(t, err)
	assert.Equal(t, "chapter.dita", named.Name)
}

func TestCreator_DocumentWithoutTypeUsesImporter(t *testing.T) {
	tr := newTree(t)
	sess := tr.session(t, "alice")
	c := editorbridge.NewCreator(editorbridge.CreationConfig{}, nil, nil, nil, nil)

	node, err := c.Create(context.Background(), sess, editorbridge.CreateRequest{
		Content: editorbridge.NewStringBlob("<topic/>", "", ""),
		Main:    tr.topic,
	})
	require.NoError(t, err)
	assert.Equal(t, editorbridge.TypeFile, node.Type)
	assert.Equal(t, editorbridge.KindFile, node.Kind)
	assert.Equal(t, editorbridge.MimeTypeXML, node.Content.MimeType)
}

func TestCreator_Assets(t *testing.T) {
	tr := newTree(t)
	sess := tr.session(t, "alice")
	c := editorbridge.NewCreator(editorbridge.CreationConfig{DocumentType: "Topic"}, nil, nil, nil, nil)
	ctx := context.Background()

	t.Run("picture", func(t *testing.T) {
		node, err := c.Create(ctx, sess, editorbridge.CreateRequest{
			Content: editorbridge.NewBlob(pngBytes(t, 30, 10), "", "logo.png"),
			Folder:  tr.images,
			IsAsset: true,
		})
		require.NoError(t, err)
		assert.Equal(t, editorbridge.TypePicture, node.Type)
		assert.Equal(t, editorbridge.KindPicture, node.Kind)
		require.NotNil(t, node.Media)
		assert.Equal(t, 30, node.Media.Width)
		assert.Equal(t, 10, node.Media.Height)
	})

	t.Run("same name overwrites", func(t *testing.T) {
		first, err := c.Create(ctx, sess, editorbridge.CreateRequest{
			Content: editorbridge.NewStringBlob("v1", "text/plain", "readme.txt"),
			Folder:  tr.images,
			IsAsset: true,
		})
		require.NoError(t, err)
		second, err := c.Create(ctx, sess, editorbridge.CreateRequest{
			Content: editorbridge.NewStringBlob("v2", "text/plain", "readme.txt"),
			Folder:  tr.images,
			IsAsset: true,
		})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)

		stored, err := sess.GetNode(ctx, first.ID)
		require.NoError(t, err)
		text, err := stored.Content.String(ctx)
		require.NoError(t, err)
		assert.Equal(t, "v2", text)
	})

	t.Run("filename required", func(t *testing.T) {
		_, err := c.Create(ctx, sess, editorbridge.CreateRequest{
			Content: editorbridge.NewBlob([]byte("x"), "text/plain", ""),
			Folder:  tr.images,
			IsAsset: true,
		})
		assert.ErrorIs(t, err, editorbridge.ErrMissingFilename)
	})

	t.Run("content required", func(t *testing.T) {
		_, err := c.Create(ctx, sess, editorbridge.CreateRequest{Folder: tr.images, IsAsset: true})
		assert.ErrorIs(t, err, editorbridge.ErrInvalidRequest)
	})
}

func TestCreator_Chain(t *testing.T) {
	tr := newTree(t)
	sess := tr.session(t, "alice")
	ctx := context.Background()

	var got editorbridge.CreationParams
	chains := editorbridge.NewChains()
	chains.RegisterCreation("custom", func(ctx context.Context, sess editorbridge.Session, content *editorbridge.Blob, params editorbridge.CreationParams) (*editorbridge.Node, error) {
		got = params
		if params.IsAsset {
			return nil, nil
		}
		return sess.CreateNode(ctx, &editorbridge.Node{
			ParentID: params.FolderID,
			Name:     "from-chain.xml",
			Type:     params.DocumentType,
			Schemas:  []string{editorbridge.SchemaFile},
			Content:  content,
		})
	})
	chains.RegisterCreation("broken", func(ctx context.Context, sess editorbridge.Session, content *editorbridge.Blob, params editorbridge.CreationParams) (*editorbridge.Node, error) {
		return nil, errors.New("quota exceeded")
	})

	c := editorbridge.NewCreator(editorbridge.CreationConfig{ChainID: "custom", DocumentType: "Topic"}, chains, nil, nil, nil)

	node, err := c.Create(ctx, sess, editorbridge.CreateRequest{
		Content: editorbridge.NewStringBlob("<topic/>", editorbridge.MimeTypeXML, ""),
		Main:    tr.topic,
		Folder:  tr.images,
	})
	require.NoError(t, err)
	assert.Equal(t, "from-chain.xml", node.Name)
	assert.Equal(t, editorbridge.CreationParams{MainID: tr.topic.ID, FolderID: tr.images.ID, DocumentType: "Topic"}, got)

	asset, err := c.Create(ctx, sess, editorbridge.CreateRequest{
		Content: editorbridge.NewStringBlob("hello", "text/plain", "hello.txt"),
		Folder:  tr.images,
		IsAsset: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello.txt", asset.Name)
	assert.True(t, got.IsAsset)
	assert.Empty(t, got.DocumentType)

	broken := editorbridge.NewCreator(editorbridge.CreationConfig{ChainID: "broken"}, chains, nil, nil, nil)
	_, err = broken.Create(ctx, sess, editorbridge.CreateRequest{
		Content: editorbridge.NewStringBlob("<topic/>", editorbridge.MimeTypeXML, ""),
		Main:    tr.topic,
	})
	assert.ErrorIs(t, err, editorbridge.ErrChainFailed)
}
