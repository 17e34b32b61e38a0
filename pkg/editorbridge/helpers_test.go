package editorbridge_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tendant/editor-bridge/pkg/editorbridge"
	"github.com/tendant/editor-bridge/pkg/editorbridge/repo/memory"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// tree is a small repository shared by the tests:
//
//	/docs
//	/docs/images
//	/docs/topic.dita
//	/docs/notes.txt
//	/docs/photo.png
type tree struct {
	repo   *memory.Repository
	root   string
	docs   *editorbridge.Node
	images *editorbridge.Node
	topic  *editorbridge.Node
	notes  *editorbridge.Node
	photo  *editorbridge.Node
}

func newTree(t *testing.T) *tree {
	t.Helper()
	ctx := context.Background()
	repo := memory.New()
	sess, err := repo.OpenSession(ctx, "admin")
	require.NoError(t, err)
	defer sess.Close()

	tr := &tree{repo: repo, root: repo.RootID()}
	tr.docs = mustCreate(t, sess, folder(tr.root, "docs"))
	tr.images = mustCreate(t, sess, folder(tr.docs.ID, "images"))
	tr.topic = mustCreate(t, sess, file(tr.docs.ID, "topic.dita", editorbridge.TypeFile,
		editorbridge.NewStringBlob("<topic id='t1'><title>Intro</title></topic>", editorbridge.MimeTypeXML, "topic.dita")))
	tr.notes = mustCreate(t, sess, file(tr.docs.ID, "notes.txt", editorbridge.TypeFile,
		editorbridge.NewStringBlob("plain text", "text/plain", "notes.txt")))

	photo := file(tr.docs.ID, "photo.png", editorbridge.TypePicture,
		editorbridge.NewBlob(pngBytes(t, 40, 20), "image/png", "photo.png"))
	photo.Media = &editorbridge.MediaInfo{Width: 40, Height: 20}
	photo.Tags = []string{"cover", "draft"}
	tr.photo = mustCreate(t, sess, photo)
	return tr
}

func (tr *tree) session(t *testing.T, principal string) editorbridge.Session {
	t.Helper()
	sess, err := tr.repo.OpenSession(context.Background(), principal)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })
	return sess
}

func folder(parentID, name string) *editorbridge.Node {
	return &editorbridge.Node{
		ParentID:  parentID,
		Name:      name,
		Type:      editorbridge.TypeFolder,
		Container: true,
		Schemas:   editorbridge.SchemasForType(editorbridge.TypeFolder),
	}
}

func file(parentID, name, typeName string, content *editorbridge.Blob) *editorbridge.Node {
	return &editorbridge.Node{
		ParentID: parentID,
		Name:     name,
		Type:     typeName,
		Schemas:  editorbridge.SchemasForType(typeName),
		Content:  content,
	}
}

func mustCreate(t *testing.T, sess editorbridge.Session, node *editorbridge.Node) *editorbridge.Node {
	t.Helper()
	created, err := sess.CreateNode(context.Background(), node)
	require.NoError(t, err)
	return created
}
