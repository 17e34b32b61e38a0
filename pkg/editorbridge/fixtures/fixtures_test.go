package fixtures_test

import (
	"context"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/editor-bridge/pkg/editorbridge"
	"github.com/tendant/editor-bridge/pkg/editorbridge/fixtures"
	"github.com/tendant/editor-bridge/pkg/editorbridge/repo/memory"
)

const seed = `
principal: admin
nodes:
  - name: docs
    type: Folder
    title: Documentation
    acl:
      alice: [WriteProperties]
    children:
      - name: topic.dita
        content: "<topic id='t1'><title>Intro</title></topic>"
        tags: [draft, review]
        lockedBy: bob
      - name: logo.png
        type: Picture
        file: assets/logo.png
        media:
          width: 64
          height: 32
      - name: clip.mp4
        type: Video
        content: "not really a video"
        mimeType: video/mp4
        media:
          duration: 1m5s
`

func TestLoad_Defaults(t *testing.T) {
	f, err := fixtures.Load(strings.NewReader("nodes:\n  - name: a\n"))
	require.NoError(t, err)
	assert.Equal(t, "admin", f.Principal)
	require.Len(t, f.Nodes, 1)
}

func TestLoad_UnknownField(t *testing.T) {
	_, err := fixtures.Load(strings.NewReader("nodes:\n  - name: a\n    colour: red\n"))
	assert.Error(t, err)
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	files := fstest.MapFS{
		"assets/logo.png": {Data: []byte("\x89PNG\r\n\x1a\n0000")},
	}

	f, err := fixtures.Load(strings.NewReader(seed))
	require.NoError(t, err)
	ids, err := fixtures.NewSeeder(repo, files, nil).Seed(ctx, f)
	require.NoError(t, err)
	require.Contains(t, ids, "/docs")
	require.Contains(t, ids, "/docs/topic.dita")
	require.Contains(t, ids, "/docs/logo.png")

	sess, err := repo.OpenSession(ctx, "alice")
	require.NoError(t, err)
	defer sess.Close()

	folder, err := sess.GetNode(ctx, ids["/docs"])
	require.NoError(t, err)
	assert.Equal(t, editorbridge.KindFolder, folder.Kind)
	assert.Equal(t, "Documentation", folder.Title)

	topic, err := sess.GetNode(ctx, ids["/docs/topic.dita"])
	require.NoError(t, err)
	assert.Equal(t, editorbridge.KindFile, topic.Kind)
	assert.True(t, editorbridge.IsEditable(topic.Content))
	assert.Equal(t, "bob", topic.LockOwner)
	assert.Equal(t, []string{"draft", "review"}, topic.Tags)

	logo, err := sess.GetNode(ctx, ids["/docs/logo.png"])
	require.NoError(t, err)
	assert.Equal(t, editorbridge.KindPicture, logo.Kind)
	assert.Equal(t, "image/png", logo.Content.MimeType)
	assert.Equal(t, 64, logo.Media.Width)

	clip, err := sess.GetNode(ctx, ids["/docs/clip.mp4"])
	require.NoError(t, err)
	assert.Equal(t, 65*time.Second, clip.Media.Duration)

	canWrite, err := sess.HasPermission(ctx, topic.ID, editorbridge.PermissionWrite)
	require.NoError(t, err)
	assert.True(t, canWrite)

	other, err := repo.OpenSession(ctx, "mallory")
	require.NoError(t, err)
	defer other.Close()
	canRead, err := other.HasPermission(ctx, topic.ID, editorbridge.PermissionRead)
	require.NoError(t, err)
	assert.False(t, canRead)
}

func TestSeed_MissingFile(t *testing.T) {
	f, err := fixtures.Load(strings.NewReader("nodes:\n  - name: a.png\n    file: nope.png\n"))
	require.NoError(t, err)
	_, err = fixtures.NewSeeder(memory.New(), fstest.MapFS{}, nil).Seed(context.Background(), f)
	assert.Error(t, err)
}
