package editorbridge_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/editor-bridge/pkg/editorbridge"
)

func labels(items []editorbridge.BrowseItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Label)
	}
	return out
}

func TestBrowser_Browse(t *testing.T) {
	tr := newTree(t)
	ctx := context.Background()

	admin := tr.session(t, "admin")
	hidden := file(tr.docs.ID, "hidden.xml", editorbridge.TypeFile, editorbridge.NewStringBlob("<a/>", "text/xml", "hidden.xml"))
	hidden.Hidden = true
	mustCreate(t, admin, hidden)
	trashed := file(tr.docs.ID, "trashed.xml", editorbridge.TypeFile, editorbridge.NewStringBlob("<a/>", "text/xml", "trashed.xml"))
	trashed.Trashed = true
	mustCreate(t, admin, trashed)
	version := file(tr.docs.ID, "topic-v1.dita", editorbridge.TypeFile, editorbridge.NewStringBlob("<a/>", "text/xml", "topic-v1.dita"))
	version.IsVersion = true
	mustCreate(t, admin, version)
	mustCreate(t, admin, &editorbridge.Node{ParentID: tr.docs.ID, Name: "note", Type: "Note", Schemas: []string{editorbridge.SchemaDublinCore}})

	b := editorbridge.NewBrowser(nil, nil)
	sess := tr.session(t, "alice")

	tests := []struct {
		name        string
		assetTypes  []editorbridge.AssetType
		resultTypes []editorbridge.ResultType
		want        []string
	}{
		{
			name:       "documents and folders",
			assetTypes: []editorbridge.AssetType{editorbridge.AssetDocument},
			want:       []string{"images", "topic.dita"},
		},
		{
			name:       "everything",
			assetTypes: []editorbridge.AssetType{editorbridge.AssetDocument, editorbridge.AssetFile, editorbridge.AssetImage},
			want:       []string{"images", "notes.txt", "photo.png", "topic.dita"},
		},
		{
			name:        "files only",
			assetTypes:  []editorbridge.AssetType{editorbridge.AssetImage},
			resultTypes: []editorbridge.ResultType{editorbridge.ResultFile},
			want:        []string{"photo.png"},
		},
		{
			name:        "folders only",
			assetTypes:  []editorbridge.AssetType{editorbridge.AssetDocument},
			resultTypes: []editorbridge.ResultType{editorbridge.ResultFolder},
			want:        []string{"images"},
		},
		{
			name:        "both result types",
			assetTypes:  []editorbridge.AssetType{editorbridge.AssetFile},
			resultTypes: []editorbridge.ResultType{editorbridge.ResultFile, editorbridge.ResultFolder},
			want:        []string{"images", "notes.txt", "photo.png", "topic.dita"},
		},
		{
			name: "no asset types still lists folders",
			want: []string{"images"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := b.Browse(ctx, sess, editorbridge.BrowseRequest{
				FolderID:    tr.docs.ID,
				AssetTypes:  tt.assetTypes,
				ResultTypes: tt.resultTypes,
				Limit:       -1,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, labels(res.Items))
			assert.Equal(t, len(tt.want), res.TotalItemCount)
			assert.Equal(t, []string{"Root", "docs"}, labels(res.HierarchyItems))
		})
	}
}

func TestBrowser_ItemProperties(t *testing.T) {
	tr := newTree(t)
	b := editorbridge.NewBrowser(nil, nil)

	res, err := b.Browse(context.Background(), tr.session(t, "alice"), editorbridge.BrowseRequest{
		FolderID:   tr.docs.ID,
		AssetTypes: []editorbridge.AssetType{editorbridge.AssetImage, editorbridge.AssetDocument},
		Limit:      -1,
	})
	require.NoError(t, err)

	byLabel := map[string]editorbridge.BrowseItem{}
	for _, item := range res.Items {
		byLabel[item.Label] = item
	}

	folderItem := byLabel["images"]
	assert.Equal(t, editorbridge.AssetFolder, folderItem.Type)
	assert.Nil(t, folderItem.Metadata)

	photo := byLabel["photo.png"]
	assert.Equal(t, editorbridge.AssetImage, photo.Type)
	require.NotNil(t, photo.Metadata)
	props := photo.Metadata.Properties
	assert.Equal(t, "40x20", props[editorbridge.PropDimension])
	assert.Equal(t, "cover,draft", props[editorbridge.PropTags])
	assert.Equal(t, "0.0", props[editorbridge.PropVersion])
	assert.Equal(t, "project", props[editorbridge.PropState])
	assert.NotEmpty(t, props[editorbridge.PropFileSize])
	assert.NotEmpty(t, props[editorbridge.PropCreated])
	assert.NotContains(t, props, editorbridge.PropDescription)

	topic := byLabel["topic.dita"]
	assert.Equal(t, editorbridge.AssetDocument, topic.Type)
	assert.NotContains(t, topic.Metadata.Properties, editorbridge.PropDimension)
}

func TestBrowser_RootListing(t *testing.T) {
	tr := newTree(t)
	b := editorbridge.NewBrowser(nil, nil)

	res, err := b.Browse(context.Background(), tr.session(t, "alice"), editorbridge.BrowseRequest{
		AssetTypes: []editorbridge.AssetType{editorbridge.AssetDocument},
		Limit:      25,
		Offset:     50,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"docs"}, labels(res.Items))
	assert.Empty(t, res.HierarchyItems)
}

func TestBrowser_BuildQuery(t *testing.T) {
	tr := newTree(t)
	b := editorbridge.NewBrowser(nil, nil)
	sess := tr.session(t, "alice")

	q, err := b.BuildQuery(context.Background(), sess, editorbridge.BrowseRequest{
		FolderID:    tr.docs.ID,
		ResultTypes: []editorbridge.ResultType{editorbridge.ResultFile},
	})
	require.NoError(t, err)
	assert.Equal(t, tr.docs.ID, q.ParentID)
	assert.Equal(t, editorbridge.NonContainersOnly, q.Containers)
	assert.True(t, q.ExcludeTrashed)
	assert.True(t, q.ExcludeVersions)
	assert.True(t, q.ExcludeProxies)
	assert.True(t, q.ExcludeHidden)
	assert.Contains(t, q.String(), "container = 0")
	assert.Contains(t, q.String(), "ORDER BY title ASC")

	q, err = b.BuildQuery(context.Background(), sess, editorbridge.BrowseRequest{})
	require.NoError(t, err)
	assert.Equal(t, tr.root, q.ParentID)
	assert.Equal(t, editorbridge.AnyNode, q.Containers)
}

type failingTags struct{}

func (failingTags) Tags(context.Context, editorbridge.Session, *editorbridge.Node) ([]string, error) {
	return nil, errors.New("tag index offline")
}

func TestBrowser_TagFailure(t *testing.T) {
	tr := newTree(t)
	b := editorbridge.NewBrowser(failingTags{}, nil)

	_, err := b.Browse(context.Background(), tr.session(t, "alice"), editorbridge.BrowseRequest{
		FolderID:   tr.docs.ID,
		AssetTypes: []editorbridge.AssetType{editorbridge.AssetDocument},
	})
	var nodeErr *editorbridge.NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, tr.topic.ID, nodeErr.NodeID)
}

func TestMatches(t *testing.T) {
	xml := editorbridge.NewStringBlob("<a/>", "text/xml", "a.xml")
	mp3 := editorbridge.NewBlob([]byte{1}, "audio/mpeg", "a.mp3")
	mp4 := editorbridge.NewBlob([]byte{1}, "video/mp4", "a.mp4")

	docNode := &editorbridge.Node{Kind: editorbridge.KindFile, Schemas: []string{editorbridge.SchemaFile}, Content: xml}
	audioNode := &editorbridge.Node{Kind: editorbridge.KindAudio, Schemas: []string{editorbridge.SchemaFile}, Content: mp3}
	videoNode := &editorbridge.Node{
		Kind:    editorbridge.KindVideo,
		Schemas: []string{editorbridge.SchemaFile},
		Content: mp4,
		Media:   &editorbridge.MediaInfo{Width: 1920, Height: 1080, Duration: 65 * time.Second},
	}
	noContent := &editorbridge.Node{Kind: editorbridge.KindFile, Schemas: []string{editorbridge.SchemaFile}}
	noSchema := &editorbridge.Node{Kind: editorbridge.KindFile, Content: xml}
	other := &editorbridge.Node{Kind: editorbridge.KindOther, Schemas: []string{editorbridge.SchemaFile}, Content: xml}

	want := func(types ...editorbridge.AssetType) map[editorbridge.AssetType]bool {
		m := map[editorbridge.AssetType]bool{}
		for _, t := range types {
			m[t] = true
		}
		return m
	}

	assert.True(t, editorbridge.Matches(docNode, want(editorbridge.AssetDocument)))
	assert.True(t, editorbridge.Matches(docNode, want(editorbridge.AssetFile)))
	assert.False(t, editorbridge.Matches(docNode, want(editorbridge.AssetImage)))
	assert.True(t, editorbridge.Matches(audioNode, want(editorbridge.AssetAudio)))
	assert.True(t, editorbridge.Matches(videoNode, want(editorbridge.AssetFile)))
	assert.False(t, editorbridge.Matches(videoNode, want(editorbridge.AssetAudio)))
	assert.False(t, editorbridge.Matches(noContent, want(editorbridge.AssetFile)))
	assert.False(t, editorbridge.Matches(noSchema, want(editorbridge.AssetFile)))
	assert.False(t, editorbridge.Matches(other, want(editorbridge.AssetFile)))

	assert.Equal(t, editorbridge.AssetDocument, editorbridge.ItemType(docNode))
	assert.Equal(t, editorbridge.AssetVideo, editorbridge.ItemType(videoNode))
	assert.Equal(t, editorbridge.AssetUnknown, editorbridge.ItemType(other))
}
