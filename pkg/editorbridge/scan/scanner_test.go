package scan_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/editor-bridge/pkg/editorbridge"
	"github.com/tendant/editor-bridge/pkg/editorbridge/fixtures"
	"github.com/tendant/editor-bridge/pkg/editorbridge/repo/memory"
	"github.com/tendant/editor-bridge/pkg/editorbridge/scan"
)

const tree = `
nodes:
  - name: docs
    type: Folder
    children:
      - name: topic.dita
        content: "<topic id='t1'/>"
      - name: logo.svg
        type: Picture
        content: "<svg xmlns='http://www.w3.org/2000/svg'/>"
        mimeType: image/svg+xml
      - name: empty.png
        type: Picture
      - name: secret.dita
        content: "<topic id='s'/>"
        hidden: true
      - name: archive
        type: Folder
        children:
          - name: old.dita
            content: "<topic id='old'/>"
`

func seed(t *testing.T) (*memory.Repository, map[string]string) {
	t.Helper()
	repo := memory.New()
	f, err := fixtures.Load(strings.NewReader(tree))
	require.NoError(t, err)
	ids, err := fixtures.NewSeeder(repo, nil, slog.New(slog.NewTextHandler(io.Discard, nil))).Seed(context.Background(), f)
	require.NoError(t, err)
	return repo, ids
}

func TestScan_VisitsSubtree(t *testing.T) {
	repo, ids := seed(t)
	s := scan.New(repo, "admin", slog.New(slog.NewTextHandler(io.Discard, nil)))

	var paths []string
	res, err := s.ForEach(context.Background(), "", func(ctx context.Context, sess editorbridge.Session, n *editorbridge.Node) error {
		paths = append(paths, n.Path)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/docs/empty.png", "/docs/logo.svg", "/docs/topic.dita", "/docs/archive/old.dita"}, paths)
	assert.Equal(t, int64(4), res.TotalFound)
	assert.Equal(t, int64(4), res.TotalProcessed)
	assert.Equal(t, int64(3), res.FoldersVisited)
	assert.NotContains(t, paths, "/docs/secret.dita")

	res, err = s.Scan(context.Background(), scan.Options{FolderID: ids["/docs"], DryRun: true, IncludeHidden: true, MaxDepth: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.TotalFound, "hidden node included, archive not entered")
	assert.Equal(t, int64(1), res.FoldersVisited)
}

func TestScan_KindsAndFailures(t *testing.T) {
	repo, ids := seed(t)
	s := scan.New(repo, "admin", nil)
	check := &scan.RenditionCheck{Resolver: editorbridge.NewResolver(editorbridge.RenditionConfig{}, nil, editorbridge.NewDefaultMimeDetector(), nil)}

	var progress []int64
	res, err := s.Scan(context.Background(), scan.Options{
		Kinds:      []editorbridge.NodeKind{editorbridge.KindPicture},
		Processor:  check,
		OnProgress: func(processed, found int64) { progress = append(progress, processed) },
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.TotalFound)
	assert.Equal(t, int64(1), res.TotalProcessed)
	assert.Equal(t, int64(1), res.TotalFailed)
	require.Contains(t, res.FailedIDs, ids["/docs/empty.png"])
	assert.ErrorIs(t, res.FailedIDs[ids["/docs/empty.png"]], editorbridge.ErrNoContent)
	assert.NotEmpty(t, progress)

	sizes := check.Sizes()
	assert.Equal(t, int64(len("<svg xmlns='http://www.w3.org/2000/svg'/>")), sizes[ids["/docs/logo.svg"]])
}

func TestScan_Errors(t *testing.T) {
	repo, _ := seed(t)
	ctx := context.Background()

	_, err := scan.New(repo, "admin", nil).Scan(ctx, scan.Options{})
	assert.Error(t, err, "processor required")

	_, err = scan.New(repo, "", nil).Scan(ctx, scan.Options{DryRun: true})
	assert.ErrorIs(t, err, editorbridge.ErrInvalidRequest)

	_, err = scan.New(repo, "admin", nil).Scan(ctx, scan.Options{FolderID: "missing", DryRun: true})
	var nodeErr *editorbridge.NodeError
	require.True(t, errors.As(err, &nodeErr))
	assert.Equal(t, "missing", nodeErr.NodeID)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = scan.New(repo, "admin", nil).Scan(cancelled, scan.Options{DryRun: true})
	assert.ErrorIs(t, err, context.Canceled)
}
