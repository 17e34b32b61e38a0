// Package scan walks a repository subtree and hands each matching node to a
// processor. Operators use it for backfills and for checking that every asset
// still resolves a rendition.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tendant/editor-bridge/pkg/editorbridge"
)

// NodeProcessor processes individual nodes found by a scan.
// Return an error to mark the node as failed; the scan continues.
type NodeProcessor interface {
	Process(ctx context.Context, sess editorbridge.Session, node *editorbridge.Node) error
}

// ProcessorFunc adapts a function to NodeProcessor.
type ProcessorFunc func(ctx context.Context, sess editorbridge.Session, node *editorbridge.Node) error

func (f ProcessorFunc) Process(ctx context.Context, sess editorbridge.Session, node *editorbridge.Node) error {
	return f(ctx, sess, node)
}

// Scanner walks the repository as one principal.
type Scanner struct {
	repo      editorbridge.Repository
	principal string
	logger    *slog.Logger
}

// New creates a scanner. A nil logger falls back to slog.Default.
func New(repo editorbridge.Repository, principal string, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{repo: repo, principal: principal, logger: logger}
}

// Options configures a scan.
type Options struct {
	// FolderID is where the walk starts. Empty means the repository root.
	FolderID string

	// Kinds restricts processing to these node kinds. Empty means every
	// non-folder node.
	Kinds []editorbridge.NodeKind

	// IncludeHidden also visits hidden nodes. Trashed nodes, versions and
	// proxies are never visited.
	IncludeHidden bool

	// MaxDepth limits recursion below FolderID. Zero means unlimited.
	MaxDepth int

	// Processor is required unless DryRun is set.
	Processor NodeProcessor

	// DryRun logs matching nodes without processing them.
	DryRun bool

	// OnProgress is called after each folder is processed.
	OnProgress func(processed, found int64)
}

// Result holds scan statistics.
type Result struct {
	TotalFound     int64
	TotalProcessed int64
	TotalFailed    int64
	FoldersVisited int64
	// FailedIDs maps failed node ids to the processor error.
	FailedIDs map[string]error
}

// Scan walks the subtree depth first in name order. Processor failures are
// recorded in the result; repository failures abort the walk.
func (s *Scanner) Scan(ctx context.Context, opts Options) (*Result, error) {
	result := &Result{FailedIDs: map[string]error{}}
	if !opts.DryRun && opts.Processor == nil {
		return result, errors.New("processor is required when DryRun is false")
	}

	sess, err := s.repo.OpenSession(ctx, s.principal)
	if err != nil {
		return result, err
	}
	defer sess.Close()

	start := opts.FolderID
	if start == "" {
		root, err := sess.GetRoot(ctx)
		if err != nil {
			return result, fmt.Errorf("get root: %w", err)
		}
		start = root.ID
	} else {
		folder, err := sess.GetNode(ctx, start)
		if err != nil {
			return result, &editorbridge.NodeError{NodeID: start, Op: "scan", Err: err}
		}
		if !folder.Container {
			return result, &editorbridge.NodeError{NodeID: start, Op: "scan", Err: editorbridge.ErrInvalidRequest}
		}
	}

	kinds := make(map[editorbridge.NodeKind]bool, len(opts.Kinds))
	for _, k := range opts.Kinds {
		kinds[k] = true
	}

	err = s.walk(ctx, sess, start, 0, opts, kinds, result)
	return result, err
}

func (s *Scanner) walk(ctx context.Context, sess editorbridge.Session, folderID string, depth int, opts Options, kinds map[editorbridge.NodeKind]bool, result *Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	children, err := sess.Query(ctx, editorbridge.NodeQuery{
		ParentID:        folderID,
		ExcludeTrashed:  true,
		ExcludeVersions: true,
		ExcludeProxies:  true,
		ExcludeHidden:   !opts.IncludeHidden,
		OrderBy:         "name",
	})
	if err != nil {
		return &editorbridge.NodeError{NodeID: folderID, Op: "scan", Err: err}
	}
	result.FoldersVisited++

	var subfolders []string
	for _, node := range children {
		if node.Container {
			subfolders = append(subfolders, node.ID)
			continue
		}
		if len(kinds) > 0 && !kinds[node.Kind] {
			continue
		}
		result.TotalFound++

		if opts.DryRun {
			s.logger.Info("dry run: would process node", "node_id", node.ID, "path", node.Path, "kind", node.Kind.String())
			result.TotalProcessed++
			continue
		}
		if err := opts.Processor.Process(ctx, sess, node); err != nil {
			result.TotalFailed++
			result.FailedIDs[node.ID] = err
			s.logger.Warn("failed to process node", "node_id", node.ID, "path", node.Path, "error", err)
			continue
		}
		result.TotalProcessed++
	}

	if opts.OnProgress != nil {
		opts.OnProgress(result.TotalProcessed+result.TotalFailed, result.TotalFound)
	}

	if opts.MaxDepth > 0 && depth+1 >= opts.MaxDepth {
		return nil
	}
	for _, id := range subfolders {
		if err := s.walk(ctx, sess, id, depth+1, opts, kinds, result); err != nil {
			return err
		}
	}
	return nil
}

// ForEach processes every non-folder node under folderID with fn.
//
//	scanner.ForEach(ctx, "", func(ctx context.Context, sess editorbridge.Session, n *editorbridge.Node) error {
//	    return reindex(n)
//	})
func (s *Scanner) ForEach(ctx context.Context, folderID string, fn ProcessorFunc) (*Result, error) {
	return s.Scan(ctx, Options{FolderID: folderID, Processor: fn})
}
