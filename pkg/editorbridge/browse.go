package editorbridge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// AssetType is the item category the editor asks for and receives.
type AssetType string

const (
	AssetDocument AssetType = "document"
	AssetFolder   AssetType = "folder"
	AssetFile     AssetType = "file"
	AssetImage    AssetType = "image"
	AssetAudio    AssetType = "audio"
	AssetVideo    AssetType = "video"
	AssetUnknown  AssetType = "unknown"
)

// ResultType restricts browsing to folders or to files.
type ResultType string

const (
	ResultFolder ResultType = "folder"
	ResultFile   ResultType = "file"
)

// Item property names.
const (
	PropVersion     = "version"
	PropState       = "state"
	PropCreated     = "created"
	PropModified    = "modified"
	PropTags        = "tags"
	PropFileSize    = "fileSize"
	PropDescription = "description"
	PropDimension   = "dimension"
	PropDuration    = "duration"
)

// BrowseRequest is a structured listing request from the editor.
type BrowseRequest struct {
	FolderID    string
	AssetTypes  []AssetType
	ResultTypes []ResultType
	Limit       int
	Offset      int
}

// ItemMetadata carries display properties of a browse item.
type ItemMetadata struct {
	Properties map[string]string `json:"properties,omitempty"`
}

// BrowseItem is one entry of a browse result.
type BrowseItem struct {
	ID       string        `json:"id"`
	Label    string        `json:"label"`
	Type     AssetType     `json:"type"`
	Metadata *ItemMetadata `json:"metadata,omitempty"`
}

// BrowseResult is the shaped answer to a browse request.
type BrowseResult struct {
	TotalItemCount int          `json:"totalItemCount"`
	Items          []BrowseItem `json:"items"`
	HierarchyItems []BrowseItem `json:"hierarchyItems,omitempty"`
}

// NodeTags reads tags stored on the node itself.
type NodeTags struct{}

func (NodeTags) Tags(_ context.Context, _ Session, node *Node) ([]string, error) {
	return node.Tags, nil
}

// Browser translates browse requests into repository queries and shapes the rows.
type Browser struct {
	tags   TagService
	logger *slog.Logger
}

// NewBrowser creates a browse translator. A nil tag service reads node tags.
func NewBrowser(tags TagService, logger *slog.Logger) *Browser {
	if tags == nil {
		tags = NodeTags{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Browser{tags: tags, logger: logger}
}

// BuildQuery turns a request into a NodeQuery scoped to the folder or the root.
func (b *Browser) BuildQuery(ctx context.Context, sess Session, req BrowseRequest) (NodeQuery, error) {
	q := NodeQuery{
		ExcludeTrashed:  true,
		ExcludeVersions: true,
		ExcludeProxies:  true,
		ExcludeHidden:   true,
		OrderBy:         "title",
	}
	if len(req.ResultTypes) == 1 {
		switch req.ResultTypes[0] {
		case ResultFolder:
			q.Containers = ContainersOnly
		case ResultFile:
			q.Containers = NonContainersOnly
		}
	}
	if req.FolderID != "" {
		q.ParentID = req.FolderID
	} else {
		root, err := sess.GetRoot(ctx)
		if err != nil {
			return q, fmt.Errorf("resolve repository root: %w", err)
		}
		q.ParentID = root.ID
	}
	if req.Limit != -1 || req.Offset > 0 {
		b.logger.Info("browse pagination is not supported, returning all results",
			"limit", req.Limit, "offset", req.Offset)
	}
	return q, nil
}

// Browse runs the query and emits matching nodes.
func (b *Browser) Browse(ctx context.Context, sess Session, req BrowseRequest) (*BrowseResult, error) {
	q, err := b.BuildQuery(ctx, sess, req)
	if err != nil {
		return nil, err
	}
	b.logger.Debug("browse query", "query", q.String())

	nodes, err := sess.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("browse query: %w", err)
	}

	wanted := make(map[AssetType]bool, len(req.AssetTypes))
	for _, t := range req.AssetTypes {
		wanted[t] = true
	}

	result := &BrowseResult{Items: make([]BrowseItem, 0, len(nodes))}
	for _, node := range nodes {
		if node.Kind == KindFolder {
			result.Items = append(result.Items, BrowseItem{ID: node.ID, Label: node.Title, Type: AssetFolder})
			continue
		}
		if !Matches(node, wanted) {
			continue
		}
		item := BrowseItem{ID: node.ID, Label: node.Title, Type: ItemType(node)}
		props, err := b.properties(ctx, sess, node)
		if err != nil {
			return nil, err
		}
		item.Metadata = &ItemMetadata{Properties: props}
		result.Items = append(result.Items, item)
	}
	result.TotalItemCount = len(result.Items)

	if req.FolderID != "" {
		hierarchy, err := b.Hierarchy(ctx, sess, req.FolderID)
		if err != nil {
			b.logger.Warn("cannot build browse hierarchy", "folder_id", req.FolderID, "err", err)
		} else {
			result.HierarchyItems = hierarchy
		}
	}
	return result, nil
}

// Matches reports whether a leaf node satisfies one of the wanted asset types.
// Nodes without primary content never match.
func Matches(node *Node, wanted map[AssetType]bool) bool {
	if !node.HasSchema(SchemaFile) || node.Content == nil {
		return false
	}
	switch node.Kind {
	case KindFile:
		if LooksLikeXML(node.Content.MimeType) && wanted[AssetDocument] {
			return true
		}
		return wanted[AssetFile]
	case KindPicture:
		return wanted[AssetImage] || wanted[AssetFile]
	case KindAudio:
		return wanted[AssetAudio] || wanted[AssetFile]
	case KindVideo:
		return wanted[AssetVideo] || wanted[AssetFile]
	case KindFolder, KindOther:
		return false
	}
	return false
}

// ItemType maps a node to the asset type shown to the editor.
func ItemType(node *Node) AssetType {
	switch node.Kind {
	case KindFolder:
		return AssetFolder
	case KindFile:
		if node.Content != nil && LooksLikeXML(node.Content.MimeType) {
			return AssetDocument
		}
		return AssetFile
	case KindPicture:
		return AssetImage
	case KindAudio:
		return AssetAudio
	case KindVideo:
		return AssetVideo
	case KindOther:
		return AssetUnknown
	}
	return AssetUnknown
}

func (b *Browser) properties(ctx context.Context, sess Session, node *Node) (map[string]string, error) {
	props := make(map[string]string)

	switch node.Kind {
	case KindPicture:
		if node.Media != nil && node.Media.Width > 0 {
			props[PropDimension] = FormatDimension(node.Media.Width, node.Media.Height)
		}
	case KindVideo:
		if node.Media != nil {
			if node.Media.Width > 0 {
				props[PropDimension] = FormatDimension(node.Media.Width, node.Media.Height)
			}
			props[PropDuration] = FormatDuration(node.Media.Duration)
		}
	}

	props[PropVersion] = node.VersionLabel
	props[PropState] = node.LifecycleState
	if !node.CreatedAt.IsZero() {
		props[PropCreated] = node.CreatedAt.Format(DateLayout)
	}
	if !node.ModifiedAt.IsZero() {
		props[PropModified] = node.ModifiedAt.Format(DateLayout)
	}

	tags, err := b.tags.Tags(ctx, sess, node)
	if err != nil {
		return nil, &NodeError{NodeID: node.ID, Op: "list tags", Err: err}
	}
	if len(tags) > 0 {
		props[PropTags] = FormatTags(tags)
	}
	if node.Content != nil {
		props[PropFileSize] = FormatSize(node.Content.Length)
	}
	if strings.TrimSpace(node.Description) != "" {
		props[PropDescription] = node.Description
	}
	return props, nil
}

// Hierarchy lists the folders from the repository root down to folderID.
func (b *Browser) Hierarchy(ctx context.Context, sess Session, folderID string) ([]BrowseItem, error) {
	var chain []BrowseItem
	node, err := sess.GetNode(ctx, folderID)
	if err != nil {
		return nil, err
	}
	for node != nil {
		chain = append(chain, BrowseItem{ID: node.ID, Label: node.Title, Type: AssetFolder})
		if node.ParentID == "" {
			break
		}
		node, err = sess.GetNode(ctx, node.ParentID)
		if err != nil {
			return nil, err
		}
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}
