package editorbridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"time"
)

// DefaultImporter creates File, Picture, Audio or Video nodes from the blob
// mime type.
type DefaultImporter struct {
	logger *slog.Logger
}

// NewDefaultImporter creates the importer used when none is configured.
func NewDefaultImporter(logger *slog.Logger) *DefaultImporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultImporter{logger: logger}
}

// Import creates a node named after the blob filename inside container. With
// overwrite set, an existing leaf of the same name gets the new content instead.
func (i *DefaultImporter) Import(ctx context.Context, sess Session, content *Blob, container *Node, overwrite bool) (*Node, error) {
	if content.Filename == "" {
		return nil, ErrMissingFilename
	}
	typeName := TypeForMime(content.MimeType)
	media := i.mediaInfo(ctx, typeName, content)
	now := time.Now().UTC()

	if overwrite {
		existing, err := sess.GetChild(ctx, container.ID, content.Filename)
		if err != nil && !errors.Is(err, ErrNodeNotFound) {
			return nil, err
		}
		if existing != nil && !existing.Container {
			existing.Content = content
			existing.Media = media
			existing.ModifiedAt = now
			i.logger.Info("overwriting existing file", "node_id", existing.ID, "name", content.Filename)
			return sess.SaveNode(ctx, existing)
		}
	}

	node := &Node{
		ParentID:   container.ID,
		Name:       content.Filename,
		Type:       typeName,
		Title:      content.Filename,
		Schemas:    SchemasForType(typeName),
		Content:    content,
		Media:      media,
		CreatedAt:  now,
		ModifiedAt: now,
	}
	created, err := sess.CreateNode(ctx, node)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", content.Filename, err)
	}
	return created, nil
}

func (i *DefaultImporter) mediaInfo(ctx context.Context, typeName string, content *Blob) *MediaInfo {
	if typeName != TypePicture {
		return nil
	}
	data, err := content.Bytes(ctx)
	if err != nil {
		return nil
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		i.logger.Debug("cannot read picture dimensions", "filename", content.Filename, "err", err)
		return nil
	}
	return &MediaInfo{Width: cfg.Width, Height: cfg.Height}
}
