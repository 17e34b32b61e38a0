// Package preview renders resized variants of picture assets.
package preview

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/nfnt/resize"
	"github.com/patrickmn/go-cache"
	"github.com/tendant/editor-bridge/pkg/editorbridge"
)

// Variant names accepted by GET /asset/preview.
const (
	VariantThumbnail = "thumbnail"
	VariantWeb       = "web"
)

// ThumbnailView is the picture view used as the thumbnail source when present.
const ThumbnailView = "Thumbnail"

// Geometry of a variant. Exact variants are scaled to the box regardless of
// aspect ratio; bounded variants keep it and never upscale.
type Geometry struct {
	Width  uint
	Height uint
	Exact  bool
}

// DefaultVariants returns the thumbnail and web geometry.
func DefaultVariants() map[string]Geometry {
	return map[string]Geometry{
		VariantThumbnail: {Width: 128, Height: 128, Exact: true},
		VariantWeb:       {Width: 1024, Height: 1024},
	}
}

// Generator implements editorbridge.Previewer with nfnt/resize and memoizes
// results per node modification time.
type Generator struct {
	variants map[string]Geometry
	cache    *cache.Cache
	logger   *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithVariants replaces the variant table.
func WithVariants(v map[string]Geometry) Option {
	return func(g *Generator) { g.variants = v }
}

// WithTTL sets how long rendered previews stay cached. Zero disables caching.
func WithTTL(ttl time.Duration) Option {
	return func(g *Generator) {
		if ttl <= 0 {
			g.cache = nil
			return
		}
		g.cache = cache.New(ttl, 2*ttl)
	}
}

// WithLogger sets the generator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) { g.logger = logger }
}

// New creates a generator with the default variants and a ten minute cache.
func New(opts ...Option) *Generator {
	g := &Generator{
		variants: DefaultVariants(),
		cache:    cache.New(10*time.Minute, 20*time.Minute),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func cacheKey(node *editorbridge.Node, variant string) string {
	return fmt.Sprintf("%s/%s/%d", node.ID, variant, node.ModifiedAt.UnixNano())
}

// source picks the picture to resize: the thumbnail view for thumbnails when the
// node has one, else the primary content.
func source(node *editorbridge.Node, variant string) *editorbridge.Blob {
	if variant == VariantThumbnail {
		if mv, ok := node.Multiview(); ok {
			if b := mv.View(ThumbnailView); b != nil {
				return b
			}
		}
	}
	return node.Content
}

// Preview returns the named variant of a picture node. Unknown variants return
// the original picture.
func (g *Generator) Preview(ctx context.Context, node *editorbridge.Node, variant string) (*editorbridge.Blob, error) {
	if node.Kind != editorbridge.KindPicture && !node.HasSchema(editorbridge.SchemaPicture) {
		return nil, fmt.Errorf("%w: %s is not a picture", editorbridge.ErrPreviewUnavailable, node.ID)
	}
	src := source(node, variant)
	if src == nil {
		return nil, fmt.Errorf("%w: %s has no picture", editorbridge.ErrPreviewUnavailable, node.ID)
	}
	geom, ok := g.variants[variant]
	if !ok {
		g.logger.Debug("unknown preview variant, serving original", "node_id", node.ID, "variant", variant)
		return src, nil
	}

	key := cacheKey(node, variant)
	if g.cache != nil {
		if cached, found := g.cache.Get(key); found {
			return cached.(*editorbridge.Blob), nil
		}
	}

	out, err := render(ctx, src, geom)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", editorbridge.ErrPreviewUnavailable, err)
	}
	out = out.WithFilename(variantFilename(src.Filename, variant, out.MimeType))
	if g.cache != nil {
		g.cache.Set(key, out, cache.DefaultExpiration)
	}
	return out, nil
}

func render(ctx context.Context, src *editorbridge.Blob, geom Geometry) (*editorbridge.Blob, error) {
	data, err := src.Bytes(ctx)
	if err != nil {
		return nil, fmt.Errorf("read picture: %w", err)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode picture: %w", err)
	}

	var scaled image.Image
	if geom.Exact {
		scaled = resize.Resize(geom.Width, geom.Height, img, resize.Lanczos3)
	} else {
		scaled = resize.Thumbnail(geom.Width, geom.Height, img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	mimeType := "image/jpeg"
	if format == "png" {
		mimeType = "image/png"
		err = png.Encode(&buf, scaled)
	} else {
		err = jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: 85})
	}
	if err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}
	return editorbridge.NewBlob(buf.Bytes(), mimeType, ""), nil
}

func variantFilename(name, variant, mimeType string) string {
	if name == "" {
		name = "picture"
	}
	base := strings.TrimSuffix(name, path.Ext(name))
	ext := ".jpg"
	if mimeType == "image/png" {
		ext = ".png"
	}
	return base + "_" + variant + ext
}
