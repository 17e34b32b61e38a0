package editorbridge_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/editor-bridge/pkg/editorbridge"
)

func TestDefaultMimeDetector_Sniff(t *testing.T) {
	d := editorbridge.NewDefaultMimeDetector()

	tests := []struct {
		name string
		head []byte
		want string
	}{
		{"empty", nil, ""},
		{"xml declaration", []byte(`<?xml version="1.0"?><topic/>`), "text/xml"},
		{"bare element", []byte("<topic id='t1'><title>Intro</title></topic>"), editorbridge.MimeTypeXML},
		{"bare element after bom", []byte("\xef\xbb\xbf  <map/>"), editorbridge.MimeTypeXML},
		{"plain text", []byte("just some words"), "text/plain"},
		{"png", pngBytes(t, 2, 2), "image/png"},
		{"binary", []byte{0x00, 0x01, 0x02, 0x03, 0xfe}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Sniff(tt.head))
		})
	}
}

func TestDefaultMimeDetector_ByFilename(t *testing.T) {
	d := editorbridge.NewDefaultMimeDetector()

	assert.Equal(t, editorbridge.MimeTypeXML, d.ByFilename("topic.dita"))
	assert.Equal(t, editorbridge.MimeTypeXML, d.ByFilename("MAP.DITAMAP"))
	assert.Equal(t, "image/png", d.ByFilename("photo.png"))
	assert.Empty(t, d.ByFilename("README"))
}

func TestEnsureMimeType(t *testing.T) {
	ctx := context.Background()
	d := editorbridge.NewDefaultMimeDetector()

	t.Run("keeps an existing type", func(t *testing.T) {
		b := editorbridge.NewStringBlob("<topic/>", "application/dita+xml", "a.dita")
		mt, err := editorbridge.EnsureMimeType(ctx, d, b)
		require.NoError(t, err)
		assert.Equal(t, "application/dita+xml", mt)
	})

	t.Run("sniffs before the filename", func(t *testing.T) {
		b := editorbridge.NewBlob(pngBytes(t, 2, 2), "", "wrong.txt")
		mt, err := editorbridge.EnsureMimeType(ctx, d, b)
		require.NoError(t, err)
		assert.Equal(t, "image/png", mt)
		assert.Equal(t, "image/png", b.MimeType)
	})

	t.Run("falls back to the filename", func(t *testing.T) {
		b := editorbridge.NewBlob(nil, "", "topic.dita")
		mt, err := editorbridge.EnsureMimeType(ctx, d, b)
		require.NoError(t, err)
		assert.Equal(t, editorbridge.MimeTypeXML, mt)
	})

	t.Run("lazy blob", func(t *testing.T) {
		b := editorbridge.NewStringBlob("<map/>", "", "")
		lazy := editorbridge.NewLazyBlob(b.Length, "", "", b.Open)
		mt, err := editorbridge.EnsureMimeType(ctx, d, lazy)
		require.NoError(t, err)
		assert.Equal(t, editorbridge.MimeTypeXML, mt)
	})

	t.Run("nothing matches", func(t *testing.T) {
		b := editorbridge.NewBlob([]byte{0x00, 0x01, 0x02}, "", "blob.zz9")
		_, err := editorbridge.EnsureMimeType(ctx, d, b)
		assert.ErrorIs(t, err, editorbridge.ErrMimeDetection)
		assert.Empty(t, b.MimeType)
	})
}

func TestIsEditable(t *testing.T) {
	tests := []struct {
		name string
		blob *editorbridge.Blob
		want bool
	}{
		{"nil", nil, false},
		{"xml", editorbridge.NewStringBlob("<a/>", "text/xml", "a.xml"), true},
		{"xml suffix", editorbridge.NewStringBlob("<a/>", "application/dita+xml", "a"), true},
		{"text with dita extension", editorbridge.NewStringBlob("<a/>", "text/plain", "a.dita"), true},
		{"plain text", editorbridge.NewStringBlob("hello", "text/plain", "a.txt"), false},
		{"picture", editorbridge.NewBlob([]byte{1}, "image/png", "a.png"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, editorbridge.IsEditable(tt.blob))
		})
	}
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "00h01m05s", editorbridge.FormatDuration(65*time.Second))
	assert.Equal(t, "02h00m00s", editorbridge.FormatDuration(2*time.Hour))
	assert.Equal(t, "400x200", editorbridge.FormatDimension(400, 200))
	assert.Equal(t, "2.0 kB", editorbridge.FormatSize(2000))
	assert.Equal(t, "0 B", editorbridge.FormatSize(-5))
	assert.Equal(t, "a,b", editorbridge.FormatTags([]string{"a", "b"}))
}
