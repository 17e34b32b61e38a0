package editorbridge

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MimeTypeXML is the content type given to documents authored in the editor.
const MimeTypeXML = "text/xml"

const (
	mimeOctetStream = "application/octet-stream"
	sniffLength     = 3072
)

// editableExtensions are treated as XML whatever the stored mime type says.
var editableExtensions = map[string]bool{
	".xml":     true,
	".dita":    true,
	".ditamap": true,
	".xsd":     true,
}

// DefaultMimeDetector sniffs with mimetype and looks up extensions in the
// system mime table.
type DefaultMimeDetector struct{}

// NewDefaultMimeDetector creates the detector used when none is configured.
func NewDefaultMimeDetector() MimeDetector {
	return DefaultMimeDetector{}
}

func (DefaultMimeDetector) Sniff(head []byte) string {
	if len(head) == 0 {
		return ""
	}
	mt := baseMimeType(mimetype.Detect(head).String())
	switch {
	case mt == mimeOctetStream:
		return ""
	case mt == "text/plain" && looksLikeMarkup(head):
		// XML without a declaration, e.g. a bare <topic> element
		return MimeTypeXML
	}
	return mt
}

func looksLikeMarkup(head []byte) bool {
	head = bytes.TrimPrefix(head, []byte("\xef\xbb\xbf"))
	head = bytes.TrimLeft(head, " \t\r\n")
	if len(head) < 2 || head[0] != '<' {
		return false
	}
	c := head[1]
	return c == '?' || c == '!' || c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func (DefaultMimeDetector) ByFilename(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return ""
	}
	if editableExtensions[ext] {
		return MimeTypeXML
	}
	return baseMimeType(mime.TypeByExtension(ext))
}

func baseMimeType(mt string) string {
	mt, _, _ = strings.Cut(mt, ";")
	return strings.TrimSpace(mt)
}

// EnsureMimeType sets the blob content type when it is missing: sniffing first,
// then the filename. Failure of both is ErrMimeDetection.
func EnsureMimeType(ctx context.Context, detector MimeDetector, b *Blob) (string, error) {
	if b.MimeType != "" {
		return b.MimeType, nil
	}
	head, err := b.head(ctx, sniffLength)
	if err != nil {
		return "", fmt.Errorf("read blob for mime detection: %w", err)
	}
	mt := detector.Sniff(head)
	if mt == "" {
		mt = detector.ByFilename(b.Filename)
	}
	if mt == "" {
		return "", fmt.Errorf("%w: %q", ErrMimeDetection, b.Filename)
	}
	b.SetMimeType(mt)
	return mt, nil
}

// LooksLikeXML reports whether the mime type is an XML flavour.
func LooksLikeXML(mimeType string) bool {
	mt := baseMimeType(mimeType)
	return strings.HasPrefix(mt, "application/xml") || strings.HasSuffix(mt, "xml")
}

// CanGetString reports whether content of this type can be served as text.
func CanGetString(mimeType string) bool {
	mt := baseMimeType(mimeType)
	return strings.HasPrefix(mt, "text/") || LooksLikeXML(mt)
}

// IsEditable reports whether the editor can open the blob as a document.
func IsEditable(b *Blob) bool {
	if b == nil || !CanGetString(b.MimeType) {
		return false
	}
	return LooksLikeXML(b.MimeType) || editableExtensions[strings.ToLower(filepath.Ext(b.Filename))]
}
