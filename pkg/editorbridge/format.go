package editorbridge

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// DateLayout formats creation and modification dates in browse results.
const DateLayout = "2006-01-02 15:04:05"

// FormatDuration renders a media duration as 00h01m05s.
func FormatDuration(d time.Duration) string {
	total := int64(d.Round(time.Second) / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02dh%02dm%02ds", h, m, s)
}

// FormatDimension renders picture or video dimensions as WxH.
func FormatDimension(width, height int) string {
	return fmt.Sprintf("%dx%d", width, height)
}

// FormatSize renders a byte count for humans.
func FormatSize(length int64) string {
	if length < 0 {
		length = 0
	}
	return humanize.Bytes(uint64(length))
}

// FormatTags joins tags with commas.
func FormatTags(tags []string) string {
	return strings.Join(tags, ",")
}
