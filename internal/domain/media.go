package domain

import (
	"fmt"
	"path/filepath"
	"strings"
)

type containerFormat struct {
	Media          bool // playable media per the extension allow-list
	NeedsTranscode bool // container not directly playable in browsers
}

// containerFormats is the single source of truth for extension-based
// media detection and transcode necessity. wmv is not in the media
// allow-list but still forces conversion when streamed explicitly.
var containerFormats = map[string]containerFormat{
	".mp4":  {Media: true},
	".webm": {Media: true},
	".mov":  {Media: true},
	".m4v":  {Media: true},
	".mkv":  {Media: true, NeedsTranscode: true},
	".avi":  {Media: true, NeedsTranscode: true},
	".wmv":  {NeedsTranscode: true},
}

func IsMedia(name string) bool {
	return containerFormats[normalizeExt(name)].Media
}

func NeedsTranscode(name string) bool {
	return containerFormats[normalizeExt(name)].NeedsTranscode
}

func normalizeExt(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// FormatSize renders a byte count as a short human-readable string.
func FormatSize(bytes int64) string {
	units := []string{"B", "KB", "MB", "GB", "TB"}
	value := float64(bytes)
	idx := 0
	for value >= 1024 && idx < len(units)-1 {
		value /= 1024
		idx++
	}
	return fmt.Sprintf("%.2f %s", value, units[idx])
}
