// Package imageproc decodes, resizes and encodes the site's raster images.
// It understands JPEG, PNG and WebP; everything else is rejected before it
// reaches a decoder.
package imageproc

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format is an output/input image encoding.
type Format string

const (
	JPEG Format = "jpeg"
	PNG  Format = "png"
	WebP Format = "webp"
)

var formatsByExt = map[string]Format{
	".jpg":  JPEG,
	".jpeg": JPEG,
	".png":  PNG,
	".webp": WebP,
}

// FormatFromExt maps a file extension (with dot, any case) to its Format.
func FormatFromExt(ext string) (Format, bool) {
	f, ok := formatsByExt[strings.ToLower(ext)]
	return f, ok
}

// FormatFromPath is FormatFromExt applied to the extension of path.
func FormatFromPath(path string) (Format, error) {
	ext := filepath.Ext(path)
	f, ok := FormatFromExt(ext)
	if !ok {
		return "", fmt.Errorf("unsupported image extension: %q", ext)
	}
	return f, nil
}

// IsRecognized reports whether name carries one of the handled extensions.
func IsRecognized(name string) bool {
	_, ok := FormatFromExt(filepath.Ext(name))
	return ok
}

// Responsive reports whether sources of this format get width variants.
// WebP sources are already in the delivery format and only get the
// full-size copy.
func (f Format) Responsive() bool {
	return f == JPEG || f == PNG
}

// Ext returns the canonical extension for newly named files.
func (f Format) Ext() string {
	switch f {
	case JPEG:
		return ".jpg"
	case PNG:
		return ".png"
	case WebP:
		return ".webp"
	}
	return ""
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	return "image/" + string(f)
}
