package constants

import "strings"

// Image formats accepted by the normalizer.
const (
	PNG  = "png"
	JPEG = "jpeg"
	GIF  = "gif"
	HEIC = "heic"
	PDF  = "pdf"
)

// AllowedExtensions maps accepted file extensions to their canonical format.
var AllowedExtensions = map[string]string{
	"png":  PNG,
	"jpg":  JPEG,
	"jpeg": JPEG,
	"gif":  GIF,
	"heic": HEIC,
	"heif": HEIC,
	"pdf":  PDF,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat returns the canonical format for an extension, or "" if unsupported.
func MapExtToFormat(ext string) string {
	return AllowedExtensions[NormalizeExt(ext)]
}

// IsHEICExt reports whether ext names a HEIC/HEIF file.
func IsHEICExt(ext string) bool {
	return MapExtToFormat(ext) == HEIC
}
