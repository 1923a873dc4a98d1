package ingest

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/receipt-extractor/constants"
)

// Supported reports whether the image normalizer accepts path's extension.
func Supported(path string) bool {
	return constants.MapExtToFormat(filepath.Ext(path)) != ""
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
