package receipt

import (
	"crypto/sha256"
	"encoding/hex"
)

// Image is a normalized receipt image ready for text extraction.
type Image struct {
	Source string // original path, informational only
	Format string // encoded format of Data, e.g. "png"
	Data   []byte
	Width  int
	Height int
}

// Digest is the hex SHA-256 of the encoded image bytes.
func (i Image) Digest() string {
	sum := sha256.Sum256(i.Data)
	return hex.EncodeToString(sum[:])
}
