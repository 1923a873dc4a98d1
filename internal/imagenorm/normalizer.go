package imagenorm

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gen2brain/heic"

	"github.com/joseph-ayodele/receipt-extractor/constants"
	"github.com/joseph-ayodele/receipt-extractor/internal/common"
	"github.com/joseph-ayodele/receipt-extractor/internal/receipt"
)

// PDFRenderer rasterizes the first page of a PDF document.
type PDFRenderer interface {
	RenderFirstPage(data []byte) (image.Image, error)
}

// Normalizer turns a receipt file into a grayscale PNG ready for OCR.
type Normalizer struct {
	pdf       PDFRenderer
	cacheDir  string
	grayscale bool
	logger    *slog.Logger
}

type Option func(*Normalizer)

// WithPDFRenderer enables PDF input.
func WithPDFRenderer(r PDFRenderer) Option {
	return func(n *Normalizer) { n.pdf = r }
}

// WithArtifactCacheDir persists normalized PNGs as {dir}/{sha256}.png and reuses them.
func WithArtifactCacheDir(dir string) Option {
	return func(n *Normalizer) { n.cacheDir = dir }
}

// WithGrayscale toggles grayscale conversion (on by default).
func WithGrayscale(on bool) Option {
	return func(n *Normalizer) { n.grayscale = on }
}

func WithLogger(l *slog.Logger) Option {
	return func(n *Normalizer) {
		if l != nil {
			n.logger = l
		}
	}
}

func New(opts ...Option) *Normalizer {
	n := &Normalizer{grayscale: true, logger: slog.Default()}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize reads path and returns the normalized image.
func (n *Normalizer) Normalize(ctx context.Context, path string) (receipt.Image, error) {
	if err := ctx.Err(); err != nil {
		return receipt.Image{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return receipt.Image{}, common.NewAppError(common.CodeNormalize, "read image", err)
	}
	img, err := n.NormalizeBytes(data, filepath.Ext(path))
	if err != nil {
		return receipt.Image{}, err
	}
	img.Source = path
	return img, nil
}

// NormalizeBytes normalizes encoded image data. ext is a hint; content sniffing wins.
func (n *Normalizer) NormalizeBytes(data []byte, ext string) (receipt.Image, error) {
	sum := sha256.Sum256(data)
	hashHex := hex.EncodeToString(sum[:])

	if cached, ok := n.fromCache(hashHex); ok {
		return cached, nil
	}

	format := detectFormat(data, ext)
	var (
		decoded image.Image
		err     error
	)
	switch format {
	case constants.PDF:
		if n.pdf == nil {
			return receipt.Image{}, common.NewAppError(common.CodeNormalize, "pdf input requires a renderer", common.ErrInvalidInput)
		}
		decoded, err = n.pdf.RenderFirstPage(data)
	case constants.HEIC:
		decoded, err = heic.Decode(bytes.NewReader(data))
	default:
		decoded, _, err = image.Decode(bytes.NewReader(data))
	}
	if err != nil {
		return receipt.Image{}, common.NewAppError(common.CodeNormalize, fmt.Sprintf("decode %s image", formatName(format)), err)
	}

	if n.grayscale {
		decoded = toGray(decoded)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, decoded); err != nil {
		return receipt.Image{}, common.NewAppError(common.CodeNormalize, "encode png", err)
	}
	b := decoded.Bounds()
	out := receipt.Image{Format: constants.PNG, Data: buf.Bytes(), Width: b.Dx(), Height: b.Dy()}
	n.toCache(hashHex, out.Data)
	n.logger.Debug("imagenorm.ok", "format", formatName(format), "width", out.Width, "height", out.Height)
	return out, nil
}

func (n *Normalizer) fromCache(hashHex string) (receipt.Image, bool) {
	if n.cacheDir == "" {
		return receipt.Image{}, false
	}
	path := filepath.Join(n.cacheDir, hashHex+".png")
	data, err := os.ReadFile(path)
	if err != nil {
		return receipt.Image{}, false
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return receipt.Image{}, false
	}
	n.logger.Debug("imagenorm.cache.hit", "cache", path)
	return receipt.Image{Format: constants.PNG, Data: data, Width: cfg.Width, Height: cfg.Height}, true
}

func (n *Normalizer) toCache(hashHex string, data []byte) {
	if n.cacheDir == "" {
		return
	}
	if err := os.MkdirAll(n.cacheDir, 0o755); err != nil {
		n.logger.Warn("imagenorm.cache.mkdir_failed", "dir", n.cacheDir, "error", err)
		return
	}
	path := filepath.Join(n.cacheDir, hashHex+".png")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		n.logger.Warn("imagenorm.cache.write_failed", "path", path, "error", err)
	}
}

func toGray(src image.Image) image.Image {
	if g, ok := src.(*image.Gray); ok {
		return g
	}
	b := src.Bounds()
	dst := image.NewGray(b)
	draw.Draw(dst, b, src, b.Min, draw.Src)
	return dst
}

// detectFormat sniffs magic bytes, falling back to the extension.
func detectFormat(data []byte, ext string) string {
	switch {
	case bytes.HasPrefix(data, []byte("%PDF")):
		return constants.PDF
	case isHEIC(data):
		return constants.HEIC
	case bytes.HasPrefix(data, []byte("\x89PNG")):
		return constants.PNG
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8}):
		return constants.JPEG
	case bytes.HasPrefix(data, []byte("GIF8")):
		return constants.GIF
	}
	return constants.MapExtToFormat(ext)
}

func isHEIC(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}

func formatName(f string) string {
	if f == "" {
		return "unknown"
	}
	return f
}
