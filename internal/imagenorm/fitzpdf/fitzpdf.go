// Package fitzpdf renders PDF pages with MuPDF.
package fitzpdf

import (
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

// Renderer implements imagenorm.PDFRenderer.
type Renderer struct{}

// RenderFirstPage rasterizes page 0; most receipts are a single page.
func (Renderer) RenderFirstPage(data []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}
	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return img, nil
}
