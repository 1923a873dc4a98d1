package imagenorm

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/joseph-ayodele/receipt-extractor/constants"
	"github.com/joseph-ayodele/receipt-extractor/internal/common"
)

func sampleRGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 8, 4))
	for x := 0; x < 8; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: 200, B: 10, A: 255})
		}
	}
	return img
}

func encodePNG(img image.Image) []byte {
	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

type fakePDF struct{ calls int }

func (f *fakePDF) RenderFirstPage([]byte) (image.Image, error) {
	f.calls++
	return sampleRGBA(), nil
}

var _ = Describe("Normalizer", func() {
	var n *Normalizer

	BeforeEach(func() {
		n = New()
	})

	It("re-encodes PNG input as grayscale PNG", func() {
		out, err := n.NormalizeBytes(encodePNG(sampleRGBA()), ".png")
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Format).To(Equal(constants.PNG))
		Expect(out.Width).To(Equal(8))
		Expect(out.Height).To(Equal(4))

		decoded, err := png.Decode(bytes.NewReader(out.Data))
		Expect(err).NotTo(HaveOccurred())
		Expect(decoded.ColorModel()).To(Equal(color.GrayModel))
	})

	It("sniffs JPEG content regardless of extension", func() {
		var buf bytes.Buffer
		Expect(jpeg.Encode(&buf, sampleRGBA(), nil)).To(Succeed())
		out, err := n.NormalizeBytes(buf.Bytes(), ".bin")
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Width).To(Equal(8))
	})

	It("fails on undecodable data", func() {
		_, err := n.NormalizeBytes([]byte("not an image"), ".png")
		Expect(err).To(HaveOccurred())
		Expect(common.IsCode(err, common.CodeNormalize)).To(BeTrue())
	})

	It("requires a renderer for PDF input", func() {
		_, err := n.NormalizeBytes([]byte("%PDF-1.4 ..."), ".pdf")
		Expect(errors.Is(err, common.ErrInvalidInput)).To(BeTrue())
	})

	It("renders PDF input through the configured renderer", func() {
		pdf := &fakePDF{}
		n = New(WithPDFRenderer(pdf))
		out, err := n.NormalizeBytes([]byte("%PDF-1.4 ..."), ".pdf")
		Expect(err).NotTo(HaveOccurred())
		Expect(pdf.calls).To(Equal(1))
		Expect(out.Width).To(Equal(8))
	})

	It("reads files and records the source path", func() {
		path := filepath.Join(GinkgoT().TempDir(), "r.png")
		Expect(os.WriteFile(path, encodePNG(sampleRGBA()), 0o644)).To(Succeed())
		out, err := n.Normalize(context.Background(), path)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Source).To(Equal(path))
	})

	It("reuses cached artifacts", func() {
		dir := GinkgoT().TempDir()
		pdf := &fakePDF{}
		n = New(WithPDFRenderer(pdf), WithArtifactCacheDir(dir))
		data := []byte("%PDF-1.4 cached")

		first, err := n.NormalizeBytes(data, ".pdf")
		Expect(err).NotTo(HaveOccurred())
		second, err := n.NormalizeBytes(data, ".pdf")
		Expect(err).NotTo(HaveOccurred())

		Expect(pdf.calls).To(Equal(1))
		Expect(second.Data).To(Equal(first.Data))
		entries, err := os.ReadDir(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(1))
	})
})

var _ = Describe("detectFormat", func() {
	It("recognizes HEIC brands", func() {
		data := append([]byte{0, 0, 0, 24}, []byte("ftypheic0000")...)
		Expect(detectFormat(data, "")).To(Equal(constants.HEIC))
	})

	It("falls back to the extension", func() {
		Expect(detectFormat([]byte("??"), ".HEIF")).To(Equal(constants.HEIC))
		Expect(detectFormat([]byte("??"), ".txt")).To(BeEmpty())
	})
})
