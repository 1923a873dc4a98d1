package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/receipt-extractor/internal/receipt"
)

// TesseractConfig configures the tesseract CLI backend.
type TesseractConfig struct {
	Binary      string // binary name or absolute path; if empty -> "tesseract"
	Lang        string // default "eng"
	TessdataDir string
	PSM         int // page segmentation mode, default 6 (uniform block of text)
	OEM         int // 1 = LSTM; leave 0 to use default
}

// AggressivePSM is the page segmentation mode used for the re-extraction pass
// (single column of variable-size text).
const AggressivePSM = 4

// Tesseract runs the tesseract CLI in TSV mode.
type Tesseract struct {
	cfg    TesseractConfig
	runner Runner
	logger *slog.Logger
}

func NewTesseract(cfg TesseractConfig, runner Runner, logger *slog.Logger) *Tesseract {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ExecRunner{Logger: logger}
	}
	if cfg.Binary == "" {
		cfg.Binary = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "eng"
	}
	if cfg.PSM <= 0 {
		cfg.PSM = 6
	}
	return &Tesseract{cfg: cfg, runner: runner, logger: logger}
}

func (t *Tesseract) Name() string { return BackendTesseract }

func (t *Tesseract) Recognize(ctx context.Context, img receipt.Image, hints Hints) (receipt.ExtractedText, error) {
	start := time.Now()
	path, cleanup, err := imagePath(img)
	if err != nil {
		return receipt.ExtractedText{}, err
	}
	defer cleanup()

	out, errb, err := t.runner.Run(ctx, t.cfg.Binary, t.args(path, hints)...)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return receipt.ExtractedText{}, fmt.Errorf("tesseract binary %q: %w", t.cfg.Binary, err)
		}
		if IsTransient(err) {
			return receipt.ExtractedText{}, fmt.Errorf("tesseract: %w", err)
		}
		return receipt.ExtractedText{}, fmt.Errorf("tesseract: %w: %s", err, truncate(strings.TrimSpace(string(errb)), 512))
	}

	res := ParseTSV(string(out))
	res.Backend = t.Name()
	res.Duration = time.Since(start)
	t.logger.Debug("ocr.tesseract.ok",
		"source", img.Source,
		"blocks", len(res.Blocks),
		"confidence", res.Confidence(),
		"aggressive", hints.Aggressive,
	)
	return res, nil
}

func (t *Tesseract) args(path string, hints Hints) []string {
	lang := t.cfg.Lang
	if hints.Language != "" {
		lang = hints.Language
	}
	psm := t.cfg.PSM
	if hints.Aggressive {
		psm = AggressivePSM
	}
	args := []string{path, "stdout", "-l", lang, "--psm", strconv.Itoa(psm)}
	if t.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(t.cfg.OEM))
	}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}
	return append(args, "tsv")
}

// imagePath writes in-memory image data to a temp file when needed.
func imagePath(img receipt.Image) (string, func(), error) {
	if len(img.Data) == 0 {
		if img.Source == "" {
			return "", func() {}, fmt.Errorf("image has neither data nor path")
		}
		return img.Source, func() {}, nil
	}
	ext := img.Format
	if ext == "" {
		ext = "png"
	}
	f, err := os.CreateTemp("", "rx-ocr-*."+ext)
	if err != nil {
		return "", func() {}, err
	}
	name := f.Name()
	cleanup := func() { _ = os.Remove(name) }
	if _, err := f.Write(img.Data); err != nil {
		_ = f.Close()
		cleanup()
		return "", func() {}, err
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", func() {}, err
	}
	return filepath.Clean(name), cleanup, nil
}

type lineKey struct{ page, block, par, line int }

type tsvLine struct {
	words    []string
	confSum  float64
	confN    int
	box      receipt.BoundingBox
	hasWords bool
}

// ParseTSV turns tesseract TSV output into text lines, one TextBlock per line.
// Word confidences are averaged per line and scaled to 0..1.
func ParseTSV(tsv string) receipt.ExtractedText {
	var order []lineKey
	lines := make(map[lineKey]*tsvLine)

	for i, ln := range strings.Split(tsv, "\n") {
		if i == 0 || ln == "" {
			continue // header
		}
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 || cols[0] != "5" {
			continue // word rows only
		}
		text := strings.TrimSpace(cols[11])
		if text == "" {
			continue
		}
		n := atois(cols[1:10])
		key := lineKey{page: n[0], block: n[1], par: n[2], line: n[3]}
		box := receipt.BoundingBox{X: n[5], Y: n[6], Width: n[7], Height: n[8]}

		l, ok := lines[key]
		if !ok {
			l = &tsvLine{}
			lines[key] = l
			order = append(order, key)
		}
		l.words = append(l.words, text)
		if conf, err := strconv.ParseFloat(cols[10], 64); err == nil && conf >= 0 {
			l.confSum += conf
			l.confN++
		}
		if l.hasWords {
			l.box = union(l.box, box)
		} else {
			l.box = box
			l.hasWords = true
		}
	}

	var b strings.Builder
	blocks := make([]receipt.TextBlock, 0, len(order))
	for _, key := range order {
		l := lines[key]
		text := strings.Join(l.words, " ")
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(text)
		var conf float64
		if l.confN > 0 {
			conf = l.confSum / float64(l.confN) / 100
		}
		blocks = append(blocks, receipt.TextBlock{Text: text, Confidence: conf, Box: l.box})
	}
	return receipt.ExtractedText{Content: b.String(), Blocks: blocks}
}

func atois(cols []string) []int {
	out := make([]int, len(cols))
	for i, c := range cols {
		out[i], _ = strconv.Atoi(c)
	}
	return out
}

func union(a, b receipt.BoundingBox) receipt.BoundingBox {
	x0, y0 := min(a.X, b.X), min(a.Y, b.Y)
	x1, y1 := max(a.X+a.Width, b.X+b.Width), max(a.Y+a.Height, b.Y+b.Height)
	return receipt.BoundingBox{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}
