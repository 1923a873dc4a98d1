package template

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
)

// signatureKeywords are the summary markers whose relative line positions
// make up part of a layout signature.
var signatureKeywords = []string{"subtotal", "total", "tax", "date", "payment"}

// Signature describes the shape of a receipt's text independently of its
// amounts. Digest is a SHA-256 over the rounded features.
type Signature struct {
	LineCount  int                `json:"line_count"`
	MeanLength float64            `json:"mean_length"`
	StdDev     float64            `json:"stddev_length"`
	Positions  map[string]float64 `json:"positions"`
	Digest     string             `json:"digest"`
}

// ComputeSignature builds the layout signature of lines. A keyword's position
// is the index of its last occurrence over the line count.
func ComputeSignature(lines []string) Signature {
	sig := Signature{LineCount: len(lines), Positions: make(map[string]float64)}
	if len(lines) == 0 {
		sig.Digest = sig.digest()
		return sig
	}

	var sum float64
	for _, ln := range lines {
		sum += float64(len([]rune(ln)))
	}
	mean := sum / float64(len(lines))
	var sq float64
	for _, ln := range lines {
		d := float64(len([]rune(ln))) - mean
		sq += d * d
	}
	sig.MeanLength = round2(mean)
	sig.StdDev = round2(math.Sqrt(sq / float64(len(lines))))

	for i, ln := range lines {
		lower := strings.ToLower(ln)
		for _, kw := range signatureKeywords {
			if strings.Contains(lower, kw) {
				sig.Positions[kw] = round2(float64(i) / float64(len(lines)))
			}
		}
	}
	sig.Digest = sig.digest()
	return sig
}

func (s Signature) digest() string {
	var b strings.Builder
	fmt.Fprintf(&b, "lines=%d;mean=%.2f;std=%.2f", s.LineCount, s.MeanLength, s.StdDev)
	keys := make([]string, 0, len(s.Positions))
	for k := range s.Positions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, ";%s=%.2f", k, s.Positions[k])
	}
	h := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(h[:])
}

// IsZero reports whether s was never computed.
func (s Signature) IsZero() bool {
	return s.Digest == "" && s.LineCount == 0
}

// Similarity compares two signatures in [0,1]. Equal digests are identical;
// otherwise it is the mean of the line-count, mean-length, spread and
// keyword-position similarities.
func Similarity(a, b Signature) float64 {
	if a.IsZero() || b.IsZero() {
		return 0
	}
	if a.Digest != "" && a.Digest == b.Digest {
		return 1
	}
	parts := []float64{
		ratio(float64(a.LineCount), float64(b.LineCount)),
		ratio(a.MeanLength, b.MeanLength),
		ratio(a.StdDev, b.StdDev),
		positionSimilarity(a.Positions, b.Positions),
	}
	var sum float64
	for _, p := range parts {
		sum += p
	}
	return sum / float64(len(parts))
}

func ratio(a, b float64) float64 {
	if a == 0 && b == 0 {
		return 1
	}
	return math.Min(a, b) / math.Max(a, b)
}

func positionSimilarity(a, b map[string]float64) float64 {
	union := 0
	var sum float64
	for _, kw := range signatureKeywords {
		pa, inA := a[kw]
		pb, inB := b[kw]
		if !inA && !inB {
			continue
		}
		union++
		if inA && inB {
			sum += 1 - math.Min(1, math.Abs(pa-pb))
		}
	}
	if union == 0 {
		return 1
	}
	return sum / float64(union)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
