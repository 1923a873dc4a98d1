package ocr

import (
	"regexp"
	"strings"
)

var (
	reDate   = regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b|\b20\d{2}-\d{2}-\d{2}\b`)
	reCurr   = regexp.MustCompile(`\b(usd|eur|gbp|cad|aud|jpy)\b|[$£€¥]`)
	reAmount = regexp.MustCompile(`\b\d{1,3}(,\d{3})*\.\d{2}\b|\b\d+\.\d{2}\b`)
	reTotal  = regexp.MustCompile(`\b(sub)?total\b`)
)

// HeuristicConfidence scores how receipt-like decoded text looks, in 0..1.
// It is independent of backend block confidences and is used to compare
// passes when a backend reports none.
func HeuristicConfidence(txt string) float64 {
	txtL := strings.ToLower(txt)
	score := 0.2
	if reDate.MatchString(txtL) {
		score += 0.2
	}
	if reCurr.MatchString(txtL) {
		score += 0.15
	}
	if reAmount.MatchString(txtL) {
		score += 0.15
	}
	if reTotal.MatchString(txtL) {
		score += 0.2
	}
	if len(txt) > 120 {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// TextConfidence is the mean block confidence, or the heuristic score when the
// backend reported no blocks for non-empty text.
func TextConfidence(blockMean float64, blocks int, txt string) float64 {
	if blocks > 0 {
		return blockMean
	}
	if strings.TrimSpace(txt) == "" {
		return 0
	}
	return HeuristicConfidence(txt)
}
