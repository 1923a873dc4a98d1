package validation

import (
	"regexp"
	"strconv"
)

var itemCountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)TOTAL\s+NUMBER\s+OF\s+ITEMS\s+SOLD\s*[-:=]?\s*(\d+)`),
	regexp.MustCompile(`(?i)\bITEMS\s+SOLD\s*[-:=]?\s*(\d+)`),
	regexp.MustCompile(`(?i)\b(?:ITEM\s+COUNT|NUMBER\s+OF\s+ITEMS)\s*[-:=]?\s*(\d+)`),
}

// ExpectedItemCount returns the sold-item count printed on the receipt, if any.
func ExpectedItemCount(text string) (int, bool) {
	for _, re := range itemCountPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			continue
		}
		return n, true
	}
	return 0, false
}
