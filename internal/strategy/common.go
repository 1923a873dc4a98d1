package strategy

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/receipt-extractor/constants"
)

var reSummary = regexp.MustCompile(`(?i)\b(?:SUB[\s-]*TOTAL|TOTAL|TAX|BALANCE|CHANGE|TEND(?:ER|ERED)?|CASH|VISA|MASTERCARD|MASTER\s+CARD|AMEX|DISCOVER|DEBIT|CREDIT|PAYMENT|AMOUNT(?:\s+DUE)?|ITEMS\s+SOLD|APPROVED|AUTH(?:ORIZATION)?|EBT)\b`)

// IsSummaryLine reports whether line is a totals, tender or payment line that
// must never be read as a purchased item.
func IsSummaryLine(line string) bool {
	return reSummary.MatchString(line)
}

var dateRules = []struct {
	re    *regexp.Regexp
	parts func(m []string) (y, mo, d int)
}{
	{regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`), func(m []string) (int, int, int) { return atoi(m[1]), atoi(m[2]), atoi(m[3]) }},
	{regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4}|\d{2})\b`), func(m []string) (int, int, int) { return year(m[3]), atoi(m[1]), atoi(m[2]) }},
	{regexp.MustCompile(`\b(\d{1,2})-(\d{1,2})-(\d{4}|\d{2})\b`), func(m []string) (int, int, int) { return year(m[3]), atoi(m[1]), atoi(m[2]) }},
}

var reClock = regexp.MustCompile(`\b(\d{1,2}):(\d{2})(?::(\d{2}))?\s*([AaPp][Mm])?\b`)

// ParseDate returns the first valid calendar date in text, in UTC. A clock
// time on the same line, 12 or 24 hour, is applied when present.
func ParseDate(text string) *time.Time {
	for _, line := range strings.Split(text, "\n") {
		for _, r := range dateRules {
			for _, m := range r.re.FindAllStringSubmatch(line, -1) {
				y, mo, d := r.parts(m)
				if !validDate(y, mo, d) {
					continue
				}
				hh, mm, ss := clock(line)
				t := time.Date(y, time.Month(mo), d, hh, mm, ss, 0, time.UTC)
				return &t
			}
		}
	}
	return nil
}

func validDate(y, mo, d int) bool {
	if mo < 1 || mo > 12 || d < 1 || d > 31 || y < 1990 || y > 2100 {
		return false
	}
	return time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC).Day() == d
}

func clock(line string) (int, int, int) {
	m := reClock.FindStringSubmatch(line)
	if m == nil {
		return 0, 0, 0
	}
	hh, mm := atoi(m[1]), atoi(m[2])
	ss := 0
	if m[3] != "" {
		ss = atoi(m[3])
	}
	switch strings.ToUpper(m[4]) {
	case "PM":
		if hh < 12 {
			hh += 12
		}
	case "AM":
		if hh == 12 {
			hh = 0
		}
	}
	if hh > 23 || mm > 59 || ss > 59 {
		return 0, 0, 0
	}
	return hh, mm, ss
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func year(s string) int {
	y := atoi(s)
	if len(s) == 2 {
		y += 2000
	}
	return y
}

var paymentRules = []struct {
	re     *regexp.Regexp
	method string
}{
	{regexp.MustCompile(`(?i)\bWALMART\s*PAY\b`), "WALMART PAY"},
	{regexp.MustCompile(`(?i)\bAPPLE\s*PAY\b`), "APPLE PAY"},
	{regexp.MustCompile(`(?i)\bGOOGLE\s*PAY\b`), "GOOGLE PAY"},
	{regexp.MustCompile(`(?i)\bVISA\b`), "VISA"},
	{regexp.MustCompile(`(?i)\bMASTER\s*CARD\b`), "MASTERCARD"},
	{regexp.MustCompile(`(?i)\b(?:AMEX|AMERICAN\s+EXPRESS)\b`), "AMEX"},
	{regexp.MustCompile(`(?i)\bDISCOVER\b`), "DISCOVER"},
	{regexp.MustCompile(`(?i)\bEBT\b`), "EBT"},
	{regexp.MustCompile(`(?i)\bDEBIT\b`), "DEBIT"},
	{regexp.MustCompile(`(?i)\bGIFT\s*CARD\b`), "GIFT CARD"},
	{regexp.MustCompile(`(?i)\bCREDIT\b`), "CREDIT"},
	{regexp.MustCompile(`(?i)\bCASH\b`), "CASH"},
}

var reCardLast4 = regexp.MustCompile(`(?i)(?:X{4,}|\*{2,}\s*)(\d{4})\b`)

// Payment is the tender found on a receipt.
type Payment struct {
	Method   string
	Category constants.PaymentCategory
	Last4    string
}

// DetectPayment finds the payment method and, when printed, the masked card's
// last four digits. Method is "" when no tender is recognized.
func DetectPayment(text string) Payment {
	var p Payment
	for _, r := range paymentRules {
		if r.re.MatchString(text) {
			p.Method = r.method
			break
		}
	}
	if p.Method == "" {
		return p
	}
	p.Category, _ = constants.CanonicalizePayment(p.Method)
	if m := reCardLast4.FindStringSubmatch(text); m != nil && p.Category != constants.PaymentCash {
		p.Last4 = m[1]
	}
	return p
}

var (
	reCurrencyCode = regexp.MustCompile(`\b(USD|EUR|GBP|CAD|AUD|JPY|KRW)\b`)
	currencySymbol = []struct {
		sym, code string
	}{
		{"€", "EUR"},
		{"£", "GBP"},
		{"¥", "JPY"},
		{"₩", "KRW"},
		{"$", "USD"},
	}
)

// DetectCurrency returns the ISO code named or symbolized in text, or "".
func DetectCurrency(text string) string {
	if m := reCurrencyCode.FindStringSubmatch(strings.ToUpper(text)); m != nil {
		return m[1]
	}
	for _, c := range currencySymbol {
		if strings.Contains(text, c.sym) {
			return c.code
		}
	}
	return ""
}

var rePhone = regexp.MustCompile(`\(?\b(\d{3})\)?[\s.-]?(\d{3})[\s.-](\d{4})\b`)

// DetectPhone returns the first phone number formatted as NNN-NNN-NNNN.
func DetectPhone(text string) string {
	m := rePhone.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1] + "-" + m[2] + "-" + m[3]
}

// knownStores maps a display name to the aliases printed on its receipts.
var knownStores = []struct {
	name    string
	aliases *regexp.Regexp
}{
	{"Costco", regexp.MustCompile(`(?i)\bCOSTCO\b`)},
	{"Walmart", regexp.MustCompile(`(?i)\bWAL[\s-]?MART\b`)},
	{"Trader Joe's", regexp.MustCompile(`(?i)\bTRADER\s+JOE'?S\b`)},
	{"Key Food", regexp.MustCompile(`(?i)\bKEY\s*FOOD\b`)},
	{"H Mart", regexp.MustCompile(`(?i)\bH[\s-]?MART\b`)},
	{"Target", regexp.MustCompile(`(?i)\b(?:SUPER\s+)?TARGET\b`)},
	{"Kroger", regexp.MustCompile(`(?i)\bKROGER'?S?\b`)},
	{"Safeway", regexp.MustCompile(`(?i)\bSAFEWAY\b`)},
	{"Publix", regexp.MustCompile(`(?i)\bPUBLIX\b`)},
	{"Whole Foods", regexp.MustCompile(`(?i)\bWHOLE\s+FOODS\b`)},
	{"Aldi", regexp.MustCompile(`(?i)\bALDI\b`)},
}

// KnownStore returns the display name of a recognized chain named in text.
func KnownStore(text string) (string, bool) {
	for _, s := range knownStores {
		if s.aliases.MatchString(text) {
			return s.name, true
		}
	}
	return "", false
}

var (
	reAddressLine = regexp.MustCompile(`(?i)\d+.*\b(?:ST|STREET|AVE|AVENUE|BLVD|RD|ROAD|DR|DRIVE|LN|LANE|HWY|WAY|PKWY|PLAZA)\b|\b[A-Z]{2}\s+\d{5}(?:-\d{4})?\b`)
	reAnyDate     = regexp.MustCompile(`\d{1,4}[/-]\d{1,2}[/-]\d{2,4}`)
	reHasLetter   = regexp.MustCompile(`[A-Za-z]`)
)

// IsAddressLine reports whether line looks like a street or city/zip line.
func IsAddressLine(line string) bool {
	return reAddressLine.MatchString(line)
}

// HeaderStoreName guesses the store name from the first lines of a receipt:
// the first short line with letters that is neither a date, an address nor
// a summary line.
func HeaderStoreName(lines []string) string {
	for i, line := range lines {
		if i >= 5 {
			break
		}
		if len(line) > 40 || !reHasLetter.MatchString(line) {
			continue
		}
		if reAnyDate.MatchString(line) || IsAddressLine(line) || IsSummaryLine(line) || rePhone.MatchString(line) {
			continue
		}
		return line
	}
	return ""
}

// AddressAfter joins up to two address lines that follow the header line at index i.
func AddressAfter(lines []string, i int) string {
	var parts []string
	for j := i + 1; j < len(lines) && j <= i+3 && len(parts) < 2; j++ {
		if IsAddressLine(lines[j]) {
			parts = append(parts, lines[j])
		}
	}
	return strings.Join(parts, ", ")
}
