package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/receipt-extractor/internal/common"
	"github.com/joseph-ayodele/receipt-extractor/internal/receipt"
)

// Check statuses.
const (
	CheckSuccess        = "success"
	CheckPartial        = "partial"
	CheckFailed         = "failed"
	CheckNoTests        = "no_tests"
	CheckNoExpectedFile = "no_expected_file"
)

const (
	amountTolerance   = 0.01
	minItemMatchRatio = 0.5
)

// ExpectedItem is one line of a golden file.
type ExpectedItem struct {
	Description string              `json:"description"`
	Price       decimal.NullDecimal `json:"price"`
}

// Expected is the hand-checked result for one receipt, stored as <id>.json.
// Empty fields are not checked.
type Expected struct {
	StoreName     string              `json:"store_name,omitempty"`
	Currency      string              `json:"currency,omitempty"`
	Date          string              `json:"date,omitempty"`
	PaymentMethod string              `json:"payment_method,omitempty"`
	Subtotal      decimal.NullDecimal `json:"subtotal"`
	Tax           decimal.NullDecimal `json:"tax"`
	Total         decimal.NullDecimal `json:"total"`
	Items         []ExpectedItem      `json:"items"`
}

// ExpectedFromReceipt captures r as a golden record.
func ExpectedFromReceipt(r *receipt.Receipt) Expected {
	e := Expected{
		StoreName:     r.StoreName,
		Currency:      r.Currency,
		PaymentMethod: r.PaymentMethod,
		Subtotal:      r.Totals.Subtotal,
		Tax:           r.Totals.Tax,
		Total:         r.Totals.Total,
		Items:         make([]ExpectedItem, 0, len(r.Items)),
	}
	if r.Date != nil {
		e.Date = r.Date.Format("2006-01-02")
	}
	for _, it := range r.Items {
		e.Items = append(e.Items, ExpectedItem{Description: it.Description, Price: receipt.Some(it.LineTotal)})
	}
	return e
}

// TestResult is one comparison in a check.
type TestResult struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

type CheckResult struct {
	ReceiptID   string       `json:"receipt_id"`
	Status      string       `json:"status"`
	Tests       []TestResult `json:"tests"`
	Passing     int          `json:"passing_tests"`
	Total       int          `json:"total_tests"`
	SuccessRate float64      `json:"success_rate"`
}

// GoldenChecker compares receipts against golden files in a directory.
type GoldenChecker struct {
	dir    string
	logger *slog.Logger
}

func NewGoldenChecker(dir string, logger *slog.Logger) *GoldenChecker {
	if logger == nil {
		logger = slog.Default()
	}
	return &GoldenChecker{dir: dir, logger: logger}
}

// ReceiptKey reduces a file name or path to the golden-file key.
func ReceiptKey(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (g *GoldenChecker) path(id string) string {
	return filepath.Join(g.dir, ReceiptKey(id)+".json")
}

// Load reads and schema-checks the golden file for id.
func (g *GoldenChecker) Load(id string) (*Expected, error) {
	data, err := os.ReadFile(g.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("expected results for %s: %w", ReceiptKey(id), common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read expected results: %w", err)
	}
	if err := receipt.ValidateJSONAgainstSchema(expectedSchema(), data); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", common.ErrValidation, ReceiptKey(id), err)
	}
	var e Expected
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode expected results: %w", err)
	}
	return &e, nil
}

// Check compares r with the golden file for id. A missing file yields status
// no_expected_file rather than an error.
func (g *GoldenChecker) Check(id string, r *receipt.Receipt) (CheckResult, error) {
	res := CheckResult{ReceiptID: ReceiptKey(id), Tests: []TestResult{}}
	e, err := g.Load(id)
	if errors.Is(err, common.ErrNotFound) {
		res.Status = CheckNoExpectedFile
		return res, nil
	}
	if err != nil {
		return res, err
	}
	res.Tests = Compare(*e, r)
	res.summarize()
	g.logger.Info("validation.golden.check", "receipt", res.ReceiptID, "status", res.Status, "passing", res.Passing, "total", res.Total)
	return res, nil
}

// SaveExpected writes r as the golden file for id and returns its path.
func (g *GoldenChecker) SaveExpected(id string, r *receipt.Receipt) (string, error) {
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return "", fmt.Errorf("create expected dir: %w", err)
	}
	data, err := json.MarshalIndent(ExpectedFromReceipt(r), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode expected results: %w", err)
	}
	p := g.path(id)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", fmt.Errorf("write expected results: %w", err)
	}
	g.logger.Info("validation.golden.saved", "receipt", ReceiptKey(id), "path", p)
	return p, nil
}

// Compare runs every applicable comparison of r against e.
func Compare(e Expected, r *receipt.Receipt) []TestResult {
	var tests []TestResult
	field := func(name, want, got string) {
		if want == "" {
			return
		}
		tests = append(tests, TestResult{Name: name, Passed: strings.EqualFold(want, got), Expected: want, Actual: got})
	}
	amount := func(name string, want, got decimal.NullDecimal) {
		if !want.Valid {
			return
		}
		tests = append(tests, TestResult{
			Name:     name,
			Passed:   got.Valid && receipt.Within(want.Decimal, got.Decimal, amountTolerance),
			Expected: want.Decimal.StringFixed(2),
			Actual:   nullString(got),
		})
	}

	date := ""
	if r.Date != nil {
		date = r.Date.Format("2006-01-02")
	}
	field("store_name", e.StoreName, r.StoreName)
	field("currency", e.Currency, r.Currency)
	field("date", e.Date, date)
	field("payment_method", e.PaymentMethod, r.PaymentMethod)
	amount("subtotal", e.Subtotal, r.Totals.Subtotal)
	amount("tax", e.Tax, r.Totals.Tax)
	amount("total", e.Total, r.Totals.Total)

	tests = append(tests, TestResult{
		Name:     "item_count",
		Passed:   len(e.Items) == len(r.Items),
		Expected: fmt.Sprint(len(e.Items)),
		Actual:   fmt.Sprint(len(r.Items)),
	})

	if len(e.Items) == 0 || len(r.Items) == 0 {
		return tests
	}
	want := make(map[string]ExpectedItem, len(e.Items))
	for _, it := range e.Items {
		want[strings.ToLower(it.Description)] = it
	}
	matches := 0
	for _, it := range r.Items {
		desc := strings.ToLower(it.Description)
		exp, ok := want[desc]
		if !ok {
			continue
		}
		matches++
		tests = append(tests, TestResult{
			Name:     "item_price:" + desc,
			Passed:   !exp.Price.Valid || receipt.Within(exp.Price.Decimal, it.LineTotal, amountTolerance),
			Expected: nullString(exp.Price),
			Actual:   it.LineTotal.StringFixed(2),
		})
	}
	ratio := float64(matches) / float64(len(want))
	tests = append(tests, TestResult{
		Name:     "item_match_percentage",
		Passed:   ratio >= minItemMatchRatio,
		Expected: fmt.Sprintf(">=%.0f%%", minItemMatchRatio*100),
		Actual:   fmt.Sprintf("%.1f%%", ratio*100),
	})
	return tests
}

func (c *CheckResult) summarize() {
	c.Total = len(c.Tests)
	c.Passing = 0
	for _, t := range c.Tests {
		if t.Passed {
			c.Passing++
		}
	}
	if c.Total == 0 {
		c.Status = CheckNoTests
		return
	}
	c.SuccessRate = receipt.Round2(float64(c.Passing) / float64(c.Total))
	switch rate := float64(c.Passing) / float64(c.Total); {
	case rate >= 0.8:
		c.Status = CheckSuccess
	case rate >= 0.5:
		c.Status = CheckPartial
	default:
		c.Status = CheckFailed
	}
}

func nullString(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(2)
}

func expectedSchema() map[string]any {
	amount := map[string]any{
		"anyOf": []any{
			map[string]any{"type": "number", "minimum": 0},
			map[string]any{"type": "string", "pattern": `^\d+(\.\d+)?$`},
			map[string]any{"type": "null"},
		},
	}
	return map[string]any{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type":    "object",
		"properties": map[string]any{
			"store_name":     map[string]any{"type": "string"},
			"currency":       map[string]any{"type": "string"},
			"date":           map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`},
			"payment_method": map[string]any{"type": "string"},
			"subtotal":       amount,
			"tax":            amount,
			"total":          amount,
			"items": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"description": map[string]any{"type": "string", "minLength": 1},
						"price":       amount,
					},
					"required": []string{"description"},
				},
			},
		},
	}
}
