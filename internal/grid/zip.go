package grid

import (
	"regexp"
	"strings"
)

var (
	fiveDigitRe      = regexp.MustCompile(`\d{5}`)
	nonDigitRe       = regexp.MustCompile(`\D`)
	canadianPostalRe = regexp.MustCompile(`^[A-Z]\d[A-Z]\d[A-Z]\d$`)
)

// NormalizeZip extracts a 5-digit US ZIP from free text. An explicit 5-digit
// run wins; otherwise digits are kept and left-padded, which recovers ZIPs
// whose leading zeros a spreadsheet dropped (7803 → 07803).
func NormalizeZip(v string) string {
	s := strings.TrimSpace(v)
	if s == "" {
		return ""
	}
	if m := fiveDigitRe.FindString(s); m != "" {
		return m
	}
	digits := nonDigitRe.ReplaceAllString(s, "")
	if digits == "" {
		return ""
	}
	if len(digits) >= 5 {
		return digits[:5]
	}
	return strings.Repeat("0", 5-len(digits)) + digits
}

// NormalizePostal returns a Canadian postal code as A1A1A1 when v is one, and
// the US ZIP normalisation otherwise.
func NormalizePostal(v string) string {
	compact := strings.ToUpper(strings.Join(strings.Fields(v), ""))
	compact = strings.ReplaceAll(compact, "-", "")
	if len(compact) == 6 && canadianPostalRe.MatchString(compact) {
		return compact
	}
	return NormalizeZip(v)
}

// CellZip normalises a cell that may hold a ZIP either as text or as the
// number a spreadsheet turned it into.
func CellZip(c Cell) string {
	switch c.Kind {
	case KindText:
		return NormalizeZip(c.Text)
	case KindNumber:
		if c.Number < 0 || c.Number != float64(int64(c.Number)) {
			return ""
		}
		return NormalizeZip(c.String())
	}
	return ""
}

// DigitCount is used to keep stray single digits ("Week 1") from being read
// as center ZIPs.
func DigitCount(c Cell) int {
	return len(nonDigitRe.ReplaceAllString(c.String(), ""))
}
