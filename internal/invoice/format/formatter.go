package format

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	seqPadRe = regexp.MustCompile(`\{SEQ(\d+)\}`)

	romanMonths = [...]string{"I", "II", "III", "IV", "V", "VI", "VII", "VIII", "IX", "X", "XI", "XII"}
)

// DefaultInvoiceNumberTemplate renders e.g. 007/INV-TKA/III/2025.
const DefaultInvoiceNumberTemplate = "{SEQ3}/INV-TKA/{ROMAN_MM}/{YYYY}"

// FormatInvoiceNumber formats a human-readable invoice number
// based on a template, invoice date, and the yearly sequence.
//
// Supported tokens: {YYYY} {YY} {MM} {DD} {ROMAN_MM} {SEQ} {SEQn}.
// The function is pure.
func FormatInvoiceNumber(
	template string,
	issuedAt time.Time,
	seq int64,
) (string, error) {

	if strings.TrimSpace(template) == "" {
		return "", fmt.Errorf("invoice number template is empty")
	}

	if seq <= 0 {
		return "", fmt.Errorf("invalid invoice sequence: %d", seq)
	}

	out := template

	// ROMAN_MM first so {MM} does not eat its suffix.
	out = strings.ReplaceAll(out, "{ROMAN_MM}", RomanMonth(issuedAt.Month()))
	out = strings.ReplaceAll(out, "{YYYY}", issuedAt.Format("2006"))
	out = strings.ReplaceAll(out, "{YY}", issuedAt.Format("06"))
	out = strings.ReplaceAll(out, "{MM}", issuedAt.Format("01"))
	out = strings.ReplaceAll(out, "{DD}", issuedAt.Format("02"))

	out = strings.ReplaceAll(out, "{SEQ}", strconv.FormatInt(seq, 10))

	out = seqPadRe.ReplaceAllStringFunc(out, func(m string) string {
		match := seqPadRe.FindStringSubmatch(m)
		if len(match) != 2 {
			return m
		}

		width, err := strconv.Atoi(match[1])
		if err != nil || width <= 0 || width > 12 {
			return m
		}

		return fmt.Sprintf("%0*d", width, seq)
	})

	if strings.Contains(out, "{") || strings.Contains(out, "}") {
		return "", fmt.Errorf("unresolved token in invoice format: %s", out)
	}

	return out, nil
}

// ValidateTemplate checks that a template resolves and carries a sequence
// token, so numbers within a year stay unique.
func ValidateTemplate(template string) error {
	if !strings.Contains(template, "{SEQ") {
		return fmt.Errorf("invoice number template %q has no {SEQ} token", template)
	}
	_, err := FormatInvoiceNumber(template, time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC), 1)
	return err
}

func RomanMonth(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return romanMonths[m-1]
}
