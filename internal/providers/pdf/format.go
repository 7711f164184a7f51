package pdf

import (
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
)

var indonesianMonths = [...]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

// FormatRupiah renders an amount as "Rp 1.110.000,00".
func FormatRupiah(amount decimal.Decimal) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}
	fixed := amount.StringFixed(2)
	intPart, fracPart, _ := strings.Cut(fixed, ".")
	return sign + "Rp " + groupThousands(intPart) + "," + fracPart
}

// FormatPercentage renders 11 as "11%" and 1.1 as "1,1%".
func FormatPercentage(value decimal.Decimal) string {
	return strings.Replace(value.String(), ".", ",", 1) + "%"
}

func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2") + " " + indonesianMonths[t.Month()-1] + " " + t.Format("2006")
}

// FileName builds a download name such as "001-inv-tka-iii-2025-pt-maju-jaya.pdf".
func FileName(number, company string) string {
	base := slug.Make(strings.TrimSpace(number + " " + company))
	if base == "" {
		base = "invoice"
	}
	return base + ".pdf"
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
