package pdf

import (
	"strings"

	"github.com/shopspring/decimal"
)

var basicNumbers = [...]string{
	"", "satu", "dua", "tiga", "empat", "lima",
	"enam", "tujuh", "delapan", "sembilan", "sepuluh", "sebelas",
}

// Terbilang spells a rupiah amount in Indonesian words, e.g.
// 1110000 -> "satu juta seratus sepuluh ribu rupiah". Cents are spelled as
// "sen" when present.
func Terbilang(amount decimal.Decimal) string {
	amount = amount.Abs().Round(2)
	whole := amount.Truncate(0)
	cents := amount.Sub(whole).Mul(decimal.NewFromInt(100)).IntPart()

	words := "nol"
	if whole.IsPositive() {
		words = spell(whole.IntPart())
	}
	words += " rupiah"
	if cents > 0 {
		words += " " + spell(cents) + " sen"
	}
	return words
}

func spell(n int64) string {
	return strings.Join(strings.Fields(spellRaw(n)), " ")
}

func spellRaw(n int64) string {
	switch {
	case n < 12:
		return basicNumbers[n]
	case n < 20:
		return spellRaw(n-10) + " belas"
	case n < 100:
		return spellRaw(n/10) + " puluh " + spellRaw(n%10)
	case n < 200:
		return "seratus " + spellRaw(n-100)
	case n < 1000:
		return spellRaw(n/100) + " ratus " + spellRaw(n%100)
	case n < 2000:
		return "seribu " + spellRaw(n-1000)
	case n < 1_000_000:
		return spellRaw(n/1000) + " ribu " + spellRaw(n%1000)
	case n < 1_000_000_000:
		return spellRaw(n/1_000_000) + " juta " + spellRaw(n%1_000_000)
	case n < 1_000_000_000_000:
		return spellRaw(n/1_000_000_000) + " miliar " + spellRaw(n%1_000_000_000)
	default:
		return spellRaw(n/1_000_000_000_000) + " triliun " + spellRaw(n%1_000_000_000_000)
	}
}
