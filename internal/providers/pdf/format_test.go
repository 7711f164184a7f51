package pdf

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatRupiah(t *testing.T) {
	cases := map[string]string{
		"0":          "Rp 0,00",
		"999":        "Rp 999,00",
		"1000":       "Rp 1.000,00",
		"1110000":    "Rp 1.110.000,00",
		"181661.5":   "Rp 181.661,50",
		"-2500000":   "-Rp 2.500.000,00",
		"1234567890": "Rp 1.234.567.890,00",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatRupiah(decimal.RequireFromString(in)), in)
	}
}

func TestFormatPercentage(t *testing.T) {
	assert.Equal(t, "11%", FormatPercentage(decimal.NewFromInt(11)))
	assert.Equal(t, "1,1%", FormatPercentage(decimal.RequireFromString("1.10")))
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "14 Maret 2025", FormatDate(time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "-", FormatDate(time.Time{}))
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "001-inv-tka-iii-2025-pt-maju-jaya.pdf", FileName("001/INV-TKA/III/2025", "PT Maju Jaya"))
	assert.Equal(t, "invoice.pdf", FileName("", ""))
}

func TestTerbilang(t *testing.T) {
	cases := map[string]string{
		"0":          "nol rupiah",
		"11":         "sebelas rupiah",
		"15":         "lima belas rupiah",
		"100":        "seratus rupiah",
		"1000":       "seribu rupiah",
		"1110000":    "satu juta seratus sepuluh ribu rupiah",
		"181661":     "seratus delapan puluh satu ribu enam ratus enam puluh satu rupiah",
		"2000000000": "dua miliar rupiah",
		"10.50":      "sepuluh rupiah lima puluh sen",
	}
	for in, want := range cases {
		assert.Equal(t, want, Terbilang(decimal.RequireFromString(in)), in)
	}
}
