package pdf

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDocument() InvoiceDocument {
	due := time.Date(2025, 4, 13, 0, 0, 0, 0, time.UTC)
	return InvoiceDocument{
		Number:      "001/INV-TKA/III/2025",
		Status:      "ISSUED",
		InvoiceDate: time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
		DueDate:     &due,
		Issuer:      Party{Name: "TKA Services", City: "Jakarta"},
		BillTo:      Party{Name: "PT Maju Jaya", Address: "Jl. Sudirman 1", City: "Jakarta"},
		Bank:        &BankDetails{BankName: "BCA", AccountNumber: "1234567890", AccountHolder: "TKA Services"},
		Lines: []DocumentLine{
			{Baris: 2, Description: "IMTA renewal", Quantity: 1, UnitPrice: decimal.NewFromInt(500000), LineTotal: decimal.NewFromInt(500000)},
			{Baris: 1, WorkerName: "John Doe", JobTitle: "Engineer", Quantity: 2, UnitPrice: decimal.NewFromInt(250000), LineTotal: decimal.NewFromInt(500000)},
			{Baris: 1, WorkerName: "Jane Roe", JobTitle: "Engineer", Quantity: 1, UnitPrice: decimal.NewFromInt(0), LineTotal: decimal.NewFromInt(0)},
		},
		Subtotal:      decimal.NewFromInt(1000000),
		VATPercentage: decimal.NewFromInt(11),
		VATAmount:     decimal.NewFromInt(110000),
		Total:         decimal.NewFromInt(1110000),
	}
}

func TestGroupRows(t *testing.T) {
	groups := GroupRows(sampleDocument().Lines)
	require.Len(t, groups, 2)
	assert.Equal(t, 1, groups[0].Baris)
	require.Len(t, groups[0].Lines, 2)
	assert.Equal(t, "John Doe", groups[0].Lines[0].WorkerName)
	assert.Equal(t, "Jane Roe", groups[0].Lines[1].WorkerName)
	assert.Equal(t, 2, groups[1].Baris)
}

func TestGenerateInvoiceProducesPDF(t *testing.T) {
	out, err := New().GenerateInvoice(context.Background(), sampleDocument())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestGenerateInvoiceRequiresNumber(t *testing.T) {
	doc := sampleDocument()
	doc.Number = " "
	_, err := New().GenerateInvoice(context.Background(), doc)
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestGenerateInvoiceHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().GenerateInvoice(ctx, sampleDocument())
	assert.ErrorIs(t, err, context.Canceled)
}
