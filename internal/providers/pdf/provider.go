package pdf

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"
)

var Module = fx.Module("pdf.provider",
	fx.Provide(New),
)

// Provider renders invoice documents. Implementations print the amounts they
// are given and never recompute them.
type Provider interface {
	GenerateInvoice(ctx context.Context, doc InvoiceDocument) ([]byte, error)
}

type Party struct {
	Name    string
	Address string
	City    string
	Phone   string
	Email   string
	NPWP    string
}

type BankDetails struct {
	BankName      string
	AccountNumber string
	AccountHolder string
	Branch        string
}

type DocumentLine struct {
	Baris       int
	Description string
	WorkerName  string
	JobTitle    string
	Quantity    int64
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
}

type InvoiceDocument struct {
	Number      string
	Status      string
	InvoiceDate time.Time
	DueDate     *time.Time
	Notes       string

	Issuer         Party
	SignatoryName  string
	SignatoryTitle string
	BillTo         Party
	Bank           *BankDetails

	Lines         []DocumentLine
	Subtotal      decimal.Decimal
	VATPercentage decimal.Decimal
	VATAmount     decimal.Decimal
	Total         decimal.Decimal
}
