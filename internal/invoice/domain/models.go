// Package domain contains persistence models for invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "DRAFT"
	InvoiceStatusIssued    InvoiceStatus = "ISSUED"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusIssued, InvoiceStatusPaid, InvoiceStatusCancelled:
		return true
	}
	return false
}

const (
	MaxLinesPerInvoice = 100
	MaxLineQuantity    = 9999
)

// Invoice is the stored aggregate. Subtotal, VATAmount and TotalAmount are
// always the totals of the current lines at VATPercentage.
type Invoice struct {
	ID            snowflake.ID    `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Number        string          `gorm:"type:text;not null;uniqueIndex" json:"number"`
	Sequence      int64           `gorm:"not null;uniqueIndex:ux_invoice_year_sequence,priority:2" json:"sequence"`
	IssueYear     int             `gorm:"not null;uniqueIndex:ux_invoice_year_sequence,priority:1" json:"issue_year"`
	CompanyID     snowflake.ID    `gorm:"not null;index" json:"company_id"`
	CompanyName   string          `gorm:"->;-:migration" json:"company_name,omitempty"`
	BankAccountID *snowflake.ID   `gorm:"index" json:"bank_account_id,omitempty"`
	Status        InvoiceStatus   `gorm:"type:text;not null;default:'DRAFT';index" json:"status"`
	InvoiceDate   time.Time       `gorm:"not null;index" json:"invoice_date"`
	DueDate       *time.Time      `json:"due_date,omitempty"`
	Notes         string          `gorm:"type:text" json:"notes,omitempty"`
	Subtotal      decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0" json:"subtotal"`
	VATPercentage decimal.Decimal `gorm:"column:vat_percentage;type:numeric(5,2);not null" json:"vat_percentage"`
	VATAmount     decimal.Decimal `gorm:"column:vat_amount;type:numeric(18,2);not null;default:0" json:"vat_amount"`
	TotalAmount   decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0" json:"total_amount"`
	IssuedAt      *time.Time      `json:"issued_at,omitempty"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	CancelledAt   *time.Time      `json:"cancelled_at,omitempty"`
	CancelReason  string          `gorm:"type:text" json:"cancel_reason,omitempty"`
	CreatedAt     time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"not null" json:"updated_at"`

	Issuer datatypes.JSONType[IssuerSnapshot] `gorm:"type:jsonb;not null;default:'{}'" json:"issuer"`
	Lines  []InvoiceLine                      `gorm:"-" json:"lines"`
}

func (Invoice) TableName() string { return "invoices" }

// IssuerSnapshot is the invoicing party as configured when the invoice was
// created. Documents always print it, whatever the current configuration.
type IssuerSnapshot struct {
	Name           string `json:"name"`
	Address        string `json:"address,omitempty"`
	City           string `json:"city,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Email          string `json:"email,omitempty"`
	NPWP           string `json:"npwp,omitempty"`
	SignatoryName  string `json:"signatory_name,omitempty"`
	SignatoryTitle string `json:"signatory_title,omitempty"`
}

// InvoiceLine stores its resolved unit price, so later job description
// price changes do not move issued amounts.
type InvoiceLine struct {
	ID               snowflake.ID        `gorm:"primaryKey;autoIncrement:false" json:"id"`
	InvoiceID        snowflake.ID        `gorm:"not null;uniqueIndex:ux_invoice_line_order,priority:1" json:"invoice_id"`
	LineOrder        int                 `gorm:"not null;uniqueIndex:ux_invoice_line_order,priority:2" json:"line_order"`
	Baris            int                 `gorm:"not null" json:"baris"`
	WorkerID         *snowflake.ID       `gorm:"index" json:"worker_id,omitempty"`
	JobDescriptionID *snowflake.ID       `gorm:"index" json:"job_description_id,omitempty"`
	Description      string              `gorm:"type:text" json:"description"`
	UnitPrice        decimal.Decimal     `gorm:"type:numeric(18,2);not null" json:"unit_price"`
	CustomPrice      decimal.NullDecimal `gorm:"type:numeric(18,2)" json:"custom_price"`
	Quantity         int64               `gorm:"not null" json:"quantity"`
	LineTotal        decimal.Decimal     `gorm:"type:numeric(18,2);not null" json:"line_total"`
	WorkerName       string              `gorm:"->;-:migration" json:"worker_name,omitempty"`
	JobTitle         string              `gorm:"->;-:migration" json:"job_title,omitempty"`
	CreatedAt        time.Time           `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time           `gorm:"not null" json:"updated_at"`
}

func (InvoiceLine) TableName() string { return "invoice_lines" }

// InvoiceSequence holds the last issued number sequence per year.
type InvoiceSequence struct {
	Year      int       `gorm:"primaryKey;autoIncrement:false"`
	LastValue int64     `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (InvoiceSequence) TableName() string { return "invoice_sequences" }

type CompanyRef struct {
	ID      snowflake.ID
	Name    string
	Address string
	NPWP    string `gorm:"column:npwp"`
	Phone   string
	Email   string
}

type WorkerRef struct {
	ID               snowflake.ID
	CompanyID        snowflake.ID
	JobDescriptionID *snowflake.ID
	Name             string
}

type JobDescriptionRef struct {
	ID        snowflake.ID
	CompanyID snowflake.ID
	Title     string
	Price     decimal.Decimal
}

type BankAccountRef struct {
	ID            snowflake.ID
	BankName      string
	AccountNumber string
	AccountHolder string
	Branch        string
}
