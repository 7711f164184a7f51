package domain

import (
	"context"
	"errors"
	"io"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tka-invoice/pkg/db/pagination"
)

// LineInput describes one line to add. Worker and job description are IDs.
// A custom price overrides the job description price.
type LineInput struct {
	Baris            *int             `json:"baris"`
	WorkerID         string           `json:"worker_id"`
	JobDescriptionID string           `json:"job_description_id"`
	Description      string           `json:"description"`
	Quantity         int64            `json:"quantity"`
	CustomPrice      *decimal.Decimal `json:"custom_price"`
}

// Dates are "2006-01-02". An empty invoice date means today.
type CreateInvoiceRequest struct {
	CompanyID     string           `json:"company_id"`
	BankAccountID string           `json:"bank_account_id"`
	InvoiceDate   string           `json:"invoice_date"`
	DueDate       string           `json:"due_date"`
	Notes         string           `json:"notes"`
	VATPercentage *decimal.Decimal `json:"vat_percentage"`
	Lines         []LineInput      `json:"lines"`
}

// UpdateInvoiceRequest applies only the fields that are set. An empty
// BankAccountID detaches the bank account, an empty DueDate clears it.
type UpdateInvoiceRequest struct {
	ID            string           `json:"-"`
	BankAccountID *string          `json:"bank_account_id"`
	InvoiceDate   *string          `json:"invoice_date"`
	DueDate       *string          `json:"due_date"`
	Notes         *string          `json:"notes"`
	VATPercentage *decimal.Decimal `json:"vat_percentage"`
}

type AddLineRequest struct {
	InvoiceID string `json:"-"`
	LineInput
}

type ReplaceLinesRequest struct {
	InvoiceID string      `json:"-"`
	Lines     []LineInput `json:"lines"`
}

type ImportMode string

const (
	ImportModeAppend  ImportMode = "append"
	ImportModeReplace ImportMode = "replace"
)

type ImportLinesRequest struct {
	InvoiceID string
	Filename  string
	Reader    io.Reader
	Mode      ImportMode
}

type ListInvoiceRequest struct {
	pagination.Pagination
	Status    string `form:"status"`
	CompanyID string `form:"company_id"`
	Search    string `form:"search"`
	DateFrom  string `form:"date_from"`
	DateTo    string `form:"date_to"`
}

type ListInvoiceResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}

type RenderedPDF struct {
	Filename string
	Content  []byte
}

type Service interface {
	Create(context.Context, CreateInvoiceRequest) (Invoice, error)
	Update(context.Context, UpdateInvoiceRequest) (Invoice, error)
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (Invoice, error)
	List(context.Context, ListInvoiceRequest) (ListInvoiceResponse, error)

	AddLine(context.Context, AddLineRequest) (Invoice, error)
	ReplaceLines(context.Context, ReplaceLinesRequest) (Invoice, error)
	DeleteLine(ctx context.Context, invoiceID, lineID string) (Invoice, error)
	ImportLines(context.Context, ImportLinesRequest) (Invoice, error)
	Recalculate(ctx context.Context, id string) (Invoice, error)

	Issue(ctx context.Context, id string) (Invoice, error)
	MarkPaid(ctx context.Context, id string) (Invoice, error)
	Cancel(ctx context.Context, id string, reason string) (Invoice, error)

	RenderPDF(ctx context.Context, id string) (RenderedPDF, error)
}

var (
	ErrInvalidInvoiceID        = errors.New("invalid_invoice_id")
	ErrInvalidLineID           = errors.New("invalid_line_id")
	ErrInvalidCompany          = errors.New("invalid_company")
	ErrInvalidBankAccount      = errors.New("invalid_bank_account")
	ErrInvalidWorker           = errors.New("invalid_worker")
	ErrInvalidJobDescription   = errors.New("invalid_job_description")
	ErrInvalidDate             = errors.New("invalid_date")
	ErrInvalidDueDate          = errors.New("invalid_due_date")
	ErrInvalidVATPercentage    = errors.New("invalid_vat_percentage")
	ErrInvalidStatus           = errors.New("invalid_status")
	ErrInvalidQuantity         = errors.New("invalid_quantity")
	ErrInvalidBaris            = errors.New("invalid_baris")
	ErrInvalidPrice            = errors.New("invalid_price")
	ErrInvalidDescription      = errors.New("invalid_description")
	ErrInvalidCancelReason     = errors.New("invalid_cancel_reason")
	ErrInvalidImportMode       = errors.New("invalid_import_mode")
	ErrMissingPrice            = errors.New("missing_price")
	ErrCompanyMismatch         = errors.New("company_mismatch")
	ErrAmbiguousReference      = errors.New("ambiguous_reference")
	ErrTooManyLines            = errors.New("too_many_lines")
	ErrInvoiceNotFound         = errors.New("invoice_not_found")
	ErrLineNotFound            = errors.New("invoice_line_not_found")
	ErrCompanyNotFound         = errors.New("company_not_found")
	ErrWorkerNotFound          = errors.New("worker_not_found")
	ErrJobDescriptionNotFound  = errors.New("job_description_not_found")
	ErrBankAccountNotFound     = errors.New("bank_account_not_found")
	ErrInvoiceNotDraft         = errors.New("invoice_not_draft")
	ErrInvalidStatusTransition = errors.New("invalid_status_transition")
	ErrInvoiceHasNoLines       = errors.New("invoice_has_no_lines")
	ErrInvoiceNotDeletable     = errors.New("invoice_not_deletable")
	ErrInvoiceNumberConflict   = errors.New("invoice_number_conflict")
)
