package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tka-invoice/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListInvoiceFilter struct {
	Status    InvoiceStatus
	CompanyID snowflake.ID
	Search    string
	DateFrom  *time.Time
	DateTo    *time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	UpdateHeader(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	UpdateTotals(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	UpdateStatus(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	// FindByIDForUpdate row-locks the invoice for the rest of the transaction.
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	List(ctx context.Context, db *gorm.DB, filter ListInvoiceFilter, page pagination.Pagination) ([]*Invoice, error)
	NextSequence(ctx context.Context, db *gorm.DB, year int, now time.Time) (int64, error)

	ListLines(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]InvoiceLine, error)
	InsertLines(ctx context.Context, db *gorm.DB, lines []InvoiceLine) error
	DeleteLine(ctx context.Context, db *gorm.DB, invoiceID, lineID snowflake.ID) (bool, error)
	DeleteLines(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) error
	UpdateLineOrder(ctx context.Context, db *gorm.DB, lineID snowflake.ID, order int, now time.Time) error
	MaxLineOrder(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (int, error)

	FindCompany(ctx context.Context, db *gorm.DB, id snowflake.ID) (*CompanyRef, error)
	FindWorker(ctx context.Context, db *gorm.DB, id snowflake.ID) (*WorkerRef, error)
	FindWorkersByName(ctx context.Context, db *gorm.DB, companyID snowflake.ID, name string) ([]WorkerRef, error)
	FindJobDescription(ctx context.Context, db *gorm.DB, id snowflake.ID) (*JobDescriptionRef, error)
	FindJobDescriptionsByTitle(ctx context.Context, db *gorm.DB, companyID snowflake.ID, title string) ([]JobDescriptionRef, error)
	FindBankAccount(ctx context.Context, db *gorm.DB, id snowflake.ID) (*BankAccountRef, error)
	FindDefaultBankAccount(ctx context.Context, db *gorm.DB) (*BankAccountRef, error)
}
