package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tka-invoice/internal/invoice/domain"
	"github.com/smallbiznis/tka-invoice/pkg/db/option"
	"github.com/smallbiznis/tka-invoice/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const invoiceColumns = `i.id, i.number, i.sequence, i.issue_year, i.company_id, i.bank_account_id, i.status,
	i.invoice_date, i.due_date, i.notes, i.subtotal, i.vat_percentage, i.vat_amount, i.total_amount,
	i.issued_at, i.paid_at, i.cancelled_at, i.cancel_reason, i.issuer, i.created_at, i.updated_at`

// invoiceView exposes the company name next to the invoice columns so the
// shared keyset options can use unqualified column names.
const invoiceView = `(SELECT ` + invoiceColumns + `, c.name AS company_name
	FROM invoices i JOIN companies c ON c.id = i.company_id) AS invoices`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO invoices (
			id, number, sequence, issue_year, company_id, bank_account_id, status,
			invoice_date, due_date, notes, subtotal, vat_percentage, vat_amount, total_amount,
			cancel_reason, issuer, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		invoice.ID,
		invoice.Number,
		invoice.Sequence,
		invoice.IssueYear,
		invoice.CompanyID,
		invoice.BankAccountID,
		invoice.Status,
		invoice.InvoiceDate,
		invoice.DueDate,
		invoice.Notes,
		invoice.Subtotal,
		invoice.VATPercentage,
		invoice.VATAmount,
		invoice.TotalAmount,
		invoice.CancelReason,
		invoice.Issuer,
		invoice.CreatedAt,
		invoice.UpdatedAt,
	).Error
}

func (r *repo) UpdateHeader(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET bank_account_id = ?, invoice_date = ?, due_date = ?, notes = ?, vat_percentage = ?, updated_at = ?
		 WHERE id = ?`,
		invoice.BankAccountID,
		invoice.InvoiceDate,
		invoice.DueDate,
		invoice.Notes,
		invoice.VATPercentage,
		invoice.UpdatedAt,
		invoice.ID,
	).Error
}

func (r *repo) UpdateTotals(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET subtotal = ?, vat_amount = ?, total_amount = ?, updated_at = ?
		 WHERE id = ?`,
		invoice.Subtotal,
		invoice.VATAmount,
		invoice.TotalAmount,
		invoice.UpdatedAt,
		invoice.ID,
	).Error
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET status = ?, issued_at = ?, paid_at = ?, cancelled_at = ?, cancel_reason = ?, updated_at = ?
		 WHERE id = ?`,
		invoice.Status,
		invoice.IssuedAt,
		invoice.PaidAt,
		invoice.CancelledAt,
		invoice.CancelReason,
		invoice.UpdatedAt,
		invoice.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	if err := db.WithContext(ctx).Exec(`DELETE FROM invoice_lines WHERE invoice_id = ?`, id).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).Exec(`DELETE FROM invoices WHERE id = ?`, id).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := db.WithContext(ctx).Raw(
		`SELECT `+invoiceColumns+`, c.name AS company_name
		 FROM invoices i
		 JOIN companies c ON c.id = i.company_id
		 WHERE i.id = ?`,
		id,
	).Scan(&invoice).Error
	if err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListInvoiceFilter, page pagination.Pagination) ([]*domain.Invoice, error) {
	var invoices []*domain.Invoice
	stmt := db.WithContext(ctx).Table(invoiceView)
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.CompanyID != 0 {
		stmt = stmt.Where("company_id = ?", filter.CompanyID)
	}
	if filter.DateFrom != nil {
		stmt = stmt.Where("invoice_date >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		stmt = stmt.Where("invoice_date <= ?", *filter.DateTo)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		stmt = option.Contains(search, "number", "company_name").Apply(stmt)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

// NextSequence increments the per-year counter under a row lock. The
// counter row is created on first use.
func (r *repo) NextSequence(ctx context.Context, db *gorm.DB, year int, now time.Time) (int64, error) {
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.InvoiceSequence{Year: year, LastValue: 0, UpdatedAt: now}).Error
	if err != nil {
		return 0, err
	}

	var seq domain.InvoiceSequence
	err = db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("year = ?", year).
		Take(&seq).Error
	if err != nil {
		return 0, err
	}

	next := seq.LastValue + 1
	err = db.WithContext(ctx).Exec(
		`UPDATE invoice_sequences SET last_value = ?, updated_at = ? WHERE year = ?`,
		next, now, year,
	).Error
	if err != nil {
		return 0, err
	}
	return next, nil
}

func (r *repo) ListLines(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]domain.InvoiceLine, error) {
	var lines []domain.InvoiceLine
	err := db.WithContext(ctx).Raw(
		`SELECT l.id, l.invoice_id, l.line_order, l.baris, l.worker_id, l.job_description_id,
		        l.description, l.unit_price, l.custom_price, l.quantity, l.line_total,
		        l.created_at, l.updated_at,
		        COALESCE(w.name, '') AS worker_name,
		        COALESCE(j.title, '') AS job_title
		 FROM invoice_lines l
		 LEFT JOIN workers w ON w.id = l.worker_id
		 LEFT JOIN job_descriptions j ON j.id = l.job_description_id
		 WHERE l.invoice_id = ?
		 ORDER BY l.line_order ASC`,
		invoiceID,
	).Scan(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *repo) InsertLines(ctx context.Context, db *gorm.DB, lines []domain.InvoiceLine) error {
	for _, line := range lines {
		err := db.WithContext(ctx).Exec(
			`INSERT INTO invoice_lines (
				id, invoice_id, line_order, baris, worker_id, job_description_id, description,
				unit_price, custom_price, quantity, line_total, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			line.ID,
			line.InvoiceID,
			line.LineOrder,
			line.Baris,
			line.WorkerID,
			line.JobDescriptionID,
			line.Description,
			line.UnitPrice,
			line.CustomPrice,
			line.Quantity,
			line.LineTotal,
			line.CreatedAt,
			line.UpdatedAt,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) DeleteLine(ctx context.Context, db *gorm.DB, invoiceID, lineID snowflake.ID) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`DELETE FROM invoice_lines WHERE invoice_id = ? AND id = ?`,
		invoiceID, lineID,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) DeleteLines(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM invoice_lines WHERE invoice_id = ?`, invoiceID).Error
}

func (r *repo) UpdateLineOrder(ctx context.Context, db *gorm.DB, lineID snowflake.ID, order int, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE invoice_lines SET line_order = ?, updated_at = ? WHERE id = ?`,
		order, now, lineID,
	).Error
}

func (r *repo) MaxLineOrder(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (int, error) {
	var maxOrder int
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(line_order), 0) FROM invoice_lines WHERE invoice_id = ?`,
		invoiceID,
	).Scan(&maxOrder).Error
	if err != nil {
		return 0, err
	}
	return maxOrder, nil
}

func (r *repo) FindCompany(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.CompanyRef, error) {
	var company domain.CompanyRef
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, address, npwp, phone, email FROM companies WHERE id = ?`,
		id,
	).Scan(&company).Error
	if err != nil {
		return nil, err
	}
	if company.ID == 0 {
		return nil, nil
	}
	return &company, nil
}

func (r *repo) FindWorker(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.WorkerRef, error) {
	var worker domain.WorkerRef
	err := db.WithContext(ctx).Raw(
		`SELECT id, company_id, job_description_id, name FROM workers WHERE id = ?`,
		id,
	).Scan(&worker).Error
	if err != nil {
		return nil, err
	}
	if worker.ID == 0 {
		return nil, nil
	}
	return &worker, nil
}

// FindWorkersByName returns at most two matches, enough to tell a unique
// name from an ambiguous one.
func (r *repo) FindWorkersByName(ctx context.Context, db *gorm.DB, companyID snowflake.ID, name string) ([]domain.WorkerRef, error) {
	var workers []domain.WorkerRef
	err := db.WithContext(ctx).Raw(
		`SELECT id, company_id, job_description_id, name
		 FROM workers
		 WHERE company_id = ? AND LOWER(name) = LOWER(?)
		 ORDER BY id ASC
		 LIMIT 2`,
		companyID, strings.TrimSpace(name),
	).Scan(&workers).Error
	if err != nil {
		return nil, err
	}
	return workers, nil
}

func (r *repo) FindJobDescription(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.JobDescriptionRef, error) {
	var job domain.JobDescriptionRef
	err := db.WithContext(ctx).Raw(
		`SELECT id, company_id, title, price FROM job_descriptions WHERE id = ?`,
		id,
	).Scan(&job).Error
	if err != nil {
		return nil, err
	}
	if job.ID == 0 {
		return nil, nil
	}
	return &job, nil
}

func (r *repo) FindJobDescriptionsByTitle(ctx context.Context, db *gorm.DB, companyID snowflake.ID, title string) ([]domain.JobDescriptionRef, error) {
	var jobs []domain.JobDescriptionRef
	err := db.WithContext(ctx).Raw(
		`SELECT id, company_id, title, price
		 FROM job_descriptions
		 WHERE company_id = ? AND LOWER(title) = LOWER(?)
		 ORDER BY id ASC
		 LIMIT 2`,
		companyID, strings.TrimSpace(title),
	).Scan(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *repo) FindBankAccount(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.BankAccountRef, error) {
	var account domain.BankAccountRef
	err := db.WithContext(ctx).Raw(
		`SELECT id, bank_name, account_number, account_holder, branch FROM bank_accounts WHERE id = ?`,
		id,
	).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, nil
	}
	return &account, nil
}

func (r *repo) FindDefaultBankAccount(ctx context.Context, db *gorm.DB) (*domain.BankAccountRef, error) {
	var account domain.BankAccountRef
	err := db.WithContext(ctx).Raw(
		`SELECT id, bank_name, account_number, account_holder, branch
		 FROM bank_accounts
		 WHERE is_default = ?
		 ORDER BY id ASC
		 LIMIT 1`,
		true,
	).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, nil
	}
	return &account, nil
}
