package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/tka-invoice/internal/audit/domain"
	"github.com/smallbiznis/tka-invoice/internal/clock"
	"github.com/smallbiznis/tka-invoice/internal/config"
	"github.com/smallbiznis/tka-invoice/internal/invoice/domain"
	"github.com/smallbiznis/tka-invoice/internal/invoice/format"
	"github.com/smallbiznis/tka-invoice/internal/invoice/totals"
	"github.com/smallbiznis/tka-invoice/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/tka-invoice/internal/observability/metrics"
	"github.com/smallbiznis/tka-invoice/internal/providers/pdf"
	"github.com/smallbiznis/tka-invoice/pkg/db"
	"github.com/smallbiznis/tka-invoice/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

var hundred = decimal.NewFromInt(100)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      domain.Repository
	Config    *config.InvoiceConfigHolder
	PDF       pdf.Provider
	AuditSvc  auditdomain.Service        `optional:"true"`
	Metrics   *obsmetrics.InvoiceMetrics `optional:"true"`
	Telemetry *obsmetrics.Metrics        `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
	cfg   *config.InvoiceConfigHolder
	pdf   pdf.Provider

	auditSvc  auditdomain.Service
	metrics   *obsmetrics.InvoiceMetrics
	telemetry *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("invoice.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		cfg:       p.Config,
		pdf:       p.PDF,
		auditSvc:  p.AuditSvc,
		metrics:   p.Metrics,
		telemetry: p.Telemetry,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateInvoiceRequest) (domain.Invoice, error) {
	companyID, err := parseID(req.CompanyID, domain.ErrInvalidCompany)
	if err != nil {
		return domain.Invoice{}, err
	}

	cfg := s.cfg.Get()
	now := s.clock.Now()

	invoiceDate := startOfDay(now)
	if strings.TrimSpace(req.InvoiceDate) != "" {
		if invoiceDate, err = parseDate(req.InvoiceDate); err != nil {
			return domain.Invoice{}, err
		}
	}

	var dueDate *time.Time
	switch {
	case strings.TrimSpace(req.DueDate) != "":
		d, err := parseDate(req.DueDate)
		if err != nil {
			return domain.Invoice{}, err
		}
		dueDate = &d
	case cfg.DueDays > 0:
		d := invoiceDate.AddDate(0, 0, cfg.DueDays)
		dueDate = &d
	}
	if err := validateDueDate(invoiceDate, dueDate); err != nil {
		return domain.Invoice{}, err
	}

	vat := cfg.VAT()
	if req.VATPercentage != nil {
		vat = *req.VATPercentage
	}
	if err := validateVATPercentage(vat); err != nil {
		return domain.Invoice{}, err
	}

	if len(req.Lines) > domain.MaxLinesPerInvoice {
		return domain.Invoice{}, domain.ErrTooManyLines
	}

	var bankAccountID *snowflake.ID
	if strings.TrimSpace(req.BankAccountID) != "" {
		id, err := parseID(req.BankAccountID, domain.ErrInvalidBankAccount)
		if err != nil {
			return domain.Invoice{}, err
		}
		bankAccountID = &id
	}

	var created domain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		company, err := s.repo.FindCompany(ctx, tx, companyID)
		if err != nil {
			return err
		}
		if company == nil {
			return domain.ErrCompanyNotFound
		}

		if bankAccountID != nil {
			account, err := s.repo.FindBankAccount(ctx, tx, *bankAccountID)
			if err != nil {
				return err
			}
			if account == nil {
				return domain.ErrBankAccountNotFound
			}
		} else {
			account, err := s.repo.FindDefaultBankAccount(ctx, tx)
			if err != nil {
				return err
			}
			if account != nil {
				bankAccountID = &account.ID
			}
		}

		seq, err := s.repo.NextSequence(ctx, tx, invoiceDate.Year(), now)
		if err != nil {
			return err
		}
		number, err := format.FormatInvoiceNumber(cfg.NumberTemplate, invoiceDate, seq)
		if err != nil {
			return err
		}

		invoice := domain.Invoice{
			ID:            s.genID.Generate(),
			Number:        number,
			Sequence:      seq,
			IssueYear:     invoiceDate.Year(),
			CompanyID:     companyID,
			BankAccountID: bankAccountID,
			Status:        domain.InvoiceStatusDraft,
			InvoiceDate:   invoiceDate,
			DueDate:       dueDate,
			Notes:         strings.TrimSpace(req.Notes),
			Subtotal:      decimal.Zero,
			VATPercentage: vat,
			VATAmount:     decimal.Zero,
			TotalAmount:   decimal.Zero,
			Issuer:        datatypes.NewJSONType(issuerSnapshot(cfg.Issuer)),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.repo.Insert(ctx, tx, &invoice); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrInvoiceNumberConflict
			}
			return err
		}

		if len(req.Lines) > 0 {
			lines, err := s.resolveLines(ctx, tx, &invoice, req.Lines)
			if err != nil {
				return err
			}
			assignOrder(lines, 1)
			if err := s.repo.InsertLines(ctx, tx, lines); err != nil {
				return err
			}
		}
		if _, err := s.recompute(ctx, tx, &invoice); err != nil {
			return err
		}
		created = invoice
		return nil
	})
	if err != nil {
		s.metrics.IncMutationError("create", err)
		return domain.Invoice{}, err
	}

	s.metrics.AddLineMutations("create", len(req.Lines))
	logger.WithInvoice(s.log, created.ID.String(), created.Number).Info("invoice created",
		zap.Int("lines", len(req.Lines)),
		zap.String("total_amount", created.TotalAmount.StringFixed(2)),
	)
	s.audit(ctx, "invoice.create", &created, map[string]any{"line_count": len(req.Lines)})
	return s.load(ctx, s.db, created.ID)
}

func (s *Service) Update(ctx context.Context, req domain.UpdateInvoiceRequest) (domain.Invoice, error) {
	id, err := parseID(req.ID, domain.ErrInvalidInvoiceID)
	if err != nil {
		return domain.Invoice{}, err
	}
	if req.VATPercentage != nil {
		if err := validateVATPercentage(*req.VATPercentage); err != nil {
			return domain.Invoice{}, err
		}
	}

	var (
		updated    domain.Invoice
		vatChanged bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.lockDraft(ctx, tx, id)
		if err != nil {
			return err
		}

		if req.BankAccountID != nil {
			raw := strings.TrimSpace(*req.BankAccountID)
			if raw == "" {
				invoice.BankAccountID = nil
			} else {
				accountID, err := parseID(raw, domain.ErrInvalidBankAccount)
				if err != nil {
					return err
				}
				account, err := s.repo.FindBankAccount(ctx, tx, accountID)
				if err != nil {
					return err
				}
				if account == nil {
					return domain.ErrBankAccountNotFound
				}
				invoice.BankAccountID = &accountID
			}
		}
		if req.InvoiceDate != nil {
			date, err := parseDate(*req.InvoiceDate)
			if err != nil {
				return err
			}
			invoice.InvoiceDate = date
		}
		if req.DueDate != nil {
			if strings.TrimSpace(*req.DueDate) == "" {
				invoice.DueDate = nil
			} else {
				due, err := parseDate(*req.DueDate)
				if err != nil {
					return err
				}
				invoice.DueDate = &due
			}
		}
		if err := validateDueDate(invoice.InvoiceDate, invoice.DueDate); err != nil {
			return err
		}
		if req.Notes != nil {
			invoice.Notes = strings.TrimSpace(*req.Notes)
		}
		if req.VATPercentage != nil && !req.VATPercentage.Equal(invoice.VATPercentage) {
			invoice.VATPercentage = *req.VATPercentage
			vatChanged = true
		}

		invoice.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateHeader(ctx, tx, invoice); err != nil {
			return err
		}
		if vatChanged {
			if _, err := s.recompute(ctx, tx, invoice); err != nil {
				return err
			}
		}
		updated = *invoice
		return nil
	})
	if err != nil {
		s.metrics.IncMutationError("update", err)
		return domain.Invoice{}, err
	}

	if vatChanged {
		s.metrics.IncRecalculation(obsmetrics.RecalculationHeaderUpdate)
	}
	s.audit(ctx, "invoice.update", &updated, map[string]any{"vat_changed": vatChanged})
	return s.load(ctx, s.db, id)
}

// Delete removes DRAFT and CANCELLED invoices together with their lines.
func (s *Service) Delete(ctx context.Context, rawID string) error {
	id, err := parseID(rawID, domain.ErrInvalidInvoiceID)
	if err != nil {
		return err
	}

	var deleted domain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.lockInvoice(ctx, tx, id)
		if err != nil {
			return err
		}
		if invoice.Status != domain.InvoiceStatusDraft && invoice.Status != domain.InvoiceStatusCancelled {
			return domain.ErrInvoiceNotDeletable
		}
		if err := s.repo.Delete(ctx, tx, id); err != nil {
			return err
		}
		deleted = *invoice
		return nil
	})
	if err != nil {
		s.metrics.IncMutationError("delete", err)
		return err
	}

	s.audit(ctx, "invoice.delete", &deleted, nil)
	return nil
}

func (s *Service) GetByID(ctx context.Context, rawID string) (domain.Invoice, error) {
	id, err := parseID(rawID, domain.ErrInvalidInvoiceID)
	if err != nil {
		return domain.Invoice{}, err
	}
	return s.load(ctx, s.db, id)
}

func (s *Service) List(ctx context.Context, req domain.ListInvoiceRequest) (domain.ListInvoiceResponse, error) {
	filter := domain.ListInvoiceFilter{Search: strings.TrimSpace(req.Search)}

	if raw := strings.TrimSpace(req.Status); raw != "" {
		status := domain.InvoiceStatus(strings.ToUpper(raw))
		if !status.Valid() {
			return domain.ListInvoiceResponse{}, domain.ErrInvalidStatus
		}
		filter.Status = status
	}
	if strings.TrimSpace(req.CompanyID) != "" {
		companyID, err := parseID(req.CompanyID, domain.ErrInvalidCompany)
		if err != nil {
			return domain.ListInvoiceResponse{}, err
		}
		filter.CompanyID = companyID
	}
	if strings.TrimSpace(req.DateFrom) != "" {
		from, err := parseDate(req.DateFrom)
		if err != nil {
			return domain.ListInvoiceResponse{}, err
		}
		filter.DateFrom = &from
	}
	if strings.TrimSpace(req.DateTo) != "" {
		to, err := parseDate(req.DateTo)
		if err != nil {
			return domain.ListInvoiceResponse{}, err
		}
		filter.DateTo = &to
	}
	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateTo.Before(*filter.DateFrom) {
		return domain.ListInvoiceResponse{}, domain.ErrInvalidDate
	}

	items, err := s.repo.List(ctx, s.db, filter, req.Pagination)
	if err != nil {
		return domain.ListInvoiceResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, req.Pagination.Size(), func(invoice *domain.Invoice) string {
		return pagination.TokenFor(invoice.ID.Int64(), invoice.CreatedAt)
	})

	invoices := make([]domain.Invoice, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		invoices = append(invoices, *item)
	}
	return domain.ListInvoiceResponse{PageInfo: pageInfo, Invoices: invoices}, nil
}

// recompute writes the aggregate of the invoice's current lines. It must run
// inside the transaction that changed the lines.
func (s *Service) recompute(ctx context.Context, tx *gorm.DB, invoice *domain.Invoice) ([]domain.InvoiceLine, error) {
	lines, err := s.repo.ListLines(ctx, tx, invoice.ID)
	if err != nil {
		return nil, err
	}

	inputs := make([]totals.Line, 0, len(lines))
	for _, line := range lines {
		inputs = append(inputs, totals.Line{UnitPrice: line.UnitPrice, Quantity: line.Quantity})
	}
	result, err := totals.Compute(inputs, invoice.VATPercentage)
	if err != nil {
		return nil, fmt.Errorf("compute invoice totals: %w", err)
	}

	invoice.Subtotal = result.Subtotal
	invoice.VATAmount = result.VATAmount
	invoice.TotalAmount = result.Total
	invoice.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateTotals(ctx, tx, invoice); err != nil {
		return nil, err
	}
	return lines, nil
}

func (s *Service) load(ctx context.Context, conn *gorm.DB, id snowflake.ID) (domain.Invoice, error) {
	invoice, err := s.repo.FindByID(ctx, conn, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	if invoice == nil {
		return domain.Invoice{}, domain.ErrInvoiceNotFound
	}
	lines, err := s.repo.ListLines(ctx, conn, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	invoice.Lines = lines
	return *invoice, nil
}

func (s *Service) lockInvoice(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	start := time.Now()
	invoice, err := s.repo.FindByIDForUpdate(ctx, tx, id)
	s.metrics.ObserveLockWait(time.Since(start))
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, domain.ErrInvoiceNotFound
	}
	return invoice, nil
}

func (s *Service) lockDraft(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	invoice, err := s.lockInvoice(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if invoice.Status != domain.InvoiceStatusDraft {
		return nil, domain.ErrInvoiceNotDraft
	}
	return invoice, nil
}

func (s *Service) audit(ctx context.Context, action string, invoice *domain.Invoice, extra map[string]any) {
	if s.auditSvc == nil || invoice == nil {
		return
	}
	metadata := map[string]any{
		"invoice_number": invoice.Number,
		"status":         string(invoice.Status),
		"company_id":     invoice.CompanyID.String(),
		"subtotal":       invoice.Subtotal.StringFixed(2),
		"vat_percentage": invoice.VATPercentage.String(),
		"vat_amount":     invoice.VATAmount.StringFixed(2),
		"total_amount":   invoice.TotalAmount.StringFixed(2),
	}
	for key, value := range extra {
		if key == "" {
			continue
		}
		metadata[key] = value
	}

	targetID := invoice.ID.String()
	_ = s.auditSvc.AuditLog(ctx, action, "invoice", &targetID, metadata)
}

func parseID(value string, invalid error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id <= 0 {
		return 0, invalid
	}
	return id, nil
}

// parseDate accepts "2006-01-02" or RFC 3339 and keeps the calendar date.
func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(dateLayout, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, domain.ErrInvalidDate
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func validateDueDate(invoiceDate time.Time, dueDate *time.Time) error {
	if dueDate != nil && dueDate.Before(invoiceDate) {
		return domain.ErrInvalidDueDate
	}
	return nil
}

func validateVATPercentage(vat decimal.Decimal) error {
	if vat.IsNegative() || vat.GreaterThan(hundred) || !vat.Equal(vat.Round(2)) {
		return domain.ErrInvalidVATPercentage
	}
	return nil
}
