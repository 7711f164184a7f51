package service

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tka-invoice/internal/invoice/domain"
	"github.com/smallbiznis/tka-invoice/internal/invoice/importer"
	"github.com/smallbiznis/tka-invoice/internal/invoice/totals"
	"github.com/smallbiznis/tka-invoice/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/tka-invoice/internal/observability/metrics"
	obstracing "github.com/smallbiznis/tka-invoice/internal/observability/tracing"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// lineMutation runs inside the invoice lock and reports how many lines it
// touched. The aggregate is recomputed afterwards in the same transaction.
type lineMutation func(tx *gorm.DB, invoice *domain.Invoice) (int, error)

func (s *Service) AddLine(ctx context.Context, req domain.AddLineRequest) (domain.Invoice, error) {
	return s.mutateLines(ctx, req.InvoiceID, "add_line", func(tx *gorm.DB, invoice *domain.Invoice) (int, error) {
		maxOrder, err := s.repo.MaxLineOrder(ctx, tx, invoice.ID)
		if err != nil {
			return 0, err
		}
		if maxOrder+1 > domain.MaxLinesPerInvoice {
			return 0, domain.ErrTooManyLines
		}
		lines, err := s.resolveLines(ctx, tx, invoice, []domain.LineInput{req.LineInput})
		if err != nil {
			return 0, err
		}
		assignOrder(lines, maxOrder+1)
		return len(lines), s.repo.InsertLines(ctx, tx, lines)
	})
}

// ReplaceLines drops every line and inserts the given ones in request order.
func (s *Service) ReplaceLines(ctx context.Context, req domain.ReplaceLinesRequest) (domain.Invoice, error) {
	if len(req.Lines) > domain.MaxLinesPerInvoice {
		return domain.Invoice{}, domain.ErrTooManyLines
	}
	return s.mutateLines(ctx, req.InvoiceID, "replace_lines", func(tx *gorm.DB, invoice *domain.Invoice) (int, error) {
		lines, err := s.resolveLines(ctx, tx, invoice, req.Lines)
		if err != nil {
			return 0, err
		}
		if err := s.repo.DeleteLines(ctx, tx, invoice.ID); err != nil {
			return 0, err
		}
		assignOrder(lines, 1)
		return len(lines), s.repo.InsertLines(ctx, tx, lines)
	})
}

func (s *Service) DeleteLine(ctx context.Context, invoiceID, rawLineID string) (domain.Invoice, error) {
	lineID, err := parseID(rawLineID, domain.ErrInvalidLineID)
	if err != nil {
		return domain.Invoice{}, err
	}
	return s.mutateLines(ctx, invoiceID, "delete_line", func(tx *gorm.DB, invoice *domain.Invoice) (int, error) {
		found, err := s.repo.DeleteLine(ctx, tx, invoice.ID, lineID)
		if err != nil {
			return 0, err
		}
		if !found {
			return 0, domain.ErrLineNotFound
		}
		return 1, s.renumber(ctx, tx, invoice.ID)
	})
}

// ImportLines parses an uploaded CSV or XLSX file and appends its rows or
// replaces the current lines with them.
func (s *Service) ImportLines(ctx context.Context, req domain.ImportLinesRequest) (domain.Invoice, error) {
	mode := domain.ImportMode(strings.ToLower(strings.TrimSpace(string(req.Mode))))
	if mode == "" {
		mode = domain.ImportModeAppend
	}
	if mode != domain.ImportModeAppend && mode != domain.ImportModeReplace {
		return domain.Invoice{}, domain.ErrInvalidImportMode
	}
	if req.Reader == nil {
		return domain.Invoice{}, importer.ErrEmptyFile
	}

	rows, err := importer.Parse(req.Filename, req.Reader)
	if err != nil {
		return domain.Invoice{}, err
	}

	invoice, err := s.mutateLines(ctx, req.InvoiceID, "import_lines", func(tx *gorm.DB, invoice *domain.Invoice) (int, error) {
		start := 1
		if mode == domain.ImportModeAppend {
			maxOrder, err := s.repo.MaxLineOrder(ctx, tx, invoice.ID)
			if err != nil {
				return 0, err
			}
			start = maxOrder + 1
		}
		if start-1+len(rows) > domain.MaxLinesPerInvoice {
			return 0, domain.ErrTooManyLines
		}

		lines := make([]domain.InvoiceLine, 0, len(rows))
		for _, row := range rows {
			input, err := s.importRowInput(ctx, tx, invoice.CompanyID, row)
			if err == nil {
				var resolved []domain.InvoiceLine
				resolved, err = s.resolveLines(ctx, tx, invoice, []domain.LineInput{input})
				if err == nil {
					lines = append(lines, resolved...)
				}
			}
			if err != nil {
				return 0, &importer.RowError{Row: row.Number, Err: err}
			}
		}

		if mode == domain.ImportModeReplace {
			if err := s.repo.DeleteLines(ctx, tx, invoice.ID); err != nil {
				return 0, err
			}
		}
		assignOrder(lines, start)
		return len(lines), s.repo.InsertLines(ctx, tx, lines)
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	s.telemetry.RecordImportedRows(ctx, strings.TrimPrefix(strings.ToLower(filepath.Ext(req.Filename)), "."), len(rows))
	return invoice, nil
}

// Recalculate rewrites the stored aggregate from the current lines.
func (s *Service) Recalculate(ctx context.Context, rawID string) (_ domain.Invoice, err error) {
	id, err := parseID(rawID, domain.ErrInvalidInvoiceID)
	if err != nil {
		return domain.Invoice{}, err
	}
	ctx, span := obstracing.StartInvoiceSpan(ctx, "invoice.recalculate", id.String())
	defer func() { obstracing.EndSpan(span, err) }()

	var (
		before domain.Invoice
		after  domain.Invoice
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.lockDraft(ctx, tx, id)
		if err != nil {
			return err
		}
		before = *invoice
		if _, err := s.recompute(ctx, tx, invoice); err != nil {
			return err
		}
		after = *invoice
		return nil
	})
	if err != nil {
		s.metrics.IncMutationError("recalculate", err)
		return domain.Invoice{}, err
	}

	s.metrics.IncRecalculation(obsmetrics.RecalculationManual)
	changed := !before.TotalAmount.Equal(after.TotalAmount) || !before.VATAmount.Equal(after.VATAmount)
	if changed {
		logger.WithInvoice(s.log, after.ID.String(), after.Number).Warn("stored totals differed from lines",
			zap.String("previous_total", before.TotalAmount.StringFixed(2)),
			zap.String("total", after.TotalAmount.StringFixed(2)),
		)
	}
	s.audit(ctx, "invoice.recalculate", &after, map[string]any{
		"previous_total": before.TotalAmount.StringFixed(2),
		"changed":        changed,
	})
	return s.load(ctx, s.db, id)
}

func (s *Service) mutateLines(ctx context.Context, rawID, operation string, mutate lineMutation) (_ domain.Invoice, err error) {
	id, err := parseID(rawID, domain.ErrInvalidInvoiceID)
	if err != nil {
		return domain.Invoice{}, err
	}
	ctx, span := obstracing.StartInvoiceSpan(ctx, "invoice."+operation, id.String())
	defer func() { obstracing.EndSpan(span, err) }()

	var (
		touched int
		updated domain.Invoice
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.lockDraft(ctx, tx, id)
		if err != nil {
			return err
		}
		if touched, err = mutate(tx, invoice); err != nil {
			return err
		}
		if _, err := s.recompute(ctx, tx, invoice); err != nil {
			return err
		}
		updated = *invoice
		return nil
	})
	if err != nil {
		s.metrics.IncMutationError(operation, err)
		return domain.Invoice{}, err
	}

	s.metrics.AddLineMutations(operation, touched)
	s.metrics.IncRecalculation(obsmetrics.RecalculationLineMutation)
	logger.WithInvoice(s.log, updated.ID.String(), updated.Number).Debug("invoice lines changed",
		zap.String("operation", operation),
		zap.Int("lines", touched),
	)
	s.audit(ctx, "invoice."+operation, &updated, map[string]any{"line_count": touched})
	return s.load(ctx, s.db, id)
}

// renumber closes gaps in line_order. Walking upwards only ever moves a line
// into a slot that is already free.
func (s *Service) renumber(ctx context.Context, tx *gorm.DB, invoiceID snowflake.ID) error {
	lines, err := s.repo.ListLines(ctx, tx, invoiceID)
	if err != nil {
		return err
	}
	now := s.clock.Now()
	for i, line := range lines {
		if line.LineOrder == i+1 {
			continue
		}
		if err := s.repo.UpdateLineOrder(ctx, tx, line.ID, i+1, now); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) resolveLines(ctx context.Context, tx *gorm.DB, invoice *domain.Invoice, inputs []domain.LineInput) ([]domain.InvoiceLine, error) {
	lines := make([]domain.InvoiceLine, 0, len(inputs))
	now := s.clock.Now()
	for _, in := range inputs {
		line, err := s.resolveLine(ctx, tx, invoice, in)
		if err != nil {
			return nil, err
		}
		line.CreatedAt = now
		line.UpdatedAt = now
		lines = append(lines, line)
	}
	return lines, nil
}

// resolveLine validates one input and fixes its unit price: the custom price
// when given, otherwise the job description price. A line without a job
// description falls back to the worker's.
func (s *Service) resolveLine(ctx context.Context, tx *gorm.DB, invoice *domain.Invoice, in domain.LineInput) (domain.InvoiceLine, error) {
	if in.Quantity < 1 || in.Quantity > domain.MaxLineQuantity {
		return domain.InvoiceLine{}, domain.ErrInvalidQuantity
	}
	line := domain.InvoiceLine{
		ID:        s.genID.Generate(),
		InvoiceID: invoice.ID,
		Quantity:  in.Quantity,
	}
	if in.Baris != nil {
		if *in.Baris < 1 {
			return domain.InvoiceLine{}, domain.ErrInvalidBaris
		}
		line.Baris = *in.Baris
	}

	var worker *domain.WorkerRef
	if strings.TrimSpace(in.WorkerID) != "" {
		workerID, err := parseID(in.WorkerID, domain.ErrInvalidWorker)
		if err != nil {
			return domain.InvoiceLine{}, err
		}
		if worker, err = s.repo.FindWorker(ctx, tx, workerID); err != nil {
			return domain.InvoiceLine{}, err
		}
		if worker == nil {
			return domain.InvoiceLine{}, domain.ErrWorkerNotFound
		}
		if worker.CompanyID != invoice.CompanyID {
			return domain.InvoiceLine{}, domain.ErrCompanyMismatch
		}
		line.WorkerID = &worker.ID
		line.WorkerName = worker.Name
	}

	var jobID *snowflake.ID
	if strings.TrimSpace(in.JobDescriptionID) != "" {
		id, err := parseID(in.JobDescriptionID, domain.ErrInvalidJobDescription)
		if err != nil {
			return domain.InvoiceLine{}, err
		}
		jobID = &id
	} else if worker != nil && worker.JobDescriptionID != nil {
		jobID = worker.JobDescriptionID
	}

	var job *domain.JobDescriptionRef
	if jobID != nil {
		var err error
		if job, err = s.repo.FindJobDescription(ctx, tx, *jobID); err != nil {
			return domain.InvoiceLine{}, err
		}
		if job == nil {
			return domain.InvoiceLine{}, domain.ErrJobDescriptionNotFound
		}
		if job.CompanyID != invoice.CompanyID {
			return domain.InvoiceLine{}, domain.ErrCompanyMismatch
		}
		line.JobDescriptionID = &job.ID
		line.JobTitle = job.Title
	}

	switch {
	case in.CustomPrice != nil:
		price := *in.CustomPrice
		if price.IsNegative() || !price.Equal(price.Round(2)) {
			return domain.InvoiceLine{}, domain.ErrInvalidPrice
		}
		line.UnitPrice = price
		line.CustomPrice.Decimal = price
		line.CustomPrice.Valid = true
	case job != nil:
		line.UnitPrice = job.Price
	default:
		return domain.InvoiceLine{}, domain.ErrMissingPrice
	}
	line.LineTotal = totals.LineTotal(totals.Line{UnitPrice: line.UnitPrice, Quantity: line.Quantity})

	line.Description = strings.TrimSpace(in.Description)
	if line.Description == "" {
		line.Description = composeDescription(line.WorkerName, line.JobTitle)
	}
	if line.Description == "" {
		return domain.InvoiceLine{}, domain.ErrInvalidDescription
	}
	return line, nil
}

// importRowInput turns worker and job description cells, given as an ID or
// a name within the invoice company, into a LineInput.
func (s *Service) importRowInput(ctx context.Context, tx *gorm.DB, companyID snowflake.ID, row importer.Row) (domain.LineInput, error) {
	input := domain.LineInput{
		Description: row.Description,
		Quantity:    row.Quantity,
		CustomPrice: row.CustomPrice,
	}
	if row.Baris > 0 {
		baris := row.Baris
		input.Baris = &baris
	}

	if ref := strings.TrimSpace(row.Worker); ref != "" {
		if id, ok := lookupID(ref); ok {
			input.WorkerID = id.String()
		} else {
			workers, err := s.repo.FindWorkersByName(ctx, tx, companyID, ref)
			if err != nil {
				return domain.LineInput{}, err
			}
			idx, err := singleRef(len(workers), domain.ErrWorkerNotFound)
			if err != nil {
				return domain.LineInput{}, err
			}
			input.WorkerID = workers[idx].ID.String()
		}
	}

	if ref := strings.TrimSpace(row.JobDescription); ref != "" {
		if id, ok := lookupID(ref); ok {
			input.JobDescriptionID = id.String()
		} else {
			jobs, err := s.repo.FindJobDescriptionsByTitle(ctx, tx, companyID, ref)
			if err != nil {
				return domain.LineInput{}, err
			}
			idx, err := singleRef(len(jobs), domain.ErrJobDescriptionNotFound)
			if err != nil {
				return domain.LineInput{}, err
			}
			input.JobDescriptionID = jobs[idx].ID.String()
		}
	}
	return input, nil
}

func singleRef(matches int, notFound error) (int, error) {
	switch {
	case matches == 0:
		return 0, notFound
	case matches > 1:
		return 0, domain.ErrAmbiguousReference
	default:
		return 0, nil
	}
}

// lookupID treats long all-digit cells as snowflake IDs.
func lookupID(ref string) (snowflake.ID, bool) {
	if len(ref) < 15 {
		return 0, false
	}
	id, err := snowflake.ParseString(ref)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// assignOrder numbers lines from start. Lines without a baris take their
// line order as display row.
func assignOrder(lines []domain.InvoiceLine, start int) {
	for i := range lines {
		lines[i].LineOrder = start + i
		if lines[i].Baris == 0 {
			lines[i].Baris = lines[i].LineOrder
		}
	}
}

func composeDescription(workerName, jobTitle string) string {
	workerName = strings.TrimSpace(workerName)
	jobTitle = strings.TrimSpace(jobTitle)
	switch {
	case workerName != "" && jobTitle != "":
		return workerName + " - " + jobTitle
	case workerName != "":
		return workerName
	default:
		return jobTitle
	}
}
