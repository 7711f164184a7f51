package service

import (
	"context"
	"fmt"
	"time"

	"github.com/smallbiznis/tka-invoice/internal/config"
	"github.com/smallbiznis/tka-invoice/internal/invoice/domain"
	"github.com/smallbiznis/tka-invoice/internal/observability/logger"
	obstracing "github.com/smallbiznis/tka-invoice/internal/observability/tracing"
	"github.com/smallbiznis/tka-invoice/internal/providers/pdf"
	"go.uber.org/zap"
)

// RenderPDF prints the stored aggregate. Totals are never recomputed here,
// so a document always shows what the invoice row holds.
func (s *Service) RenderPDF(ctx context.Context, rawID string) (_ domain.RenderedPDF, err error) {
	id, err := parseID(rawID, domain.ErrInvalidInvoiceID)
	if err != nil {
		return domain.RenderedPDF{}, err
	}
	ctx, span := obstracing.StartInvoiceSpan(ctx, "invoice.render_pdf", id.String())
	defer func() { obstracing.EndSpan(span, err) }()

	invoice, err := s.load(ctx, s.db, id)
	if err != nil {
		return domain.RenderedPDF{}, err
	}
	company, err := s.repo.FindCompany(ctx, s.db, invoice.CompanyID)
	if err != nil {
		return domain.RenderedPDF{}, err
	}
	if company == nil {
		return domain.RenderedPDF{}, domain.ErrCompanyNotFound
	}
	var bank *domain.BankAccountRef
	if invoice.BankAccountID != nil {
		if bank, err = s.repo.FindBankAccount(ctx, s.db, *invoice.BankAccountID); err != nil {
			return domain.RenderedPDF{}, err
		}
	}

	doc := s.buildDocument(invoice, company, bank)

	start := time.Now()
	content, err := s.pdf.GenerateInvoice(ctx, doc)
	s.metrics.ObservePDFRender(time.Since(start), err)
	if err != nil {
		logger.WithInvoice(s.log, invoice.ID.String(), invoice.Number).Error("render invoice pdf failed", zap.Error(err))
		return domain.RenderedPDF{}, fmt.Errorf("render invoice pdf: %w", err)
	}

	return domain.RenderedPDF{
		Filename: pdf.FileName(invoice.Number, company.Name),
		Content:  content,
	}, nil
}

func (s *Service) buildDocument(invoice domain.Invoice, company *domain.CompanyRef, bank *domain.BankAccountRef) pdf.InvoiceDocument {
	issuer := invoice.Issuer.Data()
	if issuer.Name == "" {
		issuer = issuerSnapshot(s.cfg.Get().Issuer)
	}

	doc := pdf.InvoiceDocument{
		Number:      invoice.Number,
		Status:      string(invoice.Status),
		InvoiceDate: invoice.InvoiceDate,
		DueDate:     invoice.DueDate,
		Notes:       invoice.Notes,
		Issuer: pdf.Party{
			Name:    issuer.Name,
			Address: issuer.Address,
			City:    issuer.City,
			Phone:   issuer.Phone,
			Email:   issuer.Email,
			NPWP:    issuer.NPWP,
		},
		SignatoryName:  issuer.SignatoryName,
		SignatoryTitle: issuer.SignatoryTitle,
		BillTo: pdf.Party{
			Name:    company.Name,
			Address: company.Address,
			Phone:   company.Phone,
			Email:   company.Email,
			NPWP:    company.NPWP,
		},
		Subtotal:      invoice.Subtotal,
		VATPercentage: invoice.VATPercentage,
		VATAmount:     invoice.VATAmount,
		Total:         invoice.TotalAmount,
	}
	if bank != nil {
		doc.Bank = &pdf.BankDetails{
			BankName:      bank.BankName,
			AccountNumber: bank.AccountNumber,
			AccountHolder: bank.AccountHolder,
			Branch:        bank.Branch,
		}
	}

	doc.Lines = make([]pdf.DocumentLine, 0, len(invoice.Lines))
	for _, line := range invoice.Lines {
		doc.Lines = append(doc.Lines, pdf.DocumentLine{
			Baris:       line.Baris,
			Description: line.Description,
			WorkerName:  line.WorkerName,
			JobTitle:    line.JobTitle,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			LineTotal:   line.LineTotal,
		})
	}
	return doc
}

func issuerSnapshot(cfg config.IssuerConfig) domain.IssuerSnapshot {
	return domain.IssuerSnapshot{
		Name:           cfg.Name,
		Address:        cfg.Address,
		City:           cfg.City,
		Phone:          cfg.Phone,
		Email:          cfg.Email,
		NPWP:           cfg.NPWP,
		SignatoryName:  cfg.SignatoryName,
		SignatoryTitle: cfg.SignatoryTitle,
	}
}
