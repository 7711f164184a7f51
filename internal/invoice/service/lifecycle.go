package service

import (
	"context"
	"strings"

	"github.com/smallbiznis/tka-invoice/internal/invoice/domain"
	"github.com/smallbiznis/tka-invoice/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/tka-invoice/internal/observability/metrics"
	obstracing "github.com/smallbiznis/tka-invoice/internal/observability/tracing"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Issue freezes a draft. The aggregate is recomputed one last time so the
// issued amounts always match the lines.
func (s *Service) Issue(ctx context.Context, rawID string) (domain.Invoice, error) {
	return s.transition(ctx, rawID, "issue", func(tx *gorm.DB, invoice *domain.Invoice) error {
		if invoice.Status != domain.InvoiceStatusDraft {
			return domain.ErrInvalidStatusTransition
		}
		lines, err := s.recompute(ctx, tx, invoice)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return domain.ErrInvoiceHasNoLines
		}
		s.metrics.IncRecalculation(obsmetrics.RecalculationIssue)

		now := s.clock.Now()
		invoice.Status = domain.InvoiceStatusIssued
		invoice.IssuedAt = &now
		return nil
	})
}

func (s *Service) MarkPaid(ctx context.Context, rawID string) (domain.Invoice, error) {
	return s.transition(ctx, rawID, "pay", func(tx *gorm.DB, invoice *domain.Invoice) error {
		if invoice.Status != domain.InvoiceStatusIssued {
			return domain.ErrInvalidStatusTransition
		}
		now := s.clock.Now()
		invoice.Status = domain.InvoiceStatusPaid
		invoice.PaidAt = &now
		return nil
	})
}

func (s *Service) Cancel(ctx context.Context, rawID string, reason string) (domain.Invoice, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.Invoice{}, domain.ErrInvalidCancelReason
	}
	return s.transition(ctx, rawID, "cancel", func(tx *gorm.DB, invoice *domain.Invoice) error {
		if invoice.Status != domain.InvoiceStatusDraft && invoice.Status != domain.InvoiceStatusIssued {
			return domain.ErrInvalidStatusTransition
		}
		now := s.clock.Now()
		invoice.Status = domain.InvoiceStatusCancelled
		invoice.CancelledAt = &now
		invoice.CancelReason = reason
		return nil
	})
}

func (s *Service) transition(ctx context.Context, rawID, action string, apply func(tx *gorm.DB, invoice *domain.Invoice) error) (_ domain.Invoice, err error) {
	id, err := parseID(rawID, domain.ErrInvalidInvoiceID)
	if err != nil {
		return domain.Invoice{}, err
	}
	ctx, span := obstracing.StartInvoiceSpan(ctx, "invoice."+action, id.String())
	defer func() { obstracing.EndSpan(span, err) }()

	var (
		previous domain.InvoiceStatus
		updated  domain.Invoice
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.lockInvoice(ctx, tx, id)
		if err != nil {
			return err
		}
		previous = invoice.Status
		if err := apply(tx, invoice); err != nil {
			return err
		}
		invoice.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateStatus(ctx, tx, invoice); err != nil {
			return err
		}
		updated = *invoice
		return nil
	})
	if err != nil {
		s.metrics.IncMutationError(action, err)
		return domain.Invoice{}, err
	}

	s.telemetry.RecordStatusTransition(ctx, string(previous), string(updated.Status))
	logger.WithInvoice(s.log, updated.ID.String(), updated.Number).Info("invoice status changed",
		zap.String("from_status", string(previous)),
		zap.String("to_status", string(updated.Status)),
	)
	metadata := map[string]any{"previous_status": string(previous)}
	if updated.CancelReason != "" {
		metadata["reason"] = updated.CancelReason
	}
	s.audit(ctx, "invoice."+action, &updated, metadata)
	return s.load(ctx, s.db, id)
}
