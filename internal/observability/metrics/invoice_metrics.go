package metrics

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	ReasonDeadlineExceeded     = "deadline_exceeded"
	ReasonDBLockTimeout        = "db_lock_timeout"
	ReasonSerializationFailure = "serialization_failure"
	ReasonUniqueViolation      = "unique_violation"
	ReasonForeignKeyViolation  = "foreign_key_violation"
	ReasonBusinessRule         = "business_rule"
	ReasonUnknown              = "unknown"
)

const (
	RecalculationLineMutation = "line_mutation"
	RecalculationHeaderUpdate = "header_update"
	RecalculationManual       = "manual"
	RecalculationIssue        = "issue"
)

// InvoiceMetrics captures invoice aggregate health signals.
type InvoiceMetrics struct {
	recalculations  *prometheus.CounterVec
	lineMutations   *prometheus.CounterVec
	mutationErrors  *prometheus.CounterVec
	pdfRenders      *prometheus.HistogramVec
	invoiceLockWait prometheus.Observer
}

func NewInvoiceMetrics(cfg Config) *InvoiceMetrics {
	return newInvoiceMetrics(prometheus.DefaultRegisterer, cfg)
}

func newInvoiceMetrics(registerer prometheus.Registerer, cfg Config) *InvoiceMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := constLabelsFor(cfg)

	recalculations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "tka_invoice_recalculations_total",
		Help:        "Invoice aggregate recomputations by trigger.",
		ConstLabels: constLabels,
	}, []string{"trigger"})
	lineMutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "tka_invoice_line_mutations_total",
		Help:        "Invoice line mutations by operation.",
		ConstLabels: constLabels,
	}, []string{"operation"})
	mutationErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "tka_invoice_mutation_errors_total",
		Help:        "Failed invoice mutations by operation and low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"operation", "reason"})
	pdfRenders := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "tka_invoice_pdf_render_seconds",
		Help:        "Invoice PDF render latency by outcome.",
		Buckets:     []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		ConstLabels: constLabels,
	}, []string{"outcome"})
	invoiceLockWait := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "tka_invoice_lock_wait_seconds",
		Help:        "Time spent acquiring the invoice row lock.",
		Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		ConstLabels: constLabels,
	})

	registerer.MustRegister(recalculations, lineMutations, mutationErrors, pdfRenders, invoiceLockWait)

	return &InvoiceMetrics{
		recalculations:  recalculations,
		lineMutations:   lineMutations,
		mutationErrors:  mutationErrors,
		pdfRenders:      pdfRenders,
		invoiceLockWait: invoiceLockWait,
	}
}

func (m *InvoiceMetrics) IncRecalculation(trigger string) {
	if m == nil {
		return
	}
	m.recalculations.WithLabelValues(strings.TrimSpace(trigger)).Inc()
}

func (m *InvoiceMetrics) AddLineMutations(operation string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.lineMutations.WithLabelValues(strings.TrimSpace(operation)).Add(float64(count))
}

func (m *InvoiceMetrics) IncMutationError(operation string, err error) {
	if m == nil || err == nil {
		return
	}
	m.mutationErrors.WithLabelValues(strings.TrimSpace(operation), ClassifyErrorReason(err)).Inc()
}

func (m *InvoiceMetrics) ObservePDFRender(duration time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.pdfRenders.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *InvoiceMetrics) ObserveLockWait(duration time.Duration) {
	if m == nil {
		return
	}
	m.invoiceLockWait.Observe(duration.Seconds())
}

// ClassifyErrorReason maps an error to a low-cardinality label value.
func ClassifyErrorReason(err error) string {
	switch {
	case err == nil:
		return ReasonUnknown
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ReasonDeadlineExceeded
	case hasPGCode(err, "55P03"):
		return ReasonDBLockTimeout
	case hasPGCode(err, "40001"):
		return ReasonSerializationFailure
	case errors.Is(err, gorm.ErrDuplicatedKey), hasPGCode(err, "23505"):
		return ReasonUniqueViolation
	case errors.Is(err, gorm.ErrForeignKeyViolated), hasPGCode(err, "23503"):
		return ReasonForeignKeyViolation
	case isDBError(err):
		return ReasonUnknown
	default:
		return ReasonBusinessRule
	}
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func isDBError(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	if errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrInvalidField) ||
		errors.Is(err, gorm.ErrInvalidData) ||
		errors.Is(err, gorm.ErrMissingWhereClause) ||
		errors.Is(err, gorm.ErrInvalidValue) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}
