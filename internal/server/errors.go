package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/tka-invoice/internal/audit/domain"
	"github.com/smallbiznis/tka-invoice/internal/authorization"
	bankaccountdomain "github.com/smallbiznis/tka-invoice/internal/bankaccount/domain"
	companydomain "github.com/smallbiznis/tka-invoice/internal/company/domain"
	invoicedomain "github.com/smallbiznis/tka-invoice/internal/invoice/domain"
	"github.com/smallbiznis/tka-invoice/internal/invoice/importer"
	jobdescriptiondomain "github.com/smallbiznis/tka-invoice/internal/jobdescription/domain"
	workerdomain "github.com/smallbiznis/tka-invoice/internal/worker/domain"
	"github.com/smallbiznis/tka-invoice/pkg/db/pagination"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var rowErr *importer.RowError
	if errors.As(err, &rowErr) {
		code := rootCode(rowErr.Err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "import rejected",
			Errors: []ValidationError{
				{
					Field:   fmt.Sprintf("row_%d", rowErr.Row),
					Code:    code,
					Message: rowErr.Error(),
				},
			},
		}
	}

	if isValidationError(err) {
		code := rootCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authorization.ErrInvalidActor):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger with the mapped type and the
// sentinel code.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	_, payload := mapError(err)
	if payload.Type == "internal_error" {
		return payload.Type, "internal_error"
	}
	if len(payload.Errors) > 0 {
		return payload.Type, payload.Errors[0].Code
	}
	return payload.Type, rootCode(err)
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, pagination.ErrInvalidPageToken),
		errors.Is(err, auditdomain.ErrInvalidTimeRange),
		errors.Is(err, auditdomain.ErrInvalidAction):
		return true
	case isCompanyValidationError(err),
		isJobDescriptionValidationError(err),
		isWorkerValidationError(err),
		isBankAccountValidationError(err),
		isInvoiceValidationError(err),
		isImportValidationError(err):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, companydomain.ErrNotFound),
		errors.Is(err, jobdescriptiondomain.ErrNotFound),
		errors.Is(err, workerdomain.ErrNotFound),
		errors.Is(err, bankaccountdomain.ErrNotFound),
		errors.Is(err, bankaccountdomain.ErrNoDefault),
		errors.Is(err, invoicedomain.ErrInvoiceNotFound),
		errors.Is(err, invoicedomain.ErrLineNotFound),
		errors.Is(err, invoicedomain.ErrCompanyNotFound),
		errors.Is(err, invoicedomain.ErrWorkerNotFound),
		errors.Is(err, invoicedomain.ErrJobDescriptionNotFound),
		errors.Is(err, invoicedomain.ErrBankAccountNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

// isConflictError covers uniqueness clashes, references that block a delete
// and operations the current invoice status does not allow.
func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, companydomain.ErrNameTaken),
		errors.Is(err, companydomain.ErrInUse),
		errors.Is(err, jobdescriptiondomain.ErrInUse),
		errors.Is(err, workerdomain.ErrPassportTaken),
		errors.Is(err, workerdomain.ErrInUse),
		errors.Is(err, bankaccountdomain.ErrInUse),
		errors.Is(err, invoicedomain.ErrInvoiceNotDraft),
		errors.Is(err, invoicedomain.ErrInvalidStatusTransition),
		errors.Is(err, invoicedomain.ErrInvoiceHasNoLines),
		errors.Is(err, invoicedomain.ErrInvoiceNotDeletable),
		errors.Is(err, invoicedomain.ErrInvoiceNumberConflict):
		return true
	default:
		return false
	}
}

func conflictMessage(err error) string {
	if errors.Is(err, ErrConflict) {
		return "conflict"
	}
	return strings.ReplaceAll(rootCode(err), "_", " ")
}

func isCompanyValidationError(err error) bool {
	switch {
	case errors.Is(err, companydomain.ErrInvalidID),
		errors.Is(err, companydomain.ErrInvalidName),
		errors.Is(err, companydomain.ErrInvalidEmail):
		return true
	default:
		return false
	}
}

func isJobDescriptionValidationError(err error) bool {
	switch {
	case errors.Is(err, jobdescriptiondomain.ErrInvalidID),
		errors.Is(err, jobdescriptiondomain.ErrInvalidCompany),
		errors.Is(err, jobdescriptiondomain.ErrInvalidTitle),
		errors.Is(err, jobdescriptiondomain.ErrInvalidPrice):
		return true
	default:
		return false
	}
}

func isWorkerValidationError(err error) bool {
	switch {
	case errors.Is(err, workerdomain.ErrInvalidID),
		errors.Is(err, workerdomain.ErrInvalidCompany),
		errors.Is(err, workerdomain.ErrInvalidJobDescription),
		errors.Is(err, workerdomain.ErrInvalidName),
		errors.Is(err, workerdomain.ErrCompanyMismatch):
		return true
	default:
		return false
	}
}

func isBankAccountValidationError(err error) bool {
	switch {
	case errors.Is(err, bankaccountdomain.ErrInvalidID),
		errors.Is(err, bankaccountdomain.ErrInvalidBankName),
		errors.Is(err, bankaccountdomain.ErrInvalidAccountNumber),
		errors.Is(err, bankaccountdomain.ErrInvalidAccountHolder):
		return true
	default:
		return false
	}
}

func isInvoiceValidationError(err error) bool {
	switch {
	case errors.Is(err, invoicedomain.ErrInvalidInvoiceID),
		errors.Is(err, invoicedomain.ErrInvalidLineID),
		errors.Is(err, invoicedomain.ErrInvalidCompany),
		errors.Is(err, invoicedomain.ErrInvalidBankAccount),
		errors.Is(err, invoicedomain.ErrInvalidWorker),
		errors.Is(err, invoicedomain.ErrInvalidJobDescription),
		errors.Is(err, invoicedomain.ErrInvalidDate),
		errors.Is(err, invoicedomain.ErrInvalidDueDate),
		errors.Is(err, invoicedomain.ErrInvalidVATPercentage),
		errors.Is(err, invoicedomain.ErrInvalidStatus),
		errors.Is(err, invoicedomain.ErrInvalidQuantity),
		errors.Is(err, invoicedomain.ErrInvalidBaris),
		errors.Is(err, invoicedomain.ErrInvalidPrice),
		errors.Is(err, invoicedomain.ErrInvalidDescription),
		errors.Is(err, invoicedomain.ErrInvalidCancelReason),
		errors.Is(err, invoicedomain.ErrInvalidImportMode),
		errors.Is(err, invoicedomain.ErrMissingPrice),
		errors.Is(err, invoicedomain.ErrCompanyMismatch),
		errors.Is(err, invoicedomain.ErrAmbiguousReference),
		errors.Is(err, invoicedomain.ErrTooManyLines):
		return true
	default:
		return false
	}
}

func isImportValidationError(err error) bool {
	switch {
	case errors.Is(err, importer.ErrUnsupportedFormat),
		errors.Is(err, importer.ErrMissingHeader),
		errors.Is(err, importer.ErrEmptyFile),
		errors.Is(err, importer.ErrTooManyRows),
		errors.Is(err, importer.ErrUnreadableFile):
		return true
	default:
		return false
	}
}

// rootCode returns the innermost error text, which for sentinels is the
// snake_case code.
func rootCode(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "missing_price":
		return "custom_price"
	case "too_many_lines", "ambiguous_reference", "company_mismatch":
		return "lines"
	case "job_description_company_mismatch":
		return "job_description_id"
	case "unsupported_import_format", "missing_import_header", "empty_import_file", "too_many_import_rows", "unreadable_import_file":
		return "file"
	case "invalid_page_token":
		return "page_token"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "missing_price":
		return "line needs a job description price or a custom price"
	case "too_many_lines":
		return "an invoice holds at most 100 lines"
	case "too_many_import_rows":
		return "import files hold at most 100 rows"
	case "unreadable_import_file":
		return "file is not a readable csv or xlsx document"
	default:
		return "invalid value"
	}
}
