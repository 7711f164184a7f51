package authorization

import (
	"context"
	"errors"
)

const (
	RoleAdmin   = "admin"
	RoleFinance = "finance"
	RoleStaff   = "staff"
	RoleViewer  = "viewer"
)

const (
	ObjectCompany        = "company"
	ObjectJobDescription = "job_description"
	ObjectWorker         = "worker"
	ObjectBankAccount    = "bank_account"
	ObjectInvoice        = "invoice"
	ObjectAuditLog       = "audit_log"
)

const (
	ActionView        = "view"
	ActionCreate      = "create"
	ActionUpdate      = "update"
	ActionDelete      = "delete"
	ActionLineEdit    = "line_edit"
	ActionRecalculate = "recalculate"
	ActionIssue       = "issue"
	ActionPay         = "pay"
	ActionCancel      = "cancel"
	ActionRender      = "render"
	ActionSetDefault  = "set_default"
)

type Service interface {
	// Authorize checks whether role may perform action on object.
	Authorize(ctx context.Context, role string, object string, action string) error
}

var (
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
)
