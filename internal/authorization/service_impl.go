package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	auditdomain "github.com/smallbiznis/tka-invoice/internal/audit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

//go:embed model.conf
var modelText string

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

// NewEnforcer builds an in-memory enforcer seeded with the built-in role
// policies.
func NewEnforcer() (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, role string, object string, action string) error {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	allowed, err := s.enforcer.Enforce(subjectFor(role), object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Debug("authorization denied",
			zap.String("role", role),
			zap.String("object", object),
			zap.String("action", action),
		)
		s.audit(ctx, "authorization.denied", role, object, action)
		return ErrForbidden
	}

	if shouldAuditGrant(object, action) {
		s.audit(ctx, "authorization.granted", role, object, action)
	}
	return nil
}

func (s *ServiceImpl) audit(ctx context.Context, auditAction, role, object, action string) {
	if s.auditSvc == nil {
		return
	}
	targetID := object + "." + action
	_ = s.auditSvc.AuditLog(ctx, auditAction, "authorization", &targetID, map[string]any{
		"object": object,
		"action": action,
		"role":   role,
	})
}

func subjectFor(role string) string {
	return "role:" + role
}

func shouldAuditGrant(object, action string) bool {
	switch {
	case object == ObjectInvoice && action == ActionCancel:
		return true
	case object == ObjectBankAccount && action == ActionSetDefault:
		return true
	default:
		return false
	}
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Viewer permissions (read-only)
		{"role:viewer", ObjectCompany, ActionView},
		{"role:viewer", ObjectJobDescription, ActionView},
		{"role:viewer", ObjectWorker, ActionView},
		{"role:viewer", ObjectBankAccount, ActionView},
		{"role:viewer", ObjectInvoice, ActionView},
		{"role:viewer", ObjectInvoice, ActionRender},

		// Staff maintain master data and draft invoices
		{"role:staff", ObjectCompany, ActionCreate},
		{"role:staff", ObjectCompany, ActionUpdate},
		{"role:staff", ObjectCompany, ActionDelete},
		{"role:staff", ObjectJobDescription, ActionCreate},
		{"role:staff", ObjectJobDescription, ActionUpdate},
		{"role:staff", ObjectJobDescription, ActionDelete},
		{"role:staff", ObjectWorker, ActionCreate},
		{"role:staff", ObjectWorker, ActionUpdate},
		{"role:staff", ObjectWorker, ActionDelete},
		{"role:staff", ObjectInvoice, ActionCreate},
		{"role:staff", ObjectInvoice, ActionUpdate},
		{"role:staff", ObjectInvoice, ActionLineEdit},
		{"role:staff", ObjectInvoice, ActionRecalculate},

		// Finance own the invoice lifecycle and payout accounts
		{"role:finance", ObjectInvoice, "*"},
		{"role:finance", ObjectBankAccount, "*"},
		{"role:finance", ObjectAuditLog, ActionView},

		{"role:admin", "*", "*"},
	}

	for _, policy := range policies {
		if len(policy) < 3 {
			continue
		}
		if _, err := enforcer.AddPolicy(policy[0], policy[1], policy[2]); err != nil {
			return err
		}
	}

	groupings := [][]string{
		{"role:staff", "role:viewer"},
		{"role:finance", "role:viewer"},
	}
	for _, grouping := range groupings {
		if _, err := enforcer.AddGroupingPolicy(grouping[0], grouping[1]); err != nil {
			return err
		}
	}
	return nil
}
