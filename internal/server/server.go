package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/smallbiznis/tka-invoice/internal/audit/domain"
	"github.com/smallbiznis/tka-invoice/internal/authorization"
	bankaccountdomain "github.com/smallbiznis/tka-invoice/internal/bankaccount/domain"
	companydomain "github.com/smallbiznis/tka-invoice/internal/company/domain"
	"github.com/smallbiznis/tka-invoice/internal/config"
	invoicedomain "github.com/smallbiznis/tka-invoice/internal/invoice/domain"
	jobdescriptiondomain "github.com/smallbiznis/tka-invoice/internal/jobdescription/domain"
	"github.com/smallbiznis/tka-invoice/internal/observability"
	obsmiddleware "github.com/smallbiznis/tka-invoice/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/tka-invoice/internal/observability/metrics"
	obstracing "github.com/smallbiznis/tka-invoice/internal/observability/tracing"
	workerdomain "github.com/smallbiznis/tka-invoice/internal/worker/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

// maxImportBytes bounds multipart uploads for line imports.
const maxImportBytes = 8 << 20

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = maxImportBytes
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if obsCfg.Debug() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine            *gin.Engine
	authzSvc          authorization.Service
	auditSvc          auditdomain.Service
	companySvc        companydomain.Service
	jobDescriptionSvc jobdescriptiondomain.Service
	workerSvc         workerdomain.Service
	bankAccountSvc    bankaccountdomain.Service
	invoiceSvc        invoicedomain.Service
}

type ServerParams struct {
	fx.In

	Gin               *gin.Engine
	AuthzSvc          authorization.Service
	AuditSvc          auditdomain.Service
	CompanySvc        companydomain.Service
	JobDescriptionSvc jobdescriptiondomain.Service
	WorkerSvc         workerdomain.Service
	BankAccountSvc    bankaccountdomain.Service
	InvoiceSvc        invoicedomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:            p.Gin,
		authzSvc:          p.AuthzSvc,
		auditSvc:          p.AuditSvc,
		companySvc:        p.CompanySvc,
		jobDescriptionSvc: p.JobDescriptionSvc,
		workerSvc:         p.WorkerSvc,
		bankAccountSvc:    p.BankAccountSvc,
		invoiceSvc:        p.InvoiceSvc,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.RequireActorRole())

	// -------- Companies --------
	api.GET("/companies", s.authorize(authorization.ObjectCompany, authorization.ActionView), s.ListCompanies)
	api.POST("/companies", s.authorize(authorization.ObjectCompany, authorization.ActionCreate), s.CreateCompany)
	api.GET("/companies/:id", s.authorize(authorization.ObjectCompany, authorization.ActionView), s.GetCompanyByID)
	api.PATCH("/companies/:id", s.authorize(authorization.ObjectCompany, authorization.ActionUpdate), s.UpdateCompany)
	api.DELETE("/companies/:id", s.authorize(authorization.ObjectCompany, authorization.ActionDelete), s.DeleteCompany)

	// -------- Job descriptions --------
	api.GET("/job_descriptions", s.authorize(authorization.ObjectJobDescription, authorization.ActionView), s.ListJobDescriptions)
	api.POST("/job_descriptions", s.authorize(authorization.ObjectJobDescription, authorization.ActionCreate), s.CreateJobDescription)
	api.GET("/job_descriptions/:id", s.authorize(authorization.ObjectJobDescription, authorization.ActionView), s.GetJobDescriptionByID)
	api.PATCH("/job_descriptions/:id", s.authorize(authorization.ObjectJobDescription, authorization.ActionUpdate), s.UpdateJobDescription)
	api.DELETE("/job_descriptions/:id", s.authorize(authorization.ObjectJobDescription, authorization.ActionDelete), s.DeleteJobDescription)

	// -------- Workers --------
	api.GET("/workers", s.authorize(authorization.ObjectWorker, authorization.ActionView), s.ListWorkers)
	api.POST("/workers", s.authorize(authorization.ObjectWorker, authorization.ActionCreate), s.CreateWorker)
	api.GET("/workers/:id", s.authorize(authorization.ObjectWorker, authorization.ActionView), s.GetWorkerByID)
	api.PATCH("/workers/:id", s.authorize(authorization.ObjectWorker, authorization.ActionUpdate), s.UpdateWorker)
	api.DELETE("/workers/:id", s.authorize(authorization.ObjectWorker, authorization.ActionDelete), s.DeleteWorker)

	// -------- Bank accounts --------
	api.GET("/bank_accounts", s.authorize(authorization.ObjectBankAccount, authorization.ActionView), s.ListBankAccounts)
	api.POST("/bank_accounts", s.authorize(authorization.ObjectBankAccount, authorization.ActionCreate), s.CreateBankAccount)
	api.GET("/bank_accounts/:id", s.authorize(authorization.ObjectBankAccount, authorization.ActionView), s.GetBankAccountByID)
	api.PATCH("/bank_accounts/:id", s.authorize(authorization.ObjectBankAccount, authorization.ActionUpdate), s.UpdateBankAccount)
	api.DELETE("/bank_accounts/:id", s.authorize(authorization.ObjectBankAccount, authorization.ActionDelete), s.DeleteBankAccount)
	api.POST("/bank_accounts/:id/default", s.authorize(authorization.ObjectBankAccount, authorization.ActionSetDefault), s.SetDefaultBankAccount)

	// -------- Invoices --------
	api.GET("/invoices", s.authorize(authorization.ObjectInvoice, authorization.ActionView), s.ListInvoices)
	api.POST("/invoices", s.authorize(authorization.ObjectInvoice, authorization.ActionCreate), s.CreateInvoice)
	api.GET("/invoices/:id", s.authorize(authorization.ObjectInvoice, authorization.ActionView), s.GetInvoiceByID)
	api.PATCH("/invoices/:id", s.authorize(authorization.ObjectInvoice, authorization.ActionUpdate), s.UpdateInvoice)
	api.DELETE("/invoices/:id", s.authorize(authorization.ObjectInvoice, authorization.ActionDelete), s.DeleteInvoice)
	api.POST("/invoices/:id/lines", s.authorize(authorization.ObjectInvoice, authorization.ActionLineEdit), s.AddInvoiceLine)
	api.PUT("/invoices/:id/lines", s.authorize(authorization.ObjectInvoice, authorization.ActionLineEdit), s.ReplaceInvoiceLines)
	api.DELETE("/invoices/:id/lines/:lineId", s.authorize(authorization.ObjectInvoice, authorization.ActionLineEdit), s.DeleteInvoiceLine)
	api.POST("/invoices/:id/lines/import", s.authorize(authorization.ObjectInvoice, authorization.ActionLineEdit), s.ImportInvoiceLines)
	api.POST("/invoices/:id/recalculate", s.authorize(authorization.ObjectInvoice, authorization.ActionRecalculate), s.RecalculateInvoice)
	api.POST("/invoices/:id/issue", s.authorize(authorization.ObjectInvoice, authorization.ActionIssue), s.IssueInvoice)
	api.POST("/invoices/:id/pay", s.authorize(authorization.ObjectInvoice, authorization.ActionPay), s.PayInvoice)
	api.POST("/invoices/:id/cancel", s.authorize(authorization.ObjectInvoice, authorization.ActionCancel), s.CancelInvoice)
	api.GET("/invoices/:id/pdf", s.authorize(authorization.ObjectInvoice, authorization.ActionRender), s.RenderInvoicePDF)

	// -------- Audit --------
	api.GET("/audit_logs", s.authorize(authorization.ObjectAuditLog, authorization.ActionView), s.ListAuditLogs)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
