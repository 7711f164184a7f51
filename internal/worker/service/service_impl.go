package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/tka-invoice/internal/audit/domain"
	"github.com/smallbiznis/tka-invoice/internal/clock"
	"github.com/smallbiznis/tka-invoice/internal/worker/domain"
	"github.com/smallbiznis/tka-invoice/pkg/db"
	"github.com/smallbiznis/tka-invoice/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	auditSvc auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("worker.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateWorkerRequest) (domain.Worker, error) {
	companyID, err := parseID(req.CompanyID, domain.ErrInvalidCompany)
	if err != nil {
		return domain.Worker{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Worker{}, domain.ErrInvalidName
	}

	exists, err := s.repo.CompanyExists(ctx, s.db, companyID)
	if err != nil {
		return domain.Worker{}, err
	}
	if !exists {
		return domain.Worker{}, domain.ErrInvalidCompany
	}

	jobDescriptionID, err := s.resolveJobDescription(ctx, s.db, companyID, req.JobDescriptionID)
	if err != nil {
		return domain.Worker{}, err
	}

	now := s.clock.Now()
	worker := domain.Worker{
		ID:               s.genID.Generate(),
		CompanyID:        companyID,
		JobDescriptionID: jobDescriptionID,
		Name:             name,
		PassportNumber:   optionalString(req.PassportNumber),
		Nationality:      strings.TrimSpace(req.Nationality),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Insert(ctx, s.db, &worker); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Worker{}, domain.ErrPassportTaken
		}
		return domain.Worker{}, err
	}

	s.audit(ctx, "worker.create", worker.ID, map[string]any{
		"company_id":      worker.CompanyID.String(),
		"name":            worker.Name,
		"passport_number": stringValue(worker.PassportNumber),
	})
	return worker, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateWorkerRequest) (domain.Worker, error) {
	id, err := parseID(req.ID, domain.ErrInvalidID)
	if err != nil {
		return domain.Worker{}, err
	}

	var updated domain.Worker
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		worker, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if worker == nil {
			return domain.ErrNotFound
		}

		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return domain.ErrInvalidName
			}
			worker.Name = name
		}
		if req.JobDescriptionID != nil {
			jobDescriptionID, err := s.resolveJobDescription(ctx, tx, worker.CompanyID, *req.JobDescriptionID)
			if err != nil {
				return err
			}
			worker.JobDescriptionID = jobDescriptionID
		}
		if req.PassportNumber != nil {
			worker.PassportNumber = optionalString(*req.PassportNumber)
		}
		if req.Nationality != nil {
			worker.Nationality = strings.TrimSpace(*req.Nationality)
		}
		worker.UpdatedAt = s.clock.Now()

		if err := s.repo.Update(ctx, tx, worker); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrPassportTaken
			}
			return err
		}
		updated = *worker
		return nil
	})
	if err != nil {
		return domain.Worker{}, err
	}

	s.audit(ctx, "worker.update", updated.ID, map[string]any{"name": updated.Name})
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, rawID string) error {
	id, err := parseID(rawID, domain.ErrInvalidID)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		worker, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if worker == nil {
			return domain.ErrNotFound
		}
		lines, err := s.repo.CountInvoiceLines(ctx, tx, id)
		if err != nil {
			return err
		}
		if lines > 0 {
			return domain.ErrInUse
		}
		return s.repo.Delete(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	s.audit(ctx, "worker.delete", id, nil)
	return nil
}

func (s *Service) GetByID(ctx context.Context, rawID string) (domain.Worker, error) {
	id, err := parseID(rawID, domain.ErrInvalidID)
	if err != nil {
		return domain.Worker{}, err
	}
	worker, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Worker{}, err
	}
	if worker == nil {
		return domain.Worker{}, domain.ErrNotFound
	}
	return *worker, nil
}

func (s *Service) List(ctx context.Context, req domain.ListWorkerRequest) (domain.ListWorkerResponse, error) {
	filter := domain.ListWorkerFilter{Search: strings.TrimSpace(req.Search)}
	if strings.TrimSpace(req.CompanyID) != "" {
		companyID, err := parseID(req.CompanyID, domain.ErrInvalidCompany)
		if err != nil {
			return domain.ListWorkerResponse{}, err
		}
		filter.CompanyID = companyID
	}
	if strings.TrimSpace(req.JobDescriptionID) != "" {
		jobDescriptionID, err := parseID(req.JobDescriptionID, domain.ErrInvalidJobDescription)
		if err != nil {
			return domain.ListWorkerResponse{}, err
		}
		filter.JobDescriptionID = jobDescriptionID
	}

	items, err := s.repo.List(ctx, s.db, filter, req.Pagination)
	if err != nil {
		return domain.ListWorkerResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, req.Pagination.Size(), func(worker *domain.Worker) string {
		return pagination.TokenFor(worker.ID.Int64(), worker.CreatedAt)
	})

	workers := make([]domain.Worker, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		workers = append(workers, *item)
	}
	return domain.ListWorkerResponse{PageInfo: pageInfo, Workers: workers}, nil
}

// resolveJobDescription returns nil for an empty value and otherwise checks
// that the job description belongs to companyID.
func (s *Service) resolveJobDescription(ctx context.Context, conn *gorm.DB, companyID snowflake.ID, raw string) (*snowflake.ID, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	jobDescriptionID, err := parseID(raw, domain.ErrInvalidJobDescription)
	if err != nil {
		return nil, err
	}
	owner, err := s.repo.JobDescriptionCompany(ctx, conn, jobDescriptionID)
	if err != nil {
		return nil, err
	}
	if owner == 0 {
		return nil, domain.ErrInvalidJobDescription
	}
	if owner != companyID {
		return nil, domain.ErrCompanyMismatch
	}
	return &jobDescriptionID, nil
}

func (s *Service) audit(ctx context.Context, action string, id snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := id.String()
	_ = s.auditSvc.AuditLog(ctx, action, "worker", &targetID, metadata)
}

func parseID(value string, invalid error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalid
	}
	return id, nil
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
