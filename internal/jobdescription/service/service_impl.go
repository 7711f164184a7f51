package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/tka-invoice/internal/audit/domain"
	"github.com/smallbiznis/tka-invoice/internal/clock"
	"github.com/smallbiznis/tka-invoice/internal/jobdescription/domain"
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
		log:      p.Log.Named("jobdescription.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateJobDescriptionRequest) (domain.JobDescription, error) {
	companyID, err := parseID(req.CompanyID, domain.ErrInvalidCompany)
	if err != nil {
		return domain.JobDescription{}, err
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return domain.JobDescription{}, domain.ErrInvalidTitle
	}
	if err := validatePrice(req.Price); err != nil {
		return domain.JobDescription{}, err
	}

	exists, err := s.repo.CompanyExists(ctx, s.db, companyID)
	if err != nil {
		return domain.JobDescription{}, err
	}
	if !exists {
		return domain.JobDescription{}, domain.ErrInvalidCompany
	}

	now := s.clock.Now()
	item := domain.JobDescription{
		ID:          s.genID.Generate(),
		CompanyID:   companyID,
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Price:       req.Price,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, s.db, &item); err != nil {
		return domain.JobDescription{}, err
	}

	s.audit(ctx, "job_description.create", item.ID, map[string]any{
		"company_id": item.CompanyID.String(),
		"title":      item.Title,
		"price":      item.Price.StringFixed(2),
	})
	return item, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateJobDescriptionRequest) (domain.JobDescription, error) {
	id, err := parseID(req.ID, domain.ErrInvalidID)
	if err != nil {
		return domain.JobDescription{}, err
	}

	var (
		updated  domain.JobDescription
		oldPrice decimal.Decimal
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.ErrNotFound
		}
		oldPrice = item.Price

		if req.Title != nil {
			title := strings.TrimSpace(*req.Title)
			if title == "" {
				return domain.ErrInvalidTitle
			}
			item.Title = title
		}
		if req.Description != nil {
			item.Description = strings.TrimSpace(*req.Description)
		}
		if req.Price != nil {
			if err := validatePrice(*req.Price); err != nil {
				return err
			}
			item.Price = *req.Price
		}
		item.UpdatedAt = s.clock.Now()

		if err := s.repo.Update(ctx, tx, item); err != nil {
			return err
		}
		updated = *item
		return nil
	})
	if err != nil {
		return domain.JobDescription{}, err
	}

	metadata := map[string]any{"title": updated.Title}
	if !oldPrice.Equal(updated.Price) {
		metadata["old_price"] = oldPrice.StringFixed(2)
		metadata["new_price"] = updated.Price.StringFixed(2)
	}
	s.audit(ctx, "job_description.update", updated.ID, metadata)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, rawID string) error {
	id, err := parseID(rawID, domain.ErrInvalidID)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.ErrNotFound
		}
		refs, err := s.repo.CountReferences(ctx, tx, id)
		if err != nil {
			return err
		}
		if refs > 0 {
			return domain.ErrInUse
		}
		return s.repo.Delete(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	s.audit(ctx, "job_description.delete", id, nil)
	return nil
}

func (s *Service) GetByID(ctx context.Context, rawID string) (domain.JobDescription, error) {
	id, err := parseID(rawID, domain.ErrInvalidID)
	if err != nil {
		return domain.JobDescription{}, err
	}
	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.JobDescription{}, err
	}
	if item == nil {
		return domain.JobDescription{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context, req domain.ListJobDescriptionRequest) (domain.ListJobDescriptionResponse, error) {
	filter := domain.ListJobDescriptionFilter{Search: strings.TrimSpace(req.Search)}
	if strings.TrimSpace(req.CompanyID) != "" {
		companyID, err := parseID(req.CompanyID, domain.ErrInvalidCompany)
		if err != nil {
			return domain.ListJobDescriptionResponse{}, err
		}
		filter.CompanyID = companyID
	}

	items, err := s.repo.List(ctx, s.db, filter, req.Pagination)
	if err != nil {
		return domain.ListJobDescriptionResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, req.Pagination.Size(), func(item *domain.JobDescription) string {
		return pagination.TokenFor(item.ID.Int64(), item.CreatedAt)
	})

	out := make([]domain.JobDescription, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		out = append(out, *item)
	}
	return domain.ListJobDescriptionResponse{PageInfo: pageInfo, JobDescriptions: out}, nil
}

func (s *Service) audit(ctx context.Context, action string, id snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := id.String()
	_ = s.auditSvc.AuditLog(ctx, action, "job_description", &targetID, metadata)
}

func parseID(value string, invalid error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalid
	}
	return id, nil
}

// validatePrice accepts non-negative amounts with at most two decimals.
func validatePrice(price decimal.Decimal) error {
	if price.IsNegative() || !price.Equal(price.Round(2)) {
		return domain.ErrInvalidPrice
	}
	return nil
}
