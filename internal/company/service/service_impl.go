package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/tka-invoice/internal/audit/domain"
	"github.com/smallbiznis/tka-invoice/internal/clock"
	"github.com/smallbiznis/tka-invoice/internal/company/domain"
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
		log:      p.Log.Named("company.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateCompanyRequest) (domain.Company, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Company{}, domain.ErrInvalidName
	}
	email := strings.TrimSpace(req.Email)
	if !validEmail(email) {
		return domain.Company{}, domain.ErrInvalidEmail
	}

	now := s.clock.Now()
	company := domain.Company{
		ID:            s.genID.Generate(),
		Name:          name,
		Address:       strings.TrimSpace(req.Address),
		NPWP:          strings.TrimSpace(req.NPWP),
		ContactPerson: strings.TrimSpace(req.ContactPerson),
		Phone:         strings.TrimSpace(req.Phone),
		Email:         email,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Insert(ctx, s.db, &company); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Company{}, domain.ErrNameTaken
		}
		return domain.Company{}, err
	}

	s.audit(ctx, "company.create", company.ID, map[string]any{"name": company.Name, "npwp": company.NPWP})
	return company, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateCompanyRequest) (domain.Company, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return domain.Company{}, err
	}

	var updated domain.Company
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		company, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if company == nil {
			return domain.ErrNotFound
		}

		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return domain.ErrInvalidName
			}
			company.Name = name
		}
		if req.Email != nil {
			email := strings.TrimSpace(*req.Email)
			if !validEmail(email) {
				return domain.ErrInvalidEmail
			}
			company.Email = email
		}
		if req.Address != nil {
			company.Address = strings.TrimSpace(*req.Address)
		}
		if req.NPWP != nil {
			company.NPWP = strings.TrimSpace(*req.NPWP)
		}
		if req.ContactPerson != nil {
			company.ContactPerson = strings.TrimSpace(*req.ContactPerson)
		}
		if req.Phone != nil {
			company.Phone = strings.TrimSpace(*req.Phone)
		}
		company.UpdatedAt = s.clock.Now()

		if err := s.repo.Update(ctx, tx, company); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrNameTaken
			}
			return err
		}
		updated = *company
		return nil
	})
	if err != nil {
		return domain.Company{}, err
	}

	s.audit(ctx, "company.update", updated.ID, map[string]any{"name": updated.Name})
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, rawID string) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		company, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if company == nil {
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

	s.audit(ctx, "company.delete", id, nil)
	return nil
}

func (s *Service) GetByID(ctx context.Context, rawID string) (domain.Company, error) {
	id, err := parseID(rawID)
	if err != nil {
		return domain.Company{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Company{}, err
	}
	if item == nil {
		return domain.Company{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context, req domain.ListCompanyRequest) (domain.ListCompanyResponse, error) {
	items, err := s.repo.List(ctx, s.db, domain.ListCompanyFilter{
		Search: strings.TrimSpace(req.Search),
	}, req.Pagination)
	if err != nil {
		return domain.ListCompanyResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, req.Pagination.Size(), func(company *domain.Company) string {
		return pagination.TokenFor(company.ID.Int64(), company.CreatedAt)
	})

	companies := make([]domain.Company, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		companies = append(companies, *item)
	}

	return domain.ListCompanyResponse{PageInfo: pageInfo, Companies: companies}, nil
}

func (s *Service) audit(ctx context.Context, action string, id snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := id.String()
	_ = s.auditSvc.AuditLog(ctx, action, "company", &targetID, metadata)
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func validEmail(email string) bool {
	if email == "" {
		return true
	}
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1
}
