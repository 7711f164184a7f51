package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/tka-invoice/internal/audit/domain"
	"github.com/smallbiznis/tka-invoice/internal/bankaccount/domain"
	"github.com/smallbiznis/tka-invoice/internal/clock"
	"github.com/smallbiznis/tka-invoice/pkg/db/option"
	"github.com/smallbiznis/tka-invoice/pkg/db/pagination"
	"github.com/smallbiznis/tka-invoice/pkg/repository"
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
	Repo     repository.Repository[domain.BankAccount]
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     repository.Repository[domain.BankAccount]
	auditSvc auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("bankaccount.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateBankAccountRequest) (domain.BankAccount, error) {
	bankName := strings.TrimSpace(req.BankName)
	if bankName == "" {
		return domain.BankAccount{}, domain.ErrInvalidBankName
	}
	accountNumber, err := normalizeAccountNumber(req.AccountNumber)
	if err != nil {
		return domain.BankAccount{}, err
	}
	holder := strings.TrimSpace(req.AccountHolder)
	if holder == "" {
		return domain.BankAccount{}, domain.ErrInvalidAccountHolder
	}

	now := s.clock.Now()
	account := domain.BankAccount{
		ID:            s.genID.Generate(),
		BankName:      bankName,
		AccountNumber: accountNumber,
		AccountHolder: holder,
		Branch:        strings.TrimSpace(req.Branch),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTrx(tx)
		existing, err := repo.Count(ctx, nil)
		if err != nil {
			return err
		}
		account.IsDefault = req.IsDefault || existing == 0
		if account.IsDefault {
			if _, err := repo.UpdateWhere(ctx, &domain.BankAccount{IsDefault: true}, map[string]any{
				"is_default": false,
				"updated_at": now,
			}); err != nil {
				return err
			}
		}
		return repo.Create(ctx, &account)
	})
	if err != nil {
		return domain.BankAccount{}, err
	}

	s.audit(ctx, "bank_account.create", account.ID, map[string]any{
		"bank_name":      account.BankName,
		"account_number": account.AccountNumber,
		"is_default":     account.IsDefault,
	})
	return account, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateBankAccountRequest) (domain.BankAccount, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return domain.BankAccount{}, err
	}

	fields := map[string]any{}
	if req.BankName != nil {
		bankName := strings.TrimSpace(*req.BankName)
		if bankName == "" {
			return domain.BankAccount{}, domain.ErrInvalidBankName
		}
		fields["bank_name"] = bankName
	}
	if req.AccountNumber != nil {
		accountNumber, err := normalizeAccountNumber(*req.AccountNumber)
		if err != nil {
			return domain.BankAccount{}, err
		}
		fields["account_number"] = accountNumber
	}
	if req.AccountHolder != nil {
		holder := strings.TrimSpace(*req.AccountHolder)
		if holder == "" {
			return domain.BankAccount{}, domain.ErrInvalidAccountHolder
		}
		fields["account_holder"] = holder
	}
	if req.Branch != nil {
		fields["branch"] = strings.TrimSpace(*req.Branch)
	}

	var updated *domain.BankAccount
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTrx(tx)
		account, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if account == nil {
			return domain.ErrNotFound
		}
		if len(fields) > 0 {
			fields["updated_at"] = s.clock.Now()
			if _, err := repo.Update(ctx, id, fields); err != nil {
				return err
			}
		}
		updated, err = repo.FindByID(ctx, id)
		return err
	})
	if err != nil {
		return domain.BankAccount{}, err
	}

	s.audit(ctx, "bank_account.update", id, map[string]any{
		"bank_name":      updated.BankName,
		"account_number": updated.AccountNumber,
	})
	return *updated, nil
}

// Delete removes an account that no live invoice points at. Cancelled
// invoices do not block deletion.
func (s *Service) Delete(ctx context.Context, rawID string) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTrx(tx)
		account, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if account == nil {
			return domain.ErrNotFound
		}

		var refs int64
		if err := tx.WithContext(ctx).Raw(
			`SELECT COUNT(1) FROM invoices WHERE bank_account_id = ? AND status <> 'CANCELLED'`,
			id,
		).Scan(&refs).Error; err != nil {
			return err
		}
		if refs > 0 {
			return domain.ErrInUse
		}

		if err := tx.WithContext(ctx).Exec(
			`UPDATE invoices SET bank_account_id = NULL WHERE bank_account_id = ?`,
			id,
		).Error; err != nil {
			return err
		}
		_, err = repo.Delete(ctx, id)
		return err
	})
	if err != nil {
		return err
	}

	s.audit(ctx, "bank_account.delete", id, nil)
	return nil
}

func (s *Service) GetByID(ctx context.Context, rawID string) (domain.BankAccount, error) {
	id, err := parseID(rawID)
	if err != nil {
		return domain.BankAccount{}, err
	}
	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.BankAccount{}, err
	}
	if account == nil {
		return domain.BankAccount{}, domain.ErrNotFound
	}
	return *account, nil
}

func (s *Service) List(ctx context.Context, req domain.ListBankAccountRequest) (domain.ListBankAccountResponse, error) {
	opts := []option.QueryOption{
		option.Contains(req.Search, "bank_name", "account_holder", "account_number"),
		option.WithSortBy(option.QuerySortBy{}),
		option.ApplyPagination(req.Pagination),
	}
	items, err := s.repo.Find(ctx, nil, opts...)
	if err != nil {
		return domain.ListBankAccountResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, req.Pagination.Size(), func(account *domain.BankAccount) string {
		return pagination.TokenFor(account.ID.Int64(), account.CreatedAt)
	})

	accounts := make([]domain.BankAccount, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		accounts = append(accounts, *item)
	}
	return domain.ListBankAccountResponse{PageInfo: pageInfo, BankAccounts: accounts}, nil
}

func (s *Service) GetDefault(ctx context.Context) (domain.BankAccount, error) {
	account, err := s.repo.FindOne(ctx, &domain.BankAccount{IsDefault: true})
	if err != nil {
		return domain.BankAccount{}, err
	}
	if account == nil {
		return domain.BankAccount{}, domain.ErrNoDefault
	}
	return *account, nil
}

// SetDefault clears the current default and marks id in one transaction.
func (s *Service) SetDefault(ctx context.Context, rawID string) (domain.BankAccount, error) {
	id, err := parseID(rawID)
	if err != nil {
		return domain.BankAccount{}, err
	}

	var updated *domain.BankAccount
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTrx(tx)
		account, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if account == nil {
			return domain.ErrNotFound
		}

		now := s.clock.Now()
		if _, err := repo.UpdateWhere(ctx, &domain.BankAccount{IsDefault: true}, map[string]any{
			"is_default": false,
			"updated_at": now,
		}); err != nil {
			return err
		}
		if _, err := repo.Update(ctx, id, map[string]any{
			"is_default": true,
			"updated_at": now,
		}); err != nil {
			return err
		}
		updated, err = repo.FindByID(ctx, id)
		return err
	})
	if err != nil {
		return domain.BankAccount{}, err
	}

	s.audit(ctx, "bank_account.set_default", id, map[string]any{
		"bank_name":      updated.BankName,
		"account_number": updated.AccountNumber,
	})
	return *updated, nil
}

func (s *Service) audit(ctx context.Context, action string, id snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := id.String()
	_ = s.auditSvc.AuditLog(ctx, action, "bank_account", &targetID, metadata)
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

// normalizeAccountNumber drops spaces and dashes and requires digits only.
func normalizeAccountNumber(value string) (string, error) {
	cleaned := strings.NewReplacer(" ", "", "-", "", ".", "").Replace(strings.TrimSpace(value))
	if cleaned == "" {
		return "", domain.ErrInvalidAccountNumber
	}
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return "", domain.ErrInvalidAccountNumber
		}
	}
	return cleaned, nil
}
