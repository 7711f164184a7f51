package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tka-invoice/internal/company/domain"
	"github.com/smallbiznis/tka-invoice/pkg/db/option"
	"github.com/smallbiznis/tka-invoice/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, company *domain.Company) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO companies (id, name, address, npwp, contact_person, phone, email, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		company.ID,
		company.Name,
		company.Address,
		company.NPWP,
		company.ContactPerson,
		company.Phone,
		company.Email,
		company.CreatedAt,
		company.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, company *domain.Company) error {
	return db.WithContext(ctx).Exec(
		`UPDATE companies
		 SET name = ?, address = ?, npwp = ?, contact_person = ?, phone = ?, email = ?, updated_at = ?
		 WHERE id = ?`,
		company.Name,
		company.Address,
		company.NPWP,
		company.ContactPerson,
		company.Phone,
		company.Email,
		company.UpdatedAt,
		company.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM companies WHERE id = ?`, id).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Company, error) {
	var company domain.Company
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, address, npwp, contact_person, phone, email, created_at, updated_at
		 FROM companies WHERE id = ?`,
		id,
	).Scan(&company).Error
	if err != nil {
		return nil, err
	}
	if company.ID == 0 {
		return nil, nil
	}
	return &company, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListCompanyFilter, page pagination.Pagination) ([]*domain.Company, error) {
	var companies []*domain.Company
	stmt := db.WithContext(ctx).Model(&domain.Company{})
	if search := strings.TrimSpace(filter.Search); search != "" {
		stmt = option.Contains(search, "name", "npwp", "contact_person").Apply(stmt)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&companies).Error
	if err != nil {
		return nil, err
	}
	return companies, nil
}

func (r *repo) CountReferences(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	var row struct {
		Total int64 `gorm:"column:total"`
	}
	err := db.WithContext(ctx).Raw(
		`SELECT
			(SELECT COUNT(1) FROM invoices WHERE company_id = ?) +
			(SELECT COUNT(1) FROM workers WHERE company_id = ?) +
			(SELECT COUNT(1) FROM job_descriptions WHERE company_id = ?) AS total`,
		id, id, id,
	).Scan(&row).Error
	if err != nil {
		return 0, err
	}
	return row.Total, nil
}
