package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tka-invoice/internal/jobdescription/domain"
	"github.com/smallbiznis/tka-invoice/pkg/db/option"
	"github.com/smallbiznis/tka-invoice/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, item *domain.JobDescription) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO job_descriptions (id, company_id, title, description, price, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.CompanyID,
		item.Title,
		item.Description,
		item.Price,
		item.CreatedAt,
		item.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, item *domain.JobDescription) error {
	return db.WithContext(ctx).Exec(
		`UPDATE job_descriptions SET title = ?, description = ?, price = ?, updated_at = ? WHERE id = ?`,
		item.Title,
		item.Description,
		item.Price,
		item.UpdatedAt,
		item.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM job_descriptions WHERE id = ?`, id).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.JobDescription, error) {
	var item domain.JobDescription
	err := db.WithContext(ctx).Raw(
		`SELECT id, company_id, title, description, price, created_at, updated_at
		 FROM job_descriptions WHERE id = ?`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListJobDescriptionFilter, page pagination.Pagination) ([]*domain.JobDescription, error) {
	var items []*domain.JobDescription
	stmt := db.WithContext(ctx).Model(&domain.JobDescription{})
	if filter.CompanyID != 0 {
		stmt = stmt.Where("company_id = ?", filter.CompanyID)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		stmt = option.Contains(search, "title", "description").Apply(stmt)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	if err := stmt.Order("created_at desc, id desc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) CompanyExists(ctx context.Context, db *gorm.DB, companyID snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(`SELECT COUNT(1) FROM companies WHERE id = ?`, companyID).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) CountReferences(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	var row struct {
		Total int64 `gorm:"column:total"`
	}
	err := db.WithContext(ctx).Raw(
		`SELECT
			(SELECT COUNT(1) FROM invoice_lines WHERE job_description_id = ?) +
			(SELECT COUNT(1) FROM workers WHERE job_description_id = ?) AS total`,
		id, id,
	).Scan(&row).Error
	if err != nil {
		return 0, err
	}
	return row.Total, nil
}
