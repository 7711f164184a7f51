package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tka-invoice/internal/worker/domain"
	"github.com/smallbiznis/tka-invoice/pkg/db/option"
	"github.com/smallbiznis/tka-invoice/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, worker *domain.Worker) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO workers (id, company_id, job_description_id, name, passport_number, nationality, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		worker.ID,
		worker.CompanyID,
		worker.JobDescriptionID,
		worker.Name,
		worker.PassportNumber,
		worker.Nationality,
		worker.CreatedAt,
		worker.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, worker *domain.Worker) error {
	return db.WithContext(ctx).Exec(
		`UPDATE workers
		 SET job_description_id = ?, name = ?, passport_number = ?, nationality = ?, updated_at = ?
		 WHERE id = ?`,
		worker.JobDescriptionID,
		worker.Name,
		worker.PassportNumber,
		worker.Nationality,
		worker.UpdatedAt,
		worker.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM workers WHERE id = ?`, id).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Worker, error) {
	var worker domain.Worker
	err := db.WithContext(ctx).Raw(
		`SELECT id, company_id, job_description_id, name, passport_number, nationality, created_at, updated_at
		 FROM workers WHERE id = ?`,
		id,
	).Scan(&worker).Error
	if err != nil {
		return nil, err
	}
	if worker.ID == 0 {
		return nil, nil
	}
	return &worker, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListWorkerFilter, page pagination.Pagination) ([]*domain.Worker, error) {
	var workers []*domain.Worker
	stmt := db.WithContext(ctx).Model(&domain.Worker{})
	if filter.CompanyID != 0 {
		stmt = stmt.Where("company_id = ?", filter.CompanyID)
	}
	if filter.JobDescriptionID != 0 {
		stmt = stmt.Where("job_description_id = ?", filter.JobDescriptionID)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		stmt = option.Contains(search, "name", "passport_number").Apply(stmt)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	if err := stmt.Order("created_at desc, id desc").Find(&workers).Error; err != nil {
		return nil, err
	}
	return workers, nil
}

func (r *repo) CompanyExists(ctx context.Context, db *gorm.DB, companyID snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(`SELECT COUNT(1) FROM companies WHERE id = ?`, companyID).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) JobDescriptionCompany(ctx context.Context, db *gorm.DB, jobDescriptionID snowflake.ID) (snowflake.ID, error) {
	var row struct {
		CompanyID snowflake.ID `gorm:"column:company_id"`
	}
	err := db.WithContext(ctx).Raw(
		`SELECT company_id FROM job_descriptions WHERE id = ?`,
		jobDescriptionID,
	).Scan(&row).Error
	if err != nil {
		return 0, err
	}
	return row.CompanyID, nil
}

func (r *repo) CountInvoiceLines(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(`SELECT COUNT(1) FROM invoice_lines WHERE worker_id = ?`, id).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
