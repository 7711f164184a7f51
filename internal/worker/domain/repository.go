package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tka-invoice/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListWorkerFilter struct {
	CompanyID        snowflake.ID
	JobDescriptionID snowflake.ID
	Search           string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, worker *Worker) error
	Update(ctx context.Context, db *gorm.DB, worker *Worker) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Worker, error)
	List(ctx context.Context, db *gorm.DB, filter ListWorkerFilter, page pagination.Pagination) ([]*Worker, error)
	CompanyExists(ctx context.Context, db *gorm.DB, companyID snowflake.ID) (bool, error)
	// JobDescriptionCompany returns the owning company of a job description,
	// or 0 when it does not exist.
	JobDescriptionCompany(ctx context.Context, db *gorm.DB, jobDescriptionID snowflake.ID) (snowflake.ID, error)
	CountInvoiceLines(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
}
