package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tka-invoice/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListJobDescriptionFilter struct {
	CompanyID snowflake.ID
	Search    string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, item *JobDescription) error
	Update(ctx context.Context, db *gorm.DB, item *JobDescription) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*JobDescription, error)
	List(ctx context.Context, db *gorm.DB, filter ListJobDescriptionFilter, page pagination.Pagination) ([]*JobDescription, error)
	CompanyExists(ctx context.Context, db *gorm.DB, companyID snowflake.ID) (bool, error)
	// CountReferences counts invoice lines and workers using the job description.
	CountReferences(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
}
