package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tka-invoice/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListCompanyFilter struct {
	Search string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, company *Company) error
	Update(ctx context.Context, db *gorm.DB, company *Company) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Company, error)
	List(ctx context.Context, db *gorm.DB, filter ListCompanyFilter, page pagination.Pagination) ([]*Company, error)
	// CountReferences counts invoices, workers and job descriptions that
	// point at the company.
	CountReferences(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
}
