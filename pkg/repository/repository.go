package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tka-invoice/pkg/db/option"
	"gorm.io/gorm"
)

// Repository is a generic gorm-backed store for tables keyed by a snowflake id.
type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]

	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	FindByID(ctx context.Context, id snowflake.ID) (*T, error)
	FindByIDForUpdate(ctx context.Context, id snowflake.ID) (*T, error)
	Count(ctx context.Context, query *T, opts ...option.QueryOption) (int64, error)

	Create(ctx context.Context, resource *T) error
	BatchCreate(ctx context.Context, resources []*T) error
	Update(ctx context.Context, id snowflake.ID, fields map[string]any) (int64, error)
	UpdateWhere(ctx context.Context, query *T, fields map[string]any) (int64, error)
	Delete(ctx context.Context, id snowflake.ID) (int64, error)
}
