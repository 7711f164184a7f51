package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tka-invoice/pkg/db/pagination"
)

type CreateJobDescriptionRequest struct {
	CompanyID   string          `json:"company_id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
}

// UpdateJobDescriptionRequest applies only the fields that are set. A new
// price applies to lines added afterwards; existing lines keep theirs.
type UpdateJobDescriptionRequest struct {
	ID          string           `json:"-"`
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
}

type ListJobDescriptionRequest struct {
	pagination.Pagination
	CompanyID string
	Search    string
}

type ListJobDescriptionResponse struct {
	pagination.PageInfo
	JobDescriptions []JobDescription `json:"job_descriptions"`
}

type Service interface {
	Create(context.Context, CreateJobDescriptionRequest) (JobDescription, error)
	Update(context.Context, UpdateJobDescriptionRequest) (JobDescription, error)
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (JobDescription, error)
	List(context.Context, ListJobDescriptionRequest) (ListJobDescriptionResponse, error)
}

var (
	ErrInvalidID      = errors.New("invalid_id")
	ErrInvalidCompany = errors.New("invalid_company")
	ErrInvalidTitle   = errors.New("invalid_title")
	ErrInvalidPrice   = errors.New("invalid_price")
	ErrNotFound       = errors.New("not_found")
	ErrInUse          = errors.New("job_description_in_use")
)
