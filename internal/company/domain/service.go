package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/tka-invoice/pkg/db/pagination"
)

type CreateCompanyRequest struct {
	Name          string `json:"name"`
	Address       string `json:"address"`
	NPWP          string `json:"npwp"`
	ContactPerson string `json:"contact_person"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
}

// UpdateCompanyRequest applies only the fields that are set.
type UpdateCompanyRequest struct {
	ID            string  `json:"-"`
	Name          *string `json:"name"`
	Address       *string `json:"address"`
	NPWP          *string `json:"npwp"`
	ContactPerson *string `json:"contact_person"`
	Phone         *string `json:"phone"`
	Email         *string `json:"email"`
}

type ListCompanyRequest struct {
	pagination.Pagination
	Search string
}

type ListCompanyResponse struct {
	pagination.PageInfo
	Companies []Company `json:"companies"`
}

type Service interface {
	Create(context.Context, CreateCompanyRequest) (Company, error)
	Update(context.Context, UpdateCompanyRequest) (Company, error)
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (Company, error)
	List(context.Context, ListCompanyRequest) (ListCompanyResponse, error)
}

var (
	ErrInvalidID    = errors.New("invalid_id")
	ErrInvalidName  = errors.New("invalid_name")
	ErrInvalidEmail = errors.New("invalid_email")
	ErrNotFound     = errors.New("not_found")
	ErrNameTaken    = errors.New("company_name_taken")
	ErrInUse        = errors.New("company_in_use")
)
