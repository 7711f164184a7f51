package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/tka-invoice/pkg/db/pagination"
)

type CreateWorkerRequest struct {
	CompanyID        string `json:"company_id"`
	JobDescriptionID string `json:"job_description_id"`
	Name             string `json:"name"`
	PassportNumber   string `json:"passport_number"`
	Nationality      string `json:"nationality"`
}

// UpdateWorkerRequest applies only the fields that are set. An empty
// JobDescriptionID clears the assignment.
type UpdateWorkerRequest struct {
	ID               string  `json:"-"`
	JobDescriptionID *string `json:"job_description_id"`
	Name             *string `json:"name"`
	PassportNumber   *string `json:"passport_number"`
	Nationality      *string `json:"nationality"`
}

type ListWorkerRequest struct {
	pagination.Pagination
	CompanyID        string
	JobDescriptionID string
	Search           string
}

type ListWorkerResponse struct {
	pagination.PageInfo
	Workers []Worker `json:"workers"`
}

type Service interface {
	Create(context.Context, CreateWorkerRequest) (Worker, error)
	Update(context.Context, UpdateWorkerRequest) (Worker, error)
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (Worker, error)
	List(context.Context, ListWorkerRequest) (ListWorkerResponse, error)
}

var (
	ErrInvalidID             = errors.New("invalid_id")
	ErrInvalidCompany        = errors.New("invalid_company")
	ErrInvalidJobDescription = errors.New("invalid_job_description")
	ErrInvalidName           = errors.New("invalid_name")
	ErrCompanyMismatch       = errors.New("job_description_company_mismatch")
	ErrPassportTaken         = errors.New("passport_number_taken")
	ErrNotFound              = errors.New("not_found")
	ErrInUse                 = errors.New("worker_in_use")
)
