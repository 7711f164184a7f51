package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/tka-invoice/pkg/db/pagination"
)

type CreateBankAccountRequest struct {
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	AccountHolder string `json:"account_holder"`
	Branch        string `json:"branch"`
	IsDefault     bool   `json:"is_default"`
}

type UpdateBankAccountRequest struct {
	ID            string  `json:"-"`
	BankName      *string `json:"bank_name"`
	AccountNumber *string `json:"account_number"`
	AccountHolder *string `json:"account_holder"`
	Branch        *string `json:"branch"`
}

type ListBankAccountRequest struct {
	pagination.Pagination
	Search string
}

type ListBankAccountResponse struct {
	pagination.PageInfo
	BankAccounts []BankAccount `json:"bank_accounts"`
}

// Service manages bank accounts. At most one account is the default; the
// first account created becomes the default automatically.
type Service interface {
	Create(context.Context, CreateBankAccountRequest) (BankAccount, error)
	Update(context.Context, UpdateBankAccountRequest) (BankAccount, error)
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (BankAccount, error)
	List(context.Context, ListBankAccountRequest) (ListBankAccountResponse, error)
	GetDefault(ctx context.Context) (BankAccount, error)
	SetDefault(ctx context.Context, id string) (BankAccount, error)
}

var (
	ErrInvalidID            = errors.New("invalid_id")
	ErrInvalidBankName      = errors.New("invalid_bank_name")
	ErrInvalidAccountNumber = errors.New("invalid_account_number")
	ErrInvalidAccountHolder = errors.New("invalid_account_holder")
	ErrNotFound             = errors.New("not_found")
	ErrNoDefault            = errors.New("no_default_bank_account")
	ErrInUse                = errors.New("bank_account_in_use")
)
