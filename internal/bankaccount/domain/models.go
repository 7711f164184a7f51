package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// BankAccount is an account printed on invoices as the transfer target.
type BankAccount struct {
	ID            snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"id"`
	BankName      string       `gorm:"type:text;not null" json:"bank_name"`
	AccountNumber string       `gorm:"type:text;not null" json:"account_number"`
	AccountHolder string       `gorm:"type:text;not null" json:"account_holder"`
	Branch        string       `gorm:"type:text" json:"branch,omitempty"`
	IsDefault     bool         `gorm:"not null;default:false;index" json:"is_default"`
	CreatedAt     time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"not null" json:"updated_at"`
}

func (BankAccount) TableName() string { return "bank_accounts" }
