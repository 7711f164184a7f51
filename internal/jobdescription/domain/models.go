package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// JobDescription is a priced position at one company. Its price is the
// default unit price for invoice lines that reference it.
type JobDescription struct {
	ID          snowflake.ID    `gorm:"primaryKey;autoIncrement:false" json:"id"`
	CompanyID   snowflake.ID    `gorm:"not null;index" json:"company_id"`
	Title       string          `gorm:"type:text;not null" json:"title"`
	Description string          `gorm:"type:text" json:"description,omitempty"`
	Price       decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0" json:"price"`
	CreatedAt   time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null" json:"updated_at"`
}

func (JobDescription) TableName() string { return "job_descriptions" }
