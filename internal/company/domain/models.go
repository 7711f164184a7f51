package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Company is a client that employs placed workers and receives invoices.
type Company struct {
	ID            snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name          string       `gorm:"type:text;not null;uniqueIndex" json:"name"`
	Address       string       `gorm:"type:text" json:"address,omitempty"`
	NPWP          string       `gorm:"column:npwp;type:text" json:"npwp,omitempty"`
	ContactPerson string       `gorm:"type:text" json:"contact_person,omitempty"`
	Phone         string       `gorm:"type:text" json:"phone,omitempty"`
	Email         string       `gorm:"type:text" json:"email,omitempty"`
	CreatedAt     time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"not null" json:"updated_at"`
}

func (Company) TableName() string { return "companies" }
