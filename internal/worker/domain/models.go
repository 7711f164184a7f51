package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Worker is a foreign worker placed at a company.
type Worker struct {
	ID               snowflake.ID  `gorm:"primaryKey;autoIncrement:false" json:"id"`
	CompanyID        snowflake.ID  `gorm:"not null;index" json:"company_id"`
	JobDescriptionID *snowflake.ID `gorm:"index" json:"job_description_id,omitempty"`
	Name             string        `gorm:"type:text;not null" json:"name"`
	PassportNumber   *string       `gorm:"type:text;uniqueIndex" json:"passport_number,omitempty"`
	Nationality      string        `gorm:"type:text" json:"nationality,omitempty"`
	CreatedAt        time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time     `gorm:"not null" json:"updated_at"`
}

func (Worker) TableName() string { return "workers" }
