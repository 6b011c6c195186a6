package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Project groups tasks created by one manager.
type Project struct {
	ID        string `gorm:"primaryKey;size:36"`
	ManagerID string `gorm:"index:idx_manager_project_name,unique"`
	Name      string `gorm:"index:idx_manager_project_name,unique"`
	CreatedAt time.Time
	UpdatedAt time.Time
	Tasks     []Task `gorm:"foreignKey:ProjectID"`
}

func (p *Project) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
