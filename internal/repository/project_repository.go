package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"taskcal/internal/model"
)

// ProjectRepository manages the projects tasks are grouped under.
type ProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) GetOrCreate(ctx context.Context, managerID, name string) (*model.Project, error) {
	if name == "" {
		return nil, nil
	}

	var project model.Project
	db := r.db.WithContext(ctx)
	err := db.Where("manager_id = ? AND name = ?", managerID, name).First(&project).Error
	switch {
	case err == nil:
		return &project, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		project = model.Project{ManagerID: managerID, Name: name}
		if err := db.Create(&project).Error; err != nil {
			return nil, fmt.Errorf("create project: %w", err)
		}
		return &project, nil
	default:
		return nil, fmt.Errorf("find project: %w", err)
	}
}

// NamesByID returns project names keyed by id.
func (r *ProjectRepository) NamesByID(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	var projects []model.Project
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&projects).Error; err != nil {
		return nil, translate(err, "list projects")
	}
	for _, p := range projects {
		names[p.ID] = p.Name
	}
	return names, nil
}
