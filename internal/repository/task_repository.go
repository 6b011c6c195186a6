package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"taskcal/internal/calendar"
	"taskcal/internal/model"
)

// TaskRepository handles CRUD for tasks.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, taskID string) (*model.Task, error) {
	return findTask(r.db.WithContext(ctx), taskID)
}

func findTask(db *gorm.DB, taskID string) (*model.Task, error) {
	var task model.Task
	if err := db.Preload("Assignees").First(&task, "id = ?", taskID).Error; err != nil {
		return nil, translate(err, "find task "+taskID)
	}
	return &task, nil
}

// ListForUser returns the tasks a user sees: those created by a manager,
// or those assigned to a contributor.
func (r *TaskRepository) ListForUser(ctx context.Context, user *model.User) ([]model.Task, error) {
	q := r.db.WithContext(ctx).Model(&model.Task{}).Preload("Assignees")
	if user.IsManager() {
		q = q.Where("tasks.created_by_id = ?", user.ID)
	} else {
		q = q.Joins("JOIN task_assignees ON task_assignees.task_id = tasks.id").
			Where("task_assignees.user_id = ?", user.ID)
	}

	var tasks []model.Task
	if err := q.Order("tasks.created_at ASC, tasks.id ASC").Find(&tasks).Error; err != nil {
		return nil, translate(err, "list tasks")
	}
	return tasks, nil
}

// UpdateOccupancy writes a calendar placement on behalf of actorID.
// Authoritative dates belong to the manager who created the task; the
// override belongs to its assignees and must lie inside the authoritative
// bounds. A done task only accepts clearing its override.
func (r *TaskRepository) UpdateOccupancy(ctx context.Context, taskID string, change model.OccupancyChange, actorID string) (*model.Task, error) {
	if !change.Target.IsValid() {
		return nil, fmt.Errorf("update occupancy: unknown target %q", change.Target)
	}
	if change.Start != nil && change.End != nil && change.End.Before(*change.Start) {
		return nil, &calendar.InvalidDateError{Field: "end", Value: change.End.Format(time.RFC3339)}
	}

	var updated *model.Task
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := findTask(tx, taskID)
		if err != nil {
			return err
		}
		var actor model.User
		if err := tx.First(&actor, "id = ?", actorID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("unknown user %s: %w", actorID, calendar.ErrUnauthorized)
			}
			return translate(err, "find user "+actorID)
		}
		if task.IsDone() && !(change.Target == model.TargetOverride && change.Clears()) {
			return fmt.Errorf("update occupancy of %s: %w", task.ID, calendar.ErrTaskDone)
		}

		var cols map[string]any
		switch change.Target {
		case model.TargetAuthoritative:
			if !actor.IsManager() || task.CreatedByID != actor.ID {
				return fmt.Errorf("user %s cannot set dates of task %s: %w", actor.ID, task.ID, calendar.ErrUnauthorized)
			}
			cols = map[string]any{
				"start_date":              change.Start,
				"deadline":                change.End,
				"calendar_start":          nil,
				"calendar_end":            nil,
				"calendar_original_start": nil,
				"calendar_original_end":   nil,
			}
		case model.TargetOverride:
			if actor.IsManager() || !task.IsAssignedTo(actor.ID) {
				return fmt.Errorf("user %s is not assigned to task %s: %w", actor.ID, task.ID, calendar.ErrUnauthorized)
			}
			if change.Clears() {
				cols = map[string]any{
					"calendar_start":          nil,
					"calendar_end":            nil,
					"calendar_original_start": nil,
					"calendar_original_end":   nil,
				}
				break
			}
			end, err := fitOverride(*task, change.Start, change.End)
			if err != nil {
				return err
			}
			cols = map[string]any{
				"calendar_start":          change.Start,
				"calendar_end":            end,
				"calendar_original_start": task.StartDate,
				"calendar_original_end":   task.Deadline,
			}
		}

		if err := tx.Model(&model.Task{}).Where("id = ?", task.ID).Updates(cols).Error; err != nil {
			return translate(err, "update occupancy")
		}
		updated, err = findTask(tx, task.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// fitOverride checks a contributor window against the task's bounds and
// returns its exclusive end. A missing or empty end means one day.
func fitOverride(task model.Task, start, end *time.Time) (*time.Time, error) {
	if start == nil || start.IsZero() {
		return nil, &calendar.InvalidDateError{Field: "start"}
	}
	e := start.AddDate(0, 0, 1)
	if end != nil && end.After(*start) {
		e = *end
	}
	lo, hi := calendar.Bounds(task)
	if lo != nil && start.Before(*lo) {
		return nil, &calendar.InvalidDateError{
			Field: "start", Value: start.Format(time.RFC3339),
			Reason: "is before the task start " + lo.Format("2006-01-02"),
		}
	}
	if hi != nil && e.After(*hi) {
		return nil, &calendar.InvalidDateError{
			Field: "end", Value: e.Format(time.RFC3339),
			Reason: "is after the task deadline " + hi.AddDate(0, 0, -1).Format("2006-01-02"),
		}
	}
	return &e, nil
}

// UpdateStatus changes a task's status, stamping the completion date when
// it becomes done.
func (r *TaskRepository) UpdateStatus(ctx context.Context, taskID string, status model.Status, at time.Time) (*model.Task, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("update status: unknown status %q", status)
	}
	cols := map[string]any{"status": status, "completion_date": nil}
	if status == model.StatusDone {
		cols["completion_date"] = at
	}
	db := r.db.WithContext(ctx)
	res := db.Model(&model.Task{}).Where("id = ?", taskID).Updates(cols)
	if res.Error != nil {
		return nil, translate(res.Error, "update status")
	}
	if res.RowsAffected == 0 {
		return nil, translate(gorm.ErrRecordNotFound, "update status "+taskID)
	}
	return findTask(db, taskID)
}

func (r *TaskRepository) Delete(ctx context.Context, taskID string) error {
	db := r.db.WithContext(ctx)
	task, err := findTask(db, taskID)
	if err != nil {
		return err
	}
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(task).Association("Assignees").Clear(); err != nil {
			return fmt.Errorf("clear assignees: %w", err)
		}
		if err := tx.Delete(task).Error; err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		return nil
	})
}
