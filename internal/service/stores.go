package service

import (
	"context"
	"errors"

	"taskcal/internal/model"
)

// ErrInvalidInput marks a request rejected for missing or malformed fields.
var ErrInvalidInput = errors.New("invalid input")

// TaskStore is the task persistence the calendar writes through. It is
// satisfied by repository.TaskRepository and by the HTTP client.
type TaskStore interface {
	ListForUser(ctx context.Context, user *model.User) ([]model.Task, error)
	FindByID(ctx context.Context, taskID string) (*model.Task, error)
	UpdateOccupancy(ctx context.Context, taskID string, change model.OccupancyChange, actorID string) (*model.Task, error)
}

type UserStore interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

type MeetingLister interface {
	ListForUser(ctx context.Context, userID string) ([]model.Meeting, error)
}
