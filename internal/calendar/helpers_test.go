package calendar

import (
	"time"

	"taskcal/internal/model"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time {
	return &t
}

func boundedTask(start, deadline time.Time) model.Task {
	return model.Task{
		ID:        "task-1",
		Title:     "Write report",
		Status:    model.StatusInProgress,
		Priority:  model.PriorityMedium,
		StartDate: ptr(start),
		Deadline:  ptr(deadline),
	}
}
