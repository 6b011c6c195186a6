package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusInReview   Status = "in_review"
	StatusDone       Status = "done"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusInReview, StatusDone:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// CalendarDates is a contributor's chosen slot inside the task's
// authoritative window. It is present only when Start is set.
type CalendarDates struct {
	Start         *time.Time `json:"start,omitempty"`
	End           *time.Time `json:"end,omitempty"`
	OriginalStart *time.Time `json:"original_start,omitempty"`
	OriginalEnd   *time.Time `json:"original_end,omitempty"`
}

// Task is a unit of project work. StartDate and Deadline are the
// authoritative bounds set by the project manager.
type Task struct {
	ID                string        `gorm:"primaryKey;size:36" json:"id"`
	ProjectID         *string       `gorm:"index" json:"project_id,omitempty"`
	CreatedByID       string        `gorm:"index" json:"created_by"`
	Assignees         []User        `gorm:"many2many:task_assignees" json:"-"`
	Title             string        `json:"title"`
	Description       string        `json:"description,omitempty"`
	Status            Status        `gorm:"default:not_started;index" json:"status"`
	Priority          Priority      `gorm:"default:medium" json:"priority"`
	StartDate         *time.Time    `json:"start_date,omitempty"`
	Deadline          *time.Time    `json:"deadline,omitempty"`
	Calendar          CalendarDates `gorm:"embedded;embeddedPrefix:calendar_" json:"calendar_dates"`
	CompletionDate    *time.Time    `json:"completion_date,omitempty"`
	EstimatedDuration int           `json:"estimated_duration,omitempty"` // hours
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

func (t *Task) BeforeCreate(*gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

func (t Task) IsDone() bool {
	return t.Status == StatusDone
}

// HasOverride reports whether a contributor has placed the task on a calendar.
func (t Task) HasOverride() bool {
	return t.Calendar.Start != nil && !t.Calendar.Start.IsZero()
}

// IsAssignedTo reports whether userID is among the preloaded assignees.
func (t Task) IsAssignedTo(userID string) bool {
	for _, u := range t.Assignees {
		if u.ID == userID {
			return true
		}
	}
	return false
}
