package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"taskcal/internal/model"
)

// MeetingRepository handles CRUD for meetings and their participants.
type MeetingRepository struct {
	db *gorm.DB
}

func NewMeetingRepository(db *gorm.DB) *MeetingRepository {
	return &MeetingRepository{db: db}
}

func (r *MeetingRepository) Create(ctx context.Context, meeting *model.Meeting) error {
	if err := r.db.WithContext(ctx).Create(meeting).Error; err != nil {
		return fmt.Errorf("create meeting: %w", err)
	}
	return nil
}

func (r *MeetingRepository) FindByID(ctx context.Context, id string) (*model.Meeting, error) {
	var meeting model.Meeting
	if err := r.db.WithContext(ctx).Preload("Participants").First(&meeting, "id = ?", id).Error; err != nil {
		return nil, translate(err, "find meeting "+id)
	}
	return &meeting, nil
}

// List returns every meeting ordered by start.
func (r *MeetingRepository) List(ctx context.Context) ([]model.Meeting, error) {
	var meetings []model.Meeting
	if err := r.db.WithContext(ctx).Preload("Participants").
		Order("starts_at ASC, id ASC").Find(&meetings).Error; err != nil {
		return nil, translate(err, "list meetings")
	}
	return meetings, nil
}

// ListForUser returns meetings the user organizes or attends, ordered by start.
func (r *MeetingRepository) ListForUser(ctx context.Context, userID string) ([]model.Meeting, error) {
	var meetings []model.Meeting
	err := r.db.WithContext(ctx).Preload("Participants").
		Where("organizer_id = ? OR id IN (?)", userID,
			r.db.Table("meeting_participants").Select("meeting_id").Where("user_id = ?", userID)).
		Order("starts_at ASC, id ASC").
		Find(&meetings).Error
	if err != nil {
		return nil, translate(err, "list meetings")
	}
	return meetings, nil
}

// Update saves the meeting fields and replaces its participant list.
func (r *MeetingRepository) Update(ctx context.Context, meeting *model.Meeting) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Meeting
		if err := tx.First(&existing, "id = ?", meeting.ID).Error; err != nil {
			return translate(err, "find meeting "+meeting.ID)
		}
		cols := map[string]any{
			"title":       meeting.Title,
			"description": meeting.Description,
			"starts_at":   meeting.Start,
			"ends_at":     meeting.End,
			"join_link":   meeting.JoinLink,
			"rrule":       meeting.RRule,
		}
		if err := tx.Model(&existing).Updates(cols).Error; err != nil {
			return translate(err, "update meeting")
		}
		participants := tx.Model(&existing).Association("Participants")
		if len(meeting.Participants) == 0 {
			if err := participants.Clear(); err != nil {
				return fmt.Errorf("clear participants: %w", err)
			}
			return nil
		}
		if err := participants.Replace(meeting.Participants); err != nil {
			return fmt.Errorf("replace participants: %w", err)
		}
		return nil
	})
}

func (r *MeetingRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var meeting model.Meeting
		if err := tx.First(&meeting, "id = ?", id).Error; err != nil {
			return translate(err, "find meeting "+id)
		}
		if err := tx.Model(&meeting).Association("Participants").Clear(); err != nil {
			return fmt.Errorf("clear participants: %w", err)
		}
		if err := tx.Delete(&meeting).Error; err != nil {
			return fmt.Errorf("delete meeting: %w", err)
		}
		return nil
	})
}
