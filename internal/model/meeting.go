package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Meeting is a timed event placed on the calendar exactly at Start/End.
// RRule, when set, is an RFC 5545 recurrence rule anchored at Start.
type Meeting struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	OrganizerID  string    `gorm:"index" json:"organizer_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Start        time.Time `gorm:"column:starts_at;index" json:"start"`
	End          time.Time `gorm:"column:ends_at" json:"end"`
	JoinLink     string    `json:"join_link"`
	RRule        string    `gorm:"column:rrule" json:"rrule,omitempty"`
	Participants []User    `gorm:"many2many:meeting_participants" json:"participants,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (m *Meeting) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// ParticipantIDs returns the ids of the preloaded participants.
func (m Meeting) ParticipantIDs() []string {
	ids := make([]string, 0, len(m.Participants))
	for _, p := range m.Participants {
		ids = append(ids, p.ID)
	}
	return ids
}
