package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskcal/internal/calendar"
	"taskcal/internal/model"
	"taskcal/internal/repository"
)

// MeetingInput carries the editable fields of a meeting.
type MeetingInput struct {
	Title          string
	Description    string
	Start          time.Time
	End            time.Time
	JoinLink       string
	RRule          string
	ParticipantIDs []string
}

// MeetingService validates and stores meetings.
type MeetingService struct {
	meetingRepo *repository.MeetingRepository
	userRepo    *repository.UserRepository
	linkBase    string
	now         func() time.Time
}

func NewMeetingService(meetingRepo *repository.MeetingRepository, userRepo *repository.UserRepository, linkBase string) *MeetingService {
	return &MeetingService{
		meetingRepo: meetingRepo,
		userRepo:    userRepo,
		linkBase:    strings.TrimRight(linkBase, "/"),
		now:         time.Now,
	}
}

func (s *MeetingService) Create(ctx context.Context, organizerID string, input MeetingInput) (*model.Meeting, error) {
	if _, err := s.userRepo.FindByID(ctx, organizerID); err != nil {
		return nil, fmt.Errorf("organizer: %w", err)
	}
	meeting := model.Meeting{OrganizerID: organizerID}
	if err := s.fill(ctx, &meeting, input); err != nil {
		return nil, err
	}
	if meeting.JoinLink == "" {
		meeting.JoinLink = s.joinLink()
	}
	if err := s.meetingRepo.Create(ctx, &meeting); err != nil {
		return nil, err
	}
	return &meeting, nil
}

// Update replaces the meeting's fields and participants.
func (s *MeetingService) Update(ctx context.Context, id string, input MeetingInput) (*model.Meeting, error) {
	meeting, err := s.meetingRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.fill(ctx, meeting, input); err != nil {
		return nil, err
	}
	if meeting.JoinLink == "" {
		meeting.JoinLink = s.joinLink()
	}
	if err := s.meetingRepo.Update(ctx, meeting); err != nil {
		return nil, err
	}
	return s.meetingRepo.FindByID(ctx, id)
}

func (s *MeetingService) Get(ctx context.Context, id string) (*model.Meeting, error) {
	return s.meetingRepo.FindByID(ctx, id)
}

func (s *MeetingService) List(ctx context.Context) ([]model.Meeting, error) {
	return s.meetingRepo.List(ctx)
}

func (s *MeetingService) ListForUser(ctx context.Context, userID string) ([]model.Meeting, error) {
	return s.meetingRepo.ListForUser(ctx, userID)
}

func (s *MeetingService) Delete(ctx context.Context, id string) error {
	return s.meetingRepo.Delete(ctx, id)
}

func (s *MeetingService) fill(ctx context.Context, m *model.Meeting, input MeetingInput) error {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if input.Start.IsZero() {
		return &calendar.InvalidDateError{Field: "start"}
	}
	if input.End.IsZero() {
		return &calendar.InvalidDateError{Field: "end"}
	}
	if !input.End.After(input.Start) {
		return &calendar.InvalidDateError{Field: "end", Value: input.End.Format(time.RFC3339)}
	}
	rule := strings.TrimSpace(input.RRule)
	if rule != "" {
		if _, err := calendar.ParseRRule(rule, input.Start); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	participants, err := s.userRepo.FindByIDs(ctx, input.ParticipantIDs)
	if err != nil {
		return fmt.Errorf("resolve participants: %w", err)
	}

	m.Title = title
	m.Description = input.Description
	m.Start = input.Start
	m.End = input.End
	m.JoinLink = strings.TrimSpace(input.JoinLink)
	m.RRule = rule
	m.Participants = participants
	return nil
}

// joinLink builds a fresh video-room URL for a meeting without one.
func (s *MeetingService) joinLink() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:5]
	return fmt.Sprintf("%s/taskcal-%d-%s", s.linkBase, s.now().UnixMilli(), suffix)
}
