package briefings

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrInvalidProjectType = errors.New("invalid project type")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrNotFound           = errors.New("briefing not found")
)

type Notifier interface {
	SendBriefingNotification(ctx context.Context, briefing Briefing) (string, error)
	SendBriefingConfirmation(ctx context.Context, briefing Briefing) (string, error)
}

type Service struct {
	repo     Repository
	location *time.Location
	notifier Notifier
}

func NewService(repo Repository, location *time.Location, notifier Notifier) *Service {
	return &Service{
		repo:     repo,
		location: location,
		notifier: notifier,
	}
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (Briefing, error) {
	projectType := strings.ToLower(strings.TrimSpace(req.ProjectType))
	if !IsValidProjectType(projectType) {
		return Briefing{}, ErrInvalidProjectType
	}

	now := time.Now().In(s.location)
	briefing := Briefing{
		ID:             primitive.NewObjectID().Hex(),
		Company:        strings.TrimSpace(req.Company),
		ContactName:    strings.TrimSpace(req.ContactName),
		Email:          strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:          strings.TrimSpace(req.Phone),
		ProjectType:    projectType,
		BudgetRange:    strings.TrimSpace(req.BudgetRange),
		Deadline:       strings.TrimSpace(req.Deadline),
		Description:    strings.TrimSpace(req.Description),
		ReferenceLinks: trimAll(req.ReferenceLinks),
		AttachmentURLs: trimAll(req.AttachmentURLs),
		Status:         StatusNew,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Create(ctx, briefing); err != nil {
		return Briefing{}, err
	}
	return briefing, nil
}

func (s *Service) ListAdmin(ctx context.Context, filter ListFilter, limit, offset int64) ([]Briefing, int64, error) {
	filter.Status = strings.ToLower(strings.TrimSpace(filter.Status))
	if filter.Status != "" && !IsValidStatus(filter.Status) {
		return nil, 0, ErrInvalidStatus
	}

	items, err := s.repo.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Service) GetAdminByID(ctx context.Context, id string) (Briefing, error) {
	return s.repo.GetByID(ctx, strings.TrimSpace(id))
}

func (s *Service) UpdateStatus(ctx context.Context, id, status string) (Briefing, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !IsValidStatus(status) {
		return Briefing{}, ErrInvalidStatus
	}
	return s.repo.UpdateStatus(ctx, strings.TrimSpace(id), status, time.Now().In(s.location))
}

func (s *Service) NotifyAgency(ctx context.Context, briefing Briefing) error {
	if s.notifier == nil {
		return nil
	}
	_, err := s.notifier.SendBriefingNotification(ctx, briefing)
	return err
}

func (s *Service) NotifyClient(ctx context.Context, briefing Briefing) error {
	if s.notifier == nil || strings.TrimSpace(briefing.Email) == "" {
		return nil
	}
	_, err := s.notifier.SendBriefingConfirmation(ctx, briefing)
	return err
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
