package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/ds124wfegd/courseportal/internal/database"
	"github.com/ds124wfegd/courseportal/internal/entity"
	"github.com/sirupsen/logrus"
)

type FAQRequest struct {
	Question string `json:"question" binding:"required"`
	Answer   string `json:"answer" binding:"required"`
	Position int    `json:"position"`
}

type contentService struct {
	content database.ContentRepository
}

func NewContentService(content database.ContentRepository) ContentService {
	return &contentService{content: content}
}

func (s *contentService) ListFAQ(ctx context.Context) ([]*entity.FAQ, error) {
	return s.content.ListFAQ(ctx)
}

func (s *contentService) CreateFAQ(ctx context.Context, req *FAQRequest) (*entity.FAQ, error) {
	faq, err := faqFromRequest(req)
	if err != nil {
		return nil, err
	}
	if err := s.content.CreateFAQ(ctx, faq); err != nil {
		return nil, err
	}
	return faq, nil
}

func (s *contentService) UpdateFAQ(ctx context.Context, id int64, req *FAQRequest) (*entity.FAQ, error) {
	faq, err := faqFromRequest(req)
	if err != nil {
		return nil, err
	}
	faq.ID = id
	if err := s.content.UpdateFAQ(ctx, faq); err != nil {
		return nil, err
	}
	return faq, nil
}

func (s *contentService) DeleteFAQ(ctx context.Context, id int64) error {
	return s.content.DeleteFAQ(ctx, id)
}

func (s *contentService) GetMaintenance(ctx context.Context) (*entity.MaintenanceState, error) {
	return s.content.GetMaintenance(ctx)
}

func (s *contentService) SetMaintenance(ctx context.Context, active bool, by, reason string) (*entity.MaintenanceState, error) {
	state, err := s.content.SetMaintenance(ctx, active, by, strings.TrimSpace(reason))
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"active": active, "by": by, "reason": state.Reason}).Warn("Maintenance mode changed")
	return state, nil
}

func faqFromRequest(req *FAQRequest) (*entity.FAQ, error) {
	faq := &entity.FAQ{
		Question: strings.TrimSpace(req.Question),
		Answer:   strings.TrimSpace(req.Answer),
		Position: req.Position,
	}
	if faq.Question == "" || faq.Answer == "" {
		return nil, fmt.Errorf("%w: question and answer are required", entity.ErrInvalidInput)
	}
	return faq, nil
}
