package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ds124wfegd/courseportal/internal/database"
	"github.com/ds124wfegd/courseportal/internal/entity"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type SchoolRequest struct {
	Name string `json:"name" binding:"required"`
}

// UpdateSchoolRequest changes only the fields that are set.
type UpdateSchoolRequest struct {
	Name   *string `json:"name"`
	Active *bool   `json:"active"`
}

type schoolService struct {
	schools database.SchoolRepository
}

func NewSchoolService(schools database.SchoolRepository) SchoolService {
	return &schoolService{schools: schools}
}

func (s *schoolService) ListSchools(ctx context.Context, includeInactive bool) ([]*entity.School, error) {
	return s.schools.List(ctx, includeInactive)
}

func (s *schoolService) CreateSchool(ctx context.Context, req *SchoolRequest) (*entity.School, bool, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, false, fmt.Errorf("%w: school name is required", entity.ErrInvalidInput)
	}

	existing, err := s.schools.GetByName(ctx, name)
	switch {
	case err == nil:
		if existing.Active {
			return nil, false, fmt.Errorf("%w: %s", entity.ErrSchoolExists, name)
		}
		existing.Active = true
		if err := s.schools.Update(ctx, existing); err != nil {
			return nil, false, err
		}
		logrus.WithField("school_id", existing.ID).Info("School reactivated")
		return existing, true, nil
	case !errors.Is(err, entity.ErrSchoolNotFound):
		return nil, false, err
	}

	school := &entity.School{ID: uuid.NewString(), Name: name, Active: true}
	if err := s.schools.Create(ctx, school); err != nil {
		return nil, false, err
	}

	logrus.WithField("school_id", school.ID).Info("School created")
	return school, false, nil
}

func (s *schoolService) UpdateSchool(ctx context.Context, id string, req *UpdateSchoolRequest) (*entity.School, error) {
	school, err := s.schools.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: school name cannot be empty", entity.ErrInvalidInput)
		}
		school.Name = name
	}
	if req.Active != nil {
		school.Active = *req.Active
	}

	if err := s.schools.Update(ctx, school); err != nil {
		return nil, err
	}
	return school, nil
}

func (s *schoolService) DeactivateSchool(ctx context.Context, id string) error {
	school, err := s.schools.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !school.Active {
		return nil
	}

	school.Active = false
	if err := s.schools.Update(ctx, school); err != nil {
		return err
	}

	logrus.WithField("school_id", id).Info("School deactivated")
	return nil
}
