package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ds124wfegd/courseportal/internal/database"
	"github.com/ds124wfegd/courseportal/internal/entity"
	"github.com/sirupsen/logrus"
)

var lineIDPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

type CreateLineRequest struct {
	ID          string `json:"id" binding:"required"`
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

type CreateCourseRequest struct {
	LineID      string        `json:"line_id" binding:"required"`
	Name        string        `json:"name" binding:"required"`
	Description string        `json:"description"`
	Slots       []entity.Slot `json:"slots" binding:"required"`
}

// UpdateCourseRequest changes descriptive fields; seats go through the
// seat override endpoint.
type UpdateCourseRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type catalogService struct {
	courses database.CourseRepository
}

func NewCatalogService(courses database.CourseRepository) CatalogService {
	return &catalogService{courses: courses}
}

func (s *catalogService) GetLines(ctx context.Context) ([]*entity.Line, error) {
	return s.courses.GetLines(ctx)
}

func (s *catalogService) GetLineWithCourses(ctx context.Context, lineID string) (*entity.LineWithCourses, error) {
	line, err := s.courses.GetLine(ctx, lineID)
	if err != nil {
		return nil, err
	}

	courses, err := s.courses.GetByLine(ctx, lineID)
	if err != nil {
		return nil, fmt.Errorf("failed to get courses of line %s: %w", lineID, err)
	}
	if courses == nil {
		courses = []*entity.Course{}
	}
	return &entity.LineWithCourses{Line: *line, Courses: courses}, nil
}

func (s *catalogService) CreateLine(ctx context.Context, req *CreateLineRequest) (*entity.Line, error) {
	line := &entity.Line{
		ID:          strings.TrimSpace(req.ID),
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Color:       strings.TrimSpace(req.Color),
	}
	if !lineIDPattern.MatchString(line.ID) {
		return nil, fmt.Errorf("%w: line id must be a lowercase slug", entity.ErrInvalidInput)
	}
	if line.Title == "" {
		return nil, fmt.Errorf("%w: line title is required", entity.ErrInvalidInput)
	}

	if err := s.courses.CreateLine(ctx, line); err != nil {
		return nil, err
	}
	logrus.WithField("line_id", line.ID).Info("Line created")
	return line, nil
}

func (s *catalogService) GetCourse(ctx context.Context, id int64) (*entity.Course, error) {
	return s.courses.GetByID(ctx, id)
}

func (s *catalogService) GetAllCourses(ctx context.Context) ([]*entity.Course, error) {
	return s.courses.GetAll(ctx)
}

func (s *catalogService) CreateCourse(ctx context.Context, req *CreateCourseRequest) (*entity.Course, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: course name is required", entity.ErrInvalidInput)
	}

	slots := append([]entity.Slot(nil), req.Slots...)
	if err := entity.ValidateSlots(slots); err != nil {
		return nil, err
	}

	course := &entity.Course{
		LineID:      strings.TrimSpace(req.LineID),
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Slots:       slots,
	}
	if err := s.courses.Create(ctx, course); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"course_id": course.ID,
		"line_id":   course.LineID,
		"slots":     len(course.Slots),
	}).Info("Course created")
	return course, nil
}

func (s *catalogService) UpdateCourse(ctx context.Context, id int64, req *UpdateCourseRequest) (*entity.Course, error) {
	course, err := s.courses.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: course name cannot be empty", entity.ErrInvalidInput)
		}
		course.Name = name
	}
	if req.Description != nil {
		course.Description = strings.TrimSpace(*req.Description)
	}

	if err := s.courses.Update(ctx, course); err != nil {
		return nil, err
	}
	return course, nil
}
