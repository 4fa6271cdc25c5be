package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/ds124wfegd/courseportal/internal/database"
	"github.com/ds124wfegd/courseportal/internal/entity"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type RegisterUserRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
}

// Profile is what the signed-in user sees about themselves.
type Profile struct {
	User     *entity.User          `json:"user"`
	Course   *entity.Course        `json:"course,omitempty"`
	Waitlist *entity.WaitlistEntry `json:"waitlist,omitempty"`
}

// RegistrationPolicy controls who may register and with which role.
type RegistrationPolicy struct {
	// BlockedDomains are refused, e.g. disposable mail providers.
	BlockedDomains []string
	// AdminEmails register with the admin role.
	AdminEmails []string
}

type userService struct {
	users          database.UserRepository
	courses        database.CourseRepository
	waitlist       database.WaitlistRepository
	blockedDomains map[string]struct{}
	adminEmails    map[string]struct{}
}

func NewUserService(
	users database.UserRepository,
	courses database.CourseRepository,
	waitlist database.WaitlistRepository,
	policy RegistrationPolicy,
) UserService {
	return &userService{
		users:          users,
		courses:        courses,
		waitlist:       waitlist,
		blockedDomains: lowerSet(policy.BlockedDomains),
		adminEmails:    lowerSet(policy.AdminEmails),
	}
}

func lowerSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

func (s *userService) RegisterUser(ctx context.Context, req *RegisterUserRequest) (*entity.User, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", entity.ErrInvalidInput)
	}

	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	domain := email[strings.LastIndexByte(email, '@')+1:]
	if _, blocked := s.blockedDomains[domain]; blocked {
		return nil, fmt.Errorf("%w: email domain %s is not accepted", entity.ErrInvalidInput, domain)
	}

	role := entity.RoleUser
	if _, admin := s.adminEmails[email]; admin {
		role = entity.RoleAdmin
	}

	user := &entity.User{
		ID:    uuid.NewString(),
		Email: email,
		Name:  name,
		Role:  role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"user_id": user.ID, "role": role}).Info("User registered")
	return user, nil
}

func (s *userService) GetUserByID(ctx context.Context, id string) (*entity.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *userService) GetProfile(ctx context.Context, id string) (*Profile, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	profile := &Profile{User: user}

	if user.Enrolled() {
		course, err := s.courses.GetByID(ctx, user.Enrollment.CourseID)
		if err != nil && !errors.Is(err, entity.ErrCourseNotFound) {
			return nil, err
		}
		profile.Course = course
	}

	entry, err := s.waitlist.GetByUser(ctx, id)
	switch {
	case err == nil:
		profile.Waitlist = entry
	case !errors.Is(err, entity.ErrNotWaitlisted):
		return nil, err
	}
	return profile, nil
}

func (s *userService) GetAllUsers(ctx context.Context) ([]*entity.User, error) {
	return s.users.GetAll(ctx)
}

func (s *userService) UpdateRole(ctx context.Context, id string, role entity.Role) (*entity.User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", entity.ErrInvalidInput, role)
	}
	if err := s.users.UpdateRole(ctx, id, role); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"user_id": id, "role": role}).Info("User role changed")
	return s.users.GetByID(ctx, id)
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil || addr.Name != "" {
		return "", fmt.Errorf("%w: invalid email address", entity.ErrInvalidInput)
	}
	return strings.ToLower(addr.Address), nil
}
