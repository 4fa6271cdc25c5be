package service

import (
	"context"

	"github.com/ds124wfegd/courseportal/internal/entity"
)

// EnrollmentService is the enrollment coordinator: every seat, enrollment
// and waitlist transition runs through it in a single transaction.
type EnrollmentService interface {
	Enroll(ctx context.Context, req *EnrollRequest) (*EnrollResult, error)
	Unenroll(ctx context.Context, userID string) (*UnenrollResult, error)
	LeaveWaitlist(ctx context.Context, userID string) error
	DeleteAccount(ctx context.Context, userID string) (*UnenrollResult, error)

	CourseSeatStatus(ctx context.Context, courseID int64) (map[string]int, error)
	ListWaitlist(ctx context.Context) ([]*entity.WaitlistEntryWithUser, error)

	// Административные операции
	AdminSetEnrollment(ctx context.Context, userID string, req *SetEnrollmentRequest) (*AdminEnrollmentResult, error)
	AdminSetSeats(ctx context.Context, courseID int64, req *SetSeatsRequest) (*SeatOverrideResult, error)
	AdminRemoveWaitlistEntry(ctx context.Context, entryID int64) error

	// SweepWaitlists promotes waiting users into slots that have free seats.
	SweepWaitlists(ctx context.Context) (int, error)
}

type CatalogService interface {
	GetLines(ctx context.Context) ([]*entity.Line, error)
	GetLineWithCourses(ctx context.Context, lineID string) (*entity.LineWithCourses, error)
	CreateLine(ctx context.Context, req *CreateLineRequest) (*entity.Line, error)

	GetCourse(ctx context.Context, id int64) (*entity.Course, error)
	GetAllCourses(ctx context.Context) ([]*entity.Course, error)
	CreateCourse(ctx context.Context, req *CreateCourseRequest) (*entity.Course, error)
	UpdateCourse(ctx context.Context, id int64, req *UpdateCourseRequest) (*entity.Course, error)
}

// UserService defines the interface for user operations
type UserService interface {
	RegisterUser(ctx context.Context, req *RegisterUserRequest) (*entity.User, error)
	GetUserByID(ctx context.Context, id string) (*entity.User, error)
	GetProfile(ctx context.Context, id string) (*Profile, error)
	GetAllUsers(ctx context.Context) ([]*entity.User, error)
	UpdateRole(ctx context.Context, id string, role entity.Role) (*entity.User, error)
}

type ContentService interface {
	ListFAQ(ctx context.Context) ([]*entity.FAQ, error)
	CreateFAQ(ctx context.Context, req *FAQRequest) (*entity.FAQ, error)
	UpdateFAQ(ctx context.Context, id int64, req *FAQRequest) (*entity.FAQ, error)
	DeleteFAQ(ctx context.Context, id int64) error

	GetMaintenance(ctx context.Context) (*entity.MaintenanceState, error)
	SetMaintenance(ctx context.Context, active bool, by, reason string) (*entity.MaintenanceState, error)
}

type SchoolService interface {
	ListSchools(ctx context.Context, includeInactive bool) ([]*entity.School, error)
	// CreateSchool adds a school or reactivates a deactivated one with the
	// same name; reactivated reports which happened.
	CreateSchool(ctx context.Context, req *SchoolRequest) (school *entity.School, reactivated bool, err error)
	UpdateSchool(ctx context.Context, id string, req *UpdateSchoolRequest) (*entity.School, error)
	DeactivateSchool(ctx context.Context, id string) error
}

// Notifier tells a promoted user about their new seat. It is called after
// the promoting transaction has committed.
type Notifier interface {
	NotifyPromotion(ctx context.Context, p entity.Promotion) error
}

type Services struct {
	Enrollment EnrollmentService
	Catalog    CatalogService
	User       UserService
	Content    ContentService
	School     SchoolService
}
