package database

import (
	"context"

	"github.com/ds124wfegd/courseportal/internal/entity"
)

// EnrollmentStore opens the transactions the enrollment coordinator runs in.
// Any error returned by fn rolls the whole transaction back.
type EnrollmentStore interface {
	WithinTx(ctx context.Context, fn func(tx EnrollmentTx) error) error
}

// EnrollmentTx is the lock-and-read view of the seat, enrollment and waitlist
// state inside one transaction. Lock* methods hold the row until commit.
type EnrollmentTx interface {
	LockCourse(ctx context.Context, courseID int64) (*entity.Course, error)
	LockUser(ctx context.Context, userID string) (*entity.User, error)

	SetSeats(ctx context.Context, courseID int64, slotLabel string, remaining int) error
	// SetEnrollment writes the user's enrollment; nil clears it.
	SetEnrollment(ctx context.Context, userID string, enrollment *entity.Enrollment) error

	// WaitlistEntryForUser returns nil, nil when the user is not waiting.
	WaitlistEntryForUser(ctx context.Context, userID string) (*entity.WaitlistEntry, error)
	AddWaitlistEntry(ctx context.Context, entry *entity.WaitlistEntry) error
	WaitlistPosition(ctx context.Context, entry *entity.WaitlistEntry) (int, error)
	// NextWaitlistEntry locks and returns the head of the (course, slot) queue,
	// or nil, nil when the queue is empty.
	NextWaitlistEntry(ctx context.Context, courseID int64, slotLabel string) (*entity.WaitlistEntry, error)
	DeleteWaitlistEntry(ctx context.Context, entryID int64) (bool, error)

	// DeleteUser removes the user row together with their waitlist entry.
	DeleteUser(ctx context.Context, userID string) error
}

type CourseRepository interface {
	GetLines(ctx context.Context) ([]*entity.Line, error)
	GetLine(ctx context.Context, id string) (*entity.Line, error)
	CreateLine(ctx context.Context, line *entity.Line) error

	Create(ctx context.Context, course *entity.Course) error
	GetByID(ctx context.Context, id int64) (*entity.Course, error)
	GetByLine(ctx context.Context, lineID string) ([]*entity.Course, error)
	GetAll(ctx context.Context) ([]*entity.Course, error)
	// Update changes descriptive fields only; seat counters belong to the
	// enrollment coordinator.
	Update(ctx context.Context, course *entity.Course) error

	GetSlotBacklog(ctx context.Context) ([]*entity.SlotBacklog, error)
}

type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	GetAll(ctx context.Context) ([]*entity.User, error)
	UpdateRole(ctx context.Context, id string, role entity.Role) error
}

type WaitlistRepository interface {
	GetAll(ctx context.Context) ([]*entity.WaitlistEntryWithUser, error)
	GetByUser(ctx context.Context, userID string) (*entity.WaitlistEntry, error)
	// DeleteStale removes entries of users who already hold an enrollment.
	DeleteStale(ctx context.Context) (int64, error)
}

type ContentRepository interface {
	ListFAQ(ctx context.Context) ([]*entity.FAQ, error)
	CreateFAQ(ctx context.Context, faq *entity.FAQ) error
	UpdateFAQ(ctx context.Context, faq *entity.FAQ) error
	DeleteFAQ(ctx context.Context, id int64) error

	GetMaintenance(ctx context.Context) (*entity.MaintenanceState, error)
	SetMaintenance(ctx context.Context, active bool, by, reason string) (*entity.MaintenanceState, error)
}

type SchoolRepository interface {
	// List returns active schools by name; includeInactive appends the
	// deactivated ones after them.
	List(ctx context.Context, includeInactive bool) ([]*entity.School, error)
	GetByID(ctx context.Context, id string) (*entity.School, error)
	GetByName(ctx context.Context, name string) (*entity.School, error)
	// Create fails with ErrSchoolExists when the name is taken.
	Create(ctx context.Context, school *entity.School) error
	Update(ctx context.Context, school *entity.School) error
}
