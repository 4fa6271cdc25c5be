package entity

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAdmin     Role = "admin"
	RoleDeveloper Role = "developer"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin || r == RoleDeveloper
}

// IsStaff reports whether the role may use the admin panel.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleDeveloper
}

// Enrollment is the single active course seat a user may hold.
type Enrollment struct {
	CourseID   int64  `json:"course_id" db:"enrolled_course_id"`
	SlotLabel  string `json:"slot_label" db:"enrolled_slot_label"`
	SideOption string `json:"side_option,omitempty" db:"enrolled_side_option"`
}

type User struct {
	ID         string      `json:"id" db:"id"`
	Email      string      `json:"email" db:"email"`
	Name       string      `json:"name" db:"name"`
	Role       Role        `json:"role" db:"role"`
	Enrollment *Enrollment `json:"enrollment,omitempty"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`
}

func (u *User) Enrolled() bool {
	return u.Enrollment != nil
}
