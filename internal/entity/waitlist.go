package entity

import "time"

type WaitlistEntry struct {
	ID         int64     `json:"id" db:"id"`
	UserID     string    `json:"user_id" db:"user_id"`
	CourseID   int64     `json:"course_id" db:"course_id"`
	SlotLabel  string    `json:"slot_label" db:"slot_label"`
	SideOption string    `json:"side_option,omitempty" db:"side_option"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// WaitlistEntryWithUser is the admin view of an entry, with its 1-based
// position inside the (course, slot) queue.
type WaitlistEntryWithUser struct {
	WaitlistEntry
	UserName  string `json:"user_name"`
	UserEmail string `json:"user_email"`
	Position  int    `json:"position"`
}

// Promotion records a waitlisted user who was given a vacated seat.
type Promotion struct {
	UserID     string `json:"user_id"`
	CourseID   int64  `json:"course_id"`
	SlotLabel  string `json:"slot_label"`
	Email      string `json:"-"`
	Name       string `json:"-"`
	CourseName string `json:"-"`
}

// SlotBacklog is a slot that has free seats while users still wait for it.
type SlotBacklog struct {
	CourseID  int64  `json:"course_id"`
	SlotLabel string `json:"slot_label"`
	Remaining int    `json:"remaining"`
	Waiting   int    `json:"waiting"`
}
