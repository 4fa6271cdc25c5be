package entity

import (
	"fmt"
	"strings"
	"time"
)

// SlotKind identifies which seat counter of a course a slot label maps to.
type SlotKind string

const (
	SlotKindSingle      SlotKind = "single"
	SlotKindBeforeLunch SlotKind = "before_lunch"
	SlotKindAfterLunch  SlotKind = "after_lunch"
	SlotKindLast        SlotKind = "last"
)

func (k SlotKind) Valid() bool {
	switch k {
	case SlotKindSingle, SlotKindBeforeLunch, SlotKindAfterLunch, SlotKindLast:
		return true
	}
	return false
}

// Slot is one time slot of a course with its own seat counter.
type Slot struct {
	Kind      SlotKind `json:"kind" db:"kind"`
	Label     string   `json:"label" db:"label"`
	Remaining int      `json:"remaining" db:"remaining_seats"`
}

type Course struct {
	ID          int64     `json:"id" db:"id"`
	LineID      string    `json:"line_id" db:"line_id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	Slots       []Slot    `json:"slots"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// SlotRef is a resolved slot: its position in Course.Slots.
type SlotRef struct {
	Index int
	Kind  SlotKind
	Label string
}

// ResolveSlot maps a slot label to the course's counter. Labels are compared
// after trimming surrounding whitespace; matching is otherwise exact.
func (c *Course) ResolveSlot(label string) (SlotRef, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return SlotRef{}, ErrInvalidSlot
	}
	for i, s := range c.Slots {
		if s.Label == label {
			return SlotRef{Index: i, Kind: s.Kind, Label: s.Label}, nil
		}
	}
	return SlotRef{}, ErrInvalidSlot
}

// Remaining returns the seat counter behind ref.
func (c *Course) Remaining(ref SlotRef) int {
	return c.Slots[ref.Index].Remaining
}

// SeatStatus returns label -> remaining seats.
func (c *Course) SeatStatus() map[string]int {
	status := make(map[string]int, len(c.Slots))
	for _, s := range c.Slots {
		status[s.Label] = s.Remaining
	}
	return status
}

// ValidateSlots checks a slot configuration once, when a course is created or
// reconfigured, so requests never have to guess what a label means.
// A course has either exactly one single slot or 1..3 distinct legacy slots.
func ValidateSlots(slots []Slot) error {
	if len(slots) == 0 {
		return fmt.Errorf("%w: course needs at least one slot", ErrInvalidInput)
	}

	labels := make(map[string]struct{}, len(slots))
	kinds := make(map[SlotKind]struct{}, len(slots))
	for i := range slots {
		s := &slots[i]
		s.Label = strings.TrimSpace(s.Label)
		if s.Kind == "" {
			s.Kind = SlotKindSingle
		}
		if !s.Kind.Valid() {
			return fmt.Errorf("%w: unknown slot kind %q", ErrInvalidInput, s.Kind)
		}
		if s.Label == "" {
			return fmt.Errorf("%w: slot %d has no label", ErrInvalidInput, i)
		}
		if s.Remaining < 0 {
			return ErrInvalidSeatCount
		}
		if _, dup := labels[s.Label]; dup {
			return fmt.Errorf("%w: duplicate slot label %q", ErrInvalidInput, s.Label)
		}
		if _, dup := kinds[s.Kind]; dup {
			return fmt.Errorf("%w: duplicate slot kind %q", ErrInvalidInput, s.Kind)
		}
		labels[s.Label] = struct{}{}
		kinds[s.Kind] = struct{}{}
	}

	if _, single := kinds[SlotKindSingle]; single && len(slots) > 1 {
		return fmt.Errorf("%w: a single-slot course cannot have other slots", ErrInvalidInput)
	}
	return nil
}

// Line groups courses of one study programme.
type Line struct {
	ID          string `json:"id" db:"id"`
	Title       string `json:"title" db:"title"`
	Description string `json:"description" db:"description"`
	Color       string `json:"color" db:"color"`
}

type LineWithCourses struct {
	Line
	Courses []*Course `json:"courses"`
}
