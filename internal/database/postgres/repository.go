// Package repository implements the database interfaces on PostgreSQL
// through database/sql and lib/pq.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ds124wfegd/courseportal/internal/entity"
	"github.com/lib/pq"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func isUniqueViolation(err error) bool {
	return hasCode(err, uniqueViolation)
}

func isForeignKeyViolation(err error) bool {
	return hasCode(err, foreignKeyViolation)
}

func hasCode(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == code
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

const userColumns = `id, email, name, role, enrolled_course_id, enrolled_slot_label, enrolled_side_option, created_at`

func scanUser(row rowScanner) (*entity.User, error) {
	var (
		user       entity.User
		courseID   sql.NullInt64
		slotLabel  sql.NullString
		sideOption sql.NullString
	)
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Role,
		&courseID,
		&slotLabel,
		&sideOption,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if courseID.Valid && slotLabel.Valid {
		user.Enrollment = &entity.Enrollment{
			CourseID:   courseID.Int64,
			SlotLabel:  slotLabel.String,
			SideOption: sideOption.String,
		}
	}
	return &user, nil
}

const waitlistColumns = `id, user_id, course_id, slot_label, side_option, created_at`

func scanWaitlistEntry(row rowScanner) (*entity.WaitlistEntry, error) {
	var (
		entry      entity.WaitlistEntry
		sideOption sql.NullString
	)
	err := row.Scan(
		&entry.ID,
		&entry.UserID,
		&entry.CourseID,
		&entry.SlotLabel,
		&sideOption,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	entry.SideOption = sideOption.String
	return &entry, nil
}

const courseColumns = `id, line_id, name, description, created_at, updated_at`

func scanCourse(row rowScanner) (*entity.Course, error) {
	var course entity.Course
	err := row.Scan(
		&course.ID,
		&course.LineID,
		&course.Name,
		&course.Description,
		&course.CreatedAt,
		&course.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &course, nil
}

// loadSlots fills course.Slots in configured order.
func loadSlots(ctx context.Context, q querier, course *entity.Course) error {
	rows, err := q.QueryContext(ctx,
		`SELECT kind, label, remaining_seats FROM course_slots WHERE course_id = $1 ORDER BY position`,
		course.ID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	course.Slots = course.Slots[:0]
	for rows.Next() {
		var slot entity.Slot
		if err := rows.Scan(&slot.Kind, &slot.Label, &slot.Remaining); err != nil {
			return err
		}
		course.Slots = append(course.Slots, slot)
	}
	return rows.Err()
}

func now() time.Time {
	return time.Now().UTC()
}

func wrapQuery(op string, err error) error {
	return fmt.Errorf("failed to %s: %w", op, err)
}
