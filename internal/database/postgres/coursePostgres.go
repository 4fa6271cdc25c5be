package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ds124wfegd/courseportal/internal/database"
	"github.com/ds124wfegd/courseportal/internal/entity"
	"github.com/lib/pq"
)

type courseRepository struct {
	db *sql.DB
}

func NewCourseRepository(db *sql.DB) database.CourseRepository {
	return &courseRepository{db: db}
}

func (r *courseRepository) GetLines(ctx context.Context) ([]*entity.Line, error) {
	query := `SELECT id, title, description, color FROM lines ORDER BY title`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, wrapQuery("get lines", err)
	}
	defer rows.Close()

	var lines []*entity.Line
	for rows.Next() {
		var line entity.Line
		if err := rows.Scan(&line.ID, &line.Title, &line.Description, &line.Color); err != nil {
			return nil, wrapQuery("scan line", err)
		}
		lines = append(lines, &line)
	}
	return lines, rows.Err()
}

func (r *courseRepository) GetLine(ctx context.Context, id string) (*entity.Line, error) {
	query := `SELECT id, title, description, color FROM lines WHERE id = $1`

	var line entity.Line
	err := r.db.QueryRowContext(ctx, query, id).Scan(&line.ID, &line.Title, &line.Description, &line.Color)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entity.ErrLineNotFound
		}
		return nil, wrapQuery("get line", err)
	}
	return &line, nil
}

func (r *courseRepository) CreateLine(ctx context.Context, line *entity.Line) error {
	query := `INSERT INTO lines (id, title, description, color) VALUES ($1, $2, $3, $4)`

	_, err := r.db.ExecContext(ctx, query, line.ID, line.Title, line.Description, line.Color)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: line %q already exists", entity.ErrInvalidInput, line.ID)
		}
		return wrapQuery("create line", err)
	}
	return nil
}

// Create inserts the course and its slots in one transaction.
func (r *courseRepository) Create(ctx context.Context, course *entity.Course) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return wrapQuery("begin transaction", err)
	}
	defer tx.Rollback()

	ts := now()
	query := `
		INSERT INTO courses (line_id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err = tx.QueryRowContext(ctx, query,
		course.LineID,
		course.Name,
		course.Description,
		ts,
		ts,
	).Scan(&course.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return entity.ErrLineNotFound
		}
		return wrapQuery("create course", err)
	}

	slotQuery := `
		INSERT INTO course_slots (course_id, position, kind, label, remaining_seats)
		VALUES ($1, $2, $3, $4, $5)
	`
	for i, slot := range course.Slots {
		if _, err := tx.ExecContext(ctx, slotQuery, course.ID, i, slot.Kind, slot.Label, slot.Remaining); err != nil {
			return wrapQuery("create course slot", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return wrapQuery("commit transaction", err)
	}

	course.CreatedAt = ts
	course.UpdatedAt = ts
	return nil
}

func (r *courseRepository) GetByID(ctx context.Context, id int64) (*entity.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE id = $1`

	course, err := scanCourse(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entity.ErrCourseNotFound
		}
		return nil, wrapQuery("get course", err)
	}

	if err := loadSlots(ctx, r.db, course); err != nil {
		return nil, wrapQuery("get course slots", err)
	}
	return course, nil
}

func (r *courseRepository) GetByLine(ctx context.Context, lineID string) ([]*entity.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE line_id = $1 ORDER BY name, id`
	return r.list(ctx, query, lineID)
}

func (r *courseRepository) GetAll(ctx context.Context) ([]*entity.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses ORDER BY line_id, name, id`
	return r.list(ctx, query)
}

func (r *courseRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.Course, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapQuery("get courses", err)
	}
	defer rows.Close()

	var (
		courses []*entity.Course
		ids     []int64
		byID    = make(map[int64]*entity.Course)
	)
	for rows.Next() {
		course, err := scanCourse(rows)
		if err != nil {
			return nil, wrapQuery("scan course", err)
		}
		courses = append(courses, course)
		ids = append(ids, course.ID)
		byID[course.ID] = course
	}
	if err := rows.Err(); err != nil {
		return nil, wrapQuery("iterate courses", err)
	}
	if len(ids) == 0 {
		return courses, nil
	}

	slotRows, err := r.db.QueryContext(ctx, `
		SELECT course_id, kind, label, remaining_seats
		FROM course_slots
		WHERE course_id = ANY($1)
		ORDER BY course_id, position
	`, pq.Array(ids))
	if err != nil {
		return nil, wrapQuery("get course slots", err)
	}
	defer slotRows.Close()

	for slotRows.Next() {
		var (
			courseID int64
			slot     entity.Slot
		)
		if err := slotRows.Scan(&courseID, &slot.Kind, &slot.Label, &slot.Remaining); err != nil {
			return nil, wrapQuery("scan course slot", err)
		}
		if course, ok := byID[courseID]; ok {
			course.Slots = append(course.Slots, slot)
		}
	}
	return courses, slotRows.Err()
}

func (r *courseRepository) Update(ctx context.Context, course *entity.Course) error {
	query := `
		UPDATE courses
		SET name = $1, description = $2, updated_at = $3
		WHERE id = $4
	`
	ts := now()
	result, err := r.db.ExecContext(ctx, query, course.Name, course.Description, ts, course.ID)
	if err != nil {
		return wrapQuery("update course", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return wrapQuery("update course", err)
	}
	if rows == 0 {
		return entity.ErrCourseNotFound
	}
	course.UpdatedAt = ts
	return nil
}

func (r *courseRepository) GetSlotBacklog(ctx context.Context) ([]*entity.SlotBacklog, error) {
	query := `
		SELECT s.course_id, s.label, s.remaining_seats, COUNT(w.id)
		FROM course_slots s
		JOIN waitlist w ON w.course_id = s.course_id AND w.slot_label = s.label
		WHERE s.remaining_seats > 0
		GROUP BY s.course_id, s.label, s.remaining_seats
		ORDER BY s.course_id, s.label
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, wrapQuery("get slot backlog", err)
	}
	defer rows.Close()

	var backlog []*entity.SlotBacklog
	for rows.Next() {
		var b entity.SlotBacklog
		if err := rows.Scan(&b.CourseID, &b.SlotLabel, &b.Remaining, &b.Waiting); err != nil {
			return nil, wrapQuery("scan slot backlog", err)
		}
		backlog = append(backlog, &b)
	}
	return backlog, rows.Err()
}
