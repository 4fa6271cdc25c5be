package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ds124wfegd/courseportal/internal/database"
	"github.com/ds124wfegd/courseportal/internal/entity"
)

type enrollmentStore struct {
	db *sql.DB
}

func NewEnrollmentStore(db *sql.DB) database.EnrollmentStore {
	return &enrollmentStore{db: db}
}

// WithinTx runs fn in a READ COMMITTED transaction. Row locks taken through
// the EnrollmentTx serialize concurrent requests on the same course or user.
func (s *enrollmentStore) WithinTx(ctx context.Context, fn func(tx database.EnrollmentTx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return entity.NewTxError("begin transaction", err)
	}
	defer tx.Rollback()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return entity.NewTxError("commit transaction", err)
	}
	return nil
}

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) LockCourse(ctx context.Context, courseID int64) (*entity.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE id = $1 FOR UPDATE`

	course, err := scanCourse(t.tx.QueryRowContext(ctx, query, courseID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entity.ErrCourseNotFound
		}
		return nil, entity.NewTxError("lock course", err)
	}

	// Slot rows are only written after their course row is locked.
	if err := loadSlots(ctx, t.tx, course); err != nil {
		return nil, entity.NewTxError("load course slots", err)
	}
	return course, nil
}

func (t *pgTx) LockUser(ctx context.Context, userID string) (*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`

	user, err := scanUser(t.tx.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entity.ErrUserNotFound
		}
		return nil, entity.NewTxError("lock user", err)
	}
	return user, nil
}

func (t *pgTx) SetSeats(ctx context.Context, courseID int64, slotLabel string, remaining int) error {
	if remaining < 0 {
		return entity.ErrInvalidSeatCount
	}

	query := `UPDATE course_slots SET remaining_seats = $1 WHERE course_id = $2 AND label = $3`
	result, err := t.tx.ExecContext(ctx, query, remaining, courseID, slotLabel)
	if err != nil {
		return entity.NewTxError("update seats", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return entity.NewTxError("update seats", err)
	}
	if rows == 0 {
		return entity.ErrInvalidSlot
	}
	return nil
}

func (t *pgTx) SetEnrollment(ctx context.Context, userID string, enrollment *entity.Enrollment) error {
	var (
		courseID   sql.NullInt64
		slotLabel  sql.NullString
		sideOption sql.NullString
	)
	if enrollment != nil {
		courseID = sql.NullInt64{Int64: enrollment.CourseID, Valid: true}
		slotLabel = sql.NullString{String: enrollment.SlotLabel, Valid: true}
		sideOption = nullString(enrollment.SideOption)
	}

	query := `
		UPDATE users
		SET enrolled_course_id = $1, enrolled_slot_label = $2, enrolled_side_option = $3
		WHERE id = $4
	`
	result, err := t.tx.ExecContext(ctx, query, courseID, slotLabel, sideOption, userID)
	if err != nil {
		return entity.NewTxError("update enrollment", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return entity.NewTxError("update enrollment", err)
	}
	if rows == 0 {
		return entity.ErrUserNotFound
	}
	return nil
}

func (t *pgTx) WaitlistEntryForUser(ctx context.Context, userID string) (*entity.WaitlistEntry, error) {
	query := `SELECT ` + waitlistColumns + ` FROM waitlist WHERE user_id = $1 FOR UPDATE`

	entry, err := scanWaitlistEntry(t.tx.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, entity.NewTxError("get waitlist entry", err)
	}
	return entry, nil
}

func (t *pgTx) AddWaitlistEntry(ctx context.Context, entry *entity.WaitlistEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now()
	}

	query := `
		INSERT INTO waitlist (user_id, course_id, slot_label, side_option, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := t.tx.QueryRowContext(ctx, query,
		entry.UserID,
		entry.CourseID,
		entry.SlotLabel,
		nullString(entry.SideOption),
		entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return entity.ErrAlreadyWaitlisted
		}
		return entity.NewTxError("insert waitlist entry", err)
	}
	return nil
}

func (t *pgTx) WaitlistPosition(ctx context.Context, entry *entity.WaitlistEntry) (int, error) {
	query := `
		SELECT COUNT(*) FROM waitlist
		WHERE course_id = $1 AND slot_label = $2 AND (created_at, id) <= ($3, $4)
	`
	var position int
	err := t.tx.QueryRowContext(ctx, query,
		entry.CourseID,
		entry.SlotLabel,
		entry.CreatedAt,
		entry.ID,
	).Scan(&position)
	if err != nil {
		return 0, entity.NewTxError("count waitlist position", err)
	}
	return position, nil
}

func (t *pgTx) NextWaitlistEntry(ctx context.Context, courseID int64, slotLabel string) (*entity.WaitlistEntry, error) {
	query := `
		SELECT ` + waitlistColumns + ` FROM waitlist
		WHERE course_id = $1 AND slot_label = $2
		ORDER BY created_at, id
		LIMIT 1
		FOR UPDATE
	`
	entry, err := scanWaitlistEntry(t.tx.QueryRowContext(ctx, query, courseID, slotLabel))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, entity.NewTxError("get waitlist head", err)
	}
	return entry, nil
}

func (t *pgTx) DeleteWaitlistEntry(ctx context.Context, entryID int64) (bool, error) {
	result, err := t.tx.ExecContext(ctx, `DELETE FROM waitlist WHERE id = $1`, entryID)
	if err != nil {
		return false, entity.NewTxError("delete waitlist entry", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, entity.NewTxError("delete waitlist entry", err)
	}
	return rows > 0, nil
}

func (t *pgTx) DeleteUser(ctx context.Context, userID string) error {
	result, err := t.tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return entity.NewTxError("delete user", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return entity.NewTxError("delete user", err)
	}
	if rows == 0 {
		return entity.ErrUserNotFound
	}
	return nil
}

var _ database.EnrollmentTx = (*pgTx)(nil)

