package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ds124wfegd/courseportal/internal/database"
	"github.com/ds124wfegd/courseportal/internal/entity"
)

type waitlistRepository struct {
	db *sql.DB
}

func NewWaitlistRepository(db *sql.DB) database.WaitlistRepository {
	return &waitlistRepository{db: db}
}

// GetAll lists every entry grouped by queue, with its position in the queue.
func (r *waitlistRepository) GetAll(ctx context.Context) ([]*entity.WaitlistEntryWithUser, error) {
	query := `
		SELECT
			w.id, w.user_id, w.course_id, w.slot_label, w.side_option, w.created_at,
			u.name, u.email,
			ROW_NUMBER() OVER (PARTITION BY w.course_id, w.slot_label ORDER BY w.created_at, w.id)
		FROM waitlist w
		JOIN users u ON u.id = w.user_id
		ORDER BY w.course_id, w.slot_label, w.created_at, w.id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, wrapQuery("get waitlist", err)
	}
	defer rows.Close()

	var entries []*entity.WaitlistEntryWithUser
	for rows.Next() {
		var (
			e          entity.WaitlistEntryWithUser
			sideOption sql.NullString
		)
		err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.CourseID,
			&e.SlotLabel,
			&sideOption,
			&e.CreatedAt,
			&e.UserName,
			&e.UserEmail,
			&e.Position,
		)
		if err != nil {
			return nil, wrapQuery("scan waitlist entry", err)
		}
		e.SideOption = sideOption.String
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (r *waitlistRepository) GetByUser(ctx context.Context, userID string) (*entity.WaitlistEntry, error) {
	query := `SELECT ` + waitlistColumns + ` FROM waitlist WHERE user_id = $1`

	entry, err := scanWaitlistEntry(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entity.ErrNotWaitlisted
		}
		return nil, wrapQuery("get waitlist entry", err)
	}
	return entry, nil
}

func (r *waitlistRepository) DeleteStale(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM waitlist w
		USING users u
		WHERE u.id = w.user_id AND u.enrolled_course_id IS NOT NULL
	`
	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, wrapQuery("delete stale waitlist entries", err)
	}
	return result.RowsAffected()
}
