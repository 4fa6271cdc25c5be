package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ds124wfegd/courseportal/internal/database"
	"github.com/ds124wfegd/courseportal/internal/entity"
)

type contentRepository struct {
	db *sql.DB
}

func NewContentRepository(db *sql.DB) database.ContentRepository {
	return &contentRepository{db: db}
}

func (r *contentRepository) ListFAQ(ctx context.Context) ([]*entity.FAQ, error) {
	query := `SELECT id, question, answer, position, updated_at FROM faq ORDER BY position, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, wrapQuery("get faq", err)
	}
	defer rows.Close()

	var items []*entity.FAQ
	for rows.Next() {
		var f entity.FAQ
		if err := rows.Scan(&f.ID, &f.Question, &f.Answer, &f.Position, &f.UpdatedAt); err != nil {
			return nil, wrapQuery("scan faq", err)
		}
		items = append(items, &f)
	}
	return items, rows.Err()
}

func (r *contentRepository) CreateFAQ(ctx context.Context, faq *entity.FAQ) error {
	faq.UpdatedAt = now()

	query := `
		INSERT INTO faq (question, answer, position, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query, faq.Question, faq.Answer, faq.Position, faq.UpdatedAt).Scan(&faq.ID)
	if err != nil {
		return wrapQuery("create faq", err)
	}
	return nil
}

func (r *contentRepository) UpdateFAQ(ctx context.Context, faq *entity.FAQ) error {
	faq.UpdatedAt = now()

	query := `
		UPDATE faq SET question = $1, answer = $2, position = $3, updated_at = $4
		WHERE id = $5
	`
	result, err := r.db.ExecContext(ctx, query, faq.Question, faq.Answer, faq.Position, faq.UpdatedAt, faq.ID)
	if err != nil {
		return wrapQuery("update faq", err)
	}
	return expectRow(result, entity.ErrFAQNotFound)
}

func (r *contentRepository) DeleteFAQ(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM faq WHERE id = $1`, id)
	if err != nil {
		return wrapQuery("delete faq", err)
	}
	return expectRow(result, entity.ErrFAQNotFound)
}

func (r *contentRepository) GetMaintenance(ctx context.Context) (*entity.MaintenanceState, error) {
	query := `SELECT is_active, activated_at, activated_by, reason FROM maintenance_break WHERE id = 1`
	return r.scanMaintenance(r.db.QueryRowContext(ctx, query))
}

func (r *contentRepository) SetMaintenance(ctx context.Context, active bool, by, reason string) (*entity.MaintenanceState, error) {
	query := `
		UPDATE maintenance_break
		SET is_active = $1,
			activated_at = CASE WHEN $1 THEN $2::timestamptz ELSE NULL END,
			activated_by = CASE WHEN $1 THEN $3 ELSE NULL END,
			reason = CASE WHEN $1 THEN NULLIF($4, '') ELSE NULL END
		WHERE id = 1
		RETURNING is_active, activated_at, activated_by, reason
	`
	return r.scanMaintenance(r.db.QueryRowContext(ctx, query, active, now(), by, reason))
}

func (r *contentRepository) scanMaintenance(row *sql.Row) (*entity.MaintenanceState, error) {
	var (
		state       entity.MaintenanceState
		activatedAt sql.NullTime
		activatedBy sql.NullString
		reason      sql.NullString
	)
	if err := row.Scan(&state.Active, &activatedAt, &activatedBy, &reason); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &entity.MaintenanceState{}, nil
		}
		return nil, wrapQuery("get maintenance state", err)
	}
	if activatedAt.Valid {
		t := activatedAt.Time
		state.ActivatedAt = &t
	}
	state.ActivatedBy = activatedBy.String
	state.Reason = reason.String
	return &state, nil
}

func expectRow(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return wrapQuery("read affected rows", err)
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
