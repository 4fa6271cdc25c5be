package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ds124wfegd/courseportal/internal/database"
	"github.com/ds124wfegd/courseportal/internal/entity"
)

type schoolRepository struct {
	db *sql.DB
}

func NewSchoolRepository(db *sql.DB) database.SchoolRepository {
	return &schoolRepository{db: db}
}

const schoolColumns = `id, name, active, created_at`

func (r *schoolRepository) List(ctx context.Context, includeInactive bool) ([]*entity.School, error) {
	query := `SELECT ` + schoolColumns + ` FROM schools WHERE active = TRUE ORDER BY name`
	if includeInactive {
		query = `SELECT ` + schoolColumns + ` FROM schools ORDER BY active DESC, name`
	}

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, wrapQuery("list schools", err)
	}
	defer rows.Close()

	var schools []*entity.School
	for rows.Next() {
		school, err := scanSchool(rows)
		if err != nil {
			return nil, wrapQuery("scan school", err)
		}
		schools = append(schools, school)
	}
	return schools, rows.Err()
}

func (r *schoolRepository) GetByID(ctx context.Context, id string) (*entity.School, error) {
	return r.getOne(ctx, `SELECT `+schoolColumns+` FROM schools WHERE id = $1`, id)
}

func (r *schoolRepository) GetByName(ctx context.Context, name string) (*entity.School, error) {
	return r.getOne(ctx, `SELECT `+schoolColumns+` FROM schools WHERE name = $1`, name)
}

func (r *schoolRepository) getOne(ctx context.Context, query, arg string) (*entity.School, error) {
	school, err := scanSchool(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entity.ErrSchoolNotFound
		}
		return nil, wrapQuery("get school", err)
	}
	return school, nil
}

func (r *schoolRepository) Create(ctx context.Context, school *entity.School) error {
	if school.CreatedAt.IsZero() {
		school.CreatedAt = now()
	}

	query := `INSERT INTO schools (id, name, active, created_at) VALUES ($1, $2, $3, $4)`
	_, err := r.db.ExecContext(ctx, query, school.ID, school.Name, school.Active, school.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", entity.ErrSchoolExists, school.Name)
		}
		return wrapQuery("create school", err)
	}
	return nil
}

func (r *schoolRepository) Update(ctx context.Context, school *entity.School) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE schools SET name = $1, active = $2 WHERE id = $3`,
		school.Name, school.Active, school.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", entity.ErrSchoolExists, school.Name)
		}
		return wrapQuery("update school", err)
	}
	return expectRow(result, entity.ErrSchoolNotFound)
}

func scanSchool(row rowScanner) (*entity.School, error) {
	var school entity.School
	if err := row.Scan(&school.ID, &school.Name, &school.Active, &school.CreatedAt); err != nil {
		return nil, err
	}
	return &school, nil
}
