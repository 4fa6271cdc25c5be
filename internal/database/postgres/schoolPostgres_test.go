package repository

import (
	"context"
	"testing"

	"github.com/ds124wfegd/courseportal/internal/entity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresSchools(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewSchoolRepository(db)

	nord := &entity.School{ID: uuid.NewString(), Name: "Nordby", Active: true}
	require.NoError(t, repo.Create(ctx, nord))
	require.NoError(t, repo.Create(ctx, &entity.School{ID: uuid.NewString(), Name: "Alpha", Active: true}))

	err := repo.Create(ctx, &entity.School{ID: uuid.NewString(), Name: "Nordby", Active: true})
	assert.ErrorIs(t, err, entity.ErrSchoolExists)

	nord.Active = false
	require.NoError(t, repo.Update(ctx, nord))

	active, err := repo.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Alpha", active[0].Name)

	all, err := repo.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Nordby", all[1].Name)
	assert.False(t, all[1].Active)

	got, err := repo.GetByName(ctx, "Nordby")
	require.NoError(t, err)
	assert.Equal(t, nord.ID, got.ID)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, entity.ErrSchoolNotFound)
	assert.ErrorIs(t, repo.Update(ctx, &entity.School{ID: "missing", Name: "X"}), entity.ErrSchoolNotFound)
}

func TestPostgresMaintenanceReason(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewContentRepository(db)

	state, err := repo.SetMaintenance(ctx, true, "admin@example.com", "schedule import")
	require.NoError(t, err)
	assert.Equal(t, "schedule import", state.Reason)

	state, err = repo.SetMaintenance(ctx, false, "admin@example.com", "")
	require.NoError(t, err)
	assert.False(t, state.Active)
	assert.Empty(t, state.Reason)
}
