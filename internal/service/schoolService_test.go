package service

import (
	"context"
	"testing"

	"github.com/ds124wfegd/courseportal/internal/database/memory"
	"github.com/ds124wfegd/courseportal/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(schools []*entity.School) []string {
	out := make([]string, 0, len(schools))
	for _, s := range schools {
		out = append(out, s.Name)
	}
	return out
}

func TestSchoolLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := NewSchoolService(memory.NewStore().Schools())

	sor, reactivated, err := svc.CreateSchool(ctx, &SchoolRequest{Name: " Sørbyen "})
	require.NoError(t, err)
	assert.False(t, reactivated)
	assert.Equal(t, "Sørbyen", sor.Name)

	nord, _, err := svc.CreateSchool(ctx, &SchoolRequest{Name: "Nordby"})
	require.NoError(t, err)

	_, _, err = svc.CreateSchool(ctx, &SchoolRequest{Name: "Nordby"})
	assert.ErrorIs(t, err, entity.ErrSchoolExists)
	_, _, err = svc.CreateSchool(ctx, &SchoolRequest{Name: "  "})
	assert.ErrorIs(t, err, entity.ErrInvalidInput)

	require.NoError(t, svc.DeactivateSchool(ctx, nord.ID))
	require.NoError(t, svc.DeactivateSchool(ctx, nord.ID))
	assert.ErrorIs(t, svc.DeactivateSchool(ctx, "missing"), entity.ErrSchoolNotFound)

	active, err := svc.ListSchools(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sørbyen"}, names(active))

	all, err := svc.ListSchools(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sørbyen", "Nordby"}, names(all))

	again, reactivated, err := svc.CreateSchool(ctx, &SchoolRequest{Name: "Nordby"})
	require.NoError(t, err)
	assert.True(t, reactivated)
	assert.Equal(t, nord.ID, again.ID)
	assert.True(t, again.Active)
}

func TestUpdateSchool(t *testing.T) {
	ctx := context.Background()
	svc := NewSchoolService(memory.NewStore().Schools())

	a, _, err := svc.CreateSchool(ctx, &SchoolRequest{Name: "Alpha"})
	require.NoError(t, err)
	_, _, err = svc.CreateSchool(ctx, &SchoolRequest{Name: "Beta"})
	require.NoError(t, err)

	name := "Alpha skole"
	inactive := false
	updated, err := svc.UpdateSchool(ctx, a.ID, &UpdateSchoolRequest{Name: &name, Active: &inactive})
	require.NoError(t, err)
	assert.Equal(t, "Alpha skole", updated.Name)
	assert.False(t, updated.Active)

	taken := "Beta"
	_, err = svc.UpdateSchool(ctx, a.ID, &UpdateSchoolRequest{Name: &taken})
	assert.ErrorIs(t, err, entity.ErrSchoolExists)

	blank := " "
	_, err = svc.UpdateSchool(ctx, a.ID, &UpdateSchoolRequest{Name: &blank})
	assert.ErrorIs(t, err, entity.ErrInvalidInput)

	_, err = svc.UpdateSchool(ctx, "missing", &UpdateSchoolRequest{})
	assert.ErrorIs(t, err, entity.ErrSchoolNotFound)
}
