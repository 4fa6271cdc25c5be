package repository

import (
	"context"
	"testing"

	"github.com/ds124wfegd/courseportal/internal/entity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresDuplicateEmail(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewUserRepository(db)

	require.NoError(t, repo.Create(ctx, &entity.User{ID: uuid.NewString(), Email: "ann@example.com", Name: "Ann", Role: entity.RoleUser}))

	err := repo.Create(ctx, &entity.User{ID: uuid.NewString(), Email: "ann@example.com", Name: "Ann", Role: entity.RoleUser})
	assert.ErrorIs(t, err, entity.ErrEmailTaken)
}
