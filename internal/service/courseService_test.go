package service

import (
	"context"
	"testing"

	"github.com/ds124wfegd/courseportal/internal/database/memory"
	"github.com/ds124wfegd/courseportal/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogCreateLine(t *testing.T) {
	ctx := context.Background()
	svc := NewCatalogService(memory.NewStore().Courses())

	tests := []struct {
		name    string
		req     CreateLineRequest
		wantErr error
	}{
		{"valid", CreateLineRequest{ID: "data-science", Title: " Data Science "}, nil},
		{"uppercase id", CreateLineRequest{ID: "Data", Title: "Data"}, entity.ErrInvalidInput},
		{"spaces in id", CreateLineRequest{ID: "data science", Title: "Data"}, entity.ErrInvalidInput},
		{"empty title", CreateLineRequest{ID: "math", Title: "  "}, entity.ErrInvalidInput},
		{"duplicate", CreateLineRequest{ID: "data-science", Title: "Again"}, entity.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, err := svc.CreateLine(ctx, &tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Data Science", line.Title)
		})
	}
}

func TestCatalogCreateCourse(t *testing.T) {
	ctx := context.Background()
	svc := NewCatalogService(memory.NewStore().Courses())
	_, err := svc.CreateLine(ctx, &CreateLineRequest{ID: "arts", Title: "Arts"})
	require.NoError(t, err)

	course, err := svc.CreateCourse(ctx, &CreateCourseRequest{
		LineID: "arts",
		Name:   " Pottery ",
		Slots: []entity.Slot{
			{Kind: entity.SlotKindBeforeLunch, Label: " before lunch ", Remaining: 5},
			{Kind: entity.SlotKindAfterLunch, Label: "after lunch", Remaining: 3},
		},
	})
	require.NoError(t, err)
	assert.NotZero(t, course.ID)
	assert.Equal(t, "Pottery", course.Name)
	assert.Equal(t, map[string]int{"before lunch": 5, "after lunch": 3}, course.SeatStatus())

	line, err := svc.GetLineWithCourses(ctx, "arts")
	require.NoError(t, err)
	require.Len(t, line.Courses, 1)
	assert.Equal(t, course.ID, line.Courses[0].ID)

	_, err = svc.CreateCourse(ctx, &CreateCourseRequest{LineID: "nope", Name: "X", Slots: []entity.Slot{{Label: "single", Remaining: 1}}})
	assert.ErrorIs(t, err, entity.ErrLineNotFound)

	_, err = svc.CreateCourse(ctx, &CreateCourseRequest{LineID: "arts", Name: "X"})
	assert.ErrorIs(t, err, entity.ErrInvalidInput)

	_, err = svc.GetLineWithCourses(ctx, "nope")
	assert.ErrorIs(t, err, entity.ErrLineNotFound)
}

func TestCatalogUpdateCourseKeepsSeats(t *testing.T) {
	ctx := context.Background()
	svc := NewCatalogService(memory.NewStore().Courses())
	_, err := svc.CreateLine(ctx, &CreateLineRequest{ID: "arts", Title: "Arts"})
	require.NoError(t, err)
	course, err := svc.CreateCourse(ctx, &CreateCourseRequest{LineID: "arts", Name: "Pottery", Slots: []entity.Slot{{Label: "single", Remaining: 4}}})
	require.NoError(t, err)

	name, desc := "Ceramics", " wheel and kiln "
	updated, err := svc.UpdateCourse(ctx, course.ID, &UpdateCourseRequest{Name: &name, Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "Ceramics", updated.Name)
	assert.Equal(t, "wheel and kiln", updated.Description)

	stored, err := svc.GetCourse(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ceramics", stored.Name)
	assert.Equal(t, 4, stored.Slots[0].Remaining)

	empty := " "
	_, err = svc.UpdateCourse(ctx, course.ID, &UpdateCourseRequest{Name: &empty})
	assert.ErrorIs(t, err, entity.ErrInvalidInput)

	_, err = svc.UpdateCourse(ctx, 404, &UpdateCourseRequest{Name: &name})
	assert.ErrorIs(t, err, entity.ErrCourseNotFound)
}
