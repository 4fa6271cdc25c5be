package service

import (
	"context"
	"testing"

	"github.com/ds124wfegd/courseportal/internal/database/memory"
	"github.com/ds124wfegd/courseportal/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserService(store *memory.Store) UserService {
	return NewUserService(store.Users(), store.Courses(), store.Waitlist(), RegistrationPolicy{
		BlockedDomains: []string{"Mailinator.com", " "},
		AdminEmails:    []string{" Head@School.no "},
	})
}

func TestRegisterUser(t *testing.T) {
	ctx := context.Background()
	svc := newUserService(memory.NewStore())

	tests := []struct {
		name    string
		req     RegisterUserRequest
		wantErr error
	}{
		{"valid", RegisterUserRequest{Name: " Ann ", Email: " Ann@Example.com "}, nil},
		{"duplicate email", RegisterUserRequest{Name: "Ann", Email: "ANN@example.com"}, entity.ErrEmailTaken},
		{"blocked domain", RegisterUserRequest{Name: "Bob", Email: "bob@mailinator.com"}, entity.ErrInvalidInput},
		{"display name", RegisterUserRequest{Name: "Bob", Email: "Bob <bob@example.com>"}, entity.ErrInvalidInput},
		{"not an address", RegisterUserRequest{Name: "Bob", Email: "bob"}, entity.ErrInvalidInput},
		{"no name", RegisterUserRequest{Name: "", Email: "bob@example.com"}, entity.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := svc.RegisterUser(ctx, &tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "ann@example.com", user.Email)
			assert.Equal(t, "Ann", user.Name)
			assert.Equal(t, entity.RoleUser, user.Role)
			assert.NotEmpty(t, user.ID)
		})
	}
}

func TestRegisterUserAdminEmails(t *testing.T) {
	ctx := context.Background()
	svc := newUserService(memory.NewStore())

	head, err := svc.RegisterUser(ctx, &RegisterUserRequest{Name: "Head", Email: "head@school.no"})
	require.NoError(t, err)
	assert.Equal(t, entity.RoleAdmin, head.Role)

	student, err := svc.RegisterUser(ctx, &RegisterUserRequest{Name: "Ann", Email: "ann@school.no"})
	require.NoError(t, err)
	assert.Equal(t, entity.RoleUser, student.Role)
}

func TestGetProfile(t *testing.T) {
	f := newFixture(t)
	svc := newUserService(f.store)
	full := f.singleCourse(0)
	open := f.singleCourse(1)
	ann, bob := f.user("ann"), f.user("bob")

	_, err := f.enroll(ann.ID, open.ID, "single", false)
	require.NoError(t, err)
	_, err = f.enroll(bob.ID, full.ID, "single", true)
	require.NoError(t, err)

	profile, err := svc.GetProfile(f.ctx, ann.ID)
	require.NoError(t, err)
	require.NotNil(t, profile.Course)
	assert.Equal(t, open.ID, profile.Course.ID)
	assert.Nil(t, profile.Waitlist)

	profile, err = svc.GetProfile(f.ctx, bob.ID)
	require.NoError(t, err)
	assert.Nil(t, profile.Course)
	require.NotNil(t, profile.Waitlist)
	assert.Equal(t, full.ID, profile.Waitlist.CourseID)

	_, err = svc.GetProfile(f.ctx, "missing")
	assert.ErrorIs(t, err, entity.ErrUserNotFound)
}

func TestUpdateRole(t *testing.T) {
	f := newFixture(t)
	svc := newUserService(f.store)
	ann := f.user("ann")

	user, err := svc.UpdateRole(f.ctx, ann.ID, entity.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, user.Role.IsStaff())

	_, err = svc.UpdateRole(f.ctx, ann.ID, entity.Role("root"))
	assert.ErrorIs(t, err, entity.ErrInvalidInput)

	_, err = svc.UpdateRole(f.ctx, "missing", entity.RoleUser)
	assert.ErrorIs(t, err, entity.ErrUserNotFound)
}
