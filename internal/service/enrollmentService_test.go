package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ds124wfegd/courseportal/internal/database"
	"github.com/ds124wfegd/courseportal/internal/database/memory"
	"github.com/ds124wfegd/courseportal/internal/entity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu         sync.Mutex
	err        error
	promotions []entity.Promotion
}

func (n *recordingNotifier) NotifyPromotion(_ context.Context, p entity.Promotion) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.promotions = append(n.promotions, p)
	return n.err
}

func (n *recordingNotifier) users() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	ids := make([]string, 0, len(n.promotions))
	for _, p := range n.promotions {
		ids = append(ids, p.UserID)
	}
	return ids
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	store    *memory.Store
	notifier *recordingNotifier
	svc      EnrollmentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	notifier := &recordingNotifier{}

	require.NoError(t, store.Courses().CreateLine(context.Background(), &entity.Line{ID: "science", Title: "Science"}))

	return &fixture{
		t:        t,
		ctx:      context.Background(),
		store:    store,
		notifier: notifier,
		svc:      NewEnrollmentService(store, store.Users(), store.Courses(), store.Waitlist(), notifier, 3),
	}
}

func (f *fixture) course(slots ...entity.Slot) *entity.Course {
	f.t.Helper()
	require.NoError(f.t, entity.ValidateSlots(slots))
	c := &entity.Course{LineID: "science", Name: fmt.Sprintf("Course %d", len(slots)), Slots: slots}
	require.NoError(f.t, f.store.Courses().Create(f.ctx, c))
	return c
}

func (f *fixture) singleCourse(seats int) *entity.Course {
	return f.course(entity.Slot{Kind: entity.SlotKindSingle, Label: "single", Remaining: seats})
}

func (f *fixture) user(name string) *entity.User {
	f.t.Helper()
	u := &entity.User{ID: uuid.NewString(), Name: name, Email: name + "@example.com", Role: entity.RoleUser}
	require.NoError(f.t, f.store.Users().Create(f.ctx, u))
	return u
}

func (f *fixture) seats(courseID int64) map[string]int {
	f.t.Helper()
	status, err := f.svc.CourseSeatStatus(f.ctx, courseID)
	require.NoError(f.t, err)
	return status
}

func (f *fixture) enrollment(userID string) *entity.Enrollment {
	f.t.Helper()
	u, err := f.store.Users().GetByID(f.ctx, userID)
	require.NoError(f.t, err)
	return u.Enrollment
}

func (f *fixture) enroll(userID string, courseID int64, slot string, allowWaitlist bool) (*EnrollResult, error) {
	return f.svc.Enroll(f.ctx, &EnrollRequest{UserID: userID, CourseID: courseID, SlotLabel: slot, AllowWaitlist: allowWaitlist})
}

func TestEnroll(t *testing.T) {
	f := newFixture(t)
	course := f.singleCourse(2)
	ann := f.user("ann")

	res, err := f.svc.Enroll(f.ctx, &EnrollRequest{UserID: ann.ID, CourseID: course.ID, SlotLabel: " single ", SideOption: " vegan "})
	require.NoError(t, err)
	assert.Equal(t, StatusEnrolled, res.Status)
	assert.Equal(t, map[string]int{"single": 1}, f.seats(course.ID))
	assert.Equal(t, &entity.Enrollment{CourseID: course.ID, SlotLabel: "single", SideOption: "vegan"}, f.enrollment(ann.ID))

	_, err = f.enroll(ann.ID, course.ID, "single", false)
	assert.ErrorIs(t, err, entity.ErrAlreadyEnrolled)
	assert.Equal(t, map[string]int{"single": 1}, f.seats(course.ID))
}

func TestEnrollRejections(t *testing.T) {
	f := newFixture(t)
	course := f.singleCourse(1)
	ann := f.user("ann")

	tests := []struct {
		name     string
		userID   string
		courseID int64
		slot     string
		want     error
	}{
		{"unknown course", ann.ID, 999, "single", entity.ErrCourseNotFound},
		{"unknown slot", ann.ID, course.ID, "before lunch", entity.ErrInvalidSlot},
		{"empty slot", ann.ID, course.ID, "  ", entity.ErrInvalidSlot},
		{"unknown user", "nobody", course.ID, "single", entity.ErrUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.enroll(tt.userID, tt.courseID, tt.slot, true)
			assert.ErrorIs(t, err, tt.want)
			assert.False(t, errors.Is(err, entity.ErrTransactionFailure))
		})
	}
	assert.Equal(t, map[string]int{"single": 1}, f.seats(course.ID))
}

func TestEnrollLegacySlotsAreIndependent(t *testing.T) {
	f := newFixture(t)
	course := f.course(
		entity.Slot{Kind: entity.SlotKindBeforeLunch, Label: "before lunch", Remaining: 1},
		entity.Slot{Kind: entity.SlotKindAfterLunch, Label: "after lunch", Remaining: 1},
		entity.Slot{Kind: entity.SlotKindLast, Label: "last", Remaining: 1},
	)

	_, err := f.enroll(f.user("ann").ID, course.ID, "after lunch", false)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"before lunch": 1, "after lunch": 0, "last": 1}, f.seats(course.ID))

	_, err = f.enroll(f.user("bob").ID, course.ID, "after lunch", false)
	assert.ErrorIs(t, err, entity.ErrSlotFull)
}

func TestEnrollFullSlotWaitlist(t *testing.T) {
	f := newFixture(t)
	course := f.singleCourse(1)
	ann, bob, cat := f.user("ann"), f.user("bob"), f.user("cat")

	_, err := f.enroll(ann.ID, course.ID, "single", false)
	require.NoError(t, err)

	_, err = f.enroll(bob.ID, course.ID, "single", false)
	assert.ErrorIs(t, err, entity.ErrSlotFull)

	res, err := f.enroll(bob.ID, course.ID, "single", true)
	require.NoError(t, err)
	assert.Equal(t, &EnrollResult{Status: StatusWaitlisted, Position: 1}, res)

	res, err = f.enroll(cat.ID, course.ID, "single", true)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Position)

	_, err = f.enroll(bob.ID, course.ID, "single", true)
	assert.ErrorIs(t, err, entity.ErrAlreadyWaitlisted)

	_, err = f.enroll(ann.ID, course.ID, "single", true)
	assert.ErrorIs(t, err, entity.ErrAlreadyEnrolled)

	assert.Equal(t, map[string]int{"single": 0}, f.seats(course.ID))
	assert.Nil(t, f.enrollment(bob.ID))
}

func TestEnrollDropsOwnWaitlistEntry(t *testing.T) {
	f := newFixture(t)
	full := f.singleCourse(0)
	open := f.singleCourse(1)
	ann := f.user("ann")

	_, err := f.enroll(ann.ID, full.ID, "single", true)
	require.NoError(t, err)

	_, err = f.enroll(ann.ID, open.ID, "single", false)
	require.NoError(t, err)

	_, err = f.store.Waitlist().GetByUser(f.ctx, ann.ID)
	assert.ErrorIs(t, err, entity.ErrNotWaitlisted)
}

func TestUnenroll(t *testing.T) {
	f := newFixture(t)
	course := f.singleCourse(3)
	ann := f.user("ann")

	_, err := f.enroll(ann.ID, course.ID, "single", false)
	require.NoError(t, err)
	assert.Equal(t, 2, f.seats(course.ID)["single"])

	res, err := f.svc.Unenroll(f.ctx, ann.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusUnenrolled, res.Status)
	assert.Nil(t, res.Promoted)
	assert.Equal(t, 3, f.seats(course.ID)["single"])
	assert.Nil(t, f.enrollment(ann.ID))

	_, err = f.svc.Unenroll(f.ctx, ann.ID)
	assert.ErrorIs(t, err, entity.ErrNotEnrolled)
	assert.Equal(t, 3, f.seats(course.ID)["single"])
	assert.Empty(t, f.notifier.users())
}

func TestUnenrollPromotesInOrder(t *testing.T) {
	f := newFixture(t)
	course := f.singleCourse(1)
	ann, bob, cat := f.user("ann"), f.user("bob"), f.user("cat")

	_, err := f.enroll(ann.ID, course.ID, "single", false)
	require.NoError(t, err)
	_, err = f.svc.Enroll(f.ctx, &EnrollRequest{UserID: bob.ID, CourseID: course.ID, SlotLabel: "single", SideOption: "late bus", AllowWaitlist: true})
	require.NoError(t, err)
	_, err = f.enroll(cat.ID, course.ID, "single", true)
	require.NoError(t, err)

	res, err := f.svc.Unenroll(f.ctx, ann.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Promoted)
	assert.Equal(t, bob.ID, res.Promoted.UserID)
	assert.Equal(t, course.ID, res.Promoted.CourseID)
	assert.Equal(t, "single", res.Promoted.SlotLabel)

	assert.Equal(t, 0, f.seats(course.ID)["single"])
	assert.Equal(t, &entity.Enrollment{CourseID: course.ID, SlotLabel: "single", SideOption: "late bus"}, f.enrollment(bob.ID))

	entries, err := f.svc.ListWaitlist(f.ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, cat.ID, entries[0].UserID)
	assert.Equal(t, 1, entries[0].Position)

	assert.Equal(t, []string{bob.ID}, f.notifier.users())
	assert.Equal(t, "bob@example.com", f.notifier.promotions[0].Email)
	assert.Equal(t, course.Name, f.notifier.promotions[0].CourseName)
}

func TestPromotionSkipsEnrolledCandidate(t *testing.T) {
	f := newFixture(t)
	course := f.singleCourse(1)
	other := f.singleCourse(5)
	ann, bob, cat := f.user("ann"), f.user("bob"), f.user("cat")

	_, err := f.enroll(ann.ID, course.ID, "single", false)
	require.NoError(t, err)

	// bob waits for course but already holds a seat elsewhere, which the
	// portal itself never produces.
	require.NoError(t, f.store.WithinTx(f.ctx, func(tx database.EnrollmentTx) error {
		if err := tx.AddWaitlistEntry(f.ctx, &entity.WaitlistEntry{UserID: bob.ID, CourseID: course.ID, SlotLabel: "single"}); err != nil {
			return err
		}
		return tx.SetEnrollment(f.ctx, bob.ID, &entity.Enrollment{CourseID: other.ID, SlotLabel: "single"})
	}))
	_, err = f.enroll(cat.ID, course.ID, "single", true)
	require.NoError(t, err)

	res, err := f.svc.Unenroll(f.ctx, ann.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Promoted)
	assert.Equal(t, cat.ID, res.Promoted.UserID)
	assert.Equal(t, other.ID, f.enrollment(bob.ID).CourseID)

	entries, err := f.svc.ListWaitlist(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUnenrollNotifierFailureDoesNotChangeResult(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("smtp down")
	course := f.singleCourse(1)
	ann, bob := f.user("ann"), f.user("bob")

	_, err := f.enroll(ann.ID, course.ID, "single", false)
	require.NoError(t, err)
	_, err = f.enroll(bob.ID, course.ID, "single", true)
	require.NoError(t, err)

	res, err := f.svc.Unenroll(f.ctx, ann.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Promoted)
	assert.Equal(t, bob.ID, res.Promoted.UserID)
	assert.NotNil(t, f.enrollment(bob.ID))
}

func TestEnrollUnenrollRoundTrip(t *testing.T) {
	f := newFixture(t)
	course := f.course(
		entity.Slot{Kind: entity.SlotKindBeforeLunch, Label: "before lunch", Remaining: 4},
		entity.Slot{Kind: entity.SlotKindLast, Label: "last", Remaining: 2},
	)
	before := f.seats(course.ID)

	for _, slot := range []string{"before lunch", "last", "last"} {
		u := f.user(uuid.NewString()[:8])
		_, err := f.enroll(u.ID, course.ID, slot, false)
		require.NoError(t, err)
		_, err = f.svc.Unenroll(f.ctx, u.ID)
		require.NoError(t, err)
	}
	assert.Equal(t, before, f.seats(course.ID))
}

func TestConcurrentEnrollNeverOverbooks(t *testing.T) {
	f := newFixture(t)
	const seats, users = 10, 50
	course := f.singleCourse(seats)

	ids := make([]string, users)
	for i := range ids {
		ids[i] = f.user(fmt.Sprintf("u%d", i)).ID
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		enrolled int
		full     int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.enroll(id, course.ID, "single", false)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				enrolled++
			case errors.Is(err, entity.ErrSlotFull):
				full++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, seats, enrolled)
	assert.Equal(t, users-seats, full)
	assert.Equal(t, 0, f.seats(course.ID)["single"])
}

func TestConcurrentEnrollAndUnenrollConserveSeats(t *testing.T) {
	f := newFixture(t)
	const seats = 5
	course := f.singleCourse(seats)

	ids := make([]string, 20)
	for i := range ids {
		ids[i] = f.user(fmt.Sprintf("u%d", i)).ID
	}

	var wg sync.WaitGroup
	for round := 0; round < 3; round++ {
		for _, id := range ids {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				if _, err := f.enroll(id, course.ID, "single", true); err == nil {
					_, _ = f.svc.Unenroll(f.ctx, id)
				}
			}(id)
		}
		wg.Wait()
	}

	users, err := f.store.Users().GetAll(f.ctx)
	require.NoError(t, err)
	held := 0
	for _, u := range users {
		if u.Enrolled() {
			held++
		}
	}
	assert.Equal(t, seats, f.seats(course.ID)["single"]+held)
}

func TestFailedTransactionLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	course := f.singleCourse(3)
	ann := f.user("ann")
	boom := errors.New("boom")

	err := f.store.WithinTx(f.ctx, func(tx database.EnrollmentTx) error {
		if err := tx.SetSeats(f.ctx, course.ID, "single", 0); err != nil {
			return err
		}
		if err := tx.SetEnrollment(f.ctx, ann.ID, &entity.Enrollment{CourseID: course.ID, SlotLabel: "single"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, f.seats(course.ID)["single"])
	assert.Nil(t, f.enrollment(ann.ID))
}

func TestLeaveWaitlist(t *testing.T) {
	f := newFixture(t)
	course := f.singleCourse(0)
	ann := f.user("ann")

	assert.ErrorIs(t, f.svc.LeaveWaitlist(f.ctx, ann.ID), entity.ErrNotWaitlisted)

	_, err := f.enroll(ann.ID, course.ID, "single", true)
	require.NoError(t, err)
	require.NoError(t, f.svc.LeaveWaitlist(f.ctx, ann.ID))
	assert.ErrorIs(t, f.svc.LeaveWaitlist(f.ctx, ann.ID), entity.ErrNotWaitlisted)
	assert.Equal(t, 0, f.seats(course.ID)["single"])
}

func TestAdminRemoveWaitlistEntry(t *testing.T) {
	f := newFixture(t)
	course := f.singleCourse(0)
	ann := f.user("ann")

	_, err := f.enroll(ann.ID, course.ID, "single", true)
	require.NoError(t, err)
	entry, err := f.store.Waitlist().GetByUser(f.ctx, ann.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.AdminRemoveWaitlistEntry(f.ctx, entry.ID))
	assert.ErrorIs(t, f.svc.AdminRemoveWaitlistEntry(f.ctx, entry.ID), entity.ErrNotWaitlisted)
}

func TestAdminSetSeatsPromotesWaitlist(t *testing.T) {
	f := newFixture(t)
	course := f.singleCourse(0)
	ann, bob, cat := f.user("ann"), f.user("bob"), f.user("cat")
	for _, u := range []*entity.User{ann, bob, cat} {
		_, err := f.enroll(u.ID, course.ID, "single", true)
		require.NoError(t, err)
	}

	res, err := f.svc.AdminSetSeats(f.ctx, course.ID, &SetSeatsRequest{SlotLabel: "single", Remaining: intPtr(2)})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Remaining)
	require.Len(t, res.Promotions, 2)
	assert.Equal(t, ann.ID, res.Promotions[0].UserID)
	assert.Equal(t, bob.ID, res.Promotions[1].UserID)
	assert.Nil(t, f.enrollment(cat.ID))
	assert.Equal(t, []string{ann.ID, bob.ID}, f.notifier.users())

	_, err = f.svc.AdminSetSeats(f.ctx, course.ID, &SetSeatsRequest{SlotLabel: "single", Remaining: intPtr(-1)})
	assert.ErrorIs(t, err, entity.ErrInvalidSeatCount)

	_, err = f.svc.AdminSetSeats(f.ctx, course.ID, &SetSeatsRequest{SlotLabel: "nope", Remaining: intPtr(1)})
	assert.ErrorIs(t, err, entity.ErrInvalidSlot)
}

func TestAdminSetEnrollmentMovesAndPromotes(t *testing.T) {
	f := newFixture(t)
	from := f.singleCourse(1)
	to := f.singleCourse(1)
	ann, bob := f.user("ann"), f.user("bob")

	_, err := f.enroll(ann.ID, from.ID, "single", false)
	require.NoError(t, err)
	_, err = f.enroll(bob.ID, from.ID, "single", true)
	require.NoError(t, err)

	res, err := f.svc.AdminSetEnrollment(f.ctx, ann.ID, &SetEnrollmentRequest{CourseID: &to.ID, SlotLabel: "single"})
	require.NoError(t, err)
	assert.Equal(t, to.ID, res.Enrollment.CourseID)
	require.NotNil(t, res.Promoted)
	assert.Equal(t, bob.ID, res.Promoted.UserID)

	assert.Equal(t, 0, f.seats(from.ID)["single"])
	assert.Equal(t, 0, f.seats(to.ID)["single"])
	assert.Equal(t, from.ID, f.enrollment(bob.ID).CourseID)
}

func TestAdminSetEnrollmentFullTargetRollsBack(t *testing.T) {
	f := newFixture(t)
	from := f.singleCourse(1)
	to := f.singleCourse(0)
	ann := f.user("ann")

	_, err := f.enroll(ann.ID, from.ID, "single", false)
	require.NoError(t, err)

	_, err = f.svc.AdminSetEnrollment(f.ctx, ann.ID, &SetEnrollmentRequest{CourseID: &to.ID, SlotLabel: "single"})
	assert.ErrorIs(t, err, entity.ErrSlotFull)
	assert.Equal(t, from.ID, f.enrollment(ann.ID).CourseID)
	assert.Equal(t, 0, f.seats(from.ID)["single"])
}

func TestAdminSetEnrollmentClearAndSideOption(t *testing.T) {
	f := newFixture(t)
	course := f.singleCourse(2)
	ann := f.user("ann")

	_, err := f.enroll(ann.ID, course.ID, "single", false)
	require.NoError(t, err)

	res, err := f.svc.AdminSetEnrollment(f.ctx, ann.ID, &SetEnrollmentRequest{CourseID: &course.ID, SlotLabel: "single", SideOption: "b"})
	require.NoError(t, err)
	assert.Equal(t, "b", res.Enrollment.SideOption)
	assert.Equal(t, 1, f.seats(course.ID)["single"])

	res, err = f.svc.AdminSetEnrollment(f.ctx, ann.ID, &SetEnrollmentRequest{})
	require.NoError(t, err)
	assert.Nil(t, res.Enrollment)
	assert.Nil(t, f.enrollment(ann.ID))
	assert.Equal(t, 2, f.seats(course.ID)["single"])
}

func TestDeleteAccountReleasesSeat(t *testing.T) {
	f := newFixture(t)
	course := f.singleCourse(1)
	ann, bob := f.user("ann"), f.user("bob")

	_, err := f.enroll(ann.ID, course.ID, "single", false)
	require.NoError(t, err)
	_, err = f.enroll(bob.ID, course.ID, "single", true)
	require.NoError(t, err)

	res, err := f.svc.DeleteAccount(f.ctx, ann.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Promoted)
	assert.Equal(t, bob.ID, res.Promoted.UserID)

	_, err = f.store.Users().GetByID(f.ctx, ann.ID)
	assert.ErrorIs(t, err, entity.ErrUserNotFound)
	assert.Equal(t, 0, f.seats(course.ID)["single"])

	_, err = f.svc.DeleteAccount(f.ctx, ann.ID)
	assert.ErrorIs(t, err, entity.ErrUserNotFound)
}

func TestSweepWaitlists(t *testing.T) {
	f := newFixture(t)
	course := f.singleCourse(0)
	ann := f.user("ann")

	_, err := f.enroll(ann.ID, course.ID, "single", true)
	require.NoError(t, err)

	// Seats freed outside the coordinator.
	require.NoError(t, f.store.WithinTx(f.ctx, func(tx database.EnrollmentTx) error {
		return tx.SetSeats(f.ctx, course.ID, "single", 1)
	}))

	n, err := f.svc.SweepWaitlists(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, course.ID, f.enrollment(ann.ID).CourseID)

	n, err = f.svc.SweepWaitlists(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func intPtr(v int) *int {
	return &v
}
