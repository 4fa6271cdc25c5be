package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ds124wfegd/courseportal/internal/database"
	"github.com/ds124wfegd/courseportal/internal/database/memory"
	"github.com/ds124wfegd/courseportal/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRemover struct {
	calls atomic.Int32
	err   error
}

func (r *countingRemover) DeleteStale(context.Context) (int64, error) {
	r.calls.Add(1)
	return 0, r.err
}

func TestWaitlistCleanupWorkerRunsUntilCancelled(t *testing.T) {
	remover := &countingRemover{err: errors.New("db down")}
	w := NewWaitlistCleanupWorker(remover, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return remover.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestCleanupRemovesEntriesOfEnrolledUsers(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.Courses().CreateLine(ctx, &entity.Line{ID: "arts", Title: "Arts"}))
	course := &entity.Course{LineID: "arts", Name: "Pottery", Slots: []entity.Slot{{Kind: entity.SlotKindSingle, Label: "single"}}}
	require.NoError(t, store.Courses().Create(ctx, course))

	for _, id := range []string{"ann", "bob"} {
		require.NoError(t, store.Users().Create(ctx, &entity.User{ID: id, Email: id + "@example.com", Role: entity.RoleUser}))
	}
	require.NoError(t, store.WithinTx(ctx, func(tx database.EnrollmentTx) error {
		for _, id := range []string{"ann", "bob"} {
			if err := tx.AddWaitlistEntry(ctx, &entity.WaitlistEntry{UserID: id, CourseID: course.ID, SlotLabel: "single"}); err != nil {
				return err
			}
		}
		return tx.SetEnrollment(ctx, "ann", &entity.Enrollment{CourseID: course.ID, SlotLabel: "single"})
	}))

	NewWaitlistCleanupWorker(store.Waitlist(), time.Minute).cleanup(ctx)

	_, err := store.Waitlist().GetByUser(ctx, "ann")
	assert.ErrorIs(t, err, entity.ErrNotWaitlisted)
	_, err = store.Waitlist().GetByUser(ctx, "bob")
	assert.NoError(t, err)
}
