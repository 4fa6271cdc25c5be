package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ds124wfegd/courseportal/internal/database"
	"github.com/ds124wfegd/courseportal/internal/entity"
	"github.com/ds124wfegd/courseportal/internal/metrics"
	"github.com/sirupsen/logrus"
)

const notifyTimeout = 10 * time.Second

type EnrollStatus string

const (
	StatusEnrolled   EnrollStatus = "enrolled"
	StatusWaitlisted EnrollStatus = "waitlisted"
	StatusUnenrolled EnrollStatus = "unenrolled"
)

type EnrollRequest struct {
	UserID        string `json:"-"`
	CourseID      int64  `json:"course_id" binding:"required,min=1"`
	SlotLabel     string `json:"slot_label" binding:"required"`
	SideOption    string `json:"side_option"`
	AllowWaitlist bool   `json:"allow_waitlist"`
}

type EnrollResult struct {
	Status EnrollStatus `json:"status"`
	// Position is the 1-based place in the waitlist when Status is waitlisted.
	Position int `json:"position,omitempty"`
}

type UnenrollResult struct {
	Status   EnrollStatus      `json:"status"`
	Promoted *entity.Promotion `json:"promoted,omitempty"`
}

// SetEnrollmentRequest moves a user; a nil CourseID clears the enrollment.
type SetEnrollmentRequest struct {
	CourseID   *int64 `json:"course_id"`
	SlotLabel  string `json:"slot_label"`
	SideOption string `json:"side_option"`
}

type AdminEnrollmentResult struct {
	Enrollment *entity.Enrollment `json:"enrollment"`
	Promoted   *entity.Promotion  `json:"promoted,omitempty"`
}

type SetSeatsRequest struct {
	SlotLabel string `json:"slot_label" binding:"required"`
	Remaining *int   `json:"remaining" binding:"required"`
}

type SeatOverrideResult struct {
	CourseID   int64               `json:"course_id"`
	SlotLabel  string              `json:"slot_label"`
	Remaining  int                 `json:"remaining"`
	Promotions []*entity.Promotion `json:"promotions"`
}

// errEnrollmentMoved means the enrollment read before locking no longer
// matches the locked row; the operation is retried from the start.
var errEnrollmentMoved = errors.New("enrollment changed concurrently")

type enrollmentService struct {
	store      database.EnrollmentStore
	users      database.UserRepository
	courses    database.CourseRepository
	waitlist   database.WaitlistRepository
	notifier   Notifier
	maxRetries int
}

// NewEnrollmentService creates the coordinator. notifier may be nil.
func NewEnrollmentService(
	store database.EnrollmentStore,
	users database.UserRepository,
	courses database.CourseRepository,
	waitlist database.WaitlistRepository,
	notifier Notifier,
	maxRetries int,
) EnrollmentService {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &enrollmentService{
		store:      store,
		users:      users,
		courses:    courses,
		waitlist:   waitlist,
		notifier:   notifier,
		maxRetries: maxRetries,
	}
}

func (s *enrollmentService) Enroll(ctx context.Context, req *EnrollRequest) (*EnrollResult, error) {
	sideOption := strings.TrimSpace(req.SideOption)
	var result *EnrollResult

	err := s.store.WithinTx(ctx, func(tx database.EnrollmentTx) error {
		course, err := tx.LockCourse(ctx, req.CourseID)
		if err != nil {
			return err
		}
		ref, err := course.ResolveSlot(req.SlotLabel)
		if err != nil {
			return err
		}

		user, err := tx.LockUser(ctx, req.UserID)
		if err != nil {
			return err
		}

		if course.Remaining(ref) <= 0 {
			if !req.AllowWaitlist {
				return entity.ErrSlotFull
			}
			position, err := s.joinWaitlist(ctx, tx, user, course.ID, ref.Label, sideOption)
			if err != nil {
				return err
			}
			result = &EnrollResult{Status: StatusWaitlisted, Position: position}
			return nil
		}

		if user.Enrolled() {
			return entity.ErrAlreadyEnrolled
		}

		if err := s.occupy(ctx, tx, course, ref, user.ID, sideOption); err != nil {
			return err
		}
		if err := dropWaitlistEntry(ctx, tx, user.ID); err != nil {
			return err
		}
		result = &EnrollResult{Status: StatusEnrolled}
		return nil
	})

	log := logrus.WithFields(logrus.Fields{
		"user_id":   req.UserID,
		"course_id": req.CourseID,
		"slot":      req.SlotLabel,
	})
	if err != nil {
		recordOutcome("enroll", err)
		log.WithError(err).Debug("Enroll rejected")
		return nil, err
	}

	metrics.EnrollmentOutcomes.WithLabelValues("enroll", string(result.Status)).Inc()
	log.WithField("status", result.Status).Info("Enroll completed")
	return result, nil
}

func (s *enrollmentService) joinWaitlist(
	ctx context.Context,
	tx database.EnrollmentTx,
	user *entity.User,
	courseID int64,
	slotLabel, sideOption string,
) (int, error) {
	if user.Enrolled() {
		return 0, entity.ErrAlreadyEnrolled
	}

	existing, err := tx.WaitlistEntryForUser(ctx, user.ID)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return 0, entity.ErrAlreadyWaitlisted
	}

	entry := &entity.WaitlistEntry{
		UserID:     user.ID,
		CourseID:   courseID,
		SlotLabel:  slotLabel,
		SideOption: sideOption,
	}
	if err := tx.AddWaitlistEntry(ctx, entry); err != nil {
		return 0, err
	}
	return tx.WaitlistPosition(ctx, entry)
}

func (s *enrollmentService) Unenroll(ctx context.Context, userID string) (*UnenrollResult, error) {
	return s.release(ctx, "unenroll", userID, false)
}

// DeleteAccount releases the user's seat (promoting the next in line),
// drops their waitlist entry and removes the user.
func (s *enrollmentService) DeleteAccount(ctx context.Context, userID string) (*UnenrollResult, error) {
	return s.release(ctx, "delete_account", userID, true)
}

// release clears the user's enrollment and hands the seat to the waitlist.
// The enrollment is read without locks first so the course row can be locked
// before the user row; the locked user is then re-checked.
func (s *enrollmentService) release(ctx context.Context, op, userID string, deleteUser bool) (*UnenrollResult, error) {
	log := logrus.WithFields(logrus.Fields{"user_id": userID, "operation": op})

	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			recordOutcome(op, err)
			return nil, err
		}
		if !user.Enrolled() && !deleteUser {
			recordOutcome(op, entity.ErrNotEnrolled)
			return nil, entity.ErrNotEnrolled
		}
		expected := user.Enrollment

		var promotion *entity.Promotion
		err = s.store.WithinTx(ctx, func(tx database.EnrollmentTx) error {
			var course *entity.Course
			if expected != nil {
				c, err := tx.LockCourse(ctx, expected.CourseID)
				if err != nil {
					return err
				}
				course = c
			}

			locked, err := tx.LockUser(ctx, userID)
			if err != nil {
				return err
			}
			if !sameCourse(locked.Enrollment, expected) {
				return errEnrollmentMoved
			}

			if deleteUser {
				// Otherwise the cascade could hand the freed seat back to them.
				if err := dropWaitlistEntry(ctx, tx, userID); err != nil {
					return err
				}
			}

			if course != nil {
				if promotion, err = s.vacate(ctx, tx, course, locked); err != nil {
					return err
				}
			}

			if deleteUser {
				return tx.DeleteUser(ctx, userID)
			}
			return nil
		})

		if errors.Is(err, errEnrollmentMoved) {
			log.WithField("attempt", attempt).Debug("Enrollment moved while locking, retrying")
			continue
		}
		if err != nil {
			recordOutcome(op, err)
			log.WithError(err).Warn("Release failed")
			return nil, err
		}

		metrics.EnrollmentOutcomes.WithLabelValues(op, "ok").Inc()
		log.WithField("promoted", promotion != nil).Info("Seat released")
		s.notify(ctx, "unenroll", promotion)
		return &UnenrollResult{Status: StatusUnenrolled, Promoted: promotion}, nil
	}

	err := entity.NewTxError(op, errEnrollmentMoved)
	recordOutcome(op, err)
	return nil, err
}

// vacate clears user's enrollment in course, returns the seat and runs the
// promotion cascade on that slot.
func (s *enrollmentService) vacate(ctx context.Context, tx database.EnrollmentTx, course *entity.Course, user *entity.User) (*entity.Promotion, error) {
	ref, err := course.ResolveSlot(user.Enrollment.SlotLabel)
	if err != nil {
		return nil, err
	}

	if err := tx.SetEnrollment(ctx, user.ID, nil); err != nil {
		return nil, err
	}
	if err := s.setRemaining(ctx, tx, course, ref, course.Remaining(ref)+1); err != nil {
		return nil, err
	}
	return s.promoteNext(ctx, tx, course, ref)
}

// occupy takes one seat of ref for userID.
func (s *enrollmentService) occupy(ctx context.Context, tx database.EnrollmentTx, course *entity.Course, ref entity.SlotRef, userID, sideOption string) error {
	remaining := course.Remaining(ref)
	if remaining <= 0 {
		return entity.ErrSlotFull
	}
	if err := s.setRemaining(ctx, tx, course, ref, remaining-1); err != nil {
		return err
	}
	return tx.SetEnrollment(ctx, userID, &entity.Enrollment{
		CourseID:   course.ID,
		SlotLabel:  ref.Label,
		SideOption: sideOption,
	})
}

func (s *enrollmentService) setRemaining(ctx context.Context, tx database.EnrollmentTx, course *entity.Course, ref entity.SlotRef, remaining int) error {
	if err := tx.SetSeats(ctx, course.ID, ref.Label, remaining); err != nil {
		return err
	}
	course.Slots[ref.Index].Remaining = remaining
	return nil
}

// promoteNext hands one free seat of ref to the earliest waiting user.
// Entries are removed as they are visited; a candidate who meanwhile holds
// an enrollment is skipped. Returns nil when the queue ran out.
func (s *enrollmentService) promoteNext(ctx context.Context, tx database.EnrollmentTx, course *entity.Course, ref entity.SlotRef) (*entity.Promotion, error) {
	for course.Remaining(ref) > 0 {
		entry, err := tx.NextWaitlistEntry(ctx, course.ID, ref.Label)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			return nil, nil
		}

		if _, err := tx.DeleteWaitlistEntry(ctx, entry.ID); err != nil {
			return nil, err
		}

		candidate, err := tx.LockUser(ctx, entry.UserID)
		if errors.Is(err, entity.ErrUserNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if candidate.Enrolled() {
			logrus.WithFields(logrus.Fields{
				"user_id":   candidate.ID,
				"course_id": course.ID,
				"slot":      ref.Label,
			}).Info("Skipping waitlisted user who is already enrolled")
			continue
		}

		if err := s.occupy(ctx, tx, course, ref, candidate.ID, entry.SideOption); err != nil {
			return nil, err
		}

		return &entity.Promotion{
			UserID:     candidate.ID,
			CourseID:   course.ID,
			SlotLabel:  ref.Label,
			Email:      candidate.Email,
			Name:       candidate.Name,
			CourseName: course.Name,
		}, nil
	}
	return nil, nil
}

// promoteWhileFree repeats promoteNext until the slot is full or nobody waits.
func (s *enrollmentService) promoteWhileFree(ctx context.Context, tx database.EnrollmentTx, course *entity.Course, ref entity.SlotRef) ([]*entity.Promotion, error) {
	var promotions []*entity.Promotion
	for course.Remaining(ref) > 0 {
		p, err := s.promoteNext(ctx, tx, course, ref)
		if err != nil {
			return nil, err
		}
		if p == nil {
			break
		}
		promotions = append(promotions, p)
	}
	return promotions, nil
}

func (s *enrollmentService) LeaveWaitlist(ctx context.Context, userID string) error {
	err := s.store.WithinTx(ctx, func(tx database.EnrollmentTx) error {
		entry, err := tx.WaitlistEntryForUser(ctx, userID)
		if err != nil {
			return err
		}
		if entry == nil {
			return entity.ErrNotWaitlisted
		}
		_, err = tx.DeleteWaitlistEntry(ctx, entry.ID)
		return err
	})
	if err != nil {
		recordOutcome("leave_waitlist", err)
		return err
	}

	metrics.EnrollmentOutcomes.WithLabelValues("leave_waitlist", "ok").Inc()
	logrus.WithField("user_id", userID).Info("Left waitlist")
	return nil
}

func (s *enrollmentService) AdminRemoveWaitlistEntry(ctx context.Context, entryID int64) error {
	err := s.store.WithinTx(ctx, func(tx database.EnrollmentTx) error {
		deleted, err := tx.DeleteWaitlistEntry(ctx, entryID)
		if err != nil {
			return err
		}
		if !deleted {
			return entity.ErrNotWaitlisted
		}
		return nil
	})
	if err != nil {
		recordOutcome("admin_remove_waitlist", err)
		return err
	}

	logrus.WithField("entry_id", entryID).Info("Waitlist entry removed by admin")
	return nil
}

func (s *enrollmentService) CourseSeatStatus(ctx context.Context, courseID int64) (map[string]int, error) {
	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return course.SeatStatus(), nil
}

func (s *enrollmentService) ListWaitlist(ctx context.Context) ([]*entity.WaitlistEntryWithUser, error) {
	return s.waitlist.GetAll(ctx)
}

// AdminSetEnrollment moves a user to another slot or course, or clears the
// enrollment. Every involved course is locked in ascending id order.
func (s *enrollmentService) AdminSetEnrollment(ctx context.Context, userID string, req *SetEnrollmentRequest) (*AdminEnrollmentResult, error) {
	sideOption := strings.TrimSpace(req.SideOption)
	log := logrus.WithField("user_id", userID)

	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		expected := user.Enrollment

		var result *AdminEnrollmentResult
		err = s.store.WithinTx(ctx, func(tx database.EnrollmentTx) error {
			var ids []int64
			if expected != nil {
				ids = append(ids, expected.CourseID)
			}
			if req.CourseID != nil {
				ids = append(ids, *req.CourseID)
			}
			locked, err := lockCourses(ctx, tx, ids)
			if err != nil {
				return err
			}

			current, err := tx.LockUser(ctx, userID)
			if err != nil {
				return err
			}
			if !sameCourse(current.Enrollment, expected) {
				return errEnrollmentMoved
			}

			var target *entity.SlotRef
			if req.CourseID != nil {
				ref, err := locked[*req.CourseID].ResolveSlot(req.SlotLabel)
				if err != nil {
					return err
				}
				target = &ref
			}

			result = &AdminEnrollmentResult{}

			// Same seat: only the side option changes.
			if target != nil && current.Enrolled() &&
				current.Enrollment.CourseID == *req.CourseID && current.Enrollment.SlotLabel == target.Label {
				enrollment := &entity.Enrollment{CourseID: *req.CourseID, SlotLabel: target.Label, SideOption: sideOption}
				if err := tx.SetEnrollment(ctx, userID, enrollment); err != nil {
					return err
				}
				result.Enrollment = enrollment
				return dropWaitlistEntry(ctx, tx, userID)
			}

			var (
				oldCourse *entity.Course
				oldRef    entity.SlotRef
			)
			if current.Enrolled() {
				oldCourse = locked[current.Enrollment.CourseID]
				if oldRef, err = oldCourse.ResolveSlot(current.Enrollment.SlotLabel); err != nil {
					return err
				}
				if err := s.setRemaining(ctx, tx, oldCourse, oldRef, oldCourse.Remaining(oldRef)+1); err != nil {
					return err
				}
				if err := tx.SetEnrollment(ctx, userID, nil); err != nil {
					return err
				}
			}

			if target != nil {
				course := locked[*req.CourseID]
				if err := s.occupy(ctx, tx, course, *target, userID, sideOption); err != nil {
					return err
				}
				result.Enrollment = &entity.Enrollment{CourseID: course.ID, SlotLabel: target.Label, SideOption: sideOption}
			}

			if err := dropWaitlistEntry(ctx, tx, userID); err != nil {
				return err
			}

			if oldCourse != nil {
				promotion, err := s.promoteNext(ctx, tx, oldCourse, oldRef)
				if err != nil {
					return err
				}
				result.Promoted = promotion
			}
			return nil
		})

		if errors.Is(err, errEnrollmentMoved) {
			log.WithField("attempt", attempt).Debug("Enrollment moved while locking, retrying")
			continue
		}
		if err != nil {
			recordOutcome("admin_set_enrollment", err)
			return nil, err
		}

		metrics.EnrollmentOutcomes.WithLabelValues("admin_set_enrollment", "ok").Inc()
		log.WithField("enrollment", result.Enrollment).Info("Enrollment set by admin")
		s.notify(ctx, "admin_move", result.Promoted)
		return result, nil
	}

	err := entity.NewTxError("admin set enrollment", errEnrollmentMoved)
	recordOutcome("admin_set_enrollment", err)
	return nil, err
}

func (s *enrollmentService) AdminSetSeats(ctx context.Context, courseID int64, req *SetSeatsRequest) (*SeatOverrideResult, error) {
	if req.Remaining == nil {
		return nil, fmt.Errorf("%w: remaining is required", entity.ErrInvalidInput)
	}
	if *req.Remaining < 0 {
		return nil, entity.ErrInvalidSeatCount
	}

	var result *SeatOverrideResult
	err := s.store.WithinTx(ctx, func(tx database.EnrollmentTx) error {
		course, err := tx.LockCourse(ctx, courseID)
		if err != nil {
			return err
		}
		ref, err := course.ResolveSlot(req.SlotLabel)
		if err != nil {
			return err
		}

		if err := s.setRemaining(ctx, tx, course, ref, *req.Remaining); err != nil {
			return err
		}
		promotions, err := s.promoteWhileFree(ctx, tx, course, ref)
		if err != nil {
			return err
		}

		result = &SeatOverrideResult{
			CourseID:   course.ID,
			SlotLabel:  ref.Label,
			Remaining:  course.Remaining(ref),
			Promotions: promotions,
		}
		return nil
	})
	if err != nil {
		recordOutcome("admin_set_seats", err)
		return nil, err
	}

	metrics.EnrollmentOutcomes.WithLabelValues("admin_set_seats", "ok").Inc()
	logrus.WithFields(logrus.Fields{
		"course_id":  courseID,
		"slot":       result.SlotLabel,
		"remaining":  result.Remaining,
		"promotions": len(result.Promotions),
	}).Info("Seat count overridden")
	s.notify(ctx, "admin_seats", result.Promotions...)
	return result, nil
}

// SweepWaitlists repairs slots that have free seats and waiting users, e.g.
// after seats were changed outside the portal. Failures of one slot do not
// stop the others.
func (s *enrollmentService) SweepWaitlists(ctx context.Context) (int, error) {
	backlog, err := s.courses.GetSlotBacklog(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get slot backlog: %w", err)
	}

	var (
		total int
		errs  []error
	)
	for _, b := range backlog {
		var promotions []*entity.Promotion
		err := s.store.WithinTx(ctx, func(tx database.EnrollmentTx) error {
			course, err := tx.LockCourse(ctx, b.CourseID)
			if err != nil {
				return err
			}
			ref, err := course.ResolveSlot(b.SlotLabel)
			if err != nil {
				return err
			}
			promotions, err = s.promoteWhileFree(ctx, tx, course, ref)
			return err
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("course %d slot %q: %w", b.CourseID, b.SlotLabel, err))
			continue
		}

		total += len(promotions)
		s.notify(ctx, "sweep", promotions...)
	}

	if total > 0 {
		logrus.WithField("promotions", total).Info("Waitlist sweep promoted users")
	}
	return total, errors.Join(errs...)
}

// notify runs after commit; its failures are logged and counted only.
func (s *enrollmentService) notify(ctx context.Context, source string, promotions ...*entity.Promotion) {
	for _, p := range promotions {
		if p == nil {
			continue
		}
		metrics.Promotions.WithLabelValues(source).Inc()
		if s.notifier == nil {
			continue
		}

		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		err := s.notifier.NotifyPromotion(nctx, *p)
		cancel()
		if err != nil {
			metrics.NotificationFailures.Inc()
			logrus.WithError(err).WithFields(logrus.Fields{
				"user_id":   p.UserID,
				"course_id": p.CourseID,
				"slot":      p.SlotLabel,
			}).Error("Failed to notify promoted user")
		}
	}
}

// lockCourses locks the distinct ids in ascending order.
func lockCourses(ctx context.Context, tx database.EnrollmentTx, ids []int64) (map[int64]*entity.Course, error) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	locked := make(map[int64]*entity.Course, len(ids))
	for _, id := range ids {
		if _, ok := locked[id]; ok {
			continue
		}
		course, err := tx.LockCourse(ctx, id)
		if err != nil {
			return nil, err
		}
		locked[id] = course
	}
	return locked, nil
}

func dropWaitlistEntry(ctx context.Context, tx database.EnrollmentTx, userID string) error {
	entry, err := tx.WaitlistEntryForUser(ctx, userID)
	if err != nil || entry == nil {
		return err
	}
	_, err = tx.DeleteWaitlistEntry(ctx, entry.ID)
	return err
}

func sameCourse(a, b *entity.Enrollment) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.CourseID == b.CourseID
}

func recordOutcome(op string, err error) {
	metrics.EnrollmentOutcomes.WithLabelValues(op, outcomeLabel(err)).Inc()
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, entity.ErrSlotFull):
		return "slot_full"
	case errors.Is(err, entity.ErrAlreadyEnrolled):
		return "already_enrolled"
	case errors.Is(err, entity.ErrAlreadyWaitlisted):
		return "already_waitlisted"
	case errors.Is(err, entity.ErrInvalidSlot):
		return "invalid_slot"
	case errors.Is(err, entity.ErrNotEnrolled), errors.Is(err, entity.ErrNotWaitlisted):
		return "not_found"
	case errors.Is(err, entity.ErrTransactionFailure):
		return "tx_failure"
	case entity.IsDomainError(err):
		return "rejected"
	default:
		return "error"
	}
}
