// Package memory keeps the whole portal state in process. It backs the
// "memory" database driver and the coordinator tests.
//
// One mutex serializes every transaction. A transaction works on a deep copy
// of the state which replaces the live state only when fn returns nil, so a
// failed transaction leaves nothing behind.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ds124wfegd/courseportal/internal/database"
	"github.com/ds124wfegd/courseportal/internal/entity"
)

type state struct {
	lines       map[string]*entity.Line
	courses     map[int64]*entity.Course
	users       map[string]*entity.User
	waitlist    map[int64]*entity.WaitlistEntry
	faq         map[int64]*entity.FAQ
	schools     map[string]*entity.School
	maintenance entity.MaintenanceState

	nextCourseID   int64
	nextWaitlistID int64
	nextFAQID      int64
}

func newState() *state {
	return &state{
		lines:    make(map[string]*entity.Line),
		courses:  make(map[int64]*entity.Course),
		users:    make(map[string]*entity.User),
		waitlist: make(map[int64]*entity.WaitlistEntry),
		faq:      make(map[int64]*entity.FAQ),
		schools:  make(map[string]*entity.School),
	}
}

func (s *state) clone() *state {
	c := &state{
		lines:          make(map[string]*entity.Line, len(s.lines)),
		courses:        make(map[int64]*entity.Course, len(s.courses)),
		users:          make(map[string]*entity.User, len(s.users)),
		waitlist:       make(map[int64]*entity.WaitlistEntry, len(s.waitlist)),
		faq:            make(map[int64]*entity.FAQ, len(s.faq)),
		schools:        make(map[string]*entity.School, len(s.schools)),
		maintenance:    copyMaintenance(s.maintenance),
		nextCourseID:   s.nextCourseID,
		nextWaitlistID: s.nextWaitlistID,
		nextFAQID:      s.nextFAQID,
	}
	for k, v := range s.lines {
		line := *v
		c.lines[k] = &line
	}
	for k, v := range s.courses {
		c.courses[k] = copyCourse(v)
	}
	for k, v := range s.users {
		c.users[k] = copyUser(v)
	}
	for k, v := range s.waitlist {
		entry := *v
		c.waitlist[k] = &entry
	}
	for k, v := range s.faq {
		f := *v
		c.faq[k] = &f
	}
	for k, v := range s.schools {
		school := *v
		c.schools[k] = &school
	}
	return c
}

// queue returns the (course, slot) entries in promotion order.
func (s *state) queue(courseID int64, slotLabel string) []*entity.WaitlistEntry {
	var entries []*entity.WaitlistEntry
	for _, e := range s.waitlist {
		if e.CourseID == courseID && e.SlotLabel == slotLabel {
			entries = append(entries, e)
		}
	}
	sortEntries(entries)
	return entries
}

func (s *state) entryForUser(userID string) *entity.WaitlistEntry {
	for _, e := range s.waitlist {
		if e.UserID == userID {
			return e
		}
	}
	return nil
}

func sortEntries(entries []*entity.WaitlistEntry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.CourseID != b.CourseID {
			return a.CourseID < b.CourseID
		}
		if a.SlotLabel != b.SlotLabel {
			return a.SlotLabel < b.SlotLabel
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

type Option func(*Store)

// WithClock replaces time.Now for created_at stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		st:  newState(),
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx database.EnrollmentTx) error) error {
	if err := ctx.Err(); err != nil {
		return entity.NewTxError("begin transaction", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(&memTx{st: snapshot, now: s.now}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return entity.NewTxError("commit transaction", err)
	}
	s.st = snapshot
	return nil
}

// read runs fn against the live state under the store lock.
func (s *Store) read(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

// write runs fn against a copy and commits it when fn succeeds.
func (s *Store) write(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(snapshot); err != nil {
		return err
	}
	s.st = snapshot
	return nil
}

func (s *Store) Courses() database.CourseRepository {
	return &courseRepository{store: s}
}

func (s *Store) Users() database.UserRepository {
	return &userRepository{store: s}
}

func (s *Store) Waitlist() database.WaitlistRepository {
	return &waitlistRepository{store: s}
}

func (s *Store) Content() database.ContentRepository {
	return &contentRepository{store: s}
}

func (s *Store) Schools() database.SchoolRepository {
	return &schoolRepository{store: s}
}

var _ database.EnrollmentStore = (*Store)(nil)

type memTx struct {
	st  *state
	now func() time.Time
}

func (t *memTx) LockCourse(_ context.Context, courseID int64) (*entity.Course, error) {
	course, ok := t.st.courses[courseID]
	if !ok {
		return nil, entity.ErrCourseNotFound
	}
	return copyCourse(course), nil
}

func (t *memTx) LockUser(_ context.Context, userID string) (*entity.User, error) {
	user, ok := t.st.users[userID]
	if !ok {
		return nil, entity.ErrUserNotFound
	}
	return copyUser(user), nil
}

func (t *memTx) SetSeats(_ context.Context, courseID int64, slotLabel string, remaining int) error {
	if remaining < 0 {
		return entity.ErrInvalidSeatCount
	}
	course, ok := t.st.courses[courseID]
	if !ok {
		return entity.ErrCourseNotFound
	}
	for i := range course.Slots {
		if course.Slots[i].Label == slotLabel {
			course.Slots[i].Remaining = remaining
			return nil
		}
	}
	return entity.ErrInvalidSlot
}

func (t *memTx) SetEnrollment(_ context.Context, userID string, enrollment *entity.Enrollment) error {
	user, ok := t.st.users[userID]
	if !ok {
		return entity.ErrUserNotFound
	}
	if enrollment == nil {
		user.Enrollment = nil
		return nil
	}
	e := *enrollment
	user.Enrollment = &e
	return nil
}

func (t *memTx) WaitlistEntryForUser(_ context.Context, userID string) (*entity.WaitlistEntry, error) {
	entry := t.st.entryForUser(userID)
	if entry == nil {
		return nil, nil
	}
	e := *entry
	return &e, nil
}

func (t *memTx) AddWaitlistEntry(_ context.Context, entry *entity.WaitlistEntry) error {
	if t.st.entryForUser(entry.UserID) != nil {
		return entity.ErrAlreadyWaitlisted
	}
	if _, ok := t.st.users[entry.UserID]; !ok {
		return entity.ErrUserNotFound
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = t.now()
	}

	t.st.nextWaitlistID++
	entry.ID = t.st.nextWaitlistID

	e := *entry
	t.st.waitlist[e.ID] = &e
	return nil
}

func (t *memTx) WaitlistPosition(_ context.Context, entry *entity.WaitlistEntry) (int, error) {
	for i, e := range t.st.queue(entry.CourseID, entry.SlotLabel) {
		if e.ID == entry.ID {
			return i + 1, nil
		}
	}
	return 0, entity.ErrNotWaitlisted
}

func (t *memTx) NextWaitlistEntry(_ context.Context, courseID int64, slotLabel string) (*entity.WaitlistEntry, error) {
	queue := t.st.queue(courseID, slotLabel)
	if len(queue) == 0 {
		return nil, nil
	}
	e := *queue[0]
	return &e, nil
}

func (t *memTx) DeleteWaitlistEntry(_ context.Context, entryID int64) (bool, error) {
	if _, ok := t.st.waitlist[entryID]; !ok {
		return false, nil
	}
	delete(t.st.waitlist, entryID)
	return true, nil
}

func (t *memTx) DeleteUser(_ context.Context, userID string) error {
	if _, ok := t.st.users[userID]; !ok {
		return entity.ErrUserNotFound
	}
	delete(t.st.users, userID)
	for id, e := range t.st.waitlist {
		if e.UserID == userID {
			delete(t.st.waitlist, id)
		}
	}
	return nil
}

var _ database.EnrollmentTx = (*memTx)(nil)

type courseRepository struct {
	store *Store
}

func (r *courseRepository) GetLines(_ context.Context) ([]*entity.Line, error) {
	var lines []*entity.Line
	err := r.store.read(func(st *state) error {
		for _, l := range st.lines {
			line := *l
			lines = append(lines, &line)
		}
		return nil
	})
	sort.Slice(lines, func(i, j int) bool { return lines[i].Title < lines[j].Title })
	return lines, err
}

func (r *courseRepository) GetLine(_ context.Context, id string) (*entity.Line, error) {
	var line *entity.Line
	err := r.store.read(func(st *state) error {
		l, ok := st.lines[id]
		if !ok {
			return entity.ErrLineNotFound
		}
		cp := *l
		line = &cp
		return nil
	})
	return line, err
}

func (r *courseRepository) CreateLine(_ context.Context, line *entity.Line) error {
	return r.store.write(func(st *state) error {
		if _, ok := st.lines[line.ID]; ok {
			return fmt.Errorf("%w: line %q already exists", entity.ErrInvalidInput, line.ID)
		}
		l := *line
		st.lines[l.ID] = &l
		return nil
	})
}

func (r *courseRepository) Create(_ context.Context, course *entity.Course) error {
	return r.store.write(func(st *state) error {
		if _, ok := st.lines[course.LineID]; !ok {
			return entity.ErrLineNotFound
		}
		st.nextCourseID++
		course.ID = st.nextCourseID
		ts := r.store.now()
		course.CreatedAt = ts
		course.UpdatedAt = ts
		st.courses[course.ID] = copyCourse(course)
		return nil
	})
}

func (r *courseRepository) GetByID(_ context.Context, id int64) (*entity.Course, error) {
	var course *entity.Course
	err := r.store.read(func(st *state) error {
		c, ok := st.courses[id]
		if !ok {
			return entity.ErrCourseNotFound
		}
		course = copyCourse(c)
		return nil
	})
	return course, err
}

func (r *courseRepository) GetByLine(_ context.Context, lineID string) ([]*entity.Course, error) {
	return r.list(func(c *entity.Course) bool { return c.LineID == lineID })
}

func (r *courseRepository) GetAll(_ context.Context) ([]*entity.Course, error) {
	return r.list(func(*entity.Course) bool { return true })
}

func (r *courseRepository) list(keep func(*entity.Course) bool) ([]*entity.Course, error) {
	var courses []*entity.Course
	err := r.store.read(func(st *state) error {
		for _, c := range st.courses {
			if keep(c) {
				courses = append(courses, copyCourse(c))
			}
		}
		return nil
	})
	sort.Slice(courses, func(i, j int) bool { return courses[i].ID < courses[j].ID })
	return courses, err
}

func (r *courseRepository) Update(_ context.Context, course *entity.Course) error {
	return r.store.write(func(st *state) error {
		c, ok := st.courses[course.ID]
		if !ok {
			return entity.ErrCourseNotFound
		}
		c.Name = course.Name
		c.Description = course.Description
		c.UpdatedAt = r.store.now()
		course.UpdatedAt = c.UpdatedAt
		return nil
	})
}

func (r *courseRepository) GetSlotBacklog(_ context.Context) ([]*entity.SlotBacklog, error) {
	var backlog []*entity.SlotBacklog
	err := r.store.read(func(st *state) error {
		ids := make([]int64, 0, len(st.courses))
		for id := range st.courses {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		for _, id := range ids {
			for _, slot := range st.courses[id].Slots {
				if slot.Remaining <= 0 {
					continue
				}
				if waiting := len(st.queue(id, slot.Label)); waiting > 0 {
					backlog = append(backlog, &entity.SlotBacklog{
						CourseID:  id,
						SlotLabel: slot.Label,
						Remaining: slot.Remaining,
						Waiting:   waiting,
					})
				}
			}
		}
		return nil
	})
	return backlog, err
}

type userRepository struct {
	store *Store
}

func (r *userRepository) Create(_ context.Context, user *entity.User) error {
	return r.store.write(func(st *state) error {
		if _, ok := st.users[user.ID]; ok {
			return fmt.Errorf("%w: user %q already exists", entity.ErrInvalidInput, user.ID)
		}
		for _, u := range st.users {
			if u.Email == user.Email {
				return fmt.Errorf("%w: %s", entity.ErrEmailTaken, user.Email)
			}
		}
		if user.CreatedAt.IsZero() {
			user.CreatedAt = r.store.now()
		}
		st.users[user.ID] = copyUser(user)
		return nil
	})
}

func (r *userRepository) GetByID(_ context.Context, id string) (*entity.User, error) {
	var user *entity.User
	err := r.store.read(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return entity.ErrUserNotFound
		}
		user = copyUser(u)
		return nil
	})
	return user, err
}

func (r *userRepository) GetByEmail(_ context.Context, email string) (*entity.User, error) {
	var user *entity.User
	err := r.store.read(func(st *state) error {
		for _, u := range st.users {
			if u.Email == email {
				user = copyUser(u)
				return nil
			}
		}
		return entity.ErrUserNotFound
	})
	return user, err
}

func (r *userRepository) GetAll(_ context.Context) ([]*entity.User, error) {
	var users []*entity.User
	err := r.store.read(func(st *state) error {
		for _, u := range st.users {
			users = append(users, copyUser(u))
		}
		return nil
	})
	sort.Slice(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.Before(users[j].CreatedAt)
		}
		return users[i].ID < users[j].ID
	})
	return users, err
}

func (r *userRepository) UpdateRole(_ context.Context, id string, role entity.Role) error {
	return r.store.write(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return entity.ErrUserNotFound
		}
		u.Role = role
		return nil
	})
}

type waitlistRepository struct {
	store *Store
}

func (r *waitlistRepository) GetAll(_ context.Context) ([]*entity.WaitlistEntryWithUser, error) {
	var result []*entity.WaitlistEntryWithUser
	err := r.store.read(func(st *state) error {
		entries := make([]*entity.WaitlistEntry, 0, len(st.waitlist))
		for _, e := range st.waitlist {
			entries = append(entries, e)
		}
		sortEntries(entries)

		position := 0
		for i, e := range entries {
			if i == 0 || e.CourseID != entries[i-1].CourseID || e.SlotLabel != entries[i-1].SlotLabel {
				position = 0
			}
			position++

			item := &entity.WaitlistEntryWithUser{WaitlistEntry: *e, Position: position}
			if u, ok := st.users[e.UserID]; ok {
				item.UserName = u.Name
				item.UserEmail = u.Email
			}
			result = append(result, item)
		}
		return nil
	})
	return result, err
}

func (r *waitlistRepository) GetByUser(_ context.Context, userID string) (*entity.WaitlistEntry, error) {
	var entry *entity.WaitlistEntry
	err := r.store.read(func(st *state) error {
		e := st.entryForUser(userID)
		if e == nil {
			return entity.ErrNotWaitlisted
		}
		cp := *e
		entry = &cp
		return nil
	})
	return entry, err
}

func (r *waitlistRepository) DeleteStale(_ context.Context) (int64, error) {
	var removed int64
	err := r.store.write(func(st *state) error {
		for id, e := range st.waitlist {
			if u, ok := st.users[e.UserID]; ok && u.Enrolled() {
				delete(st.waitlist, id)
				removed++
			}
		}
		return nil
	})
	return removed, err
}

type contentRepository struct {
	store *Store
}

func (r *contentRepository) ListFAQ(_ context.Context) ([]*entity.FAQ, error) {
	var items []*entity.FAQ
	err := r.store.read(func(st *state) error {
		for _, f := range st.faq {
			cp := *f
			items = append(items, &cp)
		}
		return nil
	})
	sort.Slice(items, func(i, j int) bool {
		if items[i].Position != items[j].Position {
			return items[i].Position < items[j].Position
		}
		return items[i].ID < items[j].ID
	})
	return items, err
}

func (r *contentRepository) CreateFAQ(_ context.Context, faq *entity.FAQ) error {
	return r.store.write(func(st *state) error {
		st.nextFAQID++
		faq.ID = st.nextFAQID
		faq.UpdatedAt = r.store.now()
		cp := *faq
		st.faq[cp.ID] = &cp
		return nil
	})
}

func (r *contentRepository) UpdateFAQ(_ context.Context, faq *entity.FAQ) error {
	return r.store.write(func(st *state) error {
		if _, ok := st.faq[faq.ID]; !ok {
			return entity.ErrFAQNotFound
		}
		faq.UpdatedAt = r.store.now()
		cp := *faq
		st.faq[cp.ID] = &cp
		return nil
	})
}

func (r *contentRepository) DeleteFAQ(_ context.Context, id int64) error {
	return r.store.write(func(st *state) error {
		if _, ok := st.faq[id]; !ok {
			return entity.ErrFAQNotFound
		}
		delete(st.faq, id)
		return nil
	})
}

func (r *contentRepository) GetMaintenance(_ context.Context) (*entity.MaintenanceState, error) {
	var m entity.MaintenanceState
	err := r.store.read(func(st *state) error {
		m = copyMaintenance(st.maintenance)
		return nil
	})
	return &m, err
}

func (r *contentRepository) SetMaintenance(_ context.Context, active bool, by, reason string) (*entity.MaintenanceState, error) {
	var m entity.MaintenanceState
	err := r.store.write(func(st *state) error {
		st.maintenance = entity.MaintenanceState{Active: active}
		if active {
			ts := r.store.now()
			st.maintenance.ActivatedAt = &ts
			st.maintenance.ActivatedBy = by
			st.maintenance.Reason = reason
		}
		m = copyMaintenance(st.maintenance)
		return nil
	})
	return &m, err
}

type schoolRepository struct {
	store *Store
}

func (r *schoolRepository) List(_ context.Context, includeInactive bool) ([]*entity.School, error) {
	var schools []*entity.School
	err := r.store.read(func(st *state) error {
		for _, sc := range st.schools {
			if sc.Active || includeInactive {
				cp := *sc
				schools = append(schools, &cp)
			}
		}
		return nil
	})
	sort.Slice(schools, func(i, j int) bool {
		if schools[i].Active != schools[j].Active {
			return schools[i].Active
		}
		return schools[i].Name < schools[j].Name
	})
	return schools, err
}

func (r *schoolRepository) GetByID(_ context.Context, id string) (*entity.School, error) {
	return r.find(func(sc *entity.School) bool { return sc.ID == id })
}

func (r *schoolRepository) GetByName(_ context.Context, name string) (*entity.School, error) {
	return r.find(func(sc *entity.School) bool { return sc.Name == name })
}

func (r *schoolRepository) find(match func(*entity.School) bool) (*entity.School, error) {
	var school *entity.School
	err := r.store.read(func(st *state) error {
		for _, sc := range st.schools {
			if match(sc) {
				cp := *sc
				school = &cp
				return nil
			}
		}
		return entity.ErrSchoolNotFound
	})
	return school, err
}

func (r *schoolRepository) Create(_ context.Context, school *entity.School) error {
	return r.store.write(func(st *state) error {
		if nameTaken(st, school) {
			return fmt.Errorf("%w: %s", entity.ErrSchoolExists, school.Name)
		}
		if school.CreatedAt.IsZero() {
			school.CreatedAt = r.store.now()
		}
		cp := *school
		st.schools[cp.ID] = &cp
		return nil
	})
}

func (r *schoolRepository) Update(_ context.Context, school *entity.School) error {
	return r.store.write(func(st *state) error {
		sc, ok := st.schools[school.ID]
		if !ok {
			return entity.ErrSchoolNotFound
		}
		if nameTaken(st, school) {
			return fmt.Errorf("%w: %s", entity.ErrSchoolExists, school.Name)
		}
		sc.Name = school.Name
		sc.Active = school.Active
		return nil
	})
}

func nameTaken(st *state, school *entity.School) bool {
	for _, sc := range st.schools {
		if sc.Name == school.Name && sc.ID != school.ID {
			return true
		}
	}
	return false
}

func copyCourse(c *entity.Course) *entity.Course {
	cp := *c
	cp.Slots = append([]entity.Slot(nil), c.Slots...)
	return &cp
}

func copyUser(u *entity.User) *entity.User {
	cp := *u
	if u.Enrollment != nil {
		e := *u.Enrollment
		cp.Enrollment = &e
	}
	return &cp
}

func copyMaintenance(m entity.MaintenanceState) entity.MaintenanceState {
	if m.ActivatedAt != nil {
		ts := *m.ActivatedAt
		m.ActivatedAt = &ts
	}
	return m
}
