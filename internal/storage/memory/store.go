// Package memory provides a process-local store used for development and
// tests. All operations run under a single lock, so positional updates are
// atomic with respect to each other.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dancetime/booking/internal/models"
	"github.com/dancetime/booking/internal/storage"
)

var _ storage.Store = (*Store)(nil)

// Store keeps users and courses in memory behind one lock.
type Store struct {
	mu          sync.RWMutex
	users       map[string]models.User
	userOrder   []string
	courses     map[string]models.Course
	courseOrder []string
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:   make(map[string]models.User),
		courses: make(map[string]models.Course),
	}
}

// Close is a no-op; it satisfies storage.Store.
func (s *Store) Close() {}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error { return nil }

// CreateUser inserts user with a new id, rejecting duplicate usernames or emails.
func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conflictLocked("", user.Username, user.Email) {
		return models.User{}, storage.ErrAlreadyExists
	}
	user.ID = storage.NewID()
	user.CreatedAt = time.Now().UTC()
	s.users[user.ID] = user
	s.userOrder = append(s.userOrder, user.ID)
	return user, nil
}

func (s *Store) conflictLocked(selfID, username, email string) bool {
	for id, u := range s.users {
		if id == selfID {
			continue
		}
		if u.Username == username || u.Email == email {
			return true
		}
	}
	return false
}

// FindByID looks up a user by id.
func (s *Store) FindByID(ctx context.Context, id string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	return u, nil
}

// FindByUsername looks up a user by exact username.
func (s *Store) FindByUsername(ctx context.Context, username string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return models.User{}, storage.ErrNotFound
}

// ListUsers returns users in creation order.
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.User, 0, len(s.userOrder))
	for _, id := range s.userOrder {
		out = append(out, s.users[id])
	}
	return out, nil
}

// UpdateUser replaces a user's fields, keeping the hash when none is given.
func (s *Store) UpdateUser(ctx context.Context, user models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.users[user.ID]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	if s.conflictLocked(user.ID, user.Username, user.Email) {
		return models.User{}, storage.ErrAlreadyExists
	}
	current.Username = user.Username
	current.Email = user.Email
	current.Role = user.Role
	if user.PasswordHash != "" {
		current.PasswordHash = user.PasswordHash
	}
	s.users[user.ID] = current
	return current, nil
}

// DeleteUser removes a user by id.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return storage.ErrNotFound
	}
	s.deleteUserLocked(id)
	return nil
}

// DeleteUserByEmail removes every user with the email.
func (s *Store) DeleteUserByEmail(ctx context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, u := range s.users {
		if u.Email == email {
			s.deleteUserLocked(id)
		}
	}
	return nil
}

func (s *Store) deleteUserLocked(id string) {
	delete(s.users, id)
	s.userOrder = without(s.userOrder, id)
}

// CreateCourse inserts a course with an empty registration list.
func (s *Store) CreateCourse(ctx context.Context, details models.CourseDetails, classes []models.Class) (models.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	course := models.Course{
		ID:            storage.NewID(),
		Name:          details.Name,
		Duration:      details.Duration,
		Description:   details.Description,
		Classes:       storage.WithClassIDs(classes),
		Registrations: []models.Registration{},
		CreatedAt:     time.Now().UTC(),
	}
	s.courses[course.ID] = course
	s.courseOrder = append(s.courseOrder, course.ID)
	return clone(course), nil
}

// GetCourse returns a copy of the course.
func (s *Store) GetCourse(ctx context.Context, id string) (models.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.courses[id]
	if !ok {
		return models.Course{}, storage.ErrNotFound
	}
	return clone(c), nil
}

// ListCourses returns every course in creation order.
func (s *Store) ListCourses(ctx context.Context) ([]models.Course, error) {
	return s.listCourses(func(models.Course) bool { return true }), nil
}

// ListCoursesByRegistrant returns courses holding a registration for email.
func (s *Store) ListCoursesByRegistrant(ctx context.Context, email string) ([]models.Course, error) {
	return s.listCourses(func(c models.Course) bool { return c.HasRegistration(email) }), nil
}

func (s *Store) listCourses(keep func(models.Course) bool) []models.Course {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Course, 0, len(s.courseOrder))
	for _, id := range s.courseOrder {
		if c := s.courses[id]; keep(c) {
			out = append(out, clone(c))
		}
	}
	return out
}

// CountCourses reports how many courses exist.
func (s *Store) CountCourses(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.courses), nil
}

// UpdateCourse replaces details and the whole class list.
func (s *Store) UpdateCourse(ctx context.Context, id string, details models.CourseDetails, classes []models.Class) error {
	return s.mutate(id, func(c *models.Course) error {
		c.Name = details.Name
		c.Duration = details.Duration
		c.Description = details.Description
		c.Classes = storage.WithClassIDs(classes)
		return nil
	})
}

// DeleteCourse removes a course by id.
func (s *Store) DeleteCourse(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.courses[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.courses, id)
	s.courseOrder = without(s.courseOrder, id)
	return nil
}

// UpdateClass overwrites the class at index.
func (s *Store) UpdateClass(ctx context.Context, courseID string, index int, class models.Class) error {
	return s.mutate(courseID, func(c *models.Course) error {
		classes, err := storage.ReplaceClass(c.Classes, index, class)
		if err != nil {
			return err
		}
		c.Classes = classes
		return nil
	})
}

// AddRegistration appends reg and returns the updated course.
func (s *Store) AddRegistration(ctx context.Context, courseID string, reg models.Registration) (models.Course, error) {
	var updated models.Course
	err := s.mutate(courseID, func(c *models.Course) error {
		reg.ID = storage.NewID()
		c.Registrations = append(append([]models.Registration(nil), c.Registrations...), reg)
		updated = clone(*c)
		return nil
	})
	return updated, err
}

// UpdateRegistration overwrites the registration at index once guard approves it.
func (s *Store) UpdateRegistration(ctx context.Context, courseID string, index int, guard storage.RegistrationGuard, reg models.Registration) error {
	return s.mutate(courseID, func(c *models.Course) error {
		regs, err := storage.ReplaceRegistration(c.Registrations, index, guard, reg)
		if err != nil {
			return err
		}
		c.Registrations = regs
		return nil
	})
}

// RemoveRegistration deletes the registration at index once guard approves it.
func (s *Store) RemoveRegistration(ctx context.Context, courseID string, index int, guard storage.RegistrationGuard) error {
	return s.mutate(courseID, func(c *models.Course) error {
		regs, err := storage.RemoveRegistration(c.Registrations, index, guard)
		if err != nil {
			return err
		}
		c.Registrations = regs
		return nil
	})
}

// mutate applies fn to a copy of the course and stores it only if fn succeeds.
func (s *Store) mutate(id string, fn func(*models.Course) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.courses[id]
	if !ok {
		return storage.ErrNotFound
	}
	c = clone(c)
	if err := fn(&c); err != nil {
		return err
	}
	s.courses[id] = c
	return nil
}

func clone(c models.Course) models.Course {
	c.Classes = append([]models.Class{}, c.Classes...)
	c.Registrations = append([]models.Registration{}, c.Registrations...)
	return c
}

func without(ids []string, id string) []string {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
