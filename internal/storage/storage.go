package storage

import (
	"context"
	"errors"

	"github.com/dancetime/booking/internal/models"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict.
var ErrAlreadyExists = errors.New("record already exists")

// ErrInvalidIndex indicates a positional index outside the current list.
var ErrInvalidIndex = errors.New("index out of range")

// RegistrationGuard inspects the registration currently stored at an index
// before it is changed. A non-nil error aborts the change and is returned
// unchanged to the caller.
type RegistrationGuard func(models.Registration) error

// UserStore captures persistence operations over accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	// UpdateUser replaces username, email and role. The password hash is
	// replaced only when user.PasswordHash is non-empty.
	UpdateUser(ctx context.Context, user models.User) (models.User, error)
	DeleteUser(ctx context.Context, id string) error
	DeleteUserByEmail(ctx context.Context, email string) error
}

// CourseStore captures persistence operations over courses and their
// embedded classes and registrations. Every positional operation performs its
// bounds check and write atomically.
type CourseStore interface {
	CreateCourse(ctx context.Context, details models.CourseDetails, classes []models.Class) (models.Course, error)
	GetCourse(ctx context.Context, id string) (models.Course, error)
	ListCourses(ctx context.Context) ([]models.Course, error)
	ListCoursesByRegistrant(ctx context.Context, email string) ([]models.Course, error)
	UpdateCourse(ctx context.Context, id string, details models.CourseDetails, classes []models.Class) error
	DeleteCourse(ctx context.Context, id string) error
	CountCourses(ctx context.Context) (int, error)

	UpdateClass(ctx context.Context, courseID string, index int, class models.Class) error

	// AddRegistration appends and returns the updated course.
	AddRegistration(ctx context.Context, courseID string, reg models.Registration) (models.Course, error)
	UpdateRegistration(ctx context.Context, courseID string, index int, guard RegistrationGuard, reg models.Registration) error
	RemoveRegistration(ctx context.Context, courseID string, index int, guard RegistrationGuard) error
}

// Store combines both collections.
type Store interface {
	UserStore
	CourseStore
	Ping(ctx context.Context) error
	Close()
}
