package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dancetime/booking/internal/models"
	"github.com/dancetime/booking/internal/storage"
)

const courseColumns = `id, name, duration, description, classes, registrations, created_at`

// CreateCourse inserts a course with its initial classes and no registrations.
func (s *Store) CreateCourse(ctx context.Context, details models.CourseDetails, classes []models.Class) (models.Course, error) {
	classJSON, err := json.Marshal(storage.WithClassIDs(classes))
	if err != nil {
		return models.Course{}, fmt.Errorf("encode classes: %w", err)
	}
	const query = `
		INSERT INTO courses (id, name, duration, description, classes)
		VALUES ($1, $2, $3, $4, $5::jsonb)
		RETURNING ` + courseColumns
	row := s.pool.QueryRow(ctx, query, storage.NewID(), details.Name, details.Duration, details.Description, string(classJSON))
	course, err := scanCourse(row)
	if err != nil {
		return models.Course{}, fmt.Errorf("insert course: %w", err)
	}
	return course, nil
}

// GetCourse fetches a course by id.
func (s *Store) GetCourse(ctx context.Context, id string) (models.Course, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = $1`, id)
	return scanCourse(row)
}

// ListCourses returns all courses in creation order.
func (s *Store) ListCourses(ctx context.Context) ([]models.Course, error) {
	return s.queryCourses(ctx, `SELECT `+courseColumns+` FROM courses ORDER BY created_at, id`)
}

// ListCoursesByRegistrant returns courses holding at least one registration
// with the email.
func (s *Store) ListCoursesByRegistrant(ctx context.Context, email string) ([]models.Course, error) {
	probe, err := json.Marshal([]map[string]string{{"email": email}})
	if err != nil {
		return nil, err
	}
	const query = `SELECT ` + courseColumns + ` FROM courses WHERE registrations @> $1::jsonb ORDER BY created_at, id`
	return s.queryCourses(ctx, query, string(probe))
}

func (s *Store) queryCourses(ctx context.Context, query string, args ...any) ([]models.Course, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer rows.Close()

	courses := []models.Course{}
	for rows.Next() {
		course, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		courses = append(courses, course)
	}
	return courses, rows.Err()
}

// CountCourses returns the number of stored courses.
func (s *Store) CountCourses(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM courses`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count courses: %w", err)
	}
	return n, nil
}

// UpdateCourse replaces the course fields and its entire class list.
func (s *Store) UpdateCourse(ctx context.Context, id string, details models.CourseDetails, classes []models.Class) error {
	return s.mutateCourse(ctx, id, func(c *models.Course) error {
		c.Name = details.Name
		c.Duration = details.Duration
		c.Description = details.Description
		c.Classes = storage.WithClassIDs(classes)
		return nil
	})
}

// DeleteCourse removes a course and everything embedded in it.
func (s *Store) DeleteCourse(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// UpdateClass overwrites the class at index.
func (s *Store) UpdateClass(ctx context.Context, courseID string, index int, class models.Class) error {
	return s.mutateCourse(ctx, courseID, func(c *models.Course) error {
		classes, err := storage.ReplaceClass(c.Classes, index, class)
		if err != nil {
			return err
		}
		c.Classes = classes
		return nil
	})
}

// AddRegistration appends in a single statement.
func (s *Store) AddRegistration(ctx context.Context, courseID string, reg models.Registration) (models.Course, error) {
	reg.ID = storage.NewID()
	entry, err := json.Marshal([]models.Registration{reg})
	if err != nil {
		return models.Course{}, fmt.Errorf("encode registration: %w", err)
	}
	const query = `
		UPDATE courses SET registrations = registrations || $2::jsonb
		WHERE id = $1
		RETURNING ` + courseColumns
	return scanCourse(s.pool.QueryRow(ctx, query, courseID, string(entry)))
}

// UpdateRegistration overwrites the registration at index once guard accepts it.
func (s *Store) UpdateRegistration(ctx context.Context, courseID string, index int, guard storage.RegistrationGuard, reg models.Registration) error {
	return s.mutateCourse(ctx, courseID, func(c *models.Course) error {
		regs, err := storage.ReplaceRegistration(c.Registrations, index, guard, reg)
		if err != nil {
			return err
		}
		c.Registrations = regs
		return nil
	})
}

// RemoveRegistration deletes the registration at index once guard accepts it.
func (s *Store) RemoveRegistration(ctx context.Context, courseID string, index int, guard storage.RegistrationGuard) error {
	return s.mutateCourse(ctx, courseID, func(c *models.Course) error {
		regs, err := storage.RemoveRegistration(c.Registrations, index, guard)
		if err != nil {
			return err
		}
		c.Registrations = regs
		return nil
	})
}

// mutateCourse locks the course row, applies fn and writes the result back
// in the same transaction. Nothing is written when fn fails.
func (s *Store) mutateCourse(ctx context.Context, id string, fn func(*models.Course) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = $1 FOR UPDATE`, id)
		course, err := scanCourse(row)
		if err != nil {
			return err
		}
		if err := fn(&course); err != nil {
			return err
		}

		classJSON, err := json.Marshal(course.Classes)
		if err != nil {
			return fmt.Errorf("encode classes: %w", err)
		}
		regJSON, err := json.Marshal(course.Registrations)
		if err != nil {
			return fmt.Errorf("encode registrations: %w", err)
		}

		const update = `
			UPDATE courses
			SET name = $2, duration = $3, description = $4, classes = $5::jsonb, registrations = $6::jsonb
			WHERE id = $1`
		if _, err := tx.Exec(ctx, update, id, course.Name, course.Duration, course.Description, string(classJSON), string(regJSON)); err != nil {
			return fmt.Errorf("update course: %w", err)
		}
		return nil
	})
}

func scanCourse(row pgx.Row) (models.Course, error) {
	var (
		course        models.Course
		classes, regs []byte
	)
	if err := row.Scan(&course.ID, &course.Name, &course.Duration, &course.Description, &classes, &regs, &course.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Course{}, storage.ErrNotFound
		}
		return models.Course{}, err
	}
	if err := json.Unmarshal(classes, &course.Classes); err != nil {
		return models.Course{}, fmt.Errorf("decode classes: %w", err)
	}
	if err := json.Unmarshal(regs, &course.Registrations); err != nil {
		return models.Course{}, fmt.Errorf("decode registrations: %w", err)
	}
	return course, nil
}
