package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dancetime/booking/internal/models"
	"github.com/dancetime/booking/internal/storage"
)

func TestUserUniqueness(t *testing.T) {
	ctx := context.Background()
	s := New()

	alice, err := s.CreateUser(ctx, models.User{Username: "alice", Email: "a@x.com", PasswordHash: "h", Role: models.UserRole})
	require.NoError(t, err)
	assert.NotEmpty(t, alice.ID)

	_, err = s.CreateUser(ctx, models.User{Username: "alice", Email: "other@x.com"})
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)
	_, err = s.CreateUser(ctx, models.User{Username: "other", Email: "a@x.com"})
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)

	bob, err := s.CreateUser(ctx, models.User{Username: "bob", Email: "b@x.com", PasswordHash: "h", Role: models.UserRole})
	require.NoError(t, err)
	bob.Email = "a@x.com"
	_, err = s.UpdateUser(ctx, bob)
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)
}

func TestUpdateUserKeepsPasswordWhenBlank(t *testing.T) {
	ctx := context.Background()
	s := New()
	u, err := s.CreateUser(ctx, models.User{Username: "carol", Email: "c@x.com", PasswordHash: "old", Role: models.UserRole})
	require.NoError(t, err)

	updated, err := s.UpdateUser(ctx, models.User{ID: u.ID, Username: "carol2", Email: "c@x.com", Role: models.AdminRole})
	require.NoError(t, err)
	assert.Equal(t, "old", updated.PasswordHash)
	assert.Equal(t, models.AdminRole, updated.Role)

	updated, err = s.UpdateUser(ctx, models.User{ID: u.ID, Username: "carol2", Email: "c@x.com", Role: models.AdminRole, PasswordHash: "new"})
	require.NoError(t, err)
	assert.Equal(t, "new", updated.PasswordHash)

	_, err = s.UpdateUser(ctx, models.User{ID: "missing"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteUserByEmail(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.CreateUser(ctx, models.User{Username: "dave", Email: "d@x.com"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteUserByEmail(ctx, "d@x.com"))
	_, err = s.FindByUsername(ctx, "dave")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestCourseReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	c, err := s.CreateCourse(ctx, models.CourseDetails{Name: "Salsa"}, []models.Class{{ClassName: "Intro"}})
	require.NoError(t, err)

	c.Classes[0].ClassName = "changed"
	stored, err := s.GetCourse(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Intro", stored.Classes[0].ClassName)
	assert.NotEmpty(t, stored.Classes[0].ID)
}

func TestRegistrationLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	c, err := s.CreateCourse(ctx, models.CourseDetails{Name: "Tango"}, nil)
	require.NoError(t, err)

	for _, email := range []string{"a@x.com", "b@x.com", "a@x.com"} {
		_, err := s.AddRegistration(ctx, c.ID, models.Registration{Name: "n", Email: email})
		require.NoError(t, err)
	}

	mine, err := s.ListCoursesByRegistrant(ctx, "b@x.com")
	require.NoError(t, err)
	require.Len(t, mine, 1)

	denied := errors.New("denied")
	err = s.RemoveRegistration(ctx, c.ID, 1, func(r models.Registration) error {
		if r.Email != "a@x.com" {
			return denied
		}
		return nil
	})
	assert.ErrorIs(t, err, denied)

	require.NoError(t, s.RemoveRegistration(ctx, c.ID, 1, nil))
	stored, err := s.GetCourse(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, stored.Registrations, 2)
	assert.Equal(t, "a@x.com", stored.Registrations[1].Email)

	assert.ErrorIs(t, s.RemoveRegistration(ctx, c.ID, 2, nil), storage.ErrInvalidIndex)
	assert.ErrorIs(t, s.RemoveRegistration(ctx, "nope", 0, nil), storage.ErrNotFound)
}

func TestConcurrentRegistrationsAreNotLost(t *testing.T) {
	ctx := context.Background()
	s := New()
	c, err := s.CreateCourse(ctx, models.CourseDetails{Name: "Waltz"}, nil)
	require.NoError(t, err)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.AddRegistration(ctx, c.ID, models.Registration{Email: fmt.Sprintf("u%d@x.com", i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	stored, err := s.GetCourse(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Registrations, n)
}
