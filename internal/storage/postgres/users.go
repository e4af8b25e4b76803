package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dancetime/booking/internal/models"
	"github.com/dancetime/booking/internal/storage"
)

const userColumns = `id, username, email, password_hash, role, created_at`

// CreateUser inserts a new user row.
func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	const query = `
		INSERT INTO users (id, username, email, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + userColumns
	row := s.pool.QueryRow(ctx, query, storage.NewID(), user.Username, user.Email, user.PasswordHash, user.Role)
	created, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, storage.ErrAlreadyExists
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return created, nil
}

// FindByID fetches a user by id.
func (s *Store) FindByID(ctx context.Context, id string) (models.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// FindByUsername fetches a user by username.
func (s *Store) FindByUsername(ctx context.Context, username string) (models.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return scanUser(row)
}

// ListUsers returns every account in creation order.
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// UpdateUser replaces the editable fields; a blank hash keeps the old one.
func (s *Store) UpdateUser(ctx context.Context, user models.User) (models.User, error) {
	const query = `
		UPDATE users
		SET username = $2,
			email = $3,
			role = $4,
			password_hash = CASE WHEN $5::text = '' THEN password_hash ELSE $5::text END
		WHERE id = $1
		RETURNING ` + userColumns
	row := s.pool.QueryRow(ctx, query, user.ID, user.Username, user.Email, user.Role, user.PasswordHash)
	updated, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, storage.ErrAlreadyExists
		}
		return models.User{}, err
	}
	return updated, nil
}

// DeleteUser removes a user by id.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteUserByEmail removes whichever account owns the email, if any.
func (s *Store) DeleteUserByEmail(ctx context.Context, email string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM users WHERE email = $1`, email); err != nil {
		return fmt.Errorf("delete user by email: %w", err)
	}
	return nil
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrNotFound
		}
		return models.User{}, err
	}
	return user, nil
}
