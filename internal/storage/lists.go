package storage

import (
	"github.com/google/uuid"

	"github.com/dancetime/booking/internal/models"
)

// NewID returns an opaque identifier for a record or embedded entity.
func NewID() string {
	return uuid.NewString()
}

// WithClassIDs copies classes and gives every entry without an id a new one.
func WithClassIDs(classes []models.Class) []models.Class {
	out := make([]models.Class, len(classes))
	for i, c := range classes {
		if c.ID == "" {
			c.ID = NewID()
		}
		out[i] = c
	}
	return out
}

// ReplaceClass overwrites the class at index, keeping its id.
func ReplaceClass(classes []models.Class, index int, class models.Class) ([]models.Class, error) {
	if index < 0 || index >= len(classes) {
		return nil, ErrInvalidIndex
	}
	out := append([]models.Class(nil), classes...)
	class.ID = out[index].ID
	if class.ID == "" {
		class.ID = NewID()
	}
	out[index] = class
	return out, nil
}

// ReplaceRegistration overwrites the registration at index after the guard
// approves the current entry. The stored id is kept.
func ReplaceRegistration(regs []models.Registration, index int, guard RegistrationGuard, reg models.Registration) ([]models.Registration, error) {
	if index < 0 || index >= len(regs) {
		return nil, ErrInvalidIndex
	}
	if guard != nil {
		if err := guard(regs[index]); err != nil {
			return nil, err
		}
	}
	out := append([]models.Registration(nil), regs...)
	reg.ID = out[index].ID
	if reg.ID == "" {
		reg.ID = NewID()
	}
	out[index] = reg
	return out, nil
}

// RemoveRegistration drops the registration at index after the guard
// approves it. Later entries shift down by one.
func RemoveRegistration(regs []models.Registration, index int, guard RegistrationGuard) ([]models.Registration, error) {
	if index < 0 || index >= len(regs) {
		return nil, ErrInvalidIndex
	}
	if guard != nil {
		if err := guard(regs[index]); err != nil {
			return nil, err
		}
	}
	out := make([]models.Registration, 0, len(regs)-1)
	out = append(out, regs[:index]...)
	return append(out, regs[index+1:]...), nil
}
