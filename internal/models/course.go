package models

import "time"

// Course is a dance course with its classes and registrations embedded.
type Course struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Duration      string         `json:"duration"`
	Description   string         `json:"description"`
	Classes       []Class        `json:"classes"`
	Registrations []Registration `json:"registrations"`
	CreatedAt     time.Time      `json:"created_at"`
}

// CourseDetails holds the admin-editable scalar fields of a course.
type CourseDetails struct {
	Name        string `json:"name" yaml:"name"`
	Duration    string `json:"duration" yaml:"duration"`
	Description string `json:"description" yaml:"description"`
}

// Class is a single session inside a course.
type Class struct {
	ID        string  `json:"id" yaml:"-"`
	ClassName string  `json:"className" yaml:"className"`
	Date      string  `json:"date" yaml:"date"`
	Time      string  `json:"time" yaml:"time"`
	Location  string  `json:"location" yaml:"location"`
	Price     float64 `json:"price" yaml:"price"`
}

// Registration records a person signed up for a course.
type Registration struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// IndexedRegistration is a registration tagged with its current position in
// the parent course's list.
type IndexedRegistration struct {
	Registration
	Index    int
	CourseID string
}

// Details returns the scalar fields of the course.
func (c Course) Details() CourseDetails {
	return CourseDetails{Name: c.Name, Duration: c.Duration, Description: c.Description}
}

// IndexedRegistrations tags every registration with its position.
func (c Course) IndexedRegistrations() []IndexedRegistration {
	out := make([]IndexedRegistration, 0, len(c.Registrations))
	for i, reg := range c.Registrations {
		out = append(out, IndexedRegistration{Registration: reg, Index: i, CourseID: c.ID})
	}
	return out
}

// RegistrationsFor returns only the registrations whose email matches,
// keeping each one's position in the full list.
func (c Course) RegistrationsFor(email string) []IndexedRegistration {
	var out []IndexedRegistration
	for i, reg := range c.Registrations {
		if reg.Email == email {
			out = append(out, IndexedRegistration{Registration: reg, Index: i, CourseID: c.ID})
		}
	}
	return out
}

// HasRegistration reports whether any registration uses the email.
func (c Course) HasRegistration(email string) bool {
	for _, reg := range c.Registrations {
		if reg.Email == email {
			return true
		}
	}
	return false
}
