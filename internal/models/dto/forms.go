package dto

import (
	"math"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dancetime/booking/internal/models"
)

// ValidationError collects every rule a submitted form violated.
type ValidationError struct {
	Problems []string
}

// Error joins the problems into one line.
func (e *ValidationError) Error() string {
	return "invalid form: " + strings.Join(e.Problems, "; ")
}

func problems(list []string) error {
	if len(list) == 0 {
		return nil
	}
	return &ValidationError{Problems: list}
}

// LoginForm is the submitted login credentials.
type LoginForm struct {
	Username string
	Password string
}

// ParseLoginForm reads the login form.
func ParseLoginForm(v url.Values) LoginForm {
	return LoginForm{
		Username: strings.TrimSpace(v.Get("username")),
		Password: v.Get("password"),
	}
}

// SignupForm is the self-service account form.
type SignupForm struct {
	Username string
	Email    string
	Password string
}

// ParseSignupForm reads the signup form, trimming username and email.
func ParseSignupForm(v url.Values) SignupForm {
	return SignupForm{
		Username: strings.TrimSpace(v.Get("username")),
		Email:    strings.TrimSpace(v.Get("email")),
		Password: v.Get("password"),
	}
}

// Validate applies the signup rules and reports all failures at once.
func (f SignupForm) Validate() error {
	var list []string
	if utf8.RuneCountInString(f.Username) < 3 {
		list = append(list, "Username must be at least 3 characters.")
	}
	if !strings.Contains(f.Email, "@") {
		list = append(list, "A valid email is required.")
	}
	if utf8.RuneCountInString(f.Password) < 6 {
		list = append(list, "Password must be at least 6 characters long.")
	}
	return problems(list)
}

// UserForm is the admin add/edit user form.
type UserForm struct {
	Username string
	Email    string
	Role     string
	Password string
}

// ParseUserForm reads the admin user form.
func ParseUserForm(v url.Values) UserForm {
	return UserForm{
		Username: strings.TrimSpace(v.Get("username")),
		Email:    strings.TrimSpace(v.Get("email")),
		Role:     strings.TrimSpace(v.Get("role")),
		Password: v.Get("password"),
	}
}

// Validate checks the form. A password is mandatory only when creating.
func (f UserForm) Validate(creating bool) error {
	var list []string
	if f.Username == "" {
		list = append(list, "Username is required.")
	}
	if !strings.Contains(f.Email, "@") {
		list = append(list, "A valid email is required.")
	}
	if !models.ValidRole(f.Role) {
		list = append(list, "Role must be admin or user.")
	}
	if creating && strings.TrimSpace(f.Password) == "" {
		list = append(list, "Password is required.")
	}
	return problems(list)
}

// HasPassword reports whether a replacement password was supplied.
func (f UserForm) HasPassword() bool {
	return strings.TrimSpace(f.Password) != ""
}

// CourseForm carries the course fields and the classes to store with it.
type CourseForm struct {
	Details models.CourseDetails
	Classes []models.Class
}

func parseDetails(v url.Values) models.CourseDetails {
	return models.CourseDetails{
		Name:        strings.TrimSpace(v.Get("name")),
		Duration:    strings.TrimSpace(v.Get("duration")),
		Description: strings.TrimSpace(v.Get("description")),
	}
}

// ParseNewCourseForm reads the add-course form, which may describe a single
// initial class. A blank class name means no class.
func ParseNewCourseForm(v url.Values) CourseForm {
	form := CourseForm{Details: parseDetails(v), Classes: []models.Class{}}
	if strings.TrimSpace(v.Get("className")) != "" {
		form.Classes = append(form.Classes, ParseClassForm(v))
	}
	return form
}

// ParseCourseEditForm rebuilds the full class list from the parallel
// className/date/time/location/price arrays. Entries with a blank class name
// are dropped; the rest keep their submitted order.
func ParseCourseEditForm(v url.Values) CourseForm {
	form := CourseForm{Details: parseDetails(v), Classes: []models.Class{}}
	names := v["className"]
	for i, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		form.Classes = append(form.Classes, models.Class{
			ClassName: name,
			Date:      at(v["date"], i),
			Time:      at(v["time"], i),
			Location:  at(v["location"], i),
			Price:     ParsePrice(at(v["price"], i)),
		})
	}
	return form
}

// Validate requires a course name.
func (f CourseForm) Validate() error {
	if f.Details.Name == "" {
		return problems([]string{"Course name is required."})
	}
	return nil
}

// ParseClassForm reads a single class from the form.
func ParseClassForm(v url.Values) models.Class {
	return models.Class{
		ClassName: v.Get("className"),
		Date:      v.Get("date"),
		Time:      v.Get("time"),
		Location:  v.Get("location"),
		Price:     ParsePrice(v.Get("price")),
	}
}

// ParsePrice converts a submitted price, treating anything unparseable as 0.
func ParsePrice(raw string) float64 {
	price, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(price) || math.IsInf(price, 0) {
		return 0
	}
	return price
}

// RegistrationForm is the course registration form.
type RegistrationForm struct {
	Name  string
	Email string
}

// ParseRegistrationForm reads a registration name and email.
func ParseRegistrationForm(v url.Values) RegistrationForm {
	return RegistrationForm{
		Name:  strings.TrimSpace(v.Get("name")),
		Email: strings.TrimSpace(v.Get("email")),
	}
}

// Validate requires an email; the name may be blank.
func (f RegistrationForm) Validate() error {
	if f.Email == "" {
		return problems([]string{"Email is required."})
	}
	return nil
}

// ParseIndex parses a positional index from a path segment. Non-numeric
// input yields -1, which every bounds check rejects.
func ParseIndex(raw string) int {
	idx, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return idx
}

func at(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return ""
}
