package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dancetime/booking/internal/auth"
	"github.com/dancetime/booking/internal/http/views"
	"github.com/dancetime/booking/internal/middleware"
	"github.com/dancetime/booking/internal/models"
	"github.com/dancetime/booking/internal/models/dto"
	"github.com/dancetime/booking/internal/storage"
)

// AdminHandler serves course, class, registration and user management.
// Every route requires an admin session.
type AdminHandler struct {
	store  storage.Store
	pages  *Pages
	logger zerolog.Logger
}

// NewAdminHandler constructs the admin handler over store.
func NewAdminHandler(store storage.Store, pages *Pages, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{store: store, pages: pages, logger: logger}
}

// Register mounts the /admin routes behind the admin role gate.
func (h *AdminHandler) Register(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireRole(models.AdminRole))

		r.Get("/dashboard", h.dashboard)

		r.Get("/manage-courses", h.manageCourses)
		r.Get("/add-course", h.addCoursePage)
		r.Post("/add-course", h.addCourse)
		r.Get("/edit-course/{id}", h.editCoursePage)
		r.Post("/edit-course/{id}", h.editCourse)
		r.Post("/delete-course/{id}", h.deleteCourse)

		r.Get("/edit-class/{courseID}/{index}", h.editClassPage)
		r.Post("/edit-class/{courseID}/{index}", h.editClass)

		r.Get("/registrations/{courseID}", h.registrations)
		r.Get("/edit-registration/{courseID}/{index}", h.editRegistrationPage)
		r.Post("/edit-registration/{courseID}/{index}", h.editRegistration)
		r.Post("/delete-registration/{courseID}/{index}", h.deleteRegistration)

		r.Get("/manage-users", h.manageUsers)
		r.Get("/add-user", h.addUserPage)
		r.Post("/add-user", h.addUser)
		r.Get("/edit-user/{id}", h.editUserPage)
		r.Post("/edit-user/{id}", h.editUser)
		r.Post("/delete-user/{id}", h.deleteUser)
	})
}

func (h *AdminHandler) dashboard(w http.ResponseWriter, r *http.Request) {
	h.pages.Render(w, r, http.StatusOK, "admin_dashboard", "Admin Dashboard", nil)
}

// ---- courses ----

func (h *AdminHandler) manageCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.store.ListCourses(r.Context())
	if err != nil {
		h.pages.Internal(w, r, err, "list courses")
		return
	}
	h.pages.Render(w, r, http.StatusOK, "manage_courses", "Manage Courses", views.Data{"Courses": courses})
}

func (h *AdminHandler) addCoursePage(w http.ResponseWriter, r *http.Request) {
	h.pages.Render(w, r, http.StatusOK, "add_course", "Add Course", views.Data{"Form": dto.CourseForm{}, "Errors": nil})
}

func (h *AdminHandler) addCourse(w http.ResponseWriter, r *http.Request) {
	if !h.pages.parseForm(w, r) {
		return
	}
	form := dto.ParseNewCourseForm(r.PostForm)
	if err := form.Validate(); err != nil {
		h.pages.Render(w, r, http.StatusBadRequest, "add_course", "Add Course", views.Data{"Form": form, "Errors": problemsOf(err)})
		return
	}
	course, err := h.store.CreateCourse(r.Context(), form.Details, form.Classes)
	if err != nil {
		h.pages.Internal(w, r, err, "create course")
		return
	}
	h.logger.Info().Str("course_id", course.ID).Str("name", course.Name).Msg("course added")
	http.Redirect(w, r, "/admin/manage-courses", http.StatusSeeOther)
}

func (h *AdminHandler) editCoursePage(w http.ResponseWriter, r *http.Request) {
	course, err := h.store.GetCourse(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.pages.Fail(w, r, err, courseSubject)
		return
	}
	h.pages.Render(w, r, http.StatusOK, "edit_course", "Edit Course", views.Data{"Course": course, "Errors": nil})
}

func (h *AdminHandler) editCourse(w http.ResponseWriter, r *http.Request) {
	if !h.pages.parseForm(w, r) {
		return
	}
	id := chi.URLParam(r, "id")
	form := dto.ParseCourseEditForm(r.PostForm)
	if err := form.Validate(); err != nil {
		course := models.Course{ID: id, Name: form.Details.Name, Duration: form.Details.Duration, Description: form.Details.Description, Classes: form.Classes}
		h.pages.Render(w, r, http.StatusBadRequest, "edit_course", "Edit Course", views.Data{"Course": course, "Errors": problemsOf(err)})
		return
	}
	if err := h.store.UpdateCourse(r.Context(), id, form.Details, form.Classes); err != nil {
		h.pages.Fail(w, r, err, courseSubject)
		return
	}
	http.Redirect(w, r, "/admin/manage-courses", http.StatusSeeOther)
}

func (h *AdminHandler) deleteCourse(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.DeleteCourse(r.Context(), id); err != nil {
		h.pages.Fail(w, r, err, courseSubject)
		return
	}
	h.logger.Info().Str("course_id", id).Msg("course deleted")
	http.Redirect(w, r, "/admin/manage-courses", http.StatusSeeOther)
}

// ---- classes ----

func (h *AdminHandler) editClassPage(w http.ResponseWriter, r *http.Request) {
	courseID := chi.URLParam(r, "courseID")
	idx := dto.ParseIndex(chi.URLParam(r, "index"))
	course, err := h.store.GetCourse(r.Context(), courseID)
	if err != nil {
		h.pages.Fail(w, r, err, classSubject)
		return
	}
	if idx < 0 || idx >= len(course.Classes) {
		h.pages.Fail(w, r, storage.ErrInvalidIndex, classSubject)
		return
	}
	h.pages.Render(w, r, http.StatusOK, "edit_class", "Edit Class", views.Data{
		"CourseID": courseID,
		"Index":    idx,
		"Class":    course.Classes[idx],
	})
}

func (h *AdminHandler) editClass(w http.ResponseWriter, r *http.Request) {
	if !h.pages.parseForm(w, r) {
		return
	}
	courseID := chi.URLParam(r, "courseID")
	idx := dto.ParseIndex(chi.URLParam(r, "index"))
	if err := h.store.UpdateClass(r.Context(), courseID, idx, dto.ParseClassForm(r.PostForm)); err != nil {
		h.pages.Fail(w, r, err, classSubject)
		return
	}
	http.Redirect(w, r, "/admin/manage-courses", http.StatusSeeOther)
}

// ---- registrations ----

func (h *AdminHandler) registrations(w http.ResponseWriter, r *http.Request) {
	course, err := h.store.GetCourse(r.Context(), chi.URLParam(r, "courseID"))
	if err != nil {
		h.pages.Fail(w, r, err, courseSubject)
		return
	}
	h.pages.Render(w, r, http.StatusOK, "registrations", "Registrations for "+course.Name, views.Data{
		"Course":        course,
		"Registrations": course.IndexedRegistrations(),
	})
}

func (h *AdminHandler) editRegistrationPage(w http.ResponseWriter, r *http.Request) {
	courseID := chi.URLParam(r, "courseID")
	idx := dto.ParseIndex(chi.URLParam(r, "index"))
	course, err := h.store.GetCourse(r.Context(), courseID)
	if err != nil {
		h.pages.Fail(w, r, err, registrationSubject)
		return
	}
	if idx < 0 || idx >= len(course.Registrations) {
		h.pages.Fail(w, r, storage.ErrInvalidIndex, registrationSubject)
		return
	}
	h.pages.Render(w, r, http.StatusOK, "edit_registration", "Edit Registration", views.Data{
		"CourseID":     courseID,
		"Index":        idx,
		"Registration": course.Registrations[idx],
		"Errors":       nil,
	})
}

func (h *AdminHandler) editRegistration(w http.ResponseWriter, r *http.Request) {
	if !h.pages.parseForm(w, r) {
		return
	}
	courseID := chi.URLParam(r, "courseID")
	idx := dto.ParseIndex(chi.URLParam(r, "index"))
	form := dto.ParseRegistrationForm(r.PostForm)
	reg := models.Registration{Name: form.Name, Email: form.Email}
	if err := form.Validate(); err != nil {
		h.pages.Render(w, r, http.StatusBadRequest, "edit_registration", "Edit Registration", views.Data{
			"CourseID":     courseID,
			"Index":        idx,
			"Registration": reg,
			"Errors":       problemsOf(err),
		})
		return
	}
	if err := h.store.UpdateRegistration(r.Context(), courseID, idx, nil, reg); err != nil {
		h.pages.Fail(w, r, err, registrationSubject)
		return
	}
	http.Redirect(w, r, "/admin/registrations/"+courseID, http.StatusSeeOther)
}

func (h *AdminHandler) deleteRegistration(w http.ResponseWriter, r *http.Request) {
	courseID := chi.URLParam(r, "courseID")
	idx := dto.ParseIndex(chi.URLParam(r, "index"))
	if err := h.store.RemoveRegistration(r.Context(), courseID, idx, nil); err != nil {
		h.pages.Fail(w, r, err, registrationSubject)
		return
	}
	http.Redirect(w, r, "/admin/registrations/"+courseID, http.StatusSeeOther)
}

// ---- users ----

func (h *AdminHandler) manageUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		h.pages.Internal(w, r, err, "list users")
		return
	}
	h.pages.Render(w, r, http.StatusOK, "manage_users", "Manage Users", views.Data{"Users": users})
}

func (h *AdminHandler) addUserPage(w http.ResponseWriter, r *http.Request) {
	h.pages.Render(w, r, http.StatusOK, "add_user", "Add User", views.Data{"Form": dto.UserForm{Role: models.UserRole}, "Errors": nil})
}

func (h *AdminHandler) addUser(w http.ResponseWriter, r *http.Request) {
	if !h.pages.parseForm(w, r) {
		return
	}
	form := dto.ParseUserForm(r.PostForm)
	rerender := func(problems []string) {
		h.pages.Render(w, r, http.StatusBadRequest, "add_user", "Add User", views.Data{"Form": form, "Errors": problems})
	}
	if err := form.Validate(true); err != nil {
		rerender(problemsOf(err))
		return
	}

	hash, err := auth.HashPassword(form.Password)
	if err != nil {
		h.pages.Internal(w, r, err, "hash password")
		return
	}
	user, err := h.store.CreateUser(r.Context(), models.User{
		Username:     form.Username,
		Email:        form.Email,
		Role:         form.Role,
		PasswordHash: hash,
	})
	if errors.Is(err, storage.ErrAlreadyExists) {
		rerender([]string{"A user with that username or email already exists."})
		return
	}
	if err != nil {
		h.pages.Internal(w, r, err, "create user")
		return
	}
	h.logger.Info().Str("user_id", user.ID).Str("username", user.Username).Msg("user added")
	http.Redirect(w, r, "/admin/manage-users", http.StatusSeeOther)
}

func (h *AdminHandler) editUserPage(w http.ResponseWriter, r *http.Request) {
	user, err := h.store.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.pages.Fail(w, r, err, userSubject)
		return
	}
	h.pages.Render(w, r, http.StatusOK, "edit_user", "Edit User", views.Data{"User": user, "Errors": nil})
}

func (h *AdminHandler) editUser(w http.ResponseWriter, r *http.Request) {
	if !h.pages.parseForm(w, r) {
		return
	}
	id := chi.URLParam(r, "id")
	form := dto.ParseUserForm(r.PostForm)
	user := models.User{ID: id, Username: form.Username, Email: form.Email, Role: form.Role}
	rerender := func(problems []string) {
		h.pages.Render(w, r, http.StatusBadRequest, "edit_user", "Edit User", views.Data{"User": user, "Errors": problems})
	}
	if err := form.Validate(false); err != nil {
		rerender(problemsOf(err))
		return
	}

	if form.HasPassword() {
		hash, err := auth.HashPassword(form.Password)
		if err != nil {
			h.pages.Internal(w, r, err, "hash password")
			return
		}
		user.PasswordHash = hash
	}
	_, err := h.store.UpdateUser(r.Context(), user)
	if errors.Is(err, storage.ErrAlreadyExists) {
		rerender([]string{"A user with that username or email already exists."})
		return
	}
	if err != nil {
		h.pages.Fail(w, r, err, userSubject)
		return
	}
	http.Redirect(w, r, "/admin/manage-users", http.StatusSeeOther)
}

func (h *AdminHandler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.DeleteUser(r.Context(), id); err != nil {
		h.pages.Fail(w, r, err, userSubject)
		return
	}
	h.logger.Info().Str("user_id", id).Msg("user deleted")
	http.Redirect(w, r, "/admin/manage-users", http.StatusSeeOther)
}
