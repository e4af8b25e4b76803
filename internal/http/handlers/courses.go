package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dancetime/booking/internal/http/views"
	"github.com/dancetime/booking/internal/models"
	"github.com/dancetime/booking/internal/models/dto"
	"github.com/dancetime/booking/internal/session"
	"github.com/dancetime/booking/internal/storage"
)

// CourseHandler serves the public landing page, catalog and course
// registration form.
type CourseHandler struct {
	courses storage.CourseStore
	pages   *Pages
	logger  zerolog.Logger
}

// NewCourseHandler constructs the public course handler.
func NewCourseHandler(courses storage.CourseStore, pages *Pages, logger zerolog.Logger) *CourseHandler {
	return &CourseHandler{courses: courses, pages: pages, logger: logger}
}

// Register mounts the landing, catalog and registration routes.
func (h *CourseHandler) Register(r chi.Router) {
	r.Get("/", h.index)
	r.Get("/courses", h.catalog)
	r.Get("/register-course/{id}", h.registerPage)
	r.Post("/register-course/{id}", h.register)
}

func (h *CourseHandler) index(w http.ResponseWriter, r *http.Request) {
	h.pages.Render(w, r, http.StatusOK, "index", "Welcome to DanceTime!", nil)
}

func (h *CourseHandler) catalog(w http.ResponseWriter, r *http.Request) {
	courses, err := h.courses.ListCourses(r.Context())
	if err != nil {
		h.pages.Internal(w, r, err, "list courses")
		return
	}
	viewer := session.FromContext(r.Context())
	h.pages.Render(w, r, http.StatusOK, "courses", "Courses", views.Data{
		"Courses":     courses,
		"CanRegister": viewer.IsUser(),
	})
}

func (h *CourseHandler) registerPage(w http.ResponseWriter, r *http.Request) {
	course, err := h.courses.GetCourse(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.pages.Fail(w, r, err, courseSubject)
		return
	}
	viewer := session.FromContext(r.Context())
	h.renderForm(w, r, http.StatusOK, course, dto.RegistrationForm{Name: viewer.Name, Email: viewer.Email}, nil)
}

func (h *CourseHandler) renderForm(w http.ResponseWriter, r *http.Request, status int, course models.Course, form dto.RegistrationForm, problems []string) {
	h.pages.Render(w, r, status, "register_course", "Register for Course", views.Data{
		"Course": course,
		"Name":   form.Name,
		"Email":  form.Email,
		"Errors": problems,
	})
}

func (h *CourseHandler) register(w http.ResponseWriter, r *http.Request) {
	if !h.pages.parseForm(w, r) {
		return
	}
	courseID := chi.URLParam(r, "id")
	form := dto.ParseRegistrationForm(r.PostForm)
	if err := form.Validate(); err != nil {
		course, getErr := h.courses.GetCourse(r.Context(), courseID)
		if getErr != nil {
			h.pages.Fail(w, r, getErr, courseSubject)
			return
		}
		h.renderForm(w, r, http.StatusBadRequest, course, form, problemsOf(err))
		return
	}

	course, err := h.courses.AddRegistration(r.Context(), courseID, models.Registration{Name: form.Name, Email: form.Email})
	if err != nil {
		h.pages.Fail(w, r, err, courseSubject)
		return
	}
	h.logger.Info().Str("course_id", courseID).Str("email", form.Email).Msg("registration added")

	h.pages.Render(w, r, http.StatusOK, "registration_success", "Thank You!", views.Data{
		"UserName":   form.Name,
		"CourseName": course.Name,
		"BackLink":   "/courses",
	})
}
