package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dancetime/booking/internal/http/views"
	"github.com/dancetime/booking/internal/middleware"
	"github.com/dancetime/booking/internal/models"
	"github.com/dancetime/booking/internal/models/dto"
	"github.com/dancetime/booking/internal/session"
	"github.com/dancetime/booking/internal/storage"
)

// UserHandler serves a signed-in user's own dashboard, registrations and
// account deletion.
type UserHandler struct {
	store    storage.Store
	sessions session.Manager
	pages    *Pages
	logger   zerolog.Logger
}

// NewUserHandler constructs the self-service handler.
func NewUserHandler(store storage.Store, sessions session.Manager, pages *Pages, logger zerolog.Logger) *UserHandler {
	return &UserHandler{store: store, sessions: sessions, pages: pages, logger: logger}
}

// Register mounts the /user routes behind the user role gate.
func (h *UserHandler) Register(r chi.Router) {
	r.Route("/user", func(r chi.Router) {
		r.Use(middleware.RequireRole(models.UserRole))

		r.Get("/dashboard", h.dashboard)
		r.Get("/my-registrations", h.myRegistrations)
		r.Post("/unregister/{courseID}/{index}", h.unregister)
		r.Get("/edit-registration/{courseID}/{index}", h.editRegistrationPage)
		r.Post("/edit-registration/{courseID}/{index}", h.editRegistration)
		r.Post("/delete-account", h.deleteAccount)
	})
}

// ownedBy rejects changes to registrations made under another email.
func ownedBy(email string) storage.RegistrationGuard {
	return func(reg models.Registration) error {
		if reg.Email != email {
			return ErrNotOwner
		}
		return nil
	}
}

// courseRegistrations is one course and the viewer's entries in it.
type courseRegistrations struct {
	Course models.Course
	Mine   []models.IndexedRegistration
}

func (h *UserHandler) dashboard(w http.ResponseWriter, r *http.Request) {
	h.pages.Render(w, r, http.StatusOK, "user_dashboard", "My Dashboard", nil)
}

func (h *UserHandler) myRegistrations(w http.ResponseWriter, r *http.Request) {
	viewer := session.FromContext(r.Context())
	courses, err := h.store.ListCoursesByRegistrant(r.Context(), viewer.Email)
	if err != nil {
		h.pages.Internal(w, r, err, "list registrations")
		return
	}
	items := make([]courseRegistrations, 0, len(courses))
	for _, c := range courses {
		items = append(items, courseRegistrations{Course: c, Mine: c.RegistrationsFor(viewer.Email)})
	}
	h.pages.Render(w, r, http.StatusOK, "my_registrations", "My Registrations", views.Data{"Courses": items})
}

func (h *UserHandler) unregister(w http.ResponseWriter, r *http.Request) {
	viewer := session.FromContext(r.Context())
	courseID := chi.URLParam(r, "courseID")
	idx := dto.ParseIndex(chi.URLParam(r, "index"))
	if err := h.store.RemoveRegistration(r.Context(), courseID, idx, ownedBy(viewer.Email)); err != nil {
		h.pages.Fail(w, r, err, registrationSubject)
		return
	}
	h.logger.Info().Str("course_id", courseID).Str("email", viewer.Email).Msg("registration withdrawn")
	http.Redirect(w, r, "/user/my-registrations", http.StatusSeeOther)
}

func (h *UserHandler) editRegistrationPage(w http.ResponseWriter, r *http.Request) {
	viewer := session.FromContext(r.Context())
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
	reg := course.Registrations[idx]
	if err := ownedBy(viewer.Email)(reg); err != nil {
		h.pages.Fail(w, r, err, registrationSubject)
		return
	}
	h.pages.Render(w, r, http.StatusOK, "edit_user_registration", "Edit Registration", views.Data{
		"CourseID":     courseID,
		"Index":        idx,
		"Registration": reg,
	})
}

func (h *UserHandler) editRegistration(w http.ResponseWriter, r *http.Request) {
	if !h.pages.parseForm(w, r) {
		return
	}
	viewer := session.FromContext(r.Context())
	courseID := chi.URLParam(r, "courseID")
	idx := dto.ParseIndex(chi.URLParam(r, "index"))
	form := dto.ParseRegistrationForm(r.PostForm)

	// The email stays the session's so a user cannot move a booking to
	// somebody else.
	reg := models.Registration{Name: form.Name, Email: viewer.Email}
	if err := h.store.UpdateRegistration(r.Context(), courseID, idx, ownedBy(viewer.Email), reg); err != nil {
		h.pages.Fail(w, r, err, registrationSubject)
		return
	}
	http.Redirect(w, r, "/user/my-registrations", http.StatusSeeOther)
}

func (h *UserHandler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	viewer := session.FromContext(r.Context())
	if err := h.store.DeleteUserByEmail(r.Context(), viewer.Email); err != nil {
		h.pages.Fail(w, r, err, userSubject)
		return
	}
	if err := h.sessions.Destroy(w, r); err != nil {
		h.logger.Warn().Err(err).Msg("destroy session")
	}
	h.logger.Info().Str("email", viewer.Email).Msg("account deleted")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
