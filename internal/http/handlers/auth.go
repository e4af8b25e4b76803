package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dancetime/booking/internal/auth"
	"github.com/dancetime/booking/internal/http/views"
	"github.com/dancetime/booking/internal/models"
	"github.com/dancetime/booking/internal/models/dto"
	"github.com/dancetime/booking/internal/session"
	"github.com/dancetime/booking/internal/storage"
)

// AdminAccount is the fixed administrator login that bypasses the user
// store. An empty password disables it.
type AdminAccount struct {
	Username string
	Password string
}

func (a AdminAccount) matches(form dto.LoginForm) bool {
	if a.Password == "" {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(form.Username), []byte(a.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(form.Password), []byte(a.Password)) == 1
	return userOK && passOK
}

// AuthHandler owns login, signup and logout.
type AuthHandler struct {
	store    storage.UserStore
	sessions session.Manager
	pages    *Pages
	admin    AdminAccount
	throttle func(http.Handler) http.Handler
	logger   zerolog.Logger
}

// NewAuthHandler constructs the handler. throttle wraps the credential
// form submissions.
func NewAuthHandler(store storage.UserStore, sessions session.Manager, pages *Pages, admin AdminAccount, throttle func(http.Handler) http.Handler, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		store:    store,
		sessions: sessions,
		pages:    pages,
		admin:    admin,
		throttle: throttle,
		logger:   logger,
	}
}

// Register attaches auth routes to the router.
func (h *AuthHandler) Register(r chi.Router) {
	r.Get("/login", h.loginPage)
	r.Get("/signup", h.signupPage)
	r.Get("/logout", h.logout)
	r.Group(func(r chi.Router) {
		r.Use(h.throttle)
		r.Post("/login", h.login)
		r.Post("/signup", h.signup)
	})
}

func (h *AuthHandler) loginPage(w http.ResponseWriter, r *http.Request) {
	h.pages.Render(w, r, http.StatusOK, "login", "Login", views.Data{"Username": "", "Error": ""})
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	if !h.pages.parseForm(w, r) {
		return
	}
	form := dto.ParseLoginForm(r.PostForm)

	if h.admin.matches(form) {
		h.establish(w, r, session.Identity{Role: models.AdminRole, Name: "Admin"}, "/")
		return
	}

	user, err := h.store.FindByUsername(r.Context(), form.Username)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		h.pages.Internal(w, r, err, "look up user for login")
		return
	}
	if err != nil || !auth.CheckPassword(user.PasswordHash, form.Password) {
		h.logger.Info().Str("username", form.Username).Msg("login rejected")
		h.pages.Render(w, r, http.StatusUnauthorized, "login", "Login", views.Data{
			"Username": form.Username,
			"Error":    "Invalid username or password",
		})
		return
	}

	h.establish(w, r, session.Identity{Role: user.Role, Name: user.Username, Email: user.Email}, "/")
}

func (h *AuthHandler) signupPage(w http.ResponseWriter, r *http.Request) {
	h.renderSignup(w, r, http.StatusOK, dto.SignupForm{}, nil)
}

func (h *AuthHandler) renderSignup(w http.ResponseWriter, r *http.Request, status int, form dto.SignupForm, problems []string) {
	h.pages.Render(w, r, status, "signup", "Sign Up", views.Data{
		"Username": form.Username,
		"Email":    form.Email,
		"Errors":   problems,
	})
}

func (h *AuthHandler) signup(w http.ResponseWriter, r *http.Request) {
	if !h.pages.parseForm(w, r) {
		return
	}
	form := dto.ParseSignupForm(r.PostForm)
	if err := form.Validate(); err != nil {
		h.renderSignup(w, r, http.StatusBadRequest, form, problemsOf(err))
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
		PasswordHash: hash,
		Role:         models.UserRole,
	})
	if errors.Is(err, storage.ErrAlreadyExists) {
		h.renderSignup(w, r, http.StatusBadRequest, form, []string{"A user with that username or email already exists."})
		return
	}
	if err != nil {
		h.pages.Internal(w, r, err, "create user")
		return
	}

	h.logger.Info().Str("username", user.Username).Msg("user signed up")
	h.establish(w, r, session.Identity{Role: user.Role, Name: user.Username, Email: user.Email}, "/")
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Destroy(w, r); err != nil {
		h.logger.Warn().Err(err).Msg("destroy session")
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *AuthHandler) establish(w http.ResponseWriter, r *http.Request, id session.Identity, next string) {
	if err := h.sessions.Save(w, r, id); err != nil {
		h.pages.Internal(w, r, err, "save session")
		return
	}
	http.Redirect(w, r, next, http.StatusSeeOther)
}
