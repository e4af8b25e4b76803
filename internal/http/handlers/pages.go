package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dancetime/booking/internal/http/views"
	"github.com/dancetime/booking/internal/models/dto"
	"github.com/dancetime/booking/internal/session"
	"github.com/dancetime/booking/internal/storage"
)

// ErrNotOwner is returned when a user touches a registration made under a
// different email.
var ErrNotOwner = errors.New("registration belongs to another email")

// Pages renders templates and the shared error pages for every handler.
type Pages struct {
	views  *views.Renderer
	logger zerolog.Logger
}

// NewPages constructs the shared page helper.
func NewPages(renderer *views.Renderer, logger zerolog.Logger) *Pages {
	return &Pages{views: renderer, logger: logger}
}

// Render executes page with the viewer's identity and title added to data.
func (p *Pages) Render(w http.ResponseWriter, r *http.Request, status int, page, title string, data views.Data) {
	if data == nil {
		data = views.Data{}
	}
	data["Title"] = title
	data["Viewer"] = session.FromContext(r.Context())
	if err := p.views.Render(w, status, page, data); err != nil {
		p.logger.Error().Err(err).Str("page", page).Msg("render page")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func (p *Pages) errorPage(w http.ResponseWriter, r *http.Request, status int, title, message, backLink string) {
	p.Render(w, r, status, "error", title, views.Data{
		"Message":  message,
		"BackLink": backLink,
	})
}

// NotFound is the router's fallback for unknown paths.
func (p *Pages) NotFound(w http.ResponseWriter, r *http.Request) {
	p.errorPage(w, r, http.StatusNotFound, "Page Not Found", "The page you are looking for does not exist.", "/")
}

// MethodNotAllowed answers a known path hit with the wrong verb.
func (p *Pages) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	p.errorPage(w, r, http.StatusMethodNotAllowed, "Method Not Allowed", "That action is not available here.", "/")
}

// Internal logs err and shows the generic failure page.
func (p *Pages) Internal(w http.ResponseWriter, r *http.Request, err error, msg string) {
	p.logger.Error().Err(err).Str("path", r.URL.Path).Msg(msg)
	p.errorPage(w, r, http.StatusInternalServerError, "Something went wrong", "An unexpected error occurred. Please try again later.", "/")
}

// subject names the records a request addresses, for error messages.
type subject struct {
	missing string
	index   string
}

var (
	courseSubject       = subject{missing: "Course"}
	classSubject        = subject{missing: "Course", index: "class"}
	registrationSubject = subject{missing: "Course", index: "registration"}
	userSubject         = subject{missing: "User"}
)

// Fail maps a store or workflow error to its page.
func (p *Pages) Fail(w http.ResponseWriter, r *http.Request, err error, s subject) {
	var verr *dto.ValidationError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		p.errorPage(w, r, http.StatusNotFound, "Not Found", s.missing+" not found.", "/")
	case errors.Is(err, storage.ErrInvalidIndex):
		p.errorPage(w, r, http.StatusBadRequest, "Bad Request", "Invalid "+s.index+" index.", "/")
	case errors.Is(err, ErrNotOwner):
		p.errorPage(w, r, http.StatusForbidden, "Unauthorized", "You can only change your own registrations.", "/user/my-registrations")
	case errors.As(err, &verr):
		p.errorPage(w, r, http.StatusBadRequest, "Bad Request", verr.Error(), "/")
	default:
		p.Internal(w, r, err, "store operation failed")
	}
}

// parseForm reports a malformed body with a 400 page and returns false.
func (p *Pages) parseForm(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		p.errorPage(w, r, http.StatusBadRequest, "Bad Request", "The submitted form could not be read.", "/")
		return false
	}
	return true
}

func problemsOf(err error) []string {
	var verr *dto.ValidationError
	if errors.As(err, &verr) {
		return verr.Problems
	}
	return []string{err.Error()}
}
