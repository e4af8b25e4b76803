// Package session tracks who is signed in. Handlers depend on the Manager
// interface; the concrete backend is chosen at startup.
package session

import (
	"context"
	"net/http"

	"github.com/dancetime/booking/internal/models"
)

// Identity is what a session remembers about the visitor.
type Identity struct {
	Role  string
	Name  string
	Email string
}

// Anonymous reports whether nobody is signed in.
func (i Identity) Anonymous() bool {
	return i.Role == ""
}

// IsAdmin and IsUser report the signed-in role.
func (i Identity) IsAdmin() bool { return i.Role == models.AdminRole }
func (i Identity) IsUser() bool  { return i.Role == models.UserRole }

// AccountLink is the dashboard that belongs to the signed-in role.
func (i Identity) AccountLink() string {
	switch i.Role {
	case models.AdminRole:
		return "/admin/dashboard"
	case models.UserRole:
		return "/user/dashboard"
	default:
		return ""
	}
}

// Manager persists an Identity between requests.
type Manager interface {
	// Load returns the caller's identity, or an anonymous one when there is
	// no valid session.
	Load(r *http.Request) Identity
	Save(w http.ResponseWriter, r *http.Request, id Identity) error
	Destroy(w http.ResponseWriter, r *http.Request) error
}

type ctxKey struct{}

// WithIdentity stores id on the context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by WithIdentity, or an anonymous one.
func FromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(ctxKey{}).(Identity)
	return id
}
