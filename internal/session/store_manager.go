package session

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
)

// CookieName names the session cookie for the gorilla-backed managers.
const CookieName = "dancetime-session"

const (
	keyRole  = "role"
	keyName  = "name"
	keyEmail = "email"
)

// StoreManager keeps identities in any gorilla sessions.Store.
type StoreManager struct {
	store sessions.Store
}

// NewStoreManager wraps store.
func NewStoreManager(store sessions.Store) *StoreManager {
	return &StoreManager{store: store}
}

// NewCookieManager keeps the identity inside a signed and encrypted cookie.
func NewCookieManager(hashKey, blockKey []byte, ttl time.Duration, secure bool) *StoreManager {
	store := sessions.NewCookieStore(hashKey, blockKey)
	store.Options = CookieOptions(ttl, secure)
	store.MaxAge(int(ttl.Seconds()))
	return NewStoreManager(store)
}

// CookieOptions are the cookie attributes shared by every backend.
func CookieOptions(ttl time.Duration, secure bool) *sessions.Options {
	return &sessions.Options{
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Load returns the identity held by the request's session, or an anonymous
// one when the cookie is missing or invalid.
func (m *StoreManager) Load(r *http.Request) Identity {
	sess, err := m.store.Get(r, CookieName)
	if err != nil || sess == nil {
		return Identity{}
	}
	role, _ := sess.Values[keyRole].(string)
	name, _ := sess.Values[keyName].(string)
	email, _ := sess.Values[keyEmail].(string)
	return Identity{Role: role, Name: name, Email: email}
}

// renewer is implemented by stores that keep session state server-side and
// must issue a fresh id when a visitor signs in.
type renewer interface {
	Renew(ctx context.Context, sess *sessions.Session) error
}

// Save stores id in the visitor's session. Any server-side id the visitor
// arrived with is discarded first, so a planted session id never becomes
// authenticated.
func (m *StoreManager) Save(w http.ResponseWriter, r *http.Request, id Identity) error {
	// A decode error still yields a fresh session we can overwrite.
	sess, _ := m.store.Get(r, CookieName)
	if sess == nil {
		var err error
		if sess, err = m.store.New(r, CookieName); sess == nil {
			return err
		}
	}
	if rn, ok := m.store.(renewer); ok && sess.ID != "" {
		if err := rn.Renew(r.Context(), sess); err != nil {
			return err
		}
	}
	sess.Values = map[interface{}]interface{}{}
	sess.Values[keyRole] = id.Role
	sess.Values[keyName] = id.Name
	sess.Values[keyEmail] = id.Email
	return sess.Save(r, w)
}

// Destroy clears the session and expires its cookie.
func (m *StoreManager) Destroy(w http.ResponseWriter, r *http.Request) error {
	sess, _ := m.store.Get(r, CookieName)
	if sess == nil {
		return nil
	}
	sess.Values = map[interface{}]interface{}{}
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}
