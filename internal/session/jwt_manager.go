package session

import (
	"net/http"
	"time"

	"github.com/dancetime/booking/internal/auth"
)

// TokenCookieName holds the signed JWT for the stateless backend.
const TokenCookieName = "auth_token"

// JWTManager keeps the identity in a signed JWT cookie. Nothing is stored
// server-side, so Destroy only clears the cookie.
type JWTManager struct {
	tokens *auth.TokenManager
	secure bool
}

// NewJWTManager issues and verifies session tokens with tokens.
func NewJWTManager(tokens *auth.TokenManager, secure bool) *JWTManager {
	return &JWTManager{tokens: tokens, secure: secure}
}

// Load parses the token cookie; any failure yields an anonymous identity.
func (m *JWTManager) Load(r *http.Request) Identity {
	cookie, err := r.Cookie(TokenCookieName)
	if err != nil || cookie.Value == "" {
		return Identity{}
	}
	claims, err := m.tokens.Parse(cookie.Value)
	if err != nil {
		return Identity{}
	}
	return Identity{Role: claims.Role, Name: claims.Name, Email: claims.Email}
}

// Save issues a fresh token for id.
func (m *JWTManager) Save(w http.ResponseWriter, r *http.Request, id Identity) error {
	raw, err := m.tokens.Generate(auth.Claims{Name: id.Name, Email: id.Email, Role: id.Role})
	if err != nil {
		return err
	}
	ttl := m.tokens.TTL()
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookieName,
		Value:    raw,
		Path:     "/",
		Expires:  time.Now().Add(ttl),
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Destroy expires the token cookie.
func (m *JWTManager) Destroy(w http.ResponseWriter, r *http.Request) error {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
