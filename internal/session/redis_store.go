package session

import (
	"context"
	"encoding/base32"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
)

var _ sessions.Store = (*RedisStore)(nil)

// RedisStore is a gorilla sessions.Store that keeps session values in redis
// and only a signed session id in the cookie. Entries expire with the cookie.
type RedisStore struct {
	client  *redis.Client
	codecs  []securecookie.Codec
	serial  securecookie.GobEncoder
	prefix  string
	Options *sessions.Options
}

// NewRedisStore builds a store over client. keyPairs sign (and optionally
// encrypt) the session id cookie, as in sessions.NewCookieStore.
func NewRedisStore(client *redis.Client, opts *sessions.Options, keyPairs ...[]byte) *RedisStore {
	codecs := securecookie.CodecsFromPairs(keyPairs...)
	for _, c := range codecs {
		if sc, ok := c.(*securecookie.SecureCookie); ok {
			sc.MaxAge(opts.MaxAge)
		}
	}
	return &RedisStore{
		client:  client,
		codecs:  codecs,
		prefix:  "session:",
		Options: opts,
	}
}

// NewRedisManager wires a RedisStore into a Manager.
func NewRedisManager(client *redis.Client, hashKey, blockKey []byte, ttl time.Duration, secure bool) *StoreManager {
	return NewStoreManager(NewRedisStore(client, CookieOptions(ttl, secure), hashKey, blockKey))
}

// Get returns the session cached for the request or loads it.
func (s *RedisStore) Get(r *http.Request, name string) (*sessions.Session, error) {
	return sessions.GetRegistry(r).Get(s, name)
}

// New decodes the session id cookie and loads its values from redis. A
// missing or expired entry yields a new, empty session.
func (s *RedisStore) New(r *http.Request, name string) (*sessions.Session, error) {
	session := sessions.NewSession(s, name)
	opts := *s.Options
	session.Options = &opts
	session.IsNew = true

	cookie, err := r.Cookie(name)
	if err != nil {
		return session, nil
	}
	if err := securecookie.DecodeMulti(name, cookie.Value, &session.ID, s.codecs...); err != nil {
		return session, err
	}
	found, err := s.load(r.Context(), session)
	if err != nil {
		return session, err
	}
	session.IsNew = !found
	return session, nil
}

// Save writes the values to redis and the signed id to the cookie. A
// negative MaxAge deletes both.
func (s *RedisStore) Save(r *http.Request, w http.ResponseWriter, session *sessions.Session) error {
	ctx := r.Context()
	if session.Options.MaxAge < 0 {
		if session.ID != "" {
			if err := s.client.Del(ctx, s.key(session.ID)).Err(); err != nil {
				return fmt.Errorf("delete session: %w", err)
			}
		}
		http.SetCookie(w, sessions.NewCookie(session.Name(), "", session.Options))
		return nil
	}

	if session.ID == "" {
		session.ID = strings.TrimRight(base32.StdEncoding.EncodeToString(securecookie.GenerateRandomKey(32)), "=")
	}
	data, err := s.serial.Serialize(session.Values)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	ttl := time.Duration(session.Options.MaxAge) * time.Second
	if err := s.client.Set(ctx, s.key(session.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}

	encoded, err := securecookie.EncodeMulti(session.Name(), session.ID, s.codecs...)
	if err != nil {
		return fmt.Errorf("sign session id: %w", err)
	}
	http.SetCookie(w, sessions.NewCookie(session.Name(), encoded, session.Options))
	return nil
}

// Renew drops the server-side entry for the session's current id and clears
// the id, so the next Save issues a new one.
func (s *RedisStore) Renew(ctx context.Context, session *sessions.Session) error {
	if session.ID == "" {
		return nil
	}
	if err := s.client.Del(ctx, s.key(session.ID)).Err(); err != nil {
		return fmt.Errorf("renew session: %w", err)
	}
	session.ID = ""
	return nil
}

func (s *RedisStore) load(ctx context.Context, session *sessions.Session) (bool, error) {
	data, err := s.client.Get(ctx, s.key(session.ID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load session: %w", err)
	}
	if err := s.serial.Deserialize(data, &session.Values); err != nil {
		return false, fmt.Errorf("decode session: %w", err)
	}
	return true, nil
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}
