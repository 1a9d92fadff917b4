package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"

	"github.com/xenking/storefront/internal/domain/session"
)

const (
	cookieName  = "storefront"
	cookieIDKey = "sid"
)

// NewCookieStore returns a gorilla/sessions store for the session id cookie.
// The cookie lives for the browser session only. An empty hashKey generates
// a random one, which invalidates cookies on restart.
func NewCookieStore(hashKey []byte, secure bool) sessions.Store {
	if len(hashKey) == 0 {
		hashKey = securecookie.GenerateRandomKey(32)
	}
	store := sessions.NewCookieStore(hashKey)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   0,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// sessionID returns the visitor's session id, issuing a new cookie when the
// request carries none or an invalid one.
func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) (string, error) {
	// A decode error still yields a usable new session.
	sess, _ := h.cookies.Get(r, cookieName)
	if id, ok := sess.Values[cookieIDKey].(string); ok && id != "" {
		return id, nil
	}

	id := uuid.NewString()
	sess.Values[cookieIDKey] = id
	if err := sess.Save(r, w); err != nil {
		return "", errors.Wrap(err, "save session cookie")
	}
	return id, nil
}

// load returns the visitor's state without issuing a cookie or creating a
// session. Requests without a session cookie get the zero State.
func (h *Handler) load(r *http.Request) (session.State, error) {
	sess, err := h.cookies.Get(r, cookieName)
	if err != nil {
		return session.State{}, nil
	}
	id, ok := sess.Values[cookieIDKey].(string)
	if !ok || id == "" {
		return session.State{}, nil
	}
	st, err := h.sessions.Load(r.Context(), id)
	if err != nil {
		return session.State{}, errors.Wrap(err, "load session")
	}
	return st, nil
}

// update runs fn against the visitor's state.
func (h *Handler) update(w http.ResponseWriter, r *http.Request, fn func(*session.State)) (session.State, error) {
	id, err := h.sessionID(w, r)
	if err != nil {
		return session.State{}, err
	}
	st, err := h.sessions.Update(r.Context(), id, fn)
	if err != nil {
		return session.State{}, errors.Wrap(err, "update session")
	}
	return st, nil
}
