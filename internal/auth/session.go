package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sakif/bookshelf/internal/session"
)

const (
	// SessionCookieName is the name of the cookie carrying the signed
	// session id.
	SessionCookieName = "bookshelf_session"

	// SessionLifetime is the absolute lifetime of a session. It is not
	// extended by activity.
	SessionLifetime = time.Hour
)

// SessionManager ties the browser cookie to a server-side session.Store.
//
// COOKIE CONTENTS:
// The cookie holds a token signed by TokenService whose subject is a random
// session id. The id is only a lookup key: the signed-in user and pending
// flash messages live in the store, never in the cookie.
//
// LIFECYCLE:
//   - Load runs on every request. A request without a usable session gets a
//     fresh anonymous one and the cookie is set on that first response.
//   - Login replaces the session id with a new one holding the user id, so
//     an id handed out before login is useless afterwards.
//   - Logout deletes the record and clears the cookie.
type SessionManager struct {
	store  session.Store
	tokens *TokenService
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewSessionManager creates a SessionManager.
func NewSessionManager(store session.Store, tokens *TokenService, logger *slog.Logger) *SessionManager {
	return &SessionManager{
		store:  store,
		tokens: tokens,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// sessionState is the per-request view of the session, stored in the request
// context by Load. Login and Logout replace its fields in place so handlers
// running later in the same request see the change.
type sessionState struct {
	id   string
	data *session.Data
}

const sessionKey contextKey = "session"

func stateFromContext(ctx context.Context) (*sessionState, bool) {
	st, ok := ctx.Value(sessionKey).(*sessionState)
	return st, ok && st != nil
}

// Load is the middleware that attaches a session to every request.
func (m *SessionManager) Load(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st, ok := m.resume(r)
		if !ok {
			var err error
			if st, err = m.start(w, r, &session.Data{}); err != nil {
				// The visitor stays anonymous and gets another try next request.
				m.logger.Error("session: starting session failed", slog.String("error", err.Error()))
			}
		}
		ctx := context.WithValue(r.Context(), sessionKey, st)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// resume returns the session named by the request cookie, if it is signed,
// unexpired and still in the store.
func (m *SessionManager) resume(r *http.Request) (*sessionState, bool) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, false
	}

	id, err := m.tokens.Verify(cookie.Value)
	if err != nil {
		m.logger.Debug("session: rejecting cookie", slog.String("error", err.Error()))
		return nil, false
	}

	data, err := m.store.Get(r.Context(), id)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			m.logger.Error("session: store lookup failed", slog.String("error", err.Error()))
		}
		return nil, false
	}
	return &sessionState{id: id, data: data}, true
}

// start saves data under a new id and sets the cookie. The returned state is
// usable for the rest of the request even when an error is returned.
func (m *SessionManager) start(w http.ResponseWriter, r *http.Request, data *session.Data) (*sessionState, error) {
	now := m.now()
	data.ExpiresAt = now.Add(SessionLifetime)
	st := &sessionState{id: m.newID(), data: data}

	if err := m.store.Save(r.Context(), st.id, st.data); err != nil {
		return st, fmt.Errorf("saving new session: %w", err)
	}

	token, err := m.tokens.Sign(st.id, now, st.data.ExpiresAt)
	if err != nil {
		return st, err
	}

	setSessionCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(SessionLifetime.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return st, nil
}

// setSessionCookie sets c, dropping any session cookie already queued on
// the response. A first-visit request gets an anonymous cookie from Load;
// Login or Logout in the same request must replace it, not follow it.
func setSessionCookie(w http.ResponseWriter, c *http.Cookie) {
	h := w.Header()
	prefix := SessionCookieName + "="
	var kept []string
	for _, v := range h.Values("Set-Cookie") {
		if !strings.HasPrefix(v, prefix) {
			kept = append(kept, v)
		}
	}
	h.Del("Set-Cookie")
	for _, v := range kept {
		h.Add("Set-Cookie", v)
	}
	http.SetCookie(w, c)
}

// Login signs userID in on a fresh session id and keeps any pending flash
// messages.
func (m *SessionManager) Login(w http.ResponseWriter, r *http.Request, userID int64) error {
	st, ok := stateFromContext(r.Context())
	if !ok {
		return errors.New("auth: Login called outside SessionManager.Load")
	}

	flash := st.data.Flash
	if err := m.store.Delete(r.Context(), st.id); err != nil {
		return fmt.Errorf("auth: discarding pre-login session: %w", err)
	}

	fresh, err := m.start(w, r, &session.Data{UserID: userID, Flash: flash})
	if err != nil {
		return fmt.Errorf("auth: starting session: %w", err)
	}

	*st = *fresh
	return nil
}

// Logout destroys the session record and clears the cookie. A store failure
// is returned to the caller and the cookie is left in place.
func (m *SessionManager) Logout(w http.ResponseWriter, r *http.Request) error {
	st, ok := stateFromContext(r.Context())
	if !ok {
		return nil
	}

	if err := m.store.Delete(r.Context(), st.id); err != nil {
		return fmt.Errorf("auth: destroying session: %w", err)
	}

	setSessionCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	st.data = &session.Data{ExpiresAt: st.data.ExpiresAt}
	return nil
}

// AddFlash queues a message for the next rendered page.
func (m *SessionManager) AddFlash(ctx context.Context, msg string) error {
	st, ok := stateFromContext(ctx)
	if !ok {
		return errors.New("auth: AddFlash called outside SessionManager.Load")
	}
	st.data.Flash = append(st.data.Flash, msg)
	if err := m.store.Save(ctx, st.id, st.data); err != nil {
		return fmt.Errorf("auth: saving flash: %w", err)
	}
	return nil
}

// PopFlash returns the queued messages and clears them.
func (m *SessionManager) PopFlash(ctx context.Context) ([]string, error) {
	st, ok := stateFromContext(ctx)
	if !ok || len(st.data.Flash) == 0 {
		return nil, nil
	}
	msgs := st.data.Flash
	st.data.Flash = nil
	if err := m.store.Save(ctx, st.id, st.data); err != nil {
		return msgs, fmt.Errorf("auth: clearing flash: %w", err)
	}
	return msgs, nil
}

// SessionUserID returns the id of the user signed in on the request's
// session, or false for an anonymous session.
func SessionUserID(ctx context.Context) (int64, bool) {
	st, ok := stateFromContext(ctx)
	if !ok || !st.data.Authenticated() {
		return 0, false
	}
	return st.data.UserID, true
}
