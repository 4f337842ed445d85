package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/sakif/bookshelf/internal/apperror"
	"github.com/sakif/bookshelf/internal/model"
	"github.com/sakif/bookshelf/internal/session"
)

type fakeUsers map[int64]*model.User

func (f fakeUsers) GetByID(_ context.Context, id int64) (*model.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, apperror.NotFound("user", strconv.FormatInt(id, 10))
}

func TestPrincipal(t *testing.T) {
	m := newTestSessionManager(t, session.NewMemoryStore())
	users := fakeUsers{1: {ID: 1, FirstName: "Ada", Email: "ada@example.com"}}

	chain := func(h http.HandlerFunc) http.Handler {
		return m.Load(Principal(users, discardLogger)(h))
	}

	tests := []struct {
		name     string
		userID   int64
		wantUser bool
	}{
		{"anonymous session", 0, false},
		{"signed-in user", 1, true},
		{"user row deleted", 99, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			login := httptest.NewRecorder()
			m.Load(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.userID != 0 {
					_ = m.Login(w, r, tt.userID)
				}
			})).ServeHTTP(login, httptest.NewRequest(http.MethodGet, "/", nil))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for _, c := range login.Result().Cookies() {
				req.AddCookie(c)
			}
			chain(func(w http.ResponseWriter, r *http.Request) {
				user, ok := UserFromContext(r.Context())
				if ok != tt.wantUser {
					t.Fatalf("UserFromContext() ok = %v, want %v", ok, tt.wantUser)
				}
				if ok && user.ID != tt.userID {
					t.Errorf("user.ID = %d, want %d", user.ID, tt.userID)
				}
			}).ServeHTTP(httptest.NewRecorder(), req)
		})
	}
}

func TestRequireUser(t *testing.T) {
	called := false
	h := RequireUser(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/add-review", nil))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Errorf("anonymous: got %d → %q, want 303 → /login", rec.Code, rec.Header().Get("Location"))
	}
	if called {
		t.Error("handler ran for an anonymous request")
	}

	req := httptest.NewRequest(http.MethodPost, "/add-review", nil)
	req = req.WithContext(WithUser(req.Context(), &model.User{ID: 3}))
	h.ServeHTTP(httptest.NewRecorder(), req)
	if !called {
		t.Error("handler did not run for a signed-in request")
	}
}
