package handler_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/bookshelf/internal/auth"
	"github.com/sakif/bookshelf/internal/handler"
	"github.com/sakif/bookshelf/internal/model"
	"github.com/sakif/bookshelf/internal/repository/sqldb"
	"github.com/sakif/bookshelf/internal/service"
	"github.com/sakif/bookshelf/internal/session"
	"github.com/sakif/bookshelf/internal/upload"
	"github.com/sakif/bookshelf/internal/view"
)

// fakeRenderer records the last page rendered instead of executing templates.
type fakeRenderer struct {
	page string
	data *view.Data
}

func (f *fakeRenderer) Render(w io.Writer, page string, data *view.Data) error {
	f.page, f.data = page, data
	_, err := io.WriteString(w, "page:"+page)
	return err
}

// fakeGoogle is a canned GoogleAuth.
type fakeGoogle struct {
	profile *auth.GoogleProfile
	err     error
}

func (f *fakeGoogle) AuthURL(state string) string {
	return "https://accounts.example.com/auth?state=" + url.QueryEscape(state)
}

func (f *fakeGoogle) Exchange(_ context.Context, code string) (*auth.GoogleProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.profile, nil
}

// logoutFailStore fails Delete once armed.
type logoutFailStore struct {
	*session.MemoryStore
	fail bool
}

func (s *logoutFailStore) Delete(ctx context.Context, id string) error {
	if s.fail {
		return errors.New("session backend down")
	}
	return s.MemoryStore.Delete(ctx, id)
}

type testEnv struct {
	router    http.Handler
	db        *sqldb.DB
	views     *fakeRenderer
	store     *logoutFailStore
	google    *fakeGoogle
	uploadDir string
	authSvc   *service.AuthService
	catalog   *service.CatalogService

	user    *model.User // set by signupAndLogin
	cookies map[string]*http.Cookie
}

// newTestEnv wires the handlers the way the server does, on an in-memory
// database, a memory session store and a temporary upload directory.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvGoogle(t, true)
}

// newTestEnvGoogle is newTestEnv with Google sign-in switched on or off.
func newTestEnvGoogle(t *testing.T, withGoogle bool) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sqldb.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("handler-test-secret-key")
	require.NoError(t, err)

	env := &testEnv{
		db:        db,
		views:     &fakeRenderer{},
		store:     &logoutFailStore{MemoryStore: session.NewMemoryStore()},
		google:    &fakeGoogle{},
		uploadDir: t.TempDir(),
		cookies:   make(map[string]*http.Cookie),
	}

	storage, err := upload.NewDiskStorage(env.uploadDir)
	require.NoError(t, err)

	sessions := auth.NewSessionManager(env.store, tokens, logger)
	env.authSvc = service.NewAuthService(db.Users(), auth.NewPasswordServiceWithCost(bcrypt.MinCost), logger)
	env.catalog = service.NewCatalogService(db.Items(), logger)

	pages := handler.NewPages(env.views, env.catalog, sessions, logger)
	var google handler.GoogleAuth
	if withGoogle {
		google = env.google
	}
	authHandler := handler.NewAuthHandler(pages, env.authSvc, google)
	catalogHandler := handler.NewCatalogHandler(pages, upload.NewUploader(storage))

	r := chi.NewRouter()
	r.Use(sessions.Load)
	r.Use(auth.Principal(db.Users(), logger))
	r.Get("/", catalogHandler.HandleIndex)
	r.Get("/login", authHandler.HandleLoginPage)
	r.Post("/login", authHandler.HandleLogin)
	r.Get("/signup", authHandler.HandleSignupPage)
	r.Post("/signup", authHandler.HandleSignup)
	r.Get("/logout", authHandler.HandleLogout)
	r.Get("/auth/google", authHandler.HandleGoogleLogin)
	r.Get("/auth/google/add", authHandler.HandleGoogleCallback)
	r.Get("/users/{id}", catalogHandler.HandleUserPage)
	r.Get("/add-review", catalogHandler.HandleAddPage)
	r.Post("/add-review", catalogHandler.HandleCreate)
	r.Post("/edit", catalogHandler.HandlePreview)
	r.Get("/reviews/{id}", catalogHandler.HandleReview)
	r.Get("/edit-review/{id}", catalogHandler.HandleEditPage)
	r.Post("/update", catalogHandler.HandleUpdate)
	r.Post("/search", catalogHandler.HandleSearch)
	r.Post("/sort", catalogHandler.HandleSort)
	r.Post("/genre", catalogHandler.HandleGenre)
	r.Post("/delete-review", catalogHandler.HandleDelete)
	env.router = r

	return env
}

// do sends req with the cookies collected so far and keeps the ones the
// response sets, like a browser.
func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range e.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(e.cookies, c.Name)
			continue
		}
		e.cookies[c.Name] = c
	}
	return rec
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (e *testEnv) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(req)
}

type imageFile struct {
	name        string
	contentType string
	size        int
}

// postMultipart posts fields and an optional bookImage like the add form.
func (e *testEnv) postMultipart(t *testing.T, path string, fields url.Values, file *imageFile) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, vs := range fields {
		for _, v := range vs {
			require.NoError(t, mw.WriteField(k, v))
		}
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="bookImage"; filename="`+file.name+`"`)
		h.Set("Content-Type", file.contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(bytes.Repeat([]byte{0x42}, file.size))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return e.do(req)
}

// signupAndLogin creates a local account and logs this env's browser in.
func (e *testEnv) signupAndLogin(t *testing.T, email string) *model.User {
	t.Helper()
	user, err := e.authSvc.Signup(context.Background(), "Ada", "Lovelace", email, "password1")
	require.NoError(t, err)

	rec := e.postForm("/login", url.Values{"username": {email}, "password": {"password1"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	e.user = user
	return user
}

func reviewForm(title, source string) url.Values {
	return url.Values{
		"title":  {title},
		"author": {"Frank Herbert"},
		"genre":  {"Sci-Fi"},
		"review": {"Spice must flow."},
		"rating": {"5"},
		"source": {source},
	}
}
