package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/rs/xid"

	"github.com/sakif/bookshelf/internal/apperror"
	"github.com/sakif/bookshelf/internal/auth"
	"github.com/sakif/bookshelf/internal/service"
	"github.com/sakif/bookshelf/internal/view"
)

const oauthStateCookie = "oauth_state"

// GoogleAuth is the OAuth exchange the callback needs. *auth.GoogleProvider
// implements it.
type GoogleAuth interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GoogleProfile, error)
}

// AuthHandler serves sign-up, log-in (password and Google) and log-out.
//
// HANDLER RESPONSIBILITIES:
//   - HandleLoginPage / HandleSignupPage → render the forms
//   - HandleSignup      → create a local account
//   - HandleLogin       → check a password and start a signed-in session
//   - HandleGoogleLogin → redirect to Google's consent screen
//   - HandleGoogleCallback → complete the OAuth flow and start a session
//   - HandleLogout      → destroy the session
//
// Both log-in routes end the same way: Authenticate returns a user, the
// session is rotated onto that user, and the browser lands on /users/{id}.
type AuthHandler struct {
	*Pages
	auth   *service.AuthService
	google GoogleAuth // nil when Google sign-in is not configured
}

// NewAuthHandler creates an AuthHandler. google may be nil.
func NewAuthHandler(pages *Pages, authService *service.AuthService, google GoogleAuth) *AuthHandler {
	return &AuthHandler{
		Pages:  pages,
		auth:   authService,
		google: google,
	}
}

// HandleLoginPage renders the login form and any pending rejection message.
//
// HTTP: GET /login
func (h *AuthHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "login", &view.Data{Title: "Log in"})
}

// HandleSignupPage renders the signup form.
//
// HTTP: GET /signup
func (h *AuthHandler) HandleSignupPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "signup", &view.Data{Title: "Sign up"})
}

// HandleSignup creates a local account and sends the visitor to log in.
//
// HTTP: POST /signup (firstname, lastname, username, password)
//
// The email field is named "username" to match the login form.
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form submission", http.StatusBadRequest)
		return
	}

	var appErr *apperror.AppError
	_, err := h.auth.Signup(r.Context(),
		r.PostFormValue("firstname"),
		r.PostFormValue("lastname"),
		r.PostFormValue("username"),
		r.PostFormValue("password"),
	)
	switch {
	case err == nil:
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	case errors.Is(err, service.ErrUserExists):
		h.flashAndRedirect(w, r, service.ErrUserExists.Message, "/login")
	case errors.Is(err, apperror.ErrValidation) && errors.As(err, &appErr):
		h.flashAndRedirect(w, r, appErr.Message, "/signup")
	default:
		h.writeError(w, r, err, "Error signing up")
	}
}

// HandleLogin checks a password credential.
//
// HTTP: POST /login (username, password)
//
// A rejection is flashed and the browser is sent back to /login, which shows
// the message.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form submission", http.StatusBadRequest)
		return
	}

	user, err := h.auth.Authenticate(r.Context(), service.PasswordCredential{
		Email:    r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	})
	if err != nil {
		var appErr *apperror.AppError
		if errors.Is(err, apperror.ErrUnauthorized) && errors.As(err, &appErr) {
			h.flashAndRedirect(w, r, appErr.Message, "/login")
			return
		}
		h.writeError(w, r, err, "Error logging in")
		return
	}

	h.completeLogin(w, r, user.ID)
}

// HandleGoogleLogin redirects to Google's consent screen.
//
// HTTP: GET /auth/google
//
// CSRF PROTECTION VIA STATE:
// A random state is stored in a short-lived cookie and sent to Google.
// HandleGoogleCallback only accepts a callback carrying the same value,
// which proves the flow was started by this browser.
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		h.flashAndRedirect(w, r, "Google sign-in is not available right now.", "/login")
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.google.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback completes the OAuth flow.
//
// HTTP: GET /auth/google/add?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for the Google profile
//  3. Find or create the user by email
//  4. Rotate the session onto the user and redirect to their page
//
// Any failure sends the browser back to /login.
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	// --- Step 1: Validate CSRF state ---
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("google callback: state mismatch")
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	// The state is single-use.
	http.SetCookie(w, &http.Cookie{
		Name:   oauthStateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("google callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	// --- Step 2: Exchange code for the profile ---
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	profile, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("google callback: exchange failed", slog.String("error", err.Error()))
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	// --- Step 3: Find or create the user ---
	user, err := h.auth.Authenticate(r.Context(), service.GoogleCredential{Profile: *profile})
	if err != nil {
		h.logger.Error("google callback: authenticate failed", slog.String("error", err.Error()))
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	// --- Step 4: Start the session ---
	h.completeLogin(w, r, user.ID)
}

// completeLogin is the shared success path of both strategies.
func (h *AuthHandler) completeLogin(w http.ResponseWriter, r *http.Request, userID int64) {
	if err := h.sessions.Login(w, r, userID); err != nil {
		h.writeError(w, r, err, "Error logging in")
		return
	}

	h.logger.Info("user logged in", slog.Int64("userID", userID))
	http.Redirect(w, r, "/users/"+strconv.FormatInt(userID, 10), http.StatusSeeOther)
}

// HandleLogout destroys the session.
//
// HTTP: GET /logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(w, r); err != nil {
		h.writeError(w, r, err, "Error logging out")
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
