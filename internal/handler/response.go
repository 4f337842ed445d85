package handler

// RESPONSE HELPERS:
// Every page goes through Pages.render, and every failure through
// writeError, so the header total, the signed-in user and pending flash
// messages are handled the same way on every route.
//
// ERROR RESPONSES:
// The site is server-rendered, so errors are short plain-text bodies, not
// JSON. The mapping from domain errors to HTTP lives here and nowhere else:
//
//	apperror.ErrValidation   → 400 with the validation message
//	apperror.ErrNotFound     → 404 "Book not found"
//	apperror.ErrUnauthorized → 303 redirect to /login
//	anything else            → 500 with a fixed message; the cause is logged
//
// NEVER expose internal error details to the client: a raw store error might
// contain SQL or connection strings.

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/bookshelf/internal/apperror"
	"github.com/sakif/bookshelf/internal/auth"
	"github.com/sakif/bookshelf/internal/service"
	"github.com/sakif/bookshelf/internal/view"
)

const msgBookNotFound = "Book not found"

// Pages renders full HTML pages with the data every page shares.
type Pages struct {
	views    view.Renderer
	catalog  *service.CatalogService
	sessions *auth.SessionManager
	logger   *slog.Logger
}

// NewPages creates a Pages.
func NewPages(views view.Renderer, catalog *service.CatalogService, sessions *auth.SessionManager, logger *slog.Logger) *Pages {
	return &Pages{
		views:    views,
		catalog:  catalog,
		sessions: sessions,
		logger:   logger,
	}
}

// render fills in the shared fields of data and writes page with status 200.
func (p *Pages) render(w http.ResponseWriter, r *http.Request, page string, data *view.Data) {
	if data == nil {
		data = &view.Data{}
	}

	total, err := p.catalog.Count(r.Context())
	if err != nil {
		p.writeError(w, r, err, "Error fetching books")
		return
	}
	data.Total = total

	if user, ok := auth.UserFromContext(r.Context()); ok {
		data.User = user
	}

	flash, err := p.sessions.PopFlash(r.Context())
	if err != nil {
		// The messages are still shown; they may show again next time.
		p.logger.Warn("clearing flash failed", slog.String("error", err.Error()))
	}
	data.Flash = flash

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := p.views.Render(w, page, data); err != nil {
		p.logger.Error("template rendering failed",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Error rendering page", http.StatusInternalServerError)
	}
}

// writeError maps err to a response. internalMsg is the body sent when err
// is not a known domain error.
func (p *Pages) writeError(w http.ResponseWriter, r *http.Request, err error, internalMsg string) {
	var appErr *apperror.AppError

	switch {
	case errors.Is(err, apperror.ErrValidation) && errors.As(err, &appErr):
		http.Error(w, appErr.Message, http.StatusBadRequest)
	case errors.Is(err, apperror.ErrNotFound):
		http.Error(w, msgBookNotFound, http.StatusNotFound)
	case errors.Is(err, apperror.ErrUnauthorized):
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	default:
		p.logger.Error(internalMsg,
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		http.Error(w, internalMsg, http.StatusInternalServerError)
	}
}

// flashAndRedirect queues msg and sends the browser to target.
func (p *Pages) flashAndRedirect(w http.ResponseWriter, r *http.Request, msg, target string) {
	if err := p.sessions.AddFlash(r.Context(), msg); err != nil {
		p.logger.Warn("saving flash failed", slog.String("error", err.Error()))
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
