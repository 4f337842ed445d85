// Package handler contains the HTTP handlers of the bookshelf.
//
// HANDLER RESPONSIBILITIES:
//  1. Parse the request (path parameters, form fields, the uploaded file)
//  2. Call the service layer, which owns the rules
//  3. Write the response: a rendered page, a redirect, or a short error
//
// Handlers hold no business logic. They decide only HTTP matters such as
// status codes and where to redirect.
package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/bookshelf/internal/apperror"
	"github.com/sakif/bookshelf/internal/auth"
	"github.com/sakif/bookshelf/internal/model"
	"github.com/sakif/bookshelf/internal/service"
	"github.com/sakif/bookshelf/internal/upload"
	"github.com/sakif/bookshelf/internal/view"
)

// CatalogHandler serves the review pages and forms.
type CatalogHandler struct {
	*Pages
	uploads *upload.Uploader
}

// NewCatalogHandler creates a CatalogHandler.
func NewCatalogHandler(pages *Pages, uploads *upload.Uploader) *CatalogHandler {
	return &CatalogHandler{
		Pages:   pages,
		uploads: uploads,
	}
}

// HandleIndex lists the public catalog, oldest first.
//
// HTTP: GET /
func (h *CatalogHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	books, err := h.catalog.List(r.Context(), model.SortNone)
	if err != nil {
		h.writeError(w, r, err, "Error fetching books")
		return
	}
	h.render(w, r, "index", &view.Data{Books: books})
}

// HandleAbout renders the about page.
//
// HTTP: GET /about
func (h *CatalogHandler) HandleAbout(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "about", &view.Data{Title: "About"})
}

// HandleUserPage lists a user's private reviews.
//
// HTTP: GET /users/{id}
func (h *CatalogHandler) HandleUserPage(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	books, err := h.catalog.Private(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err, "Error loading user reviews")
		return
	}
	h.render(w, r, "users", &view.Data{Title: "Private shelf", Books: books, OwnerID: userID})
}

// HandleAddPage renders the new-review form. The source query parameter is
// carried into the form so the review ends up private when the form was
// opened from the user's own page.
//
// HTTP: GET /add-review?source=users
func (h *CatalogHandler) HandleAddPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "add", &view.Data{
		Title:  "Add a review",
		Book:   &model.Item{},
		Source: r.URL.Query().Get("source"),
	})
}

// HandleCreate stores a new review with its optional cover image.
//
// HTTP: POST /add-review (multipart: title, author, genre, review, rating,
// source, bookImage)
//
// ORDER OF OPERATIONS:
//  1. Bound and parse the multipart body
//  2. Validate and store the image, if any; a rejected image stops here
//  3. Insert the review; if that fails, the stored image is removed again
//  4. Redirect to the user's page for a private review, else to /
func (h *CatalogHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	owner, ok := auth.UserFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	if err := upload.ParseForm(w, r); err != nil {
		h.writeError(w, r, err, "Error adding review")
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	input, err := reviewInputFromForm(r)
	if err != nil {
		h.writeError(w, r, err, "Error adding review")
		return
	}

	var imagePath string
	file, err := upload.FileFromRequest(r)
	if err != nil {
		h.writeError(w, r, err, "Error adding review")
		return
	}
	if file != nil {
		if imagePath, err = h.uploads.Store(r.Context(), file); err != nil {
			h.writeError(w, r, err, "Error adding review")
			return
		}
	}

	source := r.PostFormValue("source")
	if _, err := h.catalog.Create(r.Context(), owner, input, source, imagePath); err != nil {
		h.removeImage(r, imagePath)
		h.writeError(w, r, err, "Error adding review")
		return
	}

	target := "/"
	if model.IsPrivateSource(source) {
		target = "/users/" + strconv.FormatInt(owner.ID, 10)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// HandlePreview renders the review page from the posted fields without
// saving anything.
//
// HTTP: POST /edit
func (h *CatalogHandler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form submission", http.StatusBadRequest)
		return
	}

	id, _ := strconv.ParseInt(r.PostFormValue("id"), 10, 64)
	rating, _ := strconv.Atoi(r.PostFormValue("rating"))
	book := &model.Item{
		ID:        id,
		Title:     r.PostFormValue("title"),
		Author:    r.PostFormValue("author"),
		Genre:     r.PostFormValue("genre"),
		Review:    r.PostFormValue("review"),
		Rating:    rating,
		ImagePath: r.PostFormValue("image_path"),
	}
	h.render(w, r, "review", &view.Data{Title: book.Title, Book: book})
}

// HandleReview shows one review.
//
// HTTP: GET /reviews/{id}
func (h *CatalogHandler) HandleReview(w http.ResponseWriter, r *http.Request) {
	book, ok := h.loadItem(w, r, "Error loading review")
	if !ok {
		return
	}
	h.render(w, r, "review", &view.Data{
		Title:      book.Title,
		Book:       book,
		CurrentURL: r.URL.RequestURI(),
	})
}

// HandleEditPage renders the edit form of one review.
//
// HTTP: GET /edit-review/{id}
func (h *CatalogHandler) HandleEditPage(w http.ResponseWriter, r *http.Request) {
	book, ok := h.loadItem(w, r, "Error loading edit page")
	if !ok {
		return
	}
	h.render(w, r, "edit", &view.Data{Title: "Edit " + book.Title, Book: book})
}

// HandleUpdate saves the edit form.
//
// HTTP: POST /update (updatedItemId, title, author, genre, review, rating)
func (h *CatalogHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form submission", http.StatusBadRequest)
		return
	}

	id, err := strconv.ParseInt(r.PostFormValue("updatedItemId"), 10, 64)
	if err != nil {
		http.Error(w, msgBookNotFound, http.StatusNotFound)
		return
	}

	input, err := reviewInputFromForm(r)
	if err != nil {
		h.writeError(w, r, err, "Error updating review")
		return
	}

	if err := h.catalog.Update(r.Context(), id, input); err != nil {
		h.writeError(w, r, err, "Error updating review")
		return
	}
	http.Redirect(w, r, "/reviews/"+strconv.FormatInt(id, 10), http.StatusSeeOther)
}

// HandleSearch lists public reviews whose title, author or genre contains
// the search term.
//
// HTTP: POST /search (search)
func (h *CatalogHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	books, term, err := h.catalog.Search(r.Context(), r.PostFormValue("search"))
	if err != nil {
		h.writeError(w, r, err, "Error searching for books")
		return
	}
	h.render(w, r, "search", &view.Data{
		Title:       "Search",
		Books:       books,
		TotalResult: len(books),
		SearchTerm:  term,
	})
}

// HandleSort lists the public catalog in the chosen order.
//
// HTTP: POST /sort (sort = "Name (A-Z)" | "Rating ★")
func (h *CatalogHandler) HandleSort(w http.ResponseWriter, r *http.Request) {
	sortBy := r.PostFormValue("sort")
	books, err := h.catalog.List(r.Context(), model.ParseSortKey(sortBy))
	if err != nil {
		h.writeError(w, r, err, "Error sorting books")
		return
	}
	h.render(w, r, "sort", &view.Data{
		Title:       "Sorted",
		Books:       books,
		TotalResult: len(books),
		SortBy:      sortBy,
	})
}

// HandleGenre lists the public reviews of one genre.
//
// HTTP: POST /genre (genreTag from a card's tag button, or genre from the
// filter box)
func (h *CatalogHandler) HandleGenre(w http.ResponseWriter, r *http.Request) {
	books, genre, err := h.catalog.ByGenre(r.Context(), r.PostFormValue("genreTag"), r.PostFormValue("genre"))
	if err != nil {
		h.writeError(w, r, err, "Error filtering by genre")
		return
	}
	h.render(w, r, "genre", &view.Data{
		Title:       genre,
		Books:       books,
		TotalResult: len(books),
		Genre:       genre,
	})
}

// HandleDelete removes a review and its cover image.
//
// HTTP: POST /delete-review (id, referrer)
//
// The browser goes back to referrer, except when the delete came from the
// review's own page, which no longer exists; then it goes to /. Deleting a
// review that is already gone just redirects.
func (h *CatalogHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form submission", http.StatusBadRequest)
		return
	}

	id, err := strconv.ParseInt(r.PostFormValue("id"), 10, 64)
	if err != nil {
		http.Error(w, msgBookNotFound, http.StatusNotFound)
		return
	}

	removed, err := h.catalog.Delete(r.Context(), id)
	switch {
	case err == nil:
		h.removeImage(r, removed.ImagePath)
	case errors.Is(err, apperror.ErrNotFound):
		// already gone
	default:
		h.writeError(w, r, err, "Error deleting review")
		return
	}

	http.Redirect(w, r, deleteRedirect(r.PostFormValue("referrer")), http.StatusSeeOther)
}

// deleteRedirect picks where to go after a delete. Only local paths are
// followed.
func deleteRedirect(referrer string) string {
	if !isLocalPath(referrer) || strings.HasPrefix(referrer, "/reviews/") {
		return "/"
	}
	return referrer
}

// isLocalPath reports whether p stays on this site when used as a
// Location. Browsers read "/\host" like "//host" and strip tabs and
// newlines, so both are refused along with anything that has a scheme or
// host.
func isLocalPath(p string) bool {
	if p == "" || p[0] != '/' {
		return false
	}
	if len(p) > 1 && (p[1] == '/' || p[1] == '\\') {
		return false
	}
	u, err := url.Parse(p)
	return err == nil && u.Scheme == "" && u.Host == ""
}

// loadItem fetches the review named by the {id} path parameter, writing the
// error response itself when it cannot.
func (h *CatalogHandler) loadItem(w http.ResponseWriter, r *http.Request, internalMsg string) (*model.Item, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, msgBookNotFound, http.StatusNotFound)
		return nil, false
	}

	book, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, internalMsg)
		return nil, false
	}
	return book, true
}

func (h *CatalogHandler) removeImage(r *http.Request, path string) {
	if path == "" {
		return
	}
	if err := h.uploads.Remove(r.Context(), path); err != nil {
		h.logger.Warn("removing review image failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}

// reviewInputFromForm reads the editable review fields of a parsed form.
func reviewInputFromForm(r *http.Request) (service.ReviewInput, error) {
	rating, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue("rating")))
	if err != nil {
		return service.ReviewInput{}, apperror.ValidationFailed("rating", "rating must be a number from 1 to 5")
	}
	return service.ReviewInput{
		Title:  r.PostFormValue("title"),
		Author: r.PostFormValue("author"),
		Genre:  r.PostFormValue("genre"),
		Review: r.PostFormValue("review"),
		Rating: rating,
	}, nil
}
