// Package view renders the HTML pages of the bookshelf.
//
// TEMPLATE COMPOSITION:
// Every page file defines {{define "content"}}. It is parsed together with
// layout.html (which defines "layout" and calls {{template "content" .}})
// and the shared partials, one template set per page. Parsing happens once
// at startup; Render only executes.
package view

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/sakif/bookshelf/internal/model"
)

// Pages lists every page template, without the .html suffix.
var Pages = []string{
	"index", "about", "login", "signup", "users", "add",
	"review", "edit", "search", "sort", "genre",
}

// sharedFiles are parsed into every page's template set.
var sharedFiles = []string{"layout.html", "partials.html"}

// Renderer writes a named page with the given data.
type Renderer interface {
	Render(w io.Writer, page string, data *Data) error
}

// Data is the bag of values a page may use. Handlers fill in the fields the
// page needs; the layout always reads User, Total and Flash.
type Data struct {
	Title string
	User  *model.User
	Flash []string

	// Total is the number of public reviews, shown in the header of every page.
	Total int

	Books       []model.Item
	Book        *model.Item
	TotalResult int
	SearchTerm  string
	SortBy      string
	Genre       string
	Source      string
	CurrentURL  string

	// OwnerID is the user whose private shelf the users page lists.
	OwnerID int64
}

// OwnsShelf reports whether the signed-in visitor is the owner of the
// shelf being shown.
func (d *Data) OwnsShelf() bool {
	return d.User != nil && d.OwnerID != 0 && d.User.ID == d.OwnerID
}

// Templates is the html/template implementation of Renderer.
type Templates struct {
	pages map[string]*template.Template
}

var _ Renderer = (*Templates)(nil)

var funcs = template.FuncMap{
	"stars": func(rating int) []bool {
		return (&model.Item{Rating: rating}).Stars()
	},
	"ratings": func() []int {
		r := make([]int, 0, model.MaxRating)
		for n := model.MinRating; n <= model.MaxRating; n++ {
			r = append(r, n)
		}
		return r
	},
	"sortKeys": func() []model.SortKey { return []model.SortKey{model.SortTitleAsc, model.SortRating} },
	"initial": func(s string) string {
		r, _ := utf8.DecodeRuneInString(s)
		if r == utf8.RuneError {
			return "?"
		}
		return strings.ToUpper(string(r))
	},
}

// New parses every page under dir.
func New(dir string) (*Templates, error) {
	t := &Templates{pages: make(map[string]*template.Template, len(Pages))}

	shared := make([]string, len(sharedFiles))
	for i, f := range sharedFiles {
		shared[i] = filepath.Join(dir, f)
	}

	for _, page := range Pages {
		files := append(append([]string(nil), shared...), filepath.Join(dir, page+".html"))
		tmpl, err := template.New(page).Funcs(funcs).ParseFiles(files...)
		if err != nil {
			return nil, fmt.Errorf("view: parsing %s: %w", page, err)
		}
		t.pages[page] = tmpl
	}
	return t, nil
}

// Render executes page into a buffer first, so a template error never leaves
// a half-written page on the wire.
func (t *Templates) Render(w io.Writer, page string, data *Data) error {
	tmpl, ok := t.pages[page]
	if !ok {
		return fmt.Errorf("view: unknown page %q", page)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("view: rendering %s: %w", page, err)
	}
	_, err := buf.WriteTo(w)
	return err
}
