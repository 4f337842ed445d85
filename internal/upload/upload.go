// Package upload validates and stores the optional cover image of a review.
//
// VALIDATION CONTRACT:
//   - the file arrives in the multipart field "bookImage", at most once
//   - it is at most 1 MiB
//   - both its declared MIME type and its file extension contain one of
//     jpeg, jpg, png, webp or svg
//
// A rejected file is never stored, and the handler must not write the review.
//
// STORAGE:
// Accepted files are handed to a Storage backend under a generated name
// "<unix-millis>-<xid><ext>" and referenced from the review as
// "/uploads/<name>". DiskStorage writes to a directory; MinioStorage writes
// to an S3-compatible bucket. Either way, Handler serves them back.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/bookshelf/internal/apperror"
)

const (
	// FieldName is the multipart field carrying the image.
	FieldName = "bookImage"

	// MaxFileSize is the largest accepted image, in bytes.
	MaxFileSize = 1 << 20

	// formOverhead is the room left in the request body for the text fields
	// and multipart framing that come with the file.
	formOverhead = 64 << 10

	// PathPrefix is the URL prefix under which stored images are served.
	PathPrefix = "/uploads/"
)

var allowedTypes = regexp.MustCompile(`jpeg|jpg|png|webp|svg`)

// Rejections shown to the visitor.
var (
	ErrFileType     = apperror.ValidationFailed(FieldName, "Only image files (jpeg, jpg, png, webp, svg) are allowed!")
	ErrFileTooLarge = apperror.ValidationFailed(FieldName, "File too large: maximum size is 1MB")
	ErrTooManyFiles = apperror.ValidationFailed(FieldName, "Only one image can be uploaded per review")
)

// ParseForm bounds the request body and parses it as a multipart form, or
// as a plain urlencoded form when the request is not multipart. A body over
// the bound is reported as ErrFileTooLarge.
func ParseForm(w http.ResponseWriter, r *http.Request) error {
	if r.ContentLength > MaxFileSize+formOverhead {
		return ErrFileTooLarge
	}
	r.Body = http.MaxBytesReader(w, r.Body, MaxFileSize+formOverhead)

	err := r.ParseMultipartForm(MaxFileSize + formOverhead)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) || errors.Is(err, multipart.ErrMessageTooLarge) {
			return ErrFileTooLarge
		}
		return apperror.ValidationFailed("form", "malformed form submission")
	}
	return nil
}

// FileFromRequest returns the uploaded image of a parsed form, or nil when
// none was sent.
func FileFromRequest(r *http.Request) (*multipart.FileHeader, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	files := r.MultipartForm.File[FieldName]
	switch {
	case len(files) == 0:
		return nil, nil
	case len(files) > 1:
		return nil, ErrTooManyFiles
	case files[0].Filename == "" && files[0].Size == 0:
		// An empty file input still posts a part with no name.
		return nil, nil
	}
	return files[0], nil
}

// Validate applies the size and type rules to one file.
func Validate(fh *multipart.FileHeader) error {
	if fh.Size > MaxFileSize {
		return ErrFileTooLarge
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	mimeType := strings.ToLower(fh.Header.Get("Content-Type"))
	if !allowedTypes.MatchString(ext) || !allowedTypes.MatchString(mimeType) {
		return ErrFileType
	}
	return nil
}

// Storage is where accepted images are kept. Names are flat: no directories.
type Storage interface {
	Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, name string) (*Object, error)
	Remove(ctx context.Context, name string) error
}

// Object is an open stored image.
type Object struct {
	io.ReadSeekCloser
	ModTime     time.Time
	ContentType string
}

// ErrNotExist is returned by Storage.Open for an unknown name.
var ErrNotExist = errors.New("upload: no such file")

// Uploader validates images and puts them in a Storage.
type Uploader struct {
	storage Storage
	now     func() time.Time
}

// NewUploader creates an Uploader backed by storage.
func NewUploader(storage Storage) *Uploader {
	return &Uploader{storage: storage, now: time.Now}
}

// Store validates fh, stores it under a fresh name and returns the path to
// record on the review.
func (u *Uploader) Store(ctx context.Context, fh *multipart.FileHeader) (string, error) {
	if err := Validate(fh); err != nil {
		return "", err
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("upload: opening %q: %w", fh.Filename, err)
	}
	defer src.Close()

	name := u.fileName(fh.Filename)
	if err := u.storage.Save(ctx, name, src, fh.Size, fh.Header.Get("Content-Type")); err != nil {
		return "", fmt.Errorf("upload: storing %q: %w", name, err)
	}
	return PathPrefix + name, nil
}

// Remove deletes the image recorded as path. Paths outside PathPrefix are
// ignored.
func (u *Uploader) Remove(ctx context.Context, path string) error {
	name, ok := nameFromPath(path)
	if !ok {
		return nil
	}
	if err := u.storage.Remove(ctx, name); err != nil {
		return fmt.Errorf("upload: removing %q: %w", name, err)
	}
	return nil
}

func (u *Uploader) fileName(original string) string {
	return fmt.Sprintf("%d-%s%s", u.now().UnixMilli(), xid.New().String(), strings.ToLower(filepath.Ext(original)))
}

// nameFromPath turns "/uploads/<name>" into "<name>", refusing anything that
// could escape the flat namespace.
func nameFromPath(path string) (string, bool) {
	name, ok := strings.CutPrefix(path, PathPrefix)
	if !ok || !validName(name) {
		return "", false
	}
	return name, true
}

func validName(name string) bool {
	return name != "" && name != "." && name != ".." &&
		!strings.ContainsAny(name, `/\`) && !strings.HasPrefix(name, ".")
}
