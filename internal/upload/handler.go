package upload

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// Handler serves stored images. Mount it with the PathPrefix stripped, so
// the request path is the bare file name.
func Handler(storage Storage, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/")
		if !validName(name) {
			http.NotFound(w, r)
			return
		}

		obj, err := storage.Open(r.Context(), name)
		if err != nil {
			if errors.Is(err, ErrNotExist) {
				http.NotFound(w, r)
				return
			}
			logger.Error("serving upload failed",
				slog.String("name", name),
				slog.String("error", err.Error()),
			)
			http.Error(w, "Error loading image", http.StatusInternalServerError)
			return
		}
		defer obj.Close()

		if obj.ContentType != "" {
			w.Header().Set("Content-Type", obj.ContentType)
		}
		// SVGs are served as images only; block any script they carry.
		w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; sandbox")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		http.ServeContent(w, r, name, obj.ModTime, obj)
	})
}
