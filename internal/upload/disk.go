package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
)

var _ Storage = (*DiskStorage)(nil)

// DiskStorage keeps images as files in one directory.
type DiskStorage struct {
	dir string
}

// NewDiskStorage creates dir if needed and returns a DiskStorage over it.
func NewDiskStorage(dir string) (*DiskStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("upload: creating %s: %w", dir, err)
	}
	return &DiskStorage{dir: dir}, nil
}

// Save writes to a temporary file and renames it into place, so a reader
// never sees a half-written image.
func (d *DiskStorage) Save(_ context.Context, name string, r io.Reader, _ int64, _ string) error {
	if !validName(name) {
		return fmt.Errorf("upload: invalid file name %q", name)
	}

	tmp, err := os.CreateTemp(d.dir, ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(d.dir, name))
}

func (d *DiskStorage) Open(_ context.Context, name string) (*Object, error) {
	if !validName(name) {
		return nil, ErrNotExist
	}

	f, err := os.Open(filepath.Join(d.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotExist
		}
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, ErrNotExist
	}

	return &Object{
		ReadSeekCloser: f,
		ModTime:        info.ModTime(),
		ContentType:    mime.TypeByExtension(filepath.Ext(name)),
	}, nil
}

func (d *DiskStorage) Remove(_ context.Context, name string) error {
	if !validName(name) {
		return nil
	}
	err := os.Remove(filepath.Join(d.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
