package pipeline

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/conneroisu/weft/internal/config"
	"github.com/conneroisu/weft/internal/errors"
)

// Writer writes task output beneath a build root and nowhere else.
type Writer struct {
	root string
	fs   afero.Fs
}

// NewWriter returns a Writer for root on fsys. All writes go through an
// afero.BasePathFs so even a crafted relative path cannot leave root.
func NewWriter(fsys afero.Fs, root string) *Writer {
	root = path.Clean(filepath.ToSlash(root))
	return &Writer{
		root: root,
		fs:   afero.NewBasePathFs(fsys, filepath.FromSlash(root)),
	}
}

// Root returns the build root.
func (w *Writer) Root() string {
	return w.root
}

// Write stores f under dest and returns the slash path it was written to.
// The file is closed before Write returns.
func (w *Writer) Write(dest string, f *File) (string, error) {
	target := path.Join(filepath.ToSlash(dest), f.Path)
	if !config.IsWithin(w.root, target) || target == w.root {
		return "", errors.ErrOutsideRoot(target, w.root)
	}

	rel := strings.TrimPrefix(target, w.root+"/")
	if err := w.fs.MkdirAll(filepath.FromSlash(path.Dir(rel)), 0o755); err != nil {
		return "", errors.NewWriteError(errors.ErrCodeWriteFailed, "cannot create directory", err).
			WithLocation(target, 0, 0)
	}
	if err := afero.WriteFile(w.fs, filepath.FromSlash(rel), f.Contents, 0o644); err != nil {
		return "", errors.NewWriteError(errors.ErrCodeWriteFailed, "cannot write file", err).
			WithLocation(target, 0, 0)
	}
	return target, nil
}

// Clean removes everything beneath the build root. The root itself is kept so
// a dev server serving it keeps a valid directory. A missing root is not an
// error.
func Clean(fsys afero.Fs, root string) error {
	dir := filepath.FromSlash(path.Clean(filepath.ToSlash(root)))
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.NewWriteError(errors.ErrCodeCleanFailed, "cannot list build root", err).
			WithLocation(root, 0, 0)
	}

	for _, entry := range entries {
		if err := fsys.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return errors.NewWriteError(errors.ErrCodeCleanFailed, "cannot remove output", err).
				WithLocation(filepath.ToSlash(filepath.Join(dir, entry.Name())), 0, 0)
		}
	}
	return nil
}
