// Package pipeline moves files from source globs through a chain of
// transforms into an output directory.
//
// Every path handled here is slash separated. Source paths are read through an
// afero.Fs so tests can run against memory; destinations are written through a
// Writer that refuses anything outside the build root.
package pipeline

import (
	"context"
	"path"
	"strings"
)

// File is one unit flowing through a transform chain.
type File struct {
	// Path is relative to the base of the glob that matched the file, so
	// "src/styles/**/*.css" turns src/styles/a/b.css into a/b.css.
	Path string
	// Source is the path the file was read from. Empty for generated files.
	Source   string
	Contents []byte
}

// Ext returns the file extension including the dot.
func (f *File) Ext() string {
	return path.Ext(f.Path)
}

// WithExt returns a copy of f whose path has its extension replaced.
func (f *File) WithExt(ext string) *File {
	out := *f
	out.Path = strings.TrimSuffix(f.Path, path.Ext(f.Path)) + ext
	return &out
}

// Origin is the best path to report in errors about f.
func (f *File) Origin() string {
	if f.Source != "" {
		return f.Source
	}
	return f.Path
}

// Transform turns one set of files into another.
type Transform interface {
	Name() string
	Apply(ctx context.Context, files []*File) ([]*File, error)
}

type transformFunc struct {
	name string
	fn   func(ctx context.Context, files []*File) ([]*File, error)
}

func (t *transformFunc) Name() string { return t.name }

func (t *transformFunc) Apply(ctx context.Context, files []*File) ([]*File, error) {
	return t.fn(ctx, files)
}

// TransformFunc adapts a function over the whole file set into a Transform.
func TransformFunc(name string, fn func(ctx context.Context, files []*File) ([]*File, error)) Transform {
	return &transformFunc{name: name, fn: fn}
}

// EachFile builds a Transform that maps every file independently. A nil file
// returned by fn drops the input from the set.
func EachFile(name string, fn func(ctx context.Context, f *File) (*File, error)) Transform {
	return TransformFunc(name, func(ctx context.Context, files []*File) ([]*File, error) {
		out := make([]*File, 0, len(files))
		for _, f := range files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			res, err := fn(ctx, f)
			if err != nil {
				return nil, err
			}
			if res != nil {
				out = append(out, res)
			}
		}
		return out, nil
	})
}

// Rename changes the extension of every file.
func Rename(ext string) Transform {
	return EachFile("rename", func(_ context.Context, f *File) (*File, error) {
		return f.WithExt(ext), nil
	})
}

// Copy passes files through untouched.
func Copy() Transform {
	return TransformFunc("copy", func(_ context.Context, files []*File) ([]*File, error) {
		return files, nil
	})
}
