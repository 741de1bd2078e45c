package transform

import (
	"bytes"
	"context"
	"html/template"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/Joker/jade"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/weft/internal/errors"
	"github.com/conneroisu/weft/internal/pipeline"
)

// MarkupOptions configures page rendering.
type MarkupOptions struct {
	FS afero.Fs
	// Data is a YAML file whose top-level mapping is passed to every page.
	// A missing file renders pages with empty data.
	Data string
	// Partials is a glob of templates every page may include by base name.
	Partials string
}

var templateLine = regexp.MustCompile(`:(\d+):(?:(\d+):)?`)

// Markup renders pages to HTML. Files ending in .pug or .jade are compiled
// from Pug first; everything else is treated as a Go html/template. A page that
// references a key missing from the data fails instead of rendering blank.
func Markup(opts MarkupOptions) pipeline.Transform {
	return pipeline.TransformFunc("markup", func(ctx context.Context, files []*pipeline.File) ([]*pipeline.File, error) {
		data, err := loadData(opts.FS, opts.Data)
		if err != nil {
			return nil, err
		}
		partials, err := loadPartials(opts.FS, opts.Partials)
		if err != nil {
			return nil, err
		}

		out := make([]*pipeline.File, 0, len(files))
		for _, f := range files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			html, err := renderPage(opts.FS, f, partials, data)
			if err != nil {
				return nil, err
			}
			res := *f
			res.Contents = html
			out = append(out, &res)
		}
		return out, nil
	})
}

func loadData(fs afero.Fs, file string) (map[string]any, error) {
	data := map[string]any{}
	if file == "" {
		return data, nil
	}

	raw, err := afero.ReadFile(fs, filepath.FromSlash(file))
	if err != nil {
		if os.IsNotExist(err) {
			return data, nil
		}
		return nil, errors.NewTransformError(errors.ErrCodeReadFailed, "cannot read template data", err).
			WithLocation(file, 0, 0)
	}
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, errors.NewTransformError(errors.ErrCodeTemplate, "invalid template data", err).
			WithLocation(file, 0, 0)
	}
	if data == nil {
		data = map[string]any{}
	}
	return data, nil
}

func loadPartials(fs afero.Fs, pattern string) ([]*pipeline.File, error) {
	if pattern == "" {
		return nil, nil
	}
	files, err := pipeline.Expand(fs, []string{pattern}, nil)
	if err != nil {
		if errors.IsSourceReadError(err) {
			return nil, nil
		}
		return nil, err
	}
	return files, nil
}

func renderPage(fs afero.Fs, page *pipeline.File, partials []*pipeline.File, data map[string]any) ([]byte, error) {
	source, err := templateSource(fs, page)
	if err != nil {
		return nil, err
	}

	root := template.New(page.Path).Option("missingkey=error")
	for _, p := range partials {
		partial, err := templateSource(fs, p)
		if err != nil {
			return nil, err
		}
		if _, err := root.New(partialName(p.Path)).Parse(partial); err != nil {
			return nil, templateError(p.Origin(), err)
		}
	}
	if _, err := root.Parse(source); err != nil {
		return nil, templateError(page.Origin(), err)
	}

	var buf bytes.Buffer
	if err := root.Execute(&buf, data); err != nil {
		return nil, templateError(page.Origin(), err)
	}
	return buf.Bytes(), nil
}

// templateSource returns html/template text for f, compiling Pug when needed.
// Pug includes resolve relative to the file's directory.
func templateSource(fs afero.Fs, f *pipeline.File) (string, error) {
	switch strings.ToLower(f.Ext()) {
	case ".pug", ".jade":
		dir := path.Dir(filepath.ToSlash(f.Origin()))
		out, err := jade.ParseWithFileSystem(path.Base(f.Path), f.Contents, afero.NewHttpFs(fs).Dir(dir))
		if err != nil {
			return "", templateError(f.Origin(), err)
		}
		return out, nil
	default:
		return string(f.Contents), nil
	}
}

func partialName(p string) string {
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}

func templateError(file string, err error) *errors.AssetError {
	ae := errors.NewTransformError(errors.ErrCodeTemplate, "cannot render template", err)
	line, col := 0, 0
	if m := templateLine.FindStringSubmatch(err.Error()); m != nil {
		line, _ = strconv.Atoi(m[1])
		if m[2] != "" {
			col, _ = strconv.Atoi(m[2])
		}
	}
	return ae.WithLocation(file, line, col)
}

