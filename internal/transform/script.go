package transform

import (
	"bytes"
	"context"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/conneroisu/weft/internal/errors"
	"github.com/conneroisu/weft/internal/pipeline"
)

var scriptLoaders = map[string]api.Loader{
	".js":  api.LoaderJS,
	".mjs": api.LoaderJS,
	".cjs": api.LoaderJS,
	".jsx": api.LoaderJSX,
	".ts":  api.LoaderTS,
	".mts": api.LoaderTS,
	".tsx": api.LoaderTSX,
}

// Script transpiles JavaScript, JSX and TypeScript down to target, one file
// at a time. Output files get a .js extension.
func Script(target api.Target) pipeline.Transform {
	return pipeline.EachFile("script", func(ctx context.Context, f *pipeline.File) (*pipeline.File, error) {
		loader, ok := scriptLoaders[strings.ToLower(f.Ext())]
		if !ok {
			loader = api.LoaderJS
		}

		result := api.Transform(string(f.Contents), api.TransformOptions{
			Loader:     loader,
			Target:     target,
			Sourcefile: f.Origin(),
			LogLevel:   api.LogLevelSilent,
		})
		if len(result.Errors) > 0 {
			return nil, esbuildError(errors.ErrCodeScript, f.Origin(), result.Errors)
		}

		out := f.WithExt(".js")
		out.Contents = result.Code
		return out, nil
	})
}

// Concat joins every file, in order, into a single file called name.
func Concat(name string) pipeline.Transform {
	return pipeline.TransformFunc("concat", func(_ context.Context, files []*pipeline.File) ([]*pipeline.File, error) {
		if len(files) == 0 {
			return nil, nil
		}

		var buf bytes.Buffer
		for i, f := range files {
			if i > 0 {
				buf.WriteByte('\n')
			}
			buf.Write(f.Contents)
		}
		return []*pipeline.File{{Path: name, Contents: buf.Bytes()}}, nil
	})
}

// Minify compresses JavaScript: whitespace, identifiers and syntax.
func Minify() pipeline.Transform {
	return pipeline.EachFile("minify", func(ctx context.Context, f *pipeline.File) (*pipeline.File, error) {
		result := api.Transform(string(f.Contents), api.TransformOptions{
			Loader:            api.LoaderJS,
			MinifyWhitespace:  true,
			MinifyIdentifiers: true,
			MinifySyntax:      true,
			LegalComments:     api.LegalCommentsNone,
			Sourcefile:        f.Origin(),
			LogLevel:          api.LogLevelSilent,
		})
		if len(result.Errors) > 0 {
			return nil, esbuildError(errors.ErrCodeScript, f.Origin(), result.Errors)
		}

		out := *f
		out.Contents = result.Code
		return &out, nil
	})
}
