package transform

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/spf13/afero"

	"github.com/conneroisu/weft/internal/errors"
	"github.com/conneroisu/weft/internal/pipeline"
)

const sourceNamespace = "weft-source"

// StylesheetOptions configures the stylesheet compiler.
type StylesheetOptions struct {
	// FS is where @import targets are read from.
	FS      afero.Fs
	Engines []api.Engine
	Minify  bool
	// VendorDir is where imports starting with "vendor/" resolve to.
	VendorDir string
	// Strict turns compiler warnings into failures.
	Strict bool
}

// Stylesheet bundles each file with its @imports, lowers syntax the target
// engines lack, adds vendor prefixes and optionally minifies. url() references
// are left alone.
func Stylesheet(opts StylesheetOptions) pipeline.Transform {
	return pipeline.EachFile("stylesheet", func(ctx context.Context, f *pipeline.File) (*pipeline.File, error) {
		out, err := compileStylesheet(f, opts)
		if err != nil {
			return nil, err
		}
		res := f.WithExt(".css")
		res.Contents = out
		return res, nil
	})
}

func compileStylesheet(f *pipeline.File, opts StylesheetOptions) ([]byte, error) {
	entry := f.Origin()

	result := api.Build(api.BuildOptions{
		EntryPoints:      []string{entry},
		Bundle:           true,
		Write:            false,
		Outfile:          "out.css",
		Engines:          opts.Engines,
		MinifyWhitespace: opts.Minify,
		MinifySyntax:     opts.Minify,
		LogLevel:         api.LogLevelSilent,
		Plugins:          []api.Plugin{sourcePlugin(f, opts)},
	})

	if len(result.Errors) > 0 {
		return nil, esbuildError(errors.ErrCodeStylesheet, entry, result.Errors)
	}
	if opts.Strict && len(result.Warnings) > 0 {
		return nil, esbuildError(errors.ErrCodeStylesheet, entry, result.Warnings)
	}

	for _, out := range result.OutputFiles {
		if strings.HasSuffix(out.Path, ".css") {
			return out.Contents, nil
		}
	}
	return nil, errors.NewTransformError(errors.ErrCodeStylesheet, "compiler produced no css", nil).
		WithLocation(entry, 0, 0)
}

// sourcePlugin serves every module of the build from the afero filesystem so
// compilation never touches paths the task did not name.
func sourcePlugin(entry *pipeline.File, opts StylesheetOptions) api.Plugin {
	return api.Plugin{
		Name: "weft-source",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: `.*`},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					return resolveImport(args, opts)
				})

			build.OnLoad(api.OnLoadOptions{Filter: `.*`, Namespace: sourceNamespace},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					var contents string
					if args.Path == entry.Origin() {
						contents = string(entry.Contents)
					} else {
						data, err := afero.ReadFile(opts.FS, filepath.FromSlash(args.Path))
						if err != nil {
							return api.OnLoadResult{}, fmt.Errorf("cannot read %s: %w", args.Path, err)
						}
						contents = string(data)
					}
					return api.OnLoadResult{Contents: &contents, Loader: api.LoaderCSS}, nil
				})
		},
	}
}

func resolveImport(args api.OnResolveArgs, opts StylesheetOptions) (api.OnResolveResult, error) {
	p := args.Path

	if args.Kind == api.ResolveCSSURLToken || isRemote(p) {
		return api.OnResolveResult{Path: p, External: true}, nil
	}

	switch {
	case args.Kind == api.ResolveEntryPoint:
	case strings.HasPrefix(p, "vendor/") && opts.VendorDir != "":
		p = path.Join(filepath.ToSlash(opts.VendorDir), strings.TrimPrefix(p, "vendor/"))
	case strings.HasPrefix(p, "/"):
		return api.OnResolveResult{}, fmt.Errorf("absolute import %q is not allowed", p)
	default:
		p = path.Join(path.Dir(args.Importer), p)
	}

	return api.OnResolveResult{Path: path.Clean(p), Namespace: sourceNamespace}, nil
}

func isRemote(p string) bool {
	for _, prefix := range []string{"http://", "https://", "//", "data:"} {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}
