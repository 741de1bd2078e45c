// Package transform holds the file transforms weft chains together: markup
// templates, stylesheets, scripts, images and the SVG sprite.
//
// Each transform is a thin adapter around a library. Input the library rejects
// comes back as a TransformError carrying the file and, when the library
// reports one, the line and column.
package transform

import (
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/conneroisu/weft/internal/errors"
)

// esbuildError converts esbuild diagnostics into a TransformError located at
// the first message.
func esbuildError(code, file string, msgs []api.Message) *errors.AssetError {
	texts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		texts = append(texts, m.Text)
	}

	err := errors.NewTransformError(code, strings.Join(texts, "; "), nil).
		WithLocation(file, 0, 0)
	if len(msgs) > 0 && msgs[0].Location != nil {
		loc := msgs[0].Location
		if loc.File != "" {
			file = strings.TrimPrefix(loc.File, sourceNamespace+":")
		}
		err.WithLocation(file, loc.Line, loc.Column+1)
		if loc.LineText != "" {
			err.WithContext("line_text", loc.LineText)
		}
	}
	if len(msgs) > 1 {
		err.WithContext("diagnostics", len(msgs))
	}
	return err
}

// ParseTarget maps a config value such as "es2015" onto an esbuild target.
func ParseTarget(name string) (api.Target, error) {
	targets := map[string]api.Target{
		"es5":    api.ES5,
		"es2015": api.ES2015,
		"es2016": api.ES2016,
		"es2017": api.ES2017,
		"es2018": api.ES2018,
		"es2019": api.ES2019,
		"es2020": api.ES2020,
		"es2021": api.ES2021,
		"es2022": api.ES2022,
		"es2023": api.ES2023,
		"es2024": api.ES2024,
		"esnext": api.ESNext,
	}
	t, ok := targets[strings.ToLower(name)]
	if !ok {
		return api.DefaultTarget, errors.NewConfigError(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown script target %q", name))
	}
	return t, nil
}

// ParseEngines turns values like "chrome58" or "safari11.1" into esbuild
// engine constraints.
func ParseEngines(values []string) ([]api.Engine, error) {
	names := map[string]api.EngineName{
		"chrome":  api.EngineChrome,
		"edge":    api.EngineEdge,
		"firefox": api.EngineFirefox,
		"ios":     api.EngineIOS,
		"opera":   api.EngineOpera,
		"safari":  api.EngineSafari,
	}

	engines := make([]api.Engine, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		i := strings.IndexAny(v, "0123456789")
		if i <= 0 {
			return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid,
				fmt.Sprintf("style target %q needs an engine and a version", v))
		}
		name, ok := names[v[:i]]
		if !ok {
			return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid,
				fmt.Sprintf("unknown style engine %q", v[:i]))
		}
		engines = append(engines, api.Engine{Name: name, Version: v[i:]})
	}
	return engines, nil
}
